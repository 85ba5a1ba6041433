package phi

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// PatternFile is the declarative pattern-definition format. Deployments
// ship one to extend the defaults without a rebuild:
//
//	patterns:
//	  - name: InsuranceID
//	    type: regex
//	    pattern: '\b(?:INS|POL)-[A-Z0-9]{6,12}\b'
//	    priority: 55
//	    strategy: hash
//	    examples: ["INS-ABC123456"]
//	sensitive_keys:
//	  - group: insurance
//	    keys: [policy_number, member_id]
type PatternFile struct {
	Patterns      []PatternEntry      `yaml:"patterns"`
	SensitiveKeys []SensitiveKeyGroup `yaml:"sensitive_keys"`
}

// PatternEntry is one pattern record in a PatternFile.
type PatternEntry struct {
	Name         string   `yaml:"name"`
	Type         string   `yaml:"type"`
	Pattern      string   `yaml:"pattern"`
	Priority     int      `yaml:"priority"`
	Strategy     string   `yaml:"strategy,omitempty"`
	ContextWords []string `yaml:"context_words,omitempty"`
	Examples     []string `yaml:"examples,omitempty"`
}

// SensitiveKeyGroup names a set of field keys to redact unconditionally.
type SensitiveKeyGroup struct {
	Group string   `yaml:"group"`
	Keys  []string `yaml:"keys"`
}

func LoadPatternFile(path string) (*PatternFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("phi patterns: read %s: %w", path, err)
	}
	f, err := ParsePatternFile(data)
	if err != nil {
		return nil, fmt.Errorf("phi patterns: %s: %w", path, err)
	}
	return f, nil
}

func ParsePatternFile(data []byte) (*PatternFile, error) {
	var f PatternFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse pattern file: %w", err)
	}
	return &f, nil
}

func (e PatternEntry) build() (*PHIPattern, error) {
	kind, err := ParseMatchKind(e.Type)
	if err != nil {
		return nil, err
	}
	strat, err := ParseStrategyKind(e.Strategy)
	if err != nil {
		return nil, err
	}
	return NewPattern(PatternDef{
		Name:         e.Name,
		Kind:         kind,
		Expr:         e.Pattern,
		Priority:     e.Priority,
		ContextWords: e.ContextWords,
		Strategy:     strat,
	})
}

// Register adds every well-formed pattern to repo and merges key groups
// into cfg. A malformed entry is skipped with a warning so one bad rule
// cannot block the rest of the file.
func (f *PatternFile) Register(repo *Repository, cfg *SanitizerConfig, log zerolog.Logger) int {
	added := 0
	for _, e := range f.Patterns {
		p, err := e.build()
		if err != nil {
			log.Warn().Err(err).Str("pattern", e.Name).Msg("skipping malformed phi pattern")
			continue
		}
		repo.Add(p)
		added++
	}
	if cfg != nil {
		for _, g := range f.SensitiveKeys {
			cfg.AddSensitiveKeys(g.Keys...)
		}
	}
	return added
}

// Lint validates the file strictly: every entry must build and every
// listed example must match its pattern.
func (f *PatternFile) Lint() []error {
	var errs []error
	for i, e := range f.Patterns {
		p, err := e.build()
		if err != nil {
			errs = append(errs, fmt.Errorf("patterns[%d]: %w", i, err))
			continue
		}
		for _, ex := range e.Examples {
			context := ""
			if p.Kind() == MatchContext && len(e.ContextWords) > 0 {
				context = e.ContextWords[0]
			}
			if !p.Matches(ex, context) {
				errs = append(errs, fmt.Errorf("patterns[%d] %s: example %q does not match", i, e.Name, ex))
			}
		}
	}
	return errs
}
