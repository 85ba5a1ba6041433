package phi

import (
	"fmt"
	"regexp"
	"strings"
)

// MatchKind selects how a pattern's expression is evaluated against input.
type MatchKind int

const (
	// MatchRegex matches anywhere in the candidate via a compiled regexp.
	MatchRegex MatchKind = iota
	// MatchExact matches on case-sensitive full-string equality.
	MatchExact
	// MatchFuzzy matches on case-insensitive substring containment.
	MatchFuzzy
	// MatchContext ignores the candidate and fires when the surrounding
	// context (typically a field name) contains one of the context words.
	MatchContext
)

func (k MatchKind) String() string {
	switch k {
	case MatchRegex:
		return "regex"
	case MatchExact:
		return "exact"
	case MatchFuzzy:
		return "fuzzy"
	case MatchContext:
		return "context"
	default:
		return "unknown"
	}
}

// ParseMatchKind maps a config/file token to a MatchKind.
func ParseMatchKind(s string) (MatchKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "regex":
		return MatchRegex, nil
	case "exact":
		return MatchExact, nil
	case "fuzzy":
		return MatchFuzzy, nil
	case "context":
		return MatchContext, nil
	default:
		return 0, fmt.Errorf("unknown match kind %q", s)
	}
}

// PatternDef is the raw definition a PHIPattern is built from, either in
// code (default set) or from a pattern definition file.
type PatternDef struct {
	Name         string
	Kind         MatchKind
	Expr         string
	Priority     int
	ContextWords []string
	// Strategy overrides the sanitizer's default redaction mode for text
	// this pattern matched. StrategyDefault defers to the config.
	Strategy StrategyKind
}

// PHIPattern is a single immutable detection rule. Construct with
// NewPattern; the zero value is not usable.
type PHIPattern struct {
	name     string
	kind     MatchKind
	expr     string
	priority int
	words    []string
	strategy StrategyKind
	re       *regexp.Regexp
}

// NewPattern validates def and compiles regex expressions up front so a
// bad rule fails at construction, not in the middle of a sanitize call.
func NewPattern(def PatternDef) (*PHIPattern, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("phi pattern: name is required")
	}
	p := &PHIPattern{
		name:     def.Name,
		kind:     def.Kind,
		expr:     def.Expr,
		priority: def.Priority,
		strategy: def.Strategy,
	}
	switch def.Kind {
	case MatchRegex:
		re, err := regexp.Compile(def.Expr)
		if err != nil {
			return nil, fmt.Errorf("phi pattern %q: compile: %w", def.Name, err)
		}
		p.re = re
	case MatchExact, MatchFuzzy:
		if def.Expr == "" {
			return nil, fmt.Errorf("phi pattern %q: expression is required", def.Name)
		}
	case MatchContext:
		if len(def.ContextWords) == 0 {
			return nil, fmt.Errorf("phi pattern %q: context kind requires context words", def.Name)
		}
		p.words = make([]string, len(def.ContextWords))
		for i, w := range def.ContextWords {
			p.words[i] = strings.ToLower(w)
		}
	default:
		return nil, fmt.Errorf("phi pattern %q: unknown match kind %d", def.Name, def.Kind)
	}
	return p, nil
}

// mustPattern builds a default pattern and panics on error. Only for the
// compiled-in default set, where a failure is a programming mistake.
func mustPattern(def PatternDef) *PHIPattern {
	p, err := NewPattern(def)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *PHIPattern) Name() string           { return p.name }
func (p *PHIPattern) Kind() MatchKind        { return p.kind }
func (p *PHIPattern) Expr() string           { return p.expr }
func (p *PHIPattern) Priority() int          { return p.priority }
func (p *PHIPattern) Strategy() StrategyKind { return p.strategy }

// Matches reports whether the pattern fires for candidate. context carries
// the owning field name on keyed paths and is consulted only by CONTEXT
// patterns. An empty candidate never matches, and a CONTEXT pattern with
// no context never matches. It never panics and has no side effects.
func (p *PHIPattern) Matches(candidate, context string) bool {
	if candidate == "" {
		return false
	}
	switch p.kind {
	case MatchRegex:
		return p.re.MatchString(candidate)
	case MatchExact:
		return candidate == p.expr
	case MatchFuzzy:
		return strings.Contains(strings.ToLower(candidate), strings.ToLower(p.expr))
	case MatchContext:
		if context == "" {
			return false
		}
		lc := strings.ToLower(context)
		for _, w := range p.words {
			if strings.Contains(lc, w) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Apply replaces everything the pattern finds in text using strat and
// returns the result. Text without a match comes back unchanged. CONTEXT
// patterns replace the whole value when the context triggers.
func (p *PHIPattern) Apply(text, context string, strat Strategy) string {
	if text == "" {
		return text
	}
	switch p.kind {
	case MatchRegex:
		return p.re.ReplaceAllStringFunc(text, func(m string) string {
			return strat.Redact(m, p)
		})
	case MatchExact:
		if text == p.expr {
			return strat.Redact(text, p)
		}
		return text
	case MatchFuzzy:
		return replaceFold(text, p.expr, func(m string) string {
			return strat.Redact(m, p)
		})
	case MatchContext:
		if p.Matches(text, context) {
			return strat.Redact(text, p)
		}
		return text
	default:
		return text
	}
}

// replaceFold rewrites every case-insensitive occurrence of needle in s
// through repl, leaving the rest of s intact.
func replaceFold(s, needle string, repl func(string) string) string {
	if needle == "" {
		return s
	}
	lower := strings.ToLower(s)
	ln := strings.ToLower(needle)
	var b strings.Builder
	i := 0
	for i < len(s) {
		j := strings.Index(lower[i:], ln)
		if j < 0 {
			b.WriteString(s[i:])
			return b.String()
		}
		j += i
		end := j + len(ln)
		if end > len(s) {
			end = len(s)
		}
		b.WriteString(s[i:j])
		b.WriteString(repl(s[j:end]))
		i = end
	}
	return b.String()
}
