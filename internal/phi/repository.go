package phi

import "sort"

// Repository is a priority-ordered collection of patterns. Registration
// is a startup-time operation: Add is not safe to call concurrently with
// live sanitize traffic, which keeps the read path lock-free.
type Repository struct {
	patterns []*PHIPattern
}

// NewRepository returns a repository seeded with the default pattern set.
// Defaults are only ever augmented, never removed.
func NewRepository() *Repository {
	r := &Repository{}
	for _, p := range defaultPatterns() {
		r.Add(p)
	}
	return r
}

// NewEmptyRepository returns a repository with no patterns, for callers
// assembling a fully custom set.
func NewEmptyRepository() *Repository {
	return &Repository{}
}

// Add registers a pattern and re-sorts by descending priority. The sort is
// stable, so equal priorities keep insertion order.
func (r *Repository) Add(p *PHIPattern) {
	if p == nil {
		return
	}
	r.patterns = append(r.patterns, p)
	sort.SliceStable(r.patterns, func(i, j int) bool {
		return r.patterns[i].priority > r.patterns[j].priority
	})
}

// Patterns returns the patterns in priority order. The slice is the
// repository's own; callers must not mutate it.
func (r *Repository) Patterns() []*PHIPattern {
	return r.patterns
}

func (r *Repository) Len() int { return len(r.patterns) }

// defaultPatterns is the compiled-in rule set. Partial strategies keep an
// identifying tail for correlation; names, dates and addresses are fully
// masked. Expressions are written so their own redacted output cannot
// re-match (keeps sanitize idempotent).
func defaultPatterns() []*PHIPattern {
	return []*PHIPattern{
		mustPattern(PatternDef{
			Name:     "SSN",
			Kind:     MatchRegex,
			Expr:     `\b\d{3}-\d{2}-\d{4}\b`,
			Priority: 100,
			Strategy: StrategyPartial,
		}),
		mustPattern(PatternDef{
			Name:     "Email",
			Kind:     MatchRegex,
			Expr:     `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
			Priority: 90,
			Strategy: StrategyPartial,
		}),
		mustPattern(PatternDef{
			Name: "Phone",
			Kind: MatchRegex,
			// At least one separator is required in the bare form so
			// epoch timestamps and hash digests do not read as phones.
			Expr:     `(?:\+?1[\s.-]?)?(?:\(\d{3}\)\s?\d{3}[\s.-]?\d{4}\b|\b\d{3}[\s.-]\d{3}[\s.-]?\d{4}\b)`,
			Priority: 85,
			Strategy: StrategyPartial,
		}),
		mustPattern(PatternDef{
			Name:     "DOB",
			Kind:     MatchRegex,
			Expr:     `\b(?:\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}-\d{2}-\d{2})\b`,
			Priority: 80,
			Strategy: StrategyFull,
		}),
		mustPattern(PatternDef{
			Name:     "MRN",
			Kind:     MatchRegex,
			Expr:     `(?i)\b(?:MRN|PT|PAT|MR)[-:#\s]?\d{5,10}\b`,
			Priority: 75,
			Strategy: StrategyPartial,
		}),
		mustPattern(PatternDef{
			Name: "Address",
			Kind: MatchRegex,
			Expr: `(?i)\b\d{1,6}\s+(?:[A-Za-z0-9'.-]+\s+){0,4}` +
				`(?:Street|St|Avenue|Ave|Boulevard|Blvd|Drive|Dr|Lane|Ln|Road|Rd|Court|Ct|Place|Pl|Trail|Trl|Parkway|Pkwy|Way)\b`,
			Priority: 70,
			Strategy: StrategyFull,
		}),
		mustPattern(PatternDef{
			Name: "Name",
			Kind: MatchRegex,
			// Heuristic: a title or a labelled field cue followed by
			// capitalized words. Bare capitalized pairs are left alone.
			Expr: `(?:\b(?:Mr|Mrs|Ms|Dr|Prof)\.?\s+|(?i:\b(?:patient|client|name)\s*[:=]\s*))` +
				`[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*`,
			Priority: 60,
			Strategy: StrategyFull,
		}),
		mustPattern(PatternDef{
			Name:     "ClinicalNote",
			Kind:     MatchContext,
			Priority: 55,
			ContextWords: []string{
				"therapy_note", "session_note", "clinical_note",
				"progress_note", "note_text",
			},
			Strategy: StrategyFull,
		}),
	}
}
