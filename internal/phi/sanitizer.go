package phi

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Hook is a pre-processing transform applied to every string value before
// pattern matching. Hook output feeds the patterns, so hooks and patterns
// compose. A hook that panics is skipped for that value.
type Hook func(text string, cfg *SanitizerConfig) string

// Observer receives redaction events so callers can export statistics.
// Implementations must be safe for concurrent use.
type Observer interface {
	PatternMatched(pattern, strategy string)
	ValueRedacted(kind string)
}

// Sanitizer walks arbitrary data and redacts PHI according to its config
// and pattern repository. A sanitize call never mutates its input and
// never panics; a fault inside redaction degrades to over-redaction for
// strings and pass-through for everything else.
//
// The sanitizer is safe for concurrent use once constructed. AddHook and
// SetObserver are wiring-time calls and must not race with live traffic.
type Sanitizer struct {
	cfg        *SanitizerConfig
	repo       *Repository
	hooks      []Hook
	keys       map[string]struct{}
	strategies map[StrategyKind]Strategy
	obs        Observer
}

// New builds a Sanitizer from cfg and repo. A nil cfg means DefaultConfig,
// a nil repo means the default pattern set. Configuration problems,
// including a hash strategy anywhere without a salt, fail here rather
// than during a sanitize call.
func New(cfg *SanitizerConfig, repo *Repository, hooks ...Hook) (*Sanitizer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.clone().withDefaults()
	if repo == nil {
		repo = NewRepository()
	}
	if cfg.HashSalt == "" {
		for _, p := range repo.Patterns() {
			if p.Strategy() == StrategyHash {
				return nil, fmt.Errorf("phi: pattern %q wants hash redaction but no salt is configured", p.Name())
			}
		}
	}
	s := &Sanitizer{
		cfg:   cfg,
		repo:  repo,
		hooks: append([]Hook(nil), hooks...),
		keys:  make(map[string]struct{}, len(cfg.SensitiveKeys)),
	}
	for k := range cfg.SensitiveKeys {
		if !cfg.CaseSensitiveKeys {
			k = strings.ToLower(k)
		}
		s.keys[k] = struct{}{}
	}
	s.strategies = map[StrategyKind]Strategy{
		StrategyDefault: StrategyFor(StrategyDefault, cfg),
		StrategyFull:    StrategyFor(StrategyFull, cfg),
		StrategyPartial: StrategyFor(StrategyPartial, cfg),
		StrategyHash:    StrategyFor(StrategyHash, cfg),
		StrategyCustom:  StrategyFor(StrategyCustom, cfg),
	}
	return s, nil
}

// AddHook registers a pre-processing hook. Call during wiring only.
func (s *Sanitizer) AddHook(h Hook) {
	if h != nil {
		s.hooks = append(s.hooks, h)
	}
}

// SetObserver attaches a statistics sink. Call during wiring only.
func (s *Sanitizer) SetObserver(o Observer) { s.obs = o }

// Repository exposes the pattern set, mainly for diagnostics and CLIs.
func (s *Sanitizer) Repository() *Repository { return s.repo }

// Enabled reports whether sanitization is active.
func (s *Sanitizer) Enabled() bool { return s.cfg.Enabled }

// Sanitize returns a redacted copy of v. Strings, maps and slices are
// rebuilt; any other type passes through unchanged. Disabled sanitizers
// return v as-is.
func (s *Sanitizer) Sanitize(v any) (out any) {
	if !s.cfg.Enabled || v == nil {
		return v
	}
	defer func() {
		if r := recover(); r != nil {
			// Over-redact strings, pass everything else through.
			if _, ok := v.(string); ok {
				out = s.cfg.Marker
			} else {
				out = v
			}
		}
	}()
	switch t := v.(type) {
	case string:
		return s.sanitizeText(t, "")
	case map[string]any:
		return s.SanitizeMap(t)
	case []any:
		return s.SanitizeSlice(t)
	default:
		return v
	}
}

// SanitizeString runs the string pipeline: safe-message allow-list,
// payload truncation, hooks, then patterns in priority order. Matches are
// redacted cumulatively, so one string can be touched by several patterns.
func (s *Sanitizer) SanitizeString(text string) string {
	if !s.cfg.Enabled {
		return text
	}
	return s.sanitizeText(text, "")
}

// SanitizeMap returns a redacted copy of m. Values under sensitive keys
// are replaced with the marker outright; other values recurse per type.
func (s *Sanitizer) SanitizeMap(m map[string]any) map[string]any {
	if !s.cfg.Enabled || m == nil {
		return m
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = s.sanitizeField(k, v)
	}
	return out
}

// SanitizeSlice returns a redacted copy of xs, preserving order and length.
func (s *Sanitizer) SanitizeSlice(xs []any) []any {
	if !s.cfg.Enabled || xs == nil {
		return xs
	}
	out := make([]any, len(xs))
	for i, v := range xs {
		out[i] = s.Sanitize(v)
	}
	return out
}

// ContainsPHI reports whether text trips any detection pattern. It never
// redacts. CONTEXT patterns need a field name and cannot fire here.
func (s *Sanitizer) ContainsPHI(text string) bool {
	if !s.cfg.Enabled || text == "" {
		return false
	}
	text = s.truncate(text)
	for _, p := range s.repo.Patterns() {
		if p.Kind() == MatchContext {
			continue
		}
		if p.Matches(text, "") {
			return true
		}
	}
	return false
}

// IsSensitiveKey reports whether key is redacted by identity alone.
func (s *Sanitizer) IsSensitiveKey(key string) bool {
	if !s.cfg.CaseSensitiveKeys {
		key = strings.ToLower(key)
	}
	_, ok := s.keys[key]
	return ok
}

// sanitizeField routes one map entry. The sensitive-key override wins
// before any content inspection and regardless of the value's type.
func (s *Sanitizer) sanitizeField(key string, v any) any {
	if s.IsSensitiveKey(key) {
		s.observeValue("field")
		return s.cfg.Marker
	}
	switch t := v.(type) {
	case string:
		return s.sanitizeText(t, key)
	case map[string]any:
		if !s.cfg.ScanNested {
			return t
		}
		return s.SanitizeMap(t)
	case []any:
		if !s.cfg.ScanNested {
			return t
		}
		return s.SanitizeSlice(t)
	default:
		return v
	}
}

// sanitizeText is the shared string path. context carries the owning
// field name on keyed paths so CONTEXT patterns can fire.
func (s *Sanitizer) sanitizeText(text, context string) string {
	if text == "" {
		return text
	}
	if s.isSafeMessage(text) {
		return text
	}
	text = s.truncate(text)
	for _, h := range s.hooks {
		text = s.runHook(h, text)
	}
	for _, p := range s.repo.Patterns() {
		if p.Kind() == MatchContext && context == "" {
			continue
		}
		strat := s.strategyOf(p)
		if next := p.Apply(text, context, strat); next != text {
			s.observePattern(p, strat)
			text = next
		}
	}
	return text
}

func (s *Sanitizer) strategyOf(p *PHIPattern) Strategy {
	if st, ok := s.strategies[p.Strategy()]; ok {
		return st
	}
	return s.strategies[StrategyFull]
}

func (s *Sanitizer) runHook(h Hook, text string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = text
		}
	}()
	return h(text, s.cfg)
}

func (s *Sanitizer) isSafeMessage(text string) bool {
	for _, prefix := range s.cfg.SafeMessages {
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return false
}

// truncate caps the bytes fed to the regex engine. Pattern cost grows
// with input size, so oversized payloads are cut before matching.
func (s *Sanitizer) truncate(text string) string {
	max := s.cfg.MaxPayloadBytes
	if max <= 0 || len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + s.cfg.TruncationNote
}

func (s *Sanitizer) observePattern(p *PHIPattern, strat Strategy) {
	if s.obs != nil {
		s.obs.PatternMatched(p.Name(), strat.Name())
	}
}

func (s *Sanitizer) observeValue(kind string) {
	if s.obs != nil {
		s.obs.ValueRedacted(kind)
	}
}
