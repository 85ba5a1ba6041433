package phi

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// StrategyKind selects how matched PHI text is rewritten.
type StrategyKind int

const (
	// StrategyDefault defers to SanitizerConfig.Mode.
	StrategyDefault StrategyKind = iota
	StrategyFull
	StrategyPartial
	StrategyHash
	StrategyCustom
)

func (k StrategyKind) String() string {
	switch k {
	case StrategyFull:
		return "full"
	case StrategyPartial:
		return "partial"
	case StrategyHash:
		return "hash"
	case StrategyCustom:
		return "custom"
	default:
		return "default"
	}
}

// ParseStrategyKind maps a config/file token to a StrategyKind. The empty
// string means "no override" and parses to StrategyDefault.
func ParseStrategyKind(s string) (StrategyKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return StrategyDefault, nil
	case "full":
		return StrategyFull, nil
	case "partial":
		return StrategyPartial, nil
	case "hash":
		return StrategyHash, nil
	case "custom":
		return StrategyCustom, nil
	default:
		return 0, fmt.Errorf("unknown redaction strategy %q", s)
	}
}

// RedactFunc is a caller-supplied replacement for StrategyCustom.
type RedactFunc func(matched string, p *PHIPattern) string

// Strategy turns matched PHI text into a safe replacement. Implementations
// never panic and never return the raw input for non-empty matches.
type Strategy interface {
	Redact(matched string, p *PHIPattern) string
	Name() string
}

// FullStrategy replaces the match with the marker. With the default marker
// and a known pattern the replacement is annotated, e.g. "[REDACTED:SSN]",
// which aids debugging without exposing the value.
type FullStrategy struct {
	Marker string
}

func (st FullStrategy) Name() string { return "full" }

func (st FullStrategy) Redact(matched string, p *PHIPattern) string {
	marker := st.Marker
	if marker == "" {
		marker = DefaultMarker
	}
	if p != nil && marker == DefaultMarker {
		return "[REDACTED:" + p.Name() + "]"
	}
	return marker
}

// PartialStrategy keeps a short identifying tail so operators can still
// correlate records. Known identifier shapes get fixed formats other code
// depends on: "xxx-xx-6789" (SSN), "xxx-xxx-7890" (phone),
// "xxxx@example.com" (email), "[ID ending in 3456]" (record IDs).
type PartialStrategy struct {
	Visible  int
	Marker   string
	MaskChar string
}

func (st PartialStrategy) Name() string { return "partial" }

func (st PartialStrategy) Redact(matched string, p *PHIPattern) string {
	marker := st.Marker
	if marker == "" {
		marker = DefaultMarker
	}
	if matched == "" {
		return marker
	}
	visible := st.Visible
	if visible < 0 {
		visible = 0
	}
	runes := []rune(matched)
	if len(runes) <= visible {
		return marker
	}
	switch classifyPattern(p) {
	case classSSN:
		if d := digitsOf(matched); len(d) >= 4 {
			return "xxx-xx-" + d[len(d)-4:]
		}
	case classPhone:
		if d := digitsOf(matched); len(d) >= 4 {
			return "xxx-xxx-" + d[len(d)-4:]
		}
	case classEmail:
		if at := strings.IndexByte(matched, '@'); at >= 0 && at < len(matched)-1 {
			return "xxxx@" + matched[at+1:]
		}
	case classID:
		if tail := idTail(matched, visible); tail != "" {
			return "[ID ending in " + tail + "]"
		}
	}
	mask := st.MaskChar
	if mask == "" {
		mask = DefaultMaskChar
	}
	return strings.Repeat(mask, len(runes)-visible) + string(runes[len(runes)-visible:])
}

type patternClass int

const (
	classNone patternClass = iota
	classSSN
	classPhone
	classEmail
	classID
)

func classifyPattern(p *PHIPattern) patternClass {
	if p == nil {
		return classNone
	}
	name := strings.ToLower(p.Name())
	switch {
	case strings.Contains(name, "ssn") || strings.Contains(name, "social"):
		return classSSN
	case strings.Contains(name, "phone") || strings.Contains(name, "fax"):
		return classPhone
	case strings.Contains(name, "email") || strings.Contains(name, "mail"):
		return classEmail
	case strings.Contains(name, "mrn") || strings.Contains(name, "record") ||
		strings.Contains(name, "patient") || strings.HasSuffix(name, "id"):
		return classID
	default:
		return classNone
	}
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// idTail prefers the trailing digit run of an identifier; a non-numeric
// identifier falls back to its last n runes.
func idTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	end := len(s)
	start := end
	for start > 0 && s[start-1] >= '0' && s[start-1] <= '9' {
		start--
	}
	if run := s[start:end]; run != "" {
		if len(run) > n {
			run = run[len(run)-n:]
		}
		return run
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

// HashStrategy replaces the match with a salted, truncated SHA-256 digest.
// The same value and salt always produce the same token, so de-identified
// values can still be correlated across log lines.
type HashStrategy struct {
	Salt   string
	Length int
}

func (st HashStrategy) Name() string { return "hash" }

func (st HashStrategy) Redact(matched string, _ *PHIPattern) string {
	n := st.Length
	if n <= 0 {
		n = DefaultHashLength
	}
	if matched == "" {
		return strings.Repeat("0", n)
	}
	sum := sha256.Sum256([]byte(matched + st.Salt))
	digest := hex.EncodeToString(sum[:])
	if len(digest) > n {
		digest = digest[:n]
	}
	return "[HASH:" + digest + "]"
}

// CustomStrategy delegates to a caller-supplied function. A panicking or
// missing function degrades to the marker rather than leaking the match.
type CustomStrategy struct {
	Fn     RedactFunc
	Marker string
}

func (st CustomStrategy) Name() string { return "custom" }

func (st CustomStrategy) Redact(matched string, p *PHIPattern) (out string) {
	marker := st.Marker
	if marker == "" {
		marker = DefaultMarker
	}
	if st.Fn == nil {
		return marker
	}
	defer func() {
		if r := recover(); r != nil {
			out = marker
		}
	}()
	return st.Fn(matched, p)
}

// StrategyFor builds the strategy for kind from cfg. StrategyDefault
// resolves through cfg.Mode; anything unrecognized falls back to full
// redaction so a misconfiguration over-redacts instead of leaking.
func StrategyFor(kind StrategyKind, cfg *SanitizerConfig) Strategy {
	if kind == StrategyDefault {
		kind = cfg.Mode
	}
	switch kind {
	case StrategyPartial:
		return PartialStrategy{Visible: cfg.VisibleLength, Marker: cfg.Marker, MaskChar: cfg.MaskChar}
	case StrategyHash:
		return HashStrategy{Salt: cfg.HashSalt, Length: cfg.HashLength}
	case StrategyCustom:
		if cfg.CustomRedactor != nil {
			return CustomStrategy{Fn: cfg.CustomRedactor, Marker: cfg.Marker}
		}
		return FullStrategy{Marker: cfg.Marker}
	default:
		return FullStrategy{Marker: cfg.Marker}
	}
}
