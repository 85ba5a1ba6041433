package phi

import (
	"fmt"
	"strings"
	"testing"
)

func TestFullStrategy_AnnotatesWithPatternName(t *testing.T) {
	ssn := mustPattern(PatternDef{Name: "SSN", Kind: MatchRegex, Expr: `\d+`})
	st := FullStrategy{Marker: DefaultMarker}

	if got := st.Redact("123-45-6789", ssn); got != "[REDACTED:SSN]" {
		t.Errorf("with pattern = %q, want [REDACTED:SSN]", got)
	}
	if got := st.Redact("123-45-6789", nil); got != "[REDACTED]" {
		t.Errorf("without pattern = %q, want [REDACTED]", got)
	}
}

func TestFullStrategy_CustomMarkerSuppressesAnnotation(t *testing.T) {
	ssn := mustPattern(PatternDef{Name: "SSN", Kind: MatchRegex, Expr: `\d+`})
	st := FullStrategy{Marker: "<GONE>"}

	if got := st.Redact("123-45-6789", ssn); got != "<GONE>" {
		t.Errorf("custom marker = %q, want <GONE>", got)
	}
}

func TestPartialStrategy_KnownIdentifierFormats(t *testing.T) {
	st := PartialStrategy{Visible: 4, Marker: DefaultMarker, MaskChar: "*"}
	ssn := mustPattern(PatternDef{Name: "SSN", Kind: MatchRegex, Expr: `\d`})
	phone := mustPattern(PatternDef{Name: "Phone", Kind: MatchRegex, Expr: `\d`})
	email := mustPattern(PatternDef{Name: "Email", Kind: MatchRegex, Expr: `@`})
	mrn := mustPattern(PatternDef{Name: "MRN", Kind: MatchRegex, Expr: `\d`})

	tests := []struct {
		p       *PHIPattern
		matched string
		want    string
	}{
		{ssn, "123-45-6789", "xxx-xx-6789"},
		{phone, "(123) 456-7890", "xxx-xxx-7890"},
		{phone, "123.456.7890", "xxx-xxx-7890"},
		{email, "patient@example.com", "xxxx@example.com"},
		{mrn, "PT123456", "[ID ending in 3456]"},
		{mrn, "MRN-00042", "[ID ending in 0042]"},
	}

	for _, tt := range tests {
		if got := st.Redact(tt.matched, tt.p); got != tt.want {
			t.Errorf("Redact(%q, %s) = %q, want %q", tt.matched, tt.p.Name(), got, tt.want)
		}
	}
}

func TestPartialStrategy_DefaultMaskPreservesLength(t *testing.T) {
	st := PartialStrategy{Visible: 4, Marker: DefaultMarker, MaskChar: "*"}

	got := st.Redact("ABCDEFGH", nil)
	if got != "****EFGH" {
		t.Errorf("Redact = %q, want ****EFGH", got)
	}
	if len(got) != len("ABCDEFGH") {
		t.Errorf("mask should preserve length, got %d", len(got))
	}
}

func TestPartialStrategy_ShortInputReturnsMarker(t *testing.T) {
	st := PartialStrategy{Visible: 4, Marker: DefaultMarker, MaskChar: "*"}

	if got := st.Redact("abc", nil); got != "[REDACTED]" {
		t.Errorf("short input = %q, want [REDACTED]", got)
	}
	if got := st.Redact("", nil); got != "[REDACTED]" {
		t.Errorf("empty input = %q, want [REDACTED]", got)
	}
}

func TestHashStrategy_Deterministic(t *testing.T) {
	st := HashStrategy{Salt: "fixed-salt", Length: 12}

	a := st.Redact("123-45-6789", nil)
	b := st.Redact("123-45-6789", nil)
	if a != b {
		t.Errorf("same input produced different tokens: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "[HASH:") || !strings.HasSuffix(a, "]") {
		t.Errorf("unexpected token shape %q", a)
	}
	if strings.Contains(a, "123-45-6789") {
		t.Errorf("token leaks input: %q", a)
	}
}

func TestHashStrategy_DistinctInputsDistinctTokens(t *testing.T) {
	st := HashStrategy{Salt: "fixed-salt", Length: 12}

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		tok := st.Redact(fmt.Sprintf("patient-%d", i), nil)
		if _, dup := seen[tok]; dup {
			t.Fatalf("collision at input %d: %q", i, tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestHashStrategy_SaltChangesToken(t *testing.T) {
	a := HashStrategy{Salt: "salt-a", Length: 12}.Redact("PT123456", nil)
	b := HashStrategy{Salt: "salt-b", Length: 12}.Redact("PT123456", nil)
	if a == b {
		t.Errorf("different salts produced the same token %q", a)
	}
}

func TestHashStrategy_EmptyInputIsFixedWidthZeroes(t *testing.T) {
	st := HashStrategy{Salt: "fixed-salt", Length: 12}

	if got := st.Redact("", nil); got != "000000000000" {
		t.Errorf("empty input = %q, want 000000000000", got)
	}
}

func TestCustomStrategy_PanicFallsBackToMarker(t *testing.T) {
	st := CustomStrategy{
		Fn:     func(string, *PHIPattern) string { panic("hook exploded") },
		Marker: DefaultMarker,
	}

	if got := st.Redact("raw value", nil); got != "[REDACTED]" {
		t.Errorf("panicking redactor = %q, want [REDACTED]", got)
	}
}

func TestCustomStrategy_NilFuncReturnsMarker(t *testing.T) {
	st := CustomStrategy{Marker: DefaultMarker}

	if got := st.Redact("raw value", nil); got != "[REDACTED]" {
		t.Errorf("nil redactor = %q, want [REDACTED]", got)
	}
}

func TestStrategyFor_ResolvesKindsAndFallsBackToFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HashSalt = "pepper"

	tests := []struct {
		kind StrategyKind
		want string
	}{
		{StrategyFull, "full"},
		{StrategyPartial, "partial"},
		{StrategyHash, "hash"},
		{StrategyDefault, "full"},
		{StrategyCustom, "full"},
		{StrategyKind(99), "full"},
	}

	for _, tt := range tests {
		if got := StrategyFor(tt.kind, cfg).Name(); got != tt.want {
			t.Errorf("StrategyFor(%v) = %s, want %s", tt.kind, got, tt.want)
		}
	}
}

func TestStrategyFor_CustomUsesConfiguredRedactor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CustomRedactor = func(matched string, _ *PHIPattern) string {
		return "len=" + fmt.Sprint(len(matched))
	}

	st := StrategyFor(StrategyCustom, cfg)
	if st.Name() != "custom" {
		t.Fatalf("expected custom strategy, got %s", st.Name())
	}
	if got := st.Redact("abcd", nil); got != "len=4" {
		t.Errorf("custom redact = %q, want len=4", got)
	}
}
