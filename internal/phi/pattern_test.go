package phi

import (
	"testing"
)

func TestNewPattern_InvalidRegexFailsFast(t *testing.T) {
	_, err := NewPattern(PatternDef{Name: "Bad", Kind: MatchRegex, Expr: `[unclosed`})
	if err == nil {
		t.Fatal("expected error for invalid regex")
	}
}

func TestNewPattern_ContextRequiresWords(t *testing.T) {
	_, err := NewPattern(PatternDef{Name: "Ctx", Kind: MatchContext})
	if err == nil {
		t.Fatal("expected error for context pattern without context words")
	}
}

func TestNewPattern_RequiresName(t *testing.T) {
	_, err := NewPattern(PatternDef{Kind: MatchRegex, Expr: `\d+`})
	if err == nil {
		t.Fatal("expected error for pattern without a name")
	}
}

func TestNewPattern_ExactRequiresExpression(t *testing.T) {
	_, err := NewPattern(PatternDef{Name: "Empty", Kind: MatchExact})
	if err == nil {
		t.Fatal("expected error for exact pattern without an expression")
	}
}

func TestPHIPattern_Matches(t *testing.T) {
	ssn := mustPattern(PatternDef{Name: "SSN", Kind: MatchRegex, Expr: `\b\d{3}-\d{2}-\d{4}\b`})
	ward := mustPattern(PatternDef{Name: "Ward", Kind: MatchExact, Expr: "Ward 7 West"})
	clinic := mustPattern(PatternDef{Name: "Clinic", Kind: MatchFuzzy, Expr: "lakeside clinic"})
	note := mustPattern(PatternDef{Name: "Note", Kind: MatchContext, ContextWords: []string{"therapy_note"}})

	tests := []struct {
		p         *PHIPattern
		candidate string
		context   string
		want      bool
	}{
		{ssn, "ssn is 123-45-6789", "", true},
		{ssn, "no identifiers here", "", false},
		{ssn, "", "", false},
		{ward, "Ward 7 West", "", true},
		{ward, "ward 7 west", "", false},
		{ward, "admitted to Ward 7 West today", "", false},
		{clinic, "seen at LAKESIDE Clinic", "", true},
		{clinic, "seen at the hospital", "", false},
		{note, "freeform text", "therapy_note", true},
		{note, "freeform text", "patient_therapy_notes", true},
		{note, "freeform text", "vitals", false},
		{note, "freeform text", "", false},
		{note, "", "therapy_note", false},
	}

	for _, tt := range tests {
		got := tt.p.Matches(tt.candidate, tt.context)
		if got != tt.want {
			t.Errorf("%s.Matches(%q, %q) = %v, want %v", tt.p.Name(), tt.candidate, tt.context, got, tt.want)
		}
	}
}

func TestPHIPattern_ApplyFuzzyPreservesSurroundingText(t *testing.T) {
	clinic := mustPattern(PatternDef{Name: "Clinic", Kind: MatchFuzzy, Expr: "lakeside clinic"})
	strat := FullStrategy{Marker: DefaultMarker}

	got := clinic.Apply("Visited Lakeside Clinic and then Lakeside clinic again", "", strat)
	want := "Visited [REDACTED:Clinic] and then [REDACTED:Clinic] again"
	if got != want {
		t.Errorf("Apply = %q, want %q", got, want)
	}
}

func TestPHIPattern_ApplyExactReplacesWholeValueOnly(t *testing.T) {
	ward := mustPattern(PatternDef{Name: "Ward", Kind: MatchExact, Expr: "Ward 7 West"})
	strat := FullStrategy{Marker: DefaultMarker}

	if got := ward.Apply("Ward 7 West", "", strat); got != "[REDACTED:Ward]" {
		t.Errorf("whole-value apply = %q", got)
	}
	if got := ward.Apply("moved from Ward 7 West", "", strat); got != "moved from Ward 7 West" {
		t.Errorf("partial value should be untouched, got %q", got)
	}
}

func TestPHIPattern_ApplyContextRedactsKeyedValue(t *testing.T) {
	note := mustPattern(PatternDef{Name: "Note", Kind: MatchContext, ContextWords: []string{"session_note"}})
	strat := FullStrategy{Marker: DefaultMarker}

	if got := note.Apply("made good progress", "session_note", strat); got != "[REDACTED:Note]" {
		t.Errorf("keyed apply = %q", got)
	}
	if got := note.Apply("made good progress", "", strat); got != "made good progress" {
		t.Errorf("contextless apply should be untouched, got %q", got)
	}
}

func TestParseMatchKind(t *testing.T) {
	tests := []struct {
		in      string
		want    MatchKind
		wantErr bool
	}{
		{"regex", MatchRegex, false},
		{"EXACT", MatchExact, false},
		{" fuzzy ", MatchFuzzy, false},
		{"context", MatchContext, false},
		{"bogus", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseMatchKind(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseMatchKind(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMatchKind(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMatchKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMatchKind_String(t *testing.T) {
	if MatchRegex.String() != "regex" || MatchContext.String() != "context" {
		t.Errorf("unexpected MatchKind strings: %s %s", MatchRegex, MatchContext)
	}
}
