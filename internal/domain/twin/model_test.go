package twin

import "testing"

func TestRiskLevelForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.0, "low"},
		{0.29, "low"},
		{0.3, "moderate"},
		{0.59, "moderate"},
		{0.6, "high"},
		{0.84, "high"},
		{0.85, "critical"},
		{1.0, "critical"},
	}

	for _, tt := range tests {
		if got := RiskLevelForScore(tt.score); got != tt.want {
			t.Errorf("RiskLevelForScore(%g) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
