package config

import (
	"testing"

	"github.com/mindtwin/mindtwin/internal/phi"
)

func baseConfig() *Config {
	return &Config{
		Port:               "8000",
		Env:                "development",
		BodyLimit:          "1M",
		PHIEnabled:         true,
		PHIRedactionMode:   "full",
		PHIRedactionMarker: phi.DefaultMarker,
		PHIPartialVisible:  4,
		PHIHashLength:      12,
		PHIMaxPayloadBytes: 65536,
		PHIScanNested:      true,
	}
}

func TestValidate_Defaults(t *testing.T) {
	cfg := baseConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_ProductionRequiresPHIProtection(t *testing.T) {
	cfg := baseConfig()
	cfg.Env = "production"
	cfg.JWTSigningKey = "secret"
	cfg.PHIEnabled = false

	if err := cfg.Validate(); err == nil {
		t.Error("expected error when PHI protection is disabled in production")
	}
}

func TestValidate_ProductionRequiresSigningKey(t *testing.T) {
	cfg := baseConfig()
	cfg.Env = "production"

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing JWT_SIGNING_KEY in production")
	}
}

func TestValidate_HashModeRequiresSalt(t *testing.T) {
	cfg := baseConfig()
	cfg.PHIRedactionMode = "hash"

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for hash mode without salt")
	}

	cfg.PHIHashSalt = "pepper"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate with salt: %v", err)
	}
}

func TestValidate_UnknownRedactionMode(t *testing.T) {
	cfg := baseConfig()
	cfg.PHIRedactionMode = "shred"

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown redaction mode")
	}
}

func TestValidate_BadPayloadBytes(t *testing.T) {
	cfg := baseConfig()
	cfg.PHIMaxPayloadBytes = 0

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-positive PHI_MAX_PAYLOAD_BYTES")
	}
}

func TestSanitizerConfig_MapsFields(t *testing.T) {
	cfg := baseConfig()
	cfg.PHIRedactionMode = "partial"
	cfg.PHIPartialVisible = 2
	cfg.PHISensitiveKeys = "genome_id, pharmacy_code"

	sc, err := cfg.SanitizerConfig()
	if err != nil {
		t.Fatalf("SanitizerConfig: %v", err)
	}
	if sc.Mode != phi.StrategyPartial {
		t.Errorf("Mode = %v, want partial", sc.Mode)
	}
	if sc.VisibleLength != 2 {
		t.Errorf("VisibleLength = %d, want 2", sc.VisibleLength)
	}
	if _, ok := sc.SensitiveKeys["genome_id"]; !ok {
		t.Error("custom sensitive key genome_id not registered")
	}
	if _, ok := sc.SensitiveKeys["pharmacy_code"]; !ok {
		t.Error("custom sensitive key pharmacy_code not registered")
	}
	// Defaults stay present after augmenting.
	if _, ok := sc.SensitiveKeys["ssn"]; !ok {
		t.Error("default sensitive key ssn missing")
	}
}

func TestExemptPaths_SplitsAndTrims(t *testing.T) {
	cfg := baseConfig()
	cfg.PHIExemptPaths = "/health, /metrics ,,/docs"

	got := cfg.ExemptPaths()
	want := []string{"/health", "/metrics", "/docs"}
	if len(got) != len(want) {
		t.Fatalf("ExemptPaths = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ExemptPaths[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
