package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"

	"github.com/mindtwin/mindtwin/internal/phi"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`
	BodyLimit   string   `mapstructure:"BODY_LIMIT"`

	AuthIssuer    string `mapstructure:"AUTH_ISSUER"`
	AuthAudience  string `mapstructure:"AUTH_AUDIENCE"`
	JWTSigningKey string `mapstructure:"JWT_SIGNING_KEY"`

	PHIEnabled             bool   `mapstructure:"PHI_PROTECTION_ENABLED"`
	PHIRedactionMode       string `mapstructure:"PHI_REDACTION_MODE"`
	PHIRedactionMarker     string `mapstructure:"PHI_REDACTION_MARKER"`
	PHIPartialVisible      int    `mapstructure:"PHI_PARTIAL_VISIBLE_LENGTH"`
	PHIHashSalt            string `mapstructure:"PHI_HASH_SALT"`
	PHIHashLength          int    `mapstructure:"PHI_HASH_LENGTH"`
	PHIMaxPayloadBytes     int    `mapstructure:"PHI_MAX_PAYLOAD_BYTES"`
	PHIScanNested          bool   `mapstructure:"PHI_SCAN_NESTED"`
	PHIPatternFile         string `mapstructure:"PHI_PATTERN_FILE"`
	PHISensitiveKeys       string `mapstructure:"PHI_SENSITIVE_KEYS"`
	PHIBlockRequests       bool   `mapstructure:"PHI_BLOCK_REQUESTS"`
	PHIMaskResponses       bool   `mapstructure:"PHI_MASK_RESPONSES"`
	PHIRequireAccessReason bool   `mapstructure:"PHI_REQUIRE_ACCESS_REASON"`
	PHIExemptPaths         string `mapstructure:"PHI_EXEMPT_PATHS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("PHI_PROTECTION_ENABLED", true)
	v.SetDefault("PHI_REDACTION_MODE", "full")
	v.SetDefault("PHI_REDACTION_MARKER", phi.DefaultMarker)
	v.SetDefault("PHI_PARTIAL_VISIBLE_LENGTH", phi.DefaultVisibleLength)
	v.SetDefault("PHI_HASH_LENGTH", phi.DefaultHashLength)
	v.SetDefault("PHI_MAX_PAYLOAD_BYTES", phi.DefaultMaxPayload)
	v.SetDefault("PHI_SCAN_NESTED", true)
	v.SetDefault("PHI_BLOCK_REQUESTS", false)
	v.SetDefault("PHI_MASK_RESPONSES", true)
	v.SetDefault("PHI_REQUIRE_ACCESS_REASON", false)
	v.SetDefault("PHI_EXEMPT_PATHS", "/health,/metrics,/docs")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"CORS_ORIGINS", "BODY_LIMIT",
		"AUTH_ISSUER", "AUTH_AUDIENCE", "JWT_SIGNING_KEY",
		"PHI_PROTECTION_ENABLED", "PHI_REDACTION_MODE", "PHI_REDACTION_MARKER",
		"PHI_PARTIAL_VISIBLE_LENGTH", "PHI_HASH_SALT", "PHI_HASH_LENGTH",
		"PHI_MAX_PAYLOAD_BYTES", "PHI_SCAN_NESTED", "PHI_PATTERN_FILE",
		"PHI_SENSITIVE_KEYS", "PHI_BLOCK_REQUESTS", "PHI_MASK_RESPONSES",
		"PHI_REQUIRE_ACCESS_REASON", "PHI_EXEMPT_PATHS",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.IsDev() && !cfg.PHIEnabled {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: PHI protection is DISABLED (PHI_PROTECTION_ENABLED=false).")
		log.Println("WARNING: Logs and responses will carry raw identifiers.")
		log.Println("WARNING: This is only acceptable in development.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ExemptPaths returns the configured PHI-exempt path prefixes.
func (c *Config) ExemptPaths() []string {
	return splitList(c.PHIExemptPaths)
}

// Validate checks that the configuration is safe to run. Disabling PHI
// protection or skipping authentication is refused outright in
// production; hash redaction always needs a fixed salt.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if !c.PHIEnabled {
			return fmt.Errorf("PHI_PROTECTION_ENABLED must be true in production; " +
				"refusing to start with sanitization disabled")
		}
		if c.JWTSigningKey == "" {
			return fmt.Errorf("JWT_SIGNING_KEY is required in production")
		}
	}

	mode, err := phi.ParseStrategyKind(c.PHIRedactionMode)
	if err != nil {
		return fmt.Errorf("PHI_REDACTION_MODE: %w", err)
	}
	if mode == phi.StrategyHash && c.PHIHashSalt == "" {
		return fmt.Errorf("PHI_HASH_SALT is required when PHI_REDACTION_MODE is \"hash\"; " +
			"the salt must be fixed configuration so hashed tokens stay correlatable")
	}
	if c.PHIPartialVisible < 0 {
		return fmt.Errorf("PHI_PARTIAL_VISIBLE_LENGTH must be >= 0, got %d", c.PHIPartialVisible)
	}
	if c.PHIMaxPayloadBytes <= 0 {
		return fmt.Errorf("PHI_MAX_PAYLOAD_BYTES must be > 0, got %d", c.PHIMaxPayloadBytes)
	}

	return nil
}

// SanitizerConfig maps the environment settings onto a phi.SanitizerConfig.
// Validate must have passed first.
func (c *Config) SanitizerConfig() (*phi.SanitizerConfig, error) {
	mode, err := phi.ParseStrategyKind(c.PHIRedactionMode)
	if err != nil {
		return nil, fmt.Errorf("PHI_REDACTION_MODE: %w", err)
	}

	sc := phi.DefaultConfig()
	sc.Enabled = c.PHIEnabled
	sc.Mode = mode
	sc.Marker = c.PHIRedactionMarker
	sc.VisibleLength = c.PHIPartialVisible
	sc.HashSalt = c.PHIHashSalt
	sc.HashLength = c.PHIHashLength
	sc.MaxPayloadBytes = c.PHIMaxPayloadBytes
	sc.ScanNested = c.PHIScanNested
	sc.AddSensitiveKeys(splitList(c.PHISensitiveKeys)...)

	return sc, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
