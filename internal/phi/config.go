package phi

import (
	"fmt"
	"strings"
)

const (
	DefaultMarker         = "[REDACTED]"
	DefaultMaskChar       = "*"
	DefaultVisibleLength  = 4
	DefaultHashLength     = 12
	DefaultMaxPayload     = 64 * 1024
	DefaultTruncationNote = " ...[TRUNCATED]"
)

// SanitizerConfig holds the declarative knobs for a Sanitizer. Build one
// with DefaultConfig and adjust before constructing the sanitizer; the
// sanitizer snapshots it, so later edits do not affect a live instance.
type SanitizerConfig struct {
	// Enabled turns the whole subsystem off when false: Sanitize becomes
	// the identity function. Only acceptable outside production.
	Enabled bool

	// Mode is the redaction strategy for patterns that do not carry
	// their own override.
	Mode StrategyKind

	// Marker replaces fully redacted values. Defaults to "[REDACTED]".
	Marker string

	// VisibleLength is how many trailing characters partial redaction
	// may reveal. Must be >= 0.
	VisibleLength int

	// MaskChar pads the hidden part of a generic partial redaction.
	MaskChar string

	// HashSalt feeds hash redaction. Required when Mode is StrategyHash
	// or any registered pattern asks for it; must stay fixed for the
	// process lifetime so tokens remain correlatable.
	HashSalt string

	// HashLength truncates the hex digest.
	HashLength int

	// SensitiveKeys are field names whose values are replaced with the
	// marker unconditionally, regardless of content. Lookup is exact on
	// the key name (case per CaseSensitiveKeys), never substring, so
	// "username" is not caught by "name".
	SensitiveKeys map[string]struct{}

	// ScanNested controls recursion into nested maps and slices.
	ScanNested bool

	// CaseSensitiveKeys makes the sensitive-key lookup case-sensitive.
	CaseSensitiveKeys bool

	// MaxPayloadBytes truncates strings before pattern matching to cap
	// regex cost on pathological inputs. Zero disables truncation.
	MaxPayloadBytes int

	// TruncationNote is appended to truncated strings.
	TruncationNote string

	// SafeMessages is a prefix allow-list of fixed system messages that
	// are never altered.
	SafeMessages []string

	// CustomRedactor backs StrategyCustom.
	CustomRedactor RedactFunc
}

// DefaultSensitiveKeys lists the field names redacted by identity alone.
// Deliberately limited to identifiers: clinical content fields such as
// "diagnosis" stay visible unless a pattern matches their value.
func DefaultSensitiveKeys() []string {
	return []string{
		"ssn",
		"social_security",
		"social_security_number",
		"patient_id",
		"patient_name",
		"name",
		"full_name",
		"first_name",
		"last_name",
		"dob",
		"date_of_birth",
		"birth_date",
		"mrn",
		"medical_record_number",
		"email",
		"email_address",
		"phone",
		"phone_number",
		"address",
		"street_address",
		"insurance_id",
		"policy_number",
		"password",
		"token",
	}
}

// DefaultSafeMessages lists message prefixes that are always passed
// through untouched.
func DefaultSafeMessages() []string {
	return []string{
		"SERVER_STARTUP:",
		"SERVER_SHUTDOWN:",
		"HEALTH_CHECK:",
		"MIGRATION:",
	}
}

func DefaultConfig() *SanitizerConfig {
	cfg := &SanitizerConfig{
		Enabled:         true,
		Mode:            StrategyFull,
		Marker:          DefaultMarker,
		MaskChar:        DefaultMaskChar,
		VisibleLength:   DefaultVisibleLength,
		HashLength:      DefaultHashLength,
		SensitiveKeys:   make(map[string]struct{}),
		ScanNested:      true,
		MaxPayloadBytes: DefaultMaxPayload,
		TruncationNote:  DefaultTruncationNote,
		SafeMessages:    DefaultSafeMessages(),
	}
	cfg.AddSensitiveKeys(DefaultSensitiveKeys()...)
	return cfg
}

// AddSensitiveKeys registers additional field names for unconditional
// value redaction.
func (c *SanitizerConfig) AddSensitiveKeys(keys ...string) {
	if c.SensitiveKeys == nil {
		c.SensitiveKeys = make(map[string]struct{}, len(keys))
	}
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		c.SensitiveKeys[k] = struct{}{}
	}
}

// Validate reports configuration that must stop startup. Runtime inputs
// never reach here; these are programmer or deployment mistakes.
func (c *SanitizerConfig) Validate() error {
	if c.VisibleLength < 0 {
		return fmt.Errorf("phi config: visible length must be >= 0, got %d", c.VisibleLength)
	}
	if c.MaxPayloadBytes < 0 {
		return fmt.Errorf("phi config: max payload bytes must be >= 0, got %d", c.MaxPayloadBytes)
	}
	if c.HashLength < 0 {
		return fmt.Errorf("phi config: hash length must be >= 0, got %d", c.HashLength)
	}
	if c.Mode == StrategyHash && c.HashSalt == "" {
		return fmt.Errorf("phi config: hash redaction mode requires a salt")
	}
	return nil
}

// clone deep-copies the config so the sanitizer owns an immutable snapshot.
func (c *SanitizerConfig) clone() *SanitizerConfig {
	out := *c
	out.SensitiveKeys = make(map[string]struct{}, len(c.SensitiveKeys))
	for k := range c.SensitiveKeys {
		out.SensitiveKeys[k] = struct{}{}
	}
	out.SafeMessages = append([]string(nil), c.SafeMessages...)
	return &out
}

// withDefaults fills zero-value presentation fields so a hand-built
// config literal behaves like DefaultConfig for anything it left unset.
func (c *SanitizerConfig) withDefaults() *SanitizerConfig {
	if c.Marker == "" {
		c.Marker = DefaultMarker
	}
	if c.MaskChar == "" {
		c.MaskChar = DefaultMaskChar
	}
	if c.HashLength == 0 {
		c.HashLength = DefaultHashLength
	}
	if c.TruncationNote == "" {
		c.TruncationNote = DefaultTruncationNote
	}
	return c
}
