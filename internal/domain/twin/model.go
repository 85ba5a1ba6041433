package twin

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table. JSON field names line up with the
// sanitizer's default sensitive keys, so serialized patients are masked
// by the PHI middleware without extra configuration.
type Patient struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	MRN             string     `db:"mrn" json:"mrn"`
	GivenName       string     `db:"given_name" json:"given_name"`
	FamilyName      string     `db:"family_name" json:"family_name"`
	DateOfBirth     *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Email           *string    `db:"email" json:"email,omitempty"`
	Phone           *string    `db:"phone" json:"phone,omitempty"`
	ClinicalSummary *string    `db:"clinical_summary" json:"clinical_summary,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// TwinSnapshot maps to the twin_snapshot table: one generation of a
// patient's digital-twin state. The forecast itself is produced by the
// external model services; this service only stores and serves it.
type TwinSnapshot struct {
	ID              uuid.UUID          `db:"id" json:"id"`
	PatientID       uuid.UUID          `db:"patient_id" json:"patient_id"`
	RiskScore       float64            `db:"risk_score" json:"risk_score"`
	RiskLevel       string             `db:"risk_level" json:"risk_level"`
	SymptomForecast map[string]float64 `db:"symptom_forecast" json:"symptom_forecast,omitempty"`
	ModelVersion    *string            `db:"model_version" json:"model_version,omitempty"`
	GeneratedAt     time.Time          `db:"generated_at" json:"generated_at"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
}

// Valid risk levels for a snapshot, lowest to highest.
var validRiskLevels = map[string]bool{
	"low": true, "moderate": true, "high": true, "critical": true,
}

// RiskLevelForScore buckets a model risk score into a level.
func RiskLevelForScore(score float64) string {
	switch {
	case score >= 0.85:
		return "critical"
	case score >= 0.6:
		return "high"
	case score >= 0.3:
		return "moderate"
	default:
		return "low"
	}
}
