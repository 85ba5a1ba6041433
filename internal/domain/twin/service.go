package twin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	patients  PatientRepository
	snapshots SnapshotRepository
}

func NewService(patients PatientRepository, snapshots SnapshotRepository) *Service {
	return &Service{patients: patients, snapshots: snapshots}
}

// -- Patient --

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if p.MRN == "" {
		return fmt.Errorf("mrn is required")
	}
	if p.FamilyName == "" {
		return fmt.Errorf("family_name is required")
	}
	if existing, err := s.patients.GetByMRN(ctx, p.MRN); err == nil && existing != nil {
		return fmt.Errorf("mrn already registered")
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("id is required")
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

// -- Twin snapshots --

func (s *Service) RecordSnapshot(ctx context.Context, snap *TwinSnapshot) error {
	if snap.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if snap.RiskScore < 0 || snap.RiskScore > 1 {
		return fmt.Errorf("risk_score must be in [0, 1], got %g", snap.RiskScore)
	}
	if _, err := s.patients.GetByID(ctx, snap.PatientID); err != nil {
		return fmt.Errorf("patient %s: %w", snap.PatientID, err)
	}
	if snap.RiskLevel == "" {
		snap.RiskLevel = RiskLevelForScore(snap.RiskScore)
	}
	if !validRiskLevels[snap.RiskLevel] {
		return fmt.Errorf("invalid risk_level: %s", snap.RiskLevel)
	}
	if snap.GeneratedAt.IsZero() {
		snap.GeneratedAt = time.Now().UTC()
	}
	return s.snapshots.Create(ctx, snap)
}

func (s *Service) LatestSnapshot(ctx context.Context, patientID uuid.UUID) (*TwinSnapshot, error) {
	return s.snapshots.LatestByPatient(ctx, patientID)
}

func (s *Service) ListSnapshots(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*TwinSnapshot, int, error) {
	return s.snapshots.ListByPatient(ctx, patientID, limit, offset)
}
