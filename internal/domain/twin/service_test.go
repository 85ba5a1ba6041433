package twin

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// In-memory fakes
// ---------------------------------------------------------------------------

type fakePatientRepo struct {
	patients map[uuid.UUID]*Patient
}

func newFakePatientRepo() *fakePatientRepo {
	return &fakePatientRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (r *fakePatientRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *fakePatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePatientRepo) GetByMRN(_ context.Context, mrn string) (*Patient, error) {
	for _, p := range r.patients {
		if p.MRN == mrn {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakePatientRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := r.patients[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *fakePatientRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	var all []*Patient
	for _, p := range r.patients {
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].MRN < all[j].MRN })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

type fakeSnapshotRepo struct {
	snapshots []*TwinSnapshot
}

func (r *fakeSnapshotRepo) Create(_ context.Context, s *TwinSnapshot) error {
	s.ID = uuid.New()
	s.CreatedAt = time.Now().UTC()
	cp := *s
	r.snapshots = append(r.snapshots, &cp)
	return nil
}

func (r *fakeSnapshotRepo) LatestByPatient(_ context.Context, patientID uuid.UUID) (*TwinSnapshot, error) {
	var latest *TwinSnapshot
	for _, s := range r.snapshots {
		if s.PatientID != patientID {
			continue
		}
		if latest == nil || s.GeneratedAt.After(latest.GeneratedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *fakeSnapshotRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*TwinSnapshot, int, error) {
	var all []*TwinSnapshot
	for _, s := range r.snapshots {
		if s.PatientID == patientID {
			cp := *s
			all = append(all, &cp)
		}
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func newTestService() (*Service, *fakePatientRepo, *fakeSnapshotRepo) {
	patients := newFakePatientRepo()
	snapshots := &fakeSnapshotRepo{}
	return NewService(patients, snapshots), patients, snapshots
}

func createTestPatient(t *testing.T, svc *Service, mrn string) *Patient {
	t.Helper()
	p := &Patient{MRN: mrn, GivenName: "Avery", FamilyName: "Quinn"}
	if err := svc.CreatePatient(context.Background(), p); err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	return p
}

// ---------------------------------------------------------------------------
// Patient service
// ---------------------------------------------------------------------------

func TestCreatePatient_RequiresMRN(t *testing.T) {
	svc, _, _ := newTestService()

	err := svc.CreatePatient(context.Background(), &Patient{FamilyName: "Quinn"})
	if err == nil {
		t.Error("expected error for missing mrn")
	}
}

func TestCreatePatient_RequiresFamilyName(t *testing.T) {
	svc, _, _ := newTestService()

	err := svc.CreatePatient(context.Background(), &Patient{MRN: "MRN-00001"})
	if err == nil {
		t.Error("expected error for missing family_name")
	}
}

func TestCreatePatient_RejectsDuplicateMRN(t *testing.T) {
	svc, _, _ := newTestService()
	createTestPatient(t, svc, "MRN-00001")

	err := svc.CreatePatient(context.Background(), &Patient{MRN: "MRN-00001", FamilyName: "Other"})
	if err == nil {
		t.Error("expected error for duplicate mrn")
	}
}

func TestCreateAndGetPatient(t *testing.T) {
	svc, _, _ := newTestService()
	p := createTestPatient(t, svc, "MRN-00002")

	got, err := svc.GetPatient(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetPatient: %v", err)
	}
	if got.MRN != "MRN-00002" {
		t.Errorf("MRN = %q", got.MRN)
	}
}

func TestUpdatePatient_RequiresID(t *testing.T) {
	svc, _, _ := newTestService()

	err := svc.UpdatePatient(context.Background(), &Patient{MRN: "MRN-00003"})
	if err == nil {
		t.Error("expected error for missing id")
	}
}

// ---------------------------------------------------------------------------
// Twin snapshots
// ---------------------------------------------------------------------------

func TestRecordSnapshot_RequiresExistingPatient(t *testing.T) {
	svc, _, _ := newTestService()

	err := svc.RecordSnapshot(context.Background(), &TwinSnapshot{
		PatientID: uuid.New(),
		RiskScore: 0.4,
	})
	if err == nil {
		t.Error("expected error for unknown patient")
	}
}

func TestRecordSnapshot_ValidatesRiskScore(t *testing.T) {
	svc, _, _ := newTestService()
	p := createTestPatient(t, svc, "MRN-00004")

	for _, score := range []float64{-0.1, 1.5} {
		err := svc.RecordSnapshot(context.Background(), &TwinSnapshot{
			PatientID: p.ID,
			RiskScore: score,
		})
		if err == nil {
			t.Errorf("expected error for risk score %g", score)
		}
	}
}

func TestRecordSnapshot_DefaultsLevelAndTime(t *testing.T) {
	svc, _, _ := newTestService()
	p := createTestPatient(t, svc, "MRN-00005")

	snap := &TwinSnapshot{PatientID: p.ID, RiskScore: 0.7}
	if err := svc.RecordSnapshot(context.Background(), snap); err != nil {
		t.Fatalf("RecordSnapshot: %v", err)
	}
	if snap.RiskLevel != "high" {
		t.Errorf("RiskLevel = %q, want high", snap.RiskLevel)
	}
	if snap.GeneratedAt.IsZero() {
		t.Error("GeneratedAt was not defaulted")
	}
}

func TestRecordSnapshot_RejectsUnknownLevel(t *testing.T) {
	svc, _, _ := newTestService()
	p := createTestPatient(t, svc, "MRN-00006")

	err := svc.RecordSnapshot(context.Background(), &TwinSnapshot{
		PatientID: p.ID,
		RiskScore: 0.4,
		RiskLevel: "catastrophic",
	})
	if err == nil {
		t.Error("expected error for invalid risk level")
	}
}

func TestLatestSnapshot_ReturnsNewest(t *testing.T) {
	svc, _, _ := newTestService()
	p := createTestPatient(t, svc, "MRN-00007")

	older := &TwinSnapshot{PatientID: p.ID, RiskScore: 0.2,
		GeneratedAt: time.Now().Add(-2 * time.Hour)}
	newer := &TwinSnapshot{PatientID: p.ID, RiskScore: 0.9,
		GeneratedAt: time.Now().Add(-time.Hour)}
	for _, s := range []*TwinSnapshot{older, newer} {
		if err := svc.RecordSnapshot(context.Background(), s); err != nil {
			t.Fatalf("RecordSnapshot: %v", err)
		}
	}

	got, err := svc.LatestSnapshot(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if got.RiskScore != 0.9 {
		t.Errorf("latest RiskScore = %g, want 0.9", got.RiskScore)
	}
}
