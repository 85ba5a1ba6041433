package twin

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// In-memory repositories back the server when no DATABASE_URL is
// configured. Data is lost on restart; development and demos only.

type patientRepoMem struct {
	mu       sync.RWMutex
	patients map[uuid.UUID]*Patient
}

func NewPatientRepoMem() PatientRepository {
	return &patientRepoMem{patients: make(map[uuid.UUID]*Patient)}
}

func (r *patientRepoMem) Create(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = uuid.New()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *patientRepoMem) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *patientRepoMem) GetByMRN(_ context.Context, mrn string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.patients {
		if p.MRN == mrn {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *patientRepoMem) Update(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.patients[p.ID]
	if !ok {
		return ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *patientRepoMem) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*Patient, 0, len(r.patients))
	for _, p := range r.patients {
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), len(all), nil
}

type snapshotRepoMem struct {
	mu        sync.RWMutex
	snapshots map[uuid.UUID][]*TwinSnapshot
}

func NewSnapshotRepoMem() SnapshotRepository {
	return &snapshotRepoMem{snapshots: make(map[uuid.UUID][]*TwinSnapshot)}
}

func (r *snapshotRepoMem) Create(_ context.Context, s *TwinSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = uuid.New()
	s.CreatedAt = time.Now().UTC()
	cp := *s
	r.snapshots[s.PatientID] = append(r.snapshots[s.PatientID], &cp)
	return nil
}

func (r *snapshotRepoMem) LatestByPatient(_ context.Context, patientID uuid.UUID) (*TwinSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snaps := r.snapshots[patientID]
	if len(snaps) == 0 {
		return nil, ErrNotFound
	}
	latest := snaps[0]
	for _, s := range snaps[1:] {
		if s.GeneratedAt.After(latest.GeneratedAt) {
			latest = s
		}
	}
	cp := *latest
	return &cp, nil
}

func (r *snapshotRepoMem) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*TwinSnapshot, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snaps := r.snapshots[patientID]
	all := make([]*TwinSnapshot, 0, len(snaps))
	for _, s := range snaps {
		cp := *s
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].GeneratedAt.After(all[j].GeneratedAt) })
	return page(all, limit, offset), len(all), nil
}

func page[T any](all []*T, limit, offset int) []*T {
	if offset >= len(all) {
		return []*T{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}
