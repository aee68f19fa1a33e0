package storage

import (
	"context"
	"errors"
	"sync"

	"ContractFinder/internal/domain"
	"ContractFinder/internal/ports"
)

// MemoryRepository keeps leads in process memory. It backs dry runs and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[int64]domain.ContractAward
	index   map[domain.ContractKey]int64
	nextID  int64
}

var _ ports.ContractRepository = (*MemoryRepository)(nil)

// NewMemoryRepository builds an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: map[int64]domain.ContractAward{},
		index:   map[domain.ContractKey]int64{},
	}
}

// Begin opens a staged unit of work; nothing is visible to readers before Commit.
func (r *MemoryRepository) Begin(ctx context.Context) (ports.UnitOfWork, error) {
	return &memoryUnit{repo: r, staged: map[domain.ContractKey]domain.ContractAward{}}, nil
}

// List returns a copy of every matching lead.
func (r *MemoryRepository) List(ctx context.Context, filter domain.LeadFilter) ([]domain.ContractAward, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ContractAward, 0, len(r.records))
	for _, award := range r.records {
		if filter.Matches(award) {
			out = append(out, award)
		}
	}
	domain.SortByScore(out)
	return out, nil
}

// Get loads a lead by id.
func (r *MemoryRepository) Get(ctx context.Context, id int64) (domain.ContractAward, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	award, ok := r.records[id]
	if !ok {
		return domain.ContractAward{}, domain.ErrNotFound
	}
	return award, nil
}

// UpdateStatus sets the sales status on a lead.
func (r *MemoryRepository) UpdateStatus(ctx context.Context, id int64, status domain.ContractStatus) (domain.ContractAward, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	award, ok := r.records[id]
	if !ok {
		return domain.ContractAward{}, domain.ErrNotFound
	}
	award.Status = status
	r.records[id] = award
	return award, nil
}

// Ping always succeeds.
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (r *MemoryRepository) Close() error {
	return nil
}

type memoryUnit struct {
	repo   *MemoryRepository
	staged map[domain.ContractKey]domain.ContractAward
	done   bool
}

func (u *memoryUnit) FindByKey(ctx context.Context, key domain.ContractKey) (domain.ContractAward, bool, error) {
	if award, ok := u.staged[key]; ok {
		return award, true, nil
	}

	u.repo.mu.RLock()
	defer u.repo.mu.RUnlock()

	id, ok := u.repo.index[key]
	if !ok {
		return domain.ContractAward{}, false, nil
	}
	return u.repo.records[id], true, nil
}

func (u *memoryUnit) Upsert(ctx context.Context, award domain.ContractAward) (domain.ContractAward, error) {
	if u.done {
		return domain.ContractAward{}, errors.New("unit of work already finished")
	}

	key := award.Key()
	if award.Status == "" {
		award.Status = domain.StatusNew
	}
	if award.ID == 0 {
		if prev, ok, _ := u.FindByKey(ctx, key); ok {
			award.ID = prev.ID
			award.Status = prev.Status
			award.CreatedAt = prev.CreatedAt
		} else {
			u.repo.mu.Lock()
			u.repo.nextID++
			award.ID = u.repo.nextID
			u.repo.mu.Unlock()
		}
	}

	u.staged[key] = award
	return award, nil
}

func (u *memoryUnit) Commit() error {
	if u.done {
		return errors.New("unit of work already finished")
	}
	u.done = true

	u.repo.mu.Lock()
	defer u.repo.mu.Unlock()

	for key, award := range u.staged {
		// A concurrent unit may have committed this key first.
		if id, ok := u.repo.index[key]; ok && id != award.ID {
			award.ID = id
			award.CreatedAt = u.repo.records[id].CreatedAt
		}
		if current, ok := u.repo.records[award.ID]; ok {
			award.Status = current.Status
		}
		u.repo.records[award.ID] = award
		u.repo.index[key] = award.ID
	}
	return nil
}

func (u *memoryUnit) Rollback() error {
	u.done = true
	u.staged = nil
	return nil
}
