package credentials

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo stores mappings in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Mapping
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Mapping)}
}

// Create stores the mapping.
func (r *MemoryRepo) Create(ctx context.Context, m Mapping) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[m.ID] = m
	return nil
}

// ActiveForUser returns the user's unexpired active mappings.
func (r *MemoryRepo) ActiveForUser(ctx context.Context, userID string, now time.Time) ([]Mapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Mapping
	for _, m := range r.byID {
		if m.UserID == userID && m.Status == StatusActive && m.ValidUntil.After(now) {
			out = append(out, m)
		}
	}
	return out, nil
}

// ExpireDue transitions active mappings past their validity window.
func (r *MemoryRepo) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	expired := 0
	for id, m := range r.byID {
		if m.Status == StatusActive && !m.ValidUntil.After(now) {
			m.Status = StatusExpired
			r.byID[id] = m
			expired++
		}
	}
	return expired, nil
}
