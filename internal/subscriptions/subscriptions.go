package subscriptions

import (
	"context"
	"sync"
	"time"
)

const (
	StatusActive = "active"
	StatusClosed = "closed"
)

// Subscription is an opportunity-digest subscription with an expiry.
type Subscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Topic     string    `json:"topic"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repo defines the persistence surface the sweep needs.
type Repo interface {
	Create(ctx context.Context, sub Subscription) error
	// CloseStale closes active subscriptions whose expiry has passed. The
	// operation is idempotent.
	CloseStale(ctx context.Context, now time.Time) (int, error)
}

// MemoryRepo stores subscriptions in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Subscription
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Subscription)}
}

// Create stores the subscription.
func (r *MemoryRepo) Create(ctx context.Context, sub Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[sub.ID] = sub
	return nil
}

// CloseStale closes active subscriptions past expiry.
func (r *MemoryRepo) CloseStale(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	closed := 0
	for id, sub := range r.byID {
		if sub.Status == StatusActive && !sub.ExpiresAt.After(now) {
			sub.Status = StatusClosed
			r.byID[id] = sub
			closed++
		}
	}
	return closed, nil
}
