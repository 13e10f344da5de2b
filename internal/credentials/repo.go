package credentials

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a missing mapping.
var ErrNotFound = errors.New("credential mapping not found")

// Repo defines persistence for credential mappings.
type Repo interface {
	Create(ctx context.Context, m Mapping) error
	ActiveForUser(ctx context.Context, userID string, now time.Time) ([]Mapping, error)
	// ExpireDue transitions active mappings whose validity window has passed.
	// It is idempotent and safe to run concurrently with live traffic.
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}
