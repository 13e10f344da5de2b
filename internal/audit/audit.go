package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"verify-backend/internal/shared/telemetry"
)

// Entry is one append-only audit record.
type Entry struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId"`
	Action     string         `json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Sink receives audit entries. Implementations are append-only.
type Sink interface {
	Append(ctx context.Context, entry Entry) error
}

// Logger wraps a Sink with the fire-and-forget contract: a failing sink is
// logged locally and never blocks or rolls back the caller's transition.
type Logger struct {
	Sink Sink
}

// Record appends an audit entry, swallowing sink failures.
func (l *Logger) Record(ctx context.Context, userID, action, entityType, entityID string, metadata map[string]any) {
	if l == nil || l.Sink == nil {
		return
	}
	entry := Entry{
		ID:         uuid.NewString(),
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   metadata,
		CreatedAt:  time.Now().UTC(),
	}
	if err := l.Sink.Append(ctx, entry); err != nil {
		telemetry.Error("audit.append_failed", map[string]any{
			"action":      action,
			"entity_type": entityType,
			"entity_id":   entityID,
			"error":       err.Error(),
		})
	}
}
