package documents

import (
	"context"
	"time"
)

// Repo defines persistence for document metadata.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, userID, documentID string) (Document, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error)
	MarkPurged(ctx context.Context, documentID string, purgedAt time.Time) error
}
