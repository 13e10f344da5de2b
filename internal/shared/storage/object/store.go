package object

import (
	"context"
	"io"
)

// ObjectStore defines the contract for saving and retrieving binary objects.
type ObjectStore interface {
	Save(ctx context.Context, userId string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

// Deleter is implemented by stores that support removing stored objects, used
// when retention policy purges documents after a terminal decision.
type Deleter interface {
	Delete(ctx context.Context, storageKey string) error
}
