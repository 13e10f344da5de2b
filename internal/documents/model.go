package documents

import (
	"errors"
	"time"
)

// Document is the metadata of a stored credential document. The bytes live in
// object storage under StorageKey; PurgedAt marks documents whose bytes were
// removed by retention policy while the metadata row remains for audit.
type Document struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	FileName    string     `json:"fileName"`
	MimeType    string     `json:"mimeType"`
	SizeBytes   int64      `json:"sizeBytes"`
	ContentHash string     `json:"contentHash"`
	StorageKey  string     `json:"-"`
	PurgedAt    *time.Time `json:"purgedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

var (
	// ErrNotFound indicates the document does not exist or is not owned by the
	// requesting user.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidInput indicates a malformed ingest request.
	ErrInvalidInput = errors.New("invalid document input")

	// ErrPurged indicates the document bytes were removed by retention policy.
	ErrPurged = errors.New("document bytes purged")
)
