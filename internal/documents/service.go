package documents

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"verify-backend/internal/shared/storage/object"
	"verify-backend/internal/shared/telemetry"
)

// Service stores credential documents and their metadata. The bytes go to the
// object store; the hash, size and file name go to the repo so the rest of the
// system can reason about a document after its bytes are purged.
type Service struct {
	Repo  Repo
	Store object.ObjectStore
}

// Ingest reads the document, hashes it, saves the bytes and records metadata.
func (s *Service) Ingest(ctx context.Context, userID, fileName string, r io.Reader) (Document, error) {
	if userID == "" {
		return Document{}, fmt.Errorf("%w: userID is required", ErrInvalidInput)
	}
	if fileName == "" {
		return Document{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("read document: %w", err)
	}
	if len(data) == 0 {
		return Document{}, fmt.Errorf("%w: document is empty", ErrInvalidInput)
	}

	sum := sha256.Sum256(data)

	storageKey, sizeBytes, mimeType, err := s.Store.Save(ctx, userID, fileName, bytes.NewReader(data))
	if err != nil {
		return Document{}, fmt.Errorf("store document: %w", err)
	}

	doc := Document{
		ID:          uuid.NewString(),
		UserID:      userID,
		FileName:    fileName,
		MimeType:    mimeType,
		SizeBytes:   sizeBytes,
		ContentHash: hex.EncodeToString(sum[:]),
		StorageKey:  storageKey,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Get returns the metadata of a document the user owns.
func (s *Service) Get(ctx context.Context, userID, documentID string) (Document, error) {
	return s.Repo.GetByID(ctx, userID, documentID)
}

// List returns the user's documents, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// Open returns the document bytes. Purged documents yield ErrPurged.
func (s *Service) Open(ctx context.Context, userID, documentID string) (io.ReadCloser, error) {
	doc, err := s.Repo.GetByID(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.PurgedAt != nil {
		return nil, ErrPurged
	}
	return s.Store.Open(ctx, doc.StorageKey)
}

// Purge removes the document bytes and marks the metadata row. The row itself
// stays for audit. Best effort on the object delete: a store that cannot
// delete leaves the bytes in place and the row unmarked.
func (s *Service) Purge(ctx context.Context, userID, documentID string) error {
	doc, err := s.Repo.GetByID(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if doc.PurgedAt != nil {
		return nil
	}

	deleter, ok := s.Store.(object.Deleter)
	if !ok {
		return nil
	}
	if err := deleter.Delete(ctx, doc.StorageKey); err != nil {
		telemetry.Error("documents.purge_failed", map[string]any{
			"document_id": documentID,
			"error":       err.Error(),
		})
		return err
	}
	return s.Repo.MarkPurged(ctx, documentID, time.Now().UTC())
}
