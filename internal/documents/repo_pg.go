package documents

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectDocument = `
SELECT id, user_id, file_name, mime_type, size_bytes, content_hash, storage_key, purged_at, created_at
FROM documents`

// Create inserts a document row.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (id, user_id, file_name, mime_type, size_bytes, content_hash, storage_key, purged_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.DB.ExecContext(ctx, query,
		doc.ID,
		doc.UserID,
		doc.FileName,
		doc.MimeType,
		doc.SizeBytes,
		doc.ContentHash,
		doc.StorageKey,
		doc.PurgedAt,
		doc.CreatedAt,
	)
	return err
}

// GetByID returns a document owned by the user.
func (r *PGRepo) GetByID(ctx context.Context, userID, documentID string) (Document, error) {
	const query = selectDocument + ` WHERE id = $1 AND user_id = $2 LIMIT 1`
	return scanDocument(r.DB.QueryRowContext(ctx, query, documentID, userID))
}

// ListByUser returns the user's documents, newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const query = selectDocument + ` WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// MarkPurged records that the document bytes were removed.
func (r *PGRepo) MarkPurged(ctx context.Context, documentID string, purgedAt time.Time) error {
	const query = `UPDATE documents SET purged_at = $2 WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, documentID, purgedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var purgedAt sql.NullTime
	err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.FileName,
		&doc.MimeType,
		&doc.SizeBytes,
		&doc.ContentHash,
		&doc.StorageKey,
		&purgedAt,
		&doc.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	if purgedAt.Valid {
		t := purgedAt.Time
		doc.PurgedAt = &t
	}
	return doc, nil
}
