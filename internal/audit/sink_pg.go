package audit

import (
	"context"
	"database/sql"
	"encoding/json"
)

// PGSink implements Sink using Postgres.
type PGSink struct {
	DB *sql.DB
}

// Append implements Sink.
func (s *PGSink) Append(ctx context.Context, entry Entry) error {
	const query = `
INSERT INTO audit_entries (id, user_id, action, entity_type, entity_id, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	var metadata any
	if entry.Metadata != nil {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return err
		}
		metadata = string(raw)
	}
	_, err := s.DB.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		metadata,
		entry.CreatedAt,
	)
	return err
}
