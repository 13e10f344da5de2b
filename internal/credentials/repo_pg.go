package credentials

import (
	"context"
	"database/sql"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new mapping.
func (r *PGRepo) Create(ctx context.Context, m Mapping) error {
	const query = `
INSERT INTO credential_mappings (id, user_id, institution_name, valid_from, valid_until, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.DB.ExecContext(ctx, query,
		m.ID,
		m.UserID,
		m.InstitutionName,
		m.ValidFrom,
		m.ValidUntil,
		m.Status,
		m.CreatedAt,
	)
	return err
}

// ActiveForUser returns the user's unexpired active mappings.
func (r *PGRepo) ActiveForUser(ctx context.Context, userID string, now time.Time) ([]Mapping, error) {
	const query = `
SELECT id, user_id, institution_name, valid_from, valid_until, status, created_at
FROM credential_mappings
WHERE user_id = $1 AND status = 'active' AND valid_until > $2
ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Mapping
	for rows.Next() {
		var m Mapping
		if err := rows.Scan(&m.ID, &m.UserID, &m.InstitutionName, &m.ValidFrom, &m.ValidUntil, &m.Status, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ExpireDue transitions active mappings past their validity window. The UPDATE
// only touches rows whose expiry has already passed, so re-runs are no-ops.
func (r *PGRepo) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	const query = `
UPDATE credential_mappings
SET status = 'expired'
WHERE status = 'active' AND valid_until <= $1`
	res, err := r.DB.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
