package subscriptions

import (
	"context"
	"database/sql"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new subscription.
func (r *PGRepo) Create(ctx context.Context, sub Subscription) error {
	const query = `
INSERT INTO subscriptions (id, user_id, topic, status, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.DB.ExecContext(ctx, query, sub.ID, sub.UserID, sub.Topic, sub.Status, sub.ExpiresAt, sub.CreatedAt)
	return err
}

// CloseStale closes active subscriptions past expiry; re-runs are no-ops.
func (r *PGRepo) CloseStale(ctx context.Context, now time.Time) (int, error) {
	const query = `
UPDATE subscriptions
SET status = 'closed'
WHERE status = 'active' AND expires_at <= $1`
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
