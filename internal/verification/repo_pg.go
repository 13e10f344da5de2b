package verification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"verify-backend/internal/evidence"
	"verify-backend/internal/identity"
)

// PGRepo implements Repo using Postgres. Appeal and manual-review transitions
// serialize on the request row via SELECT ... FOR UPDATE.
type PGRepo struct {
	DB *sql.DB
}

// CreateWithAttempt inserts the request and its first attempt in one
// transaction. The partial unique index on (user_id, document_hash) closes the
// race between two simultaneous submissions of the identical document.
func (r *PGRepo) CreateWithAttempt(ctx context.Context, req Request, attempt Attempt) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const reqQuery = `
INSERT INTO verification_requests (
	id, user_id, institution_id, claim_full_name, claim_institution, claim_program,
	claim_start_year, claim_end_year, document_hash, document_id, status, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	if _, err := tx.ExecContext(ctx, reqQuery,
		req.ID,
		req.UserID,
		req.InstitutionID,
		req.Claims.FullName,
		req.Claims.Institution,
		req.Claims.Program,
		req.Claims.StartYear,
		req.Claims.EndYear,
		req.DocumentHash,
		req.DocumentID,
		string(req.Status),
		req.CreatedAt,
		req.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateDocument
		}
		return err
	}

	if err := insertAttempt(ctx, tx, attempt); err != nil {
		return err
	}
	return tx.Commit()
}

// GetRequest returns a request by ID.
func (r *PGRepo) GetRequest(ctx context.Context, requestID string) (Request, error) {
	const query = selectRequest + ` WHERE id = $1 LIMIT 1`
	return scanRequest(r.DB.QueryRowContext(ctx, query, requestID))
}

// ListRequestsByUser returns the user's requests, newest first.
func (r *PGRepo) ListRequestsByUser(ctx context.Context, userID string, limit, offset int) ([]Request, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const query = selectRequest + ` WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// UpdateRequestStatus sets the request status.
func (r *PGRepo) UpdateRequestStatus(ctx context.Context, requestID string, status RequestStatus) error {
	const query = `UPDATE verification_requests SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, requestID, string(status), time.Now().UTC())
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

// GetAttempt returns an attempt by ID.
func (r *PGRepo) GetAttempt(ctx context.Context, attemptID string) (Attempt, error) {
	const query = selectAttempt + ` WHERE id = $1 LIMIT 1`
	return scanAttempt(r.DB.QueryRowContext(ctx, query, attemptID))
}

// ListAttempts returns a request's attempts ordered by attempt number.
func (r *PGRepo) ListAttempts(ctx context.Context, requestID string) ([]Attempt, error) {
	const query = selectAttempt + ` WHERE request_id = $1 ORDER BY attempt_number ASC`
	rows, err := r.DB.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Attempt{}
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, attempt)
	}
	return out, rows.Err()
}

// BeginAppeal creates the next attempt under the request row lock.
func (r *PGRepo) BeginAppeal(ctx context.Context, requestID string, newAttempt func(attemptNumber int) Attempt) (Attempt, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, err
	}
	defer tx.Rollback()

	status, err := lockRequest(ctx, tx, requestID)
	if err != nil {
		return Attempt{}, err
	}
	if status != RequestRejected {
		return Attempt{}, ErrAppealNotAllowed
	}

	completed, maxNumber, manual, err := attemptStats(ctx, tx, requestID)
	if err != nil {
		return Attempt{}, err
	}
	if manual {
		return Attempt{}, ErrAppealNotAllowed
	}
	if completed >= MaxAutomatedAttempts {
		return Attempt{}, ErrAppealLimitReached
	}

	attempt := newAttempt(maxNumber + 1)
	if err := insertAttempt(ctx, tx, attempt); err != nil {
		return Attempt{}, err
	}
	if err := setRequestStatus(ctx, tx, requestID, RequestProcessing); err != nil {
		return Attempt{}, err
	}
	if err := tx.Commit(); err != nil {
		return Attempt{}, err
	}
	return attempt, nil
}

// CompleteAttempt persists the attempt outcome and the request status in one
// transaction.
func (r *PGRepo) CompleteAttempt(ctx context.Context, attempt Attempt, requestStatus RequestStatus) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	extracted, err := marshalJSONB(attempt.ExtractedData)
	if err != nil {
		return err
	}
	matchResults, err := marshalJSONB(attempt.MatchResults)
	if err != nil {
		return err
	}

	const query = `
UPDATE verification_attempts
SET status = $2, ocr_text = $3, extracted_data = $4, match_results = $5,
    decision = $6, failure_reason = $7, completed_at = $8
WHERE id = $1 AND completed_at IS NULL`
	res, err := tx.ExecContext(ctx, query,
		attempt.ID,
		string(attempt.Status),
		nullString(attempt.OCRText),
		extracted,
		matchResults,
		nullString(string(attempt.Decision)),
		nullString(attempt.FailureReason),
		attempt.CompletedAt,
	)
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

	if err := setRequestStatus(ctx, tx, attempt.RequestID, requestStatus); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordManualDecision appends the synthetic reviewer attempt under the
// request row lock.
func (r *PGRepo) RecordManualDecision(ctx context.Context, requestID string, newAttempt func(attemptNumber int) Attempt, requestStatus RequestStatus) (Attempt, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, err
	}
	defer tx.Rollback()

	status, err := lockRequest(ctx, tx, requestID)
	if err != nil {
		return Attempt{}, err
	}
	if status == RequestApproved {
		return Attempt{}, ErrReviewNotAllowed
	}

	_, maxNumber, manual, err := attemptStats(ctx, tx, requestID)
	if err != nil {
		return Attempt{}, err
	}
	if manual {
		return Attempt{}, ErrReviewNotAllowed
	}

	attempt := newAttempt(maxNumber + 1)
	if err := insertAttempt(ctx, tx, attempt); err != nil {
		return Attempt{}, err
	}
	if err := setRequestStatus(ctx, tx, requestID, requestStatus); err != nil {
		return Attempt{}, err
	}
	if err := tx.Commit(); err != nil {
		return Attempt{}, err
	}
	return attempt, nil
}

const selectRequest = `
SELECT id, user_id, institution_id, claim_full_name, claim_institution, claim_program,
       claim_start_year, claim_end_year, document_hash, document_id, status, created_at, updated_at
FROM verification_requests`

const selectAttempt = `
SELECT id, request_id, attempt_number, status, ocr_text, extracted_data, match_results,
       decision, failure_reason, manual_review, reviewer_notes, created_at, completed_at
FROM verification_attempts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (Request, error) {
	var req Request
	var status string
	err := row.Scan(
		&req.ID,
		&req.UserID,
		&req.InstitutionID,
		&req.Claims.FullName,
		&req.Claims.Institution,
		&req.Claims.Program,
		&req.Claims.StartYear,
		&req.Claims.EndYear,
		&req.DocumentHash,
		&req.DocumentID,
		&status,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	if err != nil {
		return Request{}, err
	}
	req.Status = RequestStatus(status)
	return req, nil
}

func scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	var status string
	var ocrText sql.NullString
	var extracted sql.NullString
	var matchResults sql.NullString
	var decision sql.NullString
	var failureReason sql.NullString
	var reviewerNotes sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(
		&a.ID,
		&a.RequestID,
		&a.AttemptNumber,
		&status,
		&ocrText,
		&extracted,
		&matchResults,
		&decision,
		&failureReason,
		&a.ManualReview,
		&reviewerNotes,
		&a.CreatedAt,
		&completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrNotFound
	}
	if err != nil {
		return Attempt{}, err
	}
	a.Status = AttemptStatus(status)
	a.OCRText = ocrText.String
	a.FailureReason = failureReason.String
	a.ReviewerNotes = reviewerNotes.String
	if decision.Valid {
		a.Decision = identity.Decision(decision.String)
	}
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	if extracted.Valid && extracted.String != "" {
		var rec evidence.IdentityRecord
		if err := json.Unmarshal([]byte(extracted.String), &rec); err == nil {
			a.ExtractedData = &rec
		}
	}
	if matchResults.Valid && matchResults.String != "" {
		var m map[string]any
		if err := json.Unmarshal([]byte(matchResults.String), &m); err == nil {
			a.MatchResults = m
		}
	}
	return a, nil
}

func insertAttempt(ctx context.Context, tx *sql.Tx, attempt Attempt) error {
	const query = `
INSERT INTO verification_attempts (
	id, request_id, attempt_number, status, ocr_text, extracted_data, match_results,
	decision, failure_reason, manual_review, reviewer_notes, created_at, completed_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	extracted, err := marshalJSONB(attempt.ExtractedData)
	if err != nil {
		return err
	}
	matchResults, err := marshalJSONB(attempt.MatchResults)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query,
		attempt.ID,
		attempt.RequestID,
		attempt.AttemptNumber,
		string(attempt.Status),
		nullString(attempt.OCRText),
		extracted,
		matchResults,
		nullString(string(attempt.Decision)),
		nullString(attempt.FailureReason),
		attempt.ManualReview,
		nullString(attempt.ReviewerNotes),
		attempt.CreatedAt,
		attempt.CompletedAt,
	)
	return err
}

func lockRequest(ctx context.Context, tx *sql.Tx, requestID string) (RequestStatus, error) {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM verification_requests WHERE id = $1 FOR UPDATE`, requestID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return RequestStatus(status), nil
}

func attemptStats(ctx context.Context, tx *sql.Tx, requestID string) (completed, maxNumber int, manual bool, err error) {
	const query = `
SELECT COUNT(*) FILTER (WHERE status IN ('COMPLETED', 'FAILED')),
       COALESCE(MAX(attempt_number), 0),
       BOOL_OR(manual_review) IS TRUE
FROM verification_attempts
WHERE request_id = $1`
	err = tx.QueryRowContext(ctx, query, requestID).Scan(&completed, &maxNumber, &manual)
	return completed, maxNumber, manual, err
}

func setRequestStatus(ctx context.Context, tx *sql.Tx, requestID string, status RequestStatus) error {
	_, err := tx.ExecContext(ctx, `UPDATE verification_requests SET status = $2, updated_at = $3 WHERE id = $1`, requestID, string(status), time.Now().UTC())
	return err
}

func marshalJSONB(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, nil
	}
	return string(raw), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint") || strings.Contains(msg, "23505")
}
