package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoCreateWithAttemptIsTransactional(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Now().UTC()
	req := Request{
		ID:     "req-1",
		UserID: "user-1",
		Claims: Claims{
			FullName:    "Rahul Sharma",
			Institution: "IIT Delhi",
			Program:     "B.Tech Computer Science",
			StartYear:   2016,
			EndYear:     2020,
		},
		DocumentHash: "abc123",
		DocumentID:  "doc-1",
		Status:       RequestPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	attempt := Attempt{
		ID:            "attempt-1",
		RequestID:     req.ID,
		AttemptNumber: 1,
		Status:        AttemptProcessing,
		CreatedAt:     now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO verification_requests").
		WithArgs(
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
			string(RequestPending),
			req.CreatedAt,
			req.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO verification_attempts").
		WithArgs(
			attempt.ID,
			attempt.RequestID,
			attempt.AttemptNumber,
			string(AttemptProcessing),
			nil, // ocr_text
			nil, // extracted_data
			nil, // match_results
			nil, // decision
			nil, // failure_reason
			false,
			nil, // reviewer_notes
			attempt.CreatedAt,
			nil, // completed_at
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.CreateWithAttempt(context.Background(), req, attempt); err != nil {
		t.Fatalf("CreateWithAttempt: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCreateWithAttemptMapsUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO verification_requests").
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "verification_requests_user_document_idx" (SQLSTATE 23505)`))
	mock.ExpectRollback()

	err = repo.CreateWithAttempt(context.Background(), Request{ID: "req-1"}, Attempt{ID: "a-1"})
	if !errors.Is(err, ErrDuplicateDocument) {
		t.Fatalf("expected ErrDuplicateDocument, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoBeginAppealLocksRequestRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM verification_requests WHERE id = \$1 FOR UPDATE`).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(RequestRejected)))
	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{"completed", "max_number", "manual"}).AddRow(1, 1, false))
	mock.ExpectExec("INSERT INTO verification_attempts").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE verification_requests SET status").
		WithArgs("req-1", string(RequestProcessing), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	attempt, err := repo.BeginAppeal(context.Background(), "req-1", func(n int) Attempt {
		return Attempt{ID: "attempt-2", RequestID: "req-1", AttemptNumber: n, Status: AttemptProcessing, CreatedAt: now}
	})
	if err != nil {
		t.Fatalf("BeginAppeal: %v", err)
	}
	if attempt.AttemptNumber != 2 {
		t.Fatalf("attempt number = %d, want 2", attempt.AttemptNumber)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoBeginAppealBudgetSpent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM verification_requests WHERE id = \$1 FOR UPDATE`).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(RequestRejected)))
	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{"completed", "max_number", "manual"}).AddRow(MaxAutomatedAttempts, MaxAutomatedAttempts, false))
	mock.ExpectRollback()

	_, err = repo.BeginAppeal(context.Background(), "req-1", func(n int) Attempt { return Attempt{} })
	if !errors.Is(err, ErrAppealLimitReached) {
		t.Fatalf("expected ErrAppealLimitReached, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCompleteAttemptGuardsTerminalRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	completedAt := time.Now().UTC()
	attempt := Attempt{
		ID:            "attempt-1",
		RequestID:     "req-1",
		AttemptNumber: 1,
		Status:        AttemptCompleted,
		CompletedAt:   &completedAt,
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE verification_attempts").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = repo.CompleteAttempt(context.Background(), attempt, RequestApproved)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for already-terminal attempt, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
