package verification

import "context"

// Repo defines persistence for requests and attempts with the atomicity the
// orchestrator relies on: dedup and request creation happen in one unit, and
// appeal/manual transitions run under a per-request lock so two concurrent
// appeals cannot both create attempt N+1.
type Repo interface {
	// CreateWithAttempt inserts the request and its first attempt atomically.
	// Returns ErrDuplicateDocument when the user already submitted the same
	// document hash.
	CreateWithAttempt(ctx context.Context, req Request, attempt Attempt) error

	GetRequest(ctx context.Context, requestID string) (Request, error)
	ListRequestsByUser(ctx context.Context, userID string, limit, offset int) ([]Request, error)
	UpdateRequestStatus(ctx context.Context, requestID string, status RequestStatus) error

	GetAttempt(ctx context.Context, attemptID string) (Attempt, error)
	ListAttempts(ctx context.Context, requestID string) ([]Attempt, error)

	// BeginAppeal creates the next attempt under the request lock. It verifies
	// the request is REJECTED, that fewer than MaxAutomatedAttempts attempts
	// completed, and that no manual decision exists, then inserts the attempt
	// built by newAttempt with the next attemptNumber and moves the request to
	// PROCESSING.
	BeginAppeal(ctx context.Context, requestID string, newAttempt func(attemptNumber int) Attempt) (Attempt, error)

	// CompleteAttempt persists the attempt's terminal fields and the request's
	// resulting status in one unit.
	CompleteAttempt(ctx context.Context, attempt Attempt, requestStatus RequestStatus) error

	// RecordManualDecision appends a synthetic completed attempt carrying a
	// human decision and moves the request to its final status, under the same
	// request lock as BeginAppeal. Fails with ErrReviewNotAllowed when a manual
	// decision already exists or the request is already APPROVED.
	RecordManualDecision(ctx context.Context, requestID string, newAttempt func(attemptNumber int) Attempt, requestStatus RequestStatus) (Attempt, error)
}
