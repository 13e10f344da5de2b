package verification

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores requests and attempts in memory and is safe for concurrent
// use. A single mutex stands in for the row-level locking the Postgres repo
// gets from SELECT ... FOR UPDATE.
type MemoryRepo struct {
	mu         sync.RWMutex
	requests   map[string]Request
	attempts   map[string]Attempt
	byUserHash map[string]string // userID+"\x00"+documentHash -> requestID
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		requests:   make(map[string]Request),
		attempts:   make(map[string]Attempt),
		byUserHash: make(map[string]string),
	}
}

func dedupKey(userID, hash string) string {
	return userID + "\x00" + hash
}

// CreateWithAttempt inserts the request and first attempt atomically.
func (r *MemoryRepo) CreateWithAttempt(ctx context.Context, req Request, attempt Attempt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := dedupKey(req.UserID, req.DocumentHash)
	if _, exists := r.byUserHash[key]; exists {
		return ErrDuplicateDocument
	}
	r.byUserHash[key] = req.ID
	r.requests[req.ID] = req
	r.attempts[attempt.ID] = attempt
	return nil
}

// GetRequest returns a request by ID.
func (r *MemoryRepo) GetRequest(ctx context.Context, requestID string) (Request, error) {
	if err := ctx.Err(); err != nil {
		return Request{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[requestID]
	if !ok {
		return Request{}, ErrNotFound
	}
	return req, nil
}

// ListRequestsByUser returns the user's requests, newest first.
func (r *MemoryRepo) ListRequestsByUser(ctx context.Context, userID string, limit, offset int) ([]Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var out []Request
	for _, req := range r.requests {
		if req.UserID == userID {
			out = append(out, req)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return []Request{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// UpdateRequestStatus sets the request status.
func (r *MemoryRepo) UpdateRequestStatus(ctx context.Context, requestID string, status RequestStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[requestID]
	if !ok {
		return ErrNotFound
	}
	req.Status = status
	req.UpdatedAt = time.Now().UTC()
	r.requests[requestID] = req
	return nil
}

// GetAttempt returns an attempt by ID.
func (r *MemoryRepo) GetAttempt(ctx context.Context, attemptID string) (Attempt, error) {
	if err := ctx.Err(); err != nil {
		return Attempt{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	attempt, ok := r.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	return attempt, nil
}

// ListAttempts returns a request's attempts ordered by attempt number.
func (r *MemoryRepo) ListAttempts(ctx context.Context, requestID string) ([]Attempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var out []Attempt
	for _, a := range r.attempts {
		if a.RequestID == requestID {
			out = append(out, a)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptNumber < out[j].AttemptNumber })
	return out, nil
}

// BeginAppeal creates the next attempt under the repo lock.
func (r *MemoryRepo) BeginAppeal(ctx context.Context, requestID string, newAttempt func(attemptNumber int) Attempt) (Attempt, error) {
	if err := ctx.Err(); err != nil {
		return Attempt{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[requestID]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	if req.Status != RequestRejected {
		return Attempt{}, ErrAppealNotAllowed
	}

	completed, maxNumber, manual := r.attemptStatsLocked(requestID)
	if manual {
		return Attempt{}, ErrAppealNotAllowed
	}
	if completed >= MaxAutomatedAttempts {
		return Attempt{}, ErrAppealLimitReached
	}

	attempt := newAttempt(maxNumber + 1)
	r.attempts[attempt.ID] = attempt

	req.Status = RequestProcessing
	req.UpdatedAt = time.Now().UTC()
	r.requests[requestID] = req

	return attempt, nil
}

// CompleteAttempt persists the attempt outcome and request status together.
func (r *MemoryRepo) CompleteAttempt(ctx context.Context, attempt Attempt, requestStatus RequestStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.attempts[attempt.ID]; !ok {
		return ErrNotFound
	}
	req, ok := r.requests[attempt.RequestID]
	if !ok {
		return ErrNotFound
	}

	r.attempts[attempt.ID] = attempt
	req.Status = requestStatus
	req.UpdatedAt = time.Now().UTC()
	r.requests[req.ID] = req
	return nil
}

// RecordManualDecision appends a synthetic completed attempt with a human
// decision.
func (r *MemoryRepo) RecordManualDecision(ctx context.Context, requestID string, newAttempt func(attemptNumber int) Attempt, requestStatus RequestStatus) (Attempt, error) {
	if err := ctx.Err(); err != nil {
		return Attempt{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[requestID]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	if req.Status == RequestApproved {
		return Attempt{}, ErrReviewNotAllowed
	}

	_, maxNumber, manual := r.attemptStatsLocked(requestID)
	if manual {
		return Attempt{}, ErrReviewNotAllowed
	}

	attempt := newAttempt(maxNumber + 1)
	r.attempts[attempt.ID] = attempt

	req.Status = requestStatus
	req.UpdatedAt = time.Now().UTC()
	r.requests[requestID] = req

	return attempt, nil
}

// attemptStatsLocked returns the number of terminal attempts, the highest
// attempt number, and whether a manual decision exists. Caller must hold mu.
func (r *MemoryRepo) attemptStatsLocked(requestID string) (completed, maxNumber int, manual bool) {
	for _, a := range r.attempts {
		if a.RequestID != requestID {
			continue
		}
		if a.AttemptNumber > maxNumber {
			maxNumber = a.AttemptNumber
		}
		if a.Status == AttemptCompleted || a.Status == AttemptFailed {
			completed++
		}
		if a.ManualReview {
			manual = true
		}
	}
	return completed, maxNumber, manual
}
