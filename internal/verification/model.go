package verification

import (
	"time"

	"verify-backend/internal/evidence"
	"verify-backend/internal/identity"
)

// RequestStatus is the lifecycle state of a verification request.
type RequestStatus string

const (
	RequestPending      RequestStatus = "PENDING"
	RequestProcessing   RequestStatus = "PROCESSING"
	RequestApproved     RequestStatus = "APPROVED"
	RequestRejected     RequestStatus = "REJECTED"
	RequestManualReview RequestStatus = "MANUAL_REVIEW"
)

// AttemptStatus is the execution state of a single pipeline run.
type AttemptStatus string

const (
	AttemptProcessing AttemptStatus = "PROCESSING"
	AttemptCompleted  AttemptStatus = "COMPLETED"
	AttemptFailed     AttemptStatus = "FAILED"
)

// MaxAutomatedAttempts bounds the automated pipeline: the initial run plus two
// appeals. Beyond that the request routes to manual review.
const MaxAutomatedAttempts = 3

// Claims are the five fields the user asserts at submission time.
type Claims struct {
	FullName    string `json:"fullName"`
	Institution string `json:"institution"`
	Program     string `json:"program"`
	StartYear   int    `json:"startYear"`
	EndYear     int    `json:"endYear"`
}

// Request is one user's verification case. Requests are never deleted; status
// is the only field the orchestrator mutates after creation.
type Request struct {
	ID            string        `json:"id"`
	UserID        string        `json:"userId"`
	InstitutionID string        `json:"institutionId"`
	Claims        Claims        `json:"claims"`
	DocumentHash  string        `json:"documentHash"`
	DocumentID    string        `json:"-"`
	Status        RequestStatus `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Attempt is one execution of the pipeline against a request. Attempts are
// append-only and never mutated after CompletedAt is set.
type Attempt struct {
	ID            string                   `json:"id"`
	RequestID     string                   `json:"requestId"`
	AttemptNumber int                      `json:"attemptNumber"`
	Status        AttemptStatus            `json:"status"`
	OCRText       string                   `json:"-"`
	ExtractedData *evidence.IdentityRecord `json:"extractedData,omitempty"`
	MatchResults  map[string]any           `json:"matchResults,omitempty"`
	Decision      identity.Decision        `json:"decision,omitempty"`
	FailureReason string                   `json:"failureReason,omitempty"`
	ManualReview  bool                     `json:"manualReview,omitempty"`
	ReviewerNotes string                   `json:"reviewerNotes,omitempty"`
	CreatedAt     time.Time                `json:"createdAt"`
	CompletedAt   *time.Time               `json:"completedAt,omitempty"`
}
