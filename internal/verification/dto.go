package verification

import (
	"time"

	"verify-backend/internal/evidence"
	"verify-backend/internal/identity"
)

type requestResponse struct {
	RequestID     string        `json:"requestId"`
	InstitutionID string        `json:"institutionId,omitempty"`
	Claims        Claims        `json:"claims"`
	Status        RequestStatus `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

type attemptResponse struct {
	AttemptID     string                   `json:"attemptId"`
	AttemptNumber int                      `json:"attemptNumber"`
	Status        AttemptStatus            `json:"status"`
	Decision      identity.Decision        `json:"decision,omitempty"`
	OverallScore  *float64                 `json:"overallScore,omitempty"`
	Explanation   string                   `json:"explanation,omitempty"`
	FailureReason string                   `json:"failureReason,omitempty"`
	ManualReview  bool                     `json:"manualReview,omitempty"`
	ReviewerNotes string                   `json:"reviewerNotes,omitempty"`
	ExtractedData *evidence.IdentityRecord `json:"extractedData,omitempty"`
	MatchResults  map[string]any           `json:"matchResults,omitempty"`
	CreatedAt     time.Time                `json:"createdAt"`
	CompletedAt   *time.Time               `json:"completedAt,omitempty"`
}

type statusResponse struct {
	requestResponse
	Attempts []attemptResponse `json:"attempts"`
}

func toRequestResponse(req Request) requestResponse {
	return requestResponse{
		RequestID:     req.ID,
		InstitutionID: req.InstitutionID,
		Claims:        req.Claims,
		Status:        req.Status,
		CreatedAt:     req.CreatedAt,
		UpdatedAt:     req.UpdatedAt,
	}
}

func toAttemptResponse(a Attempt) attemptResponse {
	resp := attemptResponse{
		AttemptID:     a.ID,
		AttemptNumber: a.AttemptNumber,
		Status:        a.Status,
		Decision:      a.Decision,
		FailureReason: a.FailureReason,
		ManualReview:  a.ManualReview,
		ReviewerNotes: a.ReviewerNotes,
		ExtractedData: a.ExtractedData,
		MatchResults:  a.MatchResults,
		CreatedAt:     a.CreatedAt,
		CompletedAt:   a.CompletedAt,
	}
	if a.MatchResults != nil {
		if score, ok := a.MatchResults["overallScore"].(float64); ok {
			resp.OverallScore = &score
		}
		if explanation, ok := a.MatchResults["explanation"].(string); ok {
			resp.Explanation = explanation
		}
	}
	return resp
}

func toStatusResponse(req Request, attempts []Attempt) statusResponse {
	resp := statusResponse{
		requestResponse: toRequestResponse(req),
		Attempts:        make([]attemptResponse, 0, len(attempts)),
	}
	for _, a := range attempts {
		resp.Attempts = append(resp.Attempts, toAttemptResponse(a))
	}
	return resp
}
