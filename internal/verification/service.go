package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"verify-backend/internal/audit"
	"verify-backend/internal/credentials"
	"verify-backend/internal/documents"
	"verify-backend/internal/evidence"
	"verify-backend/internal/identity"
	"verify-backend/internal/ocr"
	"verify-backend/internal/shared/metrics"
	"verify-backend/internal/shared/telemetry"
)

const (
	minClaimYear    = 1950
	claimFormSource = "verification_form"
)

// Service drives the verification attempt lifecycle: submit, process, appeal,
// manual review. Each attempt's pipeline runs as one asynchronous unit of
// work; the only shared mutable state is the persisted request/attempt pair,
// which the Repo guards.
type Service struct {
	Repo        Repo
	Docs        *documents.Service
	OCR         ocr.Client
	Credentials *credentials.Service
	Audit       *audit.Logger

	Extractor identity.Extractor
	Resolver  identity.Resolver
	Matcher   identity.Matcher

	// PurgeOnDecision deletes the stored document once the request reaches an
	// absorbing APPROVED state, where retention policy requires it.
	PurgeOnDecision bool
}

// Submit validates the claims, stores the document, creates the request and
// its first attempt atomically, and kicks off asynchronous processing.
func (s *Service) Submit(ctx context.Context, userID, institutionID string, claims Claims, document io.Reader, fileName string) (Request, error) {
	if userID == "" {
		return Request{}, fmt.Errorf("%w: userID is required", ErrInvalidInput)
	}
	if fileName == "" {
		return Request{}, fmt.Errorf("%w: document file name is required", ErrInvalidInput)
	}
	if err := validateClaims(claims, time.Now().UTC()); err != nil {
		return Request{}, err
	}

	doc, err := s.Docs.Ingest(ctx, userID, fileName, document)
	if err != nil {
		if errors.Is(err, documents.ErrInvalidInput) {
			return Request{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return Request{}, err
	}

	now := time.Now().UTC()
	req := Request{
		ID:            uuid.NewString(),
		UserID:        userID,
		InstitutionID: institutionID,
		Claims:        claims,
		DocumentHash:  doc.ContentHash,
		DocumentID:    doc.ID,
		Status:        RequestPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	attempt := Attempt{
		ID:            uuid.NewString(),
		RequestID:     req.ID,
		AttemptNumber: 1,
		Status:        AttemptProcessing,
		CreatedAt:     now,
	}

	if err := s.Repo.CreateWithAttempt(ctx, req, attempt); err != nil {
		return Request{}, err
	}

	s.Audit.Record(ctx, userID, "verification.submitted", "verification_request", req.ID, map[string]any{
		"document_id":   doc.ID,
		"document_hash": doc.ContentHash,
		"institution":   claims.Institution,
	})

	go s.processAttempt(context.Background(), req.ID, attempt.ID)

	return req, nil
}

// Appeal reruns the pipeline on a rejected request, bounded by the automated
// attempt budget. Ownership violations look identical to missing requests.
func (s *Service) Appeal(ctx context.Context, requestID, requestingUserID, reason string) (Attempt, error) {
	req, err := s.ownedRequest(ctx, requestID, requestingUserID)
	if err != nil {
		return Attempt{}, err
	}

	now := time.Now().UTC()
	attempt, err := s.Repo.BeginAppeal(ctx, req.ID, func(attemptNumber int) Attempt {
		return Attempt{
			ID:            uuid.NewString(),
			RequestID:     req.ID,
			AttemptNumber: attemptNumber,
			Status:        AttemptProcessing,
			CreatedAt:     now,
		}
	})
	if err != nil {
		return Attempt{}, err
	}

	s.Audit.Record(ctx, requestingUserID, "verification.appealed", "verification_request", req.ID, map[string]any{
		"attempt_number": attempt.AttemptNumber,
		"reason":         reason,
	})

	go s.processAttempt(context.Background(), req.ID, attempt.ID)

	return attempt, nil
}

// GetRequest returns the request if the caller owns it.
func (s *Service) GetRequest(ctx context.Context, requestID, requestingUserID string) (Request, error) {
	return s.ownedRequest(ctx, requestID, requestingUserID)
}

// ListAttempts returns the attempts of an owned request, oldest first.
func (s *Service) ListAttempts(ctx context.Context, requestID, requestingUserID string) ([]Attempt, error) {
	if _, err := s.ownedRequest(ctx, requestID, requestingUserID); err != nil {
		return nil, err
	}
	return s.Repo.ListAttempts(ctx, requestID)
}

// ListRequests returns the caller's requests, newest first.
func (s *Service) ListRequests(ctx context.Context, userID string, limit, offset int) ([]Request, error) {
	if userID == "" {
		return nil, errors.New("userID is required")
	}
	return s.Repo.ListRequestsByUser(ctx, userID, limit, offset)
}

// ManualReview records a human decision as a synthetic high-numbered attempt.
// The decision is final; no further automated appeal is permitted after it.
func (s *Service) ManualReview(ctx context.Context, requestID string, decision identity.Decision, notes, reviewerID string) (Attempt, error) {
	if decision != identity.DecisionApproved && decision != identity.DecisionRejected {
		return Attempt{}, fmt.Errorf("%w: manual decision must be APPROVED or REJECTED", ErrInvalidInput)
	}

	req, err := s.Repo.GetRequest(ctx, requestID)
	if err != nil {
		return Attempt{}, err
	}

	now := time.Now().UTC()
	requestStatus := RequestRejected
	if decision == identity.DecisionApproved {
		requestStatus = RequestApproved
	}

	attempt, err := s.Repo.RecordManualDecision(ctx, requestID, func(attemptNumber int) Attempt {
		completedAt := now
		return Attempt{
			ID:            uuid.NewString(),
			RequestID:     requestID,
			AttemptNumber: attemptNumber,
			Status:        AttemptCompleted,
			Decision:      decision,
			ManualReview:  true,
			ReviewerNotes: notes,
			CreatedAt:     now,
			CompletedAt:   &completedAt,
		}
	}, requestStatus)
	if err != nil {
		return Attempt{}, err
	}

	s.Audit.Record(ctx, reviewerID, "verification.manual_decision", "verification_request", requestID, map[string]any{
		"decision":       string(decision),
		"attempt_number": attempt.AttemptNumber,
	})

	if requestStatus == RequestApproved {
		s.recordCredential(ctx, req)
		s.purgeDocument(ctx, req)
	}

	return attempt, nil
}

func (s *Service) ownedRequest(ctx context.Context, requestID, requestingUserID string) (Request, error) {
	if requestID == "" || requestingUserID == "" {
		return Request{}, ErrNotFound
	}
	req, err := s.Repo.GetRequest(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if req.UserID != requestingUserID {
		return Request{}, ErrNotFound
	}
	return req, nil
}

// processAttempt runs the bounded, one-shot pipeline for a single attempt:
// OCR call, field extraction, resolution, matching, persistence.
func (s *Service) processAttempt(ctx context.Context, requestID, attemptID string) {
	startedAt := time.Now().UTC()
	defer func() {
		if r := recover(); r != nil {
			s.failAttempt(ctx, requestID, attemptID, fmt.Sprintf("panic: %v", r), startedAt)
		}
	}()

	metrics.IncVerificationStarted()

	req, err := s.Repo.GetRequest(ctx, requestID)
	if err != nil {
		s.failAttempt(ctx, requestID, attemptID, fmt.Sprintf("request lookup: %v", err), startedAt)
		return
	}
	attempt, err := s.Repo.GetAttempt(ctx, attemptID)
	if err != nil {
		s.failAttempt(ctx, requestID, attemptID, fmt.Sprintf("attempt lookup: %v", err), startedAt)
		return
	}

	// Appeals enter PROCESSING inside BeginAppeal; the first attempt moves the
	// request out of PENDING here, once its pipeline actually starts.
	if req.Status == RequestPending {
		if err := s.Repo.UpdateRequestStatus(ctx, requestID, RequestProcessing); err != nil {
			telemetry.Error("verification.status_update_failed", map[string]any{
				"request_id": requestID,
				"attempt_id": attemptID,
				"error":      err.Error(),
			})
		}
	}

	telemetry.Info("verification.status", map[string]any{
		"request_id":     req.ID,
		"attempt_id":     attempt.ID,
		"attempt_number": attempt.AttemptNumber,
		"user_id":        req.UserID,
		"status":         string(AttemptProcessing),
	})

	doc, err := s.Docs.Get(ctx, req.UserID, req.DocumentID)
	if err != nil {
		s.failAttempt(ctx, requestID, attemptID, fmt.Sprintf("document lookup: %v", err), startedAt)
		return
	}
	data, err := s.loadDocument(ctx, req.UserID, req.DocumentID)
	if err != nil {
		s.failAttempt(ctx, requestID, attemptID, fmt.Sprintf("load document: %v", err), startedAt)
		return
	}

	result := s.OCR.ExtractText(ctx, data, doc.FileName)
	if !result.Success {
		s.failAttempt(ctx, requestID, attemptID, "ocr: "+result.Error, startedAt)
		return
	}

	resolved := s.resolveDocument(result, doc.FileName)
	claimed := claimsRecord(req.Claims)
	match := s.Matcher.Match(claimed, resolved)

	completedAt := time.Now().UTC()
	attempt.Status = AttemptCompleted
	attempt.OCRText = result.RawText
	attempt.ExtractedData = &resolved
	attempt.MatchResults = toJSONMap(match)
	attempt.Decision = match.Decision
	attempt.CompletedAt = &completedAt

	requestStatus := requestStatusForDecision(attempt.AttemptNumber, match)

	if err := s.Repo.CompleteAttempt(ctx, attempt, requestStatus); err != nil {
		telemetry.Error("verification.persist_failed", map[string]any{
			"request_id": requestID,
			"attempt_id": attemptID,
			"error":      err.Error(),
		})
		metrics.IncVerificationFailed()
		return
	}

	metrics.IncVerificationCompleted()
	metrics.ObserveVerificationDurationMs(float64(completedAt.Sub(startedAt).Microseconds()) / 1000.0)

	s.Audit.Record(ctx, req.UserID, "verification.decided", "verification_attempt", attempt.ID, map[string]any{
		"request_id":     req.ID,
		"attempt_number": attempt.AttemptNumber,
		"decision":       string(match.Decision),
		"overall_score":  match.OverallScore,
		"request_status": string(requestStatus),
	})
	telemetry.Info("verification.status", map[string]any{
		"request_id":        req.ID,
		"attempt_id":        attempt.ID,
		"attempt_number":    attempt.AttemptNumber,
		"user_id":           req.UserID,
		"status":            string(AttemptCompleted),
		"decision":          string(match.Decision),
		"overall_score":     match.OverallScore,
		"status_transition": "PROCESSING->" + string(requestStatus),
	})

	if requestStatus == RequestApproved {
		s.recordCredential(ctx, req)
		s.purgeDocument(ctx, req)
	}
}

// failAttempt marks the attempt FAILED and moves the request to the failure
// status. OCR and infrastructure failures are not retried by the system; the
// user must appeal.
func (s *Service) failAttempt(ctx context.Context, requestID, attemptID, reason string, startedAt time.Time) {
	reason = sanitizeReason(reason)

	attempt, err := s.Repo.GetAttempt(ctx, attemptID)
	if err != nil {
		telemetry.Error("verification.fail_lookup", map[string]any{
			"request_id": requestID,
			"attempt_id": attemptID,
			"error":      err.Error(),
		})
		return
	}

	completedAt := time.Now().UTC()
	attempt.Status = AttemptFailed
	attempt.FailureReason = reason
	attempt.CompletedAt = &completedAt

	requestStatus := RequestRejected
	if attempt.AttemptNumber >= MaxAutomatedAttempts {
		requestStatus = RequestManualReview
	}

	if err := s.Repo.CompleteAttempt(ctx, attempt, requestStatus); err != nil {
		telemetry.Error("verification.persist_failed", map[string]any{
			"request_id": requestID,
			"attempt_id": attemptID,
			"error":      err.Error(),
		})
	}

	metrics.IncVerificationFailed()
	metrics.ObserveVerificationDurationMs(float64(completedAt.Sub(startedAt).Microseconds()) / 1000.0)

	s.Audit.Record(ctx, "", "verification.attempt_failed", "verification_attempt", attemptID, map[string]any{
		"request_id":     requestID,
		"attempt_number": attempt.AttemptNumber,
		"reason":         reason,
		"request_status": string(requestStatus),
	})
	telemetry.Info("verification.status", map[string]any{
		"request_id":        requestID,
		"attempt_id":        attemptID,
		"attempt_number":    attempt.AttemptNumber,
		"status":            string(AttemptFailed),
		"reason":            reason,
		"status_transition": "PROCESSING->" + string(requestStatus),
	})
}

// resolveDocument extracts one record from the full OCR text plus one per
// layout page, then resolves them into a single best-estimate record.
func (s *Service) resolveDocument(result ocr.Result, source string) evidence.IdentityRecord {
	records := []evidence.IdentityRecord{
		s.Extractor.Extract(result.RawText, source, layoutBlocks(result.LayoutBlocks)),
	}

	for _, pageText := range pageTexts(result.LayoutBlocks) {
		rec := s.Extractor.Extract(pageText, source, nil)
		if !rec.IsEmpty() {
			records = append(records, rec)
		}
	}

	return s.Resolver.Resolve(records)
}

func layoutBlocks(blocks []ocr.LayoutBlock) []identity.LayoutBlock {
	if len(blocks) == 0 {
		return nil
	}
	out := make([]identity.LayoutBlock, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, identity.LayoutBlock{
			Page:   b.Page,
			Region: evidence.Region{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height},
			Text:   b.Text,
		})
	}
	return out
}

func pageTexts(blocks []ocr.LayoutBlock) []string {
	if len(blocks) == 0 {
		return nil
	}
	byPage := map[int][]string{}
	var pages []int
	for _, b := range blocks {
		if strings.TrimSpace(b.Text) == "" {
			continue
		}
		if _, seen := byPage[b.Page]; !seen {
			pages = append(pages, b.Page)
		}
		byPage[b.Page] = append(byPage[b.Page], b.Text)
	}
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		out = append(out, strings.Join(byPage[p], "\n"))
	}
	return out
}

// requestStatusForDecision maps an attempt decision to the request status. On
// the final automated attempt, an inconclusive or ambiguous outcome escalates
// to manual review instead of auto-deciding.
func requestStatusForDecision(attemptNumber int, match identity.MatchResult) RequestStatus {
	switch match.Decision {
	case identity.DecisionApproved:
		return RequestApproved
	case identity.DecisionPendingReview:
		return RequestManualReview
	default:
		if attemptNumber >= MaxAutomatedAttempts && ambiguousPattern(match) {
			return RequestManualReview
		}
		return RequestRejected
	}
}

// ambiguousPattern reports a mixed field-score pattern: at least one strong
// field alongside at least one weak one, which a human should untangle.
func ambiguousPattern(match identity.MatchResult) bool {
	if len(match.Fields) < 2 {
		return false
	}
	minScore, maxScore := 1.0, 0.0
	for _, f := range match.Fields {
		score := f.FieldScore()
		if score < minScore {
			minScore = score
		}
		if score > maxScore {
			maxScore = score
		}
	}
	return maxScore >= 0.85 && minScore <= 0.4
}

// recordCredential asks the institution-mapping collaborator for a
// time-bounded credential. Failures are logged and never roll back the
// verification decision.
func (s *Service) recordCredential(ctx context.Context, req Request) {
	if s.Credentials == nil {
		return
	}
	now := time.Now().UTC()
	mapping, err := s.Credentials.RecordCredential(ctx, req.UserID, req.Claims.Institution, now, now.Add(credentials.DefaultValidity))
	if err != nil {
		telemetry.Error("verification.credential_failed", map[string]any{
			"request_id": req.ID,
			"user_id":    req.UserID,
			"error":      err.Error(),
		})
		return
	}
	s.Audit.Record(ctx, req.UserID, "credential.recorded", "credential_mapping", mapping.ID, map[string]any{
		"request_id":  req.ID,
		"institution": mapping.InstitutionName,
		"valid_until": mapping.ValidUntil,
	})
}

// purgeDocument drops the stored document bytes once the decision is
// absorbing. Best effort; the metadata row and hash survive for audit.
func (s *Service) purgeDocument(ctx context.Context, req Request) {
	if !s.PurgeOnDecision {
		return
	}
	if err := s.Docs.Purge(ctx, req.UserID, req.DocumentID); err != nil {
		telemetry.Error("verification.purge_failed", map[string]any{
			"request_id": req.ID,
			"error":      err.Error(),
		})
	}
}

func (s *Service) loadDocument(ctx context.Context, userID, documentID string) ([]byte, error) {
	body, err := s.Docs.Open(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

// claimsRecord lifts the user's claims into an identity record with
// USER_CLAIM evidence at full confidence.
func claimsRecord(claims Claims) evidence.IdentityRecord {
	ref := evidence.NewRef(evidence.KindUserClaim, claimFormSource)
	var rec evidence.IdentityRecord
	if claims.FullName != "" {
		rec.FullName = evidence.NewFieldValue(claims.FullName, 1.0, ref)
	}
	if claims.Institution != "" {
		rec.Institution = evidence.NewFieldValue(claims.Institution, 1.0, ref)
	}
	if claims.Program != "" {
		rec.ProgramOrDegree = evidence.NewFieldValue(claims.Program, 1.0, ref)
	}
	if claims.StartYear != 0 && claims.EndYear != 0 {
		rec.EnrollmentPeriod = evidence.NewFieldValue(evidence.EnrollmentPeriod{
			StartYear: claims.StartYear,
			EndYear:   claims.EndYear,
		}, 1.0, ref)
	}
	return rec
}

func validateClaims(claims Claims, now time.Time) error {
	if strings.TrimSpace(claims.FullName) == "" {
		return fmt.Errorf("%w: full name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(claims.Institution) == "" {
		return fmt.Errorf("%w: institution is required", ErrInvalidInput)
	}
	if strings.TrimSpace(claims.Program) == "" {
		return fmt.Errorf("%w: program is required", ErrInvalidInput)
	}
	if claims.StartYear < minClaimYear || claims.StartYear > now.Year() {
		return fmt.Errorf("%w: start year must be between %d and %d", ErrInvalidInput, minClaimYear, now.Year())
	}
	if claims.EndYear < claims.StartYear || claims.EndYear > now.Year()+5 {
		return fmt.Errorf("%w: end year must be between %d and %d", ErrInvalidInput, claims.StartYear, now.Year()+5)
	}
	return nil
}

func sanitizeReason(reason string) string {
	reason = strings.ReplaceAll(reason, "\n", " ")
	reason = strings.ReplaceAll(reason, "\r", " ")
	reason = strings.TrimSpace(reason)
	const maxLen = 500
	if len(reason) > maxLen {
		reason = reason[:maxLen]
	}
	return reason
}

func toJSONMap(value any) map[string]any {
	raw, err := json.Marshal(value)
	if err != nil {
		return map[string]any{"marshalError": err.Error()}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"rawText": string(raw)}
	}
	return out
}
