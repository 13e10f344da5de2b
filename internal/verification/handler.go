package verification

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"verify-backend/internal/identity"
	"verify-backend/internal/shared/server/middleware"
	"verify-backend/internal/shared/server/respond"
)

const maxUploadSize = 10 << 20 // 10MB

// Handler wires HTTP handlers to the verification service.
type Handler struct {
	Svc *Service

	// Reviewers is the allow-list of user IDs permitted to record manual
	// decisions. Everyone else, including a request's owner, is refused.
	Reviewers map[string]bool
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, reviewerIDs []string) *Handler {
	reviewers := make(map[string]bool, len(reviewerIDs))
	for _, id := range reviewerIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			reviewers[trimmed] = true
		}
	}
	return &Handler{Svc: svc, Reviewers: reviewers}
}

// RegisterRoutes attaches verification routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/verifications", h.submit)
	rg.GET("/verifications", h.list)
	rg.GET("/verifications/:id", h.status)
	rg.POST("/verifications/:id/appeal", h.appeal)
	rg.POST("/verifications/:id/review", h.review)
}

func (h *Handler) submit(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("document")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "document is required", nil)
		return
	}

	startYear, err := strconv.Atoi(strings.TrimSpace(c.PostForm("startYear")))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "startYear must be a number", nil)
		return
	}
	endYear, err := strconv.Atoi(strings.TrimSpace(c.PostForm("endYear")))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "endYear must be a number", nil)
		return
	}

	claims := Claims{
		FullName:    strings.TrimSpace(c.PostForm("fullName")),
		Institution: strings.TrimSpace(c.PostForm("institution")),
		Program:     strings.TrimSpace(c.PostForm("program")),
		StartYear:   startYear,
		EndYear:     endYear,
	}
	institutionID := strings.TrimSpace(c.PostForm("institutionId"))

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read document", nil)
		return
	}
	defer file.Close()

	req, err := h.Svc.Submit(c.Request.Context(), userID, institutionID, claims, file, fileHeader.Filename)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, ErrDuplicateDocument):
			respond.Error(c, http.StatusConflict, "duplicate_document", "this document was already submitted", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to submit verification", nil)
		}
		return
	}

	respond.JSON(c, http.StatusAccepted, gin.H{
		"requestId": req.ID,
		"status":    req.Status,
	})
}

func (h *Handler) status(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	requestID := c.Param("id")

	req, err := h.Svc.GetRequest(c.Request.Context(), requestID, userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "verification request not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch verification", nil)
		}
		return
	}

	attempts, err := h.Svc.ListAttempts(c.Request.Context(), requestID, userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch verification", nil)
		return
	}

	respond.JSON(c, http.StatusOK, toStatusResponse(req, attempts))
}

func (h *Handler) list(c *gin.Context) {
	if isGuest, ok := c.Get("isGuest"); ok {
		if guest, ok2 := isGuest.(bool); ok2 && guest {
			respond.Error(c, http.StatusUnauthorized, "login_required", "Login required to view history", nil)
			return
		}
	}

	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0

	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if limit > 50 {
		limit = 50
	}

	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	requests, err := h.Svc.ListRequests(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list verifications", nil)
		return
	}

	resp := make([]requestResponse, 0, len(requests))
	for _, req := range requests {
		resp = append(resp, toRequestResponse(req))
	}

	respond.JSON(c, http.StatusOK, resp)
}

type appealRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) appeal(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	requestID := c.Param("id")

	// Reason is optional; an absent or malformed body is treated as empty.
	var req appealRequest
	_ = c.ShouldBindJSON(&req)

	attempt, err := h.Svc.Appeal(c.Request.Context(), requestID, userID, strings.TrimSpace(req.Reason))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "verification request not found", nil)
		case errors.Is(err, ErrAppealLimitReached):
			respond.Error(c, http.StatusConflict, "appeal_limit_reached", "automated appeal limit reached; the request requires manual review", nil)
		case errors.Is(err, ErrAppealNotAllowed):
			respond.Error(c, http.StatusConflict, "appeal_not_allowed", "only rejected requests can be appealed", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start appeal", nil)
		}
		return
	}

	respond.JSON(c, http.StatusAccepted, gin.H{
		"requestId":     requestID,
		"attemptId":     attempt.ID,
		"attemptNumber": attempt.AttemptNumber,
		"status":        attempt.Status,
	})
}

type reviewRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes"`
}

func (h *Handler) review(c *gin.Context) {
	if isGuest, ok := c.Get("isGuest"); ok {
		if guest, ok2 := isGuest.(bool); ok2 && guest {
			respond.Error(c, http.StatusUnauthorized, "login_required", "Login required to review", nil)
			return
		}
	}

	reviewerID := middleware.UserIDFromContext(c)
	if !h.Reviewers[reviewerID] {
		respond.Error(c, http.StatusForbidden, "forbidden", "manual review requires reviewer privileges", nil)
		return
	}
	requestID := c.Param("id")

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	decision := identity.Decision(strings.ToUpper(strings.TrimSpace(req.Decision)))

	attempt, err := h.Svc.ManualReview(c.Request.Context(), requestID, decision, strings.TrimSpace(req.Notes), reviewerID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "verification request not found", nil)
		case errors.Is(err, ErrReviewNotAllowed):
			respond.Error(c, http.StatusConflict, "review_not_allowed", "a final decision already exists for this request", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to record review", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{
		"requestId":     requestID,
		"attemptId":     attempt.ID,
		"attemptNumber": attempt.AttemptNumber,
		"decision":      attempt.Decision,
	})
}
