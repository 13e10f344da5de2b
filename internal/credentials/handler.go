package credentials

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"verify-backend/internal/shared/server/middleware"
	"verify-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the credentials service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches credential routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/credentials", h.list)
}

func (h *Handler) list(c *gin.Context) {
	if isGuest, ok := c.Get("isGuest"); ok {
		if guest, ok2 := isGuest.(bool); ok2 && guest {
			respond.Error(c, http.StatusUnauthorized, "login_required", "Login required to view credentials", nil)
			return
		}
	}

	userID := middleware.UserIDFromContext(c)
	mappings, err := h.Svc.ActiveForUser(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list credentials", nil)
		return
	}
	if mappings == nil {
		mappings = []Mapping{}
	}
	respond.JSON(c, http.StatusOK, gin.H{"credentials": mappings})
}
