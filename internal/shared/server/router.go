package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	googleauth "verify-backend/internal/auth"
	"verify-backend/internal/credentials"
	"verify-backend/internal/services/health"
	"verify-backend/internal/shared/config"
	"verify-backend/internal/shared/metrics"
	"verify-backend/internal/shared/server/middleware"
	"verify-backend/internal/shared/server/respond"
	"verify-backend/internal/users"
	"verify-backend/internal/verification"
)

// RouterDeps carries the handlers the router wires up. Nil handlers are
// skipped so tests can build partial routers.
type RouterDeps struct {
	Config              config.Config
	VerificationHandler *verification.Handler
	CredentialsHandler  *credentials.Handler
	UserHandler         *users.Handler
	GoogleAuth          *googleauth.GoogleService
	Health              *health.Service
	RateLimiter         *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Config.Env),
		middleware.RateLimit(rateLimitConfig(deps.RateLimiter)),
	)

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, healthSvc.Status())
	})

	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(api)
	}
	if deps.VerificationHandler != nil {
		deps.VerificationHandler.RegisterRoutes(api)
	}
	if deps.CredentialsHandler != nil {
		deps.CredentialsHandler.RegisterRoutes(api)
	}

	return r
}

// rateLimitConfig throttles submissions and appeals harder than status
// polling: OCR attempts are expensive, polling is not.
func rateLimitConfig(limiter *middleware.RateLimiter) middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		Limiter:      limiter,
		DefaultGroup: "DEFAULT",
		GroupFor: func(c *gin.Context) string {
			path := c.FullPath()
			switch {
			case c.Request.Method == http.MethodGet && path == "/api/v1/verifications/:id":
				return "POLLING"
			case c.Request.Method == http.MethodPost &&
				(path == "/api/v1/verifications" || path == "/api/v1/verifications/:id/appeal"):
				return "SUBMIT"
			default:
				return "DEFAULT"
			}
		},
		Rules: map[string]middleware.RateLimitRule{
			"DEFAULT": {Rate: 5, Burst: 20},
			"POLLING": {Rate: 10, Burst: 40},
			"SUBMIT":  {Rate: 0.2, Burst: 5},
		},
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
