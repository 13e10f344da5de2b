package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"verify-backend/internal/audit"
	googleauth "verify-backend/internal/auth"
	"verify-backend/internal/credentials"
	"verify-backend/internal/documents"
	"verify-backend/internal/identity"
	"verify-backend/internal/ocr"
	"verify-backend/internal/shared/config"
	"verify-backend/internal/shared/server"
	"verify-backend/internal/shared/storage/db"
	"verify-backend/internal/shared/storage/object"
	localstore "verify-backend/internal/shared/storage/object/local"
	s3store "verify-backend/internal/shared/storage/object/s3"
	"verify-backend/internal/subscriptions"
	"verify-backend/internal/users"
	"verify-backend/internal/verification"
)

// App holds the wired application graph. Handlers and services are exported
// so tests can reach past the router.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	OCR    ocr.Client

	VerificationRepo  verification.Repo
	DocumentsRepo     documents.Repo
	CredentialsRepo   credentials.Repo
	UsersRepo         users.Repo
	SubscriptionsRepo subscriptions.Repo

	AuditLogger         *audit.Logger
	DocumentsService    *documents.Service
	CredentialsService  *credentials.Service
	VerificationService *verification.Service
	UsersService        *users.Service

	VerificationHandler *verification.Handler
	CredentialsHandler  *credentials.Handler
	UsersHandler        *users.Handler
	GoogleAuth          *googleauth.GoogleService
}

// Build prepares the dependency graph and the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		OCR:    ocr.NewLocalClient(),
	}
	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:              app.Config,
		VerificationHandler: app.VerificationHandler,
		CredentialsHandler:  app.CredentialsHandler,
		UserHandler:         app.UsersHandler,
		GoogleAuth:          app.GoogleAuth,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) {
	var (
		verificationRepo verification.Repo
		docRepo          documents.Repo
		credRepo         credentials.Repo
		userRepo         users.Repo
		subRepo          subscriptions.Repo
		auditSink        audit.Sink
	)

	if app.DB != nil {
		verificationRepo = &verification.PGRepo{DB: app.DB}
		docRepo = &documents.PGRepo{DB: app.DB}
		credRepo = &credentials.PGRepo{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
		subRepo = &subscriptions.PGRepo{DB: app.DB}
		auditSink = &audit.PGSink{DB: app.DB}
	} else {
		verificationRepo = verification.NewMemoryRepo()
		docRepo = documents.NewMemoryRepo()
		credRepo = credentials.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
		subRepo = subscriptions.NewMemoryRepo()
		auditSink = audit.NewMemorySink()
	}

	auditLogger := &audit.Logger{Sink: auditSink}
	docSvc := &documents.Service{Repo: docRepo, Store: app.Store}
	credSvc := &credentials.Service{Repo: credRepo}
	userSvc := users.NewService(userRepo)

	verificationSvc := &verification.Service{
		Repo:            verificationRepo,
		Docs:            docSvc,
		OCR:             app.OCR,
		Credentials:     credSvc,
		Audit:           auditLogger,
		Extractor:       identity.Extractor{},
		Resolver:        identity.Resolver{},
		Matcher:         identity.Matcher{},
		PurgeOnDecision: app.Config.PurgeOnApproval,
	}

	app.VerificationRepo = verificationRepo
	app.DocumentsRepo = docRepo
	app.CredentialsRepo = credRepo
	app.UsersRepo = userRepo
	app.SubscriptionsRepo = subRepo
	app.AuditLogger = auditLogger
	app.DocumentsService = docSvc
	app.CredentialsService = credSvc
	app.VerificationService = verificationSvc
	app.UsersService = userSvc
	app.VerificationHandler = verification.NewHandler(verificationSvc, app.Config.ReviewerIDs)
	app.CredentialsHandler = credentials.NewHandler(credSvc)
	app.UsersHandler = users.NewHandler(userSvc)
	app.GoogleAuth = googleauth.NewGoogleService(
		app.Config.GoogleClientID,
		app.Config.GoogleClientSecret,
		app.Config.GoogleRedirectURL,
		app.Config.UIRedirectURL,
		userSvc,
	)
}
