package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"docextract-backend/internal/audit"
	"docextract-backend/internal/documents"
	"docextract-backend/internal/extractions"
	"docextract-backend/internal/llm"
	"docextract-backend/internal/llm/gemini"
	"docextract-backend/internal/processing"
	"docextract-backend/internal/retrieve"
	"docextract-backend/internal/schema"
	"docextract-backend/internal/settings"
	"docextract-backend/internal/shared/config"
	"docextract-backend/internal/shared/server"
	"docextract-backend/internal/shared/server/middleware"
	"docextract-backend/internal/shared/storage/db"
	"docextract-backend/internal/shared/storage/object"
	localstore "docextract-backend/internal/shared/storage/object/local"
	miniostore "docextract-backend/internal/shared/storage/object/minio"
	s3store "docextract-backend/internal/shared/storage/object/s3"
)

// App holds the fully wired application.
type App struct {
	Config  config.Config
	Router  *gin.Engine
	DB      *sql.DB
	Store   object.ObjectStore
	Limiter *middleware.Limiter

	DocumentsRepo   documents.Repo
	ExtractionsRepo extractions.Repo
	SettingsRepo    settings.Repo
	AuditSink       *audit.Sink

	DocumentsService  *documents.Service
	SettingsService   *settings.Service
	ProcessingService *processing.Service
}

// Build prepares all dependencies and the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
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
	}
	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:             cfg,
		Limiter:            app.Limiter,
		AuditSink:          app.AuditSink,
		DocumentsHandler:   documents.NewHandler(app.DocumentsService, app.AuditSink),
		ProcessingHandler:  processing.NewHandler(app.ProcessingService),
		SettingsHandler:    settings.NewHandler(app.SettingsService, app.AuditSink),
		ExtractionsHandler: extractions.NewHandler(app.ExtractionsRepo, app.DocumentsService),
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

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
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
		if strings.TrimSpace(cfg.AWSRegion) == "" || strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires AWS_REGION and S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	case "minio":
		return miniostore.New(ctx, miniostore.Options{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildServices(app *App) error {
	cfg := app.Config

	if app.DB != nil {
		app.DocumentsRepo = &documents.PGRepo{DB: app.DB}
		app.ExtractionsRepo = &extractions.PGRepo{DB: app.DB}
		app.SettingsRepo = &settings.PGRepo{DB: app.DB}
		app.AuditSink = audit.NewSink(&audit.PGRepo{DB: app.DB})
	} else {
		app.DocumentsRepo = documents.NewMemoryRepo()
		app.ExtractionsRepo = extractions.NewMemoryRepo()
		app.SettingsRepo = settings.NewMemoryRepo()
		app.AuditSink = audit.NewSink(audit.NewMemoryRepo())
	}

	app.Limiter = middleware.NewLimiter(cfg.RateLimitMax, cfg.RateLimitWindow, nil)

	var llmClient llm.Client = llm.PlaceholderClient{}
	if cfg.GeminiAPIKey != "" {
		client, err := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return err
		}
		llmClient = client
	} else if !isDevLike(cfg.Env) {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}

	app.DocumentsService = &documents.Service{
		Store:         app.Store,
		Repo:          app.DocumentsRepo,
		MaxFileSizeMB: cfg.MaxFileSizeMB,
	}
	app.SettingsService = &settings.Service{
		Repo:             app.SettingsRepo,
		EncryptionSecret: cfg.EncryptionSecret,
	}
	app.ProcessingService = &processing.Service{
		Docs:             app.DocumentsRepo,
		Extractions:      app.ExtractionsRepo,
		Settings:         app.SettingsRepo,
		Audit:            app.AuditSink,
		Retriever:        retrieve.NewRetriever(app.Store),
		Schema:           schema.NewFetcher(),
		LLM:              llmClient,
		EncryptionSecret: cfg.EncryptionSecret,
		FallbackAPIKey:   cfg.NotionAPIKey,
		MaxFileSizeMB:    cfg.MaxFileSizeMB,
	}

	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "test":
		return true
	default:
		return false
	}
}
