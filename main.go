package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/openfield-hq/openfield-engine/pkg/config"
	"github.com/openfield-hq/openfield-engine/pkg/database"
	"github.com/openfield-hq/openfield-engine/pkg/handlers"
	"github.com/openfield-hq/openfield-engine/pkg/logging"
	"github.com/openfield-hq/openfield-engine/pkg/middleware"
	"github.com/openfield-hq/openfield-engine/pkg/repositories"
	"github.com/openfield-hq/openfield-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("bind_addr", cfg.BindAddr),
		zap.String("port", cfg.Port),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:             cfg.Database.ConnectionString(),
		MaxConnections:  cfg.Database.MaxConnections,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// golang-migrate works against database/sql, so borrow a stdlib
	// connection from the pool for the migration run.
	migrationDB := stdlib.OpenDBFromPool(db.Pool)
	if err := database.RunMigrations(migrationDB, "migrations", logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	if err := migrationDB.Close(); err != nil {
		logger.Warn("Failed to close migration connection", zap.Error(err))
	}

	// Repositories
	coverageRepo := repositories.NewCoverageRepository(db.Pool)
	facilityRepo := repositories.NewFacilityRepository(db.Pool)
	projectRepo := repositories.NewProjectRepository(db.Pool)
	templateRepo := repositories.NewTemplateRepository(db.Pool)
	enumeratorRepo := repositories.NewEnumeratorRepository(db.Pool)
	supervisorRepo := repositories.NewSupervisorRepository(db.Pool)
	assignmentRepo := repositories.NewAssignmentRepository(db.Pool)
	submissionRepo := repositories.NewSubmissionRepository(db.Pool)
	auditRepo := repositories.NewAuditRepository(db.Pool)

	// Services
	auditService := services.NewAuditService(auditRepo, logger)
	coverageService := services.NewCoverageService(coverageRepo, logger)
	directoryService := services.NewDirectoryService(projectRepo, enumeratorRepo, facilityRepo, logger)
	assignmentService := services.NewAssignmentService(
		db, assignmentRepo, projectRepo, enumeratorRepo, facilityRepo,
		templateRepo, coverageRepo, auditService, cfg.AssignmentCodeKey, logger)
	submissionService := services.NewSubmissionService(
		db, submissionRepo, assignmentRepo, projectRepo, templateRepo,
		enumeratorRepo, facilityRepo, auditService, cfg.AssignmentCodeKey,
		cfg.Intake.MaxAnswersPerSubmission, logger)
	qaService := services.NewQAService(submissionRepo, templateRepo, auditService, logger)

	mux := http.NewServeMux()

	// Register handlers
	healthHandler := handlers.NewHealthHandler(cfg)
	healthHandler.RegisterRoutes(mux)

	coverageHandler := handlers.NewCoverageHandler(coverageService, logger)
	coverageHandler.RegisterRoutes(mux)

	directoryHandler := handlers.NewDirectoryHandler(directoryService, logger)
	directoryHandler.RegisterRoutes(mux)

	assignmentsHandler := handlers.NewAssignmentsHandler(assignmentService, logger)
	assignmentsHandler.RegisterRoutes(mux)

	submissionsHandler := handlers.NewSubmissionsHandler(submissionService, qaService, auditService, logger)
	submissionsHandler.RegisterRoutes(mux)

	mux.Handle("GET /metrics", middleware.MetricsHandler())

	handler := middleware.Metrics()(
		middleware.ResolveActor(supervisorRepo, logger)(
			middleware.RequestLogger(logger)(mux)))

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting openfield-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
