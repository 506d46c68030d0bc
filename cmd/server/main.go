package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PR1MKO/iktato-backend/internal/config"
	"github.com/PR1MKO/iktato-backend/internal/db"
	"github.com/PR1MKO/iktato-backend/internal/handlers"
	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/middleware"
	"github.com/PR1MKO/iktato-backend/internal/repos"
	"github.com/PR1MKO/iktato-backend/internal/server"
	"github.com/PR1MKO/iktato-backend/internal/services"
)

func main() {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Loading configuration from main...")
	cfg := config.Load(log)
	if err := cfg.EnsureDirs(); err != nil {
		log.Error("Could not create instance directories", "error", err)
		os.Exit(1)
	}

	log.Info("Opening storage binds from main...")
	dbService, err := db.New(cfg.PrimaryDBPath, cfg.ExaminationDBPath, log)
	if err != nil {
		log.Error("Storage init failed", "error", err)
		os.Exit(1)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Error("Auto migration failed", "error", err)
		os.Exit(1)
	}
	primary := dbService.Primary()
	examination := dbService.Examination()

	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(primary, log)
	caseRepo := repos.NewCaseRepo(primary, log)
	attachmentRepo := repos.NewAttachmentRepo(primary, log)
	changeLogRepo := repos.NewChangeLogRepo(primary, log)
	idempotencyRepo := repos.NewIdempotencyRepo(primary, log)
	taskMessageRepo := repos.NewTaskMessageRepo(primary, log)
	auditActionRepo := repos.NewAuditActionRepo(primary, log)
	investigationRepo := repos.NewInvestigationRepo(examination, log)
	investigationNoteRepo := repos.NewInvestigationNoteRepo(examination, log)
	investigationAttachmentRepo := repos.NewInvestigationAttachmentRepo(examination, log)
	investigationChangeLogRepo := repos.NewInvestigationChangeLogRepo(examination, log)

	log.Info("Setting up Services from main...")
	authService := services.NewAuthService(primary, log, userRepo, cfg.JWTSecretKey, cfg.AccessTokenTTL)
	idempotencyService := services.NewIdempotencyService(primary, log, idempotencyRepo, cfg.IdempotencyTTL)
	casesService := services.NewCasesService(
		primary, log,
		caseRepo, userRepo, attachmentRepo, changeLogRepo, taskMessageRepo,
		idempotencyService,
		cfg.CaseUploadRoot, cfg.TemplateSourceDir, cfg.MaxContentLength,
	)
	investigationsService := services.NewInvestigationsService(
		examination, log,
		investigationRepo, investigationNoteRepo, investigationAttachmentRepo, userRepo,
		cfg.InvestigationUploadRoot, cfg.MaxContentLength,
	)
	documentsService := services.NewDocumentsService(primary, log, casesService, caseRepo, attachmentRepo, idempotencyService)
	changeLogService := services.NewChangeLogService(log, changeLogRepo, investigationChangeLogRepo, caseRepo, investigationRepo, userRepo)
	tasksService := services.NewTasksService(primary, log, taskMessageRepo, auditActionRepo)

	log.Info("Setting up Handlers from main...")
	authHandler := handlers.NewAuthHandler(log, authService)
	casesHandler := handlers.NewCasesHandler(log, casesService, documentsService, idempotencyService)
	investigationsHandler := handlers.NewInvestigationsHandler(log, investigationsService)
	adminHandler := handlers.NewAdminHandler(log, authService, casesService, changeLogService, tasksService, userRepo)
	dashboardHandler := handlers.NewDashboardHandler(log, casesService, tasksService, caseRepo, cfg.DeadlineWarnDays)

	authMiddleware := middleware.NewAuthMiddleware(log, authService)
	securityHeaders := middleware.NewSecurityHeaders(cfg.PreferHTTPS)

	router := server.NewRouter(server.RouterConfig{
		AuthHandler:           authHandler,
		CasesHandler:          casesHandler,
		InvestigationsHandler: investigationsHandler,
		AdminHandler:          adminHandler,
		DashboardHandler:      dashboardHandler,
		AuthMiddleware:        authMiddleware,
		SecurityHeaders:       securityHeaders,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}
