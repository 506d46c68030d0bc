package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PR1MKO/iktato-backend/internal/config"
	"github.com/PR1MKO/iktato-backend/internal/db"
	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/repos"
	"github.com/PR1MKO/iktato-backend/internal/services"
)

// The scheduler runs the deadline scan and stale-case auto-close on a
// per-minute tick, as a process separate from the HTTP server.
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

	cfg := config.Load(log)
	dbService, err := db.New(cfg.PrimaryDBPath, cfg.ExaminationDBPath, log)
	if err != nil {
		log.Error("Storage init failed", "error", err)
		os.Exit(1)
	}
	primary := dbService.Primary()

	userRepo := repos.NewUserRepo(primary, log)
	caseRepo := repos.NewCaseRepo(primary, log)
	taskMessageRepo := repos.NewTaskMessageRepo(primary, log)
	auditActionRepo := repos.NewAuditActionRepo(primary, log)

	tasksService := services.NewTasksService(primary, log, taskMessageRepo, auditActionRepo)
	mailer := services.NewSMTPMailer(log, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailSender)
	deadlineService := services.NewDeadlineService(primary, log, caseRepo, userRepo, tasksService, mailer, cfg.DeadlineWarnDays)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	log.Info("Scheduler started", "warn_days", cfg.DeadlineWarnDays)
	for {
		select {
		case <-ctx.Done():
			log.Info("Scheduler stopping")
			return
		case <-ticker.C:
			if _, err := deadlineService.ScanAndWarn(ctx); err != nil {
				log.Error("Deadline scan failed", "error", err)
			}
			if closed, err := deadlineService.AutoCloseStale(ctx); err != nil {
				log.Error("Auto-close failed", "error", err)
			} else if closed > 0 {
				log.Info("Stale cases expired", "count", closed)
			}
		}
	}
}
