package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/repos"
	"github.com/PR1MKO/iktato-backend/internal/roles"
	"github.com/PR1MKO/iktato-backend/internal/timeutil"
	"github.com/PR1MKO/iktato-backend/internal/workflow"
)

type DeadlineService interface {
	// ScanAndWarn mails admins a summary of non-final cases whose deadline
	// falls within the warn window. Returns the number of cases found.
	ScanAndWarn(ctx context.Context) (int, error)
	// AutoCloseStale flips every live case past its deadline to expired.
	AutoCloseStale(ctx context.Context) (int, error)
}

type deadlineService struct {
	db       *gorm.DB
	log      *logger.Logger
	caseRepo repos.CaseRepo
	userRepo repos.UserRepo
	tasks    TasksService
	mailer   Mailer
	warnDays int
}

func NewDeadlineService(
	db *gorm.DB,
	log *logger.Logger,
	caseRepo repos.CaseRepo,
	userRepo repos.UserRepo,
	tasks TasksService,
	mailer Mailer,
	warnDays int,
) DeadlineService {
	serviceLog := log.With("service", "DeadlineService")
	if warnDays <= 0 {
		warnDays = 14
	}
	return &deadlineService{
		db:       db,
		log:      serviceLog,
		caseRepo: caseRepo,
		userRepo: userRepo,
		tasks:    tasks,
		mailer:   mailer,
		warnDays: warnDays,
	}
}

func (ds *deadlineService) ScanAndWarn(ctx context.Context) (int, error) {
	now := timeutil.NowUTC()
	due, err := ds.caseRepo.ListDueWithin(ctx, nil, now, now.Add(time.Duration(ds.warnDays)*24*time.Hour))
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}
	admins, err := ds.userRepo.ListByRole(ctx, nil, string(roles.RoleAdmin))
	if err != nil {
		return 0, err
	}
	var recipients []string
	for _, admin := range admins {
		if strings.Contains(admin.Username, "@") {
			recipients = append(recipients, admin.Username)
		}
	}
	var lines []string
	for _, record := range due {
		lines = append(lines, fmt.Sprintf("%s – határidő: %s (státusz: %s)",
			record.CaseNumber,
			timeutil.FmtBudapest(record.Deadline, timeutil.DefaultLayout),
			record.Status))
	}
	subject := fmt.Sprintf("Határidő-figyelmeztetés: %d ügy %d napon belül", len(due), ds.warnDays)
	if err := ds.mailer.Send(recipients, subject, strings.Join(lines, "\n")); err != nil {
		ds.log.Error("deadline warning mail failed", "error", err)
	}
	if err := ds.tasks.LogAction(ctx, "deadline_scan", fmt.Sprintf("%d cases due within %d days", len(due), ds.warnDays)); err != nil {
		ds.log.Error("deadline scan action log failed", "error", err)
	}
	ds.log.Info("deadline scan complete", "due", len(due), "warn_days", ds.warnDays)
	return len(due), nil
}

func (ds *deadlineService) AutoCloseStale(ctx context.Context) (int, error) {
	now := timeutil.NowUTC()
	stale, err := ds.caseRepo.ListPastDeadline(ctx, nil, now)
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, record := range stale {
		if !workflow.CanTransition(record.Status, workflow.StatusExpired) {
			continue
		}
		record := record
		err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			record.Status = workflow.StatusExpired
			return ds.caseRepo.Save(ctx, tx, record)
		})
		if err != nil {
			ds.log.Error("auto-close failed", "case_number", record.CaseNumber, "error", err)
			continue
		}
		closed++
	}
	if closed > 0 {
		if err := ds.tasks.LogAction(ctx, "auto_close_stale", fmt.Sprintf("%d cases expired", closed)); err != nil {
			ds.log.Error("auto-close action log failed", "error", err)
		}
	}
	return closed, nil
}
