package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/PR1MKO/iktato-backend/internal/actor"
	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/repos"
	"github.com/PR1MKO/iktato-backend/internal/timeutil"
	"github.com/PR1MKO/iktato-backend/internal/types"
)

type TasksService interface {
	PendingForUser(ctx context.Context, userID uint) ([]*types.TaskMessage, error)
	LogAction(ctx context.Context, action, details string) error
	RecentActions(ctx context.Context, limit int) ([]*types.AuditAction, error)
}

type tasksService struct {
	db         *gorm.DB
	log        *logger.Logger
	taskRepo   repos.TaskMessageRepo
	actionRepo repos.AuditActionRepo
}

func NewTasksService(db *gorm.DB, log *logger.Logger, taskRepo repos.TaskMessageRepo, actionRepo repos.AuditActionRepo) TasksService {
	serviceLog := log.With("service", "TasksService")
	return &tasksService{
		db:         db,
		log:        serviceLog,
		taskRepo:   taskRepo,
		actionRepo: actionRepo,
	}
}

func (ts *tasksService) PendingForUser(ctx context.Context, userID uint) ([]*types.TaskMessage, error) {
	if userID == 0 {
		return nil, fmt.Errorf("no user: %w", ErrValidation)
	}
	return ts.taskRepo.ListPendingForUser(ctx, nil, userID)
}

// LogAction writes a coarse audit trail entry for actions that do not map to
// a single column change (login, export, scheduled jobs).
func (ts *tasksService) LogAction(ctx context.Context, action, details string) error {
	act, _ := actor.FromContext(ctx)
	entry := &types.AuditAction{
		Timestamp: timeutil.NowUTC(),
		UserID:    act.UserID,
		Username:  act.Username,
		Role:      act.Role,
		Action:    action,
		Details:   details,
	}
	if entry.Username == "" {
		entry.Username = "system"
	}
	return ts.actionRepo.Create(ctx, nil, entry)
}

func (ts *tasksService) RecentActions(ctx context.Context, limit int) ([]*types.AuditAction, error) {
	return ts.actionRepo.ListRecent(ctx, nil, limit)
}
