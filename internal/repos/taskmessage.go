package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/types"
)

type TaskMessageRepo interface {
	Create(ctx context.Context, tx *gorm.DB, msg *types.TaskMessage) error
	ListPendingForUser(ctx context.Context, tx *gorm.DB, userID uint) ([]*types.TaskMessage, error)
	MarkSeen(ctx context.Context, tx *gorm.DB, userID, caseID uint) error
}

type taskMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskMessageRepo(db *gorm.DB, baseLog *logger.Logger) TaskMessageRepo {
	repoLog := baseLog.With("repo", "TaskMessageRepo")
	return &taskMessageRepo{db: db, log: repoLog}
}

func (tr *taskMessageRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return tr.db
}

func (tr *taskMessageRepo) Create(ctx context.Context, tx *gorm.DB, msg *types.TaskMessage) error {
	return tr.conn(tx).WithContext(ctx).Create(msg).Error
}

func (tr *taskMessageRepo) ListPendingForUser(ctx context.Context, tx *gorm.DB, userID uint) ([]*types.TaskMessage, error) {
	var results []*types.TaskMessage
	if err := tr.conn(tx).WithContext(ctx).
		Where("user_id = ? AND seen = ?", userID, false).
		Order("timestamp DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// MarkSeen consumes every pending message for the user on one case.
func (tr *taskMessageRepo) MarkSeen(ctx context.Context, tx *gorm.DB, userID, caseID uint) error {
	return tr.conn(tx).WithContext(ctx).
		Model(&types.TaskMessage{}).
		Where("user_id = ? AND case_id = ? AND seen = ?", userID, caseID, false).
		Update("seen", true).Error
}
