package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/types"
)

type AuditActionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, entry *types.AuditAction) error
	ListRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.AuditAction, error)
}

type auditActionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuditActionRepo(db *gorm.DB, baseLog *logger.Logger) AuditActionRepo {
	repoLog := baseLog.With("repo", "AuditActionRepo")
	return &auditActionRepo{db: db, log: repoLog}
}

func (ar *auditActionRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ar.db
}

func (ar *auditActionRepo) Create(ctx context.Context, tx *gorm.DB, entry *types.AuditAction) error {
	return ar.conn(tx).WithContext(ctx).Create(entry).Error
}

func (ar *auditActionRepo) ListRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.AuditAction, error) {
	if limit <= 0 {
		limit = 100
	}
	var results []*types.AuditAction
	if err := ar.conn(tx).WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
