package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/types"
)

type AttachmentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rec *types.CaseAttachment) error
	ListByCase(ctx context.Context, tx *gorm.DB, caseID uint) ([]*types.CaseAttachment, error)
	Exists(ctx context.Context, tx *gorm.DB, caseID uint, filename string) (bool, error)
}

type attachmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAttachmentRepo(db *gorm.DB, baseLog *logger.Logger) AttachmentRepo {
	repoLog := baseLog.With("repo", "AttachmentRepo")
	return &attachmentRepo{db: db, log: repoLog}
}

func (ar *attachmentRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ar.db
}

func (ar *attachmentRepo) Create(ctx context.Context, tx *gorm.DB, rec *types.CaseAttachment) error {
	return ar.conn(tx).WithContext(ctx).Create(rec).Error
}

func (ar *attachmentRepo) ListByCase(ctx context.Context, tx *gorm.DB, caseID uint) ([]*types.CaseAttachment, error) {
	var results []*types.CaseAttachment
	if err := ar.conn(tx).WithContext(ctx).
		Where("case_id = ?", caseID).
		Order("uploaded_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ar *attachmentRepo) Exists(ctx context.Context, tx *gorm.DB, caseID uint, filename string) (bool, error) {
	var count int64
	if err := ar.conn(tx).WithContext(ctx).
		Model(&types.CaseAttachment{}).
		Where("case_id = ? AND filename = ?", caseID, filename).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
