package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/types"
)

// ChangeLogFilter narrows changelog reads on either bind.
type ChangeLogFilter struct {
	SubjectID uint
	Actor     string
	From      time.Time
	To        time.Time
}

type ChangeLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.ChangeLog) error
	ListByCase(ctx context.Context, tx *gorm.DB, caseID uint, limit int) ([]*types.ChangeLog, error)
	List(ctx context.Context, tx *gorm.DB, filter ChangeLogFilter) ([]*types.ChangeLog, error)
}

type changeLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChangeLogRepo(db *gorm.DB, baseLog *logger.Logger) ChangeLogRepo {
	repoLog := baseLog.With("repo", "ChangeLogRepo")
	return &changeLogRepo{db: db, log: repoLog}
}

func (clr *changeLogRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return clr.db
}

func (clr *changeLogRepo) Create(ctx context.Context, tx *gorm.DB, row *types.ChangeLog) error {
	return clr.conn(tx).WithContext(ctx).Create(row).Error
}

func (clr *changeLogRepo) ListByCase(ctx context.Context, tx *gorm.DB, caseID uint, limit int) ([]*types.ChangeLog, error) {
	q := clr.conn(tx).WithContext(ctx).
		Where("case_id = ?", caseID).
		Order("timestamp DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var results []*types.ChangeLog
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (clr *changeLogRepo) List(ctx context.Context, tx *gorm.DB, filter ChangeLogFilter) ([]*types.ChangeLog, error) {
	q := clr.conn(tx).WithContext(ctx).Model(&types.ChangeLog{})
	if filter.SubjectID != 0 {
		q = q.Where("case_id = ?", filter.SubjectID)
	}
	if filter.Actor != "" {
		q = q.Where("edited_by LIKE ?", "%"+filter.Actor+"%")
	}
	if !filter.From.IsZero() {
		q = q.Where("timestamp >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("timestamp < ?", filter.To)
	}
	var results []*types.ChangeLog
	if err := q.Order("timestamp DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

type InvestigationChangeLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.InvestigationChangeLog) error
	ListByInvestigation(ctx context.Context, tx *gorm.DB, investigationID uint, limit int) ([]*types.InvestigationChangeLog, error)
	List(ctx context.Context, tx *gorm.DB, filter ChangeLogFilter) ([]*types.InvestigationChangeLog, error)
}

type investigationChangeLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInvestigationChangeLogRepo(db *gorm.DB, baseLog *logger.Logger) InvestigationChangeLogRepo {
	repoLog := baseLog.With("repo", "InvestigationChangeLogRepo")
	return &investigationChangeLogRepo{db: db, log: repoLog}
}

func (r *investigationChangeLogRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *investigationChangeLogRepo) Create(ctx context.Context, tx *gorm.DB, row *types.InvestigationChangeLog) error {
	return r.conn(tx).WithContext(ctx).Create(row).Error
}

func (r *investigationChangeLogRepo) ListByInvestigation(ctx context.Context, tx *gorm.DB, investigationID uint, limit int) ([]*types.InvestigationChangeLog, error) {
	q := r.conn(tx).WithContext(ctx).
		Where("investigation_id = ?", investigationID).
		Order("timestamp DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var results []*types.InvestigationChangeLog
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// List ignores the Actor filter at the SQL level: examination rows store bare
// user ids, which the service resolves to display names before matching.
func (r *investigationChangeLogRepo) List(ctx context.Context, tx *gorm.DB, filter ChangeLogFilter) ([]*types.InvestigationChangeLog, error) {
	q := r.conn(tx).WithContext(ctx).Model(&types.InvestigationChangeLog{})
	if filter.SubjectID != 0 {
		q = q.Where("investigation_id = ?", filter.SubjectID)
	}
	if !filter.From.IsZero() {
		q = q.Where("timestamp >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("timestamp < ?", filter.To)
	}
	var results []*types.InvestigationChangeLog
	if err := q.Order("timestamp DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
