package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/types"
)

// CaseFilter narrows case listings; zero values mean "no filter".
type CaseFilter struct {
	Status       string
	ExpertLabel  string
	SearchText   string
	DeadlineFrom time.Time
	DeadlineTo   time.Time
}

type CaseRepo interface {
	Create(ctx context.Context, tx *gorm.DB, record *types.Case) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Case, error)
	GetByCaseNumber(ctx context.Context, tx *gorm.DB, caseNumber string) (*types.Case, error)
	List(ctx context.Context, tx *gorm.DB, filter CaseFilter) ([]*types.Case, error)
	Save(ctx context.Context, tx *gorm.DB, record *types.Case) error
	Delete(ctx context.Context, tx *gorm.DB, record *types.Case) error
	CountDueWithin(ctx context.Context, tx *gorm.DB, from, to time.Time) (int64, error)
	ListDueWithin(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]*types.Case, error)
	ListPastDeadline(ctx context.Context, tx *gorm.DB, now time.Time) ([]*types.Case, error)
}

type caseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCaseRepo(db *gorm.DB, baseLog *logger.Logger) CaseRepo {
	repoLog := baseLog.With("repo", "CaseRepo")
	return &caseRepo{db: db, log: repoLog}
}

func (cr *caseRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return cr.db
}

func (cr *caseRepo) Create(ctx context.Context, tx *gorm.DB, record *types.Case) error {
	return cr.conn(tx).WithContext(ctx).Create(record).Error
}

func (cr *caseRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Case, error) {
	var record types.Case
	err := cr.conn(tx).WithContext(ctx).First(&record, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (cr *caseRepo) GetByCaseNumber(ctx context.Context, tx *gorm.DB, caseNumber string) (*types.Case, error) {
	var record types.Case
	err := cr.conn(tx).WithContext(ctx).
		Where("case_number = ?", caseNumber).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (cr *caseRepo) List(ctx context.Context, tx *gorm.DB, filter CaseFilter) ([]*types.Case, error) {
	q := cr.conn(tx).WithContext(ctx).Model(&types.Case{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.ExpertLabel != "" {
		q = q.Where("expert_1 = ? OR expert_2 = ?", filter.ExpertLabel, filter.ExpertLabel)
	}
	if filter.SearchText != "" {
		pattern := "%" + filter.SearchText + "%"
		q = q.Where("case_number LIKE ? OR deceased_name LIKE ? OR external_case_number LIKE ?", pattern, pattern, pattern)
	}
	if !filter.DeadlineFrom.IsZero() {
		q = q.Where("deadline >= ?", filter.DeadlineFrom)
	}
	if !filter.DeadlineTo.IsZero() {
		q = q.Where("deadline <= ?", filter.DeadlineTo)
	}
	var results []*types.Case
	if err := q.Order("registration_time DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *caseRepo) Save(ctx context.Context, tx *gorm.DB, record *types.Case) error {
	return cr.conn(tx).WithContext(ctx).Save(record).Error
}

func (cr *caseRepo) Delete(ctx context.Context, tx *gorm.DB, record *types.Case) error {
	return cr.conn(tx).WithContext(ctx).Delete(record).Error
}

func (cr *caseRepo) CountDueWithin(ctx context.Context, tx *gorm.DB, from, to time.Time) (int64, error) {
	var count int64
	err := cr.dueWithin(ctx, tx, from, to).Count(&count).Error
	return count, err
}

func (cr *caseRepo) ListDueWithin(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]*types.Case, error) {
	var results []*types.Case
	err := cr.dueWithin(ctx, tx, from, to).Order("deadline").Find(&results).Error
	return results, err
}

func (cr *caseRepo) dueWithin(ctx context.Context, tx *gorm.DB, from, to time.Time) *gorm.DB {
	return cr.conn(tx).WithContext(ctx).
		Model(&types.Case{}).
		Where("deadline >= ? AND deadline <= ?", from, to).
		Where("status NOT IN ?", []string{"closed", "expired", "rejected", "postmail", "invoice-arrived", "police-forwarded"})
}

func (cr *caseRepo) ListPastDeadline(ctx context.Context, tx *gorm.DB, now time.Time) ([]*types.Case, error) {
	var results []*types.Case
	err := cr.conn(tx).WithContext(ctx).
		Where("deadline < ?", now).
		Where("status NOT IN ?", []string{"closed", "expired", "rejected", "postmail", "invoice-arrived", "police-forwarded"}).
		Find(&results).Error
	return results, err
}
