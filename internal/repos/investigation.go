package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/types"
)

// InvestigationFilter narrows investigation listings; zero values mean "no filter".
type InvestigationFilter struct {
	Status         string
	AssignmentType string
	ExpertID       uint
	SearchText     string
}

type InvestigationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, record *types.Investigation) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Investigation, error)
	GetByCaseNumber(ctx context.Context, tx *gorm.DB, caseNumber string) (*types.Investigation, error)
	List(ctx context.Context, tx *gorm.DB, filter InvestigationFilter) ([]*types.Investigation, error)
	Save(ctx context.Context, tx *gorm.DB, record *types.Investigation) error
}

type investigationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInvestigationRepo(db *gorm.DB, baseLog *logger.Logger) InvestigationRepo {
	repoLog := baseLog.With("repo", "InvestigationRepo")
	return &investigationRepo{db: db, log: repoLog}
}

func (ir *investigationRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ir.db
}

func (ir *investigationRepo) Create(ctx context.Context, tx *gorm.DB, record *types.Investigation) error {
	return ir.conn(tx).WithContext(ctx).Create(record).Error
}

func (ir *investigationRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Investigation, error) {
	var record types.Investigation
	err := ir.conn(tx).WithContext(ctx).First(&record, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (ir *investigationRepo) GetByCaseNumber(ctx context.Context, tx *gorm.DB, caseNumber string) (*types.Investigation, error) {
	var record types.Investigation
	err := ir.conn(tx).WithContext(ctx).
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

func (ir *investigationRepo) List(ctx context.Context, tx *gorm.DB, filter InvestigationFilter) ([]*types.Investigation, error) {
	q := ir.conn(tx).WithContext(ctx).Model(&types.Investigation{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.AssignmentType != "" {
		q = q.Where("assignment_type = ?", filter.AssignmentType)
	}
	if filter.ExpertID != 0 {
		q = q.Where("expert1_id = ? OR expert2_id = ? OR assigned_expert_id = ?", filter.ExpertID, filter.ExpertID, filter.ExpertID)
	}
	if filter.SearchText != "" {
		pattern := "%" + filter.SearchText + "%"
		q = q.Where("case_number LIKE ? OR subject_name LIKE ? OR external_case_number LIKE ? OR taj_number LIKE ?", pattern, pattern, pattern, pattern)
	}
	var results []*types.Investigation
	if err := q.Order("registration_time DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ir *investigationRepo) Save(ctx context.Context, tx *gorm.DB, record *types.Investigation) error {
	return ir.conn(tx).WithContext(ctx).Save(record).Error
}

type InvestigationNoteRepo interface {
	Create(ctx context.Context, tx *gorm.DB, note *types.InvestigationNote) error
	ListByInvestigation(ctx context.Context, tx *gorm.DB, investigationID uint) ([]*types.InvestigationNote, error)
}

type investigationNoteRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInvestigationNoteRepo(db *gorm.DB, baseLog *logger.Logger) InvestigationNoteRepo {
	repoLog := baseLog.With("repo", "InvestigationNoteRepo")
	return &investigationNoteRepo{db: db, log: repoLog}
}

func (nr *investigationNoteRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return nr.db
}

func (nr *investigationNoteRepo) Create(ctx context.Context, tx *gorm.DB, note *types.InvestigationNote) error {
	return nr.conn(tx).WithContext(ctx).Create(note).Error
}

func (nr *investigationNoteRepo) ListByInvestigation(ctx context.Context, tx *gorm.DB, investigationID uint) ([]*types.InvestigationNote, error) {
	var results []*types.InvestigationNote
	err := nr.conn(tx).WithContext(ctx).
		Where("investigation_id = ?", investigationID).
		Order("timestamp DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

type InvestigationAttachmentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, attachment *types.InvestigationAttachment) error
	ListByInvestigation(ctx context.Context, tx *gorm.DB, investigationID uint) ([]*types.InvestigationAttachment, error)
	Exists(ctx context.Context, tx *gorm.DB, investigationID uint, filename string) (bool, error)
}

type investigationAttachmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInvestigationAttachmentRepo(db *gorm.DB, baseLog *logger.Logger) InvestigationAttachmentRepo {
	repoLog := baseLog.With("repo", "InvestigationAttachmentRepo")
	return &investigationAttachmentRepo{db: db, log: repoLog}
}

func (ar *investigationAttachmentRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ar.db
}

func (ar *investigationAttachmentRepo) Create(ctx context.Context, tx *gorm.DB, attachment *types.InvestigationAttachment) error {
	return ar.conn(tx).WithContext(ctx).Create(attachment).Error
}

func (ar *investigationAttachmentRepo) ListByInvestigation(ctx context.Context, tx *gorm.DB, investigationID uint) ([]*types.InvestigationAttachment, error) {
	var results []*types.InvestigationAttachment
	err := ar.conn(tx).WithContext(ctx).
		Where("investigation_id = ?", investigationID).
		Order("uploaded_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (ar *investigationAttachmentRepo) Exists(ctx context.Context, tx *gorm.DB, investigationID uint, filename string) (bool, error) {
	var count int64
	err := ar.conn(tx).WithContext(ctx).
		Model(&types.InvestigationAttachment{}).
		Where("investigation_id = ? AND filename = ?", investigationID, filename).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
