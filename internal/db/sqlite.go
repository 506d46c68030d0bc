package db

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/PR1MKO/iktato-backend/internal/actor"
	"github.com/PR1MKO/iktato-backend/internal/audit"
	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/types"
)

// Service owns the two logically independent binds. There are no cross-bind
// foreign keys; user references on the examination bind are bare integers.
type Service struct {
	primary     *gorm.DB
	examination *gorm.DB
	log         *logger.Logger
}

func New(primaryPath, examinationPath string, log *logger.Logger) (*Service, error) {
	serviceLog := log.With("service", "DBService")

	serviceLog.Info("Opening primary bind", "path", primaryPath)
	primary, err := open(primaryPath)
	if err != nil {
		return nil, fmt.Errorf("open primary bind: %w", err)
	}
	if err := primary.Use(audit.NewPlugin("primary", primaryChangeRow)); err != nil {
		return nil, fmt.Errorf("install primary audit plugin: %w", err)
	}

	serviceLog.Info("Opening examination bind", "path", examinationPath)
	examination, err := open(examinationPath)
	if err != nil {
		return nil, fmt.Errorf("open examination bind: %w", err)
	}
	if err := examination.Use(audit.NewPlugin("examination", examinationChangeRow)); err != nil {
		return nil, fmt.Errorf("install examination audit plugin: %w", err)
	}

	return &Service{primary: primary, examination: examination, log: serviceLog}, nil
}

func open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	// Serialized writers behave better on sqlite with a busy timeout.
	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		return nil, err
	}
	return db, nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating primary bind tables...")
	if err := s.primary.AutoMigrate(
		&types.User{},
		&types.Case{},
		&types.CaseAttachment{},
		&types.ChangeLog{},
		&types.AuditAction{},
		&types.IdempotencyToken{},
		&types.TaskMessage{},
	); err != nil {
		return fmt.Errorf("primary bind migration: %w", err)
	}
	s.log.Info("Auto migrating examination bind tables...")
	if err := s.examination.AutoMigrate(
		&types.Investigation{},
		&types.InvestigationNote{},
		&types.InvestigationAttachment{},
		&types.InvestigationChangeLog{},
	); err != nil {
		return fmt.Errorf("examination bind migration: %w", err)
	}
	return nil
}

func (s *Service) Primary() *gorm.DB {
	return s.primary
}

func (s *Service) Examination() *gorm.DB {
	return s.examination
}

func primaryChangeRow(parentID uint, field, oldValue, newValue string, act actor.Actor, ts time.Time) interface{} {
	return &types.ChangeLog{
		CaseID:    parentID,
		FieldName: field,
		OldValue:  oldValue,
		NewValue:  newValue,
		EditedBy:  act.DisplayName(),
		Timestamp: ts,
	}
}

func examinationChangeRow(parentID uint, field, oldValue, newValue string, act actor.Actor, ts time.Time) interface{} {
	return &types.InvestigationChangeLog{
		InvestigationID: parentID,
		FieldName:       field,
		OldValue:        oldValue,
		NewValue:        newValue,
		EditedBy:        act.UserID,
		Timestamp:       ts,
	}
}
