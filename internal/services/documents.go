package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/gorm"

	"github.com/PR1MKO/iktato-backend/internal/actor"
	"github.com/PR1MKO/iktato-backend/internal/docgen"
	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/repos"
	"github.com/PR1MKO/iktato-backend/internal/timeutil"
	"github.com/PR1MKO/iktato-backend/internal/types"
	"github.com/PR1MKO/iktato-backend/internal/workflow"
)

// Template names under the per-case DO-NOT-EDIT directory.
const (
	toxDocTemplate      = "Toxikologia-kirendelo"
	certificateTemplate = "Halottvizsgalati-bizonyitvany"
)

const categoryGenerated = "generated"

type DocumentsService interface {
	GenerateToxDoc(ctx context.Context, caseID uint, idemKey string) (*types.CaseAttachment, error)
	GenerateCertificate(ctx context.Context, caseID uint, idemKey string) (*types.CaseAttachment, error)
}

type documentsService struct {
	db         *gorm.DB
	log        *logger.Logger
	cases      CasesService
	caseRepo   repos.CaseRepo
	attachRepo repos.AttachmentRepo
	idem       IdempotencyService
}

func NewDocumentsService(
	db *gorm.DB,
	log *logger.Logger,
	cases CasesService,
	caseRepo repos.CaseRepo,
	attachRepo repos.AttachmentRepo,
	idem IdempotencyService,
) DocumentsService {
	serviceLog := log.With("service", "DocumentsService")
	return &documentsService{
		db:         db,
		log:        serviceLog,
		cases:      cases,
		caseRepo:   caseRepo,
		attachRepo: attachRepo,
		idem:       idem,
	}
}

func (ds *documentsService) GenerateToxDoc(ctx context.Context, caseID uint, idemKey string) (*types.CaseAttachment, error) {
	return ds.generate(ctx, caseID, idemKey, toxDocTemplate, "generate_tox_doc", func(record *types.Case, act actor.Actor) map[string]interface{} {
		return map[string]interface{}{
			"belso ugyirat":  record.CaseNumber,
			"kulso ugyirat":  record.ExternalCaseNumber,
			"intezmeny":      record.InstitutionName,
			"elhunyt":        record.DeceasedName,
			"szakerto":       record.Expert1,
			"toxi szakerto":  record.ToxExpert,
			"keszito":        act.DisplayName(),
			"keszites datum": timeutil.FmtBudapest(timeutil.NowUTC(), timeutil.NoteLayout),
			"megrendelesek":  record.ToxOrders,
		}
	}, func(record *types.Case, act actor.Actor) {
		now := timeutil.NowUTC()
		record.ToxDocGenerated = true
		record.ToxDocGeneratedAt = &now
		record.ToxDocGeneratedBy = act.DisplayName()
	})
}

func (ds *documentsService) GenerateCertificate(ctx context.Context, caseID uint, idemKey string) (*types.CaseAttachment, error) {
	return ds.generate(ctx, caseID, idemKey, certificateTemplate, "generate_certificate", func(record *types.Case, act actor.Actor) map[string]interface{} {
		describer, dErr := ds.cases.EffectiveDescriber(ctx, record)
		if dErr != nil {
			describer = ""
		}
		return map[string]interface{}{
			"belso ugyirat":  record.CaseNumber,
			"kulso ugyirat":  record.ExternalCaseNumber,
			"intezmeny":      record.InstitutionName,
			"elhunyt":        record.DeceasedName,
			"szakerto":       record.Expert1,
			"jkv.vezeto":     describer,
			"keszito":        act.DisplayName(),
			"keszites datum": timeutil.FmtBudapest(timeutil.NowUTC(), timeutil.NoteLayout),
			"kozvetlen ok":   record.DirectCause,
			"alapbetegseg":   record.UnderlyingDisease,
			"kiserobetegseg": record.ContributingDiseases,
		}
	}, func(record *types.Case, act actor.Actor) {
		now := timeutil.NowUTC()
		record.CertificateGenerated = true
		record.CertificateGeneratedAt = &now
	})
}

// generate renders the named template into the case folder and registers the
// result as a generated attachment. On any failure the DB transaction rolls
// back and the partial output is removed; the render step already cleans up
// its own temp file.
func (ds *documentsService) generate(
	ctx context.Context,
	caseID uint,
	idemKey string,
	template string,
	route string,
	buildValues func(*types.Case, actor.Actor) map[string]interface{},
	stamp func(*types.Case, actor.Actor),
) (*types.CaseAttachment, error) {
	act, _ := actor.FromContext(ctx)
	var attachment *types.CaseAttachment
	var outputPath string
	err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if idemKey != "" {
			if cErr := ds.idem.Claim(ctx, tx, idemKey, route, act.UserID, caseID); cErr != nil {
				return cErr
			}
		}
		record, gErr := ds.caseRepo.GetByID(ctx, tx, caseID)
		if gErr != nil {
			return gErr
		}
		if record == nil {
			return fmt.Errorf("case %d: %w", caseID, ErrNotFound)
		}
		if workflow.IsLocked(record.Status) {
			return fmt.Errorf("case %s is %s: %w", record.CaseNumber, record.Status, ErrLocked)
		}
		recordDir := ds.cases.RecordDir(record)
		templatePath := filepath.Join(recordDir, "DO-NOT-EDIT", template+".docx")
		if _, sErr := os.Stat(templatePath); sErr != nil {
			return fmt.Errorf("template %s missing for case %s: %w", template, record.CaseNumber, ErrPrecondition)
		}
		outputName := template + ".docx"
		outputPath = filepath.Join(recordDir, outputName)
		if rErr := docgen.Render(templatePath, outputPath, buildValues(record, act)); rErr != nil {
			return fmt.Errorf("rendering %s: %w", template, rErr)
		}
		stamp(record, act)
		if sErr := ds.caseRepo.Save(ctx, tx, record); sErr != nil {
			return sErr
		}
		attachment = &types.CaseAttachment{
			CaseID:     record.ID,
			Filename:   outputName,
			Category:   categoryGenerated,
			Uploader:   act.DisplayName(),
			UploadedAt: timeutil.NowUTC(),
		}
		return ds.attachRepo.Create(ctx, tx, attachment)
	})
	if err != nil {
		if outputPath != "" {
			os.Remove(outputPath)
		}
		return nil, err
	}
	ds.log.Info("document generated", "case_id", caseID, "template", template)
	return attachment, nil
}
