package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/PR1MKO/iktato-backend/internal/actor"
	"github.com/PR1MKO/iktato-backend/internal/casenum"
	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/repos"
	"github.com/PR1MKO/iktato-backend/internal/safepath"
	"github.com/PR1MKO/iktato-backend/internal/timeutil"
	"github.com/PR1MKO/iktato-backend/internal/types"
	"github.com/PR1MKO/iktato-backend/internal/workflow"
)

// ToxViewedNote is the changelog value written when the expert first views the
// toxicology order.
const ToxViewedNote = "Toxi végzés megtekintve"

const deadlineDays = 30

type CaseCreateInput struct {
	CaseType           string
	ArrivalMode        string
	TempID             string
	ExternalCaseNumber string
	DeceasedName       string
	MaidenName         string
	MotherName         string
	BirthPlace         string
	TAJNumber          string
	InstitutionName    string
	Poseidon           string
}

type CasesService interface {
	Create(ctx context.Context, in CaseCreateInput) (*types.Case, error)
	Get(ctx context.Context, id uint) (*types.Case, error)
	List(ctx context.Context, filter repos.CaseFilter) ([]*types.Case, error)
	Update(ctx context.Context, id uint, formVersion string, mutate func(*types.Case) error) (*types.Case, error)
	AssignExperts(ctx context.Context, caseID uint, expert1, expert2, idemKey string) (*types.Case, error)
	AssignDescriber(ctx context.Context, caseID uint, describer, idemKey string) (*types.Case, error)
	AddNote(ctx context.Context, caseID uint, text string) (*types.Case, error)
	OrderTox(ctx context.Context, caseID uint, formVersion string, assays []string) (*types.Case, error)
	MarkToxViewed(ctx context.Context, caseID uint) error
	OpenExecute(ctx context.Context, caseID uint) (*types.Case, bool, error)
	ChangeStatus(ctx context.Context, caseID uint, to string) (*types.Case, error)
	Upload(ctx context.Context, caseID uint, filename, declaredMIME string, size int64, src io.Reader, category string) (*types.CaseAttachment, error)
	OpenFile(ctx context.Context, caseID uint, filename string) (*os.File, string, error)
	Attachments(ctx context.Context, caseID uint) ([]*types.CaseAttachment, error)
	Delete(ctx context.Context, caseID uint) error
	EffectiveDescriber(ctx context.Context, record *types.Case) (string, error)
	RecordDir(record *types.Case) string
}

type casesService struct {
	db          *gorm.DB
	log         *logger.Logger
	caseRepo    repos.CaseRepo
	userRepo    repos.UserRepo
	attachRepo  repos.AttachmentRepo
	logRepo     repos.ChangeLogRepo
	taskRepo    repos.TaskMessageRepo
	idem        IdempotencyService
	uploadRoot  string
	templateDir string
	maxContent  int64
}

func NewCasesService(
	db *gorm.DB,
	log *logger.Logger,
	caseRepo repos.CaseRepo,
	userRepo repos.UserRepo,
	attachRepo repos.AttachmentRepo,
	logRepo repos.ChangeLogRepo,
	taskRepo repos.TaskMessageRepo,
	idem IdempotencyService,
	uploadRoot string,
	templateDir string,
	maxContent int64,
) CasesService {
	serviceLog := log.With("service", "CasesService")
	return &casesService{
		db:          db,
		log:         serviceLog,
		caseRepo:    caseRepo,
		userRepo:    userRepo,
		attachRepo:  attachRepo,
		logRepo:     logRepo,
		taskRepo:    taskRepo,
		idem:        idem,
		uploadRoot:  uploadRoot,
		templateDir: templateDir,
		maxContent:  maxContent,
	}
}

func (cs *casesService) RecordDir(record *types.Case) string {
	return filepath.Join(cs.uploadRoot, casenum.FileSafe(record.CaseNumber))
}

func (cs *casesService) Create(ctx context.Context, in CaseCreateInput) (*types.Case, error) {
	if strings.TrimSpace(in.CaseType) == "" {
		return nil, fmt.Errorf("case_type is required: %w", ErrValidation)
	}
	now := timeutil.NowUTC()
	record := &types.Case{
		CaseType:           strings.TrimSpace(in.CaseType),
		ArrivalMode:        strings.TrimSpace(in.ArrivalMode),
		TempID:             strings.TrimSpace(in.TempID),
		ExternalCaseNumber: strings.TrimSpace(in.ExternalCaseNumber),
		DeceasedName:       strings.TrimSpace(in.DeceasedName),
		MaidenName:         strings.TrimSpace(in.MaidenName),
		MotherName:         strings.TrimSpace(in.MotherName),
		BirthPlace:         strings.TrimSpace(in.BirthPlace),
		TAJNumber:          strings.TrimSpace(in.TAJNumber),
		InstitutionName:    strings.TrimSpace(in.InstitutionName),
		Poseidon:           strings.TrimSpace(in.Poseidon),
		Status:             workflow.StatusReceived,
		RegistrationTime:   now,
		Deadline:           now.Add(deadlineDays * 24 * time.Hour),
	}
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, nErr := casenum.NextCaseNumber(tx, timeutil.ToLocal(now).Year())
		if nErr != nil {
			return fmt.Errorf("allocating case number: %w", nErr)
		}
		record.CaseNumber = number
		return cs.caseRepo.Create(ctx, tx, record)
	})
	if err != nil {
		return nil, err
	}
	if dErr := cs.ensureRecordDir(record); dErr != nil {
		cs.log.Error("case folder setup failed", "case_number", record.CaseNumber, "error", dErr)
	}
	cs.log.Info("case created", "case_number", record.CaseNumber)
	return record, nil
}

// ensureRecordDir creates the per-case upload directory and populates its
// DO-NOT-EDIT template copy. Existing template files are never overwritten.
func (cs *casesService) ensureRecordDir(record *types.Case) error {
	dir := cs.RecordDir(record)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if cs.templateDir == "" {
		return nil
	}
	return safepath.CopyTemplateTree(cs.templateDir, dir)
}

func (cs *casesService) Get(ctx context.Context, id uint) (*types.Case, error) {
	record, err := cs.caseRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("case %d: %w", id, ErrNotFound)
	}
	return record, nil
}

func (cs *casesService) List(ctx context.Context, filter repos.CaseFilter) ([]*types.Case, error) {
	return cs.caseRepo.List(ctx, nil, filter)
}

// loadMutable fetches the case and rejects mutation of locked records.
func (cs *casesService) loadMutable(ctx context.Context, tx *gorm.DB, id uint) (*types.Case, error) {
	record, err := cs.caseRepo.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("case %d: %w", id, ErrNotFound)
	}
	if workflow.IsLocked(record.Status) {
		return nil, fmt.Errorf("case %s is %s: %w", record.CaseNumber, record.Status, ErrLocked)
	}
	return record, nil
}

// checkFormVersion compares the submitted updated_at snapshot against the
// record. An empty formVersion skips the check (JSON callers).
func checkFormVersion(record *types.Case, formVersion string) error {
	if formVersion == "" {
		return nil
	}
	if record.UpdatedAt.UTC().Format(time.RFC3339) != formVersion {
		return fmt.Errorf("case %s: %w", record.CaseNumber, ErrStaleForm)
	}
	return nil
}

func (cs *casesService) Update(ctx context.Context, id uint, formVersion string, mutate func(*types.Case) error) (*types.Case, error) {
	var record *types.Case
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lErr error
		record, lErr = cs.loadMutable(ctx, tx, id)
		if lErr != nil {
			return lErr
		}
		if vErr := checkFormVersion(record, formVersion); vErr != nil {
			return vErr
		}
		number := record.CaseNumber
		if mErr := mutate(record); mErr != nil {
			return mErr
		}
		if record.CaseNumber != number {
			return fmt.Errorf("case_number is immutable: %w", ErrValidation)
		}
		return cs.caseRepo.Save(ctx, tx, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// AssignExperts is the signaller action. Newly assigned experts each get a
// TaskMessage; re-running the same assignment within the idempotency TTL adds
// nothing.
func (cs *casesService) AssignExperts(ctx context.Context, caseID uint, expert1, expert2, idemKey string) (*types.Case, error) {
	act, _ := actor.FromContext(ctx)
	expert1 = strings.TrimSpace(expert1)
	expert2 = strings.TrimSpace(expert2)
	if expert1 == "" {
		return nil, fmt.Errorf("expert_1 is required: %w", ErrValidation)
	}
	var record *types.Case
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if idemKey != "" {
			if cErr := cs.idem.Claim(ctx, tx, idemKey, "assign_experts", act.UserID, caseID); cErr != nil {
				return cErr
			}
		}
		var lErr error
		record, lErr = cs.loadMutable(ctx, tx, caseID)
		if lErr != nil {
			return lErr
		}
		if !workflow.CanTransition(record.Status, workflow.StatusSignalled) {
			return fmt.Errorf("case %s cannot be signalled from %s: %w", record.CaseNumber, record.Status, ErrPrecondition)
		}
		newly := newlyAssigned(record, expert1, expert2)
		record.Expert1 = expert1
		record.Expert2 = expert2
		record.Status = workflow.StatusSignalled
		if sErr := cs.caseRepo.Save(ctx, tx, record); sErr != nil {
			return sErr
		}
		for _, label := range newly {
			user, uErr := cs.userRepo.GetByLabel(ctx, tx, label)
			if uErr != nil {
				return uErr
			}
			if user == nil {
				cs.log.Warn("assigned expert has no user record", "label", label, "case_number", record.CaseNumber)
				continue
			}
			msg := &types.TaskMessage{
				UserID:    user.ID,
				Recipient: label,
				CaseID:    record.ID,
				Message:   fmt.Sprintf("Új ügy kiszignálva: %s", record.CaseNumber),
				Timestamp: timeutil.NowUTC(),
			}
			if tErr := cs.taskRepo.Create(ctx, tx, msg); tErr != nil {
				return tErr
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	cs.log.Info("experts assigned", "case_number", record.CaseNumber, "expert_1", expert1, "expert_2", expert2)
	return record, nil
}

func newlyAssigned(record *types.Case, expert1, expert2 string) []string {
	var out []string
	for _, label := range []string{expert1, expert2} {
		if label == "" {
			continue
		}
		if label == record.Expert1 || label == record.Expert2 {
			continue
		}
		out = append(out, label)
	}
	return out
}

func (cs *casesService) AssignDescriber(ctx context.Context, caseID uint, describer, idemKey string) (*types.Case, error) {
	act, _ := actor.FromContext(ctx)
	describer = strings.TrimSpace(describer)
	if describer == "" {
		return nil, fmt.Errorf("describer is required: %w", ErrValidation)
	}
	var record *types.Case
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if idemKey != "" {
			if cErr := cs.idem.Claim(ctx, tx, idemKey, "assign_describer", act.UserID, caseID); cErr != nil {
				return cErr
			}
		}
		var lErr error
		record, lErr = cs.loadMutable(ctx, tx, caseID)
		if lErr != nil {
			return lErr
		}
		record.Describer = describer
		return cs.caseRepo.Save(ctx, tx, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// AddNote appends to the case's user-visible note stream. Every append is a
// distinct changelog row, duplicates included, because the notes column itself
// changes on each append.
func (cs *casesService) AddNote(ctx context.Context, caseID uint, text string) (*types.Case, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty note: %w", ErrValidation)
	}
	act, _ := actor.FromContext(ctx)
	line := fmt.Sprintf("[%s – %s] %s", timeutil.FmtBudapest(timeutil.NowUTC(), timeutil.NoteLayout), act.DisplayName(), text)
	var record *types.Case
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lErr error
		record, lErr = cs.loadMutable(ctx, tx, caseID)
		if lErr != nil {
			return lErr
		}
		if record.Notes == "" {
			record.Notes = line
		} else {
			record.Notes = record.Notes + "\n" + line
		}
		return cs.caseRepo.Save(ctx, tx, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// OrderTox marks the listed assays as ordered and appends a dated order line
// per assay to the tox order stream.
func (cs *casesService) OrderTox(ctx context.Context, caseID uint, formVersion string, assays []string) (*types.Case, error) {
	if len(assays) == 0 {
		return nil, fmt.Errorf("no assays selected: %w", ErrValidation)
	}
	act, _ := actor.FromContext(ctx)
	stamp := timeutil.FmtBudapest(timeutil.NowUTC(), timeutil.NoteLayout)
	var record *types.Case
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lErr error
		record, lErr = cs.loadMutable(ctx, tx, caseID)
		if lErr != nil {
			return lErr
		}
		if vErr := checkFormVersion(record, formVersion); vErr != nil {
			return vErr
		}
		var lines []string
		for _, assay := range assays {
			assay = strings.TrimSpace(assay)
			if assay == "" {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s: Megrendelve %s – %s", assay, stamp, act.DisplayName()))
		}
		if len(lines) == 0 {
			return fmt.Errorf("no assays selected: %w", ErrValidation)
		}
		block := strings.Join(lines, "\n")
		if record.ToxOrders == "" {
			record.ToxOrders = block
		} else {
			record.ToxOrders = record.ToxOrders + "\n" + block
		}
		record.ToxOrdered = true
		if record.ToxExpert == "" {
			record.ToxExpert = act.DisplayName()
		}
		return cs.caseRepo.Save(ctx, tx, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// MarkToxViewed unlocks toxicology edits for the expert. Requires an existing
// tox order; repeat calls are no-ops.
func (cs *casesService) MarkToxViewed(ctx context.Context, caseID uint) error {
	act, _ := actor.FromContext(ctx)
	return cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, lErr := cs.loadMutable(ctx, tx, caseID)
		if lErr != nil {
			return lErr
		}
		if !record.ToxOrdered {
			return fmt.Errorf("case %s has no tox order: %w", record.CaseNumber, ErrPrecondition)
		}
		if record.ToxViewedByExpert {
			return nil
		}
		now := timeutil.NowUTC()
		record.ToxViewedByExpert = true
		record.ToxViewedAt = &now
		if sErr := cs.caseRepo.Save(ctx, tx, record); sErr != nil {
			return sErr
		}
		row := &types.ChangeLog{
			CaseID:    record.ID,
			FieldName: "tox_viewed",
			OldValue:  "∅",
			NewValue:  ToxViewedNote,
			EditedBy:  act.DisplayName(),
			Timestamp: now,
		}
		return cs.logRepo.Create(ctx, tx, row)
	})
}

// OpenExecute is the expert's "elvegzem" entry point. The first open moves the
// case to dissected-at-expert and consumes the expert's pending task messages.
// Returns whether toxicology sections are still locked for writing.
func (cs *casesService) OpenExecute(ctx context.Context, caseID uint) (*types.Case, bool, error) {
	act, ok := actor.FromContext(ctx)
	if !ok {
		return nil, false, fmt.Errorf("no authenticated user: %w", ErrForbidden)
	}
	var record *types.Case
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lErr error
		record, lErr = cs.loadMutable(ctx, tx, caseID)
		if lErr != nil {
			return lErr
		}
		if !record.StartedByExpert && workflow.CanTransition(record.Status, workflow.StatusDissectedAtExpert) {
			record.Status = workflow.StatusDissectedAtExpert
			record.StartedByExpert = true
			if sErr := cs.caseRepo.Save(ctx, tx, record); sErr != nil {
				return sErr
			}
		}
		return cs.taskRepo.MarkSeen(ctx, tx, act.UserID, record.ID)
	})
	if err != nil {
		return nil, false, err
	}
	toxLocked := record.ToxOrdered && !record.ToxViewedByExpert
	return record, toxLocked, nil
}

func (cs *casesService) ChangeStatus(ctx context.Context, caseID uint, to string) (*types.Case, error) {
	var record *types.Case
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lErr error
		record, lErr = cs.loadMutable(ctx, tx, caseID)
		if lErr != nil {
			return lErr
		}
		if !workflow.CanTransition(record.Status, to) {
			return fmt.Errorf("cannot move case %s from %s to %s: %w", record.CaseNumber, record.Status, to, ErrPrecondition)
		}
		record.Status = to
		return cs.caseRepo.Save(ctx, tx, record)
	})
	if err != nil {
		return nil, err
	}
	cs.log.Info("case status changed", "case_number", record.CaseNumber, "status", to)
	return record, nil
}

func (cs *casesService) Upload(ctx context.Context, caseID uint, filename, declaredMIME string, size int64, src io.Reader, category string) (*types.CaseAttachment, error) {
	act, _ := actor.FromContext(ctx)
	var record *types.Case
	var attachment *types.CaseAttachment
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lErr error
		record, lErr = cs.loadMutable(ctx, tx, caseID)
		if lErr != nil {
			return lErr
		}
		clean, cErr := safepath.CheckUpload(filename, declaredMIME, size, cs.maxContent, safepath.DomainCases)
		if cErr != nil {
			return cErr
		}
		if dErr := cs.ensureRecordDir(record); dErr != nil {
			return dErr
		}
		if _, sErr := safepath.Save(cs.uploadRoot, src, clean, casenum.FileSafe(record.CaseNumber)); sErr != nil {
			return sErr
		}
		attachment = &types.CaseAttachment{
			CaseID:     record.ID,
			Filename:   clean,
			Category:   category,
			Uploader:   act.DisplayName(),
			UploadedAt: timeutil.NowUTC(),
		}
		return cs.attachRepo.Create(ctx, tx, attachment)
	})
	if err != nil {
		return nil, err
	}
	return attachment, nil
}

func (cs *casesService) OpenFile(ctx context.Context, caseID uint, filename string) (*os.File, string, error) {
	record, err := cs.Get(ctx, caseID)
	if err != nil {
		return nil, "", err
	}
	f, mime, oErr := safepath.Open(cs.uploadRoot, casenum.FileSafe(record.CaseNumber), filename)
	if oErr != nil {
		if os.IsNotExist(oErr) {
			return nil, "", fmt.Errorf("file %s: %w", filename, ErrNotFound)
		}
		return nil, "", oErr
	}
	return f, mime, nil
}

func (cs *casesService) Attachments(ctx context.Context, caseID uint) ([]*types.CaseAttachment, error) {
	return cs.attachRepo.ListByCase(ctx, nil, caseID)
}

// Delete removes a case entirely. Finalized (locked) cases cannot be deleted,
// even by admins.
func (cs *casesService) Delete(ctx context.Context, caseID uint) error {
	return cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, lErr := cs.loadMutable(ctx, tx, caseID)
		if lErr != nil {
			return lErr
		}
		return cs.caseRepo.Delete(ctx, tx, record)
	})
}

// EffectiveDescriber resolves the describer label shown on the case: the
// explicit assignment wins, else the first expert's default describer.
// Dangling references resolve to an empty label, never an error.
func (cs *casesService) EffectiveDescriber(ctx context.Context, record *types.Case) (string, error) {
	if record.Describer != "" {
		return record.Describer, nil
	}
	for _, label := range []string{record.Expert1, record.Expert2} {
		if label == "" {
			continue
		}
		expert, err := cs.userRepo.GetByLabel(ctx, nil, label)
		if err != nil {
			return "", err
		}
		if expert == nil || expert.DefaultDescriberID == nil {
			continue
		}
		describer, err := cs.userRepo.GetByID(ctx, nil, *expert.DefaultDescriberID)
		if err != nil {
			return "", err
		}
		if describer != nil {
			return describer.DisplayName(), nil
		}
	}
	return "", nil
}
