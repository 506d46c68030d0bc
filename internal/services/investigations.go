package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/PR1MKO/iktato-backend/internal/actor"
	"github.com/PR1MKO/iktato-backend/internal/casenum"
	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/repos"
	"github.com/PR1MKO/iktato-backend/internal/roles"
	"github.com/PR1MKO/iktato-backend/internal/safepath"
	"github.com/PR1MKO/iktato-backend/internal/timeutil"
	"github.com/PR1MKO/iktato-backend/internal/types"
	"github.com/PR1MKO/iktato-backend/internal/workflow"
)

type InvestigationCreateInput struct {
	ExternalCaseNumber string
	OtherIdentifier    string
	SubjectName        string
	MaidenName         string
	MotherName         string
	BirthPlace         string
	BirthDate          time.Time
	TAJNumber          string
	Residence          string
	Citizenship        string
	InstitutionName    string
	InvestigationType  string
	AssignmentType     string
	AssignedExpertID   uint
}

type InvestigationsService interface {
	Create(ctx context.Context, in InvestigationCreateInput) (*types.Investigation, error)
	Get(ctx context.Context, id uint) (*types.Investigation, error)
	List(ctx context.Context, filter repos.InvestigationFilter) ([]*types.Investigation, error)
	Update(ctx context.Context, id uint, formVersion string, mutate func(*types.Investigation) error) (*types.Investigation, error)
	Reassign(ctx context.Context, id uint, expert1, expert2, describer uint) (*types.Investigation, error)
	AddNote(ctx context.Context, id uint, text string) (*types.InvestigationNote, error)
	Notes(ctx context.Context, id uint) ([]*types.InvestigationNote, error)
	Upload(ctx context.Context, id uint, filename, declaredMIME string, size int64, src io.Reader, category string) (*types.InvestigationAttachment, error)
	OpenFile(ctx context.Context, id uint, filename string) (*os.File, string, error)
	Attachments(ctx context.Context, id uint) ([]*types.InvestigationAttachment, error)
	AssignedMember(ctx context.Context, record *types.Investigation, userID uint) (bool, error)
	RecordDir(record *types.Investigation) string
}

type investigationsService struct {
	db         *gorm.DB
	log        *logger.Logger
	repo       repos.InvestigationRepo
	noteRepo   repos.InvestigationNoteRepo
	attachRepo repos.InvestigationAttachmentRepo
	userRepo   repos.UserRepo
	uploadRoot string
	maxContent int64
}

func NewInvestigationsService(
	db *gorm.DB,
	log *logger.Logger,
	repo repos.InvestigationRepo,
	noteRepo repos.InvestigationNoteRepo,
	attachRepo repos.InvestigationAttachmentRepo,
	userRepo repos.UserRepo,
	uploadRoot string,
	maxContent int64,
) InvestigationsService {
	serviceLog := log.With("service", "InvestigationsService")
	return &investigationsService{
		db:         db,
		log:        serviceLog,
		repo:       repo,
		noteRepo:   noteRepo,
		attachRepo: attachRepo,
		userRepo:   userRepo,
		uploadRoot: uploadRoot,
		maxContent: maxContent,
	}
}

func (is *investigationsService) RecordDir(record *types.Investigation) string {
	return filepath.Join(is.uploadRoot, casenum.FileSafe(record.CaseNumber))
}

// Create registers a new investigation on the examination bind. At least one
// of the external case number and the other identifier must be present.
// EXPERT_ASSIGNED records skip the received stage: they start signalled with
// expert1 set from the assignment.
func (is *investigationsService) Create(ctx context.Context, in InvestigationCreateInput) (*types.Investigation, error) {
	in.ExternalCaseNumber = strings.TrimSpace(in.ExternalCaseNumber)
	in.OtherIdentifier = strings.TrimSpace(in.OtherIdentifier)
	if in.ExternalCaseNumber == "" && in.OtherIdentifier == "" {
		return nil, fmt.Errorf("external case number or other identifier is required: %w", ErrValidation)
	}
	for name, v := range map[string]string{
		"subject_name":     in.SubjectName,
		"mother_name":      in.MotherName,
		"birth_place":      in.BirthPlace,
		"taj_number":       in.TAJNumber,
		"residence":        in.Residence,
		"citizenship":      in.Citizenship,
		"institution_name": in.InstitutionName,
	} {
		if strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("%s is required: %w", name, ErrValidation)
		}
	}
	if in.BirthDate.IsZero() {
		return nil, fmt.Errorf("birth_date is required: %w", ErrValidation)
	}
	switch in.AssignmentType {
	case "", types.AssignmentInstitutional:
		in.AssignmentType = types.AssignmentInstitutional
	case types.AssignmentExpertAssigned:
		if in.AssignedExpertID == 0 {
			return nil, fmt.Errorf("assigned expert is required for expert assignment: %w", ErrValidation)
		}
	default:
		return nil, fmt.Errorf("unknown assignment type %q: %w", in.AssignmentType, ErrValidation)
	}

	now := timeutil.NowUTC()
	record := &types.Investigation{
		ExternalCaseNumber: in.ExternalCaseNumber,
		OtherIdentifier:    in.OtherIdentifier,
		SubjectName:        strings.TrimSpace(in.SubjectName),
		MaidenName:         strings.TrimSpace(in.MaidenName),
		MotherName:         strings.TrimSpace(in.MotherName),
		BirthPlace:         strings.TrimSpace(in.BirthPlace),
		BirthDate:          datatypes.Date(in.BirthDate),
		TAJNumber:          strings.TrimSpace(in.TAJNumber),
		Residence:          strings.TrimSpace(in.Residence),
		Citizenship:        strings.TrimSpace(in.Citizenship),
		InstitutionName:    strings.TrimSpace(in.InstitutionName),
		InvestigationType:  strings.TrimSpace(in.InvestigationType),
		AssignmentType:     in.AssignmentType,
		Status:             workflow.StatusReceived,
		RegistrationTime:   now,
		Deadline:           now.Add(deadlineDays * 24 * time.Hour),
	}
	if in.AssignmentType == types.AssignmentExpertAssigned {
		record.AssignedExpertID = in.AssignedExpertID
		record.Expert1ID = in.AssignedExpertID
		record.Status = workflow.StatusSignalled
	}
	err := is.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, nErr := casenum.NextInvestigationNumber(tx, timeutil.ToLocal(now).Year())
		if nErr != nil {
			return fmt.Errorf("allocating investigation number: %w", nErr)
		}
		record.CaseNumber = number
		return is.repo.Create(ctx, tx, record)
	})
	if err != nil {
		return nil, err
	}
	if dErr := os.MkdirAll(is.RecordDir(record), 0o755); dErr != nil {
		is.log.Error("investigation folder setup failed", "case_number", record.CaseNumber, "error", dErr)
	}
	is.log.Info("investigation created", "case_number", record.CaseNumber, "assignment_type", record.AssignmentType)
	return record, nil
}

func (is *investigationsService) Get(ctx context.Context, id uint) (*types.Investigation, error) {
	record, err := is.repo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("investigation %d: %w", id, ErrNotFound)
	}
	return record, nil
}

func (is *investigationsService) List(ctx context.Context, filter repos.InvestigationFilter) ([]*types.Investigation, error) {
	return is.repo.List(ctx, nil, filter)
}

func (is *investigationsService) loadMutable(ctx context.Context, tx *gorm.DB, id uint) (*types.Investigation, error) {
	record, err := is.repo.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("investigation %d: %w", id, ErrNotFound)
	}
	if workflow.IsLocked(record.Status) {
		return nil, fmt.Errorf("investigation %s is %s: %w", record.CaseNumber, record.Status, ErrLocked)
	}
	return record, nil
}

func (is *investigationsService) Update(ctx context.Context, id uint, formVersion string, mutate func(*types.Investigation) error) (*types.Investigation, error) {
	var record *types.Investigation
	err := is.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lErr error
		record, lErr = is.loadMutable(ctx, tx, id)
		if lErr != nil {
			return lErr
		}
		if formVersion != "" && record.UpdatedAt.UTC().Format(time.RFC3339) != formVersion {
			return fmt.Errorf("investigation %s: %w", record.CaseNumber, ErrStaleForm)
		}
		number := record.CaseNumber
		if mErr := mutate(record); mErr != nil {
			return mErr
		}
		if record.CaseNumber != number {
			return fmt.Errorf("case_number is immutable: %w", ErrValidation)
		}
		return is.repo.Save(ctx, tx, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Reassign is the signaller's expert/describer assignment. The status becomes
// signalled even when it already was; each modified field is picked up by the
// audit hook.
func (is *investigationsService) Reassign(ctx context.Context, id uint, expert1, expert2, describer uint) (*types.Investigation, error) {
	if expert1 == 0 && expert2 == 0 && describer == 0 {
		return nil, fmt.Errorf("nothing to assign: %w", ErrValidation)
	}
	var record *types.Investigation
	err := is.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lErr error
		record, lErr = is.loadMutable(ctx, tx, id)
		if lErr != nil {
			return lErr
		}
		if !workflow.CanTransitionInvestigation(record.Status, workflow.StatusSignalled) {
			return fmt.Errorf("investigation %s cannot be signalled from %s: %w", record.CaseNumber, record.Status, ErrPrecondition)
		}
		if expert1 != 0 {
			record.Expert1ID = expert1
		}
		if expert2 != 0 {
			record.Expert2ID = expert2
		}
		if describer != 0 {
			record.DescriberID = describer
		}
		record.Status = workflow.StatusSignalled
		return is.repo.Save(ctx, tx, record)
	})
	if err != nil {
		return nil, err
	}
	is.log.Info("investigation reassigned", "case_number", record.CaseNumber, "expert1_id", record.Expert1ID, "expert2_id", record.Expert2ID)
	return record, nil
}

func (is *investigationsService) AddNote(ctx context.Context, id uint, text string) (*types.InvestigationNote, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty note: %w", ErrValidation)
	}
	act, ok := actor.FromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("no authenticated user: %w", ErrForbidden)
	}
	var note *types.InvestigationNote
	err := is.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, lErr := is.loadMutable(ctx, tx, id)
		if lErr != nil {
			return lErr
		}
		note = &types.InvestigationNote{
			InvestigationID: record.ID,
			AuthorID:        act.UserID,
			Text:            text,
			Timestamp:       timeutil.NowUTC(),
		}
		return is.noteRepo.Create(ctx, tx, note)
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (is *investigationsService) Notes(ctx context.Context, id uint) ([]*types.InvestigationNote, error) {
	return is.noteRepo.ListByInvestigation(ctx, nil, id)
}

func (is *investigationsService) Upload(ctx context.Context, id uint, filename, declaredMIME string, size int64, src io.Reader, category string) (*types.InvestigationAttachment, error) {
	act, _ := actor.FromContext(ctx)
	var attachment *types.InvestigationAttachment
	err := is.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, lErr := is.loadMutable(ctx, tx, id)
		if lErr != nil {
			return lErr
		}
		clean, cErr := safepath.CheckUpload(filename, declaredMIME, size, is.maxContent, safepath.DomainInvestigations)
		if cErr != nil {
			return cErr
		}
		if _, sErr := safepath.Save(is.uploadRoot, src, clean, casenum.FileSafe(record.CaseNumber)); sErr != nil {
			return sErr
		}
		attachment = &types.InvestigationAttachment{
			InvestigationID: record.ID,
			Filename:        clean,
			Category:        category,
			UploadedBy:      act.UserID,
			UploadedAt:      timeutil.NowUTC(),
		}
		return is.attachRepo.Create(ctx, tx, attachment)
	})
	if err != nil {
		return nil, err
	}
	return attachment, nil
}

func (is *investigationsService) OpenFile(ctx context.Context, id uint, filename string) (*os.File, string, error) {
	record, err := is.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	f, mime, oErr := safepath.Open(is.uploadRoot, casenum.FileSafe(record.CaseNumber), filename)
	if oErr != nil {
		if os.IsNotExist(oErr) {
			return nil, "", fmt.Errorf("file %s: %w", filename, ErrNotFound)
		}
		return nil, "", oErr
	}
	return f, mime, nil
}

func (is *investigationsService) Attachments(ctx context.Context, id uint) ([]*types.InvestigationAttachment, error) {
	return is.attachRepo.ListByInvestigation(ctx, nil, id)
}

// AssignedMember reports whether the user is on the record's team. Expert
// default describers only count while the record has no describer of its own.
func (is *investigationsService) AssignedMember(ctx context.Context, record *types.Investigation, userID uint) (bool, error) {
	var expertDefaults []uint
	if record.DescriberID == 0 {
		for _, expertID := range []uint{record.Expert1ID, record.Expert2ID} {
			if expertID == 0 {
				continue
			}
			expert, err := is.userRepo.GetByID(ctx, nil, expertID)
			if err != nil {
				return false, err
			}
			if expert != nil && expert.DefaultDescriberID != nil {
				expertDefaults = append(expertDefaults, *expert.DefaultDescriberID)
			}
		}
	}
	return roles.AssignedMember(userID, record.Expert1ID, record.Expert2ID, record.DescriberID, expertDefaults), nil
}
