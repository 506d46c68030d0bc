package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PR1MKO/iktato-backend/internal/actor"
	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/repos"
	"github.com/PR1MKO/iktato-backend/internal/roles"
	"github.com/PR1MKO/iktato-backend/internal/services"
	"github.com/PR1MKO/iktato-backend/internal/timeutil"
	"github.com/PR1MKO/iktato-backend/internal/types"
)

type InvestigationsHandler struct {
	log            *logger.Logger
	investigations services.InvestigationsService
}

func NewInvestigationsHandler(log *logger.Logger, investigations services.InvestigationsService) *InvestigationsHandler {
	return &InvestigationsHandler{
		log:            log.With("handler", "InvestigationsHandler"),
		investigations: investigations,
	}
}

func (ih *InvestigationsHandler) List(c *gin.Context) {
	filter := repos.InvestigationFilter{
		Status:         c.Query("status"),
		AssignmentType: c.Query("assignment_type"),
		SearchText:     c.Query("q"),
	}
	records, err := ih.investigations.List(c.Request.Context(), filter)
	if err != nil {
		Fail(c, ih.log, err, "/dashboard")
		return
	}
	c.JSON(http.StatusOK, gin.H{"investigations": records, "flash": ConsumeFlash(c)})
}

func (ih *InvestigationsHandler) Detail(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	record, err := ih.investigations.Get(ctx, id)
	if err != nil {
		Fail(c, ih.log, err, "/investigations/")
		return
	}
	act, _ := actor.FromContext(ctx)
	assigned, err := ih.investigations.AssignedMember(ctx, record, act.UserID)
	if err != nil {
		Fail(c, ih.log, err, "/investigations/")
		return
	}
	caps := roles.Refine(roles.Capabilities(roles.Role(act.Role)), roles.Role(act.Role), assigned)
	notes, err := ih.investigations.Notes(ctx, id)
	if err != nil {
		Fail(c, ih.log, err, "/investigations/")
		return
	}
	attachments, err := ih.investigations.Attachments(ctx, id)
	if err != nil {
		Fail(c, ih.log, err, "/investigations/")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"investigation": record,
		"notes":         notes,
		"attachments":   attachments,
		"can_upload":    caps.Has(roles.CapUploadInvestigation),
		"can_post_note": caps.Has(roles.CapPostInvestigationNotes),
		"form_version":  record.UpdatedAt.UTC().Format(time.RFC3339),
		"flash":         ConsumeFlash(c),
	})
}

func (ih *InvestigationsHandler) Create(c *gin.Context) {
	var req struct {
		ExternalCaseNumber string `json:"external_case_number" form:"external_case_number"`
		OtherIdentifier    string `json:"other_identifier" form:"other_identifier"`
		SubjectName        string `json:"subject_name" form:"subject_name"`
		MaidenName         string `json:"maiden_name" form:"maiden_name"`
		MotherName         string `json:"mother_name" form:"mother_name"`
		BirthPlace         string `json:"birth_place" form:"birth_place"`
		BirthDate          string `json:"birth_date" form:"birth_date"`
		TAJNumber          string `json:"taj_number" form:"taj_number"`
		Residence          string `json:"residence" form:"residence"`
		Citizenship        string `json:"citizenship" form:"citizenship"`
		InstitutionName    string `json:"institution_name" form:"institution_name"`
		InvestigationType  string `json:"investigation_type" form:"investigation_type"`
		AssignmentType     string `json:"assignment_type" form:"assignment_type"`
		AssignedExpertID   uint   `json:"assigned_expert_id" form:"assigned_expert_id"`
	}
	if err := c.ShouldBind(&req); err != nil {
		Fail(c, ih.log, fmt.Errorf("bad request body: %w", services.ErrValidation), "/investigations/new")
		return
	}
	var birthDate time.Time
	if req.BirthDate != "" {
		parsed, pErr := time.ParseInLocation(timeutil.DateLayout, req.BirthDate, time.UTC)
		if pErr != nil {
			Fail(c, ih.log, fmt.Errorf("bad birth_date %q: %w", req.BirthDate, services.ErrValidation), "/investigations/new")
			return
		}
		birthDate = parsed
	}
	record, err := ih.investigations.Create(c.Request.Context(), services.InvestigationCreateInput{
		ExternalCaseNumber: req.ExternalCaseNumber,
		OtherIdentifier:    req.OtherIdentifier,
		SubjectName:        req.SubjectName,
		MaidenName:         req.MaidenName,
		MotherName:         req.MotherName,
		BirthPlace:         req.BirthPlace,
		BirthDate:          birthDate,
		TAJNumber:          req.TAJNumber,
		Residence:          req.Residence,
		Citizenship:        req.Citizenship,
		InstitutionName:    req.InstitutionName,
		InvestigationType:  req.InvestigationType,
		AssignmentType:     req.AssignmentType,
		AssignedExpertID:   req.AssignedExpertID,
	})
	if err != nil {
		Fail(c, ih.log, err, "/investigations/new")
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusCreated, gin.H{"investigation": record})
		return
	}
	RedirectWithFlash(c, fmt.Sprintf("/investigations/%d", record.ID), fmt.Sprintf("Vizsgálat rögzítve: %s", record.CaseNumber))
}

func (ih *InvestigationsHandler) Edit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		FormVersion       string  `json:"form_version" form:"form_version"`
		SubjectName       *string `json:"subject_name" form:"subject_name"`
		MaidenName        *string `json:"maiden_name" form:"maiden_name"`
		MotherName        *string `json:"mother_name" form:"mother_name"`
		BirthPlace        *string `json:"birth_place" form:"birth_place"`
		TAJNumber         *string `json:"taj_number" form:"taj_number"`
		Residence         *string `json:"residence" form:"residence"`
		Citizenship       *string `json:"citizenship" form:"citizenship"`
		InstitutionName   *string `json:"institution_name" form:"institution_name"`
		InvestigationType *string `json:"investigation_type" form:"investigation_type"`
	}
	if err := c.ShouldBind(&req); err != nil {
		Fail(c, ih.log, fmt.Errorf("bad request body: %w", services.ErrValidation), fmt.Sprintf("/investigations/%d", id))
		return
	}
	record, err := ih.investigations.Update(c.Request.Context(), id, req.FormVersion, func(record *types.Investigation) error {
		setIf := func(dst *string, src *string) {
			if src != nil {
				*dst = *src
			}
		}
		setIf(&record.SubjectName, req.SubjectName)
		setIf(&record.MaidenName, req.MaidenName)
		setIf(&record.MotherName, req.MotherName)
		setIf(&record.BirthPlace, req.BirthPlace)
		setIf(&record.TAJNumber, req.TAJNumber)
		setIf(&record.Residence, req.Residence)
		setIf(&record.Citizenship, req.Citizenship)
		setIf(&record.InstitutionName, req.InstitutionName)
		setIf(&record.InvestigationType, req.InvestigationType)
		if record.ExternalCaseNumber == "" && record.OtherIdentifier == "" {
			return fmt.Errorf("an identifier must remain: %w", services.ErrValidation)
		}
		return nil
	})
	if err != nil {
		Fail(c, ih.log, err, fmt.Sprintf("/investigations/%d/edit", id))
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"investigation": record})
		return
	}
	RedirectWithFlash(c, fmt.Sprintf("/investigations/%d", id), "Vizsgálat mentve")
}

func (ih *InvestigationsHandler) Assign(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		Expert1ID   uint `json:"expert1_id" form:"expert1_id"`
		Expert2ID   uint `json:"expert2_id" form:"expert2_id"`
		DescriberID uint `json:"describer_id" form:"describer_id"`
	}
	if err := c.ShouldBind(&req); err != nil {
		Fail(c, ih.log, fmt.Errorf("bad request body: %w", services.ErrValidation), "/investigations/")
		return
	}
	record, err := ih.investigations.Reassign(c.Request.Context(), id, req.Expert1ID, req.Expert2ID, req.DescriberID)
	if err != nil {
		Fail(c, ih.log, err, "/investigations/")
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"investigation": record})
		return
	}
	RedirectWithFlash(c, fmt.Sprintf("/investigations/%d", id), fmt.Sprintf("Vizsgálat kiszignálva: %s", record.CaseNumber))
}

// AddNote requires assigned-member status for non-privileged roles.
func (ih *InvestigationsHandler) AddNote(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := ih.requireConditional(c, id, roles.CapPostInvestigationNotes); err != nil {
		return
	}
	var req struct {
		Text string `json:"text" form:"text"`
	}
	if err := c.ShouldBind(&req); err != nil {
		Fail(c, ih.log, fmt.Errorf("bad request body: %w", services.ErrValidation), fmt.Sprintf("/investigations/%d", id))
		return
	}
	note, err := ih.investigations.AddNote(ctx, id, req.Text)
	if err != nil {
		Fail(c, ih.log, err, fmt.Sprintf("/investigations/%d", id))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"note": note})
}

func (ih *InvestigationsHandler) Upload(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	redirect := fmt.Sprintf("/investigations/%d", id)
	if err := ih.requireConditional(c, id, roles.CapUploadInvestigation); err != nil {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		Fail(c, ih.log, fmt.Errorf("missing file: %w", services.ErrValidation), redirect)
		return
	}
	src, err := file.Open()
	if err != nil {
		Fail(c, ih.log, err, redirect)
		return
	}
	defer src.Close()
	_, err = ih.investigations.Upload(c.Request.Context(), id, file.Filename, file.Header.Get("Content-Type"), file.Size, src, c.PostForm("category"))
	if err != nil {
		Fail(c, ih.log, err, redirect)
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusCreated, gin.H{"success": true})
		return
	}
	RedirectWithFlash(c, redirect, "Fájl feltöltve")
}

func (ih *InvestigationsHandler) File(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	f, mime, err := ih.investigations.OpenFile(c.Request.Context(), id, c.Param("name"))
	if err != nil {
		Fail(c, ih.log, err, fmt.Sprintf("/investigations/%d", id))
		return
	}
	defer f.Close()
	c.Header("Content-Type", mime)
	c.Status(http.StatusOK)
	io.Copy(c.Writer, f)
}

// requireConditional enforces the record-refined capability set: conditional
// capabilities are withdrawn from non-privileged users who are not on the
// record's team. Writes the 403 itself and returns a non-nil error when
// denied.
func (ih *InvestigationsHandler) requireConditional(c *gin.Context, id uint, cap roles.Capability) error {
	ctx := c.Request.Context()
	act, _ := actor.FromContext(ctx)
	record, err := ih.investigations.Get(ctx, id)
	if err != nil {
		Fail(c, ih.log, err, "/investigations/")
		return err
	}
	assigned, err := ih.investigations.AssignedMember(ctx, record, act.UserID)
	if err != nil {
		Fail(c, ih.log, err, "/investigations/")
		return err
	}
	caps := roles.Refine(roles.Capabilities(roles.Role(act.Role)), roles.Role(act.Role), assigned)
	if !caps.Has(cap) {
		err := fmt.Errorf("not an assigned member: %w", services.ErrForbidden)
		Fail(c, ih.log, err, fmt.Sprintf("/investigations/%d", id))
		return err
	}
	return nil
}
