package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PR1MKO/iktato-backend/internal/actor"
	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/repos"
	"github.com/PR1MKO/iktato-backend/internal/services"
	"github.com/PR1MKO/iktato-backend/internal/types"
	"github.com/PR1MKO/iktato-backend/internal/workflow"
)

type CasesHandler struct {
	log       *logger.Logger
	cases     services.CasesService
	documents services.DocumentsService
	idem      services.IdempotencyService
}

func NewCasesHandler(log *logger.Logger, cases services.CasesService, documents services.DocumentsService, idem services.IdempotencyService) *CasesHandler {
	return &CasesHandler{
		log:       log.With("handler", "CasesHandler"),
		cases:     cases,
		documents: documents,
		idem:      idem,
	}
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return 0, false
	}
	return uint(id), true
}

func (ch *CasesHandler) List(c *gin.Context) {
	filter := repos.CaseFilter{
		Status:     c.Query("status"),
		SearchText: c.Query("q"),
	}
	records, err := ch.cases.List(c.Request.Context(), filter)
	if err != nil {
		Fail(c, ch.log, err, "/dashboard")
		return
	}
	c.JSON(http.StatusOK, gin.H{"cases": records, "flash": ConsumeFlash(c)})
}

func (ch *CasesHandler) Detail(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	record, err := ch.cases.Get(ctx, id)
	if err != nil {
		Fail(c, ch.log, err, "/cases")
		return
	}
	attachments, err := ch.cases.Attachments(ctx, id)
	if err != nil {
		Fail(c, ch.log, err, "/cases")
		return
	}
	describer, err := ch.cases.EffectiveDescriber(ctx, record)
	if err != nil {
		Fail(c, ch.log, err, "/cases")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"case":                record,
		"attachments":         attachments,
		"effective_describer": describer,
		"form_version":        record.UpdatedAt.UTC().Format(time.RFC3339),
		"flash":               ConsumeFlash(c),
	})
}

func (ch *CasesHandler) Create(c *gin.Context) {
	var req struct {
		CaseType           string `json:"case_type" form:"case_type"`
		ArrivalMode        string `json:"beerk_modja" form:"beerk_modja"`
		TempID             string `json:"temp_id" form:"temp_id"`
		ExternalCaseNumber string `json:"external_case_number" form:"external_case_number"`
		DeceasedName       string `json:"deceased_name" form:"deceased_name"`
		MaidenName         string `json:"maiden_name" form:"maiden_name"`
		MotherName         string `json:"mother_name" form:"mother_name"`
		BirthPlace         string `json:"birth_place" form:"birth_place"`
		TAJNumber          string `json:"taj_number" form:"taj_number"`
		InstitutionName    string `json:"institution_name" form:"institution_name"`
		Poseidon           string `json:"poseidon" form:"poseidon"`
	}
	if err := c.ShouldBind(&req); err != nil {
		Fail(c, ch.log, fmt.Errorf("bad request body: %w", services.ErrValidation), "/cases/new")
		return
	}
	record, err := ch.cases.Create(c.Request.Context(), services.CaseCreateInput{
		CaseType:           req.CaseType,
		ArrivalMode:        req.ArrivalMode,
		TempID:             req.TempID,
		ExternalCaseNumber: req.ExternalCaseNumber,
		DeceasedName:       req.DeceasedName,
		MaidenName:         req.MaidenName,
		MotherName:         req.MotherName,
		BirthPlace:         req.BirthPlace,
		TAJNumber:          req.TAJNumber,
		InstitutionName:    req.InstitutionName,
		Poseidon:           req.Poseidon,
	})
	if err != nil {
		Fail(c, ch.log, err, "/cases/new")
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusCreated, gin.H{"case": record})
		return
	}
	RedirectWithFlash(c, fmt.Sprintf("/cases/%d", record.ID), fmt.Sprintf("Ügy rögzítve: %s", record.CaseNumber))
}

// Edit updates the demographic and certificate fields. Toxicology result
// fields stay read-only until the expert has viewed the tox order.
func (ch *CasesHandler) Edit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		FormVersion        string  `json:"form_version" form:"form_version"`
		DeceasedName       *string `json:"deceased_name" form:"deceased_name"`
		MaidenName         *string `json:"maiden_name" form:"maiden_name"`
		MotherName         *string `json:"mother_name" form:"mother_name"`
		BirthPlace         *string `json:"birth_place" form:"birth_place"`
		TAJNumber          *string `json:"taj_number" form:"taj_number"`
		InstitutionName    *string `json:"institution_name" form:"institution_name"`
		ExternalCaseNumber *string `json:"external_case_number" form:"external_case_number"`
		Poseidon           *string `json:"poseidon" form:"poseidon"`
		DirectCause        *string `json:"direct_cause" form:"direct_cause"`
		UnderlyingDisease  *string `json:"underlying_disease" form:"underlying_disease"`

		AlcoholBlood *string `json:"alcohol_blood" form:"alcohol_blood"`
		AlcoholUrine *string `json:"alcohol_urine" form:"alcohol_urine"`
		ToxDrugBlood *string `json:"tox_drug_blood" form:"tox_drug_blood"`
		ToxDrugUrine *string `json:"tox_drug_urine" form:"tox_drug_urine"`
		ToxCO        *string `json:"tox_co" form:"tox_co"`
		OtherTox     *string `json:"other_tox" form:"other_tox"`
	}
	if err := c.ShouldBind(&req); err != nil {
		Fail(c, ch.log, fmt.Errorf("bad request body: %w", services.ErrValidation), fmt.Sprintf("/cases/%d", id))
		return
	}
	touchesTox := req.AlcoholBlood != nil || req.AlcoholUrine != nil || req.ToxDrugBlood != nil ||
		req.ToxDrugUrine != nil || req.ToxCO != nil || req.OtherTox != nil
	record, err := ch.cases.Update(c.Request.Context(), id, req.FormVersion, func(record *types.Case) error {
		if touchesTox && record.ToxOrdered && !record.ToxViewedByExpert {
			return fmt.Errorf("toxicology sections are locked until the order is viewed: %w", services.ErrPrecondition)
		}
		setIf := func(dst *string, src *string) {
			if src != nil {
				*dst = *src
			}
		}
		setIf(&record.DeceasedName, req.DeceasedName)
		setIf(&record.MaidenName, req.MaidenName)
		setIf(&record.MotherName, req.MotherName)
		setIf(&record.BirthPlace, req.BirthPlace)
		setIf(&record.TAJNumber, req.TAJNumber)
		setIf(&record.InstitutionName, req.InstitutionName)
		setIf(&record.ExternalCaseNumber, req.ExternalCaseNumber)
		setIf(&record.Poseidon, req.Poseidon)
		setIf(&record.DirectCause, req.DirectCause)
		setIf(&record.UnderlyingDisease, req.UnderlyingDisease)
		setIf(&record.AlcoholBlood, req.AlcoholBlood)
		setIf(&record.AlcoholUrine, req.AlcoholUrine)
		setIf(&record.ToxDrugBlood, req.ToxDrugBlood)
		setIf(&record.ToxDrugUrine, req.ToxDrugUrine)
		setIf(&record.ToxCO, req.ToxCO)
		setIf(&record.OtherTox, req.OtherTox)
		return nil
	})
	if err != nil {
		Fail(c, ch.log, err, fmt.Sprintf("/cases/%d/edit", id))
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"case": record})
		return
	}
	RedirectWithFlash(c, fmt.Sprintf("/cases/%d", id), "Ügy mentve")
}

func (ch *CasesHandler) Upload(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	redirect := fmt.Sprintf("/cases/%d", id)
	file, err := c.FormFile("file")
	if err != nil {
		Fail(c, ch.log, fmt.Errorf("missing file: %w", services.ErrValidation), redirect)
		return
	}
	src, err := file.Open()
	if err != nil {
		Fail(c, ch.log, err, redirect)
		return
	}
	defer src.Close()
	category := c.PostForm("category")
	_, err = ch.cases.Upload(c.Request.Context(), id, file.Filename, file.Header.Get("Content-Type"), file.Size, src, category)
	if err != nil {
		Fail(c, ch.log, err, redirect)
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusCreated, gin.H{"success": true})
		return
	}
	RedirectWithFlash(c, redirect, "Fájl feltöltve")
}

func (ch *CasesHandler) File(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	f, mime, err := ch.cases.OpenFile(c.Request.Context(), id, c.Param("name"))
	if err != nil {
		Fail(c, ch.log, err, fmt.Sprintf("/cases/%d", id))
		return
	}
	defer f.Close()
	c.Header("Content-Type", mime)
	c.Status(http.StatusOK)
	io.Copy(c.Writer, f)
}

func (ch *CasesHandler) AddNote(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"new_note" form:"new_note"`
	}
	if err := c.ShouldBind(&req); err != nil {
		Fail(c, ch.log, fmt.Errorf("bad request body: %w", services.ErrValidation), fmt.Sprintf("/cases/%d", id))
		return
	}
	record, err := ch.cases.AddNote(c.Request.Context(), id, req.Text)
	if err != nil {
		Fail(c, ch.log, err, fmt.Sprintf("/cases/%d", id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"notes": record.Notes})
}

func (ch *CasesHandler) MarkToxViewed(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := ch.cases.MarkToxViewed(c.Request.Context(), id); err != nil {
		Fail(c, ch.log, err, fmt.Sprintf("/cases/%d", id))
		return
	}
	c.Status(http.StatusNoContent)
}

func (ch *CasesHandler) OrderTox(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		FormVersion string   `json:"form_version" form:"form_version"`
		Assays      []string `json:"assays" form:"assays"`
	}
	if err := c.ShouldBind(&req); err != nil {
		Fail(c, ch.log, fmt.Errorf("bad request body: %w", services.ErrValidation), fmt.Sprintf("/cases/%d", id))
		return
	}
	record, err := ch.cases.OrderTox(c.Request.Context(), id, req.FormVersion, req.Assays)
	if err != nil {
		Fail(c, ch.log, err, fmt.Sprintf("/cases/%d", id))
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"tox_orders": record.ToxOrders})
		return
	}
	RedirectWithFlash(c, fmt.Sprintf("/cases/%d", id), "Toxikológiai vizsgálat megrendelve")
}

func (ch *CasesHandler) GenerateToxDoc(c *gin.Context) {
	ch.generate(c, "generate_tox_doc", ch.documents.GenerateToxDoc)
}

func (ch *CasesHandler) GenerateCertificate(c *gin.Context) {
	ch.generate(c, "generate_certificate", ch.documents.GenerateCertificate)
}

func (ch *CasesHandler) generate(c *gin.Context, endpoint string, run func(ctx context.Context, caseID uint, idemKey string) (*types.CaseAttachment, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	act, _ := actor.FromContext(c.Request.Context())
	key := ch.idem.ComputeKey(endpoint, act.UserID, id, formBody(c), "")
	attachment, err := run(c.Request.Context(), id, key)
	if err != nil {
		Fail(c, ch.log, err, fmt.Sprintf("/cases/%d", id))
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusCreated, gin.H{"attachment": attachment})
		return
	}
	RedirectWithFlash(c, fmt.Sprintf("/cases/%d", id), fmt.Sprintf("Dokumentum elkészült: %s", attachment.Filename))
}

// Execute renders the expert's worksheet. The first open transitions the case
// and consumes the expert's pending task messages.
func (ch *CasesHandler) Execute(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	record, toxLocked, err := ch.cases.OpenExecute(c.Request.Context(), id)
	if err != nil {
		Fail(c, ch.log, err, "/dashboard")
		return
	}
	resp := gin.H{
		"case":         record,
		"form_version": record.UpdatedAt.UTC().Format(time.RFC3339),
		"flash":        ConsumeFlash(c),
	}
	if toxLocked {
		resp["tox_locked"] = true
		resp["tox_lock_message"] = "A toxikológiai szakasz zárolva: előbb tekintse meg a végzést"
	}
	c.JSON(http.StatusOK, resp)
}

// SzignalList is the signaller's queue of unassigned cases.
func (ch *CasesHandler) SzignalList(c *gin.Context) {
	records, err := ch.cases.List(c.Request.Context(), repos.CaseFilter{Status: workflow.StatusReceived})
	if err != nil {
		Fail(c, ch.log, err, "/dashboard")
		return
	}
	c.JSON(http.StatusOK, gin.H{"cases": records, "flash": ConsumeFlash(c)})
}

func (ch *CasesHandler) Assign(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		Action  string `json:"action" form:"action"`
		Expert1 string `json:"expert_1" form:"expert_1"`
		Expert2 string `json:"expert_2" form:"expert_2"`
	}
	if err := c.ShouldBind(&req); err != nil || req.Action != "assign" {
		Fail(c, ch.log, fmt.Errorf("bad assignment request: %w", services.ErrValidation), "/szignal_cases")
		return
	}
	act, _ := actor.FromContext(c.Request.Context())
	key := ch.idem.ComputeKey("assign_experts", act.UserID, id, map[string]string{
		"action":   req.Action,
		"expert_1": req.Expert1,
		"expert_2": req.Expert2,
	}, "")
	record, err := ch.cases.AssignExperts(c.Request.Context(), id, req.Expert1, req.Expert2, key)
	if err != nil {
		Fail(c, ch.log, err, "/szignal_cases")
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"case": record})
		return
	}
	RedirectWithFlash(c, "/szignal_cases", fmt.Sprintf("Szakértők kiszignálva: %s", record.CaseNumber))
}

func (ch *CasesHandler) AssignDescriber(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		Describer string `json:"describer" form:"describer"`
	}
	if err := c.ShouldBind(&req); err != nil {
		Fail(c, ch.log, fmt.Errorf("bad request body: %w", services.ErrValidation), fmt.Sprintf("/cases/%d", id))
		return
	}
	act, _ := actor.FromContext(c.Request.Context())
	key := ch.idem.ComputeKey("assign_describer", act.UserID, id, map[string]string{"describer": req.Describer}, "")
	record, err := ch.cases.AssignDescriber(c.Request.Context(), id, req.Describer, key)
	if err != nil {
		Fail(c, ch.log, err, fmt.Sprintf("/cases/%d", id))
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"case": record})
		return
	}
	RedirectWithFlash(c, fmt.Sprintf("/cases/%d", id), "Leíró hozzárendelve")
}

func (ch *CasesHandler) ChangeStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" form:"status"`
	}
	if err := c.ShouldBind(&req); err != nil || req.Status == "" {
		Fail(c, ch.log, fmt.Errorf("status is required: %w", services.ErrValidation), fmt.Sprintf("/cases/%d", id))
		return
	}
	record, err := ch.cases.ChangeStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		Fail(c, ch.log, err, fmt.Sprintf("/cases/%d", id))
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"case": record})
		return
	}
	RedirectWithFlash(c, fmt.Sprintf("/cases/%d", id), "Státusz frissítve")
}

// formBody flattens the submitted body into the canonical map the idempotency
// key is computed from.
func formBody(c *gin.Context) map[string]string {
	body := map[string]string{}
	if err := c.Request.ParseForm(); err == nil {
		for k, vs := range c.Request.PostForm {
			if len(vs) > 0 {
				body[k] = vs[0]
			}
		}
	}
	return body
}
