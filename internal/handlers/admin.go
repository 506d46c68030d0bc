package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/repos"
	"github.com/PR1MKO/iktato-backend/internal/services"
	"github.com/PR1MKO/iktato-backend/internal/timeutil"
)

type AdminHandler struct {
	log       *logger.Logger
	auth      services.AuthService
	cases     services.CasesService
	changelog services.ChangeLogService
	tasks     services.TasksService
	userRepo  repos.UserRepo
}

func NewAdminHandler(
	log *logger.Logger,
	auth services.AuthService,
	cases services.CasesService,
	changelog services.ChangeLogService,
	tasks services.TasksService,
	userRepo repos.UserRepo,
) *AdminHandler {
	return &AdminHandler{
		log:       log.With("handler", "AdminHandler"),
		auth:      auth,
		cases:     cases,
		changelog: changelog,
		tasks:     tasks,
		userRepo:  userRepo,
	}
}

func (ah *AdminHandler) ListUsers(c *gin.Context) {
	users, err := ah.userRepo.List(c.Request.Context(), nil)
	if err != nil {
		Fail(c, ah.log, err, "/dashboard")
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "flash": ConsumeFlash(c)})
}

func (ah *AdminHandler) CreateUser(c *gin.Context) {
	var req struct {
		Username   string `json:"username" form:"username"`
		Password   string `json:"password" form:"password"`
		FullName   string `json:"full_name" form:"full_name"`
		ScreenName string `json:"screen_name" form:"screen_name"`
		Role       string `json:"role" form:"role"`
	}
	if err := c.ShouldBind(&req); err != nil {
		Fail(c, ah.log, fmt.Errorf("bad request body: %w", services.ErrValidation), "/admin/users")
		return
	}
	user, err := ah.auth.RegisterUser(c.Request.Context(), req.Username, req.Password, req.FullName, req.ScreenName, req.Role)
	if err != nil {
		Fail(c, ah.log, err, "/admin/users")
		return
	}
	if tErr := ah.tasks.LogAction(c.Request.Context(), "create_user", user.Username); tErr != nil {
		ah.log.Error("action log failed", "error", tErr)
	}
	if wantsJSON(c) {
		c.JSON(http.StatusCreated, gin.H{"user": user})
		return
	}
	RedirectWithFlash(c, "/admin/users", fmt.Sprintf("Felhasználó létrehozva: %s", user.Username))
}

// DeleteCase refuses finalized cases; those stay on record permanently.
func (ah *AdminHandler) DeleteCase(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := ah.cases.Delete(c.Request.Context(), id); err != nil {
		Fail(c, ah.log, err, "/admin/cases")
		return
	}
	if tErr := ah.tasks.LogAction(c.Request.Context(), "delete_case", fmt.Sprintf("case %d", id)); tErr != nil {
		ah.log.Error("action log failed", "error", tErr)
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	RedirectWithFlash(c, "/admin/cases", "Ügy törölve")
}

func changeLogQuery(c *gin.Context) services.ChangeLogQuery {
	q := services.ChangeLogQuery{
		Type:  c.Query("type"),
		Actor: c.Query("actor"),
	}
	if v, err := strconv.ParseUint(c.Query("subject_id"), 10, 32); err == nil {
		q.SubjectID = uint(v)
	}
	if v, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		q.Page = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("per_page", "50")); err == nil {
		q.PerPage = v
	}
	if v, err := time.ParseInLocation(timeutil.DateLayout, c.Query("date_from"), timeutil.Budapest); err == nil {
		q.DateFrom = v
	}
	if v, err := time.ParseInLocation(timeutil.DateLayout, c.Query("date_to"), timeutil.Budapest); err == nil {
		q.DateTo = v
	}
	return q
}

func (ah *AdminHandler) ChangeLog(c *gin.Context) {
	q := changeLogQuery(c)
	entries, total, err := ah.changelog.Query(c.Request.Context(), q)
	if err != nil {
		Fail(c, ah.log, err, "/dashboard")
		return
	}
	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		out = append(out, gin.H{
			"type":            e.Type,
			"subject_id":      e.SubjectID,
			"subject":         e.Subject,
			"field":           e.Field,
			"old_value":       e.OldValue,
			"new_value":       e.NewValue,
			"edited_by":       e.EditedBy,
			"timestamp_utc":   e.Timestamp.UTC().Format(time.RFC3339),
			"timestamp_local": timeutil.ToLocal(e.Timestamp).Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"entries":  out,
		"total":    total,
		"page":     q.Page,
		"per_page": q.PerPage,
	})
}

func (ah *AdminHandler) ChangeLogCSV(c *gin.Context) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="changelog.csv"`)
	if err := ah.changelog.ExportCSV(c.Request.Context(), c.Writer, changeLogQuery(c)); err != nil {
		ah.log.Error("changelog csv export failed", "error", err)
		return
	}
	if tErr := ah.tasks.LogAction(c.Request.Context(), "export_changelog", "csv"); tErr != nil {
		ah.log.Error("action log failed", "error", tErr)
	}
}

func (ah *AdminHandler) ChangeLogJSONL(c *gin.Context) {
	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Content-Disposition", `attachment; filename="changelog.jsonl"`)
	if err := ah.changelog.ExportJSONL(c.Request.Context(), c.Writer, changeLogQuery(c)); err != nil {
		ah.log.Error("changelog jsonl export failed", "error", err)
		return
	}
	if tErr := ah.tasks.LogAction(c.Request.Context(), "export_changelog", "jsonl"); tErr != nil {
		ah.log.Error("action log failed", "error", tErr)
	}
}
