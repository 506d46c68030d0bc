package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PR1MKO/iktato-backend/internal/actor"
	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/repos"
	"github.com/PR1MKO/iktato-backend/internal/roles"
	"github.com/PR1MKO/iktato-backend/internal/services"
	"github.com/PR1MKO/iktato-backend/internal/timeutil"
	"github.com/PR1MKO/iktato-backend/internal/workflow"
)

type DashboardHandler struct {
	log      *logger.Logger
	cases    services.CasesService
	tasks    services.TasksService
	caseRepo repos.CaseRepo
	warnDays int
}

func NewDashboardHandler(log *logger.Logger, cases services.CasesService, tasks services.TasksService, caseRepo repos.CaseRepo, warnDays int) *DashboardHandler {
	if warnDays <= 0 {
		warnDays = 14
	}
	return &DashboardHandler{
		log:      log.With("handler", "DashboardHandler"),
		cases:    cases,
		tasks:    tasks,
		caseRepo: caseRepo,
		warnDays: warnDays,
	}
}

// Overview is the role-dispatched landing view: every role sees the deadline
// counter, experts additionally see their pending task messages, signallers
// their unassigned queue.
func (dh *DashboardHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()
	act, _ := actor.FromContext(ctx)
	now := timeutil.NowUTC()
	dueSoon, err := dh.caseRepo.CountDueWithin(ctx, nil, now, now.Add(time.Duration(dh.warnDays)*24*time.Hour))
	if err != nil {
		Fail(c, dh.log, err, "/login")
		return
	}
	resp := gin.H{
		"role":          act.Role,
		"display_name":  act.DisplayName(),
		"due_soon":      dueSoon,
		"due_warn_days": dh.warnDays,
		"flash":         ConsumeFlash(c),
	}
	switch roles.Role(act.Role) {
	case roles.RoleExpert, roles.RoleDescriber:
		pending, tErr := dh.tasks.PendingForUser(ctx, act.UserID)
		if tErr != nil {
			Fail(c, dh.log, tErr, "/login")
			return
		}
		resp["task_messages"] = pending
		mine, lErr := dh.cases.List(ctx, repos.CaseFilter{ExpertLabel: act.DisplayName()})
		if lErr != nil {
			Fail(c, dh.log, lErr, "/login")
			return
		}
		resp["my_cases"] = mine
	case roles.RoleSignaller:
		unassigned, lErr := dh.cases.List(ctx, repos.CaseFilter{Status: workflow.StatusReceived})
		if lErr != nil {
			Fail(c, dh.log, lErr, "/login")
			return
		}
		resp["unassigned"] = unassigned
	}
	c.JSON(http.StatusOK, resp)
}
