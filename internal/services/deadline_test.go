package services

import (
	"context"
	"testing"
	"time"

	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/repos"
	"github.com/PR1MKO/iktato-backend/internal/types"
	"github.com/PR1MKO/iktato-backend/internal/workflow"
)

type recordingMailer struct {
	to      []string
	subject string
	body    string
	sent    int
}

func (m *recordingMailer) Send(to []string, subject, body string) error {
	m.to = to
	m.subject = subject
	m.body = body
	m.sent++
	return nil
}

func newDeadlineEnv(t *testing.T, te *testEnv, mailer Mailer) DeadlineService {
	t.Helper()
	log := logger.NewNop()
	primary := te.svc.Primary()
	actionRepo := repos.NewAuditActionRepo(primary, log)
	taskRepo := repos.NewTaskMessageRepo(primary, log)
	tasks := NewTasksService(primary, log, taskRepo, actionRepo)
	return NewDeadlineService(primary, log, te.caseRepo, te.users, tasks, mailer, 14)
}

func (te *testEnv) forceDeadline(t *testing.T, id uint, deadline time.Time) {
	t.Helper()
	if err := te.svc.Primary().Model(&types.Case{}).Where("id = ?", id).
		UpdateColumn("deadline", deadline).Error; err != nil {
		t.Fatalf("force deadline: %v", err)
	}
}

func TestScanAndWarnCountsDueCases(t *testing.T) {
	te := newTestEnv(t)
	office := te.addUser(t, "iroda1", "", "office")
	te.addUser(t, "admin@example.com", "", "admin")
	ctx := actorCtx(office)

	soon := te.newCase(t, ctx)
	far := te.newCase(t, ctx)
	te.forceDeadline(t, soon.ID, time.Now().UTC().Add(3*24*time.Hour))
	te.forceDeadline(t, far.ID, time.Now().UTC().Add(60*24*time.Hour))

	mailer := &recordingMailer{}
	ds := newDeadlineEnv(t, te, mailer)
	due, err := ds.ScanAndWarn(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if due != 1 {
		t.Fatalf("due = %d, want 1", due)
	}
	if mailer.sent != 1 || len(mailer.to) != 1 || mailer.to[0] != "admin@example.com" {
		t.Fatalf("mail not sent to admin: sent=%d to=%v", mailer.sent, mailer.to)
	}
}

func TestAutoCloseStaleExpiresPastDeadline(t *testing.T) {
	te := newTestEnv(t)
	office := te.addUser(t, "iroda1", "", "office")
	ctx := actorCtx(office)

	overdue := te.newCase(t, ctx)
	live := te.newCase(t, ctx)
	te.forceDeadline(t, overdue.ID, time.Now().UTC().Add(-24*time.Hour))

	ds := newDeadlineEnv(t, te, &recordingMailer{})
	closed, err := ds.AutoCloseStale(context.Background())
	if err != nil {
		t.Fatalf("auto close: %v", err)
	}
	if closed != 1 {
		t.Fatalf("closed = %d, want 1", closed)
	}
	a, _ := te.cases.Get(ctx, overdue.ID)
	if a.Status != workflow.StatusExpired {
		t.Fatalf("overdue case status = %q, want expired", a.Status)
	}
	b, _ := te.cases.Get(ctx, live.ID)
	if b.Status != workflow.StatusReceived {
		t.Fatalf("live case status changed to %q", b.Status)
	}
}
