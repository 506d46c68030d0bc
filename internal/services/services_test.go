package services

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/PR1MKO/iktato-backend/internal/actor"
	"github.com/PR1MKO/iktato-backend/internal/db"
	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/repos"
	"github.com/PR1MKO/iktato-backend/internal/types"
	"github.com/PR1MKO/iktato-backend/internal/workflow"
)

type testEnv struct {
	svc            *db.Service
	users          repos.UserRepo
	cases          CasesService
	caseRepo       repos.CaseRepo
	changeLogs     repos.ChangeLogRepo
	invChangeLogs  repos.InvestigationChangeLogRepo
	tasks          repos.TaskMessageRepo
	investigations InvestigationsService
	idem           IdempotencyService
	changelog      ChangeLogService
	auth           AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewNop()
	dir := t.TempDir()
	svc, err := db.New(filepath.Join(dir, "primary.db"), filepath.Join(dir, "examination.db"), log)
	if err != nil {
		t.Fatalf("open binds: %v", err)
	}
	if err := svc.AutoMigrateAll(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	primary := svc.Primary()
	examination := svc.Examination()

	userRepo := repos.NewUserRepo(primary, log)
	caseRepo := repos.NewCaseRepo(primary, log)
	attachRepo := repos.NewAttachmentRepo(primary, log)
	changeLogRepo := repos.NewChangeLogRepo(primary, log)
	idemRepo := repos.NewIdempotencyRepo(primary, log)
	taskRepo := repos.NewTaskMessageRepo(primary, log)
	invRepo := repos.NewInvestigationRepo(examination, log)
	invNoteRepo := repos.NewInvestigationNoteRepo(examination, log)
	invAttachRepo := repos.NewInvestigationAttachmentRepo(examination, log)
	invChangeLogRepo := repos.NewInvestigationChangeLogRepo(examination, log)

	idem := NewIdempotencyService(primary, log, idemRepo, 300*time.Second)
	cases := NewCasesService(
		primary, log,
		caseRepo, userRepo, attachRepo, changeLogRepo, taskRepo,
		idem,
		filepath.Join(dir, "uploads_cases"), "", 16<<20,
	)
	investigations := NewInvestigationsService(
		examination, log,
		invRepo, invNoteRepo, invAttachRepo, userRepo,
		filepath.Join(dir, "uploads_investigations"), 16<<20,
	)
	changelog := NewChangeLogService(log, changeLogRepo, invChangeLogRepo, caseRepo, invRepo, userRepo)
	auth := NewAuthService(primary, log, userRepo, "test-secret", time.Hour)

	return &testEnv{
		svc:            svc,
		users:          userRepo,
		cases:          cases,
		caseRepo:       caseRepo,
		changeLogs:     changeLogRepo,
		invChangeLogs:  invChangeLogRepo,
		tasks:          taskRepo,
		investigations: investigations,
		idem:           idem,
		changelog:      changelog,
		auth:           auth,
	}
}

func (te *testEnv) addUser(t *testing.T, username, screenName, role string) *types.User {
	t.Helper()
	user := &types.User{
		Username:     username,
		ScreenName:   screenName,
		PasswordHash: "x",
		Role:         role,
	}
	if err := te.users.Create(context.Background(), nil, user); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func actorCtx(user *types.User) context.Context {
	return actor.WithActor(context.Background(), actor.Actor{
		UserID:     user.ID,
		Username:   user.Username,
		ScreenName: user.ScreenName,
		FullName:   user.FullName,
		Role:       user.Role,
	})
}

func (te *testEnv) newCase(t *testing.T, ctx context.Context) *types.Case {
	t.Helper()
	record, err := te.cases.Create(ctx, CaseCreateInput{
		CaseType:    "test",
		ArrivalMode: "Email",
		TempID:      "TMP-42",
	})
	if err != nil {
		t.Fatalf("create case: %v", err)
	}
	return record
}

var caseNumberRe = regexp.MustCompile(`^B:\d{4}/\d{4}$`)

func TestCaseIntake(t *testing.T) {
	te := newTestEnv(t)
	office := te.addUser(t, "iroda1", "Iroda Egy", "office")
	ctx := actorCtx(office)

	record := te.newCase(t, ctx)
	if !caseNumberRe.MatchString(record.CaseNumber) {
		t.Fatalf("case number %q does not match B:NNNN/YYYY", record.CaseNumber)
	}
	if record.Status != workflow.StatusReceived {
		t.Fatalf("status = %q, want received", record.Status)
	}
	if got := record.Deadline.Sub(record.RegistrationTime); got != 30*24*time.Hour {
		t.Fatalf("deadline offset = %v, want 720h", got)
	}

	rows, err := te.changeLogs.ListByCase(ctx, nil, record.ID, 0)
	if err != nil {
		t.Fatalf("list changelog: %v", err)
	}
	byField := map[string]*types.ChangeLog{}
	for _, row := range rows {
		if prev, dup := byField[row.FieldName]; dup {
			t.Fatalf("field %s logged twice: %+v and %+v", row.FieldName, prev, row)
		}
		byField[row.FieldName] = row
		if row.OldValue != "∅" {
			t.Fatalf("insert row for %s has old value %q, want sentinel", row.FieldName, row.OldValue)
		}
	}
	for _, want := range []string{"case_number", "case_type", "arrival_mode", "temp_id", "status"} {
		if _, ok := byField[want]; !ok {
			t.Fatalf("no insert changelog row for populated column %s", want)
		}
	}
	if _, ok := byField["deceased_name"]; ok {
		t.Fatal("insert changelog row present for empty column deceased_name")
	}
	if byField["status"].EditedBy != "Iroda Egy" {
		t.Fatalf("edited_by = %q, want actor display name", byField["status"].EditedBy)
	}
}

func TestAssignExpertsCreatesTaskAndAudit(t *testing.T) {
	te := newTestEnv(t)
	office := te.addUser(t, "iroda1", "", "office")
	expert := te.addUser(t, "exp", "exp", "expert")
	signaller := te.addUser(t, "szig1", "Szignáló", "signaller")

	record := te.newCase(t, actorCtx(office))
	ctx := actorCtx(signaller)

	body := map[string]string{"action": "assign", "expert_1": "exp", "expert_2": ""}
	key := te.idem.ComputeKey("assign_experts", signaller.ID, record.ID, body, "")
	updated, err := te.cases.AssignExperts(ctx, record.ID, "exp", "", key)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if updated.Status != workflow.StatusSignalled {
		t.Fatalf("status = %q, want signalled", updated.Status)
	}
	if updated.Expert1 != "exp" || updated.Expert2 != "" {
		t.Fatalf("experts = %q/%q, want exp/empty", updated.Expert1, updated.Expert2)
	}

	pending, err := te.tasks.ListPendingForUser(ctx, nil, expert.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("task messages = %d, want 1", len(pending))
	}

	rows, err := te.changeLogs.ListByCase(ctx, nil, record.ID, 0)
	if err != nil {
		t.Fatalf("list changelog: %v", err)
	}
	var sawExpert, sawStatus bool
	for _, row := range rows {
		if row.FieldName == "expert_1" && row.NewValue == "exp" {
			sawExpert = true
		}
		if row.FieldName == "status" && row.NewValue == workflow.StatusSignalled {
			sawStatus = true
		}
	}
	if !sawExpert || !sawStatus {
		t.Fatalf("missing audit rows for assignment (expert=%v status=%v)", sawExpert, sawStatus)
	}

	// Replay with the same key inside the TTL: no side effect, no new task.
	_, err = te.cases.AssignExperts(ctx, record.ID, "exp", "", key)
	if err == nil {
		t.Fatal("replay succeeded, want duplicate error")
	}
	pending, _ = te.tasks.ListPendingForUser(ctx, nil, expert.ID)
	if len(pending) != 1 {
		t.Fatalf("task messages after replay = %d, want 1", len(pending))
	}
}

func TestToxViewedGate(t *testing.T) {
	te := newTestEnv(t)
	office := te.addUser(t, "iroda1", "", "office")
	expert := te.addUser(t, "exp", "exp", "expert")

	record := te.newCase(t, actorCtx(office))
	ctx := actorCtx(expert)

	if _, err := te.cases.OrderTox(ctx, record.ID, "", []string{"Alkohol vér"}); err != nil {
		t.Fatalf("order tox: %v", err)
	}

	_, toxLocked, err := te.cases.OpenExecute(ctx, record.ID)
	if err != nil {
		t.Fatalf("open execute: %v", err)
	}
	if !toxLocked {
		t.Fatal("tox section not locked before viewing the order")
	}

	if err := te.cases.MarkToxViewed(ctx, record.ID); err != nil {
		t.Fatalf("mark tox viewed: %v", err)
	}
	updated, err := te.cases.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if !updated.ToxViewedByExpert || updated.ToxViewedAt == nil {
		t.Fatalf("tox viewed fields not stamped: %+v", updated)
	}

	rows, err := te.changeLogs.ListByCase(ctx, nil, record.ID, 0)
	if err != nil {
		t.Fatalf("list changelog: %v", err)
	}
	found := false
	for _, row := range rows {
		if row.NewValue == ToxViewedNote {
			found = true
		}
	}
	if !found {
		t.Fatalf("no changelog row with %q", ToxViewedNote)
	}

	_, toxLocked, err = te.cases.OpenExecute(ctx, record.ID)
	if err != nil {
		t.Fatalf("open execute: %v", err)
	}
	if toxLocked {
		t.Fatal("tox section still locked after viewing")
	}
}

func TestMarkToxViewedRequiresOrder(t *testing.T) {
	te := newTestEnv(t)
	office := te.addUser(t, "iroda1", "", "office")
	expert := te.addUser(t, "exp", "exp", "expert")
	record := te.newCase(t, actorCtx(office))

	err := te.cases.MarkToxViewed(actorCtx(expert), record.ID)
	if !errors.Is(err, ErrPrecondition) {
		t.Fatalf("err = %v, want precondition", err)
	}
}

func TestInvestigationExpertAssigned(t *testing.T) {
	te := newTestEnv(t)
	signaller := te.addUser(t, "szig1", "", "signaller")
	ctx := actorCtx(signaller)

	record, err := te.investigations.Create(ctx, InvestigationCreateInput{
		ExternalCaseNumber: "K-99/2025",
		SubjectName:        "Teszt Elek",
		MotherName:         "Minta Anna",
		BirthPlace:         "Budapest",
		BirthDate:          time.Date(1960, 1, 2, 0, 0, 0, 0, time.UTC),
		TAJNumber:          "123456789",
		Residence:          "Budapest, Fő u. 1.",
		Citizenship:        "magyar",
		InstitutionName:    "Rendőrkapitányság",
		AssignmentType:     types.AssignmentExpertAssigned,
		AssignedExpertID:   42,
	})
	if err != nil {
		t.Fatalf("create investigation: %v", err)
	}
	if record.Expert1ID != 42 {
		t.Fatalf("expert1_id = %d, want 42", record.Expert1ID)
	}
	if record.Status != workflow.StatusSignalled {
		t.Fatalf("status = %q, want signalled", record.Status)
	}
	if !regexp.MustCompile(`^V:\d{4}/\d{4}$`).MatchString(record.CaseNumber) {
		t.Fatalf("case number %q does not match V:NNNN/YYYY", record.CaseNumber)
	}

	rows, err := te.invChangeLogs.ListByInvestigation(ctx, nil, record.ID, 0)
	if err != nil {
		t.Fatalf("list changelog: %v", err)
	}
	fields := map[string]bool{}
	for _, row := range rows {
		fields[row.FieldName] = true
		if row.EditedBy != signaller.ID {
			t.Fatalf("edited_by = %d, want %d", row.EditedBy, signaller.ID)
		}
	}
	for _, want := range []string{"expert1_id", "assigned_expert_id", "status"} {
		if !fields[want] {
			t.Fatalf("missing changelog row for %s", want)
		}
	}
}

func TestInvestigationRequiresIdentifier(t *testing.T) {
	te := newTestEnv(t)
	signaller := te.addUser(t, "szig1", "", "signaller")

	_, err := te.investigations.Create(actorCtx(signaller), InvestigationCreateInput{
		SubjectName:     "Teszt Elek",
		MotherName:      "Minta Anna",
		BirthPlace:      "Budapest",
		BirthDate:       time.Date(1960, 1, 2, 0, 0, 0, 0, time.UTC),
		TAJNumber:       "123456789",
		Residence:       "Budapest",
		Citizenship:     "magyar",
		InstitutionName: "Kórház",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestAuditIsolationAcrossBinds(t *testing.T) {
	te := newTestEnv(t)
	office := te.addUser(t, "iroda1", "", "office")
	ctx := actorCtx(office)

	record := te.newCase(t, ctx)
	invRows, err := te.invChangeLogs.List(ctx, nil, repos.ChangeLogFilter{})
	if err != nil {
		t.Fatalf("list exam changelog: %v", err)
	}
	if len(invRows) != 0 {
		t.Fatalf("case mutation produced %d examination-bind rows", len(invRows))
	}

	if _, err := te.investigations.Create(ctx, InvestigationCreateInput{
		OtherIdentifier: "X-1",
		SubjectName:     "Teszt Elek",
		MotherName:      "Minta Anna",
		BirthPlace:      "Budapest",
		BirthDate:       time.Date(1970, 5, 6, 0, 0, 0, 0, time.UTC),
		TAJNumber:       "987654321",
		Residence:       "Pécs",
		Citizenship:     "magyar",
		InstitutionName: "Klinika",
	}); err != nil {
		t.Fatalf("create investigation: %v", err)
	}
	caseRows, err := te.changeLogs.ListByCase(ctx, nil, record.ID, 0)
	if err != nil {
		t.Fatalf("list changelog: %v", err)
	}
	for _, row := range caseRows {
		if row.CaseID != record.ID {
			t.Fatalf("primary-bind row for unexpected case %d", row.CaseID)
		}
	}
}

func TestStaleFormRejected(t *testing.T) {
	te := newTestEnv(t)
	office := te.addUser(t, "iroda1", "", "office")
	ctx := actorCtx(office)
	record := te.newCase(t, ctx)

	stale := record.UpdatedAt.Add(-time.Hour).UTC().Format(time.RFC3339)
	_, err := te.cases.Update(ctx, record.ID, stale, func(c *types.Case) error {
		c.DeceasedName = "Changed"
		return nil
	})
	if !errors.Is(err, ErrStaleForm) {
		t.Fatalf("err = %v, want stale form", err)
	}
	reloaded, _ := te.cases.Get(ctx, record.ID)
	if reloaded.DeceasedName != "" {
		t.Fatalf("stale submit changed the record: %q", reloaded.DeceasedName)
	}

	fresh := record.UpdatedAt.UTC().Format(time.RFC3339)
	if _, err := te.cases.Update(ctx, record.ID, fresh, func(c *types.Case) error {
		c.DeceasedName = "Changed"
		return nil
	}); err != nil {
		t.Fatalf("fresh submit rejected: %v", err)
	}
}

func TestLockedCaseImmutable(t *testing.T) {
	te := newTestEnv(t)
	office := te.addUser(t, "iroda1", "", "office")
	ctx := actorCtx(office)
	record := te.newCase(t, ctx)

	if err := te.svc.Primary().Model(&types.Case{}).Where("id = ?", record.ID).
		UpdateColumn("status", workflow.StatusClosed).Error; err != nil {
		t.Fatalf("force close: %v", err)
	}

	if _, err := te.cases.Update(ctx, record.ID, "", func(c *types.Case) error {
		c.DeceasedName = "X"
		return nil
	}); !errors.Is(err, ErrLocked) {
		t.Fatalf("update err = %v, want locked", err)
	}
	if _, err := te.cases.AddNote(ctx, record.ID, "note"); !errors.Is(err, ErrLocked) {
		t.Fatalf("add note err = %v, want locked", err)
	}
	if _, err := te.cases.AssignExperts(ctx, record.ID, "exp", "", ""); !errors.Is(err, ErrLocked) {
		t.Fatalf("assign err = %v, want locked", err)
	}
	if err := te.cases.Delete(ctx, record.ID); !errors.Is(err, ErrLocked) {
		t.Fatalf("delete err = %v, want locked", err)
	}
	still, err := te.cases.Get(ctx, record.ID)
	if err != nil || still == nil {
		t.Fatalf("locked case disappeared: %v", err)
	}
	if still.DeceasedName != "" {
		t.Fatalf("locked case mutated: %q", still.DeceasedName)
	}
}

func TestAddNoteFormatAndAudit(t *testing.T) {
	te := newTestEnv(t)
	office := te.addUser(t, "iroda1", "Iroda Egy", "office")
	ctx := actorCtx(office)
	record := te.newCase(t, ctx)

	updated, err := te.cases.AddNote(ctx, record.ID, "első jegyzet")
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	if !regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2} – Iroda Egy\] első jegyzet$`).MatchString(updated.Notes) {
		t.Fatalf("note line format wrong: %q", updated.Notes)
	}

	// Later entries land at the end of the stream, oldest first.
	updated, err = te.cases.AddNote(ctx, record.ID, "második jegyzet")
	if err != nil {
		t.Fatalf("second note: %v", err)
	}
	lines := strings.Split(updated.Notes, "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[0], "első jegyzet") || !strings.HasSuffix(lines[1], "második jegyzet") {
		t.Fatalf("notes out of order: %q", updated.Notes)
	}

	// A duplicate append still produces a distinct changelog row.
	before, _ := te.changeLogs.ListByCase(ctx, nil, record.ID, 0)
	if _, err := te.cases.AddNote(ctx, record.ID, "első jegyzet"); err != nil {
		t.Fatalf("duplicate note: %v", err)
	}
	after, _ := te.changeLogs.ListByCase(ctx, nil, record.ID, 0)
	notesRows := 0
	for _, row := range after {
		if row.FieldName == "notes" {
			notesRows++
		}
	}
	if notesRows < 2 || len(after) <= len(before) {
		t.Fatalf("duplicate append produced no new audit row (notes rows = %d)", notesRows)
	}
}

func TestChangeLogExportCSV(t *testing.T) {
	te := newTestEnv(t)
	office := te.addUser(t, "iroda1", "Iroda Egy", "office")
	ctx := actorCtx(office)
	te.newCase(t, ctx)

	var buf bytes.Buffer
	if err := te.changelog.ExportCSV(ctx, &buf, ChangeLogQuery{}); err != nil {
		t.Fatalf("export csv: %v", err)
	}
	out := buf.String()
	if out[:3] != "\xEF\xBB\xBF" {
		t.Fatal("CSV export missing UTF-8 BOM")
	}
	wantHeader := "Típus;Időpont (Budapest);Szerkesztő;Tárgy;Mező;Régi érték;Új érték"
	if got := strings.SplitN(out[3:], "\n", 2)[0]; got != wantHeader {
		t.Fatalf("CSV header = %q, want %q", got, wantHeader)
	}
}

func TestChangeLogUnifiedQueryPagination(t *testing.T) {
	te := newTestEnv(t)
	office := te.addUser(t, "iroda1", "Iroda Egy", "office")
	ctx := actorCtx(office)
	te.newCase(t, ctx)

	all, total, err := te.changelog.Query(ctx, ChangeLogQuery{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total == 0 || len(all) != total {
		t.Fatalf("unpaginated query returned %d of %d", len(all), total)
	}
	page, pTotal, err := te.changelog.Query(ctx, ChangeLogQuery{Page: 1, PerPage: 2})
	if err != nil {
		t.Fatalf("paged query: %v", err)
	}
	if pTotal != total || len(page) != 2 {
		t.Fatalf("page = %d entries (total %d), want 2 (%d)", len(page), pTotal, total)
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.After(all[i-1].Timestamp) {
			t.Fatal("entries not timestamp-descending")
		}
	}
}

func TestCaseNumberImmutable(t *testing.T) {
	te := newTestEnv(t)
	office := te.addUser(t, "iroda1", "", "office")
	ctx := actorCtx(office)
	record := te.newCase(t, ctx)

	_, err := te.cases.Update(ctx, record.ID, "", func(c *types.Case) error {
		c.CaseNumber = "B:9999/1999"
		return nil
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestEffectiveDescriberFallsBackToExpertDefault(t *testing.T) {
	te := newTestEnv(t)
	office := te.addUser(t, "iroda1", "", "office")
	describer := te.addUser(t, "leiro1", "Leíró Ilona", "describer")
	expert := te.addUser(t, "exp", "exp", "expert")
	expert.DefaultDescriberID = &describer.ID
	if err := te.users.Save(context.Background(), nil, expert); err != nil {
		t.Fatalf("save expert: %v", err)
	}
	ctx := actorCtx(office)
	record := te.newCase(t, ctx)
	record.Expert1 = "exp"

	got, err := te.cases.EffectiveDescriber(ctx, record)
	if err != nil {
		t.Fatalf("effective describer: %v", err)
	}
	if got != "Leíró Ilona" {
		t.Fatalf("effective describer = %q, want default describer", got)
	}

	record.Describer = "Explicit"
	got, _ = te.cases.EffectiveDescriber(ctx, record)
	if got != "Explicit" {
		t.Fatalf("explicit describer not honored: %q", got)
	}
}

func TestAssignExpertsRequiresFirstExpert(t *testing.T) {
	te := newTestEnv(t)
	signaller := te.addUser(t, "szig1", "Szignáló Anna", "signaller")
	te.addUser(t, "exp2", "Dr. Második", "expert")
	ctx := actorCtx(signaller)
	record := te.newCase(t, ctx)

	_, err := te.cases.AssignExperts(ctx, record.ID, "", "Dr. Második", "")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expert_2-only assignment accepted: %v", err)
	}
	fresh, _ := te.caseRepo.GetByID(ctx, nil, record.ID)
	if fresh.Status != workflow.StatusReceived || fresh.Expert2 != "" {
		t.Fatalf("rejected assignment changed the record: status=%s expert_2=%q", fresh.Status, fresh.Expert2)
	}

	// The second slot stays optional.
	te.addUser(t, "exp1", "Dr. Első", "expert")
	updated, err := te.cases.AssignExperts(ctx, record.ID, "Dr. Első", "", "")
	if err != nil {
		t.Fatalf("single-expert assignment: %v", err)
	}
	if updated.Expert1 != "Dr. Első" || updated.Status != workflow.StatusSignalled {
		t.Fatalf("assignment not applied: expert_1=%q status=%s", updated.Expert1, updated.Status)
	}
}

func TestUploadRecordsUploaderLabel(t *testing.T) {
	te := newTestEnv(t)
	office := te.addUser(t, "iroda1", "Iroda Egy", "office")
	ctx := actorCtx(office)
	record := te.newCase(t, ctx)

	content := []byte("%PDF-1.4 lelet")
	attachment, err := te.cases.Upload(ctx, record.ID, "lelet.pdf", "application/pdf", int64(len(content)), bytes.NewReader(content), "egyeb")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if attachment.Uploader != "Iroda Egy" {
		t.Fatalf("uploader label = %q, want display name", attachment.Uploader)
	}
	if attachment.CaseID != record.ID || attachment.Filename != "lelet.pdf" {
		t.Fatalf("attachment row wrong: %+v", attachment)
	}
}

func TestAuthorLabelPrefersScreenName(t *testing.T) {
	te := newTestEnv(t)
	user := &types.User{
		Username:     "kovacsj",
		ScreenName:   "Dr. Kovács",
		FullName:     "Kovács János",
		PasswordHash: "x",
		Role:         "expert",
	}
	if err := te.users.Create(context.Background(), nil, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if got := user.DisplayName(); got != "Dr. Kovács" {
		t.Fatalf("display name = %q, want screen name", got)
	}

	ctx := actorCtx(user)
	record := te.newCase(t, ctx)
	updated, err := te.cases.AddNote(ctx, record.ID, "szemle kész")
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	if !strings.Contains(updated.Notes, "– Dr. Kovács]") {
		t.Fatalf("note author tag = %q, want screen name", updated.Notes)
	}
}
