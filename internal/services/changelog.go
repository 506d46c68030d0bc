package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/repos"
	"github.com/PR1MKO/iktato-backend/internal/timeutil"
)

const (
	SubjectCase          = "case"
	SubjectInvestigation = "investigation"
)

// ChangeLogEntry is the unified view over both binds' audit rows.
type ChangeLogEntry struct {
	Type      string    `json:"type"`
	SubjectID uint      `json:"subject_id"`
	Subject   string    `json:"subject"`
	Field     string    `json:"field"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	EditedBy  string    `json:"edited_by"`
	Timestamp time.Time `json:"-"`
}

// ChangeLogQuery filters the unified reader. Dates are Budapest-local civil
// days; the service converts them to UTC instants.
type ChangeLogQuery struct {
	Type      string
	SubjectID uint
	Actor     string
	DateFrom  time.Time
	DateTo    time.Time
	Page      int
	PerPage   int
}

type ChangeLogService interface {
	Query(ctx context.Context, q ChangeLogQuery) ([]ChangeLogEntry, int, error)
	ExportCSV(ctx context.Context, w io.Writer, q ChangeLogQuery) error
	ExportJSONL(ctx context.Context, w io.Writer, q ChangeLogQuery) error
}

type changeLogService struct {
	log      *logger.Logger
	caseLogs repos.ChangeLogRepo
	invLogs  repos.InvestigationChangeLogRepo
	caseRepo repos.CaseRepo
	invRepo  repos.InvestigationRepo
	userRepo repos.UserRepo
}

func NewChangeLogService(
	log *logger.Logger,
	caseLogs repos.ChangeLogRepo,
	invLogs repos.InvestigationChangeLogRepo,
	caseRepo repos.CaseRepo,
	invRepo repos.InvestigationRepo,
	userRepo repos.UserRepo,
) ChangeLogService {
	serviceLog := log.With("service", "ChangeLogService")
	return &changeLogService{
		log:      serviceLog,
		caseLogs: caseLogs,
		invLogs:  invLogs,
		caseRepo: caseRepo,
		invRepo:  invRepo,
		userRepo: userRepo,
	}
}

// Query merges both binds, sorted timestamp-descending with type as the
// tiebreak, and returns the requested page plus the total match count.
func (cl *changeLogService) Query(ctx context.Context, q ChangeLogQuery) ([]ChangeLogEntry, int, error) {
	entries, err := cl.collect(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].Type < entries[j].Type
	})
	total := len(entries)
	if q.PerPage > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * q.PerPage
		if start >= total {
			return nil, total, nil
		}
		end := start + q.PerPage
		if end > total {
			end = total
		}
		entries = entries[start:end]
	}
	return entries, total, nil
}

func (cl *changeLogService) collect(ctx context.Context, q ChangeLogQuery) ([]ChangeLogEntry, error) {
	from, to := localDayBounds(q.DateFrom, q.DateTo)
	var entries []ChangeLogEntry

	if q.Type == "" || q.Type == SubjectCase {
		rows, err := cl.caseLogs.List(ctx, nil, repos.ChangeLogFilter{
			SubjectID: q.SubjectID,
			Actor:     q.Actor,
			From:      from,
			To:        to,
		})
		if err != nil {
			return nil, err
		}
		numbers := map[uint]string{}
		for _, row := range rows {
			subject, sErr := cl.caseNumber(ctx, numbers, row.CaseID)
			if sErr != nil {
				return nil, sErr
			}
			entries = append(entries, ChangeLogEntry{
				Type:      SubjectCase,
				SubjectID: row.CaseID,
				Subject:   subject,
				Field:     row.FieldName,
				OldValue:  row.OldValue,
				NewValue:  row.NewValue,
				EditedBy:  row.EditedBy,
				Timestamp: row.Timestamp,
			})
		}
	}

	if q.Type == "" || q.Type == SubjectInvestigation {
		rows, err := cl.invLogs.List(ctx, nil, repos.ChangeLogFilter{
			SubjectID: q.SubjectID,
			From:      from,
			To:        to,
		})
		if err != nil {
			return nil, err
		}
		numbers := map[uint]string{}
		editors := map[uint]string{}
		for _, row := range rows {
			editor, eErr := cl.editorName(ctx, editors, row.EditedBy)
			if eErr != nil {
				return nil, eErr
			}
			// Actor filtering on the examination bind happens after id
			// resolution; the rows only carry user ids.
			if q.Actor != "" && !strings.Contains(strings.ToLower(editor), strings.ToLower(q.Actor)) {
				continue
			}
			subject, sErr := cl.investigationNumber(ctx, numbers, row.InvestigationID)
			if sErr != nil {
				return nil, sErr
			}
			entries = append(entries, ChangeLogEntry{
				Type:      SubjectInvestigation,
				SubjectID: row.InvestigationID,
				Subject:   subject,
				Field:     row.FieldName,
				OldValue:  row.OldValue,
				NewValue:  row.NewValue,
				EditedBy:  editor,
				Timestamp: row.Timestamp,
			})
		}
	}
	return entries, nil
}

// localDayBounds widens civil dates to UTC instants covering the whole
// Budapest-local days.
func localDayBounds(dateFrom, dateTo time.Time) (time.Time, time.Time) {
	var from, to time.Time
	if !dateFrom.IsZero() {
		from = timeutil.StartOfLocalDay(dateFrom.Year(), dateFrom.Month(), dateFrom.Day()).UTC()
	}
	if !dateTo.IsZero() {
		to = timeutil.StartOfLocalDay(dateTo.Year(), dateTo.Month(), dateTo.Day()).AddDate(0, 0, 1).UTC()
	}
	return from, to
}

func (cl *changeLogService) caseNumber(ctx context.Context, cache map[uint]string, id uint) (string, error) {
	if v, ok := cache[id]; ok {
		return v, nil
	}
	record, err := cl.caseRepo.GetByID(ctx, nil, id)
	if err != nil {
		return "", err
	}
	v := fmt.Sprintf("#%d", id)
	if record != nil {
		v = record.CaseNumber
	}
	cache[id] = v
	return v, nil
}

func (cl *changeLogService) investigationNumber(ctx context.Context, cache map[uint]string, id uint) (string, error) {
	if v, ok := cache[id]; ok {
		return v, nil
	}
	record, err := cl.invRepo.GetByID(ctx, nil, id)
	if err != nil {
		return "", err
	}
	v := fmt.Sprintf("#%d", id)
	if record != nil {
		v = record.CaseNumber
	}
	cache[id] = v
	return v, nil
}

// editorName resolves an examination-bind user handle to a display name.
// Dangling handles resolve to a placeholder, never an error.
func (cl *changeLogService) editorName(ctx context.Context, cache map[uint]string, id uint) (string, error) {
	if id == 0 {
		return "system", nil
	}
	if v, ok := cache[id]; ok {
		return v, nil
	}
	user, err := cl.userRepo.GetByID(ctx, nil, id)
	if err != nil {
		return "", err
	}
	v := "—"
	if user != nil {
		v = user.DisplayName()
	}
	cache[id] = v
	return v, nil
}

// csvHeader matches the export the office staff import into spreadsheets.
var csvHeader = []string{"Típus", "Időpont (Budapest)", "Szerkesztő", "Tárgy", "Mező", "Régi érték", "Új érték"}

func (cl *changeLogService) ExportCSV(ctx context.Context, w io.Writer, q ChangeLogQuery) error {
	q.Page = 0
	q.PerPage = 0
	entries, _, err := cl.Query(ctx, q)
	if err != nil {
		return err
	}
	// UTF-8 BOM so Excel picks the right encoding.
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range entries {
		row := []string{
			e.Type,
			timeutil.FmtBudapest(e.Timestamp, timeutil.DefaultLayout),
			e.EditedBy,
			e.Subject,
			e.Field,
			e.OldValue,
			e.NewValue,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (cl *changeLogService) ExportJSONL(ctx context.Context, w io.Writer, q ChangeLogQuery) error {
	q.Page = 0
	q.PerPage = 0
	entries, _, err := cl.Query(ctx, q)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for _, e := range entries {
		line := struct {
			ChangeLogEntry
			TimestampUTC   string `json:"timestamp_utc"`
			TimestampLocal string `json:"timestamp_local"`
		}{
			ChangeLogEntry: e,
			TimestampUTC:   e.Timestamp.UTC().Format(time.RFC3339),
			TimestampLocal: timeutil.ToLocal(e.Timestamp).Format(time.RFC3339),
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}
