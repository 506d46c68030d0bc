package timeutil

import (
	"time"
	_ "time/tzdata"
)

// Budapest is the canonical timezone for every user-facing timestamp.
var Budapest *time.Location

func init() {
	loc, err := time.LoadLocation("Europe/Budapest")
	if err != nil {
		// tzdata is linked in, so this only happens with a corrupt build.
		panic(err)
	}
	Budapest = loc
}

const (
	// DefaultLayout mirrors the institute's date rendering convention.
	DefaultLayout = "2006.01.02 15:04"
	NoteLayout    = "2006-01-02 15:04"
	DateLayout    = "2006-01-02"
)

func NowUTC() time.Time {
	return time.Now().UTC()
}

func NowLocal() time.Time {
	return time.Now().In(Budapest)
}

// ToLocal converts an instant to Budapest civil time. DST transitions follow
// the zone rules: the spring-forward gap maps forward, the fall-back overlap
// resolves by UTC offset (both sides of the shift render their own civil hour).
func ToLocal(t time.Time) time.Time {
	return t.In(Budapest)
}

// FmtBudapest renders an instant in Budapest local time.
func FmtBudapest(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	if layout == "" {
		layout = DefaultLayout
	}
	return t.In(Budapest).Format(layout)
}

// CivilLocal interprets wall-clock components as Budapest local time.
// Naive timestamps arriving from forms are resolved through this.
func CivilLocal(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, Budapest)
}

// StartOfLocalDay returns the UTC instant at which the given Budapest civil
// date begins. Used by date-range changelog filters.
func StartOfLocalDay(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, Budapest).UTC()
}
