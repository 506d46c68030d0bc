package timeutil

import (
	"testing"
	"time"
)

func TestFmtBudapestDSTSpringForward(t *testing.T) {
	cases := []struct {
		utc  time.Time
		want string
	}{
		{time.Date(2025, 3, 30, 0, 30, 0, 0, time.UTC), "2025/03/30 01:30"},
		{time.Date(2025, 3, 30, 1, 30, 0, 0, time.UTC), "2025/03/30 03:30"},
	}
	for _, tc := range cases {
		got := FmtBudapest(tc.utc, "2006/01/02 15:04")
		if got != tc.want {
			t.Fatalf("FmtBudapest(%v): want %q got %q", tc.utc, tc.want, got)
		}
	}
}

func TestFmtBudapestDSTFallBack(t *testing.T) {
	for _, utc := range []time.Time{
		time.Date(2025, 10, 26, 0, 30, 0, 0, time.UTC),
		time.Date(2025, 10, 26, 1, 30, 0, 0, time.UTC),
	} {
		got := FmtBudapest(utc, "2006/01/02 15:04")
		if got != "2025/10/26 02:30" {
			t.Fatalf("FmtBudapest(%v): want 2025/10/26 02:30 got %q", utc, got)
		}
	}
}

func TestFmtBudapestZero(t *testing.T) {
	if got := FmtBudapest(time.Time{}, DefaultLayout); got != "" {
		t.Fatalf("zero time should render empty, got %q", got)
	}
}

func TestCivilLocalRoundTrip(t *testing.T) {
	civil := CivilLocal(2025, time.July, 1, 12, 0)
	if civil.Location() != Budapest {
		t.Fatalf("CivilLocal location: %v", civil.Location())
	}
	// Summer: Budapest is UTC+2.
	if got := civil.UTC().Hour(); got != 10 {
		t.Fatalf("CivilLocal UTC hour: want 10 got %d", got)
	}
}

func TestStartOfLocalDay(t *testing.T) {
	start := StartOfLocalDay(2025, time.January, 15)
	// Winter: Budapest is UTC+1, so local midnight is 23:00 UTC the day before.
	want := time.Date(2025, 1, 14, 23, 0, 0, 0, time.UTC)
	if !start.Equal(want) {
		t.Fatalf("StartOfLocalDay: want %v got %v", want, start)
	}
}
