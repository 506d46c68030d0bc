package casenum

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/PR1MKO/iktato-backend/internal/timeutil"
	"github.com/PR1MKO/iktato-backend/internal/types"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_pragma=foreign_keys(0)"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.Case{}, &types.Investigation{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		db.Exec("DELETE FROM `case`")
		db.Exec("DELETE FROM investigation")
	})
	return db
}

func regTime(year int) time.Time {
	return time.Date(year, 6, 1, 10, 0, 0, 0, timeutil.Budapest)
}

func TestNextCaseNumberSequence(t *testing.T) {
	db := openTestDB(t)
	for i := 1; i <= 3; i++ {
		num, err := NextCaseNumber(db, 2025)
		if err != nil {
			t.Fatalf("NextCaseNumber: %v", err)
		}
		want := fmt.Sprintf("B:%04d/2025", i)
		if num != want {
			t.Fatalf("sequence: want %s got %s", want, num)
		}
		if err := db.Create(&types.Case{CaseNumber: num, RegistrationTime: regTime(2025)}).Error; err != nil {
			t.Fatalf("create case: %v", err)
		}
	}
}

func TestNextCaseNumberSkipsCollisions(t *testing.T) {
	db := openTestDB(t)
	// An externally imported record occupies the seeded slot.
	if err := db.Create(&types.Case{CaseNumber: "B:0001/2025", RegistrationTime: regTime(2024)}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	num, err := NextCaseNumber(db, 2025)
	if err != nil {
		t.Fatalf("NextCaseNumber: %v", err)
	}
	if num != "B:0002/2025" {
		t.Fatalf("collision probe: want B:0002/2025 got %s", num)
	}
}

func TestYearRollsResetSequence(t *testing.T) {
	db := openTestDB(t)
	if err := db.Create(&types.Case{CaseNumber: "B:0001/2024", RegistrationTime: regTime(2024)}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	num, err := NextCaseNumber(db, 2025)
	if err != nil {
		t.Fatalf("NextCaseNumber: %v", err)
	}
	if num != "B:0001/2025" {
		t.Fatalf("year roll: want B:0001/2025 got %s", num)
	}
}

func TestNextInvestigationNumberFormat(t *testing.T) {
	db := openTestDB(t)
	num, err := NextInvestigationNumber(db, 2025)
	if err != nil {
		t.Fatalf("NextInvestigationNumber: %v", err)
	}
	if num != "V:0001/2025" {
		t.Fatalf("format: want V:0001/2025 got %s", num)
	}
}

func TestFileSafe(t *testing.T) {
	if got := FileSafe("B:0012/2025"); got != "B-0012-2025" {
		t.Fatalf("FileSafe: got %s", got)
	}
	if got := FileSafe(" V:0001/2025. "); got != "V-0001-2025" {
		t.Fatalf("FileSafe trim: got %q", got)
	}
}
