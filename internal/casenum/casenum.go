// Package casenum issues year-scoped case numbers: B:NNNN/YYYY for autopsy
// cases, V:NNNN/YYYY for investigations.
package casenum

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/PR1MKO/iktato-backend/internal/types"
)

const (
	PrefixCase          = "B"
	PrefixInvestigation = "V"
	maxSequence         = 9999
)

// ErrYearExhausted is returned when the 4-digit range of a year is used up.
var ErrYearExhausted = fmt.Errorf("case number sequence exhausted for year")

// next seeds from count-of-records-in-year plus one, then probes for
// uniqueness; collisions (from externally imported numbers) advance the
// sequence.
func next(db *gorm.DB, model interface{}, prefix string, year int) (string, error) {
	var countForYear int64
	if err := db.Model(model).
		Where("strftime('%Y', registration_time) = ?", fmt.Sprintf("%d", year)).
		Count(&countForYear).Error; err != nil {
		return "", fmt.Errorf("count records for year %d: %w", year, err)
	}
	seq := countForYear + 1
	for ; seq <= maxSequence; seq++ {
		candidate := fmt.Sprintf("%s:%04d/%d", prefix, seq, year)
		var taken int64
		if err := db.Model(model).
			Where("case_number = ?", candidate).
			Count(&taken).Error; err != nil {
			return "", fmt.Errorf("probe %s: %w", candidate, err)
		}
		if taken == 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w %d", ErrYearExhausted, year)
}

// NextCaseNumber returns the next free B:NNNN/YYYY on the primary bind.
func NextCaseNumber(db *gorm.DB, year int) (string, error) {
	return next(db, &types.Case{}, PrefixCase, year)
}

// NextInvestigationNumber returns the next free V:NNNN/YYYY on the
// examination bind.
func NextInvestigationNumber(db *gorm.DB, year int) (string, error) {
	return next(db, &types.Investigation{}, PrefixInvestigation, year)
}

// FileSafe converts a case number to its filesystem-safe variant, replacing
// the characters that cannot appear in a directory name.
func FileSafe(caseNumber string) string {
	safe := strings.ReplaceAll(caseNumber, ":", "-")
	safe = strings.ReplaceAll(safe, "/", "-")
	return strings.Trim(safe, " .")
}
