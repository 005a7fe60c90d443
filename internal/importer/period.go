// Package importer reconciles source CSV exports into per-month period
// sheets, tracks per-file import state, and maintains the category
// registry.
package importer

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/yontaro/kakeibo/internal/common"
)

// PeriodSheetPrefix names the per-month sheets holding imported rows.
const PeriodSheetPrefix = "Import_"

// Source files are named <prefix>_<YYYY-MM-DD>_<YYYY-MM-DD>.<ext>.
var filenamePattern = regexp.MustCompile(`^.+_(\d{4}-\d{2}-\d{2})_(\d{4}-\d{2}-\d{2})\.[^.]+$`)

// PeriodSheet derives the period sheet name from a source filename. The
// embedded start and end dates must fall in the same year and month.
func PeriodSheet(filename string) (string, error) {
	m := filenamePattern.FindStringSubmatch(filename)
	if m == nil {
		return "", common.NewFormatError(filename, 0,
			errors.New("filename does not match <prefix>_<YYYY-MM-DD>_<YYYY-MM-DD>.<ext>"))
	}

	start, err := time.Parse("2006-01-02", m[1])
	if err != nil {
		return "", common.NewFormatError(filename, 0, fmt.Errorf("invalid start date: %w", err))
	}
	end, err := time.Parse("2006-01-02", m[2])
	if err != nil {
		return "", common.NewFormatError(filename, 0, fmt.Errorf("invalid end date: %w", err))
	}

	if start.Year() != end.Year() || start.Month() != end.Month() {
		return "", common.NewFormatError(filename, 0,
			fmt.Errorf("date range %s to %s spans more than one month", m[1], m[2]))
	}

	return fmt.Sprintf("%s%04d_%02d", PeriodSheetPrefix, start.Year(), int(start.Month())), nil
}
