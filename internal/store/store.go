// Package store implements SQLite persistence. Lookups return (nil, nil)
// when a row does not exist; operational failures are wrapped errors.
// State conflicts surface as sentinel errors so handlers can map them to
// HTTP status codes with errors.Is.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrConflict means the desired end state already holds (duplicate
	// completion, already-verified transition, double award). Callers
	// must not retry.
	ErrConflict = errors.New("conflict with existing state")

	// ErrSettingsMissing means the family settings row has not been
	// created; operations that need the rate or timezone refuse to
	// guess defaults.
	ErrSettingsMissing = errors.New("family settings not configured")

	// ErrLastAdmin guards deactivating or demoting the only active admin.
	ErrLastAdmin = errors.New("cannot remove or demote the last active admin")

	// ErrInvalidPoints rejects non-positive bonus or award amounts.
	ErrInvalidPoints = errors.New("points must be greater than zero")

	// ErrInsufficientPoints rejects a redemption the balance cannot cover.
	ErrInsufficientPoints = errors.New("insufficient points")
)

const dateLayout = "2006-01-02"

func fmtDate(t time.Time) string {
	return t.Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure. The driver exposes no typed error for this.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
