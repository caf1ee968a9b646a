package model

import "time"

// FamilySettings is the single configuration row shared by the whole
// household. It is loaded per request and passed explicitly to the
// schedule and payout logic rather than read from a global.
type FamilySettings struct {
	ID                         int64        `json:"id"`
	Timezone                   string       `json:"timezone"`
	RateCents                  int64        `json:"rate_cents"` // money cents paid per point
	WeekStartsOn               time.Weekday `json:"week_starts_on"`
	EnableScoreboard           bool         `json:"enable_scoreboard"`
	IncludeAdminsInAssignments bool         `json:"include_admins_in_assignments"`
	UpdatedAt                  time.Time    `json:"updated_at"`
}

// Location resolves the configured IANA timezone, falling back to UTC
// when the name is empty or unknown.
func (s *FamilySettings) Location() *time.Location {
	if s == nil || s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
