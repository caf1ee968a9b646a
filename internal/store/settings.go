package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cwinters/pocketmoney/internal/model"
)

type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the family settings row, or nil when none has been saved yet.
func (s *SettingsStore) Get() (*model.FamilySettings, error) {
	var fs model.FamilySettings
	var weekStart int
	var scoreboard, includeAdmins int

	err := s.db.QueryRow(
		`SELECT id, timezone, rate_cents, week_starts_on, enable_scoreboard, include_admins_in_assignments, updated_at FROM family_settings WHERE id = 1`,
	).Scan(&fs.ID, &fs.Timezone, &fs.RateCents, &weekStart, &scoreboard, &includeAdmins, &fs.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	fs.WeekStartsOn = time.Weekday(weekStart)
	fs.EnableScoreboard = scoreboard != 0
	fs.IncludeAdminsInAssignments = includeAdmins != 0
	return &fs, nil
}

// Require is Get but with a missing row surfaced as ErrSettingsMissing,
// for callers that cannot proceed without configured settings.
func (s *SettingsStore) Require() (*model.FamilySettings, error) {
	fs, err := s.Get()
	if err != nil {
		return nil, err
	}
	if fs == nil {
		return nil, ErrSettingsMissing
	}
	return fs, nil
}

type SettingsUpdate struct {
	Timezone                   *string
	RateCents                  *int64
	WeekStartsOn               *time.Weekday
	EnableScoreboard           *bool
	IncludeAdminsInAssignments *bool
}

// Save upserts the singleton row, applying only the provided fields over
// the current values (or defaults when the row does not exist yet).
func (s *SettingsStore) Save(upd SettingsUpdate) (*model.FamilySettings, error) {
	cur, err := s.Get()
	if err != nil {
		return nil, err
	}
	if cur == nil {
		cur = &model.FamilySettings{
			ID:           1,
			Timezone:     "UTC",
			WeekStartsOn: time.Monday,
		}
	}

	if upd.Timezone != nil {
		if _, err := time.LoadLocation(*upd.Timezone); err != nil {
			return nil, fmt.Errorf("timezone %q: %w", *upd.Timezone, err)
		}
		cur.Timezone = *upd.Timezone
	}
	if upd.RateCents != nil {
		if *upd.RateCents < 0 {
			return nil, fmt.Errorf("rate must not be negative: %w", ErrInvalidPoints)
		}
		cur.RateCents = *upd.RateCents
	}
	if upd.WeekStartsOn != nil {
		if *upd.WeekStartsOn < time.Sunday || *upd.WeekStartsOn > time.Saturday {
			return nil, fmt.Errorf("invalid week start %d", *upd.WeekStartsOn)
		}
		cur.WeekStartsOn = *upd.WeekStartsOn
	}
	if upd.EnableScoreboard != nil {
		cur.EnableScoreboard = *upd.EnableScoreboard
	}
	if upd.IncludeAdminsInAssignments != nil {
		cur.IncludeAdminsInAssignments = *upd.IncludeAdminsInAssignments
	}

	_, err = s.db.Exec(
		`INSERT INTO family_settings (id, timezone, rate_cents, week_starts_on, enable_scoreboard, include_admins_in_assignments, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET
		   timezone = excluded.timezone,
		   rate_cents = excluded.rate_cents,
		   week_starts_on = excluded.week_starts_on,
		   enable_scoreboard = excluded.enable_scoreboard,
		   include_admins_in_assignments = excluded.include_admins_in_assignments,
		   updated_at = CURRENT_TIMESTAMP`,
		cur.Timezone, cur.RateCents, int(cur.WeekStartsOn),
		boolToInt(cur.EnableScoreboard), boolToInt(cur.IncludeAdminsInAssignments),
	)
	if err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	return s.Get()
}
