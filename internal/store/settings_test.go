package store

import (
	"errors"
	"testing"
	"time"
)

func TestSettingsMissing(t *testing.T) {
	ss := NewSettingsStore(openTestDB(t))

	got, err := ss.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil before first save, got %+v", got)
	}

	_, err = ss.Require()
	if !errors.Is(err, ErrSettingsMissing) {
		t.Fatalf("require err = %v, want ErrSettingsMissing", err)
	}
}

func TestSettingsSaveAndPartialUpdate(t *testing.T) {
	ss := NewSettingsStore(openTestDB(t))

	tz := "America/Los_Angeles"
	rate := int64(10)
	saved, err := ss.Save(SettingsUpdate{Timezone: &tz, RateCents: &rate})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Timezone != tz {
		t.Errorf("timezone = %q, want %q", saved.Timezone, tz)
	}
	if saved.RateCents != 10 {
		t.Errorf("rate = %d, want 10", saved.RateCents)
	}
	// Defaults fill unspecified fields.
	if saved.WeekStartsOn != time.Monday {
		t.Errorf("week start = %v, want Monday", saved.WeekStartsOn)
	}

	// Partial update leaves the rest alone.
	ws := time.Sunday
	scoreboard := true
	saved, err = ss.Save(SettingsUpdate{WeekStartsOn: &ws, EnableScoreboard: &scoreboard})
	if err != nil {
		t.Fatalf("partial save: %v", err)
	}
	if saved.WeekStartsOn != time.Sunday {
		t.Errorf("week start = %v, want Sunday", saved.WeekStartsOn)
	}
	if !saved.EnableScoreboard {
		t.Error("expected scoreboard enabled")
	}
	if saved.Timezone != tz || saved.RateCents != 10 {
		t.Errorf("earlier fields lost: %+v", saved)
	}
}

func TestSettingsRejectsBadValues(t *testing.T) {
	ss := NewSettingsStore(openTestDB(t))

	badTZ := "Mars/Olympus_Mons"
	if _, err := ss.Save(SettingsUpdate{Timezone: &badTZ}); err == nil {
		t.Error("expected error for unknown timezone")
	}

	negRate := int64(-5)
	if _, err := ss.Save(SettingsUpdate{RateCents: &negRate}); err == nil {
		t.Error("expected error for negative rate")
	}
}
