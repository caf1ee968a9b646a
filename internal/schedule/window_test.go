package schedule

import (
	"testing"
	"time"
)

func TestWeekStart(t *testing.T) {
	// 2026-01-22 is a Thursday.
	thursday := date(2026, 1, 22)

	tests := []struct {
		weekStartsOn time.Weekday
		want         time.Time
	}{
		{time.Monday, date(2026, 1, 19)},
		{time.Sunday, date(2026, 1, 18)},
		{time.Thursday, date(2026, 1, 22)}, // today is the anchor day
		{time.Friday, date(2026, 1, 16)},   // last Friday
		{time.Saturday, date(2026, 1, 17)},
	}

	for _, tt := range tests {
		got := WeekStart(thursday, tt.weekStartsOn)
		if !got.Equal(tt.want) {
			t.Errorf("WeekStart(thursday, %v) = %v, want %v", tt.weekStartsOn, got, tt.want)
		}
		end := WeekEnd(thursday, tt.weekStartsOn)
		if want := tt.want.AddDate(0, 0, 6); !end.Equal(want) {
			t.Errorf("WeekEnd(thursday, %v) = %v, want %v", tt.weekStartsOn, end, want)
		}
	}
}

func TestWeekStartOnAnchorDay(t *testing.T) {
	monday := date(2026, 1, 19)
	if got := WeekStart(monday, time.Monday); !got.Equal(monday) {
		t.Errorf("week starting on its anchor day = %v, want %v", got, monday)
	}
}

func TestMonthWindow(t *testing.T) {
	tests := []struct {
		in        time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{date(2026, 1, 22), date(2026, 1, 1), date(2026, 1, 31)},
		{date(2026, 2, 10), date(2026, 2, 1), date(2026, 2, 28)},
		{date(2028, 2, 10), date(2028, 2, 1), date(2028, 2, 29)}, // leap year
		{date(2026, 12, 31), date(2026, 12, 1), date(2026, 12, 31)},
	}

	for _, tt := range tests {
		if got := MonthStart(tt.in); !got.Equal(tt.wantStart) {
			t.Errorf("MonthStart(%v) = %v, want %v", tt.in, got, tt.wantStart)
		}
		if got := MonthEnd(tt.in); !got.Equal(tt.wantEnd) {
			t.Errorf("MonthEnd(%v) = %v, want %v", tt.in, got, tt.wantEnd)
		}
	}
}

func TestLocalTodayRespectsTimezone(t *testing.T) {
	auckland, err := time.LoadLocation("Pacific/Auckland")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// 2026-01-22 13:30 UTC is already 2026-01-23 in Auckland (UTC+13).
	now := time.Date(2026, 1, 22, 13, 30, 0, 0, time.UTC)

	today, clock := LocalToday(now, auckland)
	if !today.Equal(date(2026, 1, 23)) {
		t.Errorf("today in Auckland = %v, want 2026-01-23", today)
	}
	if clock != 2*60+30 {
		t.Errorf("clock in Auckland = %d, want %d", clock, 2*60+30)
	}

	utcToday, utcClock := LocalToday(now, time.UTC)
	if !utcToday.Equal(date(2026, 1, 22)) {
		t.Errorf("today in UTC = %v, want 2026-01-22", utcToday)
	}
	if utcClock != 13*60+30 {
		t.Errorf("clock in UTC = %d, want %d", utcClock, 13*60+30)
	}
}
