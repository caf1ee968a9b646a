// Package schedule decides whether a task assignment is due on a given
// civil date. All functions are pure: callers load assignments and
// completions, convert "now" to the family's timezone, and pass
// everything in.
package schedule

import (
	"fmt"
	"time"

	"github.com/cwinters/pocketmoney/internal/model"
)

// DayMask is a 7-bit weekday set. The bit assignment is fixed: bit n is
// the weekday with Sunday = 0, matching time.Weekday's numbering.
type DayMask uint8

const (
	Sunday DayMask = 1 << iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var dayBits = map[time.Weekday]DayMask{
	time.Sunday:    Sunday,
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
	time.Saturday:  Saturday,
}

// DayBit returns the mask bit for a weekday.
func DayBit(w time.Weekday) DayMask {
	return dayBits[w]
}

// ParseClock parses an "HH:MM" wall-clock string into minutes since
// midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ClockOf converts a local time to minutes since midnight.
func ClockOf(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// IsDue reports whether the assignment should appear on the given date.
//
// today is the evaluation date (civil, midnight); clock is the current
// wall-clock time in minutes since midnight; day is the mask bit for
// today's weekday. weekCompletions and monthCompletions must already be
// filtered to the current week/month window (the caller owns window
// filtering); they may contain completions for other assignments.
// includeCompletedToday keeps a during-week/during-month task visible on
// the day it was completed, for "today" views that render completed
// state.
//
// Range validity (StartDate/EndDate) is a caller-side precondition and
// is not re-checked here; see InRange.
func IsDue(a model.TaskAssignment, today time.Time, clock int, day DayMask,
	weekCompletions, monthCompletions []model.TaskCompletion, includeCompletedToday bool) bool {

	// A passed due time suppresses the task for the rest of the day,
	// whatever the schedule type says.
	if a.DueTime != nil {
		due, err := ParseClock(*a.DueTime)
		if err == nil && clock > due {
			return false
		}
	}

	switch a.ScheduleType {
	case model.ScheduleDaily:
		return true
	case model.ScheduleWeekly:
		return DayMask(a.DaysOfWeek)&day != 0
	case model.ScheduleOnce:
		return a.StartDate != nil && sameDate(*a.StartDate, today)
	case model.ScheduleDuringWeek:
		return dueOnceInWindow(a.ID, today, weekCompletions, includeCompletedToday)
	case model.ScheduleDuringMonth:
		return dueOnceInWindow(a.ID, today, monthCompletions, includeCompletedToday)
	}

	// Unknown schedule types never show a task.
	return false
}

// InRange reports whether date falls inside the assignment's optional
// validity window. An assignment outside [StartDate, EndDate] is never
// due regardless of schedule type.
func InRange(a model.TaskAssignment, date time.Time) bool {
	if a.StartDate != nil && date.Before(startOfDay(*a.StartDate)) {
		return false
	}
	if a.EndDate != nil && date.After(startOfDay(*a.EndDate)) {
		return false
	}
	return true
}

func dueOnceInWindow(assignmentID int64, today time.Time, completions []model.TaskCompletion, includeCompletedToday bool) bool {
	for _, c := range completions {
		if c.AssignmentID != assignmentID {
			continue
		}
		// Completed somewhere in the window: only the completion's own
		// date stays visible, and only when requested.
		return includeCompletedToday && sameDate(c.Date, today)
	}
	return true
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
