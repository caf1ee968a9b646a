package schedule

import "time"

// WeekStart returns the first day of the rolling week containing date,
// anchored to the configured week-start weekday.
func WeekStart(date time.Time, weekStartsOn time.Weekday) time.Time {
	date = startOfDay(date)
	back := (int(date.Weekday()) - int(weekStartsOn) + 7) % 7
	return date.AddDate(0, 0, -back)
}

// WeekEnd returns the last day of the rolling week containing date.
func WeekEnd(date time.Time, weekStartsOn time.Weekday) time.Time {
	return WeekStart(date, weekStartsOn).AddDate(0, 0, 6)
}

// MonthStart returns the first day of the calendar month containing date.
func MonthStart(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, date.Location())
}

// MonthEnd returns the last day of the calendar month containing date.
func MonthEnd(date time.Time) time.Time {
	return MonthStart(date).AddDate(0, 1, -1)
}

// LocalToday converts an instant to the civil date and wall-clock
// minutes in the given location. Date boundaries follow the family's
// timezone, not the server's.
func LocalToday(now time.Time, loc *time.Location) (today time.Time, clock int) {
	local := now.In(loc)
	today = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	return today, ClockOf(local)
}
