package history

import (
	"time"

	"StageScreener/internal/model"
)

// PreviousTradingDay returns the most recent date before date that is neither a
// weekend nor a US market holiday.
func PreviousTradingDay(date time.Time) time.Time {
	d := model.Midnight(date).AddDate(0, 0, -1)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// LatestTradingDay returns date itself when it is a trading day, else the previous one.
func LatestTradingDay(date time.Time) time.Time {
	d := model.Midnight(date)
	if IsTradingDay(d) {
		return d
	}
	return PreviousTradingDay(d)
}

// IsTradingDay reports whether date is a weekday that is not a holiday.
func IsTradingDay(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !IsHoliday(date)
}

// IsHoliday reports whether date falls on one of the ten fixed-rule US holidays.
// Holidays are taken on their rule date; no weekend observance shift is applied.
func IsHoliday(date time.Time) bool {
	y, m, d := date.Date()
	switch m {
	case time.January:
		return d == 1 || d == nthWeekday(y, m, time.Monday, 3) // New Year's, MLK Day
	case time.February:
		return d == nthWeekday(y, m, time.Monday, 3) // Presidents' Day
	case time.May:
		return d == lastWeekday(y, m, time.Monday) // Memorial Day
	case time.July:
		return d == 4
	case time.September:
		return d == nthWeekday(y, m, time.Monday, 1) // Labor Day
	case time.October:
		return d == nthWeekday(y, m, time.Monday, 2) // Columbus Day
	case time.November:
		return d == 11 || d == nthWeekday(y, m, time.Thursday, 4) // Veterans Day, Thanksgiving
	case time.December:
		return d == 25
	}
	return false
}

// nthWeekday returns the day of month of the n-th wd in the month.
func nthWeekday(year int, month time.Month, wd time.Weekday, n int) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(wd) - int(first.Weekday()) + 7) % 7
	return 1 + offset + (n-1)*7
}

// lastWeekday returns the day of month of the last wd in the month.
func lastWeekday(year int, month time.Month, wd time.Weekday) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	offset := (int(last.Weekday()) - int(wd) + 7) % 7
	return last.Day() - offset
}
