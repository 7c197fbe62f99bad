package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreviousTradingDay(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2024-03-13", "2024-03-12"}, // plain weekday
		{"2024-03-18", "2024-03-15"}, // Monday skips weekend
		{"2024-01-16", "2024-01-12"}, // MLK Day 2024-01-15
		{"2024-01-02", "2023-12-29"}, // New Year's
		{"2024-02-20", "2024-02-16"}, // Presidents' Day 2024-02-19
		{"2024-05-28", "2024-05-24"}, // Memorial Day 2024-05-27
		{"2024-07-05", "2024-07-03"}, // Independence Day
		{"2024-09-03", "2024-08-30"}, // Labor Day 2024-09-02
		{"2024-10-15", "2024-10-11"}, // Columbus Day 2024-10-14
		{"2024-11-12", "2024-11-08"}, // Veterans Day 2024-11-11
		{"2024-11-29", "2024-11-27"}, // Thanksgiving 2024-11-28
		{"2024-12-26", "2024-12-24"}, // Christmas
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			got := PreviousTradingDay(day(tt.date))
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
		})
	}
}

func TestIsHoliday(t *testing.T) {
	holidays := []string{
		"2023-01-01", "2023-01-16", "2023-02-20", "2023-05-29", "2023-07-04",
		"2023-09-04", "2023-10-09", "2023-11-11", "2023-11-23", "2023-12-25",
	}
	for _, h := range holidays {
		assert.True(t, IsHoliday(day(h)), h)
	}
	for _, d := range []string{"2023-01-17", "2023-05-22", "2023-11-24", "2023-12-26"} {
		assert.False(t, IsHoliday(day(d)), d)
	}
}

func TestLatestTradingDay(t *testing.T) {
	assert.Equal(t, "2024-03-15", LatestTradingDay(day("2024-03-15")).Format("2006-01-02"))
	assert.Equal(t, "2024-03-15", LatestTradingDay(day("2024-03-17")).Format("2006-01-02"))
	assert.Equal(t, "2024-12-24", LatestTradingDay(day("2024-12-25")).Format("2006-01-02"))
}
