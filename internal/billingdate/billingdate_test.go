package billingdate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(s string) time.Time {
	t, err := time.Parse(Layout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNext(t *testing.T) {
	tests := []struct {
		name    string
		payment string
		day     int
		want    string
	}{
		{"leap february clamps 31", "2024-01-31", 31, "2024-02-29"},
		{"non-leap february clamps 31", "2023-01-31", 31, "2023-02-28"},
		{"thirty day month clamps 31", "2024-03-15", 31, "2024-04-30"},
		{"day exists", "2024-03-15", 10, "2024-04-10"},
		{"december rolls year", "2024-12-20", 5, "2025-01-05"},
		{"invalid day uses payment day", "2024-05-17", 0, "2024-06-17"},
		{"too large day uses payment day", "2024-05-17", 40, "2024-06-17"},
		{"early payment still next month", "2024-05-01", 28, "2024-06-28"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Next(date(tt.payment), tt.day)
			assert.Equal(t, tt.want, got.Format(Layout))
		})
	}
}

func TestNext_DropsClock(t *testing.T) {
	got := Next(time.Date(2024, 1, 31, 17, 45, 0, 0, time.UTC), 31)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)
}

func TestNextOccurrence(t *testing.T) {
	assert.Equal(t, "2024-03-20", NextOccurrence(date("2024-03-15"), 20).Format(Layout))
	assert.Equal(t, "2024-03-15", NextOccurrence(date("2024-03-15"), 15).Format(Layout))
	assert.Equal(t, "2024-04-10", NextOccurrence(date("2024-03-15"), 10).Format(Layout))
	assert.Equal(t, "2024-02-29", NextOccurrence(date("2024-02-10"), 31).Format(Layout))
	assert.Equal(t, "2024-02-10", NextOccurrence(date("2024-02-10"), 0).Format(Layout))
}

func TestDaysOverdue(t *testing.T) {
	today := date("2024-06-30")
	assert.Equal(t, 105, DaysOverdue(today.AddDate(0, 0, -105), today))
	assert.Equal(t, 0, DaysOverdue(today, today))
	assert.Equal(t, 0, DaysOverdue(today.AddDate(0, 0, 3), today), "future due dates are not overdue")
	// Clock time does not produce partial days.
	assert.Equal(t, 1, DaysOverdue(time.Date(2024, 6, 29, 23, 59, 0, 0, time.UTC), time.Date(2024, 6, 30, 0, 1, 0, 0, time.UTC)))
}

func TestDaysIn(t *testing.T) {
	assert.Equal(t, 29, DaysIn(2024, time.February))
	assert.Equal(t, 28, DaysIn(2100, time.February))
	assert.Equal(t, 31, DaysIn(2024, time.December))
}
