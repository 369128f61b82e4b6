package reflection

import (
	"sort"
	"time"
)

// ComputeStreak returns the length of the consecutive run of daily sessions
// ending at today or yesterday. A session today extends the streak; a missing
// session today does not break it until tomorrow.
func ComputeStreak(dates []string, today time.Time) int {
	seen := parseDateSet(dates)
	if len(seen) == 0 {
		return 0
	}

	day := truncateDay(today)
	if !seen[day] {
		// Grace day: yesterday's session keeps the streak alive.
		day = day.AddDate(0, 0, -1)
		if !seen[day] {
			return 0
		}
	}

	streak := 0
	for seen[day] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// WeekProgress returns how many sessions fall in the current Monday-based
// week, capped at 7.
func WeekProgress(dates []string, today time.Time) int {
	start := WeekStart(today)
	end := start.AddDate(0, 0, 7)

	count := 0
	for d := range parseDateSet(dates) {
		if !d.Before(start) && d.Before(end) {
			count++
		}
	}
	if count > 7 {
		count = 7
	}
	return count
}

// WeekStart returns the Monday 00:00 UTC that begins the week containing t.
func WeekStart(t time.Time) time.Time {
	day := truncateDay(t)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// WeekDates returns the seven date strings of the week starting at weekStart.
func WeekDates(weekStart time.Time) []string {
	day := truncateDay(weekStart)
	dates := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		dates = append(dates, day.AddDate(0, 0, i).Format(DateFormat))
	}
	return dates
}

// SortDates sorts date strings in ascending calendar order in place.
// The canonical layout is lexicographically ordered, so a plain sort suffices.
func SortDates(dates []string) {
	sort.Strings(dates)
}

func parseDateSet(dates []string) map[time.Time]bool {
	seen := make(map[time.Time]bool, len(dates))
	for _, s := range dates {
		d, err := time.ParseInLocation(DateFormat, s, time.UTC)
		if err != nil {
			continue
		}
		seen[d] = true
	}
	return seen
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
