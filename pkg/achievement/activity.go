package achievement

import (
	"sort"
	"time"
)

const day = 24 * time.Hour

// ActivitySet is the set of distinct UTC calendar days a user was active on,
// kept in ascending order.
type ActivitySet struct {
	days []time.Time
}

// NewActivitySet collapses timestamps into distinct UTC days.
func NewActivitySet(times []time.Time) ActivitySet {
	seen := make(map[time.Time]bool, len(times))
	days := make([]time.Time, 0, len(times))
	for _, t := range times {
		d := truncateDay(t)
		if seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return ActivitySet{days: days}
}

// Len returns the number of distinct active days.
func (a ActivitySet) Len() int { return len(a.days) }

// LongestStreak returns the longest run of consecutive active days.
func (a ActivitySet) LongestStreak() int {
	if len(a.days) == 0 {
		return 0
	}
	best, run := 1, 1
	for i := 1; i < len(a.days); i++ {
		if a.days[i].Sub(a.days[i-1]) == day {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}

// HasStreak reports whether n consecutive days are all active.
func (a ActivitySet) HasStreak(n int) bool {
	return a.LongestStreak() >= n
}

// DaysWithin counts active days in the trailing window of n calendar days
// ending on now's day, inclusive.
func (a ActivitySet) DaysWithin(now time.Time, n int) int {
	today := truncateDay(now)
	from := today.AddDate(0, 0, -(n - 1))
	count := 0
	for i := len(a.days) - 1; i >= 0 && !a.days[i].Before(from); i-- {
		if a.days[i].After(today) {
			continue
		}
		count++
	}
	return count
}

// Comeback reports whether the two most recent active days are at least
// gapDays apart and the latest falls within the trailing recentDays.
func (a ActivitySet) Comeback(now time.Time, gapDays, recentDays int) bool {
	n := len(a.days)
	if n < 2 {
		return false
	}
	latest, prior := a.days[n-1], a.days[n-2]
	if latest.Sub(prior) < time.Duration(gapDays)*day {
		return false
	}
	from := truncateDay(now).AddDate(0, 0, -(recentDays - 1))
	return !latest.Before(from)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
