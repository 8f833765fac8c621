package featured

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/elonfeng/vibescore/pkg/domain"
)

// RotationStat is the recent feature frequency of one category.
type RotationStat struct {
	CategoryID     int64      `json:"category_id"`
	Slug           string     `json:"slug"`
	Name           string     `json:"name"`
	Count          int        `json:"count_last_4_weeks"`
	Modifier       float64    `json:"rotation_modifier"`
	LastFeaturedAt *time.Time `json:"last_featured_at,omitempty"`
}

// RotationInsight is the fairness report attached to every suggestion pass.
type RotationInsight struct {
	Stats         []RotationStat `json:"stats"`
	Mean          float64        `json:"mean"`
	MostDue       *RotationStat  `json:"most_due,omitempty"`
	Justification string         `json:"justification,omitempty"`
}

// Modifier maps a category's feature count to a score multiplier offset.
// Categories featured more than the mean go negative and the result is
// clamped to ±bound.
func Modifier(count int, mean, bound float64) float64 {
	m := bound * (mean - float64(count)) / math.Max(mean, 1)
	return math.Max(-bound, math.Min(bound, m))
}

// Rotation groups slots that started in [since, now] by category and derives
// the modifier of every active category.
func Rotation(categories []domain.Category, slots []Slot, since, now time.Time, bound float64) RotationInsight {
	counts := make(map[int64]int, len(categories))
	last := make(map[int64]time.Time, len(categories))
	for _, s := range slots {
		if s.StartAt.Before(since) || s.StartAt.After(now) {
			continue
		}
		counts[s.CategoryID]++
		if s.StartAt.After(last[s.CategoryID]) {
			last[s.CategoryID] = s.StartAt
		}
	}

	insight := RotationInsight{Stats: make([]RotationStat, 0, len(categories))}
	if len(categories) == 0 {
		return insight
	}
	total := 0
	for _, c := range categories {
		total += counts[c.ID]
	}
	insight.Mean = float64(total) / float64(len(categories))

	for _, c := range categories {
		st := RotationStat{
			CategoryID: c.ID,
			Slug:       c.Slug,
			Name:       c.Name,
			Count:      counts[c.ID],
			Modifier:   Modifier(counts[c.ID], insight.Mean, bound),
		}
		if t, ok := last[c.ID]; ok {
			st.LastFeaturedAt = &t
		}
		insight.Stats = append(insight.Stats, st)
	}

	insight.MostDue, insight.Justification = mostDue(insight.Stats, insight.Mean)
	return insight
}

// mostDue prefers the highest modifier, then the category featured longest
// ago (never featured first), then input order.
func mostDue(stats []RotationStat, mean float64) (*RotationStat, string) {
	if len(stats) == 0 {
		return nil, ""
	}
	order := make([]int, len(stats))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		x, y := stats[order[a]], stats[order[b]]
		if x.Modifier != y.Modifier {
			return x.Modifier > y.Modifier
		}
		switch {
		case x.LastFeaturedAt == nil && y.LastFeaturedAt == nil:
			return false
		case x.LastFeaturedAt == nil:
			return true
		case y.LastFeaturedAt == nil:
			return false
		}
		return x.LastFeaturedAt.Before(*y.LastFeaturedAt)
	})

	due := stats[order[0]]
	var why string
	switch {
	case due.LastFeaturedAt == nil:
		why = fmt.Sprintf("%s has not been featured in the last 4 weeks (average %.1f features per category).", label(due), mean)
	default:
		why = fmt.Sprintf("%s was featured %d times in the last 4 weeks against an average of %.1f; last feature %s.",
			label(due), due.Count, mean, due.LastFeaturedAt.Format("Jan 2"))
	}
	return &due, why
}

func label(s RotationStat) string {
	if s.Name != "" {
		return s.Name
	}
	return s.Slug
}
