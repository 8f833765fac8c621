package featured

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/elonfeng/vibescore/pkg/domain"
	"github.com/elonfeng/vibescore/pkg/trending"
)

type stubStore struct {
	candidates []Candidate
	slots      []Slot
	impact     map[int64]float64
	categories []domain.Category
}

func (s *stubStore) ListEligibleFeaturedCandidates(context.Context) ([]Candidate, error) {
	return s.candidates, nil
}

func (s *stubStore) GetFeaturedHistory(context.Context, time.Time) ([]Slot, error) {
	return s.slots, nil
}

func (s *stubStore) GetCategoryImpactScores(context.Context, int) (map[int64]float64, error) {
	return s.impact, nil
}

func (s *stubStore) ListActiveCategories(context.Context) ([]domain.Category, error) {
	return s.categories, nil
}

type stubMetrics struct {
	bundles map[int64]trending.Metrics
}

func (m *stubMetrics) Metrics7d(_ context.Context, ids []int64) (map[int64]trending.Metrics, error) {
	out := make(map[int64]trending.Metrics)
	for _, id := range ids {
		if b, ok := m.bundles[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}

func (m *stubMetrics) Score(b trending.Metrics) float64 {
	return trending.Score(b, trending.DefaultWeights())
}

var testNow = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

func ago(days int) time.Time { return testNow.AddDate(0, 0, -days) }

func ptr(t time.Time) *time.Time { return &t }

func newTestBalancer(s Store, mp MetricsProvider) *Balancer {
	b := NewBalancer(s, mp, DefaultPolicy(), zerolog.Nop())
	b.now = func() time.Time { return testNow }
	return b
}

func TestModifierBound(t *testing.T) {
	for count := 0; count <= 50; count++ {
		for _, mean := range []float64{0, 0.5, 1, 2.5, 10, 40} {
			m := Modifier(count, mean, 0.3)
			if m < -0.3 || m > 0.3 {
				t.Fatalf("Modifier(%d, %v) = %v out of bounds", count, mean, m)
			}
		}
	}
	if got := Modifier(0, 0, 0.3); got != 0 {
		t.Fatalf("all-zero history modifier = %v, want 0", got)
	}
}

func TestRotation(t *testing.T) {
	cats := []domain.Category{
		{ID: 1, Slug: "music", Name: "Music"},
		{ID: 2, Slug: "books", Name: "Books"},
		{ID: 3, Slug: "games", Name: "Games"},
	}
	slots := []Slot{
		{ListID: 10, CategoryID: 1, StartAt: ago(3)},
		{ListID: 11, CategoryID: 1, StartAt: ago(10)},
		{ListID: 12, CategoryID: 1, StartAt: ago(20)},
		{ListID: 13, CategoryID: 2, StartAt: ago(5)},
		{ListID: 14, CategoryID: 2, StartAt: ago(40)},
		{ListID: 15, CategoryID: 3, StartAt: testNow.AddDate(0, 0, 2)},
	}

	ins := Rotation(cats, slots, ago(28), testNow, 0.3)
	if ins.Mean != 4.0/3.0 {
		t.Fatalf("mean = %v, want 4/3", ins.Mean)
	}
	byID := make(map[int64]RotationStat)
	for _, st := range ins.Stats {
		byID[st.CategoryID] = st
	}
	if byID[1].Count != 3 || byID[2].Count != 1 || byID[3].Count != 0 {
		t.Fatalf("counts = %d/%d/%d", byID[1].Count, byID[2].Count, byID[3].Count)
	}
	if byID[1].Modifier != -0.3 {
		t.Fatalf("music modifier = %v, want -0.3", byID[1].Modifier)
	}
	if byID[3].Modifier <= byID[2].Modifier || byID[2].Modifier <= 0 {
		t.Fatalf("modifiers not ordered: books %v games %v", byID[2].Modifier, byID[3].Modifier)
	}
	if ins.MostDue == nil || ins.MostDue.Slug != "games" || ins.Justification == "" {
		t.Fatalf("most due = %+v", ins.MostDue)
	}
}

func TestMostDueTieBreak(t *testing.T) {
	cats := []domain.Category{{ID: 1, Slug: "a"}, {ID: 2, Slug: "b"}, {ID: 3, Slug: "c"}}
	slots := []Slot{
		{CategoryID: 1, StartAt: ago(2)},
		{CategoryID: 2, StartAt: ago(9)},
		{CategoryID: 3, StartAt: ago(5)},
	}

	ins := Rotation(cats, slots, ago(28), testNow, 0.3)
	if ins.MostDue.Slug != "b" {
		t.Fatalf("most due = %s, want the one featured longest ago", ins.MostDue.Slug)
	}

	empty := Rotation(cats, nil, ago(28), testNow, 0.3)
	if empty.MostDue.Slug != "a" {
		t.Fatalf("most due with no history = %s, want first category", empty.MostDue.Slug)
	}
	for _, st := range empty.Stats {
		if st.Modifier != 0 {
			t.Fatalf("modifier with no history = %v, want 0", st.Modifier)
		}
	}
}

func TestFilter(t *testing.T) {
	pool := []Candidate{{ListID: 1}, {ListID: 2}, {ListID: 3}, {ListID: 4}, {ListID: 5}}
	slots := []Slot{
		{ListID: 1, StartAt: ago(1), EndAt: ptr(testNow.AddDate(0, 0, 1))},
		{ListID: 2, StartAt: testNow.AddDate(0, 0, 3)},
		{ListID: 3, StartAt: ago(20), EndAt: ptr(ago(13))},
		{ListID: 4, StartAt: ago(25), EndAt: ptr(ago(15))},
	}
	got, seen := Filter(pool, slots, testNow, 14*24*time.Hour)
	if len(got) != 2 || got[0].ListID != 4 || got[1].ListID != 5 {
		t.Fatalf("eligible = %+v, want lists 4 and 5", got)
	}
	if !seen[4] || seen[5] {
		t.Fatalf("seen = %v", seen)
	}
}

func TestRotationModifierScalesFinalScore(t *testing.T) {
	base := 60.0
	a := Final(base, 0.2)
	b := Final(base, -0.2)
	if math.Abs(a/b-1.5) > 1e-9 {
		t.Fatalf("ratio = %v, want 1.5", a/b)
	}
	if Final(10, -2) != 0 {
		t.Fatal("final score must be floored at 0")
	}
}

func TestSuggestions(t *testing.T) {
	cats := []domain.Category{{ID: 1, Slug: "music"}, {ID: 2, Slug: "books"}}
	s := &stubStore{
		categories: cats,
		impact:     map[int64]float64{1: 80, 2: 10},
		slots: []Slot{
			{ListID: 100, CategoryID: 1, StartAt: ago(10), EndAt: ptr(ago(3))},
			{ListID: 101, CategoryID: 1, StartAt: ago(20), EndAt: ptr(ago(16))},
		},
	}
	mp := &stubMetrics{bundles: map[int64]trending.Metrics{}}
	for i := int64(1); i <= 8; i++ {
		cat := int64(1)
		if i%2 == 0 {
			cat = 2
		}
		s.candidates = append(s.candidates, Candidate{ListID: i, CategoryID: cat, CategorySlug: map[int64]string{1: "music", 2: "books"}[cat]})
		mp.bundles[i] = trending.Metrics{ListID: i, S7: int(i) * 4, L7: int(i), SaveVelocity: float64(i) * 10}
	}
	s.candidates = append(s.candidates, Candidate{ListID: 100, CategoryID: 1}, Candidate{ListID: 999, CategoryID: 2})
	mp.bundles[100] = trending.Metrics{ListID: 100, S7: 500}

	report, err := newTestBalancer(s, mp).Suggestions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Eligible != 9 || report.Skipped != 1 || report.Scored != 8 {
		t.Fatalf("eligible=%d skipped=%d scored=%d", report.Eligible, report.Skipped, report.Scored)
	}
	if len(report.Suggestions) != 5 {
		t.Fatalf("got %d suggestions, want 5", len(report.Suggestions))
	}
	for i, sg := range report.Suggestions {
		if sg.ListID == 100 {
			t.Fatal("recently featured list must not be suggested")
		}
		if len(sg.Reasons) == 0 {
			t.Fatalf("suggestion %d has no reasons", sg.ListID)
		}
		if sg.RotationModifier < -0.3 || sg.RotationModifier > 0.3 {
			t.Fatalf("modifier %v out of bounds", sg.RotationModifier)
		}
		if i > 0 && sg.FinalScore > report.Suggestions[i-1].FinalScore {
			t.Fatal("suggestions not sorted by final score")
		}
	}
	if report.Rotation.MostDue == nil || report.Rotation.MostDue.Slug != "books" {
		t.Fatalf("most due = %+v, want books", report.Rotation.MostDue)
	}
}

func TestCandidateCap(t *testing.T) {
	s := &stubStore{categories: []domain.Category{{ID: 1, Slug: "x"}}}
	mp := &stubMetrics{bundles: map[int64]trending.Metrics{}}
	for i := int64(1); i <= 250; i++ {
		s.candidates = append(s.candidates, Candidate{ListID: i, CategoryID: 1})
		mp.bundles[i] = trending.Metrics{ListID: i, S7: int(i)}
	}

	report, err := newTestBalancer(s, mp).Suggestions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Scored != 200 {
		t.Fatalf("scored = %d, want 200", report.Scored)
	}
	if report.Suggestions[0].ListID != 250 {
		t.Fatalf("top = %d, want 250", report.Suggestions[0].ListID)
	}
}

func TestReasons(t *testing.T) {
	p := DefaultPolicy()
	s := &Suggestion{
		Candidate:     Candidate{CategorySlug: "music"},
		Metrics:       trending.Metrics{S7: 25, SaveVelocity: 80},
		TrendingScore: 320,
		Signals:       Signals{Category: 60},
	}
	got := p.reasons(s, RotationStat{Modifier: 0.1}, true)
	if len(got) != 6 {
		t.Fatalf("reasons = %v", got)
	}
	if got[0] != "High trending score (320)" {
		t.Fatalf("first reason = %q", got[0])
	}

	quiet := p.reasons(&Suggestion{}, RotationStat{}, false)
	if len(quiet) != 1 {
		t.Fatalf("quiet reasons = %v", quiet)
	}
}
