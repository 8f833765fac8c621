package featured

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/elonfeng/vibescore/internal/metrics"
	"github.com/elonfeng/vibescore/pkg/trending"
)

// Policy holds the balancer constants.
type Policy struct {
	CandidateCap   int
	TopN           int
	RefeatureAfter time.Duration
	RotationWindow time.Duration
	ImpactDays     int
	ModifierBound  float64

	TrendingWeight float64
	VelocityWeight float64
	CategoryWeight float64
	GrowthWeight   float64

	HighTrending   float64
	GoodTrending   float64
	HighVelocity   float64
	HighGrowth     int
	StrongCategory float64
}

// DefaultPolicy returns the production balancer constants.
func DefaultPolicy() Policy {
	return Policy{
		CandidateCap:   200,
		TopN:           5,
		RefeatureAfter: 14 * 24 * time.Hour,
		RotationWindow: 28 * 24 * time.Hour,
		ImpactDays:     30,
		ModifierBound:  0.3,
		TrendingWeight: 0.4,
		VelocityWeight: 0.2,
		CategoryWeight: 0.2,
		GrowthWeight:   0.2,
		HighTrending:   trending.Hot,
		GoodTrending:   trending.Warm,
		HighVelocity:   50,
		HighGrowth:     20,
		StrongCategory: 50,
	}
}

// Balancer ranks lists as homepage feature candidates.
type Balancer struct {
	store   Store
	metrics MetricsProvider
	policy  Policy
	log     zerolog.Logger
	now     func() time.Time
}

// NewBalancer creates a new featured-content balancer.
func NewBalancer(s Store, mp MetricsProvider, p Policy, log zerolog.Logger) *Balancer {
	if p.TopN <= 0 {
		p = DefaultPolicy()
	}
	return &Balancer{
		store:   s,
		metrics: mp,
		policy:  p,
		log:     log.With().Str("component", "featured").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Suggestions returns the top feature candidates with reasons and the
// category rotation report.
func (b *Balancer) Suggestions(ctx context.Context) (*Report, error) {
	start := time.Now()
	r, err := b.suggest(ctx)
	metrics.ObservePass("featured", start, err)
	return r, err
}

func (b *Balancer) suggest(ctx context.Context) (*Report, error) {
	now := b.now()
	p := b.policy

	cats, err := b.store.ListActiveCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	since := now.Add(-max(p.RotationWindow, p.RefeatureAfter))
	slots, err := b.store.GetFeaturedHistory(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("featured history: %w", err)
	}
	rotation := Rotation(cats, slots, now.Add(-p.RotationWindow), now, p.ModifierBound)

	pool, err := b.store.ListEligibleFeaturedCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	eligible, recent := Filter(pool, slots, now, p.RefeatureAfter)
	report := &Report{GeneratedAt: now, Rotation: rotation, Eligible: len(eligible)}
	if len(eligible) == 0 {
		return report, nil
	}

	ids := make([]int64, len(eligible))
	for i, c := range eligible {
		ids[i] = c.ListID
	}
	bundles, err := b.metrics.Metrics7d(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list metrics: %w", err)
	}
	impact, err := b.store.GetCategoryImpactScores(ctx, p.ImpactDays)
	if err != nil {
		return nil, fmt.Errorf("category impact: %w", err)
	}

	modifiers := make(map[int64]RotationStat, len(rotation.Stats))
	for _, st := range rotation.Stats {
		modifiers[st.CategoryID] = st
	}

	var scored []Suggestion
	for _, c := range eligible {
		m, ok := bundles[c.ListID]
		if !ok {
			report.Skipped++
			metrics.FeaturedSkipped.WithLabelValues("missing_metrics").Inc()
			b.log.Debug().Int64("list_id", c.ListID).Str("stage", "metrics").Msg("skipping candidate")
			continue
		}
		scored = append(scored, Suggestion{Candidate: c, Metrics: m, TrendingScore: b.metrics.Score(m)})
	}

	// Cheap pre-sort on the raw trending score bounds the full scoring cost.
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].TrendingScore > scored[j].TrendingScore })
	if len(scored) > p.CandidateCap {
		scored = scored[:p.CandidateCap]
	}
	metrics.FeaturedCandidates.Set(float64(len(scored)))

	for i := range scored {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s := &scored[i]
		st := modifiers[s.CategoryID]
		s.Signals = Normalize(s.TrendingScore, s.Metrics, impact[s.CategoryID])
		s.BaseScore = p.base(s.Signals)
		s.RotationModifier = st.Modifier
		s.FinalScore = Final(s.BaseScore, st.Modifier)
		s.Reasons = p.reasons(s, st, !recent[s.ListID])
	}
	report.Scored = len(scored)

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].FinalScore > scored[j].FinalScore })
	if len(scored) > p.TopN {
		scored = scored[:p.TopN]
	}
	report.Suggestions = scored

	b.log.Info().
		Int("eligible", report.Eligible).
		Int("scored", report.Scored).
		Int("skipped", report.Skipped).
		Msg("featured suggestions ready")
	return report, nil
}

// Filter drops lists that are scheduled now or later, or whose last feature
// ended within refeature of now. The second result marks lists that appear
// anywhere in slots.
func Filter(pool []Candidate, slots []Slot, now time.Time, refeature time.Duration) ([]Candidate, map[int64]bool) {
	blocked := make(map[int64]bool)
	seen := make(map[int64]bool)
	cutoff := now.Add(-refeature)
	for _, s := range slots {
		seen[s.ListID] = true
		if s.EndAt == nil || s.EndAt.After(cutoff) {
			blocked[s.ListID] = true
		}
	}

	out := make([]Candidate, 0, len(pool))
	for _, c := range pool {
		if !blocked[c.ListID] {
			out = append(out, c)
		}
	}
	return out, seen
}

// Normalize maps the raw inputs onto 0..100.
func Normalize(trendingScore float64, m trending.Metrics, categoryImpact float64) Signals {
	return Signals{
		Trending: cap100(trendingScore / 5),
		Velocity: cap100(m.SaveVelocity),
		Category: cap100(categoryImpact),
		Growth:   cap100(float64(m.S7) * 2),
	}
}

// Final applies the rotation modifier, floored at 0.
func Final(base, modifier float64) float64 {
	return math.Max(0, base*(1+modifier))
}

func (p Policy) base(s Signals) float64 {
	return p.TrendingWeight*s.Trending +
		p.VelocityWeight*s.Velocity +
		p.CategoryWeight*s.Category +
		p.GrowthWeight*s.Growth
}

func (p Policy) reasons(s *Suggestion, st RotationStat, notRecent bool) []string {
	var out []string
	switch {
	case s.TrendingScore >= p.HighTrending:
		out = append(out, fmt.Sprintf("High trending score (%.0f)", s.TrendingScore))
	case s.TrendingScore >= p.GoodTrending:
		out = append(out, fmt.Sprintf("Good trending score (%.0f)", s.TrendingScore))
	}
	if s.Metrics.SaveVelocity >= p.HighVelocity {
		out = append(out, fmt.Sprintf("Saves up %.0f%% week over week", s.Metrics.SaveVelocity))
	}
	if s.Metrics.S7 >= p.HighGrowth {
		out = append(out, fmt.Sprintf("%d new saves in the last 7 days", s.Metrics.S7))
	}
	if s.Signals.Category >= p.StrongCategory {
		out = append(out, fmt.Sprintf("Strong recent performance in %s", s.CategorySlug))
	}
	if notRecent {
		out = append(out, "Not featured recently")
	}
	switch {
	case st.Modifier > 0:
		out = append(out, fmt.Sprintf("Category %s is due for rotation (+%.0f%%)", s.CategorySlug, st.Modifier*100))
	case st.Modifier < 0:
		out = append(out, fmt.Sprintf("Category %s was featured often lately (%.0f%%)", s.CategorySlug, st.Modifier*100))
	}
	if len(out) == 0 {
		out = append(out, "Steady engagement")
	}
	return out
}

func cap100(x float64) float64 {
	return math.Max(0, math.Min(x, 100))
}
