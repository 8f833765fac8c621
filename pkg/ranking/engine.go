package ranking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/vibescore/internal/metrics"
	"github.com/elonfeng/vibescore/pkg/domain"
	"github.com/elonfeng/vibescore/pkg/score"
)

// ErrInvariant is returned when computed ranks are not a dense permutation.
// Nothing is persisted when it occurs.
var ErrInvariant = errors.New("ranking invariant violated")

// Config controls a ranking pass.
type Config struct {
	Weights        score.Weights
	Decay          score.DecayPolicy
	Workers        int
	MomentumWindow time.Duration
}

// DefaultConfig returns the production ranking configuration.
func DefaultConfig() Config {
	return Config{
		Weights:        score.DefaultWeights(),
		Decay:          score.DefaultDecayPolicy(),
		Workers:        8,
		MomentumWindow: 30 * 24 * time.Hour,
	}
}

// Engine computes and persists creator rankings.
type Engine struct {
	store Store
	cfg   Config
	log   zerolog.Logger
	now   func() time.Time
}

// NewEngine creates a new ranking engine.
func NewEngine(s Store, cfg Config, log zerolog.Logger) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.MomentumWindow <= 0 {
		cfg.MomentumWindow = 30 * 24 * time.Hour
	}
	return &Engine{
		store: s,
		cfg:   cfg,
		log:   log.With().Str("component", "ranking").Logger(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Qualification is the outcome of the creator precondition check.
type Qualification struct {
	Qualified bool
	Reason    string
}

// Qualify reports whether a creator takes part in a ranking pass.
func Qualify(agg Aggregates) Qualification {
	if agg.ListCount <= 0 {
		return Qualification{Reason: "no_public_lists"}
	}
	return Qualification{Qualified: true}
}

// Report summarises a ranking pass.
type Report struct {
	RunAt     time.Time
	Period    string
	Ranked    int
	Persisted int
	Skipped   map[string]int
	Failed    []CreatorRanking
}

// Run executes a full ranking pass: score, rank, verify, persist.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	now := e.now()

	rows, skipped, err := e.Compute(ctx, now)
	if err != nil {
		metrics.ObservePass("ranking", start, err)
		return nil, err
	}

	report := &Report{
		RunAt:   now,
		Period:  now.Format("2006-01"),
		Ranked:  len(rows),
		Skipped: skipped,
	}
	metrics.CreatorsRanked.Set(float64(len(rows)))

	failed, err := e.Persist(ctx, rows)
	report.Failed = failed
	report.Persisted = len(rows) - len(failed)
	metrics.ObservePass("ranking", start, err)
	if err != nil {
		return report, err
	}

	e.log.Info().
		Int("ranked", report.Ranked).
		Int("persisted", report.Persisted).
		Int("failed", len(failed)).
		Interface("skipped", skipped).
		Dur("took", time.Since(start)).
		Msg("ranking pass complete")
	return report, nil
}

// Compute scores every qualifying creator and assigns global, monthly and
// category ranks. The result is verified before it is returned.
func (e *Engine) Compute(ctx context.Context, now time.Time) ([]CreatorRanking, map[string]int, error) {
	ids, err := e.store.ListCreatorIDs(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list creators: %w", err)
	}

	scored := make([]*CreatorRanking, len(ids))
	reasons := make([]string, len(ids))
	windowStart := now.Add(-e.cfg.MomentumWindow)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row, reason := e.scoreCreator(gctx, id, windowStart, now)
			scored[i] = row
			reasons[i] = reason
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("score creators: %w", err)
	}

	skipped := make(map[string]int)
	rows := make([]CreatorRanking, 0, len(ids))
	for i, row := range scored {
		if row == nil {
			skipped[reasons[i]]++
			metrics.CreatorsSkipped.WithLabelValues(reasons[i]).Inc()
			continue
		}
		rows = append(rows, *row)
	}

	members, err := e.categoryMembers(ctx)
	if err != nil {
		return nil, nil, err
	}

	AssignRanks(rows, members, now.Format("2006-01"))
	if err := VerifyRanks(rows); err != nil {
		e.log.Error().Err(err).Msg("refusing to persist rankings")
		return nil, nil, err
	}
	return rows, skipped, nil
}

func (e *Engine) scoreCreator(ctx context.Context, userID int64, windowStart, now time.Time) (*CreatorRanking, string) {
	agg, err := e.store.GetCreatorAggregates(ctx, userID, windowStart)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "not_found"
		}
		e.log.Warn().Err(err).Int64("user_id", userID).Str("stage", "aggregates").Msg("skipping creator")
		return nil, "read_error"
	}

	if q := Qualify(agg); !q.Qualified {
		return nil, q.Reason
	}

	w := e.cfg.Weights
	curator := score.Curator(score.CuratorInput{
		Lists:               agg.ListCount,
		AvgLikesPerList:     agg.AvgLikes,
		ApprovedSuggestions: agg.ApprovedSuggestions,
		TotalSaves:          agg.TotalSaves,
		ViralLists:          agg.ViralLists,
	}, w)
	influence := score.Influence(score.InfluenceInput{
		UniqueExternalSaves: agg.UniqueExternalSaves,
		Followers:           agg.Followers,
		HelpfulCommentVotes: agg.HelpfulVotes,
	}, w)
	momentum := score.Momentum(score.MomentumInput{
		NewFollowers:      agg.RecentFollowers,
		NewSavesOnLists:   agg.RecentSaves,
		ViralListsTouched: agg.RecentViralTouches,
	}, w)
	raw := score.Ranking(curator, influence, momentum, w)

	prev, err := e.store.GetPreviousGlobalRank(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		e.log.Warn().Err(err).Int64("user_id", userID).Str("stage", "previous_rank").Msg("skipping creator")
		return nil, "read_error"
	}

	return &CreatorRanking{
		UserID:             userID,
		CuratorScore:       curator,
		InfluenceScore:     influence,
		MomentumScore:      momentum,
		RankingScore:       score.Decay(raw, agg.LastActivityAt, now, e.cfg.Decay),
		PreviousGlobalRank: prev,
		LastActivityAt:     agg.LastActivityAt,
		ComputedAt:         now,
	}, ""
}

func (e *Engine) categoryMembers(ctx context.Context) (map[string]map[int64]bool, error) {
	cats, err := e.store.ListActiveCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	members := make(map[string]map[int64]bool, len(cats))
	for _, c := range cats {
		ids, err := e.store.ListCreatorsWithPublicListsInCategory(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("category %s members: %w", c.Slug, err)
		}
		set := make(map[int64]bool, len(ids))
		for _, id := range ids {
			set[id] = true
		}
		members[c.Slug] = set
	}
	return members, nil
}

// AssignRanks sorts rows by RankingScore (stable on input order) and fills
// in global, monthly and per-category ranks.
func AssignRanks(rows []CreatorRanking, members map[string]map[int64]bool, period string) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].RankingScore > rows[j].RankingScore
	})

	slugs := make([]string, 0, len(members))
	for slug := range members {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	next := make(map[string]int, len(slugs))

	for i := range rows {
		rows[i].GlobalRank = i + 1
		rows[i].MonthlyRank = i + 1
		rows[i].MonthlyPeriod = period
		rows[i].CategoryRanks = CategoryRanks{}
		for _, slug := range slugs {
			if !members[slug][rows[i].UserID] {
				continue
			}
			next[slug]++
			rows[i].CategoryRanks.Set(slug, next[slug])
		}
	}
}

// VerifyRanks checks that every rank set is a dense permutation of 1..N.
func VerifyRanks(rows []CreatorRanking) error {
	global := make([]int, len(rows))
	monthly := make([]int, len(rows))
	bySlug := make(map[string][]int)
	for i, r := range rows {
		global[i] = r.GlobalRank
		monthly[i] = r.MonthlyRank
		for _, slug := range r.CategoryRanks.Slugs() {
			rank, _ := r.CategoryRanks.Get(slug)
			bySlug[slug] = append(bySlug[slug], rank)
		}
	}

	if err := checkPermutation("global", global); err != nil {
		return err
	}
	if err := checkPermutation("monthly", monthly); err != nil {
		return err
	}
	for slug, ranks := range bySlug {
		if err := checkPermutation("category "+slug, ranks); err != nil {
			return err
		}
	}
	return nil
}

func checkPermutation(set string, ranks []int) error {
	seen := make([]bool, len(ranks)+1)
	for _, r := range ranks {
		if r < 1 || r > len(ranks) {
			return fmt.Errorf("%w: %s rank %d out of range 1..%d", ErrInvariant, set, r, len(ranks))
		}
		if seen[r] {
			return fmt.Errorf("%w: %s rank %d assigned twice", ErrInvariant, set, r)
		}
		seen[r] = true
	}
	return nil
}

// Persist upserts each row independently and returns the rows whose write
// failed. Only context cancellation is returned as an error.
func (e *Engine) Persist(ctx context.Context, rows []CreatorRanking) ([]CreatorRanking, error) {
	var failed []CreatorRanking
	for i := range rows {
		if err := ctx.Err(); err != nil {
			return append(failed, rows[i:]...), err
		}
		if err := e.store.PersistRanking(ctx, &rows[i]); err != nil {
			metrics.RankingWriteErrors.Inc()
			e.log.Error().Err(err).Int64("user_id", rows[i].UserID).Str("stage", "persist").Msg("ranking upsert failed")
			failed = append(failed, rows[i])
		}
	}
	return failed, nil
}
