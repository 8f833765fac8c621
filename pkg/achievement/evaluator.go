package achievement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/elonfeng/vibescore/internal/metrics"
	"github.com/elonfeng/vibescore/pkg/notify"
)

// Unlock is a newly created (user, achievement) pair.
type Unlock struct {
	UserID        int64     `json:"user_id"`
	AchievementID int64     `json:"achievement_id"`
	Code          Code      `json:"code"`
	Title         string    `json:"title"`
	Tier          Tier      `json:"tier"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}

// Store is the storage contract of the evaluator.
type Store interface {
	GetUserAggregates(ctx context.Context, userID int64) (Aggregates, error)
	ListActivityTimes(ctx context.Context, userID int64) ([]time.Time, error)
	ListAchievements(ctx context.Context) ([]Definition, error)
	GetUnlockedAchievementIDs(ctx context.Context, userID int64) ([]int64, error)
	// InsertUnlock reports false when the pair already exists.
	InsertUnlock(ctx context.Context, userID, achievementID int64, at time.Time) (bool, error)
	UpsertAchievement(ctx context.Context, def *Definition) error
}

// Evaluator unlocks achievements whose conditions a user newly satisfies.
type Evaluator struct {
	store      Store
	pub        notify.Publisher
	conditions map[Code]Condition
	log        zerolog.Logger
	now        func() time.Time
}

// NewEvaluator creates an evaluator over the built-in catalog.
func NewEvaluator(s Store, pub notify.Publisher, t Thresholds, log zerolog.Logger) *Evaluator {
	if pub == nil {
		pub = notify.Nop{}
	}
	return &Evaluator{
		store:      s,
		pub:        pub,
		conditions: Conditions(t),
		log:        log.With().Str("component", "achievement").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Seed reconciles the catalog into storage. It is safe to run repeatedly.
func (e *Evaluator) Seed(ctx context.Context) error {
	for _, def := range Catalog() {
		if err := e.store.UpsertAchievement(ctx, &def); err != nil {
			return fmt.Errorf("upsert achievement %s: %w", def.Code, err)
		}
	}
	return nil
}

// Check evaluates every condition for userID and returns the unlocks created
// by this call. Achievements already unlocked are never evaluated again.
func (e *Evaluator) Check(ctx context.Context, userID int64) ([]Unlock, error) {
	start := time.Now()
	unlocks, err := e.check(ctx, userID)
	metrics.ObservePass("achievements", start, err)
	return unlocks, err
}

func (e *Evaluator) check(ctx context.Context, userID int64) ([]Unlock, error) {
	defs, err := e.store.ListAchievements(ctx)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	ids, err := e.store.GetUnlockedAchievementIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("unlocked achievements of user %d: %w", userID, err)
	}
	unlocked := make(map[int64]bool, len(ids))
	for _, id := range ids {
		unlocked[id] = true
	}

	snap, err := e.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		out  []Unlock
		errs []error
	)
	for _, def := range defs {
		if unlocked[def.ID] {
			continue
		}
		cond, ok := e.conditions[def.Code]
		if !ok {
			e.log.Warn().Str("code", string(def.Code)).Msg("no condition for achievement")
			continue
		}
		if !cond(snap) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}

		inserted, err := e.store.InsertUnlock(ctx, userID, def.ID, snap.Now)
		if err != nil {
			e.log.Error().Err(err).Int64("user_id", userID).Str("code", string(def.Code)).Str("stage", "insert_unlock").Msg("unlock failed")
			errs = append(errs, fmt.Errorf("unlock %s for user %d: %w", def.Code, userID, err))
			continue
		}
		if !inserted {
			continue
		}

		u := Unlock{
			UserID:        userID,
			AchievementID: def.ID,
			Code:          def.Code,
			Title:         def.Title,
			Tier:          def.Tier,
			UnlockedAt:    snap.Now,
		}
		out = append(out, u)
		metrics.AchievementUnlocks.WithLabelValues(string(def.Code)).Inc()
		e.announce(ctx, u)
	}
	return out, errors.Join(errs...)
}

func (e *Evaluator) snapshot(ctx context.Context, userID int64) (Snapshot, error) {
	agg, err := e.store.GetUserAggregates(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("aggregates of user %d: %w", userID, err)
	}
	times, err := e.store.ListActivityTimes(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("activity of user %d: %w", userID, err)
	}
	return Snapshot{Aggregates: agg, Activity: NewActivitySet(times), Now: e.now()}, nil
}

func (e *Evaluator) announce(ctx context.Context, u Unlock) {
	err := e.pub.Publish(ctx, &notify.Event{
		Kind:   notify.KindAchievementUnlocked,
		UserID: u.UserID,
		Title:  "Achievement unlocked: " + u.Title,
		Body:   fmt.Sprintf("User %d earned %s (%s).", u.UserID, u.Title, u.Tier),
		Fields: map[string]string{
			"code":    string(u.Code),
			"tier":    string(u.Tier),
			"title":   u.Title,
			"user_id": strconv.FormatInt(u.UserID, 10),
		},
		At: u.UnlockedAt,
	})
	if err != nil {
		e.log.Warn().Err(err).Int64("user_id", u.UserID).Str("code", string(u.Code)).Msg("unlock notification failed")
	}
}

// Status is one catalog entry as seen by a particular user.
type Status struct {
	Definition
	Unlocked bool `json:"unlocked"`
}

// Progress lists the catalog for userID. Locked secret achievements are
// returned with their title and description hidden.
func (e *Evaluator) Progress(ctx context.Context, userID int64) ([]Status, error) {
	defs, err := e.store.ListAchievements(ctx)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	ids, err := e.store.GetUnlockedAchievementIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("unlocked achievements of user %d: %w", userID, err)
	}
	unlocked := make(map[int64]bool, len(ids))
	for _, id := range ids {
		unlocked[id] = true
	}

	out := make([]Status, 0, len(defs))
	for _, def := range defs {
		s := Status{Definition: def, Unlocked: unlocked[def.ID]}
		if def.IsSecret && !s.Unlocked {
			s.Title = "???"
			s.Description = "Keep vibing to find out."
		}
		out = append(out, s)
	}
	return out, nil
}
