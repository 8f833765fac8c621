package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Scope selects which rank set a leaderboard is read from.
type Scope string

const (
	ScopeGlobal   Scope = "global"
	ScopeMonthly  Scope = "monthly"
	ScopeCategory Scope = "category"
)

// Movement describes how a creator moved since the previous pass.
type Movement string

const (
	MovementUp   Movement = "up"
	MovementDown Movement = "down"
	MovementSame Movement = "same"
	MovementNew  Movement = "new"
)

// Entry is one row of a leaderboard read.
type Entry struct {
	Rank     int            `json:"rank"`
	Delta    int            `json:"delta"`
	Movement Movement       `json:"movement"`
	Ranking  CreatorRanking `json:"ranking"`
}

// Leaderboard returns the top creators for scope. categorySlug is required
// for ScopeCategory and ignored otherwise.
func (e *Engine) Leaderboard(ctx context.Context, scope Scope, categorySlug string, limit int) ([]Entry, error) {
	rows, err := e.store.ListRankings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rankings: %w", err)
	}
	return BuildLeaderboard(rows, scope, categorySlug, limit)
}

// BuildLeaderboard orders persisted rows for the requested scope. Only rows
// written by the latest pass are read; a creator who stopped qualifying keeps
// an older row whose ranks belong to a previous permutation.
func BuildLeaderboard(rows []CreatorRanking, scope Scope, categorySlug string, limit int) ([]Entry, error) {
	rankOf := func(r CreatorRanking) (int, bool) { return r.GlobalRank, r.GlobalRank > 0 }
	switch scope {
	case ScopeGlobal, "":
	case ScopeMonthly:
		rankOf = func(r CreatorRanking) (int, bool) { return r.MonthlyRank, r.MonthlyRank > 0 }
	case ScopeCategory:
		if categorySlug == "" {
			return nil, fmt.Errorf("category scope requires a category slug")
		}
		rankOf = func(r CreatorRanking) (int, bool) { return r.CategoryRanks.Get(categorySlug) }
	default:
		return nil, fmt.Errorf("unknown leaderboard scope %q", scope)
	}

	rows = LatestPass(rows)
	var entries []Entry
	for _, r := range rows {
		rank, ok := rankOf(r)
		if !ok {
			continue
		}
		delta, move := movement(r)
		entries = append(entries, Entry{Rank: rank, Delta: delta, Movement: move, Ranking: r})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Rank < entries[j].Rank })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// LatestPass keeps the rows whose ComputedAt matches the newest one.
func LatestPass(rows []CreatorRanking) []CreatorRanking {
	var latest time.Time
	for _, r := range rows {
		if r.ComputedAt.After(latest) {
			latest = r.ComputedAt
		}
	}
	out := make([]CreatorRanking, 0, len(rows))
	for _, r := range rows {
		if r.ComputedAt.Equal(latest) {
			out = append(out, r)
		}
	}
	return out
}

func movement(r CreatorRanking) (int, Movement) {
	if r.PreviousGlobalRank <= 0 {
		return 0, MovementNew
	}
	delta := r.PreviousGlobalRank - r.GlobalRank
	switch {
	case delta > 0:
		return delta, MovementUp
	case delta < 0:
		return delta, MovementDown
	}
	return 0, MovementSame
}
