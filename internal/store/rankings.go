package store

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/elonfeng/vibescore/pkg/domain"
	"github.com/elonfeng/vibescore/pkg/ranking"
)

// ListCreatorIDs returns every user who ever authored a list. Users whose
// lists are all private or deleted are filtered by the engine.
func (s *SQLiteStore) ListCreatorIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, "SELECT DISTINCT owner_id FROM lists ORDER BY owner_id"); err != nil {
		return nil, fmt.Errorf("list creator ids: %w", err)
	}
	return ids, nil
}

func (s *SQLiteStore) GetCreatorAggregates(ctx context.Context, userID int64, windowStart time.Time) (ranking.Aggregates, error) {
	if err := s.userExists(ctx, userID); err != nil {
		return ranking.Aggregates{}, err
	}

	agg := ranking.Aggregates{UserID: userID}
	var summary struct {
		Lists    int     `db:"lists"`
		AvgLikes float64 `db:"avg_likes"`
		Viral    int     `db:"viral"`
	}
	err := s.db.GetContext(ctx, &summary, `
		SELECT COUNT(*) AS lists,
		       COALESCE(AVG(l.like_count), 0.0) AS avg_likes,
		       COALESCE(SUM(CASE WHEN l.like_count >= ? THEN 1 ELSE 0 END), 0) AS viral
		FROM lists l
		WHERE l.owner_id = ? AND `+pub("l"), s.viralLikes, userID)
	if err != nil {
		return agg, fmt.Errorf("list summary of user %d: %w", userID, err)
	}
	agg.ListCount, agg.AvgLikes, agg.ViralLists = summary.Lists, summary.AvgLikes, summary.Viral

	counters := []struct {
		dst   *int
		query string
		args  []any
	}{
		{&agg.ApprovedSuggestions, "SELECT COUNT(*) FROM suggestions WHERE suggester_id = ? AND status = 'approved'", []any{userID}},
		{&agg.TotalSaves, "SELECT COUNT(*) FROM list_saves sv JOIN lists l ON l.id = sv.list_id WHERE l.owner_id = ? AND " + pub("l"), []any{userID}},
		{&agg.UniqueExternalSaves, "SELECT COUNT(DISTINCT sv.user_id) FROM list_saves sv JOIN lists l ON l.id = sv.list_id WHERE l.owner_id = ? AND sv.user_id <> l.owner_id AND " + pub("l"), []any{userID}},
		{&agg.Followers, "SELECT COUNT(*) FROM follows WHERE followee_id = ?", []any{userID}},
		{&agg.HelpfulVotes, "SELECT COUNT(*) FROM comment_votes v JOIN comments c ON c.id = v.comment_id WHERE c.user_id = ? AND v.helpful = 1", []any{userID}},
		{&agg.RecentFollowers, "SELECT COUNT(*) FROM follows WHERE followee_id = ? AND created_at >= ?", []any{userID, windowStart}},
		{&agg.RecentSaves, "SELECT COUNT(*) FROM list_saves sv JOIN lists l ON l.id = sv.list_id WHERE l.owner_id = ? AND sv.created_at >= ? AND " + pub("l"), []any{userID, windowStart}},
		{&agg.RecentViralTouches, `
			SELECT COUNT(*) FROM lists l
			WHERE l.owner_id = ? AND l.like_count >= ? AND ` + pub("l") + `
			  AND (EXISTS (SELECT 1 FROM list_likes k WHERE k.list_id = l.id AND k.created_at >= ?)
			    OR EXISTS (SELECT 1 FROM list_saves sv WHERE sv.list_id = l.id AND sv.created_at >= ?))`,
			[]any{userID, s.viralLikes, windowStart, windowStart}},
	}
	for _, c := range counters {
		n, err := s.count(ctx, c.query, c.args...)
		if err != nil {
			return agg, fmt.Errorf("aggregates of user %d: %w", userID, err)
		}
		*c.dst = n
	}

	last, err := s.lastActivity(ctx, userID)
	if err != nil {
		return agg, err
	}
	agg.LastActivityAt = last
	return agg, nil
}

// lastActivity is the latest of public-list update, save received and
// comment written.
func (s *SQLiteStore) lastActivity(ctx context.Context, userID int64) (*time.Time, error) {
	listUpdate, err := s.latest(ctx, "SELECT l.updated_at FROM lists l WHERE l.owner_id = ? AND "+pub("l")+" ORDER BY l.updated_at DESC LIMIT 1", userID)
	if err != nil {
		return nil, fmt.Errorf("last list update of user %d: %w", userID, err)
	}
	saveReceived, err := s.latest(ctx, "SELECT sv.created_at FROM list_saves sv JOIN lists l ON l.id = sv.list_id WHERE l.owner_id = ? ORDER BY sv.created_at DESC LIMIT 1", userID)
	if err != nil {
		return nil, fmt.Errorf("last save of user %d: %w", userID, err)
	}
	comment, err := s.latest(ctx, "SELECT created_at FROM comments WHERE user_id = ? ORDER BY created_at DESC LIMIT 1", userID)
	if err != nil {
		return nil, fmt.Errorf("last comment of user %d: %w", userID, err)
	}
	return latestOf(listUpdate, saveReceived, comment), nil
}

func (s *SQLiteStore) GetPreviousGlobalRank(ctx context.Context, userID int64) (int, error) {
	var rank int
	if err := s.db.GetContext(ctx, &rank, "SELECT global_rank FROM creator_rankings WHERE user_id = ?", userID); err != nil {
		return 0, notFound(err)
	}
	return rank, nil
}

func (s *SQLiteStore) ListActiveCategories(ctx context.Context) ([]domain.Category, error) {
	var cats []domain.Category
	if err := s.db.SelectContext(ctx, &cats, "SELECT id, slug, name FROM categories WHERE is_active = 1 ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

func (s *SQLiteStore) ListCreatorsWithPublicListsInCategory(ctx context.Context, categoryID int64) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids,
		"SELECT DISTINCT l.owner_id FROM lists l WHERE l.category_id = ? AND "+pub("l")+" ORDER BY l.owner_id",
		categoryID)
	if err != nil {
		return nil, fmt.Errorf("creators in category %d: %w", categoryID, err)
	}
	return ids, nil
}

type rankingRow struct {
	UserID             int64      `db:"user_id"`
	CuratorScore       float64    `db:"curator_score"`
	InfluenceScore     float64    `db:"influence_score"`
	MomentumScore      float64    `db:"momentum_score"`
	RankingScore       float64    `db:"ranking_score"`
	GlobalRank         int        `db:"global_rank"`
	PreviousGlobalRank int        `db:"previous_global_rank"`
	MonthlyRank        int        `db:"monthly_rank"`
	MonthlyPeriod      string     `db:"monthly_period"`
	CategoryRanksJSON  string     `db:"category_ranks"`
	LastActivityAt     *time.Time `db:"last_activity_at"`
	ComputedAt         time.Time  `db:"computed_at"`
}

func (r rankingRow) decode() (ranking.CreatorRanking, error) {
	out := ranking.CreatorRanking{
		UserID:             r.UserID,
		CuratorScore:       r.CuratorScore,
		InfluenceScore:     r.InfluenceScore,
		MomentumScore:      r.MomentumScore,
		RankingScore:       r.RankingScore,
		GlobalRank:         r.GlobalRank,
		PreviousGlobalRank: r.PreviousGlobalRank,
		MonthlyRank:        r.MonthlyRank,
		MonthlyPeriod:      r.MonthlyPeriod,
		LastActivityAt:     r.LastActivityAt,
		ComputedAt:         r.ComputedAt,
	}
	if err := json.Unmarshal([]byte(r.CategoryRanksJSON), &out.CategoryRanks); err != nil {
		return out, fmt.Errorf("decode category ranks of user %d: %w", r.UserID, err)
	}
	return out, nil
}

// PersistRanking overwrites the creator's ranking row.
func (s *SQLiteStore) PersistRanking(ctx context.Context, r *ranking.CreatorRanking) error {
	cats, err := json.Marshal(r.CategoryRanks)
	if err != nil {
		return fmt.Errorf("encode category ranks of user %d: %w", r.UserID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO creator_rankings (user_id, curator_score, influence_score, momentum_score, ranking_score,
			global_rank, previous_global_rank, monthly_rank, monthly_period, category_ranks, last_activity_at, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			curator_score = excluded.curator_score,
			influence_score = excluded.influence_score,
			momentum_score = excluded.momentum_score,
			ranking_score = excluded.ranking_score,
			global_rank = excluded.global_rank,
			previous_global_rank = excluded.previous_global_rank,
			monthly_rank = excluded.monthly_rank,
			monthly_period = excluded.monthly_period,
			category_ranks = excluded.category_ranks,
			last_activity_at = excluded.last_activity_at,
			computed_at = excluded.computed_at
	`, r.UserID, r.CuratorScore, r.InfluenceScore, r.MomentumScore, r.RankingScore,
		r.GlobalRank, r.PreviousGlobalRank, r.MonthlyRank, r.MonthlyPeriod, string(cats),
		r.LastActivityAt, r.ComputedAt)
	if err != nil {
		return fmt.Errorf("upsert ranking of user %d: %w", r.UserID, err)
	}
	return nil
}

// ListRankings returns every ranking row ordered by global rank.
func (s *SQLiteStore) ListRankings(ctx context.Context) ([]ranking.CreatorRanking, error) {
	var rows []rankingRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM creator_rankings ORDER BY global_rank"); err != nil {
		return nil, fmt.Errorf("list rankings: %w", err)
	}
	out := make([]ranking.CreatorRanking, 0, len(rows))
	for _, r := range rows {
		cr, err := r.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, nil
}

func (s *SQLiteStore) GetRanking(ctx context.Context, userID int64) (*ranking.CreatorRanking, error) {
	var row rankingRow
	if err := s.db.GetContext(ctx, &row, "SELECT * FROM creator_rankings WHERE user_id = ?", userID); err != nil {
		return nil, notFound(err)
	}
	cr, err := row.decode()
	if err != nil {
		return nil, err
	}
	return &cr, nil
}
