package store

import (
	"context"
	"fmt"
	"time"

	"github.com/elonfeng/vibescore/pkg/achievement"
)

func (s *SQLiteStore) GetUserAggregates(ctx context.Context, userID int64) (achievement.Aggregates, error) {
	var agg achievement.Aggregates
	if err := s.userExists(ctx, userID); err != nil {
		return agg, err
	}

	counters := []struct {
		dst   *int
		query string
		args  []any
	}{
		{&agg.Lists, "SELECT COUNT(*) FROM lists l WHERE l.owner_id = ? AND " + pub("l"), []any{userID}},
		{&agg.SavesReceived, "SELECT COUNT(*) FROM list_saves sv JOIN lists l ON l.id = sv.list_id WHERE l.owner_id = ? AND sv.user_id <> l.owner_id", []any{userID}},
		{&agg.MaxListSaves, `
			SELECT COALESCE(MAX(n), 0) FROM (
				SELECT COUNT(*) AS n FROM list_saves sv JOIN lists l ON l.id = sv.list_id
				WHERE l.owner_id = ? AND sv.user_id <> l.owner_id
				GROUP BY sv.list_id
			)`, []any{userID}},
		{&agg.ViralLists, "SELECT COUNT(*) FROM lists l WHERE l.owner_id = ? AND l.like_count >= ? AND l.deleted_at IS NULL", []any{userID, s.viralLikes}},
		{&agg.Comments, "SELECT COUNT(*) FROM comments WHERE user_id = ?", []any{userID}},
		{&agg.HelpfulVotes, "SELECT COUNT(*) FROM comment_votes v JOIN comments c ON c.id = v.comment_id WHERE c.user_id = ? AND v.helpful = 1", []any{userID}},
		{&agg.Followers, "SELECT COUNT(*) FROM follows WHERE followee_id = ?", []any{userID}},
	}
	for _, c := range counters {
		n, err := s.count(ctx, c.query, c.args...)
		if err != nil {
			return agg, fmt.Errorf("achievement aggregates of user %d: %w", userID, err)
		}
		*c.dst = n
	}
	return agg, nil
}

// ListActivityTimes returns the creation times of the user's lists, saves
// and comments.
func (s *SQLiteStore) ListActivityTimes(ctx context.Context, userID int64) ([]time.Time, error) {
	var out []time.Time
	for _, q := range []string{
		"SELECT created_at FROM lists WHERE owner_id = ?",
		"SELECT created_at FROM list_saves WHERE user_id = ?",
		"SELECT created_at FROM comments WHERE user_id = ?",
	} {
		var ts []time.Time
		if err := s.db.SelectContext(ctx, &ts, q, userID); err != nil {
			return nil, fmt.Errorf("activity of user %d: %w", userID, err)
		}
		out = append(out, ts...)
	}
	return out, nil
}

func (s *SQLiteStore) ListAchievements(ctx context.Context) ([]achievement.Definition, error) {
	var defs []achievement.Definition
	if err := s.db.SelectContext(ctx, &defs, "SELECT * FROM achievements ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	return defs, nil
}

func (s *SQLiteStore) GetUnlockedAchievementIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, "SELECT achievement_id FROM user_achievements WHERE user_id = ?", userID); err != nil {
		return nil, fmt.Errorf("unlocked achievements of user %d: %w", userID, err)
	}
	return ids, nil
}

// InsertUnlock relies on UNIQUE(user_id, achievement_id) so concurrent
// checks cannot unlock twice.
func (s *SQLiteStore) InsertUnlock(ctx context.Context, userID, achievementID int64, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO user_achievements (user_id, achievement_id, unlocked_at) VALUES (?, ?, ?)",
		userID, achievementID, at.UTC())
	if err != nil {
		return false, fmt.Errorf("insert unlock %d/%d: %w", userID, achievementID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpsertAchievement inserts or refreshes a catalog row by code and sets
// def.ID.
func (s *SQLiteStore) UpsertAchievement(ctx context.Context, def *achievement.Definition) error {
	err := s.db.GetContext(ctx, &def.ID, `
		INSERT INTO achievements (code, title, description, category, tier, icon, is_secret)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			category = excluded.category,
			tier = excluded.tier,
			icon = excluded.icon,
			is_secret = excluded.is_secret
		RETURNING id
	`, def.Code, def.Title, def.Description, def.Category, def.Tier, def.Icon, def.IsSecret)
	if err != nil {
		return fmt.Errorf("upsert achievement %s: %w", def.Code, err)
	}
	return nil
}

// ListActiveUserIDs returns users who acted, or whose lists or profile
// received engagement, since the given time.
func (s *SQLiteStore) ListActiveUserIDs(ctx context.Context, since time.Time) ([]int64, error) {
	since = since.UTC()
	var ids []int64
	err := s.db.SelectContext(ctx, &ids, `
		SELECT owner_id FROM lists WHERE updated_at >= ?
		UNION SELECT user_id FROM list_saves WHERE created_at >= ?
		UNION SELECT l.owner_id FROM list_saves sv JOIN lists l ON l.id = sv.list_id WHERE sv.created_at >= ?
		UNION SELECT l.owner_id FROM list_likes k JOIN lists l ON l.id = k.list_id WHERE k.created_at >= ?
		UNION SELECT user_id FROM comments WHERE created_at >= ?
		UNION SELECT followee_id FROM follows WHERE created_at >= ?
		ORDER BY 1
	`, since, since, since, since, since, since)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	return ids, nil
}
