package store

import (
	"context"
	"fmt"
	"time"

	"github.com/elonfeng/vibescore/pkg/domain"
	"github.com/elonfeng/vibescore/pkg/spotlight"
)

func (s *SQLiteStore) GetActiveSpotlight(ctx context.Context, now time.Time) (*spotlight.Spotlight, error) {
	var sp spotlight.Spotlight
	err := s.db.GetContext(ctx, &sp, `
		SELECT * FROM creator_spotlights
		WHERE start_date <= ? AND end_date >= ?
		ORDER BY start_date DESC, id DESC
		LIMIT 1
	`, now.UTC(), now.UTC())
	if err != nil {
		return nil, notFound(err)
	}
	return &sp, nil
}

func (s *SQLiteStore) CountRecentSpotlights(ctx context.Context, userID int64, since time.Time) (int, error) {
	n, err := s.count(ctx, "SELECT COUNT(*) FROM creator_spotlights WHERE user_id = ? AND end_date > ?", userID, since.UTC())
	if err != nil {
		return 0, fmt.Errorf("count spotlights of user %d: %w", userID, err)
	}
	return n, nil
}

// CreateSpotlight inserts sp unless its window overlaps an existing row. The
// check and the insert are one statement, so two schedulers cannot both win.
func (s *SQLiteStore) CreateSpotlight(ctx context.Context, sp *spotlight.Spotlight) error {
	start, end := sp.StartDate.UTC(), sp.EndDate.UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO creator_spotlights (user_id, type, category_slug, start_date, end_date, note)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM creator_spotlights WHERE start_date <= ? AND end_date >= ?
		)
	`, sp.UserID, sp.Type, sp.CategorySlug, start, end, sp.Note, end, start)
	if err != nil {
		return fmt.Errorf("insert spotlight: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return spotlight.ErrActiveExists
	}
	sp.ID, _ = res.LastInsertId()
	return nil
}

// ListSpotlightCandidates returns creators with a public list who updated a
// list or commented since activeSince, with their latest ranking scores.
func (s *SQLiteStore) ListSpotlightCandidates(ctx context.Context, activeSince time.Time) ([]spotlight.Candidate, error) {
	var out []spotlight.Candidate
	err := s.db.SelectContext(ctx, &out, `
		SELECT l.owner_id AS user_id,
		       COALESCE(MAX(r.ranking_score), 0.0) AS ranking_score,
		       COALESCE(MAX(r.momentum_score), 0.0) AS momentum_score,
		       AVG(l.like_count + (SELECT COUNT(*) FROM list_saves sv WHERE sv.list_id = l.id)) * 1.0 AS avg_engagement
		FROM lists l
		LEFT JOIN creator_rankings r ON r.user_id = l.owner_id
		WHERE `+pub("l")+`
		GROUP BY l.owner_id
		HAVING MAX(l.updated_at) >= ?
		    OR EXISTS (SELECT 1 FROM comments c WHERE c.user_id = l.owner_id AND c.created_at >= ?)
		ORDER BY l.owner_id
	`, activeSince.UTC(), activeSince.UTC())
	if err != nil {
		return nil, fmt.Errorf("list spotlight candidates: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) GetProfile(ctx context.Context, userID int64) (domain.Profile, error) {
	var p domain.Profile
	err := s.db.GetContext(ctx, &p, `
		SELECT u.id, u.username, u.display_name, u.bio, u.avatar_url,
		       (SELECT COUNT(*) FROM follows f WHERE f.followee_id = u.id) AS followers,
		       (SELECT COUNT(*) FROM lists l WHERE l.owner_id = u.id AND `+pub("l")+`) AS list_count
		FROM users u WHERE u.id = ?
	`, userID)
	if err != nil {
		return p, fmt.Errorf("profile of user %d: %w", userID, notFound(err))
	}
	return p, nil
}

// ListTopLists orders the user's public lists by likes, then saves.
func (s *SQLiteStore) ListTopLists(ctx context.Context, userID int64, limit int) ([]domain.ListSummary, error) {
	var out []domain.ListSummary
	err := s.db.SelectContext(ctx, &out, `
		SELECT l.id, l.owner_id, l.category_id, l.title, l.like_count, l.updated_at,
		       (SELECT COUNT(*) FROM list_saves sv WHERE sv.list_id = l.id) AS save_count
		FROM lists l
		WHERE l.owner_id = ? AND `+pub("l")+`
		ORDER BY l.like_count DESC, save_count DESC, l.id
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("top lists of user %d: %w", userID, err)
	}
	return out, nil
}

func (s *SQLiteStore) GetUserIDByUsername(ctx context.Context, username string) (int64, error) {
	var id int64
	if err := s.db.GetContext(ctx, &id, "SELECT id FROM users WHERE username = ?", username); err != nil {
		return 0, notFound(err)
	}
	return id, nil
}

func (s *SQLiteStore) SaveEditorPick(ctx context.Context, p *spotlight.EditorPick) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO editor_picks (guid, username, user_id, note, link, status, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.GUID, p.Username, p.UserID, p.Note, p.Link, p.Status, p.PublishedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("insert editor pick %s: %w", p.GUID, err)
	}
	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		return false, err
	}
	p.ID, _ = res.LastInsertId()
	return true, nil
}

func (s *SQLiteStore) ListPendingEditorPicks(ctx context.Context) ([]spotlight.EditorPick, error) {
	var out []spotlight.EditorPick
	err := s.db.SelectContext(ctx, &out,
		"SELECT * FROM editor_picks WHERE status = ? ORDER BY published_at, id", spotlight.PickPending)
	if err != nil {
		return nil, fmt.Errorf("list editor picks: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) SetEditorPickStatus(ctx context.Context, id int64, status spotlight.PickStatus) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE editor_picks SET status = ? WHERE id = ?", status, id); err != nil {
		return fmt.Errorf("update editor pick %d: %w", id, err)
	}
	return nil
}

// ListSpotlights returns the most recent spotlight rows.
func (s *SQLiteStore) ListSpotlights(ctx context.Context, limit int) ([]spotlight.Spotlight, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []spotlight.Spotlight
	if err := s.db.SelectContext(ctx, &out, "SELECT * FROM creator_spotlights ORDER BY start_date DESC LIMIT ?", limit); err != nil {
		return nil, fmt.Errorf("list spotlights: %w", err)
	}
	return out, nil
}
