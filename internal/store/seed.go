package store

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Write helpers used by the seed command and by tests. The product API owns
// these writes in production.

func (s *SQLiteStore) CreateUser(ctx context.Context, username string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, display_name, created_at) VALUES (?, ?, ?)",
		username, username, at.UTC())
	if err != nil {
		return 0, fmt.Errorf("create user %s: %w", username, err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) CreateCategory(ctx context.Context, slug, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "INSERT INTO categories (slug, name) VALUES (?, ?)", slug, name)
	if err != nil {
		return 0, fmt.Errorf("create category %s: %w", slug, err)
	}
	return res.LastInsertId()
}

// ListOptions describes a list to create.
type ListOptions struct {
	OwnerID    int64
	CategoryID int64
	Title      string
	Private    bool
	At         time.Time
}

func (s *SQLiteStore) CreateList(ctx context.Context, o ListOptions) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO lists (owner_id, category_id, title, is_public, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, o.OwnerID, o.CategoryID, o.Title, !o.Private, o.At.UTC(), o.At.UTC())
	if err != nil {
		return 0, fmt.Errorf("create list %q: %w", o.Title, err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) TouchList(ctx context.Context, listID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, "UPDATE lists SET updated_at = ? WHERE id = ?", at.UTC(), listID)
	return err
}

// DeleteList soft-deletes a list.
func (s *SQLiteStore) DeleteList(ctx context.Context, listID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, "UPDATE lists SET deleted_at = ? WHERE id = ?", at.UTC(), listID)
	return err
}

func (s *SQLiteStore) AddSave(ctx context.Context, listID, userID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO list_saves (list_id, user_id, created_at) VALUES (?, ?, ?)",
		listID, userID, at.UTC())
	if err != nil {
		return fmt.Errorf("save list %d by %d: %w", listID, userID, err)
	}
	return nil
}

// AddLike records a like and keeps lists.like_count in step.
func (s *SQLiteStore) AddLike(ctx context.Context, listID, userID int64, at time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO list_likes (list_id, user_id, created_at) VALUES (?, ?, ?)",
		listID, userID, at.UTC())
	if err != nil {
		return fmt.Errorf("like list %d by %d: %w", listID, userID, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		if _, err := tx.ExecContext(ctx, "UPDATE lists SET like_count = like_count + 1 WHERE id = ?", listID); err != nil {
			return fmt.Errorf("bump like count of list %d: %w", listID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) AddComment(ctx context.Context, listID, userID int64, body string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO comments (list_id, user_id, body, created_at) VALUES (?, ?, ?, ?)",
		listID, userID, body, at.UTC())
	if err != nil {
		return 0, fmt.Errorf("comment on list %d: %w", listID, err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) VoteHelpful(ctx context.Context, commentID, userID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO comment_votes (comment_id, user_id, helpful, created_at) VALUES (?, ?, 1, ?)",
		commentID, userID, at.UTC())
	return err
}

func (s *SQLiteStore) Follow(ctx context.Context, followerID, followeeID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO follows (follower_id, followee_id, created_at) VALUES (?, ?, ?)",
		followerID, followeeID, at.UTC())
	return err
}

func (s *SQLiteStore) AddSuggestion(ctx context.Context, listID, suggesterID int64, status string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO suggestions (list_id, suggester_id, status, created_at) VALUES (?, ?, ?, ?)",
		listID, suggesterID, status, at.UTC())
	return err
}

var demoCategories = []struct{ slug, name string }{
	{"music", "Music"},
	{"books", "Books"},
	{"film", "Film"},
	{"food", "Food"},
	{"travel", "Travel"},
	{"tech", "Tech"},
}

// SeedDemo fills an empty database with n creators and a spread of lists,
// saves, likes, comments and follows over the 60 days before now.
func (s *SQLiteStore) SeedDemo(ctx context.Context, n int, now time.Time, seed uint64) error {
	if n < 2 {
		return fmt.Errorf("seed needs at least 2 users, got %d", n)
	}
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	ago := func(maxDays int) time.Time {
		return now.Add(-time.Duration(r.IntN(maxDays*24*60)) * time.Minute)
	}

	var cats []int64
	for _, c := range demoCategories {
		id, err := s.CreateCategory(ctx, c.slug, c.name)
		if err != nil {
			return err
		}
		cats = append(cats, id)
	}

	users := make([]int64, n)
	for i := range users {
		id, err := s.CreateUser(ctx, fmt.Sprintf("viber%03d", i+1), now.AddDate(0, 0, -90))
		if err != nil {
			return err
		}
		users[i] = id
	}

	var lists []int64
	for _, u := range users {
		for j := range r.IntN(6) {
			id, err := s.CreateList(ctx, ListOptions{
				OwnerID:    u,
				CategoryID: cats[r.IntN(len(cats))],
				Title:      fmt.Sprintf("list %d of user %d", j+1, u),
				Private:    r.IntN(10) == 0,
				At:         ago(60),
			})
			if err != nil {
				return err
			}
			lists = append(lists, id)
		}
	}
	if len(lists) == 0 {
		return nil
	}

	for _, l := range lists {
		for range r.IntN(n) {
			u := users[r.IntN(n)]
			if err := s.AddSave(ctx, l, u, ago(14)); err != nil {
				return err
			}
			if r.IntN(2) == 0 {
				if err := s.AddLike(ctx, l, u, ago(14)); err != nil {
					return err
				}
			}
		}
		if r.IntN(3) == 0 {
			if err := s.TouchList(ctx, l, ago(7)); err != nil {
				return err
			}
		}
	}

	for _, u := range users {
		for range r.IntN(4) {
			cid, err := s.AddComment(ctx, lists[r.IntN(len(lists))], u, "nice picks", ago(30))
			if err != nil {
				return err
			}
			if err := s.VoteHelpful(ctx, cid, users[r.IntN(n)], ago(30)); err != nil {
				return err
			}
		}
		for range r.IntN(n / 2) {
			if f := users[r.IntN(n)]; f != u {
				if err := s.Follow(ctx, f, u, ago(45)); err != nil {
					return err
				}
			}
		}
		if r.IntN(4) == 0 {
			if err := s.AddSuggestion(ctx, lists[r.IntN(len(lists))], u, "approved", ago(30)); err != nil {
				return err
			}
		}
	}

	for i := range 4 {
		start := now.AddDate(0, 0, -7*(i+1))
		end := start.AddDate(0, 0, 7)
		if _, err := s.ScheduleFeatured(ctx, lists[r.IntN(len(lists))], start, &end); err != nil {
			return err
		}
	}
	return nil
}
