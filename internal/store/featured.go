package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/elonfeng/vibescore/pkg/featured"
	"github.com/elonfeng/vibescore/pkg/trending"
)

// inChunk bounds the number of bound parameters per IN clause.
const inChunk = 500

func (s *SQLiteStore) ListEligibleFeaturedCandidates(ctx context.Context) ([]featured.Candidate, error) {
	var out []featured.Candidate
	err := s.db.SelectContext(ctx, &out, `
		SELECT l.id AS list_id, l.owner_id, l.title, l.category_id, c.slug AS category_slug
		FROM lists l
		JOIN categories c ON c.id = l.category_id
		WHERE `+pub("l")+`
		ORDER BY l.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list featured candidates: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) GetFeaturedHistory(ctx context.Context, since time.Time) ([]featured.Slot, error) {
	var out []featured.Slot
	err := s.db.SelectContext(ctx, &out, `
		SELECT f.list_id, l.category_id, f.start_at, f.end_at
		FROM featured_slots f
		JOIN lists l ON l.id = f.list_id
		WHERE f.start_at >= ? OR f.end_at IS NULL OR f.end_at >= ?
		ORDER BY f.start_at
	`, since.UTC(), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("featured history: %w", err)
	}
	return out, nil
}

// GetCategoryImpactScores averages, per category, the saves plus likes that
// featured lists received during their feature window, over slots started
// in the trailing windowDays.
func (s *SQLiteStore) GetCategoryImpactScores(ctx context.Context, windowDays int) (map[int64]float64, error) {
	now := s.now()
	since := now.AddDate(0, 0, -windowDays)

	var rows []struct {
		CategoryID int64   `db:"category_id"`
		Impact     float64 `db:"impact"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT l.category_id,
		       AVG(
		         (SELECT COUNT(*) FROM list_saves sv
		          WHERE sv.list_id = f.list_id AND sv.created_at >= f.start_at AND sv.created_at <= COALESCE(f.end_at, ?)) +
		         (SELECT COUNT(*) FROM list_likes k
		          WHERE k.list_id = f.list_id AND k.created_at >= f.start_at AND k.created_at <= COALESCE(f.end_at, ?))
		       ) * 1.0 AS impact
		FROM featured_slots f
		JOIN lists l ON l.id = f.list_id
		WHERE f.start_at >= ? AND f.start_at <= ?
		GROUP BY l.category_id
	`, now, now, since, now)
	if err != nil {
		return nil, fmt.Errorf("category impact: %w", err)
	}

	out := make(map[int64]float64, len(rows))
	for _, r := range rows {
		out[r.CategoryID] = r.Impact
	}
	return out, nil
}

// ScheduleFeatured books a homepage slot for a list. A nil end is
// open-ended.
func (s *SQLiteStore) ScheduleFeatured(ctx context.Context, listID int64, start time.Time, end *time.Time) (int64, error) {
	var endAt any
	if end != nil {
		endAt = end.UTC()
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO featured_slots (list_id, start_at, end_at) VALUES (?, ?, ?)",
		listID, start.UTC(), endAt)
	if err != nil {
		return 0, fmt.Errorf("schedule list %d: %w", listID, err)
	}
	return res.LastInsertId()
}

// ListEngagement returns the saves and likes received by listIDs since the
// given time.
func (s *SQLiteStore) ListEngagement(ctx context.Context, listIDs []int64, since time.Time) ([]trending.Engagement, error) {
	var out []trending.Engagement
	for start := 0; start < len(listIDs); start += inChunk {
		chunk := listIDs[start:min(start+inChunk, len(listIDs))]
		for _, src := range []struct {
			table string
			kind  trending.Kind
		}{
			{"list_saves", trending.KindSave},
			{"list_likes", trending.KindLike},
		} {
			query, args, err := sqlx.In(
				"SELECT list_id, created_at FROM "+src.table+" WHERE list_id IN (?) AND created_at >= ?",
				chunk, since.UTC())
			if err != nil {
				return nil, fmt.Errorf("build engagement query: %w", err)
			}
			var events []trending.Engagement
			if err := s.db.SelectContext(ctx, &events, s.db.Rebind(query), args...); err != nil {
				return nil, fmt.Errorf("list %s: %w", src.table, err)
			}
			for i := range events {
				events[i].Kind = src.kind
			}
			out = append(out, events...)
		}
	}
	return out, nil
}
