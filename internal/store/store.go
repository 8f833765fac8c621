package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/vibescore/pkg/domain"
	"github.com/elonfeng/vibescore/pkg/score"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = domain.ErrNotFound

// publicList restricts a lists alias to rows that count as published.
const publicList = "%[1]s.is_public = 1 AND %[1]s.is_active = 1 AND %[1]s.deleted_at IS NULL"

// SQLiteStore implements every storage contract of the scoring passes.
type SQLiteStore struct {
	db         *sqlx.DB
	viralLikes int
	now        func() time.Time
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{
		db:         db,
		viralLikes: score.DefaultWeights().ViralLikeThreshold,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// SetViralThreshold changes the like count at which a list counts as viral.
func (s *SQLiteStore) SetViralThreshold(likes int) {
	if likes > 0 {
		s.viralLikes = likes
	}
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func pub(alias string) string {
	return fmt.Sprintf(publicList, alias)
}

// notFound maps sql.ErrNoRows onto ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// latest returns the single DATETIME value selected by query, or nil.
func (s *SQLiteStore) latest(ctx context.Context, query string, args ...any) (*time.Time, error) {
	var t time.Time
	err := s.db.GetContext(ctx, &t, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

func latestOf(ts ...*time.Time) *time.Time {
	var out *time.Time
	for _, t := range ts {
		if t != nil && (out == nil || t.After(*out)) {
			out = t
		}
	}
	return out
}

func (s *SQLiteStore) userExists(ctx context.Context, userID int64) error {
	var id int64
	err := s.db.GetContext(ctx, &id, "SELECT id FROM users WHERE id = ?", userID)
	if err != nil {
		return fmt.Errorf("user %d: %w", userID, notFound(err))
	}
	return nil
}

func (s *SQLiteStore) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, err
	}
	return n, nil
}
