package spotlight

import (
	"context"
	"errors"
	"time"

	"github.com/elonfeng/vibescore/pkg/domain"
	"github.com/elonfeng/vibescore/pkg/ranking"
)

// ErrActiveExists is returned when a spotlight is already running.
var ErrActiveExists = errors.New("a spotlight is already active")

// Type is the kind of spotlight.
type Type string

const (
	TypeWeekly   Type = "weekly"
	TypeRising   Type = "rising"
	TypeCategory Type = "category"
	TypeEditor   Type = "editor"
)

// Spotlight is a time-boxed creator feature.
type Spotlight struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	Type         Type      `db:"type" json:"type"`
	CategorySlug string    `db:"category_slug" json:"category_slug,omitempty"`
	StartDate    time.Time `db:"start_date" json:"start_date"`
	EndDate      time.Time `db:"end_date" json:"end_date"`
	Note         string    `db:"note" json:"note,omitempty"`
}

// ActiveAt reports whether now falls inside the spotlight window.
func (s Spotlight) ActiveAt(now time.Time) bool {
	return !now.Before(s.StartDate) && !now.After(s.EndDate)
}

// Candidate is a creator eligible for the weekly spotlight.
type Candidate struct {
	UserID        int64   `db:"user_id" json:"user_id"`
	RankingScore  float64 `db:"ranking_score" json:"ranking_score"`
	MomentumScore float64 `db:"momentum_score" json:"momentum_score"`
	AvgEngagement float64 `db:"avg_engagement" json:"avg_engagement"` // (likes + saves) per public list
}

// PickStatus tracks an editor pick through its lifecycle.
type PickStatus string

const (
	PickPending  PickStatus = "pending"
	PickUsed     PickStatus = "used"
	PickRejected PickStatus = "rejected"
)

// EditorPick is a creator nominated through the editor feed.
type EditorPick struct {
	ID          int64      `db:"id" json:"id"`
	GUID        string     `db:"guid" json:"guid"`
	Username    string     `db:"username" json:"username"`
	UserID      int64      `db:"user_id" json:"user_id"`
	Note        string     `db:"note" json:"note"`
	Link        string     `db:"link" json:"link"`
	Status      PickStatus `db:"status" json:"status"`
	PublishedAt time.Time  `db:"published_at" json:"published_at"`
}

// Details is the active spotlight with everything needed to render it.
type Details struct {
	Spotlight Spotlight               `json:"spotlight"`
	Profile   domain.Profile          `json:"profile"`
	TopLists  []domain.ListSummary    `json:"top_lists"`
	Ranking   *ranking.CreatorRanking `json:"ranking,omitempty"`
}

// Store is the storage contract of the selector.
type Store interface {
	// GetActiveSpotlight returns domain.ErrNotFound when none is active.
	GetActiveSpotlight(ctx context.Context, now time.Time) (*Spotlight, error)
	// CountRecentSpotlights counts rows for userID ending after since.
	CountRecentSpotlights(ctx context.Context, userID int64, since time.Time) (int, error)
	// CreateSpotlight returns ErrActiveExists if a row is active at s.StartDate.
	CreateSpotlight(ctx context.Context, s *Spotlight) error
	ListSpotlightCandidates(ctx context.Context, activeSince time.Time) ([]Candidate, error)

	GetProfile(ctx context.Context, userID int64) (domain.Profile, error)
	ListTopLists(ctx context.Context, userID int64, limit int) ([]domain.ListSummary, error)
	GetRanking(ctx context.Context, userID int64) (*ranking.CreatorRanking, error)

	GetUserIDByUsername(ctx context.Context, username string) (int64, error)
	// SaveEditorPick reports false when the GUID was already imported.
	SaveEditorPick(ctx context.Context, p *EditorPick) (bool, error)
	ListPendingEditorPicks(ctx context.Context) ([]EditorPick, error)
	SetEditorPickStatus(ctx context.Context, id int64, status PickStatus) error
}
