package featured

import (
	"context"
	"time"

	"github.com/elonfeng/vibescore/pkg/domain"
	"github.com/elonfeng/vibescore/pkg/trending"
)

// Candidate is a public, active, non-deleted list that may be featured.
type Candidate struct {
	ListID       int64  `db:"list_id" json:"list_id"`
	OwnerID      int64  `db:"owner_id" json:"owner_id"`
	Title        string `db:"title" json:"title"`
	CategoryID   int64  `db:"category_id" json:"category_id"`
	CategorySlug string `db:"category_slug" json:"category_slug"`
}

// Slot is a historical or scheduled homepage feature window. A nil EndAt
// means open-ended.
type Slot struct {
	ListID     int64      `db:"list_id" json:"list_id"`
	CategoryID int64      `db:"category_id" json:"category_id"`
	StartAt    time.Time  `db:"start_at" json:"start_at"`
	EndAt      *time.Time `db:"end_at" json:"end_at,omitempty"`
}

// Store is the storage and analytics contract of the balancer.
type Store interface {
	ListEligibleFeaturedCandidates(ctx context.Context) ([]Candidate, error)
	// GetFeaturedHistory returns slots that started after since, are
	// open-ended, or end after since.
	GetFeaturedHistory(ctx context.Context, since time.Time) ([]Slot, error)
	// GetCategoryImpactScores maps category ID to its trailing performance.
	GetCategoryImpactScores(ctx context.Context, windowDays int) (map[int64]float64, error)
	ListActiveCategories(ctx context.Context) ([]domain.Category, error)
}

// MetricsProvider is the trending metrics collaborator.
type MetricsProvider interface {
	Metrics7d(ctx context.Context, listIDs []int64) (map[int64]trending.Metrics, error)
	Score(m trending.Metrics) float64
}

// Signals are the normalised 0..100 inputs of a suggestion score.
type Signals struct {
	Trending float64 `json:"trending"`
	Velocity float64 `json:"velocity"`
	Category float64 `json:"category"`
	Growth   float64 `json:"growth"`
}

// Suggestion is one ranked feature candidate.
type Suggestion struct {
	Candidate
	Metrics          trending.Metrics `json:"metrics"`
	TrendingScore    float64          `json:"trending_score"`
	Signals          Signals          `json:"signals"`
	BaseScore        float64          `json:"base_score"`
	RotationModifier float64          `json:"rotation_modifier"`
	FinalScore       float64          `json:"final_score"`
	Reasons          []string         `json:"reasons"`
}

// Report is the output of a suggestion pass.
type Report struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Suggestions []Suggestion    `json:"suggestions"`
	Rotation    RotationInsight `json:"rotation"`
	Eligible    int             `json:"eligible"`
	Scored      int             `json:"scored"`
	Skipped     int             `json:"skipped"`
}
