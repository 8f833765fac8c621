package ranking

import (
	"context"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/elonfeng/vibescore/pkg/domain"
)

// Aggregates are the raw per-creator counters fetched by storage.
type Aggregates struct {
	UserID              int64
	ListCount           int // public, active lists
	AvgLikes            float64
	ApprovedSuggestions int
	TotalSaves          int
	ViralLists          int
	UniqueExternalSaves int
	Followers           int
	HelpfulVotes        int

	RecentFollowers    int // trailing momentum window
	RecentSaves        int
	RecentViralTouches int

	LastActivityAt *time.Time
}

// CreatorRanking is the persisted ranking snapshot of one creator.
type CreatorRanking struct {
	UserID             int64         `json:"user_id"`
	CuratorScore       float64       `json:"curator_score"`
	InfluenceScore     float64       `json:"influence_score"`
	MomentumScore      float64       `json:"momentum_score"`
	RankingScore       float64       `json:"ranking_score"`
	GlobalRank         int           `json:"global_rank"`
	PreviousGlobalRank int           `json:"previous_global_rank"`
	MonthlyRank        int           `json:"monthly_rank"`
	MonthlyPeriod      string        `json:"monthly_period"`
	CategoryRanks      CategoryRanks `json:"category_ranks"`
	LastActivityAt     *time.Time    `json:"last_activity_at,omitempty"`
	ComputedAt         time.Time     `json:"computed_at"`
}

// CategoryRanks maps a category slug to the creator's rank inside it.
// The zero value is empty and ready to use.
type CategoryRanks struct {
	ranks map[string]int
}

// Set records the rank for slug.
func (c *CategoryRanks) Set(slug string, rank int) {
	if c.ranks == nil {
		c.ranks = make(map[string]int)
	}
	c.ranks[slug] = rank
}

// Get returns the rank for slug.
func (c CategoryRanks) Get(slug string) (int, bool) {
	r, ok := c.ranks[slug]
	return r, ok
}

// Len returns the number of categories the creator is ranked in.
func (c CategoryRanks) Len() int { return len(c.ranks) }

// Slugs returns the ranked category slugs in lexical order.
func (c CategoryRanks) Slugs() []string {
	out := make([]string, 0, len(c.ranks))
	for s := range c.ranks {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (c CategoryRanks) MarshalJSON() ([]byte, error) {
	if c.ranks == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.ranks)
}

func (c *CategoryRanks) UnmarshalJSON(data []byte) error {
	var m map[string]int
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	c.ranks = m
	return nil
}

// Store is the storage contract of the ranking engine.
type Store interface {
	ListCreatorIDs(ctx context.Context) ([]int64, error)
	GetCreatorAggregates(ctx context.Context, userID int64, windowStart time.Time) (Aggregates, error)
	GetPreviousGlobalRank(ctx context.Context, userID int64) (int, error)
	ListActiveCategories(ctx context.Context) ([]domain.Category, error)
	ListCreatorsWithPublicListsInCategory(ctx context.Context, categoryID int64) ([]int64, error)
	PersistRanking(ctx context.Context, r *CreatorRanking) error
	ListRankings(ctx context.Context) ([]CreatorRanking, error)
}
