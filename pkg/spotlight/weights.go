package spotlight

import (
	"sort"
	"time"
)

// Policy holds the spotlight timing rules and blend weights.
type Policy struct {
	Duration       time.Duration
	Cooldown       time.Duration
	ActivityWindow time.Duration
	TopLists       int

	RankWeight     float64
	MomentumWeight float64
	QualityWeight  float64
}

// DefaultPolicy returns 7-day spotlights, a 60-day cooldown and a
// 0.6/0.3/0.1 blend.
func DefaultPolicy() Policy {
	return Policy{
		Duration:       7 * 24 * time.Hour,
		Cooldown:       60 * 24 * time.Hour,
		ActivityWindow: 7 * 24 * time.Hour,
		TopLists:       3,
		RankWeight:     0.6,
		MomentumWeight: 0.3,
		QualityWeight:  0.1,
	}
}

// Scored is a candidate with its blended score.
type Scored struct {
	Candidate
	Score float64 `json:"score"`
}

// Rank scores the pool and orders it best first. Ties keep pool order.
func Rank(pool []Candidate, p Policy) []Scored {
	var maxRank, maxMomentum, maxQuality float64
	for _, c := range pool {
		maxRank = max(maxRank, c.RankingScore)
		maxMomentum = max(maxMomentum, c.MomentumScore)
		maxQuality = max(maxQuality, c.AvgEngagement)
	}
	maxRank = max(maxRank, 1)
	maxMomentum = max(maxMomentum, 1)
	maxQuality = max(maxQuality, 1)

	out := make([]Scored, len(pool))
	for i, c := range pool {
		score := p.RankWeight*c.RankingScore/maxRank +
			p.MomentumWeight*c.MomentumScore/maxMomentum +
			p.QualityWeight*c.AvgEngagement/maxQuality
		out[i] = Scored{Candidate: c, Score: score}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
