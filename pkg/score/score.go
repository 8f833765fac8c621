package score

import (
	"math"
	"time"
)

// Weights holds the coefficients used by the creator score formulas.
// It is passed by value so a batch run never observes a change mid-flight.
type Weights struct {
	// Curator
	ListWeight       float64 `yaml:"list_weight"`
	AvgLikesWeight   float64 `yaml:"avg_likes_weight"`
	SuggestionWeight float64 `yaml:"suggestion_weight"`
	SaveWeight       float64 `yaml:"save_weight"`
	ViralListWeight  float64 `yaml:"viral_list_weight"`

	// Influence
	ExternalSaveWeight float64 `yaml:"external_save_weight"`
	FollowerWeight     float64 `yaml:"follower_weight"`
	HelpfulVoteWeight  float64 `yaml:"helpful_vote_weight"`

	// Momentum (30-day window)
	NewFollowerWeight float64 `yaml:"new_follower_weight"`
	NewSaveWeight     float64 `yaml:"new_save_weight"`
	ViralTouchWeight  float64 `yaml:"viral_touch_weight"`

	// Blend into the ranking score
	CuratorShare   float64 `yaml:"curator_share"`
	InfluenceShare float64 `yaml:"influence_share"`
	MomentumShare  float64 `yaml:"momentum_share"`

	// ViralLikeThreshold is the like count at which a list counts as viral.
	ViralLikeThreshold int `yaml:"viral_like_threshold"`
}

// DefaultWeights returns the production coefficients.
func DefaultWeights() Weights {
	return Weights{
		ListWeight:         10,
		AvgLikesWeight:     5,
		SuggestionWeight:   3,
		SaveWeight:         2,
		ViralListWeight:    30,
		ExternalSaveWeight: 3,
		FollowerWeight:     2,
		HelpfulVoteWeight:  5,
		NewFollowerWeight:  2,
		NewSaveWeight:      3,
		ViralTouchWeight:   10,
		CuratorShare:       0.4,
		InfluenceShare:     0.4,
		MomentumShare:      0.2,
		ViralLikeThreshold: 50,
	}
}

// IsViral reports whether a list with the given like count is viral.
func (w Weights) IsViral(likeCount int) bool {
	return likeCount >= w.ViralLikeThreshold
}

// CuratorInput are the content-quality aggregates of a creator.
type CuratorInput struct {
	Lists               int
	AvgLikesPerList     float64
	ApprovedSuggestions int
	TotalSaves          int
	ViralLists          int
}

// InfluenceInput are the reach aggregates of a creator.
type InfluenceInput struct {
	UniqueExternalSaves int // saves by users other than the creator
	Followers           int
	HelpfulCommentVotes int
}

// MomentumInput are the 30-day deltas of a creator.
type MomentumInput struct {
	NewFollowers      int
	NewSavesOnLists   int
	ViralListsTouched int
}

// Curator computes the CuratorScore.
func Curator(in CuratorInput, w Weights) float64 {
	s := float64(in.Lists)*w.ListWeight +
		in.AvgLikesPerList*w.AvgLikesWeight +
		float64(in.ApprovedSuggestions)*w.SuggestionWeight +
		float64(in.TotalSaves)*w.SaveWeight +
		float64(in.ViralLists)*w.ViralListWeight
	return clamp(s)
}

// Influence computes the InfluenceScore.
func Influence(in InfluenceInput, w Weights) float64 {
	s := float64(in.UniqueExternalSaves)*w.ExternalSaveWeight +
		float64(in.Followers)*w.FollowerWeight +
		float64(in.HelpfulCommentVotes)*w.HelpfulVoteWeight
	return clamp(s)
}

// Momentum computes the MomentumScore over the trailing 30 days.
func Momentum(in MomentumInput, w Weights) float64 {
	s := float64(in.NewFollowers)*w.NewFollowerWeight +
		float64(in.NewSavesOnLists)*w.NewSaveWeight +
		float64(in.ViralListsTouched)*w.ViralTouchWeight
	return clamp(s)
}

// Ranking blends the three creator scores into the raw ranking score.
func Ranking(curator, influence, momentum float64, w Weights) float64 {
	return clamp(w.CuratorShare*curator + w.InfluenceShare*influence + w.MomentumShare*momentum)
}

// DecayPolicy controls how inactivity erodes a ranking score.
type DecayPolicy struct {
	GraceDays  int     `yaml:"grace_days"`
	PeriodDays int     `yaml:"period_days"`
	Factor     float64 `yaml:"factor"`
}

// DefaultDecayPolicy returns 60 days of grace, then ×0.85 per 30 days.
func DefaultDecayPolicy() DecayPolicy {
	return DecayPolicy{GraceDays: 60, PeriodDays: 30, Factor: 0.85}
}

// InactiveDays returns the whole days elapsed since lastActivity.
func InactiveDays(lastActivity, now time.Time) int {
	if now.Before(lastActivity) {
		return 0
	}
	return int(now.Sub(lastActivity).Hours() / 24)
}

// DecayPeriods returns how many full decay periods apply after the grace window.
func (p DecayPolicy) DecayPeriods(inactiveDays int) int {
	if inactiveDays <= p.GraceDays || p.PeriodDays <= 0 {
		return 0
	}
	return (inactiveDays - p.GraceDays) / p.PeriodDays
}

// Decay applies the inactivity decay to raw. A nil lastActivity means the
// creator was never active and is left untouched.
func Decay(raw float64, lastActivity *time.Time, now time.Time, p DecayPolicy) float64 {
	if lastActivity == nil {
		return clamp(raw)
	}
	periods := p.DecayPeriods(InactiveDays(*lastActivity, now))
	if periods == 0 {
		return clamp(raw)
	}
	return clamp(raw * math.Pow(p.Factor, float64(periods)))
}

func clamp(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
