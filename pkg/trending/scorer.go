package trending

import "math"

// Zone thresholds on the trending score.
const (
	Hot    = 300.0
	Warm   = 150.0
	Rising = 50.0
)

// Zone is a coarse classification of a trending score.
type Zone string

const (
	ZoneHot    Zone = "hot"
	ZoneWarm   Zone = "warm"
	ZoneRising Zone = "rising"
	ZoneCold   Zone = "cold"
)

// Weights are the coefficients of the trending score.
type Weights struct {
	Saves       float64 `yaml:"saves"`
	Likes       float64 `yaml:"likes"`
	Velocity    float64 `yaml:"velocity"`
	VelocityCap float64 `yaml:"velocity_cap"`
}

// DefaultWeights returns 10·S7 + 5·L7 + 2·min(velocity, 100).
func DefaultWeights() Weights {
	return Weights{Saves: 10, Likes: 5, Velocity: 2, VelocityCap: 100}
}

// Metrics is the 7-day engagement bundle of one list.
type Metrics struct {
	ListID       int64   `json:"list_id"`
	S7           int     `json:"s7"`
	L7           int     `json:"l7"`
	SPrev7       int     `json:"s_prev7"`
	SaveVelocity float64 `json:"save_velocity"`
}

// SaveVelocity is the percentage growth of saves week over week, floored
// at zero. A list with no saves in the previous week is measured against 1.
func SaveVelocity(s7, sPrev7 int) float64 {
	base := math.Max(float64(sPrev7), 1)
	return math.Max(0, float64(s7-sPrev7)/base*100)
}

// Score computes the trending score of m.
func Score(m Metrics, w Weights) float64 {
	v := m.SaveVelocity
	if w.VelocityCap > 0 && v > w.VelocityCap {
		v = w.VelocityCap
	}
	return w.Saves*float64(m.S7) + w.Likes*float64(m.L7) + w.Velocity*v
}

// ZoneOf classifies a trending score.
func ZoneOf(score float64) Zone {
	switch {
	case score >= Hot:
		return ZoneHot
	case score >= Warm:
		return ZoneWarm
	case score >= Rising:
		return ZoneRising
	}
	return ZoneCold
}
