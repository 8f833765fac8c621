package score

import (
	"math"
	"testing"
	"time"
)

func TestCuratorExample(t *testing.T) {
	got := Curator(CuratorInput{
		Lists:               5,
		AvgLikesPerList:     10,
		ApprovedSuggestions: 2,
		TotalSaves:          40,
	}, DefaultWeights())
	if got != 186 {
		t.Fatalf("curator = %v, want 186", got)
	}
}

func TestCuratorViralLists(t *testing.T) {
	w := DefaultWeights()
	got := Curator(CuratorInput{Lists: 1, ViralLists: 2}, w)
	if got != 70 {
		t.Fatalf("curator = %v, want 70", got)
	}
	if !w.IsViral(50) || w.IsViral(49) {
		t.Fatal("viral threshold should be 50 likes")
	}
}

func TestInfluenceAndMomentum(t *testing.T) {
	w := DefaultWeights()
	if got := Influence(InfluenceInput{UniqueExternalSaves: 10, Followers: 4, HelpfulCommentVotes: 1}, w); got != 43 {
		t.Fatalf("influence = %v, want 43", got)
	}
	if got := Momentum(MomentumInput{NewFollowers: 3, NewSavesOnLists: 2, ViralListsTouched: 1}, w); got != 22 {
		t.Fatalf("momentum = %v, want 22", got)
	}
}

func TestScoresClampAtZero(t *testing.T) {
	w := DefaultWeights()
	if got := Curator(CuratorInput{AvgLikesPerList: -100}, w); got != 0 {
		t.Fatalf("curator = %v, want 0", got)
	}
	if got := Ranking(-10, -10, -10, w); got != 0 {
		t.Fatalf("ranking = %v, want 0", got)
	}
}

func TestRankingBlend(t *testing.T) {
	got := Ranking(100, 50, 10, DefaultWeights())
	if math.Abs(got-62) > 1e-9 {
		t.Fatalf("ranking = %v, want 62", got)
	}
}

func TestDecayExample(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	last := now.AddDate(0, 0, -95)
	got := Decay(200, &last, now, DefaultDecayPolicy())
	if math.Abs(got-170) > 1e-9 {
		t.Fatalf("decay = %v, want 170", got)
	}
}

func TestDecayNeverActive(t *testing.T) {
	if got := Decay(200, nil, time.Now(), DefaultDecayPolicy()); got != 200 {
		t.Fatalf("decay = %v, want 200", got)
	}
}

func TestDecayMonotonic(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	p := DefaultDecayPolicy()
	prev := math.Inf(1)
	for days := 0; days <= 400; days++ {
		last := now.AddDate(0, 0, -days)
		got := Decay(1000, &last, now, p)
		if got > prev {
			t.Fatalf("decay increased at %d days: %v > %v", days, got, prev)
		}
		if days <= 60 && got != 1000 {
			t.Fatalf("decay applied inside grace window at %d days: %v", days, got)
		}
		prev = got
	}
}

func TestDecayPeriods(t *testing.T) {
	p := DefaultDecayPolicy()
	tests := []struct {
		days int
		want int
	}{
		{0, 0},
		{60, 0},
		{61, 0},
		{89, 0},
		{90, 1},
		{119, 1},
		{120, 2},
	}
	for _, tt := range tests {
		if got := p.DecayPeriods(tt.days); got != tt.want {
			t.Errorf("DecayPeriods(%d) = %d, want %d", tt.days, got, tt.want)
		}
	}
}
