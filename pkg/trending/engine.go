package trending

import (
	"context"
	"fmt"
	"time"
)

// Kind is the type of an engagement event.
type Kind string

const (
	KindSave Kind = "save"
	KindLike Kind = "like"
)

// Engagement is one save or like received by a list.
type Engagement struct {
	ListID int64     `db:"list_id"`
	Kind   Kind      `db:"kind"`
	At     time.Time `db:"created_at"`
}

// Store supplies raw engagement timestamps.
type Store interface {
	ListEngagement(ctx context.Context, listIDs []int64, since time.Time) ([]Engagement, error)
}

// Engine turns raw per-list engagement into 7-day metric bundles and
// trending scores.
type Engine struct {
	store   Store
	weights Weights
	now     func() time.Time
}

// NewEngine creates a new trending metrics engine.
func NewEngine(s Store, w Weights) *Engine {
	if w == (Weights{}) {
		w = DefaultWeights()
	}
	return &Engine{
		store:   s,
		weights: w,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

const week = 7 * 24 * time.Hour

// Metrics7d returns a bundle for every requested list. Lists without
// engagement get a zero bundle.
func (e *Engine) Metrics7d(ctx context.Context, listIDs []int64) (map[int64]Metrics, error) {
	out := make(map[int64]Metrics, len(listIDs))
	if len(listIDs) == 0 {
		return out, nil
	}

	now := e.now()
	events, err := e.store.ListEngagement(ctx, listIDs, now.Add(-2*week))
	if err != nil {
		return nil, fmt.Errorf("list engagement: %w", err)
	}

	for _, id := range listIDs {
		out[id] = Metrics{ListID: id}
	}
	cut := now.Add(-week)
	for _, ev := range events {
		m, ok := out[ev.ListID]
		if !ok || ev.At.After(now) {
			continue
		}
		recent := !ev.At.Before(cut)
		switch {
		case ev.Kind == KindSave && recent:
			m.S7++
		case ev.Kind == KindSave:
			m.SPrev7++
		case ev.Kind == KindLike && recent:
			m.L7++
		}
		out[ev.ListID] = m
	}

	for id, m := range out {
		m.SaveVelocity = SaveVelocity(m.S7, m.SPrev7)
		out[id] = m
	}
	return out, nil
}

// Score computes the trending score of m with the engine's weights.
func (e *Engine) Score(m Metrics) float64 {
	return Score(m, e.weights)
}
