package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/elonfeng/vibescore/internal/metrics"
)

// Event kinds published by the scoring passes.
const (
	KindAchievementUnlocked = "achievement.unlocked"
	KindSpotlightStarted    = "spotlight.started"
	KindRankingCompleted    = "ranking.completed"
)

// Event is the payload delivered to every notifier.
type Event struct {
	Kind   string            `json:"kind"`
	UserID int64             `json:"user_id,omitempty"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	URL    string            `json:"url,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
	At     time.Time         `json:"at"`
}

// Notifier delivers events to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, e *Event) error
}

// Publisher is what the scoring passes depend on.
type Publisher interface {
	Publish(ctx context.Context, e *Event) error
}

// BreakerConfig controls the per-notifier circuit breaker.
type BreakerConfig struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// DefaultBreakerConfig trips after 5 consecutive failures and probes again
// after 30 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, OpenTimeout: 30 * time.Second}
}

type guarded struct {
	Notifier
	cb *gobreaker.CircuitBreaker[struct{}]
}

// Manager fans events out to all registered notifiers. A notifier that keeps
// failing is short-circuited until its breaker half-opens.
type Manager struct {
	notifiers []guarded
	log       zerolog.Logger
}

// NewManager creates a new notification manager.
func NewManager(notifiers []Notifier, cfg BreakerConfig, log zerolog.Logger) *Manager {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	m := &Manager{log: log.With().Str("component", "notify").Logger()}
	for _, n := range notifiers {
		threshold := cfg.FailureThreshold
		cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:    n.Name(),
			Timeout: cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				m.log.Warn().Str("notifier", name).Str("from", from.String()).Str("to", to.String()).Msg("breaker state change")
			},
		})
		m.notifiers = append(m.notifiers, guarded{Notifier: n, cb: cb})
	}
	return m
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Publish sends e to all registered notifiers and joins their errors.
func (m *Manager) Publish(ctx context.Context, e *Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	var errs []error
	for _, n := range m.notifiers {
		_, err := n.cb.Execute(func() (struct{}, error) {
			return struct{}{}, n.Send(ctx, e)
		})
		if err != nil {
			metrics.NotifyFailures.WithLabelValues(n.Name()).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// State reports the breaker state of each notifier.
func (m *Manager) State() map[string]string {
	out := make(map[string]string, len(m.notifiers))
	for _, n := range m.notifiers {
		out[n.Name()] = n.cb.State().String()
	}
	return out
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, *Event) error { return nil }
