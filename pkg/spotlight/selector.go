package spotlight

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/elonfeng/vibescore/internal/metrics"
	"github.com/elonfeng/vibescore/pkg/domain"
	"github.com/elonfeng/vibescore/pkg/notify"
)

// Selector picks and serves the active creator spotlight.
type Selector struct {
	store  Store
	pub    notify.Publisher
	policy Policy
	log    zerolog.Logger
	now    func() time.Time
}

// NewSelector creates a new spotlight selector.
func NewSelector(s Store, pub notify.Publisher, p Policy, log zerolog.Logger) *Selector {
	if pub == nil {
		pub = notify.Nop{}
	}
	if p.Duration <= 0 {
		p = DefaultPolicy()
	}
	return &Selector{
		store:  s,
		pub:    pub,
		policy: p,
		log:    log.With().Str("component", "spotlight").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Current returns the active spotlight or nil.
func (s *Selector) Current(ctx context.Context) (*Spotlight, error) {
	sp, err := s.store.GetActiveSpotlight(ctx, s.now())
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active spotlight: %w", err)
	}
	return sp, nil
}

// CurrentWithDetails returns the active spotlight with the creator's profile
// and top lists, selecting a new one first when none is active. It returns
// nil when nobody is eligible.
func (s *Selector) CurrentWithDetails(ctx context.Context) (*Details, error) {
	sp, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	if sp == nil {
		sp, err = s.SelectAndCreateWeekly(ctx)
		if errors.Is(err, ErrActiveExists) {
			// Another scheduler won the race; serve its row.
			sp, err = s.Current(ctx)
		}
		if err != nil {
			return nil, err
		}
		if sp == nil {
			return nil, nil
		}
	}
	return s.details(ctx, sp)
}

func (s *Selector) details(ctx context.Context, sp *Spotlight) (*Details, error) {
	profile, err := s.store.GetProfile(ctx, sp.UserID)
	if err != nil {
		return nil, fmt.Errorf("profile of user %d: %w", sp.UserID, err)
	}
	lists, err := s.store.ListTopLists(ctx, sp.UserID, s.policy.TopLists)
	if err != nil {
		return nil, fmt.Errorf("top lists of user %d: %w", sp.UserID, err)
	}
	if len(lists) > s.policy.TopLists {
		lists = lists[:s.policy.TopLists]
	}

	d := &Details{Spotlight: *sp, Profile: profile, TopLists: lists}
	r, err := s.store.GetRanking(ctx, sp.UserID)
	switch {
	case err == nil:
		d.Ranking = r
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("ranking of user %d: %w", sp.UserID, err)
	}
	return d, nil
}

// SelectAndCreateWeekly starts a new spotlight when none is active. A pending
// editor pick that is off cooldown wins over the weighted selection. It
// returns nil, nil when the pool is empty and ErrActiveExists when a
// spotlight is already running.
func (s *Selector) SelectAndCreateWeekly(ctx context.Context) (*Spotlight, error) {
	start := time.Now()
	sp, err := s.selectAndCreate(ctx)
	if errors.Is(err, ErrActiveExists) {
		metrics.ObservePass("spotlight", start, nil)
	} else {
		metrics.ObservePass("spotlight", start, err)
	}
	return sp, err
}

func (s *Selector) selectAndCreate(ctx context.Context) (*Spotlight, error) {
	now := s.now()
	active, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrActiveExists
	}

	sp, err := s.fromEditorPick(ctx, now)
	if err != nil || sp != nil {
		return sp, err
	}

	winner, err := s.pickWeekly(ctx, now)
	if err != nil || winner == nil {
		return nil, err
	}

	sp = &Spotlight{
		UserID:    winner.UserID,
		Type:      TypeWeekly,
		StartDate: now,
		EndDate:   now.Add(s.policy.Duration),
		Note:      fmt.Sprintf("score %.3f", winner.Score),
	}
	if err := s.create(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

// Eligible returns the scored candidate pool, best first.
func (s *Selector) Eligible(ctx context.Context) ([]Scored, error) {
	return s.eligible(ctx, s.now())
}

func (s *Selector) eligible(ctx context.Context, now time.Time) ([]Scored, error) {
	pool, err := s.store.ListSpotlightCandidates(ctx, now.Add(-s.policy.ActivityWindow))
	if err != nil {
		return nil, fmt.Errorf("list spotlight candidates: %w", err)
	}

	kept := pool[:0]
	for _, c := range pool {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := s.offCooldown(ctx, c.UserID, now)
		if err != nil {
			s.log.Warn().Err(err).Int64("user_id", c.UserID).Str("stage", "cooldown").Msg("skipping candidate")
			continue
		}
		if ok {
			kept = append(kept, c)
		}
	}
	metrics.SpotlightPoolSize.Set(float64(len(kept)))
	return Rank(kept, s.policy), nil
}

func (s *Selector) pickWeekly(ctx context.Context, now time.Time) (*Scored, error) {
	ranked, err := s.eligible(ctx, now)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		s.log.Info().Msg("no eligible creator for spotlight")
		return nil, nil
	}
	return &ranked[0], nil
}

func (s *Selector) offCooldown(ctx context.Context, userID int64, now time.Time) (bool, error) {
	n, err := s.store.CountRecentSpotlights(ctx, userID, now.Add(-s.policy.Cooldown))
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

func (s *Selector) fromEditorPick(ctx context.Context, now time.Time) (*Spotlight, error) {
	picks, err := s.store.ListPendingEditorPicks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list editor picks: %w", err)
	}
	for _, p := range picks {
		ok, err := s.offCooldown(ctx, p.UserID, now)
		if err != nil {
			s.log.Warn().Err(err).Int64("user_id", p.UserID).Str("stage", "cooldown").Msg("skipping editor pick")
			continue
		}
		if !ok {
			continue
		}

		sp := &Spotlight{
			UserID:    p.UserID,
			Type:      TypeEditor,
			StartDate: now,
			EndDate:   now.Add(s.policy.Duration),
			Note:      p.Note,
		}
		if err := s.create(ctx, sp); err != nil {
			return nil, err
		}
		if err := s.store.SetEditorPickStatus(ctx, p.ID, PickUsed); err != nil {
			s.log.Error().Err(err).Int64("pick_id", p.ID).Msg("mark editor pick used")
		}
		return sp, nil
	}
	return nil, nil
}

func (s *Selector) create(ctx context.Context, sp *Spotlight) error {
	if err := s.store.CreateSpotlight(ctx, sp); err != nil {
		if errors.Is(err, ErrActiveExists) {
			return err
		}
		return fmt.Errorf("create spotlight for user %d: %w", sp.UserID, err)
	}
	metrics.SpotlightSelections.WithLabelValues(string(sp.Type)).Inc()
	s.log.Info().Int64("user_id", sp.UserID).Str("type", string(sp.Type)).Time("end", sp.EndDate).Msg("spotlight started")

	err := s.pub.Publish(ctx, &notify.Event{
		Kind:   notify.KindSpotlightStarted,
		UserID: sp.UserID,
		Title:  "New creator spotlight",
		Body:   fmt.Sprintf("User %d is in the %s spotlight until %s.", sp.UserID, sp.Type, sp.EndDate.Format("Jan 2")),
		Fields: map[string]string{
			"type":    string(sp.Type),
			"user_id": strconv.FormatInt(sp.UserID, 10),
		},
		At: sp.StartDate,
	})
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", sp.UserID).Msg("spotlight notification failed")
	}
	return nil
}
