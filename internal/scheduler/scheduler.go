package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/elonfeng/vibescore/internal/metrics"
)

var (
	// ErrLocked is returned by RunOnce when another holder owns the pass lock.
	ErrLocked = errors.New("pass already running")
	// ErrUnknownPass is returned by RunNamed for unregistered names.
	ErrUnknownPass = errors.New("unknown pass")
)

// Pass is one periodic workflow.
type Pass struct {
	Name     string
	Interval time.Duration
	// Run does the work. log carries the pass name and run_id.
	Run func(ctx context.Context, log zerolog.Logger) error
}

// Scheduler runs passes periodically under a suture supervisor.
type Scheduler struct {
	locker  Locker
	lockTTL time.Duration
	log     zerolog.Logger
	passes  []Pass
}

// New creates a new scheduler.
func New(locker Locker, lockTTL time.Duration, log zerolog.Logger) *Scheduler {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if lockTTL <= 0 {
		lockTTL = 15 * time.Minute
	}
	return &Scheduler{
		locker:  locker,
		lockTTL: lockTTL,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// Add registers a pass. Passes without an interval only run through RunOnce.
func (s *Scheduler) Add(p Pass) {
	s.passes = append(s.passes, p)
}

// Pass returns the registered pass with the given name.
func (s *Scheduler) Pass(name string) (Pass, bool) {
	for _, p := range s.passes {
		if p.Name == name {
			return p, true
		}
	}
	return Pass{}, false
}

// RunOnce runs p immediately under its lock.
func (s *Scheduler) RunOnce(ctx context.Context, p Pass) error {
	release, ok, err := s.locker.TryLock(ctx, p.Name, s.lockTTL)
	if err != nil {
		return err
	}
	if !ok {
		metrics.LockContention.WithLabelValues(p.Name).Inc()
		return ErrLocked
	}
	defer release()

	log := s.log.With().Str("pass", p.Name).Str("run_id", uuid.NewString()).Logger()
	start := time.Now()
	log.Debug().Msg("pass started")
	if err := p.Run(ctx, log); err != nil {
		log.Error().Err(err).Dur("took", time.Since(start)).Msg("pass failed")
		return err
	}
	log.Info().Dur("took", time.Since(start)).Msg("pass finished")
	return nil
}

// RunNamed runs the registered pass called name.
func (s *Scheduler) RunNamed(ctx context.Context, name string) error {
	p, ok := s.Pass(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPass, name)
	}
	return s.RunOnce(ctx, p)
}

// Serve runs every pass with an interval until ctx is cancelled. Each pass
// is a supervised service, so a panicking pass is restarted on its own.
func (s *Scheduler) Serve(ctx context.Context) error {
	sup := suture.New("vibescore", suture.Spec{
		EventHook: func(e suture.Event) {
			s.log.Warn().Fields(e.Map()).Msg(e.String())
		},
	})
	n := 0
	for _, p := range s.passes {
		if p.Interval <= 0 {
			continue
		}
		sup.Add(&passService{sched: s, pass: p})
		n++
	}
	s.log.Info().Int("passes", n).Msg("scheduler running")

	err := sup.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		s.log.Info().Msg("scheduler stopped")
		return nil
	}
	return err
}

// passService adapts a Pass to suture.Service.
type passService struct {
	sched *Scheduler
	pass  Pass
}

func (p *passService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.pass.Interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *passService) tick(ctx context.Context) {
	err := p.sched.RunOnce(ctx, p.pass)
	if errors.Is(err, ErrLocked) {
		p.sched.log.Info().Str("pass", p.pass.Name).Msg("skipped, lock held elsewhere")
	}
}

func (p *passService) String() string {
	return p.pass.Name
}
