package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/vibescore/internal/config"
	"github.com/elonfeng/vibescore/internal/logging"
	"github.com/elonfeng/vibescore/internal/scheduler"
	"github.com/elonfeng/vibescore/internal/store"
	"github.com/elonfeng/vibescore/pkg/achievement"
	"github.com/elonfeng/vibescore/pkg/featured"
	"github.com/elonfeng/vibescore/pkg/notify"
	"github.com/elonfeng/vibescore/pkg/ranking"
	"github.com/elonfeng/vibescore/pkg/score"
	"github.com/elonfeng/vibescore/pkg/server"
	"github.com/elonfeng/vibescore/pkg/spotlight"
	"github.com/elonfeng/vibescore/pkg/trending"
)

const day = 24 * time.Hour

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// app holds every wired component of one process.
type app struct {
	cfg *config.Config
	log zerolog.Logger
	db  *store.SQLiteStore

	notify       *notify.Manager
	ranking      *ranking.Engine
	trending     *trending.Engine
	achievements *achievement.Evaluator
	spotlight    *spotlight.Selector
	featured     *featured.Balancer
	sched        *scheduler.Scheduler

	closers []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	db.SetViralThreshold(cfg.Ranking.ViralLikeThreshold)
	a := &app{cfg: cfg, log: log, db: db, closers: []func() error{db.Close}}

	notifiers, err := a.buildNotifiers()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.notify = notify.NewManager(notifiers, notify.BreakerConfig{
		FailureThreshold: cfg.Notify.FailureThreshold,
		OpenTimeout:      cfg.Notify.ParseOpenTimeout(),
	}, log)

	rcfg := ranking.DefaultConfig()
	rcfg.Workers = cfg.Ranking.Workers
	rcfg.MomentumWindow = time.Duration(cfg.Ranking.MomentumDays) * day
	rcfg.Weights.ViralLikeThreshold = cfg.Ranking.ViralLikeThreshold
	rcfg.Decay = score.DecayPolicy{
		GraceDays:  cfg.Ranking.DecayGraceDays,
		PeriodDays: cfg.Ranking.DecayPeriodDays,
		Factor:     cfg.Ranking.DecayFactor,
	}
	a.ranking = ranking.NewEngine(db, rcfg, log)
	a.trending = trending.NewEngine(db, trending.DefaultWeights())
	a.achievements = achievement.NewEvaluator(db, a.notify, achievement.DefaultThresholds(), log)

	sp := spotlight.DefaultPolicy()
	sp.Duration = time.Duration(cfg.Spotlight.DurationDays) * day
	sp.Cooldown = time.Duration(cfg.Spotlight.CooldownDays) * day
	sp.ActivityWindow = time.Duration(cfg.Spotlight.ActivityDays) * day
	sp.TopLists = cfg.Spotlight.TopLists
	a.spotlight = spotlight.NewSelector(db, a.notify, sp, log)

	fp := featured.DefaultPolicy()
	fp.CandidateCap = cfg.Featured.CandidateCap
	fp.TopN = cfg.Featured.TopN
	fp.RefeatureAfter = time.Duration(cfg.Featured.RefeatureDays) * day
	fp.RotationWindow = time.Duration(cfg.Featured.RotationDays) * day
	fp.ImpactDays = cfg.Featured.ImpactDays
	fp.ModifierBound = cfg.Featured.RotationBound
	a.featured = featured.NewBalancer(db, a.trending, fp, log)

	if err := a.achievements.Seed(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("seed achievements: %w", err)
	}

	a.sched = scheduler.New(a.buildLocker(), cfg.Redis.ParseLockTTL(), log)
	a.registerPasses()
	return a, nil
}

func (a *app) buildNotifiers() ([]notify.Notifier, error) {
	n := a.cfg.Notify
	var notifiers []notify.Notifier

	if n.Slack.Enabled && n.Slack.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlack(n.Slack.WebhookURL))
	}
	if n.Webhook.Enabled && n.Webhook.URL != "" {
		notifiers = append(notifiers, notify.NewWebhook(n.Webhook.URL, n.Webhook.Secret))
	}
	if n.NATS.Enabled && n.NATS.URL != "" {
		nc, err := notify.NewNATS(n.NATS.URL, n.NATS.SubjectPrefix)
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		a.closers = append(a.closers, nc.Close)
		notifiers = append(notifiers, nc)
	}
	return notifiers, nil
}

func (a *app) buildLocker() scheduler.Locker {
	if a.cfg.Redis.Addr == "" {
		return scheduler.NewLocalLocker()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	a.closers = append(a.closers, client.Close)
	a.log.Info().Str("addr", a.cfg.Redis.Addr).Msg("using redis run lock")
	return scheduler.NewRedisLocker(client, "")
}

func (a *app) registerPasses() {
	s := a.cfg.Schedule
	a.sched.Add(scheduler.RankingPass(a.ranking, a.notify, s.ParseRankingInterval()))
	a.sched.Add(scheduler.AchievementPass(a.achievements, a.db, s.ParseAchievementInterval()+time.Hour, s.ParseAchievementInterval()))
	a.sched.Add(scheduler.SpotlightPass(a.spotlight, s.ParseSpotlightInterval()))
	a.sched.Add(scheduler.FeaturedPass(a.featured, s.ParseFeaturedInterval()))

	var interval time.Duration
	if a.cfg.Spotlight.EditorFeedURL != "" {
		interval = s.ParseEditorPickInterval()
	}
	a.sched.Add(scheduler.EditorPickPass(a.spotlight, spotlight.NewFeed(a.cfg.Spotlight.EditorFeedURL), interval))
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn().Err(err).Msg("close")
		}
	}
}

func (a *app) serverDeps() server.Deps {
	return server.Deps{
		DB:           a.db,
		Leaderboards: a.ranking,
		Achievements: a.achievements,
		Spotlights:   a.spotlight,
		Featured:     a.featured,
		Passes:       a.sched,
	}
}

func withApp(ctx context.Context, fn func(*app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runRank(ctx context.Context) error {
	return withApp(ctx, func(a *app) error {
		if err := a.sched.RunNamed(ctx, scheduler.PassRanking); err != nil {
			return err
		}
		return printLeaderboard(ctx, a, ranking.ScopeGlobal, "", 20)
	})
}

func runLeaderboard(ctx context.Context, scope ranking.Scope, category string, limit int) error {
	return withApp(ctx, func(a *app) error {
		return printLeaderboard(ctx, a, scope, category, limit)
	})
}

func printLeaderboard(ctx context.Context, a *app, scope ranking.Scope, category string, limit int) error {
	entries, err := a.ranking.Leaderboard(ctx, scope, category, limit)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Println("no rankings yet (try: vibescore rank)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tMOVE\tUSER\tSCORE\tCURATOR\tINFLUENCE\tMOMENTUM")
	for _, e := range entries {
		r := e.Ranking
		fmt.Fprintf(w, "%d\t%s\t%d\t%.1f\t%.1f\t%.1f\t%.1f\n",
			e.Rank, moveLabel(e), r.UserID, r.RankingScore, r.CuratorScore, r.InfluenceScore, r.MomentumScore)
	}
	return w.Flush()
}

func moveLabel(e ranking.Entry) string {
	switch e.Movement {
	case ranking.MovementUp:
		return fmt.Sprintf("+%d", e.Delta)
	case ranking.MovementDown:
		return fmt.Sprintf("%d", e.Delta)
	case ranking.MovementNew:
		return "new"
	}
	return "="
}

func runAchievementCheck(ctx context.Context, userID int64) error {
	return withApp(ctx, func(a *app) error {
		unlocks, err := a.achievements.Check(ctx, userID)
		if err != nil && len(unlocks) == 0 {
			return err
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "some unlocks failed: %v\n", err)
		}
		if jsonOutput {
			return printJSON(unlocks)
		}
		if len(unlocks) == 0 {
			fmt.Println("nothing new unlocked")
			return nil
		}
		for _, u := range unlocks {
			fmt.Printf("unlocked %s (%s) - %s\n", u.Code, u.Tier, u.Title)
		}
		return nil
	})
}

func runAchievementList(ctx context.Context, userID int64) error {
	return withApp(ctx, func(a *app) error {
		progress, err := a.achievements.Progress(ctx, userID)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(progress)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\tCODE\tTIER\tTITLE")
		for _, p := range progress {
			mark := " "
			if p.Unlocked {
				mark = "x"
			}
			fmt.Fprintf(w, "[%s]\t%s\t%s\t%s\n", mark, p.Code, p.Tier, p.Title)
		}
		return w.Flush()
	})
}

func runSpotlightCurrent(ctx context.Context) error {
	return withApp(ctx, func(a *app) error {
		d, err := a.spotlight.CurrentWithDetails(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(d)
		}
		if d == nil {
			fmt.Println("no spotlight (no eligible creators)")
			return nil
		}
		printSpotlight(d)
		return nil
	})
}

func printSpotlight(d *spotlight.Details) {
	sp := d.Spotlight
	fmt.Printf("@%s (%s spotlight) %s .. %s\n", d.Profile.Username, sp.Type,
		sp.StartDate.Format(time.DateOnly), sp.EndDate.Format(time.DateOnly))
	fmt.Printf("  followers: %d  public lists: %d\n", d.Profile.Followers, d.Profile.ListCount)
	if d.Ranking != nil {
		fmt.Printf("  global rank: #%d (score %.1f)\n", d.Ranking.GlobalRank, d.Ranking.RankingScore)
	}
	for _, l := range d.TopLists {
		fmt.Printf("  - %s (%d likes, %d saves)\n", l.Title, l.LikeCount, l.SaveCount)
	}
	if sp.Note != "" {
		fmt.Printf("  note: %s\n", sp.Note)
	}
}

func runSpotlightSelect(ctx context.Context) error {
	return withApp(ctx, func(a *app) error {
		sp, err := a.spotlight.SelectAndCreateWeekly(ctx)
		switch {
		case errors.Is(err, spotlight.ErrActiveExists):
			fmt.Println("a spotlight is already active")
			return nil
		case err != nil:
			return err
		case sp == nil:
			fmt.Println("no eligible creators")
			return nil
		}
		if jsonOutput {
			return printJSON(sp)
		}
		fmt.Printf("spotlight started for user %d until %s\n", sp.UserID, sp.EndDate.Format(time.DateOnly))
		return nil
	})
}

func runSpotlightEligible(ctx context.Context) error {
	return withApp(ctx, func(a *app) error {
		pool, err := a.spotlight.Eligible(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(pool)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "USER\tSCORE\tRANKING\tMOMENTUM\tENGAGEMENT")
		for _, c := range pool {
			fmt.Fprintf(w, "%d\t%.3f\t%.1f\t%.1f\t%.1f\n", c.UserID, c.Score, c.RankingScore, c.MomentumScore, c.AvgEngagement)
		}
		return w.Flush()
	})
}

func runSpotlightHistory(ctx context.Context) error {
	return withApp(ctx, func(a *app) error {
		rows, err := a.db.ListSpotlights(ctx, 20)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(rows)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSER\tTYPE\tSTART\tEND")
		for _, sp := range rows {
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", sp.ID, sp.UserID, sp.Type,
				sp.StartDate.Format(time.DateOnly), sp.EndDate.Format(time.DateOnly))
		}
		return w.Flush()
	})
}

func runFeatured(ctx context.Context) error {
	return withApp(ctx, func(a *app) error {
		report, err := a.featured.Suggestions(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(report)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "LIST\tCATEGORY\tFINAL\tBASE\tROTATION\tREASONS")
		for _, s := range report.Suggestions {
			fmt.Fprintf(w, "%d\t%s\t%.1f\t%.1f\t%+.2f\t%s\n",
				s.ListID, s.CategorySlug, s.FinalScore, s.BaseScore, s.RotationModifier, strings.Join(s.Reasons, "; "))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if report.Rotation.Justification != "" {
			fmt.Printf("\n%s\n", report.Rotation.Justification)
		}
		return nil
	})
}

func runEditorPicks(ctx context.Context, url string) error {
	return withApp(ctx, func(a *app) error {
		if url == "" {
			url = a.cfg.Spotlight.EditorFeedURL
		}
		if url == "" {
			return fmt.Errorf("no editor feed configured (set spotlight.editor_feed_url or --url)")
		}
		report, err := a.spotlight.ImportEditorPicks(ctx, spotlight.NewFeed(url))
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(report)
		}
		fmt.Printf("fetched %d, imported %d, duplicates %d, unknown users %d\n",
			report.Fetched, report.Imported, report.Duplicates, report.UnknownUsers)
		return nil
	})
}

func runSeed(ctx context.Context, users int, seed uint64) error {
	return withApp(ctx, func(a *app) error {
		if err := a.db.SeedDemo(ctx, users, time.Now().UTC(), seed); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "seeded %d users into %s\n", users, a.cfg.Database.Path)
		return nil
	})
}

func runServe(ctx context.Context, port int) error {
	return withApp(ctx, func(a *app) error {
		if port == 0 {
			port = a.cfg.Server.Port
		}
		return server.New(a.serverDeps(), port, a.log).ListenAndServe(ctx)
	})
}

func runDaemon(ctx context.Context, port int) error {
	return withApp(ctx, func(a *app) error {
		if port == 0 {
			port = a.cfg.Server.Port
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return a.sched.Serve(gctx) })
		g.Go(func() error { return server.New(a.serverDeps(), port, a.log).ListenAndServe(gctx) })
		err := g.Wait()
		a.log.Info().Msg("shutting down")
		return err
	})
}
