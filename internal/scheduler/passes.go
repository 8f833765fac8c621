package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/elonfeng/vibescore/pkg/achievement"
	"github.com/elonfeng/vibescore/pkg/featured"
	"github.com/elonfeng/vibescore/pkg/notify"
	"github.com/elonfeng/vibescore/pkg/ranking"
	"github.com/elonfeng/vibescore/pkg/spotlight"
)

// Pass names.
const (
	PassRanking      = "ranking"
	PassAchievements = "achievements"
	PassSpotlight    = "spotlight"
	PassFeatured     = "featured"
	PassEditorPicks  = "editor-picks"
)

// RankingPass recomputes rankings, retries failed writes once and announces
// the result.
func RankingPass(e *ranking.Engine, pub notify.Publisher, interval time.Duration) Pass {
	if pub == nil {
		pub = notify.Nop{}
	}
	return Pass{
		Name:     PassRanking,
		Interval: interval,
		Run: func(ctx context.Context, log zerolog.Logger) error {
			report, err := e.Run(ctx)
			if err != nil {
				return err
			}
			if len(report.Failed) > 0 {
				still, err := e.Persist(ctx, report.Failed)
				if err != nil {
					return err
				}
				report.Persisted += len(report.Failed) - len(still)
				report.Failed = still
				for _, r := range still {
					log.Error().Int64("user_id", r.UserID).Str("stage", "persist_retry").Msg("ranking row not written")
				}
			}
			log.Info().Int("ranked", report.Ranked).Int("persisted", report.Persisted).Msg("rankings updated")

			err = pub.Publish(ctx, &notify.Event{
				Kind:  notify.KindRankingCompleted,
				Title: "Creator rankings updated",
				Body:  fmt.Sprintf("%d creators ranked for %s", report.Ranked, report.Period),
				Fields: map[string]string{
					"ranked":    strconv.Itoa(report.Ranked),
					"persisted": strconv.Itoa(report.Persisted),
					"failed":    strconv.Itoa(len(report.Failed)),
				},
				At: report.RunAt,
			})
			if err != nil {
				log.Warn().Err(err).Msg("ranking notification failed")
			}
			return nil
		},
	}
}

// ActiveUsers lists users with recent activity.
type ActiveUsers interface {
	ListActiveUserIDs(ctx context.Context, since time.Time) ([]int64, error)
}

// AchievementPass re-checks every user active within lookback. It backs up
// the event-driven checks the product API triggers.
func AchievementPass(ev *achievement.Evaluator, users ActiveUsers, lookback, interval time.Duration) Pass {
	return Pass{
		Name:     PassAchievements,
		Interval: interval,
		Run: func(ctx context.Context, log zerolog.Logger) error {
			ids, err := users.ListActiveUserIDs(ctx, time.Now().UTC().Add(-lookback))
			if err != nil {
				return fmt.Errorf("list active users: %w", err)
			}
			var unlocked, failed int
			for _, id := range ids {
				if err := ctx.Err(); err != nil {
					return err
				}
				got, err := ev.Check(ctx, id)
				unlocked += len(got)
				if err != nil {
					failed++
					log.Warn().Err(err).Int64("user_id", id).Msg("achievement check failed")
				}
			}
			log.Info().Int("users", len(ids)).Int("unlocked", unlocked).Int("failed", failed).Msg("achievement sweep done")
			return nil
		},
	}
}

// SpotlightPass starts a weekly spotlight whenever none is active.
func SpotlightPass(sel *spotlight.Selector, interval time.Duration) Pass {
	return Pass{
		Name:     PassSpotlight,
		Interval: interval,
		Run: func(ctx context.Context, log zerolog.Logger) error {
			sp, err := sel.SelectAndCreateWeekly(ctx)
			switch {
			case errors.Is(err, spotlight.ErrActiveExists):
				log.Debug().Msg("spotlight already active")
				return nil
			case err != nil:
				return err
			case sp == nil:
				log.Info().Msg("no eligible creators")
				return nil
			}
			log.Info().Int64("user_id", sp.UserID).Str("type", string(sp.Type)).Time("until", sp.EndDate).Msg("spotlight started")
			return nil
		},
	}
}

// FeaturedPass produces a fresh suggestion report for the editors' log.
func FeaturedPass(b *featured.Balancer, interval time.Duration) Pass {
	return Pass{
		Name:     PassFeatured,
		Interval: interval,
		Run: func(ctx context.Context, log zerolog.Logger) error {
			report, err := b.Suggestions(ctx)
			if err != nil {
				return err
			}
			ev := log.Info().Int("eligible", report.Eligible).Int("suggestions", len(report.Suggestions))
			if report.Rotation.MostDue != nil {
				ev = ev.Str("most_due", report.Rotation.MostDue.Slug)
			}
			ev.Msg("featured suggestions ready")
			for _, sg := range report.Suggestions {
				log.Info().
					Int64("list_id", sg.ListID).
					Str("category", sg.CategorySlug).
					Float64("score", sg.FinalScore).
					Strs("reasons", sg.Reasons).
					Msg("suggested")
			}
			return nil
		},
	}
}

// EditorPickPass imports new nominations from the editor feed.
func EditorPickPass(sel *spotlight.Selector, src spotlight.PickSource, interval time.Duration) Pass {
	return Pass{
		Name:     PassEditorPicks,
		Interval: interval,
		Run: func(ctx context.Context, log zerolog.Logger) error {
			report, err := sel.ImportEditorPicks(ctx, src)
			if err != nil {
				return err
			}
			log.Info().
				Int("fetched", report.Fetched).
				Int("imported", report.Imported).
				Int("duplicates", report.Duplicates).
				Int("unknown_users", report.UnknownUsers).
				Msg("editor picks imported")
			return nil
		},
	}
}
