package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/elonfeng/vibescore/pkg/ranking"
)

var (
	cfgFile    string
	jsonOutput bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vibescore",
		Short:         "Rank creators, unlock achievements and pick spotlights for a list-curation community",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	root.AddCommand(rankCmd())
	root.AddCommand(leaderboardCmd())
	root.AddCommand(achievementsCmd())
	root.AddCommand(spotlightCmd())
	root.AddCommand(featuredCmd())
	root.AddCommand(editorPicksCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func rankCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rank",
		Short: "Recompute creator rankings now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRank(cmd.Context())
		},
	}
}

func leaderboardCmd() *cobra.Command {
	var (
		scope    string
		category string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show persisted creator rankings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeaderboard(cmd.Context(), ranking.Scope(scope), category, limit)
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "global", "global, monthly or category")
	cmd.Flags().StringVar(&category, "category", "", "category slug for --scope category")
	cmd.Flags().IntVar(&limit, "limit", 20, "max rows to show")
	return cmd
}

func achievementsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "achievements",
		Short: "Check or list user achievements",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check <user-id>",
		Short: "Evaluate and unlock achievements for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return runAchievementCheck(cmd.Context(), id)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list <user-id>",
		Short: "Show achievement progress for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return runAchievementList(cmd.Context(), id)
		},
	})
	return cmd
}

func spotlightCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spotlight",
		Short: "Show or select the creator spotlight",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpotlightCurrent(cmd.Context())
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "select",
		Short: "Start a weekly spotlight if none is active",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpotlightSelect(cmd.Context())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "eligible",
		Short: "List creators eligible for the next spotlight",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpotlightEligible(cmd.Context())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "history",
		Short: "List recent spotlights",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpotlightHistory(cmd.Context())
		},
	})
	return cmd
}

func featuredCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "featured",
		Short: "Suggest lists for the homepage with category rotation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeatured(cmd.Context())
		},
	}
}

func editorPicksCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "editor-picks",
		Short: "Import creator nominations from the editor feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEditorPicks(cmd.Context(), url)
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "feed URL (default: from config)")
	return cmd
}

func seedCmd() *cobra.Command {
	var (
		users int
		seed  uint64
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill an empty database with demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), users, seed)
		},
	}

	cmd.Flags().IntVar(&users, "users", 50, "number of demo users")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ops HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return id, nil
}
