package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vytor/bizquest/internal/catalog"
	"github.com/vytor/bizquest/internal/client"
	"github.com/vytor/bizquest/internal/db"
	"github.com/vytor/bizquest/internal/levelview"
	"github.com/vytor/bizquest/internal/logger"
	"github.com/vytor/bizquest/internal/repository/sqlite"
)

type options struct {
	baseURL  string
	token    string
	email    string
	password string
	logLevel string
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	opts := &options{}
	root := &cobra.Command{
		Use:           "bizquest",
		Short:         "Command line client for the BizQuest learning path",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger.SetDefault(logger.New(logger.WithLevel(logger.ParseLevel(opts.logLevel)), logger.WithOutput(os.Stderr)))
		},
	}
	root.PersistentFlags().StringVar(&opts.baseURL, "url", envOr("BIZQUEST_URL", "http://localhost:8080"), "server base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("BIZQUEST_TOKEN"), "session token")
	root.PersistentFlags().StringVar(&opts.email, "email", os.Getenv("BIZQUEST_EMAIL"), "account email, used when no token is given")
	root.PersistentFlags().StringVar(&opts.password, "password", os.Getenv("BIZQUEST_PASSWORD"), "account password")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "WARN", "log level")

	root.AddCommand(
		loginCmd(opts),
		levelsCmd(opts),
		currentCmd(opts),
		startCmd(opts),
		completeCmd(opts),
		achievementsCmd(opts),
		seedCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// connect returns an authenticated client, logging in when only
// credentials were supplied.
func connect(ctx context.Context, o *options) (*client.Client, error) {
	c := client.New(o.baseURL, client.WithToken(o.token))
	if o.token != "" {
		return c, nil
	}
	if o.email == "" || o.password == "" {
		return nil, fmt.Errorf("provide --token or --email and --password")
	}
	if _, err := c.Login(ctx, o.email, o.password); err != nil {
		return nil, err
	}
	return c, nil
}

func loadCache(cmd *cobra.Command, o *options) (*client.ProgressCache, error) {
	c, err := connect(cmd.Context(), o)
	if err != nil {
		return nil, err
	}
	cache := client.NewProgressCache(c)
	if err := cache.Refresh(cmd.Context()); err != nil {
		return nil, fmt.Errorf("%s", cache.Err())
	}
	return cache, nil
}

func loginCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in and print a session token for BIZQUEST_TOKEN",
		RunE: func(cmd *cobra.Command, _ []string) error {
			o.token = ""
			c, err := connect(cmd.Context(), o)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.Token())
			return nil
		},
	}
}

func levelsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "levels",
		Short: "List levels with their status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cache, err := loadCache(cmd, o)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tID\tTITLE\tSTATUS\tXP\tCOINS\tSCORE")
			for _, l := range cache.Levels() {
				status := levelview.Label(l.Status)
				if !l.IsAccessible && !l.IsCompleted {
					status = "Locked"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\n", l.OrderIndex, l.ID, l.Title, status, l.XPReward, l.CoinReward, l.Score)
			}
			return tw.Flush()
		},
	}
}

func currentCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the level to work on now and what it unlocks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cache, err := loadCache(cmd, o)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			cur, ok := cache.CurrentLevel()
			if !ok {
				fmt.Fprintln(out, "Every available level is complete.")
				return nil
			}
			fmt.Fprintf(out, "Current: %s (%s)\n", cur.Title, cur.ID)
			if next, ok := cache.NextLevel(); ok {
				fmt.Fprintf(out, "Unlocks: %s (%s)\n", next.Title, next.ID)
			}
			return nil
		},
	}
}

func startCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "start LEVEL_ID",
		Short: "Mark a level in progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd.Context(), o)
			if err != nil {
				return err
			}
			cache := client.NewProgressCache(c)
			if !cache.Start(cmd.Context(), args[0]) {
				return fmt.Errorf("%s", cache.Err())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Started %s\n", args[0])
			return nil
		},
	}
}

func completeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "complete LEVEL_ID SCORE",
		Short: "Complete a level with a score",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := strconv.Atoi(args[1])
			if err != nil || score < 0 {
				return fmt.Errorf("score must be a non-negative number")
			}
			c, err := connect(cmd.Context(), o)
			if err != nil {
				return err
			}
			cache := client.NewProgressCache(c)
			res := cache.Complete(cmd.Context(), args[0], score)
			if res == nil {
				return fmt.Errorf("%s", cache.Err())
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Message)
			if !res.Success {
				return nil
			}
			if res.FirstCompletion && res.Rewards != nil {
				fmt.Fprintf(out, "Rewards: +%d xp, +%d coins\n", res.Rewards.XP, res.Rewards.Coins)
			}
			for _, id := range res.UnlockedLevels {
				fmt.Fprintf(out, "Unlocked: %s\n", id)
			}
			return nil
		},
	}
}

func achievementsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "achievements",
		Short: "List achievements",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := connect(cmd.Context(), o)
			if err != nil {
				return err
			}
			list, err := c.Achievements(cmd.Context())
			if err != nil {
				return err
			}
			for _, a := range list {
				mark := " "
				if a.UnlockedAt != nil {
					mark = "x"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n", mark, a.Title, a.Description)
			}
			return nil
		},
	}
}

// seedCmd loads a catalog straight into a database file, for setting up a
// server before its first start.
func seedCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "seed CATALOG",
		Short: "Validate a catalog file and load it into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load(args[0])
			if err != nil {
				return err
			}
			database, err := db.Open(dbPath)
			if err != nil {
				return err
			}
			defer database.Close()

			err = catalog.Seed(cmd.Context(), cat,
				sqlite.NewLevelRepository(database.DB), sqlite.NewAchievementRepository(database.DB))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d levels and %d achievements\n", len(cat.Levels), len(cat.Achievements))
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", envOr("DB_PATH", "file:bizquest.db"), "database path")
	return cmd
}
