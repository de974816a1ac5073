package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"meetupnotify/internal/api"
	"meetupnotify/internal/config"
	"meetupnotify/internal/discord"
	"meetupnotify/internal/ics"
	appLog "meetupnotify/internal/log"
	"meetupnotify/internal/meetup"
	"meetupnotify/internal/notifier"
	"meetupnotify/internal/schedule"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	debug      bool
	dryRun     bool
	now        string
}

var flags flagConfig

var rootCmd = &cobra.Command{
	Use:   "meetupnotify",
	Short: "Post upcoming Meetup event reminders to Discord",
	Long: `meetupnotify fetches upcoming events from a Meetup group or iCal feed and
posts a weekly "save the date" notice for events one week out, a same-day
reminder for events happening today, and optionally a weekly digest.

It performs a single pass and exits; schedule it with cron or a systemd timer.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), flags)
	},
}

func init() {
	rootCmd.Flags().StringVar(&flags.configPath, "config", "config.yaml", "path to YAML or TOML config file")
	rootCmd.Flags().BoolVar(&flags.debug, "debug", false, "enable debug logging")
	rootCmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "log messages instead of posting them")
	rootCmd.Flags().StringVar(&flags.now, "now", "", "pretend the run happens at this time (RFC3339 or YYYY-MM-DD)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		appLog.Error("meetupnotify failed", err)
		stop()
		os.Exit(1)
	}
}

// run returns an error only for configuration problems; everything after
// config load is recoverable and logged.
func run(ctx context.Context, fc flagConfig) error {
	if fc.debug {
		appLog.SetLevel(appLog.LevelDebug)
		appLog.Debug("debug mode enabled")
	}
	if id, err := appLog.NewRunID(); err == nil {
		appLog.With("run_id", id)
	}

	cfg, err := config.Load(fc.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", fc.configPath, err)
	}

	now, err := resolveNow(fc.now, cfg.Location())
	if err != nil {
		return err
	}

	rc := schedule.NewRunContext(now, fc.dryRun, cfg)

	appLog.Info("starting event processing",
		"config_path", fc.configPath,
		"timezone", cfg.Timezone,
		"reference", rc.Now.Format(time.RFC3339),
		"source", sourceName(cfg),
		"rules", len(cfg.Events),
		"summary_enabled", cfg.Discord.Summary.Enabled,
		"summary_day", cfg.Discord.Summary.Daily,
		"dry_run", rc.DryRun,
	)

	client := api.NewHTTPClient(cfg.HTTPTimeout)
	src := buildSource(cfg, rc, client)
	pub := discord.NewPublisher(client, rc.DryRun)

	notifier.Run(ctx, rc, src, pub)
	return nil
}

func buildSource(cfg *config.Config, rc schedule.RunContext, client api.HTTPClient) notifier.Source {
	if cfg.Meetup.ICal != "" {
		window := ics.WindowAround(rc.Now, schedule.WeeklyOffset)
		return ics.NewFeed(cfg.Meetup.ICal, cfg.Location(), window, client)
	}
	return meetup.NewClient(cfg.Meetup.APIBase, cfg.Meetup.Group, cfg.Location(), client)
}

func sourceName(cfg *config.Config) string {
	if cfg.Meetup.ICal != "" {
		return "ical"
	}
	return "group:" + cfg.Meetup.Group
}

// resolveNow parses the --now override; an empty value means the wall clock.
func resolveNow(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --now %q: want RFC3339 or YYYY-MM-DD", value)
	}
	return t, nil
}
