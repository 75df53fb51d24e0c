package cli

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/parrotlabs/parrot/internal/monitoring"
	"github.com/parrotlabs/parrot/internal/poster"
)

func newScheduleCmd() *cobra.Command {
	var (
		handle   string
		interval time.Duration
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "schedule-posts",
		Short: "Run the posting agent on a schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			handles, err := app.resolveHandles(handle)
			if err != nil {
				return err
			}
			if interval <= 0 {
				interval = app.cfg.PostInterval
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var metrics poster.Metrics
			g, ctx := errgroup.WithContext(ctx)

			if app.cfg.StatusAddr != "" {
				collector := monitoring.NewMetricsCollector(nil)
				metrics = collector

				health := monitoring.NewHealthChecker("parrot", Version)
				health.AddCheck("database", monitoring.DatabaseHealthCheck(app.store.DB()))
				health.AddCheck("llm", monitoring.LLMHealthCheck(app.cfg.LLMAPIKey != "" || app.cfg.LLMProvider == "ollama"))

				server := monitoring.NewServer(monitoring.ServerConfig{
					Addr:    app.cfg.StatusAddr,
					Handles: handles,
					Version: Version,
				}, health, app.registry, app.logger)
				g.Go(func() error { return server.Run(ctx) })
			}

			agent := poster.NewAgent(poster.AgentConfig{
				Handles:        handles,
				Interval:       interval,
				IntervalJitter: app.cfg.IntervalJitter,
				RunImmediately: app.cfg.RunImmediately,
			}, app.newPoster(dryRun), metrics, app.logger)

			g.Go(func() error { return agent.Run(ctx) })

			err = g.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&handle, "handle", "", "handle to post as (default: all configured handles)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "time between posting cycles (default: POST_INTERVAL)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run cycles without publishing")
	return cmd
}
