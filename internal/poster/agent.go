package poster

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/parrotlabs/parrot/internal/logging"
)

// Metrics receives per-cycle outcomes. The monitoring package provides the
// real implementation; a nil Metrics disables reporting.
type Metrics interface {
	ObserveOutcome(outcome Outcome, err error)
	ObserveCycle()
}

type AgentConfig struct {
	Handles        []string
	Interval       time.Duration
	IntervalJitter time.Duration
	RunImmediately bool
}

// Agent runs the posting loop on a schedule until its context is cancelled.
type Agent struct {
	cfg     AgentConfig
	poster  *Poster
	metrics Metrics
	logger  logging.Logger
}

func NewAgent(cfg AgentConfig, poster *Poster, metrics Metrics, logger logging.Logger) *Agent {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.Interval < 5*time.Minute {
		cfg.Interval = 5 * time.Minute
	}
	return &Agent{cfg: cfg, poster: poster, metrics: metrics, logger: logger}
}

// Run blocks until ctx is cancelled. Each cycle posts once per handle; a
// failing handle never stops the loop.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.WithFields(logging.Fields{
		"handles":  len(a.cfg.Handles),
		"interval": a.cfg.Interval.String(),
	}).Info("Posting agent started")

	if a.cfg.RunImmediately {
		a.cycle(ctx)
	}

	for {
		timer := time.NewTimer(a.nextInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("Posting agent stopped")
			return ctx.Err()
		case <-timer.C:
			a.cycle(ctx)
		}
	}
}

// nextInterval adds jitter so cycles do not fire at predictable times.
func (a *Agent) nextInterval() time.Duration {
	interval := a.cfg.Interval
	if a.cfg.IntervalJitter > 0 {
		interval += time.Duration(rand.Int63n(int64(a.cfg.IntervalJitter)))
	}
	return interval
}

func (a *Agent) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.WithFields(logging.Fields{"panic": r}).Error("Posting cycle panicked")
		}
	}()

	if a.metrics != nil {
		a.metrics.ObserveCycle()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, handle := range a.cfg.Handles {
		handle := handle
		g.Go(func() error {
			outcome, err := a.poster.Post(ctx, handle, "")
			if a.metrics != nil {
				a.metrics.ObserveOutcome(outcome, err)
			}
			if err != nil {
				a.logger.WithFields(logging.Fields{
					"handle": handle,
					"error":  err.Error(),
				}).Error("Posting failed for handle")
			}
			// handle errors are logged, not propagated, so one bad
			// handle cannot cancel the others
			return nil
		})
	}
	g.Wait()
}
