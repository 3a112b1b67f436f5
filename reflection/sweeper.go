package reflection

import (
	"context"
	"log/slog"
	"time"

	"github.com/dreamsoft-pro/rae/coordination"
	"github.com/dreamsoft-pro/rae/tenant"
)

// Sweeper runs Pipeline.Run on a fixed interval for every scope a caller
// supplies, gated by a coordination.Leader so only one process replica
// acts at a time, grounded on scoring.DecayWorker's ticker/skip-if-busy
// shape.
type Sweeper struct {
	pipeline *Pipeline
	leader   coordination.Leader
	logger   *slog.Logger
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper builds a Sweeper ticking every interval. leader gates whether
// a given tick actually runs; pass coordination.SingleProcessLeader{} for
// single-instance deployments.
func NewSweeper(pipeline *Pipeline, leader coordination.Leader, logger *slog.Logger, interval time.Duration) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{pipeline: pipeline, leader: leader, logger: logger, interval: interval}
}

// Start launches the background tick loop.
func (s *Sweeper) Start(ctx context.Context, scopes func(ctx context.Context) ([]tenant.Scope, error)) error {
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.run(runCtx, scopes)
	}()
	return nil
}

// Stop cancels the tick loop and waits for any in-flight tick to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Sweeper) run(ctx context.Context, scopes func(ctx context.Context) ([]tenant.Scope, error)) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	running := make(chan struct{}, 1)
	running <- struct{}{}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.leader.IsLeader() {
				continue
			}
			select {
			case <-running:
			default:
				s.logger.Warn("reflection sweeper: previous tick still running, skipping")
				continue
			}

			go func() {
				defer func() { running <- struct{}{} }()
				ss, err := scopes(ctx)
				if err != nil {
					s.logger.Error("reflection sweeper: list scopes failed", "error", err)
					return
				}
				for _, scope := range ss {
					if _, err := s.pipeline.Run(ctx, scope); err != nil {
						s.logger.Error("reflection sweeper: run failed", "scope", scope.String(), "error", err)
					}
				}
			}()
		}
	}
}
