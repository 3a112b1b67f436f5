package scoring

import (
	"context"
	"log/slog"
	"time"

	"github.com/dreamsoft-pro/rae/memory"
	"github.com/dreamsoft-pro/rae/tenant"
)

// DecaySchedule picks the per-day multiplier for a memory based on how long
// it has been since its last access, per the decay schedule.
func DecaySchedule(sinceLastAccess time.Duration) float64 {
	days := sinceLastAccess.Hours() / 24

	switch {
	case days <= 7:
		return 1.0 // no decay
	case days <= 30:
		return 0.995
	case days <= 60:
		return 0.99
	default:
		return 0.98
	}
}

// ArchiveThresholdImportance and ArchiveThresholdAgeDays gate when a memory
// is marked archived rather than merely decayed further.
const (
	ArchiveThresholdImportance = 0.05
	ArchiveThresholdAgeDays    = 90.0
)

// DecayWorker is the single writer of decayed importance for every memory
// it processes, run on a fixed interval as a background sweeper. It is the
// only writer of the decay side log (via Repository.UpdateImportance).
type DecayWorker struct {
	repo     memory.Repository
	logger   *slog.Logger
	interval time.Duration
	weights  ImportanceWeights
	scopes   func(ctx context.Context) ([]tenant.Scope, error)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewDecayWorker builds a worker over repo, ticking every interval.
func NewDecayWorker(repo memory.Repository, logger *slog.Logger, interval time.Duration) *DecayWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &DecayWorker{repo: repo, logger: logger, interval: interval, weights: DefaultImportanceWeights()}
}

// Start launches Run in the background, listing scopes with scopes on each
// tick. Because Start takes the scope lister, DecayWorker does not satisfy
// orchestrator.Lifecycle by itself; orchestrator.BindScopes adapts it. No
// coordination.Leader gates its ticks.
func (w *DecayWorker) Start(ctx context.Context, scopes func(ctx context.Context) ([]tenant.Scope, error)) error {
	runCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.scopes = scopes

	go func() {
		defer close(w.done)
		w.Run(runCtx, scopes)
	}()
	return nil
}

// Stop cancels the background tick loop and waits for the in-flight tick,
// if any, to finish.
func (w *DecayWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}
	if w.done != nil {
		select {
		case <-w.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Run ticks until ctx is cancelled, applying RunOnce for every scope in
// scopes each tick. If a previous tick is still running when the next one
// is due, the tick is skipped.
func (w *DecayWorker) Run(ctx context.Context, scopes func(ctx context.Context) ([]tenant.Scope, error)) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	running := make(chan struct{}, 1)
	running <- struct{}{}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case <-running:
			default:
				w.logger.Warn("decay worker: previous tick still running, skipping")
				continue
			}

			go func() {
				defer func() { running <- struct{}{} }()
				ss, err := scopes(ctx)
				if err != nil {
					w.logger.Error("decay worker: list scopes failed", "error", err)
					return
				}
				for _, s := range ss {
					if err := w.RunOnce(ctx, s); err != nil {
						w.logger.Error("decay worker: run failed", "scope", s.String(), "error", err)
					}
				}
			}()
		}
	}
}

// RunOnce applies decay and archival to every non-recently-accessed memory
// in scope, across all layers.
func (w *DecayWorker) RunOnce(ctx context.Context, scope tenant.Scope) error {
	now := time.Now().UTC()

	for _, layer := range []memory.Layer{memory.LayerEpisodic, memory.LayerSemantic, memory.LayerReflective} {
		mems, err := w.repo.ListByLayer(ctx, scope, layer, memory.ListFilters{}, 0, 0)
		if err != nil {
			return err
		}

		for _, m := range mems {
			if m.UserImportanceOverride != nil {
				continue
			}

			since := m.SinceLastAccess(now)
			multiplier := DecaySchedule(since)
			newImportance := m.Importance
			if multiplier != 1.0 {
				newImportance = clamp01(m.Importance * multiplier)
				if err := w.repo.UpdateImportance(ctx, m.ID, scope, newImportance); err != nil {
					return err
				}
			}

			ageDays := m.Age(now).Hours() / 24
			if newImportance < ArchiveThresholdImportance && ageDays > ArchiveThresholdAgeDays && m.ConsolidationStatus != memory.StatusArchived {
				if err := w.repo.UpdateConsolidationStatus(ctx, m.ID, scope, memory.StatusArchived); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
