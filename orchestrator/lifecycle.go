package orchestrator

import (
	"context"

	"github.com/dreamsoft-pro/rae/tenant"
)

// ScopedWorker is satisfied by scoring.DecayWorker and reflection.Sweeper:
// both run their sweep against a caller-supplied tenant-scope lister rather
// than taking it at construction time, so neither matches Lifecycle's bare
// Start(ctx) error directly.
type ScopedWorker interface {
	Start(ctx context.Context, scopes func(ctx context.Context) ([]tenant.Scope, error)) error
	Stop(ctx context.Context) error
}

// BindScopes adapts a ScopedWorker to Lifecycle by capturing the scope
// lister up front, so scoring.DecayWorker and reflection.Sweeper can be
// registered with Engine.Manage alongside cache.RedisCache and
// coordination.Leader.
func BindScopes(worker ScopedWorker, scopes func(ctx context.Context) ([]tenant.Scope, error)) Lifecycle {
	return &boundWorker{worker: worker, scopes: scopes}
}

type boundWorker struct {
	worker ScopedWorker
	scopes func(ctx context.Context) ([]tenant.Scope, error)
}

func (b *boundWorker) Start(ctx context.Context) error {
	return b.worker.Start(ctx, b.scopes)
}

func (b *boundWorker) Stop(ctx context.Context) error {
	return b.worker.Stop(ctx)
}
