// Package coordination provides cross-process leader election so exactly
// one replica runs each background sweeper at a time: an etcd lease
// (Grant/KeepAlive/Revoke, dial-timeout-bounded construction) used as a
// compare-and-swap leader lock, where the lease key is the sweeper's name
// and only the instance that successfully creates it is allowed to run.
package coordination

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// Leader is the lifecycle contract every coordinated background sweeper is
// gated by: Start attempts to acquire leadership and keeps renewing it in
// the background; Stop releases it. IsLeader is checked before each sweep
// tick so a sweeper that loses leadership mid-run stops acting as leader by
// its next tick.
type Leader interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsLeader() bool
}

// EtcdLeader campaigns for leadership of one named lock using an etcd
// lease: Start grants a TTL-bound lease, attempts an atomic
// create-if-absent Put of the lock key under that lease, and — whether or
// not the attempt wins — starts a keepalive loop that renews the lease
// while held and retries the campaign after each lease expiry.
type EtcdLeader struct {
	client    *clientv3.Client
	key       string
	ttl       int64
	logger    *slog.Logger
	ownClient bool

	leaseID clientv3.LeaseID
	isLeader bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// EtcdLeaderOptions configures NewEtcdLeader.
type EtcdLeaderOptions struct {
	// Endpoints are the etcd cluster endpoints.
	Endpoints []string
	// Namespace prefixes every lock key, keeping multiple RAE deployments
	// sharing one etcd cluster from colliding.
	Namespace string
	// TTLSeconds is the lease lifetime; keepalive renews it at TTL/3.
	TTLSeconds int64
	Logger     *slog.Logger
}

// NewEtcdLeader dials etcd and returns a Leader campaigning for name
// (e.g. "decay-sweeper", "reflection-sweeper") under opts.Namespace.
func NewEtcdLeader(opts EtcdLeaderOptions, name string) (*EtcdLeader, error) {
	if len(opts.Endpoints) == 0 {
		return nil, fmt.Errorf("coordination: at least one etcd endpoint is required")
	}
	if opts.Namespace == "" {
		opts.Namespace = "rae"
	}
	if opts.TTLSeconds <= 0 {
		opts.TTLSeconds = 15
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   opts.Endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("coordination: create etcd client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := cli.Get(ctx, "health-check"); err != nil && err != context.DeadlineExceeded {
		cli.Close()
		return nil, fmt.Errorf("coordination: etcd health check failed: %w", err)
	}

	return &EtcdLeader{
		client:    cli,
		key:       opts.Namespace + "/leader/" + name,
		ttl:       opts.TTLSeconds,
		logger:    logger,
		ownClient: true,
	}, nil
}

var _ Leader = (*EtcdLeader)(nil)

// Start launches the campaign-and-keepalive loop in the background and
// returns immediately; the instance may not hold leadership yet — callers
// must check IsLeader before acting as leader.
func (l *EtcdLeader) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(runCtx)
	return nil
}

// Stop resigns leadership (if held), releases the lease, and stops the
// background loop.
func (l *EtcdLeader) Stop(ctx context.Context) error {
	if l.cancel != nil {
		l.cancel()
	}
	if l.done != nil {
		select {
		case <-l.done:
		case <-ctx.Done():
		}
	}
	if l.isLeader {
		_, _ = l.client.Revoke(ctx, l.leaseID)
		l.isLeader = false
	}
	if l.ownClient {
		return l.client.Close()
	}
	return nil
}

// IsLeader reports whether this instance currently holds the lock.
func (l *EtcdLeader) IsLeader() bool {
	return l.isLeader
}

func (l *EtcdLeader) run(ctx context.Context) {
	defer close(l.done)
	for {
		if ctx.Err() != nil {
			return
		}
		if err := l.campaign(ctx); err != nil {
			l.logger.Warn("coordination: campaign failed", "key", l.key, "error", err)
			l.isLeader = false
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(l.ttl) * time.Second / 3):
			}
			continue
		}
		l.keepaliveUntilLost(ctx)
		l.isLeader = false
	}
}

// campaign grants a lease and attempts a create-if-absent Put of l.key
// under it; l.isLeader is true only when this instance wins the race.
func (l *EtcdLeader) campaign(ctx context.Context) error {
	lease, err := l.client.Grant(ctx, l.ttl)
	if err != nil {
		return fmt.Errorf("grant lease: %w", err)
	}

	txn := l.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(l.key), "=", 0)).
		Then(clientv3.OpPut(l.key, "", clientv3.WithLease(lease.ID))).
		Else(clientv3.OpGet(l.key))

	resp, err := txn.Commit()
	if err != nil {
		return fmt.Errorf("commit campaign txn: %w", err)
	}
	if !resp.Succeeded {
		// Someone else holds it; release our unused lease.
		_, _ = l.client.Revoke(ctx, lease.ID)
		return fmt.Errorf("lock %q already held", l.key)
	}

	l.leaseID = lease.ID
	l.isLeader = true
	l.logger.Info("coordination: acquired leadership", "key", l.key)
	return nil
}

// keepaliveUntilLost renews the lease at ttl/3 until the context is
// cancelled or a renewal fails (lease expired or etcd unreachable), at
// which point leadership is considered lost and the caller re-campaigns.
func (l *EtcdLeader) keepaliveUntilLost(ctx context.Context) {
	interval := time.Duration(l.ttl) * time.Second / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := l.client.KeepAliveOnce(ctx, l.leaseID); err != nil {
				l.logger.Warn("coordination: lease renewal failed, leadership lost", "key", l.key, "error", err)
				return
			}
		}
	}
}

// SingleProcessLeader is a trivial Leader that always holds leadership —
// the deployment mode with exactly one process instance, where etcd
// coordination would be pure overhead. Callers pass it where no etcd
// endpoints are configured; NewEtcdLeader itself returns an error in that
// case rather than falling back to it.
type SingleProcessLeader struct{}

var _ Leader = SingleProcessLeader{}

func (SingleProcessLeader) Start(ctx context.Context) error { return nil }
func (SingleProcessLeader) Stop(ctx context.Context) error  { return nil }
func (SingleProcessLeader) IsLeader() bool                  { return true }
