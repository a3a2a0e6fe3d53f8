// Package election exposes the thin facade a caller drives a leader
// election through: Start, InitiateElection, and AwaitResult over the
// underlying state machine, driver, and transport.
package election

import (
	"context"
	"time"

	"github.com/rafaelcarvalho/fireelect/pkg/election/core"
	"github.com/rafaelcarvalho/fireelect/pkg/election/definition"
	"github.com/rafaelcarvalho/fireelect/pkg/election/metrics"
	"github.com/rafaelcarvalho/fireelect/pkg/election/transport"
	"github.com/rafaelcarvalho/fireelect/pkg/election/types"

	"github.com/prometheus/client_golang/prometheus"
)

// Election is the facade a caller (the CLI, or any other embedder) uses to
// run one leader election over a known topology. One Election serves
// exactly one election per process lifetime.
type Election struct {
	topology *types.Topology
	manager  *transport.Manager
	sm       *core.StateMachine
	driver   *core.Driver
	log      types.Logger
	metrics  *metrics.Collectors

	driverDone chan struct{}
}

// Option customizes an Election at construction.
type Option func(*config)

type config struct {
	log      types.Logger
	registry prometheus.Registerer
	backoff  core.Backoff
}

// WithLogger overrides the default logrus-backed logger.
func WithLogger(l types.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithRegistry overrides where prometheus collectors register. Pass a
// fresh registry (e.g. in tests running several Elections in one process)
// to avoid metric-name collisions.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(c *config) { c.registry = reg }
}

// WithBackoff overrides the contention backoff strategy.
func WithBackoff(b core.Backoff) Option {
	return func(c *config) { c.backoff = b }
}

// New builds an Election for topology, which must describe this node's id,
// listen address, and neighbor map.
func New(topology *types.Topology, opts ...Option) *Election {
	cfg := &config{registry: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.log == nil {
		cfg.log = definition.NewDefaultLogger(topology.SelfID)
	}

	collectors := metrics.NewCollectors(cfg.registry, topology.SelfID)
	invoker := transport.NewWaitableInvoker()
	manager := transport.NewManager(topology.SelfID, invoker, cfg.log, collectors)
	sm := core.New(topology.SelfID, topology.NeighborIDs(), manager, cfg.log, collectors)
	driver := core.NewDriver(sm, topology, manager, manager, cfg.log, cfg.backoff)

	return &Election{
		topology:   topology,
		manager:    manager,
		sm:         sm,
		driver:     driver,
		log:        cfg.log,
		metrics:    collectors,
		driverDone: make(chan struct{}),
	}
}

// Start binds this node's listen address and starts the driver goroutine.
// It must be called exactly once, before InitiateElection or AwaitResult.
func (e *Election) Start() error {
	if err := e.manager.Start(e.topology.SelfAddress.String(), e.sm); err != nil {
		return err
	}
	go func() {
		defer close(e.driverDone)
		e.driver.Run()
	}()
	return nil
}

// InitiateElection is a no-op at the protocol level beyond the driver
// already started by Start: the protocol is symmetric, and any node may
// begin by requesting its sole candidate. It exists only so a caller can
// optionally block for the result in one call.
func (e *Election) InitiateElection(block bool) (int, error) {
	if !block {
		return -1, nil
	}
	return e.AwaitResult(context.Background())
}

// AwaitResult blocks until this node's leader is known, or ctx is done.
func (e *Election) AwaitResult(ctx context.Context) (int, error) {
	start := time.Now()
	resultCh := make(chan int, 1)
	go func() {
		resultCh <- e.sm.WaitForLeader()
	}()

	select {
	case leaderID := <-resultCh:
		<-e.driverDone // the driver's own goroutine has fully returned
		if e.metrics != nil {
			e.metrics.ElectionDuration.Observe(time.Since(start).Seconds())
		}
		return leaderID, nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

// Shutdown tears down the connection manager. Idempotent.
func (e *Election) Shutdown() {
	e.manager.Shutdown()
}

// Snapshot exposes the current protocol state for observers (tests,
// diagnostics) without giving write access.
func (e *Election) Snapshot() (leaderID int, done bool, children []int) {
	return e.sm.Snapshot()
}
