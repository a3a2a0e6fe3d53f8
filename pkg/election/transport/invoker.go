package transport

import "sync"

// Invoker spawns and tracks goroutines on behalf of the connection manager
// (its acceptor and reader goroutines). The production variant fires bare goroutines;
// the waitable variant additionally exposes Stop() so callers (mainly
// tests) can wait for every spawned goroutine to drain before asserting
// with goleak.
type Invoker interface {
	Spawn(f func())
}

// goroutineInvoker is the production Invoker: every Spawn is a plain
// goroutine, tracked only so Stop can block until they've all returned.
type goroutineInvoker struct {
	group sync.WaitGroup
}

// NewInvoker returns the default, production Invoker.
func NewInvoker() Invoker {
	return &goroutineInvoker{}
}

func (i *goroutineInvoker) Spawn(f func()) {
	i.group.Add(1)
	go func() {
		defer i.group.Done()
		f()
	}()
}

// Stop blocks until every goroutine spawned through this Invoker has
// returned. Exported on the concrete type (not the Invoker interface)
// because only owners that need deterministic teardown, such as tests,
// should depend on it.
func (i *goroutineInvoker) Stop() {
	i.group.Wait()
}

// WaitableInvoker is the subset of goroutineInvoker's API a caller can use
// to await full drain without depending on the concrete type.
type WaitableInvoker interface {
	Invoker
	Stop()
}

// NewWaitableInvoker returns an Invoker whose spawned goroutines can be
// awaited via Stop, used by tests that assert no goroutines leak past
// shutdown.
func NewWaitableInvoker() WaitableInvoker {
	return &goroutineInvoker{}
}
