package exp

import (
	"sync"
	"sync/atomic"
)

// loadController serializes background loads for one store. A mutex and
// condition variable guard the loading flag; the abort and result flags
// are atomics so the loader goroutine and waiters never observe a
// half-updated state. The result is stored before waiters are woken.
type loadController struct {
	mu      sync.Mutex
	cond    *sync.Cond
	loading bool

	abort  atomic.Bool // set only while the owning store is closing
	result atomic.Bool // outcome of the most recently completed load
}

func newLoadController() *loadController {
	lc := &loadController{}
	lc.cond = sync.NewCond(&lc.mu)
	return lc
}

// begin waits out any in-flight load, then claims the controller for a new
// one. Loads on one store are strictly serialized, never concurrent.
func (lc *loadController) begin() {
	lc.mu.Lock()
	for lc.loading {
		lc.cond.Wait()
	}
	lc.loading = true
	lc.mu.Unlock()
	lc.result.Store(false)
}

// finish publishes the load result and releases the controller, waking
// every waiter. Called exactly once by the loader goroutine, which then
// simply exits; nothing ever force-terminates it.
func (lc *loadController) finish(ok bool) {
	lc.result.Store(ok)
	lc.mu.Lock()
	lc.loading = false
	lc.cond.Broadcast()
	lc.mu.Unlock()
}

// wait blocks until no load is in flight and returns the result of the
// most recently completed load. Safe to call when idle.
func (lc *loadController) wait() bool {
	lc.mu.Lock()
	for lc.loading {
		lc.cond.Wait()
	}
	lc.mu.Unlock()
	return lc.result.Load()
}
