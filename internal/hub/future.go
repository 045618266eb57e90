package hub

import (
	"context"
	"sync"

	"github.com/hearth-home/hearth-core/internal/wire"
)

// Future is the pending result of one RPC request. It resolves exactly
// once: with the plugin's reply, with a timeout, or with a shutdown
// error. Later resolutions are discarded.
type Future struct {
	mu       sync.Mutex
	resolved bool
	done     chan struct{}
	result   wire.RPCResult
	err      error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// ResolvedFuture returns a future already resolved with result.
// Useful for callers that satisfy the command surface without a live
// broker behind it.
func ResolvedFuture(result wire.RPCResult) *Future {
	f := newFuture()
	f.resolve(result)
	return f
}

// FailedFuture returns a future already failed with err.
func FailedFuture(err error) *Future {
	f := newFuture()
	f.fail(err)
	return f
}

// resolve completes the future with a reply. Reports whether this call
// won the resolution.
func (f *Future) resolve(result wire.RPCResult) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolved {
		return false
	}
	f.resolved = true
	f.result = result
	close(f.done)
	return true
}

// fail completes the future with an error.
func (f *Future) fail(err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolved {
		return false
	}
	f.resolved = true
	f.err = err
	close(f.done)
	return true
}

// Done returns a channel closed when the future resolves.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future resolves or ctx is cancelled.
func (f *Future) Wait(ctx context.Context) (wire.RPCResult, error) {
	select {
	case <-ctx.Done():
		return wire.RPCResult{}, ctx.Err()
	case <-f.done:
		return f.result, f.err
	}
}
