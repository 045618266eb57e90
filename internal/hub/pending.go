package hub

import (
	"sync"
	"time"

	"github.com/hearth-home/hearth-core/internal/wire"
)

// pendingRequests tracks outstanding RPC requests by correlation id.
// The janitor expires entries whose deadline passed; replies for
// expired or unknown ids are stale and get discarded by the caller.
type pendingRequests struct {
	mu      sync.Mutex
	entries map[string]*pendingEntry
}

type pendingEntry struct {
	future   *Future
	deadline time.Time
}

func newPendingRequests() *pendingRequests {
	return &pendingRequests{entries: make(map[string]*pendingEntry)}
}

// add registers a future under a correlation id.
func (p *pendingRequests) add(correlationID string, future *Future, deadline time.Time) {
	p.mu.Lock()
	p.entries[correlationID] = &pendingEntry{future: future, deadline: deadline}
	p.mu.Unlock()
}

// resolve completes and removes the entry for a correlation id.
// Returns false when no entry exists, which marks the reply as stale.
func (p *pendingRequests) resolve(correlationID string, result wire.RPCResult) bool {
	p.mu.Lock()
	entry, ok := p.entries[correlationID]
	if ok {
		delete(p.entries, correlationID)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}
	return entry.future.resolve(result)
}

// remove drops an entry without resolving its future.
func (p *pendingRequests) remove(correlationID string) {
	p.mu.Lock()
	delete(p.entries, correlationID)
	p.mu.Unlock()
}

// expire fails every entry whose deadline is at or before now and
// returns the expired correlation ids.
func (p *pendingRequests) expire(now time.Time) []string {
	p.mu.Lock()
	var expired []string
	for id, entry := range p.entries {
		if !entry.deadline.After(now) {
			expired = append(expired, id)
			delete(p.entries, id)
			entry.future.fail(ErrRPCTimeout)
		}
	}
	p.mu.Unlock()
	return expired
}

// failAll fails every outstanding entry, for shutdown.
func (p *pendingRequests) failAll(err error) {
	p.mu.Lock()
	for id, entry := range p.entries {
		entry.future.fail(err)
		delete(p.entries, id)
	}
	p.mu.Unlock()
}

// len returns the number of outstanding requests.
func (p *pendingRequests) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
