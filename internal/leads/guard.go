package leads

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// instanceGuards admits one Submit or Reset per form instance within this
// process before the shared store lock is consulted.
type instanceGuards struct {
	mu     sync.Mutex
	guards map[string]*instanceGuard
}

type instanceGuard struct {
	sem  *semaphore.Weighted
	refs int
}

func newInstanceGuards() *instanceGuards {
	return &instanceGuards{guards: make(map[string]*instanceGuard)}
}

// tryEnter reports false when another caller holds formID. On success the
// returned func must be called once to leave.
func (g *instanceGuards) tryEnter(formID string) (leave func(), ok bool) {
	g.mu.Lock()
	guard, found := g.guards[formID]
	if !found {
		guard = &instanceGuard{sem: semaphore.NewWeighted(1)}
		g.guards[formID] = guard
	}
	guard.refs++
	g.mu.Unlock()

	if !guard.sem.TryAcquire(1) {
		g.drop(formID, guard)
		return nil, false
	}
	return func() {
		guard.sem.Release(1)
		g.drop(formID, guard)
	}, true
}

func (g *instanceGuards) drop(formID string, guard *instanceGuard) {
	g.mu.Lock()
	defer g.mu.Unlock()
	guard.refs--
	if guard.refs == 0 {
		delete(g.guards, formID)
	}
}
