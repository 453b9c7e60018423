package albumcache

import (
	"sync"

	"github.com/iconidentify/albumproxy/internal/domain"
)

// ReloadGuard deduplicates concurrent background refreshes per token. It is
// the only process-wide mutable state shared by album reads; the lock is
// held only for the flag update, never across I/O. The check-then-set is not
// a true CAS across goroutines that race between TryBegin calls on different
// guards, but a benign double refresh only wastes one upstream call: record
// writes are last-write-wins.
type ReloadGuard struct {
	mu       sync.Mutex
	inFlight map[domain.Token]bool
}

// NewReloadGuard creates an empty guard.
func NewReloadGuard() *ReloadGuard {
	return &ReloadGuard{
		inFlight: make(map[domain.Token]bool),
	}
}

// TryBegin marks a refresh in flight for token. It returns false if one is
// already running, in which case the caller must not start another.
func (g *ReloadGuard) TryBegin(token domain.Token) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inFlight[token] {
		return false
	}
	g.inFlight[token] = true
	return true
}

// End clears the in-flight flag for token. Called on refresh completion,
// success or failure.
func (g *ReloadGuard) End(token domain.Token) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, token)
}

// InFlight reports whether a refresh is currently running for token.
func (g *ReloadGuard) InFlight(token domain.Token) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight[token]
}
