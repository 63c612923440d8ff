package app

import "sync"

// LineState is the lifecycle of one cart-line mutation.
type LineState string

const (
	LineIdle       LineState = "idle"
	LineSubmitting LineState = "submitting"
	LineCommitted  LineState = "committed"
	LineRolledBack LineState = "rolled_back"
)

type lineKey struct {
	userID int
	isbn   string
}

// lineGate admits at most one in-flight mutation per (user, isbn). It
// guards against double submission from one storefront; concurrent edits
// from elsewhere are settled by the backend.
type lineGate struct {
	mu       sync.Mutex
	inflight map[lineKey]struct{}
}

func newLineGate() *lineGate {
	return &lineGate{inflight: make(map[lineKey]struct{})}
}

// acquire moves the line to Submitting. It fails with ErrLineBusy when the
// line is already Submitting. The returned func moves it back to Idle.
func (g *lineGate) acquire(userID int, isbn string) (func(), error) {
	k := lineKey{userID: userID, isbn: isbn}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[k]; busy {
		return nil, ErrLineBusy
	}
	g.inflight[k] = struct{}{}
	return func() {
		g.mu.Lock()
		delete(g.inflight, k)
		g.mu.Unlock()
	}, nil
}

func (g *lineGate) state(userID int, isbn string) LineState {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[lineKey{userID: userID, isbn: isbn}]; busy {
		return LineSubmitting
	}
	return LineIdle
}
