// Package latest keeps only the most recently issued request of a stream alive.
//
// A Gate is not safe for concurrent use on its own; the owning component calls
// it while holding the same mutex that guards the state the response would update.
package latest

import "context"

// Ticket identifies one issued request.
type Ticket uint64

type Gate struct {
	seq    uint64
	cancel context.CancelFunc
}

// Issue cancels the in-flight request, if any, and starts a new one.
func (g *Gate) Issue(parent context.Context) (context.Context, Ticket) {
	g.stop()
	g.seq++
	ctx, cancel := context.WithCancel(parent)
	g.cancel = cancel
	return ctx, Ticket(g.seq)
}

// Current reports whether t is the latest issued ticket and has not been invalidated.
func (g *Gate) Current(t Ticket) bool {
	return g.cancel != nil && Ticket(g.seq) == t
}

// Invalidate cancels the in-flight request and makes every issued ticket stale.
func (g *Gate) Invalidate() {
	g.stop()
	g.seq++
}

// Done releases the context of t once its response has been applied.
func (g *Gate) Done(t Ticket) {
	if g.Current(t) {
		g.cancel()
	}
}

// Seq returns the latest sequence number.
func (g *Gate) Seq() uint64 {
	return g.seq
}

func (g *Gate) stop() {
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
}
