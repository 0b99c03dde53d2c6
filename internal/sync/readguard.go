package sync

import (
	"time"

	"github.com/nhle/octobar/internal/model"
)

// readGuard remembers local read marks that a pass in flight must not
// overwrite with the unread state it fetched before the mark reached the
// remote. All methods run under Engine.writeMu.
//
// A mark is covered while its remote call is pending, and after a
// successful ack while the pass that was fetching at the time commits.
// A failed mark is forgotten, so the next pass restores the remote state.
// Threads updated after the mark stay unread.
type readGuard struct {
	pending    map[string]time.Time
	pendingAll []time.Time

	tracking bool
	acked    map[string]time.Time
	ackedAll time.Time
}

func newReadGuard() readGuard {
	return readGuard{pending: make(map[string]time.Time)}
}

// track starts collecting acks for the pass about to fetch.
func (g *readGuard) track() {
	g.tracking = true
	g.acked = make(map[string]time.Time)
	g.ackedAll = time.Time{}
}

func (g *readGuard) untrack() {
	g.tracking = false
	g.acked = nil
	g.ackedAll = time.Time{}
}

func (g *readGuard) begin(id string, at time.Time) {
	g.pending[id] = at
}

func (g *readGuard) end(id string, at time.Time, ok bool) {
	delete(g.pending, id)
	if ok && g.tracking {
		g.acked[id] = at
	}
}

func (g *readGuard) beginAll(cutoff time.Time) {
	g.pendingAll = append(g.pendingAll, cutoff)
}

func (g *readGuard) endAll(cutoff time.Time, ok bool) {
	for i, c := range g.pendingAll {
		if c.Equal(cutoff) {
			g.pendingAll = append(g.pendingAll[:i], g.pendingAll[i+1:]...)
			break
		}
	}
	if ok && g.tracking && cutoff.After(g.ackedAll) {
		g.ackedAll = cutoff
	}
}

// readAt returns when n was marked read locally, if a mark covers it.
func (g *readGuard) readAt(n model.NotificationRecord) (time.Time, bool) {
	var at time.Time
	if t, ok := g.pending[n.ID]; ok {
		at = t
	}
	if t, ok := g.acked[n.ID]; ok && t.After(at) {
		at = t
	}
	if g.ackedAll.After(at) {
		at = g.ackedAll
	}
	for _, c := range g.pendingAll {
		if c.After(at) {
			at = c
		}
	}
	if at.IsZero() || n.UpdatedAt.After(at) {
		return time.Time{}, false
	}
	return at, true
}

// apply returns a copy of records with covered threads marked read.
func (g *readGuard) apply(records []model.NotificationRecord) []model.NotificationRecord {
	out := make([]model.NotificationRecord, len(records))
	copy(out, records)
	for i := range out {
		if !out[i].Unread {
			continue
		}
		if at, ok := g.readAt(out[i]); ok {
			out[i].Unread = false
			out[i].LastReadAt = &at
		}
	}
	return out
}
