// Package search derives highlighted nodes from the search query and drives
// the short "searching" pulse after a submission.
package search

import (
	"strings"
	"time"

	"github.com/memoraos/neuralmap/internal/clock"
	"github.com/memoraos/neuralmap/internal/graph"
	"github.com/memoraos/neuralmap/internal/view"
)

// DefaultPulse is how long the searching flag stays on after a submission.
const DefaultPulse = 2 * time.Second

// Set is a set of node IDs.
type Set map[string]struct{}

// Has reports membership. A nil Set has no members.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Active reports whether the set is non-empty, i.e. a search is in effect.
func (s Set) Active() bool { return len(s) > 0 }

// Highlight returns the IDs of nodes whose label contains query, ignoring
// case. An empty (after trimming) query highlights nothing. Otherwise the
// central node is always included.
func Highlight(query string, nodes []graph.Node, centralID string) Set {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	out := Set{}
	if centralID != "" {
		out[centralID] = struct{}{}
	}
	for _, n := range nodes {
		if n.ID == "" {
			continue
		}
		if strings.Contains(strings.ToLower(n.Label), q) {
			out[n.ID] = struct{}{}
		}
	}
	return out
}

// Pulse applies search submissions to the view state. It is owned by the
// engine loop; schedule must deliver callbacks on that goroutine.
type Pulse struct {
	view     *view.State
	schedule clock.ScheduleFunc
	duration time.Duration

	gen    uint64
	cancel func()
}

// NewPulse creates a Pulse. A non-positive duration uses DefaultPulse.
func NewPulse(v *view.State, schedule clock.ScheduleFunc, d time.Duration) *Pulse {
	if d <= 0 {
		d = DefaultPulse
	}
	return &Pulse{view: v, schedule: schedule, duration: d}
}

// Submit stores the trimmed query and turns the searching flag on for the
// pulse duration. An empty query clears the search and the flag at once.
// A newer submission replaces the pending clear of an older one.
func (p *Pulse) Submit(query string) {
	q := strings.TrimSpace(query)
	p.stop()
	if q == "" {
		p.view.SetSearchQuery("")
		p.view.SetSearching(false)
		return
	}

	p.view.SetSearchQuery(q)
	p.view.SetSearching(true)
	gen := p.gen
	p.cancel = p.schedule(p.duration, func() {
		if gen != p.gen {
			return
		}
		p.cancel = nil
		p.view.SetSearching(false)
	})
}

func (p *Pulse) stop() {
	p.gen++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}
