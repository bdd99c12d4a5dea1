// Package orbit computes the orbital positions of category nodes.
//
// The animator keeps one accumulated "orbiting clock". Each tick adds the
// wall-clock delta since the previous tick, but only while orbiting; when
// orbiting stops the clock freezes in place, so resuming continues from the
// paused angle instead of jumping or resetting.
package orbit

import (
	"math"
	"time"

	"github.com/memoraos/neuralmap/internal/clock"
	"github.com/memoraos/neuralmap/internal/graph"
)

// Position returns a category's offset from the view center after
// elapsedMs milliseconds of orbiting.
func Position(c graph.Category, elapsedMs float64) graph.Point {
	deg := c.Angle + c.AngularVelocity*elapsedMs
	rad := deg * math.Pi / 180
	return graph.Point{
		X: math.Cos(rad) * c.Radius,
		Y: math.Sin(rad) * c.Radius,
	}
}

// AngleAt returns the category's angle in [0, 360) after elapsedMs.
func AngleAt(c graph.Category, elapsedMs float64) float64 {
	a := math.Mod(c.Angle+c.AngularVelocity*elapsedMs, 360)
	if a < 0 {
		a += 360
	}
	return a
}

// Animator tracks accumulated orbiting time. It is owned by the engine loop.
type Animator struct {
	clock   clock.Clock
	running bool
	last    time.Time
	elapsed time.Duration
}

// NewAnimator creates a stopped animator.
func NewAnimator(c clock.Clock) *Animator {
	return &Animator{clock: c}
}

// Start begins a new expansion cycle with a zeroed orbiting clock.
// Starting an already running animator is a no-op.
func (a *Animator) Start() {
	if a.running {
		return
	}
	a.running = true
	a.elapsed = 0
	a.last = a.clock.Now()
}

// Stop ends the cycle and discards accumulated time.
func (a *Animator) Stop() {
	a.running = false
	a.elapsed = 0
	a.last = time.Time{}
}

// Running reports whether a cycle is active.
func (a *Animator) Running() bool { return a.running }

// Elapsed returns the accumulated orbiting time.
func (a *Animator) Elapsed() time.Duration { return a.elapsed }

// ElapsedMs returns the accumulated orbiting time in milliseconds.
func (a *Animator) ElapsedMs() float64 {
	return float64(a.elapsed) / float64(time.Millisecond)
}

// Tick advances the orbiting clock by the time since the previous tick if
// orbiting is true. A stopped animator ignores ticks.
func (a *Animator) Tick(orbiting bool) {
	if !a.running {
		return
	}
	now := a.clock.Now()
	delta := now.Sub(a.last)
	if delta < 0 {
		delta = 0
	}
	a.last = now
	if orbiting {
		a.elapsed += delta
	}
}

// Positions computes every category's current offset. A stopped animator
// returns nil: categories are not laid out while collapsed.
func (a *Animator) Positions(cats []graph.Category) map[string]graph.Point {
	if !a.running {
		return nil
	}
	ms := a.ElapsedMs()
	out := make(map[string]graph.Point, len(cats))
	for _, c := range cats {
		out[c.ID] = Position(c, ms)
	}
	return out
}
