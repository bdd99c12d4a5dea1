// Package scroll turns the first scroll gesture of a collapse cycle into the
// expand-then-orbit sequence.
package scroll

import (
	"time"

	"github.com/memoraos/neuralmap/internal/clock"
	"github.com/memoraos/neuralmap/internal/view"
	"go.uber.org/zap"
)

// Phase is the controller's position in the expansion sequence.
type Phase int

const (
	Idle Phase = iota
	Pending
	Expanded
	Settled
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Expanded:
		return "expanded"
	case Settled:
		return "settled"
	default:
		return "unknown"
	}
}

const (
	DefaultExpandDelay = 100 * time.Millisecond
	DefaultOrbitDelay  = 1200 * time.Millisecond
)

// Options configures a Controller.
type Options struct {
	ExpandDelay time.Duration
	OrbitDelay  time.Duration
	// RequestOrbit starts orbiting once the view has settled. It returns
	// false when something (hover, selection) vetoes it. Nil sets the view
	// state directly.
	RequestOrbit func() bool
	Log          *zap.Logger
}

// Controller runs at most one expansion sequence per collapse cycle.
// It is owned by the engine loop; schedule must deliver callbacks on that
// same goroutine.
type Controller struct {
	view     *view.State
	schedule clock.ScheduleFunc
	opts     Options
	log      *zap.Logger

	phase  Phase
	epoch  uint64
	seq    uint64
	cancel func()
}

// New creates an idle controller.
func New(v *view.State, schedule clock.ScheduleFunc, opts Options) *Controller {
	if opts.ExpandDelay <= 0 {
		opts.ExpandDelay = DefaultExpandDelay
	}
	if opts.OrbitDelay <= 0 {
		opts.OrbitDelay = DefaultOrbitDelay
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{view: v, schedule: schedule, opts: opts, log: log}
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase { return c.phase }

// Scroll reacts to a scroll or wheel gesture. Only the first gesture of a
// cycle starts the sequence; the return value reports whether this one did.
func (c *Controller) Scroll() bool {
	if c.phase != Idle || c.view.Expanded() {
		return false
	}
	c.phase = Pending
	c.epoch = c.view.Epoch()
	c.seq++
	seq := c.seq
	c.cancel = c.schedule(c.opts.ExpandDelay, func() { c.expand(seq) })
	c.log.Debug("scroll expansion pending", zap.Duration("delay", c.opts.ExpandDelay))
	return true
}

// Rearm cancels any pending stage and returns to Idle so the next scroll
// starts a new sequence. Called when the view collapses. A stage that has
// already fired but not yet run is dropped too.
func (c *Controller) Rearm() {
	c.seq++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.phase = Idle
}

func (c *Controller) current(seq uint64) bool {
	return seq == c.seq && c.epoch == c.view.Epoch()
}

func (c *Controller) expand(seq uint64) {
	if c.phase != Pending || !c.current(seq) || c.view.Expanded() {
		return
	}
	c.view.Expand()
	c.phase = Expanded
	c.cancel = c.schedule(c.opts.OrbitDelay, func() { c.orbit(seq) })
	c.log.Debug("view expanded", zap.Duration("orbit_delay", c.opts.OrbitDelay))
}

func (c *Controller) orbit(seq uint64) {
	if c.phase != Expanded || !c.current(seq) || !c.view.Expanded() {
		return
	}
	c.phase = Settled
	c.cancel = nil

	var started bool
	if c.opts.RequestOrbit != nil {
		started = c.opts.RequestOrbit()
	} else {
		started = c.view.SetOrbiting(true)
	}
	c.log.Debug("scroll sequence settled", zap.Bool("orbiting", started))
}
