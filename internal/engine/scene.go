// Package engine composes the view state and its controllers into a Scene:
// one goroutine that owns every mutation, runs the orbital tick loop, and
// publishes render-ready frames.
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/memoraos/neuralmap/internal/adapter"
	"github.com/memoraos/neuralmap/internal/clock"
	"github.com/memoraos/neuralmap/internal/graph"
	"github.com/memoraos/neuralmap/internal/orbit"
	"github.com/memoraos/neuralmap/internal/panzoom"
	"github.com/memoraos/neuralmap/internal/provider"
	"github.com/memoraos/neuralmap/internal/scroll"
	"github.com/memoraos/neuralmap/internal/search"
	"github.com/memoraos/neuralmap/internal/selection"
	"github.com/memoraos/neuralmap/internal/store"
	"github.com/memoraos/neuralmap/internal/view"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ErrClosed is returned once the scene's loop has exited.
var ErrClosed = errors.New("scene closed")

// SnapshotStore persists last-good payloads. *store.DB implements it.
type SnapshotStore interface {
	SaveSnapshot(source string, p provider.Payload) (*store.Snapshot, error)
	LatestSnapshot() (*store.Snapshot, error)
	PruneSnapshots(keep int) (int64, error)
}

// Options configures a Scene. Zero values pick defaults; Source and Store
// are optional.
type Options struct {
	Clock     clock.Clock
	Scheduler orbit.Scheduler
	Source    provider.Source
	Store     SnapshotStore
	// SourceName is recorded with every stored snapshot.
	SourceName string

	Layout       adapter.Options
	ExpandDelay  time.Duration
	OrbitDelay   time.Duration
	SearchPulse  time.Duration
	PollInterval time.Duration // 0 disables periodic refresh
	// KeepSnapshots bounds the store; older snapshots are pruned after
	// each save. 0 keeps everything.
	KeepSnapshots int

	Metrics *Metrics
	Log     *zap.Logger
}

type op struct {
	fn    func()
	reply chan Frame
}

// Scene is the headless graph view.
type Scene struct {
	opts    Options
	log     *zap.Logger
	metrics *Metrics

	view      *view.State
	adapter   *adapter.Adapter
	animator  *orbit.Animator
	sched     orbit.Scheduler
	scroll    *scroll.Controller
	panzoom   *panzoom.Controller
	selection *selection.Coordinator
	pulse     *search.Pulse

	inbox   chan op
	ticks   chan struct{}
	done    chan struct{}
	running atomic.Bool

	// loop-owned
	current     Frame
	lastRev     uint64
	lastEpoch   uint64
	wasExpanded bool
	wasOrbiting bool
	dirty       bool

	mu        sync.Mutex
	subs      map[chan Frame]struct{}
	published Frame
}

// NewScene wires a scene. Call Run to start it.
func NewScene(opts Options) *Scene {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Scheduler == nil {
		opts.Scheduler = orbit.NewTickerScheduler(16 * time.Millisecond)
	}
	if opts.Layout.Radius == 0 {
		opts.Layout = adapter.DefaultOptions()
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(prometheus.NewRegistry())
	}

	s := &Scene{
		opts:    opts,
		log:     opts.Log,
		metrics: opts.Metrics,
		view:    view.New(),
		sched:   opts.Scheduler,
		inbox:   make(chan op, 64),
		ticks:   make(chan struct{}, 1),
		done:    make(chan struct{}),
		subs:    make(map[chan Frame]struct{}),
	}
	schedule := clock.Schedule(opts.Clock, s.post)

	s.adapter = adapter.New(opts.Layout, opts.Log.Named("adapter"))
	s.animator = orbit.NewAnimator(opts.Clock)
	s.panzoom = panzoom.New(s.view)
	s.selection = selection.New(s.view)
	s.pulse = search.NewPulse(s.view, schedule, opts.SearchPulse)
	s.scroll = scroll.New(s.view, schedule, scroll.Options{
		ExpandDelay:  opts.ExpandDelay,
		OrbitDelay:   opts.OrbitDelay,
		RequestOrbit: s.selection.RequestOrbit,
		Log:          opts.Log.Named("scroll"),
	})
	s.current = s.build()
	s.published = s.current
	return s
}

// Run loads the last stored snapshot, kicks off a fetch, and serves the
// loop until ctx is done. It returns nil on a clean shutdown.
func (s *Scene) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("scene already running")
	}
	defer s.shutdown()

	s.loadStored()
	s.dirty = true
	s.reconcile()

	if s.opts.Source != nil {
		s.startFetch(ctx)
	}

	var poll <-chan time.Time
	if s.opts.Source != nil && s.opts.PollInterval > 0 {
		t := time.NewTicker(s.opts.PollInterval)
		defer t.Stop()
		poll = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case o := <-s.inbox:
			// A tick queued before this op is applied first.
			select {
			case <-s.ticks:
				s.tick()
			default:
			}
			o.fn()
			s.reconcile()
			if o.reply != nil {
				o.reply <- s.current
			}
		case <-s.ticks:
			s.tick()
		case <-poll:
			s.startFetch(ctx)
		}
	}
}

func (s *Scene) shutdown() {
	s.sched.Stop()
	s.animator.Stop()
	s.scroll.Rearm()
	s.adapter.Cancel()
	close(s.done)

	s.mu.Lock()
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
	s.mu.Unlock()
	s.metrics.subscribers.Set(0)
}

// post queues fn on the loop without waiting for it. Timer callbacks use it
// to hop onto the loop goroutine.
func (s *Scene) post(fn func()) {
	select {
	case s.inbox <- op{fn: fn}:
	case <-s.done:
	}
}

// do runs fn on the loop and returns the frame as it stands afterwards.
func (s *Scene) do(ctx context.Context, fn func()) (Frame, error) {
	reply := make(chan Frame, 1)
	select {
	case s.inbox <- op{fn: fn, reply: reply}:
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-s.done:
		return Frame{}, ErrClosed
	}
	select {
	case f := <-reply:
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-s.done:
		return Frame{}, ErrClosed
	}
}

// Dispatch validates and applies one input event, returning the resulting
// frame.
func (s *Scene) Dispatch(ctx context.Context, ev Event) (Frame, error) {
	if err := ev.Validate(); err != nil {
		return Frame{}, err
	}
	return s.do(ctx, func() { s.apply(ev) })
}

// Frame returns the current frame once every queued input has been applied.
func (s *Scene) Frame(ctx context.Context) (Frame, error) {
	return s.do(ctx, func() {})
}

// Subscribe returns a channel of frames and a cancel func. The channel
// holds only the newest frame; a slow reader skips frames rather than
// stalling the loop. It is closed on cancel or when the scene stops.
func (s *Scene) Subscribe() (<-chan Frame, func()) {
	ch := make(chan Frame, 1)
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}
	s.subs[ch] = struct{}{}
	ch <- s.published
	s.mu.Unlock()
	s.metrics.subscribers.Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
				s.metrics.subscribers.Dec()
			}
		})
	}
}

// Refresh fetches the graph now and applies it, returning what the adapter
// did with the result.
func (s *Scene) Refresh(ctx context.Context) (adapter.Outcome, error) {
	if s.opts.Source == nil {
		return adapter.KeptPrevious, errors.New("no graph source configured")
	}
	var tok adapter.Token
	if _, err := s.do(ctx, func() { tok = s.adapter.Begin() }); err != nil {
		return adapter.Stale, err
	}
	return s.fetch(ctx, tok)
}

func (s *Scene) startFetch(ctx context.Context) {
	tok := s.adapter.Begin()
	go func() {
		if _, err := s.fetch(ctx, tok); err != nil && !errors.Is(err, ErrClosed) && ctx.Err() == nil {
			s.log.Warn("background fetch failed", zap.Error(err))
		}
	}()
}

// fetch runs off the loop. The payload is applied on the loop under tok, so
// a newer fetch or a shutdown in the meantime turns it into a no-op.
func (s *Scene) fetch(ctx context.Context, tok adapter.Token) (adapter.Outcome, error) {
	p := s.opts.Source.FetchGraph(ctx)
	if ctx.Err() != nil {
		s.post(func() { s.recordOutcome(adapter.Stale) })
		return adapter.Stale, ctx.Err()
	}

	var out adapter.Outcome
	if _, err := s.do(ctx, func() { out = s.applyPayload(tok, p) }); err != nil {
		return adapter.Stale, err
	}
	if out == adapter.Applied {
		s.persist(p)
	}
	return out, nil
}

func (s *Scene) persist(p provider.Payload) {
	if s.opts.Store == nil {
		return
	}
	saved, err := s.opts.Store.SaveSnapshot(s.opts.SourceName, p)
	if err != nil {
		s.log.Warn("save snapshot failed", zap.Error(err))
		return
	}
	if s.opts.KeepSnapshots > 0 {
		if n, err := s.opts.Store.PruneSnapshots(s.opts.KeepSnapshots); err != nil {
			s.log.Warn("prune snapshots failed", zap.Error(err))
		} else if n > 0 {
			s.log.Debug("pruned snapshots", zap.Int64("removed", n))
		}
	}
	s.log.Debug("snapshot saved", zap.Int64("id", saved.ID), zap.Int("categories", saved.CategoryCount))
}

func (s *Scene) loadStored() {
	if s.opts.Store == nil {
		return
	}
	snap, err := s.opts.Store.LatestSnapshot()
	if err != nil {
		s.log.Warn("load stored snapshot failed", zap.Error(err))
		return
	}
	if snap == nil {
		return
	}
	out := s.adapter.Apply(s.adapter.Begin(), snap.Payload)
	s.dirty = true
	s.log.Info("loaded stored snapshot",
		zap.Int64("id", snap.ID),
		zap.Int("categories", snap.CategoryCount),
		zap.Stringer("outcome", out))
}

func (s *Scene) applyPayload(tok adapter.Token, p provider.Payload) adapter.Outcome {
	out := s.adapter.Apply(tok, p)
	s.recordOutcome(out)
	switch out {
	case adapter.Applied:
		s.dirty = true
		s.dropVanished()
		s.log.Debug("graph applied", zap.Int("categories", len(s.adapter.Current().Categories)))
	case adapter.KeptPrevious:
		s.log.Info("graph fetch yielded no categories, keeping previous")
	}
	return out
}

func (s *Scene) recordOutcome(out adapter.Outcome) {
	s.metrics.fetches.WithLabelValues(out.String()).Inc()
}

// dropVanished releases a hover on a category that the new snapshot no
// longer has, so the pause it holds does not stick.
func (s *Scene) dropVanished() {
	if id, ok := s.selection.Hovered(); ok {
		if _, still := s.adapter.Current().Category(id); !still {
			s.selection.HoverLeave(id)
		}
	}
}

func (s *Scene) apply(ev Event) {
	s.metrics.events.WithLabelValues(string(ev.Type)).Inc()
	p := graph.Point{X: ev.X, Y: ev.Y}

	switch ev.Type {
	case EventScroll:
		s.scroll.Scroll()
	case EventPointerDown:
		s.panzoom.PointerDown(p, panzoom.Button(ev.Button))
	case EventPointerMove:
		s.panzoom.PointerMove(p)
	case EventPointerUp:
		s.panzoom.PointerUp()
	case EventPointerLeave:
		s.panzoom.PointerLeave()
	case EventClick:
		s.click(ev.NodeID)
	case EventHoverEnter:
		if s.visibleCategory(ev.NodeID) {
			s.selection.HoverEnter(ev.NodeID)
			s.dirty = true
		}
	case EventHoverLeave:
		if _, ok := s.selection.Hovered(); ok {
			s.selection.HoverLeave(ev.NodeID)
			s.dirty = true
		}
	case EventDeselect:
		s.selection.ClearCategory()
	case EventKey:
		s.panzoom.Key(ev.Key)
	case EventZoomIn:
		s.panzoom.ZoomIn()
	case EventZoomOut:
		s.panzoom.ZoomOut()
	case EventZoomReset:
		s.panzoom.Reset()
	case EventZoomSet:
		s.panzoom.SetZoom(ev.Zoom)
	case EventSearch:
		s.pulse.Submit(ev.Query)
	}
}

func (s *Scene) click(id string) {
	snap := s.adapter.Current()
	switch {
	case id == snap.CentralID():
		s.selection.ClickCentral()
		s.dirty = true
	case s.visibleCategory(id):
		s.selection.ClickCategory(id)
	default:
		s.log.Debug("click on unknown node ignored", zap.String("node_id", id))
	}
}

func (s *Scene) visibleCategory(id string) bool {
	if !s.view.Expanded() {
		return false
	}
	_, ok := s.adapter.Current().Category(id)
	return ok
}

// onTick is handed to the scheduler. It never blocks: if a tick is already
// queued this one is dropped.
func (s *Scene) onTick() {
	select {
	case s.ticks <- struct{}{}:
	default:
	}
}

func (s *Scene) tick() {
	if !s.animator.Running() {
		return
	}
	s.metrics.ticks.Inc()
	before := s.animator.Elapsed()
	s.animator.Tick(s.view.Orbiting())
	if s.animator.Elapsed() != before {
		s.dirty = true
	}
	s.reconcile()
}

// reconcile ties the tick loop to the expanded flag, re-arms scrolling on
// collapse, and publishes a frame if anything visible changed.
func (s *Scene) reconcile() {
	// Settle the orbiting clock up to now under the old flag, so a pause or
	// resume takes effect at the instant it happened rather than at the
	// next tick.
	if orb := s.view.Orbiting(); orb != s.wasOrbiting {
		s.animator.Tick(s.wasOrbiting)
		s.wasOrbiting = orb
	}

	if epoch := s.view.Epoch(); epoch != s.lastEpoch {
		s.lastEpoch = epoch
		s.scroll.Rearm()
		s.panzoom.PointerUp()
	}

	if exp := s.view.Expanded(); exp != s.wasExpanded {
		s.wasExpanded = exp
		if exp {
			s.animator.Start()
			s.sched.Start(s.onTick)
			s.metrics.expansions.Inc()
			s.log.Debug("orbit loop started")
		} else {
			s.sched.Stop()
			s.animator.Stop()
			s.log.Debug("orbit loop stopped")
		}
		s.dirty = true
	}

	if rev := s.view.Revision(); rev != s.lastRev {
		s.lastRev = rev
		s.dirty = true
	}
	if !s.dirty {
		return
	}
	s.dirty = false
	s.publish(s.build())
}

func (s *Scene) build() Frame {
	snap := s.adapter.Current()
	positions := s.animator.Positions(snap.Categories)
	var angles map[string]float64
	if positions != nil {
		ms := s.animator.ElapsedMs()
		angles = make(map[string]float64, len(snap.Categories))
		for _, c := range snap.Categories {
			angles[c.ID] = orbit.AngleAt(c, ms)
		}
	}
	hovered, _ := s.selection.Hovered()
	f := buildFrame(snap, s.view, positions, angles, hovered)
	f.ElapsedMs = s.animator.ElapsedMs()
	return f
}

func (s *Scene) publish(f Frame) {
	f.Seq = s.current.Seq + 1
	s.current = f
	s.metrics.frames.Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = f
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- f
	}
}
