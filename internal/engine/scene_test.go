package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/memoraos/neuralmap/internal/adapter"
	"github.com/memoraos/neuralmap/internal/clock"
	"github.com/memoraos/neuralmap/internal/orbit"
	"github.com/memoraos/neuralmap/internal/provider"
	"github.com/memoraos/neuralmap/internal/store"
)

type fakeSource struct {
	mu      sync.Mutex
	payload provider.Payload
	calls   int
}

func (f *fakeSource) FetchGraph(ctx context.Context) provider.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.payload
}

func (f *fakeSource) set(p provider.Payload) {
	f.mu.Lock()
	f.payload = p
	f.mu.Unlock()
}

func payload(names ...string) provider.Payload {
	p := provider.Payload{
		Nodes: []provider.Node{{ID: "you", Type: "CENTRAL", Label: "YOU"}},
	}
	for _, n := range names {
		id := "category_" + n
		p.Nodes = append(p.Nodes, provider.Node{ID: id, Type: "CATEGORY", Name: n})
		p.Edges = append(p.Edges, provider.Edge{Source: "you", Target: id, Relation: "HAS_CATEGORY"})
	}
	return p
}

type harness struct {
	t     *testing.T
	scene *Scene
	clk   *clock.Fake
	sched *orbit.ManualScheduler
	src   *fakeSource
}

func startScene(t *testing.T, opts Options, initial provider.Payload) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		clk:   clock.NewFake(),
		sched: &orbit.ManualScheduler{},
		src:   &fakeSource{payload: initial},
	}
	opts.Clock = h.clk
	opts.Scheduler = h.sched
	if opts.Source == nil {
		opts.Source = h.src
	}
	h.scene = NewScene(opts)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.scene.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errc; err != nil {
			t.Errorf("Run: %v", err)
		}
	})

	if _, err := h.scene.Refresh(context.Background()); err != nil {
		t.Fatalf("initial Refresh: %v", err)
	}
	return h
}

func (h *harness) frame() Frame {
	h.t.Helper()
	f, err := h.scene.Frame(context.Background())
	if err != nil {
		h.t.Fatalf("Frame: %v", err)
	}
	return f
}

func (h *harness) dispatch(ev Event) Frame {
	h.t.Helper()
	f, err := h.scene.Dispatch(context.Background(), ev)
	if err != nil {
		h.t.Fatalf("Dispatch(%+v): %v", ev, err)
	}
	return f
}

// advance moves the clock and waits for any timer callbacks to be applied.
func (h *harness) advance(d time.Duration) Frame {
	h.t.Helper()
	h.clk.Advance(d)
	return h.frame()
}

// expandAndOrbit runs the scroll sequence to completion.
func (h *harness) expandAndOrbit() Frame {
	h.t.Helper()
	h.dispatch(Event{Type: EventScroll})
	h.advance(100 * time.Millisecond)
	f := h.advance(1200 * time.Millisecond)
	if !f.View.Expanded || !f.View.Orbiting {
		h.t.Fatalf("after scroll sequence: expanded=%v orbiting=%v", f.View.Expanded, f.View.Orbiting)
	}
	return f
}

func TestCollapsedFrameShowsOnlyCentral(t *testing.T) {
	h := startScene(t, Options{}, payload("work", "travel"))

	f := h.frame()
	if len(f.Nodes) != 1 || f.Nodes[0].ID != "you" {
		t.Fatalf("nodes = %+v, want only central", f.Nodes)
	}
	if len(f.Edges) != 0 {
		t.Errorf("edges = %+v, want none while collapsed", f.Edges)
	}
	if h.sched.Running() {
		t.Error("tick loop running while collapsed")
	}
}

func TestScrollExpandsThenOrbits(t *testing.T) {
	h := startScene(t, Options{}, payload("work", "finances", "travel", "health", "ideas"))

	f := h.dispatch(Event{Type: EventScroll})
	if f.View.Expanded {
		t.Fatal("expanded immediately on scroll")
	}

	f = h.advance(50 * time.Millisecond)
	if f.View.Expanded || f.View.Orbiting {
		t.Fatal("state changed inside the first delay window")
	}

	f = h.advance(50 * time.Millisecond)
	if !f.View.Expanded || f.View.Orbiting {
		t.Fatalf("at 100ms: expanded=%v orbiting=%v, want true/false", f.View.Expanded, f.View.Orbiting)
	}
	if !h.sched.Running() {
		t.Fatal("tick loop should start with expansion")
	}
	if len(f.Nodes) != 6 || len(f.Edges) != 5 {
		t.Errorf("nodes=%d edges=%d, want 6 and 5", len(f.Nodes), len(f.Edges))
	}

	f = h.advance(1200 * time.Millisecond)
	if !f.View.Orbiting {
		t.Fatal("expected orbiting after second delay")
	}
}

func TestOrbitRotatesNinetyDegrees(t *testing.T) {
	h := startScene(t, Options{}, payload("a", "b", "c", "d", "e"))
	h.expandAndOrbit()

	// 90° at 0.00028 deg/ms takes 321428.57ms; step in whole seconds then
	// the remainder.
	total := time.Duration(90 / 0.00028 * float64(time.Millisecond))
	for elapsed := time.Duration(0); elapsed < total; {
		step := min(time.Second, total-elapsed)
		h.clk.Advance(step)
		h.sched.Fire()
		elapsed += step
	}
	f := h.frame()

	for i, want := range []float64{90, 162, 234, 306, 18} {
		id := "category_" + string(rune('a'+i))
		n, ok := f.Node(id)
		if !ok {
			t.Fatalf("%s missing from frame", id)
		}
		if math.Abs(n.Angle-want) > 1e-3 {
			t.Errorf("%s angle = %v, want %v", id, n.Angle, want)
		}
		r := math.Hypot(n.Position.X, n.Position.Y)
		if math.Abs(r-280) > 1e-6 {
			t.Errorf("%s radius = %v, want 280", id, r)
		}
	}
}

func TestHoverPausesOrbit(t *testing.T) {
	h := startScene(t, Options{}, payload("finance", "work"))
	h.expandAndOrbit()

	f := h.dispatch(Event{Type: EventHoverEnter, NodeID: "category_finance"})
	if f.View.Orbiting {
		t.Fatal("hover should pause orbiting")
	}
	if f.Hovered != "category_finance" {
		t.Errorf("hovered = %q", f.Hovered)
	}
	before, _ := f.Node("category_work")

	h.clk.Advance(5 * time.Second)
	h.sched.Fire()
	f = h.frame()
	after, _ := f.Node("category_work")
	if before.Position != after.Position {
		t.Errorf("position moved while paused: %+v -> %+v", before.Position, after.Position)
	}

	f = h.dispatch(Event{Type: EventHoverLeave, NodeID: "category_finance"})
	if !f.View.Orbiting {
		t.Fatal("un-hover should resume orbiting")
	}
	h.clk.Advance(time.Second)
	h.sched.Fire()
	f = h.frame()
	if math.Abs(f.ElapsedMs-1000) > 1e-6 {
		t.Errorf("elapsed = %vms, want 1000 (paused time excluded)", f.ElapsedMs)
	}
}

func TestCentralClickCollapsesFromAnyState(t *testing.T) {
	h := startScene(t, Options{}, payload("work", "travel"))
	h.expandAndOrbit()

	h.dispatch(Event{Type: EventSearch, Query: "work"})
	h.dispatch(Event{Type: EventClick, NodeID: "category_work"})
	h.dispatch(Event{Type: EventZoomIn})
	f := h.dispatch(Event{Type: EventClick, NodeID: "you"})

	v := f.View
	if v.Expanded || v.Orbiting || v.SelectedCategory != "" || v.SelectedNode != "" {
		t.Errorf("after central click: %+v", v)
	}
	if f.Transform.Zoom != 1 {
		t.Errorf("zoom = %v, want reset to 1", f.Transform.Zoom)
	}
	if h.sched.Running() {
		t.Error("tick loop should stop on collapse")
	}
	if starts, stops := h.sched.Counts(); starts != 1 || stops != 1 {
		t.Errorf("scheduler starts/stops = %d/%d, want 1/1", starts, stops)
	}

	// A new cycle can begin.
	f = h.expandAndOrbit()
	if f.ElapsedMs != 0 {
		t.Errorf("elapsed = %v after restart, want 0", f.ElapsedMs)
	}
}

func TestCollapseDuringPendingScroll(t *testing.T) {
	h := startScene(t, Options{}, payload("work"))

	h.dispatch(Event{Type: EventScroll})
	h.advance(50 * time.Millisecond)
	h.dispatch(Event{Type: EventClick, NodeID: "you"})

	f := h.advance(2 * time.Second)
	if f.View.Expanded || f.View.Orbiting {
		t.Fatalf("pending stage applied after collapse: %+v", f.View)
	}

	// Re-armed: the next scroll works.
	h.expandAndOrbit()
}

func TestSelectionFlagsInFrame(t *testing.T) {
	h := startScene(t, Options{}, payload("work", "travel"))
	h.expandAndOrbit()

	f := h.dispatch(Event{Type: EventClick, NodeID: "category_work"})
	if f.View.Orbiting || !f.View.Expanded {
		t.Fatalf("category click: %+v", f.View)
	}
	work, _ := f.Node("category_work")
	travel, _ := f.Node("category_travel")
	central, _ := f.Node("you")
	if !work.Selected || work.Dimmed {
		t.Errorf("work flags = %+v", work.NodeFlags)
	}
	if !travel.Dimmed {
		t.Errorf("travel flags = %+v", travel.NodeFlags)
	}
	if central.Dimmed {
		t.Errorf("central flags = %+v", central.NodeFlags)
	}
	for _, e := range f.Edges {
		if e.Target == "category_work" && !e.Selected {
			t.Errorf("edge to work not selected: %+v", e)
		}
		if e.Target == "category_travel" && !e.Dimmed {
			t.Errorf("edge to travel not dimmed: %+v", e)
		}
	}

	f = h.dispatch(Event{Type: EventDeselect})
	if !f.View.Orbiting {
		t.Error("deselect should resume orbiting")
	}
}

func TestSearchPulseAndHighlight(t *testing.T) {
	h := startScene(t, Options{}, payload("work", "travel"))
	h.expandAndOrbit()

	f := h.dispatch(Event{Type: EventSearch, Query: " trav "})
	if !f.View.Searching || f.View.SearchQuery != "trav" {
		t.Fatalf("view = %+v", f.View)
	}
	travel, _ := f.Node("category_travel")
	work, _ := f.Node("category_work")
	central, _ := f.Node("you")
	if !travel.Highlighted || travel.Dimmed {
		t.Errorf("travel flags = %+v", travel.NodeFlags)
	}
	if !work.Dimmed {
		t.Errorf("work flags = %+v", work.NodeFlags)
	}
	if !central.Highlighted {
		t.Errorf("central flags = %+v", central.NodeFlags)
	}

	f = h.advance(2 * time.Second)
	if f.View.Searching {
		t.Error("searching should clear after 2s")
	}
	if f.View.SearchQuery != "trav" {
		t.Errorf("query = %q, want kept", f.View.SearchQuery)
	}
}

func TestPanZoomEvents(t *testing.T) {
	h := startScene(t, Options{}, payload("work"))

	h.dispatch(Event{Type: EventPointerDown, X: 10, Y: 10})
	f := h.dispatch(Event{Type: EventPointerMove, X: 40, Y: -10})
	if f.Transform.Pan.X != 30 || f.Transform.Pan.Y != -20 {
		t.Errorf("pan = %+v, want (30, -20)", f.Transform.Pan)
	}
	h.dispatch(Event{Type: EventPointerLeave})
	f = h.dispatch(Event{Type: EventPointerMove, X: 500, Y: 500})
	if f.Transform.Pan.X != 30 {
		t.Errorf("pan moved after leave: %+v", f.Transform.Pan)
	}

	h.dispatch(Event{Type: EventKey, Key: "+"})
	f = h.dispatch(Event{Type: EventZoomSet, Zoom: 10})
	if f.Transform.Zoom != 3 {
		t.Errorf("zoom = %v, want clamped to 3", f.Transform.Zoom)
	}
	f = h.dispatch(Event{Type: EventKey, Key: "0"})
	if f.Transform.Zoom != 1 || f.Transform.Pan.X != 0 {
		t.Errorf("after reset: %+v", f.Transform)
	}
}

func TestInvalidEventRejected(t *testing.T) {
	h := startScene(t, Options{}, payload("work"))

	for _, ev := range []Event{
		{Type: "teleport"},
		{},
		{Type: EventClick},
		{Type: EventKey},
		{Type: EventPointerDown, Button: 9},
	} {
		if _, err := h.scene.Dispatch(context.Background(), ev); !errors.Is(err, ErrInvalidEvent) {
			t.Errorf("Dispatch(%+v) err = %v, want ErrInvalidEvent", ev, err)
		}
	}
}

func TestZeroCategoriesKeepsPrevious(t *testing.T) {
	h := startScene(t, Options{}, payload("work", "finances", "travel", "health"))
	h.expandAndOrbit()

	h.src.set(provider.Payload{})
	out, err := h.scene.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if out != adapter.KeptPrevious {
		t.Errorf("outcome = %v, want kept_previous", out)
	}
	f := h.frame()
	if len(f.Nodes) != 5 {
		t.Errorf("nodes = %d, want central + 4 previous categories", len(f.Nodes))
	}
}

func TestCancelledRefreshNotApplied(t *testing.T) {
	h := startScene(t, Options{}, payload("work"))

	h.src.set(payload("travel", "health"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.scene.Refresh(ctx); err == nil {
		t.Fatal("expected error for cancelled refresh")
	}

	h.dispatch(Event{Type: EventScroll})
	f := h.advance(100 * time.Millisecond)
	if _, ok := f.Node("category_work"); !ok {
		t.Errorf("cancelled refresh replaced the graph: %+v", f.Nodes)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.SaveSnapshot("seed", payload("ideas", "reading")); err != nil {
		t.Fatal(err)
	}

	// Source has nothing: the stored snapshot is what gets shown.
	h := startScene(t, Options{Store: db, SourceName: "test", KeepSnapshots: 2}, provider.Payload{})
	h.dispatch(Event{Type: EventScroll})
	f := h.advance(100 * time.Millisecond)
	if _, ok := f.Node("category_reading"); !ok {
		t.Fatalf("stored snapshot not loaded: %+v", f.Nodes)
	}

	for _, names := range [][]string{{"work"}, {"travel"}, {"health"}} {
		h.src.set(payload(names...))
		out, err := h.scene.Refresh(context.Background())
		if err != nil || out != adapter.Applied {
			t.Fatalf("Refresh = %v, %v", out, err)
		}
	}

	n, err := db.CountSnapshots()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("stored snapshots = %d, want pruned to 2", n)
	}
	latest, err := db.LatestSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if latest.Source != "test" || latest.Payload.Nodes[1].ID != "category_health" {
		t.Errorf("latest = %+v", latest)
	}
}

func TestSubscribeReceivesFrames(t *testing.T) {
	h := startScene(t, Options{}, payload("work"))

	frames, cancel := h.scene.Subscribe()
	defer cancel()

	first := <-frames
	h.dispatch(Event{Type: EventZoomIn})

	select {
	case f := <-frames:
		if f.Seq <= first.Seq {
			t.Errorf("seq did not advance: %d -> %d", first.Seq, f.Seq)
		}
		if math.Abs(f.Transform.Zoom-1.2) > 1e-9 {
			t.Errorf("zoom = %v, want 1.2", f.Transform.Zoom)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame after zoom")
	}

	cancel()
	if _, ok := <-frames; ok {
		t.Error("channel should be closed after cancel")
	}
}

func TestSlowSubscriberGetsLatest(t *testing.T) {
	h := startScene(t, Options{}, payload("work"))

	frames, cancel := h.scene.Subscribe()
	defer cancel()

	for i := 0; i < 5; i++ {
		h.dispatch(Event{Type: EventZoomIn})
	}
	last := h.frame()

	f := <-frames
	if f.Seq != last.Seq {
		t.Errorf("buffered frame seq = %d, want latest %d", f.Seq, last.Seq)
	}
}
