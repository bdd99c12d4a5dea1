package panzoom

import (
	"math"
	"testing"

	"github.com/memoraos/neuralmap/internal/graph"
	"github.com/memoraos/neuralmap/internal/view"
)

func TestDragPans(t *testing.T) {
	v := view.New()
	v.SetPan(graph.Point{X: 10, Y: -5})
	c := New(v)

	c.PointerDown(graph.Point{X: 100, Y: 100}, Primary)
	c.PointerMove(graph.Point{X: 130, Y: 80})
	if got, want := v.Pan(), (graph.Point{X: 40, Y: -25}); got != want {
		t.Errorf("pan = %+v, want %+v", got, want)
	}

	c.PointerMove(graph.Point{X: 90, Y: 110})
	if got, want := v.Pan(), (graph.Point{X: 0, Y: 5}); got != want {
		t.Errorf("pan = %+v, want %+v", got, want)
	}

	c.PointerUp()
	c.PointerMove(graph.Point{X: 500, Y: 500})
	if got, want := v.Pan(), (graph.Point{X: 0, Y: 5}); got != want {
		t.Errorf("pan moved after pointer up: %+v", got)
	}
}

func TestDragIgnoresOtherButtons(t *testing.T) {
	v := view.New()
	c := New(v)

	if c.PointerDown(graph.Point{}, Secondary) {
		t.Error("secondary button should not start a drag")
	}
	c.PointerMove(graph.Point{X: 50, Y: 50})
	if v.Pan() != (graph.Point{}) {
		t.Errorf("pan = %+v, want origin", v.Pan())
	}
}

func TestPointerLeaveEndsDrag(t *testing.T) {
	v := view.New()
	c := New(v)

	c.PointerDown(graph.Point{}, Primary)
	c.PointerLeave()
	if c.Dragging() {
		t.Error("expected drag to end on leave")
	}
	if c.PointerMove(graph.Point{X: 1, Y: 1}) {
		t.Error("move after leave should be ignored")
	}
}

func TestZoomKeys(t *testing.T) {
	v := view.New()
	c := New(v)

	tests := []struct {
		key  string
		want float64
	}{
		{"+", 1.2},
		{"=", 1.4},
		{"-", 1.2},
		{"0", 1.0},
	}
	for _, tt := range tests {
		if !c.Key(tt.key) {
			t.Errorf("Key(%q) not handled", tt.key)
		}
		if math.Abs(v.Zoom()-tt.want) > 1e-9 {
			t.Errorf("after %q zoom = %v, want %v", tt.key, v.Zoom(), tt.want)
		}
	}
	if c.Key("x") {
		t.Error("unrelated key should not be handled")
	}
}

func TestResetRecentersPan(t *testing.T) {
	v := view.New()
	c := New(v)
	c.PointerDown(graph.Point{}, Primary)
	c.PointerMove(graph.Point{X: 200, Y: 30})
	c.PointerUp()
	c.SetZoom(2.5)

	c.Reset()
	if v.Zoom() != view.DefaultZoom || v.Pan() != (graph.Point{}) {
		t.Errorf("zoom=%v pan=%+v, want 1 and origin", v.Zoom(), v.Pan())
	}
}

func TestZoomButtonsClamp(t *testing.T) {
	v := view.New()
	c := New(v)
	for i := 0; i < 50; i++ {
		c.ZoomIn()
	}
	if v.Zoom() != view.MaxZoom {
		t.Errorf("zoom = %v, want %v", v.Zoom(), view.MaxZoom)
	}
	for i := 0; i < 50; i++ {
		c.ZoomOut()
	}
	if v.Zoom() != view.MinZoom {
		t.Errorf("zoom = %v, want %v", v.Zoom(), view.MinZoom)
	}
	c.SetZoom(-4)
	if v.Zoom() != view.MinZoom {
		t.Errorf("SetZoom(-4) = %v, want %v", v.Zoom(), view.MinZoom)
	}
}
