// Package panzoom maps pointer drags, zoom buttons and zoom keys onto the
// view's pan offset and zoom level.
package panzoom

import (
	"github.com/memoraos/neuralmap/internal/graph"
	"github.com/memoraos/neuralmap/internal/view"
)

// Button identifies a pointer button. Only the primary button pans.
type Button int

const (
	Primary Button = iota
	Middle
	Secondary
)

// Controller tracks one drag gesture at a time. It is owned by the engine
// loop.
type Controller struct {
	view *view.State

	dragging      bool
	originPointer graph.Point
	originPan     graph.Point
}

// New creates a controller acting on v.
func New(v *view.State) *Controller {
	return &Controller{view: v}
}

// Dragging reports whether a drag is in progress.
func (c *Controller) Dragging() bool { return c.dragging }

// PointerDown starts a drag from p. Non-primary buttons are ignored.
func (c *Controller) PointerDown(p graph.Point, b Button) bool {
	if b != Primary {
		return false
	}
	c.dragging = true
	c.originPointer = p
	c.originPan = c.view.Pan()
	return true
}

// PointerMove pans by the distance from the drag origin.
func (c *Controller) PointerMove(p graph.Point) bool {
	if !c.dragging {
		return false
	}
	c.view.SetPan(c.originPan.Add(p.Sub(c.originPointer)))
	return true
}

// PointerUp ends the drag. PointerLeave is the same thing.
func (c *Controller) PointerUp() { c.dragging = false }

func (c *Controller) PointerLeave() { c.PointerUp() }

func (c *Controller) ZoomIn()           { c.view.ZoomIn() }
func (c *Controller) ZoomOut()          { c.view.ZoomOut() }
func (c *Controller) Reset()            { c.view.ResetZoom() }
func (c *Controller) SetZoom(z float64) { c.view.SetZoom(z) }

// Key handles a zoom shortcut and reports whether the key was one.
func (c *Controller) Key(key string) bool {
	switch key {
	case "+", "=":
		c.ZoomIn()
	case "-":
		c.ZoomOut()
	case "0":
		c.Reset()
	default:
		return false
	}
	return true
}
