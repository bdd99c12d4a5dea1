// Package selection resolves clicks and hovers on graph nodes into view
// state changes, and derives the per-node and per-edge render flags.
package selection

import (
	"github.com/memoraos/neuralmap/internal/graph"
	"github.com/memoraos/neuralmap/internal/search"
	"github.com/memoraos/neuralmap/internal/view"
)

// Coordinator owns the hover signal and applies the pause rule: while a
// category is hovered or selected, orbiting is off. It is owned by the
// engine loop.
type Coordinator struct {
	view    *view.State
	hovered string
}

// New creates a coordinator acting on v.
func New(v *view.State) *Coordinator {
	return &Coordinator{view: v}
}

// Hovered returns the hovered category ID, if any.
func (c *Coordinator) Hovered() (string, bool) {
	return c.hovered, c.hovered != ""
}

func (c *Coordinator) paused() bool {
	_, selected := c.view.SelectedCategory()
	return c.hovered != "" || selected
}

// ClickCentral collapses the view from any state.
func (c *Coordinator) ClickCentral() {
	c.hovered = ""
	c.view.Collapse()
}

// ClickCategory selects the category and pauses orbiting. It does not
// collapse.
func (c *Coordinator) ClickCategory(id string) {
	c.view.Select(id)
	c.view.SetOrbiting(false)
}

// ClearCategory drops the category selection and lets orbiting resume if
// nothing is hovered.
func (c *Coordinator) ClearCategory() {
	c.view.ClearSelectedCategory()
	c.resume()
}

// HoverEnter pauses orbiting while the pointer is over a category.
func (c *Coordinator) HoverEnter(id string) {
	c.hovered = id
	c.view.SetOrbiting(false)
}

// HoverLeave ends the hover. An empty id or the hovered id clears it; a
// leave for some other category is ignored.
func (c *Coordinator) HoverLeave(id string) {
	if id != "" && id != c.hovered {
		return
	}
	c.hovered = ""
	c.resume()
}

// RequestOrbit turns orbiting on unless a hover or selection holds it
// paused, or the view is collapsed. It reports whether orbiting is now on.
func (c *Coordinator) RequestOrbit() bool {
	if c.paused() {
		return false
	}
	return c.view.SetOrbiting(true)
}

func (c *Coordinator) resume() {
	if c.view.Expanded() {
		c.RequestOrbit()
	}
}

// NodeFlags are the render flags of one node.
type NodeFlags struct {
	Highlighted bool `json:"highlighted"`
	Dimmed      bool `json:"dimmed"`
	Selected    bool `json:"selected"`
}

// EdgeFlags are the render flags of one edge.
type EdgeFlags struct {
	Highlighted bool `json:"highlighted"`
	Dimmed      bool `json:"dimmed"`
	Selected    bool `json:"selected"`
}

// Context is what the flag rules read. Build one per frame.
type Context struct {
	CentralID        string
	Highlighted      search.Set
	SelectedCategory string
	SelectedNode     string
}

// Node derives flags for the node with the given ID. A node is dimmed when
// a search is active and it is not highlighted, or when a category is
// selected and the node is neither that category nor the central node.
func (x Context) Node(id string) NodeFlags {
	hl := x.Highlighted.Active() && x.Highlighted.Has(id)
	dimmedBySearch := x.Highlighted.Active() && !x.Highlighted.Has(id)
	dimmedBySelection := x.SelectedCategory != "" && id != x.SelectedCategory && id != x.CentralID
	return NodeFlags{
		Highlighted: hl,
		Dimmed:      dimmedBySearch || dimmedBySelection,
		Selected:    x.SelectedNode != "" && id == x.SelectedNode,
	}
}

// Edge derives flags for e. An edge is highlighted when both ends are,
// selected when it runs from the central node to the selected category,
// and dimmed when some other category is selected.
func (x Context) Edge(e graph.Edge) EdgeFlags {
	selected := x.SelectedCategory != "" && e.Source == x.CentralID && e.Target == x.SelectedCategory
	return EdgeFlags{
		Highlighted: x.Highlighted.Active() && x.Highlighted.Has(e.Source) && x.Highlighted.Has(e.Target),
		Selected:    selected,
		Dimmed:      x.SelectedCategory != "" && !selected,
	}
}
