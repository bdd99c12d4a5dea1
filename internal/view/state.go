// Package view holds the single mutable view state of the memory graph.
//
// Every mutation goes through a named setter, and setters keep the state
// machine valid on their own: zoom is clamped on every write, orbiting can
// only be on while expanded, and collapsing clears selection and stops
// orbiting. The state is owned by one goroutine (the engine loop) and is not
// safe for concurrent use.
package view

import "github.com/memoraos/neuralmap/internal/graph"

const (
	MinZoom     = 0.3
	MaxZoom     = 3.0
	DefaultZoom = 1.0
	ZoomStep    = 0.2
)

// State is the authoritative view state.
type State struct {
	zoom             float64
	pan              graph.Point
	expanded         bool
	orbiting         bool
	hasScrolledOnce  bool
	selectedCategory string
	selectedNode     string
	searchQuery      string
	searching        bool

	epoch    uint64
	revision uint64
}

// New returns a state with default values.
func New() *State {
	return &State{zoom: DefaultZoom}
}

// Snapshot is a read-only copy of the state.
type Snapshot struct {
	Zoom             float64     `json:"zoom"`
	Pan              graph.Point `json:"pan"`
	Expanded         bool        `json:"expanded"`
	Orbiting         bool        `json:"orbiting"`
	HasScrolledOnce  bool        `json:"has_scrolled_once"`
	SelectedCategory string      `json:"selected_category,omitempty"`
	SelectedNode     string      `json:"selected_node,omitempty"`
	SearchQuery      string      `json:"search_query,omitempty"`
	Searching        bool        `json:"searching"`
}

// Snapshot copies the current values.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Zoom:             s.zoom,
		Pan:              s.pan,
		Expanded:         s.expanded,
		Orbiting:         s.orbiting,
		HasScrolledOnce:  s.hasScrolledOnce,
		SelectedCategory: s.selectedCategory,
		SelectedNode:     s.selectedNode,
		SearchQuery:      s.searchQuery,
		Searching:        s.searching,
	}
}

func (s *State) Zoom() float64       { return s.zoom }
func (s *State) Pan() graph.Point    { return s.pan }
func (s *State) Expanded() bool      { return s.expanded }
func (s *State) Orbiting() bool      { return s.orbiting }
func (s *State) SearchQuery() string { return s.searchQuery }
func (s *State) Searching() bool     { return s.searching }

// SelectedCategory returns the selected category ID, if any.
func (s *State) SelectedCategory() (string, bool) {
	return s.selectedCategory, s.selectedCategory != ""
}

// SelectedNode returns the selected node ID, if any.
func (s *State) SelectedNode() (string, bool) {
	return s.selectedNode, s.selectedNode != ""
}

// Epoch increments on every collapse. Deferred callbacks capture it and
// become no-ops once it moves.
func (s *State) Epoch() uint64 { return s.epoch }

// Revision increments on every effective change.
func (s *State) Revision() uint64 { return s.revision }

func (s *State) touch() { s.revision++ }

// Clamp limits a zoom level to [MinZoom, MaxZoom].
func Clamp(z float64) float64 {
	if z != z { // NaN
		return DefaultZoom
	}
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// SetZoom sets the zoom level, clamped.
func (s *State) SetZoom(z float64) {
	z = Clamp(z)
	if z == s.zoom {
		return
	}
	s.zoom = z
	s.touch()
}

func (s *State) ZoomIn()  { s.SetZoom(s.zoom + ZoomStep) }
func (s *State) ZoomOut() { s.SetZoom(s.zoom - ZoomStep) }

// ResetZoom restores zoom 1 and a centered pan.
func (s *State) ResetZoom() {
	s.SetZoom(DefaultZoom)
	s.SetPan(graph.Point{})
}

// SetPan sets the pan offset. Pan is unbounded.
func (s *State) SetPan(p graph.Point) {
	if p == s.pan {
		return
	}
	s.pan = p
	s.touch()
}

// Expand marks the view expanded. It never starts orbiting on its own.
func (s *State) Expand() {
	if s.expanded {
		return
	}
	s.expanded = true
	s.hasScrolledOnce = true
	s.touch()
}

// SetOrbiting turns orbital motion on or off. Turning it on while collapsed
// is refused; the return value reports whether the state now matches on.
func (s *State) SetOrbiting(on bool) bool {
	if on && !s.expanded {
		return false
	}
	if s.orbiting != on {
		s.orbiting = on
		s.touch()
	}
	return true
}

// Select sets both the selected category and the selected node.
func (s *State) Select(id string) {
	if s.selectedCategory == id && s.selectedNode == id {
		return
	}
	s.selectedCategory = id
	s.selectedNode = id
	s.touch()
}

// ClearSelectedCategory drops the selected category but keeps the selected
// node, as closing the context panel does.
func (s *State) ClearSelectedCategory() {
	if s.selectedCategory == "" {
		return
	}
	s.selectedCategory = ""
	s.touch()
}

// Collapse resets the view to its initial layout: collapsed, not orbiting,
// nothing selected, zoom 1 and pan centered. Search is left alone.
func (s *State) Collapse() {
	s.expanded = false
	s.orbiting = false
	s.selectedCategory = ""
	s.selectedNode = ""
	s.zoom = DefaultZoom
	s.pan = graph.Point{}
	s.epoch++
	s.touch()
}

// SetSearchQuery stores the query verbatim.
func (s *State) SetSearchQuery(q string) {
	if q == s.searchQuery {
		return
	}
	s.searchQuery = q
	s.touch()
}

// SetSearching sets the transient search-pulse flag.
func (s *State) SetSearching(on bool) {
	if on == s.searching {
		return
	}
	s.searching = on
	s.touch()
}
