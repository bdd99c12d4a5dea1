package engine

import (
	"github.com/memoraos/neuralmap/internal/graph"
	"github.com/memoraos/neuralmap/internal/search"
	"github.com/memoraos/neuralmap/internal/selection"
	"github.com/memoraos/neuralmap/internal/view"
)

// Frame is everything a renderer needs to draw one picture, with no
// decisions left to make.
type Frame struct {
	Seq       uint64        `json:"seq"`
	Nodes     []FrameNode   `json:"nodes"`
	Edges     []FrameEdge   `json:"edges"`
	Transform Transform     `json:"transform"`
	View      view.Snapshot `json:"view"`
	Hovered   string        `json:"hovered,omitempty"`
	ElapsedMs float64       `json:"elapsed_ms"`
}

// Transform is the presentational pan/zoom applied after layout.
type Transform struct {
	Zoom float64     `json:"zoom"`
	Pan  graph.Point `json:"pan"`
}

// FrameNode is a positioned node with its render flags.
type FrameNode struct {
	graph.Node
	selection.NodeFlags
	Angle             float64 `json:"angle,omitempty"`
	NotificationCount int     `json:"notification_count,omitempty"`
}

// FrameEdge is a resolved edge with its render flags.
type FrameEdge struct {
	graph.Edge
	selection.EdgeFlags
}

// Node looks up a frame node by ID.
func (f Frame) Node(id string) (FrameNode, bool) {
	for _, n := range f.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return FrameNode{}, false
}

// buildFrame lays out snap for the current view. While collapsed only the
// central node is shown and no edges are drawn; while expanded categories
// sit at their orbital positions.
func buildFrame(snap graph.Snapshot, v *view.State, positions map[string]graph.Point, angles map[string]float64, hovered string) Frame {
	var nodes []graph.Node
	if snap.Central != nil {
		c := *snap.Central
		c.Position = graph.Point{}
		nodes = append(nodes, c)
	}
	if v.Expanded() {
		for _, c := range snap.Categories {
			n := c.Node
			n.Position = positions[c.ID]
			nodes = append(nodes, n)
		}
	}

	selectedCategory, _ := v.SelectedCategory()
	selectedNode, _ := v.SelectedNode()
	x := selection.Context{
		CentralID:        snap.CentralID(),
		Highlighted:      search.Highlight(v.SearchQuery(), nodes, snap.CentralID()),
		SelectedCategory: selectedCategory,
		SelectedNode:     selectedNode,
	}

	f := Frame{
		Nodes:     make([]FrameNode, 0, len(nodes)),
		Transform: Transform{Zoom: v.Zoom(), Pan: v.Pan()},
		View:      v.Snapshot(),
		Hovered:   hovered,
	}
	for _, n := range nodes {
		fn := FrameNode{Node: n, NodeFlags: x.Node(n.ID)}
		if c, ok := snap.Category(n.ID); ok {
			fn.Angle = angles[n.ID]
			fn.NotificationCount = c.NotificationCount
		}
		f.Nodes = append(f.Nodes, fn)
	}

	if v.Expanded() {
		for _, e := range graph.ResolveEdges(nodes, snap.Edges) {
			f.Edges = append(f.Edges, FrameEdge{Edge: e, EdgeFlags: x.Edge(e)})
		}
	}
	if f.Edges == nil {
		f.Edges = []FrameEdge{}
	}
	return f
}
