package graph

import "math"

// NodeKind is the role a node plays in the radial layout.
type NodeKind string

const (
	KindCentral NodeKind = "central"
	KindCluster NodeKind = "cluster"
	KindSubNode NodeKind = "sub-node"
)

// Point is an (x, y) offset from the view center, in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// SubNode hangs off a cluster at a fixed polar offset.
type SubNode struct {
	ID             string  `json:"id"`
	Label          string  `json:"label"`
	OffsetAngle    float64 `json:"offset_angle"`
	OffsetDistance float64 `json:"offset_distance"`
}

// Offset returns the sub-node's position relative to its parent.
func (s SubNode) Offset() Point {
	rad := s.OffsetAngle * math.Pi / 180
	return Point{math.Cos(rad) * s.OffsetDistance, math.Sin(rad) * s.OffsetDistance}
}

// Node is a vertex of the memory graph.
type Node struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	Icon       string    `json:"icon"`
	Kind       NodeKind  `json:"type"`
	Size       float64   `json:"size"`
	Position   Point     `json:"position"`
	Importance float64   `json:"importance"`
	ClusterID  string    `json:"cluster_id,omitempty"`
	Children   []SubNode `json:"children,omitempty"`
}

// Edge is a directed pair of node IDs.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Category is a cluster node that orbits the central node.
type Category struct {
	Node
	Angle             float64 `json:"angle"`            // degrees, phase at t=0
	Radius            float64 `json:"radius"`           // px from center
	AngularVelocity   float64 `json:"angular_velocity"` // degrees per ms
	NotificationCount int     `json:"notification_count,omitempty"`
}

// HasNotifications reports whether the category carries unread items.
func (c Category) HasNotifications() bool { return c.NotificationCount > 0 }

// Snapshot is one consistent view of the graph as last loaded.
type Snapshot struct {
	Central    *Node      `json:"central,omitempty"`
	Categories []Category `json:"categories"`
	Edges      []Edge     `json:"edges"`
}

// CentralID returns the central node's ID, or "" before the first load.
func (s Snapshot) CentralID() string {
	if s.Central == nil {
		return ""
	}
	return s.Central.ID
}

// Category looks up a category by ID.
func (s Snapshot) Category(id string) (Category, bool) {
	for _, c := range s.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// Empty reports whether nothing has been loaded yet.
func (s Snapshot) Empty() bool {
	return s.Central == nil && len(s.Categories) == 0
}

// Clone returns a deep copy so callers can hold a snapshot across loads.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Categories: make([]Category, len(s.Categories)),
		Edges:      append([]Edge(nil), s.Edges...),
	}
	if s.Central != nil {
		c := *s.Central
		out.Central = &c
	}
	copy(out.Categories, s.Categories)
	return out
}

// ResolveEdges keeps only edges whose endpoints are both in nodes.
// Dangling edges are dropped silently.
func ResolveEdges(nodes []Node, edges []Edge) []Edge {
	present := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		present[n.ID] = true
	}
	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if present[e.Source] && present[e.Target] {
			out = append(out, e)
		}
	}
	return out
}
