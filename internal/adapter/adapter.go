// Package adapter turns backend graph payloads into the radial layout model.
package adapter

import (
	"math/rand"
	"strings"

	"github.com/memoraos/neuralmap/internal/graph"
	"github.com/memoraos/neuralmap/internal/provider"
	"go.uber.org/zap"
)

// Kind is the closed set of backend node tags the layout understands.
type Kind int

const (
	KindOther Kind = iota
	KindCentral
	KindCategory
)

// ParseKind maps a backend tag onto Kind. Unknown tags are KindOther.
func ParseKind(tag string) Kind {
	switch tag {
	case "CENTRAL":
		return KindCentral
	case "CATEGORY":
		return KindCategory
	default:
		return KindOther
	}
}

// Relation is the closed set of backend edge tags the layout understands.
type Relation int

const (
	RelationOther Relation = iota
	RelationHasCategory
)

// ParseRelation maps a backend edge tag onto Relation.
func ParseRelation(tag string) Relation {
	if tag == "HAS_CATEGORY" {
		return RelationHasCategory
	}
	return RelationOther
}

const (
	DefaultIcon = "category"

	CentralSize        = 64
	CategoryImportance = 0.8
)

var categoryIcons = map[string]string{
	"work":                "work",
	"finances":            "account_balance",
	"travel":              "flight",
	"social":              "groups",
	"health":              "favorite",
	"projects":            "rocket_launch",
	"learning":            "school",
	"reading":             "menu_book",
	"ideas":               "lightbulb",
	"wellness":            "spa",
	"technology":          "memory",
	"product_development": "developer_board",
	"general":             "category",
}

// IconFor resolves a category icon by name, then by ID without its
// "category_" prefix, then falls back to DefaultIcon.
func IconFor(name, id string) string {
	if icon, ok := categoryIcons[strings.ToLower(name)]; ok {
		return icon
	}
	if icon, ok := categoryIcons[strings.TrimPrefix(strings.ToLower(id), "category_")]; ok {
		return icon
	}
	return DefaultIcon
}

// Options tunes category placement.
type Options struct {
	Radius         float64 // px, same for every category
	VelocityMin    float64 // deg/ms
	VelocitySpread float64 // deg/ms, added as rand * spread
	SizeMin        float64
	SizeSpread     float64
	// Rand drives the per-load jitter. Nil disables jitter: every category
	// gets VelocityMin and SizeMin.
	Rand *rand.Rand
}

// DefaultOptions matches the reference layout: radius 280, velocity in
// [0.00028, 0.00032) deg/ms, size in [42, 48).
func DefaultOptions() Options {
	return Options{
		Radius:         280,
		VelocityMin:    0.00028,
		VelocitySpread: 0.00004,
		SizeMin:        42,
		SizeSpread:     6,
	}
}

// Token identifies one fetch. Results carrying an old token are stale.
type Token uint64

// Adapter holds the last good snapshot and converts new payloads into it.
// It is owned by the engine loop and not safe for concurrent use.
type Adapter struct {
	opts    Options
	log     *zap.Logger
	current graph.Snapshot
	gen     Token
}

// New creates an adapter with an empty snapshot.
func New(opts Options, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{opts: opts, log: log}
}

// Current returns the snapshot currently on display.
func (a *Adapter) Current() graph.Snapshot { return a.current }

// Begin starts a fetch and returns its token. Any earlier token is now stale.
func (a *Adapter) Begin() Token {
	a.gen++
	return a.gen
}

// Cancel invalidates every outstanding token.
func (a *Adapter) Cancel() { a.gen++ }

// Outcome describes what Apply did with a payload.
type Outcome int

const (
	Applied Outcome = iota
	KeptPrevious
	Stale
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case KeptPrevious:
		return "kept_previous"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// Apply converts p and, if it yields at least one category, replaces the
// current snapshot. A payload with zero categories leaves the current
// snapshot untouched. A payload whose token is no longer the latest is
// dropped.
func (a *Adapter) Apply(tok Token, p provider.Payload) Outcome {
	if tok != a.gen {
		a.log.Debug("dropping stale graph response", zap.Uint64("token", uint64(tok)), zap.Uint64("latest", uint64(a.gen)))
		return Stale
	}
	next, ok := a.Convert(p)
	if !ok {
		return KeptPrevious
	}
	a.current = next
	return Applied
}

// Convert builds a snapshot from p. ok is false when p has no usable
// categories. When p has no central node the previous central is kept.
func (a *Adapter) Convert(p provider.Payload) (graph.Snapshot, bool) {
	var central *graph.Node
	var catNodes []provider.Node
	for _, n := range p.Nodes {
		if n.ID == "" {
			a.log.Debug("skipping node without id", zap.String("type", n.Type))
			continue
		}
		switch ParseKind(n.Type) {
		case KindCentral:
			if central != nil {
				continue
			}
			central = &graph.Node{
				ID:         n.ID,
				Label:      firstNonEmpty(n.Label, n.Name, n.ID),
				Kind:       graph.KindCentral,
				Size:       CentralSize,
				Importance: 1,
			}
		case KindCategory:
			catNodes = append(catNodes, n)
		}
	}
	if len(catNodes) == 0 {
		return graph.Snapshot{}, false
	}
	if central == nil && a.current.Central != nil {
		c := *a.current.Central
		central = &c
	}

	step := 360 / float64(len(catNodes))
	cats := make([]graph.Category, 0, len(catNodes))
	for i, n := range catNodes {
		name := firstNonEmpty(n.Name, strings.TrimPrefix(n.ID, "category_"))
		cats = append(cats, graph.Category{
			Node: graph.Node{
				ID:         n.ID,
				Label:      strings.ToUpper(name),
				Icon:       IconFor(name, n.ID),
				Kind:       graph.KindCluster,
				Size:       a.jitter(a.opts.SizeMin, a.opts.SizeSpread),
				Importance: CategoryImportance,
			},
			Angle:             step * float64(i),
			Radius:            a.opts.Radius,
			AngularVelocity:   a.jitter(a.opts.VelocityMin, a.opts.VelocitySpread),
			NotificationCount: max(n.Notifications, 0),
		})
	}

	var edges []graph.Edge
	for _, e := range p.Edges {
		if e.Source == "" || e.Target == "" {
			continue
		}
		if ParseRelation(e.Relation) != RelationHasCategory {
			continue
		}
		edges = append(edges, graph.Edge{Source: e.Source, Target: e.Target})
	}

	return graph.Snapshot{Central: central, Categories: cats, Edges: edges}, true
}

func (a *Adapter) jitter(base, spread float64) float64 {
	if a.opts.Rand == nil || spread == 0 {
		return base
	}
	return base + a.opts.Rand.Float64()*spread
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
