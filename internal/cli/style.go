package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/memoraos/neuralmap/internal/graph"
	"github.com/memoraos/neuralmap/internal/orbit"
)

var (
	brand  = color.New(color.FgHiGreen, color.Bold)
	subtle = color.New(color.FgHiBlack)
	info   = color.New(color.FgCyan)
	warn   = color.New(color.FgYellow)
	notify = color.New(color.FgRed, color.Bold)
)

// printCategories writes one row per category with its orbital position
// elapsedMs into the orbit.
func printCategories(w io.Writer, snap graph.Snapshot, elapsedMs float64) {
	central := "(none)"
	if snap.Central != nil {
		central = snap.Central.Label
	}
	brand.Fprintf(w, "%s", central)
	subtle.Fprintf(w, "  %d categories, %d edges, t=%.0fms\n", len(snap.Categories), len(snap.Edges), elapsedMs)

	subtle.Fprintf(w, "  %-24s %-18s %8s %9s %9s %5s\n", "LABEL", "ICON", "ANGLE", "X", "Y", "NEW")
	for _, c := range snap.Categories {
		p := orbit.Position(c, elapsedMs)
		fmt.Fprintf(w, "  %-24s ", c.Label)
		info.Fprintf(w, "%-18s", c.Icon)
		fmt.Fprintf(w, " %7.2f° %9.2f %9.2f ", orbit.AngleAt(c, elapsedMs), p.X, p.Y)
		if c.HasNotifications() {
			notify.Fprintf(w, "%5d\n", c.NotificationCount)
		} else {
			subtle.Fprintf(w, "%5s\n", "-")
		}
	}
}
