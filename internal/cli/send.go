package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/memoraos/neuralmap/internal/engine"
	"github.com/memoraos/neuralmap/internal/remote"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	sendStdin bool
)

var sendCmd = &cobra.Command{
	Use:   "send <type> [arg]",
	Short: "Send an input event to a running server",
	Long: `Send one event to a running server and print the resulting view.

  neuralmap send scroll
  neuralmap send click category_work
  neuralmap send search travel
  neuralmap send zoom_set 1.5
  neuralmap send --stdin < events.jsonl`,
	Args: func(cmd *cobra.Command, args []string) error {
		if sendStdin {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.RangeArgs(1, 2)(cmd, args)
	},
	RunE: runSend,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the view state of a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := remote.NewClient(serverURL)
		f, err := c.Frame(cmd.Context())
		if err != nil {
			return fmt.Errorf("server at %s: %w", c.URL(), err)
		}
		printView(cmd, f)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{sendCmd, statusCmd} {
		c.Flags().StringVar(&serverURL, "url", "", "Server URL (default $NEURALMAP_URL or http://127.0.0.1:37780)")
	}
	sendCmd.Flags().BoolVar(&sendStdin, "stdin", false, "Read a stream of JSON events from stdin")
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(statusCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	c := remote.NewClient(serverURL)

	if sendStdin {
		var last engine.Frame
		n, err := c.Replay(cmd.Context(), os.Stdin, func(f engine.Frame) { last = f })
		info.Fprintf(cmd.OutOrStdout(), "sent %d events\n", n)
		if err != nil {
			return err
		}
		if n > 0 {
			printView(cmd, last)
		}
		return nil
	}

	ev, err := parseEvent(args)
	if err != nil {
		return err
	}
	if err := ev.Validate(); err != nil {
		return err
	}
	f, err := c.Send(cmd.Context(), ev)
	if err != nil {
		return fmt.Errorf("send %s: %w", ev.Type, err)
	}
	printView(cmd, f)
	return nil
}

// parseEvent builds an event from a type and its optional positional
// argument.
func parseEvent(args []string) (engine.Event, error) {
	ev := engine.Event{Type: engine.EventType(args[0])}
	if len(args) < 2 {
		return ev, nil
	}
	arg := args[1]

	switch ev.Type {
	case engine.EventClick, engine.EventHoverEnter, engine.EventHoverLeave:
		ev.NodeID = arg
	case engine.EventSearch:
		ev.Query = arg
	case engine.EventKey:
		ev.Key = arg
	case engine.EventZoomSet:
		z, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return ev, fmt.Errorf("zoom %q: %w", arg, err)
		}
		ev.Zoom = z
	case engine.EventPointerDown, engine.EventPointerMove:
		xs, ys, ok := strings.Cut(arg, ",")
		if !ok {
			return ev, fmt.Errorf("point %q: want x,y", arg)
		}
		x, err := strconv.ParseFloat(xs, 64)
		if err != nil {
			return ev, fmt.Errorf("point x %q: %w", xs, err)
		}
		y, err := strconv.ParseFloat(ys, 64)
		if err != nil {
			return ev, fmt.Errorf("point y %q: %w", ys, err)
		}
		ev.X, ev.Y = x, y
	default:
		return ev, fmt.Errorf("%s takes no argument", ev.Type)
	}
	return ev, nil
}

func printView(cmd *cobra.Command, f engine.Frame) {
	out := cmd.OutOrStdout()
	v := f.View

	state := "collapsed"
	switch {
	case v.Expanded && v.Orbiting:
		state = "orbiting"
	case v.Expanded:
		state = "expanded"
	}
	brand.Fprintf(out, "%s", state)
	subtle.Fprintf(out, "  frame %d, %d nodes, zoom %.1f, pan (%.0f, %.0f), t=%.0fms\n",
		f.Seq, len(f.Nodes), f.Transform.Zoom, f.Transform.Pan.X, f.Transform.Pan.Y, f.ElapsedMs)

	if v.SelectedCategory != "" {
		fmt.Fprintf(out, "  selected: %s\n", v.SelectedCategory)
	}
	if f.Hovered != "" {
		fmt.Fprintf(out, "  hovered:  %s\n", f.Hovered)
	}
	if v.SearchQuery != "" {
		var hits []string
		for _, n := range f.Nodes {
			if n.Highlighted {
				hits = append(hits, n.Label)
			}
		}
		fmt.Fprintf(out, "  search:   %q -> %s\n", v.SearchQuery, strings.Join(hits, ", "))
	}
}
