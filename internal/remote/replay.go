package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/memoraos/neuralmap/internal/engine"
)

// Replay reads a stream of JSON events from r and sends them in order. Each
// event is validated before it is sent; the first bad or rejected event
// stops the replay. It returns how many events were applied.
func (c *Client) Replay(ctx context.Context, r io.Reader, each func(engine.Frame)) (int, error) {
	dec := json.NewDecoder(r)
	n := 0
	for {
		var ev engine.Event
		if err := dec.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, fmt.Errorf("decode event %d: %w", n+1, err)
		}
		if err := ev.Validate(); err != nil {
			return n, fmt.Errorf("event %d: %w", n+1, err)
		}
		f, err := c.Send(ctx, ev)
		if err != nil {
			return n, fmt.Errorf("send event %d: %w", n+1, err)
		}
		n++
		if each != nil {
			each(f)
		}
	}
}
