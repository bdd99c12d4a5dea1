package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// EventType names a user input the scene understands.
type EventType string

const (
	EventScroll       EventType = "scroll"
	EventPointerDown  EventType = "pointer_down"
	EventPointerMove  EventType = "pointer_move"
	EventPointerUp    EventType = "pointer_up"
	EventPointerLeave EventType = "pointer_leave"
	EventClick        EventType = "click"
	EventHoverEnter   EventType = "hover_enter"
	EventHoverLeave   EventType = "hover_leave"
	EventDeselect     EventType = "deselect"
	EventKey          EventType = "key"
	EventZoomIn       EventType = "zoom_in"
	EventZoomOut      EventType = "zoom_out"
	EventZoomReset    EventType = "zoom_reset"
	EventZoomSet      EventType = "zoom_set"
	EventSearch       EventType = "search"
)

// Event is one input from the renderer. Coordinates are screen pixels.
type Event struct {
	Type   EventType `json:"type" validate:"required,oneof=scroll pointer_down pointer_move pointer_up pointer_leave click hover_enter hover_leave deselect key zoom_in zoom_out zoom_reset zoom_set search"`
	X      float64   `json:"x,omitempty"`
	Y      float64   `json:"y,omitempty"`
	Button int       `json:"button,omitempty" validate:"min=0,max=4"`
	NodeID string    `json:"node_id,omitempty" validate:"max=256"`
	Key    string    `json:"key,omitempty" validate:"max=16"`
	Zoom   float64   `json:"zoom,omitempty"`
	Query  string    `json:"query,omitempty" validate:"max=256"`
}

// ErrInvalidEvent wraps every event validation failure.
var ErrInvalidEvent = errors.New("invalid event")

var validate = validator.New()

// Validate checks the event's shape. Field requirements that depend on the
// event type are checked after the tag rules.
func (e Event) Validate() error {
	if err := validate.Struct(e); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidEvent, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	switch e.Type {
	case EventClick, EventHoverEnter:
		if e.NodeID == "" {
			return fmt.Errorf("%w: %s requires node_id", ErrInvalidEvent, e.Type)
		}
	case EventKey:
		if e.Key == "" {
			return fmt.Errorf("%w: key requires key", ErrInvalidEvent)
		}
	}
	return nil
}
