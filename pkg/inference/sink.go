package inference

import "github.com/go-go-golems/parley/pkg/events"

// EventSink is a destination for generation lifecycle events.
type EventSink interface {
	PublishEvent(event events.Event) error
}
