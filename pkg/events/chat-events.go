package events

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	EventTypeStart             EventType = "start"
	EventTypePartialCompletion EventType = "partial"
	EventTypeFinal             EventType = "final"
	EventTypeError             EventType = "error"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

// Mode tells whether a generation produces a new reply message or a new
// alternative of an existing one.
type Mode string

const (
	ModeReply       Mode = "reply"
	ModeAlternative Mode = "alternative"
)

type EventMetadata struct {
	ID         uuid.UUID `json:"id"`
	ThreadID   string    `json:"thread_id"`
	MessageID  string    `json:"message_id,omitempty"`
	Mode       Mode      `json:"mode"`
	Model      string    `json:"model,omitempty"`
	DurationMs *int64    `json:"duration_ms,omitempty"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("id", em.ID.String())
	e.Str("thread_id", em.ThreadID)
	if em.MessageID != "" {
		e.Str("message_id", em.MessageID)
	}
	e.Str("mode", string(em.Mode))
	if em.Model != "" {
		e.Str("model", em.Model)
	}
	if em.DurationMs != nil {
		e.Int64("duration_ms", *em.DurationMs)
	}
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta"`

	// raw payload when decoded through NewEventFromJson
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

var _ Event = &EventImpl{}

type EventStart struct {
	EventImpl
}

func NewStartEvent(metadata EventMetadata) *EventStart {
	return &EventStart{
		EventImpl: EventImpl{
			Type_:     EventTypeStart,
			Metadata_: metadata,
		},
	}
}

// EventPartialCompletion carries one streamed increment and the reply text
// accumulated so far.
type EventPartialCompletion struct {
	EventImpl
	Delta      string `json:"delta"`
	Completion string `json:"completion"`
}

func NewPartialCompletionEvent(metadata EventMetadata, delta string, completion string) *EventPartialCompletion {
	return &EventPartialCompletion{
		EventImpl: EventImpl{
			Type_:     EventTypePartialCompletion,
			Metadata_: metadata,
		},
		Delta:      delta,
		Completion: completion,
	}
}

type EventFinal struct {
	EventImpl
	Text string `json:"text"`
}

func NewFinalEvent(metadata EventMetadata, text string) *EventFinal {
	return &EventFinal{
		EventImpl: EventImpl{
			Type_:     EventTypeFinal,
			Metadata_: metadata,
		},
		Text: text,
	}
}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{
		EventImpl: EventImpl{
			Type_:     EventTypeError,
			Metadata_: metadata,
		},
		ErrorString: err.Error(),
	}
}

// NewEventFromJson decodes an event published through a watermill sink back
// into its typed form.
func NewEventFromJson(b []byte) (Event, error) {
	var hdr EventImpl
	if err := json.Unmarshal(b, &hdr); err != nil {
		return nil, err
	}

	var ret Event
	switch hdr.Type_ {
	case EventTypeStart:
		ret = &EventStart{}
	case EventTypePartialCompletion:
		ret = &EventPartialCompletion{}
	case EventTypeFinal:
		ret = &EventFinal{}
	case EventTypeError:
		ret = &EventError{}
	default:
		return nil, fmt.Errorf("unknown event type: %s", hdr.Type_)
	}
	if err := json.Unmarshal(b, ret); err != nil {
		return nil, err
	}
	setPayload(ret, b)
	return ret, nil
}

func setPayload(e Event, b []byte) {
	switch e_ := e.(type) {
	case *EventStart:
		e_.payload = b
	case *EventPartialCompletion:
		e_.payload = b
	case *EventFinal:
		e_.payload = b
	case *EventError:
		e_.payload = b
	}
}
