package generation

import (
	"errors"
	"fmt"

	"github.com/go-go-golems/parley/pkg/conversation"
)

var (
	// ErrInFlight is returned when a thread already has an active generation.
	ErrInFlight = errors.New("a generation is already in flight for this thread")
	// ErrTransport matches every TransportError.
	ErrTransport = errors.New("transport error")
	// ErrNoPrompt is returned when retrying a model message that has no
	// preceding user message.
	ErrNoPrompt = errors.New("no user message precedes this message")
	// ErrEmptySubmission is returned for a submit without text or files. It
	// also matches conversation.ErrValidation.
	ErrEmptySubmission = &conversation.ValidationError{Field: "submission", Reason: "no text and no files"}
)

// TransportError carries the transport's failure message verbatim.
type TransportError struct {
	Message string
	Cause   error
}

func NewTransportError(cause error) *TransportError {
	if cause == nil {
		cause = errors.New("unknown transport error")
	}
	return &TransportError{Message: cause.Error(), Cause: cause}
}

func (e *TransportError) Error() string {
	if e == nil {
		return ErrTransport.Error()
	}
	return fmt.Sprintf("%s: %s", ErrTransport, e.Message)
}

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
