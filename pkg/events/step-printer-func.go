package events

import (
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

// StepPrinterFunc returns a watermill handler that writes streamed text to w
// as it arrives. name, if set, is printed once before the first output.
// Alternatives are buffered by the orchestrator, their text is printed on the
// final event.
func StepPrinterFunc(name string, w io.Writer) func(msg *message.Message) error {
	isFirst := true
	printed := false

	header := func() error {
		if isFirst && name != "" {
			isFirst = false
			if _, err := fmt.Fprintf(w, "\n%s: \n", name); err != nil {
				return err
			}
		}
		return nil
	}

	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Msg("could not decode event")
			return nil
		}

		switch p_ := e.(type) {
		case *EventPartialCompletion:
			if err := header(); err != nil {
				return err
			}
			printed = true
			if _, err := fmt.Fprintf(w, "%s", p_.Delta); err != nil {
				return err
			}

		case *EventFinal:
			if !printed {
				if err := header(); err != nil {
					return err
				}
				if _, err := fmt.Fprintf(w, "%s", p_.Text); err != nil {
					return err
				}
			}
			if !strings.HasSuffix(p_.Text, "\n") {
				if _, err := fmt.Fprintf(w, "\n"); err != nil {
					return err
				}
			}
			isFirst = true
			printed = false

		case *EventError:
			if _, err := fmt.Fprintf(w, "\nError: %s\n", p_.ErrorString); err != nil {
				return err
			}
			isFirst = true
			printed = false
		}

		return nil
	}
}
