package inference

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-go-golems/parley/pkg/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillSinkPublishesJSON(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 4}, watermill.NopLogger{})
	defer func() { _ = pubsub.Close() }()

	messages, err := pubsub.Subscribe(ctx, events.TopicChat)
	require.NoError(t, err)

	sink := NewWatermillSink(pubsub, events.TopicChat)
	meta := events.EventMetadata{ID: uuid.New(), ThreadID: "thread-1", Mode: events.ModeReply}
	require.NoError(t, sink.PublishEvent(events.NewPartialCompletionEvent(meta, "Hel", "Hel")))

	select {
	case msg := <-messages:
		msg.Ack()
		e, err := events.NewEventFromJson(msg.Payload)
		require.NoError(t, err)
		p, ok := e.(*events.EventPartialCompletion)
		require.True(t, ok)
		assert.Equal(t, "Hel", p.Delta)
		assert.Equal(t, "thread-1", p.Metadata().ThreadID)
	case <-ctx.Done():
		t.Fatal("no message received")
	}

	assert.NoError(t, NewNullSink().PublishEvent(events.NewStartEvent(meta)))
}
