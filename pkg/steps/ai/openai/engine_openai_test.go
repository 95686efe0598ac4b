package openai

import (
	"context"
	"testing"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/inference/engine"
	"github.com/go-go-golems/parley/pkg/transcript"
	go_openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest(t *testing.T) {
	tr := &transcript.Transcript{
		SystemPrompt: "be brief",
		Entries: []transcript.Entry{
			{Role: conversation.RoleUser, Parts: []conversation.Part{conversation.TextPart("hi")}},
			{Role: conversation.RoleModel, Parts: []conversation.Part{conversation.TextPart("hello")}},
			{Role: conversation.RoleUser, Parts: []conversation.Part{
				conversation.TextPart("what is this"),
				conversation.FilePart("a.png", "image/png", []byte{0x89, 0x50}),
				conversation.FilePart("a.pdf", "application/pdf", []byte{1}),
			}},
		},
	}

	req := Request(tr, engine.Options{Model: "gpt-4o", Stream: true, Temperature: 0.7, TopP: 1, MaxOutputTokens: 100})
	assert.Equal(t, "gpt-4o", req.Model)
	assert.True(t, req.Stream)
	assert.Equal(t, 100, req.MaxTokens)
	require.Len(t, req.Messages, 4)

	assert.Equal(t, go_openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, "be brief", req.Messages[0].Content)
	assert.Equal(t, go_openai.ChatMessageRoleUser, req.Messages[1].Role)
	assert.Equal(t, go_openai.ChatMessageRoleAssistant, req.Messages[2].Role)

	last := req.Messages[3]
	assert.Empty(t, last.Content)
	require.Len(t, last.MultiContent, 2, "the pdf is dropped")
	assert.Equal(t, "what is this", last.MultiContent[0].Text)
	require.NotNil(t, last.MultiContent[1].ImageURL)
	assert.Equal(t, "data:image/png;base64,iVA=", last.MultiContent[1].ImageURL.URL)
}

func TestMessageSkipsEmptyEntries(t *testing.T) {
	_, ok := Message(transcript.Entry{Role: conversation.RoleModel, Parts: []conversation.Part{conversation.TextPart("")}})
	assert.False(t, ok)
}

func TestGenerateWithoutKeyFails(t *testing.T) {
	tr := &transcript.Transcript{Entries: []transcript.Entry{
		{Role: conversation.RoleUser, Parts: []conversation.Part{conversation.TextPart("hi")}},
	}}
	var got []engine.Event
	for ev := range NewOpenAIEngine("", "").Generate(context.Background(), tr, engine.Options{Model: "gpt-4o"}) {
		got = append(got, ev)
	}
	require.Len(t, got, 1)
	assert.Equal(t, engine.EventError, got[0].Type)
	assert.Contains(t, got[0].Err.Error(), "openai api key")
}
