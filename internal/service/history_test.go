package service

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/parleykit/parley/internal/models"
	"github.com/parleykit/parley/internal/service/storage"
)

func TestRenderTranscript(t *testing.T) {
	transcript := renderTranscript([]models.Message{
		models.SystemMessage("Be brief."),
		models.UserMessage("Hi."),
		models.AssistantMessage("Hello."),
	})

	require.Equal(t, "System: Be brief.\n\nUser: Hi.\n\nAssistant: Hello.", transcript)
}

func TestRenderTranscript_UnknownRoleRendersAsSystem(t *testing.T) {
	transcript := renderTranscript([]models.Message{
		{Role: models.Role("tool"), Content: "result"},
	})

	require.Equal(t, "System: result", transcript)
}

func TestHistory_EmptyThreadIsNotAnError(t *testing.T) {
	chat := newTestChat(t, &fakeChatModel{}, storage.NewMemoryCheckpointStore())

	messages, transcript, err := chat.History("missing")
	require.NoError(t, err)
	require.Empty(t, messages)
	require.Empty(t, transcript)
}

func TestMessageText_FlattensMultiContent(t *testing.T) {
	text := messageText(&schema.Message{
		Role: schema.Assistant,
		MultiContent: []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: "part one, "},
			{Type: schema.ChatMessagePartTypeText, Text: "part two"},
		},
	})

	require.Equal(t, "part one, part two", text)
}

func TestMessageText_NilMessage(t *testing.T) {
	require.Empty(t, messageText(nil))
}
