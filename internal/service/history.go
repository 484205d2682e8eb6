package service

import (
	"encoding/json"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/parleykit/parley/internal/models"
)

// History reconstructs a thread's prior state: the ordered message list and
// its textual transcript. A thread with no checkpoint yields empty results,
// not an error. Read-only, safe for concurrent callers.
func (c *Chat) History(threadID string) ([]models.Message, string, error) {
	checkpoint, transcript, err := c.loadHistory(threadID)
	if err != nil {
		return nil, "", err
	}
	if checkpoint == nil {
		return nil, "", nil
	}
	return checkpoint.Messages, transcript, nil
}

func (c *Chat) loadHistory(threadID string) (*models.Checkpoint, string, error) {
	checkpoint, err := c.checkpoints.Get(threadID)
	if err != nil {
		return nil, "", &StoreError{Op: "get", Err: err}
	}
	if checkpoint == nil {
		return nil, "", nil
	}
	return checkpoint, renderTranscript(checkpoint.Messages), nil
}

// renderTranscript formats each message as "<RoleLabel>: <content>", joined
// by a blank line.
func renderTranscript(messages []models.Message) string {
	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		parts = append(parts, msg.Role.Label()+": "+msg.Content)
	}
	return strings.Join(parts, "\n\n")
}

// messageText canonicalizes a generated message to plain text. Multi-part
// content is flattened to its text parts; anything else is serialized
// rather than carried as an opaque value.
func messageText(msg *schema.Message) string {
	if msg == nil {
		return ""
	}
	if msg.Content != "" {
		return msg.Content
	}
	if len(msg.MultiContent) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, part := range msg.MultiContent {
		if part.Type == schema.ChatMessagePartTypeText {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() > 0 {
		return sb.String()
	}

	data, err := json.Marshal(msg.MultiContent)
	if err != nil {
		return ""
	}
	return string(data)
}
