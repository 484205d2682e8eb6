package service

import (
	_ "embed"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/parleykit/parley/internal/models"
)

//go:embed assets/prompts/chat.txt
var promptContent []byte

func buildSystemPrompt(variables map[string]string) string {
	prompt := string(promptContent)
	prompt = strings.ReplaceAll(prompt, "[SYSTEM_TIME]", time.Now().Format(time.RFC3339))
	for name, value := range variables {
		prompt = strings.ReplaceAll(prompt, "{"+name+"}", value)
	}
	return prompt
}

// buildMessages assembles the generation input: system prompt, the prior
// transcript, retrieved context, then the new user turn.
func buildMessages(transcript, contextText string, req models.Request) []*schema.Message {
	messages := []*schema.Message{
		schema.SystemMessage(buildSystemPrompt(req.Variables)),
	}
	if transcript != "" {
		messages = append(messages, schema.SystemMessage("Conversation so far:\n\n"+transcript))
	}
	if contextText != "" {
		messages = append(messages, schema.SystemMessage("Relevant context:\n\n"+contextText))
	}
	return append(messages, schema.UserMessage(req.Input))
}
