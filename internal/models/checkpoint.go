package models

import (
	"fmt"
	"time"
)

const checkpointSource = "input"

// CheckpointMetadata is a provenance record carried with every checkpoint.
// It is used for audit and debugging, never for control flow.
type CheckpointMetadata struct {
	Source  string            `json:"source"`
	Step    int               `json:"step"`
	Parents map[string]string `json:"parents"`
}

// Checkpoint is a durable snapshot of one conversation thread. Messages are
// append-only and the version increases by exactly one per persisted turn.
type Checkpoint struct {
	ThreadID  string             `json:"thread_id"`
	Version   int                `json:"version"`
	Messages  []Message          `json:"messages"`
	ID        string             `json:"id"`
	Timestamp int64              `json:"timestamp"`
	Metadata  CheckpointMetadata `json:"metadata"`
}

// NextCheckpoint builds the successor checkpoint for a turn. The prior
// checkpoint is never mutated: its messages are copied and the new user and
// assistant messages are appended. A nil prior means this is the thread's
// first persisted turn and the new version is 1. The checkpoint id and
// creation timestamp are carried forward from the prior checkpoint when one
// exists, otherwise minted here.
func NextCheckpoint(prior *Checkpoint, threadID, userInput, response string) *Checkpoint {
	now := time.Now().UnixMilli()

	next := &Checkpoint{
		ThreadID:  threadID,
		Version:   1,
		Timestamp: now,
	}
	if prior != nil {
		next.Version = prior.Version + 1
		next.ID = prior.ID
		next.Timestamp = prior.Timestamp
		next.Messages = append(next.Messages, prior.Messages...)
	}
	if next.ID == "" {
		next.ID = fmt.Sprintf("%s-%d", threadID, now)
	}

	next.Messages = append(next.Messages, UserMessage(userInput), AssistantMessage(response))
	next.Metadata = CheckpointMetadata{
		Source:  checkpointSource,
		Step:    next.Version,
		Parents: map[string]string{},
	}

	return next
}

// Clone returns a deep copy, so callers can hold a checkpoint without
// sharing the message slice with the store.
func (c *Checkpoint) Clone() *Checkpoint {
	if c == nil {
		return nil
	}

	copied := *c
	copied.Messages = make([]Message, len(c.Messages))
	copy(copied.Messages, c.Messages)
	if c.Metadata.Parents != nil {
		copied.Metadata.Parents = make(map[string]string, len(c.Metadata.Parents))
		for k, v := range c.Metadata.Parents {
			copied.Metadata.Parents[k] = v
		}
	}

	return &copied
}
