package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/parleykit/parley/internal/models"
	"github.com/parleykit/parley/internal/service/storage"
)

// Chat drives conversation turns against a chat model and guarantees that
// every turn is committed back to the checkpoint store exactly once,
// whether the turn completes, fails mid-stream, or is abandoned by the
// consumer.
//
// Turns on different threads may run concurrently. Turns on the same thread
// must be serialized by the caller: a turn reads the prior checkpoint once,
// streams, then writes the successor, and that read-modify-write is not
// atomic across the store boundary. Two concurrent turns on one thread can
// both read version N and both write version N+1, losing one turn's
// messages. ThreadService provides this serialization.
type Chat struct {
	checkpoints storage.CheckpointStore
	model       model.BaseChatModel

	contextMu    sync.RWMutex
	contextStore ContextStore

	topK        int
	streamDelay time.Duration
}

type ChatConfig struct {
	Checkpoints storage.CheckpointStore
	Model       model.BaseChatModel

	// Context is the optional retrieval collaborator; it can also be set
	// later via SetContext.
	Context ContextStore

	// TopK bounds per-turn similarity search. Zero disables retrieval even
	// when a context store is set.
	TopK int

	// StreamDelay paces fragment forwarding for incremental rendering. It
	// is not required for persistence correctness.
	StreamDelay time.Duration
}

func NewChat(cfg ChatConfig) (*Chat, error) {
	if cfg.Checkpoints == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	if cfg.Model == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	return &Chat{
		checkpoints:  cfg.Checkpoints,
		model:        cfg.Model,
		contextStore: cfg.Context,
		topK:         cfg.TopK,
		streamDelay:  cfg.StreamDelay,
	}, nil
}

// Invoke runs a one-shot turn: the model is awaited to completion and the
// full response is committed before it is returned. A generation failure
// persists nothing; the caller either receives the full result or an error
// with no partial text exposed.
func (c *Chat) Invoke(ctx context.Context, req models.Request) (*models.Response, error) {
	prior, messages, err := c.prepareTurn(ctx, req)
	if err != nil {
		return nil, err
	}

	response, err := c.model.Generate(ctx, messages)
	if err != nil {
		return nil, &GenerationError{Err: err}
	}

	text := messageText(response)
	if err := c.commit(req.ThreadID, prior, req.Input, text); err != nil {
		return nil, err
	}

	return &models.Response{Content: text}, nil
}

// Stream runs a streaming turn. Fragments are forwarded in production order
// and the full response text is their concatenation. The returned stream is
// finite and not restartable; closing it early abandons the turn, and the
// fragments already forwarded are still committed. A mid-stream generation
// failure is surfaced at sequence end, after the partial text has been
// committed. A store failure on commit is surfaced the same way, as a
// StoreError.
func (c *Chat) Stream(ctx context.Context, req models.Request) (*schema.StreamReader[string], error) {
	stream, _, err := c.stream(ctx, req)
	return stream, err
}

func (c *Chat) stream(ctx context.Context, req models.Request) (*schema.StreamReader[string], <-chan struct{}, error) {
	prior, messages, err := c.prepareTurn(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	fragments, err := c.model.Stream(ctx, messages)
	if err != nil {
		return nil, nil, &GenerationError{Err: err}
	}

	out, in := schema.Pipe[string](0)
	done := make(chan struct{})
	go c.forward(ctx, req, prior, fragments, in, done)

	return out, done, nil
}

func (c *Chat) prepareTurn(ctx context.Context, req models.Request) (*models.Checkpoint, []*schema.Message, error) {
	if strings.TrimSpace(req.Input) == "" {
		return nil, nil, fmt.Errorf("user input is required")
	}
	if req.ThreadID == "" {
		return nil, nil, fmt.Errorf("thread id is required")
	}

	prior, transcript, err := c.loadHistory(req.ThreadID)
	if err != nil {
		return nil, nil, err
	}

	contextText, err := c.retrieveContext(ctx, req.Input)
	if err != nil {
		return nil, nil, &GenerationError{Err: err}
	}

	return prior, buildMessages(transcript, contextText, req), nil
}

// forward consumes the model's fragment stream, forwarding each fragment to
// the consumer in order and accumulating exactly what was forwarded. The
// deferred commit is the persistence guarantee: it runs on normal
// completion, on a mid-stream error, on consumer abandonment, and even if
// this goroutine panics. Errors are sent to the consumer only after the
// commit has run, and the commit's own failure is surfaced when nothing
// else is.
func (c *Chat) forward(ctx context.Context, req models.Request, prior *models.Checkpoint, fragments *schema.StreamReader[*schema.Message], out *schema.StreamWriter[string], done chan struct{}) {
	defer out.Close()
	defer fragments.Close()

	var accumulated strings.Builder
	var generationErr error

	defer func() {
		commitErr := c.commit(req.ThreadID, prior, req.Input, accumulated.String())
		switch {
		case generationErr != nil:
			out.Send("", &GenerationError{Err: generationErr})
			if commitErr != nil {
				fmt.Printf("Failed to persist thread %s: %v\n", req.ThreadID, commitErr)
			}
		case commitErr != nil:
			if closed := out.Send("", commitErr); closed {
				// The consumer is gone; the store failure must still be seen.
				fmt.Printf("Failed to persist thread %s: %v\n", req.ThreadID, commitErr)
			}
		}
		close(done)
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		chunk, err := fragments.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			generationErr = err
			return
		}

		fragment := messageText(chunk)
		if fragment == "" {
			continue
		}

		if closed := out.Send(fragment, nil); closed {
			return
		}
		accumulated.WriteString(fragment)

		if c.streamDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.streamDelay):
			}
		}
	}
}

// commit converts (prior checkpoint, user input, accumulated response) into
// the next checkpoint version and writes it. An empty response leaves the
// store untouched: an aborted or empty turn never produces a new version.
// The write is not retried here.
func (c *Chat) commit(threadID string, prior *models.Checkpoint, userInput, response string) error {
	if response == "" {
		return nil
	}

	next := models.NextCheckpoint(prior, threadID, userInput, response)
	if err := c.checkpoints.Put(threadID, next, next.Metadata, len(next.Messages)); err != nil {
		return &StoreError{Op: "put", Err: err}
	}

	return nil
}
