package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/parleykit/parley/internal/models"
	"github.com/parleykit/parley/internal/service/storage"
)

type fakeChatModel struct {
	mu        sync.Mutex
	fragments []string
	response  string
	genErr    error
	streamErr error
	calls     [][]*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.record(input)
	if f.genErr != nil {
		return nil, f.genErr
	}
	return schema.AssistantMessage(f.response, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.record(input)
	if f.genErr != nil {
		return nil, f.genErr
	}

	f.mu.Lock()
	fragments := append([]string(nil), f.fragments...)
	streamErr := f.streamErr
	f.mu.Unlock()

	out, in := schema.Pipe[*schema.Message](len(fragments) + 1)
	go func() {
		defer in.Close()
		for _, fragment := range fragments {
			if closed := in.Send(schema.AssistantMessage(fragment, nil), nil); closed {
				return
			}
		}
		if streamErr != nil {
			in.Send(nil, streamErr)
		}
	}()
	return out, nil
}

func (f *fakeChatModel) record(input []*schema.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := append([]*schema.Message(nil), input...)
	f.calls = append(f.calls, copied)
}

func (f *fakeChatModel) setFragments(fragments ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fragments = fragments
}

func (f *fakeChatModel) lastCall() []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

type failingStore struct {
	inner  *storage.MemoryCheckpointStore
	getErr error
	putErr error
}

func (s *failingStore) Get(threadID string) (*models.Checkpoint, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.inner.Get(threadID)
}

func (s *failingStore) Put(threadID string, checkpoint *models.Checkpoint, metadata models.CheckpointMetadata, versionHint int) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.inner.Put(threadID, checkpoint, metadata, versionHint)
}

func newTestChat(t *testing.T, chatModel model.BaseChatModel, store storage.CheckpointStore) *Chat {
	t.Helper()

	chat, err := NewChat(ChatConfig{
		Checkpoints: store,
		Model:       chatModel,
	})
	require.NoError(t, err)
	return chat
}

func drainStream(stream *schema.StreamReader[string]) ([]string, error) {
	defer stream.Close()

	var fragments []string
	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return fragments, nil
		}
		if err != nil {
			return fragments, err
		}
		fragments = append(fragments, fragment)
	}
}

func TestStream_RoundTripFidelity(t *testing.T) {
	store := storage.NewMemoryCheckpointStore()
	chatModel := &fakeChatModel{fragments: []string{"Hello, ", "world", "!"}}
	chat := newTestChat(t, chatModel, store)

	stream, err := chat.Stream(context.Background(), models.Request{ThreadID: "t1", Input: "Greet me."})
	require.NoError(t, err)

	fragments, err := drainStream(stream)
	require.NoError(t, err)
	require.Equal(t, []string{"Hello, ", "world", "!"}, fragments)

	checkpoint, err := store.Get("t1")
	require.NoError(t, err)
	require.NotNil(t, checkpoint)
	require.Equal(t, 1, checkpoint.Version)
	require.Len(t, checkpoint.Messages, 2)
	require.Equal(t, models.UserMessage("Greet me."), checkpoint.Messages[0])
	require.Equal(t, models.AssistantMessage(strings.Join(fragments, "")), checkpoint.Messages[1])
}

func TestStream_AppendOnlyGrowthAndVersionMonotonicity(t *testing.T) {
	store := storage.NewMemoryCheckpointStore()
	chatModel := &fakeChatModel{}
	chat := newTestChat(t, chatModel, store)

	inputs := []string{"first", "second", "third"}
	for i, input := range inputs {
		chatModel.setFragments("reply-", input)

		stream, err := chat.Stream(context.Background(), models.Request{ThreadID: "t1", Input: input})
		require.NoError(t, err)
		_, err = drainStream(stream)
		require.NoError(t, err)

		checkpoint, err := store.Get("t1")
		require.NoError(t, err)
		require.Equal(t, i+1, checkpoint.Version)
		require.Len(t, checkpoint.Messages, 2*(i+1))
	}

	checkpoint, err := store.Get("t1")
	require.NoError(t, err)
	for i, input := range inputs {
		require.Equal(t, models.UserMessage(input), checkpoint.Messages[2*i])
		require.Equal(t, models.AssistantMessage("reply-"+input), checkpoint.Messages[2*i+1])
	}
	require.Equal(t, 3, checkpoint.Metadata.Step)
	require.Equal(t, "input", checkpoint.Metadata.Source)
}

func TestStream_EmptyTurnLeavesStoreUntouched(t *testing.T) {
	store := storage.NewMemoryCheckpointStore()
	chatModel := &fakeChatModel{fragments: []string{"hi"}}
	chat := newTestChat(t, chatModel, store)

	stream, err := chat.Stream(context.Background(), models.Request{ThreadID: "t1", Input: "hello"})
	require.NoError(t, err)
	_, err = drainStream(stream)
	require.NoError(t, err)

	before, err := store.Get("t1")
	require.NoError(t, err)
	require.Equal(t, 1, before.Version)

	// Zero fragments: no new version, the store is byte-for-byte unchanged.
	chatModel.setFragments()
	stream, err = chat.Stream(context.Background(), models.Request{ThreadID: "t1", Input: "anyone there?"})
	require.NoError(t, err)
	fragments, err := drainStream(stream)
	require.NoError(t, err)
	require.Empty(t, fragments)

	after, err := store.Get("t1")
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestStream_AbandonmentPersistsForwardedFragments(t *testing.T) {
	store := storage.NewMemoryCheckpointStore()
	chatModel := &fakeChatModel{fragments: []string{"The ", "quick ", "brown ", "fox ", "jumps"}}
	chat := newTestChat(t, chatModel, store)

	stream, err := chat.Stream(context.Background(), models.Request{ThreadID: "t1", Input: "Tell me a story."})
	require.NoError(t, err)

	first, err := stream.Recv()
	require.NoError(t, err)
	second, err := stream.Recv()
	require.NoError(t, err)
	stream.Close()

	require.Eventually(t, func() bool {
		checkpoint, err := store.Get("t1")
		return err == nil && checkpoint != nil
	}, time.Second, 10*time.Millisecond)

	checkpoint, err := store.Get("t1")
	require.NoError(t, err)
	require.Equal(t, 1, checkpoint.Version)
	require.Len(t, checkpoint.Messages, 2)
	require.Equal(t, first+second, checkpoint.Messages[1].Content)
}

func TestStream_MidStreamErrorPersistsPartialThenSurfaces(t *testing.T) {
	store := storage.NewMemoryCheckpointStore()
	backendErr := errors.New("backend unavailable")
	chatModel := &fakeChatModel{fragments: []string{"partial ", "answer "}, streamErr: backendErr}
	chat := newTestChat(t, chatModel, store)

	stream, err := chat.Stream(context.Background(), models.Request{ThreadID: "t1", Input: "go on"})
	require.NoError(t, err)

	fragments, err := drainStream(stream)
	require.Equal(t, []string{"partial ", "answer "}, fragments)

	var generationErr *GenerationError
	require.ErrorAs(t, err, &generationErr)
	require.ErrorIs(t, err, backendErr)

	// The error reaches the caller only after the partial turn was committed.
	checkpoint, storeErr := store.Get("t1")
	require.NoError(t, storeErr)
	require.NotNil(t, checkpoint)
	require.Equal(t, "partial answer ", checkpoint.Messages[1].Content)
}

func TestStream_CommitFailureSurfacesAsStoreError(t *testing.T) {
	putErr := errors.New("disk full")
	store := &failingStore{inner: storage.NewMemoryCheckpointStore(), putErr: putErr}
	chatModel := &fakeChatModel{fragments: []string{"hi"}}
	chat := newTestChat(t, chatModel, store)

	stream, err := chat.Stream(context.Background(), models.Request{ThreadID: "t1", Input: "hello"})
	require.NoError(t, err)

	fragments, err := drainStream(stream)
	require.Equal(t, []string{"hi"}, fragments)

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	require.ErrorIs(t, err, putErr)
}

func TestStream_LoadFailureSurfacesAsStoreError(t *testing.T) {
	getErr := errors.New("corrupt record")
	store := &failingStore{inner: storage.NewMemoryCheckpointStore(), getErr: getErr}
	chat := newTestChat(t, &fakeChatModel{}, store)

	_, err := chat.Stream(context.Background(), models.Request{ThreadID: "t1", Input: "hello"})
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	require.ErrorIs(t, err, getErr)
}

func TestStream_HistoryCarryOver(t *testing.T) {
	store := storage.NewMemoryCheckpointStore()
	chatModel := &fakeChatModel{}
	chat := newTestChat(t, chatModel, store)

	chatModel.setFragments("Nice to meet you, Julia.")
	stream, err := chat.Stream(context.Background(), models.Request{ThreadID: "t1", Input: "My name is Julia."})
	require.NoError(t, err)
	_, err = drainStream(stream)
	require.NoError(t, err)

	chatModel.setFragments("Your name is Julia.")
	stream, err = chat.Stream(context.Background(), models.Request{ThreadID: "t1", Input: "What is my name?"})
	require.NoError(t, err)
	_, err = drainStream(stream)
	require.NoError(t, err)

	// The second generation call saw the first turn's transcript.
	var sawTranscript bool
	for _, msg := range chatModel.lastCall() {
		if strings.Contains(msg.Content, "User: My name is Julia.") {
			sawTranscript = true
		}
	}
	require.True(t, sawTranscript)

	checkpoint, err := store.Get("t1")
	require.NoError(t, err)
	require.Equal(t, 2, checkpoint.Version)
	require.Len(t, checkpoint.Messages, 4)
	require.Equal(t, models.UserMessage("My name is Julia."), checkpoint.Messages[0])
	require.Equal(t, models.AssistantMessage("Nice to meet you, Julia."), checkpoint.Messages[1])
	require.Equal(t, models.UserMessage("What is my name?"), checkpoint.Messages[2])
	require.Equal(t, models.AssistantMessage("Your name is Julia."), checkpoint.Messages[3])
}

func TestStream_ThreadIsolation(t *testing.T) {
	store := storage.NewMemoryCheckpointStore()
	chatModel := &fakeChatModel{}
	chat := newTestChat(t, chatModel, store)

	chatModel.setFragments("about t1")
	stream, err := chat.Stream(context.Background(), models.Request{ThreadID: "t1", Input: "first thread"})
	require.NoError(t, err)
	_, err = drainStream(stream)
	require.NoError(t, err)

	chatModel.setFragments("about t2")
	stream, err = chat.Stream(context.Background(), models.Request{ThreadID: "t2", Input: "second thread"})
	require.NoError(t, err)
	_, err = drainStream(stream)
	require.NoError(t, err)

	cp1, err := store.Get("t1")
	require.NoError(t, err)
	cp2, err := store.Get("t2")
	require.NoError(t, err)

	require.Equal(t, 1, cp1.Version)
	require.Equal(t, 1, cp2.Version)
	require.Equal(t, "about t1", cp1.Messages[1].Content)
	require.Equal(t, "about t2", cp2.Messages[1].Content)
	require.Equal(t, "first thread", cp1.Messages[0].Content)
	require.Equal(t, "second thread", cp2.Messages[0].Content)
}

func TestInvoke_CommitsFullResponse(t *testing.T) {
	store := storage.NewMemoryCheckpointStore()
	chatModel := &fakeChatModel{response: "Four."}
	chat := newTestChat(t, chatModel, store)

	response, err := chat.Invoke(context.Background(), models.Request{ThreadID: "t1", Input: "What is 2+2?"})
	require.NoError(t, err)
	require.Equal(t, "Four.", response.Content)

	checkpoint, err := store.Get("t1")
	require.NoError(t, err)
	require.Equal(t, 1, checkpoint.Version)
	require.Equal(t, "Four.", checkpoint.Messages[1].Content)
}

func TestInvoke_FailureDoesNotPersist(t *testing.T) {
	store := storage.NewMemoryCheckpointStore()
	backendErr := errors.New("backend unavailable")
	chatModel := &fakeChatModel{genErr: backendErr}
	chat := newTestChat(t, chatModel, store)

	_, err := chat.Invoke(context.Background(), models.Request{ThreadID: "t1", Input: "hello"})
	var generationErr *GenerationError
	require.ErrorAs(t, err, &generationErr)

	checkpoint, storeErr := store.Get("t1")
	require.NoError(t, storeErr)
	require.Nil(t, checkpoint)
}

func TestInvoke_EmptyResponseIsNoOp(t *testing.T) {
	store := storage.NewMemoryCheckpointStore()
	chat := newTestChat(t, &fakeChatModel{response: ""}, store)

	response, err := chat.Invoke(context.Background(), models.Request{ThreadID: "t1", Input: "hello"})
	require.NoError(t, err)
	require.Empty(t, response.Content)

	checkpoint, err := store.Get("t1")
	require.NoError(t, err)
	require.Nil(t, checkpoint)
}

func TestInvoke_CommitFailureSurfacesAsStoreError(t *testing.T) {
	putErr := errors.New("disk full")
	store := &failingStore{inner: storage.NewMemoryCheckpointStore(), putErr: putErr}
	chat := newTestChat(t, &fakeChatModel{response: "hi"}, store)

	_, err := chat.Invoke(context.Background(), models.Request{ThreadID: "t1", Input: "hello"})
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	require.ErrorIs(t, err, putErr)
}

func TestChat_RejectsEmptyInput(t *testing.T) {
	chat := newTestChat(t, &fakeChatModel{}, storage.NewMemoryCheckpointStore())

	_, err := chat.Invoke(context.Background(), models.Request{ThreadID: "t1", Input: "   "})
	require.Error(t, err)

	_, err = chat.Stream(context.Background(), models.Request{ThreadID: "", Input: "hello"})
	require.Error(t, err)
}

func TestAddContext_WithoutStoreIsConfigurationError(t *testing.T) {
	chat := newTestChat(t, &fakeChatModel{}, storage.NewMemoryCheckpointStore())

	_, err := chat.AddContext(context.Background(), []*schema.Document{{Content: "doc"}})
	require.ErrorIs(t, err, ErrNoContextStore)

	var configErr *ConfigurationError
	require.ErrorAs(t, err, &configErr)
}
