package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"

	"github.com/parleykit/parley/internal/models"
	"github.com/parleykit/parley/internal/service/storage"
)

const defaultThreadTitle = "New chat"

// ThreadService is the catalog of conversation threads. It also provides
// the per-thread turn serialization the chat core assumes: each thread has
// a mutex held from the start of a turn until its checkpoint commit has
// completed, so same-thread turns never interleave their read-modify-write
// against the store.
type ThreadService struct {
	chat        *Chat
	db          *storage.Database
	checkpoints storage.CheckpointDeleter
	modelID     string

	mu      sync.RWMutex
	threads map[string]*threadState
}

type threadState struct {
	info *models.ThreadInfo

	// turnMu serializes turns on this thread.
	turnMu sync.Mutex
}

// NewThreadService loads the persisted catalog. db and checkpoints may be
// nil when running without durable storage.
func NewThreadService(chat *Chat, db *storage.Database, checkpoints storage.CheckpointDeleter, modelID string) (*ThreadService, error) {
	if chat == nil {
		return nil, fmt.Errorf("chat is required")
	}

	s := &ThreadService{
		chat:        chat,
		db:          db,
		checkpoints: checkpoints,
		modelID:     modelID,
		threads:     make(map[string]*threadState),
	}

	if db != nil {
		infos, err := storage.LoadThreadInfos(db)
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			s.threads[info.ID] = &threadState{info: info}
		}
	}

	return s, nil
}

func (s *ThreadService) CreateThread() (string, error) {
	now := time.Now().UnixMilli()
	info := &models.ThreadInfo{
		ID:        GenerateThreadID(),
		Title:     defaultThreadTitle,
		Model:     s.modelID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.persistInfo(info); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.threads[info.ID] = &threadState{info: info}
	s.mu.Unlock()

	return info.ID, nil
}

func (s *ThreadService) ListThreads() []*models.ThreadInfo {
	s.mu.RLock()
	infos := make([]*models.ThreadInfo, 0, len(s.threads))
	for _, st := range s.threads {
		info := *st.info
		infos = append(infos, &info)
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].UpdatedAt > infos[j].UpdatedAt
	})
	return infos
}

func (s *ThreadService) DeleteThread(id string) error {
	s.mu.RLock()
	_, exists := s.threads[id]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("thread not found: %s", id)
	}

	if s.db != nil {
		if err := storage.DeleteThreadInfo(s.db, id); err != nil {
			return err
		}
	}
	if s.checkpoints != nil {
		if err := s.checkpoints.Delete(id); err != nil {
			return err
		}
	}

	s.mu.Lock()
	delete(s.threads, id)
	s.mu.Unlock()

	return nil
}

// StreamTurn starts a streaming turn on a thread. The thread's turn lock is
// held until the turn's commit has completed, regardless of how the stream
// ends, so callers may abandon the returned stream freely.
func (s *ThreadService) StreamTurn(ctx context.Context, id, userInput string) (*schema.StreamReader[string], error) {
	st, err := s.thread(id)
	if err != nil {
		return nil, err
	}

	st.turnMu.Lock()
	stream, done, err := s.chat.stream(ctx, models.Request{ThreadID: id, Input: userInput})
	if err != nil {
		st.turnMu.Unlock()
		return nil, err
	}

	go func() {
		<-done
		s.touch(st)
		st.turnMu.Unlock()
	}()

	return stream, nil
}

// InvokeTurn runs a one-shot turn on a thread under the same serialization.
func (s *ThreadService) InvokeTurn(ctx context.Context, id, userInput string) (*models.Response, error) {
	st, err := s.thread(id)
	if err != nil {
		return nil, err
	}

	st.turnMu.Lock()
	defer st.turnMu.Unlock()

	response, err := s.chat.Invoke(ctx, models.Request{ThreadID: id, Input: userInput})
	if err != nil {
		return nil, err
	}

	s.touch(st)
	return response, nil
}

func (s *ThreadService) ThreadMessages(id string) ([]models.Message, string, error) {
	if _, err := s.thread(id); err != nil {
		return nil, "", err
	}
	return s.chat.History(id)
}

// IsFirstTurn reports whether the thread has no persisted turns yet.
func (s *ThreadService) IsFirstTurn(id string) (bool, error) {
	if _, err := s.thread(id); err != nil {
		return false, err
	}

	messages, _, err := s.chat.History(id)
	if err != nil {
		return false, err
	}
	return len(messages) == 0, nil
}

func (s *ThreadService) UpdateThreadTitle(id, title string) error {
	st, err := s.thread(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	st.info.Title = title
	st.info.UpdatedAt = time.Now().UnixMilli()
	s.mu.Unlock()

	return s.persistInfo(st.info)
}

// GenerateTitle asks the chat model for a short thread title based on the
// persisted transcript, stores it, and returns it.
func (s *ThreadService) GenerateTitle(ctx context.Context, id string) (string, error) {
	messages, _, err := s.ThreadMessages(id)
	if err != nil {
		return "", err
	}
	if len(messages) == 0 {
		return defaultThreadTitle, nil
	}

	var conversationSummary strings.Builder
	for _, msg := range messages {
		conversationSummary.WriteString(msg.Role.Label())
		conversationSummary.WriteString(": ")
		conversationSummary.WriteString(msg.Content)
		conversationSummary.WriteString("\n")
	}

	systemPrompt := "You are a helpful assistant that generates concise titles for conversations."
	userPrompt := fmt.Sprintf("Based on the following conversation, generate a concise and descriptive title (maximum 10 characters). The title should capture the main topic or question. Only return the title text, nothing else.\nConversation:\n%s", conversationSummary.String())

	response, err := s.chat.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate thread title: %w", err)
	}

	title := cleanThreadTitle(messageText(response))
	if err := s.UpdateThreadTitle(id, title); err != nil {
		return "", err
	}
	return title, nil
}

func (s *ThreadService) thread(id string) (*threadState, error) {
	s.mu.RLock()
	st, exists := s.threads[id]
	s.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("thread not found: %s", id)
	}
	return st, nil
}

func (s *ThreadService) touch(st *threadState) {
	s.mu.Lock()
	st.info.UpdatedAt = time.Now().UnixMilli()
	s.mu.Unlock()

	if err := s.persistInfo(st.info); err != nil {
		fmt.Printf("Failed to persist thread %s: %v\n", st.info.ID, err)
	}
}

func (s *ThreadService) persistInfo(info *models.ThreadInfo) error {
	if s.db == nil {
		return nil
	}
	return storage.SaveThreadInfo(s.db, info)
}

func cleanThreadTitle(title string) string {
	title = strings.TrimSpace(title)

	if len(title) >= 2 && title[0] == '"' && title[len(title)-1] == '"' {
		title = title[1 : len(title)-1]
		title = strings.TrimSpace(title)
	}

	runeCount := utf8.RuneCountInString(title)
	if runeCount > 10 {
		runes := []rune(title)
		title = string(runes[:9]) + "..."
	}

	if title == "" {
		return defaultThreadTitle
	}

	return title
}
