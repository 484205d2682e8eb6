package storage

import (
	"fmt"
	"sync"

	"github.com/parleykit/parley/internal/models"
)

// MemoryCheckpointStore keeps checkpoints in process memory. It is used in
// tests and anywhere durability is not needed. Safe for concurrent readers
// and writers; it does not serialize read-modify-write turns, that remains
// the caller's responsibility.
type MemoryCheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*models.Checkpoint
}

func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{
		checkpoints: make(map[string]*models.Checkpoint),
	}
}

func (s *MemoryCheckpointStore) Get(threadID string) (*models.Checkpoint, error) {
	if threadID == "" {
		return nil, fmt.Errorf("thread id is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkpoints[threadID].Clone(), nil
}

func (s *MemoryCheckpointStore) Put(threadID string, checkpoint *models.Checkpoint, metadata models.CheckpointMetadata, versionHint int) error {
	if threadID == "" {
		return fmt.Errorf("thread id is required")
	}
	if checkpoint == nil {
		return fmt.Errorf("checkpoint is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[threadID] = checkpoint.Clone()
	return nil
}

func (s *MemoryCheckpointStore) Delete(threadID string) error {
	if threadID == "" {
		return fmt.Errorf("thread id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, threadID)
	return nil
}
