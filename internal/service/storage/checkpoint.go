package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/parleykit/parley/internal/models"
)

const checkpointKeyPrefix = "checkpoint:"

// CheckpointStore is the durable, versioned, per-thread checkpoint store
// consumed by the chat core. Get returns nil without error when no
// checkpoint exists for the thread.
//
// The versionHint passed to Put is the new total message count; it is kept
// as auxiliary bookkeeping alongside the record and is not used for
// concurrency control.
type CheckpointStore interface {
	Get(threadID string) (*models.Checkpoint, error)
	Put(threadID string, checkpoint *models.Checkpoint, metadata models.CheckpointMetadata, versionHint int) error
}

// CheckpointDeleter is implemented by stores that support removing a
// thread's checkpoint. The chat core never deletes; the thread catalog does
// when a thread is removed.
type CheckpointDeleter interface {
	Delete(threadID string) error
}

type checkpointRecord struct {
	Checkpoint   *models.Checkpoint        `json:"checkpoint"`
	Metadata     models.CheckpointMetadata `json:"metadata"`
	MessageCount int                       `json:"message_count"`
	SavedAt      int64                     `json:"saved_at"`
}

// BoltCheckpointStore persists checkpoints as JSON records in the shared
// database, one key per thread.
type BoltCheckpointStore struct {
	db *Database
}

func NewCheckpointStore(db *Database) *BoltCheckpointStore {
	return &BoltCheckpointStore{db: db}
}

func (s *BoltCheckpointStore) Get(threadID string) (*models.Checkpoint, error) {
	if threadID == "" {
		return nil, fmt.Errorf("thread id is required")
	}

	value, err := s.db.Get([]byte(checkpointKeyPrefix + threadID))
	if err != nil {
		return nil, err
	}
	if len(value) == 0 {
		return nil, nil
	}

	var record checkpointRecord
	if err := json.Unmarshal(value, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint %s: %w", threadID, err)
	}

	return record.Checkpoint, nil
}

func (s *BoltCheckpointStore) Put(threadID string, checkpoint *models.Checkpoint, metadata models.CheckpointMetadata, versionHint int) error {
	if threadID == "" {
		return fmt.Errorf("thread id is required")
	}
	if checkpoint == nil {
		return fmt.Errorf("checkpoint is required")
	}

	record := checkpointRecord{
		Checkpoint:   checkpoint,
		Metadata:     metadata,
		MessageCount: versionHint,
		SavedAt:      time.Now().UnixMilli(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint %s: %w", threadID, err)
	}

	return s.db.Put([]byte(checkpointKeyPrefix+threadID), data)
}

// Delete removes a thread's checkpoint. Retention is a store concern, not
// part of the core's contract, so this lives outside CheckpointStore.
func (s *BoltCheckpointStore) Delete(threadID string) error {
	if threadID == "" {
		return fmt.Errorf("thread id is required")
	}
	return s.db.Delete([]byte(checkpointKeyPrefix + threadID))
}
