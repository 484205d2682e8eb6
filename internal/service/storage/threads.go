package storage

import (
	"encoding/json"
	"fmt"

	"github.com/parleykit/parley/internal/models"
)

const threadKeyPrefix = "thread:"

// SaveThreadInfo persists catalog metadata for one thread. Message history
// is not stored here, it lives in the thread's checkpoint.
func SaveThreadInfo(db *Database, info *models.ThreadInfo) error {
	if info == nil {
		return fmt.Errorf("thread info is required")
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal thread %s: %w", info.ID, err)
	}

	return db.Put([]byte(threadKeyPrefix+info.ID), data)
}

func LoadThreadInfos(db *Database) ([]*models.ThreadInfo, error) {
	entries, err := db.List([]byte(threadKeyPrefix))
	if err != nil {
		return nil, err
	}

	threads := make([]*models.ThreadInfo, 0, len(entries))
	for key, value := range entries {
		if len(value) == 0 {
			continue
		}

		var info models.ThreadInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return nil, fmt.Errorf("failed to unmarshal thread %s: %w", key, err)
		}
		if info.ID == "" {
			continue
		}

		threads = append(threads, &info)
	}

	return threads, nil
}

func DeleteThreadInfo(db *Database, id string) error {
	if id == "" {
		return fmt.Errorf("thread id is required")
	}

	return db.Delete([]byte(threadKeyPrefix + id))
}
