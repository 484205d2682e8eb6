package service

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
)

// ContextStore is the retrieval collaborator: documents go in through the
// indexer contract and come back out ranked by similarity. The core treats
// retrieved documents as opaque extra input text; they are never part of
// the checkpoint.
type ContextStore interface {
	retriever.Retriever
	indexer.Indexer
}

// SetContext installs the retrieval store used for subsequent turns.
func (c *Chat) SetContext(store ContextStore) {
	c.contextMu.Lock()
	defer c.contextMu.Unlock()
	c.contextStore = store
}

// ClearContext removes the retrieval store; turns proceed without context.
func (c *Chat) ClearContext() {
	c.contextMu.Lock()
	defer c.contextMu.Unlock()
	c.contextStore = nil
}

// AddContext indexes documents into the configured retrieval store and
// returns their ids. Calling it before SetContext is a configuration error.
func (c *Chat) AddContext(ctx context.Context, docs []*schema.Document) ([]string, error) {
	store := c.currentContextStore()
	if store == nil {
		return nil, ErrNoContextStore
	}
	return store.Store(ctx, docs)
}

func (c *Chat) currentContextStore() ContextStore {
	c.contextMu.RLock()
	defer c.contextMu.RUnlock()
	return c.contextStore
}

func (c *Chat) retrieveContext(ctx context.Context, query string) (string, error) {
	store := c.currentContextStore()
	if store == nil || c.topK <= 0 {
		return "", nil
	}

	docs, err := store.Retrieve(ctx, query, retriever.WithTopK(c.topK))
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", nil
	}

	lines := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc == nil || doc.Content == "" {
			continue
		}
		lines = append(lines, "- "+doc.Content)
	}
	return strings.Join(lines, "\n"), nil
}
