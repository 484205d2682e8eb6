// Package docstore provides an in-memory document store implementing the
// retriever and indexer contracts. It ranks by term overlap; a real vector
// backend can be swapped in through the same interfaces.
package docstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"github.com/parleykit/parley/internal/utils"
)

const defaultTopK = 4

type Store struct {
	mu   sync.RWMutex
	docs []*schema.Document
}

func New() *Store {
	return &Store{}
}

func (s *Store) Store(ctx context.Context, docs []*schema.Document, opts ...indexer.Option) ([]string, error) {
	ids := make([]string, 0, len(docs))

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		if doc == nil || doc.Content == "" {
			continue
		}

		stored := &schema.Document{
			ID:       doc.ID,
			Content:  doc.Content,
			MetaData: doc.MetaData,
		}
		if stored.ID == "" {
			stored.ID = utils.GenerateUUID()
		}

		s.docs = append(s.docs, stored)
		ids = append(ids, stored.ID)
	}

	return ids, nil
}

func (s *Store) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	topK := defaultTopK
	options := retriever.GetCommonOptions(&retriever.Options{}, opts...)
	if options.TopK != nil && *options.TopK > 0 {
		topK = *options.TopK
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	type scored struct {
		doc   *schema.Document
		score int
	}

	s.mu.RLock()
	ranked := make([]scored, 0, len(s.docs))
	for _, doc := range s.docs {
		score := overlap(terms, tokenize(doc.Content))
		if score > 0 {
			ranked = append(ranked, scored{doc: doc, score: score})
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	docs := make([]*schema.Document, 0, len(ranked))
	for _, r := range ranked {
		docs = append(docs, r.doc)
	}
	return docs, nil
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = nil
}

func tokenize(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, field := range strings.Fields(strings.ToLower(text)) {
		term := strings.Trim(field, ".,;:!?\"'()[]{}")
		if term != "" {
			terms[term] = struct{}{}
		}
	}
	return terms
}

func overlap(query, doc map[string]struct{}) int {
	count := 0
	for term := range query {
		if _, ok := doc[term]; ok {
			count += 1
		}
	}
	return count
}
