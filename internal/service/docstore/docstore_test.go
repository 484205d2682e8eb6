package docstore

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"
)

func TestStore_AssignsIDs(t *testing.T) {
	store := New()

	ids, err := store.Store(context.Background(), []*schema.Document{
		{Content: "first document"},
		{ID: "doc-2", Content: "second document"},
		nil,
		{Content: ""},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	require.NotEmpty(t, ids[0])
	require.Equal(t, "doc-2", ids[1])
}

func TestRetrieve_RanksByOverlap(t *testing.T) {
	store := New()

	_, err := store.Store(context.Background(), []*schema.Document{
		{ID: "a", Content: "The deploy key is stored in the vault."},
		{ID: "b", Content: "Lunch is at noon."},
		{ID: "c", Content: "The vault also holds the backup deploy key."},
	})
	require.NoError(t, err)

	docs, err := store.Retrieve(context.Background(), "where is the deploy key")
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	for _, doc := range docs {
		require.NotEqual(t, "b", doc.ID)
	}
	require.Equal(t, "a", docs[0].ID)
}

func TestRetrieve_RespectsTopK(t *testing.T) {
	store := New()

	_, err := store.Store(context.Background(), []*schema.Document{
		{Content: "alpha topic one"},
		{Content: "alpha topic two"},
		{Content: "alpha topic three"},
	})
	require.NoError(t, err)

	docs, err := store.Retrieve(context.Background(), "alpha topic", retriever.WithTopK(2))
	require.NoError(t, err)
	require.Len(t, docs, 2)
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	store := New()

	docs, err := store.Retrieve(context.Background(), "   ")
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestClear(t *testing.T) {
	store := New()

	_, err := store.Store(context.Background(), []*schema.Document{{Content: "alpha"}})
	require.NoError(t, err)

	store.Clear()

	docs, err := store.Retrieve(context.Background(), "alpha")
	require.NoError(t, err)
	require.Empty(t, docs)
}
