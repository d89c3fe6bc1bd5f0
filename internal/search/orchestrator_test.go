package search

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonplacehq/commonplace/internal/config"
	"github.com/commonplacehq/commonplace/internal/errors"
	"github.com/commonplacehq/commonplace/internal/filestore"
	"github.com/commonplacehq/commonplace/internal/store"
)

// countingIndex wraps an Index and counts query calls, so tests can
// verify the cache keeps repeat queries away from the engine.
type countingIndex struct {
	store.Index
	searchCalls int
	authorCalls int
	termCalls   int
}

func (c *countingIndex) Search(ctx context.Context, query string, limit int) ([]store.SearchResult, error) {
	c.searchCalls++
	return c.Index.Search(ctx, query, limit)
}

func (c *countingIndex) SearchByAuthor(ctx context.Context, author string, limit int) ([]store.SearchResult, error) {
	c.authorCalls++
	return c.Index.SearchByAuthor(ctx, author, limit)
}

func (c *countingIndex) SearchTerms(ctx context.Context, terms []string, matchAll bool, limit int) ([]store.SearchResult, error) {
	c.termCalls++
	return c.Index.SearchTerms(ctx, terms, matchAll, limit)
}

func newOrchestrator(t *testing.T) (*Orchestrator, *countingIndex, *filestore.Store) {
	t.Helper()

	files, err := filestore.New(t.TempDir())
	require.NoError(t, err)

	idx := &countingIndex{Index: store.NewSQLiteIndex("", nil)}
	cfg := config.Default(t.TempDir())

	o := New(idx, files, cfg, nil)
	require.NoError(t, o.Initialize(context.Background()))
	t.Cleanup(func() { _ = o.Close() })
	return o, idx, files
}

func doc(id, author, text string) store.Document {
	now := time.Now()
	return store.Document{
		ID:        id,
		Author:    author,
		Content:   text,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// prose builds a text of roughly n words with a marker in the final
// sentence.
func prose(n int, marker string) string {
	var b strings.Builder
	for i := 0; i < n/7; i++ {
		fmt.Fprintf(&b, "Entry %d records another perfectly ordinary observation. ", i)
	}
	b.WriteString("At the very end the word " + marker + " appears.")
	return b.String()
}

func TestIndexDocument_ShortDocumentIndexedWhole(t *testing.T) {
	o, _, files := newOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, o.IndexDocument(ctx, doc("d1", "Socrates", "The unexamined life is not worth living.")))

	st, err := o.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Documents)
	assert.Zero(t, st.Chunks)
	assert.Greater(t, st.StorageBytes, int64(0))

	raw, err := files.LoadText("d1")
	require.NoError(t, err)
	assert.Equal(t, "The unexamined life is not worth living.", raw)

	results, err := o.Search(ctx, "unexamined", Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d1", results[0].DocumentID)
	assert.Greater(t, results[0].Relevance, 0.0)
}

func TestIndexDocument_LongDocumentChunked(t *testing.T) {
	o, _, files := newOrchestrator(t)
	ctx := context.Background()

	text := prose(3000, "kintsugi")
	require.NoError(t, o.IndexDocument(ctx, doc("d-long", "Anonymous", text)))

	st, err := o.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Documents)
	assert.GreaterOrEqual(t, st.Chunks, 2)

	// A term unique to the final chunk surfaces the parent document.
	results, err := o.Search(ctx, "kintsugi", Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d-long", results[0].DocumentID)

	// Chunk files are loadable from the file store.
	chunk, err := files.LoadChunk("d-long-0000", "d-long")
	require.NoError(t, err)
	assert.NotEmpty(t, chunk)
}

func TestIndexDocument_EmptyTextRejected(t *testing.T) {
	o, _, _ := newOrchestrator(t)

	err := o.IndexDocument(context.Background(), doc("d1", "a", "   "))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
}

func TestUpdateIndex_ShrinkBelowThresholdDropsChunks(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, o.IndexDocument(ctx, doc("d1", "Anonymous", prose(3000, "ephemeral"))))

	updated := doc("d1", "Anonymous", "A short replacement note about brevity.")
	require.NoError(t, o.UpdateIndex(ctx, updated))

	st, err := o.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Chunks)

	results, err := o.Search(ctx, "ephemeral", Options{})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = o.Search(ctx, "brevity", Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestUpdateIndex_MissingDocument(t *testing.T) {
	o, _, _ := newOrchestrator(t)

	err := o.UpdateIndex(context.Background(), doc("ghost", "a", "some text"))
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestRemoveFromIndex(t *testing.T) {
	o, _, files := newOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, o.IndexDocument(ctx, doc("d1", "Seneca", "Time discovers truth.")))
	require.NoError(t, o.RemoveFromIndex(ctx, "d1"))

	results, err := o.Search(ctx, "truth", Options{})
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = files.LoadText("d1")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestSearch_CacheAvoidsSecondStoreHit(t *testing.T) {
	o, idx, _ := newOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, o.IndexDocument(ctx, doc("d1", "Seneca", "Time discovers truth.")))

	first, err := o.Search(ctx, "truth", Options{})
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, 1, idx.searchCalls)

	second, err := o.Search(ctx, "truth", Options{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, idx.searchCalls, "second call must be served from cache")
	assert.Equal(t, 1, idx.authorCalls)
}

func TestSearch_DifferentOptionsBypassCache(t *testing.T) {
	o, idx, _ := newOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, o.IndexDocument(ctx, doc("d1", "Seneca", "Time discovers truth.")))

	_, err := o.Search(ctx, "truth", Options{Limit: 5})
	require.NoError(t, err)
	_, err = o.Search(ctx, "truth", Options{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, idx.searchCalls)
}

func TestSearch_CachePurgedOnMutation(t *testing.T) {
	o, idx, _ := newOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, o.IndexDocument(ctx, doc("d1", "Seneca", "Time discovers truth.")))

	_, err := o.Search(ctx, "truth", Options{})
	require.NoError(t, err)
	require.Equal(t, 1, idx.searchCalls)

	require.NoError(t, o.IndexDocument(ctx, doc("d2", "Seneca", "Another note on truth.")))

	results, err := o.Search(ctx, "truth", Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, idx.searchCalls, "mutation must purge the cache")
	assert.Len(t, results, 2)
}

func TestSearch_MergeKeepsHigherScoreOnCollision(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	ctx := context.Background()

	// The same document matches both by content and by author; the
	// fixed author relevance of 95 outranks a BM25 content score.
	require.NoError(t, o.IndexDocument(ctx, doc("d1", "Seneca", "What seneca wrote about fortune.")))

	results, err := o.Search(ctx, "seneca", Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d1", results[0].DocumentID)
	assert.Equal(t, 95.0, results[0].Relevance)
	assert.Equal(t, store.MatchAuthor, results[0].MatchType)
}

func TestSearch_MinRelevanceFilter(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, o.IndexDocument(ctx, doc("d1", "Seneca", "A note about luck and fortune.")))
	require.NoError(t, o.IndexDocument(ctx, doc("d2", "Luck Smith", "Unrelated content entirely.")))

	// d2 matches only by author (fixed 95); d1 matches by content with a
	// BM25-derived score well below 90.
	results, err := o.Search(ctx, "luck", Options{MinRelevance: 90})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d2", results[0].DocumentID)
}

func TestSearch_LimitTruncates(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("d%d", i)
		require.NoError(t, o.IndexDocument(ctx, doc(id, "Author", fmt.Sprintf("Note %d mentions wisdom.", i))))
	}

	results, err := o.Search(ctx, "wisdom", Options{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSearchByKeywords(t *testing.T) {
	o, idx, _ := newOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, o.IndexDocument(ctx, doc("d1", "Seneca", "Time discovers truth.")))
	require.NoError(t, o.IndexDocument(ctx, doc("d2", "Epictetus", "Wealth consists not in having great possessions.")))

	results, err := o.SearchByKeywords(ctx, []string{"truth", "wealth"}, false, Options{})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, 1, idx.termCalls)

	results, err = o.SearchByKeywords(ctx, []string{"truth", "wealth"}, true, Options{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindSimilar_AuthorThenKeywords(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, o.IndexDocument(ctx, doc("ref", "Marcus Aurelius", "The ancient stoic philosophy endures through practice.")))
	require.NoError(t, o.IndexDocument(ctx, doc("same-author", "Marcus Aurelius", "Waste no more time arguing what a good man should be.")))
	require.NoError(t, o.IndexDocument(ctx, doc("same-topic", "Epictetus", "His philosophy asks what is in our control.")))
	require.NoError(t, o.IndexDocument(ctx, doc("unrelated", "Anonymous", "A grocery list of no consequence.")))

	results, err := o.FindSimilar(ctx, "ref", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "same-author", results[0].DocumentID, "same-author hits come first")
	assert.Equal(t, "same-topic", results[1].DocumentID, "keyword hits appended after")

	for _, r := range results {
		assert.NotEqual(t, "ref", r.DocumentID, "reference document is excluded")
	}
}

func TestFindSimilar_AccentedAuthor(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, o.IndexDocument(ctx, doc("ref", "Séneca", "Anger is a short madness that burns briefly.")))
	require.NoError(t, o.IndexDocument(ctx, doc("same-author", "Séneca", "No wind favors the sailor without a port.")))

	results, err := o.FindSimilar(ctx, "ref", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results, "the stored accented author must match itself")
	assert.Equal(t, "same-author", results[0].DocumentID)
}

func TestSearch_AccentedAuthorMergedAsAuthorMatch(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, o.IndexDocument(ctx, doc("d1", "Séneca", "A note on the brevity of life.")))

	results, err := o.Search(ctx, "seneca", Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, store.MatchAuthor, results[0].MatchType)
	assert.Equal(t, 95.0, results[0].Relevance)
}

func TestFindSimilar_MissingReference(t *testing.T) {
	o, _, _ := newOrchestrator(t)

	_, err := o.FindSimilar(context.Background(), "ghost", 10)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestFindSimilar_ChunkedReferenceLoadsTextFromFiles(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, o.IndexDocument(ctx, doc("ref", "Anonymous", prose(3000, "threadbare"))))
	require.NoError(t, o.IndexDocument(ctx, doc("other", "Seneca", "An observation on records and entries.")))

	// The chunked reference has no content in its index row; keywords
	// must come from the raw text in the file store.
	results, err := o.FindSimilar(ctx, "ref", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "other", results[0].DocumentID)
}

func TestGetSuggestions(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	ctx := context.Background()

	for _, q := range []string{"stoic virtue", "stoic practice", "modern habits"} {
		_, err := o.Search(ctx, q, Options{})
		require.NoError(t, err)
	}

	got, err := o.GetSuggestions(ctx, "stoic", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"stoic practice", "stoic virtue"}, got)

	got, err = o.GetSuggestions(ctx, "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"modern habits", "stoic practice"}, got)

	recents, err := o.GetRecentSearches(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recents, 3)
}

func TestRebuildKeepsSearchWorking(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, o.IndexDocument(ctx, doc("d1", "Socrates", "Know thyself.")))
	require.NoError(t, o.Rebuild(ctx))
	require.NoError(t, o.Optimize(ctx))

	results, err := o.Search(ctx, "thyself", Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
}
