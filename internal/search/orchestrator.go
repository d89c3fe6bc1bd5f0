// Package search is the public-facing service layer over the persistent
// index: it decides chunked vs. whole-document indexing, merges ranked
// content and author hits, caches recent queries, and serves history
// driven suggestions.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/commonplacehq/commonplace/internal/chunker"
	"github.com/commonplacehq/commonplace/internal/config"
	"github.com/commonplacehq/commonplace/internal/errors"
	"github.com/commonplacehq/commonplace/internal/filestore"
	"github.com/commonplacehq/commonplace/internal/store"
	"github.com/commonplacehq/commonplace/internal/textnorm"
)

// DefaultLimit caps result sets when the caller does not specify one.
const DefaultLimit = 20

// Options tunes a single search call.
type Options struct {
	// Limit caps the merged result set. Zero means DefaultLimit.
	Limit int
	// MinRelevance drops results scoring below it (0-100 scale).
	MinRelevance float64
}

func (o Options) limit() int {
	if o.Limit <= 0 {
		return DefaultLimit
	}
	return o.Limit
}

// Stats extends index statistics with file store usage.
type Stats struct {
	store.Stats
	StorageBytes int64
}

// Orchestrator coordinates the index, the chunker, and the file store
// behind one service surface. Raw document text lives in the file
// store; only normalized searchable content reaches the index.
type Orchestrator struct {
	index     store.Index
	files     *filestore.Store
	chunkCfg  chunker.Config
	threshold int
	cache     *expirable.LRU[string, []store.SearchResult]
	logger    *slog.Logger
}

// New builds an Orchestrator over the given index and file store.
// A nil logger falls back to slog.Default.
func New(index store.Index, files *filestore.Store, cfg config.Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		index:     index,
		files:     files,
		chunkCfg:  chunker.ConfigByName(cfg.Chunking.Preset),
		threshold: cfg.Chunking.ThresholdWords,
		cache:     expirable.NewLRU[string, []store.SearchResult](cfg.Cache.MaxEntries, nil, cfg.Cache.TTL),
		logger:    logger.With("component", "search"),
	}
}

// Initialize opens the underlying index.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	return o.index.Initialize(ctx)
}

// Close releases the underlying index.
func (o *Orchestrator) Close() error {
	return o.index.Close()
}

// IndexDocument indexes a new document. doc.Content carries the raw
// text; the orchestrator persists it to the file store, decides whether
// to chunk based on the word-count threshold, and writes normalized
// content to the index. The query cache is purged.
func (o *Orchestrator) IndexDocument(ctx context.Context, doc store.Document) error {
	raw := doc.Content
	if strings.TrimSpace(raw) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "document text must not be empty", nil)
	}
	defer o.cache.Purge()

	doc.WordCount = textnorm.WordCount(raw)

	path, err := o.files.SaveText(raw, doc.ID)
	if err != nil {
		return err
	}
	doc.ExternalContentPath = path

	if doc.WordCount <= o.threshold {
		doc.Content = textnorm.PrepareForIndexing(raw)
		doc.IsChunked = false
		return o.index.InsertDocument(ctx, doc)
	}

	chunks, err := chunker.Split(textnorm.PrepareForIndexing(raw), doc.ID, o.chunkCfg)
	if err != nil {
		return err
	}
	// Chunked documents are searched through the chunk index; the
	// document row keeps only its metadata and author.
	doc.Content = ""
	doc.IsChunked = true
	if err := o.index.InsertDocument(ctx, doc); err != nil {
		return err
	}
	return o.writeChunks(ctx, chunks, doc.ID)
}

// UpdateIndex re-indexes an existing document after an edit or a
// favorite toggle. Chunk sets are rebuilt from scratch; a document
// shrinking below the threshold has its chunks removed.
func (o *Orchestrator) UpdateIndex(ctx context.Context, doc store.Document) error {
	raw := doc.Content
	if strings.TrimSpace(raw) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "document text must not be empty", nil)
	}

	existing, err := o.index.GetDocument(ctx, doc.ID)
	if err != nil {
		return err
	}
	defer o.cache.Purge()

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = existing.CreatedAt
	}
	doc.WordCount = textnorm.WordCount(raw)

	path, err := o.files.SaveText(raw, doc.ID)
	if err != nil {
		return err
	}
	doc.ExternalContentPath = path

	if doc.WordCount <= o.threshold {
		doc.Content = textnorm.PrepareForIndexing(raw)
		doc.IsChunked = false
		if err := o.index.UpdateDocument(ctx, doc); err != nil {
			return err
		}
		if existing.IsChunked {
			if err := o.index.DeleteChunks(ctx, doc.ID); err != nil {
				return err
			}
			if err := o.files.DeleteChunks(doc.ID); err != nil {
				o.logger.Warn("chunk_file_cleanup_failed", "document_id", doc.ID, "error", err.Error())
			}
		}
		return nil
	}

	chunks, err := chunker.Split(textnorm.PrepareForIndexing(raw), doc.ID, o.chunkCfg)
	if err != nil {
		return err
	}
	doc.Content = ""
	doc.IsChunked = true
	if err := o.index.UpdateDocument(ctx, doc); err != nil {
		return err
	}
	if err := o.files.DeleteChunks(doc.ID); err != nil {
		o.logger.Warn("chunk_file_cleanup_failed", "document_id", doc.ID, "error", err.Error())
	}
	return o.writeChunks(ctx, chunks, doc.ID)
}

// writeChunks persists a validated chunk set to the file store and the
// index. The index write replaces any previous set for the document.
func (o *Orchestrator) writeChunks(ctx context.Context, chunks []chunker.Chunk, documentID string) error {
	for _, c := range chunks {
		if _, err := o.files.SaveChunk(c.Content, c.ID, documentID); err != nil {
			return err
		}
	}
	return o.index.InsertChunks(ctx, chunks, documentID)
}

// RemoveFromIndex deletes a document from the index and the file store.
// File store cleanup failures are logged, not surfaced: the index is
// the source of truth and orphaned files are swept by CleanupOrphans.
func (o *Orchestrator) RemoveFromIndex(ctx context.Context, id string) error {
	if err := o.index.DeleteDocument(ctx, id); err != nil {
		return err
	}
	o.cache.Purge()
	if err := o.files.DeleteChunks(id); err != nil {
		o.logger.Warn("chunk_file_cleanup_failed", "document_id", id, "error", err.Error())
	}
	if err := o.files.DeleteText(id); err != nil {
		o.logger.Warn("text_file_cleanup_failed", "document_id", id, "error", err.Error())
	}
	return nil
}

// Search runs the merged ranked query: content search and author search
// against the index, merged by document id keeping the higher score on
// collision, filtered by MinRelevance, sorted descending, truncated to
// the limit. Results are cached per query+options for the configured
// TTL; any index mutation purges the cache.
func (o *Orchestrator) Search(ctx context.Context, query string, opts Options) ([]store.SearchResult, error) {
	key := cacheKey(query, opts)
	if cached, ok := o.cache.Get(key); ok {
		o.logger.Debug("query_cache_hit", "query", query)
		return cloneResults(cached), nil
	}

	limit := opts.limit()
	content, err := o.index.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	byAuthor, err := o.index.SearchByAuthor(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	merged := mergeResults(content, byAuthor)
	merged = filterResults(merged, opts.MinRelevance)
	sortResults(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}

	o.cache.Add(key, cloneResults(merged))
	return merged, nil
}

// SearchByKeywords runs a ranked query over pre-extracted keywords with
// AND (matchAll) or OR semantics. No history record is appended and no
// cache entry is made; this path serves similarity and tooling queries.
func (o *Orchestrator) SearchByKeywords(ctx context.Context, keywords []string, matchAll bool, opts Options) ([]store.SearchResult, error) {
	limit := opts.limit()
	results, err := o.index.SearchTerms(ctx, keywords, matchAll, limit)
	if err != nil {
		return nil, err
	}
	results = filterResults(results, opts.MinRelevance)
	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// GetRecentSearches returns de-duplicated recent query strings, most
// recent first.
func (o *Orchestrator) GetRecentSearches(ctx context.Context, limit int) ([]string, error) {
	return o.index.RecentSearches(ctx, limit)
}

// GetSuggestions returns recent queries starting with the given prefix,
// most recent first. An empty prefix returns plain recents.
func (o *Orchestrator) GetSuggestions(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidInput, "limit must be positive, got %d", limit)
	}
	recents, err := o.index.RecentSearches(ctx, suggestionScanDepth)
	if err != nil {
		return nil, err
	}
	needle := textnorm.Normalize(strings.TrimSpace(prefix))
	suggestions := make([]string, 0, limit)
	for _, q := range recents {
		if needle == "" || strings.HasPrefix(textnorm.Normalize(q), needle) {
			suggestions = append(suggestions, q)
			if len(suggestions) == limit {
				break
			}
		}
	}
	return suggestions, nil
}

// suggestionScanDepth bounds how far back in the history log prefix
// suggestions look.
const suggestionScanDepth = 50

// Optimize runs index maintenance.
func (o *Orchestrator) Optimize(ctx context.Context) error {
	return o.index.Optimize(ctx)
}

// Rebuild drops and refills the full-text mirrors from metadata, then
// purges the query cache.
func (o *Orchestrator) Rebuild(ctx context.Context) error {
	defer o.cache.Purge()
	return o.index.RebuildIndices(ctx)
}

// Stats reports index counts plus file store usage.
func (o *Orchestrator) Stats(ctx context.Context) (Stats, error) {
	ix, err := o.index.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	size, err := o.files.StorageSize()
	if err != nil {
		return Stats{}, err
	}
	return Stats{Stats: ix, StorageBytes: size}, nil
}

func cacheKey(query string, opts Options) string {
	return fmt.Sprintf("%s|%d|%g", query, opts.limit(), opts.MinRelevance)
}

// mergeResults combines result sets by document id, keeping the higher
// relevance score on collision. Input order is preserved for the first
// occurrence of each document.
func mergeResults(sets ...[]store.SearchResult) []store.SearchResult {
	merged := make([]store.SearchResult, 0)
	seen := make(map[string]int)
	for _, set := range sets {
		for _, r := range set {
			if i, ok := seen[r.DocumentID]; ok {
				if r.Relevance > merged[i].Relevance {
					merged[i] = r
				}
				continue
			}
			seen[r.DocumentID] = len(merged)
			merged = append(merged, r)
		}
	}
	return merged
}

func filterResults(results []store.SearchResult, minRelevance float64) []store.SearchResult {
	if minRelevance <= 0 {
		return results
	}
	kept := results[:0]
	for _, r := range results {
		if r.Relevance >= minRelevance {
			kept = append(kept, r)
		}
	}
	return kept
}

// sortResults orders by relevance descending; ties break on document id
// for deterministic output.
func sortResults(results []store.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Relevance != results[j].Relevance {
			return results[i].Relevance > results[j].Relevance
		}
		return results[i].DocumentID < results[j].DocumentID
	})
}

func cloneResults(results []store.SearchResult) []store.SearchResult {
	out := make([]store.SearchResult, len(results))
	copy(out, results)
	return out
}
