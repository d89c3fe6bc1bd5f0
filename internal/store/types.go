// Package store is the persistent search engine: a SQLite database holding
// document and chunk metadata, FTS5 mirror tables kept consistent by
// triggers, ranked BM25 search, and the search history log.
package store

import (
	"context"
	"time"

	"github.com/commonplacehq/commonplace/internal/chunker"
)

// Document is the metadata row for a user-authored entry. Content holds
// the normalized searchable text; raw text lives in the file store and is
// referenced by ExternalContentPath.
type Document struct {
	ID                  string
	Author              string
	Source              string
	Content             string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	IsFavorite          bool
	ExternalContentPath string
	WordCount           int
	IsChunked           bool
}

// MatchType tags how a search result matched the query.
type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchAuthor  MatchType = "author"
	MatchContent MatchType = "content"
	MatchSource  MatchType = "source"
)

// SearchResult is an ephemeral ranked hit. Relevance is normalized to
// 0-100, higher is better.
type SearchResult struct {
	DocumentID string
	Author     string
	Snippet    string
	Relevance  float64
	MatchType  MatchType
}

// HistoryRecord is one appended search audit entry.
type HistoryRecord struct {
	Query       string
	ResultCount int
	SearchedAt  time.Time
}

// Stats summarizes index contents for maintenance tooling.
type Stats struct {
	Documents     int
	Chunks        int
	Searches      int
	SchemaVersion int
}

// Index is the serialized access boundary to the persistent engine.
// All implementations must be safe for concurrent use; statements
// execute to completion before the next is accepted.
type Index interface {
	Initialize(ctx context.Context) error
	Close() error

	InsertDocument(ctx context.Context, doc Document) error
	UpdateDocument(ctx context.Context, doc Document) error
	DeleteDocument(ctx context.Context, id string) error
	GetDocument(ctx context.Context, id string) (Document, error)
	InsertChunks(ctx context.Context, chunks []chunker.Chunk, documentID string) error
	DeleteChunks(ctx context.Context, documentID string) error

	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	SearchTerms(ctx context.Context, terms []string, matchAll bool, limit int) ([]SearchResult, error)
	SearchByAuthor(ctx context.Context, author string, limit int) ([]SearchResult, error)
	RecentSearches(ctx context.Context, limit int) ([]string, error)

	Optimize(ctx context.Context) error
	RebuildIndices(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
}

// Compile-time check that the SQLite engine satisfies the boundary.
var _ Index = (*SQLiteIndex)(nil)
