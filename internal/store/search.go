package store

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/commonplacehq/commonplace/internal/errors"
	"github.com/commonplacehq/commonplace/internal/textnorm"
)

const (
	snippetOpen  = "<b>"
	snippetClose = "</b>"
	snippetGap   = "…"
	snippetWords = 12
)

// buildMatch assembles an FTS5 MATCH expression from normalized terms.
// Each term is quoted and given a prefix wildcard; terms are combined
// with AND for the primary query path, OR for keyword search.
func buildMatch(terms []string, matchAll bool) string {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		if t == "" {
			continue
		}
		parts = append(parts, `"`+t+`"*`)
	}
	op := " OR "
	if matchAll {
		op = " AND "
	}
	return strings.Join(parts, op)
}

// relevanceScore converts the engine's bm25() rank (negative, lower is
// better) to the 0-100 scale. The scaling is a heuristic; only the
// ordering and the zero floor are contractual.
func relevanceScore(rank float64) float64 {
	return math.Min(100, math.Max(0, -rank*10))
}

// Search executes the ranked primary query path: normalize and tokenize
// the query, AND-combine prefix terms, rank document hits with bm25(),
// and fall back to the chunk index when no whole document matches so a
// term deep inside a long entry still surfaces its parent. A record of
// the search is appended to the history log.
//
// An empty or punctuation-only query returns an empty list. Zero hits
// are a successful outcome, never an error.
func (s *SQLiteIndex) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInit(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidInput, "limit must be positive, got %d", limit)
	}

	terms := textnorm.ExtractTokens(query)
	if len(terms) == 0 {
		return []SearchResult{}, nil
	}

	results, err := s.searchDocuments(ctx, terms, true, limit)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		results, err = s.searchChunks(ctx, terms, true, limit)
		if err != nil {
			return nil, err
		}
	}

	s.classify(results, query)
	s.recordSearch(ctx, query, len(results))
	return results, nil
}

// SearchTerms runs the ranked query over pre-extracted terms, combining
// them with AND (matchAll) or OR semantics. The chunk fallback applies
// as in Search; no history record is appended.
func (s *SQLiteIndex) SearchTerms(ctx context.Context, terms []string, matchAll bool, limit int) ([]SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInit(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidInput, "limit must be positive, got %d", limit)
	}

	normalized := make([]string, 0, len(terms))
	for _, t := range terms {
		normalized = append(normalized, textnorm.ExtractTokens(t)...)
	}
	if len(normalized) == 0 {
		return []SearchResult{}, nil
	}

	results, err := s.searchDocuments(ctx, normalized, matchAll, limit)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		results, err = s.searchChunks(ctx, normalized, matchAll, limit)
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// searchDocuments queries the document FTS mirror. Author matches are
// weighted above content, content above source.
func (s *SQLiteIndex) searchDocuments(ctx context.Context, terms []string, matchAll bool, limit int) ([]SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT documents_fts.id,
		       d.author,
		       snippet(documents_fts, 2, ?, ?, ?, ?),
		       bm25(documents_fts, 0.0, 5.0, 2.0, 1.0) AS rank,
		       d.content,
		       coalesce(d.source, '')
		FROM documents_fts
		JOIN documents d ON d.id = documents_fts.id
		WHERE documents_fts MATCH ?
		ORDER BY rank
		LIMIT ?`,
		snippetOpen, snippetClose, snippetGap, snippetWords,
		buildMatch(terms, matchAll), limit)
	if err != nil {
		return nil, matchError("document search", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			r       SearchResult
			rank    float64
			content string
			source  string
		)
		if err := rows.Scan(&r.DocumentID, &r.Author, &r.Snippet, &rank, &content, &source); err != nil {
			return nil, errors.Wrap(errors.ErrCodeExecutionFailed, "scan search result", err)
		}
		r.Relevance = relevanceScore(rank)
		r.MatchType = matchTypeFor(terms, r.Author, content, source)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeExecutionFailed, "iterate search results", err)
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}

// searchChunks is the fallback path over the chunk FTS mirror. Hits are
// grouped by owning document; a document that matches in several chunks
// takes its best (maximum) chunk score, and the snippet comes from that
// best chunk.
func (s *SQLiteIndex) searchChunks(ctx context.Context, terms []string, matchAll bool, limit int) ([]SearchResult, error) {
	// MATERIALIZED blocks subquery flattening: bm25() and snippet() are
	// only valid in the query that carries the MATCH, not inside the
	// outer aggregate.
	rows, err := s.db.QueryContext(ctx, `
		WITH hits AS MATERIALIZED (
			SELECT chunks_fts.document_id AS document_id,
			       d.author               AS author,
			       snippet(chunks_fts, 2, ?, ?, ?, ?) AS snip,
			       bm25(chunks_fts) AS rank
			FROM chunks_fts
			JOIN documents d ON d.id = chunks_fts.document_id
			WHERE chunks_fts MATCH ?
		)
		SELECT document_id, author, snip, MIN(rank)
		FROM hits
		GROUP BY document_id
		ORDER BY MIN(rank)
		LIMIT ?`,
		snippetOpen, snippetClose, snippetGap, snippetWords,
		buildMatch(terms, matchAll), limit)
	if err != nil {
		return nil, matchError("chunk search", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			r    SearchResult
			rank float64
		)
		if err := rows.Scan(&r.DocumentID, &r.Author, &r.Snippet, &rank); err != nil {
			return nil, errors.Wrap(errors.ErrCodeExecutionFailed, "scan chunk result", err)
		}
		r.Relevance = relevanceScore(rank)
		r.MatchType = MatchContent
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeExecutionFailed, "iterate chunk results", err)
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}

// SearchByAuthor returns documents whose author contains the given
// substring, most recent first, with a fixed high relevance. The match
// is unranked; 95 leaves room for an exact content hit to outrank it.
// Needle and haystack are both accent-folded: the needle here, the
// author_norm column on write. "Seneca" and "Séneca" find the same rows.
func (s *SQLiteIndex) SearchByAuthor(ctx context.Context, author string, limit int) ([]SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInit(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidInput, "limit must be positive, got %d", limit)
	}

	needle := textnorm.Normalize(strings.TrimSpace(author))
	if needle == "" {
		return []SearchResult{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, author, content
		FROM documents
		WHERE instr(author_norm, ?) > 0
		ORDER BY created_at DESC
		LIMIT ?`, needle, limit)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeExecutionFailed, "author search", err)
	}
	defer rows.Close()

	results := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		var content string
		if err := rows.Scan(&r.DocumentID, &r.Author, &content); err != nil {
			return nil, errors.Wrap(errors.ErrCodeExecutionFailed, "scan author result", err)
		}
		r.Snippet = leadingWords(content, snippetWords)
		r.Relevance = 95
		r.MatchType = MatchAuthor
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeExecutionFailed, "iterate author results", err)
	}
	return results, nil
}

// RecentSearches returns de-duplicated recent query strings from the
// history log, most recent first.
func (s *SQLiteIndex) RecentSearches(ctx context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInit(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidInput, "limit must be positive, got %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT query
		FROM search_history
		GROUP BY query
		ORDER BY MAX(id) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeExecutionFailed, "recent searches", err)
	}
	defer rows.Close()

	queries := []string{}
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, errors.Wrap(errors.ErrCodeExecutionFailed, "scan recent search", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// recordSearch appends to the history log. Failures are logged, not
// surfaced: a search that found its results has succeeded.
func (s *SQLiteIndex) recordSearch(ctx context.Context, query string, count int) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_history (query, result_count, created_at)
		VALUES (?, ?, ?)`, query, count, epochSeconds(time.Now()))
	if err != nil {
		s.logger.Warn("search_history_append_failed", "error", err.Error())
	}
}

// classify upgrades match tags for whole-document hits: a hit whose
// normalized content equals the normalized query is exact.
func (s *SQLiteIndex) classify(results []SearchResult, query string) {
	normQuery := textnorm.PrepareForIndexing(query)
	if normQuery == "" {
		return
	}
	for i := range results {
		if results[i].MatchType == MatchContent &&
			strings.TrimSpace(stripSnippetMarks(results[i].Snippet)) == normQuery {
			results[i].MatchType = MatchExact
		}
	}
}

// matchTypeFor decides which field carried the match.
func matchTypeFor(terms []string, author, content, source string) MatchType {
	normAuthor := textnorm.Normalize(author)
	normContent := textnorm.Normalize(content)
	normSource := textnorm.Normalize(source)

	inAll := func(hay string) bool {
		for _, t := range terms {
			if !strings.Contains(hay, t) {
				return false
			}
		}
		return true
	}

	switch {
	case inAll(normAuthor):
		return MatchAuthor
	case inAll(normContent):
		return MatchContent
	case inAll(normSource):
		return MatchSource
	default:
		return MatchContent
	}
}

// matchError maps FTS5 syntax failures to the malformed-query kind and
// everything else to execution failures.
func matchError(op string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "fts5") || strings.Contains(msg, "syntax error") {
		return errors.Wrap(errors.ErrCodeMalformedQuery, op, err)
	}
	return errors.Wrap(errors.ErrCodeExecutionFailed, op, err)
}

// stripSnippetMarks removes highlight markers from a snippet.
func stripSnippetMarks(s string) string {
	s = strings.ReplaceAll(s, snippetOpen, "")
	s = strings.ReplaceAll(s, snippetClose, "")
	return strings.ReplaceAll(s, snippetGap, "")
}

// leadingWords returns the first n words of text for unranked snippets.
func leadingWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + snippetGap
}
