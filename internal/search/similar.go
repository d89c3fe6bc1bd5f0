package search

import (
	"context"
	"strings"

	"github.com/bbalet/stopwords"

	"github.com/commonplacehq/commonplace/internal/store"
	"github.com/commonplacehq/commonplace/internal/textnorm"
)

// minKeywordLen drops short tokens that survive stop-word stripping.
const minKeywordLen = 4

// maxSimilarKeywords bounds the OR query width.
const maxSimilarKeywords = 8

// FindSimilar surfaces documents related to the given one. Stage one
// returns other documents by the same author; if still under the limit,
// stage two extracts significant keywords from the reference text and
// appends non-duplicate hits from an OR keyword search.
func (o *Orchestrator) FindSimilar(ctx context.Context, id string, limit int) ([]store.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	ref, err := o.index.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	results := []store.SearchResult{}
	seen := map[string]struct{}{id: {}}

	if strings.TrimSpace(ref.Author) != "" {
		byAuthor, err := o.index.SearchByAuthor(ctx, ref.Author, limit+1)
		if err != nil {
			return nil, err
		}
		for _, r := range byAuthor {
			if _, dup := seen[r.DocumentID]; dup {
				continue
			}
			seen[r.DocumentID] = struct{}{}
			results = append(results, r)
			if len(results) == limit {
				return results, nil
			}
		}
	}

	keywords, err := o.referenceKeywords(ref)
	if err != nil {
		return nil, err
	}
	if len(keywords) == 0 {
		return results, nil
	}

	byKeyword, err := o.index.SearchTerms(ctx, keywords, false, limit)
	if err != nil {
		return nil, err
	}
	for _, r := range byKeyword {
		if _, dup := seen[r.DocumentID]; dup {
			continue
		}
		seen[r.DocumentID] = struct{}{}
		results = append(results, r)
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// referenceKeywords extracts significant terms from a document's text.
// Chunked documents keep no content in their index row, so the raw text
// is loaded back from the file store.
func (o *Orchestrator) referenceKeywords(ref store.Document) ([]string, error) {
	text := ref.Content
	if text == "" && ref.IsChunked {
		loaded, err := o.files.LoadText(ref.ID)
		if err != nil {
			return nil, err
		}
		text = loaded
	}

	cleaned := stopwords.CleanString(textnorm.PrepareForIndexing(text), "en", false)
	keywords := make([]string, 0, maxSimilarKeywords)
	used := make(map[string]struct{})
	for _, tok := range textnorm.ExtractTokens(cleaned) {
		if len(tok) < minKeywordLen {
			continue
		}
		if _, dup := used[tok]; dup {
			continue
		}
		used[tok] = struct{}{}
		keywords = append(keywords, tok)
		if len(keywords) == maxSimilarKeywords {
			break
		}
	}
	return keywords, nil
}
