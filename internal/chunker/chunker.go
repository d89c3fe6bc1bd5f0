// Package chunker splits oversized documents into bounded, sentence-aligned
// segments that can be indexed independently and mapped back to their parent.
package chunker

import (
	"fmt"
	"strings"
	"time"

	"github.com/commonplacehq/commonplace/internal/textnorm"
)

// Chunk is a contiguous slice of a document's text.
// Index values are contiguous from 0 and every chunk of a document
// carries the same TotalChunks.
type Chunk struct {
	ID          string
	DocumentID  string
	Index       int
	TotalChunks int
	Content     string
	WordCount   int
	CreatedAt   time.Time
}

// Config bounds chunk sizes in words.
type Config struct {
	TargetWordsPerChunk int
	MaxWordsPerChunk    int
	MinWordsPerChunk    int
}

// Named presets. Default suits typical long-form quotes and essays;
// Aggressive favors recall on very long entries, Conservative favors
// fewer, larger chunks.
var (
	DefaultConfig      = Config{TargetWordsPerChunk: 1500, MaxWordsPerChunk: 2000, MinWordsPerChunk: 1000}
	AggressiveConfig   = Config{TargetWordsPerChunk: 1000, MaxWordsPerChunk: 1500, MinWordsPerChunk: 800}
	ConservativeConfig = Config{TargetWordsPerChunk: 2000, MaxWordsPerChunk: 2500, MinWordsPerChunk: 1500}
)

// ConfigByName resolves a preset name. Unknown names fall back to Default.
func ConfigByName(name string) Config {
	switch strings.ToLower(name) {
	case "aggressive":
		return AggressiveConfig
	case "conservative":
		return ConservativeConfig
	default:
		return DefaultConfig
	}
}

// Validate checks that the bounds are usable.
func (c Config) Validate() error {
	if c.TargetWordsPerChunk <= 0 || c.MaxWordsPerChunk <= 0 || c.MinWordsPerChunk <= 0 {
		return fmt.Errorf("chunk bounds must be positive: %+v", c)
	}
	if c.MinWordsPerChunk > c.TargetWordsPerChunk || c.TargetWordsPerChunk > c.MaxWordsPerChunk {
		return fmt.Errorf("chunk bounds must satisfy min <= target <= max: %+v", c)
	}
	return nil
}

// sentenceEnd reports whether a word terminates a sentence. Trailing
// quotes and closing brackets after the punctuation are tolerated.
func sentenceEnd(word string) bool {
	trimmed := strings.TrimRight(word, `"')]}`+"’”")
	return strings.HasSuffix(trimmed, ".") ||
		strings.HasSuffix(trimmed, "!") ||
		strings.HasSuffix(trimmed, "?")
}

// Split divides text into bounded chunks for documentID.
//
// Documents at or under the target word count produce a single chunk.
// Longer documents are walked word by word: when the running count
// reaches the target, the nearest preceding sentence boundary becomes
// the split point, unless that would leave the chunk under the minimum,
// in which case the split lands on the word-count boundary itself.
func Split(text string, documentID string, cfg Config) ([]Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	total := textnorm.WordCount(text)
	if total <= cfg.TargetWordsPerChunk {
		content := textnorm.Clean(text)
		return []Chunk{{
			ID:          chunkID(documentID, 0),
			DocumentID:  documentID,
			Index:       0,
			TotalChunks: 1,
			Content:     content,
			WordCount:   textnorm.WordCount(content),
			CreatedAt:   now,
		}}, nil
	}

	words := strings.Fields(textnorm.Clean(text))
	var contents []string
	for start := 0; start < len(words); {
		end := start + cfg.TargetWordsPerChunk
		if end >= len(words) {
			end = len(words)
		} else {
			// Walk back to the nearest sentence end, but never shrink the
			// chunk below the minimum.
			split := -1
			for i := end - 1; i > start && i-start >= cfg.MinWordsPerChunk; i-- {
				if sentenceEnd(words[i-1]) {
					split = i
					break
				}
			}
			if split > 0 {
				end = split
			}
			if end-start > cfg.MaxWordsPerChunk {
				end = start + cfg.MaxWordsPerChunk
			}
		}
		contents = append(contents, strings.Join(words[start:end], " "))
		start = end
	}

	chunks := make([]Chunk, len(contents))
	for i, content := range contents {
		chunks[i] = Chunk{
			ID:          chunkID(documentID, i),
			DocumentID:  documentID,
			Index:       i,
			TotalChunks: len(contents),
			Content:     content,
			WordCount:   textnorm.WordCount(content),
			CreatedAt:   now,
		}
	}
	return chunks, nil
}

// Reassemble concatenates chunk content in index order with single-space
// joins. Chunks may be passed in any order.
func Reassemble(chunks []Chunk) string {
	ordered := make([]string, len(chunks))
	for _, c := range chunks {
		if c.Index >= 0 && c.Index < len(ordered) {
			ordered[c.Index] = c.Content
		}
	}
	return strings.Join(ordered, " ")
}

// ValidateChunks checks a chunk list against partial-write and corruption
// scenarios: the list must be non-empty, indices contiguous from 0, and
// every TotalChunks equal to the list length. A false result means the
// document must be re-chunked and re-indexed, not served.
func ValidateChunks(chunks []Chunk) bool {
	if len(chunks) == 0 {
		return false
	}
	seen := make([]bool, len(chunks))
	for _, c := range chunks {
		if c.TotalChunks != len(chunks) {
			return false
		}
		if c.Index < 0 || c.Index >= len(chunks) || seen[c.Index] {
			return false
		}
		seen[c.Index] = true
	}
	return true
}

// ValidateAgainst additionally checks that the reassembled chunks carry
// the same word count as the original text.
func ValidateAgainst(chunks []Chunk, original string) bool {
	if !ValidateChunks(chunks) {
		return false
	}
	return textnorm.WordCount(Reassemble(chunks)) == textnorm.WordCount(original)
}

func chunkID(documentID string, index int) string {
	return fmt.Sprintf("%s-%04d", documentID, index)
}
