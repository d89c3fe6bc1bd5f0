package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/commonplacehq/commonplace/internal/chunker"
	"github.com/commonplacehq/commonplace/internal/errors"
	"github.com/commonplacehq/commonplace/internal/textnorm"
)

// epochSeconds converts to the REAL timestamp representation of the
// persisted schema (floating-point epoch seconds).
func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromEpochSeconds(s float64) time.Time {
	return time.Unix(0, int64(s*float64(time.Second)))
}

// nullable maps an empty string to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// InsertDocument inserts a single metadata row. The insert trigger
// mirrors the searchable fields into documents_fts.
func (s *SQLiteIndex) InsertDocument(ctx context.Context, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInit(); err != nil {
		return err
	}
	if doc.ID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "document id must not be empty", nil)
	}

	// author_norm is derived here, not by trigger: SQLite cannot fold
	// accents, so the accent-insensitive form comes from Go.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents
			(id, author, author_norm, source, content, created_at, updated_at,
			 is_favorite, external_content_path, word_count, is_chunked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Author, textnorm.Normalize(doc.Author), nullable(doc.Source), doc.Content,
		epochSeconds(doc.CreatedAt), epochSeconds(doc.UpdatedAt),
		boolInt(doc.IsFavorite), nullable(doc.ExternalContentPath),
		doc.WordCount, boolInt(doc.IsChunked))
	if err != nil {
		return errors.Wrap(errors.ErrCodeExecutionFailed, "insert document", err).
			WithDetail("document_id", doc.ID)
	}
	return nil
}

// UpdateDocument replaces a metadata row in full. The update trigger
// refreshes the FTS mirror.
func (s *SQLiteIndex) UpdateDocument(ctx context.Context, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInit(); err != nil {
		return err
	}
	if doc.ID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "document id must not be empty", nil)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET
			author = ?, author_norm = ?, source = ?, content = ?, updated_at = ?,
			is_favorite = ?, external_content_path = ?, word_count = ?, is_chunked = ?
		WHERE id = ?`,
		doc.Author, textnorm.Normalize(doc.Author), nullable(doc.Source), doc.Content, epochSeconds(doc.UpdatedAt),
		boolInt(doc.IsFavorite), nullable(doc.ExternalContentPath),
		doc.WordCount, boolInt(doc.IsChunked), doc.ID)
	if err != nil {
		return errors.Wrap(errors.ErrCodeExecutionFailed, "update document", err).
			WithDetail("document_id", doc.ID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Newf(errors.ErrCodeDocumentNotFound, "document %s not found", doc.ID)
	}
	return nil
}

// DeleteDocument removes a metadata row. Chunk rows cascade via the
// foreign key, and the chunk FTS mirror is swept explicitly because
// cascade deletes bypass the chunks_ad trigger.
func (s *SQLiteIndex) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInit(); err != nil {
		return err
	}
	if id == "" {
		return errors.New(errors.ErrCodeInvalidInput, "document id must not be empty", nil)
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chunks_fts WHERE document_id = ?`, id); err != nil {
		return errors.Wrap(errors.ErrCodeExecutionFailed, "delete chunk mirror rows", err)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(errors.ErrCodeExecutionFailed, "delete document", err).
			WithDetail("document_id", id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Newf(errors.ErrCodeDocumentNotFound, "document %s not found", id)
	}
	return nil
}

// GetDocument fetches one metadata row.
func (s *SQLiteIndex) GetDocument(ctx context.Context, id string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInit(); err != nil {
		return Document{}, err
	}

	var (
		doc      Document
		source   sql.NullString
		extPath  sql.NullString
		created  float64
		updated  float64
		favorite int
		chunked  int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, author, source, content, created_at, updated_at,
		       is_favorite, external_content_path, word_count, is_chunked
		FROM documents WHERE id = ?`, id).Scan(
		&doc.ID, &doc.Author, &source, &doc.Content, &created, &updated,
		&favorite, &extPath, &doc.WordCount, &chunked)
	if err == sql.ErrNoRows {
		return Document{}, errors.Newf(errors.ErrCodeDocumentNotFound, "document %s not found", id)
	}
	if err != nil {
		return Document{}, errors.Wrap(errors.ErrCodeExecutionFailed, "get document", err)
	}

	doc.Source = source.String
	doc.ExternalContentPath = extPath.String
	doc.CreatedAt = fromEpochSeconds(created)
	doc.UpdatedAt = fromEpochSeconds(updated)
	doc.IsFavorite = favorite != 0
	doc.IsChunked = chunked != 0
	return doc, nil
}

// InsertChunks replaces the chunk rows of a document. The chunk list is
// validated against partial-write corruption before any write. Rows are
// inserted with prepared statements, not one enclosing transaction;
// migrations are the only all-or-nothing batch in this engine.
func (s *SQLiteIndex) InsertChunks(ctx context.Context, chunks []chunker.Chunk, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInit(); err != nil {
		return err
	}
	if !chunker.ValidateChunks(chunks) {
		return errors.Newf(errors.ErrCodeChunkValidation,
			"refusing to index invalid chunk set for document %s", documentID)
	}
	for _, c := range chunks {
		if c.DocumentID != documentID {
			return errors.Newf(errors.ErrCodeChunkValidation,
				"chunk %s belongs to document %s, not %s", c.ID, c.DocumentID, documentID)
		}
	}

	// Re-indexing replaces any previous chunk set.
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return errors.Wrap(errors.ErrCodeExecutionFailed, "clear previous chunks", err)
	}

	stmt, err := s.db.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, total_chunks, content, word_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStatementPrepare, "prepare chunk insert", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Index,
			c.TotalChunks, c.Content, c.WordCount, epochSeconds(c.CreatedAt)); err != nil {
			return errors.Wrap(errors.ErrCodeExecutionFailed, "insert chunk", err).
				WithDetail("chunk_id", c.ID)
		}
	}
	return nil
}

// DeleteChunks removes the chunk rows of a document without touching
// the document itself. Used when a re-indexed document no longer needs
// chunking. The delete trigger clears the FTS mirror.
func (s *SQLiteIndex) DeleteChunks(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInit(); err != nil {
		return err
	}
	if documentID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "document id must not be empty", nil)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return errors.Wrap(errors.ErrCodeExecutionFailed, "delete chunks", err).
			WithDetail("document_id", documentID)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
