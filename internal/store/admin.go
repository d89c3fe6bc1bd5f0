package store

import (
	"context"

	"github.com/commonplacehq/commonplace/internal/errors"
)

// Optimize merges FTS segments and checkpoints the WAL. Maintenance
// only; never on the request hot path.
func (s *SQLiteIndex) Optimize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInit(); err != nil {
		return err
	}

	statements := []string{
		`INSERT INTO documents_fts(documents_fts) VALUES ('optimize')`,
		`INSERT INTO chunks_fts(chunks_fts) VALUES ('optimize')`,
		`PRAGMA wal_checkpoint(TRUNCATE)`,
		`ANALYZE`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(errors.ErrCodeExecutionFailed, "optimize index", err)
		}
	}
	return nil
}

// RebuildIndices drops and refills both FTS mirrors from the metadata
// tables. Recovery path for mirror corruption; the metadata tables are
// the source of truth.
func (s *SQLiteIndex) RebuildIndices(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInit(); err != nil {
		return err
	}

	statements := []string{
		`DELETE FROM documents_fts`,
		`INSERT INTO documents_fts(id, author, content, source)
		 SELECT id, author, content, coalesce(source, '') FROM documents`,
		`DELETE FROM chunks_fts`,
		`INSERT INTO chunks_fts(id, document_id, content)
		 SELECT id, document_id, content FROM chunks`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(errors.ErrCodeCorruptIndex, "rebuild full-text mirror", err)
		}
	}
	return nil
}

// Stats reports index contents.
func (s *SQLiteIndex) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInit(); err != nil {
		return Stats{}, err
	}

	var st Stats
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM documents),
			(SELECT COUNT(*) FROM chunks),
			(SELECT COUNT(*) FROM search_history),
			(SELECT COALESCE(MAX(version), 0) FROM schema_version)`)
	if err := row.Scan(&st.Documents, &st.Chunks, &st.Searches, &st.SchemaVersion); err != nil {
		return Stats{}, errors.Wrap(errors.ErrCodeExecutionFailed, "read statistics", err)
	}
	return st, nil
}
