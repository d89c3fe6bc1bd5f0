package store

import (
	"context"
	"database/sql"
	"log/slog"
	"strconv"

	"github.com/commonplacehq/commonplace/internal/errors"
	"github.com/commonplacehq/commonplace/internal/textnorm"
)

// migration is one versioned DDL step. Steps run in order inside a
// single transaction; any failure rolls the whole batch back and the
// stored version is untouched. An optional post hook runs in the same
// transaction for data fixups DDL cannot express.
type migration struct {
	version int
	ddl     string
	post    func(ctx context.Context, tx *sql.Tx) error
}

// migrations is the ordered schema history. Never edit a shipped entry;
// append a new version instead.
var migrations = []migration{
	{
		version: 1,
		ddl: `
		CREATE TABLE documents (
			id                    TEXT PRIMARY KEY,
			author                TEXT NOT NULL DEFAULT '',
			source                TEXT,
			content               TEXT NOT NULL DEFAULT '',
			created_at            REAL NOT NULL,
			updated_at            REAL NOT NULL,
			is_favorite           INTEGER NOT NULL DEFAULT 0,
			external_content_path TEXT,
			word_count            INTEGER NOT NULL DEFAULT 0,
			is_chunked            INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX idx_documents_author ON documents(author);
		CREATE INDEX idx_documents_favorite ON documents(is_favorite);
		CREATE INDEX idx_documents_created ON documents(created_at);

		CREATE TABLE chunks (
			id           TEXT PRIMARY KEY,
			document_id  TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			chunk_index  INTEGER NOT NULL,
			total_chunks INTEGER NOT NULL,
			content      TEXT NOT NULL DEFAULT '',
			word_count   INTEGER NOT NULL DEFAULT 0,
			created_at   REAL NOT NULL
		);
		CREATE INDEX idx_chunks_document ON chunks(document_id);

		CREATE VIRTUAL TABLE documents_fts USING fts5(
			id UNINDEXED,
			author,
			content,
			source,
			tokenize='unicode61'
		);
		CREATE VIRTUAL TABLE chunks_fts USING fts5(
			id UNINDEXED,
			document_id UNINDEXED,
			content,
			tokenize='unicode61'
		);

		-- The FTS mirrors are written only through these triggers; callers
		-- mutate metadata rows and the projection follows atomically.
		CREATE TRIGGER documents_ai AFTER INSERT ON documents BEGIN
			INSERT INTO documents_fts(id, author, content, source)
			VALUES (new.id, new.author, new.content, coalesce(new.source, ''));
		END;
		CREATE TRIGGER documents_au AFTER UPDATE ON documents BEGIN
			DELETE FROM documents_fts WHERE id = old.id;
			INSERT INTO documents_fts(id, author, content, source)
			VALUES (new.id, new.author, new.content, coalesce(new.source, ''));
		END;
		CREATE TRIGGER documents_ad AFTER DELETE ON documents BEGIN
			DELETE FROM documents_fts WHERE id = old.id;
		END;

		CREATE TRIGGER chunks_ai AFTER INSERT ON chunks BEGIN
			INSERT INTO chunks_fts(id, document_id, content)
			VALUES (new.id, new.document_id, new.content);
		END;
		CREATE TRIGGER chunks_au AFTER UPDATE ON chunks BEGIN
			DELETE FROM chunks_fts WHERE id = old.id;
			INSERT INTO chunks_fts(id, document_id, content)
			VALUES (new.id, new.document_id, new.content);
		END;
		CREATE TRIGGER chunks_ad AFTER DELETE ON chunks BEGIN
			DELETE FROM chunks_fts WHERE id = old.id;
		END;
		`,
	},
	{
		version: 2,
		ddl: `
		CREATE TABLE search_history (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			query        TEXT NOT NULL,
			result_count INTEGER NOT NULL,
			created_at   REAL NOT NULL
		);
		CREATE INDEX idx_search_history_query ON search_history(query);
		`,
	},
	{
		// author_norm carries the accent-folded, lowercased author so
		// author lookups match the same way content search does. SQLite's
		// lower() folds only ASCII, so the value is computed in Go on
		// every write and backfilled here for rows that predate it.
		version: 3,
		ddl: `
		ALTER TABLE documents ADD COLUMN author_norm TEXT NOT NULL DEFAULT '';
		CREATE INDEX idx_documents_author_norm ON documents(author_norm);
		`,
		post: backfillAuthorNorm,
	},
}

// currentSchemaVersion is the version a fresh or fully migrated
// database reports.
const currentSchemaVersion = 3

// migrate brings the database to the current schema version. All pending
// DDL runs in one all-or-nothing transaction.
func migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`); err != nil {
		return errors.Wrap(errors.ErrCodeMigrationFailed, "create schema_version table", err)
	}

	var version int
	if err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version); err != nil {
		return errors.Wrap(errors.ErrCodeMigrationFailed, "read schema version", err)
	}

	if version > currentSchemaVersion {
		return errors.Newf(errors.ErrCodeMigrationFailed,
			"database schema version %d is newer than engine version %d", version, currentSchemaVersion)
	}
	if version == currentSchemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeMigrationFailed, "begin migration transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.ddl); err != nil {
			return errors.Wrap(errors.ErrCodeMigrationFailed, "apply migration", err).
				WithDetail("version", strconv.Itoa(m.version))
		}
		if m.post != nil {
			if err := m.post(ctx, tx); err != nil {
				return errors.Wrap(errors.ErrCodeMigrationFailed, "apply migration fixup", err).
					WithDetail("version", strconv.Itoa(m.version))
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_version (version) VALUES (?)`, m.version); err != nil {
			return errors.Wrap(errors.ErrCodeMigrationFailed, "record migration version", err)
		}
		logger.Info("schema_migrated", slog.Int("version", m.version))
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeMigrationFailed, "commit migrations", err)
	}
	return nil
}

// backfillAuthorNorm fills author_norm for documents written before the
// column existed. Rows are collected first so the cursor is closed
// before the updates run on the same connection.
func backfillAuthorNorm(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `SELECT id, author FROM documents WHERE author != ''`)
	if err != nil {
		return err
	}
	type docAuthor struct {
		id     string
		author string
	}
	var pending []docAuthor
	for rows.Next() {
		var da docAuthor
		if err := rows.Scan(&da.id, &da.author); err != nil {
			rows.Close()
			return err
		}
		pending = append(pending, da)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, da := range pending {
		if _, err := tx.ExecContext(ctx,
			`UPDATE documents SET author_norm = ? WHERE id = ?`,
			textnorm.Normalize(da.author), da.id); err != nil {
			return err
		}
	}
	return nil
}
