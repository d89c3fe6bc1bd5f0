// Package filestore persists the raw full text of documents and their
// chunks as flat files outside the search index. The index never stores
// raw text, only normalized content and references into this store.
package filestore

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/commonplacehq/commonplace/internal/errors"
)

const (
	documentsDir = "documents"
	chunksDir    = "chunks"
	textExt      = ".txt"
)

// Store is a flat-file content store rooted at a single directory.
//
// Layout:
//
//	<root>/documents/<docID>.txt
//	<root>/chunks/<docID>/<chunkID>.txt
type Store struct {
	root string
}

// New creates the store directories under root.
func New(root string) (*Store, error) {
	for _, dir := range []string{filepath.Join(root, documentsDir), filepath.Join(root, chunksDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(errors.ErrCodeFilePermission, "create store directory", err)
		}
	}
	return &Store{root: root}, nil
}

// SaveText writes the raw text of a document and returns its path.
func (s *Store) SaveText(text string, id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	path := s.documentPath(id)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", errors.Wrap(errors.ErrCodeFilePermission, "write document text", err)
	}
	return path, nil
}

// LoadText reads the raw text of a document.
func (s *Store) LoadText(id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.documentPath(id))
	if os.IsNotExist(err) {
		return "", errors.Newf(errors.ErrCodeFileNotFound, "no stored text for document %s", id)
	}
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeFilePermission, "read document text", err)
	}
	return string(data), nil
}

// DeleteText removes a document's stored text. Deleting text that was
// never stored is not an error.
func (s *Store) DeleteText(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := os.Remove(s.documentPath(id)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeFilePermission, "delete document text", err)
	}
	return nil
}

// SaveChunk writes one chunk's text under its owning document and
// returns the path.
func (s *Store) SaveChunk(content string, chunkID string, ownerID string) (string, error) {
	if err := validateID(chunkID); err != nil {
		return "", err
	}
	if err := validateID(ownerID); err != nil {
		return "", err
	}
	dir := filepath.Join(s.root, chunksDir, ownerID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(errors.ErrCodeFilePermission, "create chunk directory", err)
	}
	path := filepath.Join(dir, chunkID+textExt)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", errors.Wrap(errors.ErrCodeFilePermission, "write chunk text", err)
	}
	return path, nil
}

// LoadChunk reads one chunk's text.
func (s *Store) LoadChunk(chunkID string, ownerID string) (string, error) {
	if err := validateID(chunkID); err != nil {
		return "", err
	}
	if err := validateID(ownerID); err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(s.root, chunksDir, ownerID, chunkID+textExt))
	if os.IsNotExist(err) {
		return "", errors.Newf(errors.ErrCodeFileNotFound, "no stored chunk %s for document %s", chunkID, ownerID)
	}
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeFilePermission, "read chunk text", err)
	}
	return string(data), nil
}

// DeleteChunks removes all stored chunks of a document.
func (s *Store) DeleteChunks(ownerID string) error {
	if err := validateID(ownerID); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.root, chunksDir, ownerID)); err != nil {
		return errors.Wrap(errors.ErrCodeFilePermission, "delete chunks", err)
	}
	return nil
}

// CleanupOrphans removes stored texts and chunk directories whose
// document is no longer in validIDs. Returns the number of entries
// removed.
func (s *Store) CleanupOrphans(validIDs map[string]struct{}) (int, error) {
	removed := 0

	docEntries, err := os.ReadDir(filepath.Join(s.root, documentsDir))
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeFilePermission, "scan document store", err)
	}
	for _, e := range docEntries {
		id := strings.TrimSuffix(e.Name(), textExt)
		if _, ok := validIDs[id]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, documentsDir, e.Name())); err != nil {
			return removed, errors.Wrap(errors.ErrCodeFilePermission, "remove orphan text", err)
		}
		removed++
	}

	chunkEntries, err := os.ReadDir(filepath.Join(s.root, chunksDir))
	if err != nil {
		return removed, errors.Wrap(errors.ErrCodeFilePermission, "scan chunk store", err)
	}
	for _, e := range chunkEntries {
		if _, ok := validIDs[e.Name()]; ok {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.root, chunksDir, e.Name())); err != nil {
			return removed, errors.Wrap(errors.ErrCodeFilePermission, "remove orphan chunks", err)
		}
		removed++
	}

	return removed, nil
}

// StorageSize returns the total bytes used by the store.
func (s *Store) StorageSize() (int64, error) {
	var total int64
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeFilePermission, "measure storage", err)
	}
	return total, nil
}

func (s *Store) documentPath(id string) string {
	return filepath.Join(s.root, documentsDir, id+textExt)
}

// validateID rejects identifiers that would escape the store directory.
func validateID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return errors.Newf(errors.ErrCodeInvalidData, "invalid identifier %q", id)
	}
	return nil
}
