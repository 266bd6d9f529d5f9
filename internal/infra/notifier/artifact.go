package notifier

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"newsmap/internal/domain/entity"
)

var artifactName = regexp.MustCompile(`^[A-Za-z0-9-]{8,128}\.txt$`)

// ArtifactStore persists the IndexNow key-ownership file <key>.txt.
type ArtifactStore interface {
	// Ensure makes <key>.txt exist with the key as its content.
	Ensure(ctx context.Context, key string) error
	// Remove deletes <key>.txt. A missing file is not an error.
	Remove(ctx context.Context, key string) error
}

// FileArtifactStore keeps verification files in a directory served by the
// verification-file handler.
type FileArtifactStore struct {
	dir string
}

// NewFileArtifactStore returns a store rooted at dir. The directory is created
// on first write.
func NewFileArtifactStore(dir string) *FileArtifactStore {
	return &FileArtifactStore{dir: dir}
}

func (s *FileArtifactStore) Ensure(_ context.Context, key string) error {
	if !ValidKey(key) {
		return fmt.Errorf("Ensure: %w: malformed key", entity.ErrInvalidInput)
	}
	path := s.path(key)
	if current, err := os.ReadFile(path); err == nil && string(current) == key {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("Ensure: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".artifact-*")
	if err != nil {
		return fmt.Errorf("Ensure: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.WriteString(key); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("Ensure: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("Ensure: close: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("Ensure: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("Ensure: rename: %w", err)
	}
	return nil
}

func (s *FileArtifactStore) Remove(_ context.Context, key string) error {
	if !ValidKey(key) {
		return nil
	}
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("Remove: %w", err)
	}
	return nil
}

// Open returns the content of a verification file by its served name
// (<key>.txt). Names that do not look like a key file and files that do not
// exist both yield entity.ErrNotFound.
func (s *FileArtifactStore) Open(name string) ([]byte, error) {
	if !artifactName.MatchString(name) {
		return nil, entity.ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	return data, nil
}

func (s *FileArtifactStore) path(key string) string {
	return filepath.Join(s.dir, key+".txt")
}
