package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// LocalStore keeps artifacts as plain files under a root directory. Writes
// go to a temporary file first and are renamed into place, so a reader never
// observes a partially written artifact at its final path.
type LocalStore struct {
	root    string
	baseURL string
	log     *logrus.Entry
}

func NewLocalStore(logger *logrus.Logger, root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return &LocalStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     logger.WithField("component", "artifact_store"),
	}, nil
}

func (s *LocalStore) path(relPath string) string {
	return filepath.Join(s.root, filepath.FromSlash(relPath))
}

func (s *LocalStore) Write(ctx context.Context, relPath string, content []byte) error {
	final := s.path(relPath)
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(final), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod artifact: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}

func (s *LocalStore) Read(ctx context.Context, relPath string) ([]byte, error) {
	content, err := os.ReadFile(s.path(relPath))
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", relPath, err)
	}
	return content, nil
}

func (s *LocalStore) Exists(relPath string) bool {
	if relPath == "" {
		return false
	}
	info, err := os.Stat(s.path(relPath))
	return err == nil && !info.IsDir()
}

// Delete removes the artifact file. A file that is already absent is not an
// error: cleanup reconciles records against the filesystem and must be able
// to finish the record side of an interrupted delete.
func (s *LocalStore) Delete(ctx context.Context, relPath string) error {
	if relPath == "" {
		return nil
	}
	if err := os.Remove(s.path(relPath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete artifact %s: %w", relPath, err)
	}
	return nil
}

func (s *LocalStore) URL(relPath string) string {
	if relPath == "" {
		return ""
	}
	return s.baseURL + "/" + filepath.ToSlash(relPath)
}

// Root returns the artifact root directory.
func (s *LocalStore) Root() string {
	return s.root
}
