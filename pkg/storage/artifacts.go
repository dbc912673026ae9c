package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// ArtifactStore persists opaque blobs (trained models, fitted scalers,
// generated reports) on disk under a base directory. Paths handed back are
// relative to the base directory and serve as the storage keys.
type ArtifactStore struct {
	baseDir string
}

// NewArtifactStore ensures the base directory exists and returns a handle.
func NewArtifactStore(baseDir string) (*ArtifactStore, error) {
	if baseDir == "" {
		baseDir = "./artifacts"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &ArtifactStore{baseDir: baseDir}, nil
}

// Save writes the blob under the given relative key.
func (s *ArtifactStore) Save(key string, data []byte) (string, error) {
	path := s.resolve(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare artifact directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return key, nil
}

// Load reads the blob stored under key.
func (s *ArtifactStore) Load(key string) ([]byte, error) {
	data, err := os.ReadFile(s.resolve(key))
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", key, err)
	}
	return data, nil
}

// Delete removes the blob stored under key. Missing blobs are not an error.
func (s *ArtifactStore) Delete(key string) error {
	if err := os.Remove(s.resolve(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete artifact %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a blob is stored under key.
func (s *ArtifactStore) Exists(key string) bool {
	_, err := os.Stat(s.resolve(key))
	return err == nil
}

func (s *ArtifactStore) resolve(key string) string {
	return filepath.Join(s.baseDir, filepath.Clean("/"+key))
}
