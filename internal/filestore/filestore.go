package filestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store keeps archived copies of generated scripts next to the history database
type Store struct {
	basePath string
}

// New creates a new file store with the given base path
func New(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create filestore directory: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

// Save stores r under runID with the extension of filename and returns the
// relative name
func (s *Store) Save(runID, filename string, r io.Reader) (string, error) {
	if runID == "" || strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return "", fmt.Errorf("invalid run id %q", runID)
	}
	newFilename := runID + filepath.Ext(filename)
	fullPath := filepath.Join(s.basePath, newFilename)

	f, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(fullPath) // Clean up on error
		return "", fmt.Errorf("write file: %w", err)
	}

	return newFilename, nil
}

// Get returns a reader for the file at the given path
func (s *Store) Get(filename string) (*os.File, error) {
	f, err := os.Open(s.FullPath(filename))
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// Delete removes the file at the given path
func (s *Store) Delete(filename string) error {
	if filename == "" {
		return nil
	}
	if err := os.Remove(s.FullPath(filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// FullPath returns the full filesystem path for a filename
func (s *Store) FullPath(filename string) string {
	return filepath.Join(s.basePath, filepath.Base(filename))
}

// ArchiveDir is where scripts for the history database at dbPath are kept
func ArchiveDir(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), "scripts")
}
