package main

import (
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"
)

const (
	draftKeyPrefix = "localEdit_"
	draftsDir      = "drafts"
)

// Store keeps local drafts on disk, one file per key, so they survive restarts
type Store struct {
	root string
}

// NewStore creates a store rooted at dir
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// draftKey returns the storage key for a repository path
func draftKey(path string) string {
	return draftKeyPrefix + path
}

// objectPath returns the file that holds key, split by hash prefix
func (s *Store) objectPath(key string) string {
	hash := fmt.Sprintf("%x", sha1.Sum([]byte(key)))
	return filepath.Join(s.root, draftsDir, hash[:2], hash[2:])
}

// Get returns the draft for path and whether one exists. A draft that
// exists but cannot be read is an error, not an absent draft.
func (s *Store) Get(path string) (string, bool, error) {
	data, err := os.ReadFile(s.objectPath(draftKey(path)))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read draft for %s: %w", path, err)
	}
	return string(data), true, nil
}

// Set writes the draft for path
func (s *Store) Set(path, content string) error {
	objPath := s.objectPath(draftKey(path))
	if err := os.MkdirAll(filepath.Dir(objPath), 0755); err != nil {
		return fmt.Errorf("failed to create draft directory: %w", err)
	}
	if err := writeFileAtomic(objPath, []byte(content)); err != nil {
		return fmt.Errorf("failed to write draft for %s: %w", path, err)
	}
	return nil
}

// Delete removes the draft for path; a missing draft is not an error
func (s *Store) Delete(path string) error {
	err := os.Remove(s.objectPath(draftKey(path)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete draft for %s: %w", path, err)
	}
	return nil
}

// writeFileAtomic replaces name with data via a temp file in the same directory
func writeFileAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(name), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, name); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
