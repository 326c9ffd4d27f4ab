package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const dirtyIndexFile = "dirty.json"

// dirtyEntry is one staged path in the on-disk index
type dirtyEntry struct {
	Path    string    `json:"path"`
	SavedAt time.Time `json:"saved_at"`
}

type dirtyIndex struct {
	Entries []dirtyEntry `json:"entries"`
}

// DirtySet tracks paths with unpublished drafts, in the order they were first saved.
// The order is persisted in an index file; contents live in the Store.
type DirtySet struct {
	file    string
	entries []dirtyEntry
	content map[string]string
}

// LoadDirtySet reads the index in dir and fills contents from store.
// Entries whose draft is gone are dropped.
func LoadDirtySet(dir string, store *Store) (*DirtySet, error) {
	d := &DirtySet{
		file:    filepath.Join(dir, dirtyIndexFile),
		entries: make([]dirtyEntry, 0),
		content: make(map[string]string),
	}

	data, err := os.ReadFile(d.file)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return nil, fmt.Errorf("failed to read dirty index: %w", err)
	}
	if len(data) == 0 {
		return d, nil
	}

	var idx dirtyIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to parse dirty index: %w", err)
	}

	for _, entry := range idx.Entries {
		if _, seen := d.content[entry.Path]; seen {
			continue
		}
		content, ok, err := store.Get(entry.Path)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		d.entries = append(d.entries, entry)
		d.content[entry.Path] = content
	}

	return d, nil
}

// save writes entries to the index file
func (d *DirtySet) save(entries []dirtyEntry) error {
	if err := os.MkdirAll(filepath.Dir(d.file), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.MarshalIndent(dirtyIndex{Entries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dirty index: %w", err)
	}
	if err := writeFileAtomic(d.file, data); err != nil {
		return fmt.Errorf("failed to write dirty index: %w", err)
	}
	return nil
}

// Put stages path with content, keeping its position if already staged
func (d *DirtySet) Put(path, content string) error {
	entries := make([]dirtyEntry, 0, len(d.entries)+1)
	found := false
	for _, entry := range d.entries {
		if entry.Path == path {
			entry.SavedAt = time.Now().UTC()
			found = true
		}
		entries = append(entries, entry)
	}
	if !found {
		entries = append(entries, dirtyEntry{Path: path, SavedAt: time.Now().UTC()})
	}

	if err := d.save(entries); err != nil {
		return err
	}
	d.entries = entries
	d.content[path] = content
	return nil
}

// Remove unstages path; unstaging a path that is not staged is a no-op
func (d *DirtySet) Remove(path string) error {
	if _, ok := d.content[path]; !ok {
		return nil
	}

	entries := make([]dirtyEntry, 0, len(d.entries))
	for _, entry := range d.entries {
		if entry.Path != path {
			entries = append(entries, entry)
		}
	}

	if err := d.save(entries); err != nil {
		return err
	}
	d.entries = entries
	delete(d.content, path)
	return nil
}

// Clear unstages every path
func (d *DirtySet) Clear() error {
	if err := d.save([]dirtyEntry{}); err != nil {
		return err
	}
	d.entries = make([]dirtyEntry, 0)
	d.content = make(map[string]string)
	return nil
}

// Get returns the staged content for path
func (d *DirtySet) Get(path string) (string, bool) {
	content, ok := d.content[path]
	return content, ok
}

// Len returns the number of staged paths
func (d *DirtySet) Len() int {
	return len(d.entries)
}

// Paths returns the staged paths in order
func (d *DirtySet) Paths() []string {
	paths := make([]string, 0, len(d.entries))
	for _, entry := range d.entries {
		paths = append(paths, entry.Path)
	}
	return paths
}

// Files returns the staged paths and contents in order
func (d *DirtySet) Files() []StagedFile {
	files := make([]StagedFile, 0, len(d.entries))
	for _, entry := range d.entries {
		files = append(files, StagedFile{Path: entry.Path, Content: d.content[entry.Path]})
	}
	return files
}

// Snapshot returns a copy of the staged contents keyed by path
func (d *DirtySet) Snapshot() map[string]string {
	snap := make(map[string]string, len(d.content))
	for path, content := range d.content {
		snap[path] = content
	}
	return snap
}
