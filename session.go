package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// State is the lifecycle state of the selected file
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// SessionConfig holds the collaborators of a Session
type SessionConfig struct {
	Coordinate Coordinate
	Branch     string
	Algorithm  Algorithm
	Fetcher    Fetcher
	Publisher  CommitPublisher
	Store      *Store
	Dirty      *DirtySet
	Logger     *zap.Logger
}

// Session edits one file at a time against a single repository and
// stages drafts for publication.
//
// Network calls are made without holding the lock. Each SelectPath takes a
// new generation; a fetch that completes after a newer selection is dropped.
type Session struct {
	mu sync.Mutex

	coord     Coordinate
	branch    string
	algorithm Algorithm
	fetcher   Fetcher
	publisher CommitPublisher
	store     *Store
	dirty     *DirtySet
	log       *zap.Logger

	state      State
	generation uint64
	path       string
	original   string
	edited     string
	errMsg     string
	notice     string
	draftErr   error
}

// NewSession creates a session in the Idle state
func NewSession(cfg SessionConfig) *Session {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Branch == "" {
		cfg.Branch = defaultBranch
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmPositional
	}
	return &Session{
		coord:     cfg.Coordinate,
		branch:    cfg.Branch,
		algorithm: cfg.Algorithm,
		fetcher:   cfg.Fetcher,
		publisher: cfg.Publisher,
		store:     cfg.Store,
		dirty:     cfg.Dirty,
		log:       cfg.Logger,
		state:     StateIdle,
	}
}

// SelectPath makes path the current file and fetches its remote content.
// The stored draft, if any, becomes the working copy; otherwise the fetched
// content does. On failure the state is Error and the draft is kept.
func (s *Session) SelectPath(ctx context.Context, path string) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.state = StateLoading
	s.path = path
	s.original = ""
	s.errMsg = ""
	s.notice = ""
	draft, hasDraft, err := s.store.Get(path)
	s.edited = draft
	s.draftErr = err
	if err != nil {
		// Refuse local operations so an unreadable draft is never overwritten
		s.state = StateError
		s.errMsg = fmt.Sprintf("Error reading local changes for %s!", path)
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.log.Debug("fetching", zap.String("path", path), zap.Uint64("generation", gen))
	text, err := s.fetcher.FetchFile(ctx, s.coord, path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.log.Debug("dropping stale fetch", zap.String("path", path), zap.Uint64("generation", gen))
		return ErrSuperseded
	}

	if err != nil {
		s.state = StateError
		s.errMsg = fetchErrorMessage(err)
		return err
	}

	s.original = text
	if !hasDraft {
		s.edited = text
	}
	s.state = StateReady
	return nil
}

// SetEdited replaces the working copy of the current file
func (s *Session) SetEdited(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireEditable(); err != nil {
		return err
	}
	s.edited = text
	return nil
}

// requireEditable reports whether the current file accepts local operations.
// A file that failed to load can still be drafted.
func (s *Session) requireEditable() error {
	switch {
	case s.path == "":
		s.errMsg = "No file selected!"
		return ErrNoPath
	case s.state == StateLoading:
		s.errMsg = "File is still loading!"
		return ErrNotReady
	case s.draftErr != nil:
		s.errMsg = fmt.Sprintf("Error reading local changes for %s!", s.path)
		return s.draftErr
	}
	return nil
}

// SaveLocally writes the working copy as the draft of the current file and stages it
func (s *Session) SaveLocally() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireEditable(); err != nil {
		return err
	}

	if err := s.store.Set(s.path, s.edited); err != nil {
		s.errMsg = fmt.Sprintf("Error saving %s locally!", s.path)
		return err
	}
	if err := s.dirty.Put(s.path, s.edited); err != nil {
		s.errMsg = fmt.Sprintf("Error saving %s locally!", s.path)
		return err
	}

	s.errMsg = ""
	s.notice = fmt.Sprintf("Changes saved locally for %s!", s.path)
	s.log.Debug("saved draft", zap.String("path", s.path), zap.Int("bytes", len(s.edited)))
	return nil
}

// LoadLocalVersion replaces the working copy with the stored draft. Without a
// draft the working copy becomes the remote content, which is "" when the
// fetch failed.
func (s *Session) LoadLocalVersion() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireEditable(); err != nil {
		return err
	}

	draft, ok, err := s.store.Get(s.path)
	if err != nil {
		s.errMsg = fmt.Sprintf("Error reading local changes for %s!", s.path)
		return err
	}
	if !ok {
		draft = s.original
	}
	s.edited = draft
	return nil
}

// DiscardLocalVersion deletes the draft of the current file, unstages it and
// resets the working copy to the remote content
func (s *Session) DiscardLocalVersion() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireEditable(); err != nil {
		return err
	}

	if err := s.store.Delete(s.path); err != nil {
		s.errMsg = fmt.Sprintf("Error discarding local changes for %s!", s.path)
		return err
	}
	if err := s.dirty.Remove(s.path); err != nil {
		s.errMsg = fmt.Sprintf("Error discarding local changes for %s!", s.path)
		return err
	}

	s.edited = s.original
	s.errMsg = ""
	s.notice = "Local changes discarded!"
	s.log.Debug("discarded draft", zap.String("path", s.path))
	return nil
}

// DiffLines compares the remote content with the working copy
func (s *Session) DiffLines() []DiffLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DiffWith(s.algorithm, s.original, s.edited)
}

// Publish commits every staged file in one commit. On success every staged
// path is unstaged and its draft removed; on failure nothing local changes.
func (s *Session) Publish(ctx context.Context, message string) (*CommitResult, error) {
	s.mu.Lock()
	files := s.dirty.Files()
	coord := s.coord
	branch := s.branch
	s.errMsg = ""
	s.notice = ""
	s.mu.Unlock()

	result, err := s.publisher.Publish(ctx, coord, CommitSpec{
		Message: message,
		Branch:  branch,
		Files:   files,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.errMsg = publishErrorMessage(err)
		return nil, err
	}

	for _, file := range files {
		if err := s.store.Delete(file.Path); err != nil {
			s.log.Warn("failed to remove published draft", zap.String("path", file.Path), zap.Error(err))
		}
		if file.Path == s.path && s.state == StateReady {
			s.original = file.Content
		}
	}
	if err := s.dirty.Clear(); err != nil {
		s.errMsg = fmt.Sprintf("Committed %s but failed to clear staged changes!", shortSHA(result.CommitSHA))
		return result, fmt.Errorf("failed to clear staged changes: %w", err)
	}

	s.notice = fmt.Sprintf("Changes committed to %s!", result.Branch)
	return result, nil
}

// State returns the lifecycle state of the current file
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Path returns the current file path
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Original returns the last fetched remote content
func (s *Session) Original() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.original
}

// Edited returns the working copy
func (s *Session) Edited() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.edited
}

// ErrorMessage returns the message of the last failed operation
func (s *Session) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Notice returns the confirmation of the last successful save, discard or publish
func (s *Session) Notice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notice
}

// Dirty returns a copy of the staged contents
func (s *Session) Dirty() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty.Snapshot()
}

// StagedPaths returns the staged paths in order
func (s *Session) StagedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty.Paths()
}

func fetchErrorMessage(err error) string {
	var configErr *ConfigError
	var notFound *NotFoundError
	var netErr *NetworkError
	switch {
	case errors.As(err, &configErr):
		return "Please enter the repository owner and name!"
	case errors.Is(err, ErrEmptyPath):
		return "Please choose a file!"
	case errors.As(err, &notFound):
		return "File not found or error fetching file!"
	case errors.As(err, &netErr) && netErr.Status != 0:
		return fmt.Sprintf("Error fetching file! The file may be private or not exist. (%d - %s)", netErr.Status, netErr.StatusText)
	default:
		return "Error fetching file! The file may be private or not exist."
	}
}

func publishErrorMessage(err error) string {
	var configErr *ConfigError
	var commitErr *CommitError
	switch {
	case errors.As(err, &configErr):
		return "Missing credentials!"
	case errors.Is(err, ErrNoChanges):
		return "No changes to commit!"
	case errors.As(err, &commitErr):
		return fmt.Sprintf("Error committing changes! (%s failed)", commitErr.Step)
	default:
		return "Error committing changes!"
	}
}

// shortSHA returns the first 12 characters of sha
func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
