package main

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoChanges indicates a publish was attempted with nothing staged.
	ErrNoChanges = errors.New("no changes to commit")

	// ErrEmptyPath indicates a file path was required but not given.
	ErrEmptyPath = errors.New("file path is required")

	// ErrNoPath indicates an operation needs a selected file and none is selected.
	ErrNoPath = errors.New("no file selected")

	// ErrNotReady indicates the selected file cannot be edited in its current state.
	ErrNotReady = errors.New("file is not ready for editing")

	// ErrSuperseded indicates a fetch finished after another file was selected.
	ErrSuperseded = errors.New("selection superseded by a newer request")
)

// ConfigError reports missing repository coordinates or credentials
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return "missing credentials: " + strings.Join(e.Missing, ", ")
}

// NotFoundError reports a contents response without file content
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("file not found or error fetching file: %s", e.Path)
}

// NetworkError reports a transport failure or a non-2xx response
type NetworkError struct {
	Method     string
	URL        string
	Status     int
	StatusText string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: %d - %s", e.Method, e.URL, e.Status, e.StatusText)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// PublishStep identifies one remote call of the publish protocol
type PublishStep int

const (
	StepReadRef PublishStep = iota + 1
	StepReadCommit
	StepCreateBlobs
	StepCreateTree
	StepCreateCommit
	StepUpdateRef
)

func (s PublishStep) String() string {
	switch s {
	case StepReadRef:
		return "read ref"
	case StepReadCommit:
		return "read commit"
	case StepCreateBlobs:
		return "create blobs"
	case StepCreateTree:
		return "create tree"
	case StepCreateCommit:
		return "create commit"
	case StepUpdateRef:
		return "update ref"
	default:
		return "unknown"
	}
}

// CommitError reports a failed publish and the step that failed
type CommitError struct {
	Step PublishStep
	Err  error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("error committing changes (%s): %v", e.Step, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}
