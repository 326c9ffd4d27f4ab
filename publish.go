package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBranch        = "main"
	defaultCommitMessage = "Updated files"
	blobMode             = "100644"
	blobType             = "blob"
)

// CommitPublisher turns a set of staged files into one commit on a branch
type CommitPublisher interface {
	Publish(ctx context.Context, coord Coordinate, req CommitSpec) (*CommitResult, error)
}

// Publisher publishes commits through the git data endpoints
type Publisher struct {
	client *Client
	log    *zap.Logger
}

// NewPublisher creates a publisher backed by client
func NewPublisher(client *Client, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{client: client, log: log}
}

type blobRequest struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type treeRequest struct {
	BaseTree string      `json:"base_tree"`
	Tree     []TreeEntry `json:"tree"`
}

type commitRequest struct {
	Message string   `json:"message"`
	Tree    string   `json:"tree"`
	Parents []string `json:"parents"`
}

type refUpdateRequest struct {
	SHA string `json:"sha"`
}

// Publish creates blobs, a tree and a commit for req and moves the branch to it.
// Nothing is retried. A failure after the commit is created leaves an
// unreferenced commit behind and the branch where it was.
func (p *Publisher) Publish(ctx context.Context, coord Coordinate, req CommitSpec) (*CommitResult, error) {
	if err := coord.ValidateForWrite(); err != nil {
		return nil, err
	}
	if len(req.Files) == 0 {
		return nil, ErrNoChanges
	}

	branch := req.Branch
	if branch == "" {
		branch = defaultBranch
	}
	message := req.Message
	if message == "" {
		message = defaultCommitMessage
	}

	log := p.log.With(
		zap.String("publish_id", uuid.NewString()),
		zap.String("repo", coord.String()),
		zap.String("branch", branch),
	)
	log.Debug("publishing", zap.Int("files", len(req.Files)))

	refURL := p.client.repoURL(coord, "git", "refs", "heads", escapePath(branch))

	// Read the branch head
	data, err := p.client.get(ctx, coord, refURL)
	if err != nil {
		return nil, p.fail(log, StepReadRef, err)
	}
	parentSHA, ok := stringField(data, "object.sha")
	if !ok {
		return nil, p.fail(log, StepReadRef, errors.New("ref response has no object sha"))
	}

	// Read the head commit for its tree
	data, err = p.client.get(ctx, coord, p.client.repoURL(coord, "git", "commits", parentSHA))
	if err != nil {
		return nil, p.fail(log, StepReadCommit, err)
	}
	baseTreeSHA, ok := stringField(data, "tree.sha")
	if !ok {
		return nil, p.fail(log, StepReadCommit, errors.New("commit response has no tree sha"))
	}

	entries, err := p.createBlobs(ctx, coord, req.Files)
	if err != nil {
		return nil, p.fail(log, StepCreateBlobs, err)
	}

	data, err = p.client.do(ctx, coord, http.MethodPost, p.client.repoURL(coord, "git", "trees"), treeRequest{
		BaseTree: baseTreeSHA,
		Tree:     entries,
	})
	if err != nil {
		return nil, p.fail(log, StepCreateTree, err)
	}
	treeSHA, ok := stringField(data, "sha")
	if !ok {
		return nil, p.fail(log, StepCreateTree, errors.New("tree response has no sha"))
	}

	data, err = p.client.do(ctx, coord, http.MethodPost, p.client.repoURL(coord, "git", "commits"), commitRequest{
		Message: message,
		Tree:    treeSHA,
		Parents: []string{parentSHA},
	})
	if err != nil {
		return nil, p.fail(log, StepCreateCommit, err)
	}
	commitSHA, ok := stringField(data, "sha")
	if !ok {
		return nil, p.fail(log, StepCreateCommit, errors.New("commit response has no sha"))
	}

	if _, err := p.client.do(ctx, coord, http.MethodPatch, refURL, refUpdateRequest{SHA: commitSHA}); err != nil {
		return nil, p.fail(log, StepUpdateRef, err)
	}

	log.Debug("published", zap.String("commit", commitSHA), zap.String("parent", parentSHA))

	return &CommitResult{
		Branch:    branch,
		ParentSHA: parentSHA,
		TreeSHA:   treeSHA,
		CommitSHA: commitSHA,
		Files:     entries,
	}, nil
}

// createBlobs uploads every file concurrently; entries keep the order of files
func (p *Publisher) createBlobs(ctx context.Context, coord Coordinate, files []StagedFile) ([]TreeEntry, error) {
	blobsURL := p.client.repoURL(coord, "git", "blobs")
	entries := make([]TreeEntry, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			data, err := p.client.do(gctx, coord, http.MethodPost, blobsURL, blobRequest{
				Content:  encodeContent(file.Content),
				Encoding: "base64",
			})
			if err != nil {
				return fmt.Errorf("failed to create blob for %s: %w", file.Path, err)
			}
			sha, ok := stringField(data, "sha")
			if !ok {
				return fmt.Errorf("blob response for %s has no sha", file.Path)
			}
			entries[i] = TreeEntry{Path: file.Path, Mode: blobMode, Type: blobType, SHA: sha}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (p *Publisher) fail(log *zap.Logger, step PublishStep, err error) error {
	log.Debug("publish failed", zap.Stringer("step", step), zap.Error(err))
	return &CommitError{Step: step, Err: err}
}
