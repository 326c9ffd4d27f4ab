package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

// Fetcher retrieves the decoded text of a single remote file
type Fetcher interface {
	FetchFile(ctx context.Context, coord Coordinate, path string) (string, error)
}

// RemoteFetcher reads files through the contents endpoint
type RemoteFetcher struct {
	client *Client
}

// NewRemoteFetcher creates a fetcher backed by client
func NewRemoteFetcher(client *Client) *RemoteFetcher {
	return &RemoteFetcher{client: client}
}

// FetchFile returns the decoded content of path
func (f *RemoteFetcher) FetchFile(ctx context.Context, coord Coordinate, path string) (string, error) {
	if err := coord.Validate(); err != nil {
		return "", err
	}
	if strings.Trim(path, "/") == "" {
		return "", ErrEmptyPath
	}

	data, err := f.client.get(ctx, coord, f.client.repoURL(coord, "contents", escapePath(path)))
	if err != nil {
		return "", err
	}

	// Directory listings come back as an array and have no content field
	encoded, ok := stringField(data, "content")
	if !ok {
		return "", &NotFoundError{Path: path}
	}

	text, err := decodeContent(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return text, nil
}

// decodeContent decodes base64 content, which the API wraps at 60 columns
func decodeContent(encoded string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, encoded)

	data, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// encodeContent base64-encodes text for a blob request
func encodeContent(text string) string {
	return base64.StdEncoding.EncodeToString([]byte(text))
}
