package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	defaultAPIURL = "https://api.github.com"
	acceptHeader  = "application/vnd.github.v3+json"
	userAgent     = "ghstage"
)

// Client sends authenticated JSON requests to the hosting service
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// ClientConfig holds client configuration
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewClient creates a client for the hosting service API
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAPIURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        20,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		log:        cfg.Logger,
	}
}

// repoURL builds an API URL below /repos/{owner}/{repo}
func (c *Client) repoURL(coord Coordinate, parts ...string) string {
	u := c.baseURL + "/repos/" + url.PathEscape(coord.Owner) + "/" + url.PathEscape(coord.Repo)
	if len(parts) > 0 {
		u += "/" + strings.Join(parts, "/")
	}
	return u
}

// escapePath escapes each segment of a repository-relative path
func escapePath(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// get issues a GET and returns the response body
func (c *Client) get(ctx context.Context, coord Coordinate, u string) ([]byte, error) {
	return c.do(ctx, coord, http.MethodGet, u, nil)
}

// do issues a request, JSON-encoding body when it is not nil, and returns the
// response body. Non-2xx responses are returned as *NetworkError.
func (c *Client) do(ctx context.Context, coord Coordinate, method, u string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, &NetworkError{Method: method, URL: u, Err: err}
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if coord.Token != "" {
		req.Header.Set("Authorization", "token "+coord.Token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("request failed", zap.String("method", method), zap.String("url", u), zap.Error(err))
		return nil, &NetworkError{Method: method, URL: u, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Method: method, URL: u, Status: resp.StatusCode, StatusText: statusText(resp), Err: err}
	}

	c.log.Debug("request",
		zap.String("method", method),
		zap.String("url", u),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		netErr := &NetworkError{
			Method:     method,
			URL:        u,
			Status:     resp.StatusCode,
			StatusText: statusText(resp),
		}
		if msg, ok := stringField(data, "message"); ok && msg != "" {
			netErr.Err = errors.New(msg)
		}
		return nil, netErr
	}

	return data, nil
}

// statusText returns the reason phrase of a response
func statusText(resp *http.Response) string {
	text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" ")
	if text == "" || text == resp.Status {
		return http.StatusText(resp.StatusCode)
	}
	return text
}

// stringField extracts a string value from a JSON document
func stringField(data []byte, path string) (string, bool) {
	r := gjson.GetBytes(data, path)
	if !r.Exists() || r.Type != gjson.String {
		return "", false
	}
	return r.String(), true
}

// DefaultBranch returns the repository's default branch
func (c *Client) DefaultBranch(ctx context.Context, coord Coordinate) (string, error) {
	if err := coord.Validate(); err != nil {
		return "", err
	}
	data, err := c.get(ctx, coord, c.repoURL(coord))
	if err != nil {
		return "", err
	}
	branch, ok := stringField(data, "default_branch")
	if !ok || branch == "" {
		return "", fmt.Errorf("repository %s has no default branch", coord)
	}
	return branch, nil
}
