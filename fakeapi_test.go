package main

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
)

// apiRequest is a request received by the fake API
type apiRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// Route returns the request as "METHOD route" relative to the repository
func (r apiRequest) Route(owner, repo string) string {
	return r.Method + " " + strings.TrimPrefix(strings.TrimPrefix(r.Path, "/repos/"+owner+"/"+repo), "/")
}

// fakeAPI serves the contents and git data endpoints of one repository.
// Publishing through it updates the files it serves.
type fakeAPI struct {
	*httptest.Server

	owner string
	repo  string

	mu            sync.Mutex
	defaultBranch string
	files         map[string]string
	refs          map[string]string
	commits       map[string]string
	trees         map[string][]TreeEntry
	blobs         map[string]string
	fail          map[string]int
	requests      []apiRequest
	counter       int
}

func newFakeAPI(t *testing.T, owner, repo string) *fakeAPI {
	t.Helper()
	api := &fakeAPI{
		owner:         owner,
		repo:          repo,
		defaultBranch: "main",
		files:         map[string]string{},
		refs:          map[string]string{"main": "commit-0"},
		commits:       map[string]string{"commit-0": "tree-0"},
		trees:         map[string][]TreeEntry{},
		blobs:         map[string]string{},
		fail:          map[string]int{},
	}
	api.Server = httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(api.Close)
	return api
}

func (a *fakeAPI) setFile(path, content string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.files[path] = content
}

func (a *fakeAPI) file(path string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	content, ok := a.files[path]
	return content, ok
}

func (a *fakeAPI) setRef(branch, sha, treeSHA string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refs[branch] = sha
	a.commits[sha] = treeSHA
}

func (a *fakeAPI) ref(branch string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refs[branch]
}

func (a *fakeAPI) setDefaultBranch(branch string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.defaultBranch = branch
}

// failOn makes every request whose route starts with route answer with status
func (a *fakeAPI) failOn(route string, status int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fail[route] = status
}

// routes returns the routes requested so far, in order
func (a *fakeAPI) routes() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	routes := make([]string, 0, len(a.requests))
	for _, r := range a.requests {
		routes = append(routes, r.Route(a.owner, a.repo))
	}
	return routes
}

// requestsTo returns the requests whose route starts with route
func (a *fakeAPI) requestsTo(route string) []apiRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	var matched []apiRequest
	for _, r := range a.requests {
		if strings.HasPrefix(r.Route(a.owner, a.repo), route) {
			matched = append(matched, r)
		}
	}
	return matched
}

// writes returns the number of POST and PATCH requests received
func (a *fakeAPI) writes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, r := range a.requests {
		if r.Method == http.MethodPost || r.Method == http.MethodPatch {
			n++
		}
	}
	return n
}

func (a *fakeAPI) requestCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

func (a *fakeAPI) nextSHA(prefix string) string {
	a.counter++
	return fmt.Sprintf("%s-%d", prefix, a.counter)
}

func (a *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	a.mu.Lock()
	defer a.mu.Unlock()

	req := apiRequest{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Body: body}
	a.requests = append(a.requests, req)

	prefix := "/repos/" + a.owner + "/" + a.repo
	if r.URL.Path != prefix && !strings.HasPrefix(r.URL.Path, prefix+"/") {
		writeAPIError(w, http.StatusNotFound, "Not Found")
		return
	}

	route := req.Route(a.owner, a.repo)
	for failRoute, status := range a.fail {
		if strings.HasPrefix(route, failRoute) {
			writeAPIError(w, status, http.StatusText(status))
			return
		}
	}

	method, target, _ := strings.Cut(route, " ")
	switch {
	case method == http.MethodGet && target == "":
		writeJSON(w, http.StatusOK, map[string]any{
			"full_name":      a.owner + "/" + a.repo,
			"default_branch": a.defaultBranch,
		})

	case method == http.MethodGet && strings.HasPrefix(target, "contents/"):
		a.serveContents(w, strings.TrimPrefix(target, "contents/"))

	case method == http.MethodGet && strings.HasPrefix(target, "git/refs/heads/"):
		branch := strings.TrimPrefix(target, "git/refs/heads/")
		sha, ok := a.refs[branch]
		if !ok {
			writeAPIError(w, http.StatusNotFound, "Not Found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ref":    "refs/heads/" + branch,
			"object": map[string]any{"sha": sha, "type": "commit"},
		})

	case method == http.MethodPatch && strings.HasPrefix(target, "git/refs/heads/"):
		branch := strings.TrimPrefix(target, "git/refs/heads/")
		var update refUpdateRequest
		if err := json.Unmarshal(body, &update); err != nil || update.SHA == "" {
			writeAPIError(w, http.StatusUnprocessableEntity, "Invalid request")
			return
		}
		if _, ok := a.commits[update.SHA]; !ok {
			writeAPIError(w, http.StatusUnprocessableEntity, "Object does not exist")
			return
		}
		a.refs[branch] = update.SHA
		for _, entry := range a.trees[a.commits[update.SHA]] {
			a.files[entry.Path] = a.blobs[entry.SHA]
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ref":    "refs/heads/" + branch,
			"object": map[string]any{"sha": update.SHA, "type": "commit"},
		})

	case method == http.MethodGet && strings.HasPrefix(target, "git/commits/"):
		sha := strings.TrimPrefix(target, "git/commits/")
		tree, ok := a.commits[sha]
		if !ok {
			writeAPIError(w, http.StatusNotFound, "Not Found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"sha":  sha,
			"tree": map[string]any{"sha": tree},
		})

	case method == http.MethodPost && target == "git/blobs":
		var blob blobRequest
		if err := json.Unmarshal(body, &blob); err != nil || blob.Encoding != "base64" {
			writeAPIError(w, http.StatusUnprocessableEntity, "Invalid request")
			return
		}
		content, err := base64.StdEncoding.DecodeString(blob.Content)
		if err != nil {
			writeAPIError(w, http.StatusUnprocessableEntity, "Invalid base64")
			return
		}
		sha := fmt.Sprintf("%x", sha1.Sum(content))
		a.blobs[sha] = string(content)
		writeJSON(w, http.StatusCreated, map[string]any{"sha": sha})

	case method == http.MethodPost && target == "git/trees":
		var tree treeRequest
		if err := json.Unmarshal(body, &tree); err != nil {
			writeAPIError(w, http.StatusUnprocessableEntity, "Invalid request")
			return
		}
		sha := a.nextSHA("tree")
		a.trees[sha] = tree.Tree
		writeJSON(w, http.StatusCreated, map[string]any{"sha": sha})

	case method == http.MethodPost && target == "git/commits":
		var commit commitRequest
		if err := json.Unmarshal(body, &commit); err != nil {
			writeAPIError(w, http.StatusUnprocessableEntity, "Invalid request")
			return
		}
		sha := a.nextSHA("commit")
		a.commits[sha] = commit.Tree
		writeJSON(w, http.StatusCreated, map[string]any{"sha": sha})

	default:
		writeAPIError(w, http.StatusNotFound, "Not Found")
	}
}

func (a *fakeAPI) serveContents(w http.ResponseWriter, path string) {
	if content, ok := a.files[path]; ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"type":     "file",
			"path":     path,
			"encoding": "base64",
			"content":  wrapBase64(content),
		})
		return
	}

	var listing []map[string]any
	for p := range a.files {
		if strings.HasPrefix(p, path+"/") {
			listing = append(listing, map[string]any{"type": "file", "path": p})
		}
	}
	if len(listing) == 0 {
		writeAPIError(w, http.StatusNotFound, "Not Found")
		return
	}
	sort.Slice(listing, func(i, j int) bool {
		return listing[i]["path"].(string) < listing[j]["path"].(string)
	})
	writeJSON(w, http.StatusOK, listing)
}

// wrapBase64 encodes s the way the contents endpoint does, 60 columns per line
func wrapBase64(s string) string {
	enc := base64.StdEncoding.EncodeToString([]byte(s))
	var b strings.Builder
	for len(enc) > 60 {
		b.WriteString(enc[:60])
		b.WriteString("\n")
		enc = enc[60:]
	}
	b.WriteString(enc)
	b.WriteString("\n")
	return b.String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"message": message})
}
