package main

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPublisher(api *fakeAPI) *Publisher {
	return NewPublisher(NewClient(ClientConfig{BaseURL: api.URL}), nil)
}

func TestPublish(t *testing.T) {
	api := newFakeAPI(t, "octo", "site")

	result, err := newTestPublisher(api).Publish(context.Background(), testCoord, CommitSpec{
		Message: "Update docs",
		Branch:  "main",
		Files: []StagedFile{
			{Path: "README.md", Content: "# Site\n"},
			{Path: "docs/guide.md", Content: "guide\n"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "main", result.Branch)
	assert.Equal(t, "commit-0", result.ParentSHA)
	assert.Equal(t, "tree-1", result.TreeSHA)
	assert.Equal(t, "commit-2", result.CommitSHA)
	require.Len(t, result.Files, 2)
	assert.Equal(t, "README.md", result.Files[0].Path)
	assert.Equal(t, "docs/guide.md", result.Files[1].Path)

	routes := api.routes()
	require.Len(t, routes, 7)
	assert.Equal(t, "GET git/refs/heads/main", routes[0])
	assert.Equal(t, "GET git/commits/commit-0", routes[1])
	assert.Equal(t, []string{"POST git/blobs", "POST git/blobs"}, routes[2:4])
	assert.Equal(t, []string{
		"POST git/trees",
		"POST git/commits",
		"PATCH git/refs/heads/main",
	}, routes[4:])

	for _, r := range api.requestsTo("") {
		assert.Equal(t, "token secret", r.Header.Get("Authorization"), r.Path)
	}

	var tree treeRequest
	require.NoError(t, json.Unmarshal(api.requestsTo("POST git/trees")[0].Body, &tree))
	assert.Equal(t, "tree-0", tree.BaseTree)
	assert.Equal(t, result.Files, tree.Tree)
	for _, entry := range tree.Tree {
		assert.Equal(t, "100644", entry.Mode)
		assert.Equal(t, "blob", entry.Type)
		assert.NotEmpty(t, entry.SHA)
	}

	var commit commitRequest
	require.NoError(t, json.Unmarshal(api.requestsTo("POST git/commits")[0].Body, &commit))
	assert.Equal(t, commitRequest{Message: "Update docs", Tree: "tree-1", Parents: []string{"commit-0"}}, commit)

	patches := api.requestsTo("PATCH")
	require.Len(t, patches, 1)
	var update refUpdateRequest
	require.NoError(t, json.Unmarshal(patches[0].Body, &update))
	assert.Equal(t, result.CommitSHA, update.SHA)

	assert.Equal(t, "commit-2", api.ref("main"))
	content, _ := api.file("README.md")
	assert.Equal(t, "# Site\n", content)
	content, _ = api.file("docs/guide.md")
	assert.Equal(t, "guide\n", content)
}

func TestPublishDefaults(t *testing.T) {
	api := newFakeAPI(t, "octo", "site")

	result, err := newTestPublisher(api).Publish(context.Background(), testCoord, CommitSpec{
		Files: []StagedFile{{Path: "a.md", Content: "a"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "main", result.Branch)

	var commit commitRequest
	require.NoError(t, json.Unmarshal(api.requestsTo("POST git/commits")[0].Body, &commit))
	assert.Equal(t, "Updated files", commit.Message)
}

func TestPublishBranch(t *testing.T) {
	api := newFakeAPI(t, "octo", "site")
	api.setRef("dev", "commit-dev", "tree-dev")

	result, err := newTestPublisher(api).Publish(context.Background(), testCoord, CommitSpec{
		Branch: "dev",
		Files:  []StagedFile{{Path: "a.md", Content: "a"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "dev", result.Branch)
	assert.Equal(t, "commit-dev", result.ParentSHA)
	assert.Equal(t, result.CommitSHA, api.ref("dev"))
	assert.Equal(t, "commit-0", api.ref("main"))
}

func TestPublishMissingToken(t *testing.T) {
	api := newFakeAPI(t, "octo", "site")

	_, err := newTestPublisher(api).Publish(context.Background(), Coordinate{Owner: "octo", Repo: "site"}, CommitSpec{
		Files: []StagedFile{{Path: "a.md", Content: "a"}},
	})
	var configErr *ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, []string{"token"}, configErr.Missing)
	assert.EqualError(t, err, "missing credentials: token")
	assert.Equal(t, 0, api.requestCount())
}

func TestPublishNoChanges(t *testing.T) {
	api := newFakeAPI(t, "octo", "site")

	_, err := newTestPublisher(api).Publish(context.Background(), testCoord, CommitSpec{Message: "nothing"})
	assert.ErrorIs(t, err, ErrNoChanges)
	assert.Equal(t, 0, api.requestCount())
}

func TestPublishFailure(t *testing.T) {
	cases := []struct {
		route string
		step  PublishStep
	}{
		{"GET git/refs", StepReadRef},
		{"GET git/commits", StepReadCommit},
		{"POST git/blobs", StepCreateBlobs},
		{"POST git/trees", StepCreateTree},
		{"POST git/commits", StepCreateCommit},
		{"PATCH git/refs", StepUpdateRef},
	}

	for _, tc := range cases {
		t.Run(tc.step.String(), func(t *testing.T) {
			api := newFakeAPI(t, "octo", "site")
			api.failOn(tc.route, http.StatusInternalServerError)

			result, err := newTestPublisher(api).Publish(context.Background(), testCoord, CommitSpec{
				Files: []StagedFile{
					{Path: "a.md", Content: "a"},
					{Path: "b.md", Content: "b"},
				},
			})
			assert.Nil(t, result)

			var commitErr *CommitError
			require.ErrorAs(t, err, &commitErr)
			assert.Equal(t, tc.step, commitErr.Step)

			var netErr *NetworkError
			require.ErrorAs(t, err, &netErr)
			assert.Equal(t, http.StatusInternalServerError, netErr.Status)

			assert.Equal(t, "commit-0", api.ref("main"))
			if tc.step != StepUpdateRef {
				assert.Empty(t, api.requestsTo("PATCH"))
			}
		})
	}
}

func TestPublishMissingBranch(t *testing.T) {
	api := newFakeAPI(t, "octo", "site")

	_, err := newTestPublisher(api).Publish(context.Background(), testCoord, CommitSpec{
		Branch: "nope",
		Files:  []StagedFile{{Path: "a.md", Content: "a"}},
	})
	var commitErr *CommitError
	require.ErrorAs(t, err, &commitErr)
	assert.Equal(t, StepReadRef, commitErr.Step)
	assert.Contains(t, err.Error(), "error committing changes (read ref)")
	assert.Contains(t, err.Error(), "404 - Not Found")
	assert.Equal(t, 1, api.requestCount())
}
