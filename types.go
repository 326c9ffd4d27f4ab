package main

// Coordinate identifies a remote repository and the token used to access it
type Coordinate struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
	Token string `json:"-"`
}

// Validate checks the fields needed for read access
func (c Coordinate) Validate() error {
	var missing []string
	if c.Owner == "" {
		missing = append(missing, "owner")
	}
	if c.Repo == "" {
		missing = append(missing, "repo")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

// ValidateForWrite checks the fields needed to publish a commit
func (c Coordinate) ValidateForWrite() error {
	var missing []string
	if c.Owner == "" {
		missing = append(missing, "owner")
	}
	if c.Repo == "" {
		missing = append(missing, "repo")
	}
	if c.Token == "" {
		missing = append(missing, "token")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

// String returns owner/repo
func (c Coordinate) String() string {
	return c.Owner + "/" + c.Repo
}

// TreeEntry is one file in a tree-creation request
type TreeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
}

// CommitSpec describes the commit a publish will create
type CommitSpec struct {
	Message string
	Branch  string
	Files   []StagedFile
}

// StagedFile is a path and the full content it will have after the commit
type StagedFile struct {
	Path    string
	Content string
}

// CommitResult describes a published commit
type CommitResult struct {
	Branch    string      `json:"branch"`
	ParentSHA string      `json:"parent_sha"`
	TreeSHA   string      `json:"tree_sha"`
	CommitSHA string      `json:"commit_sha"`
	Files     []TreeEntry `json:"files"`
}
