package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
)

const appName = "ghstage"

// Config holds settings resolved from flags, environment and the config file
type Config struct {
	Owner         string `toml:"owner"`
	Repo          string `toml:"repo"`
	Token         string `toml:"token"`
	Branch        string `toml:"branch"`
	APIURL        string `toml:"api_url"`
	StateDir      string `toml:"state_dir"`
	DiffAlgorithm string `toml:"diff_algorithm"`
}

// flagValues holds the persistent flags shared by every command
type flagValues struct {
	configPath string
	verbose    bool
	owner      string
	repo       string
	token      string
	branch     string
	apiURL     string
	stateDir   string
}

// bindFlags registers the persistent flags on fs
func bindFlags(fs *pflag.FlagSet, f *flagValues) {
	fs.StringVar(&f.configPath, "config", "", "path to the config file")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "verbose output")
	fs.StringVar(&f.owner, "owner", "", "repository owner")
	fs.StringVar(&f.repo, "repo", "", "repository name")
	fs.StringVar(&f.token, "token", "", "API token")
	fs.StringVar(&f.branch, "branch", "", "branch to commit to (default: the repository's default branch, else main)")
	fs.StringVar(&f.apiURL, "api-url", "", "API base URL (default "+defaultAPIURL+")")
	fs.StringVar(&f.stateDir, "state-dir", "", "directory holding local drafts")
}

// loadConfig resolves configuration: flags, then environment, then the config
// file, then the origin remote of the current checkout
func loadConfig(fs *pflag.FlagSet, f *flagValues) (*Config, error) {
	path := f.configPath
	if path == "" {
		path = envOr("GHSTAGE_CONFIG", "")
	}
	if path == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			path = filepath.Join(dir, appName, "config.toml")
		}
	}

	cfg, err := loadConfigFile(path)
	if err != nil {
		return nil, err
	}

	cfg.Owner = envOr("GHSTAGE_OWNER", cfg.Owner)
	cfg.Repo = envOr("GHSTAGE_REPO", cfg.Repo)
	cfg.Token = envOr("GHSTAGE_TOKEN", envOr("GITHUB_TOKEN", cfg.Token))
	cfg.Branch = envOr("GHSTAGE_BRANCH", cfg.Branch)
	cfg.APIURL = envOr("GHSTAGE_API_URL", cfg.APIURL)
	cfg.StateDir = envOr("GHSTAGE_STATE_DIR", cfg.StateDir)

	if fs.Changed("owner") {
		cfg.Owner = f.owner
	}
	if fs.Changed("repo") {
		cfg.Repo = f.repo
	}
	if fs.Changed("token") {
		cfg.Token = f.token
	}
	if fs.Changed("branch") {
		cfg.Branch = f.branch
	}
	if fs.Changed("api-url") {
		cfg.APIURL = f.apiURL
	}
	if fs.Changed("state-dir") {
		cfg.StateDir = f.stateDir
	}

	// Fall back to the origin remote of the current checkout
	if cfg.Owner == "" && cfg.Repo == "" {
		if cwd, err := os.Getwd(); err == nil {
			if owner, repo, ok := detectRepository(cwd); ok {
				cfg.Owner, cfg.Repo = owner, repo
			}
		}
	}

	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.StateDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to find a state directory: %w", err)
		}
		cfg.StateDir = filepath.Join(dir, appName)
	}
	if _, err := ParseAlgorithm(cfg.DiffAlgorithm); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadConfigFile parses the TOML file at path; a missing file yields an empty config
func loadConfigFile(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Coordinate returns the repository coordinate
func (c *Config) Coordinate() Coordinate {
	return Coordinate{Owner: c.Owner, Repo: c.Repo, Token: c.Token}
}

// RepoStateDir returns the directory holding drafts for the configured repository
func (c *Config) RepoStateDir() string {
	return filepath.Join(c.StateDir, c.Owner, c.Repo)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
