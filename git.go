package main

import (
	"os/exec"
	"strings"
)

// git runs a git command in the specified directory and returns stdout
func git(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.Output()
	return strings.TrimSpace(string(out)), err
}

// getRemoteURL returns the origin remote URL of the checkout at path
func getRemoteURL(path string) string {
	url, err := git(path, "remote", "get-url", "origin")
	if err != nil {
		return ""
	}
	return url
}

// parseRemoteURL extracts owner and repository from a hosted remote URL.
// Supports https://host/owner/repo(.git), ssh://git@host/owner/repo(.git)
// and scp-like git@host:owner/repo(.git).
func parseRemoteURL(url string) (owner, repo string, ok bool) {
	rest := url
	switch {
	case strings.Contains(rest, "://"):
		rest = rest[strings.Index(rest, "://")+3:]
		// Drop user info and host
		slash := strings.Index(rest, "/")
		if slash < 0 {
			return "", "", false
		}
		rest = rest[slash+1:]
	case strings.Contains(rest, ":"):
		rest = rest[strings.Index(rest, ":")+1:]
	default:
		return "", "", false
	}

	rest = strings.TrimSuffix(strings.Trim(rest, "/"), ".git")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// detectRepository returns the owner and repository of the origin remote of
// the checkout containing dir
func detectRepository(dir string) (owner, repo string, ok bool) {
	url := getRemoteURL(dir)
	if url == "" {
		return "", "", false
	}
	return parseRemoteURL(url)
}
