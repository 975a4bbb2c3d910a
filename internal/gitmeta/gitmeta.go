// Package gitmeta reads repository metadata straight from the .git
// directory, so no git binary is required. Everything here is
// best-effort: a missing or unusual .git layout yields empty fields,
// never an error.
package gitmeta

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Info is the version-control metadata attached to a repository node.
type Info struct {
	RemoteURL string
	Branch    string
	Commit    string
}

// Read collects git metadata for a repository root.
func Read(repoPath string) Info {
	gitDir := resolveGitDir(repoPath)
	if gitDir == "" {
		return Info{}
	}

	var info Info
	info.Branch, info.Commit = readHead(gitDir)
	info.RemoteURL = readOriginURL(filepath.Join(gitDir, "config"))
	return info
}

// resolveGitDir locates the actual .git directory, following the
// "gitdir: <path>" indirection used by worktrees and submodules.
func resolveGitDir(repoPath string) string {
	p := filepath.Join(repoPath, ".git")
	fi, err := os.Stat(p)
	if err != nil {
		return ""
	}
	if fi.IsDir() {
		return p
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return ""
	}
	line := strings.TrimSpace(string(data))
	target, ok := strings.CutPrefix(line, "gitdir:")
	if !ok {
		return ""
	}
	target = strings.TrimSpace(target)
	if !filepath.IsAbs(target) {
		target = filepath.Join(repoPath, target)
	}
	return target
}

// readHead returns the branch name and commit hash. A detached HEAD
// has no branch, only a commit.
func readHead(gitDir string) (branch, commit string) {
	data, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return "", ""
	}
	head := strings.TrimSpace(string(data))

	ref, ok := strings.CutPrefix(head, "ref:")
	if !ok {
		return "", head
	}
	ref = strings.TrimSpace(ref)
	branch = strings.TrimPrefix(ref, "refs/heads/")

	if data, err := os.ReadFile(filepath.Join(gitDir, filepath.FromSlash(ref))); err == nil {
		return branch, strings.TrimSpace(string(data))
	}
	return branch, readPackedRef(gitDir, ref)
}

// readPackedRef looks a ref up in packed-refs when the loose ref file
// is absent.
func readPackedRef(gitDir, ref string) string {
	f, err := os.Open(filepath.Join(gitDir, "packed-refs"))
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == '#' || line[0] == '^' {
			continue
		}
		hash, name, ok := strings.Cut(line, " ")
		if ok && name == ref {
			return hash
		}
	}
	return ""
}

// readOriginURL extracts the url of [remote "origin"] from the git
// config's INI-like format.
func readOriginURL(configPath string) string {
	f, err := os.Open(configPath)
	if err != nil {
		return ""
	}
	defer f.Close()

	inOrigin := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") {
			inOrigin = line == `[remote "origin"]`
			continue
		}
		if !inOrigin {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if ok && strings.TrimSpace(key) == "url" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
