package gitmeta

import (
	"os"
	"path/filepath"
	"testing"
)

func writeGitFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReadNoGitDir(t *testing.T) {
	info := Read(t.TempDir())
	if info != (Info{}) {
		t.Errorf("expected empty info, got %+v", info)
	}
}

func TestReadLooseRef(t *testing.T) {
	root := t.TempDir()
	writeGitFile(t, root, ".git/HEAD", "ref: refs/heads/main\n")
	writeGitFile(t, root, ".git/refs/heads/main", "abc123def456\n")
	writeGitFile(t, root, ".git/config", `[core]
	bare = false
[remote "origin"]
	url = git@github.com:acme/widgets.git
	fetch = +refs/heads/*:refs/remotes/origin/*
[remote "backup"]
	url = https://example.com/other.git
`)

	info := Read(root)
	if info.Branch != "main" {
		t.Errorf("Branch = %q", info.Branch)
	}
	if info.Commit != "abc123def456" {
		t.Errorf("Commit = %q", info.Commit)
	}
	if info.RemoteURL != "git@github.com:acme/widgets.git" {
		t.Errorf("RemoteURL = %q", info.RemoteURL)
	}
}

func TestReadPackedRef(t *testing.T) {
	root := t.TempDir()
	writeGitFile(t, root, ".git/HEAD", "ref: refs/heads/feature/x\n")
	writeGitFile(t, root, ".git/packed-refs", `# pack-refs with: peeled fully-peeled sorted
deadbeef01 refs/heads/feature/x
cafebabe02 refs/heads/main
`)

	info := Read(root)
	if info.Branch != "feature/x" {
		t.Errorf("Branch = %q", info.Branch)
	}
	if info.Commit != "deadbeef01" {
		t.Errorf("Commit = %q", info.Commit)
	}
}

func TestReadDetachedHead(t *testing.T) {
	root := t.TempDir()
	writeGitFile(t, root, ".git/HEAD", "0123456789abcdef\n")

	info := Read(root)
	if info.Branch != "" {
		t.Errorf("Branch = %q, want empty for detached HEAD", info.Branch)
	}
	if info.Commit != "0123456789abcdef" {
		t.Errorf("Commit = %q", info.Commit)
	}
}

func TestReadWorktreeIndirection(t *testing.T) {
	root := t.TempDir()
	real := filepath.Join(root, "actual-git")
	writeGitFile(t, root, "repo/.git", "gitdir: ../actual-git\n")
	writeGitFile(t, real, "HEAD", "ref: refs/heads/dev\n")
	writeGitFile(t, real, "refs/heads/dev", "fff000\n")

	info := Read(filepath.Join(root, "repo"))
	if info.Branch != "dev" || info.Commit != "fff000" {
		t.Errorf("got %+v", info)
	}
}
