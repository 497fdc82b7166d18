package clone

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGuessDestination(t *testing.T) {
	cases := []struct {
		name     string
		repo     string
		isBundle bool
		bare     bool
		want     string
	}{
		{"https-trailing-slash", "https://host/foo/bar.git/", false, false, "bar"},
		{"scp-bare", "user@host:foo/bar.git", false, true, "bar.git"},
		{"https-no-suffix", "https://host/foo/bar", false, false, "bar"},
		{"port-stripped-no-path", "host.example.com:2222", false, false, "host.example.com"},
		{"scp-with-path-keeps-colon-tail", "user@host:22/foo/bar.git", false, false, "bar"},
		{"bundle-suffix-stripped", "/tmp/archive.bundle", true, false, "archive"},
		{"local-dot-git-dir", "/srv/repos/project/.git", false, false, "project"},
		{"trailing-slashes-collapsed", "https://host/foo/bar///", false, false, "bar"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := guessDestination(tc.repo, tc.isBundle, tc.bare)
			if err != nil {
				t.Fatalf("guessDestination(%q) error: %v", tc.repo, err)
			}
			if got != tc.want {
				t.Errorf("guessDestination(%q, %v, %v) = %q, want %q", tc.repo, tc.isBundle, tc.bare, got, tc.want)
			}
		})
	}
}

func TestGuessDestinationEmpty(t *testing.T) {
	if _, err := guessDestination("https:///", false, false); err == nil {
		t.Fatalf("expected error for empty guessed name")
	}
}

func TestStripUserinfo(t *testing.T) {
	cases := map[string]string{
		"user@host/path":     "host/path",
		"a@b@host/path":      "host/path",
		"host/no-at":         "host/no-at",
		"user@host:port/pth": "host:port/pth",
	}
	for in, want := range cases {
		if got := stripUserinfo(in); got != want {
			t.Errorf("stripUserinfo(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStripTrailingPort(t *testing.T) {
	if got := stripTrailingPort("host.example.com:2222"); got != "host.example.com" {
		t.Errorf("stripTrailingPort() = %q", got)
	}
	if got := stripTrailingPort("host:notaport"); got != "host:notaport" {
		t.Errorf("stripTrailingPort() should leave non-numeric suffix alone, got %q", got)
	}
}

func TestResolveSourceLocalGitDir(t *testing.T) {
	dir := t.TempDir()
	gitDir := filepath.Join(dir, "repo.git")
	if err := os.MkdirAll(filepath.Join(gitDir, "objects"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := resolveSource(gitDir)
	if err != nil {
		t.Fatalf("resolveSource() error: %v", err)
	}
	if got.IsRemote || got.IsBundle {
		t.Fatalf("resolveSource() = %+v, want local git-dir", got)
	}
	want, _ := filepath.Abs(gitDir)
	if got.Path != want {
		t.Errorf("resolveSource().Path = %q, want %q", got.Path, want)
	}
}

func TestResolveSourceGitfileIndirection(t *testing.T) {
	dir := t.TempDir()
	realGitDir := filepath.Join(dir, "actual.git")
	if err := os.MkdirAll(filepath.Join(realGitDir, "objects"), 0o755); err != nil {
		t.Fatal(err)
	}

	worktree := filepath.Join(dir, "worktree")
	if err := os.MkdirAll(worktree, 0o755); err != nil {
		t.Fatal(err)
	}
	gitfile := filepath.Join(worktree, ".git")
	if err := os.WriteFile(gitfile, []byte("gitdir: "+realGitDir+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := resolveSource(worktree)
	if err != nil {
		t.Fatalf("resolveSource() error: %v", err)
	}
	want, _ := filepath.Abs(realGitDir)
	if got.Path != want {
		t.Errorf("resolveSource().Path = %q, want %q", got.Path, want)
	}
}

func TestResolveSourceBundle(t *testing.T) {
	dir := t.TempDir()
	bundle := filepath.Join(dir, "archive.bundle")
	if err := os.WriteFile(bundle, []byte("# v2 git bundle\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := resolveSource(filepath.Join(dir, "archive"))
	if err != nil {
		t.Fatalf("resolveSource() error: %v", err)
	}
	if !got.IsBundle {
		t.Fatalf("resolveSource() = %+v, want bundle", got)
	}
}

func TestResolveSourceRemote(t *testing.T) {
	got, err := resolveSource("https://example.com/foo/bar.git")
	if err != nil {
		t.Fatalf("resolveSource() error: %v", err)
	}
	if !got.IsRemote {
		t.Fatalf("resolveSource() = %+v, want remote", got)
	}
}

func TestResolveSourceNonexistentLocal(t *testing.T) {
	dir := t.TempDir()
	if _, err := resolveSource(filepath.Join(dir, "nope")); err == nil {
		t.Fatalf("expected error for nonexistent local path")
	}
}
