package clone

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 100}))
}

func TestJunkGuardCleanupRemove(t *testing.T) {
	dir := t.TempDir()
	repo := filepath.Join(dir, "repo")
	if err := os.MkdirAll(repo, 0o755); err != nil {
		t.Fatal(err)
	}

	g := &JunkGuard{log: discardLogger()}
	g.RegisterRepoPath(repo)
	g.SetMode(JunkRemove)
	g.Cleanup()

	if _, err := os.Stat(repo); !os.IsNotExist(err) {
		t.Fatalf("expected repo to be removed, stat err = %v", err)
	}
}

func TestJunkGuardCleanupLeaveAll(t *testing.T) {
	dir := t.TempDir()
	repo := filepath.Join(dir, "repo")
	if err := os.MkdirAll(repo, 0o755); err != nil {
		t.Fatal(err)
	}

	g := &JunkGuard{log: discardLogger()}
	g.RegisterRepoPath(repo)
	g.SetMode(JunkLeaveAll)
	g.Cleanup()

	if _, err := os.Stat(repo); err != nil {
		t.Fatalf("expected repo to survive, stat err = %v", err)
	}
}

func TestJunkGuardCleanupLeaveResumable(t *testing.T) {
	dir := t.TempDir()
	repo := filepath.Join(dir, "repo")
	gitDir := filepath.Join(repo, ".git")
	if err := os.MkdirAll(gitDir, 0o755); err != nil {
		t.Fatal(err)
	}
	scratch := filepath.Join(repo, "some-scratch-file")
	if err := os.WriteFile(scratch, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	g := &JunkGuard{log: discardLogger()}
	g.RegisterRepoPath(repo)
	g.SetMode(JunkLeaveResumable)
	g.Cleanup()

	if _, err := os.Stat(gitDir); err != nil {
		t.Fatalf("expected git-dir to survive, stat err = %v", err)
	}
	if _, err := os.Stat(scratch); !os.IsNotExist(err) {
		t.Fatalf("expected scratch file to be removed, stat err = %v", err)
	}
}

func TestJunkGuardCleanupLeaveRepo(t *testing.T) {
	dir := t.TempDir()
	repo := filepath.Join(dir, "repo")
	if err := os.MkdirAll(repo, 0o755); err != nil {
		t.Fatal(err)
	}

	g := &JunkGuard{log: discardLogger()}
	g.RegisterRepoPath(repo)
	g.SetMode(JunkLeaveRepo)
	g.Cleanup()

	if _, err := os.Stat(repo); err != nil {
		t.Fatalf("expected repo to survive, stat err = %v", err)
	}
}
