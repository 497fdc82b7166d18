package clone

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevinwern/gitclone/internal/utils"
)

// RemoteConfig is what the Resume Loader reconstructs from an existing
// destination's config.
type RemoteConfig struct {
	Name         string
	FetchPattern string
	WorkTree     string
	Bare         bool
	Mirror       bool
	URL          string
}

// loadResumeState locates destDir's git-dir (itself, or via its .git
// gitfile/subdirectory), reads the remote config out of it, and infers
// the work-tree when it wasn't resolvable from core.worktree.
func loadResumeState(destDir string, log *slog.Logger) (RemoteConfig, string, string, error) {
	gitDir, workTree, err := locateGitDir(destDir)
	if err != nil {
		return RemoteConfig{}, "", "", newErr(KindUser, err)
	}

	rc, err := readRemoteConfig(gitDir, log)
	if err != nil {
		return RemoteConfig{}, "", "", newErr(KindUser, err)
	}

	if workTree == "" && !rc.Bare && strings.HasSuffix(gitDir, ".git") {
		candidate := filepath.Dir(gitDir)
		if w, err := os.Stat(candidate); err == nil && w.IsDir() {
			workTree = candidate
		}
	}
	rc.WorkTree = workTree

	return rc, gitDir, workTree, nil
}

// locateGitDir determines whether destDir is itself a git-dir or
// contains one at destDir/.git (plain directory or gitfile
// indirection), returning the resolved git-dir and, when destDir is a
// non-bare work-tree, destDir itself as the work-tree.
func locateGitDir(destDir string) (gitDir string, workTree string, err error) {
	if isGitDir(destDir) {
		abs, err := filepath.Abs(destDir)
		return abs, "", err
	}

	dotGit := filepath.Join(destDir, ".git")
	if utils.DirExists(dotGit) && isGitDir(dotGit) {
		abs, err := filepath.Abs(dotGit)
		if err != nil {
			return "", "", err
		}
		wt, err := filepath.Abs(destDir)
		return abs, wt, err
	}

	if target, ok, rerr := utils.ReadGitfile(dotGit); rerr == nil && ok {
		abs, err := filepath.Abs(target)
		if err != nil {
			return "", "", err
		}
		wt, err := filepath.Abs(destDir)
		return abs, wt, err
	}

	return "", "", fmt.Errorf("%s is not resumable: not a git repository", destDir)
}

// readRemoteConfig parses the relevant keys out of gitDir/config using
// `git config`, which is simpler and more robust than hand-parsing the
// ini-like format ourselves.
func readRemoteConfig(gitDir string, log *slog.Logger) (RemoteConfig, error) {
	bare, _ := gitConfigGet(gitDir, "core.bare", log)

	name, ok := findRemoteName(gitDir, log)
	if !ok {
		name = "origin"
	}

	url, _ := gitConfigGet(gitDir, "remote."+name+".url", log)
	fetch, _ := gitConfigGet(gitDir, "remote."+name+".fetch", log)
	mirror, _ := gitConfigGet(gitDir, "remote."+name+".mirror", log)

	return RemoteConfig{
		Name:         name,
		FetchPattern: fetch,
		Bare:         bare == "true",
		Mirror:       mirror == "true",
		URL:          url,
	}, nil
}

// findRemoteName enumerates gitDir's remote.<name>.url entries and
// returns the first one's name. A resumed clone may have been made with
// a non-default --origin, so the remote name can't simply be assumed to
// be "origin".
func findRemoteName(gitDir string, log *slog.Logger) (string, bool) {
	if log == nil {
		log = slog.Default()
	}
	out, err := utils.RunCommand(context.Background(), log, nil, "", "git", "--git-dir", gitDir, "config", "--get-regexp", `^remote\..*\.url$`)
	if err != nil {
		return "", false
	}
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	key, _, ok := strings.Cut(line, " ")
	if !ok {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(key, "remote."), ".url")
	if name == "" {
		return "", false
	}
	return name, true
}

// gitConfigGet is a narrow helper around `git config --get` used only
// by the Resume Loader, which needs to read config back out rather
// than write it (utils.RunCommand already covers every config write
// path elsewhere in this package).
func gitConfigGet(gitDir, key string, log *slog.Logger) (string, bool) {
	if log == nil {
		log = slog.Default()
	}
	out, err := utils.RunCommand(context.Background(), log, nil, "", "git", "--git-dir", gitDir, "config", "--get", key)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(out), true
}
