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

// Destination describes the on-disk layout the Destination Provisioner
// produced: the git-dir (always present) and, for a non-bare clone, the
// work-tree the checkout populates.
type Destination struct {
	GitDir   string
	WorkTree string
	Bare     bool
}

// provisionDestination creates dir (and, for a non-bare clone, a
// separate git-dir under separateGitDir if set), rejects a non-empty
// destination, runs `git init`, and writes the requested --config
// pairs. guard is registered against dir/gitDir before anything
// irreversible happens so a later failure or signal can still clean up.
func provisionDestination(ctx context.Context, gitExec, dir string, bare bool, separateGitDir string, templateDir string, configList []string, guard *JunkGuard, log *slog.Logger) (Destination, error) {
	exists := utils.DirExists(dir)
	if exists {
		empty, err := utils.IsDirEmpty(dir)
		if err != nil {
			return Destination{}, newErr(KindUser, fmt.Errorf("checking destination %s: %w", dir, err))
		}
		if !empty {
			return Destination{}, newErr(KindUser, fmt.Errorf("destination path %q already exists and is not an empty directory", dir))
		}
	} else {
		if err := os.MkdirAll(dir, utils.DefaultDirMode); err != nil {
			return Destination{}, newErr(KindUser, fmt.Errorf("creating destination %s: %w", dir, err))
		}
	}
	guard.RegisterRepoPath(dir)

	gitDir := dir
	workTree := ""
	if !bare {
		gitDir = filepath.Join(dir, ".git")
		workTree = dir
	}
	if separateGitDir != "" {
		gitDir = separateGitDir
		if err := os.MkdirAll(gitDir, utils.DefaultDirMode); err != nil {
			return Destination{}, newErr(KindUser, fmt.Errorf("creating separate git-dir %s: %w", gitDir, err))
		}
		guard.RegisterGitDir(gitDir)
	} else {
		guard.SetGitDir(gitDir)
	}

	initArgs := []string{"init"}
	if bare {
		initArgs = append(initArgs, "--bare")
	}
	if templateDir != "" {
		initArgs = append(initArgs, "--template="+templateDir)
	}
	if separateGitDir != "" && !bare {
		initArgs = append(initArgs, "--separate-git-dir="+separateGitDir)
		initArgs = append(initArgs, dir)
	} else {
		initArgs = append(initArgs, gitDir)
	}

	log.Log(ctx, slog.Level(-8), "provisioning destination", "dir", dir, "git_dir", gitDir, "bare", bare)
	if _, err := utils.RunCommand(ctx, log, nil, "", gitExec, initArgs...); err != nil {
		return Destination{}, newErr(KindUser, fmt.Errorf("git init: %w", err))
	}

	if separateGitDir != "" && !bare {
		if err := writeWorktreeGitfile(dir, gitDir); err != nil {
			return Destination{}, newErr(KindUser, err)
		}
	}

	for _, kv := range configList {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return Destination{}, newErr(KindUser, fmt.Errorf("invalid --config value %q, expected key=value", kv))
		}
		if _, err := utils.RunCommand(ctx, log, nil, "", gitExec, "--git-dir", gitDir, "config", key, value); err != nil {
			return Destination{}, newErr(KindUser, fmt.Errorf("git config %s: %w", key, err))
		}
	}

	return Destination{GitDir: gitDir, WorkTree: workTree, Bare: bare}, nil
}

// writeWorktreeGitfile writes worktree's ".git" file pointing at gitDir.
// provisionDestination calls it after `git init --separate-git-dir`,
// replacing the gitfile init wrote with one naming gitDir as given.
func writeWorktreeGitfile(worktree, gitDir string) error {
	return os.WriteFile(filepath.Join(worktree, ".git"), []byte("gitdir: "+gitDir+"\n"), 0o644)
}
