package clone

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevinwern/gitclone/internal/utils"
)

// donorSanity records what appendAlternates learned about a --reference
// donor while validating it.
type donorSanity struct {
	gitDir string
}

// resolveDonor validates a --reference path: it must
// resolve to a real git-dir (honoring gitfile indirection so a donor
// work-tree is accepted), must not itself be shallow (a shallow donor's
// objects aren't guaranteed complete), and must not be a linked
// worktree (its objects live in the main work-tree's git-dir, which the
// alternates file should point at directly instead).
func resolveDonor(donorPath string) (donorSanity, error) {
	gitDir := donorPath
	if !isGitDir(gitDir) {
		if target, ok, err := utils.ReadGitfile(filepath.Join(donorPath, ".git")); err != nil {
			return donorSanity{}, newErr(KindSource, err)
		} else if ok {
			gitDir = target
		} else if isGitDir(filepath.Join(donorPath, ".git")) {
			gitDir = filepath.Join(donorPath, ".git")
		} else {
			return donorSanity{}, newErr(KindSource, fmt.Errorf("reference repository %q is not a git repository", donorPath))
		}
	}

	abs, err := filepath.Abs(gitDir)
	if err != nil {
		return donorSanity{}, newErr(KindSource, err)
	}
	gitDir = abs

	if _, err := os.Stat(filepath.Join(gitDir, "commondir")); err == nil {
		return donorSanity{}, newErr(KindSource, fmt.Errorf("reference repository %q is a linked worktree, point --reference at its main work-tree's git-dir instead", donorPath))
	}
	if _, err := os.Stat(filepath.Join(gitDir, "shallow")); err == nil {
		return donorSanity{}, newErr(KindSource, fmt.Errorf("reference repository %q is a shallow repository", donorPath))
	}
	if _, err := os.Stat(filepath.Join(gitDir, "info", "grafts")); err == nil {
		return donorSanity{}, newErr(KindSource, fmt.Errorf("reference repository %q uses grafts, which may hide commits from the clone", donorPath))
	}

	return donorSanity{gitDir: gitDir}, nil
}

// appendAlternates validates every entry in referenceList and appends
// its objects directory to gitDir's info/alternates file, one per line,
// before the transport ever makes a connection. Donors already present
// in gitDir's alternates are skipped, so calling this twice with the
// same --reference (as a resumed clone does) doesn't duplicate lines.
func appendAlternates(gitDir string, referenceList []string) error {
	if len(referenceList) == 0 {
		return nil
	}

	existing, err := readAlternates(gitDir)
	if err != nil {
		return newErr(KindSource, err)
	}
	have := make(map[string]bool, len(existing))
	for _, e := range existing {
		have[e] = true
	}

	infoDir := filepath.Join(gitDir, "info")
	if err := os.MkdirAll(infoDir, utils.DefaultDirMode); err != nil {
		return newErr(KindSource, err)
	}
	altPath := filepath.Join(infoDir, "alternates")

	f, err := os.OpenFile(altPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return newErr(KindSource, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, ref := range referenceList {
		donor, err := resolveDonor(ref)
		if err != nil {
			return err
		}
		objectsDir := filepath.Join(donor.gitDir, "objects")
		if have[objectsDir] {
			continue
		}
		have[objectsDir] = true
		if _, err := fmt.Fprintln(w, objectsDir); err != nil {
			return newErr(KindSource, err)
		}
	}
	return w.Flush()
}

// dissociate rewrites gitDir's object database to no longer depend on
// its alternates, by repacking everything (including objects borrowed
// from the alternates) into gitDir itself and then removing the
// alternates file, matching `git repack -a -d` followed by deleting
// info/alternates.
func dissociate(ctx context.Context, gitExec, gitDir string, log *slog.Logger) error {
	if _, err := utils.RunCommand(ctx, log, nil, "", gitExec, "--git-dir", gitDir, "repack", "-a", "-d"); err != nil {
		return newErr(KindSource, fmt.Errorf("repack for --dissociate: %w", err))
	}
	altPath := filepath.Join(gitDir, "info", "alternates")
	if err := os.Remove(altPath); err != nil && !os.IsNotExist(err) {
		return newErr(KindSource, fmt.Errorf("removing alternates after --dissociate: %w", err))
	}
	return nil
}

// readAlternates returns the object directories currently listed in
// gitDir's info/alternates file, one per line, trimmed and skipping
// blank lines. appendAlternates uses it to skip donors already listed;
// rewriteRelativeAlternates uses it to read the source's entries before
// re-anchoring relative ones to absolute paths.
func readAlternates(gitDir string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(gitDir, "info", "alternates"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}
