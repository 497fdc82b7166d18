package clone

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kevinwern/gitclone/internal/utils"
)

// localCloneObjects populates destGitDir's object database from
// sourceGitDir without a transport round-trip.
// shared links every loose and packed object via info/alternates
// instead of copying; otherwise every object under sourceGitDir's
// objects/ tree is hardlinked (or bit-copied when hardlinking isn't
// allowed or fails cross-device).
func localCloneObjects(ctx context.Context, gitExec, sourceGitDir, destGitDir string, shared, noHardlinks bool, log *slog.Logger) error {
	if shared {
		infoDir := filepath.Join(destGitDir, "info")
		if err := os.MkdirAll(infoDir, utils.DefaultDirMode); err != nil {
			return newErr(KindSource, err)
		}
		f, err := os.OpenFile(filepath.Join(infoDir, "alternates"), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return newErr(KindSource, err)
		}
		defer f.Close()
		if _, err := fmt.Fprintln(f, filepath.Join(sourceGitDir, "objects")); err != nil {
			return newErr(KindSource, err)
		}
		return nil
	}

	return copyObjectsTree(sourceGitDir, destGitDir, !noHardlinks)
}

// copyObjectsTree walks source's objects/ directory and hardlinks (or
// copies) every regular file into the same relative path under dest's
// objects/ directory, skipping anything dest already has and skipping
// objects/info/alternates - source's alternates chain is re-anchored
// into dest separately by rewriteRelativeAlternates, not copied
// verbatim.
func copyObjectsTree(sourceGitDir, destGitDir string, allowHardlink bool) error {
	srcObjects := filepath.Join(sourceGitDir, "objects")
	dstObjects := filepath.Join(destGitDir, "objects")

	return filepath.Walk(srcObjects, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return newErr(KindSource, err)
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcObjects, path)
		if err != nil {
			return newErr(KindSource, err)
		}
		if rel == filepath.Join("info", "alternates") {
			return nil
		}
		dst := filepath.Join(dstObjects, rel)
		if _, err := os.Stat(dst); err == nil {
			return nil
		}
		if _, err := utils.HardlinkOrCopy(path, dst, allowHardlink); err != nil {
			return newErr(KindSource, fmt.Errorf("copying object %s: %w", rel, err))
		}
		return nil
	})
}

// rewriteRelativeAlternates carries sourceGitDir's own alternates chain
// forward into destGitDir: a non-shared local clone copies sourceGitDir's
// direct objects but not the objects sourceGitDir itself only reaches
// through its alternates, so those donors need an entry in destGitDir
// too. A relative line in sourceGitDir/info/alternates is interpreted by
// git relative to sourceGitDir/objects, so it's re-anchored to an
// absolute path rooted there before being written into destGitDir;
// absolute lines are carried over unchanged.
func rewriteRelativeAlternates(sourceGitDir, destGitDir string) error {
	entries, err := readAlternates(sourceGitDir)
	if err != nil {
		return newErr(KindSource, err)
	}
	if len(entries) == 0 {
		return nil
	}

	srcObjects := filepath.Join(sourceGitDir, "objects")
	rewritten := make([]string, 0, len(entries))
	for _, e := range entries {
		if filepath.IsAbs(e) {
			rewritten = append(rewritten, e)
			continue
		}
		rewritten = append(rewritten, filepath.Join(srcObjects, e))
	}

	infoDir := filepath.Join(destGitDir, "info")
	if err := os.MkdirAll(infoDir, utils.DefaultDirMode); err != nil {
		return newErr(KindSource, err)
	}
	f, err := os.OpenFile(filepath.Join(infoDir, "alternates"), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return newErr(KindSource, err)
	}
	defer f.Close()
	for _, r := range rewritten {
		if _, err := fmt.Fprintln(f, r); err != nil {
			return newErr(KindSource, err)
		}
	}
	return nil
}

// copyLocalRefs copies sourceGitDir's packed-refs and loose refs/ tree
// verbatim into destGitDir. The controller calls it on every local
// clone, mirror or not, before the Ref Mapper's refs are written.
func copyLocalRefs(sourceGitDir, destGitDir string) error {
	if _, err := os.Stat(filepath.Join(sourceGitDir, "packed-refs")); err == nil {
		if err := utils.CopyFile(filepath.Join(sourceGitDir, "packed-refs"), filepath.Join(destGitDir, "packed-refs")); err != nil {
			return newErr(KindSource, err)
		}
	}

	srcRefs := filepath.Join(sourceGitDir, "refs")
	return filepath.Walk(srcRefs, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return newErr(KindSource, err)
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcRefs, path)
		if err != nil {
			return newErr(KindSource, err)
		}
		return utils.CopyFile(path, filepath.Join(destGitDir, "refs", rel))
	})
}
