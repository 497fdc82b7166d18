package clone

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevinwern/gitclone/internal/utils"
	"github.com/kevinwern/gitclone/transport"
)

// primerPackName is the base name (without extension) every primer
// download uses; a clone only ever primes once, so a fixed name is fine
// and makes a `.temp` left behind by an interrupted run unambiguous.
const primerPackName = "primer"

// writeResumeDescriptor persists res as the two-line ResumeDescriptor
// file under gitDir.
func writeResumeDescriptor(gitDir string, res transport.AltResource) error {
	path := filepath.Join(gitDir, resumeDescriptorFile)
	body := res.URL + "\n" + res.FileType + "\n"
	return os.WriteFile(path, []byte(body), 0o644)
}

// readResumeDescriptor loads a previously persisted AltResource. A
// missing file is not an error - it simply means there is nothing to
// resume.
func readResumeDescriptor(gitDir string) (transport.AltResource, bool, error) {
	data, err := os.ReadFile(filepath.Join(gitDir, resumeDescriptorFile))
	if err != nil {
		if os.IsNotExist(err) {
			return transport.AltResource{}, false, nil
		}
		return transport.AltResource{}, false, err
	}
	lines := strings.SplitN(string(data), "\n", 3)
	if len(lines) < 2 {
		return transport.AltResource{}, false, fmt.Errorf("malformed resume descriptor in %s", gitDir)
	}
	return transport.AltResource{URL: lines[0], FileType: lines[1]}, true, nil
}

func removeResumeDescriptor(gitDir string) error {
	err := os.Remove(filepath.Join(gitDir, resumeDescriptorFile))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// primeResult is what a successful primer run hands back to the
// controller: the staging refs it created (so they can be cleaned up
// once the controller no longer needs the objects pinned) and the pack
// path, from which cleanPrimerStaging derives the .bndl sidecar to remove.
type primeResult struct {
	packPath    string
	stagingRefs []string
}

// runPrimer downloads, indexes, and pins an alt-resource's objects
// under staging refs so they survive until the controller finishes
// writing the real refs. On any failure it rolls back every artifact it created and
// returns a non-nil error wrapped as KindPrimer; the caller is expected
// to fall back to a normal fetch.
func runPrimer(ctx context.Context, gitExec, gitDir, originName string, tr *transport.Transport, res transport.AltResource, bearerToken string, guard *JunkGuard, log *slog.Logger) (primeResult, error) {
	guard.SetAltResource(res)
	guard.SetMode(JunkLeaveResumable)

	packDir := filepath.Join(gitDir, "objects", "pack")
	if err := os.MkdirAll(packDir, utils.DefaultDirMode); err != nil {
		return primeResult{}, newErr(KindPrimer, err)
	}

	packPath, err := tr.DownloadPrimer(ctx, res, packDir, primerPackName, bearerToken)
	if err != nil {
		partial := filepath.Join(packDir, primerPackName)
		rollbackPrimer(partial+".pack", partial+".idx", partial+".bndl")
		return primeResult{}, newErr(KindPrimer, fmt.Errorf("downloading primer resource: %w", err))
	}

	idxPath, ok := withExt(packPath, ".pack", ".idx")
	if !ok {
		return primeResult{}, newErr(KindPrimer, fmt.Errorf("primer download path %q does not end in .pack", packPath))
	}
	bndlPath, _ := withExt(packPath, ".pack", ".bndl")

	if _, err := utils.RunCommand(ctx, log, nil, "", gitExec, "--git-dir", gitDir, "index-pack",
		"--clone-bundle", "--check-self-contained-and-connected", "-o", idxPath, packPath); err != nil {
		rollbackPrimer(packPath, idxPath, bndlPath)
		return primeResult{}, newErr(KindPrimer, fmt.Errorf("indexing primer pack: %w", err))
	}

	tips, err := readBundleTips(bndlPath)
	if err != nil {
		rollbackPrimer(packPath, idxPath, bndlPath)
		return primeResult{}, newErr(KindPrimer, fmt.Errorf("reading primer bundle header: %w", err))
	}

	refs, err := stageResumeRefs(ctx, gitExec, gitDir, originName, tips, log)
	if err != nil {
		rollbackPrimer(packPath, idxPath, bndlPath)
		return primeResult{}, newErr(KindPrimer, fmt.Errorf("staging primer resume refs: %w", err))
	}

	return primeResult{packPath: packPath, stagingRefs: refs}, nil
}

// rollbackPrimer unlinks every artifact a failed primer may have left
// behind.
func rollbackPrimer(packPath, idxPath, bndlPath string) {
	for _, p := range []string{packPath, packPath + ".temp", idxPath, bndlPath} {
		_ = os.Remove(p)
	}
}

// readBundleTips parses the tip object ids out of a bundle-header
// sidecar. Each non-comment, non-blank line is "<oid> <ref-or-comment>";
// only the oid is needed here, since staging refs are named by hex
// suffix rather than by the bundle's own ref names.
func readBundleTips(bndlPath string) ([]string, error) {
	data, err := os.ReadFile(bndlPath)
	if err != nil {
		return nil, err
	}

	var tips []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		tips = append(tips, fields[0])
	}
	return tips, scanner.Err()
}

// stageResumeRefs creates refs/temp/<origin>/resume/temp-<hex> for each
// tip OID that doesn't already have one, in a single ref transaction,
// and returns the full set of staging ref names now pinning the
// primer's objects.
func stageResumeRefs(ctx context.Context, gitExec, gitDir, originName string, tips []string, log *slog.Logger) ([]string, error) {
	var stdin strings.Builder
	var refs []string
	for _, oid := range tips {
		ref := fmt.Sprintf("refs/temp/%s/resume/temp-%s", originName, oid)
		refs = append(refs, ref)
		if refExists(ctx, gitExec, gitDir, ref) {
			continue
		}
		fmt.Fprintf(&stdin, "create %s %s\n", ref, oid)
	}
	if stdin.Len() > 0 {
		if err := runUpdateRefStdin(ctx, gitExec, gitDir, stdin.String(), log); err != nil {
			return nil, err
		}
	}
	return refs, nil
}

// cleanPrimerStaging deletes every staging ref and the bundle-header
// sidecar once the controller has incorporated the primer's objects
// into the final ref set.
func cleanPrimerStaging(ctx context.Context, gitExec, gitDir string, res primeResult, log *slog.Logger) error {
	if len(res.stagingRefs) > 0 {
		var stdin strings.Builder
		for _, ref := range res.stagingRefs {
			fmt.Fprintf(&stdin, "delete %s\n", ref)
		}
		if err := runUpdateRefStdin(ctx, gitExec, gitDir, stdin.String(), log); err != nil {
			return newErr(KindPrimer, fmt.Errorf("removing primer staging refs: %w", err))
		}
	}
	if res.packPath != "" {
		if bndlPath, ok := withExt(res.packPath, ".pack", ".bndl"); ok {
			_ = os.Remove(bndlPath)
		}
	}
	return nil
}

// withExt replaces path's oldExt suffix with newExt, returning
// ok=false rather than a silently-wrong path when path doesn't end in
// oldExt.
func withExt(path, oldExt, newExt string) (string, bool) {
	if !strings.HasSuffix(path, oldExt) {
		return "", false
	}
	return strings.TrimSuffix(path, oldExt) + newExt, true
}
