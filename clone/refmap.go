package clone

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/kevinwern/gitclone/transport"
)

// MappedRef is a single remote ref paired with the local ref it should
// be written to. PeerRef is empty for the seeded HEAD pseudo-ref entry,
// which writeRemoteRefs treats as informational only.
type MappedRef struct {
	Name    string
	OldOID  string
	PeerRef string
}

// MapResult is everything the Clone Controller needs out of mapRefs:
// the refs to write locally, the remote's reported HEAD, and the local
// HEAD placement those refs imply.
type MapResult struct {
	Refs []MappedRef

	// RemoteHeadSymRef is the ref HEAD pointed at on the remote
	// ("refs/heads/main"), empty if the remote didn't advertise one.
	RemoteHeadSymRef string
	// RemoteHeadOID is the object id that ref resolves to, when known.
	RemoteHeadOID string

	// OurHeadPointsAt is the local ref our HEAD should be a symref to
	// ("refs/heads/main"); empty means HEAD should be detached at
	// OurHeadOID instead (tag or unresolvable-symref case).
	OurHeadPointsAt string
	OurHeadOID      string

	// Warning is set instead of failing when --branch names something
	// absent from the remote.
	Warning string
}

// mapRefs computes which of remoteRefs to write locally and where.
// originName is accepted for symmetry with the rest of the
// controller's API even though mapping itself only needs branchTop.
func mapRefs(remoteRefs []transport.Ref, originName, branchTop string, mirror, singleBranch bool, branch string) MapResult {
	var res MapResult

	var headRef *transport.Ref
	byName := make(map[string]transport.Ref, len(remoteRefs))
	for i := range remoteRefs {
		if remoteRefs[i].Name == "HEAD" {
			headRef = &remoteRefs[i]
			continue
		}
		byName[remoteRefs[i].Name] = remoteRefs[i]
	}

	if headRef != nil {
		res.Refs = append(res.Refs, MappedRef{Name: "HEAD", OldOID: headRef.OldOID})
		res.RemoteHeadSymRef = headRef.SymRef
		if headRef.SymRef != "" {
			if target, ok := byName[headRef.SymRef]; ok {
				res.RemoteHeadOID = target.OldOID
			}
		}
	}

	if singleBranch {
		selected, found := selectSingleBranch(byName, headRef, branch)
		if !found {
			res.Warning = fmt.Sprintf("remote branch %s not found in upstream, not something we can fetch", branch)
			return res
		}
		res.Refs = append(res.Refs, mapStandardRef(selected, branchTop, mirror)...)
		res.Refs = append(res.Refs, mapTagRef(selected)...)
		res.OurHeadPointsAt, res.OurHeadOID = resolveOurHead(selected)
		return res
	}

	for _, r := range remoteRefs {
		if r.Name == "HEAD" {
			continue
		}
		res.Refs = append(res.Refs, mapStandardRef(r, branchTop, mirror)...)
	}
	if !mirror {
		for _, r := range remoteRefs {
			res.Refs = append(res.Refs, mapTagRef(r)...)
		}
	}

	switch {
	case branch != "":
		if r, ok := byName["refs/heads/"+branch]; ok {
			res.OurHeadPointsAt, res.OurHeadOID = "refs/heads/"+branch, r.OldOID
		} else if r, ok := byName["refs/tags/"+branch]; ok {
			res.OurHeadOID = r.OldOID
		}
	case res.RemoteHeadSymRef != "":
		res.OurHeadPointsAt, res.OurHeadOID = res.RemoteHeadSymRef, res.RemoteHeadOID
	default:
		res.OurHeadOID = res.RemoteHeadOID
	}

	return res
}

func selectSingleBranch(byName map[string]transport.Ref, headRef *transport.Ref, branch string) (transport.Ref, bool) {
	if branch != "" {
		if r, ok := byName["refs/heads/"+branch]; ok {
			return r, true
		}
		if r, ok := byName["refs/tags/"+branch]; ok {
			return r, true
		}
		return transport.Ref{}, false
	}
	if headRef != nil && headRef.SymRef != "" {
		if r, ok := byName[headRef.SymRef]; ok {
			return r, true
		}
	}
	return transport.Ref{}, false
}

func mapStandardRef(r transport.Ref, branchTop string, mirror bool) []MappedRef {
	if mirror {
		return []MappedRef{{Name: r.Name, OldOID: r.OldOID, PeerRef: r.Name}}
	}
	if short, ok := strings.CutPrefix(r.Name, "refs/heads/"); ok {
		return []MappedRef{{Name: r.Name, OldOID: r.OldOID, PeerRef: branchTop + short}}
	}
	return nil
}

func mapTagRef(r transport.Ref) []MappedRef {
	if strings.HasPrefix(r.Name, "refs/tags/") && !strings.HasSuffix(r.Name, "^{}") {
		return []MappedRef{{Name: r.Name, OldOID: r.OldOID, PeerRef: r.Name}}
	}
	return nil
}

func resolveOurHead(selected transport.Ref) (pointsAt, oid string) {
	if strings.HasPrefix(selected.Name, "refs/heads/") {
		return selected.Name, selected.OldOID
	}
	return "", selected.OldOID
}

// writeRemoteRefs commits every mapped ref with a non-empty PeerRef
// that doesn't already exist to gitDir, in one atomic transaction via
// `git update-ref --stdin`.
func writeRemoteRefs(ctx context.Context, gitExec, gitDir string, mapped []MappedRef, log *slog.Logger) error {
	var stdin strings.Builder
	for _, m := range mapped {
		if m.PeerRef == "" {
			continue
		}
		if refExists(ctx, gitExec, gitDir, m.PeerRef) {
			continue
		}
		fmt.Fprintf(&stdin, "create %s %s\n", m.PeerRef, m.OldOID)
	}
	if stdin.Len() == 0 {
		return nil
	}
	if err := runUpdateRefStdin(ctx, gitExec, gitDir, stdin.String(), log); err != nil {
		return newErr(KindTransport, fmt.Errorf("writing remote refs: %w", err))
	}
	return nil
}

// writeFollowTags upserts every refs/tags/<x> (excluding peeled ^{}
// entries) from remoteRefs whose object already exists in gitDir. Only
// meaningful under --single-branch, where the normal all-tags refspec
// was never applied.
func writeFollowTags(ctx context.Context, gitExec, gitDir string, remoteRefs []transport.Ref, log *slog.Logger) error {
	var stdin strings.Builder
	for _, r := range remoteRefs {
		if !strings.HasPrefix(r.Name, "refs/tags/") || strings.HasSuffix(r.Name, "^{}") {
			continue
		}
		if !objectExists(ctx, gitExec, gitDir, r.OldOID) {
			continue
		}
		fmt.Fprintf(&stdin, "update %s %s\n", r.Name, r.OldOID)
	}
	if stdin.Len() == 0 {
		return nil
	}
	if err := runUpdateRefStdin(ctx, gitExec, gitDir, stdin.String(), log); err != nil {
		return newErr(KindTransport, fmt.Errorf("writing followed tags: %w", err))
	}
	return nil
}

func refExists(ctx context.Context, gitExec, gitDir, ref string) bool {
	cmd := exec.CommandContext(ctx, gitExec, "--git-dir", gitDir, "show-ref", "--verify", "--quiet", ref)
	return cmd.Run() == nil
}

func objectExists(ctx context.Context, gitExec, gitDir, oid string) bool {
	cmd := exec.CommandContext(ctx, gitExec, "--git-dir", gitDir, "cat-file", "-e", oid)
	return cmd.Run() == nil
}

// runUpdateRefStdin feeds commands to `git update-ref --stdin`, which
// isn't expressible through utils.RunCommand since that helper doesn't
// wire stdin.
func runUpdateRefStdin(ctx context.Context, gitExec, gitDir, stdin string, log *slog.Logger) error {
	cmd := exec.CommandContext(ctx, gitExec, "--git-dir", gitDir, "update-ref", "--stdin")
	cmd.Stdin = strings.NewReader(stdin)
	cmd.WaitDelay = 5 * time.Second
	var errbuf bytes.Buffer
	cmd.Stderr = &errbuf

	start := time.Now()
	err := cmd.Run()
	log.Log(ctx, slog.Level(-8), "update-ref --stdin", "git_dir", gitDir, "time", time.Since(start))
	if err != nil {
		return fmt.Errorf("update-ref --stdin: %w: %s", err, strings.TrimSpace(errbuf.String()))
	}
	return nil
}
