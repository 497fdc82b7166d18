package clone

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kevinwern/gitclone/auth"
	"github.com/kevinwern/gitclone/internal/utils"
	"github.com/kevinwern/gitclone/transport"
)

// Run is the top-level Clone Controller entry point: it validates and
// derives defaults from opts, then dispatches to the fresh-clone or
// resume path. When opts.Resume is set, repo is taken to be the
// existing destination directory and dest is ignored.
func Run(ctx context.Context, log *slog.Logger, repo, dest string, opts Options) (err error) {
	if log == nil {
		log = slog.Default()
	}
	if err := opts.Validate(); err != nil {
		recordOutcome("user_error")
		return err
	}

	if opts.Resume {
		return runResume(ctx, log, repo, opts)
	}
	return runFresh(ctx, log, repo, dest, opts)
}

// applyDerivedDefaults implements the flag-implication rules:
// --mirror implies --bare; --bare implies --no-checkout and forces the
// origin name back to its default.
func applyDerivedDefaults(o Options) Options {
	if o.Mirror {
		o.Bare = true
	}
	if o.Bare {
		o.NoCheckout = true
		o.OriginName = ""
		o.OriginSpecified = false
	}
	return o
}

func resolvedOriginName(o Options) string {
	if o.OriginName != "" {
		return o.OriginName
	}
	return "origin"
}

// branchTop derives the local namespace mapped refs land under: "refs/"
// for a mirror clone, "refs/remotes/<origin>/" otherwise.
func branchTop(mirror bool, originName string) string {
	if mirror {
		return "refs/"
	}
	return "refs/remotes/" + originName + "/"
}

func toTransportIPFamily(f IPFamily) transport.IPFamily {
	switch f {
	case IPFamilyV4:
		return transport.IPFamilyV4
	case IPFamilyV6:
		return transport.IPFamilyV6
	default:
		return transport.IPFamilyAny
	}
}

func modeForErr(err error) JunkMode {
	if err == nil {
		return JunkLeaveAll
	}
	if KindOf(err) == KindCheckout {
		return JunkLeaveRepo
	}
	return JunkRemove
}

func outcomeForErr(err error) string {
	if err == nil {
		return "success"
	}
	switch KindOf(err) {
	case KindUser:
		return "user_error"
	case KindSource:
		return "source_error"
	case KindTransport:
		return "transport_error"
	case KindPrimer, KindInterruptedPrimer:
		return "primer_error"
	case KindCheckout:
		return "checkout_error"
	default:
		return "error"
	}
}

// runFresh implements the fresh-clone path and its shared tail.
func runFresh(ctx context.Context, log *slog.Logger, repoArg, destArg string, rawOpts Options) (err error) {
	opts := applyDerivedDefaults(rawOpts)
	originName := resolvedOriginName(opts)

	resolved, err := resolveSource(repoArg)
	if err != nil {
		recordOutcome(outcomeForErr(err))
		return err
	}

	destDir := destArg
	if destDir == "" {
		destDir, err = guessDestination(repoArg, resolved.IsBundle, opts.Bare)
		if err != nil {
			recordOutcome(outcomeForErr(err))
			return err
		}
	}
	destDir = strings.TrimRight(destDir, "/")

	guard := NewJunkGuard(log)
	defer func() {
		guard.SetMode(modeForErr(err))
		guard.Cleanup()
		guard.Close()
		recordOutcome(outcomeForErr(err))
	}()

	start := time.Now()
	dest, err := provisionDestination(ctx, opts.GitExec, destDir, opts.Bare, opts.SeparateGitDir, opts.TemplateDir, opts.ConfigList, guard, log)
	observePhase("provision", start)
	if err != nil {
		return err
	}

	if err = appendAlternates(dest.GitDir, opts.ReferenceList); err != nil {
		return err
	}

	remoteURL := repoArg
	if resolved.Path != "" {
		remoteURL = resolved.Path
	}
	if err = setRemoteURL(ctx, opts.GitExec, dest.GitDir, originName, remoteURL, log); err != nil {
		return err
	}

	isLocal := opts.Local != LocalForbid && resolved.Path != "" && !resolved.IsBundle && !sourceIsShallow(resolved.Path)
	if isLocal && opts.Depth > 0 {
		log.Warn("--depth is ignored for a local clone", "source", resolved.Path)
	}

	err = cloneCommonTail(ctx, log, opts, originName, dest, remoteURL, resolved, isLocal, guard, "clone: from "+repoArg)
	return err
}

// runResume reconstructs options from an existing destination and
// resumes an interrupted primer before falling through to the shared
// tail used by a normal fetch.
func runResume(ctx context.Context, log *slog.Logger, destDir string, rawOpts Options) (err error) {
	rc, gitDir, workTree, err := loadResumeState(destDir, log)
	if err != nil {
		recordOutcome(outcomeForErr(err))
		return err
	}

	res, ok, err := readResumeDescriptor(gitDir)
	if err != nil {
		recordOutcome(outcomeForErr(err))
		return err
	}
	if !ok {
		err = newErr(KindUser, fmt.Errorf("%s is not resumable", destDir))
		recordOutcome(outcomeForErr(err))
		return err
	}

	opts := Options{
		Bare:       rc.Bare,
		Mirror:     rc.Mirror,
		NoCheckout: rc.Bare,
		Verbosity:  rawOpts.Verbosity,
		Progress:   rawOpts.Progress,
		GitExec:    rawOpts.GitExec,
		Auth:       rawOpts.Auth,
		Envs:       rawOpts.Envs,
		OriginName: rc.Name,
	}

	guard := NewJunkGuard(log)
	guard.RegisterRepoPath(destDir)
	guard.SetGitDir(gitDir)
	defer func() {
		guard.SetMode(modeForErr(err))
		guard.Cleanup()
		guard.Close()
		recordOutcome(outcomeForErr(err))
	}()

	dest := Destination{GitDir: gitDir, WorkTree: workTree, Bare: rc.Bare}

	resolved := ResolvedSource{}
	err = cloneCommonTailResume(ctx, log, opts, rc.Name, dest, rc.URL, resolved, res, guard)
	return err
}

// cloneCommonTail runs the shared post-provisioning tail for a fresh clone.
func cloneCommonTail(ctx context.Context, log *slog.Logger, opts Options, originName string, dest Destination, remoteURL string, resolved ResolvedSource, isLocal bool, guard *JunkGuard, reflogMsg string) error {
	return runTail(ctx, log, opts, originName, dest, remoteURL, resolved, isLocal, nil, guard, reflogMsg)
}

// cloneCommonTailResume runs the same tail for a resumed clone, seeded
// with the persisted AltResource instead of probing the transport.
func cloneCommonTailResume(ctx context.Context, log *slog.Logger, opts Options, originName string, dest Destination, remoteURL string, resolved ResolvedSource, res transport.AltResource, guard *JunkGuard) error {
	return runTail(ctx, log, opts, originName, dest, remoteURL, resolved, false, &res, guard, "clone: resuming")
}

func runTail(ctx context.Context, log *slog.Logger, opts Options, originName string, dest Destination, remoteURL string, resolved ResolvedSource, isLocal bool, resumeRes *transport.AltResource, guard *JunkGuard, reflogMsg string) error {
	log.Log(ctx, slog.Level(-8), reflogMsg, "git_dir", dest.GitDir)

	cache := &auth.TokenCache{}
	envs, err := auth.Env(ctx, opts.Auth, cache, dest.GitDir, remoteURL)
	if err != nil {
		return newErr(KindTransport, err)
	}
	envs = append(envs, opts.Envs...)

	tr := transport.Open(opts.GitExec, remoteURL, envs, log,
		transport.WithVerbosity(opts.Verbosity > 0, opts.Progress != ProgressSuppress),
		transport.WithIPFamily(toTransportIPFamily(opts.IPFamily)),
		transport.WithDepth(opts.Depth),
		transport.WithKeep(true),
		transport.WithUploadPack(opts.UploadPackPath),
		transport.WithPrimeClone(opts.PrimeClonePath),
	)
	defer tr.Disconnect()

	singleBranch := opts.resolvedSingleBranch()
	btop := branchTop(opts.Mirror, originName)

	var primed *primeResult
	altRes := resumeRes
	if altRes == nil && !isLocal && len(opts.ReferenceList) == 0 {
		probed, err := tr.PrimeClone(ctx)
		if err != nil {
			return newErr(KindTransport, err)
		}
		altRes = probed
	}

	if altRes != nil {
		start := time.Now()
		pr, err := runPrimer(ctx, opts.GitExec, dest.GitDir, originName, tr, *altRes, "", guard, log)
		observePhase("primer", start)
		if err != nil {
			if resumeRes != nil {
				return newErr(KindPrimer, fmt.Errorf("resumable resource is no longer available or usable: %w", err))
			}
			log.Warn("primer failed, falling back to full fetch", "error", err)
			guard.SetMode(JunkRemove)
			altRes = nil
		} else {
			primed = &pr
			guard.SetMode(JunkRemove)
		}
	}

	start := time.Now()
	remoteRefs, err := tr.GetRefsList(ctx)
	observePhase("ls-remote", start)
	if err != nil {
		return newErr(KindTransport, err)
	}

	if len(remoteRefs) == 0 {
		log.Warn("remote has no refs", "remote", remoteURL)
		if err := setDefaultBranchConfig(ctx, opts.GitExec, dest.GitDir, "master", log); err != nil {
			return err
		}
		opts.NoCheckout = true
		return finishEmptyClone(guard)
	}

	mapped := mapRefs(remoteRefs, originName, btop, opts.Mirror, singleBranch, opts.Branch)
	if mapped.Warning != "" {
		log.Warn(mapped.Warning)
	}

	if err := persistRefspecConfig(ctx, opts.GitExec, dest.GitDir, originName, opts.Mirror, singleBranch, opts.Branch, log); err != nil {
		return err
	}

	if isLocal {
		start := time.Now()
		err := localCloneObjects(ctx, opts.GitExec, resolved.Path, dest.GitDir, opts.Shared, opts.NoHardlinks, log)
		observePhase("local-clone", start)
		if err != nil {
			return newErr(KindSource, err)
		}
		if err := copyLocalRefs(resolved.Path, dest.GitDir); err != nil {
			return err
		}
		if err := rewriteRelativeAlternates(resolved.Path, dest.GitDir); err != nil {
			return err
		}
	} else if primed == nil {
		oids := make([]string, 0, len(mapped.Refs))
		for _, r := range mapped.Refs {
			if r.PeerRef != "" {
				oids = append(oids, r.OldOID)
			}
		}
		start := time.Now()
		err := tr.FetchObjects(ctx, dest.GitDir, oids)
		observePhase("fetch", start)
		if err != nil {
			return newErr(KindTransport, err)
		}
	}

	if err := writeRemoteRefs(ctx, opts.GitExec, dest.GitDir, mapped.Refs, log); err != nil {
		return err
	}
	if singleBranch {
		if err := writeFollowTags(ctx, opts.GitExec, dest.GitDir, remoteRefs, log); err != nil {
			return err
		}
	}
	if err := writeRemoteHeadSymref(ctx, opts.GitExec, dest.GitDir, btop, mapped, log); err != nil {
		return err
	}

	if err := updateLocalHead(ctx, opts.GitExec, dest.GitDir, mapped, log); err != nil {
		return err
	}

	if primed != nil {
		if err := cleanPrimerStaging(ctx, opts.GitExec, dest.GitDir, *primed, log); err != nil {
			return err
		}
	}

	if opts.Dissociate {
		if err := dissociate(ctx, opts.GitExec, dest.GitDir, log); err != nil {
			return err
		}
	}

	guard.SetMode(JunkLeaveRepo)

	if !opts.NoCheckout && dest.WorkTree != "" {
		start := time.Now()
		err := runCheckout(ctx, opts.GitExec, dest, opts.Recursive, log)
		observePhase("checkout", start)
		if err != nil {
			return newErr(KindCheckout, err)
		}
	}

	if err := removeResumeDescriptor(dest.GitDir); err != nil {
		log.Warn("removing resume descriptor failed", "error", err)
	}

	guard.SetMode(JunkLeaveAll)
	return nil
}

func finishEmptyClone(guard *JunkGuard) error {
	guard.SetMode(JunkLeaveAll)
	return nil
}

func setRemoteURL(ctx context.Context, gitExec, gitDir, originName, remoteURL string, log *slog.Logger) error {
	_, err := utils.RunCommand(ctx, log, nil, "", orGit(gitExec), "--git-dir", gitDir, "config", "remote."+originName+".url", remoteURL)
	if err != nil {
		return newErr(KindUser, err)
	}
	return nil
}

func persistRefspecConfig(ctx context.Context, gitExec, gitDir, originName string, mirror, singleBranch bool, branch string, log *slog.Logger) error {
	fetch := "+refs/heads/*:" + branchTop(mirror, originName) + "*"
	if mirror {
		fetch = "+refs/*:refs/*"
	} else if singleBranch && branch != "" {
		fetch = fmt.Sprintf("+refs/heads/%s:%s%s", branch, branchTop(mirror, originName), branch)
	}

	if _, err := utils.RunCommand(ctx, log, nil, "", orGit(gitExec), "--git-dir", gitDir, "config", "remote."+originName+".fetch", fetch); err != nil {
		return newErr(KindUser, err)
	}
	if mirror {
		if _, err := utils.RunCommand(ctx, log, nil, "", orGit(gitExec), "--git-dir", gitDir, "config", "remote."+originName+".mirror", "true"); err != nil {
			return newErr(KindUser, err)
		}
	}
	return nil
}

func setDefaultBranchConfig(ctx context.Context, gitExec, gitDir, branch string, log *slog.Logger) error {
	_, err := utils.RunCommand(ctx, log, nil, "", orGit(gitExec), "--git-dir", gitDir, "symbolic-ref", "HEAD", "refs/heads/"+branch)
	if err != nil {
		return newErr(KindUser, err)
	}
	return nil
}

func writeRemoteHeadSymref(ctx context.Context, gitExec, gitDir, btop string, mapped MapResult, log *slog.Logger) error {
	if mapped.RemoteHeadSymRef == "" {
		return nil
	}
	var peer string
	for _, m := range mapped.Refs {
		if m.Name == mapped.RemoteHeadSymRef && m.PeerRef != "" {
			peer = m.PeerRef
			break
		}
	}
	if peer == "" {
		return nil
	}
	_, err := utils.RunCommand(ctx, log, nil, "", orGit(gitExec), "--git-dir", gitDir, "symbolic-ref", btop+"HEAD", peer)
	if err != nil {
		return newErr(KindTransport, err)
	}
	return nil
}

func updateLocalHead(ctx context.Context, gitExec, gitDir string, mapped MapResult, log *slog.Logger) error {
	if mapped.OurHeadPointsAt != "" {
		if _, err := utils.RunCommand(ctx, log, nil, "", orGit(gitExec), "--git-dir", gitDir, "symbolic-ref", "HEAD", mapped.OurHeadPointsAt); err != nil {
			return newErr(KindTransport, err)
		}
		return nil
	}
	if mapped.OurHeadOID != "" {
		if _, err := utils.RunCommand(ctx, log, nil, "", orGit(gitExec), "--git-dir", gitDir, "update-ref", "--no-deref", "HEAD", mapped.OurHeadOID); err != nil {
			return newErr(KindTransport, err)
		}
	}
	return nil
}

func runCheckout(ctx context.Context, gitExec string, dest Destination, recursive bool, log *slog.Logger) error {
	if _, err := utils.RunCommand(ctx, log, nil, "", orGit(gitExec), "--git-dir", dest.GitDir, "--work-tree", dest.WorkTree, "reset", "--hard"); err != nil {
		return err
	}
	if recursive {
		if _, err := utils.RunCommand(ctx, log, nil, "", orGit(gitExec), "--git-dir", dest.GitDir, "--work-tree", dest.WorkTree, "submodule", "update", "--init", "--recursive"); err != nil {
			return err
		}
	}
	return nil
}

func orGit(gitExec string) string {
	if gitExec == "" {
		return "git"
	}
	return gitExec
}

// sourceIsShallow reports whether the local source git-dir itself is a
// shallow repository, in which case the Local Cloner must be skipped
// since the source's objects aren't guaranteed complete.
func sourceIsShallow(gitDir string) bool {
	if gitDir == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(gitDir, "shallow"))
	return err == nil
}

