package clone

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kevinwern/gitclone/internal/lock"
	"github.com/kevinwern/gitclone/transport"
)

// resumeDescriptorFile is the name, inside a git-dir, of the persisted
// AltResource a JunkLeaveResumable cleanup writes out.
const resumeDescriptorFile = "clone-resume"

// junkLeaveResumableMsg is printed when Cleanup leaves a git-dir behind
// for a later --resume.
const junkLeaveResumableMsg = "clone interrupted; re-run with --resume <dest> to continue from where it left off"

// junkLeaveRepoMsg is printed when Cleanup leaves a fully-fetched repo
// behind after a post-fetch step (e.g. checkout) failed.
const junkLeaveRepoMsg = "clone succeeded, but a later step failed; the repository has been left in place"

// JunkMode controls what the JunkGuard does with the paths it tracks
// when the clone ends.
type JunkMode int

const (
	// JunkRemove deletes every tracked path. The default outcome for
	// any failure that isn't a resumable primer interruption.
	JunkRemove JunkMode = iota
	// JunkLeaveResumable keeps the git-dir and resume descriptor but
	// removes everything else, so a later --resume can pick up where
	// a primer download left off.
	JunkLeaveResumable
	// JunkLeaveRepo keeps the repo directory untouched - set when a
	// clone's fetch succeeded but a later step (e.g. checkout) failed.
	JunkLeaveRepo
	// JunkLeaveAll leaves every tracked path untouched - set on a
	// successful clone.
	JunkLeaveAll
)

// JunkGuard tracks every path a clone has created so that a failure or
// a termination signal mid-clone can be cleaned up instead of leaving a
// half-built repository behind. A guard is created once per clone
// invocation and registered with the process's signal handling for the
// lifetime of the call.
type JunkGuard struct {
	mu lock.RWMutex

	log *slog.Logger

	repoPath       string
	gitDir         string
	separateGitDir string
	altResource    *transport.AltResource

	mode JunkMode

	stop func()
}

// NewJunkGuard installs signal handlers for SIGINT, SIGTERM, SIGHUP,
// SIGQUIT and SIGPIPE that invoke Cleanup with the guard's current mode
// before re-raising, so an interrupted clone leaves disk state
// consistent with whatever disposition the controller last set.
func NewJunkGuard(log *slog.Logger) *JunkGuard {
	g := &JunkGuard{log: log, mode: JunkRemove}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGPIPE)
	g.stop = func() { signal.Stop(sigs); close(sigs) }

	go func() {
		sig, ok := <-sigs
		if !ok {
			return
		}
		g.Cleanup()
		signal.Stop(sigs)
		if p, err := os.FindProcess(os.Getpid()); err == nil {
			_ = p.Signal(sig)
		}
	}()

	return g
}

// Close stops listening for termination signals without running
// Cleanup; callers invoke it via defer right after a successful or
// already-cleaned-up return from the controller.
func (g *JunkGuard) Close() {
	if g.stop != nil {
		g.stop()
	}
}

// RegisterRepoPath records the top-level destination directory (the
// work-tree directory for a non-bare clone, or the bare git-dir).
func (g *JunkGuard) RegisterRepoPath(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.repoPath = path
}

// RegisterGitDir records the git-dir when it differs from repoPath
// (the --separate-git-dir case).
func (g *JunkGuard) RegisterGitDir(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gitDir = path
	g.separateGitDir = path
}

// SetGitDir records the git-dir path without marking it as a separate,
// independently-removable location - used by the ordinary (non
// --separate-git-dir) layouts so a JunkLeaveResumable cleanup still
// knows where to write the resume descriptor.
func (g *JunkGuard) SetGitDir(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gitDir = path
}

// SetAltResource records the primer resource a JunkLeaveResumable
// cleanup should persist as a ResumeDescriptor.
func (g *JunkGuard) SetAltResource(res transport.AltResource) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.altResource = &res
}

// SetMode changes the disposition Cleanup will apply. The controller
// calls this as soon as it knows the outcome of the clone, before doing
// anything that a concurrent signal's Cleanup call could race with.
func (g *JunkGuard) SetMode(mode JunkMode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mode = mode
}

// Cleanup applies the guard's current mode. It is safe to call more
// than once (a second call is a no-op beyond redundant removals) and is
// safe to call concurrently with SetMode.
func (g *JunkGuard) Cleanup() {
	g.mu.RLock()
	mode := g.mode
	repoPath := g.repoPath
	gitDir := g.gitDir
	separateGitDir := g.separateGitDir
	altResource := g.altResource
	g.mu.RUnlock()

	if mode == JunkLeaveAll {
		return
	}

	if mode == JunkLeaveRepo {
		if g.log != nil {
			g.log.Warn(junkLeaveRepoMsg, "repo_path", repoPath)
		}
		return
	}

	if mode == JunkLeaveResumable {
		if gitDir != "" && altResource != nil {
			if err := writeResumeDescriptor(gitDir, *altResource); err != nil && g.log != nil {
				g.log.Error("writing resume descriptor failed", "git_dir", gitDir, "error", err)
			}
		}
		if repoPath != "" && repoPath != gitDir {
			g.removeWorkTreeOnly(repoPath)
		}
		if g.log != nil {
			g.log.Warn(junkLeaveResumableMsg, "git_dir", gitDir)
		}
		return
	}

	if repoPath != "" {
		g.remove(repoPath)
	}
	if separateGitDir != "" {
		g.remove(separateGitDir)
	}
}

func (g *JunkGuard) remove(path string) {
	if err := os.RemoveAll(path); err != nil && g.log != nil {
		g.log.Error("junk cleanup failed", "path", path, "error", err)
	}
}

// removeWorkTreeOnly removes everything under repoPath except the
// git-dir itself, so a resumed clone still has its refs/objects/config
// to reattach a work-tree to.
func (g *JunkGuard) removeWorkTreeOnly(repoPath string) {
	entries, err := os.ReadDir(repoPath)
	if err != nil {
		if g.log != nil {
			g.log.Error("junk cleanup: reading repo path", "path", repoPath, "error", err)
		}
		return
	}
	for _, e := range entries {
		if e.Name() == ".git" {
			continue
		}
		g.remove(repoPath + string(os.PathSeparator) + e.Name())
	}
}
