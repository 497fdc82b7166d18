package clone

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/kevinwern/gitclone/giturl"
	"github.com/kevinwern/gitclone/internal/utils"
)

// gitDirSuffixes and bundleSuffixes are tried in order; the first match
// wins.
var gitDirSuffixes = []string{"/.git", "", ".git/.git", ".git"}
var bundleSuffixes = []string{".bundle", ""}

// ResolvedSource is the result of resolving the clone command's repo
// argument: either a local path (to a git-dir or a bundle file) or an
// argument that must be handed to the transport as a remote URL.
type ResolvedSource struct {
	// Path is set when repo resolved to something on the local
	// filesystem (a git-dir or a bundle file).
	Path string
	// IsBundle is true when Path names a bundle file rather than a
	// git-dir.
	IsBundle bool
	// IsRemote is true when repo didn't resolve locally and should
	// be handed to the transport as-is.
	IsRemote bool
}

// resolveSource classifies the clone command's repo argument. A local
// candidate is tried first as a git-dir (honoring
// gitfile indirection), then as a bundle file; if neither matches and
// the argument contains no ':' it is a nonexistent local path (an
// error), otherwise it is treated as a URL.
func resolveSource(repo string) (ResolvedSource, error) {
	for _, suffix := range gitDirSuffixes {
		candidate := repo + suffix
		fi, err := os.Stat(candidate)
		if err != nil {
			continue
		}

		if fi.IsDir() {
			if isGitDir(candidate) {
				abs, err := filepath.Abs(candidate)
				if err != nil {
					return ResolvedSource{}, newErr(KindSource, err)
				}
				return ResolvedSource{Path: abs}, nil
			}
			continue
		}

		if target, ok, err := utils.ReadGitfile(candidate); err != nil {
			return ResolvedSource{}, newErr(KindSource, err)
		} else if ok {
			abs, err := filepath.Abs(target)
			if err != nil {
				return ResolvedSource{}, newErr(KindSource, err)
			}
			return ResolvedSource{Path: abs}, nil
		}
	}

	for _, suffix := range bundleSuffixes {
		candidate := repo + suffix
		fi, err := os.Stat(candidate)
		if err != nil {
			continue
		}
		if fi.Mode().IsRegular() {
			abs, err := filepath.Abs(candidate)
			if err != nil {
				return ResolvedSource{}, newErr(KindSource, err)
			}
			return ResolvedSource{Path: abs, IsBundle: true}, nil
		}
	}

	if !strings.Contains(repo, ":") && !giturl.LooksLikeRemote(repo) {
		return ResolvedSource{}, newErr(KindSource, fmt.Errorf("repository '%s' does not exist", repo))
	}

	return ResolvedSource{IsRemote: true}, nil
}

// isGitDir applies a lightweight sanity check: a directory counts as a
// git-dir root if it has either a HEAD file or an objects subdirectory.
// The real fsck-level validation is the Destination Provisioner's
// sanity check on the repo it creates, not on arbitrary sources.
func isGitDir(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, "HEAD")); err == nil {
		return true
	}
	return utils.DirExists(filepath.Join(dir, "objects"))
}

var controlCharOrSpaceRun = regexp.MustCompile(`[\x00-\x1f\s]+`)

// guessDestination derives a destination directory name from repo.
func guessDestination(repo string, isBundle, bare bool) (string, error) {
	dir := stripScheme(repo)
	dir = stripUserinfo(dir)

	dir = strings.TrimRight(dir, " \t\r\n/")
	if strings.HasSuffix(dir, "/.git") {
		dir = strings.TrimSuffix(dir, "/.git")
		dir = strings.TrimRight(dir, "/")
	}

	if !strings.Contains(dir, "/") && strings.Contains(dir, ":") {
		dir = stripTrailingPort(dir)
	}

	dir = tail(dir)

	if isBundle {
		dir = strings.TrimSuffix(dir, ".bundle")
	} else {
		dir = strings.TrimSuffix(dir, ".git")
	}

	dir = controlCharOrSpaceRun.ReplaceAllString(dir, " ")
	dir = strings.TrimSpace(dir)

	if dir == "" || dir == "/" {
		return "", newErr(KindUser, fmt.Errorf("no directory name could be guessed"))
	}

	if bare {
		dir += ".git"
	}

	return dir, nil
}

func stripScheme(s string) string {
	if idx := strings.Index(s, "://"); idx >= 0 {
		return s[idx+3:]
	}
	return s
}

// stripUserinfo advances past every '@' seen before the first '/' (e.g.
// for "a@b@host/path" it strips through the last '@' before the slash).
func stripUserinfo(s string) string {
	slash := strings.Index(s, "/")
	search := s
	if slash >= 0 {
		search = s[:slash]
	}

	last := -1
	for i, r := range search {
		if r == '@' {
			last = i
		}
	}
	if last < 0 {
		return s
	}
	return s[last+1:]
}

var trailingDigits = regexp.MustCompile(`:(\d+)$`)

func stripTrailingPort(s string) string {
	if m := trailingDigits.FindStringSubmatchIndex(s); m != nil {
		if _, err := strconv.Atoi(s[m[2]:m[3]]); err == nil {
			return s[:m[0]]
		}
	}
	return s
}

func tail(s string) string {
	idx := strings.LastIndexAny(s, "/:")
	if idx < 0 {
		return s
	}
	return s[idx+1:]
}
