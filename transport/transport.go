// Package transport implements the clone command's external transport
// collaborator: advertisement of remote refs, object fetch, and primer
// resource download, all in terms of a `git` subprocess the way the rest
// of this module talks to git, plus a small HTTP client for the primer.
package transport

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/kevinwern/gitclone/internal/utils"
)

// Ref is the remote-side view of a ref: its name as advertised, the
// object id it currently points at (empty for an as-yet-unresolved
// pseudo-ref), and - for HEAD - the symbolic target reported by
// `ls-remote --symref`.
type Ref struct {
	Name   string
	OldOID string
	SymRef string
}

// AltResource describes an out-of-band pre-packaged object database
// resource the remote advertises for bulk transfer ahead of a normal
// fetch. FileType is currently always "pack"; the type is kept
// separate from the download logic so new kinds can be added later.
type AltResource struct {
	URL      string
	FileType string
}

// IPFamily constrains which address family the transport dials.
type IPFamily string

const (
	IPFamilyAny IPFamily = "any"
	IPFamilyV4  IPFamily = "v4"
	IPFamilyV6  IPFamily = "v6"
)

var symrefLineRgx = regexp.MustCompile(`^ref:\s+(\S+)\s+(\S+)$`)

// Transport negotiates with a single remote on behalf of the clone
// controller. One Transport is opened per clone and disconnected once
// the controller no longer needs it.
type Transport struct {
	cmd      string
	remote   string
	envs     []string
	log      *slog.Logger
	verbose  bool
	progress bool
	ipFamily IPFamily
	depth    int
	keep     bool

	uploadPackPath string
	primeClonePath string
}

// Option configures a Transport at Open time.
type Option func(*Transport)

func WithVerbosity(verbose, progress bool) Option {
	return func(t *Transport) { t.verbose, t.progress = verbose, progress }
}

func WithIPFamily(f IPFamily) Option {
	return func(t *Transport) { t.ipFamily = f }
}

func WithDepth(depth int) Option {
	return func(t *Transport) { t.depth = depth }
}

func WithKeep(keep bool) Option {
	return func(t *Transport) { t.keep = keep }
}

func WithUploadPack(path string) Option {
	return func(t *Transport) { t.uploadPackPath = path }
}

func WithPrimeClone(path string) Option {
	return func(t *Transport) { t.primeClonePath = path }
}

// Open opens a transport to remote. gitExec is the git binary to invoke
// (defaults to "git" in PATH when empty); envs are additional
// environment variables (typically credential material from the auth
// package) passed to every invocation.
func Open(gitExec, remote string, envs []string, log *slog.Logger, opts ...Option) *Transport {
	if gitExec == "" {
		gitExec = exec.Command("git").String()
	}
	if log == nil {
		log = slog.Default()
	}
	t := &Transport{cmd: gitExec, remote: remote, envs: envs, log: log, ipFamily: IPFamilyAny}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Disconnect releases any resources held by the transport. The git CLI
// transport is stateless between calls, so this is a no-op kept for
// interface symmetry with transports that hold a live connection.
func (t *Transport) Disconnect() {}

func (t *Transport) git(ctx context.Context, cwd string, args ...string) (string, error) {
	args = t.withFamilyArgs(args)
	return utils.RunCommand(ctx, t.log, t.envs, cwd, t.cmd, args...)
}

func (t *Transport) withFamilyArgs(args []string) []string {
	switch t.ipFamily {
	case IPFamilyV4:
		return append([]string{"--ipv4"}, args...)
	case IPFamilyV6:
		return append([]string{"--ipv6"}, args...)
	default:
		return args
	}
}

// GetRefsList runs `git ls-remote --symref` against the remote and
// returns every advertised ref, with the remote's HEAD (its oid and, when
// reported, its SymRef target) merged into a single entry placed first so
// that later HEAD-guessing can use it. Returns a
// nil slice (not an error) for an empty remote.
func (t *Transport) GetRefsList(ctx context.Context) ([]Ref, error) {
	out, err := t.git(ctx, "", "ls-remote", "--symref", t.remote)
	if err != nil {
		return nil, fmt.Errorf("unable to list remote refs: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return nil, nil
	}

	var refs []Ref
	var headSymRef, headOID string

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		if m := symrefLineRgx.FindStringSubmatch(line); m != nil && m[2] == "HEAD" {
			headSymRef = m[1]
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}
		if parts[1] == "HEAD" {
			headOID = parts[0]
			continue
		}
		refs = append(refs, Ref{Name: parts[1], OldOID: parts[0]})
	}

	if headSymRef != "" || headOID != "" {
		refs = append([]Ref{{Name: "HEAD", OldOID: headOID, SymRef: headSymRef}}, refs...)
	}

	return refs, nil
}

// FetchObjects pulls every object reachable from the given oids into the
// repository at gitDir, without creating or updating any local ref -
// ref placement is the Ref Mapper's job. A zero-length oids fetches
// nothing and succeeds trivially.
func (t *Transport) FetchObjects(ctx context.Context, gitDir string, oids []string) error {
	if len(oids) == 0 {
		return nil
	}

	args := []string{"--git-dir", gitDir, "fetch", "--no-tags", "--no-write-fetch-head"}
	if t.depth > 0 {
		args = append(args, fmt.Sprintf("--depth=%d", t.depth))
	}
	if t.keep {
		args = append(args, "--keep")
	}
	if t.verbose {
		args = append(args, "--verbose")
	} else if t.progress {
		args = append(args, "--progress")
	} else {
		args = append(args, "--quiet")
	}
	args = append(args, t.remote)
	args = append(args, oids...)

	if _, err := t.git(ctx, "", args...); err != nil {
		return fmt.Errorf("remote did not send all necessary objects: %w", err)
	}
	return nil
}

// PrimeClone reports the out-of-band primer resource configured with
// WithPrimeClone: the configured path is used as the resource's URL, with
// file type "pack". The remote itself is not queried for a resource. With
// no path configured it returns a nil result and a nil error - the normal
// case, not a failure.
func (t *Transport) PrimeClone(ctx context.Context) (*AltResource, error) {
	if t.primeClonePath == "" {
		return nil, nil
	}
	return &AltResource{URL: t.primeClonePath, FileType: "pack"}, nil
}

// RemoteURL returns the remote address this transport was opened against.
func (t *Transport) RemoteURL() string { return t.remote }

// dialTimeout bounds the initial connection the HTTP primer downloader
// (see primer.go) makes; the overall download respects ctx instead.
const dialTimeout = 30 * time.Second

// httpClient returns an *http.Client whose dialer honors the
// transport's --ip-family preference. The git subprocess takes
// --ipv4/--ipv6 directly (withFamilyArgs); net/http has no such flag, so
// the primer's plain HTTP download instead gets a net.Dialer restricted
// to the chosen network.
func (t *Transport) httpClient() *http.Client {
	network := "tcp"
	switch t.ipFamily {
	case IPFamilyV4:
		network = "tcp4"
	case IPFamilyV6:
		network = "tcp6"
	}
	dialer := &net.Dialer{Timeout: dialTimeout}
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, addr string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, addr)
			},
		},
	}
}
