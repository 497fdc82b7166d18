package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	"github.com/kevinwern/gitclone/auth"
	"github.com/kevinwern/gitclone/clone"
)

var (
	loggerLevel = new(slog.LevelVar)
	logger      *slog.Logger

	levelStrings = map[string]slog.Level{
		"trace": slog.Level(-8),
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}

	gitExecutablePath = exec.Command("git").String()
)

func init() {
	loggerLevel.Set(slog.LevelInfo)
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: loggerLevel,
	}))
}

// authFile is the on-disk shape of -options-file's auth section; it
// mirrors auth.Config field for field, with the same yaml keys.
type authFile struct {
	Username                string `yaml:"username"`
	Password                string `yaml:"password"`
	SSHKeyPath              string `yaml:"ssh_key_path"`
	SSHKnownHostsPath       string `yaml:"ssh_known_hosts_path"`
	GithubAppID             string `yaml:"github_app_id"`
	GithubAppInstallationID string `yaml:"github_app_installation_id"`
	GithubAppPrivateKeyPath string `yaml:"github_app_private_key_path"`
}

type optionsFile struct {
	Auth authFile `yaml:"auth"`
}

func loadOptionsFile(path string) (auth.Config, error) {
	if path == "" {
		return auth.Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return auth.Config{}, fmt.Errorf("reading options file: %w", err)
	}
	var of optionsFile
	if err := yaml.Unmarshal(data, &of); err != nil {
		return auth.Config{}, fmt.Errorf("parsing options file: %w", err)
	}
	return auth.Config{
		Username:                of.Auth.Username,
		Password:                of.Auth.Password,
		SSHKeyPath:              of.Auth.SSHKeyPath,
		SSHKnownHostsPath:       of.Auth.SSHKnownHostsPath,
		GithubAppID:             of.Auth.GithubAppID,
		GithubAppInstallationID: of.Auth.GithubAppInstallationID,
		GithubAppPrivateKeyPath: of.Auth.GithubAppPrivateKeyPath,
	}, nil
}

func envString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func usage() {
	fmt.Fprintf(os.Stderr, "NAME:\n")
	fmt.Fprintf(os.Stderr, "\tgit-clone - clones a repository into a new directory, resuming interrupted transfers.\n")
	fmt.Fprintf(os.Stderr, "\nUSAGE:\n")
	fmt.Fprintf(os.Stderr, "\tgit-clone [options] [--] <repo> [<dir>]\n")
	fmt.Fprintf(os.Stderr, "\tgit-clone -resume <dir>\n")
	fmt.Fprintf(os.Stderr, "\nOPTIONS:\n")
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	flagLogLevel := flag.String("log-level", envString("LOG_LEVEL", "info"), "log level (trace, debug, info, warn, error)")
	flagOptionsFile := flag.String("options-file", envString("GIT_CLONE_OPTIONS_FILE", ""), "path to a yaml file supplying authentication material")
	flagMetricsAddr := flag.String("metrics-addr", envString("GIT_CLONE_METRICS_ADDR", ""), "if set, serve Prometheus metrics on this address while the clone runs")
	flagGitExec := flag.String("git-exec", envString("GIT_EXEC", gitExecutablePath), "path to the git executable")
	flagVersion := flag.Bool("version", false, "print version and exit")

	flagBare := flag.Bool("bare", false, "make a bare git repository")
	flagMirror := flag.Bool("mirror", false, "set up a mirror of the source repository")
	flagLocal := flag.String("local", "auto", "local clone strategy: auto, force, forbid")
	flagNoHardlinks := flag.Bool("no-hardlinks", false, "force a local clone to copy rather than hardlink")
	flagShared := flag.Bool("shared", false, "share objects with a local source via alternates")
	flagRecursive := flag.Bool("recursive", false, "initialize submodules after checkout")
	flagTemplate := flag.String("template", "", "directory to use as a template for the new git-dir")
	flagOrigin := flag.String("origin", "", "name to use instead of 'origin' for the upstream remote")
	flagBranch := flag.String("branch", "", "branch to check out (or tag, for --single-branch)")
	flagDepth := flag.Int("depth", 0, "create a shallow clone with a history truncated to this many commits")
	flagSingleBranch := flag.Bool("single-branch", false, "clone only the history leading to the tip of a single branch")
	flagNoSingleBranch := flag.Bool("no-single-branch", false, "clone the history of every branch, even with --depth set")
	flagReference := flagList("reference", "a repository to use as an alternate object store (may be repeated)")
	flagDissociate := flag.Bool("dissociate", false, "borrow objects from reference repositories only to complete the clone, then repack")
	flagSeparateGitDir := flag.String("separate-git-dir", "", "place the cloned git-dir at this path instead of <dir>/.git")
	flagUploadPack := flag.String("upload-pack", "", "path to the git-upload-pack program on the remote side")
	flagConfig := flagList("config", "set a config value in the new repository (key=value, may be repeated)")
	flagIPFamily := flag.String("ip-family", "any", "restrict the transport to an address family: any, v4, v6")
	flagResume := flag.String("resume", "", "resume a clone interrupted mid-primer at this destination")
	flagVerbosity := flag.Int("verbosity", 0, "increase git subprocess verbosity")
	flagProgress := flag.String("progress", "auto", "transport progress reporting: auto, force, suppress")
	flagNoCheckout := flag.Bool("no-checkout", false, "don't checkout a work-tree after cloning")

	flag.Usage = usage
	flag.Parse()

	info, _ := debug.ReadBuildInfo()
	if *flagVersion {
		fmt.Printf("version=%s go=%s\n", info.Main.Version, info.GoVersion)
		return
	}

	if v, ok := levelStrings[strings.ToLower(*flagLogLevel)]; ok {
		loggerLevel.Set(v)
	}
	logger.Info("version", "app", info.Main.Version, "go", info.GoVersion)

	clone.EnableMetrics("", prometheus.DefaultRegisterer)

	authCfg, err := loadOptionsFile(*flagOptionsFile)
	if err != nil {
		logger.Error("unable to load options file", "err", err)
		os.Exit(1)
	}

	if *flagMetricsAddr != "" {
		go serveMetrics(*flagMetricsAddr)
	}

	if *flagResume != "" {
		if flag.NArg() != 0 {
			fmt.Fprintln(os.Stderr, "git-clone: --resume takes no positional arguments beyond the destination")
			usage()
		}
		opts := clone.Options{
			Resume:    true,
			Verbosity: *flagVerbosity,
			Progress:  clone.Progress(*flagProgress),
			GitExec:   *flagGitExec,
		}
		runClone(ctx, *flagResume, "", opts)
		return
	}

	if flag.NArg() < 1 || flag.NArg() > 2 {
		usage()
	}
	repo := flag.Arg(0)
	dest := ""
	if flag.NArg() == 2 {
		dest = flag.Arg(1)
	}

	var singleBranch *bool
	switch {
	case *flagSingleBranch && *flagNoSingleBranch:
		fmt.Fprintln(os.Stderr, "git-clone: --single-branch and --no-single-branch are mutually exclusive")
		os.Exit(1)
	case *flagSingleBranch:
		t := true
		singleBranch = &t
	case *flagNoSingleBranch:
		f := false
		singleBranch = &f
	}

	opts := clone.Options{
		Bare:            *flagBare,
		Mirror:          *flagMirror,
		Local:           clone.LocalMode(*flagLocal),
		NoHardlinks:     *flagNoHardlinks,
		Shared:          *flagShared,
		Recursive:       *flagRecursive,
		TemplateDir:     *flagTemplate,
		OriginName:      *flagOrigin,
		OriginSpecified: *flagOrigin != "",
		Branch:          *flagBranch,
		Depth:           *flagDepth,
		SingleBranch:    singleBranch,
		ReferenceList:   *flagReference,
		Dissociate:      *flagDissociate,
		SeparateGitDir:  *flagSeparateGitDir,
		UploadPackPath:  *flagUploadPack,
		ConfigList:      *flagConfig,
		IPFamily:        clone.IPFamily(*flagIPFamily),
		Verbosity:       *flagVerbosity,
		Progress:        clone.Progress(*flagProgress),
		NoCheckout:      *flagNoCheckout,
		Auth:            authCfg,
		GitExec:         *flagGitExec,
	}

	runClone(ctx, repo, dest, opts)
}

func runClone(ctx context.Context, repo, dest string, opts clone.Options) {
	if err := clone.Run(ctx, logger, repo, dest, opts); err != nil {
		logger.Error("clone failed", "err", err)
		os.Exit(1)
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("starting metrics server", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server terminated", "err", err)
	}
}

// stringList accumulates repeated occurrences of the same flag, matching
// git's own handling of repeatable options like --reference and --config.
type stringList []string

func (s *stringList) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func flagList(name, usage string) *stringList {
	var l stringList
	flag.Var(&l, name, usage)
	return &l
}
