package clone

import (
	"fmt"

	"github.com/kevinwern/gitclone/auth"
)

// LocalMode controls whether a same-filesystem source is hardlinked or
// copied rather than fetched over the transport.
type LocalMode string

const (
	LocalAuto    LocalMode = "auto"
	LocalForce   LocalMode = "force"
	LocalForbid  LocalMode = "forbid"
)

// IPFamily constrains which address family the transport dials.
type IPFamily string

const (
	IPFamilyAny IPFamily = "any"
	IPFamilyV4  IPFamily = "v4"
	IPFamilyV6  IPFamily = "v6"
)

// Progress controls whether transport progress output is shown.
type Progress string

const (
	ProgressAuto     Progress = "auto"
	ProgressForce    Progress = "force"
	ProgressSuppress Progress = "suppress"
)

// Options is the user-supplied configuration for a single clone
// invocation.
type Options struct {
	Bare   bool
	Mirror bool

	Local       LocalMode
	NoHardlinks bool
	Shared      bool

	Recursive bool

	TemplateDir string

	// OriginName defaults to "origin" when empty; OriginSpecified
	// distinguishes "user explicitly passed -o origin" (rejected
	// together with Bare) from the silent default.
	OriginName      string
	OriginSpecified bool

	Branch string
	Depth  int

	// SingleBranch is a tri-state: nil means "default to on iff
	// Depth is set".
	SingleBranch *bool

	ReferenceList []string
	Dissociate    bool

	SeparateGitDir string

	UploadPackPath string
	PrimeClonePath string

	ConfigList []string

	IPFamily IPFamily

	// Resume, when true, makes this a --resume invocation: every
	// other clone option must be left at its zero value (see
	// Validate); Verbosity, Progress, GitExec and Envs may be set.
	Resume bool

	Verbosity int
	Progress  Progress

	NoCheckout bool

	Auth auth.Config

	// GitExec overrides the git binary invoked by every subprocess
	// (defaults to "git" from PATH).
	GitExec string
	// Envs are additional environment variables passed to every
	// git subprocess, appended after auth-derived ones.
	Envs []string
}

// resolvedSingleBranch applies the default-to-on-iff-depth-set rule.
func (o Options) resolvedSingleBranch() bool {
	if o.SingleBranch != nil {
		return *o.SingleBranch
	}
	return o.Depth > 0
}

// Validate enforces the invariants among option combinations. It does not apply
// defaults (bare => no-checkout, mirror => bare, …) - see
// applyDerivedDefaults in controller.go for that.
func (o Options) Validate() error {
	if o.Resume {
		return o.validateResumeOnly()
	}

	if o.Bare && o.OriginSpecified {
		return newErr(KindUser, fmt.Errorf("--bare and --origin %s options are incompatible", o.OriginName))
	}
	if o.Bare && o.SeparateGitDir != "" {
		return newErr(KindUser, fmt.Errorf("--bare and --separate-git-dir are incompatible"))
	}
	if o.Depth < 0 {
		return newErr(KindUser, fmt.Errorf("depth %d is negative", o.Depth))
	}
	switch o.Local {
	case "", LocalAuto, LocalForce, LocalForbid:
	default:
		return newErr(KindUser, fmt.Errorf("invalid --local value %q", o.Local))
	}
	switch o.IPFamily {
	case "", IPFamilyAny, IPFamilyV4, IPFamilyV6:
	default:
		return newErr(KindUser, fmt.Errorf("invalid --ip-family value %q", o.IPFamily))
	}
	switch o.Progress {
	case "", ProgressAuto, ProgressForce, ProgressSuppress:
	default:
		return newErr(KindUser, fmt.Errorf("invalid --progress value %q", o.Progress))
	}
	return nil
}

// validateResumeOnly enforces that nothing but Verbosity/Progress (and
// the GitExec/Envs subprocess settings, which are not checked) is set
// alongside Resume. Fields are checked individually rather than by
// struct comparison, since Options holds slices and a pointer that
// aren't comparable with ==.
func (o Options) validateResumeOnly() error {
	bad := o.Bare || o.Mirror ||
		o.Local != "" || o.NoHardlinks || o.Shared ||
		o.Recursive || o.TemplateDir != "" ||
		o.OriginName != "" || o.OriginSpecified ||
		o.Branch != "" || o.Depth != 0 || o.SingleBranch != nil ||
		len(o.ReferenceList) > 0 || o.Dissociate ||
		o.SeparateGitDir != "" || o.UploadPackPath != "" || o.PrimeClonePath != "" ||
		len(o.ConfigList) > 0 || o.IPFamily != "" || o.NoCheckout ||
		o.Auth != (Options{}).Auth

	if bad {
		return newErr(KindUser, fmt.Errorf("--resume is incompatible with any other clone option"))
	}
	return nil
}
