package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultDirMode is the permission bits used for every directory this
// module creates ('rwxr-xr-x').
const DefaultDirMode fs.FileMode = os.FileMode(0755)

// gitfileSignature is the minimum prefix a valid gitfile indirection must
// start with. Per upstream git, a gitfile shorter than 8 bytes is silently
// treated as not-a-gitfile rather than a read error.
const gitfileSignature = "gitdir: "

// ReadAbsLink returns the destination of the named symbolic link.
// return path will be absolute
func ReadAbsLink(link string) (string, error) {
	if !filepath.IsAbs(link) {
		return "", fmt.Errorf("given link path must be absolute")
	}
	target, err := os.Readlink(link)
	if err != nil && !os.IsNotExist(err) {
		return "", err
	}
	if target == "" {
		return "", nil
	}
	if filepath.IsAbs(target) {
		return target, nil
	}
	linkDir, _ := SplitAbs(link)
	return filepath.Join(linkDir, target), nil
}

func SplitAbs(abs string) (string, string) {
	if abs == "" {
		return "", ""
	}

	// filepath.Split promises that dir+base == input, but trailing slashes on
	// the dir is confusing and ugly.
	pathSep := string(os.PathSeparator)
	dir, base := filepath.Split(strings.TrimRight(abs, pathSep))
	dir = strings.TrimRight(dir, pathSep)
	if len(dir) == 0 {
		dir = string(os.PathSeparator)
	}

	return dir, base
}

// ReCreate removes dir and any children it contains and creates new dir
// on the same path
func ReCreate(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("can't delete unusable dir: %w", err)
	}
	if err := os.MkdirAll(path, DefaultDirMode); err != nil {
		return fmt.Errorf("unable to create repo dir err:%w", err)
	}
	return nil
}

// AbsLink will return absolute path for the given link
// if its not already abs. given root must be an absolute path
func AbsLink(root, link string) string {
	linkAbs := link
	if !filepath.IsAbs(linkAbs) {
		linkAbs = filepath.Join(root, link)
	}

	return linkAbs
}

// RunCommand runs given command with given arguments on given CWD
func RunCommand(ctx context.Context, log *slog.Logger, envs []string, cwd string, command string, args ...string) (string, error) {

	cmdStr := command + " " + strings.Join(args, " ")
	log.Log(ctx, -8, "running command", "cwd", cwd, "cmd", cmdStr)

	cmd := exec.CommandContext(ctx, command, args...)
	// force kill git & child process 5 seconds after sending it sigterm (when ctx is cancelled/timed out)
	cmd.WaitDelay = 5 * time.Second
	if cwd != "" {
		cmd.Dir = cwd
	}
	outbuf := bytes.NewBuffer(nil)
	errbuf := bytes.NewBuffer(nil)
	cmd.Stdout = outbuf
	cmd.Stderr = errbuf

	// If Env is nil, the new process uses the current process's environment.
	cmd.Env = []string{}

	if len(envs) > 0 {
		cmd.Env = append(cmd.Env, envs...)
	}

	start := time.Now()
	err := cmd.Run()
	runTime := time.Since(start)

	stdout := strings.TrimSpace(outbuf.String())
	stderr := strings.TrimSpace(errbuf.String())
	if ctx.Err() == context.DeadlineExceeded {
		err = ctx.Err()
	}
	if err != nil {
		return "", fmt.Errorf("Run(%s): err:%w { stdout: %q, stderr: %q }", cmdStr, err, stdout, stderr)
	}
	log.Log(ctx, -8, "command result", "stdout", stdout, "stderr", stderr, "time", runTime)

	return stdout, nil
}

// IsDirEmpty reports whether path exists, is a directory and has no entries.
func IsDirEmpty(path string) (bool, error) {
	dirents, err := os.ReadDir(path)
	if err != nil {
		return false, err
	}
	return len(dirents) == 0, nil
}

// DirExists reports whether path exists and is a directory.
func DirExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// ReadGitfile reads a gitfile indirection ("gitdir: <path>") the way git
// itself does: the file must be a regular file of at least 8 bytes and
// begin with the literal signature "gitdir: ". Anything shorter, or any
// other first line, is treated as "not a gitfile" rather than an error -
// upstream git silently truncates reads shorter than the signature.
func ReadGitfile(path string) (target string, ok bool, err error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	if !fi.Mode().IsRegular() || fi.Size() < int64(len(gitfileSignature)) {
		return "", false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, err
	}
	if !strings.HasPrefix(string(data), gitfileSignature) {
		return "", false, nil
	}

	line := strings.SplitN(string(data), "\n", 2)[0]
	target = strings.TrimSpace(strings.TrimPrefix(line, gitfileSignature))
	if target == "" {
		return "", false, nil
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	return target, true, nil
}

// CopyFile bit-copies src to dst, creating dst's parent directory if
// needed and preserving src's mtime and mode.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), DefaultDirMode); err != nil {
		return fmt.Errorf("unable to create dst dir: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("unable to copy file contents: %w", err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	return os.Chtimes(dst, time.Now(), info.ModTime())
}

// HardlinkOrCopy attempts to hardlink src to dst, falling back to a
// bit-copy when the link fails (e.g. cross-device) or when allowHardlink
// is false. It reports whether a hardlink was actually created.
func HardlinkOrCopy(src, dst string, allowHardlink bool) (linked bool, err error) {
	if err := os.MkdirAll(filepath.Dir(dst), DefaultDirMode); err != nil {
		return false, fmt.Errorf("unable to create dst dir: %w", err)
	}

	if allowHardlink {
		if err := os.Link(src, dst); err == nil {
			return true, nil
		}
	}

	return false, CopyFile(src, dst)
}
