package auth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kevinwern/gitclone/giturl"
)

// Config represents the authentication material available for a single
// clone's remote. At most one strategy applies, chosen by Env: an
// ssh/scp remote always uses SSH; an https remote uses, in order,
// username+password, password-only (token), GitHub App.
type Config struct {
	// Username for basic or token based HTTPS authentication.
	Username string `yaml:"username"`

	// Password or personal access token for HTTPS authentication.
	Password string `yaml:"password"`

	// SSHKeyPath is the path to the SSH private key used over ssh/scp remotes.
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKnownHostsPath is the path to the known_hosts file for the remote host.
	SSHKnownHostsPath string `yaml:"ssh_known_hosts_path"`

	// GithubAppID is the application (or client) ID of the GitHub App.
	GithubAppID string `yaml:"github_app_id"`
	// GithubAppInstallationID is the installation ID of the app in the organization.
	GithubAppInstallationID string `yaml:"github_app_installation_id"`
	// GithubAppPrivateKeyPath is the path to the GitHub App's private key.
	GithubAppPrivateKeyPath string `yaml:"github_app_private_key_path"`
}

const loadCredsScript = `#!/bin/sh

case "$1" in
  Username*) echo "$REPO_USERNAME" ;;
  Password*) echo "$REPO_PASSWORD" ;;
esac
`

// TokenCache caches a single minted GitHub App installation token, since
// minting requires a network round-trip and the token is valid for an hour.
// It is safe for concurrent use.
type TokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// Env returns the environment variables that must be passed to a `git`
// subprocess for it to authenticate against remote, using a credential
// helper script staged in scriptDir (the destination's git-dir is the
// natural choice, since it is already exclusively owned for the clone's
// duration).
func Env(ctx context.Context, cfg Config, cache *TokenCache, scriptDir, remote string) ([]string, error) {
	if giturl.IsSCPURL(remote) || giturl.IsSSHURL(remote) {
		return []string{sshCommand(cfg)}, nil
	}

	if !giturl.IsHTTPSURL(remote) {
		return nil, nil
	}

	var username, password string
	switch {
	case cfg.Username != "" && cfg.Password != "":
		username, password = cfg.Username, cfg.Password
	case cfg.Password != "":
		username, password = "-", cfg.Password
	case cfg.GithubAppInstallationID != "":
		gURL, err := giturl.Parse(remote)
		if err != nil {
			return nil, err
		}
		token, err := githubAppToken(ctx, cfg, cache, strings.TrimSuffix(gURL.Repo, ".git"))
		if err != nil {
			return nil, fmt.Errorf("unable to get github app token: %w", err)
		}
		username, password = "-", token
	default:
		return nil, nil
	}

	scriptPath, err := ensureCredsLoader(scriptDir)
	if err != nil {
		return nil, fmt.Errorf("unable to write load creds script file: %w", err)
	}

	return []string{
		fmt.Sprintf("GIT_ASKPASS=%s", scriptPath),
		fmt.Sprintf("REPO_USERNAME=%s", username),
		fmt.Sprintf("REPO_PASSWORD=%s", password),
	}, nil
}

func ensureCredsLoader(dir string) (string, error) {
	credsLoader := filepath.Join(dir, "git-clone-creds-loader.sh")

	_, err := os.Stat(credsLoader)
	switch {
	case os.IsNotExist(err):
		if err := os.WriteFile(credsLoader, []byte(loadCredsScript), 0750); err != nil {
			return "", err
		}
	case err != nil:
		return "", fmt.Errorf("unable to check if script file exists: %w", err)
	}

	return credsLoader, nil
}

// sshCommand builds the GIT_SSH_COMMAND environment variable, disabling
// known_hosts checks unless a known_hosts path is explicitly configured.
func sshCommand(cfg Config) string {
	sshKeyPath := cfg.SSHKeyPath
	if sshKeyPath == "" {
		sshKeyPath = "/dev/null"
	}
	knownHostsOptions := "-o UserKnownHostsFile=/dev/null -o StrictHostKeyChecking=no"
	if cfg.SSHKeyPath != "" && cfg.SSHKnownHostsPath != "" {
		knownHostsOptions = fmt.Sprintf("-o UserKnownHostsFile=%s", cfg.SSHKnownHostsPath)
	}
	return fmt.Sprintf(`GIT_SSH_COMMAND=ssh -q -F none -o IdentitiesOnly=yes -o IdentityFile=%s %s`, sshKeyPath, knownHostsOptions)
}

func githubAppToken(ctx context.Context, cfg Config, cache *TokenCache, repo string) (string, error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	// reuse the cached token if it is valid for the next 10 minutes
	if cache.expiresAt.After(time.Now().UTC().Add(10 * time.Minute)) {
		return cache.token, nil
	}

	permissions := GithubAppTokenReqPermissions{
		Repositories: []string{repo},
		Permissions:  map[string]string{"contents": "read"},
	}

	token, err := GithubAppInstallationToken(ctx,
		cfg.GithubAppID, cfg.GithubAppInstallationID, cfg.GithubAppPrivateKeyPath,
		permissions)
	if err != nil {
		return "", err
	}

	cache.token = token.Token
	cache.expiresAt = token.ExpiresAt

	return cache.token, nil
}
