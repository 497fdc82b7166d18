package auth

import (
	"context"
	"strings"
	"testing"
)

func TestEnvSSH(t *testing.T) {
	envs, err := Env(context.Background(), Config{}, &TokenCache{}, t.TempDir(), "git@github.com:org/repo.git")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(envs) != 1 || !strings.HasPrefix(envs[0], "GIT_SSH_COMMAND=") {
		t.Errorf("Env() = %v, want single GIT_SSH_COMMAND entry", envs)
	}
}

func TestEnvHTTPSToken(t *testing.T) {
	envs, err := Env(context.Background(), Config{Password: "tok"}, &TokenCache{}, t.TempDir(), "https://github.com/org/repo.git")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]bool{"GIT_ASKPASS": false, "REPO_USERNAME": false, "REPO_PASSWORD": false}
	for _, e := range envs {
		for k := range want {
			if strings.HasPrefix(e, k+"=") {
				want[k] = true
			}
		}
	}
	for k, seen := range want {
		if !seen {
			t.Errorf("expected env var %s to be set, got %v", k, envs)
		}
	}
}

func TestEnvNoAuthNeeded(t *testing.T) {
	envs, err := Env(context.Background(), Config{}, &TokenCache{}, t.TempDir(), "https://github.com/org/repo.git")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if envs != nil {
		t.Errorf("Env() = %v, want nil when no credentials configured", envs)
	}
}
