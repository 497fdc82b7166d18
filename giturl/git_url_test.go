package giturl

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		rawURL  string
		want    *URL
		wantErr bool
	}{
		{"1",
			"user@host.xz:path/to/repo.git",
			&URL{Scheme: "scp", User: "user", Host: "host.xz", Path: "path/to", Repo: "repo.git"},
			false,
		},
		{"2",
			"git@github.com:org/repo",
			&URL{Scheme: "scp", User: "git", Host: "github.com", Path: "org", Repo: "repo"},
			false},
		{"3",
			"ssh://user@host.xz:123/path/to/repo.git",
			&URL{Scheme: "ssh", User: "user", Host: "host.xz:123", Path: "path/to", Repo: "repo.git"},
			false},
		{"4",
			"ssh://git@github.com/org/repo",
			&URL{Scheme: "ssh", User: "git", Host: "github.com", Path: "org", Repo: "repo"},
			false},
		{"5",
			"https://host.xz:345/path/to/repo.git",
			&URL{Scheme: "https", Host: "host.xz:345", Path: "path/to", Repo: "repo.git"},
			false},
		{"6",
			"https://github.com/org/repo",
			&URL{Scheme: "https", Host: "github.com", Path: "org", Repo: "repo"},
			false},
		{"7",
			"file:///path/to/repo.git",
			&URL{Scheme: "local", Path: "path/to", Repo: "repo.git"},
			false},

		{"invalid_ssh_hostname", "ssh://git@github.com:org/repo.git", nil, true},
		{"invalid_scp_url", "git@github.com/org/repo.git", nil, true},
		{"http", "http://host.xz:123/path/to/repo.git", nil, true},
		{"invalid_port1", "https://host.xz:yk/path/to/repo.git", nil, true},
		{"invalid_port2", "git@github.com:yk:org/repo.git", nil, true},
		{"invalid_path_1", "git@host.xz:/r.git", nil, true},
		{"invalid_path_2", "git@host.xz:.git", nil, true},
		{"invalid_hosts", "git@.:d/r.git", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.rawURL)
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateComparable(URL{})); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSameRawURL(t *testing.T) {
	type args struct {
		lRepo string
		rRepo string
	}
	tests := []struct {
		name    string
		args    args
		want    bool
		wantErr bool
	}{
		{"1", args{"user@host.xz:path/to/repo.git", "USER@HOST.XZ:PATH/TO/REPO.GIT"}, true, false},
		{"2", args{"git@github.com:org/repo.git", "ssh://git@github.com/org/repo.git"}, true, false},
		{"3", args{"git@github.com:org/repo.git", "https://github.com/org/repo.git"}, true, false},
		{"4", args{"https://github.com/org/repo.git", "https://github.com/org/repo"}, true, false},
		{"5", args{"https://github.com/org/repo.git", "https://github.com/org/other.git"}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SameRawURL(tt.args.lRepo, tt.args.rRepo)
			if (err != nil) != tt.wantErr {
				t.Errorf("SameRawURL() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("SameRawURL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLooksLikeRemote(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"git@github.com:org/repo.git", true},
		{"ssh://git@github.com/org/repo.git", true},
		{"https://github.com/org/repo.git", true},
		{"file:///srv/repo.git", true},
		{"/srv/repo.git", false},
		{"../relative/repo", false},
		{"repo", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := LooksLikeRemote(tt.raw); got != tt.want {
				t.Errorf("LooksLikeRemote(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
