package transport

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSymrefLineRgx(t *testing.T) {
	m := symrefLineRgx.FindStringSubmatch("ref: refs/heads/main\tHEAD")
	if m == nil {
		t.Fatalf("expected match")
	}
	if m[1] != "refs/heads/main" || m[2] != "HEAD" {
		t.Errorf("got %v", m)
	}
}

func TestWithFamilyArgs(t *testing.T) {
	tr := &Transport{ipFamily: IPFamilyV4}
	got := tr.withFamilyArgs([]string{"fetch", "origin"})
	want := []string{"--ipv4", "fetch", "origin"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("withFamilyArgs() mismatch (-want +got):\n%s", diff)
	}

	tr2 := &Transport{ipFamily: IPFamilyAny}
	got2 := tr2.withFamilyArgs([]string{"fetch", "origin"})
	if diff := cmp.Diff([]string{"fetch", "origin"}, got2); diff != "" {
		t.Errorf("withFamilyArgs() mismatch (-want +got):\n%s", diff)
	}
}

func TestHTTPClientHonorsIPFamily(t *testing.T) {
	for _, tc := range []struct {
		family IPFamily
	}{
		{IPFamilyAny}, {IPFamilyV4}, {IPFamilyV6},
	} {
		tr := &Transport{ipFamily: tc.family}
		client := tr.httpClient()
		if client.Transport == nil {
			t.Fatalf("httpClient(%v).Transport = nil, want a dialer restricted to the chosen network", tc.family)
		}
	}
}
