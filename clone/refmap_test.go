package clone

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kevinwern/gitclone/transport"
)

func sampleRemoteRefs() []transport.Ref {
	return []transport.Ref{
		{Name: "HEAD", SymRef: "refs/heads/main"},
		{Name: "refs/heads/main", OldOID: "aaa1"},
		{Name: "refs/heads/dev", OldOID: "bbb2"},
		{Name: "refs/tags/v1.0", OldOID: "ccc3"},
		{Name: "refs/tags/v1.0^{}", OldOID: "ccc3"},
	}
}

func TestMapRefsStandard(t *testing.T) {
	res := mapRefs(sampleRemoteRefs(), "origin", "refs/remotes/origin/", false, false, "")

	want := []MappedRef{
		{Name: "HEAD"},
		{Name: "refs/heads/main", OldOID: "aaa1", PeerRef: "refs/remotes/origin/main"},
		{Name: "refs/heads/dev", OldOID: "bbb2", PeerRef: "refs/remotes/origin/dev"},
		{Name: "refs/tags/v1.0", OldOID: "ccc3", PeerRef: "refs/tags/v1.0"},
	}
	if diff := cmp.Diff(want, res.Refs); diff != "" {
		t.Errorf("mapRefs() mismatch (-want +got):\n%s", diff)
	}
	if res.OurHeadPointsAt != "refs/heads/main" {
		t.Errorf("OurHeadPointsAt = %q, want refs/heads/main", res.OurHeadPointsAt)
	}
}

func TestMapRefsMirror(t *testing.T) {
	res := mapRefs(sampleRemoteRefs(), "origin", "refs/", true, false, "")

	for _, m := range res.Refs {
		if m.Name == "HEAD" {
			continue
		}
		if m.PeerRef != m.Name {
			t.Errorf("mirror ref %q mapped to %q, want identity", m.Name, m.PeerRef)
		}
	}
}

func TestMapRefsSingleBranchByName(t *testing.T) {
	res := mapRefs(sampleRemoteRefs(), "origin", "refs/remotes/origin/", false, true, "dev")

	want := []MappedRef{
		{Name: "HEAD"},
		{Name: "refs/heads/dev", OldOID: "bbb2", PeerRef: "refs/remotes/origin/dev"},
	}
	if diff := cmp.Diff(want, res.Refs); diff != "" {
		t.Errorf("mapRefs() mismatch (-want +got):\n%s", diff)
	}
}

func TestMapRefsSingleBranchTag(t *testing.T) {
	res := mapRefs(sampleRemoteRefs(), "origin", "refs/remotes/origin/", false, true, "v1.0")

	want := []MappedRef{
		{Name: "HEAD"},
		{Name: "refs/tags/v1.0", OldOID: "ccc3", PeerRef: "refs/tags/v1.0"},
	}
	if diff := cmp.Diff(want, res.Refs); diff != "" {
		t.Errorf("mapRefs() mismatch (-want +got):\n%s", diff)
	}
	if res.OurHeadPointsAt != "" || res.OurHeadOID != "ccc3" {
		t.Errorf("expected detached HEAD at ccc3, got pointsAt=%q oid=%q", res.OurHeadPointsAt, res.OurHeadOID)
	}
}

func TestMapRefsSingleBranchMissing(t *testing.T) {
	res := mapRefs(sampleRemoteRefs(), "origin", "refs/remotes/origin/", false, true, "nope")

	if res.Warning == "" {
		t.Fatalf("expected a warning for a missing --branch target")
	}
	if len(res.Refs) != 1 {
		t.Errorf("expected only the seeded HEAD entry, got %v", res.Refs)
	}
}

func TestMapRefsEmptyRemote(t *testing.T) {
	res := mapRefs(nil, "origin", "refs/remotes/origin/", false, false, "")
	if len(res.Refs) != 0 {
		t.Errorf("mapRefs(nil) = %v, want empty", res.Refs)
	}
}
