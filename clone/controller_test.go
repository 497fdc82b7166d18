package clone

import (
	"errors"
	"testing"
)

var errTest = errors.New("test error")

func TestApplyDerivedDefaults(t *testing.T) {
	got := applyDerivedDefaults(Options{Mirror: true})
	if !got.Bare || !got.NoCheckout {
		t.Errorf("applyDerivedDefaults(mirror) = %+v, want Bare and NoCheckout set", got)
	}

	got = applyDerivedDefaults(Options{Bare: true, OriginName: "upstream", OriginSpecified: true})
	if got.OriginName != "" || got.OriginSpecified {
		t.Errorf("applyDerivedDefaults(bare) should force origin back to default, got %+v", got)
	}
}

func TestResolvedOriginName(t *testing.T) {
	if got := resolvedOriginName(Options{}); got != "origin" {
		t.Errorf("resolvedOriginName() = %q, want origin", got)
	}
	if got := resolvedOriginName(Options{OriginName: "upstream"}); got != "upstream" {
		t.Errorf("resolvedOriginName() = %q, want upstream", got)
	}
}

func TestBranchTop(t *testing.T) {
	if got := branchTop(true, "origin"); got != "refs/" {
		t.Errorf("branchTop(mirror) = %q, want refs/", got)
	}
	if got := branchTop(false, "upstream"); got != "refs/remotes/upstream/" {
		t.Errorf("branchTop() = %q, want refs/remotes/upstream/", got)
	}
}

func TestModeForErr(t *testing.T) {
	if modeForErr(nil) != JunkLeaveAll {
		t.Errorf("modeForErr(nil) should be JunkLeaveAll")
	}
	if modeForErr(newErr(KindCheckout, errTest)) != JunkLeaveRepo {
		t.Errorf("modeForErr(checkout) should be JunkLeaveRepo")
	}
	if modeForErr(newErr(KindTransport, errTest)) != JunkRemove {
		t.Errorf("modeForErr(transport) should be JunkRemove")
	}
}

func TestOutcomeForErr(t *testing.T) {
	cases := map[error]string{
		nil:                               "success",
		newErr(KindUser, errTest):         "user_error",
		newErr(KindSource, errTest):       "source_error",
		newErr(KindTransport, errTest):    "transport_error",
		newErr(KindPrimer, errTest):       "primer_error",
		newErr(KindCheckout, errTest):     "checkout_error",
	}
	for err, want := range cases {
		if got := outcomeForErr(err); got != want {
			t.Errorf("outcomeForErr(%v) = %q, want %q", err, got, want)
		}
	}
}

