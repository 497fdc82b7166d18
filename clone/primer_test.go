package clone

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kevinwern/gitclone/transport"
)

func TestResumeDescriptorRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := transport.AltResource{URL: "https://example.com/p.pack", FileType: "pack"}

	if err := writeResumeDescriptor(dir, want); err != nil {
		t.Fatalf("writeResumeDescriptor() error: %v", err)
	}

	got, ok, err := readResumeDescriptor(dir)
	if err != nil {
		t.Fatalf("readResumeDescriptor() error: %v", err)
	}
	if !ok {
		t.Fatalf("readResumeDescriptor() ok = false, want true")
	}
	if got != want {
		t.Errorf("readResumeDescriptor() = %+v, want %+v", got, want)
	}

	if err := removeResumeDescriptor(dir); err != nil {
		t.Fatalf("removeResumeDescriptor() error: %v", err)
	}
	if _, ok, err := readResumeDescriptor(dir); err != nil || ok {
		t.Fatalf("expected no descriptor after removal, ok=%v err=%v", ok, err)
	}
}

func TestReadResumeDescriptorMissing(t *testing.T) {
	dir := t.TempDir()
	_, ok, err := readResumeDescriptor(dir)
	if err != nil {
		t.Fatalf("readResumeDescriptor() error: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for missing descriptor")
	}
}

func TestReadBundleTips(t *testing.T) {
	dir := t.TempDir()
	bndl := filepath.Join(dir, "primer.bndl")
	content := "# v2 git bundle\ndeadbeef1234 refs/heads/main\n" +
		"cafef00dcafe refs/heads/dev\n\n"
	if err := os.WriteFile(bndl, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := readBundleTips(bndl)
	if err != nil {
		t.Fatalf("readBundleTips() error: %v", err)
	}
	want := []string{"deadbeef1234", "cafef00dcafe"}
	if len(got) != len(want) {
		t.Fatalf("readBundleTips() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("readBundleTips()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWithExt(t *testing.T) {
	got, ok := withExt("/tmp/primer.pack", ".pack", ".idx")
	if !ok || got != "/tmp/primer.idx" {
		t.Errorf("withExt() = (%q, %v), want (/tmp/primer.idx, true)", got, ok)
	}
	if _, ok := withExt("/tmp/primer.bundle", ".pack", ".idx"); ok {
		t.Errorf("withExt() ok = true for a non-matching suffix, want false")
	}
}

func TestRollbackPrimerRemovesArtifacts(t *testing.T) {
	dir := t.TempDir()
	pack := filepath.Join(dir, "primer.pack")
	idx := filepath.Join(dir, "primer.idx")
	bndl := filepath.Join(dir, "primer.bndl")
	temp := pack + ".temp"
	for _, p := range []string{pack, idx, bndl, temp} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	rollbackPrimer(pack, idx, bndl)

	for _, p := range []string{pack, idx, bndl, temp} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("expected %s removed, stat err = %v", p, err)
		}
	}
}
