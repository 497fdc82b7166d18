package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSplitAbs(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		expDir  string
		expBase string
	}{
		{name: "1", in: "", expDir: "", expBase: ""},
		{name: "2", in: "/", expDir: "/", expBase: ""},
		{name: "3", in: "//", expDir: "/", expBase: ""},
		{name: "4", in: "/one", expDir: "/", expBase: "one"},
		{name: "5", in: "/one/two", expDir: "/one", expBase: "two"},
		{name: "6", in: "/one/two/", expDir: "/one", expBase: "two"},
		{name: "7", in: "/one//two", expDir: "/one", expBase: "two"},
		{name: "8", in: "one/two", expDir: "one", expBase: "two"},
		{name: "8", in: "one", expDir: "/", expBase: "one"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, got1 := SplitAbs(tt.in)
			if got != tt.expDir {
				t.Errorf("splitAbs() got = %v, want %v", got, tt.expDir)
			}
			if got1 != tt.expBase {
				t.Errorf("splitAbs() got1 = %v, want %v", got1, tt.expBase)
			}
		})
	}
}

func Test_reCreate(t *testing.T) {
	tempRoot := t.TempDir()

	// create files
	dir := filepath.Join(tempRoot, "files")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatalf("failed to make a temp subdir: %v", err)
	}
	for _, file := range []string{"a", "b", "c"} {
		path := filepath.Join(dir, file)
		if err := os.WriteFile(path, []byte{}, 0755); err != nil {
			t.Fatalf("failed to write a file: %v", err)
		}
	}

	if err := ReCreate(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// validate by making sure new dir is empty
	if empty, err := dirIsEmpty(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	} else if !empty {
		t.Errorf("expected %q to be deemed empty", dir)
	}
}

func dirIsEmpty(path string) (bool, error) {
	dirents, err := os.ReadDir(path)
	if err != nil {
		return false, err
	}
	return len(dirents) == 0, nil
}

func TestReadGitfile(t *testing.T) {
	dir := t.TempDir()

	writeFile := func(name, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return p
	}

	tooShort := writeFile("short", "gitdir:")
	if _, ok, err := ReadGitfile(tooShort); err != nil || ok {
		t.Errorf("short file: ok=%v err=%v, want ok=false err=nil", ok, err)
	}

	wrongPrefix := writeFile("wrong", "not-a-gitdir: /x\n")
	if _, ok, _ := ReadGitfile(wrongPrefix); ok {
		t.Errorf("wrong prefix: ok=true, want false")
	}

	absTarget := filepath.Join(dir, "real.git")
	abs := writeFile("abs", "gitdir: "+absTarget+"\n")
	if target, ok, err := ReadGitfile(abs); err != nil || !ok || target != absTarget {
		t.Errorf("abs gitfile: target=%q ok=%v err=%v, want %q true nil", target, ok, err, absTarget)
	}

	rel := writeFile("rel", "gitdir: sub/real.git\n")
	wantRel := filepath.Join(dir, "sub/real.git")
	if target, ok, err := ReadGitfile(rel); err != nil || !ok || target != wantRel {
		t.Errorf("rel gitfile: target=%q ok=%v err=%v, want %q true nil", target, ok, err, wantRel)
	}

	if _, ok, err := ReadGitfile(filepath.Join(dir, "missing")); err != nil || ok {
		t.Errorf("missing file: ok=%v err=%v, want ok=false err=nil", ok, err)
	}
}

func TestHardlinkOrCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	if err := os.WriteFile(src, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(dir, "dst.txt")
	linked, err := HardlinkOrCopy(src, dst, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !linked {
		t.Errorf("expected hardlink to succeed on same filesystem")
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != "hello" {
		t.Errorf("dst content = %q, err=%v, want %q", got, err, "hello")
	}

	dst2 := filepath.Join(dir, "dst2.txt")
	linked, err = HardlinkOrCopy(src, dst2, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if linked {
		t.Errorf("expected copy, not hardlink, when allowHardlink=false")
	}
}
