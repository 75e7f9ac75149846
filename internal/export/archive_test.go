package export

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestArchive_RoundTrip(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "a.txt"), []byte("alpha"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(src, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "sub", "b.txt"), []byte("bravo"), 0o644); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(t.TempDir(), "out.zip")
	if err := Archive(src, dest); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	r, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer r.Close()

	got := map[string]string{}
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		got[f.Name] = string(data)
	}

	// Immediate contents at the archive root: no enclosing folder level.
	want := map[string]string{
		"a.txt":     "alpha",
		"sub/b.txt": "bravo",
	}
	if len(got) != len(want) {
		t.Fatalf("archive entries = %v, want %v", got, want)
	}
	for name, content := range want {
		if got[name] != content {
			t.Fatalf("entry %s = %q, want %q", name, got[name], content)
		}
	}
}

func TestArchive_MissingSource(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.zip")
	err := Archive(filepath.Join(t.TempDir(), "nope"), dest)
	if err == nil {
		t.Fatal("expected error for missing source dir")
	}
	var archErr *ArchiveError
	if !errors.As(err, &archErr) {
		t.Fatalf("expected *ArchiveError, got %T: %v", err, err)
	}
}
