package bundle

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	cpio "github.com/cavaliercoder/go-cpio"
	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/pgzip"
)

func TestBundleRoundTrip(t *testing.T) {
	buildDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(buildDir, "tensoradapter", "pytorch"), 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"libdgl.so": "libdgl payload",
		"tensoradapter/pytorch/libtensoradapter_pytorch.so": "adapter payload",
	}
	var names []string
	for fn, contents := range files {
		if err := os.WriteFile(filepath.Join(buildDir, fn), []byte(contents), 0755); err != nil {
			t.Fatal(err)
		}
		names = append(names, fn)
	}

	bundlePath := filepath.Join(t.TempDir(), "dgl-cpu-2.1.0-3.bundle")
	if err := Write(bundlePath, buildDir, names); err != nil {
		t.Fatal(err)
	}

	destDir := t.TempDir()
	extracted, err := Extract(bundlePath, destDir)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(names, extracted); diff != "" {
		t.Errorf("extracted files: diff (-want +got):\n%s", diff)
	}
	for fn, want := range files {
		b, err := os.ReadFile(filepath.Join(destDir, fn))
		if err != nil {
			t.Fatal(err)
		}
		if got := string(b); got != want {
			t.Errorf("%s: contents %q, want %q", fn, got, want)
		}
		st, err := os.Stat(filepath.Join(destDir, fn))
		if err != nil {
			t.Fatal(err)
		}
		if got, want := st.Mode().Perm(), os.FileMode(0755); got != want {
			t.Errorf("%s: mode %v, want %v", fn, got, want)
		}
	}
}

func TestExtractRejectsEscapingMember(t *testing.T) {
	// Craft a bundle whose member name climbs out of the
	// destination directory.
	var buf bytes.Buffer
	cw := cpio.NewWriter(&buf)
	payload := []byte("hostile payload")
	if err := cw.WriteHeader(&cpio.Header{
		Name: "../escape.so",
		Mode: 0755,
		Size: int64(len(payload)),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := cw.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := cw.Close(); err != nil {
		t.Fatal(err)
	}

	bundlePath := filepath.Join(t.TempDir(), "hostile.bundle")
	f, err := os.Create(bundlePath)
	if err != nil {
		t.Fatal(err)
	}
	zw := pgzip.NewWriter(f)
	if _, err := zw.Write(buf.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	parent := t.TempDir()
	destDir := filepath.Join(parent, "build")
	if err := os.MkdirAll(destDir, 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := Extract(bundlePath, destDir); err == nil {
		t.Fatal("Extract unexpectedly succeeded on escaping member name")
	}
	if _, err := os.Stat(filepath.Join(parent, "escape.so")); !os.IsNotExist(err) {
		t.Errorf("escaping member was written outside the destination directory")
	}
}

func TestExtractRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.bundle")
	if err := os.WriteFile(path, []byte("not gzip"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Extract(path, t.TempDir()); err == nil {
		t.Error("Extract unexpectedly succeeded on garbage input")
	}
}

func TestWriteMissingFile(t *testing.T) {
	bundlePath := filepath.Join(t.TempDir(), "out.bundle")
	err := Write(bundlePath, t.TempDir(), []string{"does-not-exist.so"})
	if err == nil {
		t.Fatal("Write unexpectedly succeeded")
	}
	if _, statErr := os.Stat(bundlePath); !os.IsNotExist(statErr) {
		t.Errorf("partial bundle left behind after failed Write")
	}
}
