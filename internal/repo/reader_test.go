package repo

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/tenstage/tenstage"
)

func TestReaderFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "pkg"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "pkg", "libdgl-cpu-2.1.0-1.so"), []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}

	rd, err := Reader(context.Background(), tenstage.Repo{Path: dir}, "pkg/libdgl-cpu-2.1.0-1.so")
	if err != nil {
		t.Fatal(err)
	}
	defer rd.Close()
	b, err := io.ReadAll(rd)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), "payload"; got != want {
		t.Errorf("read %q, want %q", got, want)
	}
}

func TestReaderFileNotFound(t *testing.T) {
	_, err := Reader(context.Background(), tenstage.Repo{Path: t.TempDir()}, "pkg/nope.so")
	if err == nil {
		t.Fatal("Reader unexpectedly succeeded")
	}
	if !IsNotExist(err) {
		t.Errorf("IsNotExist(%v) = false, want true", err)
	}
}

func TestReaderHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pkg/plain":
			io.WriteString(w, "plain payload")
		case "/pkg/compressed":
			w.Header().Set("Content-Encoding", "gzip")
			zw := gzip.NewWriter(w)
			io.WriteString(zw, "compressed payload")
			zw.Close()
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	repo := tenstage.Repo{Path: srv.URL}

	for _, tt := range []struct {
		fn   string
		want string
	}{
		{"pkg/plain", "plain payload"},
		{"pkg/compressed", "compressed payload"},
	} {
		t.Run(tt.fn, func(t *testing.T) {
			rd, err := Reader(context.Background(), repo, tt.fn)
			if err != nil {
				t.Fatal(err)
			}
			defer rd.Close()
			b, err := io.ReadAll(rd)
			if err != nil {
				t.Fatal(err)
			}
			if got := string(b); got != tt.want {
				t.Errorf("read %q, want %q", got, tt.want)
			}
		})
	}

	_, err := Reader(context.Background(), repo, "pkg/missing")
	if err == nil {
		t.Fatal("Reader unexpectedly succeeded for missing file")
	}
	if !IsNotExist(err) {
		t.Errorf("IsNotExist(%v) = false, want true", err)
	}
}
