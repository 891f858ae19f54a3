package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const indexPage = `<html><body>
<a href="libdgl-cpu-2.0.0-2.so">libdgl-cpu-2.0.0-2.so</a>
<a href="libdgl-cpu-2.1.0-3.so">libdgl-cpu-2.1.0-3.so</a>
<a href="libdgl-cpu-2.1.0-3.meta.textproto">libdgl-cpu-2.1.0-3.meta.textproto</a>
<a href="libdgl-cuda118-2.1.0-3.so">libdgl-cuda118-2.1.0-3.so</a>
<a href="../unrelated.html">parent</a>
</body></html>`

func indexServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/artifacts/", func(w http.ResponseWriter, r *http.Request) {
		base := filepath.Base(r.URL.Path)
		if base == "artifacts" {
			fmt.Fprint(w, indexPage)
			return
		}
		fmt.Fprintf(w, "contents of %s", base)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractLinks(t *testing.T) {
	t.Parallel()

	parent, err := url.Parse("https://repo.example/artifacts/")
	if err != nil {
		t.Fatal(err)
	}
	links, err := extractLinks(parent, []byte(indexPage))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"https://repo.example/artifacts/libdgl-cpu-2.0.0-2.so",
		"https://repo.example/artifacts/libdgl-cpu-2.1.0-3.so",
		"https://repo.example/artifacts/libdgl-cpu-2.1.0-3.meta.textproto",
		"https://repo.example/artifacts/libdgl-cuda118-2.1.0-3.so",
		"https://repo.example/unrelated.html",
	}
	if diff := cmp.Diff(want, links); diff != "" {
		t.Fatalf("extractLinks: diff (-want +got):\n%s", diff)
	}
}

func TestIndexFetchesNewest(t *testing.T) {
	t.Parallel()

	srv := indexServer(t)
	cache := t.TempDir()
	c := &Ctx{
		Log:   log.New(io.Discard, "", 0),
		Cache: cache,
	}
	fetched, err := c.Index(context.Background(), srv.URL+"/artifacts/", "libdgl", "cpu")
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	want := []string{
		filepath.Join(cache, "libdgl-cpu-2.1.0-3.so"),
		filepath.Join(cache, "libdgl-cpu-2.1.0-3.meta.textproto"),
	}
	if diff := cmp.Diff(want, fetched); diff != "" {
		t.Fatalf("Index: diff (-want +got):\n%s", diff)
	}
	b, err := os.ReadFile(fetched[0])
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), "contents of libdgl-cpu-2.1.0-3.so"; got != want {
		t.Errorf("downloaded artifact: got %q, want %q", got, want)
	}
}

func TestIndexSkipsOtherVariants(t *testing.T) {
	t.Parallel()

	srv := indexServer(t)
	c := &Ctx{
		Log:   log.New(io.Discard, "", 0),
		Cache: t.TempDir(),
	}
	fetched, err := c.Index(context.Background(), srv.URL+"/artifacts/", "libdgl", "cuda118")
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	want := []string{
		filepath.Join(c.Cache, "libdgl-cuda118-2.1.0-3.so"),
	}
	if diff := cmp.Diff(want, fetched); diff != "" {
		t.Fatalf("Index: diff (-want +got):\n%s", diff)
	}
}

func TestIndexNoMatch(t *testing.T) {
	t.Parallel()

	srv := indexServer(t)
	c := &Ctx{
		Log:   log.New(io.Discard, "", 0),
		Cache: t.TempDir(),
	}
	if _, err := c.Index(context.Background(), srv.URL+"/artifacts/", "libdgl", "cuda999"); err == nil {
		t.Fatalf("Index unexpectedly succeeded for unknown variant")
	}
}
