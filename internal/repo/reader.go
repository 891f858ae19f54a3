// Package repo reads artifact files from configured repositories, which are
// either file system paths or HTTP(S) URLs.
package repo

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/tenstage/tenstage"
)

type ErrNotFound struct {
	url *url.URL
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%v: HTTP status 404", e.url)
}

// IsNotExist reports whether err means the requested file does not exist,
// regardless of whether the repository is local or remote.
func IsNotExist(err error) bool {
	if _, ok := err.(*ErrNotFound); ok {
		return true
	}
	return os.IsNotExist(err)
}

type gzipReader struct {
	body io.ReadCloser
	zr   *gzip.Reader
}

func (r *gzipReader) Read(p []byte) (n int, err error) {
	return r.zr.Read(p)
}

func (r *gzipReader) Close() error {
	if err := r.zr.Close(); err != nil {
		return err
	}
	return r.body.Close()
}

var httpClient = &http.Client{Transport: &http.Transport{
	MaxIdleConnsPerHost: 10,
	DisableCompression:  true,
}}

// Reader returns a reader for fn (relative to the repository root, e.g.
// pkg/libdgl-cpu-2.1.0-3.so). HTTP responses with gzip content encoding are
// transparently uncompressed.
func Reader(ctx context.Context, repo tenstage.Repo, fn string) (io.ReadCloser, error) {
	if strings.HasPrefix(repo.Path, "http://") ||
		strings.HasPrefix(repo.Path, "https://") {
		req, err := http.NewRequest("GET", strings.TrimSuffix(repo.Path, "/")+"/"+fn, nil)
		if err != nil {
			return nil, err
		}
		// good for typical links (≤ gigabit)
		// performance bottleneck for faster links (10 gbit/s+)
		req.Header.Set("Accept-Encoding", "gzip")
		resp, err := httpClient.Do(req.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		if got, want := resp.StatusCode, http.StatusOK; got != want {
			resp.Body.Close()
			if got == http.StatusNotFound {
				return nil, &ErrNotFound{url: req.URL}
			}
			return nil, fmt.Errorf("%s: HTTP status %v", req.URL, resp.Status)
		}
		if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
			rd, err := gzip.NewReader(resp.Body)
			if err != nil {
				resp.Body.Close()
				return nil, err
			}
			return &gzipReader{body: resp.Body, zr: rd}, nil
		}
		return resp.Body, nil
	}
	return os.Open(filepath.Join(repo.Path, fn))
}
