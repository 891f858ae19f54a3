// Package bundle writes and reads artifact bundles: gzip-compressed cpio
// archives of a package's staged files, convenient for moving a staging
// result between machines without a repository.
package bundle

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	cpio "github.com/cavaliercoder/go-cpio"
	"github.com/google/renameio"
	"github.com/klauspost/pgzip"
	"golang.org/x/xerrors"
)

// Write creates bundle outputPath from the named files (relative to dir). The
// bundle is written atomically.
func Write(outputPath, dir string, files []string) error {
	start := time.Now()
	var buf bytes.Buffer
	wr := cpio.NewWriter(&buf)
	for _, fn := range files {
		path := filepath.Join(dir, fn)
		st, err := os.Stat(path)
		if err != nil {
			return err
		}
		if err := wr.WriteHeader(&cpio.Header{
			Name: fn,
			Mode: cpio.FileMode(st.Mode().Perm()),
			Size: st.Size(),
		}); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		if _, err := io.Copy(wr, f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	if err := wr.Close(); err != nil {
		return err
	}

	out, err := renameio.TempFile("", outputPath)
	if err != nil {
		return err
	}
	defer out.Cleanup()
	zw := pgzip.NewWriter(out)
	if _, err := io.Copy(zw, &buf); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	if err := out.CloseAtomicallyReplace(); err != nil {
		return err
	}
	log.Printf("bundled %d files into %s in %v", len(files), outputPath, time.Since(start))
	return nil
}

// Extract unpacks bundlePath into destDir, returning the extracted file names
// (relative to destDir).
func Extract(bundlePath, destDir string) ([]string, error) {
	f, err := os.Open(bundlePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	zr, err := pgzip.NewReader(f)
	if err != nil {
		return nil, xerrors.Errorf("%s: %w", bundlePath, err)
	}
	defer zr.Close()

	var files []string
	rd := cpio.NewReader(zr)
	for {
		hdr, err := rd.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		// Member names come from the archive; never follow them out of
		// destDir.
		if !filepath.IsLocal(hdr.Name) {
			return nil, xerrors.Errorf("%s: refusing to extract %q outside %s", bundlePath, hdr.Name, destDir)
		}
		dest := filepath.Join(destDir, hdr.Name)
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return nil, err
		}
		out, err := os.OpenFile(dest, os.O_RDWR|os.O_CREATE|os.O_TRUNC, hdr.FileInfo().Mode().Perm())
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(out, rd); err != nil {
			out.Close()
			return nil, err
		}
		if err := out.Close(); err != nil {
			return nil, err
		}
		files = append(files, hdr.Name)
	}
	return files, nil
}
