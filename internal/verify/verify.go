// Package verify checks artifacts against their recorded metadata: size and
// sha256 digest, and for ELF shared objects the soname and dynamic section.
package verify

import (
	"crypto/sha256"
	"debug/elf"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/tenstage/tenstage/internal/recipe"
	"golang.org/x/exp/mmap"
	"golang.org/x/xerrors"
)

// Info describes one inspected artifact file.
type Info struct {
	Path   string
	Size   int64
	SHA256 string

	// ELF is true if the file is an ELF object; SOName and Needed are only
	// set in that case. Mach-O dylibs staged on macOS are hashed but not
	// inspected further.
	ELF    bool
	SOName string
	Needed []string
}

// File inspects the artifact at path. The file is mmap'ed: artifacts are
// shared objects of up to a few hundred MB, and both hashing and ELF parsing
// want random access.
func File(path string) (*Info, error) {
	readerAt, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	defer readerAt.Close()

	info := &Info{Path: path, Size: int64(readerAt.Len())}

	h := sha256.New()
	if _, err := io.Copy(h, io.NewSectionReader(readerAt, 0, info.Size)); err != nil {
		return nil, err
	}
	info.SHA256 = hex.EncodeToString(h.Sum(nil))

	var magic [4]byte
	if info.Size >= 4 {
		if _, err := readerAt.ReadAt(magic[:], 0); err != nil {
			return nil, err
		}
	}
	if magic != [4]byte{0x7f, 'E', 'L', 'F'} {
		return info, nil
	}

	f, err := elf.NewFile(io.NewSectionReader(readerAt, 0, info.Size))
	if err != nil {
		return nil, xerrors.Errorf("parsing ELF %s: %w", path, err)
	}
	defer f.Close()
	info.ELF = true
	if sonames, err := f.DynString(elf.DT_SONAME); err == nil && len(sonames) > 0 {
		info.SOName = sonames[0]
	}
	if needed, err := f.ImportedLibraries(); err == nil {
		info.Needed = needed
	}
	return info, nil
}

// Artifact verifies the file at path against its metadata and returns a
// descriptive error on the first mismatch.
func Artifact(path string, meta *recipe.Meta) error {
	info, err := File(path)
	if err != nil {
		return err
	}
	if meta.Size > 0 && info.Size != meta.Size {
		return fmt.Errorf("%s: size %d, want %d", path, info.Size, meta.Size)
	}
	if meta.SHA256 != "" && info.SHA256 != meta.SHA256 {
		return fmt.Errorf("%s: sha256 %s, want %s", path, info.SHA256, meta.SHA256)
	}
	if meta.SOName != "" {
		if !info.ELF {
			return fmt.Errorf("%s: soname %q recorded, but file is not an ELF object", path, meta.SOName)
		}
		if info.SOName != meta.SOName {
			return fmt.Errorf("%s: soname %q, want %q", path, info.SOName, meta.SOName)
		}
	}
	return nil
}
