package tenstage

import (
	"strconv"
	"strings"
)

// ArtifactVersion describes one released version of a prebuilt artifact. It is
// assumed that files never change in the cache or repository, but may become
// unavailable.
type ArtifactVersion struct {
	Pkg     string
	Variant string

	// Upstream is the upstream version number of the native library. It is
	// never parsed or compared, and is meant for human consumption only.
	Upstream string

	// Revision is an incrementing integer starting at 1. Every time the
	// artifact is rebuilt from the same upstream version, it must be increased
	// by 1 so that e.g. tenstage fetch will see the new build. Even if
	// upstream versions change, the revision does not reset. E.g., 2.0.0-3
	// could be followed by 2.1.0-4.
	//
	// If the version could not be parsed, Revision is 0.
	Revision int64
}

func (av ArtifactVersion) String() string {
	return av.Pkg + "-" + av.Variant + "-" + av.Upstream + "-" + strconv.FormatInt(av.Revision, 10)
}

var fileExtensions = map[string]bool{
	"so":             true,
	"dylib":          true,
	"meta.textproto": true,
	"bundle":         true,
	"log":            true,
}

func stageLogFile(filename, full string) bool {
	parts := strings.Split(filename, "/")
	return parts[len(parts)-1] == "stage" && strings.HasSuffix(full, ".log")
}

// ParseVersion constructs an ArtifactVersion from filename,
// e.g. libdgl-cuda118-2.1.0-3, which parses into ArtifactVersion{Upstream:
// "2.1.0", Revision: 3}.
func ParseVersion(filename string) ArtifactVersion {
	// zero in on the correct path component first, if we can identify it
	var component string
	for _, c := range strings.Split(filename, "/") {
		if LikelyFullySpecified(c) {
			component = c
			break
		}
	}
	if component != "" {
		filename = component
	}

	var pkg, variant string
	parts := strings.Split(filename, "-")
	// Discard everything up to the variant identifier, including the first
	// minus-separated part following it (the upstream version).
	for i := 1; i < len(parts); i++ {
		if Variants[parts[i]] {
			pkg = strings.Join(parts[:i], "-")
			if idx := strings.LastIndexByte(pkg, '/'); idx > -1 {
				pkg = pkg[idx+1:]
			}
			variant = parts[i]
			parts = parts[i+1:]
			break
		}
	}
	if len(parts) == 0 {
		return ArtifactVersion{Pkg: pkg, Variant: variant}
	}
	if stageLogFile(parts[0], filename) {
		parts = parts[1:]
	}
	upstream := strings.Join(parts, "-")
	for ext := range fileExtensions {
		upstream = strings.TrimSuffix(upstream, "."+ext)
	}
	if idx := strings.IndexByte(upstream, '/'); idx > -1 {
		upstream = upstream[:idx] // constrain ourselves to this path component
	}
	if len(parts) <= 1 {
		return ArtifactVersion{Pkg: pkg, Variant: variant, Upstream: upstream}
	}
	rev := parts[len(parts)-1]
	if idx := strings.IndexByte(rev, '.'); idx > -1 {
		rev = rev[:idx] // strip any file extensions
	}
	if idx := strings.IndexByte(rev, '/'); idx > -1 {
		rev = rev[:idx] // constrain ourselves to this path component
	}
	revision, _ := strconv.ParseInt(rev, 0, 64)
	if revision > 0 {
		upstream = strings.Join(parts[:len(parts)-1], "-")
	}
	return ArtifactVersion{
		Pkg:      pkg,
		Variant:  variant,
		Upstream: upstream,
		Revision: revision,
	}
}

// RevisionLess returns true if the artifact revision extracted from filenameA
// is less than the one extracted from filenameB. This can be used with
// sort.Slice.
func RevisionLess(filenameA, filenameB string) bool {
	versionA := ParseVersion(filenameA).Revision
	versionB := ParseVersion(filenameB).Revision
	return versionA < versionB
}
