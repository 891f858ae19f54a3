package tenstage

import "strings"

// Variants contains one entry for each known artifact variant identifier. The
// cpu variant is always buildable; the cudaNNN variants correspond to the CUDA
// toolkit versions for which prebuilt binaries exist.
var Variants = map[string]bool{
	"cpu":     true,
	"cuda102": true,
	"cuda110": true,
	"cuda113": true,
	"cuda116": true,
	"cuda117": true,
	"cuda118": true,
	"cuda121": true,
}

// CUDAVariant converts a CUDA toolkit version string such as "11.8" into the
// corresponding variant identifier (cuda118). ok is false if no prebuilt
// binaries exist for that toolkit version.
func CUDAVariant(cudaVer string) (variant string, ok bool) {
	v := "cuda" + strings.ReplaceAll(cudaVer, ".", "")
	return v, Variants[v]
}

// HasVariantSuffix reports whether pkg ends in a variant identifier
// (e.g. libdgl-cuda118) and returns the identifier.
func HasVariantSuffix(pkg string) (variantIdentifier string, ok bool) {
	for v := range Variants {
		// unversioned, but ending in a variant already (e.g. libdgl-cpu)
		if strings.HasSuffix(pkg, "-"+v) {
			return v, true
		}
	}
	return "", false
}

// LikelyFullySpecified returns true if the provided pkg contains a variant
// identifier in the middle, e.g. libdgl-cuda118-2.1.0.
func LikelyFullySpecified(pkg string) bool {
	for v := range Variants {
		if strings.Contains(pkg, "-"+v+"-") {
			return true
		}
	}
	return false
}
