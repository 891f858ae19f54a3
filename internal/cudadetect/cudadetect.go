// Package cudadetect resolves which artifact variant (cpu or cudaNNN) to
// stage. CUDA detection via NVML is only compiled in with the cuda build tag;
// without it, detection falls back to nvidia-smi.
package cudadetect

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/tenstage/tenstage"
)

// GPU describes one detected device.
type GPU struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	MemoryMB uint64 `json:"memory_mb"`
}

// Report is the result of a CUDA probe.
type Report struct {
	// NVMLOk is true if NVML could be initialized (requires the cuda build
	// tag and a working driver).
	NVMLOk bool `json:"nvml_ok"`

	DriverVersion string `json:"driver_version,omitempty"`

	// CUDAVersion is the driver CUDA version as "major.minor", e.g. "12.1".
	CUDAVersion string `json:"cuda_version,omitempty"`

	// Variant is the newest supported artifact variant usable with the
	// detected driver, empty if none.
	Variant string `json:"variant,omitempty"`

	GPUs []GPU `json:"gpus,omitempty"`

	Error string `json:"error,omitempty"`
}

// useCUDAEnv reports whether USE_CUDA requests a CUDA build
// (the build scripts accept 1/ON/yes/true).
func useCUDAEnv() bool {
	switch strings.ToLower(os.Getenv("USE_CUDA")) {
	case "1", "on", "yes", "true":
		return true
	}
	return false
}

// smiAvailable is a quick pre-flight check without NVML.
func smiAvailable() bool {
	return exec.Command("nvidia-smi").Run() == nil
}

// variantVersion parses a variant identifier such as cuda118 into a
// comparable number (11*100 + 8). The last digit is the minor version.
func variantVersion(v string) (int, bool) {
	num := strings.TrimPrefix(v, "cuda")
	if num == v || len(num) < 2 {
		return 0, false
	}
	major, err := strconv.Atoi(num[:len(num)-1])
	if err != nil {
		return 0, false
	}
	minor := int(num[len(num)-1] - '0')
	if minor < 0 || minor > 9 {
		return 0, false
	}
	return major*100 + minor, true
}

// driverVersion parses a driver CUDA version such as "12.1" into the same
// comparable form as variantVersion.
func driverVersion(cudaVer string) (int, bool) {
	parts := strings.SplitN(cudaVer, ".", 2)
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	var minor int
	if len(parts) == 2 {
		minor, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, false
		}
	}
	return major*100 + minor, true
}

// variantForCUDAVersion maps a driver CUDA version such as "12.0" to the
// newest supported variant not newer than it, e.g. a 12.0 driver can load
// cuda118 binaries. Drivers older than every variant (e.g. "9.0") map to the
// empty string.
func variantForCUDAVersion(cudaVer string) string {
	if v, ok := tenstage.CUDAVariant(cudaVer); ok {
		return v
	}
	driver, ok := driverVersion(cudaVer)
	if !ok {
		return ""
	}
	best := ""
	bestVer := -1
	for v := range tenstage.Variants {
		if v == "cpu" {
			continue
		}
		ver, ok := variantVersion(v)
		if !ok || ver > driver {
			continue
		}
		if ver > bestVer {
			best, bestVer = v, ver
		}
	}
	return best
}

// ResolveVariant decides which variant to stage. Precedence: the explicit
// -variant flag value, then the USE_CUDA/CUDA_VER environment (the contract of
// the surrounding build scripts), then cpu. explicit == "auto" probes the
// driver. CUDA is never chosen implicitly: without USE_CUDA or an explicit
// request, the result is cpu.
func ResolveVariant(explicit string) (string, error) {
	switch {
	case explicit == "auto":
		rep := Probe()
		if rep.Variant != "" {
			return rep.Variant, nil
		}
		return "cpu", nil

	case explicit != "":
		if !tenstage.Variants[explicit] {
			return "", fmt.Errorf("unknown variant %q", explicit)
		}
		return explicit, nil
	}

	if !useCUDAEnv() {
		return "cpu", nil
	}
	if cudaVer := os.Getenv("CUDA_VER"); cudaVer != "" {
		v, ok := tenstage.CUDAVariant(cudaVer)
		if !ok {
			return "", fmt.Errorf("no prebuilt binaries for CUDA_VER=%s", cudaVer)
		}
		return v, nil
	}
	rep := Probe()
	if rep.Variant == "" {
		return "", fmt.Errorf("USE_CUDA set, but no usable CUDA driver detected (%s)", rep.Error)
	}
	return rep.Variant, nil
}
