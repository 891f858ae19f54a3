//go:build !cuda

package cudadetect

// Probe reports CUDA availability without NVML. Builds without the cuda tag
// only have the nvidia-smi pre-flight check, which cannot name a driver CUDA
// version, so no variant is chosen.
func Probe() Report {
	if smiAvailable() {
		return Report{Error: "NVML disabled: rebuild with -tags cuda, or set CUDA_VER"}
	}
	return Report{Error: "no NVIDIA driver detected"}
}
