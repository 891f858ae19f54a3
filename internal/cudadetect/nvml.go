//go:build cuda

package cudadetect

import (
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// Probe initializes NVML and reports driver, CUDA version and devices.
func Probe() Report {
	var rep Report
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		rep.Error = fmt.Sprintf("NVML init: %v", nvml.ErrorString(ret))
		return rep
	}
	defer nvml.Shutdown()
	rep.NVMLOk = true

	if v, ret := nvml.SystemGetDriverVersion(); ret == nvml.SUCCESS {
		rep.DriverVersion = v
	}
	if v, ret := nvml.SystemGetCudaDriverVersion(); ret == nvml.SUCCESS {
		// encoded as 1000*major + 10*minor, e.g. 12010 for CUDA 12.1
		rep.CUDAVersion = fmt.Sprintf("%d.%d", v/1000, (v%1000)/10)
		rep.Variant = variantForCUDAVersion(rep.CUDAVersion)
	}

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		rep.Error = fmt.Sprintf("device count: %v", nvml.ErrorString(ret))
		return rep
	}
	if count == 0 {
		// a driver without devices cannot run CUDA binaries
		rep.Variant = ""
		rep.Error = "no NVIDIA devices"
		return rep
	}
	for i := 0; i < count; i++ {
		dev, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			continue
		}
		gpu := GPU{Index: i}
		if name, ret := dev.GetName(); ret == nvml.SUCCESS {
			gpu.Name = name
		}
		if mem, ret := dev.GetMemoryInfo(); ret == nvml.SUCCESS {
			gpu.MemoryMB = mem.Total / 1024 / 1024
		}
		rep.GPUs = append(rep.GPUs, gpu)
	}
	return rep
}
