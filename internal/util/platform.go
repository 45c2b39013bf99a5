package util

import (
	"os"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

const mib = 1 << 20

// HostInfo describes the machine the relay runs on. It is logged at startup
// and attached to telemetry.
type HostInfo struct {
	Hostname string `json:"hostname"`
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	CPUModel string `json:"cpu_model,omitempty"`
	CPUs     int    `json:"cpus"`
	MemoryMB uint64 `json:"memory_mb"`
}

// GetHostInfo gathers what gopsutil can tell about the host. Fields it
// cannot read are left empty.
func GetHostInfo() HostInfo {
	info := HostInfo{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
		CPUs: runtime.NumCPU(),
	}
	if name, err := os.Hostname(); err == nil {
		info.Hostname = name
	}
	if h, err := host.Info(); err == nil {
		info.OS = strings.TrimSpace(h.Platform + " " + h.PlatformVersion)
	}
	if cpus, err := cpu.Info(); err == nil && len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemoryMB = vm.Total / mib
	}
	return info
}

// ResourceUsage is a point-in-time reading of the host and of the relay
// process itself.
type ResourceUsage struct {
	HostCPUPercent    float64 `json:"host_cpu_percent"`
	HostMemoryPercent float64 `json:"host_memory_percent"`
	ProcessRSSMB      uint64  `json:"process_rss_mb"`
	ProcessThreads    int32   `json:"process_threads"`
	Goroutines        int     `json:"goroutines"`

	// DataDir is the free space where the journal lives, if one is set.
	DataDir *DiskSpace `json:"data_dir,omitempty"`
}

// DiskSpace is the capacity of the filesystem holding a directory.
type DiskSpace struct {
	Path        string  `json:"path"`
	FreeMB      uint64  `json:"free_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// ReadResourceUsage samples current usage. An empty dataDir skips the disk
// reading. Readings that fail stay zero.
func ReadResourceUsage(dataDir string) ResourceUsage {
	u := ResourceUsage{Goroutines: runtime.NumGoroutine()}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		u.HostCPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		u.HostMemoryPercent = vm.UsedPercent
	}
	if self, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := self.MemoryInfo(); err == nil {
			u.ProcessRSSMB = mi.RSS / mib
		}
		if n, err := self.NumThreads(); err == nil {
			u.ProcessThreads = n
		}
	}
	if dataDir != "" {
		if d, err := disk.Usage(dataDir); err == nil {
			u.DataDir = &DiskSpace{Path: dataDir, FreeMB: d.Free / mib, UsedPercent: d.UsedPercent}
		}
	}
	return u
}
