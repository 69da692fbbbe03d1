package system

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Stats is a point-in-time resource snapshot used in the capture report
type Stats struct {
	RSSBytes       uint64
	CPUPercent     float64
	HostMemPercent float64
}

// CollectStats reads resource usage of the current process and host memory.
func CollectStats() (Stats, error) {
	var s Stats

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return s, fmt.Errorf("process stats: %w", err)
	}

	if mi, err := proc.MemoryInfo(); err == nil {
		s.RSSBytes = mi.RSS
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		s.CPUPercent = cpu
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return s, fmt.Errorf("host memory: %w", err)
	}
	s.HostMemPercent = vm.UsedPercent

	return s, nil
}

func (s Stats) String() string {
	return fmt.Sprintf("RSS: %.1f MB | CPU: %.1f%% | Host RAM: %.1f%%",
		float64(s.RSSBytes)/(1024*1024), s.CPUPercent, s.HostMemPercent)
}
