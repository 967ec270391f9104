// eastercompany/dex-voice-service/system/system.go

// Package system samples host resource usage for the status endpoint.
package system

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Usage is a point-in-time view of host and process resources.
type Usage struct {
	CPUPercent    float64  `json:"cpu_percent"`
	MemoryPercent float64  `json:"memory_percent"`
	ProcessRSSMB  float64  `json:"process_rss_mb"`
	GPU           *GPUInfo `json:"gpu,omitempty"`
}

// GetCPUUsage returns the current CPU usage as a percentage
func GetCPUUsage() (float64, error) {
	percentages, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, fmt.Errorf("could not get CPU usage")
	}
	return percentages[0], nil
}

// GetMemoryUsage returns the current memory usage as a percentage
func GetMemoryUsage() (float64, error) {
	virtualMem, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return virtualMem.UsedPercent, nil
}

// GetProcessRSS returns this process's resident memory in megabytes.
func GetProcessRSS() (float64, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	info, err := p.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return float64(info.RSS) / 1024 / 1024, nil
}

// Sample collects Usage. Readings that fail are left at zero and reported
// in the returned error list.
func Sample() (Usage, []error) {
	var (
		u    Usage
		errs []error
		err  error
	)
	if u.CPUPercent, err = GetCPUUsage(); err != nil {
		errs = append(errs, fmt.Errorf("cpu: %w", err))
	}
	if u.MemoryPercent, err = GetMemoryUsage(); err != nil {
		errs = append(errs, fmt.Errorf("memory: %w", err))
	}
	if u.ProcessRSSMB, err = GetProcessRSS(); err != nil {
		errs = append(errs, fmt.Errorf("process: %w", err))
	}
	if IsNvidiaGPUInstalled() {
		if u.GPU, err = GetGPUInfo(); err != nil {
			errs = append(errs, fmt.Errorf("gpu: %w", err))
		}
	}
	return u, errs
}
