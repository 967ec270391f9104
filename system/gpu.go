package system

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// GPUInfo describes the first NVIDIA GPU, which a local whisper server
// usually runs on. Memory is in MiB.
type GPUInfo struct {
	Utilization float64 `json:"utilization"`
	MemoryUsed  float64 `json:"memory_used_mib"`
	MemoryTotal float64 `json:"memory_total_mib"`
}

func GetGPUInfo() (*GPUInfo, error) {
	cmd := exec.Command("nvidia-smi", "--query-gpu=utilization.gpu,memory.used,memory.total", "--format=csv,noheader,nounits")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("nvidia-smi command failed: %w", err)
	}
	return parseGPUInfo(string(output))
}

// parseGPUInfo reads the first line of nvidia-smi CSV output.
func parseGPUInfo(output string) (*GPUInfo, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return nil, fmt.Errorf("unexpected output format from nvidia-smi: got %d fields, expected 3", len(fields))
	}

	values := make([]float64, len(fields))
	names := []string{"GPU utilization", "used GPU memory", "total GPU memory"}
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", names[i], err)
		}
		values[i] = v
	}

	return &GPUInfo{
		Utilization: values[0],
		MemoryUsed:  values[1],
		MemoryTotal: values[2],
	}, nil
}

func IsNvidiaGPUInstalled() bool {
	_, err := exec.LookPath("nvidia-smi")
	return err == nil
}
