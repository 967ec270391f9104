// Package reporting builds the status report posted to the log channel once
// the service has booted.
package reporting

import (
	"fmt"
	"sort"
	"strings"

	"github.com/EasterCompany/dex-voice-service/services"
	"github.com/EasterCompany/dex-voice-service/system"
)

// Stack names the stage backends selected at boot.
type Stack struct {
	ASR      string
	LLM      string
	Model    string
	TTS      string
	Voice    string
	MaxTurns int
}

func humanReadableBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

func formatSystemStatus(u system.Usage) string {
	gpuInfoStr := "❌ No Nvidia GPU Detected."
	if u.GPU != nil {
		gpuInfoStr = fmt.Sprintf("🎮 GPU: `%.2f%%` (`%s / %s`)", u.GPU.Utilization,
			humanReadableBytes(uint64(u.GPU.MemoryUsed*1024*1024)), humanReadableBytes(uint64(u.GPU.MemoryTotal*1024*1024)))
	}

	return strings.Join([]string{
		"**System Status**",
		fmt.Sprintf("🖥️ CPU: `%.2f%%`", u.CPUPercent),
		fmt.Sprintf("🧠 Memory: `%.2f%%` (process `%s`)", u.MemoryPercent, humanReadableBytes(uint64(u.ProcessRSSMB*1024*1024))),
		gpuInfoStr,
	}, "\n")
}

func formatServiceStatus(statuses map[string]*services.ServiceStatus) string {
	names := make([]string, 0, len(statuses))
	for name := range statuses {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := []string{"**Service Status**"}
	for _, name := range names {
		s := statuses[name]
		switch s.Status {
		case services.StatusOK:
			lines = append(lines, fmt.Sprintf("✅ %s: **OK** (`%dms`)", name, s.ResponseTime))
		case services.StatusBad:
			lines = append(lines, fmt.Sprintf("❌ %s: **ERROR**: `%s`", name, s.Error))
		default:
			lines = append(lines, fmt.Sprintf("⚪ %s: `%s`", name, s.Status))
		}
	}
	return strings.Join(lines, "\n")
}

func formatStack(st Stack) string {
	voice := st.Voice
	if voice == "" {
		voice = "default"
	}
	return strings.Join([]string{
		"**Pipeline**",
		fmt.Sprintf("🎧 Speech to text: `%s`", st.ASR),
		fmt.Sprintf("🤖 Replies: `%s` (`%s`)", st.LLM, st.Model),
		fmt.Sprintf("🔊 Speech: `%s` (voice `%s`)", st.TTS, voice),
		fmt.Sprintf("💬 History: `%d turns`", st.MaxTurns),
	}, "\n")
}

// BootReport renders the final boot status. cleanupReport is included as is
// when not empty.
func BootReport(version string, st Stack, usage system.Usage, statuses map[string]*services.ServiceStatus, cleanupReport string) string {
	sections := []string{
		fmt.Sprintf("`dex-voice-service` %s is online", version),
		formatSystemStatus(usage),
		formatServiceStatus(statuses),
		formatStack(st),
	}
	if cleanupReport != "" {
		sections = append(sections, cleanupReport)
	}
	return strings.Join(sections, "\n\n")
}
