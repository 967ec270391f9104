package reporting

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/EasterCompany/dex-voice-service/services"
	"github.com/EasterCompany/dex-voice-service/system"
)

func TestHumanReadableBytes(t *testing.T) {
	assert.Equal(t, "512 B", humanReadableBytes(512))
	assert.Equal(t, "1.0 KiB", humanReadableBytes(1024))
	assert.Equal(t, "1.5 MiB", humanReadableBytes(3<<19))
}

func TestBootReport(t *testing.T) {
	statuses := map[string]*services.ServiceStatus{
		"whisper": {Status: services.StatusOK, ResponseTime: 12},
		"ollama":  {Status: services.StatusBad, Error: "connection refused"},
		"redis":   {Status: services.StatusUnknown},
	}
	report := BootReport("1.2.0 (main@abc1234)",
		Stack{ASR: "whisper", LLM: "hf", Model: "tiny", TTS: "espeak", MaxTurns: 8},
		system.Usage{CPUPercent: 12.5, MemoryPercent: 40, ProcessRSSMB: 2},
		statuses,
		"**Cleanup**\n🧹 CleanAudioCache (redis audio): `-1`",
	)

	assert.True(t, strings.HasPrefix(report, "`dex-voice-service` 1.2.0 (main@abc1234) is online"))
	assert.Contains(t, report, "🖥️ CPU: `12.50%`")
	assert.Contains(t, report, "process `2.0 MiB`")
	assert.Contains(t, report, "❌ No Nvidia GPU Detected.")
	assert.Contains(t, report, "❌ ollama: **ERROR**: `connection refused`")
	assert.Contains(t, report, "✅ whisper: **OK** (`12ms`)")
	assert.Contains(t, report, "⚪ redis: `N/A`")
	assert.Contains(t, report, "voice `default`")
	assert.True(t, strings.HasSuffix(report, "`-1`"))

	// Services are listed in name order.
	assert.Less(t, strings.Index(report, "ollama"), strings.Index(report, "whisper"))
}

func TestBootReport_GPU(t *testing.T) {
	report := BootReport("dev", Stack{}, system.Usage{GPU: &system.GPUInfo{Utilization: 50, MemoryUsed: 1024, MemoryTotal: 8192}}, nil, "")
	assert.Contains(t, report, "🎮 GPU: `50.00%` (`1.0 GiB / 8.0 GiB`)")
	assert.NotContains(t, report, "Cleanup")
}
