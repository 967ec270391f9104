// Package cleanup removes what a previous run of the service left behind.
package cleanup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logger "github.com/EasterCompany/dex-voice-service/log"
)

// Result holds the outcome of a cleanup task.
type Result struct {
	Name        string
	Count       int
	Description string
}

// AudioCleaner drops cached audio.
type AudioCleaner interface {
	CleanAllAudio(ctx context.Context) (int64, error)
}

// CleanAudioCache removes every cached reply. A nil cleaner means no cache
// is configured.
func CleanAudioCache(ctx context.Context, c AudioCleaner) Result {
	res := Result{Name: "CleanAudioCache", Description: "redis audio"}
	if c == nil {
		res.Description = "no cache"
		return res
	}
	n, err := c.CleanAllAudio(ctx)
	if err != nil {
		logger.Error("Could not clean cached audio", err)
		return res
	}
	res.Count = int(n)
	return res
}

// CleanScratchDirs removes scratch directories under dir whose name starts
// with prefix and that were last modified more than olderThan ago. Younger
// directories may belong to a synthesis still in flight.
func CleanScratchDirs(dir, prefix string, olderThan time.Duration) Result {
	res := Result{Name: "CleanScratchDirs", Description: filepath.Join(dir, prefix+"-*")}
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Error(fmt.Sprintf("Could not read %s", dir), err)
		return res
	}

	cutoff := time.Now().Add(-olderThan)
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix+"-") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			logger.Error(fmt.Sprintf("Could not remove %s", entry.Name()), err)
			continue
		}
		res.Count++
	}
	return res
}

// Report formats results for the boot report. Tasks that removed nothing
// are still listed.
func Report(results []Result) string {
	lines := []string{"**Cleanup**"}
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("🧹 %s (%s): `-%d`", r.Name, r.Description, r.Count))
	}
	return strings.Join(lines, "\n")
}
