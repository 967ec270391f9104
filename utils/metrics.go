package utils

import "sync/atomic"

// Metrics holds counters for service operations
var (
	transcriptions  int64
	replies         int64
	syntheses       int64
	resets          int64
	stageFailures   int64
	eventsPublished int64
)

// IncrementTranscriptions atomically increments the transcriptions counter
func IncrementTranscriptions() {
	atomic.AddInt64(&transcriptions, 1)
}

// IncrementReplies atomically increments the completed replies counter
func IncrementReplies() {
	atomic.AddInt64(&replies, 1)
}

// IncrementSyntheses atomically increments the syntheses counter
func IncrementSyntheses() {
	atomic.AddInt64(&syntheses, 1)
}

// IncrementResets atomically increments the conversation resets counter
func IncrementResets() {
	atomic.AddInt64(&resets, 1)
}

// IncrementStageFailures atomically increments the failed stage calls counter
func IncrementStageFailures() {
	atomic.AddInt64(&stageFailures, 1)
}

// IncrementEventsPublished atomically increments the events published counter
func IncrementEventsPublished() {
	atomic.AddInt64(&eventsPublished, 1)
}

// GetMetrics returns the current metrics as a map
func GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"transcriptions":   atomic.LoadInt64(&transcriptions),
		"replies":          atomic.LoadInt64(&replies),
		"syntheses":        atomic.LoadInt64(&syntheses),
		"resets":           atomic.LoadInt64(&resets),
		"stage_failures":   atomic.LoadInt64(&stageFailures),
		"events_published": atomic.LoadInt64(&eventsPublished),
	}
}
