// eastercompany/dex-voice-service/tts/tts.go

// Package tts renders reply text as WAV audio.
package tts

import (
	"context"
	"fmt"
	"strings"

	"github.com/EasterCompany/dex-voice-service/backend"
)

// EngineEspeak is the espeak-ng command line synthesizer.
const EngineEspeak = "espeak"

// DefaultRate is the speaking rate in words per minute.
const DefaultRate = 170

// ScratchPrefix names the temporary directories synthesis renders into.
const ScratchPrefix = "dex-voice-tts"

// VoiceConfig tunes one synthesis call. An empty Voice selects the engine's
// default voice.
type VoiceConfig struct {
	Rate  int
	Voice string
}

// Voice describes a voice an engine can speak with.
type Voice struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	// File is the engine's own identifier for the voice.
	File string `json:"file"`
}

// Engine is a text-to-speech implementation. Synthesize returns a complete
// WAV file; any failure, including empty audio, wraps backend.ErrSynthesis.
type Engine interface {
	Name() string
	Synthesize(ctx context.Context, text string, cfg VoiceConfig) ([]byte, error)
}

// MatchVoice returns the first voice whose name contains want,
// case-insensitively. It reports false when want is empty or nothing matches.
func MatchVoice(voices []Voice, want string) (Voice, bool) {
	want = strings.ToLower(strings.TrimSpace(want))
	if want == "" {
		return Voice{}, false
	}
	for _, v := range voices {
		if strings.Contains(strings.ToLower(v.Name), want) {
			return v, true
		}
	}
	return Voice{}, false
}

// NewRegistry registers the given engines. The first one becomes the
// fallback.
func NewRegistry(engines ...Engine) (*backend.Registry[Engine], error) {
	r := backend.NewRegistry[Engine](backend.StageTTS)
	for _, e := range engines {
		if err := r.Register(e.Name(), e); err != nil {
			return nil, fmt.Errorf("failed to register speech synthesizer: %w", err)
		}
	}
	if len(engines) > 0 {
		if err := r.SetFallback(engines[0].Name()); err != nil {
			return nil, err
		}
	}
	return r, nil
}
