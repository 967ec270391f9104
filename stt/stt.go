// eastercompany/dex-voice-service/stt/stt.go

// Package stt converts recorded speech into text through interchangeable
// recognition engines.
package stt

import (
	"context"
	"fmt"

	"github.com/EasterCompany/dex-voice-service/backend"
)

// Engine names known to the service.
const (
	EngineWhisper = "whisper"
	EngineGoogle  = "google"
)

// Result is a single transcription. Text may be empty when no speech was
// recognized, in which case Confidence is zero.
//
// Confidence is an engine-specific quality proxy in [0,1], not a calibrated
// probability. Values from different engines are not comparable and must not
// be used to rank engines against each other.
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Credentials carries per-call secrets for engines backed by a cloud service.
// Engines that need none ignore it.
type Credentials struct {
	APIKey string
}

// Engine is a speech-to-text implementation. Recognition that finds no speech
// returns an empty Result and a nil error; failures to reach the backing
// service wrap backend.ErrServiceUnavailable. Engines never retry.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, audio []byte, creds Credentials) (Result, error)
}

// NewRegistry registers the given engines and makes fallback the engine used
// when a caller asks for none or for an unknown one.
func NewRegistry(fallback string, engines ...Engine) (*backend.Registry[Engine], error) {
	r := backend.NewRegistry[Engine](backend.StageASR)
	for _, e := range engines {
		if err := r.Register(e.Name(), e); err != nil {
			return nil, fmt.Errorf("failed to register speech engine: %w", err)
		}
	}
	if err := r.SetFallback(fallback); err != nil {
		return nil, fmt.Errorf("failed to set default speech engine: %w", err)
	}
	return r, nil
}

// clampConfidence keeps engine heuristics inside [0,1].
func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
