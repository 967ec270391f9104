// Package endpoints exposes the voice turn over HTTP.
package endpoints

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/EasterCompany/dex-voice-service/pipeline"
	"github.com/EasterCompany/dex-voice-service/stt"
)

// Orchestrator runs the turn stages behind the endpoints.
type Orchestrator interface {
	Transcribe(ctx context.Context, audio []byte, engine string) (stt.Result, error)
	Reply(ctx context.Context, text string) (string, error)
	Speak(ctx context.Context, text string) (pipeline.Speech, error)
	Reset()
}

// AudioLoader returns previously synthesized audio by key.
type AudioLoader interface {
	LoadAudio(ctx context.Context, key string) ([]byte, error)
}

// Options configures the HTTP surface.
type Options struct {
	Addr           string
	ClientHTML     string
	MaxUploadBytes int64
	// RateLimit is requests per second across all callers; zero disables it.
	RateLimit float64
	RateBurst int
	// Audio serves GET /audio/{key}; nil disables the route.
	Audio AudioLoader
}

// Server is the public HTTP server of the service.
type Server struct {
	orch Orchestrator
	opts Options
	srv  *http.Server
}

// NewServer creates a Server. Call Start to begin serving.
func NewServer(orch Orchestrator, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 25 << 20
	}
	s := &Server{orch: orch, opts: opts}
	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.HomeHandler)
	mux.HandleFunc("/reset", s.ResetHandler)
	mux.HandleFunc("/transcribe", s.TranscribeHandler)
	mux.HandleFunc("/reply", s.ReplyHandler)
	mux.HandleFunc("/speak", s.SpeakHandler)
	if s.opts.Audio != nil {
		mux.HandleFunc("/audio/", s.AudioHandler)
	}

	return Chain(
		RecoveryMiddleware(),
		LoggingMiddleware(),
		CORSMiddleware(),
		RateLimitMiddleware(s.opts.RateLimit, s.opts.RateBurst),
	)(mux)
}

// Start listens in the background. Errors other than a clean shutdown are
// logged.
func (s *Server) Start() {
	log.Printf("[HTTP] Starting voice server on %s", s.srv.Addr)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[HTTP] Server error: %v", err)
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
