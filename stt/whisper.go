package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/EasterCompany/dex-voice-service/backend"
)

const (
	// defaultNoSpeechProb is assumed when the server reports no segments.
	defaultNoSpeechProb = 0.2
	maxErrorBody        = 512
)

// WhisperConfig configures the local whisper engine.
type WhisperConfig struct {
	// URL of a whisper.cpp compatible inference endpoint.
	URL string
	// Model name forwarded to servers that host more than one model.
	Model   string
	Timeout time.Duration
}

// Whisper transcribes audio with a locally hosted whisper model served over
// HTTP.
type Whisper struct {
	httpClient *http.Client
	URL        string
	Model      string
}

type whisperSegment struct {
	Text         string  `json:"text"`
	NoSpeechProb float64 `json:"no_speech_prob"`
}

type whisperResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language,omitempty"`
	Segments []whisperSegment `json:"segments,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// NewWhisper creates a whisper engine.
func NewWhisper(cfg WhisperConfig) *Whisper {
	if cfg.URL == "" {
		cfg.URL = "http://localhost:8080/inference"
	}
	if cfg.Model == "" {
		cfg.Model = "base"
	}
	return &Whisper{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		URL:        cfg.URL,
		Model:      cfg.Model,
	}
}

func (w *Whisper) Name() string {
	return EngineWhisper
}

// Transcribe uploads the audio and derives confidence from the first
// segment's no-speech probability.
func (w *Whisper) Transcribe(ctx context.Context, audio []byte, _ Credentials) (Result, error) {
	body, contentType, err := w.buildForm(audio)
	if err != nil {
		return Result{}, fmt.Errorf("whisper: failed to build request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, body)
	if err != nil {
		return Result{}, fmt.Errorf("whisper: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("whisper: %w", ctx.Err())
		}
		return Result{}, backend.Unavailable(EngineWhisper, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Result{}, &backend.ServiceError{
			Backend:    EngineWhisper,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(errBody)),
		}
	}

	var decoded whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, &backend.ServiceError{
			Backend:    EngineWhisper,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to decode response: %w", err),
		}
	}
	if decoded.Error != "" {
		return Result{}, &backend.ServiceError{
			Backend:    EngineWhisper,
			StatusCode: resp.StatusCode,
			Body:       decoded.Error,
		}
	}

	return whisperResult(decoded), nil
}

func (w *Whisper) buildForm(audio []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}
	fields := map[string]string{
		"model":           w.Model,
		"response_format": "verbose_json",
		"temperature":     "0.0",
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func whisperResult(r whisperResponse) Result {
	text := strings.TrimSpace(r.Text)
	if text == "" {
		return Result{}
	}
	noSpeech := defaultNoSpeechProb
	if len(r.Segments) > 0 {
		noSpeech = r.Segments[0].NoSpeechProb
	}
	return Result{Text: text, Confidence: clampConfidence(1 - noSpeech)}
}
