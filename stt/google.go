package stt

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/status"

	"github.com/EasterCompany/dex-voice-service/audio"
	"github.com/EasterCompany/dex-voice-service/backend"
)

const (
	// defaultGoogleConfidence stands in when the service omits a score.
	defaultGoogleConfidence = 0.8
	// syncRecognizeLimit is the longest audio accepted by synchronous Recognize.
	syncRecognizeLimit = 55 * time.Second
)

// speechAPI is the subset of the Cloud Speech client used by Google.
type speechAPI interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)
	LongRunningRecognize(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error)
	Close() error
}

type cloudSpeech struct {
	client *speech.Client
}

func (c cloudSpeech) Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	return c.client.Recognize(ctx, req)
}

func (c cloudSpeech) LongRunningRecognize(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
	op, err := c.client.LongRunningRecognize(ctx, req)
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}

func (c cloudSpeech) Close() error {
	return c.client.Close()
}

// GoogleConfig configures the Google Cloud Speech engine.
type GoogleConfig struct {
	// APIKey is used when the caller supplies no credentials. When both are
	// empty the client relies on Application Default Credentials.
	APIKey       string
	LanguageCode string
}

// Google transcribes audio with Google Cloud Speech-to-Text. One client is
// kept per distinct API key and reused across calls.
type Google struct {
	apiKey   string
	language string
	dial     func(ctx context.Context, opts ...option.ClientOption) (speechAPI, error)

	mu      sync.Mutex
	clients map[string]speechAPI
}

// NewGoogle creates a Google engine. Clients are created lazily on first use.
func NewGoogle(cfg GoogleConfig) *Google {
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	return &Google{
		apiKey:   cfg.APIKey,
		language: cfg.LanguageCode,
		dial:     dialCloudSpeech,
		clients:  make(map[string]speechAPI),
	}
}

func dialCloudSpeech(ctx context.Context, opts ...option.ClientOption) (speechAPI, error) {
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return cloudSpeech{client: client}, nil
}

func (g *Google) Name() string {
	return EngineGoogle
}

// Transcribe sends LINEAR16 audio to the service. Audio longer than the
// synchronous limit goes through the long-running API.
func (g *Google) Transcribe(ctx context.Context, data []byte, creds Credentials) (Result, error) {
	format, pcm, err := audio.ParseWAV(data)
	if err != nil {
		return Result{}, fmt.Errorf("google: %w", err)
	}
	if format.BitsPerSample != 16 {
		return Result{}, fmt.Errorf("google: %w: need 16-bit samples, got %d", audio.ErrInvalidWAV, format.BitsPerSample)
	}

	client, err := g.client(ctx, creds)
	if err != nil {
		return Result{}, backend.Unavailable(EngineGoogle, err)
	}

	config := &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz:            int32(format.SampleRate),
		AudioChannelCount:          int32(format.Channels),
		LanguageCode:               g.language,
		EnableAutomaticPunctuation: true,
	}
	content := &speechpb.RecognitionAudio{
		AudioSource: &speechpb.RecognitionAudio_Content{Content: pcm},
	}

	var results []*speechpb.SpeechRecognitionResult
	if format.Duration(len(pcm)) > syncRecognizeLimit {
		resp, err := client.LongRunningRecognize(ctx, &speechpb.LongRunningRecognizeRequest{Config: config, Audio: content})
		if err != nil {
			return Result{}, googleError(ctx, err)
		}
		results = resp.GetResults()
	} else {
		resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{Config: config, Audio: content})
		if err != nil {
			return Result{}, googleError(ctx, err)
		}
		results = resp.GetResults()
	}

	return googleResult(results), nil
}

// Close releases every cached client.
func (g *Google) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for key, c := range g.clients {
		if err := c.Close(); err != nil {
			log.Printf("[STT] failed to close speech client: %v", err)
		}
		delete(g.clients, key)
	}
}

func (g *Google) client(ctx context.Context, creds Credentials) (speechAPI, error) {
	key := creds.APIKey
	if key == "" {
		key = g.apiKey
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[key]; ok {
		return c, nil
	}

	var opts []option.ClientOption
	if key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}
	c, err := g.dial(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	g.clients[key] = c
	return c, nil
}

func googleError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("google: %w", ctx.Err())
	}
	return backend.Unavailable(EngineGoogle, fmt.Errorf("recognize failed (%s): %w", status.Code(err), err))
}

// googleResult joins the top alternative of every result. Confidence is the
// mean of the scores the service reported.
func googleResult(results []*speechpb.SpeechRecognitionResult) Result {
	var (
		parts  []string
		sum    float64
		scored int
	)
	for _, r := range results {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
			parts = append(parts, t)
		}
		if c := alts[0].GetConfidence(); c > 0 {
			sum += float64(c)
			scored++
		}
	}

	text := strings.Join(parts, " ")
	if text == "" {
		return Result{}
	}
	confidence := defaultGoogleConfidence
	if scored > 0 {
		confidence = sum / float64(scored)
	}
	return Result{Text: text, Confidence: clampConfidence(confidence)}
}
