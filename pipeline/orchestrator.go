// Package pipeline runs the stages of a voice turn against the shared
// conversation.
//
// The transport composes a turn from separate calls:
//
//	res, err := o.Transcribe(ctx, wav, "whisper")
//	reply, err := o.Reply(ctx, res.Text)
//	speech, err := o.Speak(ctx, reply)
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/EasterCompany/dex-voice-service/backend"
	"github.com/EasterCompany/dex-voice-service/conversation"
	"github.com/EasterCompany/dex-voice-service/llm"
	"github.com/EasterCompany/dex-voice-service/stt"
	"github.com/EasterCompany/dex-voice-service/tts"
	"github.com/EasterCompany/dex-voice-service/utils"
)

const publishTimeout = 2 * time.Second

// AudioStore keeps synthesized audio for later retrieval.
type AudioStore interface {
	SaveAudio(ctx context.Context, data []byte, ttl time.Duration) (string, error)
}

// EventPublisher announces completed turns.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event any) error
}

// Config holds the per-process stage selections.
type Config struct {
	// LLMBackend names the reply generator; unknown names use the registry
	// fallback.
	LLMBackend string
	// TTSEngine names the synthesizer; empty selects the registry fallback.
	TTSEngine   string
	Voice       tts.VoiceConfig
	Credentials stt.Credentials
	// StageTimeout bounds each backend call. Zero means no extra bound.
	StageTimeout time.Duration
	AudioTTL     time.Duration
}

// Speech is synthesized audio. Key is set when the audio was stored.
type Speech struct {
	Audio []byte
	Key   string
}

// TurnEvent is published after every completed reply.
type TurnEvent struct {
	Type      string    `json:"type"`
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	Backend   string    `json:"backend"`
	History   int       `json:"history"`
	Timestamp time.Time `json:"timestamp"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAudioStore stores every synthesized reply in s.
func WithAudioStore(s AudioStore) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithPublisher publishes a TurnEvent after every completed reply.
func WithPublisher(p EventPublisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

// Orchestrator owns the single conversation of the process. Reply and Reset
// are serialized by one lock, so a turn's add-user, generate and
// add-assistant never interleave with another turn. Transcribe and Speak do
// not touch the conversation and run concurrently.
type Orchestrator struct {
	state *conversation.State
	asr   *backend.Registry[stt.Engine]
	llm   *backend.Registry[llm.Backend]
	tts   *backend.Registry[tts.Engine]
	cfg   Config

	store  AudioStore
	events EventPublisher

	turnMu sync.Mutex
}

// New creates an Orchestrator over the given conversation and stage
// registries.
func New(state *conversation.State, asr *backend.Registry[stt.Engine], gen *backend.Registry[llm.Backend], synth *backend.Registry[tts.Engine], cfg Config, opts ...Option) (*Orchestrator, error) {
	switch {
	case state == nil:
		return nil, errors.New("conversation state is required")
	case asr == nil:
		return nil, errors.New("speech recognition registry is required")
	case gen == nil:
		return nil, errors.New("reply generation registry is required")
	case synth == nil:
		return nil, errors.New("speech synthesis registry is required")
	}

	o := &Orchestrator{
		state: state,
		asr:   asr,
		llm:   gen,
		tts:   synth,
		cfg:   cfg,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Transcribe runs speech recognition with the named engine. It never
// changes the conversation.
func (o *Orchestrator) Transcribe(ctx context.Context, audio []byte, engine string) (stt.Result, error) {
	e, name, err := o.asr.Resolve(engine)
	if err != nil {
		return stt.Result{}, err
	}

	ctx, cancel := o.stageContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := e.Transcribe(ctx, audio, o.cfg.Credentials)
	if err != nil {
		utils.IncrementStageFailures()
		return stt.Result{}, fmt.Errorf("transcribe with %s: %w", name, err)
	}
	utils.IncrementTranscriptions()
	log.Printf("[PIPELINE] %s transcribed %d bytes in %s (confidence %.2f)", name, len(audio), time.Since(start).Round(time.Millisecond), res.Confidence)
	return res, nil
}

// Reply records text as the user's turn, generates the assistant's answer
// from the conversation and records it. When generation fails the user
// message stays in the conversation and no assistant message is added.
func (o *Orchestrator) Reply(ctx context.Context, text string) (string, error) {
	gen, name, err := o.llm.Resolve(o.cfg.LLMBackend)
	if err != nil {
		return "", err
	}

	start := time.Now()
	ev, err := o.takeTurn(ctx, gen, name, text)
	if err != nil {
		return "", err
	}
	log.Printf("[PIPELINE] %s replied in %s (%d messages in history)", name, time.Since(start).Round(time.Millisecond), ev.History)

	// The turn lock is released before publishing.
	o.publish(ctx, ev)
	return ev.Assistant, nil
}

// takeTurn runs the locked part of Reply: it records the user message,
// generates from the resulting history and records the reply.
func (o *Orchestrator) takeTurn(ctx context.Context, gen llm.Backend, name, text string) (TurnEvent, error) {
	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	o.state.AddUser(text)
	history := o.state.Snapshot()

	stageCtx, cancel := o.stageContext(ctx)
	defer cancel()

	reply, err := gen.Generate(stageCtx, history)
	if err != nil {
		utils.IncrementStageFailures()
		return TurnEvent{}, fmt.Errorf("reply with %s: %w", name, err)
	}

	o.state.AddAssistant(reply)
	utils.IncrementReplies()

	return TurnEvent{
		Type:      "turn",
		User:      text,
		Assistant: reply,
		Backend:   name,
		History:   o.state.Len(),
		Timestamp: time.Now(),
	}, nil
}

// Speak synthesizes text with the configured voice. It never changes the
// conversation. When an audio store is configured the audio is stored too,
// and a failure to store it only costs the key.
func (o *Orchestrator) Speak(ctx context.Context, text string) (Speech, error) {
	e, name, err := o.tts.Resolve(o.cfg.TTSEngine)
	if err != nil {
		return Speech{}, err
	}

	stageCtx, cancel := o.stageContext(ctx)
	defer cancel()

	data, err := e.Synthesize(stageCtx, text, o.cfg.Voice)
	if err != nil {
		utils.IncrementStageFailures()
		return Speech{}, fmt.Errorf("speak with %s: %w", name, err)
	}
	utils.IncrementSyntheses()

	speech := Speech{Audio: data}
	if o.store != nil {
		key, err := o.store.SaveAudio(ctx, data, o.cfg.AudioTTL)
		if err != nil {
			log.Printf("[PIPELINE] failed to store synthesized audio: %v", err)
		} else {
			speech.Key = key
		}
	}
	return speech, nil
}

// Reset clears the conversation. It waits for an in-flight Reply.
func (o *Orchestrator) Reset() {
	o.turnMu.Lock()
	defer o.turnMu.Unlock()
	o.state.Reset()
	utils.IncrementResets()
}

// History returns a copy of the conversation as the generator sees it.
func (o *Orchestrator) History() []conversation.Message {
	return o.state.Snapshot()
}

// HistoryLen returns the number of user and assistant messages retained.
func (o *Orchestrator) HistoryLen() int {
	return o.state.Len()
}

func (o *Orchestrator) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.StageTimeout > 0 {
		return context.WithTimeout(ctx, o.cfg.StageTimeout)
	}
	return context.WithCancel(ctx)
}

func (o *Orchestrator) publish(ctx context.Context, ev TurnEvent) {
	if o.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := o.events.PublishEvent(ctx, ev); err != nil {
		log.Printf("[PIPELINE] failed to publish turn event: %v", err)
		return
	}
	utils.IncrementEventsPublished()
}
