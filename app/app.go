// Package app wires the voice service together and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EasterCompany/dex-voice-service/cache"
	"github.com/EasterCompany/dex-voice-service/cleanup"
	"github.com/EasterCompany/dex-voice-service/config"
	"github.com/EasterCompany/dex-voice-service/conversation"
	"github.com/EasterCompany/dex-voice-service/endpoints"
	"github.com/EasterCompany/dex-voice-service/llm"
	logger "github.com/EasterCompany/dex-voice-service/log"
	"github.com/EasterCompany/dex-voice-service/pipeline"
	"github.com/EasterCompany/dex-voice-service/reporting"
	"github.com/EasterCompany/dex-voice-service/services"
	"github.com/EasterCompany/dex-voice-service/stt"
	"github.com/EasterCompany/dex-voice-service/system"
	"github.com/EasterCompany/dex-voice-service/tts"
	"github.com/EasterCompany/dex-voice-service/utils"
)

const (
	connectTimeout  = 5 * time.Second
	shutdownTimeout = 10 * time.Second
	scratchMaxAge   = time.Hour
)

type App struct {
	Config       *config.Config
	Cache        *cache.DB
	Orchestrator *pipeline.Orchestrator
	Server       *endpoints.Server
	Status       *services.StatusServer
	Health       *services.HealthChecker

	google        *stt.Google
	cleanupReport string
	stack         reporting.Stack
}

// New loads the configuration and builds every component. Nothing listens
// until Run is called.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("fatal error loading config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	// The cache is optional; a failure leaves the service running without it.
	db, cacheErr := cache.New(ctx, cfg.Redis)

	var sinks []io.Writer
	if db != nil {
		sinks = append(sinks, cache.NewLogWriter(db))
	}
	if err := logger.Init(logger.Options{
		DiscordToken:     cfg.Discord.Token,
		DiscordChannelID: cfg.Discord.LogChannelID,
		Sinks:            sinks,
	}); err != nil {
		logger.Error("Failed to attach discord log channel", err)
	}
	if cacheErr != nil {
		logger.Error("Failed to initialize cache", cacheErr)
	}

	a := &App{Config: cfg, Cache: db}
	a.cleanupReport = a.bootCleanup(ctx)

	stageTimeout := cfg.Server.StageTimeout.Duration

	a.google = stt.NewGoogle(stt.GoogleConfig{
		APIKey:       cfg.ASR.GoogleAPIKey,
		LanguageCode: cfg.ASR.GoogleLanguage,
	})
	asr, err := stt.NewRegistry(cfg.ASR.Engine,
		stt.NewWhisper(stt.WhisperConfig{
			URL:     cfg.ASR.WhisperURL,
			Model:   cfg.ASR.WhisperModel,
			Timeout: stageTimeout,
		}),
		a.google,
	)
	if err != nil {
		return nil, err
	}

	gen, err := llm.NewRegistry(
		llm.NewOllama(llm.OllamaConfig{
			URL:     cfg.LLM.OllamaURL,
			Model:   cfg.LLM.Model,
			Timeout: stageTimeout,
		}),
		llm.NewHuggingFace(llm.HuggingFaceConfig{
			APIURL:  cfg.LLM.HFAPIURL,
			Model:   cfg.LLM.HFModel,
			Token:   cfg.LLM.HFAPIToken,
			Timeout: stageTimeout,
		}),
	)
	if err != nil {
		return nil, err
	}

	_, llmName, err := gen.Resolve(cfg.LLM.Backend)
	if err != nil {
		return nil, err
	}
	a.stack = pipelineStack(cfg, llmName)

	synth, err := tts.NewRegistry(tts.NewEspeak(tts.EspeakConfig{Binary: cfg.TTS.EspeakBin}))
	if err != nil {
		return nil, err
	}

	var opts []pipeline.Option
	if db != nil {
		opts = append(opts, pipeline.WithAudioStore(db), pipeline.WithPublisher(db))
	}
	state := conversation.NewState(cfg.Conversation.MaxTurns, cfg.Conversation.SystemPrompt)
	a.Orchestrator, err = pipeline.New(state, asr, gen, synth, pipeline.Config{
		LLMBackend:   cfg.LLM.Backend,
		Voice:        tts.VoiceConfig{Rate: cfg.TTS.VoiceRate, Voice: cfg.TTS.VoiceName},
		Credentials:  stt.Credentials{APIKey: cfg.ASR.GoogleAPIKey},
		StageTimeout: stageTimeout,
		AudioTTL:     cfg.Redis.AudioTTL.Duration,
	}, opts...)
	if err != nil {
		return nil, err
	}

	serverOpts := endpoints.Options{
		Addr:           cfg.Server.ListenAddr,
		ClientHTML:     cfg.Server.ClientHTML,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
	}
	if db != nil {
		serverOpts.Audio = db
	}
	a.Server = endpoints.NewServer(a.Orchestrator, serverOpts)

	a.Health = services.NewHealthChecker(cfg.Server.HealthInterval.Duration)
	a.Health.RegisterService("whisper", services.BaseURL(cfg.ASR.WhisperURL))
	a.Health.RegisterService(llm.BackendOllama, services.BaseURL(cfg.LLM.OllamaURL))
	if db != nil {
		a.Health.RegisterProbe("redis", db.Ping)
	}
	a.Status = services.NewStatusServer(cfg.Server.StatusAddr, a.Health, a.Orchestrator.HistoryLen)

	return a, nil
}

// Run starts the servers and blocks until SIGINT or SIGTERM, then shuts
// everything down.
func (a *App) Run() error {
	a.Health.CheckAll()
	a.Health.Start()
	a.Status.Start()
	a.Server.Start()

	a.postBootReport()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	signal.Stop(stop)
	log.Printf("[APP] Received %s, shutting down", sig)

	return a.Shutdown()
}

// bootCleanup removes audio cached by a previous run and scratch
// directories a crashed synthesis left behind.
func (a *App) bootCleanup(ctx context.Context) string {
	var cleaner cleanup.AudioCleaner
	if a.Cache != nil {
		cleaner = a.Cache
	}
	results := []cleanup.Result{
		cleanup.CleanAudioCache(ctx, cleaner),
		cleanup.CleanScratchDirs(os.TempDir(), tts.ScratchPrefix, scratchMaxAge),
	}
	for _, r := range results {
		if r.Count > 0 {
			log.Printf("[CLEANUP] %s: removed %d (%s)", r.Name, r.Count, r.Description)
		}
	}
	return cleanup.Report(results)
}

func (a *App) postBootReport() {
	usage, errs := system.Sample()
	for _, err := range errs {
		logger.Error("Failed to sample system usage", err)
	}
	logger.Post(reporting.BootReport(
		utils.GetVersion().String(),
		a.stack,
		usage,
		a.Health.GetAllServices(),
		a.cleanupReport,
	))
}

// pipelineStack describes the selected stages for the boot report. llmName
// is the canonical backend name the registry resolved.
func pipelineStack(cfg *config.Config, llmName string) reporting.Stack {
	model := cfg.LLM.Model
	if llmName == llm.BackendHuggingFace {
		model = cfg.LLM.HFModel
	}
	return reporting.Stack{
		ASR:      cfg.ASR.Engine,
		LLM:      llmName,
		Model:    model,
		TTS:      tts.EngineEspeak,
		Voice:    cfg.TTS.VoiceName,
		MaxTurns: cfg.Conversation.MaxTurns,
	}
}

// Shutdown stops the servers and releases backend clients.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var firstErr error
	record := func(what string, err error) {
		if err == nil {
			return
		}
		logger.Error(what, err)
		if firstErr == nil {
			firstErr = err
		}
	}

	record("Failed to stop voice server", a.Server.Shutdown(ctx))
	record("Failed to stop status server", a.Status.Shutdown(ctx))
	a.Health.Stop()
	a.google.Close()
	if a.Cache != nil {
		record("Failed to close cache", a.Cache.Close())
	}

	log.Println("[APP] Shutdown complete")
	logger.Close()
	return firstErr
}
