// eastercompany/dex-voice-service/config/loader.go

// Package config resolves the service configuration from defaults, an
// optional file under ~/Dexter/config and environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ConfigPathEnv names a config file to load instead of the default locations.
const ConfigPathEnv = "DEX_VOICE_CONFIG"

// Re-assign os.UserHomeDir to a variable so we can mock it in tests.
var osUserHomeDir = os.UserHomeDir

// defaultFiles are tried in order inside ~/Dexter/config.
var defaultFiles = []string{"voice.json", "voice.toml"}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:     ":8000",
			StatusAddr:     "127.0.0.1:8401",
			ClientHTML:     "client/index.html",
			MaxUploadBytes: 25 << 20,
			RateLimit:      10,
			RateBurst:      20,
			StageTimeout:   Duration{60 * time.Second},
			HealthInterval: Duration{30 * time.Second},
		},
		Conversation: ConversationConfig{
			MaxTurns: 8,
		},
		LLM: LLMConfig{
			Backend:   "hf",
			Model:     "llama3",
			OllamaURL: "http://localhost:11434/api/chat",
			HFModel:   "TinyLlama/TinyLlama-1.1B-Chat-v1.0",
			HFAPIURL:  "https://api-inference.huggingface.co/models",
		},
		ASR: ASRConfig{
			Engine:         "whisper",
			WhisperURL:     "http://localhost:8080/inference",
			WhisperModel:   "base",
			GoogleLanguage: "en-US",
		},
		TTS: TTSConfig{
			VoiceRate: 170,
			EspeakBin: "espeak-ng",
		},
		Redis: RedisConfig{
			AudioTTL: Duration{10 * time.Minute},
		},
	}
}

// Load builds the configuration from defaults, the config file if one exists
// and the process environment, then validates it.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := Path()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile decodes a JSON or TOML file over cfg. Fields absent from the file
// keep their current values. Files ending in .toml are read as TOML; anything
// else as JSON.
func LoadFile(cfg *Config, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("could not decode config file %s: %w", path, err)
		}
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("could not decode config file %s: %w", path, err)
	}
	return nil
}

// Path returns the config file Load would read, or "" when none exists.
func Path() (string, error) {
	return configPath(os.Getenv(ConfigPathEnv))
}

// configPath returns the explicit path if given, otherwise the first default
// file that exists. An empty result means no file is used.
func configPath(explicit string) (string, error) {
	if explicit != "" {
		path, err := expandPath(explicit)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("could not open config file %s: %w", path, err)
		}
		return path, nil
	}

	for _, name := range defaultFiles {
		path, err := expandPath(filepath.Join("~/Dexter/config", name))
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

// expandPath resolves paths like "~/" to the user's home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := osUserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not get user home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// envReader overrides values from environment variables, collecting values
// that fail to parse.
type envReader struct {
	getenv func(string) string
	errs   []error
}

func (r *envReader) str(key string, v *string) {
	if s := r.getenv(key); s != "" {
		*v = s
	}
}

func (r *envReader) int(key string, v *int) {
	s := r.getenv(key)
	if s == "" {
		return
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*v = n
}

func (r *envReader) int64(key string, v *int64) {
	s := r.getenv(key)
	if s == "" {
		return
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*v = n
}

func (r *envReader) float(key string, v *float64) {
	s := r.getenv(key)
	if s == "" {
		return
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*v = f
}

// duration accepts Go durations ("90s") and bare seconds ("90").
func (r *envReader) duration(key string, v *Duration) {
	s := r.getenv(key)
	if s == "" {
		return
	}
	if secs, err := strconv.Atoi(s); err == nil {
		v.Duration = time.Duration(secs) * time.Second
		return
	}
	if err := v.UnmarshalText([]byte(s)); err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
	}
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	r := &envReader{getenv: getenv}

	r.str("LISTEN_ADDR", &cfg.Server.ListenAddr)
	r.str("STATUS_ADDR", &cfg.Server.StatusAddr)
	r.str("CLIENT_HTML", &cfg.Server.ClientHTML)
	r.int64("MAX_UPLOAD_BYTES", &cfg.Server.MaxUploadBytes)
	r.float("RATE_LIMIT", &cfg.Server.RateLimit)
	r.int("RATE_BURST", &cfg.Server.RateBurst)
	r.duration("STAGE_TIMEOUT", &cfg.Server.StageTimeout)
	r.duration("HEALTH_INTERVAL", &cfg.Server.HealthInterval)

	r.int("MAX_TURNS", &cfg.Conversation.MaxTurns)
	r.str("SYSTEM_PROMPT", &cfg.Conversation.SystemPrompt)

	r.str("LLM_BACKEND", &cfg.LLM.Backend)
	r.str("LLM_MODEL", &cfg.LLM.Model)
	r.str("OLLAMA_URL", &cfg.LLM.OllamaURL)
	r.str("HF_MODEL", &cfg.LLM.HFModel)
	r.str("HF_API_URL", &cfg.LLM.HFAPIURL)
	r.str("HF_API_TOKEN", &cfg.LLM.HFAPIToken)

	r.str("ASR_ENGINE", &cfg.ASR.Engine)
	r.str("WHISPER_URL", &cfg.ASR.WhisperURL)
	r.str("WHISPER_MODEL", &cfg.ASR.WhisperModel)
	r.str("GOOGLE_SPEECH_API_KEY", &cfg.ASR.GoogleAPIKey)
	r.str("GOOGLE_SPEECH_LANGUAGE", &cfg.ASR.GoogleLanguage)

	r.str("VOICE_NAME", &cfg.TTS.VoiceName)
	r.int("VOICE_RATE", &cfg.TTS.VoiceRate)
	r.str("ESPEAK_BIN", &cfg.TTS.EspeakBin)

	r.str("REDIS_ADDR", &cfg.Redis.Addr)
	r.str("REDIS_PASSWORD", &cfg.Redis.Password)
	r.int("REDIS_DB", &cfg.Redis.DB)
	r.duration("AUDIO_TTL", &cfg.Redis.AudioTTL)

	r.str("DISCORD_TOKEN", &cfg.Discord.Token)
	r.str("DISCORD_LOG_CHANNEL_ID", &cfg.Discord.LogChannelID)

	if len(r.errs) > 0 {
		return fmt.Errorf("invalid environment: %w", errors.Join(r.errs...))
	}
	return nil
}

// Validate reports every setting that would make the service misbehave.
func (c *Config) Validate() error {
	var errs []error
	if c.Conversation.MaxTurns < 0 {
		errs = append(errs, fmt.Errorf("max_turns cannot be negative, got %d", c.Conversation.MaxTurns))
	}
	if c.TTS.VoiceRate <= 0 {
		errs = append(errs, fmt.Errorf("voice_rate must be positive, got %d", c.TTS.VoiceRate))
	}
	if c.Server.StageTimeout.Duration <= 0 {
		errs = append(errs, fmt.Errorf("stage_timeout must be positive, got %s", c.Server.StageTimeout))
	}
	if c.Server.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_upload_bytes must be positive, got %d", c.Server.MaxUploadBytes))
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		errs = append(errs, errors.New("rate_limit and rate_burst cannot be negative"))
	}
	if c.Redis.AudioTTL.Duration < 0 {
		errs = append(errs, fmt.Errorf("audio_ttl cannot be negative, got %s", c.Redis.AudioTTL))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Masked returns a copy with secrets replaced, suitable for printing.
func (c *Config) Masked() *Config {
	out := *c
	out.LLM.HFAPIToken = mask(c.LLM.HFAPIToken)
	out.ASR.GoogleAPIKey = mask(c.ASR.GoogleAPIKey)
	out.Redis.Password = mask(c.Redis.Password)
	out.Discord.Token = mask(c.Discord.Token)
	return &out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}
