package config

import (
	"fmt"
	"time"
)

// Config is the full service configuration. Every field can be set from the
// config file and overridden from the environment.
type Config struct {
	Server       ServerConfig       `json:"server" toml:"server"`
	Conversation ConversationConfig `json:"conversation" toml:"conversation"`
	LLM          LLMConfig          `json:"llm" toml:"llm"`
	ASR          ASRConfig          `json:"asr" toml:"asr"`
	TTS          TTSConfig          `json:"tts" toml:"tts"`
	Redis        RedisConfig        `json:"redis" toml:"redis"`
	Discord      DiscordConfig      `json:"discord" toml:"discord"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	ListenAddr     string   `json:"listen_addr" toml:"listen_addr"`
	StatusAddr     string   `json:"status_addr" toml:"status_addr"`
	ClientHTML     string   `json:"client_html" toml:"client_html"`
	MaxUploadBytes int64    `json:"max_upload_bytes" toml:"max_upload_bytes"`
	RateLimit      float64  `json:"rate_limit" toml:"rate_limit"`
	RateBurst      int      `json:"rate_burst" toml:"rate_burst"`
	StageTimeout   Duration `json:"stage_timeout" toml:"stage_timeout"`
	HealthInterval Duration `json:"health_interval" toml:"health_interval"`
}

// ConversationConfig bounds the dialogue history.
type ConversationConfig struct {
	MaxTurns     int    `json:"max_turns" toml:"max_turns"`
	SystemPrompt string `json:"system_prompt" toml:"system_prompt"`
}

// LLMConfig selects and configures the reply generator.
type LLMConfig struct {
	Backend    string `json:"backend" toml:"backend"`
	Model      string `json:"model" toml:"model"`
	OllamaURL  string `json:"ollama_url" toml:"ollama_url"`
	HFModel    string `json:"hf_model" toml:"hf_model"`
	HFAPIURL   string `json:"hf_api_url" toml:"hf_api_url"`
	HFAPIToken string `json:"hf_api_token" toml:"hf_api_token"`
}

// ASRConfig configures the speech recognition engines.
type ASRConfig struct {
	Engine         string `json:"engine" toml:"engine"`
	WhisperURL     string `json:"whisper_url" toml:"whisper_url"`
	WhisperModel   string `json:"whisper_model" toml:"whisper_model"`
	GoogleAPIKey   string `json:"google_api_key" toml:"google_api_key"`
	GoogleLanguage string `json:"google_language" toml:"google_language"`
}

// TTSConfig configures speech synthesis.
type TTSConfig struct {
	VoiceName string `json:"voice_name" toml:"voice_name"`
	VoiceRate int    `json:"voice_rate" toml:"voice_rate"`
	EspeakBin string `json:"espeak_bin" toml:"espeak_bin"`
}

// RedisConfig enables the optional audio cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string   `json:"addr" toml:"addr"`
	Password string   `json:"password" toml:"password"`
	DB       int      `json:"db" toml:"db"`
	AudioTTL Duration `json:"audio_ttl" toml:"audio_ttl"`
}

// DiscordConfig enables mirroring logs to a Discord channel.
type DiscordConfig struct {
	Token        string `json:"token" toml:"token"`
	LogChannelID string `json:"log_channel_id" toml:"log_channel_id"`
}

// Duration is a time.Duration written as "60s" or "10m" in config files.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
