package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/EasterCompany/dex-voice-service/backend"
	"github.com/EasterCompany/dex-voice-service/conversation"
)

const maxErrorBody = 512

// OllamaConfig configures the Ollama chat backend.
type OllamaConfig struct {
	URL     string
	Model   string
	Timeout time.Duration
}

// Ollama talks to an Ollama server's /api/chat endpoint.
type Ollama struct {
	httpClient *http.Client
	OllamaURL  string
	Model      string
}

type OllamaRequest struct {
	Model    string                 `json:"model"`
	Messages []conversation.Message `json:"messages"`
	Stream   bool                   `json:"stream"`
}

type OllamaResponse struct {
	Model     string               `json:"model"`
	CreatedAt time.Time            `json:"created_at"`
	Message   conversation.Message `json:"message"`
	Done      bool                 `json:"done"`
	Error     string               `json:"error,omitempty"`
}

// NewOllama creates an Ollama backend.
func NewOllama(cfg OllamaConfig) *Ollama {
	if cfg.URL == "" {
		cfg.URL = "http://localhost:11434/api/chat"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3"
	}
	return &Ollama{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		OllamaURL:  cfg.URL,
		Model:      cfg.Model,
	}
}

func (o *Ollama) Name() string {
	return BackendOllama
}

func (o *Ollama) Generate(ctx context.Context, history []conversation.Message) (string, error) {
	request := OllamaRequest{
		Model:    o.Model,
		Messages: history,
		Stream:   false,
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.OllamaURL, bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("ollama: %w", ctx.Err())
		}
		return "", backend.Unavailable(BackendOllama, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &backend.ServiceError{
			Backend:    BackendOllama,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	content, err := readChat(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ollama: %w: %w", backend.ErrGeneration, err)
	}
	return content, nil
}
