package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/EasterCompany/dex-voice-service/backend"
	"github.com/EasterCompany/dex-voice-service/conversation"
)

// HuggingFaceConfig configures the hosted text-generation backend.
type HuggingFaceConfig struct {
	// APIURL is the model root; the model id is appended to it.
	APIURL  string
	Model   string
	Token   string
	Timeout time.Duration
}

// HuggingFace generates replies with a text-generation model hosted behind
// the Hugging Face Inference API.
type HuggingFace struct {
	httpClient *http.Client
	APIURL     string
	Model      string
	token      string
}

type hfParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	DoSample       bool    `json:"do_sample"`
	Temperature    float64 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

type hfError struct {
	Error string `json:"error"`
}

// NewHuggingFace creates a Hugging Face backend.
func NewHuggingFace(cfg HuggingFaceConfig) *HuggingFace {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api-inference.huggingface.co/models"
	}
	if cfg.Model == "" {
		cfg.Model = "TinyLlama/TinyLlama-1.1B-Chat-v1.0"
	}
	return &HuggingFace{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		APIURL:     strings.TrimRight(cfg.APIURL, "/"),
		Model:      cfg.Model,
		token:      cfg.Token,
	}
}

func (h *HuggingFace) Name() string {
	return BackendHuggingFace
}

func (h *HuggingFace) Generate(ctx context.Context, history []conversation.Message) (string, error) {
	prompt, err := BuildPrompt(history)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(hfRequest{
		Inputs: prompt,
		Parameters: hfParameters{
			MaxNewTokens: 128,
			DoSample:     true,
			Temperature:  0.7,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.APIURL+"/"+h.Model, bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("hf: %w", ctx.Err())
		}
		return "", backend.Unavailable(BackendHuggingFace, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", backend.Unavailable(BackendHuggingFace, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return "", &backend.ServiceError{
			Backend:    BackendHuggingFace,
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(body)), maxErrorBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("hf: %w: status %d: %s", backend.ErrGeneration, resp.StatusCode, hfErrorMessage(body))
	}

	text, err := parseGeneration(body)
	if err != nil {
		return "", fmt.Errorf("hf: %w: %w", backend.ErrGeneration, err)
	}
	reply := ExtractReply(text)
	if reply == "" {
		return "", fmt.Errorf("hf: %w: empty generation", backend.ErrGeneration)
	}
	return reply, nil
}

// parseGeneration accepts both the list form the API normally returns and a
// bare object.
func parseGeneration(body []byte) (string, error) {
	var list []hfGeneration
	if err := json.Unmarshal(body, &list); err == nil {
		if len(list) == 0 {
			return "", errors.New("no generations returned")
		}
		return list[0].GeneratedText, nil
	}

	var single struct {
		hfGeneration
		hfError
	}
	if err := json.Unmarshal(body, &single); err != nil {
		return "", fmt.Errorf("failed to decode generation response: %w", err)
	}
	if single.Error != "" {
		return "", errors.New(single.Error)
	}
	return single.GeneratedText, nil
}

func hfErrorMessage(body []byte) string {
	var e hfError
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return truncate(strings.TrimSpace(string(body)), maxErrorBody)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
