// eastercompany/dex-voice-service/llm/llm.go

// Package llm produces the assistant's next utterance from the conversation
// history.
package llm

import (
	"context"
	"fmt"

	"github.com/EasterCompany/dex-voice-service/backend"
	"github.com/EasterCompany/dex-voice-service/conversation"
)

// Backend names known to the service, with the aliases callers may use.
const (
	BackendOllama      = "ollama"
	BackendHuggingFace = "hf"

	aliasOllama      = "networked-chat-service"
	aliasHuggingFace = "hosted-pipeline"
)

// Backend generates a reply to the last user message in history. History is
// ordered oldest first and may begin with a system message. Backends never
// retry and never modify history.
type Backend interface {
	Name() string
	Generate(ctx context.Context, history []conversation.Message) (string, error)
}

// NewRegistry registers the given backends under their names and aliases.
// Unknown backend names resolve to ollama.
func NewRegistry(backends ...Backend) (*backend.Registry[Backend], error) {
	r := backend.NewRegistry[Backend](backend.StageLLM)
	for _, b := range backends {
		var aliases []string
		switch b.Name() {
		case BackendOllama:
			aliases = []string{aliasOllama}
		case BackendHuggingFace:
			aliases = []string{aliasHuggingFace}
		}
		if err := r.Register(b.Name(), b, aliases...); err != nil {
			return nil, fmt.Errorf("failed to register llm backend: %w", err)
		}
	}
	if err := r.SetFallback(BackendOllama); err != nil {
		return nil, fmt.Errorf("failed to set fallback llm backend: %w", err)
	}
	return r, nil
}
