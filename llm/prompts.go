package llm

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/EasterCompany/dex-voice-service/conversation"
)

const (
	assistantMarker = "Assistant:"
	userMarker      = "\nUser:"
)

// chatPromptTemplate renders history as a plain transcript for completion
// models. System messages are skipped.
const chatPromptTemplate = `{{range .}}{{if eq .Role "user"}}User: {{.Content}}
{{else if eq .Role "assistant"}}Assistant: {{.Content}}
{{end}}{{end}}Assistant: `

var chatPrompt = template.Must(template.New("chatPrompt").Parse(chatPromptTemplate))

// BuildPrompt renders history into a completion prompt ending with an open
// assistant line.
func BuildPrompt(history []conversation.Message) (string, error) {
	var buf bytes.Buffer
	if err := chatPrompt.Execute(&buf, history); err != nil {
		return "", fmt.Errorf("failed to execute chat prompt template: %w", err)
	}
	return buf.String(), nil
}

// ExtractReply drops a leading assistant marker the model may echo and any
// user turn it went on to invent, along with everything after it.
func ExtractReply(generated string) string {
	generated = strings.TrimPrefix(strings.TrimSpace(generated), assistantMarker)
	if before, _, ok := strings.Cut(generated, userMarker); ok {
		generated = before
	}
	return strings.TrimSpace(generated)
}
