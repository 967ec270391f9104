package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// readChat collects the assistant message from a chat response body. A
// single JSON object and newline-delimited chunks (servers or proxies that
// ignore "stream": false) are both accepted.
func readChat(body io.Reader) (string, error) {
	dec := json.NewDecoder(body)
	var content strings.Builder
	chunks := 0

	for {
		var chunk OllamaResponse
		err := dec.Decode(&chunk)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to decode chat response: %w", err)
		}
		if chunk.Error != "" {
			return "", errors.New(chunk.Error)
		}
		chunks++
		content.WriteString(chunk.Message.Content)
		if chunk.Done {
			break
		}
	}

	if chunks == 0 {
		return "", errors.New("empty chat response")
	}
	return content.String(), nil
}
