package backend

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct{ id string }

func newTestRegistry(t *testing.T) *Registry[fakeEngine] {
	t.Helper()
	r := NewRegistry[fakeEngine](StageLLM)
	require.NoError(t, r.Register("ollama", fakeEngine{id: "ollama"}, "networked-chat-service"))
	require.NoError(t, r.Register("hf", fakeEngine{id: "hf"}, "Hosted-Pipeline"))
	return r
}

func TestRegistry_GetByNameAndAlias(t *testing.T) {
	r := newTestRegistry(t)

	e, err := r.Get("OLLAMA")
	require.NoError(t, err)
	assert.Equal(t, "ollama", e.id)

	e, err = r.Get("hosted-pipeline")
	require.NoError(t, err)
	assert.Equal(t, "hf", e.id)

	_, err = r.Get("whisper")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_RegisterRejectsDuplicatesAndEmptyNames(t *testing.T) {
	r := newTestRegistry(t)

	assert.ErrorIs(t, r.Register("", fakeEngine{}), ErrEmptyName)
	assert.ErrorIs(t, r.Register(" hf ", fakeEngine{}), ErrExists)
	assert.ErrorIs(t, r.Register("other", fakeEngine{}, "networked-chat-service"), ErrExists)
	assert.Equal(t, []string{"hf", "ollama"}, r.Names())
}

func TestRegistry_ResolveFallsBack(t *testing.T) {
	r := newTestRegistry(t)

	// --- No fallback configured yet ---
	_, _, err := r.Resolve("unknown")
	assert.ErrorIs(t, err, ErrNoFallback)

	require.NoError(t, r.SetFallback("networked-chat-service"))
	assert.Equal(t, "ollama", r.Fallback())

	tests := []struct {
		requested string
		want      string
	}{
		{"hf", "hf"},
		{"Hosted-Pipeline", "hf"},
		{"", "ollama"},
		{"gpt-9000", "ollama"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("resolve %q", tt.requested), func(t *testing.T) {
			e, name, err := r.Resolve(tt.requested)
			require.NoError(t, err)
			assert.Equal(t, tt.want, name)
			assert.Equal(t, tt.want, e.id)
		})
	}
}

func TestRegistry_SetFallbackUnknown(t *testing.T) {
	r := newTestRegistry(t)
	assert.ErrorIs(t, r.SetFallback("whisper"), ErrNotFound)
	assert.Equal(t, StageLLM, r.Stage())
}

func TestServiceError_MatchesServiceUnavailable(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("generate: %w", &ServiceError{Backend: "ollama", StatusCode: 500, Body: "boom", Err: cause})

	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.ErrorIs(t, err, cause)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, 500, svcErr.StatusCode)
	assert.Contains(t, err.Error(), "ollama returned status 500: boom")
}

func TestUnavailable(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Unavailable("whisper", cause)

	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "whisper: service unavailable: dial tcp: connection refused", err.Error())
}
