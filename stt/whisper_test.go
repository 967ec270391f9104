package stt

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EasterCompany/dex-voice-service/backend"
)

func newWhisperServer(t *testing.T, status int, body string) (*httptest.Server, *[]byte) {
	t.Helper()
	var uploaded []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))
		assert.Equal(t, "base", r.FormValue("model"))

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		uploaded, _ = io.ReadAll(file)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &uploaded
}

func TestWhisper_TranscribeUsesNoSpeechProb(t *testing.T) {
	srv, uploaded := newWhisperServer(t, http.StatusOK,
		`{"text":"  hello there ","segments":[{"text":"hello there","no_speech_prob":0.1},{"no_speech_prob":0.9}]}`)

	w := NewWhisper(WhisperConfig{URL: srv.URL, Timeout: time.Second})
	res, err := w.Transcribe(context.Background(), []byte("RIFFfake"), Credentials{})

	require.NoError(t, err)
	assert.Equal(t, "hello there", res.Text)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
	assert.Equal(t, []byte("RIFFfake"), *uploaded)
}

func TestWhisper_DefaultConfidenceWithoutSegments(t *testing.T) {
	srv, _ := newWhisperServer(t, http.StatusOK, `{"text":"hi"}`)

	res, err := NewWhisper(WhisperConfig{URL: srv.URL}).Transcribe(context.Background(), []byte("x"), Credentials{})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
}

func TestWhisper_NoSpeechIsNotAnError(t *testing.T) {
	srv, _ := newWhisperServer(t, http.StatusOK, `{"text":"   ","segments":[{"no_speech_prob":0.97}]}`)

	res, err := NewWhisper(WhisperConfig{URL: srv.URL}).Transcribe(context.Background(), []byte("x"), Credentials{})
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestWhisper_ServerErrorIsServiceError(t *testing.T) {
	srv, _ := newWhisperServer(t, http.StatusInternalServerError, `model not loaded`)

	_, err := NewWhisper(WhisperConfig{URL: srv.URL}).Transcribe(context.Background(), []byte("x"), Credentials{})

	var svcErr *backend.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusInternalServerError, svcErr.StatusCode)
	assert.Equal(t, "model not loaded", svcErr.Body)
	assert.ErrorIs(t, err, backend.ErrServiceUnavailable)
}

func TestWhisper_UnreachableIsServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewWhisper(WhisperConfig{URL: url}).Transcribe(context.Background(), []byte("x"), Credentials{})
	assert.ErrorIs(t, err, backend.ErrServiceUnavailable)
}

func TestNewRegistry_UnknownEngineFallsBackToDefault(t *testing.T) {
	w := NewWhisper(WhisperConfig{})
	g := NewGoogle(GoogleConfig{})

	r, err := NewRegistry(EngineWhisper, w, g)
	require.NoError(t, err)

	e, name, err := r.Resolve("GOOGLE")
	require.NoError(t, err)
	assert.Equal(t, EngineGoogle, name)
	assert.Same(t, g, e)

	e, name, err = r.Resolve("vosk")
	require.NoError(t, err)
	assert.Equal(t, EngineWhisper, name)
	assert.Same(t, w, e)

	_, err = NewRegistry("vosk", w)
	assert.ErrorIs(t, err, backend.ErrNotFound)
}
