package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker_CheckAll(t *testing.T) {
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "Ollama is running")
	}))
	defer ollama.Close()

	whisper := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"version":"1.7.1"}`)
	}))
	defer whisper.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	hc := NewHealthChecker(time.Minute)
	hc.RegisterService("ollama", ollama.URL)
	hc.RegisterService("whisper", whisper.URL)
	hc.RegisterService("hf", broken.URL)
	hc.RegisterProbe("redis", func(ctx context.Context) error {
		return errors.New("connection refused")
	})

	assert.Equal(t, StatusUnknown, hc.GetServiceStatus("ollama").Status)

	hc.CheckAll()

	assert.Equal(t, StatusOK, hc.GetServiceStatus("ollama").Status)
	assert.Empty(t, hc.GetServiceStatus("ollama").Version)

	w := hc.GetServiceStatus("whisper")
	assert.Equal(t, StatusOK, w.Status)
	assert.Equal(t, "1.7.1", w.Version)

	assert.Equal(t, StatusBad, hc.GetServiceStatus("hf").Status)

	r := hc.GetServiceStatus("redis")
	assert.Equal(t, StatusBad, r.Status)
	assert.Equal(t, "connection refused", r.Error)

	assert.Nil(t, hc.GetServiceStatus("missing"))
	assert.Len(t, hc.GetAllServices(), 4)
}

func TestHealthChecker_Recovers(t *testing.T) {
	healthy := false
	hc := NewHealthChecker(time.Minute)
	hc.RegisterProbe("redis", func(ctx context.Context) error {
		if !healthy {
			return errors.New("down")
		}
		return nil
	})

	hc.CheckAll()
	require.Equal(t, StatusBad, hc.GetServiceStatus("redis").Status)

	healthy = true
	hc.CheckAll()
	s := hc.GetServiceStatus("redis")
	assert.Equal(t, StatusOK, s.Status)
	assert.Empty(t, s.Error)
}

func TestHealthChecker_StopTwice(t *testing.T) {
	hc := NewHealthChecker(10 * time.Millisecond)
	hc.Start()
	hc.Stop()
	assert.NotPanics(t, hc.Stop)
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:11434/", BaseURL("http://localhost:11434/api/chat"))
	assert.Equal(t, "http://localhost:8080/", BaseURL("http://localhost:8080/inference"))
	assert.Equal(t, "not a url", BaseURL("not a url"))
}

func TestStatusServer_Routes(t *testing.T) {
	hc := NewHealthChecker(time.Minute)
	hc.RegisterProbe("redis", func(ctx context.Context) error { return errors.New("down") })
	hc.CheckAll()

	ss := NewStatusServer("127.0.0.1:0", hc, func() int { return 5 })
	srv := httptest.NewServer(ss.Handler())
	defer srv.Close()

	t.Run("status", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/status")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Service  string                    `json:"service"`
			Status   string                    `json:"status"`
			Metrics  map[string]any            `json:"metrics"`
			Services map[string]*ServiceStatus `json:"services"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "dex-voice-service", body.Service)
		assert.Equal(t, "degraded", body.Status)
		assert.EqualValues(t, 5, body.Metrics["history_length"])
		assert.Contains(t, body.Metrics, "replies")
		require.Contains(t, body.Services, "redis")
		assert.Equal(t, StatusBad, body.Services["redis"].Status)
	})

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("services", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/services")
		require.NoError(t, err)
		defer resp.Body.Close()

		var body struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, 1, body.Count)
	})
}

func TestStatusServer_ShutdownBeforeStart(t *testing.T) {
	ss := NewStatusServer("127.0.0.1:0", NewHealthChecker(time.Minute), nil)
	assert.NoError(t, ss.Shutdown(context.Background()))
}
