package endpoints

import (
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/EasterCompany/dex-voice-service/cache"
)

// AudioHandler serves cached synthesized audio (GET /audio/{key}).
func (s *Server) AudioHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Extract the audio key from the URL path
	key := strings.TrimPrefix(r.URL.Path, "/audio/")
	if key == "" {
		http.Error(w, "Missing audio key", http.StatusBadRequest)
		return
	}

	data, err := s.opts.Audio.LoadAudio(r.Context(), key)
	if err != nil {
		if errors.Is(err, cache.ErrAudioNotFound) {
			http.Error(w, "Audio not found", http.StatusNotFound)
			return
		}
		log.Printf("[HTTP] failed to load audio %s: %v", key, err)
		http.Error(w, "Failed to load audio", http.StatusInternalServerError)
		return
	}
	writeWAV(w, data, key+".wav")
}

// HomeHandler serves the browser client.
func (s *Server) HomeHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	html, err := os.ReadFile(s.opts.ClientHTML)
	if err != nil {
		log.Printf("[HTTP] failed to read client page: %v", err)
		http.Error(w, "Client page not available", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(html)
}

func writeWAV(w http.ResponseWriter, data []byte, filename string) {
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("[HTTP] failed to write audio: %v", err)
	}
}
