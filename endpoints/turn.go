package endpoints

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
)

const (
	defaultEngine = "whisper"
	maxTextBody   = 1 << 20
)

// TextRequest is the body of /reply and /speak.
type TextRequest struct {
	Text string `json:"text"`
}

type replyResponse struct {
	Reply string `json:"reply"`
}

// ResetHandler clears the conversation.
func (s *Server) ResetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.orch.Reset()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// TranscribeHandler accepts a multipart form with a "file" part and an
// optional "engine" field.
func (s *Server) TranscribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		writeError(w, badRequest("invalid multipart form", err))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Printf("[HTTP] failed to remove upload files: %v", err)
		}
	}()

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, badRequest("missing file field", err))
		return
	}
	defer func() { _ = file.Close() }()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, badRequest("failed to read upload", err))
		return
	}
	if len(audio) == 0 {
		writeError(w, badRequest("empty upload", nil))
		return
	}

	engine := r.FormValue("engine")
	if engine == "" {
		engine = defaultEngine
	}

	res, err := s.orch.Transcribe(r.Context(), audio, engine)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ReplyHandler runs one conversation turn for the given text.
func (s *Server) ReplyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := decodeText(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	reply, err := s.orch.Reply(r.Context(), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, replyResponse{Reply: reply})
}

// SpeakHandler returns the text rendered as a WAV attachment. When the
// audio was cached its key is sent in X-Audio-Key.
func (s *Server) SpeakHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := decodeText(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	speech, err := s.orch.Speak(r.Context(), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}

	if speech.Key != "" {
		w.Header().Set("X-Audio-Key", speech.Key)
	}
	writeWAV(w, speech.Audio, "reply.wav")
}

func decodeText(w http.ResponseWriter, r *http.Request) (TextRequest, error) {
	var req TextRequest
	body := http.MaxBytesReader(w, r.Body, maxTextBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return req, badRequest("empty request body", nil)
		}
		return req, badRequest("invalid JSON", err)
	}
	if strings.TrimSpace(req.Text) == "" {
		return req, badRequest("text is required", nil)
	}
	return req, nil
}
