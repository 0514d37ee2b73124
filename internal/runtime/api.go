package runtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pagevoice/pagevoice/internal/segmenter"
	"github.com/pagevoice/pagevoice/internal/tts"
)

type processPageRequest struct {
	PageText   string `json:"page_text"`
	PageNumber *int   `json:"page_number"`
	Voice      string `json:"voice"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (r *Runtime) registerAPI(mux *http.ServeMux) {
	mux.HandleFunc("/api/process-page", cors(r.handleProcessPage))
	mux.HandleFunc("/api/audio/", cors(r.handleAudio))
	mux.HandleFunc("/api/voices", cors(r.handleVoices))
	mux.HandleFunc("/api/health", cors(r.handleHealth))
}

// cors allows browser reader clients on other origins to call the API and
// short-circuits preflight requests.
func cors(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, req)
	}
}

func (r *Runtime) handleProcessPage(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var body processPageRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if body.PageText == "" || body.PageNumber == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing required parameters"})
		return
	}

	result, err := r.pipe.ProcessPage(req.Context(), body.PageText, *body.PageNumber, body.Voice)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, segmenter.ErrEmptyInput) || errors.Is(err, segmenter.ErrTooShort) {
			status = http.StatusBadRequest
		}
		r.logger.Error("page processing failed",
			slog.Int("page", *body.PageNumber),
			slog.String("error", err.Error()))
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (r *Runtime) handleAudio(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	name := strings.TrimPrefix(req.URL.Path, "/api/audio/")
	// filepath.Base strips any traversal components from the request path.
	name = filepath.Base(name)
	if name == "." || name == "/" || !strings.HasSuffix(name, ".wav") {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "audio not found"})
		return
	}

	path := filepath.Join(r.cfg.Cache.Dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "audio not found"})
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, req, path)
}

func (r *Runtime) handleVoices(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "voices": tts.Catalog()})
}

func (r *Runtime) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": r.cfg.ServiceName,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
