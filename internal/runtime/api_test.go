package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pagevoice/pagevoice/internal/cache"
	"github.com/pagevoice/pagevoice/internal/config"
	"github.com/pagevoice/pagevoice/internal/pipeline"
	"github.com/pagevoice/pagevoice/internal/protocol"
	"github.com/pagevoice/pagevoice/internal/segmenter"
	"github.com/pagevoice/pagevoice/internal/synth"
	"github.com/pagevoice/pagevoice/internal/tts"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type wholeTokens struct{}

func (wholeTokens) Count(text string) int                     { return len(text) / 4 }
func (wholeTokens) Split(text string, maxTokens int) []string { return []string{text} }

func newTestServer(t *testing.T) (*Runtime, *http.ServeMux) {
	return newTestServerWithModel(t, segmenter.NewMockModel())
}

func newTestServerWithModel(t *testing.T, model segmenter.Model) (*Runtime, *http.ServeMux) {
	t.Helper()
	log := newLogger()

	cfg := config.Default()
	cfg.Cache.Dir = t.TempDir()
	cfg.Cache.IndexPath = filepath.Join(cfg.Cache.Dir, "index.db")

	gateway := segmenter.NewGateway(
		config.SegmenterConfig{RetryLimit: 3, RetryWaitMS: 1},
		model, log)
	pool := tts.NewPool(func(voice string) (tts.Synthesizer, error) {
		return tts.NewMockSynth(24000), nil
	})
	engine := synth.NewEngine(cfg.Synthesis, wholeTokens{}, pool, 24000, log)
	store, err := cache.Open(context.Background(), cfg.Cache, log)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	pipe := pipeline.New(gateway, engine, store, nil, cfg.TTS.DefaultVoice, log)
	rt := &Runtime{cfg: cfg, logger: log, pipe: pipe}
	mux := http.NewServeMux()
	rt.registerAPI(mux)
	return rt, mux
}

func TestProcessPageEndpoint(t *testing.T) {
	_, mux := newTestServer(t)

	body := `{"page_text": "` + strings.Repeat("The quick brown fox jumps over the lazy dog. ", 3) + `", "page_number": 1}`
	req := httptest.NewRequest(http.MethodPost, "/api/process-page", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result pipeline.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !result.Success || result.Timing != "word_aligned" {
		t.Fatalf("unexpected result %+v", result)
	}
	if !strings.HasPrefix(result.AudioURL, "/api/audio/") {
		t.Fatalf("unexpected audio url %q", result.AudioURL)
	}

	// The rendered artifact is immediately downloadable.
	req = httptest.NewRequest(http.MethodGet, result.AudioURL, nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for audio, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/wav" {
		t.Fatalf("expected audio/wav, got %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); !strings.Contains(got, "max-age=3600") {
		t.Fatalf("expected cache headers, got %q", got)
	}
}

func TestProcessPageMissingParameters(t *testing.T) {
	_, mux := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/process-page", strings.NewReader(`{"page_text": "hello"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Missing required parameters") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestProcessPageShortTextIsBadRequest(t *testing.T) {
	_, mux := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/process-page",
		strings.NewReader(`{"page_text": "too short", "page_number": 1}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "too short") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

type failingModel struct{}

func (failingModel) Propose(ctx context.Context, pageText string, pageNumber int) ([]protocol.Segment, error) {
	return nil, errors.New("model unavailable")
}

func TestProcessPageModelFailureIsServerError(t *testing.T) {
	_, mux := newTestServerWithModel(t, failingModel{})

	body := `{"page_text": "` + strings.Repeat("The quick brown fox jumps over the lazy dog. ", 3) + `", "page_number": 1}`
	req := httptest.NewRequest(http.MethodPost, "/api/process-page", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when segmentation is exhausted, got %d", rec.Code)
	}
	var payload errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Success {
		t.Fatal("expected success=false on failure payload")
	}
}

func TestPreflightRequest(t *testing.T) {
	_, mux := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/process-page", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("expected CORS headers on preflight")
	}
}

func TestAudioNotFound(t *testing.T) {
	_, mux := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/audio/missing.wav", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAudioPathTraversalBlocked(t *testing.T) {
	rt, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/audio/secret", nil)
	req.URL.Path = "/api/audio/../index.db"
	rec := httptest.NewRecorder()
	rt.handleAudio(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for traversal attempt, got %d", rec.Code)
	}
}

func TestVoicesEndpoint(t *testing.T) {
	_, mux := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/voices", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Success bool        `json:"success"`
		Voices  []tts.Voice `json:"voices"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.Success {
		t.Fatal("expected success flag on voices payload")
	}
	if len(payload.Voices) != 6 {
		t.Fatalf("expected 6 voices, got %d", len(payload.Voices))
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, mux := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["status"] != "healthy" || payload["service"] != "pagevoice" {
		t.Fatalf("unexpected payload %v", payload)
	}
}
