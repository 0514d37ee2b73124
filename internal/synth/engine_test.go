package synth

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/wav"

	"github.com/pagevoice/pagevoice/internal/config"
	"github.com/pagevoice/pagevoice/internal/tts"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// charTokens treats every byte as one token so chunk boundaries are exact.
type charTokens struct{}

func (charTokens) Count(text string) int { return len(text) }

func (charTokens) Split(text string, maxTokens int) []string {
	var chunks []string
	for len(text) > maxTokens {
		chunks = append(chunks, text[:maxTokens])
		text = text[maxTokens:]
	}
	return append(chunks, text)
}

// fakeSynth renders each byte of text as one little-endian sample carrying the
// byte value, with optional per-chunk delays and failures.
type fakeSynth struct {
	mu    sync.Mutex
	fail  map[string]bool
	delay map[string]time.Duration
	calls []string
}

func (f *fakeSynth) Speak(ctx context.Context, text, voice string) (tts.SpeechResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()

	if d, ok := f.delay[text]; ok {
		time.Sleep(d)
	}
	if f.fail[text] {
		return tts.SpeechResult{}, errors.New("synth backend down")
	}
	pcm := make([]byte, len(text)*2)
	for i, b := range []byte(text) {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(b))
	}
	return tts.SpeechResult{PCM: pcm, SampleRate: 24000}, nil
}

func newTestEngine(synth tts.Synthesizer, maxWorkers, maxTokens int) *Engine {
	pool := tts.NewPool(func(voice string) (tts.Synthesizer, error) { return synth, nil })
	cfg := config.SynthesisConfig{MaxWorkers: maxWorkers, MaxChunkTokens: maxTokens}
	return NewEngine(cfg, charTokens{}, pool, 24000, newLogger())
}

func readSamples(t *testing.T, path string) []int {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open wav: %v", err)
	}
	defer file.Close()
	buf, err := wav.NewDecoder(file).FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode wav: %v", err)
	}
	return buf.Data
}

func wantSamples(text string) []int {
	samples := make([]int, len(text))
	for i, b := range []byte(text) {
		samples[i] = int(b)
	}
	return samples
}

func sameSamples(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSynthesizeShortTextSkipsChunking(t *testing.T) {
	synth := &fakeSynth{}
	engine := newTestEngine(synth, 4, 8)
	out := filepath.Join(t.TempDir(), "page.wav")

	result, err := engine.Synthesize(context.Background(), "abc", "af_heart", out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(synth.calls) != 1 || synth.calls[0] != "abc" {
		t.Fatalf("expected one direct call, got %v", synth.calls)
	}
	if result.Samples != 3 {
		t.Fatalf("expected 3 samples, got %d", result.Samples)
	}
	if math.Abs(result.Duration-3.0/24000.0) > 1e-12 {
		t.Fatalf("unexpected duration %f", result.Duration)
	}
	if !sameSamples(readSamples(t, out), wantSamples("abc")) {
		t.Fatal("wav content does not match input")
	}
}

func TestChunkedSynthesisPreservesOrder(t *testing.T) {
	// Earlier chunks sleep longer, so completion order inverts submission
	// order and only the indexed slots keep the audio straight.
	synth := &fakeSynth{delay: map[string]time.Duration{
		"ab": 30 * time.Millisecond,
		"cd": 20 * time.Millisecond,
		"ef": 10 * time.Millisecond,
	}}
	engine := newTestEngine(synth, 4, 2)
	out := filepath.Join(t.TempDir(), "page.wav")

	result, err := engine.Synthesize(context.Background(), "abcdefgh", "af_heart", out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Samples != 8 {
		t.Fatalf("expected 8 samples, got %d", result.Samples)
	}
	if !sameSamples(readSamples(t, out), wantSamples("abcdefgh")) {
		t.Fatal("chunks reassembled out of order")
	}
}

func TestChunkFailureLeavesGap(t *testing.T) {
	synth := &fakeSynth{fail: map[string]bool{"cd": true}}
	engine := newTestEngine(synth, 2, 2)
	out := filepath.Join(t.TempDir(), "page.wav")

	result, err := engine.Synthesize(context.Background(), "abcdef", "af_heart", out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Samples != 4 {
		t.Fatalf("expected 4 samples after dropped chunk, got %d", result.Samples)
	}
	if !sameSamples(readSamples(t, out), wantSamples("abef")) {
		t.Fatal("surviving chunks not concatenated in order")
	}
}

func TestAllChunksFailed(t *testing.T) {
	synth := &fakeSynth{fail: map[string]bool{"ab": true, "cd": true}}
	engine := newTestEngine(synth, 2, 2)
	out := filepath.Join(t.TempDir(), "page.wav")

	if _, err := engine.Synthesize(context.Background(), "abcd", "af_heart", out); !errors.Is(err, ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatal("expected no wav file when every chunk failed")
	}
}

func TestDirectSynthesisFailure(t *testing.T) {
	synth := &fakeSynth{fail: map[string]bool{"abc": true}}
	engine := newTestEngine(synth, 2, 8)
	out := filepath.Join(t.TempDir(), "page.wav")

	if _, err := engine.Synthesize(context.Background(), "abc", "af_heart", out); !errors.Is(err, ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis, got %v", err)
	}
}
