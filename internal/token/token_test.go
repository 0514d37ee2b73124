package token

import (
	"io"
	"log/slog"
	"testing"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fallbackAdapter returns an Adapter whose encoding load has already run and
// left no encoding behind, exercising the character heuristic paths.
func fallbackAdapter() *Adapter {
	a := NewAdapter(newLogger())
	a.once.Do(func() {})
	return a
}

func TestCountFallbackHeuristic(t *testing.T) {
	a := fallbackAdapter()
	if got := a.Count("abcdefgh"); got != 2 {
		t.Fatalf("expected 2 tokens for 8 chars, got %d", got)
	}
	if got := a.Count(""); got != 0 {
		t.Fatalf("expected 0 tokens for empty text, got %d", got)
	}
}

func TestSplitFallbackReturnsSingleChunk(t *testing.T) {
	a := fallbackAdapter()
	chunks := a.Split("hello world, this should stay whole", 3)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "hello world, this should stay whole" {
		t.Fatalf("chunk does not match input: %q", chunks[0])
	}
}

func TestSplitRejectsNonPositiveBudget(t *testing.T) {
	a := fallbackAdapter()
	chunks := a.Split("anything", 0)
	if len(chunks) != 1 || chunks[0] != "anything" {
		t.Fatalf("expected whole input back, got %v", chunks)
	}
}
