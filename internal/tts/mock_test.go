package tts

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
)

func TestMockSynthLengthProportionalToText(t *testing.T) {
	synth := NewMockSynth(24000)
	result, err := synth.Speak(context.Background(), "hello", "af_heart")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SampleRate != 24000 {
		t.Fatalf("expected sample rate 24000, got %d", result.SampleRate)
	}
	want := len("hello") * samplesPerChar * 2
	if len(result.PCM) != want {
		t.Fatalf("expected %d pcm bytes, got %d", want, len(result.PCM))
	}
}

func TestMockSynthIsDeterministic(t *testing.T) {
	synth := NewMockSynth(24000)
	a, err := synth.Speak(context.Background(), "abc", "af_heart")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := synth.Speak(context.Background(), "abc", "af_heart")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.PCM) != len(b.PCM) {
		t.Fatalf("expected identical buffers, got %d vs %d bytes", len(a.PCM), len(b.PCM))
	}
	first := binary.LittleEndian.Uint16(a.PCM)
	if first != uint16('a')<<4 {
		t.Fatalf("unexpected first sample %d", first)
	}
}

func TestPoolCreatesOneSynthPerVoice(t *testing.T) {
	created := 0
	pool := NewPool(func(voice string) (Synthesizer, error) {
		created++
		return NewMockSynth(24000), nil
	})

	first, err := pool.ForVoice("af_heart")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := pool.ForVoice("af_heart")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatal("expected the same synthesizer for repeated voice")
	}
	if created != 1 {
		t.Fatalf("expected 1 creation, got %d", created)
	}
	if _, err := pool.ForVoice("pe_snow"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created != 2 {
		t.Fatalf("expected 2 creations, got %d", created)
	}
}

func TestPoolPropagatesFactoryError(t *testing.T) {
	pool := NewPool(func(voice string) (Synthesizer, error) {
		return nil, errors.New("voice model missing")
	})
	if _, err := pool.ForVoice("af_heart"); err == nil {
		t.Fatal("expected factory error")
	}
}

func TestCatalogVoices(t *testing.T) {
	voices := Catalog()
	if len(voices) != 6 {
		t.Fatalf("expected 6 voices, got %d", len(voices))
	}
	if voices[0].ID != "af_heart" {
		t.Fatalf("expected af_heart first, got %q", voices[0].ID)
	}
}
