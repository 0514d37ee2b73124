package tts

import (
	"context"
	"sync"
)

// SpeechResult contains the synthesized audio for one piece of text.
type SpeechResult struct {
	// PCM holds 16-bit little-endian mono samples.
	PCM        []byte
	SampleRate int
}

// Synthesizer is the contract for producing audio from text. Implementations
// must be safe for concurrent calls; the synthesis engine fans chunks out to
// parallel workers sharing one Synthesizer per voice.
type Synthesizer interface {
	Speak(ctx context.Context, text, voice string) (SpeechResult, error)
}

// Pool hands out one Synthesizer per voice, created lazily on first use. The
// mutex guards creation only; concurrent Speak calls are the synthesizer's
// own responsibility.
type Pool struct {
	mu      sync.Mutex
	factory func(voice string) (Synthesizer, error)
	synths  map[string]Synthesizer
}

func NewPool(factory func(voice string) (Synthesizer, error)) *Pool {
	return &Pool{factory: factory, synths: make(map[string]Synthesizer)}
}

// ForVoice returns the synthesizer for voice, creating it if needed.
func (p *Pool) ForVoice(voice string) (Synthesizer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if synth, ok := p.synths[voice]; ok {
		return synth, nil
	}
	synth, err := p.factory(voice)
	if err != nil {
		return nil, err
	}
	p.synths[voice] = synth
	return synth, nil
}
