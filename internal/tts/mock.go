package tts

import (
	"context"
	"encoding/binary"
)

// samplesPerChar sets the mock speaking rate: 10ms of audio per character at
// 24 kHz.
const samplesPerChar = 240

type mockSynth struct {
	sampleRate int
}

// NewMockSynth returns a Synthesizer producing deterministic audio whose
// length is proportional to the input text. The sample values are derived
// from the text bytes so distinct inputs yield distinct buffers.
func NewMockSynth(sampleRate int) Synthesizer {
	return &mockSynth{sampleRate: sampleRate}
}

func (m *mockSynth) Speak(ctx context.Context, text, voice string) (SpeechResult, error) {
	select {
	case <-ctx.Done():
		return SpeechResult{}, ctx.Err()
	default:
	}

	pcm := make([]byte, 0, len(text)*samplesPerChar*2)
	sample := make([]byte, 2)
	for _, b := range []byte(text) {
		binary.LittleEndian.PutUint16(sample, uint16(b)<<4)
		for i := 0; i < samplesPerChar; i++ {
			pcm = append(pcm, sample...)
		}
	}
	return SpeechResult{PCM: pcm, SampleRate: m.sampleRate}, nil
}
