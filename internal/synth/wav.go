package synth

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeWAV persists 16-bit little-endian mono PCM as a WAV file and returns
// the number of samples written.
func writeWAV(path string, pcm []byte, sampleRate int) (int, error) {
	if len(pcm)%2 != 0 {
		return 0, fmt.Errorf("pcm payload not aligned")
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create wav file: %w", err)
	}
	defer file.Close()

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buffer := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}

	enc := wav.NewEncoder(file, sampleRate, 16, 1, 1)
	if err := enc.Write(buffer); err != nil {
		return 0, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("close wav encoder: %w", err)
	}
	return len(samples), nil
}
