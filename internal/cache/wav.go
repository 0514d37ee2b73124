package cache

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// wavDuration reads the playback length of a WAV file in seconds, computed
// from the decoded frame count so header padding cannot skew it.
func wavDuration(path string) (float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	buf, err := wav.NewDecoder(file).FullPCMBuffer()
	if err != nil {
		return 0, fmt.Errorf("read wav data: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return 0, fmt.Errorf("wav file has no format header")
	}
	return float64(buf.NumFrames()) / float64(buf.Format.SampleRate), nil
}
