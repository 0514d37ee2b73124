// Package timing reconstructs approximate segment- and word-level playback
// offsets from a measured audio duration. The synthesis engine produces no
// alignment signal, so offsets are distributed heuristically: character counts
// set the base rate, punctuation density slows a segment down, and the sum of
// segment durations is rescaled to match the measured duration exactly.
package timing

import (
	"strings"
	"unicode/utf8"

	"github.com/pagevoice/pagevoice/internal/protocol"
)

const (
	pauseRunes = ".,;:!?-"

	// punctuationRateGain scales the per-segment slowdown; a segment of pure
	// punctuation reaches a 6x rate factor.
	punctuationRateGain = 5.0

	sentenceEndFactor = 1.3
	complexWordFactor = 1.2
	complexWordLength = 7

	// firstWordDelay shifts the first word of every segment. It is not
	// subtracted from the segment budget, so word offsets drift slightly
	// toward the segment end.
	firstWordDelay = 0.05
)

// Reconstruct assigns [startTime, endTime) windows to segments and start
// offsets to their words so that the final segment ends at totalDuration.
// It reports false for degenerate input (zero total duration or all-empty
// segment text), in which case callers should keep the untimed segments.
func Reconstruct(segments []protocol.Segment, totalDuration float64) ([]protocol.EnhancedSegment, bool) {
	if len(segments) == 0 || totalDuration <= 0 {
		return nil, false
	}

	totalChars := 0
	for _, seg := range segments {
		totalChars += utf8.RuneCountInString(seg.Text)
	}
	if totalChars == 0 {
		return nil, false
	}
	avgCharsPerSecond := float64(totalChars) / totalDuration

	enhanced := make([]protocol.EnhancedSegment, len(segments))
	runningOffset := 0.0
	for i, seg := range segments {
		duration := provisionalDuration(seg.Text, avgCharsPerSecond)
		enhanced[i] = protocol.EnhancedSegment{
			Speaker:   seg.Speaker,
			Text:      seg.Text,
			StartTime: runningOffset,
			EndTime:   runningOffset + duration,
		}
		runningOffset += duration
	}
	if runningOffset == 0 {
		return nil, false
	}

	// Rescale so the last segment ends exactly at the measured duration,
	// however inaccurate the per-segment estimates were.
	scalingFactor := totalDuration / runningOffset
	for i := range enhanced {
		enhanced[i].StartTime *= scalingFactor
		enhanced[i].EndTime *= scalingFactor
		enhanced[i].WordTimings = wordTimings(enhanced[i])
	}
	return enhanced, true
}

func provisionalDuration(text string, avgCharsPerSecond float64) float64 {
	chars := utf8.RuneCountInString(text)
	pauses := 0
	for _, r := range text {
		if strings.ContainsRune(pauseRunes, r) {
			pauses++
		}
	}
	denominator := chars
	if denominator < 1 {
		denominator = 1
	}
	density := float64(pauses) / float64(denominator)
	rateFactor := 1.0 + density*punctuationRateGain
	return float64(chars) / avgCharsPerSecond * rateFactor
}

// wordTimings allocates the segment window across its words by character
// weight. Offsets accumulate from the segment start and are never rescaled to
// fit the window, so long or punctuation-heavy tails may overrun endTime.
func wordTimings(seg protocol.EnhancedSegment) []protocol.WordTiming {
	words := strings.Fields(seg.Text)
	if len(words) == 0 {
		return nil
	}

	wordChars := 0
	for _, word := range words {
		wordChars += utf8.RuneCountInString(word)
	}

	segmentDuration := seg.EndTime - seg.StartTime
	timings := make([]protocol.WordTiming, 0, len(words))
	offset := seg.StartTime
	for i, word := range words {
		if i == 0 {
			offset += firstWordDelay
		}
		timings = append(timings, protocol.WordTiming{Word: word, Time: offset})

		runes := utf8.RuneCountInString(word)
		duration := segmentDuration * float64(runes) / float64(wordChars)
		if endsSentence(word) {
			duration *= sentenceEndFactor
		}
		if runes > complexWordLength {
			duration *= complexWordFactor
		}
		offset += duration
	}
	return timings
}

func endsSentence(word string) bool {
	return strings.HasSuffix(word, ".") || strings.HasSuffix(word, "!") || strings.HasSuffix(word, "?")
}
