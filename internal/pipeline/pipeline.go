// Package pipeline drives a page of text through segmentation, synthesis and
// timing reconstruction, with the cache consulted before any model work and
// lifecycle events published to the bus along the way.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pagevoice/pagevoice/internal/bus"
	"github.com/pagevoice/pagevoice/internal/cache"
	"github.com/pagevoice/pagevoice/internal/protocol"
	"github.com/pagevoice/pagevoice/internal/segmenter"
	"github.com/pagevoice/pagevoice/internal/synth"
	"github.com/pagevoice/pagevoice/internal/timing"
)

// ErrEmptyCombined is returned when the model produced segments whose texts
// join to nothing, which would otherwise synthesize silence. The message is
// part of the API contract.
var ErrEmptyCombined = errors.New("Combined text is empty")

// Result is the payload returned for a processed page.
type Result struct {
	Success  bool                       `json:"success"`
	Error    string                     `json:"error,omitempty"`
	AudioURL string                     `json:"audio_url,omitempty"`
	Segments []protocol.EnhancedSegment `json:"segments,omitempty"`
	Timing   string                     `json:"timing,omitempty"`
	Cached   bool                       `json:"cached,omitempty"`
}

type Pipeline struct {
	segments     *segmenter.Gateway
	engine       *synth.Engine
	cache        *cache.Cache
	bus          *bus.Client
	log          *slog.Logger
	defaultVoice string
}

func New(segments *segmenter.Gateway, engine *synth.Engine, store *cache.Cache, events *bus.Client, defaultVoice string, log *slog.Logger) *Pipeline {
	return &Pipeline{
		segments:     segments,
		engine:       engine,
		cache:        store,
		bus:          events,
		log:          log.With(slog.String("component", "pipeline")),
		defaultVoice: defaultVoice,
	}
}

// ProcessPage renders a page of text into narrated audio with word timing.
// Identical text processed on the same day is served from the cache without
// touching the segmenter or the synthesizer.
func (p *Pipeline) ProcessPage(ctx context.Context, pageText string, pageNumber int, voice string) (Result, error) {
	requestID := uuid.NewString()
	log := p.log.With(
		slog.String("request_id", requestID),
		slog.Int("page", pageNumber))

	if voice == "" {
		voice = p.defaultVoice
	}

	stripped := strings.TrimSpace(pageText)
	if stripped == "" {
		return Result{}, segmenter.ErrEmptyInput
	}

	p.publish(protocol.SubjectPageAccepted, requestID, pageNumber, "")
	started := time.Now()

	key := p.cache.KeyFor(stripped, pageNumber)
	if entry, ok := p.cache.Lookup(ctx, key); ok {
		// An artifact without indexed segments still needs segmentation for
		// synchronized display; timing is rebuilt against the measured audio.
		if entry.Segments == nil {
			segments, err := p.segmentsFor(ctx, key, stripped, pageNumber)
			if err != nil {
				p.fail(requestID, pageNumber, err)
				return Result{}, err
			}
			if enhanced, timed := timing.Reconstruct(segments, entry.Duration); timed {
				entry.Timing = "word_aligned"
				entry.Segments = enhanced
			} else {
				entry.Segments = untimed(segments)
			}
			p.cache.Store(ctx, key, pageNumber, entry)
		}
		log.Info("serving page from cache",
			slog.String("cache_key", key.CacheKey))
		p.publish(protocol.SubjectPageCompleted, requestID, pageNumber, "cached")
		return Result{
			Success:  true,
			AudioURL: audioURL(entry.AudioPath),
			Segments: entry.Segments,
			Timing:   entry.Timing,
			Cached:   true,
		}, nil
	}

	segments, err := p.segmentsFor(ctx, key, stripped, pageNumber)
	if err != nil {
		p.fail(requestID, pageNumber, err)
		return Result{}, err
	}
	p.publish(protocol.SubjectPageSegmented, requestID, pageNumber,
		fmt.Sprintf("%d segments", len(segments)))

	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			texts = append(texts, text)
		}
	}
	combined := strings.Join(texts, " ")
	if combined == "" {
		p.fail(requestID, pageNumber, ErrEmptyCombined)
		return Result{}, ErrEmptyCombined
	}

	audio, err := p.engine.Synthesize(ctx, combined, voice, p.cache.AudioPath(key))
	if err != nil {
		p.fail(requestID, pageNumber, err)
		return Result{}, err
	}
	p.publish(protocol.SubjectPageSynthesized, requestID, pageNumber,
		fmt.Sprintf("%.2fs of audio", audio.Duration))

	entry := cache.Entry{
		AudioPath: audio.Path,
		Duration:  audio.Duration,
	}
	enhanced, timed := timing.Reconstruct(segments, audio.Duration)
	if timed {
		entry.Timing = "word_aligned"
		entry.Segments = enhanced
	} else {
		log.Warn("timing reconstruction degenerate, returning untimed segments")
		entry.Segments = untimed(segments)
	}
	p.cache.Store(ctx, key, pageNumber, entry)

	log.Info("page processed",
		slog.Int("segments", len(segments)),
		slog.Float64("duration_sec", audio.Duration),
		slog.Duration("elapsed", time.Since(started)))
	p.publish(protocol.SubjectPageCompleted, requestID, pageNumber, "")

	return Result{
		Success:  true,
		AudioURL: audioURL(audio.Path),
		Segments: entry.Segments,
		Timing:   entry.Timing,
	}, nil
}

// segmentsFor returns the cached segment list for the page content, asking
// the gateway and caching the result on a miss.
func (p *Pipeline) segmentsFor(ctx context.Context, key cache.Key, stripped string, pageNumber int) ([]protocol.Segment, error) {
	if segments, ok := p.cache.SegmentList(ctx, key.ContentHash); ok {
		p.log.Info("reusing cached segment list",
			slog.Int("page", pageNumber),
			slog.Int("segments", len(segments)))
		return segments, nil
	}
	segments, err := p.segments.Segment(ctx, stripped, pageNumber)
	if err != nil {
		return nil, err
	}
	p.cache.StoreSegmentList(ctx, key.ContentHash, segments)
	return segments, nil
}

func (p *Pipeline) fail(requestID string, pageNumber int, err error) {
	p.publish(protocol.SubjectPageFailed, requestID, pageNumber, err.Error())
}

func (p *Pipeline) publish(subject, requestID string, pageNumber int, detail string) {
	if p.bus == nil {
		return
	}
	event := protocol.PageEvent{
		RequestID:  requestID,
		PageNumber: pageNumber,
		Stage:      strings.TrimPrefix(subject, "page.process."),
		Detail:     detail,
		Timestamp:  time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := p.bus.Publish(subject, data); err != nil {
		p.log.Warn("event publish failed",
			slog.String("subject", subject),
			slog.String("error", err.Error()))
	}
}

func audioURL(audioPath string) string {
	return "/api/audio/" + filepath.Base(audioPath)
}

func untimed(segments []protocol.Segment) []protocol.EnhancedSegment {
	out := make([]protocol.EnhancedSegment, len(segments))
	for i, seg := range segments {
		out[i] = protocol.EnhancedSegment{Speaker: seg.Speaker, Text: seg.Text}
	}
	return out
}
