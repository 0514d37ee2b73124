// Package synth turns combined narration text into a single WAV artifact,
// splitting long text into token-bounded chunks synthesized on a bounded
// worker pool and reassembled in submission order.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/pagevoice/pagevoice/internal/config"
	"github.com/pagevoice/pagevoice/internal/tts"
)

// ErrSynthesis is returned when no chunk produced any audio. Partial chunk
// failures are absorbed as gaps instead.
var ErrSynthesis = errors.New("no audio was generated")

// Tokenizer bounds chunk sizes. Split must be lossless and non-overlapping.
type Tokenizer interface {
	Count(text string) int
	Split(text string, maxTokens int) []string
}

// Result describes a finished audio artifact.
type Result struct {
	Path     string
	Samples  int
	Duration float64
}

type Engine struct {
	tokens     Tokenizer
	pool       *tts.Pool
	sampleRate int
	maxWorkers int
	maxTokens  int
	log        *slog.Logger
}

func NewEngine(cfg config.SynthesisConfig, tokens Tokenizer, pool *tts.Pool, sampleRate int, log *slog.Logger) *Engine {
	return &Engine{
		tokens:     tokens,
		pool:       pool,
		sampleRate: sampleRate,
		maxWorkers: cfg.MaxWorkers,
		maxTokens:  cfg.MaxChunkTokens,
		log:        log.With(slog.String("component", "synthesis")),
	}
}

// Synthesize renders text with the given voice and writes a mono WAV file at
// outPath. Text over the chunk budget is split and dispatched across workers;
// chunks that fail are dropped from the output without aborting siblings.
func (e *Engine) Synthesize(ctx context.Context, text, voice, outPath string) (Result, error) {
	synth, err := e.pool.ForVoice(voice)
	if err != nil {
		return Result{}, fmt.Errorf("initialize voice %q: %w", voice, err)
	}

	var pcm []byte
	if e.tokens.Count(text) <= e.maxTokens {
		speech, err := synth.Speak(ctx, text, voice)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrSynthesis, err)
		}
		pcm = speech.PCM
	} else {
		pcm = e.synthesizeChunked(ctx, synth, text, voice)
	}

	if len(pcm) == 0 {
		return Result{}, ErrSynthesis
	}

	samples, err := writeWAV(outPath, pcm, e.sampleRate)
	if err != nil {
		return Result{}, fmt.Errorf("persist audio: %w", err)
	}
	return Result{
		Path:     outPath,
		Samples:  samples,
		Duration: float64(samples) / float64(e.sampleRate),
	}, nil
}

// synthesizeChunked fans chunks out to a bounded pool and concatenates the
// surviving buffers. Results land in slots indexed by submission order, so
// completion order can never reorder the audio.
func (e *Engine) synthesizeChunked(ctx context.Context, synth tts.Synthesizer, text, voice string) []byte {
	chunks := e.tokens.Split(text, e.maxTokens)
	e.log.Info("splitting text for parallel synthesis",
		slog.Int("chunks", len(chunks)),
		slog.Int("max_tokens", e.maxTokens))

	slots := make([][]byte, len(chunks))
	group := new(errgroup.Group)
	workers := e.maxWorkers
	if len(chunks) < workers {
		workers = len(chunks)
	}
	group.SetLimit(workers)

	for i, chunk := range chunks {
		group.Go(func() error {
			speech, err := synth.Speak(ctx, chunk, voice)
			if err != nil {
				e.log.Warn("chunk produced no audio",
					slog.Int("chunk", i+1),
					slog.Int("total", len(chunks)),
					slog.String("error", err.Error()))
				return nil
			}
			slots[i] = speech.PCM
			return nil
		})
	}
	_ = group.Wait()

	var pcm []byte
	for _, buf := range slots {
		if len(buf) > 0 {
			pcm = append(pcm, buf...)
		}
	}
	return pcm
}
