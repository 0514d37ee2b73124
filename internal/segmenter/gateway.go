package segmenter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"

	"github.com/pagevoice/pagevoice/internal/config"
	"github.com/pagevoice/pagevoice/internal/protocol"
)

// Gateway validates page text and calls the segmentation model with a bounded
// retry policy. Either the full segment list is returned or the page fails;
// partial output is never accepted.
type Gateway struct {
	model    Model
	log      *slog.Logger
	maxTries uint
	wait     time.Duration
}

func NewGateway(cfg config.SegmenterConfig, model Model, log *slog.Logger) *Gateway {
	return &Gateway{
		model:    model,
		log:      log.With(slog.String("component", "segmenter")),
		maxTries: uint(cfg.RetryLimit),
		wait:     time.Duration(cfg.RetryWaitMS) * time.Millisecond,
	}
}

// Segment splits pageText into narration segments. Validation failures are
// returned immediately; model failures are retried with a constant backoff
// until the attempt budget is exhausted.
func (g *Gateway) Segment(ctx context.Context, pageText string, pageNumber int) ([]protocol.Segment, error) {
	stripped := strings.TrimSpace(pageText)
	if stripped == "" {
		return nil, ErrEmptyInput
	}
	if utf8.RuneCountInString(stripped) < MinPageChars {
		return nil, ErrTooShort
	}

	operation := func() ([]protocol.Segment, error) {
		segments, err := g.model.Propose(ctx, stripped, pageNumber)
		if err != nil {
			return nil, err
		}
		if len(segments) == 0 {
			return nil, errors.New("model returned no segments")
		}
		return segments, nil
	}

	segments, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(g.wait)),
		backoff.WithMaxTries(g.maxTries),
		backoff.WithNotify(func(err error, _ time.Duration) {
			g.log.Warn("segmentation attempt failed, retrying",
				slog.Int("page", pageNumber),
				slog.String("error", err.Error()))
		}))
	if err != nil {
		g.log.Error("segmentation attempts exhausted",
			slog.Int("page", pageNumber),
			slog.Uint64("attempts", uint64(g.maxTries)),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrSegmentation, err)
	}
	return segments, nil
}
