package segmenter

import (
	"context"
	"errors"

	"github.com/pagevoice/pagevoice/internal/protocol"
)

// Model is a pluggable segmentation backend. Implementations must return the
// page text reproduced verbatim across the segment texts; the gateway treats
// an empty segment list as a failed attempt.
type Model interface {
	Propose(ctx context.Context, pageText string, pageNumber int) ([]protocol.Segment, error)
}

var (
	// ErrEmptyInput rejects pages with no text after trimming. Not retried.
	// The message is part of the API contract.
	ErrEmptyInput = errors.New("Page text is empty")

	// ErrTooShort rejects pages under the minimum character count. Not retried.
	ErrTooShort = errors.New("Page text is too short")

	// ErrSegmentation is returned once every model attempt has failed.
	ErrSegmentation = errors.New("segmentation failed")
)

// MinPageChars is the smallest page the gateway will send to the model.
const MinPageChars = 100
