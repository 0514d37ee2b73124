package segmenter

import (
	"context"
	"strings"

	"github.com/pagevoice/pagevoice/internal/protocol"
)

type mockModel struct{}

// NewMockModel returns a Model that splits on sentence boundaries without
// calling any external service. Useful for development and tests.
func NewMockModel() Model { return &mockModel{} }

func (m *mockModel) Propose(ctx context.Context, pageText string, pageNumber int) ([]protocol.Segment, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var segments []protocol.Segment
	remaining := pageText
	for remaining != "" {
		cut := len(remaining)
		for _, terminal := range []string{". ", "! ", "? "} {
			if idx := strings.Index(remaining, terminal); idx >= 0 && idx+len(terminal) < cut {
				cut = idx + len(terminal)
			}
		}
		segments = append(segments, protocol.Segment{Speaker: "Narrator", Text: remaining[:cut]})
		remaining = remaining[cut:]
	}
	return segments, nil
}
