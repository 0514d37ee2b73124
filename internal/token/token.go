package token

import (
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const encodingName = "cl100k_base"

// Adapter counts tokens and splits text into bounded chunks using a subword
// encoding. When the encoding cannot be loaded it degrades to a character
// heuristic: Count approximates four characters per token and Split returns
// the input as a single chunk, so callers must tolerate oversized chunks.
type Adapter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	log  *slog.Logger
}

func NewAdapter(log *slog.Logger) *Adapter {
	return &Adapter{log: log.With(slog.String("component", "tokenizer"))}
}

func (a *Adapter) encoding() *tiktoken.Tiktoken {
	a.once.Do(func() {
		enc, err := tiktoken.GetEncoding(encodingName)
		if err != nil {
			a.log.Warn("token encoding unavailable, using character heuristic",
				slog.String("encoding", encodingName),
				slog.String("error", err.Error()))
			return
		}
		a.enc = enc
	})
	return a.enc
}

// Count returns the number of tokens in text.
func (a *Adapter) Count(text string) int {
	enc := a.encoding()
	if enc == nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// Split cuts text into consecutive chunks of at most maxTokens tokens each.
// The chunks are non-overlapping and concatenate back to the exact input.
func (a *Adapter) Split(text string, maxTokens int) []string {
	enc := a.encoding()
	if enc == nil || maxTokens < 1 {
		return []string{text}
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return []string{text}
	}
	chunks := make([]string, 0, (len(tokens)+maxTokens-1)/maxTokens)
	for start := 0; start < len(tokens); start += maxTokens {
		end := start + maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, enc.Decode(tokens[start:end]))
	}
	return chunks
}
