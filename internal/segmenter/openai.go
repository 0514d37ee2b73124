package segmenter

import (
	"context"
	"encoding/json"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/pagevoice/pagevoice/internal/config"
	"github.com/pagevoice/pagevoice/internal/protocol"
)

const systemPrompt = `You are an assistant that converts extracted text from a book into a structured audio book script. For each input page, output a JSON object in the following format:
{
  "page": <page number>,
  "segments": [
    {"speaker": "Narrator", "text": "<full text of the page split into segments (each no more than 100 tokens)>"}
  ]
}

IMPORTANT:
1. Do NOT summarize, rephrase, or rewrite any text.
2. Do NOT skip, omit, or truncate any portion of the text.
3. Split the full page text into multiple segments such that each segment is no more than 100 tokens, and the concatenation of all segments exactly reproduces the input text (including all paragraphs and punctuation).
4. Use the speaker "Narrator" for every segment.
5. Even if the final segment is very short, include it in its entirety.
Return valid JSON and nothing else.`

type openAIModel struct {
	client    oai.Client
	model     string
	maxTokens int
}

// NewOpenAIModel builds a Model backed by an OpenAI-compatible chat endpoint
// (Groq exposes one). JSON mode guarantees a parseable response body; the
// segment structure is still validated here.
func NewOpenAIModel(cfg config.SegmenterConfig) (Model, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("segmenter: api key must not be empty")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("segmenter: model must not be empty")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &openAIModel{
		client:    oai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

type segmentListPayload struct {
	Page     int                `json:"page"`
	Segments []protocol.Segment `json:"segments"`
}

func (m *openAIModel) Propose(ctx context.Context, pageText string, pageNumber int) ([]protocol.Segment, error) {
	userPrompt := fmt.Sprintf("Convert the following extracted text from page %d into the JSON format described. "+
		"Split the text into segments so that each segment is no more than 100 tokens and the concatenation of all segments exactly equals the input text. "+
		"Use the speaker \"Narrator\" for every segment. Do not summarize, rephrase, or change any part of the text. "+
		"Do not omit any content:\n\n%s", pageNumber, pageText)

	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(m.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage(userPrompt),
		},
		Temperature: param.NewOpt(0.0),
		ResponseFormat: oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
	if m.maxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(m.maxTokens))
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("segmentation request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("segmentation response has no choices")
	}

	var payload segmentListPayload
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &payload); err != nil {
		return nil, fmt.Errorf("decode segmentation response: %w", err)
	}
	if payload.Segments == nil {
		return nil, fmt.Errorf("segmentation response missing segments")
	}
	return payload.Segments, nil
}
