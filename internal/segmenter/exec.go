package segmenter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/mattn/go-shellwords"

	"github.com/pagevoice/pagevoice/internal/protocol"
)

type execModel struct {
	cmd []string
}

type execRequest struct {
	PageText   string `json:"page_text"`
	PageNumber int    `json:"page_number"`
}

// NewExecModel builds a Model that shells out to an external segmenter
// command: JSON request on stdin, {"segments": [...]} on stdout.
func NewExecModel(command string) (Model, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse segmenter command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("segmenter command empty")
	}
	return &execModel{cmd: args}, nil
}

func (m *execModel) Propose(ctx context.Context, pageText string, pageNumber int) ([]protocol.Segment, error) {
	input, err := json.Marshal(execRequest{PageText: pageText, PageNumber: pageNumber})
	if err != nil {
		return nil, err
	}

	base := m.cmd[0]
	args := append([]string{}, m.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Stdin = bytes.NewReader(input)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("segmenter exec command failed: %w", err)
	}

	var payload segmentListPayload
	if err := json.Unmarshal(output, &payload); err != nil {
		return nil, fmt.Errorf("decode segmenter exec response: %w", err)
	}
	if payload.Segments == nil {
		return nil, fmt.Errorf("segmenter exec response missing segments")
	}
	return payload.Segments, nil
}
