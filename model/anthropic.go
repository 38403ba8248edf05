package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// DefaultSummarizerModel is a fast, cheap model suited to maintenance
// summarization work.
const DefaultSummarizerModel = "claude-3-5-haiku-20241022"

// DefaultMaxOutputTokens bounds summarize responses when the request does
// not specify a limit.
const DefaultMaxOutputTokens = 4096

// Anthropic implements Client using the Anthropic streaming API.
type Anthropic struct {
	client *anthropic.Client
	model  string
}

// NewAnthropic creates an Anthropic-backed model client. If modelID is
// empty, DefaultSummarizerModel is used.
func NewAnthropic(client *anthropic.Client, modelID string) *Anthropic {
	if modelID == "" {
		modelID = DefaultSummarizerModel
	}
	return &Anthropic{client: client, model: modelID}
}

// Summarize sends the request through the streaming API and accumulates the
// response text.
func (a *Anthropic) Summarize(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}

	stream := a.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: req.Instructions},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Input)),
		},
	})

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return "", fmt.Errorf("%w: failed to accumulate stream: %v", ErrUnavailable, err)
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var out strings.Builder
	for _, block := range message.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(text.Text)
		}
	}
	if out.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return out.String(), nil
}
