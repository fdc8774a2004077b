// Package anthropic adapts the Anthropic Messages API to llm.Completer.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/bitumen-hub/catalog-assistant/internal/llm"
)

const (
	defaultModel           = "claude-sonnet-4-5-20250929"
	defaultMaxOutputTokens = 1024
)

// Client generates answers with Claude.
type Client struct {
	sdk       anthropic.Client
	model     string
	maxTokens int64
}

// NewClient creates a completer. maxRetries is passed to the SDK; 0 disables retries.
// Extra SDK options are applied last.
func NewClient(apiKey, model string, maxRetries int, extra ...option.RequestOption) *Client {
	opts := []option.RequestOption{option.WithMaxRetries(maxRetries)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	opts = append(opts, extra...)

	if model == "" {
		model = defaultModel
	}

	return &Client{
		sdk:       anthropic.NewClient(opts...),
		model:     model,
		maxTokens: defaultMaxOutputTokens,
	}
}

// Complete sends the prompts as one system block and one user turn and joins the text blocks of the reply.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	message, err := c.sdk.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", llm.Classify(err, apiErr.StatusCode)
		}

		return "", llm.Classify(err, 0)
	}

	var b strings.Builder

	for _, block := range message.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("%w: no text blocks", llm.ErrMalformedResponse)
	}

	return text, nil
}

var _ llm.Completer = (*Client)(nil)
