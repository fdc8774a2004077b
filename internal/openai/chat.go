package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/bitumen-hub/catalog-assistant/internal/llm"
)

const defaultChatModel = openaisdk.ChatModelGPT4oMini

// ChatClient generates answers with the Chat Completions API.
type ChatClient struct {
	sdk   openaisdk.Client
	model string
}

// NewChatClient creates a completer. maxRetries is passed to the SDK; 0 disables retries.
// Extra SDK options are applied last.
func NewChatClient(apiKey, model string, maxRetries int, opts ...option.RequestOption) *ChatClient {
	if model == "" {
		model = defaultChatModel
	}

	sdkOpts := append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(maxRetries)}, opts...)

	return &ChatClient{
		sdk:   openaisdk.NewClient(sdkOpts...),
		model: model,
	}
}

// Complete sends one system and one user message and returns the first choice.
func (c *ChatClient) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.sdk.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(system),
			openaisdk.UserMessage(user),
		},
	})
	if err != nil {
		var apiErr *openaisdk.Error
		if errors.As(err, &apiErr) {
			return "", llm.Classify(err, apiErr.StatusCode)
		}

		return "", llm.Classify(err, 0)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", llm.ErrMalformedResponse)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty content", llm.ErrMalformedResponse)
	}

	return text, nil
}

var _ llm.Completer = (*ChatClient)(nil)
