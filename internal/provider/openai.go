package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	chatTimeout       = 60 * time.Second
)

// openAICompatible serves every backend that speaks the OpenAI chat
// completions protocol through the shared SDK. OpenAI itself and OpenRouter
// differ only in base URL.
type openAICompatible struct {
	label  ID
	client openai.Client
	model  string
}

// NewOpenAI builds a client against api.openai.com.
func NewOpenAI(apiKey, model string) Client {
	return newOpenAICompatible(OpenAI, apiKey, model, "")
}

// NewOpenRouter builds a client against the OpenRouter gateway.
func NewOpenRouter(apiKey, model string) Client {
	return newOpenAICompatible(OpenRouter, apiKey, model, openRouterBaseURL)
}

func newOpenAICompatible(label ID, apiKey, model, baseURL string) *openAICompatible {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(chatTimeout),
		// Retrying is the retry executor's job; the SDK must not stack
		// its own retries underneath it.
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &openAICompatible{
		label:  label,
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (c *openAICompatible) Extract(ctx context.Context, sourceText, instructionPrompt string) (json.RawMessage, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(instructionPrompt),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(sourceText),
					},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", c.label, err)
	}
	raw := resp.RawJSON()
	if raw == "" {
		return nil, fmt.Errorf("%s API returned an empty response body", c.label)
	}
	return json.RawMessage(raw), nil
}

func (c *openAICompatible) ValidateAPIKey(ctx context.Context, credential string) (bool, error) {
	if strings.TrimSpace(credential) == "" {
		return false, nil
	}
	// The models list is the cheapest authenticated GET these backends
	// offer. The probe credential overrides the constructor's key.
	_, err := c.client.Models.List(ctx, option.WithAPIKey(credential))
	if err == nil {
		return true, nil
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return false, nil
		}
	}
	return false, fmt.Errorf("%s key probe failed: %w", c.label, err)
}
