package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	openRouterReferer = "https://bidder.app"
	requestTimeout    = 60 * time.Second
	maxTokens         = 1024
	temperature       = 0.3
)

// OpenRouter completes prompts through the OpenAI-compatible OpenRouter API.
type OpenRouter struct {
	client *openai.Client
	model  string
}

// NewOpenRouter creates a completer for model. baseURL may be empty to use
// the public endpoint.
func NewOpenRouter(apiKey, model, baseURL string) *OpenRouter {
	if baseURL == "" {
		baseURL = OpenRouterBaseURL
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{
		Timeout: requestTimeout,
		Transport: headerTransport{
			base:    http.DefaultTransport,
			headers: map[string]string{"HTTP-Referer": openRouterReferer, "X-Title": "auction-bot"},
		},
	}
	return &OpenRouter{client: openai.NewClientWithConfig(cfg), model: model}
}

// Complete implements Completer.
func (o *OpenRouter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openrouter request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in openrouter response")
	}
	return resp.Choices[0].Message.Content, nil
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
