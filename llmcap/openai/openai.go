// Package openai adapts llmcap.Provider onto the OpenAI Chat Completions
// API via github.com/openai/openai-go.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/rudi77/taskreactor/llmcap"
)

// ChatClient captures the subset of the OpenAI SDK used by the adapter.
type ChatClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Provider implements llmcap.Provider on top of OpenAI Chat Completions.
type Provider struct {
	chat ChatClient
}

// New builds a Provider from a Chat Completions client.
func New(chat ChatClient) (*Provider, error) {
	if chat == nil {
		return nil, errors.New("openai: chat client is required")
	}
	return &Provider{chat: chat}, nil
}

// NewFromAPIKey constructs a Provider using the default OpenAI HTTP client.
// An empty apiKey is not an error at construction.
func NewFromAPIKey(apiKey string) (*Provider, error) {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return New(client.Chat.Completions)
}

// Complete issues a Chat Completions request and translates the response
// into an llmcap.Result.
func (p *Provider) Complete(ctx context.Context, modelID string, req llmcap.Request) (llmcap.Result, error) {
	if len(req.Messages) == 0 {
		return llmcap.Result{}, errors.New("openai: messages are required")
	}
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	params := openai.ChatCompletionNewParams{
		Model:    modelID,
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.ResponseFormat == "json_object" {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := p.chat.New(ctx, params)
	if err != nil {
		if isRateLimited(err) {
			return llmcap.Result{}, &llmcap.RetryableError{Err: fmt.Errorf("openai chat completion: %w", err)}
		}
		return llmcap.Result{}, fmt.Errorf("openai chat completion: %w", err)
	}
	return translateResponse(resp), nil
}

func translateResponse(resp *openai.ChatCompletion) llmcap.Result {
	var content, stop string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		stop = string(resp.Choices[0].FinishReason)
	}
	return llmcap.Result{
		Content:    content,
		StopReason: stop,
		Usage: llmcap.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}
}

func isRateLimited(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
