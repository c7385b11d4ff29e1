// Package anthropic adapts llmcap.Provider onto the Anthropic Claude
// Messages API via github.com/anthropics/anthropic-sdk-go.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/rudi77/taskreactor/llmcap"
)

// MessagesClient captures the subset of the Anthropic SDK client used by the
// adapter, letting tests pass a stub in place of *sdk.MessageService.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Provider implements llmcap.Provider on top of the Anthropic Messages API.
type Provider struct {
	msg       MessagesClient
	maxTokens int
}

// Options configures the Provider.
type Options struct {
	// MaxTokens bounds completion length when the request does not specify one.
	MaxTokens int
}

// New builds a Provider from an Anthropic Messages client.
func New(msg MessagesClient, opts Options) (*Provider, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Provider{msg: msg, maxTokens: maxTokens}, nil
}

// NewFromAPIKey constructs a Provider using the default Anthropic HTTP
// client, reading credentials from apiKey. An empty apiKey is not an error
// at construction.
func NewFromAPIKey(apiKey string, opts Options) (*Provider, error) {
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&client.Messages, opts)
}

// Complete issues a non-streaming Messages.New call and translates the
// response into an llmcap.Result.
func (p *Provider) Complete(ctx context.Context, modelID string, req llmcap.Request) (llmcap.Result, error) {
	if len(req.Messages) == 0 {
		return llmcap.Result{}, errors.New("anthropic: messages are required")
	}
	msgs, system := encodeMessages(req.Messages)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(modelID),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if len(system) > 0 {
		params.System = system
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}

	resp, err := p.msg.New(ctx, params)
	if err != nil {
		if isRateLimited(err) {
			return llmcap.Result{}, &llmcap.RetryableError{Err: fmt.Errorf("anthropic messages.new: %w", err)}
		}
		return llmcap.Result{}, fmt.Errorf("anthropic messages.new: %w", err)
	}
	return translateResponse(resp), nil
}

func encodeMessages(msgs []llmcap.Message) ([]sdk.MessageParam, []sdk.TextBlockParam) {
	conversation := make([]sdk.MessageParam, 0, len(msgs))
	var system []sdk.TextBlockParam
	for _, m := range msgs {
		if m.Role == "system" {
			system = append(system, sdk.TextBlockParam{Text: m.Content})
			continue
		}
		block := sdk.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			conversation = append(conversation, sdk.NewAssistantMessage(block))
		} else {
			conversation = append(conversation, sdk.NewUserMessage(block))
		}
	}
	return conversation, system
}

func translateResponse(msg *sdk.Message) llmcap.Result {
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return llmcap.Result{
		Content:    text,
		StopReason: string(msg.StopReason),
		Usage: llmcap.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
}

func isRateLimited(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
