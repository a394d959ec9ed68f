// Package llm talks to chat-completion providers to classify and propose niches.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
)

const maxTokens = 4096

// Client sends single-turn prompts to OpenAI or Anthropic.
type Client struct {
	provider  string // "openai" or "anthropic"
	model     string
	openai    *openai.Client
	anthropic *anthropic.Client
}

// NewClient creates a chat client. An empty model picks the provider default
// and an empty baseURL the provider's public API.
func NewClient(provider, model, apiKey, baseURL string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	c := &Client{provider: provider, model: model}

	switch provider {
	case "anthropic":
		if c.model == "" {
			c.model = "claude-sonnet-4-20250514"
		}
		var opts []anthropic.ClientOption
		if baseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(baseURL+"/v1"))
		}
		c.anthropic = anthropic.NewClient(apiKey, opts...)
	default:
		if c.model == "" {
			c.model = "gpt-4o-mini"
		}
		cfg := openai.DefaultConfig(apiKey)
		if baseURL != "" {
			cfg.BaseURL = baseURL + "/v1"
		}
		c.openai = openai.NewClientWithConfig(cfg)
	}
	return c
}

// Complete returns the text of the model's reply to prompt.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.anthropic != nil {
		return c.callAnthropic(ctx, prompt)
	}
	return c.callOpenAI(ctx, prompt)
}

func (c *Client) callOpenAI(ctx context.Context, prompt string) (string, error) {
	resp, err := c.openai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) callAnthropic(ctx context.Context, prompt string) (string, error) {
	resp, err := c.anthropic.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			return *block.Text, nil
		}
	}
	return "", errors.New("anthropic: no content returned")
}
