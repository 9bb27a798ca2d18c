package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const maxTokens = 2048

// Client maps engine ids to chat models behind the uniform
// generate(prompt, engineId) contract the orchestrator consumes.
type Client struct {
	*openai.Client
	// Models maps engine id -> model name. Engines without a mapping use
	// DefaultModel.
	Models       map[string]string
	DefaultModel string
}

func NewClient(apiKey, defaultModel string, models map[string]string) *Client {
	return &Client{
		Client:       openai.NewClient(apiKey),
		Models:       models,
		DefaultModel: defaultModel,
	}
}

func (c *Client) modelFor(engineID string) string {
	if m, ok := c.Models[engineID]; ok && m != "" {
		return m
	}
	if c.DefaultModel != "" {
		return c.DefaultModel
	}
	return "gpt-4o-mini"
}

// Generate sends the prepared prompt to the model backing engineID.
func (c *Client) Generate(ctx context.Context, engineID, prompt string) (string, error) {
	model := c.modelFor(engineID)
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion for engine %s", engineID)
	}
	return resp.Choices[0].Message.Content, nil
}
