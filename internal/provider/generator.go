package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Generator produces a single completion from a system prompt and a user
// prompt. It is the narrow surface the answer-synthesis path needs from
// the chat backend, and the seam test doubles implement.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// ChatGenerator adapts an eino ToolCallingChatModel to the Generator
// interface for one-shot prompt-in, answer-out calls.
type ChatGenerator struct {
	model model.ToolCallingChatModel
}

// NewChatGenerator wraps a chat model in a Generator.
func NewChatGenerator(m model.ToolCallingChatModel) *ChatGenerator {
	return &ChatGenerator{model: m}
}

// Generate sends the system and user prompts as a single exchange and
// returns the model's text response.
func (g *ChatGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}
	resp, err := g.model.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("provider: generate failed: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("provider: model returned an empty response")
	}
	return resp.Content, nil
}
