package schemas

import (
	"context"
)

// -- LLM Interface --

// GenerationOptions provides detailed parameters to control the text generation
// process of the LLM, such as creativity (temperature) and output format.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`       // Controls randomness. Lower is more deterministic.
	ForceJSONFormat bool    `json:"force_json_format"` // If true, asks the provider for a JSON-only reply.
	MaxTokens       int     `json:"max_tokens"`        // Upper bound on the reply length; 0 leaves the provider default.
}

// GenerationRequest carries the complete, ordered conversation to the model.
// The backend is stateless, so every request includes the full history,
// starting with the system instructions.
type GenerationRequest struct {
	Messages []Message         `json:"messages"`
	Options  GenerationOptions `json:"options"`
}

// SystemPrompt returns the content of the leading system message, if any.
func (r GenerationRequest) SystemPrompt() string {
	if len(r.Messages) > 0 && r.Messages[0].Role == RoleSystem {
		return r.Messages[0].Content
	}
	return ""
}

// Turns returns the messages that follow the leading system message.
func (r GenerationRequest) Turns() []Message {
	if len(r.Messages) > 0 && r.Messages[0].Role == RoleSystem {
		return r.Messages[1:]
	}
	return r.Messages
}

// LLMClient defines a standard interface for interacting with a Large Language
// Model, abstracting the specifics of the underlying provider (e.g., Gemini).
type LLMClient interface {
	// Generate returns the content of exactly one assistant message produced
	// in response to the given history.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close cleans up any resources held by the client (e.g., network connections, SDK resources).
	Close() error
}
