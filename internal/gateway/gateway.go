// Package gateway fronts the LLM providers that back each persona.
package gateway

import (
	"context"
	"errors"
)

// ErrGatewayFailure wraps any provider-side failure so callers can
// render it as a transcript error instead of aborting.
var ErrGatewayFailure = errors.New("gateway failure")

// ToolDef describes a tool offered to the model.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]interface{}
}

// Turn is one prior exchange in the conversation being continued.
// Image is an optional inline attachment; providers without multimodal
// message support see only the text, which carries the asset token.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
	Image   []byte
}

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request is one model invocation.
type Request struct {
	System  string
	History []Turn
	Tools   []ToolDef
}

// Reply is the model's answer.
type Reply struct {
	Text      string
	Thinking  string
	ToolCalls []ToolCall
	Model     string
	TokensIn  int
	TokensOut int
}

// Gateway resolves a persona's model reference and runs a completion
// against it.
type Gateway interface {
	Converse(ctx context.Context, modelRef string, req Request) (*Reply, error)
}
