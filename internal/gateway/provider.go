package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vinayprograms/agentkit/credentials"
	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"
)

// Options carry provider defaults applied to every persona model.
type Options struct {
	DefaultModel string
	MaxTokens    int
	BaseURL      string
	Thinking     string
	MaxRetries   int
	MaxBackoff   time.Duration
}

// ProviderGateway implements Gateway on agentkit's llm providers. One
// provider is built per distinct model reference and cached for the
// life of the session.
type ProviderGateway struct {
	creds *credentials.Credentials
	opts  Options
	log   *logging.Logger

	mu        sync.Mutex
	providers map[string]llm.Provider
}

// NewProviderGateway creates a gateway resolving API keys from creds.
func NewProviderGateway(creds *credentials.Credentials, opts Options) *ProviderGateway {
	return &ProviderGateway{
		creds:     creds,
		opts:      opts,
		log:       logging.New().WithComponent("gateway"),
		providers: make(map[string]llm.Provider),
	}
}

// Converse runs one completion against the persona's model.
func (g *ProviderGateway) Converse(ctx context.Context, modelRef string, req Request) (*Reply, error) {
	provider, err := g.provider(modelRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}

	messages := make([]llm.Message, 0, len(req.History)+1)
	if req.System != "" {
		messages = append(messages, llm.Message{Role: "system", Content: req.System})
	}
	for _, turn := range req.History {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}

	tools := make([]llm.ToolDef, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, llm.ToolDef{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}

	start := time.Now()
	resp, err := provider.Chat(ctx, llm.ChatRequest{
		Messages:  messages,
		Tools:     tools,
		MaxTokens: g.opts.MaxTokens,
	})
	if err != nil {
		g.log.Warn("chat failed", map[string]interface{}{
			"model": modelRef,
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}

	g.log.Debug("chat complete", map[string]interface{}{
		"model":      resp.Model,
		"latency_ms": time.Since(start).Milliseconds(),
		"tokens_in":  resp.InputTokens,
		"tokens_out": resp.OutputTokens,
		"tool_calls": len(resp.ToolCalls),
	})

	reply := &Reply{
		Text:      resp.Content,
		Thinking:  resp.Thinking,
		Model:     resp.Model,
		TokensIn:  resp.InputTokens,
		TokensOut: resp.OutputTokens,
	}
	for _, tc := range resp.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			ID:   tc.ID,
			Name: tc.Name,
			Args: tc.Args,
		})
	}
	return reply, nil
}

// provider returns the cached provider for a model reference, building
// it on first use.
func (g *ProviderGateway) provider(modelRef string) (llm.Provider, error) {
	if modelRef == "" {
		modelRef = g.opts.DefaultModel
	}
	if modelRef == "" {
		return nil, fmt.Errorf("no model configured")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.providers[modelRef]; ok {
		return p, nil
	}

	providerName := llm.InferProviderFromModel(modelRef)
	p, err := llm.NewProvider(llm.ProviderConfig{
		Provider:    providerName,
		Model:       modelRef,
		APIKey:      g.creds.GetAPIKey(providerName),
		MaxTokens:   g.opts.MaxTokens,
		BaseURL:     g.opts.BaseURL,
		Thinking:    llm.ThinkingConfig{Level: llm.ThinkingLevel(g.opts.Thinking)},
		RetryConfig: llm.RetryConfig{MaxRetries: g.opts.MaxRetries, MaxBackoff: g.opts.MaxBackoff},
	})
	if err != nil {
		return nil, fmt.Errorf("creating provider for %s: %w", modelRef, err)
	}
	g.providers[modelRef] = p
	return p, nil
}
