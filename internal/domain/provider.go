package domain

import "context"

// Chat message roles as used between the replier and providers.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Provider is the interface all generative-model backends implement.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Name() string
	Healthy(ctx context.Context) error
}

// ChatRequest carries one turn's worth of context to a provider. Exactly one
// new user message is submitted per call; prior turns travel in Messages.
type ChatRequest struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

type Message struct {
	Role    string `json:"role"` // user | model
	Content string `json:"content"`
}

type ChatResponse struct {
	Content   string
	LatencyMs int64
}
