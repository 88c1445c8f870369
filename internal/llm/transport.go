package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/park285/chesslm/internal/domain"
)

// Transport sends one prompt to a hosted model and returns the raw reply text.
type Transport interface {
	Complete(ctx context.Context, model domain.ModelDescriptor, system, user string) (string, error)
}

// Settings holds provider endpoints and credentials.
type Settings struct {
	OpenAIKey     string
	OpenAIBaseURL string

	AzureEndpoint string
	AzureKey      string

	AnthropicKey     string
	AnthropicBaseURL string

	ReplicateToken   string
	ReplicateBaseURL string
	PollInterval     time.Duration
	MaxPolls         int
}

func (s Settings) withDefaults() Settings {
	if s.OpenAIBaseURL == "" {
		s.OpenAIBaseURL = "https://api.openai.com"
	}
	if s.AnthropicBaseURL == "" {
		s.AnthropicBaseURL = "https://api.anthropic.com"
	}
	if s.ReplicateBaseURL == "" {
		s.ReplicateBaseURL = "https://api.replicate.com"
	}
	if s.PollInterval <= 0 {
		s.PollInterval = time.Second
	}
	if s.MaxPolls <= 0 {
		s.MaxPolls = 120
	}
	s.OpenAIBaseURL = strings.TrimRight(s.OpenAIBaseURL, "/")
	s.AzureEndpoint = strings.TrimRight(strings.TrimSpace(s.AzureEndpoint), "/")
	s.AnthropicBaseURL = strings.TrimRight(s.AnthropicBaseURL, "/")
	s.ReplicateBaseURL = strings.TrimRight(s.ReplicateBaseURL, "/")
	return s
}

// Router picks the provider implementation from the model's provider tag.
type Router struct {
	openai    *openAIProvider
	anthropic *anthropicProvider
	replicate *replicateProvider
}

func NewRouter(s Settings, opts ...Option) *Router {
	s = s.withDefaults()
	hc := newHTTPClient(opts...)
	return &Router{
		openai:    &openAIProvider{http: hc, settings: s},
		anthropic: &anthropicProvider{http: hc, settings: s},
		replicate: &replicateProvider{http: hc, settings: s},
	}
}

func (r *Router) Complete(ctx context.Context, model domain.ModelDescriptor, system, user string) (string, error) {
	switch model.Provider {
	case domain.ProviderOpenAI:
		return r.openai.Complete(ctx, model, system, user)
	case domain.ProviderAnthropic:
		return r.anthropic.Complete(ctx, model, system, user)
	case domain.ProviderReplicate:
		return r.replicate.Complete(ctx, model, system, user)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, model.Provider)
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
