package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/park285/chesslm/internal/domain"
)

const anthropicVersion = "2023-06-01"

type anthropicProvider struct {
	http     *httpClient
	settings Settings
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *anthropicProvider) Complete(ctx context.Context, model domain.ModelDescriptor, system, user string) (string, error) {
	if p.settings.AnthropicKey == "" {
		return "", fmt.Errorf("%w: set ANTHROPIC_API_KEY", ErrMissingCredential)
	}
	body := map[string]any{
		"model":      model.ID,
		"max_tokens": 1000,
		"system":     system,
		"messages":   []chatMessage{{Role: "user", Content: user}},
	}
	headers := map[string]string{
		"x-api-key":         p.settings.AnthropicKey,
		"anthropic-version": anthropicVersion,
	}

	var resp anthropicResponse
	if err := p.http.doJSON(ctx, fasthttp.MethodPost, p.settings.AnthropicBaseURL+"/v1/messages", headers, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Content) == 0 || strings.TrimSpace(resp.Content[0].Text) == "" {
		return "", ErrEmptyReply
	}
	return resp.Content[0].Text, nil
}
