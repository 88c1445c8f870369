package llm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/chesslm/internal/domain"
	"github.com/park285/chesslm/internal/obslog"
)

const defaultAzureAPIVersion = "2024-02-15-preview"

type azureDeployment struct {
	Name       string
	APIVersion string
}

// fallbackDeployments are tried, in order, after the model's own deployment.
var fallbackDeployments = []azureDeployment{
	{Name: "o4-mini", APIVersion: "2025-01-01-preview"},
	{Name: "gpt-4o-mini", APIVersion: defaultAzureAPIVersion},
	{Name: "gpt-35-turbo", APIVersion: defaultAzureAPIVersion},
	{Name: "gpt-4", APIVersion: defaultAzureAPIVersion},
}

// azureCandidates returns the ordered deployment list for a model with duplicates removed.
func azureCandidates(model domain.ModelDescriptor) []azureDeployment {
	first := azureDeployment{Name: model.AzureDeployment, APIVersion: model.AzureAPIVersion}
	if first.Name == "" {
		first.Name = model.ID
	}
	if first.APIVersion == "" {
		first.APIVersion = defaultAzureAPIVersion
	}

	out := make([]azureDeployment, 0, len(fallbackDeployments)+1)
	seen := make(map[azureDeployment]struct{}, len(fallbackDeployments)+1)
	for _, d := range append([]azureDeployment{first}, fallbackDeployments...) {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (r chatResponse) text() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

type openAIProvider struct {
	http     *httpClient
	settings Settings
}

func (p *openAIProvider) Complete(ctx context.Context, model domain.ModelDescriptor, system, user string) (string, error) {
	if p.settings.AzureEndpoint != "" {
		return p.completeAzure(ctx, model, system, user)
	}
	return p.completeStandard(ctx, model, system, user)
}

func (p *openAIProvider) completeAzure(ctx context.Context, model domain.ModelDescriptor, system, user string) (string, error) {
	key := p.settings.AzureKey
	if key == "" {
		// Azure accepts the regular OpenAI key name as a fallback.
		key = p.settings.OpenAIKey
	}
	if key == "" {
		return "", fmt.Errorf("%w: set AZURE_OPENAI_API_KEY or OPENAI_API_KEY", ErrMissingCredential)
	}

	body := map[string]any{
		"messages": []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		"max_completion_tokens": 1000,
	}
	headers := map[string]string{"api-key": key}

	errs := []error{ErrAllCandidatesFailed}
	for _, d := range azureCandidates(model) {
		endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			p.settings.AzureEndpoint, url.PathEscape(d.Name), url.QueryEscape(d.APIVersion))

		var resp chatResponse
		err := p.http.doJSON(ctx, fasthttp.MethodPost, endpoint, headers, body, &resp)
		if err == nil && strings.TrimSpace(resp.text()) == "" {
			err = fmt.Errorf("%w: deployment %s", ErrEmptyReply, d.Name)
		}
		if err == nil {
			obslog.L().Debug("azure_candidate_ok", zap.String("deployment", d.Name), zap.String("api_version", d.APIVersion))
			return resp.text(), nil
		}
		obslog.L().Warn("azure_candidate_failed",
			zap.String("model", model.ID),
			zap.String("deployment", d.Name),
			zap.String("api_version", d.APIVersion),
			zap.Error(err),
		)
		errs = append(errs, fmt.Errorf("deployment %s: %w", d.Name, err))
		if ctx.Err() != nil {
			break
		}
	}
	return "", errors.Join(errs...)
}

func (p *openAIProvider) completeStandard(ctx context.Context, model domain.ModelDescriptor, system, user string) (string, error) {
	if p.settings.OpenAIKey == "" {
		return "", fmt.Errorf("%w: set OPENAI_API_KEY", ErrMissingCredential)
	}
	body := map[string]any{
		"model": model.ID,
		"messages": []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		"temperature":           0.7,
		"max_completion_tokens": 500,
	}
	headers := map[string]string{"Authorization": "Bearer " + p.settings.OpenAIKey}

	var resp chatResponse
	if err := p.http.doJSON(ctx, fasthttp.MethodPost, p.settings.OpenAIBaseURL+"/v1/chat/completions", headers, body, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.text()) == "" {
		return "", ErrEmptyReply
	}
	return resp.text(), nil
}
