package llm

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/chesslm/internal/domain"
	"github.com/park285/chesslm/internal/obslog"
)

const defaultReplicateVersion = "meta/llama-2-70b-chat:latest"

var replicateVersions = map[string]string{
	"llama-2-70b-chat": "meta/llama-2-70b-chat:latest",
	"llama-2-13b-chat": "meta/llama-2-13b-chat:latest",
	"llama-2-7b-chat":  "meta/llama-2-7b-chat:latest",
}

func replicateVersion(modelID string) string {
	if v, ok := replicateVersions[modelID]; ok {
		return v
	}
	return defaultReplicateVersion
}

type prediction struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output any    `json:"output"`
	Error  any    `json:"error"`
}

func (p prediction) done() bool {
	switch p.Status {
	case "succeeded", "failed", "canceled":
		return true
	default:
		return false
	}
}

// text joins the streamed output chunks. Some models return a single string.
func (p prediction) text() string {
	switch v := p.Output.(type) {
	case string:
		return v
	case []any:
		var sb strings.Builder
		for _, chunk := range v {
			if s, ok := chunk.(string); ok {
				sb.WriteString(s)
			}
		}
		return sb.String()
	default:
		return ""
	}
}

type replicateProvider struct {
	http     *httpClient
	settings Settings
}

// Complete creates a prediction and polls it at a fixed interval. Polling stops
// after settings.MaxPolls status checks with ErrPollLimit.
func (p *replicateProvider) Complete(ctx context.Context, model domain.ModelDescriptor, system, user string) (string, error) {
	if p.settings.ReplicateToken == "" {
		return "", fmt.Errorf("%w: set REPLICATE_API_TOKEN", ErrMissingCredential)
	}
	headers := map[string]string{"Authorization": "Token " + p.settings.ReplicateToken}
	prompt := user
	if strings.TrimSpace(system) != "" {
		prompt = system + "\n\n" + user
	}
	body := map[string]any{
		"version": replicateVersion(model.ID),
		"input": map[string]any{
			"prompt":         prompt,
			"max_new_tokens": 1000,
			"temperature":    0.7,
		},
	}

	var pred prediction
	if err := p.http.doJSON(ctx, fasthttp.MethodPost, p.settings.ReplicateBaseURL+"/v1/predictions", headers, body, &pred); err != nil {
		return "", err
	}

	for polls := 0; !pred.done(); polls++ {
		if polls >= p.settings.MaxPolls {
			return "", fmt.Errorf("%w: %d polls of %s", ErrPollLimit, polls, pred.ID)
		}
		if pred.ID == "" {
			return "", fmt.Errorf("%w: prediction without id", ErrEmptyReply)
		}
		if err := sleepWithContext(ctx, p.settings.PollInterval); err != nil {
			return "", err
		}
		pollURL := p.settings.ReplicateBaseURL + "/v1/predictions/" + url.PathEscape(pred.ID)
		var next prediction
		if err := p.http.doJSON(ctx, fasthttp.MethodGet, pollURL, headers, nil, &next); err != nil {
			return "", err
		}
		if next.ID == "" {
			next.ID = pred.ID
		}
		pred = next
		obslog.L().Debug("replicate_poll", zap.String("id", pred.ID), zap.String("status", pred.Status), zap.Int("poll", polls+1))
	}

	if pred.Status != "succeeded" {
		return "", fmt.Errorf("%w: status=%s error=%v", ErrPredictionFailed, pred.Status, pred.Error)
	}
	out := pred.text()
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyReply
	}
	return out, nil
}
