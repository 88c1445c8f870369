package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/chesslm/internal/domain"
)

var (
	gpt4o = domain.ModelDescriptor{ID: "gpt-4o", Provider: domain.ProviderOpenAI, AzureDeployment: "gpt-4o", AzureAPIVersion: "2025-01-01-preview"}
	haiku = domain.ModelDescriptor{ID: "claude-3-haiku", Provider: domain.ProviderAnthropic}
	llama = domain.ModelDescriptor{ID: "llama-2-13b-chat", Provider: domain.ProviderReplicate}
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) add(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, p)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func chatBody(content string) map[string]any {
	return map[string]any{"choices": []any{map[string]any{"message": map[string]any{"content": content}}}}
}

func TestAzureCandidatesDeduplicated(t *testing.T) {
	got := azureCandidates(domain.ModelDescriptor{ID: "o4-mini", AzureDeployment: "o4-mini", AzureAPIVersion: "2025-01-01-preview"})
	if len(got) != 4 || got[0].Name != "o4-mini" || got[1].Name != "gpt-4o-mini" {
		t.Fatalf("candidates = %+v", got)
	}
	got = azureCandidates(domain.ModelDescriptor{ID: "custom"})
	if len(got) != 5 || got[0] != (azureDeployment{Name: "custom", APIVersion: "2024-02-15-preview"}) {
		t.Fatalf("candidates = %+v", got)
	}
}

func TestAzureFallsThroughCandidates(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r.URL.Path + "?" + r.URL.RawQuery)
		if r.Header.Get("api-key") != "azure-key" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "bad key"})
			return
		}
		switch {
		case strings.Contains(r.URL.Path, "/deployments/gpt-4o/"):
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "DeploymentNotFound"})
		case strings.Contains(r.URL.Path, "/deployments/o4-mini/"):
			writeJSON(w, http.StatusOK, chatBody(""))
		case strings.Contains(r.URL.Path, "/deployments/gpt-4o-mini/"):
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["max_completion_tokens"] != float64(1000) {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": "tokens"})
				return
			}
			writeJSON(w, http.StatusOK, chatBody(`{"move":"e2e4"}`))
		default:
			t.Errorf("unexpected deployment %s", r.URL.Path)
			writeJSON(w, http.StatusInternalServerError, nil)
		}
	}))
	defer srv.Close()

	r := NewRouter(Settings{AzureEndpoint: srv.URL + "/", AzureKey: "azure-key"})
	got, err := r.Complete(context.Background(), gpt4o, "sys", "user")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"move":"e2e4"}` {
		t.Fatalf("reply = %q", got)
	}
	paths := rec.list()
	want := []string{
		"/openai/deployments/gpt-4o/chat/completions?api-version=2025-01-01-preview",
		"/openai/deployments/o4-mini/chat/completions?api-version=2025-01-01-preview",
		"/openai/deployments/gpt-4o-mini/chat/completions?api-version=2024-02-15-preview",
	}
	if strings.Join(paths, "\n") != strings.Join(want, "\n") {
		t.Fatalf("requests:\n%s", strings.Join(paths, "\n"))
	}
}

func TestAzureAllCandidatesFail(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "nope"})
	}))
	defer srv.Close()

	r := NewRouter(Settings{AzureEndpoint: srv.URL, AzureKey: "k"})
	_, err := r.Complete(context.Background(), gpt4o, "sys", "user")
	if !errors.Is(err, ErrAllCandidatesFailed) {
		t.Fatalf("expected ErrAllCandidatesFailed, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusNotFound {
		t.Fatalf("expected wrapped StatusError, got %v", err)
	}
	if calls.Load() != 5 {
		t.Fatalf("calls = %d, want 5", calls.Load())
	}
}

func TestStandardOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" || r.Header.Get("Authorization") != "Bearer sk-test" {
			writeJSON(w, http.StatusUnauthorized, nil)
			return
		}
		var body struct {
			Model       string        `json:"model"`
			Temperature float64       `json:"temperature"`
			MaxTokens   int           `json:"max_completion_tokens"`
			Messages    []chatMessage `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Model != "gpt-4o" || body.Temperature != 0.7 || body.MaxTokens != 500 || len(body.Messages) != 2 || body.Messages[0].Role != "system" {
			writeJSON(w, http.StatusBadRequest, body)
			return
		}
		writeJSON(w, http.StatusOK, chatBody("g1f3"))
	}))
	defer srv.Close()

	r := NewRouter(Settings{OpenAIKey: "sk-test", OpenAIBaseURL: srv.URL})
	got, err := r.Complete(context.Background(), gpt4o, "sys", "user")
	if err != nil || got != "g1f3" {
		t.Fatalf("Complete = %q, %v", got, err)
	}
}

func TestStatusErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, "slow down")
	}))
	defer srv.Close()

	r := NewRouter(Settings{OpenAIKey: "sk", OpenAIBaseURL: srv.URL})
	_, err := r.Complete(context.Background(), gpt4o, "s", "u")
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusTooManyRequests || se.Body != "slow down" {
		t.Fatalf("expected StatusError 429, got %v", err)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusBadGateway, nil)
			return
		}
		writeJSON(w, http.StatusOK, chatBody("ok"))
	}))
	defer srv.Close()

	r := NewRouter(Settings{OpenAIKey: "sk", OpenAIBaseURL: srv.URL}, WithRetry(1))
	got, err := r.Complete(context.Background(), gpt4o, "s", "u")
	if err != nil || got != "ok" || calls.Load() != 2 {
		t.Fatalf("Complete = %q, %v after %d calls", got, err, calls.Load())
	}
}

func TestAnthropic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" || r.Header.Get("x-api-key") != "ak" || r.Header.Get("anthropic-version") != "2023-06-01" {
			writeJSON(w, http.StatusUnauthorized, nil)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["system"] != "sys" || body["max_tokens"] != float64(1000) || body["model"] != "claude-3-haiku" {
			writeJSON(w, http.StatusBadRequest, body)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"content": []any{map[string]any{"type": "text", "text": `{"move":"d2d4"}`}}})
	}))
	defer srv.Close()

	r := NewRouter(Settings{AnthropicKey: "ak", AnthropicBaseURL: srv.URL})
	got, err := r.Complete(context.Background(), haiku, "sys", "user")
	if err != nil || got != `{"move":"d2d4"}` {
		t.Fatalf("Complete = %q, %v", got, err)
	}
}

func TestAnthropicEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"content": []any{}})
	}))
	defer srv.Close()

	r := NewRouter(Settings{AnthropicKey: "ak", AnthropicBaseURL: srv.URL})
	if _, err := r.Complete(context.Background(), haiku, "s", "u"); !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("expected ErrEmptyReply, got %v", err)
	}
}

func replicateServer(t *testing.T, statuses []string, polls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token rt" {
			writeJSON(w, http.StatusUnauthorized, nil)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/predictions":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["version"] != "meta/llama-2-13b-chat:latest" {
				writeJSON(w, http.StatusBadRequest, body)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"id": "p1", "status": "starting"})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/predictions/p1":
			n := int(polls.Add(1))
			status := statuses[len(statuses)-1]
			if n <= len(statuses) {
				status = statuses[n-1]
			}
			resp := map[string]any{"id": "p1", "status": status}
			switch status {
			case "succeeded":
				resp["output"] = []any{`{"move": `, `"c2c4"}`}
			case "failed":
				resp["error"] = "model crashed"
			}
			writeJSON(w, http.StatusOK, resp)
		default:
			writeJSON(w, http.StatusNotFound, nil)
		}
	}))
}

func TestReplicatePollsUntilSucceeded(t *testing.T) {
	var polls atomic.Int32
	srv := replicateServer(t, []string{"processing", "processing", "succeeded"}, &polls)
	defer srv.Close()

	r := NewRouter(Settings{ReplicateToken: "rt", ReplicateBaseURL: srv.URL, PollInterval: time.Millisecond, MaxPolls: 10})
	got, err := r.Complete(context.Background(), llama, "sys", "user")
	if err != nil || got != `{"move": "c2c4"}` {
		t.Fatalf("Complete = %q, %v", got, err)
	}
	if polls.Load() != 3 {
		t.Fatalf("polls = %d, want 3", polls.Load())
	}
}

func TestReplicatePollLimit(t *testing.T) {
	var polls atomic.Int32
	srv := replicateServer(t, []string{"processing"}, &polls)
	defer srv.Close()

	r := NewRouter(Settings{ReplicateToken: "rt", ReplicateBaseURL: srv.URL, PollInterval: time.Millisecond, MaxPolls: 3})
	_, err := r.Complete(context.Background(), llama, "sys", "user")
	if !errors.Is(err, ErrPollLimit) {
		t.Fatalf("expected ErrPollLimit, got %v", err)
	}
	if polls.Load() != 3 {
		t.Fatalf("polls = %d, want 3", polls.Load())
	}
}

func TestReplicateFailed(t *testing.T) {
	var polls atomic.Int32
	srv := replicateServer(t, []string{"failed"}, &polls)
	defer srv.Close()

	r := NewRouter(Settings{ReplicateToken: "rt", ReplicateBaseURL: srv.URL, PollInterval: time.Millisecond})
	_, err := r.Complete(context.Background(), llama, "sys", "user")
	if !errors.Is(err, ErrPredictionFailed) || !strings.Contains(err.Error(), "model crashed") {
		t.Fatalf("expected ErrPredictionFailed, got %v", err)
	}
}

func TestMissingCredentialsMakeNoRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, nil)
	}))
	defer srv.Close()

	r := NewRouter(Settings{OpenAIBaseURL: srv.URL, AnthropicBaseURL: srv.URL, ReplicateBaseURL: srv.URL})
	for _, m := range []domain.ModelDescriptor{gpt4o, haiku, llama} {
		if _, err := r.Complete(context.Background(), m, "s", "u"); !errors.Is(err, ErrMissingCredential) {
			t.Fatalf("%s: expected ErrMissingCredential, got %v", m.ID, err)
		}
	}
	azure := NewRouter(Settings{AzureEndpoint: srv.URL})
	if _, err := azure.Complete(context.Background(), gpt4o, "s", "u"); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("azure: expected ErrMissingCredential, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("no request expected, got %d", calls.Load())
	}
}

func TestUnknownProvider(t *testing.T) {
	r := NewRouter(Settings{})
	_, err := r.Complete(context.Background(), domain.ModelDescriptor{ID: "x", Provider: "gemini"}, "s", "u")
	if !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}
