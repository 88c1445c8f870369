package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	ListenAddr string

	OpenAIAPIKey  string
	OpenAIBaseURL string

	AzureEndpoint string
	AzureAPIKey   string

	AnthropicAPIKey  string
	AnthropicBaseURL string

	ReplicateToken        string
	ReplicateBaseURL      string
	ReplicatePollInterval time.Duration
	ReplicateMaxPolls     int

	LLMTimeout time.Duration
	LLMRetry   int

	AIMinInterval time.Duration
	AIMoveDelay   time.Duration
	AutoPlay      bool

	RedisURL    string
	SnapshotTTL time.Duration

	ModelsFile   string
	MessagesDir  string
	DefaultModel string

	// RateLimit is requests per minute per client on the HTTP API. Zero disables the limiter.
	RateLimit int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{
		ListenAddr:            ":3001",
		OpenAIBaseURL:         "https://api.openai.com",
		AnthropicBaseURL:      "https://api.anthropic.com",
		ReplicateBaseURL:      "https://api.replicate.com",
		ReplicatePollInterval: time.Second,
		ReplicateMaxPolls:     120,
		LLMTimeout:            60 * time.Second,
		LLMRetry:              0,
		AIMinInterval:         500 * time.Millisecond,
		AIMoveDelay:           time.Second,
		AutoPlay:              true,
		SnapshotTTL:           24 * time.Hour,
		DefaultModel:          "gpt-3.5-turbo",
		RateLimit:             120,
	}

	if v := env("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}

	cfg.OpenAIAPIKey = env("OPENAI_API_KEY")
	if v := env("OPENAI_BASE_URL"); v != "" {
		cfg.OpenAIBaseURL = strings.TrimRight(v, "/")
	}
	cfg.AzureEndpoint = strings.TrimRight(env("AZURE_OPENAI_ENDPOINT"), "/")
	cfg.AzureAPIKey = env("AZURE_OPENAI_API_KEY")

	cfg.AnthropicAPIKey = env("ANTHROPIC_API_KEY")
	if v := env("ANTHROPIC_BASE_URL"); v != "" {
		cfg.AnthropicBaseURL = strings.TrimRight(v, "/")
	}

	cfg.ReplicateToken = env("REPLICATE_API_TOKEN")
	if v := env("REPLICATE_BASE_URL"); v != "" {
		cfg.ReplicateBaseURL = strings.TrimRight(v, "/")
	}

	var err error
	if cfg.ReplicatePollInterval, err = durationEnv("REPLICATE_POLL_INTERVAL", cfg.ReplicatePollInterval); err != nil {
		return nil, err
	}
	if v := env("REPLICATE_MAX_POLLS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("REPLICATE_MAX_POLLS must be a positive integer: %q", v)
		}
		cfg.ReplicateMaxPolls = n
	}
	if cfg.LLMTimeout, err = durationEnv("LLM_TIMEOUT", cfg.LLMTimeout); err != nil {
		return nil, err
	}
	if v := env("LLM_RETRY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.LLMRetry = n
		}
	}

	if cfg.AIMinInterval, err = durationEnv("AI_MIN_INTERVAL", cfg.AIMinInterval); err != nil {
		return nil, err
	}
	if cfg.AIMoveDelay, err = durationEnv("AI_MOVE_DELAY", cfg.AIMoveDelay); err != nil {
		return nil, err
	}
	if v := env("AUTO_PLAY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			cfg.AutoPlay = b
		}
	}

	cfg.RedisURL = env("REDIS_URL")
	if cfg.SnapshotTTL, err = durationEnv("SNAPSHOT_TTL", cfg.SnapshotTTL); err != nil {
		return nil, err
	}

	cfg.ModelsFile = env("MODELS_FILE")
	cfg.MessagesDir = env("MESSAGES_DIR")
	if v := env("DEFAULT_MODEL"); v != "" {
		cfg.DefaultModel = v
	}
	if v := env("RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.RateLimit = n
		}
	}

	if cfg.ListenAddr == "" {
		return nil, errors.New("LISTEN_ADDR is required")
	}
	if cfg.LLMTimeout <= 0 {
		return nil, errors.New("LLM_TIMEOUT must be positive")
	}
	return cfg, nil
}

// AzureEnabled reports whether openai models are routed through Azure deployments.
func (c *AppConfig) AzureEnabled() bool { return c.AzureEndpoint != "" }

// AzureIssues lists problems with the Azure settings. They are warnings; the
// server still starts and the affected requests fail at call time.
func (c *AppConfig) AzureIssues() []string {
	if !c.AzureEnabled() {
		return nil
	}
	var issues []string
	if c.AzureAPIKey == "" {
		issues = append(issues, "AZURE_OPENAI_API_KEY is not set")
	}
	if !strings.HasPrefix(c.AzureEndpoint, "https://") {
		issues = append(issues, "AZURE_OPENAI_ENDPOINT should start with https://")
	}
	if !azureHost(c.AzureEndpoint) {
		issues = append(issues, "AZURE_OPENAI_ENDPOINT should look like https://<resource>.openai.azure.com or https://<resource>.cognitiveservices.azure.com")
	}
	return issues
}

var azureHostSuffixes = []string{".openai.azure.com", ".cognitiveservices.azure.com"}

func azureHost(endpoint string) bool {
	for _, suffix := range azureHostSuffixes {
		if strings.Contains(endpoint, suffix) {
			return true
		}
	}
	return false
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// durationEnv accepts Go durations ("750ms", "2m") or a bare number of seconds.
func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := env(key)
	if v == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a duration: %q", key, v)
	}
	return d, nil
}
