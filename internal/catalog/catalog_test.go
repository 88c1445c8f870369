package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/park285/chesslm/internal/domain"
)

func TestEmbeddedCatalog(t *testing.T) {
	c := MustEmbedded()
	if n := len(c.All()); n != 11 {
		t.Fatalf("models = %d, want 11", n)
	}
	if d := c.Default(); d.ID != "gpt-3.5-turbo" || d.AzureDeployment != "gpt-turbo" {
		t.Fatalf("default = %+v", d)
	}
	if got := len(c.ByProvider(domain.ProviderOpenAI)); got != 5 {
		t.Fatalf("openai models = %d", got)
	}
	if got := len(c.ByProvider(domain.ProviderAnthropic)); got != 3 {
		t.Fatalf("anthropic models = %d", got)
	}
	if got := len(c.ByProvider(domain.ProviderReplicate)); got != 3 {
		t.Fatalf("replicate models = %d", got)
	}
	m, ok := c.Lookup("gpt-4o")
	if !ok || m.Strength != 9 || m.AzureAPIVersion != "2025-01-01-preview" {
		t.Fatalf("gpt-4o = %+v %v", m, ok)
	}
	if _, ok := c.Lookup("gpt-5-ultra"); ok {
		t.Fatalf("unknown model should not resolve")
	}
}

func TestAllReturnsCopy(t *testing.T) {
	c := MustEmbedded()
	all := c.All()
	all[0].Name = "mutated"
	if m, _ := c.Lookup(all[0].ID); m.Name == "mutated" {
		t.Fatalf("All must not expose internal storage")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	body := "models:\n  - id: local\n    name: Local\n    provider: openai\n    strength: 3\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Default().ID != "local" {
		t.Fatalf("default should fall back to first model, got %s", c.Default().ID)
	}
	if _, err := Load(path, "gpt-4o"); !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
	c, err = Load("", "claude-3-haiku")
	if err != nil || c.Default().ID != "claude-3-haiku" {
		t.Fatalf("default override failed: %v", err)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := []string{
		"models: []\n",
		"models:\n  - id: x\n    name: X\n    provider: gemini\n    strength: 5\n",
		"models:\n  - id: x\n    name: X\n    provider: openai\n    strength: 11\n",
		"models:\n  - id: x\n    name: X\n    provider: openai\n    strength: 5\n  - id: x\n    name: Y\n    provider: openai\n    strength: 5\n",
	}
	for _, body := range cases {
		if _, err := Parse([]byte(body)); err == nil {
			t.Fatalf("expected error for:\n%s", body)
		}
	}
}
