package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	yaml "gopkg.in/yaml.v3"

	"github.com/park285/chesslm/internal/domain"
)

//go:embed models.yaml
var embeddedModels []byte

var ErrUnknownModel = errors.New("model not found")

type entry struct {
	ID              string `yaml:"id" validate:"required"`
	Name            string `yaml:"name" validate:"required"`
	Provider        string `yaml:"provider" validate:"required,oneof=openai anthropic replicate"`
	Description     string `yaml:"description"`
	Strength        int    `yaml:"strength" validate:"min=1,max=10"`
	AzureDeployment string `yaml:"azure_deployment"`
	AzureAPIVersion string `yaml:"azure_api_version"`
}

type file struct {
	Default string  `yaml:"default"`
	Models  []entry `yaml:"models" validate:"required,min=1,dive"`
}

// Catalog is the immutable list of models a game can be played with.
type Catalog struct {
	models    []domain.ModelDescriptor
	byID      map[string]int
	defaultID string
}

// Load reads the embedded catalog, or path when it is non-empty.
// defaultID overrides the file's default when it names a known model.
func Load(path, defaultID string) (*Catalog, error) {
	raw := embeddedModels
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read models file: %w", err)
		}
		raw = b
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	if id := strings.TrimSpace(defaultID); id != "" {
		if _, ok := c.byID[id]; !ok {
			return nil, fmt.Errorf("default model %q: %w", id, ErrUnknownModel)
		}
		c.defaultID = id
	}
	return c, nil
}

// MustEmbedded returns the built-in catalog.
func MustEmbedded() *Catalog {
	c, err := Parse(embeddedModels)
	if err != nil {
		panic(err)
	}
	return c
}

func Parse(raw []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse models: %w", err)
	}
	if err := validator.New().Struct(f); err != nil {
		return nil, fmt.Errorf("invalid models: %w", err)
	}

	c := &Catalog{byID: make(map[string]int, len(f.Models))}
	for _, e := range f.Models {
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %q", e.ID)
		}
		c.byID[e.ID] = len(c.models)
		c.models = append(c.models, domain.ModelDescriptor{
			ID:              e.ID,
			Name:            e.Name,
			Provider:        domain.Provider(e.Provider),
			Description:     e.Description,
			Strength:        e.Strength,
			AzureDeployment: e.AzureDeployment,
			AzureAPIVersion: e.AzureAPIVersion,
		})
	}

	c.defaultID = f.Default
	if _, ok := c.byID[c.defaultID]; !ok {
		c.defaultID = c.models[0].ID
	}
	return c, nil
}

// Lookup returns a copy of the model with the given id.
func (c *Catalog) Lookup(id string) (domain.ModelDescriptor, bool) {
	i, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return domain.ModelDescriptor{}, false
	}
	return c.models[i], true
}

func (c *Catalog) Default() domain.ModelDescriptor {
	return c.models[c.byID[c.defaultID]]
}

func (c *Catalog) All() []domain.ModelDescriptor {
	out := make([]domain.ModelDescriptor, len(c.models))
	copy(out, c.models)
	return out
}

func (c *Catalog) ByProvider(p domain.Provider) []domain.ModelDescriptor {
	var out []domain.ModelDescriptor
	for _, m := range c.models {
		if m.Provider == p {
			out = append(out, m)
		}
	}
	return out
}
