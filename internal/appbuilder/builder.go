package appbuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chesslm/internal/catalog"
	"github.com/park285/chesslm/internal/config"
	"github.com/park285/chesslm/internal/domain"
	"github.com/park285/chesslm/internal/game"
	"github.com/park285/chesslm/internal/llm"
	"github.com/park285/chesslm/internal/msgcat"
	"github.com/park285/chesslm/internal/render"
	"github.com/park285/chesslm/internal/store"
)

type Deps struct {
	Config     *config.AppConfig
	Models     *catalog.Catalog
	Messages   *msgcat.Catalog
	Transport  llm.Transport
	Suggester  *llm.Suggester
	Controller *game.Controller
	Store      store.Store
	Renderer   render.BoardRenderer
	Logger     *zap.Logger
}

// Option overrides a dependency before the controller is built. Tests use it
// to swap the transport for a fake.
type Option func(*Deps)

func WithTransport(t llm.Transport) Option {
	return func(d *Deps) { d.Transport = t }
}

func WithStore(s store.Store) Option {
	return func(d *Deps) { d.Store = s }
}

func New(cfg *config.AppConfig, logger *zap.Logger, opts ...Option) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{Config: cfg, Logger: logger, Renderer: render.New()}
	for _, opt := range opts {
		opt(d)
	}

	models, err := catalog.Load(cfg.ModelsFile, cfg.DefaultModel)
	if err != nil {
		return nil, fmt.Errorf("load models: %w", err)
	}
	d.Models = models

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	d.Messages = msgs

	for _, issue := range cfg.AzureIssues() {
		logger.Warn("azure_config_issue", zap.String("issue", issue))
	}

	if d.Transport == nil {
		d.Transport = llm.NewRouter(llm.Settings{
			OpenAIKey:        cfg.OpenAIAPIKey,
			OpenAIBaseURL:    cfg.OpenAIBaseURL,
			AzureEndpoint:    cfg.AzureEndpoint,
			AzureKey:         cfg.AzureAPIKey,
			AnthropicKey:     cfg.AnthropicAPIKey,
			AnthropicBaseURL: cfg.AnthropicBaseURL,
			ReplicateToken:   cfg.ReplicateToken,
			ReplicateBaseURL: cfg.ReplicateBaseURL,
			PollInterval:     cfg.ReplicatePollInterval,
			MaxPolls:         cfg.ReplicateMaxPolls,
		}, llm.WithTimeout(cfg.LLMTimeout), llm.WithRetry(cfg.LLMRetry))
	}
	d.Suggester = llm.NewSuggester(llm.NewPromptBuilder(msgs), d.Transport)

	if d.Store == nil {
		if strings.TrimSpace(cfg.RedisURL) != "" {
			rs, err := store.NewRedis(cfg.RedisURL, cfg.SnapshotTTL)
			if err != nil {
				return nil, fmt.Errorf("init redis store: %w", err)
			}
			d.Store = rs
		} else {
			logger.Info("snapshot_store_memory", zap.Duration("ttl", cfg.SnapshotTTL))
			d.Store = store.NewMemory(cfg.SnapshotTTL)
		}
	}

	d.Controller = game.NewController(d.Suggester, game.Options{
		MinInterval: cfg.AIMinInterval,
		MoveDelay:   cfg.AIMoveDelay,
		AutoPlay:    cfg.AutoPlay,
	}, logger)
	d.Controller.Subscribe(d.persist)

	logger.Info("app_built",
		zap.Int("models", len(models.All())),
		zap.String("default_model", models.Default().ID),
		zap.Bool("azure", cfg.AzureEnabled()),
		zap.Bool("auto_play", cfg.AutoPlay),
	)
	return d, nil
}

// persist saves every settled state. Thinking events carry nothing new.
func (d *Deps) persist(ev game.Event) {
	if ev.Kind == game.EventThinking || ev.Snapshot.GameID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := d.Store.Save(ctx, store.FromSnapshot(ev.Snapshot))
	switch {
	case errors.Is(err, store.ErrStaleSnapshot):
		d.Logger.Debug("snapshot_stale", zap.String("game_id", ev.Snapshot.GameID))
	case err != nil:
		d.Logger.Warn("snapshot_save_failed", zap.String("game_id", ev.Snapshot.GameID), zap.Error(err))
	}
}

// GameConfig builds a config from player kinds and model ids. An ai side with
// an empty id gets the catalog default.
func (d *Deps) GameConfig(mode domain.Mode, white, black SideSpec, tc *domain.TimeControl) (domain.GameConfig, error) {
	ws, err := d.side(white)
	if err != nil {
		return domain.GameConfig{}, err
	}
	bs, err := d.side(black)
	if err != nil {
		return domain.GameConfig{}, err
	}
	cfg := domain.GameConfig{Mode: mode, White: ws, Black: bs, TimeControl: tc}
	if err := game.ValidateConfig(cfg); err != nil {
		return domain.GameConfig{}, err
	}
	return cfg, nil
}

type SideSpec struct {
	Kind    domain.PlayerKind
	ModelID string
}

func (d *Deps) side(s SideSpec) (domain.SideConfig, error) {
	if s.Kind != domain.AI {
		return domain.SideConfig{Kind: s.Kind}, nil
	}
	m := d.Models.Default()
	if id := strings.TrimSpace(s.ModelID); id != "" {
		var ok bool
		if m, ok = d.Models.Lookup(id); !ok {
			return domain.SideConfig{}, fmt.Errorf("%w: %s", catalog.ErrUnknownModel, id)
		}
	}
	return domain.SideConfig{Kind: domain.AI, Model: &m}, nil
}

func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	if d.Controller != nil {
		d.Controller.Close()
	}
	if d.Store != nil {
		return d.Store.Close()
	}
	return nil
}
