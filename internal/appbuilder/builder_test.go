package appbuilder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/park285/chesslm/internal/catalog"
	"github.com/park285/chesslm/internal/config"
	"github.com/park285/chesslm/internal/domain"
	"github.com/park285/chesslm/internal/game"
	"github.com/park285/chesslm/internal/store"
)

type cannedTransport struct{ reply string }

func (c cannedTransport) Complete(context.Context, domain.ModelDescriptor, string, string) (string, error) {
	return c.reply, nil
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		ListenAddr:   ":0",
		LLMTimeout:   time.Second,
		SnapshotTTL:  time.Hour,
		DefaultModel: "gpt-3.5-turbo",
	}
}

func TestNewWiresControllerAndStore(t *testing.T) {
	d, err := New(testConfig(), nil, WithTransport(cannedTransport{reply: `{"move": "e2e4", "reasoning": "center"}`}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if _, ok := d.Store.(*store.Memory); !ok {
		t.Fatalf("expected memory store without REDIS_URL, got %T", d.Store)
	}

	cfg, err := d.GameConfig(domain.ModeHumanVsAI, SideSpec{Kind: domain.AI}, SideSpec{Kind: domain.Human}, nil)
	if err != nil {
		t.Fatalf("GameConfig: %v", err)
	}
	if cfg.White.Model == nil || cfg.White.Model.ID != "gpt-3.5-turbo" {
		t.Fatalf("default model not applied: %+v", cfg.White)
	}

	snap, err := d.Controller.Start(cfg)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := d.Controller.RunAITurn(context.Background()); err != nil {
		t.Fatalf("RunAITurn: %v", err)
	}

	rec, err := d.Store.Load(context.Background(), snap.GameID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rec.MovesUCI) != 1 || rec.MovesUCI[0] != "e2e4" || len(rec.Analyses) != 1 {
		t.Fatalf("stored record = %+v", rec)
	}
}

func TestGameConfigRejectsUnknownModel(t *testing.T) {
	d, err := New(testConfig(), nil, WithTransport(cannedTransport{}))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = d.Close() })

	_, err = d.GameConfig(domain.ModeAIVsAI, SideSpec{Kind: domain.AI, ModelID: "gpt-9"}, SideSpec{Kind: domain.AI}, nil)
	if !errors.Is(err, catalog.ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
	_, err = d.GameConfig(domain.ModeAIVsAI, SideSpec{Kind: domain.Human}, SideSpec{Kind: domain.AI}, nil)
	if !errors.Is(err, game.ErrBadConfig) {
		t.Fatalf("expected ErrBadConfig, got %v", err)
	}
}

func TestNewRejectsUnknownDefaultModel(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultModel = "nope"
	if _, err := New(cfg, nil); !errors.Is(err, catalog.ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
}
