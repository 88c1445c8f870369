package game

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/park285/chesslm/internal/domain"
)

var testModel = domain.ModelDescriptor{ID: "gpt-4o", Name: "GPT-4o", Provider: domain.ProviderOpenAI, Strength: 9}

func humanVsAI() domain.GameConfig {
	m := testModel
	return domain.GameConfig{
		Mode:  domain.ModeHumanVsAI,
		White: domain.SideConfig{Kind: domain.AI, Model: &m},
		Black: domain.SideConfig{Kind: domain.Human},
	}
}

func newMachine(t *testing.T) *Machine {
	t.Helper()
	m, err := NewMachine(humanVsAI())
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	return m
}

func TestMachineInitialState(t *testing.T) {
	m := newMachine(t)
	st := m.State()
	if st.SideToMove != domain.White || st.IsGameOver || len(st.Moves) != 0 {
		t.Fatalf("unexpected initial state: %+v", st)
	}
	if !strings.HasPrefix(st.Position.FEN, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w") {
		t.Fatalf("FEN = %s", st.Position.FEN)
	}
	if m.ID() == "" {
		t.Fatalf("game id missing")
	}
}

func TestMachineApplyE2E4(t *testing.T) {
	m := newMachine(t)
	rec, err := m.Apply("e2e4")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rec.From != "e2" || rec.To != "e4" || rec.SAN != "e4" || rec.Promotion != "" {
		t.Fatalf("record = %+v", rec)
	}
	st := m.State()
	if st.SideToMove != domain.Black || len(st.Moves) != 1 {
		t.Fatalf("state = %+v", st)
	}
	if st.Position != st.Moves[len(st.Moves)-1].Position {
		t.Fatalf("state position %+v differs from last move %+v", st.Position, st.Moves[0].Position)
	}
	if st.Position.PGN != "1. e4" {
		t.Fatalf("PGN = %q", st.Position.PGN)
	}
}

func TestMachineRejectLeavesStateUnchanged(t *testing.T) {
	m := newMachine(t)
	if _, err := m.Apply("e2e4"); err != nil {
		t.Fatal(err)
	}
	before := m.State()
	for _, mv := range []string{"e2e4", "e7e4", "a1a8", "zz99", "e7e5k"} {
		if _, err := m.Apply(mv); !errors.Is(err, ErrIllegalMove) {
			t.Fatalf("Apply(%q) err = %v, want ErrIllegalMove", mv, err)
		}
		if after := m.State(); !reflect.DeepEqual(before, after) {
			t.Fatalf("state changed after rejecting %q", mv)
		}
	}
	for _, mv := range []string{"", "e7", "e7e", "e7e5qq", "resign"} {
		if _, err := m.Apply(mv); !errors.Is(err, ErrMalformedMove) {
			t.Fatalf("Apply(%q) err = %v, want ErrMalformedMove", mv, err)
		}
	}
	if after := m.State(); !reflect.DeepEqual(before, after) {
		t.Fatalf("state changed after malformed moves")
	}
}

func TestMachineUppercaseAndWhitespace(t *testing.T) {
	m := newMachine(t)
	rec, err := m.Apply("  G1F3 ")
	if err != nil || rec.SAN != "Nf3" {
		t.Fatalf("Apply = %+v, %v", rec, err)
	}
}

func TestMachinePromotion(t *testing.T) {
	m := newMachine(t)
	for _, mv := range []string{"a2a4", "b7b5", "a4b5", "a7a6", "b5a6", "c8b7", "a6b7", "g8f6"} {
		if _, err := m.Apply(mv); err != nil {
			t.Fatalf("Apply(%s): %v", mv, err)
		}
	}
	before := m.State()
	if _, err := m.Apply("b7a8"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("promotion without piece should be rejected, got %v", err)
	}
	if !reflect.DeepEqual(before, m.State()) {
		t.Fatalf("state changed after rejected promotion")
	}
	rec, err := m.Apply("b7a8q")
	if err != nil {
		t.Fatalf("Apply promotion: %v", err)
	}
	if rec.Promotion != "q" || !strings.HasPrefix(rec.SAN, "bxa8=Q") {
		t.Fatalf("record = %+v", rec)
	}
}

func TestMachineCheckmateIsTerminal(t *testing.T) {
	m := newMachine(t)
	for _, mv := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		if _, err := m.Apply(mv); err != nil {
			t.Fatalf("Apply(%s): %v", mv, err)
		}
	}
	st := m.State()
	if !st.IsGameOver || !st.Checkmate || st.Result != domain.ResultBlack || !st.InCheck {
		t.Fatalf("state = %+v", st)
	}
	if st.Stalemate || st.Draw || st.ThreefoldRepetition || st.InsufficientMaterial {
		t.Fatalf("unexpected draw flags: %+v", st)
	}
	if _, err := m.Apply("a2a3"); !errors.Is(err, ErrGameOver) {
		t.Fatalf("expected ErrGameOver, got %v", err)
	}
}

func TestMachineIsGameOverMatchesFlags(t *testing.T) {
	m := newMachine(t)
	for _, mv := range []string{"g1f3", "g8f6", "f3g1", "f6g8", "g1f3", "g8f6", "f3g1", "f6g8"} {
		if _, err := m.Apply(mv); err != nil {
			t.Fatalf("Apply(%s): %v", mv, err)
		}
		st := m.State()
		flags := st.Checkmate || st.Stalemate || st.ThreefoldRepetition || st.InsufficientMaterial || st.Draw
		if st.IsGameOver != flags {
			t.Fatalf("IsGameOver=%v but flags=%v after %s", st.IsGameOver, flags, mv)
		}
	}
	if st := m.State(); !st.ThreefoldRepetition || st.Result != domain.ResultDraw {
		t.Fatalf("expected threefold draw: %+v", st)
	}
}

func TestMachineStateIsACopy(t *testing.T) {
	m := newMachine(t)
	if _, err := m.Apply("e2e4"); err != nil {
		t.Fatal(err)
	}
	st := m.State()
	st.Moves[0].SAN = "mutated"
	if m.State().Moves[0].SAN != "e4" {
		t.Fatalf("State leaked internal slice")
	}

	m.AddAnalysis(domain.Analysis{Thought: domain.Thought{Move: "e2e4", Alternatives: []domain.Alternative{{Move: "d2d4"}}}, Model: &testModel})
	a := m.Analyses()
	a[0].Thought.Alternatives[0].Move = "mutated"
	a[0].Model.Name = "mutated"
	if got := m.Analyses()[0]; got.Thought.Alternatives[0].Move != "d2d4" || got.Model.Name != "GPT-4o" {
		t.Fatalf("Analyses leaked internal data")
	}
}

func TestRestoreMachine(t *testing.T) {
	m, err := RestoreMachine("g-1", humanVsAI(), []string{"e2e4", "e7e5", "g1f3"}, nil, time.Now())
	if err != nil {
		t.Fatalf("RestoreMachine: %v", err)
	}
	if m.ID() != "g-1" || len(m.State().Moves) != 3 || m.State().SideToMove != domain.Black {
		t.Fatalf("restored state = %+v", m.State())
	}
	if _, err := RestoreMachine("g-2", humanVsAI(), []string{"e2e4", "e2e5"}, nil, time.Now()); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove for illegal history, got %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	bad := []domain.GameConfig{
		{Mode: "solo"},
		{Mode: domain.ModeHumanVsAI, White: domain.SideConfig{Kind: domain.AI}, Black: domain.SideConfig{Kind: domain.Human}},
		{Mode: domain.ModeAIVsAI, White: domain.SideConfig{Kind: domain.AI, Model: &testModel}, Black: domain.SideConfig{Kind: domain.Human}},
		{Mode: domain.ModeHumanVsAI, White: domain.SideConfig{Kind: "robot"}, Black: domain.SideConfig{Kind: domain.Human}},
	}
	for i, cfg := range bad {
		if err := ValidateConfig(cfg); !errors.Is(err, ErrBadConfig) {
			t.Fatalf("case %d: expected ErrBadConfig, got %v", i, err)
		}
	}
	if err := ValidateConfig(humanVsAI()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestExportPGNHeaders(t *testing.T) {
	m := newMachine(t)
	for _, mv := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		if _, err := m.Apply(mv); err != nil {
			t.Fatal(err)
		}
	}
	pgn := m.ExportPGN()
	for _, want := range []string{`[White "GPT-4o"]`, `[Black "Human"]`, `[Result "0-1"]`, "1. f3 e5 2. g4 Qh4"} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("PGN missing %q:\n%s", want, pgn)
		}
	}
	if !strings.HasSuffix(pgn, " 0-1") {
		t.Fatalf("PGN should end with the result:\n%s", pgn)
	}
}
