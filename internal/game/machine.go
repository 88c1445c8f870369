package game

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/park285/chesslm/internal/domain"
	"github.com/park285/chesslm/internal/rules"
)

var (
	ErrMalformedMove = errors.New("malformed move")
	ErrIllegalMove   = errors.New("illegal move")
	ErrGameOver      = errors.New("game is over")
	ErrBadConfig     = errors.New("invalid game config")
)

// Machine is the explicit game state object. It is not safe for concurrent
// use; the Controller is its only writer.
type Machine struct {
	id        string
	cfg       domain.GameConfig
	board     *rules.Board
	state     domain.GameState
	analyses  []domain.Analysis
	startedAt time.Time
	now       func() time.Time
}

func NewMachine(cfg domain.GameConfig) (*Machine, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	m := &Machine{
		id:        uuid.NewString(),
		cfg:       copyConfig(cfg),
		board:     rules.New(),
		startedAt: time.Now(),
		now:       time.Now,
	}
	m.recompute()
	return m, nil
}

// RestoreMachine rebuilds a game from its identity and coordinate move list.
func RestoreMachine(id string, cfg domain.GameConfig, moves []string, analyses []domain.Analysis, startedAt time.Time) (*Machine, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	// Reject an illegal history before any record is built.
	if _, err := rules.Replay(moves); err != nil {
		return nil, fmt.Errorf("restore %s: %w: %v", id, ErrIllegalMove, err)
	}
	m := &Machine{id: id, cfg: copyConfig(cfg), board: rules.New(), startedAt: startedAt, now: time.Now}
	m.recompute()
	for _, mv := range moves {
		if _, err := m.Apply(mv); err != nil {
			return nil, fmt.Errorf("restore %s: %w", id, err)
		}
	}
	m.analyses = copyAnalyses(analyses)
	return m, nil
}

// ValidateConfig checks that every AI side has a model with a known provider.
func ValidateConfig(cfg domain.GameConfig) error {
	switch cfg.Mode {
	case domain.ModeHumanVsAI, domain.ModeAIVsAI:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrBadConfig, cfg.Mode)
	}
	for _, color := range []domain.Color{domain.White, domain.Black} {
		side := cfg.Side(color)
		switch side.Kind {
		case domain.Human:
			if cfg.Mode == domain.ModeAIVsAI {
				return fmt.Errorf("%w: %s must be ai in %s mode", ErrBadConfig, color, cfg.Mode)
			}
		case domain.AI:
			if side.Model == nil || side.Model.ID == "" {
				return fmt.Errorf("%w: %s is ai but has no model", ErrBadConfig, color)
			}
			if !side.Model.Provider.Valid() {
				return fmt.Errorf("%w: %s model provider %q", ErrBadConfig, color, side.Model.Provider)
			}
		default:
			return fmt.Errorf("%w: %s player kind %q", ErrBadConfig, color, side.Kind)
		}
	}
	return nil
}

func (m *Machine) ID() string { return m.id }

func (m *Machine) StartedAt() time.Time { return m.startedAt }

func (m *Machine) Config() domain.GameConfig { return copyConfig(m.cfg) }

// Apply validates and plays a coordinate move. A rejected move leaves the state untouched.
func (m *Machine) Apply(moveText string) (domain.MoveRecord, error) {
	mv := strings.ToLower(strings.TrimSpace(moveText))
	if len(mv) < 4 || len(mv) > 5 {
		return domain.MoveRecord{}, fmt.Errorf("%w: %q", ErrMalformedMove, moveText)
	}
	if m.state.IsGameOver {
		return domain.MoveRecord{}, ErrGameOver
	}
	from, to, promo := mv[0:2], mv[2:4], ""
	if len(mv) == 5 {
		promo = mv[4:5]
	}

	applied, err := m.board.Apply(from, to, promo)
	switch {
	case errors.Is(err, rules.ErrGameFinished):
		return domain.MoveRecord{}, ErrGameOver
	case err != nil:
		return domain.MoveRecord{}, fmt.Errorf("%w: %s", ErrIllegalMove, mv)
	}

	rec := domain.MoveRecord{
		From:      from,
		To:        to,
		Promotion: promo,
		SAN:       applied.SAN,
		Position:  domain.Position{FEN: applied.FEN, PGN: m.board.PGN()},
		CreatedAt: m.now(),
	}
	m.state.Moves = append(m.state.Moves, rec)
	m.recompute()
	return rec, nil
}

// recompute rebuilds every derived field of the state from the board.
func (m *Machine) recompute() {
	st := m.board.Status()
	code, title := m.board.Opening()
	white, black := m.board.Material()

	side := domain.White
	if m.board.SideToMove() == "black" {
		side = domain.Black
	}
	m.state = domain.GameState{
		Position:             domain.Position{FEN: m.board.FEN(), PGN: m.board.PGN()},
		Moves:                m.state.Moves,
		SideToMove:           side,
		InCheck:              st.InCheck,
		Checkmate:            st.Checkmate,
		Stalemate:            st.Stalemate,
		Draw:                 st.Draw,
		ThreefoldRepetition:  st.ThreefoldRepetition,
		InsufficientMaterial: st.InsufficientMaterial,
		Result:               domain.Result(st.Result),
		Method:               st.Method,
		Opening:              domain.Opening{Code: code, Title: title},
		Material:             domain.Material{White: white, Black: black},
	}
	m.state.IsGameOver = m.state.Checkmate || m.state.Stalemate || m.state.ThreefoldRepetition ||
		m.state.InsufficientMaterial || m.state.Draw
}

// State returns a deep copy of the current state.
func (m *Machine) State() domain.GameState {
	st := m.state
	st.Moves = append([]domain.MoveRecord(nil), m.state.Moves...)
	return st
}

func (m *Machine) AddAnalysis(a domain.Analysis) {
	m.analyses = append(m.analyses, copyAnalysis(a))
}

func (m *Machine) Analyses() []domain.Analysis { return copyAnalyses(m.analyses) }

func (m *Machine) LegalDestinations(square string) ([]string, error) {
	return m.board.LegalDestinations(square)
}

func (m *Machine) LegalMoves() []string { return m.board.LegalMoves() }

func (m *Machine) NeedsPromotion(from, to string) bool { return m.board.NeedsPromotion(from, to) }

// ExportPGN renders the game with Seven Tag Roster headers plus player and time-control tags.
func (m *Machine) ExportPGN() string {
	tags := []rules.Tag{
		{Key: "Event", Value: "ChessLM Game"},
		{Key: "Site", Value: "chesslm"},
		{Key: "Date", Value: m.startedAt.Format("2006.01.02")},
		{Key: "Round", Value: "-"},
		{Key: "White", Value: playerLabel(m.cfg.White)},
		{Key: "Black", Value: playerLabel(m.cfg.Black)},
	}
	if tc := m.cfg.TimeControl; tc != nil {
		tags = append(tags, rules.Tag{Key: "TimeControl", Value: fmt.Sprintf("%d+%d", tc.Minutes*60, tc.IncrementSec)})
	}
	if m.state.Opening.Code != "" {
		tags = append(tags, rules.Tag{Key: "ECO", Value: m.state.Opening.Code}, rules.Tag{Key: "Opening", Value: m.state.Opening.Title})
	}
	if m.state.Method != "" {
		tags = append(tags, rules.Tag{Key: "Termination", Value: m.state.Method})
	}
	return m.board.ExportPGN(tags)
}

func playerLabel(side domain.SideConfig) string {
	if side.Kind == domain.AI && side.Model != nil {
		if side.Model.Name != "" {
			return side.Model.Name
		}
		return side.Model.ID
	}
	return "Human"
}

func copyConfig(cfg domain.GameConfig) domain.GameConfig {
	out := cfg
	out.White = copySide(cfg.White)
	out.Black = copySide(cfg.Black)
	if cfg.TimeControl != nil {
		tc := *cfg.TimeControl
		out.TimeControl = &tc
	}
	return out
}

func copySide(s domain.SideConfig) domain.SideConfig {
	if s.Model != nil {
		md := *s.Model
		s.Model = &md
	}
	return s
}

func copyAnalysis(a domain.Analysis) domain.Analysis {
	a.Thought.Alternatives = append([]domain.Alternative(nil), a.Thought.Alternatives...)
	if a.Model != nil {
		md := *a.Model
		a.Model = &md
	}
	return a
}

func copyAnalyses(in []domain.Analysis) []domain.Analysis {
	out := make([]domain.Analysis, len(in))
	for i, a := range in {
		out[i] = copyAnalysis(a)
	}
	return out
}
