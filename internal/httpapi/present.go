package httpapi

import (
	"time"

	"github.com/park285/chesslm/internal/domain"
	"github.com/park285/chesslm/internal/game"
	"github.com/park285/chesslm/internal/store"
	"github.com/park285/chesslm/pkg/chessdto"
)

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func modelDTO(m domain.ModelDescriptor) chessdto.Model {
	return chessdto.Model{
		ID:                  m.ID,
		Name:                m.Name,
		Provider:            string(m.Provider),
		Description:         m.Description,
		Strength:            m.Strength,
		AzureDeploymentName: m.AzureDeployment,
		AzureAPIVersion:     m.AzureAPIVersion,
	}
}

func modelPtr(m *domain.ModelDescriptor) *chessdto.Model {
	if m == nil {
		return nil
	}
	dto := modelDTO(*m)
	return &dto
}

func configDTO(cfg domain.GameConfig) chessdto.GameConfig {
	out := chessdto.GameConfig{
		Mode:        string(cfg.Mode),
		WhitePlayer: chessdto.Player{Type: string(cfg.White.Kind), Model: modelPtr(cfg.White.Model)},
		BlackPlayer: chessdto.Player{Type: string(cfg.Black.Kind), Model: modelPtr(cfg.Black.Model)},
	}
	if tc := cfg.TimeControl; tc != nil {
		out.TimeControl = &chessdto.TimeControl{Time: tc.Minutes, Increment: tc.IncrementSec}
	}
	return out
}

func moveDTO(m domain.MoveRecord) chessdto.Move {
	return chessdto.Move{
		From:      m.From,
		To:        m.To,
		Promotion: m.Promotion,
		SAN:       m.SAN,
		FEN:       m.Position.FEN,
		Timestamp: millis(m.CreatedAt),
	}
}

func thoughtDTO(t domain.Thought) chessdto.Thought {
	alts := make([]chessdto.Alternative, len(t.Alternatives))
	for i, a := range t.Alternatives {
		alts[i] = chessdto.Alternative{Move: a.Move, Evaluation: a.Evaluation, Reasoning: a.Reasoning}
	}
	return chessdto.Thought{
		Move:         t.Move,
		Reasoning:    t.Reasoning,
		Evaluation:   t.Evaluation,
		Depth:        t.Depth,
		Alternatives: alts,
		Timestamp:    millis(t.Timestamp),
	}
}

func analysesDTO(in []domain.Analysis) []chessdto.Analysis {
	out := make([]chessdto.Analysis, len(in))
	for i, a := range in {
		out[i] = chessdto.Analysis{
			Move:       moveDTO(a.Move),
			Thought:    thoughtDTO(a.Thought),
			PlayerType: string(a.PlayerKind),
			Model:      modelPtr(a.Model),
		}
	}
	return out
}

func stateDTO(st domain.GameState) chessdto.GameState {
	moves := make([]chessdto.Move, len(st.Moves))
	for i, m := range st.Moves {
		moves[i] = moveDTO(m)
	}
	out := chessdto.GameState{
		FEN:                  st.Position.FEN,
		PGN:                  st.Position.PGN,
		Moves:                moves,
		CurrentPlayer:        string(st.SideToMove),
		IsGameOver:           st.IsGameOver,
		Result:               string(st.Result),
		Method:               st.Method,
		InCheck:              st.InCheck,
		Checkmate:            st.Checkmate,
		Stalemate:            st.Stalemate,
		Draw:                 st.Draw,
		ThreefoldRepetition:  st.ThreefoldRepetition,
		InsufficientMaterial: st.InsufficientMaterial,
		Material:             chessdto.Material{White: st.Material.White, Black: st.Material.Black},
	}
	if st.Opening.Code != "" {
		out.Opening = &chessdto.Opening{Code: st.Opening.Code, Title: st.Opening.Title}
	}
	return out
}

func gameDTO(s game.Snapshot) chessdto.Game {
	return chessdto.Game{
		ID:        s.GameID,
		Config:    configDTO(s.Config),
		State:     stateDTO(s.State),
		Analysis:  analysesDTO(s.Analyses),
		Phase:     string(s.Phase),
		Thinking:  s.Thinking,
		LastError: s.LastError,
		StartTime: millis(s.StartedAt),
		UpdatedAt: millis(s.UpdatedAt),
	}
}

func eventDTO(ev game.Event) chessdto.Event {
	out := chessdto.Event{Type: string(ev.Kind), Game: gameDTO(ev.Snapshot), Error: ev.Err}
	if ev.Move != nil {
		mv := moveDTO(*ev.Move)
		out.Move = &mv
	}
	return out
}

func storedDTO(rec store.Record, pgn string) chessdto.StoredGame {
	return chessdto.StoredGame{
		ID:        rec.GameID,
		Config:    configDTO(rec.Config),
		MovesUCI:  append([]string{}, rec.MovesUCI...),
		Analysis:  analysesDTO(rec.Analyses),
		Result:    string(rec.Result),
		Method:    rec.Method,
		PGN:       pgn,
		StartTime: millis(rec.StartedAt),
		UpdatedAt: millis(rec.UpdatedAt),
	}
}
