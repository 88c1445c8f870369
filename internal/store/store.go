package store

import (
	"context"
	"time"

	"github.com/park285/chesslm/internal/domain"
	"github.com/park285/chesslm/internal/game"
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

const (
	ErrNotFound      staticErr = "snapshot not found"
	ErrStaleSnapshot staticErr = "snapshot is older than the stored one"
)

const DefaultTTL = 24 * time.Hour

// Record is the persisted form of one game. Moves are kept in coordinate
// notation so the game can be replayed with game.RestoreMachine.
type Record struct {
	GameID    string            `json:"gameId"`
	Config    domain.GameConfig `json:"config"`
	MovesUCI  []string          `json:"movesUci"`
	Analyses  []domain.Analysis `json:"analyses"`
	Result    domain.Result     `json:"result,omitempty"`
	Method    string            `json:"method,omitempty"`
	StartedAt time.Time         `json:"startedAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Store keeps the latest snapshot per game for a bounded time.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, gameID string) (Record, error)
	Close() error
}

// FromSnapshot builds a record from a controller snapshot.
func FromSnapshot(snap game.Snapshot) Record {
	moves := make([]string, len(snap.State.Moves))
	for i, mv := range snap.State.Moves {
		moves[i] = mv.UCI()
	}
	return Record{
		GameID:    snap.GameID,
		Config:    snap.Config,
		MovesUCI:  moves,
		Analyses:  snap.Analyses,
		Result:    snap.State.Result,
		Method:    snap.State.Method,
		StartedAt: snap.StartedAt,
		UpdatedAt: snap.UpdatedAt,
	}
}

// Machine replays the record into a game machine.
func (r Record) Machine() (*game.Machine, error) {
	return game.RestoreMachine(r.GameID, r.Config, r.MovesUCI, r.Analyses, r.StartedAt)
}
