package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chesslm/internal/domain"
)

var (
	ErrThinking     = errors.New("model is already thinking")
	ErrNotAITurn    = errors.New("side to move is not played by a model")
	ErrNotHumanTurn = errors.New("side to move is not played by a human")
	ErrThrottled    = errors.New("ai turn requested too soon")
	ErrGameReset    = errors.New("game was reset while the model was thinking")
	ErrNoGame       = errors.New("no game in progress")
	ErrNoMove       = errors.New("model reply contained no move")
)

// Suggester produces a model's move for a position.
type Suggester interface {
	Suggest(ctx context.Context, model domain.ModelDescriptor, pos domain.Position) (domain.Thought, error)
}

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseThinking Phase = "thinking"
	PhaseTerminal Phase = "terminal"
)

type Options struct {
	// MinInterval is the minimum gap between the end of one AI turn and the start of the next.
	MinInterval time.Duration
	// MoveDelay is waited before an automatically triggered AI turn asks the model.
	MoveDelay time.Duration
	AutoPlay  bool
}

// Snapshot is a deep copy of everything a reader may show.
type Snapshot struct {
	GameID    string
	Config    domain.GameConfig
	State     domain.GameState
	Analyses  []domain.Analysis
	Phase     Phase
	Thinking  bool
	LastError string
	StartedAt time.Time
	UpdatedAt time.Time
}

type EventKind string

const (
	EventState    EventKind = "state"
	EventThinking EventKind = "thinking"
	EventMove     EventKind = "move"
	EventRejected EventKind = "rejected"
	EventReset    EventKind = "reset"
)

type Event struct {
	Kind     EventKind
	Snapshot Snapshot
	Move     *domain.MoveRecord
	Err      string
}

type subscriber struct {
	id int
	fn func(Event)
}

// Controller is the single writer of the live game. Every transition runs
// under mu; model calls run outside it and are serialized by the thinking flag.
type Controller struct {
	mu         sync.Mutex
	machine    *Machine
	suggester  Suggester
	opts       Options
	logger     *zap.Logger
	thinking   bool
	generation uint64
	lastAIEnd  time.Time
	lastErr    string
	pausedGen  uint64 // auto-play is paused for this generation after a failed AI turn
	paused     bool
	retry      *time.Timer
	updatedAt  time.Time
	closed     bool

	subMu  sync.RWMutex
	subs   []subscriber
	nextID int

	// dispatch keeps event delivery in transition order.
	dispatch sync.Mutex
	wg       sync.WaitGroup
	now      func() time.Time
}

func NewController(s Suggester, opts Options, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{suggester: s, opts: opts, logger: logger, now: time.Now}
}

// Subscribe registers fn for every state change and returns an id for Unsubscribe.
// Callbacks run on the goroutine that made the change and must not call back
// into the Controller synchronously.
func (c *Controller) Subscribe(fn func(Event)) int {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextID++
	c.subs = append(c.subs, subscriber{id: c.nextID, fn: fn})
	return c.nextID
}

func (c *Controller) Unsubscribe(id int) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for i, s := range c.subs {
		if s.id == id {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			return
		}
	}
}

func (c *Controller) publish(ev Event) {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()
	c.subMu.RLock()
	subs := append([]subscriber(nil), c.subs...)
	c.subMu.RUnlock()
	for _, s := range subs {
		s.fn(ev)
	}
}

// Start replaces the current game with a fresh one using cfg.
func (c *Controller) Start(cfg domain.GameConfig) (Snapshot, error) {
	m, err := NewMachine(cfg)
	if err != nil {
		return Snapshot{}, err
	}
	c.mu.Lock()
	c.install(m)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("game_start",
		zap.String("game_id", snap.GameID),
		zap.String("mode", string(cfg.Mode)),
		zap.String("white", playerLabel(cfg.White)),
		zap.String("black", playerLabel(cfg.Black)),
	)
	c.publish(Event{Kind: EventReset, Snapshot: snap})
	c.kick()
	return snap, nil
}

// Restore installs a previously saved game.
func (c *Controller) Restore(m *Machine) Snapshot {
	c.mu.Lock()
	c.install(m)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(Event{Kind: EventReset, Snapshot: snap})
	c.kick()
	return snap
}

// Reset starts a new game with the same players. The previous game's final
// snapshot is returned alongside the new one.
func (c *Controller) Reset() (prev Snapshot, next Snapshot, err error) {
	c.mu.Lock()
	if c.machine == nil {
		c.mu.Unlock()
		return Snapshot{}, Snapshot{}, ErrNoGame
	}
	prev = c.snapshotLocked()
	m, err := NewMachine(c.machine.Config())
	if err != nil {
		c.mu.Unlock()
		return Snapshot{}, Snapshot{}, err
	}
	c.install(m)
	next = c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("game_reset", zap.String("prev_game_id", prev.GameID), zap.String("game_id", next.GameID))
	c.publish(Event{Kind: EventReset, Snapshot: next})
	c.kick()
	return prev, next, nil
}

// install swaps in m. An in-flight suggestion keeps the thinking flag until it
// returns; its result is then discarded because the generation moved on.
func (c *Controller) install(m *Machine) {
	c.machine = m
	c.generation++
	c.lastErr = ""
	c.paused = false
	c.updatedAt = c.now()
	// 이전 게임의 재시도 타이머는 새 게임에 적용하지 않음
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
}

func (c *Controller) Snapshot() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.machine == nil {
		return Snapshot{}, ErrNoGame
	}
	return c.snapshotLocked(), nil
}

func (c *Controller) snapshotLocked() Snapshot {
	st := c.machine.State()
	phase := PhaseIdle
	switch {
	case st.IsGameOver:
		phase = PhaseTerminal
	case c.thinking:
		phase = PhaseThinking
	}
	return Snapshot{
		GameID:    c.machine.ID(),
		Config:    c.machine.Config(),
		State:     st,
		Analyses:  c.machine.Analyses(),
		Phase:     phase,
		Thinking:  c.thinking,
		LastError: c.lastErr,
		StartedAt: c.machine.StartedAt(),
		UpdatedAt: c.updatedAt,
	}
}

func (c *Controller) LegalDestinations(square string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.machine == nil {
		return nil, ErrNoGame
	}
	return c.machine.LegalDestinations(square)
}

// ExportPGN returns the live game as a PGN document.
func (c *Controller) ExportPGN() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.machine == nil {
		return "", ErrNoGame
	}
	return c.machine.ExportPGN(), nil
}

// HumanMove plays a move for a human side. A four-character move that needs a
// promotion piece is promoted to a queen.
func (c *Controller) HumanMove(move string) (Snapshot, error) {
	c.mu.Lock()
	if c.machine == nil {
		c.mu.Unlock()
		return Snapshot{}, ErrNoGame
	}
	st := c.machine.State()
	if st.IsGameOver {
		c.mu.Unlock()
		return Snapshot{}, ErrGameOver
	}
	cfg := c.machine.Config()
	if cfg.Side(st.SideToMove).Kind != domain.Human {
		c.mu.Unlock()
		return Snapshot{}, ErrNotHumanTurn
	}

	mv := strings.ToLower(strings.TrimSpace(move))
	if len(mv) == 4 && c.machine.NeedsPromotion(mv[0:2], mv[2:4]) {
		mv += "q"
	}
	rec, err := c.machine.Apply(mv)
	if err != nil {
		legal := c.machine.LegalMoves()
		c.mu.Unlock()
		c.logger.Warn("human_move_rejected",
			zap.String("move", move),
			zap.String("fen", st.Position.FEN),
			zap.Strings("legal_moves", legal),
			zap.Error(err),
		)
		return Snapshot{}, err
	}
	c.paused = false
	c.lastErr = ""
	c.updatedAt = c.now()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("human_move", zap.String("game_id", snap.GameID), zap.String("move", rec.UCI()), zap.String("san", rec.SAN))
	c.publish(Event{Kind: EventMove, Snapshot: snap, Move: &rec})
	c.kick()
	return snap, nil
}

type turn struct {
	gen   uint64
	color domain.Color
	model domain.ModelDescriptor
	pos   domain.Position
}

// beginTurnLocked moves idle → thinking or reports why it cannot.
func (c *Controller) beginTurnLocked() (turn, time.Duration, error) {
	if c.machine == nil {
		return turn{}, 0, ErrNoGame
	}
	st := c.machine.State()
	if st.IsGameOver {
		return turn{}, 0, ErrGameOver
	}
	if c.thinking {
		return turn{}, 0, ErrThinking
	}
	side := c.machine.Config().Side(st.SideToMove)
	if side.Kind != domain.AI || side.Model == nil {
		return turn{}, 0, ErrNotAITurn
	}
	if !c.lastAIEnd.IsZero() {
		if wait := c.opts.MinInterval - c.now().Sub(c.lastAIEnd); wait > 0 {
			return turn{}, wait, ErrThrottled
		}
	}
	c.thinking = true
	c.updatedAt = c.now()
	return turn{gen: c.generation, color: st.SideToMove, model: *side.Model, pos: st.Position}, 0, nil
}

// RunAITurn asks the model for the side to move and applies its reply. It
// blocks until the pipeline finishes; thinking is cleared on every path.
func (c *Controller) RunAITurn(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	t, _, err := c.beginTurnLocked()
	if err != nil {
		c.mu.Unlock()
		return Snapshot{}, err
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(Event{Kind: EventThinking, Snapshot: snap})
	return c.runTurn(ctx, t, 0)
}

func (c *Controller) runTurn(ctx context.Context, t turn, delay time.Duration) (snap Snapshot, err error) {
	var (
		thought domain.Thought
		rec     domain.MoveRecord
		applied bool
		ev      Event
	)
	defer func() {
		// thinking → idle on every path, including panics in the suggester.
		if r := recover(); r != nil {
			err = fmt.Errorf("ai turn panicked: %v", r)
			c.logger.Error("ai_turn_panic", zap.Any("panic", r))
		}
		c.mu.Lock()
		c.thinking = false
		c.lastAIEnd = c.now()
		c.updatedAt = c.now()
		stale := t.gen != c.generation
		switch {
		case stale:
			err = ErrGameReset
		case err != nil:
			c.lastErr = err.Error()
			c.paused = true
			c.pausedGen = t.gen
		case applied:
			c.lastErr = ""
			c.paused = false
		}
		snap = c.snapshotLocked()
		c.mu.Unlock()

		ev.Snapshot = snap
		if ev.Kind == "" || stale {
			ev = Event{Kind: EventState, Snapshot: snap}
		}
		if err != nil && !stale {
			ev.Err = err.Error()
		}
		c.publish(ev)
		c.kick()
	}()

	c.logger.Info("ai_turn_start", zap.String("side", string(t.color)), zap.String("model", t.model.ID), zap.String("fen", t.pos.FEN))
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Snapshot{}, ctx.Err()
		case <-timer.C:
		}
	}

	thought, err = c.suggester.Suggest(ctx, t.model, t.pos)
	if err != nil {
		c.logger.Warn("ai_suggest_failed", zap.String("model", t.model.ID), zap.Error(err))
		return Snapshot{}, err
	}

	c.mu.Lock()
	if t.gen != c.generation {
		c.mu.Unlock()
		c.logger.Info("ai_result_discarded", zap.String("model", t.model.ID), zap.String("move", thought.Move))
		return Snapshot{}, ErrGameReset
	}
	if strings.TrimSpace(thought.Move) == "" {
		legal := c.machine.LegalMoves()
		c.mu.Unlock()
		c.logger.Warn("ai_move_rejected",
			zap.String("model", t.model.ID),
			zap.String("move", ""),
			zap.String("fen", t.pos.FEN),
			zap.Strings("legal_moves", legal),
			zap.String("reasoning", thought.Reasoning),
		)
		ev = Event{Kind: EventRejected}
		return Snapshot{}, ErrNoMove
	}
	rec, err = c.machine.Apply(thought.Move)
	if err != nil {
		legal := c.machine.LegalMoves()
		c.mu.Unlock()
		c.logger.Warn("ai_move_rejected",
			zap.String("model", t.model.ID),
			zap.String("move", thought.Move),
			zap.String("fen", t.pos.FEN),
			zap.Strings("legal_moves", legal),
			zap.Error(err),
		)
		ev = Event{Kind: EventRejected}
		return Snapshot{}, err
	}
	model := t.model
	c.machine.AddAnalysis(domain.Analysis{Move: rec, Thought: thought, PlayerKind: domain.AI, Model: &model})
	applied = true
	c.mu.Unlock()

	c.logger.Info("ai_move",
		zap.String("model", t.model.ID),
		zap.String("move", rec.UCI()),
		zap.String("san", rec.SAN),
		zap.Float64("evaluation", thought.Evaluation),
	)
	ev = Event{Kind: EventMove, Move: &rec}
	return Snapshot{}, nil
}

// kick starts an automatic AI turn when auto-play is on and the side to move is a model.
func (c *Controller) kick() {
	if !c.opts.AutoPlay {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.machine == nil {
		return
	}
	if c.paused && c.pausedGen == c.generation {
		return
	}
	t, wait, err := c.beginTurnLocked()
	switch {
	case errors.Is(err, ErrThrottled):
		if c.retry != nil {
			c.retry.Stop()
		}
		c.retry = time.AfterFunc(wait, c.kick)
		return
	case err != nil:
		return
	}
	snap := c.snapshotLocked()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.publish(Event{Kind: EventThinking, Snapshot: snap})
		_, _ = c.runTurn(context.Background(), t, c.opts.MoveDelay)
	}()
}

// Resume re-enables auto-play after a failed AI turn and triggers it.
func (c *Controller) Resume() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	c.kick()
}

// Close stops automatic turns and waits for in-flight ones to finish.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.mu.Unlock()
	c.wg.Wait()
}
