package httpapi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/park285/chesslm/internal/appbuilder"
	"github.com/park285/chesslm/internal/catalog"
	"github.com/park285/chesslm/internal/domain"
	"github.com/park285/chesslm/internal/game"
	"github.com/park285/chesslm/internal/render"
	"github.com/park285/chesslm/internal/rules"
	"github.com/park285/chesslm/internal/store"
	"github.com/park285/chesslm/pkg/chessdto"
)

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"time":    time.Now().Unix(),
		"clients": s.hub.Count(),
	})
}

func (s *Server) listModels(c *fiber.Ctx) error {
	all := s.deps.Models.All()
	out := chessdto.ModelList{Default: s.deps.Models.Default().ID, Models: make([]chessdto.Model, len(all))}
	for i, m := range all {
		out.Models[i] = modelDTO(m)
	}
	return c.JSON(out)
}

func (s *Server) startGame(c *fiber.Ctx) error {
	req, err := body[chessdto.NewGameRequest](c)
	if err != nil {
		return err
	}
	var tc *domain.TimeControl
	if req.TimeControl != nil {
		tc = &domain.TimeControl{Minutes: req.TimeControl.Time, IncrementSec: req.TimeControl.Increment}
	}
	cfg, err := s.deps.GameConfig(domain.Mode(req.Mode),
		appbuilder.SideSpec{Kind: domain.PlayerKind(req.WhitePlayer.Type), ModelID: req.WhitePlayer.ModelID},
		appbuilder.SideSpec{Kind: domain.PlayerKind(req.BlackPlayer.Type), ModelID: req.BlackPlayer.ModelID},
		tc,
	)
	if err != nil {
		return gameError(err)
	}
	snap, err := s.deps.Controller.Start(cfg)
	if err != nil {
		return gameError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(gameDTO(snap))
}

func (s *Server) getGame(c *fiber.Ctx) error {
	snap, err := s.deps.Controller.Snapshot()
	if err != nil {
		return gameError(err)
	}
	return c.JSON(gameDTO(snap))
}

func (s *Server) humanMove(c *fiber.Ctx) error {
	req, err := body[chessdto.MoveRequest](c)
	if err != nil {
		return err
	}
	snap, err := s.deps.Controller.HumanMove(req.Move)
	if err != nil {
		return gameError(err)
	}
	return c.JSON(gameDTO(snap))
}

func (s *Server) aiTurn(c *fiber.Ctx) error {
	snap, err := s.deps.Controller.RunAITurn(c.UserContext())
	if err != nil {
		return gameError(err)
	}
	return c.JSON(gameDTO(snap))
}

func (s *Server) resetGame(c *fiber.Ctx) error {
	prev, next, err := s.deps.Controller.Reset()
	if err != nil {
		return gameError(err)
	}
	return c.JSON(chessdto.ResetResponse{Previous: prev.GameID, Game: gameDTO(next)})
}

func (s *Server) legalMoves(c *fiber.Ctx) error {
	square := strings.ToLower(strings.TrimSpace(c.Query("square")))
	if square == "" {
		return newAPIError(fiber.StatusBadRequest, chessdto.CodeInvalidRequest, "square is required", "")
	}
	moves, err := s.deps.Controller.LegalDestinations(square)
	if err != nil {
		return gameError(err)
	}
	if moves == nil {
		moves = []string{}
	}
	return c.JSON(chessdto.LegalMovesResponse{Square: square, Moves: moves})
}

func (s *Server) boardPNG(c *fiber.Ctx) error {
	snap, err := s.deps.Controller.Snapshot()
	if err != nil {
		return gameError(err)
	}
	opts := render.Options{
		Title:    sideLabel(snap.Config.White) + " vs " + sideLabel(snap.Config.Black),
		Turn:     turnLabel(snap.State),
		Material: snap.State.Material,
	}
	if n := len(snap.State.Moves); n > 0 {
		last := snap.State.Moves[n-1]
		opts.LastMove = &render.Highlight{From: last.From, To: last.To}
	}
	png, err := s.deps.Renderer.RenderPNG(c.UserContext(), snap.State.Position.FEN, opts)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(png)
}

func (s *Server) exportPGN(c *fiber.Ctx) error {
	pgn, err := s.deps.Controller.ExportPGN()
	if err != nil {
		return gameError(err)
	}
	c.Set(fiber.HeaderContentType, "application/x-chess-pgn")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="chesslm.pgn"`)
	return c.SendString(pgn)
}

func (s *Server) storedGame(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	rec, err := s.deps.Store.Load(c.UserContext(), id)
	if errors.Is(err, store.ErrNotFound) {
		return newAPIError(fiber.StatusNotFound, chessdto.CodeNotFound, "game not found", id)
	}
	if err != nil {
		return err
	}
	pgn := ""
	if m, err := rec.Machine(); err == nil {
		pgn = m.ExportPGN()
	} else {
		s.logger.Warn("stored_game_replay_failed", zap.String("game_id", id), zap.Error(err))
	}
	return c.JSON(storedDTO(rec, pgn))
}

// aiMove asks a model for a move in an arbitrary position without touching the live game.
func (s *Server) aiMove(c *fiber.Ctx) error {
	var req chessdto.AIMoveRequest
	if err := c.BodyParser(&req); err != nil {
		s.logger.Warn("ai_move_bad_request", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(chessdto.ErrorResponse{Error: "Failed to generate AI move"})
	}
	model, ok := s.deps.Models.Lookup(strings.TrimSpace(req.ModelID))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(chessdto.ErrorResponse{Error: "Model not found"})
	}
	pos, err := requestPosition(req.FEN, req.PGN)
	if err != nil {
		s.logger.Warn("ai_move_bad_position", zap.String("fen", req.FEN), zap.String("pgn", req.PGN), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(chessdto.ErrorResponse{Error: "Failed to generate AI move"})
	}
	thought, err := s.deps.Suggester.Suggest(c.UserContext(), model, pos)
	if err != nil {
		s.logger.Error("ai_move_failed", zap.String("model", model.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(chessdto.ErrorResponse{Error: "Failed to generate AI move"})
	}
	return c.JSON(chessdto.AIMoveResponse{Thought: thoughtDTO(thought)})
}

// requestPosition checks the FEN. Without one, the position is taken from the end of the PGN.
func requestPosition(fen, pgn string) (domain.Position, error) {
	fen, pgn = strings.TrimSpace(fen), strings.TrimSpace(pgn)
	if fen != "" {
		if _, err := rules.FromFEN(fen); err != nil {
			return domain.Position{}, err
		}
		return domain.Position{FEN: fen, PGN: pgn}, nil
	}
	if pgn == "" {
		return domain.Position{}, errors.New("fen or pgn is required")
	}
	b, err := rules.FromPGN(pgn)
	if err != nil {
		return domain.Position{}, err
	}
	return domain.Position{FEN: b.FEN(), PGN: b.PGN()}, nil
}

// resumeGame makes a stored game the live one again.
func (s *Server) resumeGame(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	rec, err := s.deps.Store.Load(c.UserContext(), id)
	if errors.Is(err, store.ErrNotFound) {
		return newAPIError(fiber.StatusNotFound, chessdto.CodeNotFound, "game not found", id)
	}
	if err != nil {
		return err
	}
	m, err := rec.Machine()
	if err != nil {
		return gameError(err)
	}
	snap := s.deps.Controller.Restore(m)
	s.logger.Info("game_resumed", zap.String("game_id", id), zap.Int("moves", len(snap.State.Moves)))
	return c.JSON(gameDTO(snap))
}

func (s *Server) debug(c *fiber.Ctx) error {
	var req chessdto.DebugRequest
	if err := c.BodyParser(&req); err != nil {
		s.logger.Error("client_debug_failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(chessdto.ErrorResponse{Error: "Failed to log debug info"})
	}
	s.logger.Info("client_debug", zap.String("message", req.Message), zap.Any("data", req.Data))
	return c.JSON(fiber.Map{"success": true})
}

// gameError maps controller and catalog errors onto HTTP statuses. Anything
// unrecognised came from the model call and is reported as an upstream failure.
func gameError(err error) error {
	switch {
	case errors.Is(err, game.ErrNoGame):
		return newAPIError(fiber.StatusNotFound, chessdto.CodeNotFound, "no game in progress", "")
	case errors.Is(err, game.ErrMalformedMove), errors.Is(err, game.ErrIllegalMove):
		return newAPIError(fiber.StatusBadRequest, chessdto.CodeIllegalMove, "illegal move", err.Error())
	case errors.Is(err, rules.ErrBadSquare):
		return newAPIError(fiber.StatusBadRequest, chessdto.CodeInvalidRequest, "invalid square", err.Error())
	case errors.Is(err, game.ErrBadConfig), errors.Is(err, catalog.ErrUnknownModel):
		return newAPIError(fiber.StatusBadRequest, chessdto.CodeInvalidRequest, "invalid game config", err.Error())
	case errors.Is(err, game.ErrNotHumanTurn), errors.Is(err, game.ErrNotAITurn):
		return newAPIError(fiber.StatusConflict, chessdto.CodeWrongTurn, err.Error(), "")
	case errors.Is(err, game.ErrGameOver):
		return newAPIError(fiber.StatusConflict, chessdto.CodeGameOver, err.Error(), "")
	case errors.Is(err, game.ErrThinking), errors.Is(err, game.ErrGameReset):
		return newAPIError(fiber.StatusConflict, chessdto.CodeBusy, err.Error(), "")
	case errors.Is(err, game.ErrThrottled):
		return newAPIError(fiber.StatusTooManyRequests, chessdto.CodeThrottled, err.Error(), "")
	default:
		return newAPIError(fiber.StatusBadGateway, chessdto.CodeUpstream, "ai turn failed", err.Error())
	}
}

func sideLabel(side domain.SideConfig) string {
	if side.Kind == domain.AI && side.Model != nil {
		return side.Model.Name
	}
	return "Human"
}

func turnLabel(st domain.GameState) string {
	switch {
	case st.Result == domain.ResultDraw:
		return "Draw"
	case st.Result != domain.ResultNone:
		return fmt.Sprintf("%s wins", titleColor(st.Result))
	default:
		return fmt.Sprintf("%s to move", titleColor(domain.Result(st.SideToMove)))
	}
}

func titleColor(r domain.Result) string {
	if r == domain.ResultBlack {
		return "Black"
	}
	return "White"
}
