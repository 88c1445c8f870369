package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var (
	ErrIllegalMove  = errors.New("illegal move")
	ErrGameFinished = errors.New("game already finished")
	ErrBadSquare    = errors.New("invalid square")
)

// Applied describes a move the board accepted.
type Applied struct {
	UCI string
	SAN string
	FEN string
}

// Board is the only place chess legality is decided. It is not safe for concurrent use;
// callers serialize access.
type Board struct {
	game     *nchess.Game
	startFEN string
}

func New() *Board {
	g := nchess.NewGame()
	return &Board{game: g, startFEN: g.FEN()}
}

func FromFEN(fen string) (*Board, error) {
	fen = strings.TrimSpace(fen)
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	g := nchess.NewGame(opt)
	return &Board{game: g, startFEN: g.FEN()}, nil
}

func FromPGN(pgn string) (*Board, error) {
	opt, err := nchess.PGN(strings.NewReader(pgn))
	if err != nil {
		return nil, fmt.Errorf("parse pgn: %w", err)
	}
	g := nchess.NewGame(opt)
	start := g.FEN()
	if positions := g.Positions(); len(positions) > 0 && positions[0] != nil {
		start = positions[0].String()
	}
	return &Board{game: g, startFEN: start}, nil
}

// Replay rebuilds a board from the initial position and a list of coordinate moves.
func Replay(moves []string) (*Board, error) {
	b := New()
	for _, mv := range moves {
		from, to, promo, err := Split(mv)
		if err != nil {
			return nil, fmt.Errorf("decode move %s: %w", mv, err)
		}
		if _, err := b.Apply(from, to, promo); err != nil {
			return nil, fmt.Errorf("apply move %s: %w", mv, err)
		}
	}
	return b, nil
}

// Split breaks a 4 or 5 character coordinate move into its parts.
func Split(move string) (from, to, promo string, err error) {
	move = strings.ToLower(strings.TrimSpace(move))
	if len(move) < 4 || len(move) > 5 {
		return "", "", "", fmt.Errorf("%w: %q", ErrIllegalMove, move)
	}
	from, to = move[0:2], move[2:4]
	if len(move) == 5 {
		promo = move[4:5]
	}
	return from, to, promo, nil
}

func (b *Board) Apply(from, to, promo string) (Applied, error) {
	if b.game.Outcome() != nchess.NoOutcome {
		return Applied{}, ErrGameFinished
	}
	s1, err := parseSquare(from)
	if err != nil {
		return Applied{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	s2, err := parseSquare(to)
	if err != nil {
		return Applied{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	pt, ok := parsePromotion(promo)
	if !ok {
		return Applied{}, fmt.Errorf("%w: bad promotion %q", ErrIllegalMove, promo)
	}

	pos := b.game.Position()
	valid := b.game.ValidMoves()
	var chosen *nchess.Move
	for i := range valid {
		mv := &valid[i]
		if mv.S1() == s1 && mv.S2() == s2 && mv.Promo() == pt {
			chosen = mv
			break
		}
	}
	if chosen == nil {
		return Applied{}, fmt.Errorf("%w: %s%s%s", ErrIllegalMove, from, to, promo)
	}

	san := nchess.AlgebraicNotation{}.Encode(pos, chosen)
	if err := b.game.Move(chosen, nil); err != nil {
		return Applied{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	b.claimDraws()

	return Applied{
		UCI: strings.ToLower(from + to + promo),
		SAN: san,
		FEN: b.game.FEN(),
	}, nil
}

// claimDraws ends the game once a claimable draw becomes available.
func (b *Board) claimDraws() {
	if b.game.Outcome() != nchess.NoOutcome {
		return
	}
	for _, m := range b.game.EligibleDraws() {
		if m == nchess.ThreefoldRepetition || m == nchess.FiftyMoveRule {
			_ = b.game.Draw(m)
			return
		}
	}
}

func (b *Board) LegalDestinations(square string) ([]string, error) {
	sq, err := parseSquare(square)
	if err != nil {
		return nil, err
	}
	if b.game.Outcome() != nchess.NoOutcome {
		return []string{}, nil
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, 8)
	for _, mv := range b.game.ValidMoves() {
		if mv.S1() != sq {
			continue
		}
		dst := mv.S2().String()
		if _, ok := seen[dst]; ok {
			continue
		}
		seen[dst] = struct{}{}
		out = append(out, dst)
	}
	sort.Strings(out)
	return out, nil
}

func (b *Board) LegalMoves() []string {
	if b.game.Outcome() != nchess.NoOutcome {
		return []string{}
	}
	pos := b.game.Position()
	valid := b.game.ValidMoves()
	out := make([]string, 0, len(valid))
	notation := nchess.UCINotation{}
	for i := range valid {
		out = append(out, strings.ToLower(notation.Encode(pos, &valid[i])))
	}
	sort.Strings(out)
	return out
}

// NeedsPromotion reports whether from→to is only legal with a promotion piece.
func (b *Board) NeedsPromotion(from, to string) bool {
	s1, err := parseSquare(from)
	if err != nil {
		return false
	}
	s2, err := parseSquare(to)
	if err != nil {
		return false
	}
	for _, mv := range b.game.ValidMoves() {
		if mv.S1() == s1 && mv.S2() == s2 && mv.Promo() != nchess.NoPieceType {
			return true
		}
	}
	return false
}

func (b *Board) FEN() string { return b.game.FEN() }

func (b *Board) StartFEN() string { return b.startFEN }

// SideToMove returns "white" or "black".
func (b *Board) SideToMove() string {
	if b.game.Position().Turn() == nchess.Black {
		return "black"
	}
	return "white"
}


// SANMoves recomputes the SAN of every played move from the stored positions.
func (b *Board) SANMoves() []string {
	positions := b.game.Positions()
	moves := b.game.Moves()
	out := make([]string, len(moves))
	notation := nchess.AlgebraicNotation{}
	for i, mv := range moves {
		if i < len(positions) {
			out[i] = notation.Encode(positions[i], mv)
		}
	}
	return out
}



// View exposes the underlying board for rendering.
func (b *Board) View() *nchess.Board {
	return b.game.Position().Board()
}

func parseSquare(s string) (nchess.Square, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return nchess.NoSquare, fmt.Errorf("%w: %q", ErrBadSquare, s)
	}
	return nchess.NewSquare(nchess.File(s[0]-'a'), nchess.Rank(s[1]-'1')), nil
}

func parsePromotion(s string) (nchess.PieceType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nchess.NoPieceType, true
	case "q":
		return nchess.Queen, true
	case "r":
		return nchess.Rook, true
	case "b":
		return nchess.Bishop, true
	case "n":
		return nchess.Knight, true
	default:
		return nchess.NoPieceType, false
	}
}
