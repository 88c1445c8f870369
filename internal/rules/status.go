package rules

import (
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

// Status is the terminal-state determination for the current position.
type Status struct {
	InCheck              bool
	Checkmate            bool
	Stalemate            bool
	ThreefoldRepetition  bool
	InsufficientMaterial bool
	Draw                 bool
	IsGameOver           bool
	Result               string // "white", "black", "draw" or ""
	Method               string
}

func (b *Board) Status() Status {
	outcome := b.game.Outcome()
	method := b.game.Method()

	st := Status{
		Checkmate:            method == nchess.Checkmate,
		Stalemate:            method == nchess.Stalemate,
		ThreefoldRepetition:  method == nchess.ThreefoldRepetition || method == nchess.FivefoldRepetition,
		InsufficientMaterial: method == nchess.InsufficientMaterial,
		Draw:                 outcome == nchess.Draw,
	}
	if moves := b.game.Moves(); len(moves) > 0 {
		st.InCheck = moves[len(moves)-1].HasTag(nchess.Check)
	}
	if st.Checkmate {
		st.InCheck = true
	}

	switch outcome {
	case nchess.WhiteWon:
		st.Result = "white"
	case nchess.BlackWon:
		st.Result = "black"
	case nchess.Draw:
		st.Result = "draw"
	}
	if method != nchess.NoMethod {
		st.Method = strings.ToLower(method.String())
	}
	st.IsGameOver = st.Checkmate || st.Stalemate || st.ThreefoldRepetition || st.InsufficientMaterial || st.Draw
	return st
}

var (
	ecoOnce sync.Once
	ecoBook *opening.BookECO
)

// Opening returns the ECO code and title for the moves played so far.
func (b *Board) Opening() (string, string) {
	ecoOnce.Do(func() { ecoBook = opening.NewBookECO() })
	if ecoBook == nil {
		return "", ""
	}
	moves := b.game.Moves()
	if len(moves) == 0 {
		return "", ""
	}
	if eco := ecoBook.Find(moves); eco != nil {
		return eco.Code(), eco.Title()
	}
	return "", ""
}

var pieceValues = map[nchess.PieceType]int{
	nchess.Pawn:   1,
	nchess.Knight: 3,
	nchess.Bishop: 3,
	nchess.Rook:   5,
	nchess.Queen:  9,
}

// Material sums the standard piece values still on the board for each side.
func (b *Board) Material() (white, black int) {
	board := b.game.Position().Board()
	for file := nchess.FileA; file <= nchess.FileH; file++ {
		for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
			piece := board.Piece(nchess.NewSquare(file, rank))
			if piece == nchess.NoPiece {
				continue
			}
			v := pieceValues[piece.Type()]
			if piece.Color() == nchess.White {
				white += v
			} else {
				black += v
			}
		}
	}
	return white, black
}
