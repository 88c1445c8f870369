package termview

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/chesslm/internal/domain"
	"github.com/park285/chesslm/internal/game"
	"github.com/park285/chesslm/internal/msgcat"
	"github.com/park285/chesslm/internal/rules"
)

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiDim    = "\x1b[2m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"

	lightSquare = "\x1b[48;5;180m"
	darkSquare  = "\x1b[48;5;95m"
	lastSquare  = "\x1b[48;5;143m"
	whitePiece  = "\x1b[97;1m"
	blackPiece  = "\x1b[30;1m"

	recentMoveLimit = 8
)

// Formatter renders game snapshots as terminal text.
type Formatter struct {
	msgs  *msgcat.Catalog
	color bool
}

func NewFormatter(msgs *msgcat.Catalog, color bool) *Formatter {
	if msgs == nil {
		msgs = msgcat.MustDefault()
	}
	return &Formatter{msgs: msgs, color: color}
}

func (f *Formatter) paint(code, text string) string {
	if !f.color || text == "" {
		return text
	}
	return code + text + ansiReset
}

func (f *Formatter) render(key string, data any) string {
	out, err := f.msgs.Render(key, data)
	if err != nil {
		return key
	}
	return out
}

func (f *Formatter) Banner(cfg domain.GameConfig) string {
	return f.paint(ansiBold, f.render("term.banner", map[string]string{
		"White": PlayerName(cfg.White),
		"Black": PlayerName(cfg.Black),
	}))
}

func (f *Formatter) Help() string { return f.render("term.help", nil) }

func (f *Formatter) Thinking(model string) string {
	return f.paint(ansiDim, f.render("term.thinking", map[string]string{"Model": model}))
}

func (f *Formatter) Rejected(move string, err error) string {
	reason := "rejected"
	if err != nil {
		reason = err.Error()
	}
	return f.paint(ansiRed, f.render("term.rejected", map[string]string{"Move": move, "Reason": reason}))
}

func (f *Formatter) NotYourTurn(snap game.Snapshot) string {
	side := snap.Config.Side(snap.State.SideToMove)
	return f.paint(ansiYellow, f.render("term.not_your_turn", map[string]string{
		"Side":  colorName(snap.State.SideToMove),
		"Model": PlayerName(side),
	}))
}

func (f *Formatter) UnknownModel(id string) string {
	return f.paint(ansiYellow, f.render("term.unknown_model", map[string]string{"ID": id}))
}

func (f *Formatter) GameOver(st domain.GameState) string {
	return f.paint(ansiGreen+ansiBold, f.render("term.game_over", map[string]string{
		"Result": resultText(st.Result),
		"Method": strings.ReplaceAll(strings.ToLower(st.Method), "_", " "),
	}))
}

// Board draws the position with rank and file labels, white at the bottom.
func (f *Formatter) Board(snap game.Snapshot) string {
	b, err := rules.FromFEN(snap.State.Position.FEN)
	if err != nil {
		return snap.State.Position.FEN
	}
	view := b.View()
	last := map[string]bool{}
	if n := len(snap.State.Moves); n > 0 {
		last[snap.State.Moves[n-1].From] = true
		last[snap.State.Moves[n-1].To] = true
	}

	var sb strings.Builder
	for r := 7; r >= 0; r-- {
		rank := nchess.Rank(r)
		sb.WriteString(f.paint(ansiDim, rank.String()))
		sb.WriteByte(' ')
		for fl := 0; fl < 8; fl++ {
			sq := nchess.NewSquare(nchess.File(fl), rank)
			sb.WriteString(f.cell(view.Piece(sq), (r+fl)%2 == 1, last[sq.String()]))
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("  ")
	for fl := 0; fl < 8; fl++ {
		sb.WriteString(f.paint(ansiDim, " "+nchess.File(fl).String()+" "))
	}
	return sb.String()
}

func (f *Formatter) cell(p nchess.Piece, light, highlighted bool) string {
	glyph := "."
	if p != nchess.NoPiece {
		glyph = pieceGlyph(p)
	}
	if !f.color {
		return " " + glyph + " "
	}
	bg := darkSquare
	if light {
		bg = lightSquare
	}
	if highlighted {
		bg = lastSquare
	}
	fg := whitePiece
	if p != nchess.NoPiece && p.Color() == nchess.Black {
		fg = blackPiece
	}
	if p == nchess.NoPiece {
		glyph = " "
	}
	return bg + fg + " " + glyph + " " + ansiReset
}

// Status is the one-line summary shown after every change.
func (f *Formatter) Status(snap game.Snapshot) string {
	st := snap.State
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s to move", colorName(st.SideToMove))
	if st.InCheck && !st.IsGameOver {
		sb.WriteString(f.paint(ansiRed, " (check)"))
	}
	fmt.Fprintf(&sb, " | move %d", len(st.Moves)/2+1)
	if diff := st.Material.Diff(); diff != 0 {
		fmt.Fprintf(&sb, " | material %s", formatMaterialDiff(diff))
	}
	if st.Opening.Code != "" {
		fmt.Fprintf(&sb, " | %s %s", st.Opening.Code, st.Opening.Title)
	}
	if snap.LastError != "" {
		sb.WriteString("\n")
		sb.WriteString(f.paint(ansiRed, "last error: "+snap.LastError))
	}
	return sb.String()
}

func (f *Formatter) Move(rec domain.MoveRecord, mover domain.SideConfig) string {
	return fmt.Sprintf("%s plays %s (%s)", PlayerName(mover), f.paint(ansiCyan, rec.SAN), rec.UCI())
}

// History lists SAN moves paired by move number.
func (f *Formatter) History(st domain.GameState) string {
	if len(st.Moves) == 0 {
		return "No moves yet."
	}
	var sb strings.Builder
	for i := 0; i < len(st.Moves); i += 2 {
		fmt.Fprintf(&sb, "%3d. %-8s", i/2+1, st.Moves[i].SAN)
		if i+1 < len(st.Moves) {
			sb.WriteString(st.Moves[i+1].SAN)
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Recent returns the last few SAN moves for compact status lines.
func Recent(st domain.GameState) string {
	if len(st.Moves) == 0 {
		return "-"
	}
	moves := st.Moves
	prefix := ""
	if len(moves) > recentMoveLimit {
		moves = moves[len(moves)-recentMoveLimit:]
		prefix = "... "
	}
	sans := make([]string, len(moves))
	for i, m := range moves {
		sans[i] = m.SAN
	}
	return prefix + strings.Join(sans, " ")
}

func (f *Formatter) Analysis(analyses []domain.Analysis) string {
	if len(analyses) == 0 {
		return "No model analysis yet."
	}
	var sb strings.Builder
	for i, a := range analyses {
		name := "model"
		if a.Model != nil {
			name = a.Model.Name
		}
		fmt.Fprintf(&sb, "%d. %s %s", i+1, f.paint(ansiBold, name), a.Thought.Move)
		if a.Thought.Evaluation != 0 {
			fmt.Fprintf(&sb, " [%+.2f]", a.Thought.Evaluation)
		}
		if r := strings.TrimSpace(a.Thought.Reasoning); r != "" {
			sb.WriteString("\n   ")
			sb.WriteString(truncate(r, 200))
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (f *Formatter) Models(models []domain.ModelDescriptor, defaultID string) string {
	var sb strings.Builder
	for _, m := range models {
		marker := " "
		if m.ID == defaultID {
			marker = "*"
		}
		fmt.Fprintf(&sb, "%s %-18s %-10s %s\n", marker, m.ID, m.Provider, m.Name)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func PlayerName(side domain.SideConfig) string {
	if side.Kind == domain.AI && side.Model != nil {
		if side.Model.Name != "" {
			return side.Model.Name
		}
		return side.Model.ID
	}
	return "You"
}

func colorName(c domain.Color) string {
	if c == domain.Black {
		return "Black"
	}
	return "White"
}

func resultText(r domain.Result) string {
	switch r {
	case domain.ResultWhite:
		return "White wins"
	case domain.ResultBlack:
		return "Black wins"
	case domain.ResultDraw:
		return "Draw"
	default:
		return "in progress"
	}
}

func formatMaterialDiff(diff int) string {
	if diff > 0 {
		return fmt.Sprintf("White +%d", diff)
	}
	return fmt.Sprintf("Black +%d", -diff)
}

func pieceGlyph(p nchess.Piece) string {
	letter := "p"
	switch p.Type() {
	case nchess.King:
		letter = "k"
	case nchess.Queen:
		letter = "q"
	case nchess.Rook:
		letter = "r"
	case nchess.Bishop:
		letter = "b"
	case nchess.Knight:
		letter = "n"
	}
	if p.Color() == nchess.White {
		return strings.ToUpper(letter)
	}
	return letter
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
