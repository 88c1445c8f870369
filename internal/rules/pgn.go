package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// Tag is a PGN tag pair.
type Tag struct {
	Key   string
	Value string
}

// PGN returns the movetext of the game, e.g. "1. e4 e5 2. Nf3".
func (b *Board) PGN() string {
	return b.movetext("")
}

// ExportPGN returns a full PGN document with the given tags, a Result tag and the movetext.
func (b *Board) ExportPGN(tags []Tag) string {
	result := pgnResult(b.Status().Result)
	var sb strings.Builder
	for _, t := range tags {
		key := strings.TrimSpace(t.Key)
		if key == "" || strings.EqualFold(key, "Result") {
			continue
		}
		sb.WriteString(fmt.Sprintf("[%s \"%s\"]\n", key, sanitizePGN(t.Value)))
	}
	if fen := b.StartFEN(); fen != New().FEN() {
		sb.WriteString("[SetUp \"1\"]\n")
		sb.WriteString(fmt.Sprintf("[FEN \"%s\"]\n", fen))
	}
	sb.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", result))
	sb.WriteString(b.movetext(result))
	return sb.String()
}

func (b *Board) movetext(result string) string {
	san := b.SANMoves()
	number, blackFirst := startNumbering(b.startFEN)

	var sb strings.Builder
	for i, mv := range san {
		whiteToMove := (i%2 == 0) != blackFirst
		switch {
		case i == 0 && blackFirst:
			sb.WriteString(fmt.Sprintf("%d... ", number))
		case whiteToMove:
			sb.WriteString(fmt.Sprintf("%d. ", number))
		}
		sb.WriteString(strings.TrimSpace(mv))
		if !whiteToMove {
			number++
		}
		if i < len(san)-1 {
			sb.WriteString(" ")
		}
	}
	if result != "" {
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(result)
	}
	return sb.String()
}

// startNumbering reads the fullmove number and side to move from a FEN.
func startNumbering(fen string) (int, bool) {
	fields := strings.Fields(fen)
	number := 1
	if len(fields) >= 6 {
		if n, err := strconv.Atoi(fields[5]); err == nil && n > 0 {
			number = n
		}
	}
	blackFirst := len(fields) >= 2 && fields[1] == "b"
	return number, blackFirst
}

func pgnResult(result string) string {
	switch result {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
