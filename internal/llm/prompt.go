package llm

import (
	"fmt"
	"strings"

	"github.com/park285/chesslm/internal/domain"
	"github.com/park285/chesslm/internal/msgcat"
)

// PromptBuilder renders the system and user messages for a position.
type PromptBuilder struct {
	msgs *msgcat.Catalog
}

func NewPromptBuilder(msgs *msgcat.Catalog) *PromptBuilder {
	if msgs == nil {
		msgs = msgcat.MustDefault()
	}
	return &PromptBuilder{msgs: msgs}
}

// Build reads the side to move from the FEN turn field.
func (b *PromptBuilder) Build(pos domain.Position) (system, user string, err error) {
	side := "White"
	if fields := strings.Fields(pos.FEN); len(fields) > 1 && fields[1] == "b" {
		side = "Black"
	}
	system, err = b.msgs.Render("prompt.system", nil)
	if err != nil {
		return "", "", fmt.Errorf("system prompt: %w", err)
	}
	user, err = b.msgs.Render("prompt.user", map[string]any{
		"Side": side,
		"FEN":  pos.FEN,
		"PGN":  pos.PGN,
	})
	if err != nil {
		return "", "", fmt.Errorf("user prompt: %w", err)
	}
	return system, user, nil
}
