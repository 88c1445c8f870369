package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/park285/chesslm/internal/domain"
)

type fakeTransport struct {
	reply      string
	err        error
	lastSystem string
	lastUser   string
}

func (f *fakeTransport) Complete(_ context.Context, _ domain.ModelDescriptor, system, user string) (string, error) {
	f.lastSystem, f.lastUser = system, user
	return f.reply, f.err
}

func TestPromptSideFromFEN(t *testing.T) {
	b := NewPromptBuilder(nil)
	_, user, err := b.Build(domain.Position{FEN: "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1", PGN: "1. e4"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(user, "It is Black's turn to move. You must make a legal move for Black pieces only.") {
		t.Fatalf("prompt does not name Black:\n%s", user)
	}
	_, user, _ = b.Build(domain.Position{FEN: "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"})
	if !strings.Contains(user, "make the best move for White.") {
		t.Fatalf("prompt does not name White:\n%s", user)
	}
}

func TestSuggestParsesReply(t *testing.T) {
	ft := &fakeTransport{reply: "```json\n{\"move\": \"e7e5\", \"reasoning\": \"mirror\"}\n```"}
	s := NewSuggester(NewPromptBuilder(nil), ft)
	got, err := s.Suggest(context.Background(), haiku, domain.Position{FEN: "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1", PGN: "1. e4"})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if got.Move != "e7e5" || got.Reasoning != "mirror" {
		t.Fatalf("thought = %+v", got)
	}
	if ft.lastSystem != "You are a chess expert that provides moves in JSON format." || !strings.Contains(ft.lastUser, "Game moves (PGN): 1. e4") {
		t.Fatalf("unexpected prompt: %q / %q", ft.lastSystem, ft.lastUser)
	}
}

func TestSuggestPropagatesTransportError(t *testing.T) {
	ft := &fakeTransport{err: ErrMissingCredential}
	s := NewSuggester(NewPromptBuilder(nil), ft)
	if _, err := s.Suggest(context.Background(), haiku, domain.Position{FEN: "8/8/8/8/8/8/8/8 w - - 0 1"}); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}
