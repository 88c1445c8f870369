package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chesslm/internal/domain"
	"github.com/park285/chesslm/internal/obslog"
)

// Suggester turns a position into a model's proposed move.
type Suggester struct {
	prompts   *PromptBuilder
	transport Transport
}

func NewSuggester(prompts *PromptBuilder, transport Transport) *Suggester {
	return &Suggester{prompts: prompts, transport: transport}
}

// Suggest returns transport and configuration errors as-is. Parsing never fails,
// so a nil error may still carry an empty move.
func (s *Suggester) Suggest(ctx context.Context, model domain.ModelDescriptor, pos domain.Position) (domain.Thought, error) {
	system, user, err := s.prompts.Build(pos)
	if err != nil {
		return domain.Thought{}, err
	}

	start := time.Now()
	raw, err := s.transport.Complete(ctx, model, system, user)
	if err != nil {
		obslog.L().Warn("llm_complete_failed",
			zap.String("model", model.ID),
			zap.String("provider", string(model.Provider)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return domain.Thought{}, err
	}

	thought := Parse(raw)
	obslog.L().Info("llm_reply",
		zap.String("model", model.ID),
		zap.String("move", thought.Move),
		zap.Int("reply_len", len(raw)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return thought, nil
}
