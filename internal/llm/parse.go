package llm

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/park285/chesslm/internal/domain"
)

const (
	noReasoning     = "No reasoning provided"
	failedReasoning = "Failed to parse response"
)

var (
	fencedBlock = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")
	braceRegion = regexp.MustCompile(`\{[\s\S]*\}`)
	coordMove   = regexp.MustCompile(`(?i)([a-h][1-8][a-h][1-8])`)
)

// Parse extracts a thought from a model reply. It never fails: a reply without
// a usable JSON object falls back to the first coordinate-looking token.
func Parse(text string) domain.Thought {
	now := time.Now()
	if strings.TrimSpace(text) == "" {
		return fallbackThought(text, now)
	}

	fields, ok := decodeObject(candidateRegion(text))
	if !ok {
		return fallbackThought(text, now)
	}

	t := domain.Thought{
		Move:         stringField(fields["move"]),
		Reasoning:    stringField(fields["reasoning"]),
		Evaluation:   numberField(fields["evaluation"]),
		Depth:        int(numberField(fields["depth"])),
		Alternatives: alternativesField(fields["alternatives"]),
		Timestamp:    now,
	}
	if t.Reasoning == "" {
		t.Reasoning = noReasoning
	}
	if t.Depth == 0 {
		t.Depth = 1
	}
	return t
}

// candidateRegion picks the fenced block contents, else the outermost brace span, else the text.
func candidateRegion(text string) string {
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := braceRegion.FindString(text); m != "" {
		return m
	}
	return text
}

func decodeObject(region string) (map[string]any, bool) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(region), &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

func fallbackThought(text string, now time.Time) domain.Thought {
	move := ""
	if m := coordMove.FindStringSubmatch(text); m != nil {
		move = m[1]
	}
	return domain.Thought{
		Move:         move,
		Reasoning:    failedReasoning,
		Evaluation:   0,
		Depth:        1,
		Alternatives: []domain.Alternative{},
		Timestamp:    now,
	}
}

func stringField(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// numberField accepts JSON numbers and numeric strings; anything else is zero.
func numberField(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
	}
	return 0
}

func alternativesField(v any) []domain.Alternative {
	list, _ := v.([]any)
	out := make([]domain.Alternative, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, domain.Alternative{
			Move:       stringField(m["move"]),
			Evaluation: numberField(m["evaluation"]),
			Reasoning:  stringField(m["reasoning"]),
		})
	}
	return out
}
