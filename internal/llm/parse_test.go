package llm

import (
	"testing"
)

func TestParseRegionsAreEquivalent(t *testing.T) {
	obj := `{"move": "e2e4", "reasoning": "center", "evaluation": 0.3, "depth": 4}`
	inputs := []string{
		obj,
		"```json\n" + obj + "\n```",
		"```\n" + obj + "\n```",
		"Sure! Here is my move: " + obj + " Good luck.",
	}
	for _, in := range inputs {
		got := Parse(in)
		if got.Move != "e2e4" || got.Reasoning != "center" || got.Evaluation != 0.3 || got.Depth != 4 {
			t.Fatalf("Parse(%q) = %+v", in, got)
		}
		if got.Timestamp.IsZero() {
			t.Fatalf("timestamp not set")
		}
	}
}

func TestParseDefaults(t *testing.T) {
	got := Parse(`{"move": "g1f3"}`)
	if got.Move != "g1f3" || got.Reasoning != "No reasoning provided" || got.Evaluation != 0 || got.Depth != 1 {
		t.Fatalf("defaults not applied: %+v", got)
	}
	if got.Alternatives == nil || len(got.Alternatives) != 0 {
		t.Fatalf("alternatives should be an empty list, got %#v", got.Alternatives)
	}

	got = Parse(`{"move": "g1f3", "depth": 0, "reasoning": ""}`)
	if got.Depth != 1 || got.Reasoning != "No reasoning provided" {
		t.Fatalf("zero values should fall back to defaults: %+v", got)
	}
}

func TestParseLenientNumbers(t *testing.T) {
	got := Parse(`{"move": "d2d4", "evaluation": "-0.25", "depth": "6"}`)
	if got.Evaluation != -0.25 || got.Depth != 6 {
		t.Fatalf("numeric strings not coerced: %+v", got)
	}
	got = Parse(`{"move": "d2d4", "evaluation": "winning"}`)
	if got.Evaluation != 0 {
		t.Fatalf("non-numeric evaluation should be 0, got %v", got.Evaluation)
	}
}

func TestParseAlternatives(t *testing.T) {
	got := Parse(`{"move": "e2e4", "alternatives": [{"move": "d2d4", "evaluation": 0.2, "reasoning": "solid"}, "junk"]}`)
	if len(got.Alternatives) != 1 {
		t.Fatalf("alternatives = %+v", got.Alternatives)
	}
	alt := got.Alternatives[0]
	if alt.Move != "d2d4" || alt.Evaluation != 0.2 || alt.Reasoning != "solid" {
		t.Fatalf("alternative = %+v", alt)
	}
}

func TestParseFreeTextFallback(t *testing.T) {
	got := Parse("I think the best move is G1F3 because it develops.")
	if got.Move != "G1F3" || got.Reasoning != "Failed to parse response" || got.Depth != 1 || got.Evaluation != 0 {
		t.Fatalf("fallback = %+v", got)
	}
	if len(got.Alternatives) != 0 {
		t.Fatalf("fallback alternatives should be empty")
	}
}

func TestParseBrokenJSONFallsBack(t *testing.T) {
	got := Parse(`{"move": "e7e5", "reasoning": "oops"`)
	if got.Move != "e7e5" || got.Reasoning != "Failed to parse response" {
		t.Fatalf("fallback = %+v", got)
	}
}

func TestParseNothingUsable(t *testing.T) {
	for _, in := range []string{"", "   ", "I resign.", "[1, 2, 3]", "null"} {
		got := Parse(in)
		if got.Move != "" || got.Reasoning != "Failed to parse response" || got.Depth != 1 {
			t.Fatalf("Parse(%q) = %+v", in, got)
		}
	}
}

func TestParseFallbackIgnoresPromotionSuffix(t *testing.T) {
	got := Parse("play e7e8q now")
	if got.Move != "e7e8" {
		t.Fatalf("fallback should take the four-character prefix, got %q", got.Move)
	}
}
