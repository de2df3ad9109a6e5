package relevance

import "testing"

func TestScore_EmptyDictionaryReturnsZero(t *testing.T) {
	got := Score(nil, Expression{Title: "anything"}, "en")
	if got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestScore_TitleMatchWeightsTenX(t *testing.T) {
	dict := map[string]float64{"articl": 1.0}
	got := Score(dict, Expression{Title: "Article"}, "en")
	if got != 10 {
		t.Fatalf("expected 10, got %v", got)
	}
}

func TestScore_DeterministicAcrossCalls(t *testing.T) {
	dict := map[string]float64{"content": 2.0, "articl": 1.0}
	expr := Expression{Title: "Article", Readable: "Content content content"}
	first := Score(dict, expr, "en")
	second := Score(dict, expr, "en")
	if first != second {
		t.Fatalf("expected deterministic scores, got %v and %v", first, second)
	}
}

func TestScore_FrenchBoostAppliedWhenMatched(t *testing.T) {
	dict := map[string]float64{"articl": 1.0}
	got := Score(dict, Expression{Title: "Article"}, "fr")
	if got != 11 {
		t.Fatalf("expected 11 (10 * 1.1), got %v", got)
	}
}
