package textnorm

import "testing"

func TestNormalize_StripsMarkupAndCollapsesWhitespace(t *testing.T) {
	got := Normalize("<p>Hello   world</p>")
	if got != "Hello world" {
		t.Fatalf("expected %q, got %q", "Hello world", got)
	}
}

func TestNormalize_PreservesFrenchDiacritics(t *testing.T) {
	got := Normalize("café à la crème")
	if got != "café à la crème" {
		t.Fatalf("expected diacritics preserved, got %q", got)
	}
}

func TestTokenize_SplitsAlphabeticRuns(t *testing.T) {
	got := Tokenize("Hello, world! 123", "en")
	if len(got) != 2 || got[0] != "hello" || got[1] != "world" {
		t.Fatalf("unexpected tokens: %v", got)
	}
}

func TestKeywords_DropsShortAndStopWords(t *testing.T) {
	got := Keywords("The quick brown fox jumps over the lazy dog", "en", 10)
	for _, kw := range got {
		if len(kw) < 3 {
			t.Fatalf("keyword %q shorter than 3 chars", kw)
		}
	}
	for _, stop := range []string{"the", "a"} {
		for _, kw := range got {
			if kw == stop {
				t.Fatalf("stop word %q leaked into keywords", stop)
			}
		}
	}
}

func TestKeywords_RespectsLimitAndOrder(t *testing.T) {
	got := Keywords("alpha beta gamma delta epsilon", "en", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 keywords, got %d: %v", len(got), got)
	}
	if got[0] != "alpha" || got[1] != "beta" {
		t.Fatalf("expected first-seen order [alpha beta], got %v", got)
	}
}

func TestDetectLanguage_ShortTextReturnsFalse(t *testing.T) {
	if _, ok := DetectLanguage("hi"); ok {
		t.Fatalf("expected short text to return ok=false")
	}
}

func TestDetectLanguage_FrenchAccentsHeuristic(t *testing.T) {
	lang, ok := DetectLanguage("Cette phrase contient des mots français avec des accents évidents")
	if !ok {
		t.Fatalf("expected a language to be detected")
	}
	if lang != "fr" {
		t.Fatalf("expected fr, got %s", lang)
	}
}
