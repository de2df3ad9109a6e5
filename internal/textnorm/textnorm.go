// Package textnorm implements the Text Normalizer: tokenization,
// stemming/lemmatization, keyword extraction and language detection used
// by the Dictionary Service and Relevance Engine.
//
// Grounded on the original text_processing.py module: normalize_text,
// stem_word/get_lemma, _simple_word_tokenize, extract_keywords.
package textnorm

import (
	"regexp"
	"strings"
	"sync"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
	snowballstem "github.com/blevesearch/snowballstem"
	"github.com/blevesearch/snowballstem/french"
	"github.com/pemistahl/lingua-go"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	quoteRe      = regexp.MustCompile(`[“”‘’«»]`)
	dashRe       = regexp.MustCompile(`[–—]`)
	nonWordRe    = regexp.MustCompile(`[^\p{L}\p{N}\s\-àâäçéèêëïîôöùûüÿÀÂÄÇÉÈÊËÏÎÔÖÙÛÜŸ]`)
	multiSpaceRe = regexp.MustCompile(`\s+`)
	tokenRe      = regexp.MustCompile(`[A-Za-zÀ-ÖØ-öø-ÿ]+`)
)

// Normalize strips markup, unifies quote/dash glyphs, drops characters
// outside the accepted alphanumeric/diacritic/hyphen set, and collapses
// whitespace. French diacritics are preserved for stemming fidelity.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	t := htmlTagRe.ReplaceAllString(text, " ")
	t = quoteRe.ReplaceAllString(t, `"`)
	t = dashRe.ReplaceAllString(t, "-")
	t = nonWordRe.ReplaceAllString(t, " ")
	t = multiSpaceRe.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// Tokenize splits text into alphabetic runs, lowercased. This is the
// always-available fallback tokenizer (mirrors _simple_word_tokenize);
// no full NLP tokenizer dependency is wired for any language.
func Tokenize(text, lang string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

var (
	frenchStemmerOnce sync.Once
)

// Lemma computes the base/stem form of a single term for the given
// language. French uses Snowball stemming; English uses the Porter stem
// of every token; other languages return the lowercased term unchanged.
func Lemma(term, lang string) string {
	if strings.TrimSpace(term) == "" {
		return ""
	}
	cleaned := Normalize(term)
	if cleaned == "" {
		return ""
	}

	switch lang {
	case "fr":
		var out []string
		for _, tok := range Tokenize(cleaned, "fr") {
			out = append(out, stemFrench(tok))
		}
		return strings.TrimSpace(strings.Join(out, " "))
	case "en":
		var out []string
		for _, tok := range Tokenize(cleaned, "en") {
			lower := strings.ToLower(tok)
			stemmed := porterstemmer.StemString(lower)
			out = append(out, stemmed)
		}
		return strings.TrimSpace(strings.Join(out, " "))
	default:
		var out []string
		for _, tok := range Tokenize(cleaned, lang) {
			out = append(out, strings.ToLower(tok))
		}
		return strings.TrimSpace(strings.Join(out, " "))
	}
}

func stemFrench(word string) string {
	env := snowballstem.NewEnv(strings.ToLower(word))
	french.Stem(env)
	return env.Current()
}

// stopwordsEN and stopwordsFR are small built-in stop lists; the French
// list carries the extra terms extract_keywords() adds beyond NLTK's
// base French stopword corpus.
var stopwordsEN = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "is": {},
	"are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"to": {}, "of": {}, "in": {}, "on": {}, "at": {}, "by": {}, "for": {},
	"with": {}, "about": {}, "against": {}, "into": {}, "through": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "it": {}, "its": {},
	"as": {}, "from": {}, "than": {}, "then": {}, "so": {}, "such": {},
	"not": {}, "no": {}, "nor": {}, "can": {}, "will": {}, "just": {},
}

var stopwordsFR = map[string]struct{}{
	"le": {}, "la": {}, "les": {}, "un": {}, "une": {}, "des": {}, "de": {},
	"du": {}, "et": {}, "ou": {}, "mais": {}, "est": {}, "sont": {},
	"était": {}, "être": {}, "avoir": {}, "a": {}, "ont": {}, "pour": {},
	"dans": {}, "sur": {}, "par": {}, "avec": {}, "sans": {}, "ce": {},
	"cette": {}, "ces": {}, "qui": {}, "que": {}, "quoi": {}, "dont": {},
	"ne": {}, "pas": {}, "plus": {}, "aussi": {}, "comme": {}, "donc": {},
	"cela": {}, "celui": {}, "celle": {}, "ceux": {}, "celles": {},
	"ça": {}, "où": {},
}

// Keywords tokenizes text, drops stop words and short tokens, maps
// survivors to their lemma, and returns the first k distinct lemmas in
// first-seen order.
func Keywords(text, lang string, k int) []string {
	if text == "" {
		return nil
	}
	stop := stopwordsEN
	if lang == "fr" {
		stop = stopwordsFR
	}

	normalized := Normalize(text)
	tokens := Tokenize(strings.ToLower(normalized), lang)

	seen := make(map[string]struct{})
	var out []string
	for _, tok := range tokens {
		if len(tok) < 3 {
			continue
		}
		if _, isStop := stop[tok]; isStop {
			continue
		}
		lemma := Lemma(tok, lang)
		if lemma == "" {
			continue
		}
		if _, ok := seen[lemma]; ok {
			continue
		}
		seen[lemma] = struct{}{}
		out = append(out, lemma)
		if len(out) >= k {
			break
		}
	}
	return out
}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

func languageDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(lingua.English, lingua.French).
			Build()
	})
	return detector
}

// DetectLanguage tries a statistical detector on cleaned text of at
// least 10 characters, then falls back to an accent/stop-word heuristic
// returning "fr" or "en"; returns ("", false) for very short or
// unreadable input.
func DetectLanguage(text string) (string, bool) {
	cleaned := strings.TrimSpace(Normalize(text))
	if len(cleaned) < 10 {
		return "", false
	}

	if lang, ok := languageDetector().DetectLanguageOf(cleaned); ok {
		switch lang {
		case lingua.French:
			return "fr", true
		case lingua.English:
			return "en", true
		}
	}

	lower := strings.ToLower(cleaned)
	frenchHits := 0
	for _, r := range lower {
		switch r {
		case 'à', 'â', 'ç', 'é', 'è', 'ê', 'ë', 'î', 'ï', 'ô', 'ù', 'û', 'ü', 'ÿ':
			frenchHits++
		}
	}
	for word := range stopwordsFR {
		if strings.Contains(lower, " "+word+" ") {
			frenchHits++
		}
	}
	if frenchHits > 0 {
		return "fr", true
	}
	return "en", true
}
