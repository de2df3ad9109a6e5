// Package dictionary implements the Dictionary Service (C2): populating
// and expanding a Land's weighted lemma dictionary from seed terms,
// including language-specific morphological variant generation.
//
// Grounded on app/services/dictionary_service.py.
package dictionary

import (
	"context"
	"strings"

	"mywi/internal/model"
	"mywi/internal/textnorm"
)

// Store is the persistence seam the Dictionary Service writes through;
// satisfied by internal/store's Postgres-backed implementation.
type Store interface {
	CountLandDictionary(ctx context.Context, landID int64) (int, error)
	ClearLandDictionary(ctx context.Context, landID int64) error
	LandWords(ctx context.Context, landID int64) ([]model.Word, error)
	FindWordByWord(ctx context.Context, word, language string) (*model.Word, bool, error)
	FindWordByLemma(ctx context.Context, lemma, language string) (*model.Word, bool, error)
	CreateWord(ctx context.Context, w model.Word) (model.Word, error)
	HasLandDictionaryEntry(ctx context.Context, landID, wordID int64) (bool, error)
	InsertLandDictionaryEntry(ctx context.Context, entry model.LandDictionary) error
}

// Result summarizes the outcome of a Populate call.
type Result struct {
	Skipped        bool
	ExistingEntries int
	WordsAdded     int
	VariantsAdded  int
}

// Populate fills (or expands) a Land's dictionary from seedTerms. If the
// dictionary already has entries and forceRefresh is false, it is left
// untouched and Result.Skipped is true. If forceRefresh is true and
// entries exist, they are cleared before repopulating. When seedTerms is
// empty, the land's current dictionary words (read before any clearing)
// are used as the seed for variant
// expansion (mirrors populate_land_dictionary's "seed from existing
// words" fallback).
func Populate(ctx context.Context, store Store, land model.Land, seedTerms []string, forceRefresh bool) (Result, error) {
	existing, err := store.CountLandDictionary(ctx, land.ID)
	if err != nil {
		return Result{}, err
	}

	if existing > 0 && !forceRefresh {
		return Result{Skipped: true, ExistingEntries: existing}, nil
	}

	primaryLang := "fr"
	if len(land.Lang) > 0 {
		primaryLang = land.Lang[0]
	}

	seeds := seedTerms
	if len(seeds) == 0 {
		words, err := store.LandWords(ctx, land.ID)
		if err != nil {
			return Result{}, err
		}
		for _, w := range words {
			seeds = append(seeds, w.Word)
		}
	}

	if forceRefresh && existing > 0 {
		if err := store.ClearLandDictionary(ctx, land.ID); err != nil {
			return Result{}, err
		}
	}

	var result Result
	for _, term := range seeds {
		w, created, err := createOrGetWord(ctx, store, term, "", primaryLang)
		if err != nil {
			return Result{}, err
		}
		if created {
			result.WordsAdded++
		}
		added, err := addToLandDictionary(ctx, store, land.ID, w.ID)
		if err != nil {
			return Result{}, err
		}
		_ = added
	}

	variantsAdded, err := generateWordVariations(ctx, store, land.ID, primaryLang)
	if err != nil {
		return Result{}, err
	}
	result.VariantsAdded = variantsAdded

	return result, nil
}

// createOrGetWord normalizes word, computes its lemma (unless lemma is
// supplied), and looks it up first by exact normalized word+language,
// then (only when the lemma was computed here) by lemma+language,
// creating a new Word only if neither matches. A supplied lemma is the
// variant path: variants share their base word's lemma, so they are
// matched by exact word only.
func createOrGetWord(ctx context.Context, store Store, word, lemma, language string) (model.Word, bool, error) {
	normalized := strings.ToLower(textnorm.Normalize(word))
	if normalized == "" {
		return model.Word{}, false, nil
	}
	lemmaSupplied := lemma != ""
	if lemma == "" {
		lemma = textnorm.Lemma(normalized, language)
	}
	if lemma == "" {
		lemma = normalized
	}

	if existing, ok, err := store.FindWordByWord(ctx, normalized, language); err != nil {
		return model.Word{}, false, err
	} else if ok {
		return *existing, false, nil
	}

	if !lemmaSupplied {
		if existing, ok, err := store.FindWordByLemma(ctx, lemma, language); err != nil {
			return model.Word{}, false, err
		} else if ok {
			return *existing, false, nil
		}
	}

	created, err := store.CreateWord(ctx, model.Word{
		Word:      normalized,
		Lemma:     lemma,
		Language:  language,
		Frequency: 1.0,
	})
	if err != nil {
		return model.Word{}, false, err
	}
	return created, true, nil
}

// addToLandDictionary inserts the (land, word) membership with an
// initial weight of 1.0 if it does not already exist; returns whether a
// new row was inserted.
func addToLandDictionary(ctx context.Context, store Store, landID, wordID int64) (bool, error) {
	exists, err := store.HasLandDictionaryEntry(ctx, landID, wordID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := store.InsertLandDictionaryEntry(ctx, model.LandDictionary{LandID: landID, WordID: wordID, Weight: 1.0}); err != nil {
		return false, err
	}
	return true, nil
}

// generateWordVariations expands every word currently in the land's
// dictionary into its language-specific morphological variants, creating
// or reusing Word rows that share the base word's lemma and adding each
// to the dictionary.
func generateWordVariations(ctx context.Context, store Store, landID int64, primaryLang string) (int, error) {
	words, err := store.LandWords(ctx, landID)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, base := range words {
		lang := base.Language
		if lang == "" {
			lang = primaryLang
		}
		for _, variant := range wordVariations(base.Word, lang) {
			normalized := strings.ToLower(textnorm.Normalize(variant))
			if len(normalized) < 2 {
				continue
			}
			if normalized == base.Word {
				continue
			}

			w, created, err := createOrGetWord(ctx, store, normalized, base.Lemma, lang)
			if err != nil {
				return added, err
			}
			if created {
				added++
			}
			if ok, err := addToLandDictionary(ctx, store, landID, w.ID); err != nil {
				return added, err
			} else if ok {
				added++
			}
		}
	}
	return added, nil
}

// wordVariations generates candidate morphological variants of word for
// the given language. Verbatim from _get_word_variations: French
// gender/number/verb/noun/adjective suffix rules, English pluralization/
// verb-tense/comparative rules, plus the bare stem (the word's lemma,
// when it differs from the word itself) regardless of language.
// Unrecognized languages yield only the bare stem, if any.
func wordVariations(word, lang string) []string {
	w := strings.ToLower(word)

	var out []string
	switch lang {
	case "fr":
		out = frenchVariations(w)
	case "en":
		out = englishVariations(w)
	}

	if stem := textnorm.Lemma(w, lang); stem != "" && stem != w {
		out = append(out, stem)
	}

	return out
}

func frenchVariations(w string) []string {
	var out []string

	if strings.HasSuffix(w, "e") && len(w) > 1 {
		out = append(out, strings.TrimSuffix(w, "e"))
	}
	if !strings.HasSuffix(w, "s") {
		out = append(out, w+"s")
	}
	if strings.HasSuffix(w, "es") {
		stem := strings.TrimSuffix(w, "es")
		out = append(out, stem, stem+"s")
	}

	if strings.HasSuffix(w, "er") {
		stem := strings.TrimSuffix(w, "er")
		out = append(out,
			stem+"e", stem+"es", stem+"ent",
			stem+"ons", stem+"ez", stem+"é", stem+"ant",
		)
	}

	if strings.HasSuffix(w, "tion") {
		stem := strings.TrimSuffix(w, "tion")
		out = append(out, stem+"ter", stem+"teur", stem+"trice")
	}

	if strings.HasSuffix(w, "eux") {
		out = append(out, strings.TrimSuffix(w, "eux")+"euse")
	}

	if strings.HasSuffix(w, "if") {
		out = append(out, strings.TrimSuffix(w, "if")+"ive")
	}

	return out
}

func englishVariations(w string) []string {
	var out []string

	if !strings.HasSuffix(w, "s") {
		out = append(out, w+"s")
	}

	if strings.HasSuffix(w, "y") && len(w) > 2 {
		out = append(out, strings.TrimSuffix(w, "y")+"ies")
	}

	if strings.HasSuffix(w, "e") {
		out = append(out, w+"d")
		stem := strings.TrimSuffix(w, "e")
		out = append(out, stem+"ing")
	} else {
		out = append(out, w+"ed", w+"ing")
	}

	if len(w) <= 6 {
		out = append(out, w+"er", w+"est")
	}

	return out
}
