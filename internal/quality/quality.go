// Package quality implements the Quality Scorer (C6): a deterministic,
// pure function mapping an Expression's technical/structural/semantic/
// pipeline-integrity signals to a score in [0,1].
//
// Grounded on app/services/quality_scorer.py (QualityScorer).
package quality

import (
	"fmt"
	"math"
	"strings"
	"time"

	"mywi/internal/model"
)

// Weights are the five block weights; must sum to 1.0. Defaults mirror
// quality_scorer.py's WEIGHTS.
type Weights struct {
	Access     float64
	Structure  float64
	Richness   float64
	Coherence  float64
	Integrity  float64
}

// DefaultWeights matches the Python module's default WEIGHTS dict.
var DefaultWeights = Weights{
	Access:    0.30,
	Structure: 0.15,
	Richness:  0.25,
	Coherence: 0.20,
	Integrity: 0.10,
}

// Sum returns the total of all five weights.
func (w Weights) Sum() float64 {
	return w.Access + w.Structure + w.Richness + w.Coherence + w.Integrity
}

// Valid reports whether the weights sum to 1.0 within a small epsilon,
// the startup-validation gate required by the error-handling design
// ("Quality weights mis-sum -> reject at startup").
func (w Weights) Valid() bool {
	return math.Abs(w.Sum()-1.0) < 1e-6
}

// Category thresholds.
const (
	CategoryExcellent  = "Excellent"
	CategoryGood       = "Bon"
	CategoryAverage    = "Moyen"
	CategoryWeak       = "Faible"
	CategoryVeryWeak   = "Très faible"
)

// Result is the outcome of a single Compute call.
type Result struct {
	Score   float64
	Category string
	Flags   []string
	Reason  string
	Details map[string]float64
}

// Compute is the pure entrypoint: five weighted blocks, access-block
// gating, category thresholds and flags exactly as specified.
func Compute(expr model.ScorableExpression, land model.ScorableLand, weights Weights) Result {
	var flags []string
	details := make(map[string]float64)

	accessScore, accessFlags := scoreAccess(expr)
	flags = append(flags, accessFlags...)
	details["access"] = accessScore

	if accessScore == 0.0 {
		return Result{
			Score:    0.0,
			Category: CategoryVeryWeak,
			Flags:    flags,
			Reason:   "Accès impossible: " + strings.Join(flags, ", "),
			Details:  details,
		}
	}

	structScore, structFlags := scoreStructure(expr)
	flags = append(flags, structFlags...)
	details["structure"] = structScore

	richScore, richFlags := scoreRichness(expr)
	flags = append(flags, richFlags...)
	details["richness"] = richScore

	coherScore, coherFlags := scoreCoherence(expr, land)
	flags = append(flags, coherFlags...)
	details["coherence"] = coherScore

	integScore, integFlags := scoreIntegrity(expr)
	flags = append(flags, integFlags...)
	details["integrity"] = integScore

	final := accessScore*weights.Access +
		structScore*weights.Structure +
		richScore*weights.Richness +
		coherScore*weights.Coherence +
		integScore*weights.Integrity

	final = clamp01(final)
	final = math.Round(final*1000) / 1000

	category := categoryFor(final)
	reason := reasonFor(final, category, flags)

	return Result{Score: final, Category: category, Flags: flags, Reason: reason, Details: details}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func categoryFor(score float64) string {
	switch {
	case score >= 0.8:
		return CategoryExcellent
	case score >= 0.6:
		return CategoryGood
	case score >= 0.4:
		return CategoryAverage
	case score >= 0.2:
		return CategoryWeak
	default:
		return CategoryVeryWeak
	}
}

func reasonFor(score float64, category string, flags []string) string {
	switch {
	case score >= 0.8:
		return fmt.Sprintf("Haute qualité (%.2f): contenu riche et complet", score)
	case score >= 0.6:
		return fmt.Sprintf("Qualité acceptable (%.2f): contenu standard", score)
	default:
		var main []string
		has := func(f string) bool {
			for _, x := range flags {
				if x == f {
					return true
				}
			}
			return false
		}
		if has("http_error") {
			main = append(main, "erreur HTTP")
		}
		if has("short_content") || has("very_short_content") {
			main = append(main, "contenu trop court")
		}
		if has("wrong_language") {
			main = append(main, "langue incorrecte")
		}
		if has("low_relevance") {
			main = append(main, "faible pertinence")
		}
		if has("no_readable") {
			main = append(main, "extraction échouée")
		}
		issues := main
		if len(issues) == 0 {
			if len(flags) > 2 {
				issues = flags[:2]
			} else {
				issues = flags
			}
		}
		return fmt.Sprintf("Qualité %s (%.2f): %s", strings.ToLower(category), score, strings.Join(issues, ", "))
	}
}

func scoreAccess(expr model.ScorableExpression) (float64, []string) {
	var flags []string

	if expr.HTTPStatus == nil {
		return 0, append(flags, "no_http_status")
	}
	status := *expr.HTTPStatus

	var score float64
	switch {
	case status >= 200 && status < 300:
		score = 1.0
	case status >= 300 && status < 400:
		score = 0.5
		flags = append(flags, "redirect")
	default:
		flags = append(flags, "http_error")
		return 0, flags
	}

	if expr.ContentType != nil {
		ct := strings.ToLower(*expr.ContentType)
		switch {
		case strings.Contains(ct, "text/html"):
			// no penalty
		case strings.Contains(ct, "application/pdf"):
			flags = append(flags, "non_html_pdf")
			return 0, flags
		default:
			flags = append(flags, "non_html")
			score *= 0.3
		}
	}

	if expr.CrawledAt == nil {
		flags = append(flags, "not_crawled")
		return 0, flags
	}

	return score, flags
}

func scoreStructure(expr model.ScorableExpression) (float64, []string) {
	var score float64
	var flags []string

	if expr.Title != nil && strings.TrimSpace(*expr.Title) != "" {
		score += 0.4
	} else {
		flags = append(flags, "no_title")
	}

	if expr.Description != nil && len(strings.TrimSpace(*expr.Description)) > 20 {
		score += 0.3
	} else {
		flags = append(flags, "no_description")
	}

	if expr.Keywords != nil && strings.TrimSpace(*expr.Keywords) != "" {
		score += 0.15
	} else {
		flags = append(flags, "no_keywords")
	}

	if expr.CanonicalURL != nil && *expr.CanonicalURL != "" {
		score += 0.15
	} else {
		flags = append(flags, "no_canonical")
	}

	return score, flags
}

func scoreRichness(expr model.ScorableExpression) (float64, []string) {
	var score float64
	var flags []string

	if expr.WordCount == nil || *expr.WordCount == 0 {
		return 0, []string{"no_content"}
	}
	wc := *expr.WordCount

	var scoreWC float64
	switch {
	case wc < 80:
		scoreWC = 0.1
		flags = append(flags, "very_short_content")
	case wc < 150:
		scoreWC = 0.3
		flags = append(flags, "short_content")
	case wc <= 5000:
		const optimal, sigma = 1500.0, 1500.0
		d := float64(wc) - optimal
		scoreWC = math.Exp(-(d * d) / (2 * sigma * sigma))
	default:
		scoreWC = 0.8 - (float64(wc)-5000)/50000
		if scoreWC < 0.5 {
			scoreWC = 0.5
		}
		if wc > 10000 {
			flags = append(flags, "very_long_content")
		}
	}
	score += scoreWC * 0.5

	if expr.ContentLength != nil && *expr.ContentLength > 0 {
		ratio := float64(wc) / float64(*expr.ContentLength)
		var scoreRatio float64
		switch {
		case ratio < 0.05:
			scoreRatio = 0.2
			flags = append(flags, "poor_text_ratio")
		case ratio < 0.1:
			scoreRatio = 0.5
			flags = append(flags, "low_text_ratio")
		case ratio <= 0.3:
			scoreRatio = 1.0
		default:
			scoreRatio = 0.9
		}
		score += scoreRatio * 0.3
	} else {
		score += 0.3 * 0.5
	}

	if expr.ReadingTime != nil && *expr.ReadingTime > 0 {
		rt := float64(*expr.ReadingTime)
		var scoreRT float64
		switch {
		case rt < 0.25:
			scoreRT = 0.2
			flags = append(flags, "very_short_reading")
		case rt < 0.5:
			scoreRT = 0.5
			flags = append(flags, "short_reading")
		case rt <= 15:
			scoreRT = 1.0
		case rt <= 25:
			scoreRT = 0.8
		default:
			scoreRT = 0.3
			flags = append(flags, "very_long_reading")
		}
		score += scoreRT * 0.2
	} else {
		score += 0.2 * 0.5
	}

	return score, flags
}

func scoreCoherence(expr model.ScorableExpression, land model.ScorableLand) (float64, []string) {
	var score float64
	var flags []string

	if expr.Language != nil && *expr.Language != "" && len(land.Lang) > 0 {
		inLand := false
		for _, l := range land.Lang {
			if l == *expr.Language {
				inLand = true
				break
			}
		}
		if inLand {
			score += 1.0 * 0.4
		} else {
			flags = append(flags, "wrong_language")
		}
	} else {
		score += 0.4 * 0.5
		if expr.Language == nil || *expr.Language == "" {
			flags = append(flags, "no_language")
		}
	}

	if expr.Relevance != nil {
		norm := *expr.Relevance / 5.0
		if norm > 1.0 {
			norm = 1.0
		}
		score += norm * 0.4
		if *expr.Relevance < 0.5 {
			flags = append(flags, "low_relevance")
		}
	} else {
		score += 0.4 * 0.5
	}

	if expr.PublishedAt != nil {
		now := time.Now().UTC()
		ageDays := now.Sub(expr.PublishedAt.UTC()).Hours() / 24

		var scoreFresh float64
		switch {
		case ageDays < 0:
			scoreFresh = 0
			flags = append(flags, "future_date")
		case ageDays < 365:
			scoreFresh = 1.0
		case ageDays < 730:
			scoreFresh = 0.9
		case ageDays < 1825:
			scoreFresh = 0.7
		default:
			scoreFresh = 0.5
			flags = append(flags, "old_content")
		}
		score += scoreFresh * 0.2
	} else {
		score += 0.2 * 0.5
	}

	return score, flags
}

func scoreIntegrity(expr model.ScorableExpression) (float64, []string) {
	var score float64
	var flags []string

	switch {
	case expr.ValidLLM != nil && *expr.ValidLLM == model.ValidLLMOui:
		score += 0.4
	case expr.ValidLLM != nil && *expr.ValidLLM == model.ValidLLMNon:
		flags = append(flags, "llm_rejected")
	default:
		score += 0.4 * 0.5
	}

	if expr.ReadableAt != nil && expr.Readable != nil && strings.TrimSpace(*expr.Readable) != "" {
		if len(strings.TrimSpace(*expr.Readable)) > 100 {
			score += 0.4
		} else {
			score += 0.2
			flags = append(flags, "short_readable")
		}
	} else {
		flags = append(flags, "no_readable")
	}

	if expr.ApprovedAt != nil {
		score += 0.2
	} else {
		flags = append(flags, "not_approved")
	}

	return score, flags
}
