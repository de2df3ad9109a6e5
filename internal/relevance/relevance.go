// Package relevance implements the Relevance Engine (C5): a pure,
// deterministic scoring of an Expression's title and readable content
// against a Land's weighted lemma dictionary.
//
// Grounded on text_processing.expression_relevance.
package relevance

import "mywi/internal/textnorm"

// Expression is the minimal structural view the Relevance Engine reads
// from; any caller (real Expression, test fixture) satisfies it by
// value.
type Expression struct {
	Title    string
	Readable string
}

// Score computes the relevance of expr against dictionary (lemma →
// weight) for the given language. Deterministic; performs no I/O.
//
//  1. Up to 20 title keyword lemmas, each new dictionary match adds
//     weight*10.
//  2. Up to 50 readable keyword lemmas, each new dictionary match adds
//     weight*1.
//  3. Multi-term bonus: +0.5 per distinct matched lemma when >= 2 matched.
//  4. French with >=1 match: multiply by 1.1.
//  5. Round to 2 decimals.
func Score(dictionary map[string]float64, expr Expression, lang string) float64 {
	if len(dictionary) == 0 {
		return 0
	}

	var score float64
	matched := make(map[string]struct{})

	if expr.Title != "" {
		for _, kw := range textnorm.Keywords(expr.Title, lang, 20) {
			if _, already := matched[kw]; already {
				continue
			}
			if w, ok := dictionary[kw]; ok {
				score += w * 10
				matched[kw] = struct{}{}
			}
		}
	}

	if expr.Readable != "" {
		for _, kw := range textnorm.Keywords(expr.Readable, lang, 50) {
			if _, already := matched[kw]; already {
				continue
			}
			if w, ok := dictionary[kw]; ok {
				score += w * 1
				matched[kw] = struct{}{}
			}
		}
	}

	if len(matched) > 1 {
		score += float64(len(matched)) * 0.5
	}

	if lang == "fr" && len(matched) > 0 {
		score *= 1.1
	}

	return round2(score)
}

func round2(v float64) float64 {
	return float64(int64(v*100+sign(v)*0.5)) / 100
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
