package quality

import (
	"testing"
	"time"

	"mywi/internal/model"
)

func ptrInt(v int) *int { return &v }
func ptrStr(v string) *string { return &v }
func ptrFloat(v float64) *float64 { return &v }
func ptrTime(v time.Time) *time.Time { return &v }

func perfectExpression(now time.Time) model.ScorableExpression {
	readable := make([]byte, 0, 2000)
	for i := 0; i < 400; i++ {
		readable = append(readable, []byte("word ")...)
	}
	readableStr := string(readable)
	published := now.AddDate(0, -1, 0)
	crawled := now
	readableAt := now
	approved := now

	return model.ScorableExpression{
		HTTPStatus:    ptrInt(200),
		ContentType:   ptrStr("text/html; charset=utf-8"),
		Title:         ptrStr("A Complete Article About Testing"),
		Description:   ptrStr("This is a sufficiently long description used to satisfy the structure block threshold."),
		Keywords:      ptrStr("testing, quality, go"),
		CanonicalURL:  ptrStr("https://example.com/article"),
		WordCount:     ptrInt(1500),
		ContentLength: ptrInt(7500),
		ReadingTime:   ptrInt(7),
		Language:      ptrStr("en"),
		Relevance:     ptrFloat(5.0),
		PublishedAt:   ptrTime(published),
		ValidLLM:      ptrStr(model.ValidLLMOui),
		Readable:      ptrStr(readableStr),
		ReadableAt:    ptrTime(readableAt),
		ApprovedAt:    ptrTime(approved),
		CrawledAt:     ptrTime(crawled),
	}
}

func TestCompute_PerfectDocumentScoresExcellentWithNoFlags(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	land := model.ScorableLand{Lang: []string{"en"}}
	res := Compute(perfectExpression(now), land, DefaultWeights)

	if res.Score < 0.85 {
		t.Fatalf("expected score >= 0.85, got %v", res.Score)
	}
	if res.Category != CategoryExcellent {
		t.Fatalf("expected category %q, got %q", CategoryExcellent, res.Category)
	}
	if len(res.Flags) != 0 {
		t.Fatalf("expected no flags, got %v", res.Flags)
	}
}

func TestCompute_HTTPErrorStatusZerosScore(t *testing.T) {
	for _, status := range []int{400, 404, 500, 503} {
		expr := model.ScorableExpression{HTTPStatus: ptrInt(status)}
		res := Compute(expr, model.ScorableLand{}, DefaultWeights)
		if res.Score != 0 {
			t.Fatalf("status %d: expected score 0, got %v", status, res.Score)
		}
		if res.Category != CategoryVeryWeak {
			t.Fatalf("status %d: expected category %q, got %q", status, CategoryVeryWeak, res.Category)
		}
	}
}

func TestCompute_PDFContentTypeZerosScore(t *testing.T) {
	expr := model.ScorableExpression{
		HTTPStatus:  ptrInt(200),
		ContentType: ptrStr("application/pdf"),
	}
	res := Compute(expr, model.ScorableLand{}, DefaultWeights)
	if res.Score != 0 {
		t.Fatalf("expected score 0 for PDF content type, got %v", res.Score)
	}
	found := false
	for _, f := range res.Flags {
		if f == "non_html_pdf" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected non_html_pdf flag, got %v", res.Flags)
	}
}

func TestCompute_MissingCrawledAtZerosScore(t *testing.T) {
	expr := model.ScorableExpression{
		HTTPStatus: ptrInt(200),
	}
	res := Compute(expr, model.ScorableLand{}, DefaultWeights)
	if res.Score != 0 {
		t.Fatalf("expected score 0 when not crawled, got %v", res.Score)
	}
}

func TestCompute_MissingWordCountYieldsNoContentFlag(t *testing.T) {
	now := time.Now().UTC()
	expr := model.ScorableExpression{
		HTTPStatus: ptrInt(200),
		CrawledAt:  ptrTime(now),
	}
	res := Compute(expr, model.ScorableLand{}, DefaultWeights)
	found := false
	for _, f := range res.Flags {
		if f == "no_content" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected no_content flag, got %v", res.Flags)
	}
}

func TestCompute_WrongLanguageFlagged(t *testing.T) {
	now := time.Now().UTC()
	expr := perfectExpression(now)
	fr := "de"
	expr.Language = &fr
	res := Compute(expr, model.ScorableLand{Lang: []string{"en", "fr"}}, DefaultWeights)
	found := false
	for _, f := range res.Flags {
		if f == "wrong_language" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected wrong_language flag, got %v", res.Flags)
	}
}

func TestDefaultWeights_SumToOne(t *testing.T) {
	if !DefaultWeights.Valid() {
		t.Fatalf("expected default weights to sum to 1.0, got %v", DefaultWeights.Sum())
	}
}

func TestWeights_InvalidSumRejected(t *testing.T) {
	w := Weights{Access: 0.5, Structure: 0.5, Richness: 0.5, Coherence: 0.1, Integrity: 0.1}
	if w.Valid() {
		t.Fatalf("expected invalid weights to fail validation")
	}
}
