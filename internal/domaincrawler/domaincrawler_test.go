package domaincrawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

func TestTryTrafilatura_ExtractsMetadataFromDOM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html lang="fr"><head><title>Bienvenue</title>
<meta name="description" content="Une description.">
<meta name="keywords" content="a, b, c"></head>
<body>Bonjour le monde.</body></html>`))
	}))
	defer srv.Close()

	c := New(Config{Timeout: 2 * time.Second, UserAgent: "test-agent"})
	host := strings.TrimPrefix(srv.URL, "http://")
	result := c.tryTrafilatura(context.Background(), host)

	// The httptest server only speaks plain HTTP, so the https attempt
	// fails and the rung falls back to http, where the DOM is parsed.
	if result.HTTPStatus != 200 {
		t.Fatalf("expected the http fallback to succeed, got status %d (%s)", result.HTTPStatus, result.ErrorCode)
	}
	if result.Title != "Bienvenue" || result.Description != "Une description." || result.Language != "fr" {
		t.Fatalf("unexpected metadata: %+v", result)
	}
}

func TestMetadataHelpers_ParseDocumentFields(t *testing.T) {
	html := `<html lang="en"><head><title> My Title </title>
<meta name="description" content="desc here">
<meta name="keywords" content="k1, k2">
<meta property="og:description" content="og desc"></head>
<body>  Hello World  </body></html>`

	doc := mustParse(t, html)

	if got := pageTitle(doc); got != "My Title" {
		t.Fatalf("pageTitle: got %q", got)
	}
	if got := metaContent(doc, "description"); got != "desc here" {
		t.Fatalf("metaContent(description): got %q", got)
	}
	if got := metaContent(doc, "keywords"); got != "k1, k2" {
		t.Fatalf("metaContent(keywords): got %q", got)
	}
	if got := metaProperty(doc, "og:description"); got != "og desc" {
		t.Fatalf("metaProperty(og:description): got %q", got)
	}
	if got := htmlLang(doc); got != "en" {
		t.Fatalf("htmlLang: got %q", got)
	}
	if got := bodyText(doc); got != "Hello World" {
		t.Fatalf("bodyText: got %q", got)
	}
}

func TestTruncate_RespectsMaxAndLeavesShortStringsAlone(t *testing.T) {
	if got := truncate("short", 100); got != "short" {
		t.Fatalf("expected untouched string, got %q", got)
	}
	if got := truncate("abcdefgh", 3); got != "abc" {
		t.Fatalf("expected truncation to 3 chars, got %q", got)
	}
}

func TestFetchDomain_FallsThroughAllRungsForAnUnreachableHost(t *testing.T) {
	c := New(Config{Timeout: 500 * time.Millisecond, UserAgent: "test-agent"})
	result := c.FetchDomain(context.Background(), "this-domain-does-not-exist.invalid")

	if result.HTTPStatus == 200 {
		t.Fatalf("did not expect success for a nonexistent domain")
	}
	if result.RetryCount != 2 {
		t.Fatalf("expected 2 retries (trafilatura + archive both failed), got %d", result.RetryCount)
	}
	if result.SourceMethod != SourceError {
		t.Fatalf("expected SourceError, got %q", result.SourceMethod)
	}
}

func mustParse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("failed to parse test HTML: %v", err)
	}
	return doc
}
