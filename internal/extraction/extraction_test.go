package extraction

import (
	"context"
	"strings"
	"testing"

	"mywi/internal/model"
)

type fakeFetcher struct {
	responses map[string]string
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	if body, ok := f.responses[rawURL]; ok {
		return []byte(body), "text/html", nil
	}
	return nil, "", nil
}

func longParagraph(words int) string {
	var b strings.Builder
	for i := 0; i < words; i++ {
		b.WriteString("lorem ")
	}
	return b.String()
}

func TestCascade_PrimarySucceedsOnRichPage(t *testing.T) {
	html := `<html lang="en"><head>
		<title>Fallback Title</title>
		<meta property="og:title" content="Canonical Title">
		<meta name="description" content="A description that is definitely longer than twenty characters.">
		<meta name="keywords" content="go, testing">
		<link rel="canonical" href="https://example.com/article">
	</head><body><article><p>` + longParagraph(50) + `</p>
		<img src="/img/one.jpg">
	</article></body></html>`

	res := GetReadableContentWithFallbacks(context.Background(), nil, "https://example.com/article", html)

	if res.Source != model.SourcePrimary {
		t.Fatalf("expected primary source, got %v", res.Source)
	}
	if res.Metadata.Title != "Canonical Title" {
		t.Fatalf("expected og:title to win, got %q", res.Metadata.Title)
	}
	if res.Metadata.CanonicalURL != "https://example.com/article" {
		t.Fatalf("unexpected canonical URL: %q", res.Metadata.CanonicalURL)
	}
	if !strings.Contains(res.Markdown, "IMAGE") {
		t.Fatalf("expected media enrichment line in markdown, got %q", res.Markdown)
	}
}

func TestCascade_FallsBackToArchiveWhenPrimaryTooShort(t *testing.T) {
	thin := `<html><body><p>short</p></body></html>`
	archiveJSON := `{"archived_snapshots":{"closest":{"available":true,"url":"https://web.archive.org/snap","status":"200"}}}`
	snapshot := `<html><body><article><p>` + longParagraph(60) + `</p></article></body></html>`

	fetcher := &fakeFetcher{responses: map[string]string{
		archiveAvailabilityBase + "?url=https%3A%2F%2Fexample.com%2Fthin": archiveJSON,
		"https://web.archive.org/snap": snapshot,
	}}

	res := GetReadableContentWithFallbacks(context.Background(), fetcher, "https://example.com/thin", thin)
	if res.Source != model.SourceArchive {
		t.Fatalf("expected archive source, got %v", res.Source)
	}
}

func TestHeuristicSmart_PicksLargestMatchedSelector(t *testing.T) {
	html := `<html><body>
		<nav>skip</nav>
		<div class="content"><p>` + longParagraph(60) + `</p></div>
	</body></html>`

	res, ok := tryHeuristicSmart("https://example.com/x", html)
	if !ok {
		t.Fatalf("expected heuristic-smart to succeed on a rich .content block")
	}
	if res.Source != model.SourceHeuristicSmart {
		t.Fatalf("expected heuristic_smart source, got %v", res.Source)
	}
	if strings.Contains(res.Markdown, "skip") {
		t.Fatalf("expected nav text excluded from selected content, got %q", res.Markdown)
	}
}

func TestCascade_ReturnsFailedSentinelWhenAllRungsFail(t *testing.T) {
	res := GetReadableContentWithFallbacks(context.Background(), nil, "https://example.com/empty", "")
	if res.Source != model.SourceFailed {
		t.Fatalf("expected failed sentinel, got %v", res.Source)
	}
}

func TestExtractMDLinks_ExcludesImageMarkers(t *testing.T) {
	md := "See [the article](https://example.com/a) and ![an image](https://example.com/img.png)"
	links := extractMDLinks(md)
	if len(links) != 1 || links[0] != "https://example.com/a" {
		t.Fatalf("expected only the plain link, got %v", links)
	}
}

func TestHarvestMarkdownImageURLs_FindsImageSyntax(t *testing.T) {
	md := "![alt](https://example.com/img.png)"
	got := harvestMarkdownImageURLs(md)
	if len(got) != 1 || got[0] != "https://example.com/img.png" {
		t.Fatalf("unexpected image URLs: %v", got)
	}
}
