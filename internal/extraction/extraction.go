// Package extraction implements the Extraction Cascade (C3): an ordered
// ladder of extractors that turns a fetched page (and, if needed, an
// Archive.org snapshot of it) into readable content, structured
// metadata, enriched media references and outbound links. The cascade
// never errors; every rung either succeeds or falls through to the
// next, ending in a "failed" sentinel.
//
// Grounded on app/core/content_extractor.py
// (get_readable_content_with_fallbacks, _smart_content_extraction,
// enrich_markdown_with_media, extract_md_links).
package extraction

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	htmlmd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"mywi/internal/model"
)

// Metadata is the structured page metadata recovered independently of
// which cascade rung produced the readable content.
type Metadata struct {
	Title        string
	Description  string
	Keywords     string
	CanonicalURL string
	PublishedAt  string // raw string; caller parses with dateutil-equivalent best-effort
	Language     string
}

// Result is the outcome of running the full cascade against a single
// fetched page.
type Result struct {
	Source       model.SourceTag
	Markdown     string
	HTML         string // readable HTML rendering, for C7's DOM-subtree walk when Source is heuristic_*
	Metadata     Metadata
	Links        []string
	ContentLength int
}

const (
	minLenPrimaryOrArchive = 100
	minLenHeuristicSmart   = 200
	minLenHeuristicBasic   = 100
)

// Fetcher retrieves a URL's body; satisfied by net/http in production
// and a fake in tests. Archive.org snapshot retrieval reuses it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (body []byte, contentType string, err error)
}

// HTTPFetcher is the production Fetcher: a plain net/http GET. No
// ecosystem HTTP client is used anywhere in the pack for unauthenticated
// GETs, so this stays stdlib.
type HTTPFetcher struct {
	Client *http.Client
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// archiveAvailabilityBase is the fixed Archive.org availability endpoint,
// the Python module's literal one; config archive.baseURL does not change it.
const archiveAvailabilityBase = "http://archive.org/wayback/available"

// GetReadableContentWithFallbacks runs the full cascade against an
// already-fetched page: primary extraction, then (if too short) an
// Archive.org snapshot re-run, then heuristic-smart DOM-subtree
// selection, then heuristic-basic tag stripping, finally the failed
// sentinel. pageURL is the original crawl URL (used to resolve relative
// media/link URLs and to query the archive).
func GetReadableContentWithFallbacks(ctx context.Context, fetcher Fetcher, pageURL, html string) Result {
	if res, ok := tryPrimary(pageURL, html); ok {
		return res
	}

	if fetcher != nil {
		if res, ok := tryArchive(ctx, fetcher, pageURL); ok {
			return res
		}
	}

	if res, ok := tryHeuristicSmart(pageURL, html); ok {
		return res
	}

	if res, ok := tryHeuristicBasic(pageURL, html); ok {
		return res
	}

	return Result{Source: model.SourceFailed}
}

func tryPrimary(pageURL, html string) (Result, bool) {
	if strings.TrimSpace(html) == "" {
		return Result{}, false
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{}, false
	}

	hostname := ""
	if u, err := url.Parse(pageURL); err == nil {
		hostname = u.Hostname()
	}
	converter := htmlmd.NewConverter(hostname, true, nil)
	markdown, mdErr := converter.ConvertString(html)
	if mdErr != nil {
		markdown = doc.Text()
	}

	readableHTML, _ := doc.Find("body").Html()
	if strings.TrimSpace(readableHTML) == "" {
		readableHTML = html
	}

	if len(strings.TrimSpace(markdown)) < minLenPrimaryOrArchive {
		return Result{}, false
	}

	markdown = enrichMarkdownWithMedia(markdown, doc, pageURL)
	meta := extractMetadata(doc, pageURL)
	links := extractMDLinks(markdown)

	return Result{
		Source:        model.SourcePrimary,
		Markdown:      markdown,
		HTML:          readableHTML,
		Metadata:      meta,
		Links:         links,
		ContentLength: len(html),
	}, true
}

type archiveAvailability struct {
	ArchivedSnapshots struct {
		Closest struct {
			Available bool   `json:"available"`
			URL       string `json:"url"`
			Status    string `json:"status"`
		} `json:"closest"`
	} `json:"archived_snapshots"`
}

func tryArchive(ctx context.Context, fetcher Fetcher, pageURL string) (Result, bool) {
	query := archiveAvailabilityBase + "?url=" + url.QueryEscape(pageURL)
	body, _, err := fetcher.Fetch(ctx, query)
	if err != nil || len(body) == 0 {
		return Result{}, false
	}

	var avail archiveAvailability
	if err := json.Unmarshal(body, &avail); err != nil {
		return Result{}, false
	}
	if !avail.ArchivedSnapshots.Closest.Available || avail.ArchivedSnapshots.Closest.URL == "" {
		return Result{}, false
	}

	snapshotBody, _, err := fetcher.Fetch(ctx, avail.ArchivedSnapshots.Closest.URL)
	if err != nil || len(snapshotBody) == 0 {
		return Result{}, false
	}

	res, ok := tryPrimary(pageURL, string(snapshotBody))
	if !ok {
		return Result{}, false
	}
	res.Source = model.SourceArchive
	return res, true
}

// heuristicSmartSelectors is the exact selector priority list from
// _smart_content_extraction; the largest matched element by text length
// wins.
var heuristicSmartSelectors = []string{
	"article", "[role=main]", "main", ".content", ".post-content",
	".entry-content", ".article-content", ".post-body", ".story-body",
	"#content", "#main-content", ".main-content", ".article-body",
}

func tryHeuristicSmart(pageURL, html string) (Result, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{}, false
	}

	var best *goquery.Selection
	bestLen := 0
	for _, sel := range heuristicSmartSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			l := len(strings.TrimSpace(s.Text()))
			if l > bestLen {
				bestLen = l
				best = s
			}
		})
	}

	if best == nil || bestLen < minLenHeuristicSmart {
		return Result{}, false
	}

	text := strings.TrimSpace(best.Text())
	readableHTML, _ := best.Html()

	hostname := ""
	if u, err := url.Parse(pageURL); err == nil {
		hostname = u.Hostname()
	}
	converter := htmlmd.NewConverter(hostname, true, nil)
	markdown, mdErr := converter.ConvertString(readableHTML)
	if mdErr != nil || strings.TrimSpace(markdown) == "" {
		markdown = text
	}

	meta := extractMetadata(doc, pageURL)
	links := extractMDLinks(markdown)

	return Result{
		Source:        model.SourceHeuristicSmart,
		Markdown:      markdown,
		HTML:          readableHTML,
		Metadata:      meta,
		Links:         links,
		ContentLength: len(html),
	}, true
}

func tryHeuristicBasic(pageURL, html string) (Result, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{}, false
	}

	doc.Find("script, style, nav, footer, aside").Remove()

	text := strings.TrimSpace(doc.Text())
	if len(text) < minLenHeuristicBasic {
		return Result{}, false
	}

	readableHTML, _ := doc.Find("body").Html()
	meta := extractMetadata(doc, pageURL)
	links := extractMDLinks(text)

	return Result{
		Source:        model.SourceHeuristicBasic,
		Markdown:      text,
		HTML:          readableHTML,
		Metadata:      meta,
		Links:         links,
		ContentLength: len(html),
	}, true
}

// extractMetadata recovers page metadata following the exact priority
// chains of get_title/get_description/get_keywords/get_canonical_url/
// get_published_date.
func extractMetadata(doc *goquery.Document, pageURL string) Metadata {
	var m Metadata

	m.Title = firstNonEmpty(
		attrOf(doc, "meta[property='og:title']", "content"),
		attrOf(doc, "meta[name='twitter:title']", "content"),
		strings.TrimSpace(doc.Find("title").First().Text()),
		pageURL,
	)

	m.Description = firstNonEmpty(
		attrOf(doc, "meta[property='og:description']", "content"),
		attrOf(doc, "meta[name='twitter:description']", "content"),
		attrOf(doc, "meta[name='description']", "content"),
	)

	m.Keywords = attrOf(doc, "meta[name='keywords']", "content")

	m.CanonicalURL = firstNonEmpty(
		attrOf(doc, "link[rel='canonical']", "href"),
		attrOf(doc, "meta[property='og:url']", "content"),
	)
	if m.CanonicalURL != "" {
		if resolved, err := resolveURL(pageURL, m.CanonicalURL); err == nil {
			m.CanonicalURL = resolved
		}
	}

	m.PublishedAt = firstNonEmpty(
		attrOf(doc, "meta[property='article:published_time']", "content"),
		attrOf(doc, "[itemprop='datePublished']", "content"),
		attrOf(doc, "meta[name='dc.date']", "content"),
		attrOf(doc, "meta[name='date']", "content"),
		attrOf(doc, "meta[name='published_time']", "content"),
	)

	m.Language, _ = doc.Find("html").First().Attr("lang")

	return m
}

func attrOf(doc *goquery.Document, selector, attr string) string {
	val, _ := doc.Find(selector).First().Attr(attr)
	return strings.TrimSpace(val)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func resolveURL(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// enrichMarkdownWithMedia appends one line per discovered image/video/
// audio element to markdown, resolved against pageURL, deduplicated by
// resolved URL. Also harvests bare markdown image syntax already present
// in the text so the same URL is never emitted twice.
func enrichMarkdownWithMedia(markdown string, doc *goquery.Document, pageURL string) string {
	seen := make(map[string]struct{})
	for _, u := range harvestMarkdownImageURLs(markdown) {
		seen[u] = struct{}{}
	}

	var lines []string

	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if u := resolveMediaURL(pageURL, s.AttrOr("src", "")); u != "" {
			if _, ok := seen[u]; !ok {
				seen[u] = struct{}{}
				lines = append(lines, "![IMAGE]("+u+")")
			}
		}
	})

	doc.Find("video[src]").Each(func(_ int, s *goquery.Selection) {
		if u := resolveMediaURL(pageURL, s.AttrOr("src", "")); u != "" {
			if _, ok := seen[u]; !ok {
				seen[u] = struct{}{}
				lines = append(lines, "[VIDEO: "+u+"]")
			}
		}
	})

	doc.Find("audio[src]").Each(func(_ int, s *goquery.Selection) {
		if u := resolveMediaURL(pageURL, s.AttrOr("src", "")); u != "" {
			if _, ok := seen[u]; !ok {
				seen[u] = struct{}{}
				lines = append(lines, "[AUDIO: "+u+"]")
			}
		}
	})

	if len(lines) == 0 {
		return markdown
	}
	return strings.TrimRight(markdown, "\n") + "\n\n" + strings.Join(lines, "\n")
}

func resolveMediaURL(pageURL, src string) string {
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	resolved, err := resolveURL(pageURL, src)
	if err != nil {
		return ""
	}
	u, err := url.Parse(resolved)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return resolved
}

var markdownImageRe = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)\)`)

func harvestMarkdownImageURLs(markdown string) []string {
	matches := markdownImageRe.FindAllStringSubmatch(markdown, -1)
	var out []string
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// markdownLinkRe matches [text](url) not preceded by "!" (image marker).
var markdownLinkRe = regexp.MustCompile(`(^|[^!])\[[^\]]*\]\(([^)\s]+)\)`)

// extractMDLinks pulls plain [text](url) link targets out of markdown,
// excluding image references.
func extractMDLinks(markdown string) []string {
	matches := markdownLinkRe.FindAllStringSubmatch(markdown, -1)
	seen := make(map[string]struct{})
	var out []string
	for _, m := range matches {
		u := m[2]
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
