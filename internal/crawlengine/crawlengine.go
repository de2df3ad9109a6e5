// Package crawlengine implements the Crawl Engine (C8): selecting a
// Land's not-yet-approved Expressions, fetching each, running them
// through the Extraction Cascade, deriving metrics/relevance/quality,
// persisting the result and its link/media graph, and broadcasting
// progress — all under a bounded worker pool.
//
// Grounded on app/core/crawler_engine.py (SyncCrawlerEngine.crawl_land,
// crawl_expressions, crawl_expression) and the teacher's
// internal/jobs/runner.go (semaphore/ticker/dispatch shape) plus
// internal/http/crawl_worker.go (per-URL bounded worker pool).
package crawlengine

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"mywi/internal/extraction"
	"mywi/internal/graph"
	"mywi/internal/media"
	"mywi/internal/metrics"
	"mywi/internal/model"
	"mywi/internal/quality"
	"mywi/internal/relevance"
)

// Store is the persistence seam the Crawl Engine reads/writes through.
type Store interface {
	GetLand(ctx context.Context, landID int64) (model.Land, error)
	SelectCrawlableExpressions(ctx context.Context, landID int64, limit int) ([]model.Expression, error)
	SaveExpressionCrawlResult(ctx context.Context, e model.Expression) error
	LandDictionaryWeights(ctx context.Context, landID int64) (map[string]float64, error)
	graph.Store
}

// ProgressPublisher is the outbound progress-broadcast seam (C10).
type ProgressPublisher interface {
	Publish(ctx context.Context, envelope model.ProgressEnvelope) error
}

// Config tunes the worker pool, HTTP client, and progress cadence.
type Config struct {
	HTTPTimeout    time.Duration
	Concurrency    int
	ProgressEveryN int
	QualityWeights quality.Weights
	DynamicMedia   media.DynamicDiscoveryConfig
	Media          media.Config
	AnalyzeMedia   bool
}

// DefaultConfig mirrors SPEC_FULL.md's §6.1 crawlEngine defaults.
var DefaultConfig = Config{
	HTTPTimeout:    20 * time.Second,
	Concurrency:    10,
	ProgressEveryN: 25,
	QualityWeights: quality.DefaultWeights,
	DynamicMedia:   media.DefaultDynamicDiscoveryConfig,
	Media:          media.DefaultConfig,
	AnalyzeMedia:   true,
}

// PageFetcher performs the per-Expression HTTP GET, mirroring
// crawl_expression's capture semantics: transport failures yield
// http_status=0; any received response (including 4xx/5xx) is captured
// with its status/content-type/body; Last-Modified/ETag are only read
// when http_status < 400.
type PageFetcher interface {
	FetchPage(ctx context.Context, rawURL string) FetchResult
}

// FetchResult is the raw outcome of fetching a single page.
type FetchResult struct {
	HTTPStatus    int
	ContentType   string
	ContentLength int
	Body          string
	LastModified  *string
	ETag          *string
}

// HTTPPageFetcher is the production PageFetcher.
type HTTPPageFetcher struct {
	Client *http.Client
}

func NewHTTPPageFetcher(timeout time.Duration) *HTTPPageFetcher {
	return &HTTPPageFetcher{Client: &http.Client{Timeout: timeout}}
}

func (f *HTTPPageFetcher) FetchPage(ctx context.Context, rawURL string) FetchResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return FetchResult{HTTPStatus: 0}
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return FetchResult{HTTPStatus: 0}
	}
	defer resp.Body.Close()

	buf := make([]byte, 0)
	chunk := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if readErr != nil {
			break
		}
	}

	result := FetchResult{
		HTTPStatus:    resp.StatusCode,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: len(buf),
		Body:          string(buf),
	}

	if resp.StatusCode < 400 {
		if lm := resp.Header.Get("Last-Modified"); lm != "" {
			result.LastModified = &lm
		}
		if etag := resp.Header.Get("ETag"); etag != "" {
			result.ETag = &etag
		}
	}

	return result
}

// Engine orchestrates a single Land's crawl pass.
type Engine struct {
	store        Store
	fetcher      PageFetcher
	cascade      func(ctx context.Context, pageURL, html string) extraction.Result
	mediaFetcher media.Fetcher
	progress     ProgressPublisher
	cfg          Config
}

func New(store Store, fetcher PageFetcher, progress ProgressPublisher, cfg Config) *Engine {
	archiveFetcher := extraction.NewHTTPFetcher(cfg.HTTPTimeout)
	return &Engine{
		store:   store,
		fetcher: fetcher,
		cascade: func(ctx context.Context, pageURL, html string) extraction.Result {
			return extraction.GetReadableContentWithFallbacks(ctx, archiveFetcher, pageURL, html)
		},
		mediaFetcher: media.NewHTTPFetcher(),
		progress:     progress,
		cfg:          cfg,
	}
}

// CrawlResult summarizes a completed Land crawl pass.
type CrawlResult struct {
	Processed int
	Succeeded int
	Failed    int
}

// CrawlLand selects up to limit not-yet-approved Expressions for land
// and processes them through a bounded worker pool, persisting each
// result and publishing progress every ProgressEveryN completions.
// Mirrors SyncCrawlerEngine.crawl_land's prepare/select/process/return
// shape.
func (e *Engine) CrawlLand(ctx context.Context, jobID string, landID int64, limit int) (CrawlResult, error) {
	land, err := e.store.GetLand(ctx, landID)
	if err != nil {
		return CrawlResult{}, err
	}

	if err := e.prepare(ctx, land); err != nil {
		return CrawlResult{}, err
	}

	expressions, err := e.store.SelectCrawlableExpressions(ctx, landID, limit)
	if err != nil {
		return CrawlResult{}, err
	}

	dictionary, err := e.store.LandDictionaryWeights(ctx, landID)
	if err != nil {
		return CrawlResult{}, err
	}

	concurrency := e.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConfig.Concurrency
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	result := CrawlResult{}
	completed := 0

	for _, expr := range expressions {
		if ctx.Err() != nil {
			break
		}
		expr := expr
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			ok := e.crawlExpression(ctx, land, dictionary, &expr)

			mu.Lock()
			result.Processed++
			if ok {
				result.Succeeded++
			} else {
				result.Failed++
			}
			completed++
			current := completed
			total := len(expressions)
			everyN := e.cfg.ProgressEveryN
			if everyN <= 0 {
				everyN = DefaultConfig.ProgressEveryN
			}
			shouldPublish := current%everyN == 0 || current == total
			mu.Unlock()

			if shouldPublish && e.progress != nil {
				_ = e.progress.Publish(ctx, model.ProgressEnvelope{
					JobID:      jobID,
					LandID:     landID,
					Current:    current,
					Total:      total,
					Percentage: percentage(current, total),
					Completed:  current == total,
				})
			}
		}()
	}

	wg.Wait()
	return result, nil
}

// prepare materializes each of land's start URLs as a depth-0 Expression
// the first time the Land is crawled, per crawl_land's prepare step: "if
// the Land has start_urls and no existing crawlable Expression, create
// one per start URL". Once any crawlable Expression exists, it is a
// no-op — later passes discover further Expressions only via the link
// graph.
func (e *Engine) prepare(ctx context.Context, land model.Land) error {
	if len(land.StartURLs) == 0 {
		return nil
	}

	existing, err := e.store.SelectCrawlableExpressions(ctx, land.ID, 1)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	for _, raw := range land.StartURLs {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || u.Hostname() == "" {
			continue
		}
		domain, err := e.store.GetOrCreateDomain(ctx, land.ID, u.Hostname())
		if err != nil {
			return err
		}
		if _, err := e.store.GetOrCreateExpression(ctx, land.ID, domain.ID, raw, 0); err != nil {
			return err
		}
	}
	return nil
}

func percentage(current, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(current) / float64(total) * 100
}

// crawlExpression fetches, extracts, scores, and persists a single
// Expression. Mirrors crawl_expression: it never propagates fetch or
// extraction errors upward, instead recording http_status=0 and an
// empty readable content on failure.
func (e *Engine) crawlExpression(ctx context.Context, land model.Land, dictionary map[string]float64, expr *model.Expression) bool {
	fetch := e.fetcher.FetchPage(ctx, expr.URL)

	now := time.Now().UTC()
	expr.CrawledAt = &now
	expr.HTTPStatus = &fetch.HTTPStatus
	if fetch.ContentType != "" {
		expr.ContentType = &fetch.ContentType
	}
	if fetch.ContentLength > 0 {
		expr.ContentLength = &fetch.ContentLength
	}
	expr.LastModified = parseHTTPDate(fetch.LastModified)
	expr.ETag = fetch.ETag
	metrics.RecordCrawlHTTPStatus(fetch.HTTPStatus)

	if fetch.HTTPStatus == 0 || fetch.HTTPStatus >= 400 {
		_ = e.store.SaveExpressionCrawlResult(ctx, *expr)
		metrics.RecordCrawlExpressionProcessed(land.ID, true)
		return false
	}

	res := e.cascade(ctx, expr.URL, fetch.Body)
	metrics.RecordExtractionSource(string(res.Source))

	if res.Source != model.SourceFailed {
		markdown := res.Markdown
		expr.Readable = &markdown
		readableAt := now
		expr.ReadableAt = &readableAt
		expr.Content = &fetch.Body

		if res.Metadata.Title != "" {
			expr.Title = &res.Metadata.Title
		}
		if res.Metadata.Description != "" {
			expr.Description = &res.Metadata.Description
		}
		if res.Metadata.Keywords != "" {
			expr.Keywords = &res.Metadata.Keywords
		}
		if res.Metadata.CanonicalURL != "" {
			expr.CanonicalURL = &res.Metadata.CanonicalURL
		}

		wordCount := len(strings.Fields(markdown))
		expr.WordCount = &wordCount
		readingTime := wordCount / 200
		if readingTime < 1 {
			readingTime = 1
		}
		expr.ReadingTime = &readingTime

		lang := res.Metadata.Language
		if lang == "" {
			lang = "fr"
			if len(land.Lang) > 0 {
				lang = land.Lang[0]
			}
		}
		expr.Language = &lang

		if publishedAt := parseBestEffortDate(res.Metadata.PublishedAt); publishedAt != nil {
			expr.PublishedAt = publishedAt
		}

		title := ""
		if expr.Title != nil {
			title = *expr.Title
		}
		score := relevance.Score(dictionary, relevance.Expression{Title: title, Readable: markdown}, lang)
		expr.Relevance = &score

		scorable := expr.ScorableView()
		qres := quality.Compute(scorable, model.ScorableLand{Lang: land.Lang}, e.cfg.QualityWeights)
		expr.QualityScore = &qres.Score
		metrics.RecordQualityScore(qres.Score)

		links, mediaRefs := graph.BuildRefs(res, expr.URL)
		if dynURLs, derr := media.DiscoverDynamicMediaURLs(ctx, expr.URL, e.cfg.DynamicMedia); derr == nil {
			mediaRefs = mergeDynamicMedia(mediaRefs, dynURLs, expr.URL)
		}
		if e.cfg.AnalyzeMedia {
			for i := range mediaRefs {
				mediaRefs[i].Analysis = media.Analyze(ctx, e.mediaFetcher, mediaRefs[i].URL, e.cfg.Media)
			}
		}
		_ = graph.Persist(ctx, e.store, land.ID, *expr, links, mediaRefs)
	}

	succeeded := res.Source != model.SourceFailed
	metrics.RecordCrawlExpressionProcessed(land.ID, !succeeded)

	if err := e.store.SaveExpressionCrawlResult(ctx, *expr); err != nil {
		return false
	}
	return succeeded
}

// mergeDynamicMedia folds headless-browser-discovered media URLs into
// the markdown-derived set, resolving relative URLs against pageURL and
// deduplicating against what the static cascade already found.
func mergeDynamicMedia(existing []graph.MediaRef, dynURLs []string, pageURL string) []graph.MediaRef {
	if len(dynURLs) == 0 {
		return existing
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return existing
	}

	seen := make(map[string]struct{}, len(existing))
	for _, m := range existing {
		seen[m.URL] = struct{}{}
	}

	for _, raw := range dynURLs {
		resolved := raw
		if u, err := url.Parse(strings.TrimSpace(raw)); err == nil && !u.IsAbs() {
			resolved = base.ResolveReference(u).String()
		}
		cleaned := graph.CleanMediaURL(resolved)
		if cleaned == "" {
			continue
		}
		if _, dup := seen[cleaned]; dup {
			continue
		}
		seen[cleaned] = struct{}{}
		existing = append(existing, graph.MediaRef{URL: cleaned, Type: graph.DetermineMediaType(cleaned)})
	}
	return existing
}

func parseHTTPDate(raw *string) *time.Time {
	if raw == nil {
		return nil
	}
	t, err := http.ParseTime(*raw)
	if err != nil {
		return nil
	}
	return &t
}

// parseBestEffortDate tries a handful of common published-date layouts;
// on failure it returns nil rather than propagating an error, mirroring
// crawl_expression's dateutil try/except.
func parseBestEffortDate(raw string) *time.Time {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
		"2006-01-02 15:04:05",
		time.RFC1123,
		time.RFC1123Z,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
