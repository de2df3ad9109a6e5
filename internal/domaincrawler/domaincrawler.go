// Package domaincrawler implements the Domain Crawler (C9): a
// standalone domain-enrichment fetch with a three-rung fallback
// ladder — Trafilatura-equivalent (HTTPS then HTTP), Archive.org, then
// a direct HTTP fetch that tolerates invalid TLS certificates on that
// rung only.
//
// Grounded on app/core/domain_crawler.py (DomainCrawler.fetch_domain,
// _try_trafilatura, _try_archive_org, _try_http_direct).
package domaincrawler

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const archiveAvailabilityBase = "https://archive.org/wayback/available?url="

// SourceMethod identifies which rung produced a successful fetch.
type SourceMethod string

const (
	SourceTrafilatura SourceMethod = "trafilatura"
	SourceArchiveOrg  SourceMethod = "archive_org"
	SourceHTTPDirect  SourceMethod = "http_direct"
	SourceError       SourceMethod = "error"
)

// FetchResult mirrors DomainFetchResult's field set.
type FetchResult struct {
	DomainName      string
	HTTPStatus      int
	Title           string
	Description     string
	Keywords        string
	Language        string
	Content         string
	SourceMethod    SourceMethod
	FetchedAt       time.Time
	ErrorCode       string
	ErrorMessage    string
	FetchDurationMS int
	RetryCount      int
}

// Config tunes the domain crawler's HTTP behavior.
type Config struct {
	Timeout   time.Duration
	UserAgent string
}

// DefaultConfig mirrors settings.DOMAIN_CRAWL_TIMEOUT/DOMAIN_CRAWL_USER_AGENT.
var DefaultConfig = Config{
	Timeout:   30 * time.Second,
	UserAgent: "MyWebIntelligence/2.0 (+https://mywebintelligence.com)",
}

// Crawler fetches and enriches a bare domain name through the
// three-rung fallback ladder.
type Crawler struct {
	cfg          Config
	client       *http.Client // standard client, used for trafilatura-equivalent and archive rungs
	insecureOnce *http.Client // verify=false client, used only on the http-direct rung
}

func New(cfg Config) *Crawler {
	transport := &http.Transport{}
	insecureTransport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // matches verify=False on _try_http_direct only
	}
	return &Crawler{
		cfg:          cfg,
		client:       &http.Client{Timeout: cfg.Timeout, Transport: transport},
		insecureOnce: &http.Client{Timeout: cfg.Timeout, Transport: insecureTransport},
	}
}

// FetchDomain runs the full fallback ladder for domainName, returning
// on the first rung that yields HTTP 200.
func (c *Crawler) FetchDomain(ctx context.Context, domainName string) FetchResult {
	start := time.Now()
	retries := 0

	result := c.tryTrafilatura(ctx, domainName)
	if result.HTTPStatus == 200 {
		result.FetchDurationMS = int(time.Since(start).Milliseconds())
		result.RetryCount = retries
		return result
	}
	retries++

	result = c.tryArchiveOrg(ctx, domainName)
	if result.HTTPStatus == 200 {
		result.FetchDurationMS = int(time.Since(start).Milliseconds())
		result.RetryCount = retries
		return result
	}
	retries++

	result = c.tryHTTPDirect(ctx, domainName)
	result.FetchDurationMS = int(time.Since(start).Milliseconds())
	result.RetryCount = retries
	return result
}

func (c *Crawler) request(ctx context.Context, client *http.Client, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	return client.Do(req)
}

// tryTrafilatura fetches domainName over HTTPS, falling back to plain
// HTTP when the HTTPS request fails, then recovers
// title/description/keywords/language from the DOM. A response other
// than 200 fails the rung with that status.
func (c *Crawler) tryTrafilatura(ctx context.Context, domainName string) FetchResult {
	var resp *http.Response
	var err error
	for _, protocol := range []string{"https", "http"} {
		if resp, err = c.request(ctx, c.client, protocol+"://"+domainName); err == nil {
			break
		}
	}
	if err != nil {
		return FetchResult{
			DomainName: domainName, HTTPStatus: 0, SourceMethod: SourceError,
			FetchedAt: time.Now(), ErrorCode: "ERR_TRAFI_DOWNLOAD", ErrorMessage: err.Error(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return FetchResult{
			DomainName: domainName, HTTPStatus: resp.StatusCode, SourceMethod: SourceError,
			FetchedAt: time.Now(), ErrorCode: "ERR_TRAFI_DOWNLOAD", ErrorMessage: "HTTP " + resp.Status,
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return FetchResult{
			DomainName: domainName, HTTPStatus: 0, SourceMethod: SourceError,
			FetchedAt: time.Now(), ErrorCode: "ERR_TRAFI", ErrorMessage: err.Error(),
		}
	}

	return FetchResult{
		DomainName:   domainName,
		HTTPStatus:   200,
		Title:        pageTitle(doc),
		Description:  metaContent(doc, "description"),
		Keywords:     metaContent(doc, "keywords"),
		Language:     htmlLang(doc),
		Content:      bodyText(doc),
		SourceMethod: SourceTrafilatura,
		FetchedAt:    time.Now(),
	}
}

// tryArchiveOrg looks up the closest Wayback Machine snapshot of
// domainName and extracts metadata/content from it.
func (c *Crawler) tryArchiveOrg(ctx context.Context, domainName string) FetchResult {
	availabilityURL := archiveAvailabilityBase + domainName
	resp, err := c.request(ctx, c.client, availabilityURL)
	if err != nil {
		return FetchResult{
			DomainName: domainName, HTTPStatus: 0, SourceMethod: SourceError,
			FetchedAt: time.Now(), ErrorCode: "ERR_ARCHIVE_HTTP", ErrorMessage: err.Error(),
		}
	}
	defer resp.Body.Close()

	var availability struct {
		ArchivedSnapshots struct {
			Closest struct {
				URL string `json:"url"`
			} `json:"closest"`
		} `json:"archived_snapshots"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&availability); err != nil {
		return FetchResult{
			DomainName: domainName, HTTPStatus: 0, SourceMethod: SourceError,
			FetchedAt: time.Now(), ErrorCode: "ERR_ARCHIVE", ErrorMessage: err.Error(),
		}
	}

	snapshotURL := availability.ArchivedSnapshots.Closest.URL
	if snapshotURL == "" {
		return FetchResult{
			DomainName: domainName, HTTPStatus: 404, SourceMethod: SourceError,
			FetchedAt: time.Now(), ErrorCode: "ERR_ARCHIVE_NOTFOUND",
			ErrorMessage: "No archive.org snapshot available",
		}
	}

	snapshotResp, err := c.request(ctx, c.client, snapshotURL)
	if err != nil {
		return FetchResult{
			DomainName: domainName, HTTPStatus: 0, SourceMethod: SourceError,
			FetchedAt: time.Now(), ErrorCode: "ERR_ARCHIVE_HTTP", ErrorMessage: err.Error(),
		}
	}
	defer snapshotResp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(snapshotResp.Body)
	if err != nil {
		return FetchResult{
			DomainName: domainName, HTTPStatus: 0, SourceMethod: SourceError,
			FetchedAt: time.Now(), ErrorCode: "ERR_ARCHIVE", ErrorMessage: err.Error(),
		}
	}

	return FetchResult{
		DomainName:   domainName,
		HTTPStatus:   200,
		Title:        pageTitle(doc),
		Description:  metaContent(doc, "description"),
		Keywords:     metaContent(doc, "keywords"),
		Language:     htmlLang(doc),
		Content:      truncate(bodyText(doc), 5000),
		SourceMethod: SourceArchiveOrg,
		FetchedAt:    time.Now(),
	}
}

// tryHTTPDirect is the last-resort rung: it tries HTTPS then HTTP,
// accepting invalid TLS certificates on both attempts (verify=False
// equivalent), a tolerance unique to this rung.
func (c *Crawler) tryHTTPDirect(ctx context.Context, domainName string) FetchResult {
	var last FetchResult
	for _, protocol := range []string{"https", "http"} {
		url := protocol + "://" + domainName
		resp, err := c.request(ctx, c.insecureOnce, url)
		if err != nil {
			last = classifyHTTPDirectError(domainName, protocol, err)
			if protocol == "http" {
				return last
			}
			continue
		}

		if resp.StatusCode != 200 {
			status := resp.StatusCode
			reason := resp.Status
			resp.Body.Close()
			if protocol == "http" {
				return FetchResult{
					DomainName: domainName, HTTPStatus: status, SourceMethod: SourceError,
					FetchedAt: time.Now(), ErrorCode: fmt.Sprintf("ERR_HTTP_%d", status),
					ErrorMessage: fmt.Sprintf("HTTP %d - %s", status, reason),
				}
			}
			continue
		}

		doc, err := goquery.NewDocumentFromReader(resp.Body)
		resp.Body.Close()
		if err != nil {
			if protocol == "http" {
				return FetchResult{
					DomainName: domainName, HTTPStatus: 0, SourceMethod: SourceError,
					FetchedAt: time.Now(), ErrorCode: "ERR_HTTP_UNKNOWN", ErrorMessage: err.Error(),
				}
			}
			continue
		}

		description := metaContent(doc, "description")
		if description == "" {
			description = metaProperty(doc, "og:description")
		}

		return FetchResult{
			DomainName:   domainName,
			HTTPStatus:   200,
			Title:        pageTitle(doc),
			Description:  description,
			Keywords:     metaContent(doc, "keywords"),
			Language:     htmlLang(doc),
			Content:      truncate(bodyText(doc), 5000),
			SourceMethod: SourceHTTPDirect,
			FetchedAt:    time.Now(),
		}
	}

	return FetchResult{
		DomainName: domainName, HTTPStatus: 0, SourceMethod: SourceError,
		FetchedAt: time.Now(), ErrorCode: "ERR_HTTP_ALL", ErrorMessage: "All HTTP attempts failed",
	}
}

func classifyHTTPDirectError(domainName, protocol string, err error) FetchResult {
	base := FetchResult{DomainName: domainName, HTTPStatus: 0, SourceMethod: SourceError, FetchedAt: time.Now()}

	var tlsErr *tls.CertificateVerificationError
	var netErr net.Error
	switch {
	case errors.As(err, &tlsErr):
		base.ErrorCode = "ERR_SSL"
	case errors.As(err, &netErr) && netErr.Timeout():
		base.ErrorCode = "ERR_TIMEOUT"
	case strings.Contains(err.Error(), "connection refused"), strings.Contains(err.Error(), "no such host"):
		base.ErrorCode = "ERR_CONNECTION"
	default:
		base.ErrorCode = "ERR_HTTP_UNKNOWN"
	}
	base.ErrorMessage = err.Error()
	return base
}

func pageTitle(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func metaContent(doc *goquery.Document, name string) string {
	val, _ := doc.Find(fmt.Sprintf(`meta[name="%s"]`, name)).Attr("content")
	return strings.TrimSpace(val)
}

func metaProperty(doc *goquery.Document, property string) string {
	val, _ := doc.Find(fmt.Sprintf(`meta[property="%s"]`, property)).Attr("content")
	return strings.TrimSpace(val)
}

func htmlLang(doc *goquery.Document) string {
	val, _ := doc.Find("html").Attr("lang")
	return strings.TrimSpace(val)
}

func bodyText(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("body").Text())
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
