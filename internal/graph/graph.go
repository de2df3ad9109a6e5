// Package graph implements the Link/Media Graph Builder (C7): turning a
// cascade Result into classified, deduplicated outbound links and media
// references, then upserting the Domain/Expression/ExpressionLink/Media
// rows those references imply.
//
// Grounded on app/services/media_link_extractor.py (_clean_media_url,
// _determine_media_type, _determine_link_type,
// extract_media_from_markdown, extract_links_from_markdown) and
// app/core/crawler_engine.py (_extract_and_save_links,
// _extract_and_save_media, _get_or_create_domain,
// _get_or_create_expression).
package graph

import (
	"context"
	"crypto/sha256"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mywi/internal/extraction"
	"mywi/internal/model"
)

// LinkRef is a classified, deduplicated outbound link discovered on a
// page.
type LinkRef struct {
	URL        string
	AnchorText string
	Rel        string
	Type       model.LinkType
}

// MediaRef is a classified, deduplicated media asset discovered on a
// page. Analysis is populated by the caller (the Media Analyzer, C4)
// before Persist is called; a zero value persists as unanalyzed.
type MediaRef struct {
	URL      string
	Type     model.MediaType
	AltText  string
	Analysis model.MediaAnalysis
}

// trackingParams is the exact query-parameter strip list from
// _clean_media_url.
var trackingParams = map[string]struct{}{
	"utm_source": {}, "utm_medium": {}, "utm_campaign": {},
	"utm_content": {}, "utm_term": {}, "fbclid": {}, "gclid": {},
	"ref": {}, "source": {}, "campaign": {},
}

// CleanMediaURL strips tracking query parameters and the fragment, then
// unwraps WordPress image-proxy URLs (i0/i1/i2.wp.com) back to their
// embedded original, per _clean_media_url. The original is read from a
// `url` query parameter when one is present, otherwise from the proxy
// path (its first segment is the original host); its `ssl` query
// parameter is dropped. i2.wp.com is a supplement:
// the original only recognized i0/i1, but the spec's prose names all
// three, so it is handled here too.
func CleanMediaURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}

	q := u.Query()
	for param := range trackingParams {
		q.Del(param)
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""
	cleaned := u.String()

	host := strings.ToLower(u.Hostname())
	if host == "i0.wp.com" || host == "i1.wp.com" || host == "i2.wp.com" {
		original := ""
		if wrapped := q.Get("url"); wrapped != "" {
			if decoded, err := url.QueryUnescape(wrapped); err == nil {
				original = decoded
			}
		} else if parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2); len(parts) == 2 && parts[0] != "" {
			original = (&url.URL{Scheme: "https", Host: parts[0], Path: "/" + parts[1], RawQuery: u.RawQuery}).String()
		}
		if ou, err := url.Parse(original); err == nil && original != "" {
			oq := ou.Query()
			oq.Del("ssl")
			ou.RawQuery = oq.Encode()
			return ou.String()
		}
	}

	return cleaned
}

// canonicalizeLinkURL strips the same tracking query parameters
// (utm_source/utm_medium/utm_campaign/utm_content/utm_term/fbclid/gclid/
// ref/source/campaign) and fragment from a discovered outbound link, per
// _extract_and_save_links' clean_url construction — so a discovered link
// becomes the same Expression URL/dedup key regardless of the tracking
// parameters it was reached with. Shares its strip list and WP-proxy
// unwrap with CleanMediaURL since both derive from the same
// _clean_media_url-shaped helper in the original.
func canonicalizeLinkURL(rawURL string) string {
	return CleanMediaURL(rawURL)
}

var (
	imageExts = map[string]struct{}{
		".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".bmp": {},
		".webp": {}, ".svg": {}, ".ico": {},
	}
	videoExts = map[string]struct{}{
		".mp4": {}, ".avi": {}, ".mov": {}, ".wmv": {}, ".flv": {},
		".webm": {}, ".mkv": {},
	}
	audioExts = map[string]struct{}{
		".mp3": {}, ".wav": {}, ".ogg": {}, ".flac": {}, ".aac": {}, ".m4a": {},
	}
)

// DetermineMediaType classifies a media URL by file extension; defaults
// to image when the extension is unrecognized, per _determine_media_type.
func DetermineMediaType(rawURL string) model.MediaType {
	ext := strings.ToLower(extensionOf(rawURL))
	if _, ok := videoExts[ext]; ok {
		return model.MediaVideo
	}
	if _, ok := audioExts[ext]; ok {
		return model.MediaAudio
	}
	return model.MediaImage
}

func extensionOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	path := rawURL
	if err == nil {
		path = u.Path
	}
	if i := strings.LastIndex(path, "."); i != -1 {
		return path[i:]
	}
	return ""
}

// DetermineLinkType classifies a link as internal when its netloc
// matches baseDomain, external otherwise, per _determine_link_type.
func DetermineLinkType(rawURL, baseDomain string) model.LinkType {
	u, err := url.Parse(rawURL)
	if err != nil {
		return model.LinkExternal
	}
	if strings.EqualFold(u.Hostname(), baseDomain) {
		return model.LinkInternal
	}
	return model.LinkExternal
}

var (
	mdMediaImageRe = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)\)`)
	mdMediaVideoRe = regexp.MustCompile(`\[VIDEO:\s*([^\]]+)\]`)
	mdMediaAudioRe = regexp.MustCompile(`\[AUDIO:\s*([^\]]+)\]`)
	mdLinkRe       = regexp.MustCompile(`(^|[^!])\[([^\]]*)\]\(([^)\s]+)\)`)
)

// extractMediaFromMarkdown recovers media references from the enriched
// markdown text (primary/archive rungs), per extract_media_from_markdown.
func extractMediaFromMarkdown(markdown, baseURL string) []MediaRef {
	var out []MediaRef
	seen := make(map[string]struct{})

	for _, m := range mdMediaImageRe.FindAllStringSubmatch(markdown, -1) {
		addMediaRef(&out, seen, baseURL, m[2], m[1], model.MediaImage)
	}
	for _, m := range mdMediaVideoRe.FindAllStringSubmatch(markdown, -1) {
		addMediaRef(&out, seen, baseURL, strings.TrimSpace(m[1]), "", model.MediaVideo)
	}
	for _, m := range mdMediaAudioRe.FindAllStringSubmatch(markdown, -1) {
		addMediaRef(&out, seen, baseURL, strings.TrimSpace(m[1]), "", model.MediaAudio)
	}

	return out
}

func addMediaRef(out *[]MediaRef, seen map[string]struct{}, baseURL, rawURL, alt string, forced model.MediaType) {
	resolved := resolveAgainst(baseURL, rawURL)
	if resolved == "" {
		return
	}
	cleaned := CleanMediaURL(resolved)
	if _, ok := seen[cleaned]; ok {
		return
	}
	seen[cleaned] = struct{}{}
	mediaType := forced
	if forced == model.MediaImage {
		mediaType = DetermineMediaType(cleaned)
	}
	*out = append(*out, MediaRef{URL: cleaned, Type: mediaType, AltText: alt})
}

// extractLinksFromMarkdown recovers outbound link targets from markdown
// text (excluding image syntax), per extract_links_from_markdown.
func extractLinksFromMarkdown(markdown, baseURL, baseDomain string) []LinkRef {
	var out []LinkRef
	seen := make(map[string]struct{})

	for _, m := range mdLinkRe.FindAllStringSubmatch(markdown, -1) {
		text := m[2]
		rawURL := m[3]
		resolved := resolveAgainst(baseURL, rawURL)
		if resolved == "" {
			continue
		}
		cleaned := canonicalizeLinkURL(resolved)
		if _, ok := seen[cleaned]; ok {
			continue
		}
		seen[cleaned] = struct{}{}
		out = append(out, LinkRef{
			URL:        cleaned,
			AnchorText: strings.TrimSpace(text),
			Type:       DetermineLinkType(cleaned, baseDomain),
		})
	}

	return out
}

// domWalkMedia recovers media references by walking the DOM subtree
// selected by a heuristic rung, used when the enriching markdown may not
// faithfully preserve every media element.
func domWalkMedia(doc *goquery.Document, baseURL string) []MediaRef {
	var out []MediaRef
	seen := make(map[string]struct{})

	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		addMediaRef(&out, seen, baseURL, s.AttrOr("src", ""), s.AttrOr("alt", ""), model.MediaImage)
	})
	doc.Find("video[src]").Each(func(_ int, s *goquery.Selection) {
		addMediaRef(&out, seen, baseURL, s.AttrOr("src", ""), "", model.MediaVideo)
	})
	doc.Find("audio[src]").Each(func(_ int, s *goquery.Selection) {
		addMediaRef(&out, seen, baseURL, s.AttrOr("src", ""), "", model.MediaAudio)
	})

	return out
}

// domWalkLinks recovers outbound links by walking <a href> elements in a
// heuristic rung's selected DOM subtree.
func domWalkLinks(doc *goquery.Document, baseURL, baseDomain string) []LinkRef {
	var out []LinkRef
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		resolved := resolveAgainst(baseURL, href)
		if resolved == "" {
			return
		}
		cleaned := canonicalizeLinkURL(resolved)
		if _, ok := seen[cleaned]; ok {
			return
		}
		seen[cleaned] = struct{}{}
		rel := s.AttrOr("rel", "")
		out = append(out, LinkRef{
			URL:        cleaned,
			AnchorText: strings.TrimSpace(s.Text()),
			Rel:        rel,
			Type:       DetermineLinkType(cleaned, baseDomain),
		})
	})

	return out
}

func resolveAgainst(baseURL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(refURL)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

// BuildRefs derives a source-tag-conditional LinkRef/MediaRef set from a
// cascade Result: markdown-regex for primary/archive rungs (whose
// markdown is the richer artifact), DOM-subtree walk for heuristic rungs
// (whose markdown may be a lossy plain-text rendering).
func BuildRefs(res extraction.Result, pageURL string) (links []LinkRef, media []MediaRef) {
	baseDomain := ""
	if u, err := url.Parse(pageURL); err == nil {
		baseDomain = u.Hostname()
	}

	switch res.Source {
	case model.SourcePrimary, model.SourceArchive:
		links = extractLinksFromMarkdown(res.Markdown, pageURL, baseDomain)
		media = extractMediaFromMarkdown(res.Markdown, pageURL)
	case model.SourceHeuristicSmart, model.SourceHeuristicBasic:
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
		if err != nil {
			return nil, nil
		}
		links = domWalkLinks(doc, pageURL, baseDomain)
		media = domWalkMedia(doc, pageURL)
	}

	// Self-edge refusal: a page never links to itself.
	cleanedPageURL := canonicalizeLinkURL(pageURL)
	filtered := links[:0]
	for _, l := range links {
		if !sameURL(l.URL, cleanedPageURL) {
			filtered = append(filtered, l)
		}
	}
	links = filtered

	sort.Slice(links, func(i, j int) bool { return links[i].URL < links[j].URL })
	sort.Slice(media, func(i, j int) bool { return media[i].URL < media[j].URL })

	return links, media
}

func sameURL(a, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return strings.EqualFold(ua.Hostname(), ub.Hostname()) && ua.Path == ub.Path
}

// Store is the persistence seam C7 upserts through: Domain/Expression
// creation and ExpressionLink/Media row insertion, grounded on
// _get_or_create_domain/_get_or_create_expression/_extract_and_save_links
// /_extract_and_save_media.
type Store interface {
	GetOrCreateDomain(ctx context.Context, landID int64, name string) (model.Domain, error)
	GetOrCreateExpression(ctx context.Context, landID, domainID int64, rawURL string, depth int) (model.Expression, error)
	HasLink(ctx context.Context, sourceID, targetID int64) (bool, error)
	InsertLink(ctx context.Context, link model.ExpressionLink) error
	HasMedia(ctx context.Context, expressionID int64, urlHash []byte) (bool, error)
	InsertMedia(ctx context.Context, media model.Media) error
}

// Persist upserts the Domain/Expression graph implied by links and
// media discovered on source (an already-persisted Expression), skipping
// rows that already exist (dedup by (source,target) and
// (expression,url)). Discovered links are created one level deeper than
// source, per _extract_and_save_links' depth = (expr.depth or 0) + 1.
func Persist(ctx context.Context, store Store, landID int64, source model.Expression, links []LinkRef, media []MediaRef) error {
	targetDepth := source.Depth + 1
	for _, l := range links {
		u, err := url.Parse(l.URL)
		if err != nil {
			continue
		}
		domain, err := store.GetOrCreateDomain(ctx, landID, u.Hostname())
		if err != nil {
			return err
		}
		target, err := store.GetOrCreateExpression(ctx, landID, domain.ID, l.URL, targetDepth)
		if err != nil {
			return err
		}
		if target.ID == source.ID {
			continue
		}
		exists, err := store.HasLink(ctx, source.ID, target.ID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		anchor := l.AnchorText
		rel := l.Rel
		if err := store.InsertLink(ctx, model.ExpressionLink{
			SourceID:   source.ID,
			TargetID:   target.ID,
			AnchorText: &anchor,
			RelAttr:    &rel,
			LinkType:   l.Type,
		}); err != nil {
			return err
		}
	}

	for _, m := range media {
		hash := urlHash(m.URL)
		exists, err := store.HasMedia(ctx, source.ID, hash)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		alt := m.AltText
		if err := store.InsertMedia(ctx, model.Media{
			ExpressionID: source.ID,
			URL:          m.URL,
			URLHash:      hash,
			Type:         m.Type,
			AltText:      &alt,
			Analysis:     m.Analysis,
		}); err != nil {
			return err
		}
	}

	return nil
}

func urlHash(rawURL string) []byte {
	sum := sha256.Sum256([]byte(rawURL))
	return sum[:]
}
