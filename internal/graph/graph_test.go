package graph

import (
	"context"
	"testing"

	"mywi/internal/extraction"
	"mywi/internal/model"
)

func TestCleanMediaURL_StripsTrackingParamsAndFragment(t *testing.T) {
	got := CleanMediaURL("https://example.com/img.jpg?utm_source=x&keep=1#frag")
	if got != "https://example.com/img.jpg?keep=1" {
		t.Fatalf("unexpected cleaned URL: %q", got)
	}
}

func TestCleanMediaURL_UnwrapsWordPressProxy(t *testing.T) {
	wrapped := "https://i0.wp.com/example.com/real.jpg?url=https%3A%2F%2Fexample.com%2Freal.jpg%3Fssl%3D1"
	got := CleanMediaURL(wrapped)
	if got != "https://example.com/real.jpg" {
		t.Fatalf("expected unwrapped original URL, got %q", got)
	}
}

func TestCleanMediaURL_UnwrapsI2Supplement(t *testing.T) {
	wrapped := "https://i2.wp.com/example.com/real.jpg?url=https%3A%2F%2Fexample.com%2Freal.jpg"
	got := CleanMediaURL(wrapped)
	if got != "https://example.com/real.jpg" {
		t.Fatalf("expected i2.wp.com unwrap, got %q", got)
	}
}

func TestDetermineMediaType_ClassifiesByExtension(t *testing.T) {
	cases := map[string]model.MediaType{
		"https://x.com/a.jpg":  model.MediaImage,
		"https://x.com/a.mp4":  model.MediaVideo,
		"https://x.com/a.mp3":  model.MediaAudio,
		"https://x.com/a.xyz":  model.MediaImage,
	}
	for url, want := range cases {
		if got := DetermineMediaType(url); got != want {
			t.Fatalf("%s: expected %v, got %v", url, want, got)
		}
	}
}

func TestDetermineLinkType_InternalVsExternal(t *testing.T) {
	if got := DetermineLinkType("https://example.com/a", "example.com"); got != model.LinkInternal {
		t.Fatalf("expected internal, got %v", got)
	}
	if got := DetermineLinkType("https://other.com/a", "example.com"); got != model.LinkExternal {
		t.Fatalf("expected external, got %v", got)
	}
}

func TestBuildRefs_MarkdownRouteExcludesSelfLink(t *testing.T) {
	res := extraction.Result{
		Source:   model.SourcePrimary,
		Markdown: "See [self](https://example.com/page) and [other](https://example.com/other).\n\n![img](https://example.com/pic.jpg)",
	}
	links, media := BuildRefs(res, "https://example.com/page")

	if len(links) != 1 || links[0].URL != "https://example.com/other" {
		t.Fatalf("expected only the non-self link, got %v", links)
	}
	if len(media) != 1 || media[0].URL != "https://example.com/pic.jpg" {
		t.Fatalf("expected one media ref, got %v", media)
	}
}

func TestBuildRefs_DOMRouteForHeuristicSource(t *testing.T) {
	res := extraction.Result{
		Source: model.SourceHeuristicSmart,
		HTML:   `<div><a href="/other">Other</a><img src="/img/one.jpg"></div>`,
	}
	links, media := BuildRefs(res, "https://example.com/page")

	if len(links) != 1 || links[0].URL != "https://example.com/other" {
		t.Fatalf("expected resolved relative link, got %v", links)
	}
	if len(media) != 1 || media[0].URL != "https://example.com/img/one.jpg" {
		t.Fatalf("expected resolved relative media, got %v", media)
	}
}

type fakeGraphStore struct {
	domains     map[string]model.Domain
	expressions map[string]model.Expression
	links       map[[2]int64]bool
	media       map[int64]map[string]bool
	nextDomain  int64
	nextExpr    int64
}

func newFakeGraphStore() *fakeGraphStore {
	return &fakeGraphStore{
		domains:     make(map[string]model.Domain),
		expressions: make(map[string]model.Expression),
		links:       make(map[[2]int64]bool),
		media:       make(map[int64]map[string]bool),
	}
}

func (f *fakeGraphStore) GetOrCreateDomain(ctx context.Context, landID int64, name string) (model.Domain, error) {
	if d, ok := f.domains[name]; ok {
		return d, nil
	}
	f.nextDomain++
	d := model.Domain{ID: f.nextDomain, LandID: landID, Name: name}
	f.domains[name] = d
	return d, nil
}

func (f *fakeGraphStore) GetOrCreateExpression(ctx context.Context, landID, domainID int64, rawURL string, depth int) (model.Expression, error) {
	if e, ok := f.expressions[rawURL]; ok {
		if depth > e.Depth {
			e.Depth = depth
			f.expressions[rawURL] = e
		}
		return e, nil
	}
	f.nextExpr++
	e := model.Expression{ID: f.nextExpr, LandID: landID, DomainID: domainID, URL: rawURL, Depth: depth}
	f.expressions[rawURL] = e
	return e, nil
}

func (f *fakeGraphStore) HasLink(ctx context.Context, sourceID, targetID int64) (bool, error) {
	return f.links[[2]int64{sourceID, targetID}], nil
}

func (f *fakeGraphStore) InsertLink(ctx context.Context, link model.ExpressionLink) error {
	f.links[[2]int64{link.SourceID, link.TargetID}] = true
	return nil
}

func (f *fakeGraphStore) HasMedia(ctx context.Context, expressionID int64, urlHash []byte) (bool, error) {
	return f.media[expressionID][string(urlHash)], nil
}

func (f *fakeGraphStore) InsertMedia(ctx context.Context, media model.Media) error {
	if f.media[media.ExpressionID] == nil {
		f.media[media.ExpressionID] = make(map[string]bool)
	}
	f.media[media.ExpressionID][string(media.URLHash)] = true
	return nil
}

func TestPersist_UpsertsDomainsExpressionsAndDedupsOnSecondRun(t *testing.T) {
	store := newFakeGraphStore()
	source := model.Expression{ID: 1, LandID: 1, URL: "https://example.com/page"}
	links := []LinkRef{{URL: "https://other.com/a", Type: model.LinkExternal}}
	media := []MediaRef{{URL: "https://example.com/pic.jpg", Type: model.MediaImage}}

	if err := Persist(context.Background(), store, 1, source, links, media); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.links) != 1 {
		t.Fatalf("expected one link row, got %d", len(store.links))
	}

	if err := Persist(context.Background(), store, 1, source, links, media); err != nil {
		t.Fatalf("unexpected error on second persist: %v", err)
	}
	if len(store.links) != 1 {
		t.Fatalf("expected dedup to keep link count at 1, got %d", len(store.links))
	}
}
