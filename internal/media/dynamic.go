package media

import (
	"context"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// dynamicMediaSelector matches every element the analyzer treats as a
// media candidate once a page has finished its JS-driven renders,
// including the lazy-load attribute variants WordPress-style themes use.
const dynamicMediaSelector = `img[src], img[data-src], img[data-lazy-src], img[data-original], img[data-url], video[src], audio[src]`

// DynamicDiscoveryConfig tunes the headless-browser media sweep.
type DynamicDiscoveryConfig struct {
	Enabled bool
	Timeout time.Duration
}

// DefaultDynamicDiscoveryConfig enables the sweep and bounds the browser
// session to 15s. DiscoverDynamicMediaURLs skips the sweep under
// `go test` whatever the config says (Go's analogue of the Python
// PYTEST_CURRENT_TEST guard).
var DefaultDynamicDiscoveryConfig = DynamicDiscoveryConfig{Enabled: true, Timeout: 15 * time.Second}

// DiscoverDynamicMediaURLs loads pageURL in a local headless Chromium
// instance, waits for the network to settle, then collects every
// src/data-src/... attribute value from the rendered DOM. It is a
// best-effort supplement to the static extraction cascade's media
// collection for pages whose media is injected by client-side
// JavaScript after the initial HTML response.
func DiscoverDynamicMediaURLs(ctx context.Context, pageURL string, cfg DynamicDiscoveryConfig) ([]string, error) {
	if !cfg.Enabled || testing.Testing() {
		return nil, nil
	}

	browser, err := newLocalBrowser(ctx, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	defer func() { _ = browser.Close() }()

	page, err := browser.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return nil, err
	}
	defer func() { _ = page.Close() }()

	if err := page.WaitLoad(); err != nil {
		return nil, err
	}
	_ = page.WaitIdle(cfg.Timeout)

	elements, err := page.Elements(dynamicMediaSelector)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(elements))
	urls := make([]string, 0, len(elements))
	for _, el := range elements {
		for _, attr := range []string{"src", "data-src", "data-lazy-src", "data-original", "data-url"} {
			val, err := el.Attribute(attr)
			if err != nil || val == nil || *val == "" {
				continue
			}
			if _, dup := seen[*val]; dup {
				continue
			}
			seen[*val] = struct{}{}
			urls = append(urls, *val)
		}
	}
	return urls, nil
}

// newLocalBrowser launches a local Chromium instance via rod's launcher,
// mirroring this repository's established in-process headless-browser
// pattern rather than pooling an external browser service.
func newLocalBrowser(ctx context.Context, timeout time.Duration) (*rod.Browser, error) {
	var l *launcher.Launcher
	if path, has := launcher.LookPath(); has {
		l = launcher.New().Bin(path)
	} else {
		l = launcher.New()
	}
	l = l.Headless(true).NoSandbox(true)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, err
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx).Timeout(timeout)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, err
	}
	return browser, nil
}
