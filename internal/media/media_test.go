package media

import (
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"testing"
)

func solidImage(w, h int, r, g, b uint8) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	c := color.NRGBA{R: r, G: g, B: b, A: 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// tinyPNGBase64 is a minimal 1x1 fully transparent RGBA PNG.
const tinyPNGBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAAEklEQVR4nAAFAPr/AgAAAAADAAAPAANCp/UOAAAAAElFTkSuQmCC"

type fakeMediaFetcher struct {
	body []byte
	err  error
}

func (f *fakeMediaFetcher) Fetch(ctx context.Context, rawURL string, maxBytes int64) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

func decodeTinyPNG(t *testing.T) []byte {
	t.Helper()
	b, err := base64.StdEncoding.DecodeString(tinyPNGBase64)
	if err != nil {
		t.Fatalf("failed to decode fixture: %v", err)
	}
	return b
}

func TestAnalyze_DecodesValidPNGAndHashes(t *testing.T) {
	body := decodeTinyPNG(t)
	fetcher := &fakeMediaFetcher{body: body}

	result := Analyze(context.Background(), fetcher, "https://example.com/a.png", DefaultConfig)

	if result.AnalysisError != nil {
		t.Fatalf("unexpected analysis error: %v", *result.AnalysisError)
	}
	if result.Width == nil || *result.Width != 1 {
		t.Fatalf("expected width 1, got %v", result.Width)
	}
	if result.ImageHash == nil || len(*result.ImageHash) != 64 {
		t.Fatalf("expected a 64-char sha256 hex hash, got %v", result.ImageHash)
	}
	if result.Format == nil || *result.Format != "png" {
		t.Fatalf("expected png format, got %v", result.Format)
	}
}

func TestAnalyze_FetchFailureSetsAnalysisError(t *testing.T) {
	fetcher := &fakeMediaFetcher{err: errors.New("boom")}
	result := Analyze(context.Background(), fetcher, "https://example.com/a.png", DefaultConfig)

	if result.AnalysisError == nil {
		t.Fatalf("expected AnalysisError to be set on fetch failure")
	}
	if result.Width != nil {
		t.Fatalf("expected no dimensions when fetch fails")
	}
}

func TestAnalyze_UndecodableBytesSetsAnalysisErrorButKeepsHash(t *testing.T) {
	fetcher := &fakeMediaFetcher{body: []byte("not an image")}
	result := Analyze(context.Background(), fetcher, "https://example.com/a.png", DefaultConfig)

	if result.AnalysisError == nil {
		t.Fatalf("expected AnalysisError for undecodable bytes")
	}
	if result.ImageHash == nil {
		t.Fatalf("expected hash to still be computed from raw bytes")
	}
}

func TestNearestWebSafeHex_SnapsToKnownLevel(t *testing.T) {
	hex := nearestWebSafeHex(10, 10, 10)
	if hex != "#000000" {
		t.Fatalf("expected near-black to snap to #000000, got %s", hex)
	}
}

func TestDominantColors_SingleColorImageYieldsOneCluster(t *testing.T) {
	img := solidImage(20, 20, 200, 50, 50)
	clusters := dominantColors(img, 5)
	if len(clusters) == 0 {
		t.Fatalf("expected at least one cluster")
	}
	if clusters[0].Percentage < 90 {
		t.Fatalf("expected dominant cluster to cover nearly all pixels, got %v", clusters[0].Percentage)
	}
}
