// Package media implements the Media Analyzer (C4): fetching an image
// asset, decoding it, computing its dimensions/color-mode/alpha,
// clustering its dominant colors, snapping them to the 216-entry
// web-safe palette, pulling a minimal EXIF tag subset, and hashing the
// raw bytes. Every step is best-effort: failures are recorded on
// MediaAnalysis.AnalysisError rather than propagated, mirroring
// MediaProcessorSync.analyze_image's "never raises" contract.
//
// Grounded on app/core/media_processor.py.
package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"sort"

	"github.com/lucasb-eyer/go-colorful"

	"mywi/internal/model"
)

// Config bounds the analyzer's resource usage.
type Config struct {
	MaxFileSizeMB   int
	NDominantColors int
}

// DefaultConfig mirrors the Python module's defaults.
var DefaultConfig = Config{MaxFileSizeMB: 10, NDominantColors: 5}

// Fetcher retrieves a media asset's raw bytes, capped at a byte budget.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, maxBytes int64) ([]byte, error)
}

// HTTPFetcher fetches via net/http with an io.LimitReader byte budget.
type HTTPFetcher struct {
	Client *http.Client
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: http.DefaultClient}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > maxBytes {
		return nil, errOverflow
	}
	return body, nil
}

var errOverflow = &overflowError{}

type overflowError struct{}

func (e *overflowError) Error() string { return "media asset exceeded configured byte budget" }

// Analyze fetches rawURL and produces a best-effort MediaAnalysis. It
// has no error return: fetch failures (bad URL, context cancellation,
// byte-budget overflow) and content-level failures are both reported
// on AnalysisError.
func Analyze(ctx context.Context, fetcher Fetcher, rawURL string, cfg Config) model.MediaAnalysis {
	maxBytes := int64(cfg.MaxFileSizeMB) * 1024 * 1024
	body, err := fetcher.Fetch(ctx, rawURL, maxBytes)
	if err != nil {
		msg := err.Error()
		return model.MediaAnalysis{AnalysisError: &msg}
	}

	hash := sha256.Sum256(body)
	hashHex := hex.EncodeToString(hash[:])
	size := len(body)

	cfg2 := cfg
	if cfg2.NDominantColors <= 0 {
		cfg2.NDominantColors = DefaultConfig.NDominantColors
	}

	img, format, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		msg := "decode failed: " + err.Error()
		return model.MediaAnalysis{
			ImageHash:     &hashHex,
			FileSize:      &size,
			AnalysisError: &msg,
		}
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	aspect := 0.0
	if height > 0 {
		aspect = float64(width) / float64(height)
	}
	colorMode, hasAlpha := colorModeOf(img)

	dominant := dominantColors(img, cfg2.NDominantColors)
	webSafe := webSafeHistogram(dominant)
	exif := extractEXIF(body)

	return model.MediaAnalysis{
		Width:            &width,
		Height:           &height,
		Format:           &format,
		ColorMode:        &colorMode,
		HasTransparency:  &hasAlpha,
		AspectRatio:      &aspect,
		FileSize:         &size,
		ImageHash:        &hashHex,
		MimeType:         mimeFor(format),
		DominantColors:   dominant,
		WebSafeHistogram: webSafe,
		EXIF:             exif,
	}
}

func mimeFor(format string) *string {
	var mime string
	switch format {
	case "jpeg":
		mime = "image/jpeg"
	case "png":
		mime = "image/png"
	case "gif":
		mime = "image/gif"
	default:
		return nil
	}
	return &mime
}

func colorModeOf(img image.Image) (string, bool) {
	switch img.(type) {
	case *image.NRGBA, *image.RGBA:
		return "RGBA", hasAlphaChannel(img)
	case *image.Gray, *image.Gray16:
		return "L", false
	case *image.CMYK:
		return "CMYK", false
	default:
		return "RGB", hasAlphaChannel(img)
	}
}

func hasAlphaChannel(img image.Image) bool {
	bounds := img.Bounds()
	// Sample a small grid rather than every pixel; a best-effort signal,
	// not an exact transparency audit.
	step := 1
	if (bounds.Dx() * bounds.Dy()) > 10000 {
		step = bounds.Dx() / 50
		if step == 0 {
			step = 1
		}
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			_, _, _, a := img.At(x, y).RGBA()
			if a < 0xffff {
				return true
			}
		}
	}
	return false
}

// dominantColors downsamples img to a bounded pixel grid and runs a
// hand-rolled k-means clustering pass (no image-decoding, perceptual
// hash, EXIF, or clustering library exists anywhere in the reference
// corpus; justified as stdlib in DESIGN.md).
func dominantColors(img image.Image, k int) []model.DominantColor {
	pixels := samplePixels(img, 100)
	if len(pixels) == 0 {
		return nil
	}
	if k > len(pixels) {
		k = len(pixels)
	}

	centroids := initCentroids(pixels, k)
	assignments := make([]int, len(pixels))

	for iter := 0; iter < 10; iter++ {
		changed := false
		for i, p := range pixels {
			best := nearestCentroid(p, centroids)
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		centroids = recomputeCentroids(pixels, assignments, k)
		if !changed && iter > 0 {
			break
		}
	}

	counts := make([]int, k)
	for _, a := range assignments {
		counts[a]++
	}

	total := len(pixels)
	result := make([]model.DominantColor, 0, k)
	for i, c := range centroids {
		if counts[i] == 0 {
			continue
		}
		pct := math.Round(float64(counts[i])/float64(total)*10000) / 100
		result = append(result, model.DominantColor{R: c[0], G: c[1], B: c[2], Percentage: pct})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Percentage > result[j].Percentage })
	return result
}

type pixel [3]uint8

func samplePixels(img image.Image, maxSide int) []pixel {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	stepX := 1
	stepY := 1
	if w > maxSide {
		stepX = w / maxSide
	}
	if h > maxSide {
		stepY = h / maxSide
	}
	if stepX == 0 {
		stepX = 1
	}
	if stepY == 0 {
		stepY = 1
	}

	var out []pixel
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			r, g, b, _ := img.At(x, y).RGBA()
			out = append(out, pixel{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)})
		}
	}
	return out
}

func initCentroids(pixels []pixel, k int) [][3]uint8 {
	centroids := make([][3]uint8, k)
	step := len(pixels) / k
	if step == 0 {
		step = 1
	}
	for i := 0; i < k; i++ {
		idx := i * step
		if idx >= len(pixels) {
			idx = len(pixels) - 1
		}
		centroids[i] = pixels[idx]
	}
	return centroids
}

func nearestCentroid(p pixel, centroids [][3]uint8) int {
	best := 0
	bestDist := math.MaxFloat64
	for i, c := range centroids {
		dr := float64(p[0]) - float64(c[0])
		dg := float64(p[1]) - float64(c[1])
		db := float64(p[2]) - float64(c[2])
		dist := dr*dr + dg*dg + db*db
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}
	return best
}

func recomputeCentroids(pixels []pixel, assignments []int, k int) [][3]uint8 {
	sums := make([][3]int, k)
	counts := make([]int, k)
	for i, p := range pixels {
		a := assignments[i]
		sums[a][0] += int(p[0])
		sums[a][1] += int(p[1])
		sums[a][2] += int(p[2])
		counts[a]++
	}
	centroids := make([][3]uint8, k)
	for i := 0; i < k; i++ {
		if counts[i] == 0 {
			continue
		}
		centroids[i] = [3]uint8{
			uint8(sums[i][0] / counts[i]),
			uint8(sums[i][1] / counts[i]),
			uint8(sums[i][2] / counts[i]),
		}
	}
	return centroids
}

// webSafeLevels are the six per-channel levels {0,51,102,153,204,255};
// every combination of them forms the 216-entry web-safe palette.
var webSafeLevels = [6]uint8{0, 51, 102, 153, 204, 255}

// webSafeHistogram snaps each dominant color to its nearest web-safe
// triple (via go-colorful's RGB distance) and aggregates percentages by
// resulting hex code, per _generate_web_safe_palette/_rgb_distance/
// _convert_to_web_safe.
func webSafeHistogram(dominant []model.DominantColor) []model.WebSafeColor {
	agg := make(map[string]float64)
	order := make([]string, 0)

	for _, d := range dominant {
		hex := nearestWebSafeHex(d.R, d.G, d.B)
		if _, ok := agg[hex]; !ok {
			order = append(order, hex)
		}
		agg[hex] += d.Percentage
	}

	out := make([]model.WebSafeColor, 0, len(order))
	for _, hex := range order {
		out = append(out, model.WebSafeColor{Hex: hex, Percentage: math.Round(agg[hex]*100) / 100})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Percentage > out[j].Percentage })
	return out
}

func nearestWebSafeHex(r, g, b uint8) string {
	target := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}

	bestDist := math.MaxFloat64
	var bestR, bestG, bestB uint8
	for _, lr := range webSafeLevels {
		for _, lg := range webSafeLevels {
			for _, lb := range webSafeLevels {
				candidate := colorful.Color{R: float64(lr) / 255, G: float64(lg) / 255, B: float64(lb) / 255}
				dist := target.DistanceRgb(candidate)
				if dist < bestDist {
					bestDist = dist
					bestR, bestG, bestB = lr, lg, lb
				}
			}
		}
	}

	return colorful.Color{R: float64(bestR) / 255, G: float64(bestG) / 255, B: float64(bestB) / 255}.Hex()
}

// extractEXIF walks the TIFF IFD0 of a JPEG's embedded EXIF segment for
// a small tag subset: ImageWidth(256), ImageLength(257), Make(271),
// Model(272), DateTime(306). No EXIF library exists anywhere in the
// reference corpus; this minimal walker is justified as stdlib in
// DESIGN.md. Returns nil when no EXIF segment is present or it cannot be
// parsed.
func extractEXIF(data []byte) *model.EXIFData {
	marker := []byte("Exif\x00\x00")
	idx := bytes.Index(data, marker)
	if idx == -1 {
		return nil
	}
	tiff := data[idx+len(marker):]
	if len(tiff) < 8 {
		return nil
	}

	var order binary.ByteOrder
	switch string(tiff[0:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil
	}

	ifdOffset := order.Uint32(tiff[4:8])
	if int(ifdOffset)+2 > len(tiff) {
		return nil
	}

	count := order.Uint16(tiff[ifdOffset : ifdOffset+2])
	result := &model.EXIFData{}
	entryStart := int(ifdOffset) + 2

	for i := 0; i < int(count); i++ {
		off := entryStart + i*12
		if off+12 > len(tiff) {
			break
		}
		tag := order.Uint16(tiff[off : off+2])
		typ := order.Uint16(tiff[off+2 : off+4])
		valueOffset := tiff[off+8 : off+12]

		switch tag {
		case 256: // ImageWidth
			v := int(readEXIFInt(order, typ, valueOffset))
			result.Width = &v
		case 257: // ImageLength
			v := int(readEXIFInt(order, typ, valueOffset))
			result.Length = &v
		case 271: // Make
			if s := readEXIFString(order, tiff, valueOffset); s != "" {
				result.Make = &s
			}
		case 272: // Model
			if s := readEXIFString(order, tiff, valueOffset); s != "" {
				result.Model = &s
			}
		case 306: // DateTime
			if s := readEXIFString(order, tiff, valueOffset); s != "" {
				result.DateTime = &s
			}
		}
	}

	if result.Width == nil && result.Length == nil && result.Make == nil && result.Model == nil && result.DateTime == nil {
		return nil
	}
	return result
}

func readEXIFInt(order binary.ByteOrder, typ uint16, raw []byte) uint32 {
	switch typ {
	case 3: // SHORT
		return uint32(order.Uint16(raw[0:2]))
	case 4: // LONG
		return order.Uint32(raw)
	default:
		return 0
	}
}

func readEXIFString(order binary.ByteOrder, tiff []byte, raw []byte) string {
	offset := order.Uint32(raw)
	if int(offset) >= len(tiff) {
		return ""
	}
	end := int(offset)
	for end < len(tiff) && tiff[end] != 0 {
		end++
	}
	return string(tiff[offset:end])
}
