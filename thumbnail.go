package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"sort"
	"strings"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// kittyImageID is the placement id reused for every slide preview so a new
// frame replaces the previous one.
const kittyImageID = 42

// kittyDeleteAll removes every image placed by this program.
const kittyDeleteAll = "\033_Ga=d,d=A\033\\"

// decodeSlideImage decodes an exported slide in any of the formats the
// application can export (PNG, JPG, GIF, BMP, TIFF).
func decodeSlideImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// extractDominantColor picks a saturated, mid-light colour from img that
// reads well on a dark terminal, as a #rrggbb string.
func extractDominantColor(img image.Image) (string, error) {
	if img == nil {
		return "", fmt.Errorf("nil image")
	}

	bounds := img.Bounds()

	// Sample every 5th pixel in both directions
	colorMap := make(map[uint32]int)
	const sampleRate = 5

	for y := bounds.Min.Y; y < bounds.Max.Y; y += sampleRate {
		for x := bounds.Min.X; x < bounds.Max.X; x += sampleRate {
			r, g, b, a := img.At(x, y).RGBA()
			if a < 32768 {
				continue
			}
			rgb := (uint32(r>>8) << 16) | (uint32(g>>8) << 8) | uint32(b>>8)
			colorMap[rgb]++
		}
	}

	type colorScore struct {
		rgb   uint32
		score float64
	}
	var candidates []colorScore

	for rgb, count := range colorMap {
		lightness, saturation := hsl(rgb)

		// Slides are mostly white or dark backgrounds; skip both along with greys
		if lightness < 0.3 || lightness > 0.85 || saturation < 0.25 {
			continue
		}

		lightnessScore := lightness
		if lightness > 0.7 {
			lightnessScore = 0.7 - (lightness - 0.7)
		}
		score := (saturation * 2.5) + (lightnessScore * 1.5) + (float64(count) / 1000.0)
		candidates = append(candidates, colorScore{rgb: rgb, score: score})
	}

	if len(candidates) == 0 {
		colors, err := prominentcolor.Kmeans(img)
		if err != nil || len(colors) == 0 {
			return "", fmt.Errorf("no suitable colors found")
		}
		c := colors[0]
		return fmt.Sprintf("#%02x%02x%02x", c.Color.R, c.Color.G, c.Color.B), nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score == candidates[j].score {
			return candidates[i].rgb < candidates[j].rgb
		}
		return candidates[i].score > candidates[j].score
	})

	best := candidates[0].rgb
	return fmt.Sprintf("#%02x%02x%02x", uint8(best>>16), uint8(best>>8), uint8(best)), nil
}

// hsl returns the HSL lightness and saturation of a packed 0xRRGGBB colour.
func hsl(rgb uint32) (lightness, saturation float64) {
	rf := float64(uint8(rgb>>16)) / 255.0
	gf := float64(uint8(rgb>>8)) / 255.0
	bf := float64(uint8(rgb)) / 255.0

	max, min := rf, rf
	for _, c := range []float64{gf, bf} {
		if c > max {
			max = c
		}
		if c < min {
			min = c
		}
	}

	lightness = (max + min) / 2.0
	if max != min {
		if lightness > 0.5 {
			saturation = (max - min) / (2.0 - max - min)
		} else {
			saturation = (max - min) / (max + min)
		}
	}
	return lightness, saturation
}

// Check if terminal supports Kitty graphics protocol
func supportsKittyGraphics() bool {
	term := os.Getenv("TERM")
	termProgram := os.Getenv("TERM_PROGRAM")

	if strings.Contains(term, "kitty") || strings.Contains(term, "konsole") {
		return true
	}
	return termProgram == "ghostty" || termProgram == "WezTerm"
}

// encodeSlideForKitty scales img to widthPixels and wraps it in Kitty
// graphics escapes sized to widthColumns terminal cells.
func encodeSlideForKitty(img image.Image, widthPixels, widthColumns int) (string, error) {
	if img == nil {
		return "", fmt.Errorf("nil image")
	}
	if widthPixels <= 0 || widthColumns <= 0 {
		return "", fmt.Errorf("invalid preview size %dpx / %d columns", widthPixels, widthColumns)
	}

	resized := resize.Resize(uint(widthPixels), 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return "", fmt.Errorf("failed to encode PNG: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	// Payloads above 4096 bytes must be chunked
	const chunkSize = 4096
	var result strings.Builder
	fmt.Fprintf(&result, "\033_Ga=d,d=I,i=%d\033\\", kittyImageID)

	if len(encoded) <= chunkSize {
		fmt.Fprintf(&result, "\033_Ga=T,f=100,t=d,i=%d,c=%d,C=1;%s\033\\", kittyImageID, widthColumns, encoded)
		return result.String(), nil
	}

	for i := 0; i < len(encoded); i += chunkSize {
		end := i + chunkSize
		if end > len(encoded) {
			end = len(encoded)
		}
		chunk := encoded[i:end]

		switch {
		case i == 0:
			fmt.Fprintf(&result, "\033_Ga=T,f=100,t=d,i=%d,c=%d,C=1,m=1;%s\033\\", kittyImageID, widthColumns, chunk)
		case end == len(encoded):
			fmt.Fprintf(&result, "\033_Gm=0;%s\033\\", chunk)
		default:
			fmt.Fprintf(&result, "\033_Gm=1;%s\033\\", chunk)
		}
	}
	return result.String(), nil
}

// processSlideImage decodes an exported slide once and returns the accent
// colour (when requested) and the Kitty-encoded preview.
func processSlideImage(data []byte, extractColor bool, widthPixels, widthColumns int) (color string, encoded string, err error) {
	img, err := decodeSlideImage(data)
	if err != nil {
		return "", "", err
	}

	if extractColor {
		if c, err := extractDominantColor(img); err == nil {
			color = c
		}
	}

	encoded, err = encodeSlideForKitty(img, widthPixels, widthColumns)
	if err != nil {
		return color, "", err
	}
	return color, encoded, nil
}
