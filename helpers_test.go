package main

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	slideWhite = color.RGBA{255, 255, 255, 255}
	slideDark  = color.RGBA{20, 24, 30, 255}
)

// solidImage returns a w x h image filled with c.
func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// slideImage looks like an exported slide: a plain background with an
// accent title bar across the top fifth.
func slideImage(w, h int, background, accent color.RGBA) *image.RGBA {
	img := solidImage(w, h, background)
	draw.Draw(img, image.Rect(0, 0, w, h/5), image.NewUniform(accent), image.Point{}, draw.Src)
	return img
}

// noiseImage gives every pixel a different colour so PNG cannot compress it.
func noiseImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x * 7), uint8(y * 13), uint8(x*y + 3), 255})
		}
	}
	return img
}

func assertError(t *testing.T, err error, msg string) {
	t.Helper()
	assert.Error(t, err, "expected error: %s", msg)
}

func assertNoError(t *testing.T, err error) {
	t.Helper()
	require.NoError(t, err)
}

func assertEqual(t *testing.T, got, want interface{}, msg string) {
	t.Helper()
	assert.Equal(t, want, got, msg)
}

// assertHexColor checks c the same way ui.color is validated.
func assertHexColor(t *testing.T, c string) {
	t.Helper()
	assert.True(t, hexColorPattern.MatchString(c), "invalid hex color %q", c)
}
