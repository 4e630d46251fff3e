package tools

import (
	"image"
	"testing"

	"fyne.io/fyne/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitRect(t *testing.T) {
	b := image.Rect(0, 0, 200, 100)

	// Wider view: letterboxed left and right
	off, w, h := fitRect(fyne.NewSize(400, 100), b)
	assert.Equal(t, fyne.NewPos(100, 0), off)
	assert.Equal(t, float32(200), w)
	assert.Equal(t, float32(100), h)

	// Taller view: letterboxed top and bottom
	off, w, h = fitRect(fyne.NewSize(200, 300), b)
	assert.Equal(t, fyne.NewPos(0, 100), off)
	assert.Equal(t, float32(200), w)
	assert.Equal(t, float32(100), h)

	_, w, _ = fitRect(fyne.NewSize(0, 0), b)
	assert.Zero(t, w)
}

func TestViewToImage(t *testing.T) {
	b := image.Rect(0, 0, 200, 100)
	view := fyne.NewSize(400, 200) // drawn at 2x

	r, ok := viewToImage(view, b, fyne.NewPos(20, 40), fyne.NewPos(60, 10))
	require.True(t, ok)
	assert.Equal(t, image.Rect(10, 5, 30, 20), r)

	// Clipped to the image
	r, ok = viewToImage(view, b, fyne.NewPos(-50, -50), fyne.NewPos(1000, 1000))
	require.True(t, ok)
	assert.Equal(t, b, r)

	_, ok = viewToImage(view, b, fyne.NewPos(5, 5), fyne.NewPos(5, 80))
	assert.False(t, ok, "zero width")
}

func TestViewToImageKeepsOrigin(t *testing.T) {
	b := image.Rect(-2560, 0, -2360, 100)
	r, ok := viewToImage(fyne.NewSize(200, 100), b, fyne.NewPos(0, 0), fyne.NewPos(10, 10))
	require.True(t, ok)
	assert.Equal(t, image.Rect(-2560, 0, -2550, 10), r)
}

func TestViewToPixel(t *testing.T) {
	b := image.Rect(0, 0, 200, 100)
	view := fyne.NewSize(400, 300) // drawn 400x200 at y offset 50

	p, ok := viewToPixel(view, b, fyne.NewPos(3, 51))
	require.True(t, ok)
	assert.Equal(t, image.Point{X: 1, Y: 0}, p)

	_, ok = viewToPixel(view, b, fyne.NewPos(3, 10))
	assert.False(t, ok, "in the letterbox")
}
