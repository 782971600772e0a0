package barcodes

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestList(t *testing.T) {
	codes, err := DefaultOptions().List()
	require.NoError(t, err)
	require.Len(t, codes, 100)
	require.Equal(t, "000", codes[0])
	require.Equal(t, "099", codes[99])

	codes, err = Options{Codes: []string{"7", "42ab9"}}.List()
	require.NoError(t, err)
	require.Equal(t, []string{"007", "429"}, codes)

	_, err = Options{Start: 5, End: 1}.List()
	require.Error(t, err)
	_, err = Options{Start: 0, End: 1000}.List()
	require.Error(t, err)
}

func isDark(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r < 0x8000 && g < 0x8000 && b < 0x8000
}

func TestRenderGrid(t *testing.T) {
	o := DefaultOptions()
	o.Start, o.End = 0, 11

	img, err := Render(o)
	require.NoError(t, err)

	single := DefaultOptions()
	single.Codes = []string{"000"}
	one, err := Render(single)
	require.NoError(t, err)
	cellW, cellH := one.Bounds().Dx(), one.Bounds().Dy()

	// 12 codes on 10 columns: two rows
	require.Equal(t, 10*(cellW+10)-10, img.Bounds().Dx())
	require.Equal(t, 2*(cellH+10)-10, img.Bounds().Dy())

	require.False(t, isDark(img.At(0, 0)), "quiet zone is white")

	dark := 0
	for x := 0; x < cellW; x++ {
		if isDark(img.At(x, cellH/3)) {
			dark++
		}
	}
	require.Positive(t, dark, "first cell has bars")

	// padding between rows stays white
	for x := 0; x < img.Bounds().Dx(); x += 7 {
		require.False(t, isDark(img.At(x, cellH+5)))
	}
}

func TestWritePNG(t *testing.T) {
	img, err := Render(Options{Codes: []string{"007"}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, img))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, img.Bounds(), decoded.Bounds())
}
