// Package barcodes renders printable Code128 sheets for kiosk codes.
package barcodes

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"scankiosk/internal/mapping"
)

type Options struct {
	Start   int
	End     int
	Codes   []string // overrides Start/End when set
	Columns int
	Padding int // px between cells

	ModuleWidth int // px per narrowest bar
	BarHeight   int // px
	QuietZone   int // modules of white each side
	TextGap     int // px between bars and label
}

func DefaultOptions() Options {
	return Options{
		Start:       0,
		End:         99,
		Columns:     10,
		Padding:     10,
		ModuleWidth: 2,
		BarHeight:   90,
		QuietZone:   6,
		TextGap:     3,
	}
}

// List returns the zero-padded codes Render will draw.
func (o Options) List() ([]string, error) {
	if len(o.Codes) > 0 {
		out := make([]string, 0, len(o.Codes))
		for _, c := range o.Codes {
			out = append(out, mapping.Normalize(c))
		}
		return out, nil
	}
	if o.Start < 0 || o.End > 999 || o.Start > o.End {
		return nil, fmt.Errorf("invalid code range %d-%d", o.Start, o.End)
	}
	out := make([]string, 0, o.End-o.Start+1)
	for i := o.Start; i <= o.End; i++ {
		out = append(out, fmt.Sprintf("%03d", i))
	}
	return out, nil
}

type cell struct {
	code string
	img  barcode.Barcode
}

// Render draws one labelled barcode per code on a white grid.
func Render(o Options) (*image.RGBA, error) {
	d := DefaultOptions()
	if o.Columns <= 0 {
		o.Columns = d.Columns
	}
	if o.Padding < 0 {
		o.Padding = 0
	}
	if o.ModuleWidth <= 0 {
		o.ModuleWidth = d.ModuleWidth
	}
	if o.BarHeight <= 0 {
		o.BarHeight = d.BarHeight
	}
	if o.QuietZone < 0 {
		o.QuietZone = 0
	}

	codes, err := o.List()
	if err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		return nil, errors.New("no codes to render")
	}

	cells := make([]cell, 0, len(codes))
	maxBars := 0
	for _, code := range codes {
		bc, err := code128.Encode(code)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", code, err)
		}
		w := bc.Bounds().Dx() * o.ModuleWidth
		scaled, err := barcode.Scale(bc, w, o.BarHeight)
		if err != nil {
			return nil, fmt.Errorf("scale %s: %w", code, err)
		}
		cells = append(cells, cell{code: code, img: scaled})
		if w > maxBars {
			maxBars = w
		}
	}

	face := basicfont.Face7x13
	metrics := face.Metrics()
	textHeight := (metrics.Ascent + metrics.Descent).Ceil()

	quiet := o.QuietZone * o.ModuleWidth
	cellW := maxBars + 2*quiet
	cellH := quiet + o.BarHeight + o.TextGap + textHeight + quiet

	cols := o.Columns
	if len(cells) < cols {
		cols = len(cells)
	}
	rows := (len(cells) + cols - 1) / cols

	totalW := cols*(cellW+o.Padding) - o.Padding
	totalH := rows*(cellH+o.Padding) - o.Padding
	sheet := image.NewRGBA(image.Rect(0, 0, totalW, totalH))
	draw.Draw(sheet, sheet.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	drawer := &font.Drawer{Dst: sheet, Src: image.NewUniform(color.Black), Face: face}
	for i, c := range cells {
		x := (i % cols) * (cellW + o.Padding)
		y := (i / cols) * (cellH + o.Padding)

		bw := c.img.Bounds().Dx()
		bx := x + (cellW-bw)/2
		by := y + quiet
		draw.Draw(sheet, image.Rect(bx, by, bx+bw, by+o.BarHeight), c.img, c.img.Bounds().Min, draw.Src)

		tw := drawer.MeasureString(c.code).Ceil()
		drawer.Dot = fixed.P(x+(cellW-tw)/2, by+o.BarHeight+o.TextGap+metrics.Ascent.Ceil())
		drawer.DrawString(c.code)
	}
	return sheet, nil
}

func WritePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}
