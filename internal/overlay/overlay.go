// Package overlay draws identity annotations directly into RGBA frames.
//
// Renderers write into the frame in place and never panic: faces whose box, or
// whose clipped drawing region, is empty leave the frame untouched.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"strings"
	"unicode"

	"github.com/andresmejia3/memento/internal/types"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Renderer draws the annotation of one matched face.
type Renderer interface {
	Render(frame *image.RGBA, face types.DetectedFace, res types.MatchResult)
}

// Styles accepted by New.
const (
	StyleBox  = "box"
	StyleCard = "card"
)

// New returns the renderer for style.
func New(style string) (Renderer, error) {
	switch style {
	case StyleBox, "":
		return BoxRenderer{}, nil
	case StyleCard:
		return NewCardRenderer(), nil
	}
	return nil, fmt.Errorf("unknown overlay style %q (want %s or %s)", style, StyleBox, StyleCard)
}

var (
	green = color.RGBA{0, 255, 0, 255}
	red   = color.RGBA{255, 0, 0, 255}
	white = color.RGBA{255, 255, 255, 255}
	black = color.RGBA{0, 0, 0, 255}
)

var labelFace = basicfont.Face7x13

const lineHeight = 13

// DrawStats writes the frame-rate and face-count diagnostics in the top-left corner.
func DrawStats(frame *image.RGBA, fps float64, faces int) {
	if frame == nil || frame.Bounds().Empty() {
		return
	}
	o := frame.Bounds().Min
	drawText(frame, fmt.Sprintf("FPS: %.1f", fps), o.X+10, o.Y+30, green)
	drawText(frame, fmt.Sprintf("Faces: %d", faces), o.X+10, o.Y+60, green)
}

// drawText draws s with its baseline at (x, y). Glyphs are clipped to the frame.
func drawText(dst *image.RGBA, s string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: labelFace,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(foldLabel(s))
}

// drawShadowText draws s over a 1px black shadow.
func drawShadowText(dst *image.RGBA, s string, x, y int, c color.Color) {
	drawText(dst, s, x+1, y+1, black)
	drawText(dst, s, x, y, c)
}

// textWidth returns the advance of s in pixels.
func textWidth(s string) int {
	return font.MeasureString(labelFace, foldLabel(s)).Ceil()
}

var stripMarks = runes.Remove(runes.In(unicode.Mn))

// foldLabel removes diacritics ("Jiří" -> "Jiri") and replaces what the bitmap
// font cannot draw with '?'.
func foldLabel(s string) string {
	t := transform.Chain(norm.NFD, stripMarks, norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return '?'
		}
		return r
	}, folded)
}

// strokeRect draws the outline of r with the given thickness, growing inwards.
func strokeRect(dst *image.RGBA, r image.Rectangle, c color.RGBA, thickness int) {
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness), c)
	fillRect(dst, image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y), c)
}

// fillRect paints the part of r inside dst with an opaque color.
func fillRect(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(dst.Rect)
	if r.Empty() {
		return
	}
	pix, stride := dst.Pix, dst.Stride
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := (y-dst.Rect.Min.Y)*stride + (r.Min.X-dst.Rect.Min.X)*4
		for x := r.Min.X; x < r.Max.X; x++ {
			pix[off] = c.R
			pix[off+1] = c.G
			pix[off+2] = c.B
			pix[off+3] = 255
			off += 4
		}
	}
}

// darken scales the color channels inside r by keep (0..1), i.e. blends
// with black at opacity 1-keep.
func darken(dst *image.RGBA, r image.Rectangle, keep float64) {
	r = r.Intersect(dst.Rect)
	if r.Empty() {
		return
	}
	k := uint32(keep*256 + 0.5)
	pix, stride := dst.Pix, dst.Stride
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := (y-dst.Rect.Min.Y)*stride + (r.Min.X-dst.Rect.Min.X)*4
		for x := r.Min.X; x < r.Max.X; x++ {
			pix[off] = uint8(uint32(pix[off]) * k >> 8)
			pix[off+1] = uint8(uint32(pix[off+1]) * k >> 8)
			pix[off+2] = uint8(uint32(pix[off+2]) * k >> 8)
			off += 4
		}
	}
}
