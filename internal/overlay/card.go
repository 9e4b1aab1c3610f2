package overlay

import (
	"image"
	"image/color"

	"github.com/andresmejia3/memento/internal/types"
	"golang.org/x/image/draw"
)

// Card geometry.
const (
	cardMinWidth = 240
	cardHeight   = 96
	cardGap      = 14
	cardMargin   = 10
	cardPad      = 18
)

var (
	cardName     = color.RGBA{245, 245, 245, 255}
	cardRelation = color.RGBA{255, 220, 190, 255}
	cardSummary  = color.RGBA{225, 235, 215, 255}
)

// CardRenderer draws a frosted, rounded card above known faces with name,
// relation and summary. Unknown faces only get a red label.
type CardRenderer struct {
	Radius     int // corner radius
	BlurRadius int // box filter radius of the frosted background
	Tint       float64
}

// NewCardRenderer returns a card renderer with the default look.
func NewCardRenderer() *CardRenderer {
	return &CardRenderer{Radius: 18, BlurRadius: 15, Tint: 0.6}
}

func (c *CardRenderer) Render(frame *image.RGBA, f types.DetectedFace, res types.MatchResult) {
	box, ok := faceRegion(frame, f)
	if !ok {
		return
	}
	origin := frame.Rect.Min
	faceW := box.Dx()

	if !res.Matched {
		x := box.Min.X + faceW/2 - 40
		y := maxInt(origin.Y+20, box.Min.Y-10)
		drawText(frame, types.UnknownLabel, x, y, red)
		return
	}

	card := cardRect(frame.Rect, box)
	region := card.Intersect(frame.Rect)
	if region.Empty() {
		return
	}
	c.glass(frame, card, region)

	x := card.Min.X + cardPad
	maxW := card.Dx() - 2*cardPad
	drawShadowText(frame, fitText(res.Name, maxW), x, card.Min.Y+32, cardName)
	drawShadowText(frame, fitText(res.Relation, maxW), x, card.Min.Y+58, cardRelation)
	drawShadowText(frame, fitText(res.Summary, maxW), x, card.Min.Y+82, cardSummary)
}

// cardRect centers the card above box, keeping it inside the frame horizontally.
func cardRect(bounds, box image.Rectangle) image.Rectangle {
	faceW := box.Dx()
	w := maxInt(cardMinWidth, faceW+40)

	x := box.Min.X + faceW/2 - w/2
	y := maxInt(bounds.Min.Y+cardMargin, box.Min.Y-cardHeight-cardGap)
	x = maxInt(bounds.Min.X+cardMargin, minInt(x, bounds.Max.X-w-cardMargin))

	return image.Rect(x, y, x+w, y+cardHeight)
}

// glass replaces the visible part of card with a blurred, darkened copy of
// the frame, masked to rounded corners.
func (c *CardRenderer) glass(frame *image.RGBA, card, region image.Rectangle) {
	scratch := image.NewRGBA(region)
	draw.Draw(scratch, region, frame, region.Min, draw.Src)
	boxBlur(scratch, region, c.BlurRadius)
	darken(scratch, region, c.Tint)

	mask := roundedMask(card, c.Radius)
	draw.DrawMask(frame, region, scratch, region.Min, mask, region.Min, draw.Over)
}

// roundedMask returns an opaque mask of r with corners cut at radius.
func roundedMask(r image.Rectangle, radius int) *image.Alpha {
	mask := image.NewAlpha(r)
	w, h := r.Dx(), r.Dy()
	radius = minInt(radius, minInt(w, h)/2)
	rr := radius * radius

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// distance to the nearest corner center, only outside the inner cross
			dx, dy := 0, 0
			if x < radius {
				dx = radius - x
			} else if x >= w-radius {
				dx = x - (w - radius - 1)
			}
			if y < radius {
				dy = radius - y
			} else if y >= h-radius {
				dy = y - (h - radius - 1)
			}
			if dx*dx+dy*dy <= rr {
				mask.Pix[y*mask.Stride+x] = 0xff
			}
		}
	}
	return mask
}

// fitText cuts s so that it fits in maxW pixels, ending with "...".
func fitText(s string, maxW int) string {
	if textWidth(s) <= maxW {
		return s
	}
	folded := []rune(foldLabel(s))
	for n := len(folded) - 1; n > 0; n-- {
		candidate := string(folded[:n]) + "..."
		if textWidth(candidate) <= maxW {
			return candidate
		}
	}
	return ""
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
