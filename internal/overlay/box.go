package overlay

import (
	"fmt"
	"image"
	"image/color"

	"github.com/andresmejia3/memento/internal/types"
)

var (
	relationGrey   = color.RGBA{200, 200, 200, 255}
	confidenceGrey = color.RGBA{150, 150, 150, 255}
)

// BoxRenderer outlines the face (green when known, red otherwise) and prints
// name, relation and confidence on a dimmed backdrop above it.
type BoxRenderer struct{}

func (BoxRenderer) Render(frame *image.RGBA, f types.DetectedFace, res types.MatchResult) {
	box, ok := faceRegion(frame, f)
	if !ok {
		return
	}

	col := red
	if res.Matched {
		col = green
	}
	strokeRect(frame, box, col, 2)

	lines := []string{res.Name, res.Relation, fmt.Sprintf("%.2f%%", res.Score*100)}
	maxW := 0
	for _, l := range lines {
		if w := textWidth(l); w > maxW {
			maxW = w
		}
	}
	totalH := 3*lineHeight + 30

	top := box.Min.Y - totalH - 10
	if top < frame.Rect.Min.Y {
		top = frame.Rect.Min.Y
	}
	bg := image.Rect(box.Min.X, top, box.Min.X+maxW+20, box.Min.Y)
	if bg.Intersect(frame.Rect).Empty() {
		return
	}
	darken(frame, bg, 0.4)

	y := bg.Min.Y + lineHeight + 5
	drawText(frame, lines[0], box.Min.X+5, y, white)
	y += lineHeight + 10
	drawText(frame, lines[1], box.Min.X+5, y, relationGrey)
	y += lineHeight + 10
	drawText(frame, lines[2], box.Min.X+5, y, confidenceGrey)
}

// faceRegion returns the canonical face box if both it and its visible part are non-empty.
func faceRegion(frame *image.RGBA, f types.DetectedFace) (image.Rectangle, bool) {
	if frame == nil {
		return image.Rectangle{}, false
	}
	box := f.Box.Canon()
	if box.Empty() || box.Intersect(frame.Rect).Empty() {
		return image.Rectangle{}, false
	}
	return box, true
}
