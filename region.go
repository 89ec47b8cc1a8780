package doc2img

import (
	"math"

	"github.com/go-rod/rod/lib/proto"
)

// region is a capture rectangle in CSS pixels, page coordinates.
type region struct {
	X, Y, Width, Height float64
}

// captureRegion expands box by margin on every side, clamps the origin to
// the page (never negative) and guarantees at least one pixel per side.
// Coordinates are snapped outward to whole pixels so no content is cut.
func captureRegion(box *proto.DOMRect, margin float64) region {
	if margin < 0 {
		margin = 0
	}
	left := math.Floor(max(box.X-margin, 0))
	top := math.Floor(max(box.Y-margin, 0))
	right := math.Ceil(box.X + box.Width + margin)
	bottom := math.Ceil(box.Y + box.Height + margin)

	return region{
		X:      left,
		Y:      top,
		Width:  max(right-left, 1),
		Height: max(bottom-top, 1),
	}
}

// viewport converts r to a screenshot clip at scale 1.
func (r region) viewport() *proto.PageViewport {
	return &proto.PageViewport{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height, Scale: 1}
}
