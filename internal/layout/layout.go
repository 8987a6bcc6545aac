// Package layout computes where stamped content goes on a page.
//
// Types:
//   - Rectangle: axis-aligned box in PDF user space (origin bottom-left).
//   - Placement: a widget's page number and rectangle.
//   - Content: an image with its natural (unscaled) size.
//
// Functions:
//   - Fit: aspect-fits content into a rectangle, anchored bottom-left or centered.
//
// Expected outputs:
// - The fitted box never exceeds the target rectangle
// - A degenerate rectangle yields an empty Fit instead of a division fault
package layout

import (
	"fmt"
	"image"
	"math"
)

// Rectangle is a box in page space. Left <= Right and Bottom <= Top.
type Rectangle struct {
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
}

// NewRectangle returns a normalized rectangle for any two opposite corners.
func NewRectangle(x1, y1, x2, y2 float64) Rectangle {
	return Rectangle{
		Left:   math.Min(x1, x2),
		Bottom: math.Min(y1, y2),
		Right:  math.Max(x1, x2),
		Top:    math.Max(y1, y2),
	}
}

func (r Rectangle) Width() float64 {
	return r.Right - r.Left
}

func (r Rectangle) Height() float64 {
	return r.Top - r.Bottom
}

// Empty reports whether the rectangle has no area.
func (r Rectangle) Empty() bool {
	return r.Width() <= 0 || r.Height() <= 0
}

func (r Rectangle) String() string {
	return fmt.Sprintf("[%.2f %.2f %.2f %.2f]", r.Left, r.Bottom, r.Right, r.Top)
}

// Placement is one widget instance of a field. Page is 1-based.
type Placement struct {
	Page int       `json:"page"`
	Rect Rectangle `json:"rect"`
}

// Content is something that can be stamped: an image plus its natural size
// in page units (one pixel maps to one point before scaling).
type Content struct {
	Image  image.Image
	Width  float64
	Height float64
}

// NewContent wraps img using its pixel bounds as natural size.
func NewContent(img image.Image) Content {
	b := img.Bounds()
	return Content{Image: img, Width: float64(b.Dx()), Height: float64(b.Dy())}
}

// Anchor selects where scaled content sits inside its target rectangle.
type Anchor int

const (
	// AnchorBottomLeft pins the content to the rectangle's lower-left corner.
	AnchorBottomLeft Anchor = iota
	// AnchorCenter centers the content on both axes.
	AnchorCenter
)

func (a Anchor) String() string {
	switch a {
	case AnchorBottomLeft:
		return "bottom-left"
	case AnchorCenter:
		return "center"
	default:
		return fmt.Sprintf("Anchor(%d)", int(a))
	}
}

// Fit is the outcome of placing content into a rectangle: the uniform scale
// factor, the origin of the scaled box and its size.
type Fit struct {
	Scale  float64
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Empty reports whether nothing should be drawn.
func (f Fit) Empty() bool {
	return f.Scale <= 0
}

// FitContent scales a naturalWidth x naturalHeight box uniformly so it fits
// into rect and anchors it according to anchor.
func FitContent(rect Rectangle, naturalWidth, naturalHeight float64, anchor Anchor) Fit {
	if rect.Empty() || naturalWidth <= 0 || naturalHeight <= 0 {
		return Fit{}
	}
	if math.IsInf(naturalWidth, 0) || math.IsInf(naturalHeight, 0) || math.IsNaN(naturalWidth) || math.IsNaN(naturalHeight) {
		return Fit{}
	}

	scale := math.Min(rect.Width()/naturalWidth, rect.Height()/naturalHeight)
	f := Fit{
		Scale:  scale,
		X:      rect.Left,
		Y:      rect.Bottom,
		Width:  naturalWidth * scale,
		Height: naturalHeight * scale,
	}
	if anchor == AnchorCenter {
		f.X += (rect.Width() - f.Width) / 2
		f.Y += (rect.Height() - f.Height) / 2
	}
	return f
}
