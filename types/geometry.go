// Package types contains the common types shared by the packages of
// avhwdecoder.
package types

import (
	"fmt"
)

// Size is the size of a decoded frame (or of a decode target) in pixels.
type Size struct {
	Width  int
	Height int
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

func (s Size) IsZero() bool {
	return s.Width == 0 && s.Height == 0
}

// Rect is a rectangle within a frame, e.g. the visible part of a decoded
// picture.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// RectFromSize returns the rectangle covering a whole frame of the given size.
func RectFromSize(s Size) Rect {
	return Rect{Width: s.Width, Height: s.Height}
}
