package facematch

import "image"

// Area returns w*h, or 0 for degenerate boxes.
func (b Box) Area() int {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

// TooSmall reports whether either side is below minSize pixels.
func (b Box) TooSmall(minSize int) bool {
	return b.W < minSize || b.H < minSize
}

// Clip intersects the box with an image of the given bounds.
// x1=max(minX,x), y1=max(minY,y), x2=min(maxX,x+w), y2=min(maxY,y+h).
// The second return value is false when nothing of the box lies inside the image.
func (b Box) Clip(bounds image.Rectangle) (image.Rectangle, bool) {
	x1 := max(bounds.Min.X, bounds.Min.X+b.X)
	y1 := max(bounds.Min.Y, bounds.Min.Y+b.Y)
	x2 := min(bounds.Max.X, bounds.Min.X+b.X+b.W)
	y2 := min(bounds.Max.Y, bounds.Min.Y+b.Y+b.H)

	if x2 <= x1 || y2 <= y1 {
		return image.Rectangle{}, false
	}
	return image.Rect(x1, y1, x2, y2), true
}

// Corners converts the box to [x1, y1, x2, y2] corner format.
func (b Box) Corners() []float64 {
	return []float64{
		float64(b.X),
		float64(b.Y),
		float64(b.X + b.W),
		float64(b.Y + b.H),
	}
}

// FromCorners converts [x1, y1, x2, y2] (as returned by detectors) to a Box.
// Coordinates are truncated to whole pixels. Returns false for malformed input.
func FromCorners(bbox []float64) (Box, bool) {
	if len(bbox) != 4 {
		return Box{}, false
	}
	x1, y1 := int(bbox[0]), int(bbox[1])
	x2, y2 := int(bbox[2]), int(bbox[3])
	return Box{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}, true
}

// Largest returns the index of the box with the largest area.
// Ties keep the earliest box. Returns -1 for an empty slice.
func Largest(boxes []Box) int {
	best := -1
	bestArea := -1
	for i, b := range boxes {
		if a := b.Area(); a > bestArea {
			best = i
			bestArea = a
		}
	}
	return best
}
