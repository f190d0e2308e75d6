// Package facematch provides face box geometry shared by the pipeline, the engines and storage.
package facematch

import "fmt"

// Box is a detected face region in pixel coordinates (x, y, width, height).
// Detectors may report boxes that extend outside the image bounds.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// String returns the box as "x,y wxh".
func (b Box) String() string {
	return fmt.Sprintf("%d,%d %dx%d", b.X, b.Y, b.W, b.H)
}
