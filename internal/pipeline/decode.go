package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrUndecodable is returned when the bytes are not a supported image.
var ErrUndecodable = errors.New("image could not be decoded")

// Decode decodes JPEG, PNG, GIF, BMP or WebP data, applying the EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrUndecodable)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUndecodable, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: zero-sized image", ErrUndecodable)
	}

	return img, nil
}
