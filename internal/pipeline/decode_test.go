package pipeline

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDecodePNG(t *testing.T) {
	img, err := Decode(encodePNG(t, 64, 48))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("bounds = %v, want 64x48", b)
	}
}

func TestDecodeJPEG(t *testing.T) {
	var buf bytes.Buffer
	src := imaging.New(32, 32, color.White)
	if err := imaging.Encode(&buf, src, imaging.JPEG); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}

	img, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Errorf("bounds = %v, want 32x32", b)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"text", []byte("definitely not an image")},
		{"truncated png header", encodePNG(t, 10, 10)[:16]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if !errors.Is(err, ErrUndecodable) {
				t.Errorf("Decode() error = %v, want ErrUndecodable", err)
			}
		})
	}
}
