package model

import (
	"image"
	"image/color"
	"testing"
)

func TestNewPixelBufferRejectsZeroArea(t *testing.T) {
	for _, c := range [][2]int{{0, 0}, {0, 10}, {10, 0}, {-1, 5}} {
		if _, err := NewPixelBuffer(c[0], c[1]); err != ErrEmptyImage {
			t.Errorf("NewPixelBuffer(%d,%d): expected ErrEmptyImage, got %v", c[0], c[1], err)
		}
	}
}

func TestFromImageRoundTrip(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	src.SetRGBA(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	src.SetRGBA(2, 1, color.RGBA{R: 200, G: 150, B: 100, A: 255})

	buf, err := FromImage(src)
	if err != nil {
		t.Fatalf("FromImage: %v", err)
	}
	if buf.Width != 3 || buf.Height != 2 {
		t.Fatalf("size: got %dx%d", buf.Width, buf.Height)
	}
	if r, g, b, _ := buf.RGBA(0, 0); r != 10 || g != 20 || b != 30 {
		t.Errorf("pixel (0,0): got (%d,%d,%d)", r, g, b)
	}

	out := buf.ToRGBA()
	if got := out.RGBAAt(2, 1); got.R != 200 || got.G != 150 || got.B != 100 {
		t.Errorf("round trip pixel (2,1): got %+v", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	buf, err := NewPixelBuffer(2, 2)
	if err != nil {
		t.Fatalf("NewPixelBuffer: %v", err)
	}
	buf.SetRGBA(0, 0, 1, 2, 3, 4)

	clone := buf.Clone()
	clone.SetRGBA(0, 0, 9, 9, 9, 9)

	if r, _, _, _ := buf.RGBA(0, 0); r != 1 {
		t.Error("mutating the clone must not affect the original")
	}
}
