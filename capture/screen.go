// Package capture grabs screen frames for the realtime video channel.
package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/kbinani/screenshot"
)

const jpegQuality = 80

// Screen captures the primary display and encodes each frame as JPEG.
type Screen struct {
	bounds image.Rectangle
}

// NewScreen binds to the primary display.
func NewScreen() (*Screen, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return nil, fmt.Errorf("no active displays")
	}
	return &Screen{bounds: screenshot.GetDisplayBounds(0)}, nil
}

// Frame grabs one frame and returns it as JPEG bytes.
func (s *Screen) Frame() ([]byte, error) {
	img, err := screenshot.CaptureRect(s.bounds)
	if err != nil {
		return nil, fmt.Errorf("failed to capture screen: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
