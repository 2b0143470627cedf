package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

// IconSize is the edge length of the square icons served for items.
const IconSize = 128

// MaxUploadBytes caps accepted uploads.
const MaxUploadBytes = 5 << 20

// allowedMIME lists the accepted input formats, detected from content.
var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// ErrUnsupportedFormat is returned for uploads that are neither JPEG nor PNG.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Icon is a processed item icon.
type Icon struct {
	Data []byte
	MIME string
}

// ProcessIcon reads an uploaded image, checks its format by sniffing the bytes,
// fits it into an IconSize square on a transparent canvas and encodes it as PNG.
func ProcessIcon(r io.Reader) (*Icon, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, fmt.Errorf("image larger than %d bytes", MaxUploadBytes)
	}

	detected := http.DetectContentType(data)
	if !allowedMIME[detected] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, detected)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, fitSquare(src, IconSize)); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return &Icon{Data: buf.Bytes(), MIME: "image/png"}, nil
}

// fitSquare scales src to fit inside a size×size canvas, keeping its aspect
// ratio and centering it. Smaller images are centered without upscaling.
func fitSquare(src image.Image, size int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > size || h > size {
		if w >= h {
			h = max(1, h*size/w)
			w = size
		} else {
			w = max(1, w*size/h)
			h = size
		}
	}

	x0 := (size - w) / 2
	y0 := (size - h) / 2
	draw.CatmullRom.Scale(dst, image.Rect(x0, y0, x0+w, y0+h), src, b, draw.Over, nil)
	return dst
}
