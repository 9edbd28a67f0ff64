// Package pixels adapts concrete capture surfaces to port.PixelBuffer.
package pixels

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ImageBuffer wraps a decoded image.
type ImageBuffer struct {
	img image.Image
}

// FromImage adapts img. Its bounds may have a non-zero origin.
func FromImage(img image.Image) *ImageBuffer {
	return &ImageBuffer{img: img}
}

func (b *ImageBuffer) Width() int  { return b.img.Bounds().Dx() }
func (b *ImageBuffer) Height() int { return b.img.Bounds().Dy() }

func (b *ImageBuffer) RGBA(x, y int) (r, g, bl, a uint8) {
	min := b.img.Bounds().Min
	c := color.NRGBAModel.Convert(b.img.At(min.X+x, min.Y+y)).(color.NRGBA)
	return c.R, c.G, c.B, c.A
}

// Image exposes the wrapped image so resampling can read it directly.
func (b *ImageBuffer) Image() image.Image { return b.img }

// RGBABuffer is a raw canvas: row-major, 4 non-premultiplied bytes per pixel.
type RGBABuffer struct {
	width  int
	height int
	pix    []byte
}

// FromRGBA adapts raw canvas bytes. len(pix) must be w*h*4.
func FromRGBA(w, h int, pix []byte) (*RGBABuffer, error) {
	if w < 0 || h < 0 {
		return nil, fmt.Errorf("negative size %dx%d", w, h)
	}
	if len(pix) != w*h*4 {
		return nil, fmt.Errorf("pixel data has %d bytes, want %d for %dx%d", len(pix), w*h*4, w, h)
	}
	return &RGBABuffer{width: w, height: h, pix: pix}, nil
}

func (b *RGBABuffer) Width() int  { return b.width }
func (b *RGBABuffer) Height() int { return b.height }

func (b *RGBABuffer) RGBA(x, y int) (r, g, bl, a uint8) {
	i := (y*b.width + x) * 4
	return b.pix[i], b.pix[i+1], b.pix[i+2], b.pix[i+3]
}

// Image returns a view of the buffer as an *image.NRGBA without copying.
func (b *RGBABuffer) Image() image.Image {
	return &image.NRGBA{
		Pix:    b.pix,
		Stride: b.width * 4,
		Rect:   image.Rect(0, 0, b.width, b.height),
	}
}

// Empty is a zero-sized buffer, reported by streams before their first frame.
type Empty struct{}

func (Empty) Width() int { return 0 }

func (Empty) Height() int { return 0 }

func (Empty) RGBA(x, y int) (r, g, b, a uint8) { return 0, 0, 0, 0 }

// Decode decodes a still image (JPEG, PNG, GIF, BMP, WebP).
func Decode(r io.Reader) (*ImageBuffer, string, error) {
	img, format, err := image.Decode(bufio.NewReader(r))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return FromImage(img), format, nil
}

// DecodeFile decodes the image stored at path.
func DecodeFile(path string) (*ImageBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, _, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return buf, nil
}
