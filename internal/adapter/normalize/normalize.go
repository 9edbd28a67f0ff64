// Package normalize derives the fixed-size square crop fed to the embedding
// model. Live preview and search both call Normalize, so identical frames
// always produce identical crops; the reference embeddings were computed
// under the same geometry.
package normalize

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"visearch/internal/domain"
	"visearch/internal/port"
)

const (
	// OutputSize is the side of the normalized square, fixed by the model input.
	OutputSize = 224

	// CropRatio is the crop side relative to the shorter frame side.
	CropRatio = 0.5
)

// Kernel is the resampling kernel. Bilinear matches the smoothing of the
// capture surface the reference set was produced with.
var Kernel = draw.BiLinear

// Crop is the source rectangle of a normalization, in source pixels.
// Coordinates may be fractional.
type Crop struct {
	X    float64
	Y    float64
	Size float64
}

// Max returns the exclusive bottom-right corner of the crop.
func (c Crop) Max() (x, y float64) {
	return c.X + c.Size, c.Y + c.Size
}

// CropRect returns the centered square crop for a w x h frame.
func CropRect(w, h int) (Crop, error) {
	if w <= 0 || h <= 0 {
		return Crop{}, &domain.InvalidFrameError{
			Width:  w,
			Height: h,
			Reason: fmt.Sprintf("frame size %dx%d has no area", w, h),
		}
	}

	size := float64(min(w, h)) * CropRatio
	return Crop{
		X:    (float64(w) - size) / 2,
		Y:    (float64(h) - size) / 2,
		Size: size,
	}, nil
}

// Normalize crops src around its center and resamples the crop to
// OutputSize x OutputSize. No color processing is applied.
func Normalize(src port.PixelBuffer) (*image.RGBA, error) {
	crop, err := CropRect(src.Width(), src.Height())
	if err != nil {
		return nil, err
	}

	img := asImage(src)
	b := img.Bounds()

	x1, y1 := crop.Max()
	sr := image.Rect(
		b.Min.X+int(math.Floor(crop.X)),
		b.Min.Y+int(math.Floor(crop.Y)),
		b.Min.X+int(math.Ceil(x1)),
		b.Min.Y+int(math.Ceil(y1)),
	).Intersect(b)

	// s2d maps source coordinates onto the destination square.
	scale := OutputSize / crop.Size
	s2d := f64.Aff3{
		scale, 0, -(float64(b.Min.X) + crop.X) * scale,
		0, scale, -(float64(b.Min.Y) + crop.Y) * scale,
	}

	dst := image.NewRGBA(image.Rect(0, 0, OutputSize, OutputSize))
	Kernel.Transform(dst, s2d, img, sr, draw.Src, nil)
	return dst, nil
}

// asImage returns the image behind src, or a read-only view of it.
func asImage(src port.PixelBuffer) image.Image {
	if v, ok := src.(interface{ Image() image.Image }); ok {
		return v.Image()
	}
	return bufferImage{src}
}

type bufferImage struct {
	buf port.PixelBuffer
}

func (i bufferImage) ColorModel() color.Model { return color.NRGBAModel }

func (i bufferImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, i.buf.Width(), i.buf.Height())
}

func (i bufferImage) At(x, y int) color.Color {
	if !(image.Point{x, y}).In(i.Bounds()) {
		return color.NRGBA{}
	}
	r, g, b, a := i.buf.RGBA(x, y)
	return color.NRGBA{R: r, G: g, B: b, A: a}
}
