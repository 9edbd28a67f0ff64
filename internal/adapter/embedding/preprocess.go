package embedding

import (
	"fmt"
	"image"
	"strings"

	"visearch/internal/adapter/normalize"
)

// InputSize is the side of the square image the backbone accepts.
const InputSize = normalize.OutputSize

// Layout is the memory order of the input tensor.
type Layout int

const (
	NHWC Layout = iota
	NCHW
)

func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(s) {
	case "", "nhwc":
		return NHWC, nil
	case "nchw":
		return NCHW, nil
	default:
		return 0, fmt.Errorf("unknown tensor layout: %s", s)
	}
}

func (l Layout) String() string {
	if l == NCHW {
		return "nchw"
	}
	return "nhwc"
}

// Shape returns the input tensor shape for a batch of one.
func (l Layout) Shape() []int64 {
	if l == NCHW {
		return []int64{1, 3, InputSize, InputSize}
	}
	return []int64{1, InputSize, InputSize, 3}
}

func checkInput(img *image.RGBA) error {
	if img == nil {
		return fmt.Errorf("nil image")
	}
	b := img.Bounds()
	if b.Dx() != InputSize || b.Dy() != InputSize {
		return fmt.Errorf("input must be %dx%d, got %dx%d", InputSize, InputSize, b.Dx(), b.Dy())
	}
	return nil
}

// Preprocess scales RGB samples to [-1, 1] as MobileNetV2 expects and drops
// alpha. The image must be InputSize square.
func Preprocess(img *image.RGBA, layout Layout) ([]float32, error) {
	if err := checkInput(img); err != nil {
		return nil, err
	}

	const plane = InputSize * InputSize
	out := make([]float32, 3*plane)
	b := img.Bounds()

	for y := 0; y < InputSize; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < InputSize; x++ {
			p := row[x*4 : x*4+3]
			for c := 0; c < 3; c++ {
				v := float32(p[c])/127.5 - 1
				if layout == NCHW {
					out[c*plane+y*InputSize+x] = v
				} else {
					out[(y*InputSize+x)*3+c] = v
				}
			}
		}
	}
	return out, nil
}
