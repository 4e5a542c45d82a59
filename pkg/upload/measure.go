package upload

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// Measurer reports the pixel dimensions of a file.
type Measurer interface {
	Dimensions(f *File) (width, height int, err error)
}

// MeasurerFunc adapts a function to Measurer.
type MeasurerFunc func(f *File) (int, int, error)

// Dimensions calls fn.
func (fn MeasurerFunc) Dimensions(f *File) (int, int, error) { return fn(f) }

// ImageMeasurer reads dimensions from the image header without decoding pixels.
type ImageMeasurer struct{}

// Dimensions implements Measurer.
func (ImageMeasurer) Dimensions(f *File) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image header of %s: %w", f.Name, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Constraints are the minimum accepted dimensions. Zero disables a bound.
type Constraints struct {
	MinWidth  int
	MinHeight int
}

func (c Constraints) enabled() bool {
	return c.MinWidth > 0 || c.MinHeight > 0
}

func (c Constraints) allows(w, h int) bool {
	return w >= c.MinWidth && h >= c.MinHeight
}
