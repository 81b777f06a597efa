package kitti

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/banshee-data/coda-infos/internal/geometry"
)

// ReadImageShape decodes only the image header and returns its size.
func ReadImageShape(r io.Reader) (geometry.ImageShape, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return geometry.ImageShape{}, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return geometry.ImageShape{}, fmt.Errorf("%s image has empty size %dx%d", format, cfg.Width, cfg.Height)
	}
	return geometry.ImageShape{Height: cfg.Height, Width: cfg.Width}, nil
}
