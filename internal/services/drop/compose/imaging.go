package compose

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	apperrors "github.com/thecardroom/nftgen/internal/platform/errors"
)

// ImagingCompositor composites in process with github.com/disintegration/imaging.
type ImagingCompositor struct {
	cache  *ImageCache
	filter imaging.ResampleFilter
}

// NewImagingCompositor returns a compositor that decodes sources through
// cache. A nil cache decodes every source on every call.
func NewImagingCompositor(cache *ImageCache) *ImagingCompositor {
	return &ImagingCompositor{cache: cache, filter: imaging.Lanczos}
}

// Compose implements Compositor.
func (c *ImagingCompositor) Compose(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(req); err != nil {
		return err
	}

	layers := req.visible()
	var canvas *image.NRGBA
	for _, layer := range layers {
		src, err := c.open(layer.Path)
		if err != nil {
			return apperrors.WrapWithMetadata(apperrors.CodeCompositionFailed,
				fmt.Sprintf("open layer %s", filepath.Base(layer.Path)),
				map[string]string{"layer": layer.Path}, err)
		}
		if canvas == nil {
			b := src.Bounds()
			canvas = imaging.New(b.Dx(), b.Dy(), image.Transparent)
		}
		canvas = imaging.Overlay(canvas, src, image.Pt(layer.OffsetX, layer.OffsetY), 1.0)
	}
	if req.Resize != nil {
		canvas = imaging.Resize(canvas, req.Resize.Width, req.Resize.Height, c.filter)
	}

	if err := save(canvas, req.Output); err != nil {
		return apperrors.Wrap(apperrors.CodeCompositionFailed, "write composite", err)
	}
	return ensureOutput(req.Output)
}

func (c *ImagingCompositor) open(path string) (image.Image, error) {
	if c.cache != nil {
		if img, ok := c.cache.Get(path); ok {
			return img, nil
		}
	}
	img, err := imaging.Open(path)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Set(path, img)
	}
	return img, nil
}

// save encodes img next to path and renames it into place so a crash never
// leaves a truncated image under the final name.
func save(img image.Image, path string) error {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := imaging.Encode(tmp, img, format, imaging.JPEGQuality(95)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
