// Package compose stacks layer images into a finished asset image.
//
// Generators depend only on the Compositor contract: the canvas is a
// transparent image the size of the first visible layer, every layer
// (the first included) is drawn bottom to top at its offset, the result is
// optionally resized, and the output file must exist when Compose returns
// nil. Two backends ship here, an
// in-process one built on imaging and one that shells out to ImageMagick.
package compose

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"

	apperrors "github.com/thecardroom/nftgen/internal/platform/errors"
)

// Layer is one image placed on the canvas. An empty Path is skipped.
type Layer struct {
	Path    string
	OffsetX int
	OffsetY int
}

// Size is a target width and height in pixels.
type Size struct {
	Width  int
	Height int
}

// Request describes one composite.
type Request struct {
	// Layers are ordered bottom to top. The first non-empty layer sets the
	// canvas size; its offset still applies.
	Layers []Layer
	// Resize, when set, scales the merged image before it is written.
	Resize *Size
	// Output is the destination file; its extension selects the format.
	Output string
}

// Compositor renders a Request to disk.
type Compositor interface {
	Compose(ctx context.Context, req Request) error
}

// visible drops skipped layers.
func (r Request) visible() []Layer {
	out := make([]Layer, 0, len(r.Layers))
	for _, l := range r.Layers {
		if l.Path != "" {
			out = append(out, l)
		}
	}
	return out
}

func validate(req Request) error {
	if req.Output == "" {
		return apperrors.New(apperrors.CodeCompositionFailed, "output path is required")
	}
	if req.Resize != nil && (req.Resize.Width <= 0 || req.Resize.Height <= 0) {
		return apperrors.New(apperrors.CodeCompositionFailed,
			fmt.Sprintf("invalid resize %dx%d", req.Resize.Width, req.Resize.Height))
	}
	if len(req.visible()) == 0 {
		return apperrors.New(apperrors.CodeCompositionFailed, "every layer is transparent, nothing to composite")
	}
	return nil
}

// canvasSize reads the dimensions of the first visible layer without
// decoding its pixels.
func canvasSize(layers []Layer) (Size, error) {
	f, err := os.Open(layers[0].Path)
	if err != nil {
		return Size{}, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Size{}, fmt.Errorf("decode %s: %w", layers[0].Path, err)
	}
	return Size{Width: cfg.Width, Height: cfg.Height}, nil
}

// ensureOutput fails when the renderer returned without producing a file.
func ensureOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperrors.WithMetadata(apperrors.CodeCompositionFailed,
				fmt.Sprintf("file is missing: %s", path), map[string]string{"output": path})
		}
		return apperrors.Wrap(apperrors.CodeCompositionFailed, "stat output", err)
	}
	if info.Size() == 0 {
		return apperrors.WithMetadata(apperrors.CodeCompositionFailed,
			fmt.Sprintf("file is empty: %s", path), map[string]string{"output": path})
	}
	return nil
}
