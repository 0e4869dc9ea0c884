package compose

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	apperrors "github.com/thecardroom/nftgen/internal/platform/errors"
)

// DefaultConvertBinary is the ImageMagick entry point looked up on PATH.
const DefaultConvertBinary = "convert"

// ConvertCompositor shells out to ImageMagick.
type ConvertCompositor struct {
	Binary string
}

// NewConvertCompositor returns a compositor running binary, or
// DefaultConvertBinary when binary is empty.
func NewConvertCompositor(binary string) *ConvertCompositor {
	if binary == "" {
		binary = DefaultConvertBinary
	}
	return &ConvertCompositor{Binary: binary}
}

// Compose implements Compositor.
func (c *ConvertCompositor) Compose(ctx context.Context, req Request) error {
	if err := validate(req); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CodeCompositionFailed, "create output dir", err)
	}

	canvas, err := canvasSize(req.visible())
	if err != nil {
		return apperrors.WrapWithMetadata(apperrors.CodeCompositionFailed, "read base layer",
			map[string]string{"layer": req.visible()[0].Path}, err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Binary, ConvertArgs(canvas, req)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.WrapWithMetadata(apperrors.CodeCompositionFailed,
			fmt.Sprintf("%s failed: %s", c.Binary, strings.TrimSpace(stderr.String())),
			map[string]string{"output": req.Output}, err)
	}
	return ensureOutput(req.Output)
}

// ConvertArgs builds the argument list for one composite: a transparent
// canvas, then every layer with its geometry and -composite, then an
// optional forced resize and the output path.
func ConvertArgs(canvas Size, req Request) []string {
	layers := req.visible()
	if len(layers) == 0 {
		return nil
	}
	args := []string{"-size", fmt.Sprintf("%dx%d", canvas.Width, canvas.Height), "xc:none"}
	for _, l := range layers {
		args = append(args, l.Path, "-geometry", Geometry(l.OffsetX, l.OffsetY), "-composite")
	}
	if req.Resize != nil {
		args = append(args, "-resize", fmt.Sprintf("%dx%d!", req.Resize.Width, req.Resize.Height))
	}
	return append(args, req.Output)
}

// Geometry formats an offset as an ImageMagick geometry string, e.g. "+4-2".
func Geometry(x, y int) string {
	return fmt.Sprintf("%+d%+d", x, y)
}
