package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	apperrors "github.com/thecardroom/nftgen/internal/platform/errors"
	"github.com/thecardroom/nftgen/internal/services/drop/traits"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/thecardroom/nftgen/internal/services/drop/catalog")

// Load reads the drop definition at path and every file it references,
// checks all catalog invariants, and returns the resolved catalog.
//
// Load does not stop at the first problem: every violation is collected and
// returned together as a CATALOG_INVALID error wrapping *ValidationError.
func Load(ctx context.Context, path string) (*Catalog, error) {
	_, span := tracer.Start(ctx, "catalog.load")
	defer span.End()

	if strings.TrimSpace(path) == "" {
		return nil, apperrors.New(apperrors.CodeCatalogInvalid, "drop definition path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCatalogInvalid, "resolve drop definition path", err)
	}

	l := &loader{
		dir:    filepath.Dir(abs),
		layers: make(map[string]*Layer),
		dims:   make(map[string]dimResult),
	}
	var def dropFile
	if err := l.readJSON(abs, &def); err != nil {
		return nil, l.fail(abs)
	}

	cat := l.build(abs, def)
	span.SetAttributes(
		attribute.String("drop.name", cat.DropName),
		attribute.String("drop.mode", string(cat.Mode())),
		attribute.Int("catalog.violations", len(l.violations)),
	)
	if len(l.violations) > 0 {
		return nil, l.fail(abs)
	}
	return cat, nil
}

type dimResult struct {
	size Size
	err  error
}

// loader accumulates violations while resolving a drop definition. Layer
// files shared between layer sets are parsed once.
type loader struct {
	dir        string
	violations []Violation
	layers     map[string]*Layer
	dims       map[string]dimResult
}

func (l *loader) addf(file, format string, args ...any) {
	l.violations = append(l.violations, Violation{File: l.rel(file), Message: fmt.Sprintf(format, args...)})
}

func (l *loader) fail(path string) error {
	return apperrors.WrapWithMetadata(
		apperrors.CodeCatalogInvalid,
		fmt.Sprintf("invalid catalog %s (%d violation(s))", l.rel(path), len(l.violations)),
		map[string]string{"path": path},
		&ValidationError{Violations: l.violations},
	)
}

func (l *loader) rel(path string) string {
	if r, err := filepath.Rel(l.dir, path); err == nil && !strings.HasPrefix(r, "..") {
		return r
	}
	return path
}

func (l *loader) resolve(ref string) string {
	if filepath.IsAbs(ref) {
		return filepath.Clean(ref)
	}
	return filepath.Join(l.dir, ref)
}

// readJSON decodes path into value, recording a violation on failure.
func (l *loader) readJSON(path string, value any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.addf(path, "file not found")
		} else {
			l.addf(path, "read: %v", err)
		}
		return err
	}
	if err := json.Unmarshal(data, value); err != nil {
		l.addf(path, "decode: %v", err)
		return err
	}
	return nil
}

func (l *loader) build(path string, def dropFile) *Catalog {
	cat := &Catalog{
		Path:         path,
		Dir:          l.dir,
		Series:       def.Series.Text(),
		DropName:     strings.TrimSpace(def.DropName),
		InitNFTID:    def.InitNFTID,
		Description:  strings.TrimSpace(def.Description),
		Total:        def.Total,
		OutputFormat: strings.ToLower(strings.TrimPrefix(strings.TrimSpace(def.OutputFormat), ".")),
	}
	if cat.OutputFormat == "" {
		cat.OutputFormat = DefaultOutputFormat
	}

	if cat.DropName == "" {
		l.addf(path, "drop-name is required")
	} else if strings.ContainsAny(cat.DropName, `/\`) {
		l.addf(path, "drop-name %q must not contain path separators", cat.DropName)
	}
	if def.InitNFTID < 0 {
		l.addf(path, "init-nft-id must not be negative")
	}
	var err error
	if cat.TokenName, err = ParseNameTemplate("token-name", def.TokenName); err != nil {
		l.addf(path, "%v", err)
	}
	if cat.NFTName, err = ParseNameTemplate("nft-name", def.NFTName); err != nil {
		l.addf(path, "%v", err)
	}

	switch {
	case len(def.Cards) > 0 && len(def.LayerSets) > 0:
		l.addf(path, "declare either cards or layer-sets, not both")
	case len(def.Cards) > 0:
		cat.Cards = l.buildCards(path, def.Cards)
	case len(def.LayerSets) > 0:
		l.buildRandomDrop(path, def, cat)
	default:
		l.addf(path, "one of cards or layer-sets is required")
	}
	l.checkTokenVaries(path, cat)
	return cat
}

// checkTokenVaries rejects a token-name template that would render the same
// name for two assets of the drop.
func (l *loader) checkTokenVaries(path string, cat *Catalog) {
	if cat.TokenName == nil {
		return
	}
	same := func(a, b NameFields) bool {
		x, errX := cat.TokenName.Render(a)
		y, errY := cat.TokenName.Render(b)
		return errX == nil && errY == nil && x == y
	}
	if cat.Mode() == ModeRandomDrop {
		first := NameFields{Series: cat.Series, Number: 1, Edition: 1, Editions: 1}
		second := first
		second.Number = 2
		if cat.Total > 1 && same(first, second) {
			l.addf(path, "token-name must vary with .Number")
		}
		return
	}

	first := NameFields{Series: cat.Series, CardID: "1", Edition: 1, Editions: 2}
	multiple := false
	for _, c := range cat.Cards {
		multiple = multiple || c.Count > 1
	}
	if multiple {
		second := first
		second.Edition = 2
		if same(first, second) {
			l.addf(path, "token-name must vary with .Edition")
		}
	}
	if len(cat.Cards) > 1 {
		second := first
		second.CardID = "2"
		if same(first, second) {
			l.addf(path, "token-name must vary with .CardID")
		}
	}
}

func (l *loader) buildCards(path string, cards []cardFile) []Card {
	out := make([]Card, 0, len(cards))
	seen := make(map[string]bool, len(cards))
	for i, c := range cards {
		id := c.ID.Text()
		if c.ID.Kind() == 0 || strings.TrimSpace(id) == "" {
			l.addf(path, "cards[%d]: id is required", i)
		} else if seen[id] {
			l.addf(path, "cards[%d]: duplicate card id %q", i, id)
		}
		seen[id] = true
		if c.Count <= 0 {
			l.addf(path, "cards[%d]: count must be positive, got %d", i, c.Count)
		}
		l.checkProperties(path, fmt.Sprintf("cards[%d]", i), c.Properties)
		props := c.Properties
		if props == nil {
			props = traits.Properties{}
		}
		out = append(out, Card{
			ID:          id,
			Count:       c.Count,
			Image:       strings.TrimSpace(c.Image),
			Description: strings.TrimSpace(c.Description),
			Properties:  props,
		})
	}
	return out
}

func (l *loader) buildRandomDrop(path string, def dropFile, cat *Catalog) {
	if def.Total <= 0 {
		l.addf(path, "total must be positive, got %d", def.Total)
	}
	switch {
	case def.OutputWidth == nil && def.OutputHeight == nil:
	case def.OutputWidth == nil || def.OutputHeight == nil:
		l.addf(path, "output-width and output-height must be set together")
	case *def.OutputWidth <= 0 || *def.OutputHeight <= 0:
		l.addf(path, "output size must be positive, got %dx%d", *def.OutputWidth, *def.OutputHeight)
	default:
		cat.OutputSize = &Size{Width: *def.OutputWidth, Height: *def.OutputHeight}
	}
	switch cat.OutputFormat {
	case "jpg", "jpeg", "png", "gif", "bmp", "tif", "tiff":
	default:
		l.addf(path, "unsupported output-format %q", cat.OutputFormat)
	}

	sum := decimal.Zero
	names := make(map[string]bool, len(def.LayerSets))
	for i, ref := range def.LayerSets {
		if err := checkWeight(ref.Weight); err != nil {
			l.addf(path, "layer-sets[%d]: %v", i, err)
		}
		sum = sum.Add(ref.Weight)
		if strings.TrimSpace(ref.File) == "" {
			l.addf(path, "layer-sets[%d]: file is required", i)
			continue
		}
		set, ok := l.buildLayerSet(l.resolve(ref.File), ref.Weight)
		if !ok {
			continue
		}
		if names[set.Name] {
			l.addf(set.File, "duplicate layer set name %q", set.Name)
		}
		names[set.Name] = true
		cat.LayerSets = append(cat.LayerSets, set)
	}
	if !weightSumOK(sum) {
		l.addf(path, "layer set weights sum to %s, must equal 100", sum.String())
	}
}

func (l *loader) buildLayerSet(file string, weight decimal.Decimal) (LayerSet, bool) {
	var raw layerSetFile
	if err := l.readJSON(file, &raw); err != nil {
		return LayerSet{}, false
	}
	set := LayerSet{
		Name:   strings.TrimSpace(raw.Name),
		File:   file,
		Weight: weight.InexactFloat64(),
	}
	if set.Name == "" {
		l.addf(file, "name is required")
	}
	if len(raw.Layers) == 0 {
		l.addf(file, "at least one layer is required")
	}
	for _, ref := range raw.Layers {
		layer := l.buildLayer(l.resolve(ref))
		if layer == nil {
			continue
		}
		set.Layers = append(set.Layers, *layer)
	}
	return set, set.Name != ""
}

func (l *loader) buildLayer(file string) *Layer {
	if cached, ok := l.layers[file]; ok {
		return cached
	}
	var raw layerFile
	if err := l.readJSON(file, &raw); err != nil {
		l.layers[file] = nil
		return nil
	}
	layer := &Layer{
		Name:   strings.TrimSpace(raw.Name),
		File:   file,
		Width:  raw.Width,
		Height: raw.Height,
	}
	if layer.Name == "" {
		layer.Name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	}
	if raw.Width <= 0 || raw.Height <= 0 {
		l.addf(file, "width and height must be positive, got %dx%d", raw.Width, raw.Height)
	}
	if len(raw.Images) == 0 {
		l.addf(file, "at least one image option is required")
	}

	sum := decimal.Zero
	for i, entry := range raw.Images {
		if err := checkWeight(entry.Weight); err != nil {
			l.addf(file, "images[%d]: %v", i, err)
		}
		sum = sum.Add(entry.Weight)
		opt := ImageOption{
			Weight:     entry.Weight.InexactFloat64(),
			OffsetX:    entry.OffsetX,
			OffsetY:    entry.OffsetY,
			Properties: entry.Properties,
		}
		if opt.Properties == nil {
			opt.Properties = traits.Properties{}
		}
		l.checkProperties(file, fmt.Sprintf("images[%d]", i), opt.Properties)
		if entry.Image != nil && strings.TrimSpace(*entry.Image) != "" {
			opt.Image = l.resolve(*entry.Image)
			l.checkDimensions(file, i, opt.Image, raw.Width, raw.Height)
		}
		layer.Options = append(layer.Options, opt)
	}
	if len(raw.Images) > 0 && !weightSumOK(sum) {
		l.addf(file, "%s weight: %s, must equal 100", layer.Name, sum.String())
	}
	l.layers[file] = layer
	return layer
}

func (l *loader) checkDimensions(file string, index int, imagePath string, width, height int) {
	res, ok := l.dims[imagePath]
	if !ok {
		res.size, res.err = decodeSize(imagePath)
		l.dims[imagePath] = res
	}
	if res.err != nil {
		l.addf(file, "images[%d]: %v", index, res.err)
		return
	}
	if res.size.Width != width || res.size.Height != height {
		l.addf(file, "images[%d]: %s is %dx%d, layer declares %dx%d",
			index, l.rel(imagePath), res.size.Width, res.size.Height, width, height)
	}
}

func (l *loader) checkProperties(file, where string, props traits.Properties) {
	for _, key := range props.Keys() {
		if strings.TrimSpace(key) == "" {
			l.addf(file, "%s: empty property key", where)
		} else if reservedKey(key) {
			l.addf(file, "%s: property %q is reserved for metadata", where, key)
		}
	}
}

// decodeSize reads only the image header.
func decodeSize(path string) (Size, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Size{}, fmt.Errorf("image %s not found", filepath.Base(path))
		}
		return Size{}, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Size{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return Size{Width: cfg.Width, Height: cfg.Height}, nil
}
