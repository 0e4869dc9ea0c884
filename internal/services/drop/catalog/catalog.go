// Package catalog loads and validates drop definitions: the layer sets,
// layers and image options a random drop samples from, or the fixed card
// list a card-edition drop enumerates.
//
// A Catalog is built once per run and is read-only afterwards.
package catalog

import (
	"github.com/thecardroom/nftgen/internal/services/drop/traits"
)

// Mode selects the generation strategy for a drop.
type Mode string

const (
	// ModeRandomDrop samples weighted trait combinations from layer sets.
	ModeRandomDrop Mode = "random-drop"
	// ModeCardEdition enumerates declared cards and shuffles their editions.
	ModeCardEdition Mode = "card-edition"
)

// DefaultOutputFormat is the image extension used when a drop does not name one.
const DefaultOutputFormat = "jpg"

// WeightTolerance bounds how far a weight sum may stray from 100.
const WeightTolerance = 1e-4

// ReservedKeys are metadata fields owned by the writer; traits may not use them.
var ReservedKeys = []string{"name", "image", "description"}

// Size is a pixel width and height.
type Size struct {
	Width  int
	Height int
}

// Catalog is a fully resolved and validated drop definition.
type Catalog struct {
	// Path is the absolute path of the drop definition file; Dir is its
	// directory, against which relative references were resolved.
	Path string
	Dir  string

	Series      string
	DropName    string
	InitNFTID   int64
	Description string
	TokenName   *NameTemplate
	NFTName     *NameTemplate

	// Random-drop fields.
	Total        int
	OutputSize   *Size
	OutputFormat string
	LayerSets    []LayerSet

	// Card-edition fields.
	Cards []Card
}

// Mode reports which generator the catalog drives.
func (c *Catalog) Mode() Mode {
	if len(c.Cards) > 0 {
		return ModeCardEdition
	}
	return ModeRandomDrop
}

// LayerSet is a themed bundle of layers chosen together.
type LayerSet struct {
	Name   string
	File   string
	Weight float64
	Layers []Layer
}

// SelectionWeight implements sampler.Weighted.
func (s LayerSet) SelectionWeight() float64 { return s.Weight }

// Layer is one stacking level; exactly one option is chosen per asset.
type Layer struct {
	Name    string
	File    string
	Width   int
	Height  int
	Options []ImageOption
}

// ImageOption is one candidate image for a layer.
type ImageOption struct {
	// Image is the absolute image path, or empty when the option renders
	// nothing for its layer.
	Image      string
	Weight     float64
	OffsetX    int
	OffsetY    int
	Properties traits.Properties
}

// SelectionWeight implements sampler.Weighted.
func (o ImageOption) SelectionWeight() float64 { return o.Weight }

// Skip reports whether the option leaves its layer transparent.
func (o ImageOption) Skip() bool { return o.Image == "" }

// Card is one fixed card design minted in Count editions.
type Card struct {
	ID    string
	Count int
	// Image is an already published artwork reference written verbatim into
	// every edition's metadata. Cards are not composited.
	Image       string
	Description string
	Properties  traits.Properties
}
