package catalog

import (
	"github.com/shopspring/decimal"
	"github.com/thecardroom/nftgen/internal/services/drop/traits"
)

// dropFile is the on-disk drop definition. Series and card ids may be written
// as strings or numbers, so they decode through traits.Value.
type dropFile struct {
	Series       traits.Value  `json:"series"`
	DropName     string        `json:"drop-name"`
	InitNFTID    int64         `json:"init-nft-id"`
	TokenName    string        `json:"token-name"`
	NFTName      string        `json:"nft-name"`
	Description  string        `json:"description"`
	Total        int           `json:"total"`
	OutputWidth  *int          `json:"output-width"`
	OutputHeight *int          `json:"output-height"`
	OutputFormat string        `json:"output-format"`
	LayerSets    []layerSetRef `json:"layer-sets"`
	Cards        []cardFile    `json:"cards"`
}

type layerSetRef struct {
	File   string          `json:"file"`
	Weight decimal.Decimal `json:"weight"`
}

type cardFile struct {
	ID          traits.Value      `json:"id"`
	Count       int               `json:"count"`
	Image       string            `json:"image"`
	Description string            `json:"description"`
	Properties  traits.Properties `json:"properties"`
}

type layerSetFile struct {
	Name   string   `json:"name"`
	Layers []string `json:"layers"`
}

type layerFile struct {
	Name   string        `json:"name"`
	Width  int           `json:"width"`
	Height int           `json:"height"`
	Images []optionEntry `json:"images"`
}

type optionEntry struct {
	Image      *string           `json:"image"`
	Weight     decimal.Decimal   `json:"weight"`
	OffsetX    int               `json:"offset-x"`
	OffsetY    int               `json:"offset-y"`
	Properties traits.Properties `json:"properties"`
}
