package generate

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	imageDirName    = "nft_img"
	metadataDirName = "nft_metadata"
)

// Layout places a drop's output under <root>/<network>/<drop>.
type Layout struct {
	Root    string
	Network string
	Drop    string
}

// Dir is the drop's output directory.
func (l Layout) Dir() string {
	return filepath.Join(l.Root, l.Network, l.Drop)
}

// ImageDir holds rendered images.
func (l Layout) ImageDir() string {
	return filepath.Join(l.Dir(), imageDirName)
}

// MetadataDir holds one metadata file per token.
func (l Layout) MetadataDir() string {
	return filepath.Join(l.Dir(), metadataDirName)
}

// ImagePath names the image for sequence seq, e.g. 00042_base__0_3_1.jpg.
func (l Layout) ImagePath(seq int, key, ext string) string {
	return filepath.Join(l.ImageDir(), fmt.Sprintf("%05d_%s.%s", seq, fileSafe(key), ext))
}

var unsafeName = strings.NewReplacer("/", "-", `\`, "-", " ", "-")

func fileSafe(s string) string {
	return unsafeName.Replace(s)
}
