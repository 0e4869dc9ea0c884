// Package metadata reads and writes per-asset token metadata in the "721"
// on-chain convention:
//
//	{"721": {"<policy id>": {"<token name>": {"name": ..., "image": ..., ...traits}}}}
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	apperrors "github.com/thecardroom/nftgen/internal/platform/errors"
	"github.com/thecardroom/nftgen/internal/services/drop/traits"
)

// Label is the top-level metadata namespace for NFTs.
const Label = "721"

// Asset is the metadata of one token.
type Asset struct {
	TokenName   string
	Name        string
	Image       string
	Description string
	Properties  traits.Properties
}

// entry flattens a into the JSON object stored under its token name. Trait
// keys sit next to name, image and description.
func (a Asset) entry() map[string]any {
	out := make(map[string]any, len(a.Properties)+3)
	for k, v := range a.Properties {
		out[k] = v
	}
	out["name"] = a.Name
	if a.Image != "" {
		out["image"] = a.Image
	}
	if a.Description != "" {
		out["description"] = a.Description
	}
	return out
}

// FileName is the metadata file name for a token.
func FileName(tokenName string) string {
	return tokenName + ".json"
}

// Write stores a single-asset document for policyID under dir and returns
// its path. The file appears complete or not at all, and an existing file
// for the same token is never replaced.
func Write(dir, policyID string, asset Asset) (string, error) {
	if asset.TokenName == "" {
		return "", apperrors.New(apperrors.CodeMetadataWriteFailed, "token name is required")
	}
	if asset.Name == "" {
		return "", apperrors.WithMetadata(apperrors.CodeMetadataWriteFailed,
			"nft name is required", map[string]string{"token": asset.TokenName})
	}
	doc := map[string]any{
		Label: map[string]any{
			policyID: map[string]any{asset.TokenName: asset.entry()},
		},
	}
	path := filepath.Join(dir, FileName(asset.TokenName))
	if err := writeJSON(path, doc); err != nil {
		return "", apperrors.WrapWithMetadata(apperrors.CodeMetadataWriteFailed,
			fmt.Sprintf("write metadata for %s", asset.TokenName),
			map[string]string{"token": asset.TokenName, "path": path}, err)
	}
	return path, nil
}

// writeJSON encodes value with four-space indentation, writes it to a
// temporary sibling and links it to path. It fails if path already exists.
func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "    ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Link(tmpName, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s already exists", path)
		}
		return fmt.Errorf("link: %w", err)
	}
	return nil
}
