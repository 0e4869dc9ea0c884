package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	apperrors "github.com/thecardroom/nftgen/internal/platform/errors"
	"github.com/thecardroom/nftgen/internal/services/drop/traits"
)

// Document is a parsed metadata file. A file may hold one or many assets,
// all under a single policy id.
type Document struct {
	PolicyID   string
	TokenNames []string
	Assets     map[string]Asset
}

// Parse reads a metadata file. Token names are returned sorted.
func Parse(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.WithMetadata(apperrors.CodeNotFound,
				fmt.Sprintf("metadata file %s not found", path), map[string]string{"path": path})
		}
		return nil, fmt.Errorf("read metadata %s: %w", path, err)
	}
	doc, err := decode(data)
	if err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeMetadataInvalid,
			fmt.Sprintf("parse metadata %s", path), map[string]string{"path": path}, err)
	}
	return doc, nil
}

func decode(data []byte) (*Document, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	raw, ok := root[Label]
	if !ok {
		return nil, fmt.Errorf("missing %q namespace", Label)
	}
	var policies map[string]map[string]map[string]json.RawMessage
	if err := json.Unmarshal(raw, &policies); err != nil {
		return nil, err
	}
	if len(policies) != 1 {
		return nil, fmt.Errorf("expected one policy id, found %d", len(policies))
	}

	doc := &Document{Assets: make(map[string]Asset)}
	for policyID, tokens := range policies {
		doc.PolicyID = policyID
		for token, fields := range tokens {
			asset, err := decodeAsset(token, fields)
			if err != nil {
				return nil, fmt.Errorf("token %s: %w", token, err)
			}
			doc.Assets[token] = asset
			doc.TokenNames = append(doc.TokenNames, token)
		}
	}
	slices.Sort(doc.TokenNames)
	return doc, nil
}

func decodeAsset(token string, fields map[string]json.RawMessage) (Asset, error) {
	asset := Asset{TokenName: token, Properties: traits.Properties{}}
	for key, raw := range fields {
		switch key {
		case "name":
			if err := decodeText(raw, &asset.Name); err != nil {
				return Asset{}, fmt.Errorf("name: %w", err)
			}
		case "image":
			if err := decodeText(raw, &asset.Image); err != nil {
				return Asset{}, fmt.Errorf("image: %w", err)
			}
		case "description":
			if err := decodeText(raw, &asset.Description); err != nil {
				return Asset{}, fmt.Errorf("description: %w", err)
			}
		default:
			var v traits.Value
			if err := json.Unmarshal(raw, &v); err != nil {
				return Asset{}, fmt.Errorf("%s: %w", key, err)
			}
			asset.Properties[key] = v
		}
	}
	return asset, nil
}

// decodeText accepts a string or, for values longer than one on-chain string
// chunk, an array of strings that are joined back together.
func decodeText(raw json.RawMessage, out *string) error {
	if err := json.Unmarshal(raw, out); err == nil {
		return nil
	}
	var parts []string
	if err := json.Unmarshal(raw, &parts); err != nil {
		return errors.New("must be a string or an array of strings")
	}
	*out = strings.Join(parts, "")
	return nil
}

// MergedFileName is the default output name for Merge, placed beside the
// first input file.
func MergedFileName(dir string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("nft_merged_metadata_%d.json", now.Unix()))
}

// Merge combines the assets of every file into one document for policyID,
// written atomically to out. Inputs must all belong to policyID and may not
// repeat a token name.
func Merge(policyID string, files []string, out string) (*Document, error) {
	if len(files) == 0 {
		return nil, apperrors.New(apperrors.CodeMetadataInvalid, "no metadata files to merge")
	}
	merged := &Document{PolicyID: policyID, Assets: make(map[string]Asset)}
	source := make(map[string]string)
	for _, file := range files {
		doc, err := Parse(file)
		if err != nil {
			return nil, err
		}
		if doc.PolicyID != policyID {
			return nil, apperrors.WithMetadata(apperrors.CodeMetadataInvalid,
				fmt.Sprintf("%s belongs to policy %s, not %s", file, doc.PolicyID, policyID),
				map[string]string{"path": file})
		}
		for _, token := range doc.TokenNames {
			if prev, dup := source[token]; dup {
				return nil, apperrors.WithMetadata(apperrors.CodeMetadataInvalid,
					fmt.Sprintf("token %s appears in both %s and %s", token, prev, file),
					map[string]string{"token": token})
			}
			source[token] = file
			merged.Assets[token] = doc.Assets[token]
			merged.TokenNames = append(merged.TokenNames, token)
		}
	}
	slices.Sort(merged.TokenNames)

	tokens := make(map[string]any, len(merged.Assets))
	for token, asset := range merged.Assets {
		tokens[token] = asset.entry()
	}
	payload := map[string]any{Label: map[string]any{policyID: tokens}}
	if err := writeJSON(out, payload); err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeMetadataWriteFailed,
			"write merged metadata", map[string]string{"path": out}, err)
	}
	return merged, nil
}
