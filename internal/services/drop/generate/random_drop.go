package generate

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	apperrors "github.com/thecardroom/nftgen/internal/platform/errors"
	"github.com/thecardroom/nftgen/internal/random"
	"github.com/thecardroom/nftgen/internal/services/drop/catalog"
	"github.com/thecardroom/nftgen/internal/services/drop/compose"
	"github.com/thecardroom/nftgen/internal/services/drop/sampler"
	"github.com/thecardroom/nftgen/internal/services/drop/traits"
)

// Combination is one sampled trait combination.
type Combination struct {
	// Key identifies the exact choice: the layer set name followed by the
	// chosen option index of every layer, e.g. "base__0_3_1".
	Key        string
	LayerSet   string
	Layers     []compose.Layer
	Properties traits.Properties
}

// Sample draws a layer set and then one option per layer. Properties of
// later layers override earlier ones on key collisions.
func Sample(src random.Source, sets []catalog.LayerSet) (Combination, error) {
	_, set, err := sampler.Select(src, sets)
	if err != nil {
		return Combination{}, err
	}
	var key strings.Builder
	key.WriteString(set.Name)
	key.WriteByte('_')

	combo := Combination{LayerSet: set.Name, Properties: traits.Properties{}}
	for _, layer := range set.Layers {
		idx, opt, err := sampler.Select(src, layer.Options)
		if err != nil {
			return Combination{}, apperrors.WrapWithMetadata(apperrors.CodeSelectionFailed,
				"select option for layer "+layer.Name, map[string]string{"layer": layer.File}, err)
		}
		key.WriteByte('_')
		key.WriteString(strconv.Itoa(idx))
		if !opt.Skip() {
			combo.Layers = append(combo.Layers, compose.Layer{Path: opt.Image, OffsetX: opt.OffsetX, OffsetY: opt.OffsetY})
		}
		combo.Properties.Merge(opt.Properties)
	}
	combo.Key = key.String()
	return combo, nil
}

// RandomDrop samples, renders and deduplicates until cat.Total assets are
// accepted. Token numbers follow acceptance order. A run of more than the
// retry budget consecutive rejections fails with DUPLICATE_EXHAUSTION.
func (g *Generator) RandomDrop(ctx context.Context, cat *catalog.Catalog, run *Run) (*Result, error) {
	if cat.Mode() != catalog.ModeRandomDrop {
		return nil, fmt.Errorf("catalog %s is not a random drop", cat.DropName)
	}
	if g.cfg.Compositor == nil {
		return nil, fmt.Errorf("random drop requires a compositor")
	}
	ctx, s, err := g.begin(ctx, "generate.random_drop", cat, run, cat.Total)
	if err != nil {
		return nil, err
	}

	budget := g.cfg.RetryBudget
	if budget == 0 {
		budget = RetryBudget(s.result.Combinations)
	}
	s.log.WithFields(logrus.Fields{
		"combinations": catalog.FormatCount(s.result.Combinations),
		"layer_sets":   len(cat.LayerSets),
		"total":        catalog.FormatCount(int64(cat.Total)),
		"seed":         run.Seed,
	}).Info("starting random drop")
	if int64(cat.Total) > s.result.Combinations {
		s.log.Warn("requested total exceeds distinct combinations, the drop will exhaust its retry budget")
	}

	return s.finish(ctx, s.randomLoop(ctx, budget))
}

func (s *session) randomLoop(ctx context.Context, budget int) error {
	misses := 0
	for s.run.accepted < s.cat.Total {
		if err := ctx.Err(); err != nil {
			return err
		}
		if misses >= budget {
			return apperrors.WithMetadata(apperrors.CodeDuplicateExhaustion,
				fmt.Sprintf("no new combination after %d attempts: accepted %d of %d", misses, s.run.accepted, s.cat.Total),
				map[string]string{
					"accepted":  strconv.Itoa(s.run.accepted),
					"requested": strconv.Itoa(s.cat.Total),
				})
		}

		combo, err := Sample(s.run.Source, s.cat.LayerSets)
		if err != nil {
			return err
		}
		if s.run.Guard.SeenKey(combo.Key) {
			s.run.rejected++
			misses++
			s.log.WithField("key", combo.Key).Debug("combination already exists, resampling")
			continue
		}

		seq := s.run.accepted + 1
		imagePath := s.layout.ImagePath(seq, combo.Key, s.cat.OutputFormat)
		req := compose.Request{Layers: combo.Layers, Output: imagePath}
		if s.cat.OutputSize != nil {
			req.Resize = &compose.Size{Width: s.cat.OutputSize.Width, Height: s.cat.OutputSize.Height}
		}
		if err := s.g.cfg.Compositor.Compose(ctx, req); err != nil {
			return err
		}

		sum, err := HashFile(imagePath)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeCompositionFailed, "hash rendered image", err)
		}
		if prev, dup := s.run.Guard.Duplicate(sum); dup {
			if err := os.Remove(imagePath); err != nil {
				return apperrors.Wrap(apperrors.CodeCompositionFailed, "remove duplicate image", err)
			}
			s.run.rejected++
			misses++
			s.log.WithFields(logrus.Fields{"key": combo.Key, "duplicate_of": prev}).Info("duplicate image, resampling")
			continue
		}

		if err := s.acceptCombination(ctx, seq, combo, imagePath, sum); err != nil {
			return err
		}
		s.run.Guard.Accept(combo.Key, sum, imagePath)
		misses = 0
	}
	return nil
}

func (s *session) acceptCombination(ctx context.Context, seq int, combo Combination, imagePath, sum string) error {
	props := combo.Properties
	if _, ok := props[idKey]; ok {
		props[idKey] = traits.Int(s.cat.InitNFTID + int64(seq) - 1)
	}
	token, nft, err := s.names(catalog.NameFields{
		Series:   s.cat.Series,
		Number:   int64(seq),
		Edition:  1,
		Editions: 1,
	})
	if err != nil {
		return err
	}
	return s.emit(ctx, GeneratedAsset{
		Sequence:       seq,
		TokenName:      token,
		NFTName:        nft,
		Edition:        1,
		CombinationKey: combo.Key,
		Properties:     props,
		ImagePath:      imagePath,
		ImageSHA256:    sum,
	}, s.cat.Description)
}
