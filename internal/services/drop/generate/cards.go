package generate

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/thecardroom/nftgen/internal/random"
	"github.com/thecardroom/nftgen/internal/services/drop/catalog"
	"github.com/thecardroom/nftgen/internal/services/drop/traits"
)

// Edition is one pre-built record of a card-edition drop.
type Edition struct {
	Card       *catalog.Card
	Edition    int
	Properties traits.Properties
}

// Editions expands every card into Count records in card order. Declared
// "id" traits are numbered consecutively from initID across all cards and
// declared "code" traits get a random 32-bit value from src, distinct across
// the drop.
func Editions(src random.Source, cards []catalog.Card, initID int64) []Edition {
	var out []Edition
	next := initID
	codes := make(map[uint32]struct{})
	for i := range cards {
		card := &cards[i]
		for e := 1; e <= card.Count; e++ {
			props := card.Properties.Clone()
			if _, ok := props[idKey]; ok {
				props[idKey] = traits.Int(next)
			}
			if _, ok := props[codeKey]; ok {
				props[codeKey] = traits.Int(int64(uniqueCode(src, codes)))
			}
			next++
			out = append(out, Edition{Card: card, Edition: e, Properties: props})
		}
	}
	return out
}

// uniqueCode draws from src until it finds a value not in used.
func uniqueCode(src random.Source, used map[uint32]struct{}) uint32 {
	for {
		c := src.Uint32()
		if _, ok := used[c]; !ok {
			used[c] = struct{}{}
			return c
		}
	}
}

// CardEditions emits every edition of every card in an order drawn uniformly
// without replacement. Content is fixed per card; only numbering is random.
func (g *Generator) CardEditions(ctx context.Context, cat *catalog.Catalog, run *Run) (*Result, error) {
	if cat.Mode() != catalog.ModeCardEdition {
		return nil, fmt.Errorf("catalog %s has no cards", cat.DropName)
	}
	total := int(catalog.Count(cat))
	ctx, s, err := g.begin(ctx, "generate.card_editions", cat, run, total)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"cards":    len(cat.Cards),
		"editions": catalog.FormatCount(int64(total)),
		"seed":     run.Seed,
	}).Info("starting card drop")

	return s.finish(ctx, s.cardLoop(ctx))
}

func (s *session) cardLoop(ctx context.Context) error {
	pool := Editions(s.run.Source, s.cat.Cards, s.cat.InitNFTID)
	order := random.Draw(s.run.Source, pool)
	for i, ed := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		token, nft, err := s.names(catalog.NameFields{
			Series:   s.cat.Series,
			CardID:   ed.Card.ID,
			Edition:  ed.Edition,
			Editions: ed.Card.Count,
		})
		if err != nil {
			return err
		}
		description := ed.Card.Description
		if description == "" {
			description = s.cat.Description
		}
		err = s.emit(ctx, GeneratedAsset{
			Sequence:   i + 1,
			TokenName:  token,
			NFTName:    nft,
			CardID:     ed.Card.ID,
			Edition:    ed.Edition,
			Properties: ed.Properties,
			ImagePath:  ed.Card.Image,
		}, description)
		if err != nil {
			return err
		}
	}
	return nil
}
