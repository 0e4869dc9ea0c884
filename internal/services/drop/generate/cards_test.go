package generate

import (
	"context"
	"slices"
	"testing"

	apperrors "github.com/thecardroom/nftgen/internal/platform/errors"
	"github.com/thecardroom/nftgen/internal/random"
	"github.com/thecardroom/nftgen/internal/services/drop/catalog"
	"github.com/thecardroom/nftgen/internal/services/drop/metadata"
	"github.com/thecardroom/nftgen/internal/services/drop/traits"
)

func cardCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	return &catalog.Catalog{
		Series:      "2",
		DropName:    "cards",
		InitNFTID:   500,
		Description: "series two",
		TokenName:   mustTemplate(t, "token-name", "TCR{{.Series}}{{.CardID}}{{pad 3 .Edition}}"),
		NFTName:     mustTemplate(t, "nft-name", "Card {{.CardID}} {{.Edition}}/{{.Editions}}"),
		Cards: []catalog.Card{
			{ID: "A", Count: 3, Image: "ipfs://QmA", Properties: traits.Properties{
				"id": traits.Int(0), "code": traits.Int(0), "rarity": traits.String("common"),
			}},
			{ID: "B", Count: 2, Image: "ipfs://QmB", Description: "rare card", Properties: traits.Properties{
				"id": traits.Int(0), "rarity": traits.String("rare"),
			}},
			{ID: "C", Count: 1, Properties: traits.Properties{}},
		},
	}
}

func TestCardEditionsEmitsEveryEdition(t *testing.T) {
	cat := cardCatalog(t)
	g := newGenerator(t, nil, nil)
	res, err := g.CardEditions(context.Background(), cat, NewRunWithSource("run", 17, random.NewPCG(17)))
	if err != nil {
		t.Fatalf("CardEditions: %v", err)
	}
	if len(res.Assets) != 6 || res.Requested != 6 {
		t.Fatalf("emitted %d of %d, want 6", len(res.Assets), res.Requested)
	}

	perCard := map[string][]int{}
	tokens := map[string]bool{}
	var ids []int64
	for i, asset := range res.Assets {
		if asset.Sequence != i+1 {
			t.Fatalf("sequence = %d at %d", asset.Sequence, i)
		}
		if tokens[asset.TokenName] {
			t.Fatalf("duplicate token %s", asset.TokenName)
		}
		tokens[asset.TokenName] = true
		perCard[asset.CardID] = append(perCard[asset.CardID], asset.Edition)
		if v, ok := asset.Properties["id"].Num(); ok {
			ids = append(ids, int64(v))
		}
	}
	for card, want := range map[string][]int{"A": {1, 2, 3}, "B": {1, 2}, "C": {1}} {
		got := slices.Clone(perCard[card])
		slices.Sort(got)
		if !slices.Equal(got, want) {
			t.Fatalf("card %s editions = %v, want %v", card, got, want)
		}
	}
	slices.Sort(ids)
	if !slices.Equal(ids, []int64{500, 501, 502, 503, 504}) {
		t.Fatalf("ids = %v", ids)
	}
}

func TestCardEditionsMetadata(t *testing.T) {
	cat := cardCatalog(t)
	g := newGenerator(t, nil, nil)
	res, err := g.CardEditions(context.Background(), cat, NewRunWithSource("run", 4, random.NewPCG(4)))
	if err != nil {
		t.Fatalf("CardEditions: %v", err)
	}
	for _, asset := range res.Assets {
		doc, err := metadata.Parse(asset.MetadataPath)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		md := doc.Assets[asset.TokenName]
		switch asset.CardID {
		case "A":
			if md.Image != "ipfs://QmA" || md.Description != "series two" {
				t.Fatalf("card A metadata = %+v", md)
			}
			if _, ok := md.Properties["code"].Num(); !ok {
				t.Fatal("card A code not stamped")
			}
		case "B":
			if md.Description != "rare card" {
				t.Fatalf("card B description = %q", md.Description)
			}
			if asset.NFTName != "Card B "+string(rune('0'+asset.Edition))+"/2" {
				t.Fatalf("nft name = %q", asset.NFTName)
			}
		case "C":
			if md.Image != "" {
				t.Fatalf("card C image = %q", md.Image)
			}
		}
	}
}

func TestCardEditionsOrderIsSeeded(t *testing.T) {
	order := func(seed int64) []string {
		g := newGenerator(t, nil, nil)
		res, err := g.CardEditions(context.Background(), cardCatalog(t), NewRunWithSource("run", seed, random.NewPCG(seed)))
		if err != nil {
			t.Fatalf("CardEditions: %v", err)
		}
		var out []string
		for _, a := range res.Assets {
			out = append(out, a.TokenName)
		}
		return out
	}
	first, again := order(8), order(8)
	if !slices.Equal(first, again) {
		t.Fatalf("same seed gave %v and %v", first, again)
	}

	sorted := slices.Clone(first)
	slices.Sort(sorted)
	want := []string{"TCR2A001", "TCR2A002", "TCR2A003", "TCR2B001", "TCR2B002", "TCR2C001"}
	if !slices.Equal(sorted, want) {
		t.Fatalf("emitted %v, want a permutation of %v", first, want)
	}

	differs := false
	for seed := int64(1); seed <= 20 && !differs; seed++ {
		differs = !slices.Equal(order(seed), want)
	}
	if !differs {
		t.Fatal("emission order never differed from declaration order")
	}
}

func TestEditionsStampsAcrossCards(t *testing.T) {
	cards := cardCatalog(t).Cards
	eds := Editions(random.NewPCG(1), cards, 10)
	if len(eds) != 6 {
		t.Fatalf("editions = %d, want 6", len(eds))
	}
	want := []int64{10, 11, 12, 13, 14}
	for i, w := range want {
		if v, _ := eds[i].Properties["id"].Num(); int64(v) != w {
			t.Fatalf("edition %d id = %v, want %d", i, v, w)
		}
	}
	if _, ok := eds[5].Properties["id"]; ok {
		t.Fatal("card without id trait was stamped")
	}
	// Stamping never touches the catalog's own properties.
	if v, _ := cards[0].Properties["id"].Num(); v != 0 {
		t.Fatalf("catalog card mutated: id = %v", v)
	}
}

func TestGenerateDispatchesOnMode(t *testing.T) {
	g := newGenerator(t, &fakeCompositor{}, nil)
	res, err := g.Generate(context.Background(), cardCatalog(t), NewRunWithSource("run", 1, random.NewPCG(1)))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Mode != catalog.ModeCardEdition {
		t.Fatalf("mode = %s", res.Mode)
	}
	if _, err := g.RandomDrop(context.Background(), cardCatalog(t), NewRunWithSource("run", 1, random.NewPCG(1))); err == nil {
		t.Fatal("expected RandomDrop to reject a card catalog")
	}
}

func TestCardEditionsStopsOnRepeatedTokenName(t *testing.T) {
	cat := cardCatalog(t)
	cat.TokenName = mustTemplate(t, "token-name", "TCR{{.Series}}{{.CardID}}")
	cat.Cards = cat.Cards[:1]
	g := newGenerator(t, nil, nil)

	res, err := g.CardEditions(context.Background(), cat, NewRunWithSource("run", 3, random.NewPCG(3)))
	if apperrors.CodeOf(err) != apperrors.CodeTemplateInvalid {
		t.Fatalf("err = %v, want %s", err, apperrors.CodeTemplateInvalid)
	}
	if len(res.Assets) != 1 {
		t.Fatalf("emitted %d, want 1", len(res.Assets))
	}
	if n := countFiles(t, res.Layout.MetadataDir()); n != 1 {
		t.Fatalf("%d metadata files, want 1", n)
	}
	doc, err := metadata.Parse(res.Assets[0].MetadataPath)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Assets["TCR2A"].Name != res.Assets[0].NFTName {
		t.Fatalf("first edition metadata replaced: %+v", doc.Assets["TCR2A"])
	}
}

// repeatingCodes replays Uint32 values and delegates everything else.
type repeatingCodes struct {
	random.Source
	codes []uint32
	pos   int
}

func (r *repeatingCodes) Uint32() uint32 {
	c := r.codes[r.pos]
	r.pos++
	return c
}

func TestEditionsCodesAreDistinct(t *testing.T) {
	cards := []catalog.Card{
		{ID: "A", Count: 2, Properties: traits.Properties{"code": traits.Int(0)}},
		{ID: "B", Count: 2, Properties: traits.Properties{"code": traits.Int(0)}},
	}
	src := &repeatingCodes{Source: random.NewPCG(1), codes: []uint32{7, 7, 9, 7, 9, 11, 13}}
	eds := Editions(src, cards, 1)

	var got []int64
	for _, ed := range eds {
		v, _ := ed.Properties["code"].Num()
		got = append(got, int64(v))
	}
	if want := []int64{7, 9, 11, 13}; !slices.Equal(got, want) {
		t.Fatalf("codes = %v, want %v", got, want)
	}
}
