package catalog

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Combinations returns the number of distinct option combinations a single
// layer set can produce. The result saturates at math.MaxInt64.
func Combinations(set LayerSet) int64 {
	total := int64(1)
	for _, layer := range set.Layers {
		n := int64(len(layer.Options))
		if n == 0 {
			return 0
		}
		if total > math.MaxInt64/n {
			return math.MaxInt64
		}
		total *= n
	}
	return total
}

// Count returns the theoretical number of distinct trait combinations across
// all layer sets. It is diagnostic only: generators log it next to the
// requested total but do not reject requests that exceed it. Card-edition
// catalogs report the number of editions.
func Count(c *Catalog) int64 {
	if c == nil {
		return 0
	}
	var total int64
	if c.Mode() == ModeCardEdition {
		for _, card := range c.Cards {
			total += int64(card.Count)
		}
		return total
	}
	for _, set := range c.LayerSets {
		n := Combinations(set)
		if total > math.MaxInt64-n {
			return math.MaxInt64
		}
		total += n
	}
	return total
}

var printer = message.NewPrinter(language.English)

// FormatCount renders n with digit grouping for logs and CLI output.
func FormatCount(n int64) string {
	return printer.Sprintf("%d", n)
}
