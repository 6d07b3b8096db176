// Package pricing holds the static per-garment price table. Prices are
// resolved at line insertion time; unknown garment types fall back to a
// default price instead of failing the order.
package pricing

import "github.com/shopspring/decimal"

// Source resolves the unit price for a garment type.
type Source interface {
	PriceOf(garmentType string) decimal.Decimal
}

// Book is an in-process price table with a fallback for unknown types.
type Book struct {
	prices   map[string]decimal.Decimal
	fallback decimal.Decimal
}

var _ Source = (*Book)(nil)

// NewBook builds a Book from the given price map and fallback price.
func NewBook(prices map[string]decimal.Decimal, fallback decimal.Decimal) *Book {
	cp := make(map[string]decimal.Decimal, len(prices))
	for k, v := range prices {
		cp[k] = v
	}
	return &Book{prices: cp, fallback: fallback}
}

// PriceOf returns the unit price for the garment type, or the fallback price
// when the type is unknown.
func (b *Book) PriceOf(garmentType string) decimal.Decimal {
	if p, ok := b.prices[garmentType]; ok {
		return p
	}
	return b.fallback
}

// Types returns the known garment types. Order is unspecified.
func (b *Book) Types() []string {
	out := make([]string, 0, len(b.prices))
	for t := range b.prices {
		out = append(out, t)
	}
	return out
}

// DefaultBook returns the standard laundry price list.
func DefaultBook() *Book {
	d := func(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
	return NewBook(map[string]decimal.Decimal{
		"shirt":    d(5000),
		"pants":    d(6000),
		"dress":    d(8000),
		"jacket":   d(10000),
		"blazer":   d(7000),
		"skirt":    d(5500),
		"blouse":   d(4500),
		"coat":     d(12000),
		"sweater":  d(6500),
		"jeans":    d(7000),
		"tie":      d(3000),
		"scarf":    d(3500),
		"bedsheet": d(8000),
		"duvet":    d(15000),
		"curtain":  d(12000),
	}, d(5000))
}
