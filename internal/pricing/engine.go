package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a rounded monetary value in whole pesos.
type Money = int64

// PriceTier maps a quantity range to a unit price. A non-positive MaxQty
// leaves the range open at the top.
type PriceTier struct {
	MinQty decimal.Decimal
	MaxQty decimal.Decimal
	Price  decimal.Decimal
}

// Product is the canonical shape consumed by the engine. Catalog rows are
// normalized into it at ingestion.
type Product struct {
	ID         string
	Name       string
	BasePrice  decimal.Decimal
	PromoGroup string
	Tiers      []PriceTier
}

// CartLine is a requested quantity of a product.
type CartLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"qty"`
}

// ResolvedLine is the priced view of a cart line.
type ResolvedLine struct {
	ProductID    string `json:"productId"`
	Quantity     int    `json:"quantity"`
	EffectiveQty int    `json:"effectiveQty"`
	UnitPrice    Money  `json:"unitPrice"`
	Subtotal     Money  `json:"subtotal"`
	Priced       bool   `json:"priced"`
}

// Order aggregates resolved lines. Total is the sum of the rounded subtotals
// of priced lines.
type Order struct {
	Lines       []ResolvedLine `json:"lines"`
	Total       Money          `json:"total"`
	HasUnpriced bool           `json:"hasUnpriced"`
}

// Catalog indexes products by id for a single pricing pass.
type Catalog map[string]Product

// NewCatalog builds a Catalog. Later duplicates of an id replace earlier ones.
func NewCatalog(products []Product) Catalog {
	out := make(Catalog, len(products))
	for _, p := range products {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			continue
		}
		out[id] = p
	}
	return out
}

// Lookup returns the product for id.
func (c Catalog) Lookup(id string) (Product, bool) {
	p, ok := c[strings.TrimSpace(id)]
	return p, ok
}

// ResolveUnitPrice returns the unit price for qty: the first tier, in
// declaration order, whose range contains qty and whose price is positive.
// Otherwise the base price.
func ResolveUnitPrice(p Product, qty int) decimal.Decimal {
	q := decimal.NewFromInt(int64(qty))
	if qty < 0 {
		q = decimal.Zero
	}
	for _, t := range p.Tiers {
		if tierActive(t, q) {
			return sanitize(t.Price)
		}
	}
	return sanitize(p.BasePrice)
}

func tierActive(t PriceTier, q decimal.Decimal) bool {
	price := sanitize(t.Price)
	if !price.IsPositive() {
		return false
	}
	if q.LessThan(sanitize(t.MinQty)) {
		return false
	}
	upper := sanitize(t.MaxQty)
	if upper.IsPositive() && q.GreaterThan(upper) {
		return false
	}
	return true
}

// GroupQuantities sums line quantities per promo group. Lines with qty < 1,
// unknown products, or products without a group are ignored.
func GroupQuantities(lines []CartLine, products Catalog) map[string]int {
	groups := make(map[string]int)
	for _, line := range lines {
		if line.Quantity < 1 {
			continue
		}
		p, ok := products.Lookup(line.ProductID)
		if !ok {
			continue
		}
		group := strings.TrimSpace(p.PromoGroup)
		if group == "" {
			continue
		}
		groups[group] += line.Quantity
	}
	return groups
}

// EffectiveQty is the quantity used for tier lookup: the group aggregate when
// the product belongs to a group with a positive total, else lineQty.
func EffectiveQty(p Product, lineQty int, groups map[string]int) int {
	group := strings.TrimSpace(p.PromoGroup)
	if group == "" {
		return lineQty
	}
	if total := groups[group]; total > 0 {
		return total
	}
	return lineQty
}

// ComputeOrder prices lines against products. Tier lookup uses the effective
// (group) quantity; the subtotal always bills the line's own quantity.
func ComputeOrder(lines []CartLine, products Catalog) Order {
	kept := make([]CartLine, 0, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			continue
		}
		if _, ok := products.Lookup(line.ProductID); !ok {
			continue
		}
		kept = append(kept, line)
	}

	groups := GroupQuantities(kept, products)
	out := Order{Lines: make([]ResolvedLine, 0, len(kept))}
	for _, line := range kept {
		p, _ := products.Lookup(line.ProductID)
		eff := EffectiveQty(p, line.Quantity, groups)
		unit := ResolveUnitPrice(p, eff)

		resolved := ResolvedLine{
			ProductID:    p.ID,
			Quantity:     line.Quantity,
			EffectiveQty: eff,
		}
		if !unit.IsPositive() {
			out.HasUnpriced = true
			out.Lines = append(out.Lines, resolved)
			continue
		}
		resolved.Priced = true
		resolved.UnitPrice = Round(unit)
		resolved.Subtotal = Round(unit.Mul(decimal.NewFromInt(int64(line.Quantity))))
		out.Total += resolved.Subtotal
		out.Lines = append(out.Lines, resolved)
	}
	return out
}
