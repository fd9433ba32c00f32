package catalog

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/makabra/mayorista-api/internal/pricing"
)

// Amount is a decimal rendered as a bare JSON number.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps d.
func NewAmount(d decimal.Decimal) Amount { return Amount{Decimal: d} }

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// Tier is a storefront price break. Max is omitted when the tier is open ended.
type Tier struct {
	Min    Amount  `json:"min"`
	Max    *Amount `json:"max,omitempty"`
	Precio Amount  `json:"precio"`
}

// DPC groups the quantity discounts of a product.
type DPC struct {
	Tramos []Tier `json:"tramos"`
}

// Product is the canonical catalog entry served to the storefront.
type Product struct {
	ID           string   `json:"id"`
	Nombre       string   `json:"nombre"`
	Categoria    string   `json:"categoria"`
	Subcategoria string   `json:"subcategoria"`
	Precio       Amount   `json:"precio"`
	Oferta       bool     `json:"oferta"`
	Imagen       string   `json:"imagen,omitempty"`
	Marca        string   `json:"marca,omitempty"`
	Presentacion string   `json:"presentacion,omitempty"`
	Tags         []string `json:"tags"`
	Destacado    bool     `json:"destacado"`
	PromoGroup   string   `json:"promo_group,omitempty"`
	DPC          *DPC     `json:"dpc,omitempty"`
	Stock        *int64   `json:"stock,omitempty"`
}

// Title is the display name: nombre, then (marca), then - presentacion.
func (p Product) Title() string {
	parts := make([]string, 0, 3)
	name := p.Nombre
	if name == "" {
		name = "Producto"
	}
	parts = append(parts, name)
	if p.Marca != "" {
		parts = append(parts, "("+p.Marca+")")
	}
	if p.Presentacion != "" {
		parts = append(parts, "- "+p.Presentacion)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// PricingProduct converts p into the shape consumed by the pricing engine.
func (p Product) PricingProduct() pricing.Product {
	out := pricing.Product{
		ID:         p.ID,
		Name:       p.Title(),
		BasePrice:  p.Precio.Decimal,
		PromoGroup: p.PromoGroup,
	}
	if p.DPC != nil {
		out.Tiers = make([]pricing.PriceTier, 0, len(p.DPC.Tramos))
		for _, t := range p.DPC.Tramos {
			tier := pricing.PriceTier{MinQty: t.Min.Decimal, Price: t.Precio.Decimal}
			if t.Max != nil {
				tier.MaxQty = t.Max.Decimal
			}
			out.Tiers = append(out.Tiers, tier)
		}
	}
	return out
}

// PricingCatalog indexes products for a pricing pass.
func PricingCatalog(products []Product) pricing.Catalog {
	converted := make([]pricing.Product, 0, len(products))
	for _, p := range products {
		converted = append(converted, p.PricingProduct())
	}
	return pricing.NewCatalog(converted)
}
