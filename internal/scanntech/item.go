package scanntech

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/makabra/mayorista-api/internal/pricing"
)

// Item is a normalized POS product.
type Item struct {
	ScanntechID     string
	Barcode         string
	Nombre          string
	PrecioBase      decimal.Decimal
	Stock           decimal.Decimal
	Activo          bool
	PromocionesJSON string
	ImagenURL       string
	Tiers           []pricing.PriceTier
}

// Key identifies the item in the products sheet: by id when present, else by barcode.
func (it Item) Key() string {
	if it.ScanntechID != "" {
		return "id:" + it.ScanntechID
	}
	return "b:" + it.Barcode
}

// Normalize maps a raw POS product onto Item. Products without id and barcode are dropped.
func Normalize(raw Raw) (Item, bool) {
	id := str(raw.first("scanntech_id", "id", "codigoInterno"))
	barcode := str(raw.first("barcode", "codigoBarras", "ean"))
	if id == "" && barcode == "" {
		return Item{}, false
	}
	active := !(isFalse(raw["activo"]) || isFalse(raw["active"]) || isTrue(raw["inactivo"]))

	promos, _ := raw.first("promociones", "promotions").([]any)
	if promos == nil {
		promos = []any{}
	}
	promoJSON, err := json.Marshal(promos)
	if err != nil {
		promoJSON = []byte("[]")
	}

	return Item{
		ScanntechID:     id,
		Barcode:         barcode,
		Nombre:          str(raw.first("nombre", "name", "descripcion")),
		PrecioBase:      num(raw.first("precio_base", "price", "precioRegular")),
		Stock:           num(raw.first("stock", "inventory")),
		Activo:          active,
		PromocionesJSON: string(promoJSON),
		ImagenURL:       str(raw.first("imagen_url", "image_url", "image")),
		Tiers:           Tiers(promos),
	}, true
}

// Tiers converts POS promotions into price tiers, skipping entries without a positive price.
func Tiers(promos []any) []pricing.PriceTier {
	out := make([]pricing.PriceTier, 0, len(promos))
	for _, p := range promos {
		m, ok := p.(map[string]any)
		if !ok {
			continue
		}
		r := Raw(m)
		price := num(r.first("precio", "price"))
		if !price.IsPositive() {
			continue
		}
		out = append(out, pricing.PriceTier{
			MinQty: num(r.first("min_qty", "min")),
			MaxQty: num(r.first("max_qty", "max")),
			Price:  price,
		})
	}
	return out
}

// PreviewItem is the trimmed view of a raw product used by dry runs.
type PreviewItem struct {
	ID          any `json:"id"`
	Nombre      any `json:"nombre"`
	PrecioBase  any `json:"precio_base"`
	Promociones any `json:"promociones"`
	Stock       any `json:"stock"`
}

// Preview returns up to limit raw products, limit clamped to 1..200 (0 means 20).
func Preview(raw []Raw, limit int) []PreviewItem {
	if limit == 0 {
		limit = 20
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}
	if len(raw) < limit {
		limit = len(raw)
	}
	out := make([]PreviewItem, 0, limit)
	for _, r := range raw[:limit] {
		out = append(out, PreviewItem{
			ID:          r.first("id", "codigo", "sku"),
			Nombre:      r.first("nombre", "name"),
			PrecioBase:  r.first("precio_base", "price"),
			Promociones: r.first("promociones", "promotions"),
			Stock:       r.first("stock", "inventory"),
		})
	}
	return out
}

// first returns the first non-null value among keys.
func (r Raw) first(keys ...string) any {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func num(v any) decimal.Decimal {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(t)
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		if err == nil {
			return d
		}
	case bool:
		if t {
			return decimal.NewFromInt(1)
		}
	}
	return decimal.Zero
}

func isFalse(v any) bool {
	b, ok := v.(bool)
	return ok && !b
}

func isTrue(v any) bool {
	b, ok := v.(bool)
	return ok && b
}
