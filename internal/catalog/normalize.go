package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

const defaultCategory = "Otros"

var (
	featuredColumns   = []string{"Destacados", "destacados", "destacado", "DESTACADOS", "Featured", "featured"}
	promoGroupColumns = []string{
		"promo_group", "PROMO_GROUP", "promo group", "Promo Group", "promogroup",
		"PromoGroup", "grupo_promo", "GrupoPromo", "grupo", "Grupo",
	}
	imageColumns = []string{"imagen_url", "imagen"}
)

// Row is a spreadsheet row keyed by trimmed header.
type Row map[string]string

// Get returns the trimmed value of column and whether the column exists.
func (r Row) Get(column string) (string, bool) {
	v, ok := r[column]
	return strings.TrimSpace(v), ok
}

// Value returns the trimmed value of column or "".
func (r Row) Value(column string) string {
	v, _ := r.Get(column)
	return v
}

// First returns the value of the first alias present in the row, even when empty.
func (r Row) First(aliases ...string) string {
	for _, a := range aliases {
		if v, ok := r.Get(a); ok {
			return v
		}
	}
	return ""
}

// FirstNonEmpty returns the first non-empty value among aliases.
func (r Row) FirstNonEmpty(aliases ...string) string {
	for _, a := range aliases {
		if v := r.Value(a); v != "" {
			return v
		}
	}
	return ""
}

// Rows turns a header row plus records into Rows. Records with only blank
// cells are skipped; headerless columns are ignored.
func Rows(records [][]string) []Row {
	if len(records) < 2 {
		return nil
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	out := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := make(Row, len(header))
		for j, key := range header {
			if key == "" {
				continue
			}
			if j < len(rec) {
				row[key] = rec[j]
			} else {
				row[key] = ""
			}
		}
		out = append(out, row)
	}
	return out
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ParseAmount reads a storefront amount: "$" is dropped, "." is a thousands
// separator and "," the decimal mark. Invalid input yields zero.
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseBool accepts true/verdadero/1/si/sí/yes. Anything else is false.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "verdadero", "1", "si", "sí", "yes":
		return true
	default:
		return false
	}
}

// ParseTags splits on ";" or ",", dropping empty entries.
func ParseTags(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// FromRow normalizes a row into a Product. Rows without id, or inactive, are
// rejected.
func FromRow(r Row) (Product, bool) {
	id := r.Value("id")
	if id == "" {
		return Product{}, false
	}
	if activo := r.Value("activo"); activo != "" && !ParseBool(activo) {
		return Product{}, false
	}

	p := Product{
		ID:           id,
		Nombre:       r.Value("nombre"),
		Categoria:    r.Value("categoria"),
		Subcategoria: r.Value("subcategoria"),
		Imagen:       r.FirstNonEmpty(imageColumns...),
		Marca:        r.Value("marca"),
		Presentacion: r.Value("presentacion"),
		Tags:         ParseTags(r.Value("tags")),
		Oferta:       ParseBool(r.Value("oferta_carrusel")),
		Destacado:    ParseBool(r.First(featuredColumns...)),
		PromoGroup:   r.First(promoGroupColumns...),
	}
	if p.Nombre == "" {
		p.Nombre = id
	}
	if p.Categoria == "" {
		p.Categoria = defaultCategory
	}
	if p.Subcategoria == "" {
		p.Subcategoria = defaultCategory
	}
	if base := ParseAmount(r.Value("precio_base")); base.IsPositive() {
		p.Precio = NewAmount(base)
	}

	promoMin := ParseAmount(r.Value("promo_min_qty"))
	promoPrice := ParseAmount(r.Value("promo_precio"))
	if promoMin.IsPositive() && promoPrice.IsPositive() {
		p.DPC = &DPC{Tramos: []Tier{{Min: NewAmount(promoMin), Precio: NewAmount(promoPrice)}}}
	}
	if stock := r.Value("stock"); stock != "" {
		n := ParseAmount(stock).IntPart()
		p.Stock = &n
	}
	return p, true
}

// Normalize converts raw records (header first) into products.
func Normalize(records [][]string) []Product {
	rows := Rows(records)
	out := make([]Product, 0, len(rows))
	for _, r := range rows {
		if p, ok := FromRow(r); ok {
			out = append(out, p)
		}
	}
	return out
}
