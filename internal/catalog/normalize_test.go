package catalog_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/makabra/mayorista-api/internal/catalog"
)

func TestParseAmount(t *testing.T) {
	cases := map[string]string{
		"1.234,5": "1234.5",
		"$ 120":   "120",
		"$1.500":  "1500",
		"":        "0",
		"abc":     "0",
		"-30":     "-30",
	}
	for in, want := range cases {
		require.Truef(t, catalog.ParseAmount(in).Equal(decimal.RequireFromString(want)), "ParseAmount(%q) = %s", in, catalog.ParseAmount(in))
	}
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"true", "TRUE", "verdadero", "1", "si", "Sí", "yes"} {
		require.True(t, catalog.ParseBool(v), v)
	}
	for _, v := range []string{"false", "falso", "0", "no", "", "maybe"} {
		require.False(t, catalog.ParseBool(v), v)
	}
}

func TestParseTags(t *testing.T) {
	require.Equal(t, []string{"mate", "yerba", "oferta"}, catalog.ParseTags(" mate; yerba,,oferta ;"))
	require.Empty(t, catalog.ParseTags(""))
}

func TestNormalizeAppliesDefaultsAndSkipsRows(t *testing.T) {
	records := [][]string{
		{"id", "nombre", "categoria", "precio_base", "activo", "Destacados", "Promo Group", "promo_min_qty", "promo_precio", "stock", "imagen"},
		{"A1", "Yerba", "Almacén", "$1.250", "", "si", "G1", "6", "1.100", "12", "/img/a1.webp"},
		{"", "No id", "", "10", "", "", "", "", "", "", ""},
		{"A2", "", "", "-5", "no", "", "", "", "", "", ""},
		{"A3", "", "", "abc", "TRUE", "", "", "0", "50", "", ""},
		{"", "", "", "", "", "", "", "", "", "", ""},
	}

	products := catalog.Normalize(records)
	require.Len(t, products, 2)

	a1 := products[0]
	require.Equal(t, "A1", a1.ID)
	require.True(t, a1.Precio.Equal(decimal.NewFromInt(1250)))
	require.True(t, a1.Destacado)
	require.Equal(t, "G1", a1.PromoGroup)
	require.Equal(t, "Otros", a1.Subcategoria)
	require.Equal(t, "/img/a1.webp", a1.Imagen)
	require.NotNil(t, a1.DPC)
	require.Len(t, a1.DPC.Tramos, 1)
	require.True(t, a1.DPC.Tramos[0].Min.Equal(decimal.NewFromInt(6)))
	require.True(t, a1.DPC.Tramos[0].Precio.Equal(decimal.NewFromInt(1100)))
	require.NotNil(t, a1.Stock)
	require.EqualValues(t, 12, *a1.Stock)

	a3 := products[1]
	require.Equal(t, "A3", a3.Nombre, "nombre falls back to id")
	require.Equal(t, "Otros", a3.Categoria)
	require.True(t, a3.Precio.IsZero())
	require.Nil(t, a3.DPC, "promo needs both min and price")
	require.Nil(t, a3.Stock)
}

func TestProductJSONUsesStorefrontKeys(t *testing.T) {
	products := catalog.Normalize([][]string{
		{"id", "nombre", "precio_base", "promo_min_qty", "promo_precio", "marca"},
		{"B1", "Café", "99,5", "3", "90", "Sello"},
	})
	require.Len(t, products, 1)

	raw, err := json.Marshal(products[0])
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, 99.5, decoded["precio"])
	require.Equal(t, "Sello", decoded["marca"])
	require.Equal(t, map[string]any{"tramos": []any{map[string]any{"min": 3.0, "precio": 90.0}}}, decoded["dpc"])

	var back catalog.Product
	require.NoError(t, json.Unmarshal(raw, &back))
	require.True(t, back.Precio.Equal(products[0].Precio.Decimal))
}

func TestTitleAndPricingProduct(t *testing.T) {
	upper := catalog.NewAmount(decimal.NewFromInt(10))
	p := catalog.Product{
		ID:           "C1",
		Nombre:       "Galletitas  ",
		Marca:        "Maná",
		Presentacion: "500 g",
		Precio:       catalog.NewAmount(decimal.NewFromInt(80)),
		PromoGroup:   "G",
		DPC: &catalog.DPC{Tramos: []catalog.Tier{
			{Min: catalog.NewAmount(decimal.NewFromInt(3)), Max: &upper, Precio: catalog.NewAmount(decimal.NewFromInt(70))},
		}},
	}
	require.Equal(t, "Galletitas (Maná) - 500 g", p.Title())

	pp := p.PricingProduct()
	require.Equal(t, "C1", pp.ID)
	require.Equal(t, "G", pp.PromoGroup)
	require.Len(t, pp.Tiers, 1)
	require.True(t, pp.Tiers[0].MaxQty.Equal(decimal.NewFromInt(10)))
	require.True(t, pp.Tiers[0].Price.Equal(decimal.NewFromInt(70)))
}
