package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/makabra/mayorista-api/internal/catalog"
)

func TestSlugify(t *testing.T) {
	require.Equal(t, "azucar-bella-union-1-kg", slugify("  Azúcar Bella Unión (1 kg) "))
	require.Equal(t, "cafe", slugify("¡Café!"))
}

func TestBuildProductsFromWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "productos.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"nombre", "categoria", "presentacion", "marca", "tags", "precio"},
		{" Yerba ", "Almacén", "1 kg", "Canarias", "mate, yerba ,", "250"},
		{"Yerba", "Almacén", "1 kg", "Canarias", "", "260"},
		{"Sin categoria", "", "", "", "", "10"},
		{"Café", "Almacén", "", "", "", ""},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	records, err := catalog.ReadWorkbook(path)
	require.NoError(t, err)
	products := buildProducts(records)
	require.Len(t, products, 3)

	require.Equal(t, "yerba-1-kg-canarias", products[0]["id"])
	require.Equal(t, "Yerba", products[0]["nombre"])
	require.Equal(t, []string{"mate", "yerba"}, products[0]["tags"])
	require.Equal(t, "yerba-1-kg-canarias-2", products[1]["id"])
	require.NotContains(t, products[1], "tags")
	require.Equal(t, "cafe", products[2]["id"])
	require.NotContains(t, products[2], "precio")

	data, err := encode(products)
	require.NoError(t, err)
	require.Contains(t, string(data), "\n  {\n    \"categoria\"")
}

func TestBuildProductsEmpty(t *testing.T) {
	require.Empty(t, buildProducts(nil))
}
