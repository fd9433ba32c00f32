// Command build-products converts the products workbook into the static
// products.json served to the storefront.
package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/makabra/mayorista-api/internal/catalog"
	"github.com/makabra/mayorista-api/internal/obs"
)

func main() {
	in := flag.String("in", filepath.Join("data", "productos.xlsx"), "source workbook")
	out := flag.String("out", filepath.Join("public", "data", "products.json"), "destination JSON file")
	flag.Parse()
	if flag.NArg() > 0 {
		*in = flag.Arg(0)
	}

	logger := obs.NewLogger("console", "info")

	rows, err := catalog.ReadWorkbook(*in)
	if err != nil {
		logger.Fatal().Err(err).Str("in", *in).Msg("read workbook")
	}
	products := buildProducts(rows)

	data, err := encode(products)
	if err != nil {
		logger.Fatal().Err(err).Msg("encode products")
	}
	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		logger.Fatal().Err(err).Msg("create output dir")
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logger.Fatal().Err(err).Str("out", *out).Msg("write products")
	}
	logger.Info().Int("products", len(products)).Str("out", *out).Msg("products exported")
}
