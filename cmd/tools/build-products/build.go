package main

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/makabra/mayorista-api/internal/common"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	s = strings.ToLower(common.StripAccents(s))
	return strings.Trim(nonSlug.ReplaceAllString(s, "-"), "-")
}

// buildProducts maps each row to its non-empty trimmed cells keyed by header.
// Rows without nombre or categoria are dropped. ids are derived from
// nombre-presentacion-marca and made unique with -2, -3 suffixes.
func buildProducts(rows [][]string) []map[string]any {
	if len(rows) == 0 {
		return []map[string]any{}
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	seen := make(map[string]bool)
	out := make([]map[string]any, 0, len(rows)-1)
	for _, row := range rows[1:] {
		p := make(map[string]any)
		for i, cell := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if v := strings.TrimSpace(cell); v != "" {
				p[header[i]] = v
			}
		}
		if p["nombre"] == nil || p["categoria"] == nil {
			continue
		}
		p["id"] = uniqueID(p, seen)
		if tags, ok := p["tags"].(string); ok {
			p["tags"] = splitTags(tags)
		}
		out = append(out, p)
	}
	return out
}

func uniqueID(p map[string]any, seen map[string]bool) string {
	var parts []string
	for _, key := range []string{"nombre", "presentacion", "marca"} {
		if v, ok := p[key].(string); ok {
			parts = append(parts, slugify(v))
		}
	}
	base := strings.Join(parts, "-")
	id := base
	for n := 2; seen[id]; n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	seen[id] = true
	return id
}

func splitTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func encode(products []map[string]any) ([]byte, error) {
	return json.MarshalIndent(products, "", "  ")
}
