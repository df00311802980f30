package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ariefcatur/card-market/internal/catalog"
)

// loadSeed reads a SKU-keyed catalog file. The format follows the
// extension: .json is JSON, anything else YAML.
func loadSeed(path string) ([]catalog.Entry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw := map[string]catalog.Entry{}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(b, &raw)
	} else {
		err = yaml.Unmarshal(b, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	skus := make([]string, 0, len(raw))
	for sku := range raw {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	out := make([]catalog.Entry, 0, len(raw))
	for _, sku := range skus {
		e := raw[sku]
		e.SKU = strings.TrimSpace(sku)
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, e)
	}
	return out, nil
}
