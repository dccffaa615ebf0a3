// Package fees resolves the service fee charged per client.
package fees

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/obligations/internal/clients"
)

// Lookup returns the configured fee for a client. Values may be zero or
// negative; callers apply their own floor.
type Lookup interface {
	Fee(c clients.Client) decimal.Decimal
}

// LookupFunc adapts a plain function to Lookup.
type LookupFunc func(c clients.Client) decimal.Decimal

// Fee implements Lookup.
func (f LookupFunc) Fee(c clients.Client) decimal.Decimal { return f(c) }

// Table maps categories and regimes to fees. Category entries match exactly
// first, then as substrings (longest key wins), then regime, then Default.
type Table struct {
	Default    decimal.Decimal            `yaml:"default" json:"default"`
	Categories map[string]decimal.Decimal `yaml:"categories" json:"categories"`
	Regimes    map[string]decimal.Decimal `yaml:"regimes" json:"regimes"`
}

// Fee implements Lookup.
func (t Table) Fee(c clients.Client) decimal.Decimal {
	if v, ok := t.Categories[c.Category]; ok {
		return v
	}
	if v, ok := t.matchCategory(c.Category); ok {
		return v
	}
	if v, ok := t.Regimes[c.Regime]; ok {
		return v
	}
	return t.Default
}

func (t Table) matchCategory(category string) (decimal.Decimal, bool) {
	if category == "" || len(t.Categories) == 0 {
		return decimal.Zero, false
	}
	keys := make([]string, 0, len(t.Categories))
	for k := range t.Categories {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		if k != "" && strings.Contains(category, k) {
			return t.Categories[k], true
		}
	}
	return decimal.Zero, false
}

// Load reads a YAML fee table. defaultFee fills Default when the file omits it.
func Load(path string, defaultFee decimal.Decimal) (Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("fees: read %s: %w", path, err)
	}
	return Parse(raw, defaultFee)
}

// Parse decodes a YAML fee table.
func Parse(raw []byte, defaultFee decimal.Decimal) (Table, error) {
	var doc struct {
		Default    *decimal.Decimal           `yaml:"default"`
		Categories map[string]decimal.Decimal `yaml:"categories"`
		Regimes    map[string]decimal.Decimal `yaml:"regimes"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Table{}, fmt.Errorf("fees: parse: %w", err)
	}
	t := Table{Default: defaultFee, Categories: doc.Categories, Regimes: doc.Regimes}
	if doc.Default != nil {
		t.Default = *doc.Default
	}
	return t, nil
}
