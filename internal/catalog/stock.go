package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/ariefcatur/card-market/internal/pricing"
	"gopkg.in/yaml.v3"
)

// Stock is either a single count shared by every grade or a per-grade map.
// Map keys are grade codes ("NM") or full names ("Near Mint"); lookups match
// either form case-insensitively.
type Stock struct {
	flat   int
	counts map[string]int
}

func FlatStock(n int) Stock { return Stock{flat: n} }

func CountStock(m map[string]int) Stock {
	if m == nil {
		m = map[string]int{}
	}
	return Stock{counts: maps.Clone(m)}
}

func (s Stock) IsFlat() bool { return s.counts == nil }

// Counts returns a copy of the per-grade map, or nil for flat stock.
func (s Stock) Counts() map[string]int { return maps.Clone(s.counts) }

// For returns the units on hand for grade c. Missing grades count as zero.
func (s Stock) For(c pricing.Condition) int {
	if s.IsFlat() {
		return s.flat
	}
	if k, ok := s.key(c); ok {
		return s.counts[k]
	}
	return 0
}

func (s Stock) key(c pricing.Condition) (string, bool) {
	if _, ok := s.counts[c.Code()]; ok {
		return c.Code(), true
	}
	if _, ok := s.counts[string(c)]; ok {
		return string(c), true
	}
	for k := range s.counts {
		if strings.EqualFold(k, c.Code()) || strings.EqualFold(k, string(c)) {
			return k, true
		}
	}
	return "", false
}

// minus assumes qty <= For(c).
func (s Stock) minus(c pricing.Condition, qty int) Stock {
	if s.IsFlat() {
		return Stock{flat: s.flat - qty}
	}
	out := maps.Clone(s.counts)
	k, ok := s.key(c)
	if !ok {
		k = c.Code()
	}
	out[k] -= qty
	return Stock{counts: out}
}

func (s Stock) validate() error {
	if s.flat < 0 {
		return ErrNegativeStock
	}
	for k, n := range s.counts {
		if n < 0 {
			return fmt.Errorf("%w: %s=%d", ErrNegativeStock, k, n)
		}
	}
	return nil
}

func (s Stock) MarshalJSON() ([]byte, error) {
	if s.IsFlat() {
		return json.Marshal(s.flat)
	}
	return json.Marshal(s.counts)
}

func (s *Stock) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = Stock{}
		return nil
	}
	var next Stock
	if b[0] == '{' {
		m := map[string]int{}
		if err := json.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("decode stock map: %w", err)
		}
		next = Stock{counts: m}
	} else {
		var n int
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("decode stock: %w", err)
		}
		next = Stock{flat: n}
	}
	if err := next.validate(); err != nil {
		return err
	}
	*s = next
	return nil
}

func (s Stock) MarshalYAML() (any, error) {
	if s.IsFlat() {
		return s.flat, nil
	}
	return s.counts, nil
}

func (s *Stock) UnmarshalYAML(node *yaml.Node) error {
	var next Stock
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*s = Stock{}
			return nil
		}
		if err := node.Decode(&next.flat); err != nil {
			return fmt.Errorf("decode stock: %w", err)
		}
	case yaml.MappingNode:
		next.counts = map[string]int{}
		if err := node.Decode(&next.counts); err != nil {
			return fmt.Errorf("decode stock map: %w", err)
		}
	default:
		return fmt.Errorf("decode stock: unexpected yaml node at line %d", node.Line)
	}
	if err := next.validate(); err != nil {
		return err
	}
	*s = next
	return nil
}
