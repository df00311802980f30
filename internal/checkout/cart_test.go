package checkout

import (
	"encoding/json"
	"testing"

	"github.com/ariefcatur/card-market/internal/pricing"
)

func TestQuantityDecode(t *testing.T) {
	cases := map[string]int{
		`2`:       2,
		`"3"`:     3,
		`" 4 "`:   4,
		`2.9`:     2,
		`"7.99"`:  7,
		`0`:       1,
		`-5`:      1,
		`0.5`:     1,
		`1000`:    999,
		`1e9`:     999,
		`"abc"`:   1,
		`null`:    1,
		`true`:    1,
		`{"a":1}`: 1,
		`"NaN"`:   1,
		`"Inf"`:   1,
	}
	for raw, want := range cases {
		var line CartLine
		if err := json.Unmarshal([]byte(`{"sku":"X","qty":`+raw+`}`), &line); err != nil {
			t.Fatalf("%s: decode: %v", raw, err)
		}
		if got := clampQty(float64(line.Qty)); got != want {
			t.Errorf("qty %s = %d, want %d", raw, got, want)
		}
	}
}

func TestMissingQuantityIsOne(t *testing.T) {
	var line CartLine
	if err := json.Unmarshal([]byte(`{"sku":"X"}`), &line); err != nil {
		t.Fatal(err)
	}
	items := Normalize([]CartLine{line})
	if len(items) != 1 || items[0].Qty != 1 {
		t.Fatalf("items = %+v", items)
	}
}

func TestNormalize(t *testing.T) {
	items := Normalize([]CartLine{
		{SKU: "  A ", Qty: 2, Condition: "lp"},
		{SKU: "   ", Qty: 5},
		{SKU: "B", Qty: 0, Condition: "Mint-ish"},
		{SKU: "C", Qty: 4000, Condition: "Heavily Played"},
	})
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}
	if items[0].SKU != "A" || items[0].Qty != 2 || items[0].Condition != pricing.LightlyPlayed {
		t.Fatalf("items[0] = %+v", items[0])
	}
	if items[1].Qty != 1 || items[1].Condition != pricing.NearMint {
		t.Fatalf("items[1] = %+v", items[1])
	}
	if items[2].Qty != MaxQty || items[2].Condition != pricing.HeavilyPlayed {
		t.Fatalf("items[2] = %+v", items[2])
	}
}

func jsonDecode(s string, v any) error { return json.Unmarshal([]byte(s), v) }
