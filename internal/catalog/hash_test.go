package catalog

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensly/catalog-service/internal/types"
)

func intPtr(v int) *int { return &v }

func frame(sku, name string, price int) types.NormalizedItem {
	return types.NormalizedItem{
		SKU:      sku,
		Name:     name,
		Category: types.CategoryFrames,
		Price:    intPtr(price),
		Currency: "USD",
	}
}

func TestCatalogHashDeterminism(t *testing.T) {
	items := []types.NormalizedItem{
		frame("LEM-101", "Lemtosh", 31000),
		frame("MIL-201", "Miltzen", 29500),
	}

	h1 := CatalogHash(items)
	h2 := CatalogHash(items)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64) // sha256 hex
}

func TestCatalogHashOrderIndependence(t *testing.T) {
	a := frame("LEM-101", "Lemtosh", 31000)
	b := frame("MIL-201", "Miltzen", 29500)
	c := frame("ZEV-301", "Zev", 33500)

	assert.Equal(t,
		CatalogHash([]types.NormalizedItem{a, b, c}),
		CatalogHash([]types.NormalizedItem{c, a, b}),
	)
}

func TestCatalogHashSensitivity(t *testing.T) {
	base := []types.NormalizedItem{frame("LEM-101", "Lemtosh", 31000)}

	tests := []struct {
		name   string
		mutate func(i types.NormalizedItem) types.NormalizedItem
	}{
		{"price change", func(i types.NormalizedItem) types.NormalizedItem {
			i.Price = intPtr(31500)
			return i
		}},
		{"name change", func(i types.NormalizedItem) types.NormalizedItem {
			i.Name = "Lemtosh Tortoise"
			return i
		}},
		{"category change", func(i types.NormalizedItem) types.NormalizedItem {
			i.Category = types.CategoryAccessories
			return i
		}},
		{"nil price vs zero price", func(i types.NormalizedItem) types.NormalizedItem {
			i.Price = intPtr(0)
			return i
		}},
		{"attribute change", func(i types.NormalizedItem) types.NormalizedItem {
			i.Attributes = map[string]any{"color": "crystal"}
			return i
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mutated := []types.NormalizedItem{tt.mutate(base[0])}
			if tt.name == "nil price vs zero price" {
				base[0].Price = nil
			}
			assert.NotEqual(t, CatalogHash(base), CatalogHash(mutated))
		})
	}
}

func TestCatalogHashCurrencyCaseInsensitive(t *testing.T) {
	a := frame("LEM-101", "Lemtosh", 31000)
	b := a
	b.Currency = "usd"

	// canonical hashing lowercases currency codes
	assert.Equal(t, FieldsHash(a), FieldsHash(b))
}

func TestCatalogHashAttributeKeyOrder(t *testing.T) {
	a := frame("LEM-101", "Lemtosh", 31000)
	a.Attributes = map[string]any{"color": "matte black", "bridge": 24, "polarized": true}

	b := a
	b.Attributes = map[string]any{"polarized": true, "bridge": 24, "color": "matte black"}

	require.Equal(t, FieldsHash(a), FieldsHash(b))
}

func TestCatalogHashEmptySet(t *testing.T) {
	h := CatalogHash(nil)
	assert.Len(t, h, 64)
	assert.Equal(t, h, CatalogHash([]types.NormalizedItem{}))
}

func TestCanonicalLineCarriesHashVersion(t *testing.T) {
	line := canonicalLine(frame("LEM-101", "Lemtosh", 31000))
	assert.True(t, strings.HasPrefix(line, strconv.Itoa(HashVersion)+fieldSep))
}
