package catalog

import (
	"strings"

	"golang.org/x/text/currency"

	"github.com/lensly/catalog-service/internal/syncerrors"
	"github.com/lensly/catalog-service/internal/types"
)

// mixedCurrencyAttr is set on priced items when a single run carries more
// than one currency. Mixing is permitted but operators want it visible.
const mixedCurrencyAttr = "mixedCurrency"

// NormalizeResult is the outcome of canonicalizing one adapter output.
type NormalizeResult struct {
	Items   []types.NormalizedItem
	Dropped int
}

// Normalize canonicalizes an adapter's output for hashing and persistence:
// strings are trimmed, currency codes resolved to their ISO-4217 form,
// empty categories defaulted to Other. Items missing a sku or name are
// dropped and counted; a duplicate sku is a hard error, with the later
// occurrence reported.
func Normalize(raw []types.NormalizedItem) (*NormalizeResult, error) {
	items := make([]types.NormalizedItem, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	currencies := make(map[string]bool)
	dropped := 0

	for _, item := range raw {
		item.SKU = strings.TrimSpace(item.SKU)
		item.Name = strings.TrimSpace(item.Name)
		if item.SKU == "" || item.Name == "" {
			dropped++
			continue
		}

		if seen[item.SKU] {
			return nil, syncerrors.New(syncerrors.KindDuplicateSKU, "sku %q appears more than once", item.SKU)
		}
		seen[item.SKU] = true

		item.Category = normalizeCategory(item.Category)
		item.Currency = normalizeCurrency(item.Currency)
		item.ImageURL = strings.TrimSpace(item.ImageURL)

		if item.Currency != "" {
			currencies[item.Currency] = true
		}
		items = append(items, item)
	}

	if len(currencies) > 1 {
		for i := range items {
			if items[i].Currency == "" {
				continue
			}
			if items[i].Attributes == nil {
				items[i].Attributes = make(map[string]any, 1)
			}
			items[i].Attributes[mixedCurrencyAttr] = true
		}
	}

	return &NormalizeResult{Items: items, Dropped: dropped}, nil
}

func normalizeCategory(c types.Category) types.Category {
	switch types.Category(strings.TrimSpace(string(c))) {
	case types.CategoryFrames:
		return types.CategoryFrames
	case types.CategoryLenses:
		return types.CategoryLenses
	case types.CategoryAccessories:
		return types.CategoryAccessories
	default:
		return types.CategoryOther
	}
}

// normalizeCurrency resolves a currency code to its canonical ISO-4217
// uppercase form. Unrecognized codes are kept as trimmed uppercase so the
// data is preserved rather than silently discarded.
func normalizeCurrency(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	if unit, err := currency.ParseISO(code); err == nil {
		return unit.String()
	}
	return strings.ToUpper(code)
}
