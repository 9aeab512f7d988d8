// Package vendoradapters holds the built-in per-vendor normalization
// adapters. Each adapter self-registers into sdk.Default at init; the
// engine receives the registry explicitly so tests can substitute one.
package vendoradapters

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lensly/catalog-service/internal/adapters/sdk"
	"github.com/lensly/catalog-service/internal/types"
)

//go:embed fixtures/moscot.json
var moscotFixture []byte

func init() {
	sdk.Default.MustRegister(&MoscotAdapter{})
}

// MoscotAdapter normalizes the payload produced by the moscot scraper.
type MoscotAdapter struct{}

func (a *MoscotAdapter) Slug() string { return "moscot" }

func (a *MoscotAdapter) Fixture() json.RawMessage { return moscotFixture }

type moscotRaw struct {
	Items []struct {
		StyleCode  string   `json:"styleCode"`
		Title      string   `json:"title"`
		Collection string   `json:"collection"` // "eyeglasses", "sunglasses", "accessories"
		PriceCents *int     `json:"priceCents"`
		Currency   string   `json:"currency"`
		Image      string   `json:"image"`
		Colors     []string `json:"colors"`
		Material   string   `json:"material"`
	} `json:"items"`
}

func (a *MoscotAdapter) Transform(raw json.RawMessage) ([]types.NormalizedItem, error) {
	var payload moscotRaw
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding moscot payload: %w", err)
	}

	items := make([]types.NormalizedItem, 0, len(payload.Items))
	for _, it := range payload.Items {
		item := types.NormalizedItem{
			SKU:      it.StyleCode,
			Name:     it.Title,
			Category: moscotCategory(it.Collection),
			Price:    it.PriceCents,
			Currency: it.Currency,
			ImageURL: it.Image,
		}
		attrs := make(map[string]any)
		if len(it.Colors) > 0 {
			attrs["colors"] = strings.Join(it.Colors, ",")
		}
		if it.Material != "" {
			attrs["material"] = it.Material
		}
		if len(attrs) > 0 {
			item.Attributes = attrs
		}
		items = append(items, item)
	}
	return items, nil
}

func moscotCategory(collection string) types.Category {
	switch strings.ToLower(collection) {
	case "eyeglasses", "sunglasses", "opticals":
		return types.CategoryFrames
	case "lenses":
		return types.CategoryLenses
	case "accessories", "cases", "chains":
		return types.CategoryAccessories
	default:
		return types.CategoryOther
	}
}
