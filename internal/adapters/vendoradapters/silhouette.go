package vendoradapters

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/lensly/catalog-service/internal/adapters/sdk"
	"github.com/lensly/catalog-service/internal/types"
)

//go:embed fixtures/silhouette.json
var silhouetteFixture []byte

func init() {
	sdk.Default.MustRegister(&SilhouetteAdapter{})
}

// SilhouetteAdapter normalizes the Silhouette partner API payload. The
// API reports decimal prices; they are converted to minor units here so
// the canonical form is integer-only.
type SilhouetteAdapter struct{}

func (a *SilhouetteAdapter) Slug() string { return "silhouette" }

func (a *SilhouetteAdapter) Fixture() json.RawMessage { return silhouetteFixture }

type silhouetteRaw struct {
	Items []struct {
		ArticleNumber string  `json:"articleNumber"`
		Model         string  `json:"model"`
		ProductLine   string  `json:"productLine"`
		Kind          string  `json:"kind"` // "frame", "lens", "accessory"
		RetailPrice   float64 `json:"retailPrice"`
		Currency      string  `json:"currency"`
		ImageURL      string  `json:"imageUrl"`
		RimType       string  `json:"rimType"`
	} `json:"items"`
}

func (a *SilhouetteAdapter) Transform(raw json.RawMessage) ([]types.NormalizedItem, error) {
	var payload silhouetteRaw
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding silhouette payload: %w", err)
	}

	items := make([]types.NormalizedItem, 0, len(payload.Items))
	for _, it := range payload.Items {
		name := it.Model
		if it.ProductLine != "" {
			name = it.ProductLine + " " + it.Model
		}
		item := types.NormalizedItem{
			SKU:      it.ArticleNumber,
			Name:     name,
			Category: silhouetteCategory(it.Kind),
			Currency: it.Currency,
			ImageURL: it.ImageURL,
		}
		if it.RetailPrice > 0 {
			minor := int(math.Round(it.RetailPrice * 100))
			item.Price = &minor
		}
		if it.RimType != "" {
			item.Attributes = map[string]any{"rimType": it.RimType}
		}
		items = append(items, item)
	}
	return items, nil
}

func silhouetteCategory(kind string) types.Category {
	switch strings.ToLower(kind) {
	case "frame", "frames":
		return types.CategoryFrames
	case "lens", "lenses":
		return types.CategoryLenses
	case "accessory", "accessories":
		return types.CategoryAccessories
	default:
		return types.CategoryOther
	}
}
