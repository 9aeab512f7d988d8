package catalog

import (
	"github.com/lensly/catalog-service/internal/types"
)

// Plan is the three-way patch computed by comparing a normalized item set
// against the persisted catalog.
type Plan struct {
	Creates    []types.NormalizedItem
	Updates    []types.NormalizedItem
	Tombstones []string // skus present in the DB but absent from the run
	Unchanged  int
}

// BuildPlan diffs the incoming normalized items against the existing live
// rows, given as sku → fields hash. Items already normalized; duplicate
// skus were rejected upstream.
func BuildPlan(existing map[string]string, incoming []types.NormalizedItem) Plan {
	var plan Plan
	seen := make(map[string]bool, len(incoming))

	for _, item := range incoming {
		seen[item.SKU] = true
		prior, ok := existing[item.SKU]
		switch {
		case !ok:
			plan.Creates = append(plan.Creates, item)
		case prior != FieldsHash(item):
			plan.Updates = append(plan.Updates, item)
		default:
			plan.Unchanged++
		}
	}

	for sku := range existing {
		if !seen[sku] {
			plan.Tombstones = append(plan.Tombstones, sku)
		}
	}

	return plan
}
