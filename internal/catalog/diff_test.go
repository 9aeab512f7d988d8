package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensly/catalog-service/internal/types"
)

func hashesOf(items ...types.NormalizedItem) map[string]string {
	m := make(map[string]string, len(items))
	for _, it := range items {
		m[it.SKU] = FieldsHash(it)
	}
	return m
}

func TestBuildPlanEmptyToPopulated(t *testing.T) {
	incoming := []types.NormalizedItem{
		frame("LEM-101", "Lemtosh", 31000),
		frame("MIL-201", "Miltzen", 29500),
	}

	plan := BuildPlan(map[string]string{}, incoming)

	assert.Len(t, plan.Creates, 2)
	assert.Empty(t, plan.Updates)
	assert.Empty(t, plan.Tombstones)
	assert.Zero(t, plan.Unchanged)
}

func TestBuildPlanIdenticalCatalogIsAllUnchanged(t *testing.T) {
	a := frame("LEM-101", "Lemtosh", 31000)
	b := frame("MIL-201", "Miltzen", 29500)

	plan := BuildPlan(hashesOf(a, b), []types.NormalizedItem{b, a})

	assert.Empty(t, plan.Creates)
	assert.Empty(t, plan.Updates)
	assert.Empty(t, plan.Tombstones)
	assert.Equal(t, 2, plan.Unchanged)
}

func TestBuildPlanPriceChangeIsSingleUpdate(t *testing.T) {
	a := frame("LEM-101", "Lemtosh", 31000)
	b := frame("MIL-201", "Miltzen", 29500)

	changed := a
	changed.Price = intPtr(32500)

	plan := BuildPlan(hashesOf(a, b), []types.NormalizedItem{changed, b})

	require.Len(t, plan.Updates, 1)
	assert.Equal(t, "LEM-101", plan.Updates[0].SKU)
	assert.Empty(t, plan.Creates)
	assert.Empty(t, plan.Tombstones)
	assert.Equal(t, 1, plan.Unchanged)
}

func TestBuildPlanAbsentSKUIsTombstoned(t *testing.T) {
	a := frame("LEM-101", "Lemtosh", 31000)
	b := frame("MIL-201", "Miltzen", 29500)

	plan := BuildPlan(hashesOf(a, b), []types.NormalizedItem{a})

	assert.Empty(t, plan.Creates)
	assert.Empty(t, plan.Updates)
	require.Len(t, plan.Tombstones, 1)
	assert.Equal(t, "MIL-201", plan.Tombstones[0])
}

func TestBuildPlanMixedChanges(t *testing.T) {
	kept := frame("LEM-101", "Lemtosh", 31000)
	gone := frame("MIL-201", "Miltzen", 29500)
	changed := frame("ZEV-301", "Zev", 33500)

	newPrice := changed
	newPrice.Price = intPtr(34000)
	fresh := frame("ARN-401", "Arnel", 30500)

	plan := BuildPlan(hashesOf(kept, gone, changed),
		[]types.NormalizedItem{kept, newPrice, fresh})

	assert.Len(t, plan.Creates, 1)
	assert.Len(t, plan.Updates, 1)
	assert.Len(t, plan.Tombstones, 1)
	assert.Equal(t, 1, plan.Unchanged)
}
