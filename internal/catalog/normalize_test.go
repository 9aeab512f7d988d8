package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensly/catalog-service/internal/syncerrors"
	"github.com/lensly/catalog-service/internal/types"
)

func TestNormalizeTrimsAndDefaults(t *testing.T) {
	res, err := Normalize([]types.NormalizedItem{
		{SKU: "  LEM-101 ", Name: " Lemtosh ", Currency: "usd", ImageURL: " https://cdn.example.com/lem.jpg "},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	item := res.Items[0]
	assert.Equal(t, "LEM-101", item.SKU)
	assert.Equal(t, "Lemtosh", item.Name)
	assert.Equal(t, types.CategoryOther, item.Category)
	assert.Equal(t, "USD", item.Currency)
	assert.Equal(t, "https://cdn.example.com/lem.jpg", item.ImageURL)
	assert.Zero(t, res.Dropped)
}

func TestNormalizeDropsItemsMissingRequiredFields(t *testing.T) {
	res, err := Normalize([]types.NormalizedItem{
		{SKU: "LEM-101", Name: "Lemtosh", Category: types.CategoryFrames},
		{SKU: "", Name: "No SKU"},
		{SKU: "NAMELESS-1", Name: "   "},
	})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
	assert.Equal(t, 2, res.Dropped)
}

func TestNormalizeDuplicateSKUIsHardError(t *testing.T) {
	_, err := Normalize([]types.NormalizedItem{
		{SKU: "LEM-101", Name: "Lemtosh"},
		{SKU: "MIL-201", Name: "Miltzen"},
		{SKU: "LEM-101 ", Name: "Lemtosh Again"},
	})
	require.Error(t, err)
	assert.Equal(t, syncerrors.KindDuplicateSKU, syncerrors.KindOf(err))
	assert.Contains(t, err.Error(), "LEM-101")
}

func TestNormalizeFlagsMixedCurrencies(t *testing.T) {
	res, err := Normalize([]types.NormalizedItem{
		{SKU: "LEM-101", Name: "Lemtosh", Currency: "USD"},
		{SKU: "MIL-201", Name: "Miltzen", Currency: "EUR"},
		{SKU: "CASE-1", Name: "Hard Case"}, // no currency, no flag
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 3)

	assert.Equal(t, true, res.Items[0].Attributes["mixedCurrency"])
	assert.Equal(t, true, res.Items[1].Attributes["mixedCurrency"])
	assert.Nil(t, res.Items[2].Attributes)
}

func TestNormalizeUnknownCurrencyKeptUppercase(t *testing.T) {
	res, err := Normalize([]types.NormalizedItem{
		{SKU: "LEM-101", Name: "Lemtosh", Currency: "zzz"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ZZZ", res.Items[0].Currency)
}
