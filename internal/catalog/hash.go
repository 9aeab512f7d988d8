package catalog

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lensly/catalog-service/internal/types"
)

const (
	// HashVersion is the current version of the canonical hash algorithm.
	HashVersion = 1

	// nullPriceSentinel represents an absent price in the canonical
	// form. NULL price must hash differently than a zero price.
	nullPriceSentinel = "N"

	// fieldSep separates fields within one canonical line. A control
	// character so item values can never collide with the separator.
	fieldSep = "\x1f"
)

// FieldsHash computes the canonical fingerprint of a single item. Two
// items with equal FieldsHash are considered identical by the diff
// engine, so every rule here (trimming, currency lowercasing, sorted
// attribute keys) is load-bearing: any deviation silently breaks no-op
// detection.
func FieldsHash(item types.NormalizedItem) string {
	h := sha256.Sum256([]byte(canonicalLine(item)))
	return hex.EncodeToString(h[:])
}

// CatalogHash computes the canonical fingerprint of a whole normalized
// item set. It is order-independent: the same catalog always yields the
// same hash regardless of the order the adapter emitted items in.
func CatalogHash(items []types.NormalizedItem) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = canonicalLine(item)
	}
	sort.Strings(lines)

	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	h := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(h[:])
}

// canonicalLine renders one item in its canonical serialization:
// hash version, sku, name, category, price (minor units or "N"),
// lowercase currency, image URL, and attributes as JSON with sorted
// keys. The version prefix forces a full re-apply when the algorithm
// changes, instead of a silently wrong no-op.
func canonicalLine(item types.NormalizedItem) string {
	price := nullPriceSentinel
	if item.Price != nil {
		price = strconv.Itoa(*item.Price)
	}

	attrs := ""
	if len(item.Attributes) > 0 {
		// encoding/json sorts map keys, which gives a stable rendering
		b, err := json.Marshal(item.Attributes)
		if err == nil {
			attrs = string(b)
		}
	}

	return fmt.Sprintf("%d%s%s%s%s%s%s%s%s%s%s%s%s%s%s",
		HashVersion, fieldSep,
		item.SKU, fieldSep,
		item.Name, fieldSep,
		string(item.Category), fieldSep,
		price, fieldSep,
		strings.ToLower(item.Currency), fieldSep,
		item.ImageURL, fieldSep,
		attrs,
	)
}
