package sdk

import (
	"fmt"

	"github.com/lensly/catalog-service/internal/catalog"
)

// Check is one structural validation step.
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// ValidationReport is the outcome of validating one adapter.
type ValidationReport struct {
	Slug   string  `json:"slug"`
	OK     bool    `json:"ok"`
	Checks []Check `json:"checks"`
}

// Validate runs the structural checks for an adapter: it must be
// registered, its declared slug must match its registration key, and its
// sample fixture (when present) must transform and normalize cleanly.
func Validate(reg *Registry, slug string) *ValidationReport {
	report := &ValidationReport{Slug: slug, OK: true}
	add := func(name string, ok bool, detail string) {
		report.Checks = append(report.Checks, Check{Name: name, OK: ok, Detail: detail})
		if !ok {
			report.OK = false
		}
	}

	adapter, registered := reg.Get(slug)
	if !registered {
		add("adapter registered in index", false, fmt.Sprintf("no adapter registered for %q", slug))
		add("slug matches registry", false, "skipped: adapter not registered")
		add("sample transform round-trips", false, "skipped: adapter not registered")
		return report
	}
	add("adapter registered in index", true, "")

	if adapter.Slug() == slug {
		add("slug matches registry", true, "")
	} else {
		add("slug matches registry", false,
			fmt.Sprintf("adapter declares slug %q but is registered as %q", adapter.Slug(), slug))
	}

	fp, hasFixture := adapter.(FixtureProvider)
	if !hasFixture || len(fp.Fixture()) == 0 {
		add("sample transform round-trips", true, "no sample fixture present")
		return report
	}

	items, err := adapter.Transform(fp.Fixture())
	if err != nil {
		add("sample transform round-trips", false, fmt.Sprintf("transform failed: %v", err))
		return report
	}
	res, err := catalog.Normalize(items)
	if err != nil {
		add("sample transform round-trips", false, fmt.Sprintf("normalization failed: %v", err))
		return report
	}
	add("sample transform round-trips", true,
		fmt.Sprintf("%d items, %d dropped", len(res.Items), res.Dropped))
	return report
}
