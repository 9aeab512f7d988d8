package sdk

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/lensly/catalog-service/internal/syncerrors"
	"github.com/lensly/catalog-service/internal/vendors"
)

// ScaffoldOptions controls adapter stub generation.
type ScaffoldOptions struct {
	Slug   string
	Dir    string // target package directory, e.g. internal/adapters/vendoradapters
	DryRun bool
	Force  bool
}

// ScaffoldPlan describes what Scaffold would (or did) write.
type ScaffoldPlan struct {
	Slug    string `json:"slug"`
	Path    string `json:"path"`
	Exists  bool   `json:"exists"`
	Written bool   `json:"written"`
	Content string `json:"content,omitempty"`
}

var stubTmpl = template.Must(template.New("adapter").Parse(`package vendoradapters

import (
	"encoding/json"
	"fmt"

	"github.com/lensly/catalog-service/internal/adapters/sdk"
	"github.com/lensly/catalog-service/internal/types"
)

// {{.TypeName}}Adapter normalizes the {{.Slug}} catalog payload.
type {{.TypeName}}Adapter struct{}

func init() {
	sdk.Default.MustRegister(&{{.TypeName}}Adapter{})
}

func (a *{{.TypeName}}Adapter) Slug() string { return "{{.Slug}}" }

type {{.VarName}}Raw struct {
	Items []struct {
		SKU   string ` + "`" + `json:"sku"` + "`" + `
		Name  string ` + "`" + `json:"name"` + "`" + `
		Price *int   ` + "`" + `json:"price"` + "`" + `
	} ` + "`" + `json:"items"` + "`" + `
}

func (a *{{.TypeName}}Adapter) Transform(raw json.RawMessage) ([]types.NormalizedItem, error) {
	var payload {{.VarName}}Raw
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding {{.Slug}} payload: %w", err)
	}

	items := make([]types.NormalizedItem, 0, len(payload.Items))
	for _, it := range payload.Items {
		items = append(items, types.NormalizedItem{
			SKU:      it.SKU,
			Name:     it.Name,
			Category: types.CategoryOther, // TODO: map {{.Slug}} categories once the payload shape is confirmed
			Price:    it.Price,
		})
	}
	return items, nil
}
`))

// Scaffold plans and optionally writes a new adapter stub for a slug.
// Existing files are rejected unless Force; DryRun returns the plan
// without touching the filesystem.
func Scaffold(opts ScaffoldOptions) (*ScaffoldPlan, error) {
	slug := strings.ToLower(strings.TrimSpace(opts.Slug))
	if !vendors.ValidSlug(slug) {
		return nil, syncerrors.New(syncerrors.KindInvalidVendor, "slug %q is not a valid vendor slug", opts.Slug)
	}
	dir := opts.Dir
	if dir == "" {
		dir = filepath.Join("internal", "adapters", "vendoradapters")
	}

	plan := &ScaffoldPlan{
		Slug: slug,
		Path: filepath.Join(dir, strings.ReplaceAll(slug, "-", "_")+".go"),
	}

	if _, err := os.Stat(plan.Path); err == nil {
		plan.Exists = true
		if !opts.Force {
			return plan, syncerrors.New(syncerrors.KindInvalidPayload, "adapter file %s already exists (use force to overwrite)", plan.Path)
		}
	}

	var buf bytes.Buffer
	if err := stubTmpl.Execute(&buf, map[string]string{
		"Slug":     slug,
		"TypeName": exportedName(slug),
		"VarName":  unexportedName(slug),
	}); err != nil {
		return nil, fmt.Errorf("rendering adapter stub: %w", err)
	}
	plan.Content = buf.String()

	if opts.DryRun {
		return plan, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating adapter dir: %w", err)
	}
	if err := os.WriteFile(plan.Path, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("writing adapter stub: %w", err)
	}
	plan.Written = true
	return plan, nil
}

// exportedName turns "barton-perreira" into "BartonPerreira".
func exportedName(slug string) string {
	parts := strings.Split(slug, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "")
}

func unexportedName(slug string) string {
	name := exportedName(slug)
	return strings.ToLower(name[:1]) + name[1:]
}
