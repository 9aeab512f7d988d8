package sdk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensly/catalog-service/internal/syncerrors"
)

func TestScaffoldDryRun(t *testing.T) {
	dir := t.TempDir()

	plan, err := Scaffold(ScaffoldOptions{Slug: "barton-perreira", Dir: dir, DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, "barton-perreira", plan.Slug)
	assert.Equal(t, filepath.Join(dir, "barton_perreira.go"), plan.Path)
	assert.False(t, plan.Written)
	assert.Contains(t, plan.Content, "BartonPerreiraAdapter")
	assert.Contains(t, plan.Content, `return "barton-perreira"`)

	_, statErr := os.Stat(plan.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestScaffoldWritesStub(t *testing.T) {
	dir := t.TempDir()

	plan, err := Scaffold(ScaffoldOptions{Slug: "moscot", Dir: dir})
	require.NoError(t, err)
	assert.True(t, plan.Written)

	content, err := os.ReadFile(plan.Path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "MoscotAdapter")
	assert.Contains(t, string(content), "sdk.Default.MustRegister")
}

func TestScaffoldRejectsExistingWithoutForce(t *testing.T) {
	dir := t.TempDir()

	_, err := Scaffold(ScaffoldOptions{Slug: "moscot", Dir: dir})
	require.NoError(t, err)

	plan, err := Scaffold(ScaffoldOptions{Slug: "moscot", Dir: dir})
	require.Error(t, err)
	assert.True(t, plan.Exists)
	assert.Equal(t, syncerrors.KindInvalidPayload, syncerrors.KindOf(err))

	plan, err = Scaffold(ScaffoldOptions{Slug: "moscot", Dir: dir, Force: true})
	require.NoError(t, err)
	assert.True(t, plan.Written)
}

func TestScaffoldRejectsInvalidSlug(t *testing.T) {
	_, err := Scaffold(ScaffoldOptions{Slug: "Not A Slug", Dir: t.TempDir(), DryRun: true})
	require.Error(t, err)
	assert.Equal(t, syncerrors.KindInvalidVendor, syncerrors.KindOf(err))
}
