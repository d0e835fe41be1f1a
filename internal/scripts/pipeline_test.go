package scripts

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

type hashes []string

func (h *hashes) Notify(hash string) { *h = append(*h, hash) }

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func fixture(t *testing.T) (string, config.ScriptsConfig) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.ScriptsConfig{
		Vendor: []string{
			writeFile(t, filepath.Join(dir, "node_modules", "one.js"), `window.order=["vendor-one"];`),
			writeFile(t, filepath.Join(dir, "node_modules", "two.js"), `window.order.push("vendor-two") // trailing comment`),
		},
		Entry:    writeFile(t, filepath.Join(dir, "app", "js", "main.js"), `window.order.push("project");`),
		Output:   filepath.Join(dir, "app", "js"),
		Filename: "main.min.js",
	}
	return dir, cfg
}

func TestBuild_OrderAndMinify(t *testing.T) {
	_, cfg := fixture(t)

	res, err := New(cfg, nil).Build(context.Background())
	require.NoError(t, err)

	js, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	out := string(js)
	one := strings.Index(out, "vendor-one")
	two := strings.Index(out, "vendor-two")
	project := strings.Index(out, "project")
	require.True(t, one >= 0 && two >= 0 && project >= 0, out)
	assert.Less(t, one, two)
	assert.Less(t, two, project)
	assert.NotContains(t, out, "trailing comment")
	assert.Len(t, res.Sources, 3)
}

func TestBuild_RepeatedBuildsDoNotDuplicate(t *testing.T) {
	_, cfg := fixture(t)
	// A glob entry also matches the bundle written next to main.js.
	cfg.Entry = filepath.Join(cfg.Output, "*.js")
	var h hashes
	b := New(cfg, &h)

	first, err := b.Build(context.Background())
	require.NoError(t, err)
	firstJS, err := os.ReadFile(first.Output)
	require.NoError(t, err)

	second, err := b.Build(context.Background())
	require.NoError(t, err)
	secondJS, err := os.ReadFile(second.Output)
	require.NoError(t, err)

	assert.Equal(t, string(firstJS), string(secondJS))
	assert.Equal(t, 1, strings.Count(string(secondJS), "project"))
	assert.NotContains(t, second.Sources, second.Output)
	assert.Equal(t, hashes{first.Fingerprint, first.Fingerprint}, h)
}

func TestBuild_MissingVendorIsSourceError(t *testing.T) {
	dir, cfg := fixture(t)
	cfg.Vendor = append(cfg.Vendor, filepath.Join(dir, "node_modules", "wow.js"))

	_, err := New(cfg, nil).Build(context.Background())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategorySource))
}

func TestBuild_SyntaxErrorIsTransformError(t *testing.T) {
	_, cfg := fixture(t)
	writeFile(t, cfg.Entry, "function (")

	_, err := New(cfg, nil).Build(context.Background())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryTransform))
	_, statErr := os.Stat(filepath.Join(cfg.Output, cfg.Filename))
	assert.True(t, os.IsNotExist(statErr))
}
