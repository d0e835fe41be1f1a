package styles

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// fakeCompiler strips a "$" marker so tests can tell compiled output from passthrough.
type fakeCompiler struct {
	calls []string
}

func (f *fakeCompiler) Compile(path string, src []byte) ([]byte, error) {
	f.calls = append(f.calls, filepath.Base(path))
	return []byte(strings.ReplaceAll(string(src), "$", "")), nil
}

type hashes []string

func (h *hashes) Notify(hash string) { *h = append(*h, hash) }

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testConfig(dir string, vendor []string, entry string) config.StylesConfig {
	return config.StylesConfig{
		Vendor:   vendor,
		Entry:    entry,
		Output:   filepath.Join(dir, "css"),
		Filename: "style.min.css",
		Targets:  []string{"chrome100", "safari13"},
	}
}

func TestBuild_PreservesDeclaredOrder(t *testing.T) {
	dir := t.TempDir()
	vendor := []string{
		writeFile(t, dir, "vendor/b.css", ".vendor-first{margin:0}"),
		writeFile(t, dir, "vendor/a.css", ".vendor-second{padding:0}"),
	}
	entry := writeFile(t, dir, "scss/style.scss", ".project{border:0}")
	fc := &fakeCompiler{}

	p, err := New(testConfig(dir, vendor, entry), WithCompiler(fc))
	require.NoError(t, err)
	res, err := p.Build(context.Background())
	require.NoError(t, err)

	css, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	out := string(css)
	first := strings.Index(out, ".vendor-first")
	second := strings.Index(out, ".vendor-second")
	project := strings.Index(out, ".project")
	require.True(t, first >= 0 && second >= 0 && project >= 0, out)
	assert.Less(t, first, second)
	assert.Less(t, second, project)
	assert.Equal(t, []string{"style.scss"}, fc.calls, "only preprocessor sources are compiled")
	assert.Equal(t, filepath.Join(dir, "css", "style.min.css"), res.Output)
}

func TestBuild_ProjectRuleOverridesVendor(t *testing.T) {
	dir := t.TempDir()
	vendor := []string{writeFile(t, dir, "vendor.css", ".btn{color:red}")}
	entry := writeFile(t, dir, "style.scss", "$.btn{color:tan}")

	p, err := New(testConfig(dir, vendor, entry), WithCompiler(&fakeCompiler{}))
	require.NoError(t, err)
	res, err := p.Build(context.Background())
	require.NoError(t, err)

	css, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	out := string(css)
	tan := strings.LastIndex(out, "tan")
	require.GreaterOrEqual(t, tan, 0, out)
	if red := strings.LastIndex(out, "red"); red >= 0 {
		assert.Less(t, red, tan, "vendor declaration must precede the override")
	}
	assert.NotContains(t, out, "$")
}

func TestBuild_MinifiesAndPrefixes(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "style.css", ".a {\n  user-select: none;\n}\n\n/* note */\n")

	p, err := New(testConfig(dir, nil, entry))
	require.NoError(t, err)
	res, err := p.Build(context.Background())
	require.NoError(t, err)

	css, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	out := string(css)
	assert.NotContains(t, out, "note")
	assert.NotContains(t, out, "\n  ")
	assert.Contains(t, out, "-webkit-user-select")
}

func TestBuild_IsRepeatableAndNotifies(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "style.css", ".a{color:blue}")
	var h hashes

	p, err := New(testConfig(dir, nil, entry), WithNotifier(&h))
	require.NoError(t, err)
	first, err := p.Build(context.Background())
	require.NoError(t, err)
	second, err := p.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, hashes{first.Fingerprint, first.Fingerprint}, h)
}

func TestBuild_MissingSourceIsSourceError(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "style.css", ".a{}")
	cfg := testConfig(dir, []string{filepath.Join(dir, "node_modules", "gone.css")}, entry)

	p, err := New(cfg)
	require.NoError(t, err)
	_, err = p.Build(context.Background())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategorySource))
	_, statErr := os.Stat(filepath.Join(dir, "css", "style.min.css"))
	assert.True(t, os.IsNotExist(statErr), "nothing is written on failure")
}

func TestParseTargets(t *testing.T) {
	engines, err := ParseTargets([]string{"chrome100", "Safari13.1", "ios13"})
	require.NoError(t, err)
	require.Len(t, engines, 3)
	assert.Equal(t, "13.1", engines[1].Version)

	_, err = ParseTargets([]string{"netscape4"})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))

	_, err = ParseTargets([]string{"100"})
	require.Error(t, err)
}

func TestSassCompiler(t *testing.T) {
	if _, err := exec.LookPath(DefaultSassBinary); err != nil {
		t.Skip("Dart Sass binary not installed")
	}
	dir := t.TempDir()
	writeFile(t, dir, "_vars.scss", "$accent: tan;\n")
	entry := writeFile(t, dir, "style.scss", "@use 'vars';\n.btn { .icon { color: vars.$accent; } }\n")

	c := NewSassCompiler("", nil)
	defer func() { _ = c.Close() }()
	out, err := c.Compile(entry, mustRead(t, entry))
	require.NoError(t, err)
	assert.Contains(t, string(out), ".btn .icon")
	assert.Contains(t, string(out), "tan")

	_, err = c.Compile(entry, []byte(".broken {"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryTransform))
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}
