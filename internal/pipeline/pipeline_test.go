package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

func put(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, content, 0o600))
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := range 16 {
		for y := range 16 {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

// project lays out a small site: one page with layout and partial, a stylesheet
// overriding a vendor rule, one vendor and one project script, a JPEG, an SVG and a font.
func project(t *testing.T) (string, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	app := filepath.Join(dir, "app")

	put(t, filepath.Join(app, "html", "layouts", "default.html"),
		[]byte(`<html><body>{{ template "header" . }}{{ template "body" . }}</body></html>`))
	put(t, filepath.Join(app, "html", "partials", "header.html"), []byte(`<header>{{ .title }}</header>`))
	put(t, filepath.Join(app, "html", "index.html"), []byte("---\ntitle: Home\n---\n<h1>Welcome</h1>\n"))

	put(t, filepath.Join(dir, "node_modules", "kit", "kit.css"), []byte(".btn{color:red}"))
	put(t, filepath.Join(app, "css", "src", "site.css"), []byte(".btn{color:tan}"))

	put(t, filepath.Join(dir, "node_modules", "kit", "kit.js"), []byte(`console.log("vendor-kit");`))
	put(t, filepath.Join(app, "js", "main.js"), []byte(`console.log("project-main");`))

	put(t, filepath.Join(app, "images", "photo.jpg"), jpegBytes(t))
	put(t, filepath.Join(app, "images", "logo.svg"),
		[]byte(`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><title>x</title><rect width="10" height="10"/></svg>`))

	put(t, filepath.Join(app, "fonts", "go", "Go.ttf"), goregular.TTF)

	put(t, filepath.Join(dir, "dist", "stale.txt"), []byte("old"))

	cfg := config.Default()
	cfg.Styles.Vendor = []string{"node_modules/kit/kit.css"}
	cfg.Styles.Entry = "app/css/src/site.css"
	cfg.Scripts.Vendor = []string{"node_modules/kit/kit.js"}
	cfg.Server.Port = 0
	cfg.ResolvePaths(dir)
	return dir, cfg
}

func listTree(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	require.NoError(t, filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(root, path)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	}))
	sort.Strings(out)
	return out
}

func newPipeline(t *testing.T, cfg *config.Config) *Pipeline {
	t.Helper()
	p, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestNew_RegistersEveryTask(t *testing.T) {
	_, cfg := project(t)
	p := newPipeline(t, cfg)

	assert.Equal(t, []string{
		TaskMarkup, TaskStyles, TaskScripts, TaskImages, TaskFonts,
		TaskServe, TaskWatch, TaskCleanRelease, TaskCopyRelease,
		TaskBuildRelease, TaskDefault,
	}, p.Registry().Names())

	var buf bytes.Buffer
	require.NoError(t, p.Registry().Describe(&buf))
	assert.Contains(t, buf.String(), "build-release = series(clean-release -> process-images -> copy-release)")
	assert.Contains(t, buf.String(), "default = parallel(assemble-markup | compile-styles | bundle-scripts | serve | watch)")
}

func TestNew_UnknownWatchTaskIsConfigError(t *testing.T) {
	_, cfg := project(t)
	cfg.Watch.Rules = append(cfg.Watch.Rules, config.WatchRule{
		Name:    "docs",
		Include: []string{"docs/**/*.md"},
		Task:    "render-docs",
	})

	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestNew_InvalidTargetsFail(t *testing.T) {
	_, cfg := project(t)
	cfg.Styles.Targets = []string{"netscape4"}

	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestNew_ReleaseContainingWorkingRootFails(t *testing.T) {
	dir, cfg := project(t)
	cfg.Paths.Release = dir

	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	assert.FileExists(t, filepath.Join(dir, "app", "html", "index.html"))
}

func TestNew_LiveReloadDisabledHasNoHub(t *testing.T) {
	_, cfg := project(t)
	cfg.Server.LiveReload = false
	p := newPipeline(t, cfg)
	assert.Nil(t, p.Hub())
}

func TestRun_UnknownTask(t *testing.T) {
	_, cfg := project(t)
	p := newPipeline(t, cfg)

	err := p.Run(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
}

func TestEndToEnd_BuildAndRelease(t *testing.T) {
	dir, cfg := project(t)
	p := newPipeline(t, cfg)
	ctx := context.Background()

	for _, name := range []string{TaskMarkup, TaskStyles, TaskScripts, TaskFonts, TaskBuildRelease} {
		require.NoError(t, p.Run(ctx, name), name)
	}

	page, err := os.ReadFile(filepath.Join(dir, "app", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "<header>Home</header>")
	assert.Contains(t, string(page), "<h1>Welcome</h1>")

	css, err := os.ReadFile(filepath.Join(dir, "app", "css", "style.min.css"))
	require.NoError(t, err)
	tan := strings.LastIndex(string(css), "tan")
	require.GreaterOrEqual(t, tan, 0, string(css))
	if red := strings.LastIndex(string(css), "red"); red >= 0 {
		assert.Less(t, red, tan)
	}

	js, err := os.ReadFile(filepath.Join(dir, "app", "js", "main.min.js"))
	require.NoError(t, err)
	assert.Less(t, strings.Index(string(js), "vendor-kit"), strings.Index(string(js), "project-main"))

	assert.Equal(t, []string{
		"css/style.min.css",
		"fonts/go/Go.ttf",
		"fonts/go/Go.woff",
		"fonts/go/Go.woff2",
		"images/logo.svg",
		"images/photo.jpg",
		"images/photo.webp",
		"index.html",
		"js/main.min.js",
	}, listTree(t, filepath.Join(dir, "dist")))

	svg, err := os.ReadFile(filepath.Join(dir, "dist", "images", "logo.svg"))
	require.NoError(t, err)
	assert.NotContains(t, string(svg), "<title>")
}

func TestBuildRelease_HaltsOnFailure(t *testing.T) {
	dir, cfg := project(t)
	put(t, filepath.Join(dir, "app", "images", "broken.png"), []byte("\x89PNG\r\n\x1a\nnot really"))
	p := newPipeline(t, cfg)
	require.NoError(t, p.Run(context.Background(), TaskMarkup))

	err := p.Run(context.Background(), TaskBuildRelease)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryTransform))

	_, statErr := os.Stat(filepath.Join(dir, "dist", "stale.txt"))
	assert.True(t, os.IsNotExist(statErr), "clean-release must have run")
	_, statErr = os.Stat(filepath.Join(dir, "dist", "index.html"))
	assert.True(t, os.IsNotExist(statErr), "copy-release must not run after a failure")
}

func TestMetrics_ExposeTaskResults(t *testing.T) {
	_, cfg := project(t)
	cfg.Server.Metrics = true
	p := newPipeline(t, cfg)

	require.NoError(t, p.Run(context.Background(), TaskMarkup))

	srv := httptest.NewServer(p.Server().Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `assetbuilder_task_results_total{result="success",task="assemble-markup"} 1`)
}
