package markup

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/frontmatter"
	"git.home.luguber.info/inful/assetbuilder/internal/fsutil"
	"git.home.luguber.info/inful/assetbuilder/internal/livereload"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

// NoLayout renders a page body on its own.
const NoLayout = "none"

const (
	layoutPrefix = "layouts/"
	helperPrefix = "helpers/"
	bodyTemplate = "body"
)

// Result describes one assembly run.
type Result struct {
	Pages       []string // Written output files, in page order
	Fingerprint string   // Hash over all rendered pages
}

// Assembler renders the template root into the working output root.
type Assembler struct {
	cfg      config.MarkupConfig
	outDir   string
	notifier livereload.Notifier

	mu  sync.Mutex
	idx *index
}

// New creates an Assembler writing pages to outDir.
func New(cfg config.MarkupConfig, outDir string, notifier livereload.Notifier) *Assembler {
	if notifier == nil {
		notifier = livereload.NopNotifier{}
	}
	if cfg.DefaultLayout == "" {
		cfg.DefaultLayout = "default"
	}
	return &Assembler{cfg: cfg, outDir: outDir, notifier: notifier}
}

// Refresh rebuilds the layout, partial, helper and data index from disk.
func (a *Assembler) Refresh() error {
	idx, err := loadIndex(a.cfg.Layouts, a.cfg.Partials, a.cfg.Helpers, a.cfg.Data)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.idx = idx
	a.mu.Unlock()
	return nil
}

// Assemble refreshes the index and renders every page. The first failing page aborts
// the run; pages rendered before it stay written.
func (a *Assembler) Assemble(ctx context.Context) (*Result, error) {
	start := time.Now()
	if err := a.Refresh(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	idx := a.idx
	a.mu.Unlock()

	base, err := buildBase(idx)
	if err != nil {
		return nil, err
	}

	pages, err := doublestar.FilepathGlob(filepath.Join(a.cfg.Root, "*.html"), doublestar.WithFilesOnly())
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategorySource, "failed to list pages").
			WithContext("path", a.cfg.Root).Build()
	}

	res := &Result{}
	var all bytes.Buffer
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(page), ".html")
		out, err := a.renderPage(base, idx, page, name)
		if err != nil {
			return nil, err
		}
		target := filepath.Join(a.outDir, name+".html")
		if err := fsutil.WriteFile(target, out); err != nil {
			return nil, err
		}
		slog.Debug("Page assembled", logfields.Path(page), logfields.Output(target), logfields.Bytes(len(out)))
		res.Pages = append(res.Pages, target)
		fmt.Fprintf(&all, "%s\n%d\n", name, len(out))
		all.Write(out)
	}

	res.Fingerprint = livereload.Fingerprint("markup", all.Bytes())
	slog.Info("Markup assembled",
		logfields.Count(len(res.Pages)),
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	a.notifier.Notify(res.Fingerprint)
	return res, nil
}

// Run implements the task signature.
func (a *Assembler) Run(ctx context.Context) error {
	_, err := a.Assemble(ctx)
	return err
}

// buildBase parses layouts, partials and helpers into one set that every page clones.
func buildBase(idx *index) (*template.Template, error) {
	base := template.New("").Funcs(baseFuncs())
	add := func(name, src string) error {
		if _, err := base.New(name).Parse(src); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryTransform, "failed to parse template").
				WithContext("template", name).Build()
		}
		return nil
	}
	for _, name := range sortedKeys(idx.partials) {
		if err := add(name, idx.partials[name]); err != nil {
			return nil, err
		}
	}
	for _, name := range sortedKeys(idx.helpers) {
		if err := add(helperPrefix+name, idx.helpers[name]); err != nil {
			return nil, err
		}
	}
	for _, name := range sortedKeys(idx.layouts) {
		if err := add(layoutPrefix+name, idx.layouts[name]); err != nil {
			return nil, err
		}
	}
	return base, nil
}

func (a *Assembler) renderPage(base *template.Template, idx *index, path, name string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategorySource, "failed to read page").
			WithContext("path", path).Build()
	}
	fields, body, err := frontmatter.Parse(raw)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryTransform, "invalid page front matter").
			WithContext("path", path).Build()
	}

	layout := a.cfg.DefaultLayout
	if v, ok := fields["layout"].(string); ok && v != "" {
		layout = v
	}

	data := make(map[string]any, len(idx.data)+len(fields)+3)
	maps.Copy(data, idx.data)
	maps.Copy(data, fields)
	data["page"] = name
	data["layout"] = layout
	data["root"] = ""

	t, err := base.Clone()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "failed to clone template set").Build()
	}
	t.Funcs(pageFuncs(t, name, data))
	if _, err := t.New(bodyTemplate).Parse(string(body)); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryTransform, "failed to parse page").
			WithContext("path", path).Build()
	}

	entry := bodyTemplate
	if layout != NoLayout {
		entry = layoutPrefix + layout
		if t.Lookup(entry) == nil {
			return nil, ferrors.SourceError("layout not found").
				WithContext("path", path).
				WithContext("layout", layout).Build()
		}
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, entry, data); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryTransform, "failed to render page").
			WithContext("path", path).
			WithContext("layout", layout).Build()
	}
	return buf.Bytes(), nil
}
