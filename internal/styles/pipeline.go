// Package styles builds the single minified stylesheet from the ordered vendor and
// project sources.
//
// Sources are processed strictly in declaration order: vendor stylesheets first, the
// project entry last, so project rules win the cascade. Preprocessor sources go
// through a Compiler, plain CSS is passed through. The concatenation is then prefixed
// for the configured browser targets and minified in a single esbuild transform.
package styles

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/fsutil"
	"git.home.luguber.info/inful/assetbuilder/internal/livereload"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/sources"
)

// Result describes one build.
type Result struct {
	Output      string
	Sources     []string
	Bytes       int
	Fingerprint string
}

// Pipeline compiles the stylesheet.
type Pipeline struct {
	cfg      config.StylesConfig
	compiler Compiler
	notifier livereload.Notifier
	engines  []api.Engine
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCompiler replaces the Dart Sass compiler.
func WithCompiler(c Compiler) Option {
	return func(p *Pipeline) { p.compiler = c }
}

// WithNotifier sets the live reload target.
func WithNotifier(n livereload.Notifier) Option {
	return func(p *Pipeline) {
		if n != nil {
			p.notifier = n
		}
	}
}

// New creates a pipeline. Invalid browser targets are reported here.
func New(cfg config.StylesConfig, opts ...Option) (*Pipeline, error) {
	engines, err := ParseTargets(cfg.Targets)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{cfg: cfg, notifier: livereload.NopNotifier{}, engines: engines}
	for _, opt := range opts {
		opt(p)
	}
	if p.compiler == nil {
		p.compiler = NewSassCompiler(cfg.SassBinary, cfg.IncludePaths)
	}
	return p, nil
}

// Sources returns the ordered input list.
func (p *Pipeline) Sources() []string {
	return append(append([]string{}, p.cfg.Vendor...), p.cfg.Entry)
}

// Build runs the pipeline once.
func (p *Pipeline) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	paths, err := sources.Expand(p.Sources())
	if err != nil {
		return nil, err
	}
	contents, err := sources.ReadAll(paths)
	if err != nil {
		return nil, err
	}

	var joined bytes.Buffer
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		css, err := p.compile(path, contents[i])
		if err != nil {
			return nil, err
		}
		joined.Write(css)
		joined.WriteByte('\n')
	}

	out, err := p.finish(joined.String())
	if err != nil {
		return nil, err
	}

	target := filepath.Join(p.cfg.Output, p.cfg.Filename)
	if err := fsutil.WriteFile(target, out); err != nil {
		return nil, err
	}
	res := &Result{
		Output:      target,
		Sources:     paths,
		Bytes:       len(out),
		Fingerprint: livereload.Fingerprint("styles", out),
	}
	slog.Info("Stylesheet written",
		logfields.Output(target),
		logfields.Count(len(paths)),
		logfields.Bytes(len(out)),
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	p.notifier.Notify(res.Fingerprint)
	return res, nil
}

// Run implements the task signature.
func (p *Pipeline) Run(ctx context.Context) error {
	_, err := p.Build(ctx)
	return err
}

// Close releases the compiler when it holds a process.
func (p *Pipeline) Close() error {
	if c, ok := p.compiler.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func (p *Pipeline) compile(path string, src []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".scss", ".sass":
		slog.Debug("Compiling stylesheet", logfields.Path(path))
		return p.compiler.Compile(path, src)
	default:
		return src, nil
	}
}

// finish adds vendor prefixes for the engine targets and minifies.
func (p *Pipeline) finish(css string) ([]byte, error) {
	res := api.Transform(css, api.TransformOptions{
		Loader:            api.LoaderCSS,
		Engines:           p.engines,
		MinifyWhitespace:  true,
		MinifySyntax:      true,
		MinifyIdentifiers: true,
		LegalComments:     api.LegalCommentsNone,
		Sourcefile:        p.cfg.Filename,
	})
	if len(res.Errors) > 0 {
		msgs := make([]string, 0, len(res.Errors))
		for _, m := range res.Errors {
			msgs = append(msgs, m.Text)
		}
		return nil, ferrors.TransformError("stylesheet minification failed").
			WithContext("errors", strings.Join(msgs, "; ")).Build()
	}
	return res.Code, nil
}
