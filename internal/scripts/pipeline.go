// Package scripts concatenates the ordered vendor and project scripts into one
// minified bundle. There is no module resolution: sources are joined as-is.
package scripts

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

// Result describes one bundle build.
type Result struct {
	Output      string
	Sources     []string
	Bytes       int
	Fingerprint string
}

// Bundler builds the script bundle.
type Bundler struct {
	cfg      config.ScriptsConfig
	notifier livereload.Notifier
}

// New creates a Bundler.
func New(cfg config.ScriptsConfig, notifier livereload.Notifier) *Bundler {
	if notifier == nil {
		notifier = livereload.NopNotifier{}
	}
	return &Bundler{cfg: cfg, notifier: notifier}
}

// Sources returns the ordered input list. The generated bundle is never an input,
// even when a glob would pick it up.
func (b *Bundler) Sources() []string {
	out := append(append([]string{}, b.cfg.Vendor...), b.cfg.Entry)
	return append(out, sources.Negate+filepath.Join(b.cfg.Output, b.cfg.Filename))
}

// Build runs the bundler once.
func (b *Bundler) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	paths, err := sources.Expand(b.Sources())
	if err != nil {
		return nil, err
	}
	contents, err := sources.ReadAll(paths)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// A newline keeps a trailing line comment in one file from swallowing the next.
	joined := bytes.Join(contents, []byte("\n"))
	res := api.Transform(string(joined), api.TransformOptions{
		Loader:            api.LoaderJS,
		MinifyWhitespace:  true,
		MinifySyntax:      true,
		MinifyIdentifiers: true,
		LegalComments:     api.LegalCommentsNone,
		Sourcefile:        b.cfg.Filename,
	})
	if len(res.Errors) > 0 {
		msgs := make([]string, 0, len(res.Errors))
		for _, m := range res.Errors {
			msg := m.Text
			if m.Location != nil {
				msg = m.Location.LineText + ": " + msg
			}
			msgs = append(msgs, msg)
		}
		return nil, ferrors.TransformError("script minification failed").
			WithContext("errors", strings.Join(msgs, "; ")).Build()
	}

	target := filepath.Join(b.cfg.Output, b.cfg.Filename)
	if err := fsutil.WriteFile(target, res.Code); err != nil {
		return nil, err
	}
	out := &Result{
		Output:      target,
		Sources:     paths,
		Bytes:       len(res.Code),
		Fingerprint: livereload.Fingerprint("scripts", res.Code),
	}
	slog.Info("Script bundle written",
		logfields.Output(target),
		logfields.Count(len(paths)),
		logfields.Bytes(len(res.Code)),
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	b.notifier.Notify(out.Fingerprint)
	return out, nil
}

// Run implements the task signature.
func (b *Bundler) Run(ctx context.Context) error {
	_, err := b.Build(ctx)
	return err
}
