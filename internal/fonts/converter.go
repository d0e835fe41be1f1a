// Package fonts converts outline fonts to the web container formats.
//
// Every source matching the configured extensions is validated and wrapped as WOFF
// (zlib per table) and WOFF2 (one Brotli stream). Outputs are written beside the
// source. Converters only read outline sources, so re-running over a directory that
// already holds converted files is idempotent.
package fonts

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/fsutil"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

// Supported output formats.
const (
	FormatWOFF  = "woff"
	FormatWOFF2 = "woff2"
)

var encoders = map[string]func(*font) ([]byte, error){
	FormatWOFF:  encodeWOFF,
	FormatWOFF2: encodeWOFF2,
}

// Report lists the files a run wrote.
type Report struct {
	Sources []string
	Written []string
}

// Converter converts the font source tree.
type Converter struct {
	cfg config.FontsConfig
}

// New creates a Converter.
func New(cfg config.FontsConfig) *Converter {
	return &Converter{cfg: cfg}
}

// Run implements the task signature.
func (c *Converter) Run(ctx context.Context) error {
	_, err := c.Convert(ctx)
	return err
}

// Convert converts every matching source below the font root.
func (c *Converter) Convert(ctx context.Context) (*Report, error) {
	start := time.Now()
	srcs, err := c.sources()
	if err != nil {
		return nil, err
	}
	rep := &Report{Sources: srcs}
	for _, src := range srcs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		written, err := c.convertOne(ctx, src)
		if err != nil {
			return nil, err
		}
		rep.Written = append(rep.Written, written...)
	}
	slog.Info("Fonts converted",
		logfields.Count(len(srcs)),
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	return rep, nil
}

func (c *Converter) sources() ([]string, error) {
	if _, err := os.Stat(c.cfg.Source); os.IsNotExist(err) {
		return nil, nil
	}
	rels, err := doublestar.Glob(os.DirFS(c.cfg.Source), "**/*", doublestar.WithFilesOnly())
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategorySource, "failed to list fonts").
			WithContext("path", c.cfg.Source).Build()
	}
	sort.Strings(rels)
	var out []string
	for _, rel := range rels {
		ext := strings.ToLower(filepath.Ext(rel))
		if slices.ContainsFunc(c.cfg.Extensions, func(e string) bool { return strings.EqualFold(e, ext) }) {
			out = append(out, filepath.Join(c.cfg.Source, filepath.FromSlash(rel)))
		}
	}
	return out, nil
}

// convertOne runs the enabled encoders for one source concurrently.
func (c *Converter) convertOne(ctx context.Context, src string) ([]string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategorySource, "failed to read font").
			WithContext("path", src).Build()
	}
	f, err := parseFont(data)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryTransform, "invalid outline font").
			WithContext("path", src).Build()
	}

	base := strings.TrimSuffix(src, filepath.Ext(src))
	var mu sync.Mutex
	var written []string
	for _, format := range c.cfg.Formats {
		if _, ok := encoders[format]; !ok {
			return nil, ferrors.ValidationError("unknown font format").WithContext("format", format).Build()
		}
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, format := range c.cfg.Formats {
		encode := encoders[format]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := encode(f)
			if err != nil {
				return ferrors.WrapError(err, ferrors.CategoryTransform, "font conversion failed").
					WithContext("path", src).WithContext("format", format).Build()
			}
			target := base + "." + format
			if err := fsutil.WriteFile(target, out); err != nil {
				return err
			}
			slog.Debug("Font written", logfields.Path(src), logfields.Output(target), logfields.Bytes(len(out)))
			mu.Lock()
			written = append(written, target)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(written)
	return written, nil
}
