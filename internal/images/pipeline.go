package images

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/fsutil"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

// Pass names as they appear in logs.
const (
	PassConvert  = "convert"
	PassOptimize = "optimize"
)

// Report counts what a run produced.
type Report struct {
	Converted int // WebP files written by pass 1
	Optimized int // Re-encoded or minified files written by pass 2
	Copied    int // Unknown files copied by pass 2
}

// source is one file below the source root.
type source struct {
	path   string
	rel    string
	format Format
}

// Processor runs both passes.
type Processor struct {
	cfg config.ImagesConfig
	svg *svgOptimizer
}

// New creates a Processor.
func New(cfg config.ImagesConfig) *Processor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Processor{cfg: cfg, svg: newSVGOptimizer(cfg.SVG)}
}

// Process scans the full source tree and runs pass 1 then pass 2.
func (p *Processor) Process(ctx context.Context) (*Report, error) {
	srcs, err := p.scan()
	if err != nil {
		return nil, err
	}
	converts, optimizes, err := plan(srcs)
	if err != nil {
		return nil, err
	}
	rep := &Report{}
	if err := p.convert(ctx, converts, rep); err != nil {
		return nil, err
	}
	if err := p.optimize(ctx, optimizes, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

// Run implements the task signature.
func (p *Processor) Run(ctx context.Context) error {
	_, err := p.Process(ctx)
	return err
}

func (p *Processor) scan() ([]source, error) {
	info, err := os.Stat(p.cfg.Source)
	if os.IsNotExist(err) {
		slog.Info("Image source directory missing; nothing to do", logfields.Path(p.cfg.Source))
		return nil, nil
	}
	if err != nil || !info.IsDir() {
		return nil, ferrors.SourceError("image source is not a readable directory").
			WithContext("path", p.cfg.Source).WithCause(err).Build()
	}
	rels, err := doublestar.Glob(os.DirFS(p.cfg.Source), "**/*", doublestar.WithFilesOnly())
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategorySource, "failed to list images").
			WithContext("path", p.cfg.Source).Build()
	}
	sort.Strings(rels)

	srcs := make([]source, 0, len(rels))
	for _, rel := range rels {
		path := filepath.Join(p.cfg.Source, filepath.FromSlash(rel))
		format, err := Detect(path)
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, source{path: path, rel: filepath.FromSlash(rel), format: format})
	}
	return srcs, nil
}

func webpName(rel string) string {
	return strings.TrimSuffix(rel, filepath.Ext(rel)) + ".webp"
}

// plan splits the sources between the passes. Every output path has exactly one
// writer: WebP names belong to pass 1, and a pass-2 file that would land on one of
// them is rejected before anything is written.
func plan(srcs []source) (converts, optimizes []source, err error) {
	owners := map[string]string{}
	for _, s := range srcs {
		if !s.format.Raster() {
			continue
		}
		out := webpName(s.rel)
		if prev, dup := owners[out]; dup {
			return nil, nil, collision("two images convert to the same WebP output", out, prev, s.rel)
		}
		owners[out] = s.rel
		converts = append(converts, s)
	}
	for _, s := range srcs {
		if s.format == FormatWebP {
			continue
		}
		if prev, dup := owners[s.rel]; dup {
			return nil, nil, collision("image would overwrite a converted WebP output", s.rel, prev, s.rel)
		}
		optimizes = append(optimizes, s)
	}
	return converts, optimizes, nil
}

func collision(msg, out, first, second string) error {
	return ferrors.ValidationError(msg).
		WithContext("output", out).
		WithContext("first", first).
		WithContext("second", second).Build()
}

// convert is pass 1.
func (p *Processor) convert(ctx context.Context, jobs []source, rep *Report) error {
	var written atomic.Int64
	err := p.each(ctx, PassConvert, jobs, func(s source) error {
		data, err := os.ReadFile(s.path)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategorySource, "failed to read image").
				WithContext("path", s.path).Build()
		}
		img, err := decode(s.format, data)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryTransform, "failed to decode image").
				WithContext("path", s.path).WithContext("format", string(s.format)).Build()
		}
		out, err := encodeWebP(img, p.cfg.WebPQuality)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryTransform, "failed to encode webp").
				WithContext("path", s.path).Build()
		}
		if err := fsutil.WriteFile(filepath.Join(p.cfg.Output, webpName(s.rel)), out); err != nil {
			return err
		}
		written.Add(1)
		return nil
	})
	rep.Converted = int(written.Load())
	return err
}

// optimize is pass 2.
func (p *Processor) optimize(ctx context.Context, jobs []source, rep *Report) error {
	var optimized, copied atomic.Int64
	err := p.each(ctx, PassOptimize, jobs, func(s source) error {
		data, err := os.ReadFile(s.path)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategorySource, "failed to read image").
				WithContext("path", s.path).Build()
		}
		var out []byte
		switch s.format {
		case FormatJPEG:
			out, err = optimizeJPEG(data, p.cfg.JPEGQuality)
		case FormatPNG:
			out, err = optimizePNG(data, p.cfg.PNGLevel)
		case FormatGIF:
			out, err = optimizeGIF(data)
		case FormatSVG:
			out, err = p.svg.optimize(data)
		default:
			out = data
		}
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryTransform, "failed to optimize image").
				WithContext("path", s.path).WithContext("format", string(s.format)).Build()
		}
		if err := fsutil.WriteFile(filepath.Join(p.cfg.Output, s.rel), out); err != nil {
			return err
		}
		if s.format == FormatUnknown {
			copied.Add(1)
		} else {
			optimized.Add(1)
		}
		return nil
	})
	rep.Optimized = int(optimized.Load())
	rep.Copied = int(copied.Load())
	return err
}

// each runs fn over jobs on a bounded pool. The first failure cancels the rest.
func (p *Processor) each(ctx context.Context, pass string, jobs []source, fn func(source) error) error {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, s := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(s)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Image pass finished",
		logfields.Pass(pass),
		logfields.Count(len(jobs)),
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	return nil
}
