// Package release rebuilds the release tree from the finalized working files.
package release

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	cp "github.com/otiai10/copy"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/sources"
)

// Release manages the release tree.
type Release struct {
	working string
	dir     string
	include []string
}

// New creates a Release for the configured roots.
func New(paths config.PathsConfig, cfg config.ReleaseConfig) *Release {
	return &Release{working: paths.Working, dir: paths.Release, include: cfg.Include}
}

// Clean removes the release tree. An absent tree is not an error. A release root that
// is, or contains, the working root is refused.
func (r *Release) Clean(_ context.Context) error {
	if r.dir == "" {
		return ferrors.ValidationError("refusing to remove release directory: no path configured").Build()
	}
	dir, err := filepath.Abs(r.dir)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to resolve release directory").
			WithContext("path", r.dir).Build()
	}
	working, err := filepath.Abs(r.working)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to resolve working directory").
			WithContext("path", r.working).Build()
	}
	if dir == filepath.Dir(dir) || config.Within(dir, working) {
		return ferrors.ValidationError("refusing to remove release directory").
			WithContext("path", dir).
			WithContext("working", working).Build()
	}
	if err := os.RemoveAll(dir); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to remove release directory").
			WithContext("path", dir).Build()
	}
	slog.Info("Release directory removed", logfields.Path(dir))
	return nil
}

// Collect copies the included working files into the release tree, preserving their
// paths relative to the working root. Include patterns are relative to the working
// root; a literal entry that does not exist fails the copy.
func (r *Release) Collect(ctx context.Context) ([]string, error) {
	patterns := make([]string, 0, len(r.include))
	for _, p := range r.include {
		if rest, ok := strings.CutPrefix(p, sources.Negate); ok {
			patterns = append(patterns, sources.Negate+filepath.Join(r.working, rest))
			continue
		}
		patterns = append(patterns, filepath.Join(r.working, p))
	}
	files, err := sources.Expand(patterns)
	if err != nil {
		return nil, err
	}

	copied := make([]string, 0, len(files))
	for _, src := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(r.working, src)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "release source outside working root").
				WithContext("path", src).Build()
		}
		dest := filepath.Join(r.dir, rel)
		if err := cp.Copy(src, dest); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to copy release file").
				WithContext("path", src).
				WithContext("output", dest).Build()
		}
		copied = append(copied, dest)
	}
	slog.Info("Release files copied", logfields.Count(len(copied)), logfields.Output(r.dir))
	return copied, nil
}

// Run collects into the release tree.
func (r *Release) Run(ctx context.Context) error {
	_, err := r.Collect(ctx)
	return err
}
