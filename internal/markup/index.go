package markup

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

// index is a snapshot of the template tree. Template maps are keyed by the name
// they are registered under.
type index struct {
	layouts  map[string]string
	partials map[string]string
	helpers  map[string]string
	data     map[string]any
}

func loadIndex(layoutsDir, partialsDir, helpersDir, dataDir string) (*index, error) {
	idx := &index{data: map[string]any{}}
	var err error
	if idx.layouts, err = loadTemplates(layoutsDir, "*.html"); err != nil {
		return nil, err
	}
	if idx.partials, err = loadTemplates(partialsDir, "**/*.html"); err != nil {
		return nil, err
	}
	if idx.helpers, err = loadTemplates(helpersDir, "**/*.html"); err != nil {
		return nil, err
	}

	files, err := listFiles(dataDir, "**/*.{yaml,yml,json}")
	if err != nil {
		return nil, err
	}
	for _, rel := range files {
		path := filepath.Join(dataDir, rel)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategorySource, "failed to read data file").
				WithContext("path", path).Build()
		}
		var v any
		if err := yaml.Unmarshal(raw, &v); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryTransform, "failed to decode data file").
				WithContext("path", path).Build()
		}
		key := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
		if _, dup := idx.data[key]; dup {
			slog.Warn("Data file shadows an earlier one with the same name", logfields.Path(path))
		}
		idx.data[key] = v
	}
	return idx, nil
}

// loadTemplates reads every file matching pattern below dir. A missing dir yields
// an empty set.
func loadTemplates(dir, pattern string) (map[string]string, error) {
	files, err := listFiles(dir, pattern)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(files))
	for _, rel := range files {
		path := filepath.Join(dir, rel)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategorySource, "failed to read template").
				WithContext("path", path).Build()
		}
		out[templateName(rel)] = string(raw)
	}
	return out, nil
}

func templateName(rel string) string {
	return strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))
}

// listFiles returns slash-separated paths relative to dir, sorted.
func listFiles(dir, pattern string) ([]string, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategorySource, "failed to stat template directory").
			WithContext("path", dir).Build()
	}
	if !info.IsDir() {
		return nil, ferrors.SourceError("template path is not a directory").WithContext("path", dir).Build()
	}
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategorySource, "failed to list templates").
			WithContext("path", dir).Build()
	}
	sort.Strings(matches)
	return matches, nil
}
