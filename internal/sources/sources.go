// Package sources resolves ordered source sets: lists of paths and globs where
// declaration order is significant and "!"-prefixed entries exclude matches.
package sources

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// Negate marks a pattern as an exclusion.
const Negate = "!"

// HasMeta reports whether p contains glob syntax.
func HasMeta(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}

// Expand resolves patterns into a de-duplicated file list. Files appear in the order
// their pattern was declared; matches of one glob are sorted lexically. A literal
// (non-glob) path that does not exist is a source error, a glob matching nothing is not.
func Expand(patterns []string) ([]string, error) {
	var includes, excludes []string
	for _, p := range patterns {
		if rest, ok := strings.CutPrefix(p, Negate); ok {
			excludes = append(excludes, filepath.Clean(rest))
			continue
		}
		includes = append(includes, p)
	}

	seen := make(map[string]bool)
	var out []string
	for _, p := range includes {
		matches, err := expandOne(p)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if seen[m] || Excluded(m, excludes) {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}
	return out, nil
}

func expandOne(pattern string) ([]string, error) {
	if !HasMeta(pattern) {
		info, err := os.Stat(pattern)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategorySource, "source file not found").
				WithContext("path", pattern).Build()
		}
		if info.IsDir() {
			return nil, ferrors.SourceError("source path is a directory").WithContext("path", pattern).Build()
		}
		return []string{filepath.Clean(pattern)}, nil
	}

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid glob pattern").
			WithContext("pattern", pattern).Build()
	}
	files := matches[:0]
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && !info.IsDir() {
			files = append(files, filepath.Clean(m))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Match reports whether path matches any include pattern and no exclude pattern.
// Literal patterns match the exact path only.
func Match(path string, includes, excludes []string) bool {
	path = filepath.Clean(path)
	if Excluded(path, excludes) {
		return false
	}
	for _, p := range includes {
		if matchOne(p, path) {
			return true
		}
	}
	return false
}

// Excluded reports whether path matches any of the exclusion patterns.
func Excluded(path string, excludes []string) bool {
	for _, p := range excludes {
		if matchOne(p, path) {
			return true
		}
	}
	return false
}

func matchOne(pattern, path string) bool {
	if !HasMeta(pattern) {
		return filepath.Clean(pattern) == path
	}
	ok, err := doublestar.PathMatch(filepath.Clean(pattern), path)
	return err == nil && ok
}

// Base returns the static directory prefix of a pattern (everything before the
// first path segment containing glob syntax). Used to decide what to watch.
func Base(pattern string) string {
	if !HasMeta(pattern) {
		return filepath.Dir(pattern)
	}
	segments := strings.Split(filepath.ToSlash(pattern), "/")
	var static []string
	for _, s := range segments {
		if HasMeta(s) {
			break
		}
		static = append(static, s)
	}
	base := strings.Join(static, "/")
	if base == "" {
		if filepath.IsAbs(pattern) {
			return string(filepath.Separator)
		}
		return "."
	}
	if strings.HasPrefix(filepath.ToSlash(pattern), "/") && !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return filepath.FromSlash(base)
}

// ReadAll reads files in order, mapping read failures to source errors.
func ReadAll(paths []string) ([][]byte, error) {
	out := make([][]byte, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategorySource, "failed to read source").
				WithContext("path", p).Build()
		}
		out = append(out, b)
	}
	return out, nil
}
