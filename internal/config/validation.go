package config

import (
	"fmt"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/foundation/normalization"
)

var fontFormats = normalization.New("font format", map[string]string{"woff": "woff", "woff2": "woff2"})

// Within reports whether path is root or lies below it. Two relative paths are compared
// from the same base; paths of mixed kind (one absolute, one relative) are never within
// each other.
func Within(root, path string) bool {
	if filepath.IsAbs(root) != filepath.IsAbs(path) {
		return false
	}
	if !filepath.IsAbs(root) {
		var err error
		if root, err = filepath.Abs(root); err != nil {
			return false
		}
		if path, err = filepath.Abs(path); err != nil {
			return false
		}
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Validate checks the configuration after defaults have been applied. Font formats and
// extensions are normalized in place.
func Validate(cfg *Config) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch {
	case filepath.Clean(cfg.Paths.Working) == filepath.Clean(cfg.Paths.Release):
		add("paths.working and paths.release must differ (release is deleted on every build)")
	case Within(cfg.Paths.Release, cfg.Paths.Working):
		add("paths.release %q must not contain paths.working %q (release is deleted on every build)",
			cfg.Paths.Release, cfg.Paths.Working)
	}
	if cfg.Styles.Entry == "" {
		add("styles.entry is required")
	}
	if strings.ContainsRune(cfg.Styles.Filename, '/') {
		add("styles.filename must be a bare file name, got %q", cfg.Styles.Filename)
	}
	if cfg.Scripts.Entry == "" {
		add("scripts.entry is required")
	}
	if strings.ContainsRune(cfg.Scripts.Filename, '/') {
		add("scripts.filename must be a bare file name, got %q", cfg.Scripts.Filename)
	}
	if q := cfg.Images.WebPQuality; q < 1 || q > 100 {
		add("images.webp_quality must be within 1..100, got %d", q)
	}
	if q := cfg.Images.JPEGQuality; q < 1 || q > 100 {
		add("images.jpeg_quality must be within 1..100, got %d", q)
	}
	if l := cfg.Images.PNGLevel; l < 0 || l > 7 {
		add("images.png_level must be within 0..7, got %d", l)
	}
	for i, f := range cfg.Fonts.Formats {
		format, ok := fontFormats.Lookup(f)
		if !ok {
			add("fonts.formats: unknown format %q (valid: %s)", f, strings.Join(fontFormats.Keys(), ", "))
			continue
		}
		cfg.Fonts.Formats[i] = format
	}
	for i, ext := range cfg.Fonts.Extensions {
		ext = normalization.Clean(ext)
		cfg.Fonts.Extensions[i] = ext
		if ext == ".woff" || ext == ".woff2" {
			add("fonts.extensions must not include converter output %q", ext)
		}
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		add("server.port out of range: %d", cfg.Server.Port)
	}
	if cfg.Watch.Debounce < 0 {
		add("watch.debounce must not be negative")
	}
	seen := map[string]bool{}
	for i, r := range cfg.Watch.Rules {
		if r.Name == "" {
			add("watch.rules[%d]: name is required", i)
		}
		if seen[r.Name] {
			add("watch.rules[%d]: duplicate rule name %q", i, r.Name)
		}
		seen[r.Name] = true
		if len(r.Include) == 0 {
			add("watch.rules[%d]: at least one include glob is required", i)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return ferrors.ValidationError("invalid configuration").
		WithContext("problems", strings.Join(problems, "; ")).
		Build()
}
