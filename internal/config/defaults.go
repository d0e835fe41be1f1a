package config

import (
	"path/filepath"
	"runtime"
	"time"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config)
	Domain() string
}

func defaultAppliers() []DefaultApplier {
	// Order matters: later domains derive their defaults from paths set earlier.
	return []DefaultApplier{
		&PathsDefaultApplier{},
		&MarkupDefaultApplier{},
		&StylesDefaultApplier{},
		&ScriptsDefaultApplier{},
		&ImagesDefaultApplier{},
		&FontsDefaultApplier{},
		&ReleaseDefaultApplier{},
		&ServerDefaultApplier{},
		&WatchDefaultApplier{},
	}
}

func applyDefaults(cfg *Config) {
	for _, a := range defaultAppliers() {
		a.ApplyDefaults(cfg)
	}
}

func orDefault(p *string, def string) {
	if *p == "" {
		*p = def
	}
}

// PathsDefaultApplier handles the working and release roots.
type PathsDefaultApplier struct{}

func (PathsDefaultApplier) Domain() string { return "paths" }

func (PathsDefaultApplier) ApplyDefaults(cfg *Config) {
	orDefault(&cfg.Paths.Working, "app")
	orDefault(&cfg.Paths.Release, "dist")
}

// MarkupDefaultApplier handles the template tree.
type MarkupDefaultApplier struct{}

func (MarkupDefaultApplier) Domain() string { return "markup" }

func (MarkupDefaultApplier) ApplyDefaults(cfg *Config) {
	m := &cfg.Markup
	orDefault(&m.Root, filepath.Join(cfg.Paths.Working, "html"))
	orDefault(&m.Layouts, filepath.Join(m.Root, "layouts"))
	orDefault(&m.Partials, filepath.Join(m.Root, "partials"))
	orDefault(&m.Helpers, filepath.Join(m.Root, "helpers"))
	orDefault(&m.Data, filepath.Join(m.Root, "data"))
	orDefault(&m.DefaultLayout, "default")
}

// StylesDefaultApplier handles the stylesheet pipeline.
type StylesDefaultApplier struct{}

func (StylesDefaultApplier) Domain() string { return "styles" }

func (StylesDefaultApplier) ApplyDefaults(cfg *Config) {
	s := &cfg.Styles
	if s.Vendor == nil {
		s.Vendor = []string{
			"node_modules/swiper/swiper-bundle.css",
			"node_modules/slick-carousel/slick/slick.css",
			"node_modules/animate.css/animate.css",
		}
	}
	orDefault(&s.Entry, filepath.Join(cfg.Paths.Working, "scss", "style.scss"))
	orDefault(&s.Output, filepath.Join(cfg.Paths.Working, "css"))
	orDefault(&s.Filename, "style.min.css")
	if len(s.Targets) == 0 {
		// Roughly "last 10 versions" of the evergreen browsers.
		s.Targets = []string{"chrome100", "edge100", "firefox100", "safari13", "ios13"}
	}
}

// ScriptsDefaultApplier handles the script bundle.
type ScriptsDefaultApplier struct{}

func (ScriptsDefaultApplier) Domain() string { return "scripts" }

func (ScriptsDefaultApplier) ApplyDefaults(cfg *Config) {
	s := &cfg.Scripts
	if s.Vendor == nil {
		s.Vendor = []string{
			"node_modules/swiper/swiper-bundle.js",
			"node_modules/jquery/dist/jquery.js",
			"node_modules/slick-carousel/slick/slick.js",
			"node_modules/wow.js/dist/wow.js",
		}
	}
	orDefault(&s.Entry, filepath.Join(cfg.Paths.Working, "js", "main.js"))
	orDefault(&s.Output, filepath.Join(cfg.Paths.Working, "js"))
	orDefault(&s.Filename, "main.min.js")
}

// ImagesDefaultApplier handles both image passes.
type ImagesDefaultApplier struct{}

func (ImagesDefaultApplier) Domain() string { return "images" }

func (ImagesDefaultApplier) ApplyDefaults(cfg *Config) {
	im := &cfg.Images
	orDefault(&im.Source, filepath.Join(cfg.Paths.Working, "images"))
	orDefault(&im.Output, filepath.Join(cfg.Paths.Release, "images"))
	if im.WebPQuality <= 0 {
		im.WebPQuality = 85
	}
	if im.JPEGQuality <= 0 {
		im.JPEGQuality = 85
	}
	if !im.pngLevelSpecified && im.PNGLevel == 0 {
		im.PNGLevel = 5
	}
	if im.SVG.StripElements == nil {
		im.SVG.StripElements = []string{"metadata", "title", "desc"}
	}
	if im.SVG.Precision <= 0 {
		im.SVG.Precision = 5
	}
	if im.Concurrency <= 0 {
		im.Concurrency = runtime.NumCPU()
	}
}

// FontsDefaultApplier handles font conversion.
type FontsDefaultApplier struct{}

func (FontsDefaultApplier) Domain() string { return "fonts" }

func (FontsDefaultApplier) ApplyDefaults(cfg *Config) {
	f := &cfg.Fonts
	orDefault(&f.Source, filepath.Join(cfg.Paths.Working, "fonts"))
	if len(f.Extensions) == 0 {
		f.Extensions = []string{".ttf"}
	}
	if len(f.Formats) == 0 {
		f.Formats = []string{"woff", "woff2"}
	}
}

// ReleaseDefaultApplier handles the finalized file set.
type ReleaseDefaultApplier struct{}

func (ReleaseDefaultApplier) Domain() string { return "release" }

func (ReleaseDefaultApplier) ApplyDefaults(cfg *Config) {
	if len(cfg.Release.Include) == 0 {
		cfg.Release.Include = []string{
			"css/style.min.css",
			"fonts/**/*",
			"js/main.min.js",
			"*.html",
		}
	}
}

// ServerDefaultApplier handles the development server.
type ServerDefaultApplier struct{}

func (ServerDefaultApplier) Domain() string { return "server" }

func (ServerDefaultApplier) ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	orDefault(&s.Host, "localhost")
	if s.Port == 0 {
		s.Port = 3000
	}
	if !s.liveReloadSpecified {
		s.LiveReload = true
	}
}

// WatchDefaultApplier builds the default dispatch table from the source paths.
type WatchDefaultApplier struct{}

func (WatchDefaultApplier) Domain() string { return "watch" }

func (WatchDefaultApplier) ApplyDefaults(cfg *Config) {
	w := &cfg.Watch
	if !w.debounceSpecified && w.Debounce == 0 {
		w.Debounce = 150 * time.Millisecond
	}
	if len(w.Rules) > 0 {
		return
	}
	styleDir := filepath.Dir(cfg.Styles.Entry)
	scriptDir := filepath.Dir(cfg.Scripts.Entry)
	w.Rules = []WatchRule{
		{Name: "styles", Include: []string{filepath.Join(styleDir, "**", "*.scss")}, Task: "compile-styles"},
		{
			Name:    "scripts",
			Include: []string{filepath.Join(scriptDir, "**", "*.js")},
			// The bundle lands next to its sources and must not re-trigger itself.
			Exclude: []string{filepath.Join(cfg.Scripts.Output, cfg.Scripts.Filename)},
			Task:    "bundle-scripts",
		},
		{Name: "markup", Include: []string{filepath.Join(cfg.Markup.Root, "**", "*.html")}, Task: "assemble-markup"},
		{Name: "fonts", Include: []string{filepath.Join(cfg.Fonts.Source, "**", "*")}},
	}
}
