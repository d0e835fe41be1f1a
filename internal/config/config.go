package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// DefaultFile is the configuration file looked up when no --config flag is given.
const DefaultFile = "assetbuilder.yaml"

// Config represents the application configuration.
type Config struct {
	Paths   PathsConfig   `yaml:"paths"`
	Markup  MarkupConfig  `yaml:"markup"`
	Styles  StylesConfig  `yaml:"styles"`
	Scripts ScriptsConfig `yaml:"scripts"`
	Images  ImagesConfig  `yaml:"images"`
	Fonts   FontsConfig   `yaml:"fonts"`
	Release ReleaseConfig `yaml:"release"`
	Server  ServerConfig  `yaml:"server"`
	Watch   WatchConfig   `yaml:"watch"`
}

// PathsConfig holds the two derived output roots.
type PathsConfig struct {
	Working string `yaml:"working"` // Working output root, continuously overwritten
	Release string `yaml:"release"` // Release tree, rebuilt from scratch
}

// MarkupConfig describes the page template tree.
type MarkupConfig struct {
	Root          string `yaml:"root"`
	Layouts       string `yaml:"layouts"`
	Partials      string `yaml:"partials"`
	Helpers       string `yaml:"helpers"`
	Data          string `yaml:"data"`
	DefaultLayout string `yaml:"default_layout"`
}

// StylesConfig describes the ordered stylesheet inputs.
type StylesConfig struct {
	Vendor       []string `yaml:"vendor"` // Third-party sources, concatenated first in this order
	Entry        string   `yaml:"entry"`  // Project stylesheet, always last
	Output       string   `yaml:"output"`
	Filename     string   `yaml:"filename"`
	Targets      []string `yaml:"targets"` // Browser support range, e.g. chrome58, safari11
	SassBinary   string   `yaml:"sass_binary,omitempty"`
	IncludePaths []string `yaml:"include_paths,omitempty"`
}

// ScriptsConfig describes the ordered script inputs.
type ScriptsConfig struct {
	Vendor   []string `yaml:"vendor"`
	Entry    string   `yaml:"entry"`
	Output   string   `yaml:"output"`
	Filename string   `yaml:"filename"`
}

// ImagesConfig configures both image passes.
type ImagesConfig struct {
	Source      string    `yaml:"source"`
	Output      string    `yaml:"output"`
	WebPQuality int       `yaml:"webp_quality"`
	JPEGQuality int       `yaml:"jpeg_quality"`
	PNGLevel    int       `yaml:"png_level"` // 0-7, optipng style
	SVG         SVGConfig `yaml:"svg"`
	Concurrency int       `yaml:"concurrency"`

	pngLevelSpecified bool
}

// SVGConfig controls the vector minifier.
type SVGConfig struct {
	RemoveViewBox bool     `yaml:"remove_view_box"`
	StripElements []string `yaml:"strip_elements"`
	Precision     int      `yaml:"precision"`
}

// FontsConfig configures outline font conversion.
type FontsConfig struct {
	Source     string   `yaml:"source"`
	Extensions []string `yaml:"extensions"`
	Formats    []string `yaml:"formats"` // woff, woff2
}

// ReleaseConfig lists the finalized file set copied into the release tree.
type ReleaseConfig struct {
	Include []string `yaml:"include"` // Globs relative to the working root
}

// ServerConfig configures the development server.
type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	LiveReload bool   `yaml:"live_reload"`
	Metrics    bool   `yaml:"metrics"`

	liveReloadSpecified bool
}

// WatchConfig configures the watch supervisor.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	Rules    []WatchRule   `yaml:"rules,omitempty"`

	debounceSpecified bool
}

// WatchRule maps a source category to the task re-run on change. An empty Task makes the
// rule inert: events are observed and logged but nothing runs.
type WatchRule struct {
	Name    string   `yaml:"name"`
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude,omitempty"`
	Task    string   `yaml:"task,omitempty"`
}

// UnmarshalYAML records whether live_reload was explicitly set so the default can be applied.
func (s *ServerConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw ServerConfig
	var r raw
	if err := value.Decode(&r); err != nil {
		return err
	}
	*s = ServerConfig(r)
	s.liveReloadSpecified = hasKey(value, "live_reload")
	return nil
}

// UnmarshalYAML records whether png_level was explicitly set (0 is a valid level).
func (im *ImagesConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw ImagesConfig
	var r raw
	if err := value.Decode(&r); err != nil {
		return err
	}
	*im = ImagesConfig(r)
	im.pngLevelSpecified = hasKey(value, "png_level")
	return nil
}

// UnmarshalYAML records whether debounce was explicitly set (0 disables debouncing).
func (w *WatchConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw WatchConfig
	var r raw
	if err := value.Decode(&r); err != nil {
		return err
	}
	*w = WatchConfig(r)
	w.debounceSpecified = hasKey(value, "debounce")
	return nil
}

func hasKey(node *yaml.Node, key string) bool {
	if node.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load loads configuration from the specified file. A missing file yields the defaults,
// so a project following the conventional layout needs no configuration at all.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	cfg := &Config{}
	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
		slog.Debug("Configuration file not found; using defaults", "path", configPath)
	case err != nil:
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).Fatal().Build()
	default:
		// Expand environment variables in the YAML content
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to unmarshal config").
				WithContext("path", configPath).Fatal().Build()
		}
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFiles loads .env and .env.local when present. Existing process
// environment variables are never overwritten.
func loadEnvFiles() {
	for _, envPath := range []string{".env", ".env.local"} {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err != nil {
			slog.Warn("Failed to load env file", "path", envPath, "error", err)
			continue
		}
		slog.Debug("Loaded environment variables", "path", envPath)
	}
}

// ResolvePaths rewrites every relative path in cfg against base. Release globs stay
// relative because they are matched against the working root.
func (c *Config) ResolvePaths(base string) {
	abs := func(p *string) {
		if *p == "" || filepath.IsAbs(*p) {
			return
		}
		*p = filepath.Join(base, *p)
	}
	absAll := func(ps []string) {
		for i := range ps {
			abs(&ps[i])
		}
	}

	abs(&c.Paths.Working)
	abs(&c.Paths.Release)
	abs(&c.Markup.Root)
	abs(&c.Markup.Layouts)
	abs(&c.Markup.Partials)
	abs(&c.Markup.Helpers)
	abs(&c.Markup.Data)
	absAll(c.Styles.Vendor)
	abs(&c.Styles.Entry)
	abs(&c.Styles.Output)
	absAll(c.Styles.IncludePaths)
	absAll(c.Scripts.Vendor)
	abs(&c.Scripts.Entry)
	abs(&c.Scripts.Output)
	abs(&c.Images.Source)
	abs(&c.Images.Output)
	abs(&c.Fonts.Source)
	for i := range c.Watch.Rules {
		absAll(c.Watch.Rules[i].Include)
		absAll(c.Watch.Rules[i].Exclude)
	}
}

// Init creates a new configuration file with the default layout spelled out.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).Build()
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	header := "# assetbuilder configuration. Paths are relative to the project directory.\n"
	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).Build()
	}
	return nil
}
