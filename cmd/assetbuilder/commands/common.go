package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	"git.home.luguber.info/inful/assetbuilder/internal/pipeline"
	"git.home.luguber.info/inful/assetbuilder/internal/version"
)

// LogLevelEnv overrides the log level when --verbose is not given.
const LogLevelEnv = "ASSETBUILDER_LOG_LEVEL"

// Global carries process-wide state into every command.
type Global struct {
	Logger  *slog.Logger
	Context context.Context
	Out     io.Writer
}

func (g *Global) ctx() context.Context {
	if g == nil || g.Context == nil {
		return context.Background()
	}
	return g.Context
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func (g *Global) logger() *slog.Logger {
	if g == nil || g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path; relative paths inside it resolve against its directory" default:"assetbuilder.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	AssembleMarkup AssembleMarkupCmd `cmd:"" name:"assemble-markup" help:"Render page templates into the working root"`
	CompileStyles  CompileStylesCmd  `cmd:"" name:"compile-styles" help:"Compile, prefix and minify the stylesheet bundle"`
	BundleScripts  BundleScriptsCmd  `cmd:"" name:"bundle-scripts" help:"Concatenate and minify the script bundle"`
	ProcessImages  ProcessImagesCmd  `cmd:"" name:"process-images" help:"Convert rasters to WebP and optimize images into the release tree (JPEG output is baseline, GIF output is not interlaced)"`
	ConvertFonts   ConvertFontsCmd   `cmd:"" name:"convert-fonts" help:"Convert TrueType fonts to WOFF and WOFF2"`
	Serve          ServeCmd          `cmd:"" help:"Serve the working root with live reload"`
	Watch          WatchCmd          `cmd:"" help:"Watch sources and re-run the matching task"`
	CleanRelease   CleanReleaseCmd   `cmd:"" name:"clean-release" help:"Delete the release tree"`
	CopyRelease    CopyReleaseCmd    `cmd:"" name:"copy-release" help:"Copy finalized assets into the release tree"`
	BuildRelease   BuildReleaseCmd   `cmd:"" name:"build-release" help:"clean-release, process-images and copy-release in order"`
	Default        DefaultCmd        `cmd:"" name:"default" default:"withargs" help:"Build markup, styles and scripts, then serve and watch (runs when no command is given)"`
	Init           InitCmd           `cmd:"" help:"Write an example configuration file"`
	Tasks          TasksCmd          `cmd:"" help:"List registered tasks"`
}

// NewParser builds the kong parser used by main and the tests.
func NewParser(cli *CLI, opts ...kong.Option) (*kong.Kong, error) {
	base := []kong.Option{
		kong.Name("assetbuilder"),
		kong.Description("Front-end asset build pipeline"),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	}
	return kong.New(cli, append(base, opts...)...)
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(c.Verbose)}))
	slog.SetDefault(logger)
	return nil
}

// logLevel picks debug for --verbose, otherwise the level named by LogLevelEnv, otherwise info.
func logLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	var level slog.Level
	if v := strings.TrimSpace(os.Getenv(LogLevelEnv)); v != "" {
		if err := level.UnmarshalText([]byte(v)); err == nil {
			return level
		}
	}
	return slog.LevelInfo
}

// LoadConfig loads the configuration file and resolves its relative paths against the
// file's directory.
func LoadConfig(path string) (*config.Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(abs)
	if err != nil {
		return nil, err
	}
	cfg.ResolvePaths(filepath.Dir(abs))
	return cfg, nil
}

// runTask loads the configuration, wires the pipeline and runs one task.
func runTask(g *Global, root *CLI, name string, adjust func(*config.Config)) error {
	cfg, err := LoadConfig(root.Config)
	if err != nil {
		return err
	}
	if adjust != nil {
		adjust(cfg)
	}
	p, err := newPipeline(g, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.Close(); cerr != nil {
			g.logger().Warn("Failed to release pipeline resources", "error", cerr)
		}
	}()
	return p.Run(g.ctx(), name)
}

func newPipeline(g *Global, cfg *config.Config) (*pipeline.Pipeline, error) {
	return pipeline.New(cfg, pipeline.WithLogger(g.logger()))
}
