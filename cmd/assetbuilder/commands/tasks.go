package commands

import (
	"git.home.luguber.info/inful/assetbuilder/internal/config"
	"git.home.luguber.info/inful/assetbuilder/internal/pipeline"
)

// AssembleMarkupCmd implements the 'assemble-markup' command.
type AssembleMarkupCmd struct{}

func (c *AssembleMarkupCmd) Run(g *Global, root *CLI) error {
	return runTask(g, root, pipeline.TaskMarkup, nil)
}

// CompileStylesCmd implements the 'compile-styles' command.
type CompileStylesCmd struct{}

func (c *CompileStylesCmd) Run(g *Global, root *CLI) error {
	return runTask(g, root, pipeline.TaskStyles, nil)
}

// BundleScriptsCmd implements the 'bundle-scripts' command.
type BundleScriptsCmd struct{}

func (c *BundleScriptsCmd) Run(g *Global, root *CLI) error {
	return runTask(g, root, pipeline.TaskScripts, nil)
}

// ProcessImagesCmd implements the 'process-images' command.
type ProcessImagesCmd struct {
	Concurrency int `name:"concurrency" help:"Images processed at once (0 keeps the configured value)"`
}

func (c *ProcessImagesCmd) Run(g *Global, root *CLI) error {
	return runTask(g, root, pipeline.TaskImages, func(cfg *config.Config) {
		if c.Concurrency > 0 {
			cfg.Images.Concurrency = c.Concurrency
		}
	})
}

// ConvertFontsCmd implements the 'convert-fonts' command.
type ConvertFontsCmd struct{}

func (c *ConvertFontsCmd) Run(g *Global, root *CLI) error {
	return runTask(g, root, pipeline.TaskFonts, nil)
}

// ServerFlags override the server section of the configuration.
type ServerFlags struct {
	Host         string `name:"host" help:"Interface to bind (overrides server.host)"`
	Port         int    `name:"port" short:"p" help:"Port to listen on (overrides server.port)"`
	NoLiveReload bool   `name:"no-live-reload" help:"Disable the live reload endpoint and script injection"`
	Metrics      bool   `name:"metrics" help:"Expose Prometheus metrics at /metrics"`
}

func (f ServerFlags) apply(cfg *config.Config) {
	if f.Host != "" {
		cfg.Server.Host = f.Host
	}
	if f.Port != 0 {
		cfg.Server.Port = f.Port
	}
	if f.NoLiveReload {
		cfg.Server.LiveReload = false
	}
	if f.Metrics {
		cfg.Server.Metrics = true
	}
}

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	ServerFlags `embed:""`
}

func (c *ServeCmd) Run(g *Global, root *CLI) error {
	return runTask(g, root, pipeline.TaskServe, c.apply)
}

// WatchCmd implements the 'watch' command.
type WatchCmd struct{}

func (c *WatchCmd) Run(g *Global, root *CLI) error {
	return runTask(g, root, pipeline.TaskWatch, nil)
}

// CleanReleaseCmd implements the 'clean-release' command.
type CleanReleaseCmd struct{}

func (c *CleanReleaseCmd) Run(g *Global, root *CLI) error {
	return runTask(g, root, pipeline.TaskCleanRelease, nil)
}

// CopyReleaseCmd implements the 'copy-release' command.
type CopyReleaseCmd struct{}

func (c *CopyReleaseCmd) Run(g *Global, root *CLI) error {
	return runTask(g, root, pipeline.TaskCopyRelease, nil)
}

// BuildReleaseCmd implements the 'build-release' command.
type BuildReleaseCmd struct{}

func (c *BuildReleaseCmd) Run(g *Global, root *CLI) error {
	return runTask(g, root, pipeline.TaskBuildRelease, nil)
}

// DefaultCmd implements the 'default' command.
type DefaultCmd struct {
	ServerFlags `embed:""`
}

func (c *DefaultCmd) Run(g *Global, root *CLI) error {
	return runTask(g, root, pipeline.TaskDefault, c.apply)
}
