// Package pipeline wires every asset task into a single registry.
package pipeline

import (
	"context"
	"log/slog"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	"git.home.luguber.info/inful/assetbuilder/internal/devserver"
	"git.home.luguber.info/inful/assetbuilder/internal/fonts"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/images"
	"git.home.luguber.info/inful/assetbuilder/internal/livereload"
	"git.home.luguber.info/inful/assetbuilder/internal/markup"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
	"git.home.luguber.info/inful/assetbuilder/internal/release"
	"git.home.luguber.info/inful/assetbuilder/internal/scripts"
	"git.home.luguber.info/inful/assetbuilder/internal/styles"
	"git.home.luguber.info/inful/assetbuilder/internal/tasks"
	"git.home.luguber.info/inful/assetbuilder/internal/watch"
)

// Task names.
const (
	TaskMarkup       = "assemble-markup"
	TaskStyles       = "compile-styles"
	TaskScripts      = "bundle-scripts"
	TaskImages       = "process-images"
	TaskFonts        = "convert-fonts"
	TaskServe        = "serve"
	TaskWatch        = "watch"
	TaskCleanRelease = "clean-release"
	TaskCopyRelease  = "copy-release"
	TaskBuildRelease = "build-release"
	TaskDefault      = "default"
)

// Pipeline owns the long-lived collaborators shared by the tasks.
type Pipeline struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *tasks.Registry
	recorder metrics.Recorder
	promReg  *prom.Registry
	hub      *livereload.Hub
	styles   *styles.Pipeline
	server   *devserver.Server
	watcher  *watch.Supervisor
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used by instrumented tasks.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New builds every task from cfg. Paths in cfg must already be resolved; the
// configuration is validated again against the resolved paths.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	p := &Pipeline{
		cfg:      cfg,
		logger:   slog.Default(),
		registry: tasks.NewRegistry(),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}

	if cfg.Server.Metrics {
		p.promReg = prom.NewRegistry()
		p.recorder = metrics.NewPrometheusRecorder(p.promReg)
	}

	var notifier livereload.Notifier = livereload.NopNotifier{}
	if cfg.Server.LiveReload {
		p.hub = livereload.NewHub(p.recorder)
		notifier = p.hub
	}

	stylePipeline, err := styles.New(cfg.Styles, styles.WithNotifier(notifier))
	if err != nil {
		return nil, err
	}
	p.styles = stylePipeline

	assembler := markup.New(cfg.Markup, cfg.Paths.Working, notifier)
	bundler := scripts.New(cfg.Scripts, notifier)
	imageProcessor := images.New(cfg.Images)
	fontConverter := fonts.New(cfg.Fonts)
	rel := release.New(cfg.Paths, cfg.Release)
	p.server = devserver.New(cfg.Server, cfg.Paths.Working, p.hub, p.promReg)
	p.watcher = watch.New(cfg.Watch, p.registry, p.recorder)

	leaf := func(name string, fn func(context.Context) error) tasks.Task {
		return p.instrument(tasks.Func(name, fn))
	}

	markupTask := leaf(TaskMarkup, assembler.Run)
	stylesTask := leaf(TaskStyles, p.styles.Run)
	scriptsTask := leaf(TaskScripts, bundler.Run)
	imagesTask := leaf(TaskImages, imageProcessor.Run)
	fontsTask := leaf(TaskFonts, fontConverter.Run)
	serveTask := leaf(TaskServe, p.server.Run)
	watchTask := leaf(TaskWatch, p.watcher.Run)
	cleanTask := leaf(TaskCleanRelease, rel.Clean)
	copyTask := leaf(TaskCopyRelease, rel.Run)

	p.registry.MustRegister(
		markupTask, stylesTask, scriptsTask, imagesTask, fontsTask,
		serveTask, watchTask, cleanTask, copyTask,
		p.instrument(tasks.Series(TaskBuildRelease, cleanTask, imagesTask, copyTask)),
		p.instrument(tasks.Parallel(TaskDefault, markupTask, stylesTask, scriptsTask, serveTask, watchTask)),
	)

	if err := p.checkWatchRules(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) instrument(t tasks.Task) tasks.Task {
	return tasks.Instrument(t, p.recorder, p.logger)
}

// checkWatchRules rejects rules dispatching to a task that does not exist.
func (p *Pipeline) checkWatchRules() error {
	for _, rule := range p.cfg.Watch.Rules {
		if rule.Task == "" {
			continue
		}
		if _, err := p.registry.Get(rule.Task); err != nil {
			return ferrors.ConfigError("watch rule dispatches to an unknown task").
				WithContext("rule", rule.Name).
				WithContext("task", rule.Task).
				WithCause(err).
				Build()
		}
	}
	return nil
}

// Registry exposes the registered tasks.
func (p *Pipeline) Registry() *tasks.Registry { return p.registry }

// Hub returns the live-reload hub, nil when live reload is disabled.
func (p *Pipeline) Hub() *livereload.Hub { return p.hub }

// Server returns the development server.
func (p *Pipeline) Server() *devserver.Server { return p.server }

// Watcher returns the watch supervisor.
func (p *Pipeline) Watcher() *watch.Supervisor { return p.watcher }

// Run runs the named task.
func (p *Pipeline) Run(ctx context.Context, name string) error {
	return p.registry.Run(ctx, name)
}

// Close releases the Sass compiler and disconnects live-reload clients.
func (p *Pipeline) Close() error {
	if p.hub != nil {
		p.hub.Shutdown()
	}
	return p.styles.Close()
}
