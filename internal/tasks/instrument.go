package tasks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
)

type instrumented struct {
	Task
	recorder metrics.Recorder
	logger   *slog.Logger
}

// Instrument wraps t so every run gets a run id, start/finish log lines and metrics.
// Composite tasks keep exposing their children.
func Instrument(t Task, recorder metrics.Recorder, logger *slog.Logger) Task {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	base := &instrumented{Task: t, recorder: recorder, logger: logger}
	if c, ok := t.(Composite); ok {
		return &instrumentedComposite{instrumented: base, composite: c}
	}
	return base
}

func (i *instrumented) Run(ctx context.Context) error {
	runID := uuid.NewString()
	log := i.logger.With(logfields.Task(i.Name()), logfields.RunID(runID))
	log.Info("Task started")

	start := time.Now()
	err := i.Task.Run(ctx)
	elapsed := time.Since(start)
	i.recorder.ObserveTaskDuration(i.Name(), elapsed)

	ms := float64(elapsed.Microseconds()) / 1000
	switch {
	case err == nil:
		i.recorder.IncTaskResult(i.Name(), metrics.ResultSuccess)
		log.Info("Task finished", logfields.DurationMS(ms))
	case errors.Is(err, context.Canceled):
		i.recorder.IncTaskResult(i.Name(), metrics.ResultCanceled)
		log.Info("Task canceled", logfields.DurationMS(ms))
	default:
		i.recorder.IncTaskResult(i.Name(), metrics.ResultFailed)
		log.Error("Task failed", logfields.DurationMS(ms), logfields.Error(err))
	}
	return err
}

type instrumentedComposite struct {
	*instrumented
	composite Composite
}

func (c *instrumentedComposite) Children() []Task { return c.composite.Children() }
func (c *instrumentedComposite) Mode() string     { return c.composite.Mode() }
