package tasks

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Task is a named unit of work.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// Composite is implemented by tasks built from other tasks.
type Composite interface {
	Task
	Children() []Task
	Mode() string
}

type funcTask struct {
	name string
	fn   func(context.Context) error
}

// Func turns a function into a leaf Task.
func Func(name string, fn func(ctx context.Context) error) Task {
	return &funcTask{name: name, fn: fn}
}

func (f *funcTask) Name() string { return f.name }

func (f *funcTask) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.fn(ctx)
}

type seriesTask struct {
	name  string
	steps []Task
}

// Series composes steps that run strictly one after another.
func Series(name string, steps ...Task) Task {
	return &seriesTask{name: name, steps: steps}
}

func (s *seriesTask) Name() string     { return s.name }
func (s *seriesTask) Children() []Task { return s.steps }
func (s *seriesTask) Mode() string     { return "series" }

func (s *seriesTask) Run(ctx context.Context) error {
	for _, step := range s.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.Run(ctx); err != nil {
			return fmt.Errorf("%s: %w", step.Name(), err)
		}
	}
	return nil
}

type parallelTask struct {
	name     string
	children []Task
}

// Parallel composes children that start together.
func Parallel(name string, children ...Task) Task {
	return &parallelTask{name: name, children: children}
}

func (p *parallelTask) Name() string     { return p.name }
func (p *parallelTask) Children() []Task { return p.children }
func (p *parallelTask) Mode() string     { return "parallel" }

func (p *parallelTask) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, child := range p.children {
		g.Go(func() error {
			if err := child.Run(gctx); err != nil {
				return fmt.Errorf("%s: %w", child.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
