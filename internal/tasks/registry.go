package tasks

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// Registry maps task names to tasks. Registration order is preserved for listings.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]Task
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]Task)}
}

// Register adds t under its name. Names are unique.
func (r *Registry) Register(t Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t == nil || t.Name() == "" {
		return ferrors.ValidationError("task must have a name").Build()
	}
	if _, exists := r.tasks[t.Name()]; exists {
		return ferrors.ValidationError("task already registered").WithContext("task", t.Name()).Build()
	}
	r.tasks[t.Name()] = t
	r.order = append(r.order, t.Name())
	return nil
}

// MustRegister is Register for static wiring; it panics on a duplicate.
func (r *Registry) MustRegister(ts ...Task) {
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get looks up a task by name.
func (r *Registry) Get(name string) (Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[name]
	if !ok {
		return nil, ferrors.NotFoundError("unknown task").
			WithContext("task", name).
			WithContext("known", strings.Join(r.order, ",")).
			Build()
	}
	return t, nil
}

// Names returns task names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Run runs the named task.
func (r *Registry) Run(ctx context.Context, name string) error {
	t, err := r.Get(name)
	if err != nil {
		return err
	}
	return t.Run(ctx)
}

// Describe writes one line per task, expanding composites into their steps.
func (r *Registry) Describe(w io.Writer) error {
	for _, name := range r.Names() {
		t, _ := r.Get(name)
		line := name
		if c, ok := t.(Composite); ok {
			sep := " -> "
			if c.Mode() == "parallel" {
				sep = " | "
			}
			names := make([]string, 0, len(c.Children()))
			for _, child := range c.Children() {
				names = append(names, child.Name())
			}
			line = fmt.Sprintf("%s = %s(%s)", name, c.Mode(), strings.Join(names, sep))
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
