// Package watch dispatches source changes to tasks.
//
// Each rule maps include/exclude globs to one task. Events are debounced per rule
// and a rule never runs its task twice at once: a change arriving mid-run queues a
// single follow-up run. Rules without a task are inert; their events are only
// logged. Task failures are logged and the supervisor keeps watching.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
	"git.home.luguber.info/inful/assetbuilder/internal/sources"
)

// Runner runs a task by name.
type Runner interface {
	Run(ctx context.Context, name string) error
}

// Supervisor watches the source tree and dispatches rule tasks.
type Supervisor struct {
	rules    []config.WatchRule
	runner   Runner
	debounce time.Duration
	recorder metrics.Recorder

	dispatchers map[string]*dispatcher
	ready       chan struct{}
	wg          sync.WaitGroup
}

// New creates a Supervisor. A nil recorder disables metrics.
func New(cfg config.WatchConfig, runner Runner, recorder metrics.Recorder) *Supervisor {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Supervisor{
		rules:    cfg.Rules,
		runner:   runner,
		debounce: cfg.Debounce,
		recorder: recorder,
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the watches are in place.
func (s *Supervisor) Ready() <-chan struct{} { return s.ready }

// Roots returns the directories watched recursively, derived from the include globs.
func (s *Supervisor) Roots() []string {
	seen := map[string]bool{}
	var roots []string
	for _, r := range s.rules {
		for _, inc := range r.Include {
			base := filepath.Clean(sources.Base(inc))
			if !seen[base] {
				seen[base] = true
				roots = append(roots, base)
			}
		}
	}
	sort.Strings(roots)
	return roots
}

// Run watches until ctx is done.
func (s *Supervisor) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to create file watcher").Build()
	}
	defer func() { _ = watcher.Close() }()

	for _, root := range s.Roots() {
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			slog.Warn("Watch root missing; skipping", logfields.Path(root))
			continue
		}
		addDirsRecursive(watcher, root)
	}

	s.initDispatchers(ctx)
	slog.Info("Watching for changes", logfields.Count(len(s.rules)))
	close(s.ready)

	for {
		select {
		case <-ctx.Done():
			for _, d := range s.dispatchers {
				d.stop()
			}
			s.wg.Wait()
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create == fsnotify.Create {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					addDirsRecursive(watcher, ev.Name)
					continue
				}
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			s.handle(ev.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (s *Supervisor) initDispatchers(ctx context.Context) {
	s.dispatchers = make(map[string]*dispatcher, len(s.rules))
	for _, r := range s.rules {
		if r.Task == "" {
			continue
		}
		s.dispatchers[r.Name] = &dispatcher{
			ctx:      ctx,
			rule:     r.Name,
			task:     r.Task,
			runner:   s.runner,
			debounce: s.debounce,
			wg:       &s.wg,
		}
	}
}

// handle dispatches one changed path to every matching rule.
func (s *Supervisor) handle(path string) {
	if shouldIgnoreEvent(path) {
		return
	}
	for _, r := range s.rules {
		if !sources.Match(path, r.Include, r.Exclude) {
			continue
		}
		s.recorder.IncWatchEvent(r.Name)
		d, ok := s.dispatchers[r.Name]
		if !ok {
			slog.Debug("Change observed by inert rule", logfields.Rule(r.Name), logfields.Path(path))
			continue
		}
		slog.Debug("Change detected", logfields.Rule(r.Name), logfields.Path(path))
		d.trigger()
	}
}

func addDirsRecursive(w *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == "node_modules" || (path != root && strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			if err := w.Add(path); err != nil {
				slog.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
			}
		}
		return nil
	})
}

// shouldIgnoreEvent returns true for files that never trigger a rebuild: hidden files
// (including in-flight atomic writes), editor swap files and OS metadata.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db"
}
