package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

// dispatcher debounces triggers for one rule and runs its task single-flight.
type dispatcher struct {
	ctx      context.Context
	rule     string
	task     string
	runner   Runner
	debounce time.Duration
	wg       *sync.WaitGroup

	mu      sync.Mutex
	timer   *time.Timer
	running bool
	pending bool
	stopped bool
}

func (d *dispatcher) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.debounce <= 0 {
		d.requestLocked()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if !d.stopped {
			d.requestLocked()
		}
	})
}

// requestLocked starts a run, or marks one pending if a run is in flight.
func (d *dispatcher) requestLocked() {
	if d.running {
		d.pending = true
		return
	}
	d.running = true
	d.wg.Add(1)
	go d.loop()
}

func (d *dispatcher) loop() {
	defer d.wg.Done()
	for {
		d.run()
		d.mu.Lock()
		if !d.pending || d.stopped {
			d.running = false
			d.pending = false
			d.mu.Unlock()
			return
		}
		d.pending = false
		d.mu.Unlock()
	}
}

func (d *dispatcher) run() {
	err := d.runner.Run(d.ctx, d.task)
	if err != nil && d.ctx.Err() == nil {
		slog.Error("Watch task failed; waiting for the next change",
			logfields.Rule(d.rule), logfields.Task(d.task), logfields.Error(err))
	}
}

func (d *dispatcher) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
