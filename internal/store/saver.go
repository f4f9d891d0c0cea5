package store

import (
	"context"
	"sync"
	"time"
)

// DebouncedSaver coalesces bursts of change notifications into one save.
type DebouncedSaver struct {
	save     func(context.Context) error
	debounce time.Duration
	onError  func(error)

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	stopped bool

	// runMu serializes saves so Flush and Stop wait for an in-flight one.
	runMu sync.Mutex
}

type DebouncedSaverOpts struct {
	Save     func(context.Context) error
	Debounce time.Duration
	// OnError receives failures of background saves. The change stays pending.
	OnError func(error)
}

func NewDebouncedSaver(opts DebouncedSaverOpts) *DebouncedSaver {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &DebouncedSaver{
		save:     opts.Save,
		debounce: debounce,
		onError:  opts.OnError,
	}
}

// Notify records a change and (re)starts the debounce timer.
func (d *DebouncedSaver) Notify() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = true
	if d.timer == nil {
		d.timer = time.AfterFunc(d.debounce, d.onTimer)
		return
	}
	d.timer.Reset(d.debounce)
}

func (d *DebouncedSaver) Pending() bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

func (d *DebouncedSaver) onTimer() {
	d.mu.Lock()
	skip := d.stopped || !d.pending
	d.mu.Unlock()
	if skip {
		return
	}
	if err := d.run(context.Background()); err != nil && d.onError != nil {
		d.onError(err)
	}
}

func (d *DebouncedSaver) run(ctx context.Context) error {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return nil
	}
	d.pending = false
	d.mu.Unlock()

	if err := d.save(ctx); err != nil {
		d.mu.Lock()
		d.pending = true
		d.mu.Unlock()
		return err
	}
	return nil
}

// Flush saves a pending change now.
func (d *DebouncedSaver) Flush(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	return d.run(ctx)
}

// Stop flushes a pending change and ignores later notifications.
func (d *DebouncedSaver) Stop(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	return d.run(ctx)
}
