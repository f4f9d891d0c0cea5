package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchOpts tunes WatchScript.
type WatchOpts struct {
	// Delay coalesces bursts of writes into one notification.
	Delay time.Duration
	// OnError receives watcher errors; they do not stop the watch.
	OnError func(error)
}

// WatchScript notifies on the returned channel whenever the file at path is
// written, created, renamed or removed. The parent directory is watched so
// editors that save through rename are seen. The channel is closed once ctx
// is done or the watcher fails.
func WatchScript(ctx context.Context, path string, opts WatchOpts) (<-chan struct{}, error) {
	path = filepath.Clean(path)
	if path == "" || path == "." {
		return nil, errors.New("watch: missing path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve %s: %w", path, err)
	}
	delay := opts.Delay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer watcher.Close()

		t := newCoalescer(delay, func() {
			select {
			case out <- struct{}{}:
			default:
				// A notification is already queued; the reader reloads once.
			}
		})
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if opts.OnError != nil {
					opts.OnError(err)
				}
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				name, err := filepath.Abs(evt.Name)
				if err != nil || name != abs {
					continue
				}
				if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				t.Enqueue()
			}
		}
	}()
	return out, nil
}

// coalescer fires fn once per burst of Enqueue calls.
type coalescer struct {
	mu      sync.Mutex
	timer   *time.Timer
	delay   time.Duration
	fn      func()
	stopped bool
}

func newCoalescer(delay time.Duration, fn func()) *coalescer {
	return &coalescer{delay: delay, fn: fn}
}

func (c *coalescer) Enqueue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.timer != nil {
		return
	}
	c.timer = time.AfterFunc(c.delay, c.flush)
}

func (c *coalescer) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timer = nil
	// fn runs under the lock so it never races Stop.
	if !c.stopped {
		c.fn()
	}
}

func (c *coalescer) Stop() {
	c.mu.Lock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
}
