// Package project owns one open script: its document, the flow and editor
// viewports, their undo buffers, autosave and persisted UI state.
package project

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"autopilot/internal/clipboard"
	"autopilot/internal/command"
	"autopilot/internal/config"
	"autopilot/internal/metrics"
	"autopilot/internal/model"
	"autopilot/internal/store"
	"autopilot/internal/tree"
	"autopilot/internal/viewport"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrClosed = errors.New("project is closed")

// Options configures Open. Zero values fall back to defaults.
type Options struct {
	Config    config.Config
	Log       *zap.Logger
	Clipboard command.Clipboard
	Metrics   *metrics.Metrics
	Now       func() time.Time
	// NewID mints node ids; tests inject a deterministic one.
	NewID func() string
	// Create writes a fresh script when the file does not exist.
	Create bool
}

// Session is one open script. All methods are safe for concurrent use; a
// background reload never interleaves with a command.
type Session struct {
	mu sync.Mutex

	path   string
	format store.ScriptFormat
	log    *zap.Logger

	doc      *tree.Document
	env      *command.Env
	notifier *command.Notifier
	metrics  *metrics.Metrics

	flowVP   *viewport.Viewport
	editorVP *viewport.Viewport
	flow     *viewport.ScriptFlow
	editor   *viewport.ScriptEditor
	active   string
	lastUsed string

	state *store.StateDB
	saver *store.DebouncedSaver
	// written is the file content of our last load or save. A watch event
	// whose content matches it is our own write.
	written []byte

	unsubscribe func()
	stopWatch   context.CancelFunc
	watchDone   chan struct{}
	closed      bool
}

// NewScript returns an empty script holding just the main context.
func NewScript(newID func() string) model.Script {
	if newID == nil {
		newID = tree.NewID
	}
	return model.Script{
		ID:       newID(),
		Contexts: []model.Spec{{ID: newID(), Type: model.TypeMain}},
	}
}

// Open loads the script at path and restores the persisted viewport state.
func Open(ctx context.Context, path string, opts Options) (*Session, error) {
	format, err := store.FormatForPath(path)
	if err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("script", path))

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && opts.Create:
		raw, err = store.EncodeScript(NewScript(opts.NewID), format)
		if err != nil {
			return nil, err
		}
		if err := store.WriteFileAtomic(path, raw); err != nil {
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		log.Info("created script")
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	script, err := store.DecodeScript(raw, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc := &tree.Document{NewID: opts.NewID}
	if err := doc.Load(script); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	s := &Session{
		path:     path,
		format:   format,
		log:      log,
		doc:      doc,
		notifier: command.NewNotifier(),
		metrics:  opts.Metrics,
		active:   viewport.FlowID,
		lastUsed: viewport.FlowID,
		written:  raw,
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	cfg := opts.Config
	s.saver = store.NewDebouncedSaver(store.DebouncedSaverOpts{
		Save:     s.writeScript,
		Debounce: cfg.AutosaveDebounce,
		OnError: func(err error) {
			s.log.Warn("autosave failed", zap.Error(err))
		},
	})
	s.env = &command.Env{
		Doc:             doc,
		Host:            host{s},
		Clipboard:       s.pickClipboard(opts.Clipboard, cfg.SystemClipboard),
		Notifier:        s.notifier,
		Metrics:         s.metrics,
		Log:             log,
		Now:             opts.Now,
		MarkDirty:       s.saver.Notify,
		AppendThreshold: cfg.AppendThreshold,
	}
	s.flowVP = viewport.New(viewport.FlowID, doc, s.env)
	s.editorVP = viewport.New(viewport.EditorID, doc, s.env)
	s.flow = viewport.NewScriptFlow(s.env, s.flowVP)
	s.editor = viewport.NewScriptEditor(s.env, s.editorVP, s.flowVP)
	s.unsubscribe = s.notifier.Subscribe(func(n command.Notification) {
		// Handlers run under s.mu.
		s.lastUsed = n.Viewport
	})

	stateDir := cfg.StateDir
	if stateDir == "" {
		stateDir = filepath.Join(filepath.Dir(path), config.DefaultStateDir)
	}
	s.state, err = store.OpenStateDB(ctx, filepath.Join(stateDir, store.StateFileName))
	if err != nil {
		return nil, fmt.Errorf("open ui state: %w", err)
	}
	if err := s.RestoreState(ctx); err != nil {
		log.Warn("ignoring saved ui state", zap.Error(err))
	}
	if cfg.Watch {
		if err := s.startWatch(); err != nil {
			_ = s.state.Close()
			return nil, err
		}
	}
	log.Debug("project opened", zap.Int("contexts", len(script.Contexts)))
	return s, nil
}

func (s *Session) pickClipboard(given command.Clipboard, system bool) command.Clipboard {
	switch {
	case given != nil:
		return given
	case system && clipboard.Available():
		return clipboard.NewSystem()
	case system:
		s.log.Warn("system clipboard unavailable, using in-memory clipboard")
	}
	return clipboard.NewMemory()
}

func (s *Session) Path() string { return s.path }

func (s *Session) Notifier() *command.Notifier { return s.notifier }

func (s *Session) Metrics() *metrics.Metrics { return s.metrics }

func (s *Session) Flow() *viewport.ScriptFlow { return s.flow }

func (s *Session) Editor() *viewport.ScriptEditor { return s.editor }

func (s *Session) viewport(id string) (*viewport.Viewport, bool) {
	switch id {
	case viewport.FlowID:
		return s.flowVP, true
	case viewport.EditorID:
		return s.editorVP, true
	default:
		return nil, false
	}
}

// Viewport returns the viewport with the given id.
func (s *Session) Viewport(id string) (*viewport.Viewport, bool) { return s.viewport(id) }

// Activate makes id the active viewport.
func (s *Session) Activate(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.viewport(id); !ok {
		return fmt.Errorf("unknown viewport %q", id)
	}
	s.active = id
	return nil
}

func (s *Session) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Locked runs fn with the session lock held. fn may read the document and
// change viewport selections, but must not call other Session methods.
func (s *Session) Locked(fn func(doc *tree.Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.doc)
}

// Script returns a deep copy of the current document.
func (s *Session) Script() model.Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Script()
}

// Execute runs cmd. It reports false when the command's preconditions do not hold.
func (s *Session) Execute(cmd command.Command) (bool, error) {
	return s.Run(func() command.Command { return cmd })
}

// Run builds a command under the session lock and executes it. build may
// return nil when there is nothing to do.
func (s *Session) Run(build func() command.Command) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	cmd := build()
	if cmd == nil {
		return false, nil
	}
	ok, err := command.Execute(cmd)
	if err != nil {
		s.logFailure("execute", err)
	}
	return ok, err
}

// historyBuffer picks the buffer undo and redo work on: the buffer of the
// viewport that last ran, undid or redid a command, or the active viewport's
// buffer once that one has nothing left in the requested direction.
func (s *Session) historyBuffer(redo bool) *command.Buffer {
	can := func(b *command.Buffer) bool {
		if redo {
			return b.CanRedo()
		}
		return b.CanUndo()
	}
	if vp, ok := s.viewport(s.lastUsed); ok && can(vp.Buffer()) {
		return vp.Buffer()
	}
	if vp, ok := s.viewport(s.active); ok {
		return vp.Buffer()
	}
	return s.flowVP.Buffer()
}

func (s *Session) Undo() (command.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return command.Noop, ErrClosed
	}
	out, err := s.historyBuffer(false).Undo()
	if err != nil {
		s.logFailure("undo", err)
	}
	return out, err
}

func (s *Session) Redo() (command.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return command.Noop, ErrClosed
	}
	out, err := s.historyBuffer(true).Redo()
	if err != nil {
		s.logFailure("redo", err)
	}
	return out, err
}

func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyBuffer(false).CanUndo()
}

func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyBuffer(true).CanRedo()
}

func (s *Session) logFailure(op string, err error) {
	var illegal *command.IllegalStateError
	if errors.As(err, &illegal) {
		fields := []zap.Field{zap.String("op", op), zap.String("message", illegal.Message), zap.Any("details", illegal.Details)}
		if illegal.Command != nil {
			fields = append(fields, zap.String("command", illegal.Command.Kind().String()), zap.String("viewport", illegal.Command.Viewport()))
		}
		s.log.Error("illegal command state", fields...)
		return
	}
	s.log.Error("command failed", zap.String("op", op), zap.Error(err))
}

// Reload re-reads the script file. Undo history is dropped and selections
// that no longer resolve are cleared. It reports false when the file still
// holds what this session last wrote.
func (s *Session) Reload(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", s.path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	if bytes.Equal(raw, s.written) {
		return false, nil
	}
	script, err := store.DecodeScript(raw, s.format)
	if err != nil {
		return false, fmt.Errorf("%s: %w", s.path, err)
	}
	if err := s.doc.Load(script); err != nil {
		return false, fmt.Errorf("%s: %w", s.path, err)
	}
	s.written = raw
	for _, vp := range []*viewport.Viewport{s.flowVP, s.editorVP} {
		vp.Buffer().Reset()
		vp.Prune(s.doc)
	}
	s.log.Info("script reloaded")
	return true, nil
}

// Save writes the script now.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	s.saver.Notify()
	return s.saver.Flush(ctx)
}

// Dirty reports whether edits are waiting for the autosave.
func (s *Session) Dirty() bool { return s.saver.Pending() }

func (s *Session) writeScript(context.Context) error {
	s.mu.Lock()
	script := s.doc.Script()
	s.mu.Unlock()

	raw, err := store.EncodeScript(script, s.format)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.written = raw
	s.mu.Unlock()
	if err := store.WriteFileAtomic(s.path, raw); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	s.log.Debug("script saved")
	return nil
}

func (s *Session) startWatch() error {
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := store.WatchScript(ctx, s.path, store.WatchOpts{
		OnError: func(err error) { s.log.Warn("watch error", zap.Error(err)) },
	})
	if err != nil {
		cancel()
		return err
	}
	s.stopWatch = cancel
	s.watchDone = make(chan struct{})
	go func() {
		defer close(s.watchDone)
		for range ch {
			if _, err := s.Reload(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrClosed) {
				s.log.Warn("reload failed", zap.Error(err))
			}
		}
	}()
	return nil
}

// Close stops watching, flushes the autosave and persists viewport state.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stopWatch, watchDone := s.stopWatch, s.watchDone
	s.mu.Unlock()

	if stopWatch != nil {
		stopWatch()
		<-watchDone
	}

	var g errgroup.Group
	g.Go(func() error { return s.saver.Stop(ctx) })
	g.Go(func() error { return s.saveState(ctx) })
	err := g.Wait()

	s.unsubscribe()
	return errors.Join(err, s.state.Close())
}

// host adapts the session to command.Host. Commands call it with s.mu held.
type host struct{ s *Session }

func (h host) ActiveViewport() string { return h.s.active }

func (h host) ActivateViewport(id string) {
	if _, ok := h.s.viewport(id); ok {
		h.s.active = id
	}
}

// ConnectedViewports returns id first, then the viewports whose state follows it.
func (h host) ConnectedViewports(id string) []string {
	out := []string{id}
	for _, other := range []string{viewport.FlowID, viewport.EditorID} {
		if other != id {
			out = append(out, other)
		}
	}
	return out
}

func (h host) CaptureViewport(id string) (command.ViewportState, bool) {
	vp, ok := h.s.viewport(id)
	if !ok {
		return command.ViewportState{}, false
	}
	return vp.Snapshot(), true
}

func (h host) RestoreViewport(id string, st command.ViewportState) {
	if vp, ok := h.s.viewport(id); ok {
		vp.Restore(st)
	}
}

func (h host) Buffer(id string) *command.Buffer {
	if vp, ok := h.s.viewport(id); ok {
		return vp.Buffer()
	}
	return nil
}
