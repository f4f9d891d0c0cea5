// Package command implements reversible edits of the script tree and the
// per-viewport buffers that undo and redo them.
package command

import (
	"time"

	"autopilot/internal/metrics"
	"autopilot/internal/model"
	"autopilot/internal/selection"
	"autopilot/internal/tree"

	"go.uber.org/zap"
)

// Kind identifies a concrete command type. Buffers merge only commands of equal kind.
type Kind int

const (
	KindCreateContext Kind = iota + 1
	KindCreateAction
	KindCreatePipe
	KindDelete
	KindCut
	KindCopy
	KindPaste
	KindChangeActionType
	KindChangePipeType
	KindEditProperty
	KindMove
)

var kindNames = map[Kind]string{
	KindCreateContext:    "create-context",
	KindCreateAction:     "create-action",
	KindCreatePipe:       "create-pipe",
	KindDelete:           "delete",
	KindCut:              "cut",
	KindCopy:             "copy",
	KindPaste:            "paste",
	KindChangeActionType: "change-action-type",
	KindChangePipeType:   "change-pipe-type",
	KindEditProperty:     "edit-property",
	KindMove:             "move",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// DefaultAppendThreshold is the merge window for consecutive commands of one kind.
const DefaultAppendThreshold = 2 * time.Second

// ViewportState is the part of a viewport a command captures before it runs.
type ViewportState struct {
	Selection selection.State `json:"selection"`
	Expanded  []string        `json:"expanded,omitempty"`
}

// Target is the viewport a command is bound to.
type Target interface {
	ID() string
	Selection() *selection.Selection
	Expand(ids ...string)
	Focus()
}

// Host owns the viewports and their buffers.
type Host interface {
	ActiveViewport() string
	ActivateViewport(id string)
	// ConnectedViewports returns id plus every viewport whose state follows it.
	ConnectedViewports(id string) []string
	CaptureViewport(id string) (ViewportState, bool)
	RestoreViewport(id string, st ViewportState)
	Buffer(id string) *Buffer
}

// Clipboard stores one clip at a time.
type Clipboard interface {
	Read() (model.Clip, bool, error)
	Write(model.Clip) error
}

// Env is everything a command needs from its session. It is passed explicitly at construction.
type Env struct {
	Doc       *tree.Document
	Host      Host
	Clipboard Clipboard
	Notifier  *Notifier
	Metrics   *metrics.Metrics
	Log       *zap.Logger
	Now       func() time.Time
	// MarkDirty is called after every mutation of the document.
	MarkDirty func()
	// AppendThreshold overrides DefaultAppendThreshold when positive.
	AppendThreshold time.Duration
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Env) log() *zap.Logger {
	if e.Log != nil {
		return e.Log
	}
	return zap.NewNop()
}

func (e *Env) dirty() {
	if e.MarkDirty != nil {
		e.MarkDirty()
	}
}

func (e *Env) threshold() time.Duration {
	if e.AppendThreshold > 0 {
		return e.AppendThreshold
	}
	return DefaultAppendThreshold
}

// Command is one reversible edit. Implementations embed Base.
type Command interface {
	Kind() Kind
	Undoable() bool
	// CanExecute reports whether the command can run against the current
	// selection. It never mutates anything.
	CanExecute() bool
	// Append absorbs prev, the most recent command of the same kind, and
	// reports whether this command replaces it in the buffer.
	Append(prev Command) bool
	Viewport() string
	LastExecutedAt() time.Time

	base() *Base
	apply() error
	unapply() error
}

// Base carries the state shared by all commands.
type Base struct {
	env            *Env
	target         Target
	lastExecutedAt time.Time
	connected      map[string]ViewportState
}

func newBase(env *Env, target Target) Base {
	return Base{env: env, target: target}
}

func (b *Base) base() *Base { return b }

func (b *Base) Viewport() string { return b.target.ID() }

func (b *Base) LastExecutedAt() time.Time { return b.lastExecutedAt }

func (b *Base) Undoable() bool { return true }

func (b *Base) Append(Command) bool { return false }

func (b *Base) doc() *tree.Document { return b.env.Doc }

func (b *Base) sel() *selection.Selection { return b.target.Selection() }

func (b *Base) captureConnected() {
	ids := b.env.Host.ConnectedViewports(b.target.ID())
	b.connected = make(map[string]ViewportState, len(ids))
	for _, id := range ids {
		if st, ok := b.env.Host.CaptureViewport(id); ok {
			b.connected[id] = st
		}
	}
}

func (b *Base) restoreConnected() {
	for id, st := range b.connected {
		b.env.Host.RestoreViewport(id, st)
	}
}

// Execute runs cmd if its preconditions hold and registers it for undo.
// It reports false without touching anything when CanExecute is false.
func Execute(cmd Command) (bool, error) {
	if !cmd.CanExecute() {
		return false, nil
	}
	b := cmd.base()
	env := b.env
	id := b.target.ID()

	b.captureConnected()
	env.Host.ActivateViewport(id)
	if err := cmd.apply(); err != nil {
		return false, err
	}
	b.lastExecutedAt = env.now()
	if cmd.Undoable() {
		env.dirty()
		if buf := env.Host.Buffer(id); buf != nil {
			buf.Register(cmd)
		}
	}
	env.Metrics.Executed(cmd.Kind().String())
	env.log().Debug("command executed", zap.String("command", cmd.Kind().String()), zap.String("viewport", id))
	env.Notifier.publish(Notification{Signal: CommandExecuted, Command: cmd, Viewport: id})
	return true, nil
}

func executeUndo(cmd Command) error {
	b := cmd.base()
	b.env.Host.ActivateViewport(b.target.ID())
	b.restoreConnected()
	if err := cmd.unapply(); err != nil {
		return err
	}
	b.env.dirty()
	b.target.Focus()
	return nil
}

func executeRedo(cmd Command) error {
	b := cmd.base()
	b.captureConnected()
	b.env.Host.ActivateViewport(b.target.ID())
	if err := cmd.apply(); err != nil {
		return err
	}
	b.env.dirty()
	b.target.Focus()
	return nil
}
