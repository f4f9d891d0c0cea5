package command

import (
	"go.uber.org/zap"
)

// Outcome is what an undo or redo request did.
type Outcome int

const (
	// Noop means there was nothing to undo or redo.
	Noop Outcome = iota
	// Revealed means the command belongs to an inactive viewport; that
	// viewport was activated and its captured state restored instead.
	Revealed
	// Applied means the command was undone or redone.
	Applied
)

func (o Outcome) String() string {
	switch o {
	case Revealed:
		return "revealed"
	case Applied:
		return "applied"
	default:
		return "noop"
	}
}

// Buffer is the undo history of one viewport. Commands are ordered most
// recent first; commands[index] is the last executed command and
// commands[index-1] the next one to redo.
type Buffer struct {
	viewport string
	env      *Env
	commands []Command
	index    int
}

func NewBuffer(viewport string, env *Env) *Buffer {
	return &Buffer{viewport: viewport, env: env}
}

func (b *Buffer) Viewport() string { return b.viewport }

func (b *Buffer) Len() int { return len(b.commands) }

func (b *Buffer) Index() int { return b.index }

func (b *Buffer) CanUndo() bool { return b.index < len(b.commands) }

func (b *Buffer) CanRedo() bool { return b.index > 0 && b.index <= len(b.commands) }

// Reset drops the whole history.
func (b *Buffer) Reset() {
	b.commands = nil
	b.index = 0
}

// Register records a freshly executed command. The redo future is discarded.
// A command of the same kind executed within the append threshold of the
// current undo head may replace it when cmd.Append accepts.
func (b *Buffer) Register(cmd Command) {
	if b.CanUndo() {
		last := b.commands[b.index]
		d := cmd.LastExecutedAt().Sub(last.LastExecutedAt())
		if d < 0 {
			d = -d
		}
		if last.Kind() == cmd.Kind() && d < b.env.threshold() && cmd.Append(last) {
			next := make([]Command, 0, len(b.commands)-b.index)
			next = append(next, cmd)
			next = append(next, b.commands[b.index+1:]...)
			b.commands = next
			b.index = 0
			b.env.Metrics.Merged()
			return
		}
	}
	next := make([]Command, 0, len(b.commands)-b.index+1)
	next = append(next, cmd)
	next = append(next, b.commands[b.index:]...)
	b.commands = next
	b.index = 0
}

// RestoreViewport activates the command's viewport and restores its captured
// state when that viewport is not the active one. It reports whether it did.
func (b *Buffer) RestoreViewport(cmd Command) bool {
	host := b.env.Host
	if host.ActiveViewport() == cmd.Viewport() {
		return false
	}
	host.ActivateViewport(cmd.Viewport())
	cb := cmd.base()
	cb.restoreConnected()
	cb.target.Focus()
	b.env.Metrics.Revealed(cmd.Viewport())
	return true
}

func (b *Buffer) Undo() (Outcome, error) {
	if !b.CanUndo() {
		return Noop, nil
	}
	cmd := b.commands[b.index]
	if b.RestoreViewport(cmd) {
		return Revealed, nil
	}
	if err := executeUndo(cmd); err != nil {
		return Noop, err
	}
	b.index++
	b.env.Metrics.Undone(b.viewport)
	b.env.log().Debug("command undone", zap.String("command", cmd.Kind().String()), zap.String("viewport", b.viewport))
	b.env.Notifier.publish(Notification{Signal: UndoExecuted, Command: cmd, Viewport: b.viewport})
	return Applied, nil
}

func (b *Buffer) Redo() (Outcome, error) {
	if !b.CanRedo() {
		return Noop, nil
	}
	cmd := b.commands[b.index-1]
	if b.RestoreViewport(cmd) {
		return Revealed, nil
	}
	if err := executeRedo(cmd); err != nil {
		return Noop, err
	}
	b.index--
	b.env.Metrics.Redone(b.viewport)
	b.env.log().Debug("command redone", zap.String("command", cmd.Kind().String()), zap.String("viewport", b.viewport))
	b.env.Notifier.publish(Notification{Signal: RedoExecuted, Command: cmd, Viewport: b.viewport})
	return Applied, nil
}
