package command

import (
	"sort"
	"sync"
)

type Signal int

const (
	CommandExecuted Signal = iota + 1
	UndoExecuted
	RedoExecuted
)

func (s Signal) String() string {
	switch s {
	case CommandExecuted:
		return "command-executed"
	case UndoExecuted:
		return "undo-executed"
	case RedoExecuted:
		return "redo-executed"
	default:
		return "unknown"
	}
}

// Notification identifies the command behind a signal.
type Notification struct {
	Signal   Signal
	Command  Command
	Viewport string
}

// Notifier is a small typed pub-sub for command signals. Handlers run
// synchronously on the publishing goroutine, in subscription order.
type Notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]subscription
}

type subscription struct {
	signals map[Signal]bool
	fn      func(Notification)
}

func NewNotifier() *Notifier {
	return &Notifier{subs: map[int]subscription{}}
}

// Subscribe registers fn for the given signals, or for all signals when none
// are given. The returned func removes the subscription.
func (n *Notifier) Subscribe(fn func(Notification), signals ...Signal) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	var filter map[Signal]bool
	if len(signals) > 0 {
		filter = map[Signal]bool{}
		for _, s := range signals {
			filter[s] = true
		}
	}
	id := n.next
	n.next++
	n.subs[id] = subscription{signals: filter, fn: fn}
	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

func (n *Notifier) publish(note Notification) {
	if n == nil {
		return
	}
	n.mu.Lock()
	ids := make([]int, 0, len(n.subs))
	for id := range n.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Notification), 0, len(ids))
	for _, id := range ids {
		s := n.subs[id]
		if s.signals == nil || s.signals[note.Signal] {
			fns = append(fns, s.fn)
		}
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(note)
	}
}
