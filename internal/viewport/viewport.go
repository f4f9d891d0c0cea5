// Package viewport holds the per-panel state (selection, expansion, undo
// buffer) and the controllers that turn panel intents into commands.
package viewport

import (
	"sort"

	"autopilot/internal/command"
	"autopilot/internal/selection"
	"autopilot/internal/tree"
)

const (
	FlowID   = "flow"
	EditorID = "editor"
)

// Viewport is one panel. It implements command.Target.
type Viewport struct {
	id       string
	sel      *selection.Selection
	buffer   *command.Buffer
	expanded map[string]bool
	focus    int
}

func New(id string, doc *tree.Document, env *command.Env) *Viewport {
	return &Viewport{
		id:       id,
		sel:      selection.New(doc),
		buffer:   command.NewBuffer(id, env),
		expanded: map[string]bool{},
	}
}

func (v *Viewport) ID() string { return v.id }

func (v *Viewport) Selection() *selection.Selection { return v.sel }

func (v *Viewport) Buffer() *command.Buffer { return v.buffer }

func (v *Viewport) Expand(ids ...string) {
	for _, id := range ids {
		if id != "" {
			v.expanded[id] = true
		}
	}
}

func (v *Viewport) Collapse(ids ...string) {
	for _, id := range ids {
		delete(v.expanded, id)
	}
}

func (v *Viewport) IsExpanded(id string) bool { return v.expanded[id] }

// Expanded returns the expanded ids, sorted.
func (v *Viewport) Expanded() []string {
	out := make([]string, 0, len(v.expanded))
	for id := range v.expanded {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (v *Viewport) Focus() { v.focus++ }

// FocusCount is how many times the viewport was focused by command activity.
func (v *Viewport) FocusCount() int { return v.focus }

func (v *Viewport) Snapshot() command.ViewportState {
	return command.ViewportState{Selection: v.sel.State(), Expanded: v.Expanded()}
}

func (v *Viewport) Restore(st command.ViewportState) {
	v.sel.SetState(st.Selection)
	v.expanded = map[string]bool{}
	v.Expand(st.Expanded...)
}

// Prune drops expanded ids that are no longer in the document and selected
// indices past the end of their list. A selection whose list no longer
// resolves is cleared.
func (v *Viewport) Prune(doc *tree.Document) {
	for id := range v.expanded {
		if !doc.Attached(id) {
			delete(v.expanded, id)
		}
	}
	l, ok := v.sel.ResolveList()
	if !ok {
		v.sel.Clear()
		return
	}
	st := v.sel.State()
	if st.IsHead() {
		return
	}
	kept := st.Indices[:0]
	for _, i := range st.Indices {
		if i >= 0 && i < l.Len() {
			kept = append(kept, i)
		}
	}
	v.sel.SetState(selection.State{Path: st.Path, Indices: kept})
}
