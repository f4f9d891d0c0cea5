package command

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"autopilot/internal/model"
	"autopilot/internal/selection"
	"autopilot/internal/tree"
)

type fakeTarget struct {
	id       string
	sel      *selection.Selection
	expanded map[string]bool
	focused  int
}

func (t *fakeTarget) ID() string { return t.id }
func (t *fakeTarget) Selection() *selection.Selection { return t.sel }
func (t *fakeTarget) Focus() { t.focused++ }
func (t *fakeTarget) Expand(ids ...string) {
	for _, id := range ids {
		t.expanded[id] = true
	}
}

type fakeHost struct {
	active  string
	targets map[string]*fakeTarget
	buffers map[string]*Buffer
}

func (h *fakeHost) ActiveViewport() string { return h.active }
func (h *fakeHost) ActivateViewport(id string) { h.active = id }
func (h *fakeHost) Buffer(id string) *Buffer { return h.buffers[id] }

func (h *fakeHost) ConnectedViewports(string) []string {
	return []string{"flow", "editor"}
}

func (h *fakeHost) CaptureViewport(id string) (ViewportState, bool) {
	t, ok := h.targets[id]
	if !ok {
		return ViewportState{}, false
	}
	st := ViewportState{Selection: t.sel.State()}
	for x := range t.expanded {
		st.Expanded = append(st.Expanded, x)
	}
	sort.Strings(st.Expanded)
	return st, true
}

func (h *fakeHost) RestoreViewport(id string, st ViewportState) {
	t, ok := h.targets[id]
	if !ok {
		return
	}
	t.sel.SetState(st.Selection)
	t.expanded = map[string]bool{}
	for _, x := range st.Expanded {
		t.expanded[x] = true
	}
}

type memClip struct {
	clip model.Clip
	ok   bool
}

func (c *memClip) Read() (model.Clip, bool, error) { return c.clip, c.ok, nil }
func (c *memClip) Write(clip model.Clip) error {
	c.clip, c.ok = clip, true
	return nil
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type harness struct {
	doc    *tree.Document
	env    *Env
	host   *fakeHost
	flow   *fakeTarget
	editor *fakeTarget
	clip   *memClip
	clock  *fakeClock
	dirty  int
}

func fixture() model.Script {
	return model.Script{
		ID: "script",
		Contexts: []model.Spec{
			{ID: "ctxMain", Type: model.TypeMain},
			{
				ID:       "ctxA",
				Type:     model.TypeContext,
				Matchers: []model.Spec{{ID: "m1", Type: model.TypeMatcher}},
				Children: []model.Spec{
					{ID: "groupA", Type: "group"},
					{ID: "groupB", Type: "group", Pipeline: []model.Spec{{ID: "p1", Type: "dom.queryOne"}}},
				},
				Definitions: []model.Spec{{ID: "d1", Type: model.TypeDefinition}},
			},
			{ID: "ctxB", Type: model.TypeContext},
			{ID: "ctxC", Type: model.TypeContext},
			{ID: "ctxD", Type: model.TypeContext},
			{ID: "ctxE", Type: model.TypeContext},
		},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	doc, err := tree.New(fixture())
	if err != nil {
		t.Fatalf("tree.New: %v", err)
	}
	seq := 0
	doc.NewID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}

	h := &harness{
		doc:   doc,
		clip:  &memClip{},
		clock: &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	h.flow = &fakeTarget{id: "flow", sel: selection.New(doc), expanded: map[string]bool{}}
	h.editor = &fakeTarget{id: "editor", sel: selection.New(doc), expanded: map[string]bool{}}
	h.host = &fakeHost{
		active:  "flow",
		targets: map[string]*fakeTarget{"flow": h.flow, "editor": h.editor},
		buffers: map[string]*Buffer{},
	}
	h.env = &Env{
		Doc:       doc,
		Host:      h.host,
		Clipboard: h.clip,
		Notifier:  NewNotifier(),
		Now:       h.clock.Now,
		MarkDirty: func() { h.dirty++ },
	}
	h.host.buffers["flow"] = NewBuffer("flow", h.env)
	h.host.buffers["editor"] = NewBuffer("editor", h.env)
	return h
}

func (h *harness) buffer(id string) *Buffer { return h.host.buffers[id] }

func (h *harness) ids(t *testing.T, ownerID string, key model.ListKey) []string {
	t.Helper()
	l, err := h.doc.ListOf(ownerID, key)
	if err != nil {
		t.Fatalf("ListOf(%s, %s): %v", ownerID, key, err)
	}
	return l.IDs()
}

func (h *harness) mustExecute(t *testing.T, cmd Command) {
	t.Helper()
	ok, err := Execute(cmd)
	if err != nil {
		t.Fatalf("Execute(%s): %v", cmd.Kind(), err)
	}
	if !ok {
		t.Fatalf("Execute(%s): preconditions not met", cmd.Kind())
	}
}

func (h *harness) mustUndo(t *testing.T, viewport string) {
	t.Helper()
	out, err := h.buffer(viewport).Undo()
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if out != Applied {
		t.Fatalf("Undo outcome=%s want applied", out)
	}
}

func (h *harness) mustRedo(t *testing.T, viewport string) {
	t.Helper()
	out, err := h.buffer(viewport).Redo()
	if err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if out != Applied {
		t.Fatalf("Redo outcome=%s want applied", out)
	}
}
