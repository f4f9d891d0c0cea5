package command

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"autopilot/internal/model"
	"autopilot/internal/selection"
	"autopilot/internal/tree"

	"github.com/google/go-cmp/cmp"
)

func TestCreateAction_InsertAfterLastSelected(t *testing.T) {
	h := newHarness(t)
	before := h.doc.Script()

	h.flow.sel.Select("groupA")
	cmd := NewCreateAction(h.env, h.flow, h.flow.sel.InsertLocation, model.Spec{Type: model.TypePlaceholder})
	h.mustExecute(t, cmd)

	if got, want := h.ids(t, "ctxA", model.ListChildren), []string{"groupA", "id-1", "groupB"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("children=%v want %v", got, want)
	}
	if got := h.flow.sel.SelectedIDs(); !reflect.DeepEqual(got, []string{"id-1"}) {
		t.Fatalf("expected new item selected; got %v", got)
	}
	if !h.flow.expanded["id-1"] {
		t.Fatalf("expected new item expanded")
	}
	after := h.doc.Script()

	h.mustUndo(t, "flow")
	if diff := cmp.Diff(before, h.doc.Script()); diff != "" {
		t.Fatalf("undo is not the inverse of apply (-want +got):\n%s", diff)
	}

	h.mustRedo(t, "flow")
	if diff := cmp.Diff(after, h.doc.Script()); diff != "" {
		t.Fatalf("redo differs from first apply (-want +got):\n%s", diff)
	}
	if cmd.CreatedID() != "id-1" {
		t.Fatalf("expected id reused on redo; got %q", cmd.CreatedID())
	}
}

func TestCreateAction_ListHead(t *testing.T) {
	h := newHarness(t)
	ref, err := tree.ParseListRef("/contexts/1/children")
	if err != nil {
		t.Fatalf("ParseListRef: %v", err)
	}
	h.flow.sel.SelectListHead(ref)
	h.mustExecute(t, NewCreateAction(h.env, h.flow, h.flow.sel.InsertLocation, model.Spec{Type: model.TypePlaceholder}))

	if got, want := h.ids(t, "ctxA", model.ListChildren), []string{"id-1", "groupA", "groupB"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("children=%v want %v", got, want)
	}
}

func TestCreate_WrongListKindIsNotExecutable(t *testing.T) {
	h := newHarness(t)
	h.flow.sel.Select("groupA")
	cmd := NewCreateContext(h.env, h.flow, h.flow.sel.InsertLocation, model.Spec{Type: model.TypeContext})
	ok, err := Execute(cmd)
	if err != nil || ok {
		t.Fatalf("expected no-op; ok=%v err=%v", ok, err)
	}
	if h.buffer("flow").CanUndo() {
		t.Fatalf("expected no undo entry")
	}
}

func TestCreate_MatcherListCoercesType(t *testing.T) {
	h := newHarness(t)
	h.flow.sel.Select("m1")
	h.mustExecute(t, NewCreateAction(h.env, h.flow, h.flow.sel.InsertLocation, model.Spec{Type: "click"}))
	n, ok := h.doc.Node("id-1")
	if !ok || n.Type != model.TypeMatcher {
		t.Fatalf("expected matcher type; got %+v", n)
	}
}

func TestDelete_ReselectsAndUndoRestores(t *testing.T) {
	h := newHarness(t)
	before := h.doc.Script()

	h.flow.sel.Select("ctxA")
	h.flow.sel.AddToSelection("ctxC")
	h.flow.sel.AddToSelection("ctxD")
	selected := h.flow.sel.SelectedIDs()

	cmd := NewDelete(h.env, h.flow)
	h.mustExecute(t, cmd)

	root := h.doc.Root().ID
	if got, want := h.ids(t, root, model.ListContexts), []string{"ctxMain", "ctxB", "ctxE"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("contexts=%v want %v", got, want)
	}
	var at []int
	for _, r := range cmd.removed {
		at = append(at, r.index)
	}
	if !reflect.DeepEqual(at, []int{1, 2, 2}) {
		t.Fatalf("removal indices=%v want [1 2 2]", at)
	}
	if got := h.flow.sel.SelectedIDs(); !reflect.DeepEqual(got, []string{"ctxE"}) {
		t.Fatalf("expected item after last removed selected; got %v", got)
	}
	if h.doc.Attached("m1") {
		t.Fatalf("expected subtree of ctxA detached")
	}
	after := h.doc.Script()

	h.mustUndo(t, "flow")
	if diff := cmp.Diff(before, h.doc.Script()); diff != "" {
		t.Fatalf("undo mismatch (-want +got):\n%s", diff)
	}
	if got := h.flow.sel.SelectedIDs(); !reflect.DeepEqual(got, selected) {
		t.Fatalf("selection after undo=%v want %v", got, selected)
	}

	h.mustRedo(t, "flow")
	if diff := cmp.Diff(after, h.doc.Script()); diff != "" {
		t.Fatalf("redo mismatch (-want +got):\n%s", diff)
	}
}

func TestDelete_LastItemSelectsListHead(t *testing.T) {
	h := newHarness(t)
	h.flow.sel.Select("d1")
	h.mustExecute(t, NewDelete(h.env, h.flow))
	st := h.flow.sel.State()
	if !st.IsHead() || st.Path != "/contexts/1/definitions" {
		t.Fatalf("expected list head selected; got %+v", st)
	}
}

func TestDelete_HeadSelectionIsNotExecutable(t *testing.T) {
	h := newHarness(t)
	ref, _ := tree.ParseListRef("/contexts/1/children")
	h.flow.sel.SelectListHead(ref)
	if NewDelete(h.env, h.flow).CanExecute() {
		t.Fatalf("head selection has nothing to delete")
	}
}

func TestPaste_CoercesTypeByTargetList(t *testing.T) {
	payload := model.Clip{
		Type: model.ClipActions,
		Data: []model.Spec{{ID: "x1", Type: "click", Children: []model.Spec{{ID: "x2", Type: "type"}}}},
	}
	tests := []struct {
		name     string
		selectID string
		wantType string
		list     model.ListKey
	}{
		{name: "matchers", selectID: "m1", wantType: model.TypeMatcher, list: model.ListMatchers},
		{name: "children", selectID: "groupA", wantType: "click", list: model.ListChildren},
		{name: "definitions", selectID: "d1", wantType: model.TypeDefinition, list: model.ListDefinitions},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			before := h.doc.Script()
			h.clip.clip, h.clip.ok = payload, true

			h.flow.sel.Select(tc.selectID)
			cmd := NewPaste(h.env, h.flow, func(model.ClipType) (selection.Location, bool) {
				return h.flow.sel.InsertLocation()
			})
			h.mustExecute(t, cmd)

			ids := cmd.PastedIDs()
			if len(ids) != 1 || ids[0] == "x1" {
				t.Fatalf("expected one fresh id; got %v", ids)
			}
			n, ok := h.doc.Node(ids[0])
			if !ok || n.Type != tc.wantType || n.ListKey() != tc.list {
				t.Fatalf("unexpected pasted node: %+v", n)
			}
			if h.doc.Attached("x2") {
				t.Fatalf("nested ids must be fresh too")
			}
			if h.doc.IndexOf(ids[0]) != 1 {
				t.Fatalf("expected paste after selected item; got index %d", h.doc.IndexOf(ids[0]))
			}
			after := h.doc.Script()

			h.mustUndo(t, "flow")
			if diff := cmp.Diff(before, h.doc.Script()); diff != "" {
				t.Fatalf("undo mismatch (-want +got):\n%s", diff)
			}
			h.mustRedo(t, "flow")
			if diff := cmp.Diff(after, h.doc.Script()); diff != "" {
				t.Fatalf("redo mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPaste_MismatchedClipIsNotExecutable(t *testing.T) {
	h := newHarness(t)
	h.clip.clip = model.Clip{Type: model.ClipPipes, Data: []model.Spec{{Type: "dom.queryAll"}}}
	h.clip.ok = true
	h.flow.sel.Select("groupA")
	cmd := NewPaste(h.env, h.flow, func(model.ClipType) (selection.Location, bool) {
		return h.flow.sel.InsertLocation()
	})
	if cmd.CanExecute() {
		t.Fatalf("pipes cannot be pasted into a children list")
	}
}

func TestCopy_NeverPopulatesBuffer(t *testing.T) {
	h := newHarness(t)
	h.flow.sel.Select("groupA")
	h.flow.sel.AddToSelection("groupB")
	h.mustExecute(t, NewCopy(h.env, h.flow))

	if h.buffer("flow").CanUndo() {
		t.Fatalf("copy must not be undoable")
	}
	if h.dirty != 0 {
		t.Fatalf("copy must not mark the document dirty")
	}
	if !h.clip.ok || h.clip.clip.Type != model.ClipActions || len(h.clip.clip.Data) != 2 {
		t.Fatalf("unexpected clip: %+v", h.clip.clip)
	}
	if h.clip.clip.Data[1].Pipeline[0].ID != "p1" {
		t.Fatalf("expected deep copy of subtree")
	}
}

func TestCut_CopiesAndDeletesAsOneStep(t *testing.T) {
	h := newHarness(t)
	before := h.doc.Script()
	h.flow.sel.Select("groupB")
	h.mustExecute(t, NewCut(h.env, h.flow))

	if got := h.ids(t, "ctxA", model.ListChildren); !reflect.DeepEqual(got, []string{"groupA"}) {
		t.Fatalf("children=%v", got)
	}
	if !h.clip.ok || h.clip.clip.Data[0].ID != "groupB" {
		t.Fatalf("expected cut item on clipboard; got %+v", h.clip.clip)
	}
	if h.buffer("flow").Len() != 1 {
		t.Fatalf("expected one undo entry; got %d", h.buffer("flow").Len())
	}
	h.mustUndo(t, "flow")
	if diff := cmp.Diff(before, h.doc.Script()); diff != "" {
		t.Fatalf("undo mismatch (-want +got):\n%s", diff)
	}
}

func TestChangeActionType(t *testing.T) {
	h := newHarness(t)
	before := h.doc.Script()

	h.flow.sel.Select("groupB")
	h.mustExecute(t, NewChangeActionType(h.env, h.flow, "if", map[string]any{"condition": "true"}))

	n, ok := h.doc.Node("groupB")
	if !ok || n.Type != "if" || n.Params["condition"] != "true" {
		t.Fatalf("unexpected node: %+v", n)
	}
	if h.doc.IndexOf("groupB") != 1 || !h.doc.Attached("p1") {
		t.Fatalf("expected id, position and pipeline preserved")
	}
	after := h.doc.Script()

	h.mustUndo(t, "flow")
	if diff := cmp.Diff(before, h.doc.Script()); diff != "" {
		t.Fatalf("undo mismatch (-want +got):\n%s", diff)
	}
	h.mustRedo(t, "flow")
	if diff := cmp.Diff(after, h.doc.Script()); diff != "" {
		t.Fatalf("redo mismatch (-want +got):\n%s", diff)
	}
}

func TestChangeActionType_Preconditions(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name    string
		sel     []string
		newType string
	}{
		{name: "matcher", sel: []string{"m1"}, newType: "click"},
		{name: "definition", sel: []string{"d1"}, newType: "click"},
		{name: "same type", sel: []string{"groupA"}, newType: "group"},
		{name: "multiple", sel: []string{"groupA", "groupB"}, newType: "click"},
		{name: "context", sel: []string{"ctxB"}, newType: "click"},
		{name: "to matcher", sel: []string{"groupA"}, newType: model.TypeMatcher},
	}
	for _, tc := range tests {
		h.flow.sel.SelectIDs(tc.sel)
		if NewChangeActionType(h.env, h.flow, tc.newType, nil).CanExecute() {
			t.Fatalf("%s: expected not executable", tc.name)
		}
	}
}

func TestChangePipeType(t *testing.T) {
	h := newHarness(t)
	h.editor.sel.Select("p1")
	h.mustExecute(t, NewChangePipeType(h.env, h.editor, "dom.queryAll", nil))
	if h.host.active != "editor" {
		t.Fatalf("expected editor activated")
	}
	if n, _ := h.doc.Node("p1"); n.Type != "dom.queryAll" {
		t.Fatalf("unexpected type %q", n.Type)
	}
	h.mustUndo(t, "editor")
	if n, _ := h.doc.Node("p1"); n.Type != "dom.queryOne" {
		t.Fatalf("unexpected type after undo %q", n.Type)
	}
}

func TestEditProperty_MergesWithinThreshold(t *testing.T) {
	h := newHarness(t)
	h.flow.sel.Select("groupA")

	h.mustExecute(t, NewEditProperty(h.env, h.flow, "groupA", "label", "G"))
	h.clock.advance(500 * time.Millisecond)
	h.mustExecute(t, NewEditProperty(h.env, h.flow, "groupA", "label", "Gr"))
	h.clock.advance(500 * time.Millisecond)
	h.mustExecute(t, NewEditProperty(h.env, h.flow, "groupA", "label", "Gro"))

	if got := h.buffer("flow").Len(); got != 1 {
		t.Fatalf("expected edits merged into one step; got %d", got)
	}
	if v, _ := h.doc.Property("groupA", "label"); v != "Gro" {
		t.Fatalf("label=%v", v)
	}
	h.mustUndo(t, "flow")
	if v, _ := h.doc.Property("groupA", "label"); v != "" {
		t.Fatalf("expected original label; got %v", v)
	}
	if h.buffer("flow").CanUndo() {
		t.Fatalf("expected nothing left to undo")
	}
}

func TestEditProperty_SeparateStepsOutsideThreshold(t *testing.T) {
	h := newHarness(t)
	h.flow.sel.Select("groupA")

	h.mustExecute(t, NewEditProperty(h.env, h.flow, "groupA", "selector", "#a"))
	h.clock.advance(3 * time.Second)
	h.mustExecute(t, NewEditProperty(h.env, h.flow, "groupA", "selector", "#b"))
	// A different key never merges.
	h.mustExecute(t, NewEditProperty(h.env, h.flow, "groupA", "timeout", 5))

	if got := h.buffer("flow").Len(); got != 3 {
		t.Fatalf("expected three steps; got %d", got)
	}
	h.mustUndo(t, "flow")
	h.mustUndo(t, "flow")
	if v, _ := h.doc.Property("groupA", "selector"); v != "#a" {
		t.Fatalf("selector=%v want #a", v)
	}
	h.mustUndo(t, "flow")
	if _, ok := h.doc.Property("groupA", "selector"); ok {
		t.Fatalf("expected selector removed")
	}
	if sp, _ := h.doc.SpecOf("groupA"); sp.Params != nil {
		t.Fatalf("expected params cleared; got %v", sp.Params)
	}
}

func TestMoveBy(t *testing.T) {
	h := newHarness(t)
	before := h.doc.Script()
	h.flow.sel.Select("groupA")

	if NewMoveBy(h.env, h.flow, -1).CanExecute() {
		t.Fatalf("first item cannot move up")
	}
	h.mustExecute(t, NewMoveBy(h.env, h.flow, 1))
	if got := h.ids(t, "ctxA", model.ListChildren); !reflect.DeepEqual(got, []string{"groupB", "groupA"}) {
		t.Fatalf("children=%v", got)
	}
	if got := h.flow.sel.SelectedIDs(); !reflect.DeepEqual(got, []string{"groupA"}) {
		t.Fatalf("expected moved item still selected; got %v", got)
	}
	if NewMoveBy(h.env, h.flow, 1).CanExecute() {
		t.Fatalf("last item cannot move down")
	}
	h.mustUndo(t, "flow")
	if diff := cmp.Diff(before, h.doc.Script()); diff != "" {
		t.Fatalf("undo mismatch (-want +got):\n%s", diff)
	}
}

func TestMoveTo_OtherList(t *testing.T) {
	h := newHarness(t)
	before := h.doc.Script()
	h.flow.sel.Select("groupB")

	dst, _ := tree.ParseListRef("/contexts/2/children")
	h.mustExecute(t, NewMoveTo(h.env, h.flow, selection.Location{List: dst, Pos: selection.Head()}))

	if got := h.ids(t, "ctxB", model.ListChildren); !reflect.DeepEqual(got, []string{"groupB"}) {
		t.Fatalf("ctxB children=%v", got)
	}
	if p, _ := h.doc.PathOf("p1"); p.String() != "/contexts/2/children/0/pipeline/0" {
		t.Fatalf("expected subtree moved; p1 at %s", p)
	}
	after := h.doc.Script()

	h.mustUndo(t, "flow")
	if diff := cmp.Diff(before, h.doc.Script()); diff != "" {
		t.Fatalf("undo mismatch (-want +got):\n%s", diff)
	}
	h.mustRedo(t, "flow")
	if diff := cmp.Diff(after, h.doc.Script()); diff != "" {
		t.Fatalf("redo mismatch (-want +got):\n%s", diff)
	}
}

func TestMoveTo_OwnSubtreeRejected(t *testing.T) {
	h := newHarness(t)
	h.flow.sel.Select("groupB")
	dst, _ := tree.ParseListRef("/contexts/1/children/1/children")
	if NewMoveTo(h.env, h.flow, selection.Location{List: dst, Pos: selection.Head()}).CanExecute() {
		t.Fatalf("an item cannot move into itself")
	}
}

func TestCanExecute_HasNoSideEffects(t *testing.T) {
	h := newHarness(t)
	h.clip.clip = model.Clip{Type: model.ClipActions, Data: []model.Spec{{Type: "click"}}}
	h.clip.ok = true
	h.flow.sel.Select("groupA")

	script, rev, st := h.doc.Script(), h.doc.Revision(), h.flow.sel.State()
	cmds := []Command{
		NewCreateAction(h.env, h.flow, h.flow.sel.InsertLocation, model.Spec{Type: "click"}),
		NewDelete(h.env, h.flow),
		NewCut(h.env, h.flow),
		NewCopy(h.env, h.flow),
		NewPaste(h.env, h.flow, func(model.ClipType) (selection.Location, bool) { return h.flow.sel.InsertLocation() }),
		NewChangeActionType(h.env, h.flow, "if", nil),
		NewEditProperty(h.env, h.flow, "groupA", "label", "x"),
		NewMoveBy(h.env, h.flow, 1),
	}
	for i := 0; i < 3; i++ {
		for _, c := range cmds {
			if !c.CanExecute() {
				t.Fatalf("%s: expected executable", c.Kind())
			}
		}
	}
	if h.doc.Revision() != rev || !h.flow.sel.State().Equal(st) || h.buffer("flow").Len() != 0 {
		t.Fatalf("CanExecute mutated state")
	}
	if diff := cmp.Diff(script, h.doc.Script()); diff != "" {
		t.Fatalf("CanExecute mutated the document:\n%s", diff)
	}
	if len(h.clip.clip.Data) != 1 || h.clip.clip.Data[0].Type != "click" {
		t.Fatalf("CanExecute touched the clipboard")
	}
}

func TestIllegalStateOnDivergedTree(t *testing.T) {
	h := newHarness(t)
	h.flow.sel.Select("groupA")
	cmd := NewCreateAction(h.env, h.flow, h.flow.sel.InsertLocation, model.Spec{Type: "click"})
	h.mustExecute(t, cmd)

	l, _ := h.doc.ListOf("ctxA", model.ListChildren)
	if _, err := l.Remove(cmd.CreatedID()); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	_, err := h.buffer("flow").Undo()
	var ise *IllegalStateError
	if !errors.As(err, &ise) {
		t.Fatalf("expected IllegalStateError; got %v", err)
	}
	if ise.Command != cmd || ise.Details["id"] != cmd.CreatedID() {
		t.Fatalf("unexpected error payload: %+v", ise)
	}
	if !h.buffer("flow").CanUndo() {
		t.Fatalf("a failed undo must not move the cursor")
	}
}

func TestEditProperty_DoesNotMergeAcrossEntities(t *testing.T) {
	h := newHarness(t)
	h.flow.sel.Select("ctxB")

	h.mustExecute(t, NewEditProperty(h.env, h.flow, "ctxB", "label", "B1"))
	// Another viewport removes ctxB, so ctxC moves into its path.
	h.editor.sel.Select("ctxB")
	h.mustExecute(t, NewDelete(h.env, h.editor))
	h.host.active = "flow"
	h.mustExecute(t, NewEditProperty(h.env, h.flow, "ctxC", "label", "C1"))

	if got := h.buffer("flow").Len(); got != 2 {
		t.Fatalf("edits of different entities merged; flow buffer len=%d", got)
	}
	h.mustUndo(t, "flow")
	if v, _ := h.doc.Property("ctxC", "label"); v != "" {
		t.Fatalf("ctxC label after undo=%q want empty", v)
	}

	h.host.active = "editor"
	h.mustUndo(t, "editor")
	if v, _ := h.doc.Property("ctxB", "label"); v != "B1" {
		t.Fatalf("ctxB label=%q want B1", v)
	}
	h.host.active = "flow"
	h.mustUndo(t, "flow")
	if diff := cmp.Diff(fixture(), h.doc.Script()); diff != "" {
		t.Fatalf("undo mismatch (-want +got):\n%s", diff)
	}
}

func TestEditProperty_LabelMustBeString(t *testing.T) {
	h := newHarness(t)
	if err := h.doc.SetProperty("groupA", "label", "Group"); err != nil {
		t.Fatalf("SetProperty: %v", err)
	}

	if NewEditProperty(h.env, h.flow, "groupA", "label", float64(42)).CanExecute() {
		t.Fatalf("a non-string label must not be executable")
	}
	if err := h.doc.SetProperty("groupA", "label", 42); !errors.Is(err, tree.ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue; got %v", err)
	}
	if v, _ := h.doc.Property("groupA", "label"); v != "Group" {
		t.Fatalf("label=%q want Group", v)
	}
}

func TestPaste_FailedItemLeavesDocumentUnchanged(t *testing.T) {
	h := newHarness(t)
	before := h.doc.Script()
	h.clip.clip = model.Clip{Type: model.ClipActions, Data: []model.Spec{
		{ID: "ok", Type: "click"},
		{ID: "bad", Type: "click", Matchers: []model.Spec{{ID: "mx", Type: model.TypeMatcher}}},
	}}
	h.clip.ok = true

	h.flow.sel.Select("groupA")
	cmd := NewPaste(h.env, h.flow, func(model.ClipType) (selection.Location, bool) {
		return h.flow.sel.InsertLocation()
	})
	if _, err := Execute(cmd); !errors.Is(err, tree.ErrListNotAllowed) {
		t.Fatalf("expected ErrListNotAllowed; got %v", err)
	}
	if diff := cmp.Diff(before, h.doc.Script()); diff != "" {
		t.Fatalf("failed paste changed the document (-want +got):\n%s", diff)
	}
	if h.buffer("flow").CanUndo() {
		t.Fatalf("a failed paste must not be registered")
	}
	if got := h.flow.sel.SelectedIDs(); !reflect.DeepEqual(got, []string{"groupA"}) {
		t.Fatalf("selection=%v want [groupA]", got)
	}
}

func TestCut_IllegalStateNamesCut(t *testing.T) {
	h := newHarness(t)
	h.flow.sel.Select("groupB")
	cut := NewCut(h.env, h.flow)
	h.mustExecute(t, cut)

	// Drop ctxA; /contexts/1/children now names ctxB's empty list.
	l, _ := h.doc.ListOf(h.doc.Root().ID, model.ListContexts)
	if _, err := l.Remove("ctxA"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	_, err := h.buffer("flow").Undo()
	var ise *IllegalStateError
	if !errors.As(err, &ise) {
		t.Fatalf("expected IllegalStateError; got %v", err)
	}
	if c, ok := ise.Command.(*Cut); !ok || c != cut {
		t.Fatalf("error names %T, want the cut command", ise.Command)
	}
}
