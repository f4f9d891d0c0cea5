package command

import (
	"reflect"
	"testing"

	"autopilot/internal/model"
)

func TestBuffer_InactiveViewportOnlyReveals(t *testing.T) {
	h := newHarness(t)
	h.flow.sel.Select("groupA")
	h.mustExecute(t, NewCreateAction(h.env, h.flow, h.flow.sel.InsertLocation, model.Spec{Type: "click"}))

	h.host.ActivateViewport("editor")
	h.editor.sel.Select("p1")
	focused := h.flow.focused

	out, err := h.buffer("flow").Undo()
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if out != Revealed {
		t.Fatalf("outcome=%s want revealed", out)
	}
	if h.host.active != "flow" || h.flow.focused != focused+1 {
		t.Fatalf("expected flow activated and focused")
	}
	if got := len(h.ids(t, "ctxA", model.ListChildren)); got != 3 {
		t.Fatalf("reveal must not undo; children=%d", got)
	}
	if got := h.flow.sel.SelectedIDs(); !reflect.DeepEqual(got, []string{"groupA"}) {
		t.Fatalf("expected captured selection restored; got %v", got)
	}
	if !h.editor.sel.IsEmpty() {
		t.Fatalf("expected connected editor state restored")
	}

	h.mustUndo(t, "flow")
	if got := len(h.ids(t, "ctxA", model.ListChildren)); got != 2 {
		t.Fatalf("children=%d after undo", got)
	}

	h.host.ActivateViewport("editor")
	out, err = h.buffer("flow").Redo()
	if err != nil || out != Revealed {
		t.Fatalf("redo outcome=%s err=%v want revealed", out, err)
	}
	h.mustRedo(t, "flow")
}

func TestBuffer_RegisterDiscardsRedoFuture(t *testing.T) {
	h := newHarness(t)
	buf := h.buffer("flow")
	h.flow.sel.Select("groupA")

	c1 := NewCreateAction(h.env, h.flow, h.flow.sel.InsertLocation, model.Spec{Type: "click"})
	h.mustExecute(t, c1)
	c2 := NewCreateAction(h.env, h.flow, h.flow.sel.InsertLocation, model.Spec{Type: "click"})
	h.mustExecute(t, c2)
	if buf.Len() != 2 || buf.Index() != 0 || buf.CanRedo() {
		t.Fatalf("unexpected buffer: len=%d index=%d", buf.Len(), buf.Index())
	}

	h.mustUndo(t, "flow")
	if !buf.CanRedo() || buf.Index() != 1 {
		t.Fatalf("expected redo available after undo")
	}

	c3 := NewCreateAction(h.env, h.flow, h.flow.sel.InsertLocation, model.Spec{Type: "click"})
	h.mustExecute(t, c3)
	if buf.Len() != 2 || buf.Index() != 0 || buf.CanRedo() {
		t.Fatalf("expected future discarded: len=%d index=%d", buf.Len(), buf.Index())
	}
	if buf.commands[0] != c3 || buf.commands[1] != c1 {
		t.Fatalf("unexpected history order")
	}

	buf.Reset()
	if buf.CanUndo() || buf.CanRedo() || buf.Len() != 0 {
		t.Fatalf("expected empty buffer after reset")
	}
}

func TestBuffer_NoopWhenEmpty(t *testing.T) {
	h := newHarness(t)
	out, err := h.buffer("flow").Undo()
	if err != nil || out != Noop {
		t.Fatalf("undo on empty buffer: %s %v", out, err)
	}
	out, err = h.buffer("flow").Redo()
	if err != nil || out != Noop {
		t.Fatalf("redo on empty buffer: %s %v", out, err)
	}
}

func TestNotifier_Signals(t *testing.T) {
	h := newHarness(t)
	var got []Signal
	var executed []Kind
	unsubscribe := h.env.Notifier.Subscribe(func(n Notification) {
		got = append(got, n.Signal)
	})
	h.env.Notifier.Subscribe(func(n Notification) {
		executed = append(executed, n.Command.Kind())
	}, CommandExecuted)

	h.flow.sel.Select("groupA")
	h.mustExecute(t, NewCopy(h.env, h.flow))
	h.mustExecute(t, NewDelete(h.env, h.flow))
	h.mustUndo(t, "flow")
	h.mustRedo(t, "flow")

	want := []Signal{CommandExecuted, CommandExecuted, UndoExecuted, RedoExecuted}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("signals=%v want %v", got, want)
	}
	if !reflect.DeepEqual(executed, []Kind{KindCopy, KindDelete}) {
		t.Fatalf("executed=%v", executed)
	}

	unsubscribe()
	h.mustUndo(t, "flow")
	if len(got) != len(want) {
		t.Fatalf("expected no delivery after unsubscribe")
	}
}
