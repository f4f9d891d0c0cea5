package viewport

import (
	"autopilot/internal/command"
	"autopilot/internal/model"
	"autopilot/internal/selection"
	"autopilot/internal/tree"
)

// ScriptFlow builds commands for the outline of contexts and actions.
type ScriptFlow struct {
	env *command.Env
	vp  *Viewport
}

func NewScriptFlow(env *command.Env, vp *Viewport) *ScriptFlow {
	return &ScriptFlow{env: env, vp: vp}
}

func (f *ScriptFlow) Viewport() *Viewport { return f.vp }

func (f *ScriptFlow) selectedListKey() (model.ListKey, bool) {
	ref, ok := f.vp.sel.List()
	if !ok {
		return "", false
	}
	return ref.Key, true
}

// ContextLocation places contexts after the last selected context, or at
// the end of the script.
func (f *ScriptFlow) ContextLocation() (selection.Location, bool) {
	if key, ok := f.selectedListKey(); ok && key == model.ListContexts {
		if loc, ok := f.vp.sel.InsertLocation(); ok {
			return loc, true
		}
	}
	ref := tree.RootPath.List(model.ListContexts)
	l, err := f.env.Doc.ResolveList(ref)
	if err != nil {
		return selection.Location{}, false
	}
	return selection.Location{List: ref, Pos: selection.At(l.Len())}, true
}

// ActionLocation places actions after the last selected action, at the head
// of a list whose head is selected, or at the end of a selected context's
// children.
func (f *ScriptFlow) ActionLocation() (selection.Location, bool) {
	key, ok := f.selectedListKey()
	if !ok {
		return selection.Location{}, false
	}
	if key.ItemKind() == model.KindAction {
		return f.vp.sel.InsertLocation()
	}
	if key != model.ListContexts || f.vp.sel.IsHead() {
		return selection.Location{}, false
	}
	items := f.vp.sel.SelectedItems()
	if len(items) == 0 {
		return selection.Location{}, false
	}
	return endOf(f.env.Doc, items[len(items)-1].ID, model.ListChildren)
}

// PipeLocation appends to the pipeline of the single selected action.
func (f *ScriptFlow) PipeLocation() (selection.Location, bool) {
	items := f.vp.sel.SelectedItems()
	if len(items) != 1 || items[0].Kind != model.KindAction {
		return selection.Location{}, false
	}
	return endOf(f.env.Doc, items[0].ID, model.ListPipeline)
}

// ClipLocation maps a clipboard payload type to its insert location.
func (f *ScriptFlow) ClipLocation(t model.ClipType) (selection.Location, bool) {
	switch t {
	case model.ClipContexts:
		return f.ContextLocation()
	case model.ClipActions:
		return f.ActionLocation()
	case model.ClipPipes:
		return f.PipeLocation()
	default:
		return selection.Location{}, false
	}
}

func (f *ScriptFlow) CreateContext() *command.Create {
	return command.NewCreateContext(f.env, f.vp, f.ContextLocation, model.Spec{Type: model.TypeContext})
}

func (f *ScriptFlow) CreateAction(typ string) *command.Create {
	return command.NewCreateAction(f.env, f.vp, f.ActionLocation, model.Spec{Type: typ})
}

func (f *ScriptFlow) Delete() *command.Delete { return command.NewDelete(f.env, f.vp) }

func (f *ScriptFlow) Cut() *command.Cut { return command.NewCut(f.env, f.vp) }

func (f *ScriptFlow) Copy() *command.Copy { return command.NewCopy(f.env, f.vp) }

func (f *ScriptFlow) Paste() *command.Paste {
	return command.NewPaste(f.env, f.vp, f.ClipLocation)
}

func (f *ScriptFlow) ChangeActionType(typ string, fields map[string]any) *command.ChangeType {
	return command.NewChangeActionType(f.env, f.vp, typ, fields)
}

func (f *ScriptFlow) MoveUp() *command.Move { return command.NewMoveBy(f.env, f.vp, -1) }

func (f *ScriptFlow) MoveDown() *command.Move { return command.NewMoveBy(f.env, f.vp, 1) }

func (f *ScriptFlow) MoveTo(loc selection.Location) *command.Move {
	return command.NewMoveTo(f.env, f.vp, loc)
}

// EditLabel renames the single selected item.
func (f *ScriptFlow) EditLabel(label string) *command.EditProperty {
	return command.NewEditProperty(f.env, f.vp, singleID(f.vp.sel), "label", label)
}

// SetParam sets a param of the single selected item.
func (f *ScriptFlow) SetParam(key string, value any) *command.EditProperty {
	return command.NewEditProperty(f.env, f.vp, singleID(f.vp.sel), key, value)
}

func singleID(sel *selection.Selection) string {
	ids := sel.SelectedIDs()
	if len(ids) != 1 {
		return ""
	}
	return ids[0]
}

// endOf returns the append position of the owner's list.
func endOf(doc *tree.Document, ownerID string, key model.ListKey) (selection.Location, bool) {
	l, err := doc.ListOf(ownerID, key)
	if err != nil {
		return selection.Location{}, false
	}
	ref, err := l.Ref()
	if err != nil {
		return selection.Location{}, false
	}
	return selection.Location{List: ref, Pos: selection.At(l.Len())}, true
}
