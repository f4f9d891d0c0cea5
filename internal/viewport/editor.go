package viewport

import (
	"autopilot/internal/command"
	"autopilot/internal/model"
	"autopilot/internal/selection"
	"autopilot/internal/tree"
)

// ScriptEditor builds commands for the pipeline of the open action.
type ScriptEditor struct {
	env  *command.Env
	vp   *Viewport
	flow *Viewport
}

func NewScriptEditor(env *command.Env, vp, flow *Viewport) *ScriptEditor {
	return &ScriptEditor{env: env, vp: vp, flow: flow}
}

func (e *ScriptEditor) Viewport() *Viewport { return e.vp }

// OpenAction is the single action selected in the flow (matchers and
// definitions included), or else the action whose pipeline the editor selects.
func (e *ScriptEditor) OpenAction() (*tree.Node, bool) {
	if items := e.flow.sel.SelectedItems(); len(items) == 1 && items[0].Kind == model.KindAction {
		return items[0], true
	}
	l, ok := e.vp.sel.ResolveList()
	if !ok || l.Key != model.ListPipeline {
		return nil, false
	}
	return l.Owner()
}

// PipeLocation inserts after the last selected pipe of the open pipeline,
// or appends to it.
func (e *ScriptEditor) PipeLocation() (selection.Location, bool) {
	action, ok := e.OpenAction()
	if !ok {
		return selection.Location{}, false
	}
	if l, ok := e.vp.sel.ResolveList(); ok && l.Key == model.ListPipeline && l.OwnerID() == action.ID {
		return e.vp.sel.InsertLocation()
	}
	return endOf(e.env.Doc, action.ID, model.ListPipeline)
}

func (e *ScriptEditor) ClipLocation(t model.ClipType) (selection.Location, bool) {
	if t != model.ClipPipes {
		return selection.Location{}, false
	}
	return e.PipeLocation()
}

func (e *ScriptEditor) CreatePipe(typ string) *command.Create {
	return command.NewCreatePipe(e.env, e.vp, e.PipeLocation, model.Spec{Type: typ})
}

func (e *ScriptEditor) Delete() *command.Delete { return command.NewDelete(e.env, e.vp) }

func (e *ScriptEditor) Cut() *command.Cut { return command.NewCut(e.env, e.vp) }

func (e *ScriptEditor) Copy() *command.Copy { return command.NewCopy(e.env, e.vp) }

func (e *ScriptEditor) Paste() *command.Paste {
	return command.NewPaste(e.env, e.vp, e.ClipLocation)
}

func (e *ScriptEditor) ChangePipeType(typ string, fields map[string]any) *command.ChangeType {
	return command.NewChangePipeType(e.env, e.vp, typ, fields)
}

func (e *ScriptEditor) MoveUp() *command.Move { return command.NewMoveBy(e.env, e.vp, -1) }

func (e *ScriptEditor) MoveDown() *command.Move { return command.NewMoveBy(e.env, e.vp, 1) }

// EditParam sets a param of the single selected pipe.
func (e *ScriptEditor) EditParam(key string, value any) *command.EditProperty {
	return command.NewEditProperty(e.env, e.vp, singleID(e.vp.sel), key, value)
}
