package command

import (
	"autopilot/internal/model"
	"autopilot/internal/tree"
)

// ChangeType replaces a single action or pipe with one of another type. The
// node keeps its id, position, lists and params; fields are merged over the
// params.
type ChangeType struct {
	Base
	kind    Kind
	item    model.EntityKind
	newType string
	fields  map[string]any

	path    tree.Path
	id      string
	oldSpec model.Spec
	newSpec model.Spec
	ready   bool
}

func NewChangeActionType(env *Env, target Target, newType string, fields map[string]any) *ChangeType {
	return &ChangeType{Base: newBase(env, target), kind: KindChangeActionType, item: model.KindAction, newType: newType, fields: fields}
}

func NewChangePipeType(env *Env, target Target, newType string, fields map[string]any) *ChangeType {
	return &ChangeType{Base: newBase(env, target), kind: KindChangePipeType, item: model.KindPipe, newType: newType, fields: fields}
}

func (c *ChangeType) Kind() Kind { return c.kind }

func (c *ChangeType) selected() (*tree.Node, bool) {
	items := c.sel().SelectedItems()
	if len(items) != 1 {
		return nil, false
	}
	n := items[0]
	if n.Kind != c.item {
		return nil, false
	}
	if c.item == model.KindAction {
		// Matchers and definitions have a fixed type.
		if n.ListKey() != model.ListChildren || n.Type == model.TypeMatcher || n.Type == model.TypeDefinition {
			return nil, false
		}
	}
	return n, true
}

func (c *ChangeType) CanExecute() bool {
	if c.newType == "" || c.newType == model.TypeMatcher || c.newType == model.TypeDefinition {
		return false
	}
	n, ok := c.selected()
	return ok && n.Type != c.newType
}

func (c *ChangeType) capture() bool {
	n, ok := c.selected()
	if !ok {
		return false
	}
	path, err := c.doc().PathOf(n.ID)
	if err != nil {
		return false
	}
	old, err := c.doc().SpecOf(n.ID)
	if err != nil {
		return false
	}
	next := old.Clone()
	next.Type = c.newType
	for k, v := range c.fields {
		if next.Params == nil {
			next.Params = map[string]any{}
		}
		next.Params[k] = model.CloneValue(v)
	}
	c.path, c.id, c.oldSpec, c.newSpec = path, n.ID, old, next
	c.ready = true
	return true
}

func (c *ChangeType) replaceWith(spec model.Spec) error {
	n, err := c.doc().ResolveNode(c.path)
	if err != nil || n.ID != c.id {
		return illegalState(c, "path no longer resolves to the changed item", map[string]any{
			"path": c.path.String(),
			"id":   c.id,
		})
	}
	if _, err := c.doc().Replace(c.id, spec.Clone()); err != nil {
		return illegalState(c, "replace failed", map[string]any{"id": c.id, "error": err.Error()})
	}
	c.sel().Select(c.id)
	return nil
}

func (c *ChangeType) apply() error {
	if !c.ready && !c.capture() {
		return illegalState(c, "no single item selected", nil)
	}
	return c.replaceWith(c.newSpec)
}

func (c *ChangeType) unapply() error {
	return c.replaceWith(c.oldSpec)
}
