package command

import (
	"fmt"
	"strings"

	"autopilot/internal/model"
	"autopilot/internal/selection"
	"autopilot/internal/tree"
)

// Locator computes an insert location from the current selection.
type Locator func() (selection.Location, bool)

// Create inserts one new context, action or pipe. The id minted on the first
// apply is reused by every redo.
type Create struct {
	Base
	kind   Kind
	item   model.EntityKind
	spec   model.Spec
	locate Locator

	loc   selection.Location
	ready bool
}

func NewCreateContext(env *Env, target Target, locate Locator, spec model.Spec) *Create {
	return newCreate(env, target, KindCreateContext, model.KindContext, locate, spec)
}

func NewCreateAction(env *Env, target Target, locate Locator, spec model.Spec) *Create {
	return newCreate(env, target, KindCreateAction, model.KindAction, locate, spec)
}

func NewCreatePipe(env *Env, target Target, locate Locator, spec model.Spec) *Create {
	return newCreate(env, target, KindCreatePipe, model.KindPipe, locate, spec)
}

func newCreate(env *Env, target Target, kind Kind, item model.EntityKind, locate Locator, spec model.Spec) *Create {
	return &Create{Base: newBase(env, target), kind: kind, item: item, locate: locate, spec: spec.Clone()}
}

func (c *Create) Kind() Kind { return c.kind }

// CreatedID is the id of the inserted item, empty before the first execution.
func (c *Create) CreatedID() string {
	if !c.ready {
		return ""
	}
	return c.spec.ID
}

func (c *Create) location() (selection.Location, bool) {
	if c.ready {
		return c.loc, true
	}
	if c.locate == nil {
		return selection.Location{}, false
	}
	return c.locate()
}

func (c *Create) CanExecute() bool {
	loc, ok := c.location()
	if !ok {
		return false
	}
	l, err := c.doc().ResolveList(loc.List)
	if err != nil || l.Key.ItemKind() != c.item {
		return false
	}
	return loc.Index() <= l.Len()
}

func (c *Create) apply() error {
	first := !c.ready
	if first {
		loc, ok := c.location()
		if !ok {
			return illegalState(c, "no insert location", nil)
		}
		c.loc = loc
		if strings.TrimSpace(c.spec.ID) == "" {
			c.spec.ID = c.doc().NewID()
		}
		c.spec.Type = loc.List.Key.CoerceType(c.spec.Type)
		c.ready = true
	}
	l, err := c.doc().ResolveList(c.loc.List)
	if err != nil || l.Key.ItemKind() != c.item {
		return illegalState(c, "insert list does not resolve to a "+string(c.item)+" list", map[string]any{
			"list": c.loc.List.String(),
		})
	}
	n, err := l.Insert(c.spec.Clone(), c.loc.Index())
	if err != nil {
		if first {
			return fmt.Errorf("create %s: %w", c.item, err)
		}
		return illegalState(c, "insert failed", map[string]any{
			"list":  c.loc.List.String(),
			"index": c.loc.Index(),
			"error": err.Error(),
		})
	}
	c.sel().Select(n.ID)
	c.target.Expand(l.OwnerID(), n.ID)
	return nil
}

func (c *Create) unapply() error {
	l, err := c.doc().ResolveList(c.loc.List)
	if err != nil {
		return illegalState(c, "insert list does not resolve", map[string]any{"list": c.loc.List.String()})
	}
	if got := l.IndexOf(c.spec.ID); got != c.loc.Index() {
		return illegalState(c, "created item is not where it was inserted", map[string]any{
			"list":  c.loc.List.String(),
			"id":    c.spec.ID,
			"want":  c.loc.Index(),
			"index": got,
		})
	}
	if _, err := l.Remove(c.spec.ID); err != nil {
		return illegalState(c, "remove failed", map[string]any{"id": c.spec.ID, "error": err.Error()})
	}
	return nil
}

// resolveList resolves ref or reports an illegal state on behalf of cmd.
func resolveList(cmd Command, ref tree.ListRef) (tree.List, error) {
	l, err := cmd.base().doc().ResolveList(ref)
	if err != nil {
		return tree.List{}, illegalState(cmd, "list does not resolve", map[string]any{
			"list":  ref.String(),
			"error": err.Error(),
		})
	}
	return l, nil
}
