package command

import (
	"autopilot/internal/model"
	"autopilot/internal/tree"
)

// EditProperty sets one property ("label" or a params key) of an entity.
// Consecutive edits of the same property merge into one undo step.
type EditProperty struct {
	Base
	id    string
	key   string
	value any

	path   tree.Path
	old    any
	hadOld bool
	ready  bool
}

func NewEditProperty(env *Env, target Target, id, key string, value any) *EditProperty {
	return &EditProperty{Base: newBase(env, target), id: id, key: key, value: model.CloneValue(value)}
}

func (e *EditProperty) Kind() Kind { return KindEditProperty }

func (e *EditProperty) CanExecute() bool {
	switch e.key {
	case "", "id", "type":
		return false
	case "label":
		if _, ok := e.value.(string); !ok {
			return false
		}
	}
	n, ok := e.doc().Node(e.id)
	return ok && n.Kind != model.KindScript
}

// Append takes over the value prev replaced when both edit the same property
// of the same entity at the same path.
func (e *EditProperty) Append(prev Command) bool {
	p, ok := prev.(*EditProperty)
	if !ok || p.id != e.id || p.key != e.key || !p.path.Equal(e.path) {
		return false
	}
	e.old, e.hadOld = p.old, p.hadOld
	e.connected = p.connected
	return true
}

func (e *EditProperty) resolve() error {
	n, err := e.doc().ResolveNode(e.path)
	if err != nil || n.ID != e.id {
		return illegalState(e, "path no longer resolves to the edited item", map[string]any{
			"path": e.path.String(),
			"id":   e.id,
			"key":  e.key,
		})
	}
	return nil
}

func (e *EditProperty) apply() error {
	if !e.ready {
		path, err := e.doc().PathOf(e.id)
		if err != nil {
			return illegalState(e, "edited item is not attached", map[string]any{"id": e.id})
		}
		e.path = path
		e.old, e.hadOld = e.doc().Property(e.id, e.key)
		e.ready = true
	}
	if err := e.resolve(); err != nil {
		return err
	}
	return e.doc().SetProperty(e.id, e.key, e.value)
}

func (e *EditProperty) unapply() error {
	if err := e.resolve(); err != nil {
		return err
	}
	if e.hadOld {
		return e.doc().SetProperty(e.id, e.key, e.old)
	}
	return e.doc().DeleteProperty(e.id, e.key)
}
