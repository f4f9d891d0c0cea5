package command

import (
	"sort"

	"autopilot/internal/model"
	"autopilot/internal/tree"
)

type removal struct {
	spec  model.Spec
	index int
}

// Delete removes the selected items of one list.
type Delete struct {
	Base
	kind Kind

	// outer is the command reported in errors when Delete is embedded.
	outer Command

	list    tree.ListRef
	ids     []string
	removed []removal
	ready   bool
}

func NewDelete(env *Env, target Target) *Delete {
	return &Delete{Base: newBase(env, target), kind: KindDelete}
}

func (d *Delete) Kind() Kind { return d.kind }

func (d *Delete) self() Command {
	if d.outer != nil {
		return d.outer
	}
	return d
}

func (d *Delete) CanExecute() bool {
	if d.sel().IsHead() {
		return false
	}
	return len(d.sel().SelectedItems()) > 0
}

func (d *Delete) capture() bool {
	ref, ok := d.sel().List()
	items := d.sel().SelectedItems()
	if !ok || len(items) == 0 {
		return false
	}
	d.list = ref
	d.ids = make([]string, 0, len(items))
	for _, n := range items {
		d.ids = append(d.ids, n.ID)
	}
	d.ready = true
	return true
}

// apply removes the recorded items in ascending order, remembering the index
// each one had at the moment it was removed.
func (d *Delete) apply() error {
	if !d.ready && !d.capture() {
		return illegalState(d.self(), "nothing selected", nil)
	}
	l, err := resolveList(d.self(), d.list)
	if err != nil {
		return err
	}

	type pos struct {
		id  string
		idx int
	}
	order := make([]pos, 0, len(d.ids))
	for _, id := range d.ids {
		idx := l.IndexOf(id)
		if idx < 0 {
			return illegalState(d.self(), "item to delete is not in its list", map[string]any{
				"list": d.list.String(),
				"id":   id,
			})
		}
		order = append(order, pos{id: id, idx: idx})
	}
	sort.Slice(order, func(i, j int) bool { return order[i].idx < order[j].idx })

	d.removed = d.removed[:0]
	for _, p := range order {
		spec, err := d.doc().SpecOf(p.id)
		if err != nil {
			return illegalState(d.self(), "item to delete vanished", map[string]any{"id": p.id})
		}
		at, err := l.Remove(p.id)
		if err != nil {
			return illegalState(d.self(), "remove failed", map[string]any{"id": p.id, "error": err.Error()})
		}
		d.removed = append(d.removed, removal{spec: spec, index: at})
	}

	last := d.removed[len(d.removed)-1].index
	if n, ok := l.Get(last); ok {
		d.sel().Select(n.ID)
	} else {
		d.sel().SelectListHead(d.list)
	}
	return nil
}

// unapply re-inserts in reverse removal order so every recorded index is valid again.
func (d *Delete) unapply() error {
	l, err := resolveList(d.self(), d.list)
	if err != nil {
		return err
	}
	for i := len(d.removed) - 1; i >= 0; i-- {
		r := d.removed[i]
		if _, err := l.Insert(r.spec.Clone(), r.index); err != nil {
			return illegalState(d.self(), "re-insert failed", map[string]any{
				"list":  d.list.String(),
				"id":    r.spec.ID,
				"index": r.index,
				"error": err.Error(),
			})
		}
	}
	d.sel().SelectIDs(d.ids)
	return nil
}
