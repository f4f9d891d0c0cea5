package command

import (
	"fmt"

	"autopilot/internal/model"
	"autopilot/internal/selection"
	"autopilot/internal/tree"
)

// selectedClip serializes the current selection into a clipboard envelope.
func selectedClip(b *Base) (model.Clip, bool) {
	ref, ok := b.sel().List()
	if !ok || b.sel().IsHead() {
		return model.Clip{}, false
	}
	items := b.sel().SelectedItems()
	if len(items) == 0 {
		return model.Clip{}, false
	}
	clip := model.Clip{Type: model.ClipTypeFor(ref.Key)}
	for _, n := range items {
		spec, err := b.doc().SpecOf(n.ID)
		if err != nil {
			return model.Clip{}, false
		}
		clip.Data = append(clip.Data, spec)
	}
	return clip, true
}

// Copy writes the selected items to the clipboard. It is never undoable.
type Copy struct {
	Base
}

func NewCopy(env *Env, target Target) *Copy {
	return &Copy{Base: newBase(env, target)}
}

func (c *Copy) Kind() Kind { return KindCopy }

func (c *Copy) Undoable() bool { return false }

func (c *Copy) CanExecute() bool {
	if c.env.Clipboard == nil || c.sel().IsHead() {
		return false
	}
	return len(c.sel().SelectedItems()) > 0
}

func (c *Copy) apply() error {
	clip, ok := selectedClip(&c.Base)
	if !ok {
		return nil
	}
	if err := c.env.Clipboard.Write(clip); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	return nil
}

func (c *Copy) unapply() error { return nil }

// Cut copies the selection to the clipboard and deletes it as one undoable step.
type Cut struct {
	Delete
}

func NewCut(env *Env, target Target) *Cut {
	c := &Cut{Delete: Delete{Base: newBase(env, target), kind: KindCut}}
	c.outer = c
	return c
}

func (c *Cut) CanExecute() bool {
	return c.env.Clipboard != nil && c.Delete.CanExecute()
}

func (c *Cut) apply() error {
	if !c.ready {
		clip, ok := selectedClip(&c.Base)
		if !ok {
			return illegalState(c, "nothing selected", nil)
		}
		if err := c.env.Clipboard.Write(clip); err != nil {
			return fmt.Errorf("cut: %w", err)
		}
	}
	return c.Delete.apply()
}

// ClipLocator computes the insert location for a clipboard payload type.
type ClipLocator func(model.ClipType) (selection.Location, bool)

// Paste inserts the clipboard items at the location its payload type maps to.
// Items get fresh ids on the first apply; redo reuses them.
type Paste struct {
	Base
	locate ClipLocator

	loc   selection.Location
	specs []model.Spec
	ready bool
}

func NewPaste(env *Env, target Target, locate ClipLocator) *Paste {
	return &Paste{Base: newBase(env, target), locate: locate}
}

func (p *Paste) Kind() Kind { return KindPaste }

// PastedIDs returns the ids of the inserted items, empty before the first execution.
func (p *Paste) PastedIDs() []string {
	out := make([]string, 0, len(p.specs))
	for _, s := range p.specs {
		out = append(out, s.ID)
	}
	return out
}

func (p *Paste) resolveTarget() (model.Clip, selection.Location, tree.List, bool) {
	if p.env.Clipboard == nil || p.locate == nil {
		return model.Clip{}, selection.Location{}, tree.List{}, false
	}
	clip, ok, err := p.env.Clipboard.Read()
	if err != nil || !ok || len(clip.Data) == 0 {
		return model.Clip{}, selection.Location{}, tree.List{}, false
	}
	loc, ok := p.locate(clip.Type)
	if !ok {
		return model.Clip{}, selection.Location{}, tree.List{}, false
	}
	l, err := p.doc().ResolveList(loc.List)
	if err != nil || l.Key.ItemKind() != clip.Type.ItemKind() || loc.Index() > l.Len() {
		return model.Clip{}, selection.Location{}, tree.List{}, false
	}
	return clip, loc, l, true
}

func (p *Paste) CanExecute() bool {
	if p.ready {
		_, err := p.doc().ResolveList(p.loc.List)
		return err == nil
	}
	_, _, _, ok := p.resolveTarget()
	return ok
}

func (p *Paste) apply() error {
	first := !p.ready
	if first {
		clip, loc, l, ok := p.resolveTarget()
		if !ok {
			return illegalState(p, "nothing pasteable at the current selection", nil)
		}
		p.loc = loc
		p.specs = make([]model.Spec, 0, len(clip.Data))
		for _, d := range clip.Data {
			s := d.WithFreshIDs(p.doc().NewID)
			s.Type = l.Key.CoerceType(s.Type)
			p.specs = append(p.specs, s)
		}
		p.ready = true
	}
	l, err := resolveList(p, p.loc.List)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(p.specs))
	for i, s := range p.specs {
		if _, err := l.Insert(s.Clone(), p.loc.Index()+i); err != nil {
			// Leave the list as it was.
			for _, id := range ids {
				_, _ = l.Remove(id)
			}
			if first {
				p.ready = false
				return fmt.Errorf("paste item %d: %w", i, err)
			}
			return illegalState(p, "insert failed", map[string]any{
				"list":  p.loc.List.String(),
				"index": p.loc.Index() + i,
				"error": err.Error(),
			})
		}
		ids = append(ids, s.ID)
	}
	p.sel().SelectIDs(ids)
	p.target.Expand(ids...)
	return nil
}

func (p *Paste) unapply() error {
	l, err := resolveList(p, p.loc.List)
	if err != nil {
		return err
	}
	for i, s := range p.specs {
		if got := l.IndexOf(s.ID); got != p.loc.Index()+i {
			return illegalState(p, "pasted item is not where it was inserted", map[string]any{
				"list":  p.loc.List.String(),
				"id":    s.ID,
				"want":  p.loc.Index() + i,
				"index": got,
			})
		}
	}
	for _, s := range p.specs {
		if _, err := l.Remove(s.ID); err != nil {
			return illegalState(p, "remove failed", map[string]any{"id": s.ID, "error": err.Error()})
		}
	}
	return nil
}
