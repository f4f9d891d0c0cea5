package command

import (
	"autopilot/internal/model"
	"autopilot/internal/selection"
	"autopilot/internal/tree"
)

// Move relocates the selected items of one list as a block, either within the
// same list by an offset or to another location. Ids are preserved.
type Move struct {
	Base
	by int
	to *selection.Location

	ids   []string
	from  []int
	at    int
	specs []model.Spec
	// list addresses before and after the move
	preSrc, preDst   tree.ListRef
	postSrc, postDst tree.ListRef
	ready            bool
}

// NewMoveBy moves the selection up (negative) or down (positive) within its list.
func NewMoveBy(env *Env, target Target, by int) *Move {
	return &Move{Base: newBase(env, target), by: by}
}

// NewMoveTo moves the selection to loc, which addresses the list before the move.
func NewMoveTo(env *Env, target Target, loc selection.Location) *Move {
	return &Move{Base: newBase(env, target), to: &loc}
}

func (m *Move) Kind() Kind { return KindMove }

type movePlan struct {
	src, dst tree.List
	ids      []string
	from     []int
	at       int
}

func sameList(a, b tree.List) bool {
	return a.OwnerID() == b.OwnerID() && a.Key == b.Key
}

// plan works out the move from the current selection without mutating anything.
// at is the insert index into the destination list once the items are removed.
func (m *Move) plan() (movePlan, bool) {
	if m.by == 0 && m.to == nil {
		return movePlan{}, false
	}
	src, ok := m.sel().ResolveList()
	if !ok || m.sel().IsHead() {
		return movePlan{}, false
	}
	items := m.sel().SelectedItems()
	if len(items) == 0 {
		return movePlan{}, false
	}
	p := movePlan{src: src}
	for _, n := range items {
		p.ids = append(p.ids, n.ID)
		p.from = append(p.from, src.IndexOf(n.ID))
	}
	remaining := src.Len() - len(p.ids)

	if m.to == nil {
		p.dst = src
		p.at = p.from[0] + m.by
		if p.at < 0 || p.at > remaining {
			return movePlan{}, false
		}
		return p, true
	}

	dst, err := m.doc().ResolveList(m.to.List)
	if err != nil || dst.Key.ItemKind() != src.Key.ItemKind() {
		return movePlan{}, false
	}
	// An item cannot move into its own subtree.
	moving := map[string]bool{}
	for _, id := range p.ids {
		moving[id] = true
	}
	for cur := dst.OwnerID(); cur != ""; {
		if moving[cur] {
			return movePlan{}, false
		}
		n, ok := m.doc().Node(cur)
		if !ok {
			break
		}
		cur = n.ParentID()
	}
	p.dst = dst
	p.at = m.to.Index()
	limit := dst.Len()
	if sameList(src, dst) {
		for _, i := range p.from {
			if i < m.to.Index() {
				p.at--
			}
		}
		limit = remaining
	}
	if p.at < 0 || p.at > limit {
		return movePlan{}, false
	}
	if sameList(src, dst) && p.at == p.from[0] && p.from[len(p.from)-1]-p.from[0] == len(p.from)-1 {
		// contiguous block onto itself
		return movePlan{}, false
	}
	return p, true
}

func (m *Move) CanExecute() bool {
	if m.ready {
		return true
	}
	_, ok := m.plan()
	return ok
}

func (m *Move) capture() bool {
	p, ok := m.plan()
	if !ok {
		return false
	}
	preSrc, err := p.src.Ref()
	if err != nil {
		return false
	}
	preDst, err := p.dst.Ref()
	if err != nil {
		return false
	}
	m.ids, m.from, m.at = p.ids, p.from, p.at
	m.preSrc, m.preDst = preSrc, preDst
	m.ready = true
	return true
}

func (m *Move) apply() error {
	if !m.ready && !m.capture() {
		return illegalState(m, "nothing to move", nil)
	}
	src, err := resolveList(m, m.preSrc)
	if err != nil {
		return err
	}
	dst, err := resolveList(m, m.preDst)
	if err != nil {
		return err
	}
	specs := make([]model.Spec, 0, len(m.ids))
	for i, id := range m.ids {
		if got := src.IndexOf(id); got != m.from[i] {
			return illegalState(m, "moved item is not where it was", map[string]any{
				"list":  m.preSrc.String(),
				"id":    id,
				"want":  m.from[i],
				"index": got,
			})
		}
		spec, _ := m.doc().SpecOf(id)
		specs = append(specs, spec)
	}
	m.specs = specs

	for i := len(m.ids) - 1; i >= 0; i-- {
		if _, err := src.Remove(m.ids[i]); err != nil {
			return illegalState(m, "remove failed", map[string]any{"id": m.ids[i], "error": err.Error()})
		}
	}
	for i, s := range specs {
		moved := s.Clone()
		moved.Type = dst.Key.CoerceType(moved.Type)
		if _, err := dst.Insert(moved, m.at+i); err != nil {
			return illegalState(m, "insert failed", map[string]any{
				"list":  m.preDst.String(),
				"index": m.at + i,
				"error": err.Error(),
			})
		}
	}
	if m.postSrc, err = src.Ref(); err != nil {
		return illegalState(m, "source list detached", map[string]any{"list": m.preSrc.String()})
	}
	if m.postDst, err = dst.Ref(); err != nil {
		return illegalState(m, "destination list detached", map[string]any{"list": m.preDst.String()})
	}
	m.sel().SelectIDs(m.ids)
	return nil
}

func (m *Move) unapply() error {
	src, err := resolveList(m, m.postSrc)
	if err != nil {
		return err
	}
	dst, err := resolveList(m, m.postDst)
	if err != nil {
		return err
	}
	for i, id := range m.ids {
		if got := dst.IndexOf(id); got != m.at+i {
			return illegalState(m, "moved item is not where it was placed", map[string]any{
				"list":  m.postDst.String(),
				"id":    id,
				"want":  m.at + i,
				"index": got,
			})
		}
	}
	for _, id := range m.ids {
		if _, err := dst.Remove(id); err != nil {
			return illegalState(m, "remove failed", map[string]any{"id": id, "error": err.Error()})
		}
	}
	// Ascending order makes each recorded index valid when it is used.
	for i, s := range m.specs {
		if _, err := src.Insert(s.Clone(), m.from[i]); err != nil {
			return illegalState(m, "re-insert failed", map[string]any{
				"list":  m.postSrc.String(),
				"index": m.from[i],
				"error": err.Error(),
			})
		}
	}
	m.sel().SelectIDs(m.ids)
	return nil
}
