package tree

import (
	"autopilot/internal/model"
)

// List is a live view of one entity list. It stays valid while its owner is attached.
type List struct {
	doc     *Document
	ownerID string
	Key     model.ListKey
}

func (l List) OwnerID() string { return l.ownerID }

func (l List) Owner() (*Node, bool) { return l.doc.Node(l.ownerID) }

// Ref computes the list's current address.
func (l List) Ref() (ListRef, error) {
	p, err := l.doc.PathOf(l.ownerID)
	if err != nil {
		return ListRef{}, err
	}
	return p.List(l.Key), nil
}

func (l List) ids() []string {
	n, ok := l.doc.nodes[l.ownerID]
	if !ok {
		return nil
	}
	return n.lists[l.Key]
}

func (l List) Len() int { return len(l.ids()) }

// IDs returns a copy of the item ids in order.
func (l List) IDs() []string {
	return append([]string(nil), l.ids()...)
}

func (l List) Get(i int) (*Node, bool) {
	ids := l.ids()
	if i < 0 || i >= len(ids) {
		return nil, false
	}
	return l.doc.nodes[ids[i]], true
}

func (l List) IndexOf(id string) int { return indexOf(l.ids(), id) }

// Insert materializes spec at index (0..Len). Ids missing from spec are minted.
func (l List) Insert(spec model.Spec, index int) (*Node, error) {
	owner, ok := l.doc.nodes[l.ownerID]
	if !ok {
		return nil, NotFoundError{Kind: "entity", Path: l.ownerID}
	}
	if !owner.Kind.Allows(l.Key) {
		return nil, ErrListNotAllowed
	}
	ids := owner.lists[l.Key]
	if index < 0 || index > len(ids) {
		return nil, ErrIndexOutOfRange
	}
	if err := l.doc.checkSpecKinds(spec, l.Key.ItemKind()); err != nil {
		return nil, err
	}
	if err := l.doc.checkIDs(spec, nil); err != nil {
		return nil, err
	}
	id := l.doc.materialize(spec, owner.ID, l.Key)
	next := make([]string, 0, len(ids)+1)
	next = append(next, ids[:index]...)
	next = append(next, id)
	next = append(next, ids[index:]...)
	owner.lists[l.Key] = next
	l.doc.rev++
	return l.doc.nodes[id], nil
}

// Remove detaches the item and its subtree. It returns the index the item had.
func (l List) Remove(id string) (int, error) {
	owner, ok := l.doc.nodes[l.ownerID]
	if !ok {
		return -1, NotFoundError{Kind: "entity", Path: l.ownerID}
	}
	ids := owner.lists[l.Key]
	idx := indexOf(ids, id)
	if idx < 0 {
		return -1, NotFoundError{Kind: "entity", Path: id}
	}
	l.doc.drop(id)
	next := make([]string, 0, len(ids)-1)
	next = append(next, ids[:idx]...)
	next = append(next, ids[idx+1:]...)
	owner.lists[l.Key] = next
	l.doc.rev++
	return idx, nil
}

// RemoveWhere removes every item matching pred and returns how many were removed.
func (l List) RemoveWhere(pred func(*Node) bool) int {
	removed := 0
	for _, id := range l.IDs() {
		n, ok := l.doc.nodes[id]
		if !ok || !pred(n) {
			continue
		}
		if _, err := l.Remove(id); err == nil {
			removed++
		}
	}
	return removed
}
