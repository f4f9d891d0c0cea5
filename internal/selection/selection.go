package selection

import (
	"sort"

	"autopilot/internal/tree"
)

// HeadIndex is the serialized sentinel for "this list, before its first item".
const HeadIndex = -1

// State is the serializable selection of one viewport: a list path plus positions within it.
type State struct {
	Path    string `json:"path"`
	Indices []int  `json:"indices"`
}

func (s State) Empty() bool { return s.Path == "" || len(s.Indices) == 0 }

func (s State) IsHead() bool { return len(s.Indices) == 1 && s.Indices[0] == HeadIndex }

func (s State) Clone() State {
	return State{Path: s.Path, Indices: append([]int(nil), s.Indices...)}
}

func (s State) Equal(o State) bool {
	if s.Path != o.Path || len(s.Indices) != len(o.Indices) {
		return false
	}
	for i := range s.Indices {
		if s.Indices[i] != o.Indices[i] {
			return false
		}
	}
	return true
}

// Position is either the head of a list or a concrete index.
type Position struct {
	head  bool
	index int
}

func Head() Position { return Position{head: true} }
func At(i int) Position { return Position{index: i} }
func (p Position) IsHead() bool { return p.head }

// Index is the insertion index the position denotes.
func (p Position) Index() int {
	if p.head {
		return 0
	}
	return p.index
}

// Location is a resolved insertion point.
type Location struct {
	List tree.ListRef
	Pos  Position
}

func (l Location) Index() int { return l.Pos.Index() }

// Selection maps selected items of one viewport onto (list path, index set).
type Selection struct {
	doc          *tree.Document
	state        State
	lastSelected int
}

func New(doc *tree.Document) *Selection {
	return &Selection{doc: doc, lastSelected: -1}
}

func (s *Selection) State() State { return s.state.Clone() }

// SetState replaces the selection, normalizing indices to a sorted unique set.
func (s *Selection) SetState(st State) {
	if st.Empty() {
		s.Clear()
		return
	}
	if st.IsHead() {
		s.state = State{Path: st.Path, Indices: []int{HeadIndex}}
		s.lastSelected = -1
		return
	}
	idx := normalize(st.Indices)
	if len(idx) == 0 {
		s.Clear()
		return
	}
	s.state = State{Path: st.Path, Indices: idx}
	s.lastSelected = idx[len(idx)-1]
}

func (s *Selection) Clear() {
	s.state = State{}
	s.lastSelected = -1
}

func (s *Selection) IsEmpty() bool { return s.state.Empty() }

func (s *Selection) IsHead() bool { return s.state.IsHead() }

// List returns the currently targeted list address.
func (s *Selection) List() (tree.ListRef, bool) {
	if s.state.Path == "" {
		return tree.ListRef{}, false
	}
	ref, err := tree.ParseListRef(s.state.Path)
	if err != nil {
		return tree.ListRef{}, false
	}
	return ref, true
}

// ResolveList resolves the targeted list against the current tree.
func (s *Selection) ResolveList() (tree.List, bool) {
	ref, ok := s.List()
	if !ok {
		return tree.List{}, false
	}
	l, err := s.doc.ResolveList(ref)
	if err != nil {
		return tree.List{}, false
	}
	return l, true
}

// SelectedItems resolves the selected indices; indices that no longer resolve are skipped.
func (s *Selection) SelectedItems() []*tree.Node {
	l, ok := s.ResolveList()
	if !ok {
		return nil
	}
	var out []*tree.Node
	for _, i := range s.state.Indices {
		if n, ok := l.Get(i); ok {
			out = append(out, n)
		}
	}
	return out
}

func (s *Selection) SelectedIDs() []string {
	items := s.SelectedItems()
	out := make([]string, 0, len(items))
	for _, n := range items {
		out = append(out, n.ID)
	}
	return out
}

func (s *Selection) address(id string) (string, int, bool) {
	if !s.doc.Attached(id) {
		return "", -1, false
	}
	p, err := s.doc.PathOf(id)
	if err != nil {
		return "", -1, false
	}
	owner, ok := p.Owner()
	if !ok {
		return "", -1, false
	}
	return owner.String(), p.Index(), true
}

// Select makes id the only selected item.
func (s *Selection) Select(id string) {
	path, idx, ok := s.address(id)
	if !ok {
		s.Clear()
		return
	}
	s.state = State{Path: path, Indices: []int{idx}}
	s.lastSelected = idx
}

// AddToSelection adds id to the selection. An item from another list resets the selection to it.
func (s *Selection) AddToSelection(id string) {
	path, idx, ok := s.address(id)
	if !ok {
		s.Clear()
		return
	}
	if path != s.state.Path || s.state.IsHead() {
		s.state = State{Path: path, Indices: []int{idx}}
		s.lastSelected = idx
		return
	}
	s.state.Indices = normalize(append(s.state.Indices, idx))
	s.lastSelected = idx
}

func (s *Selection) RemoveFromSelection(id string) {
	path, idx, ok := s.address(id)
	if !ok || path != s.state.Path {
		return
	}
	next := s.state.Indices[:0:0]
	for _, i := range s.state.Indices {
		if i != idx {
			next = append(next, i)
		}
	}
	if len(next) == 0 {
		s.Clear()
		return
	}
	s.state.Indices = next
	if s.lastSelected == idx {
		s.lastSelected = next[len(next)-1]
	}
}

// SelectListHead targets the list itself with no item, so inserts go before index 0.
func (s *Selection) SelectListHead(ref tree.ListRef) {
	s.state = State{Path: ref.String(), Indices: []int{HeadIndex}}
	s.lastSelected = -1
}

// ExpandSelectionTo range-selects from the last selected item to id, inclusive.
func (s *Selection) ExpandSelectionTo(id string) {
	path, idx, ok := s.address(id)
	if !ok {
		s.Clear()
		return
	}
	if path != s.state.Path || s.lastSelected < 0 {
		s.Select(id)
		return
	}
	lo, hi := s.lastSelected, idx
	if lo > hi {
		lo, hi = hi, lo
	}
	next := append([]int(nil), s.state.Indices...)
	for i := lo; i <= hi; i++ {
		next = append(next, i)
	}
	s.state.Indices = normalize(next)
}

// SelectIDs selects the given items, which must share a list. Ids that are gone are skipped.
func (s *Selection) SelectIDs(ids []string) {
	s.Clear()
	for _, id := range ids {
		s.AddToSelection(id)
	}
}

// LastSelectionIndex returns the highest selected index, or -1.
func (s *Selection) LastSelectionIndex() int {
	if len(s.state.Indices) == 0 {
		return -1
	}
	return s.state.Indices[len(s.state.Indices)-1]
}

// InsertLocation returns the position right after the last selected item,
// or the head of the list when the head sentinel is selected.
func (s *Selection) InsertLocation() (Location, bool) {
	if s.state.Empty() {
		return Location{}, false
	}
	ref, ok := s.List()
	if !ok {
		return Location{}, false
	}
	l, err := s.doc.ResolveList(ref)
	if err != nil {
		return Location{}, false
	}
	if s.state.IsHead() {
		return Location{List: ref, Pos: Head()}, true
	}
	idx := s.LastSelectionIndex() + 1
	if idx > l.Len() {
		idx = l.Len()
	}
	return Location{List: ref, Pos: At(idx)}, true
}

func normalize(in []int) []int {
	seen := map[int]bool{}
	out := make([]int, 0, len(in))
	for _, i := range in {
		if i < 0 || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
