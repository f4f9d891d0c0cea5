package tree

import (
	"fmt"
	"strings"

	"autopilot/internal/model"

	"github.com/google/uuid"
)

// Node is one entity of the script arena. Parent and list membership are id references.
type Node struct {
	ID     string
	Kind   model.EntityKind
	Type   string
	Label  string
	Params map[string]any

	parent string
	list   model.ListKey
	lists  map[model.ListKey][]string
}

func (n *Node) ParentID() string       { return n.parent }
func (n *Node) ListKey() model.ListKey { return n.list }

// Document is the live script tree. Nodes are kept in a flat table keyed by id.
// It is not safe for concurrent use; callers serialize access.
type Document struct {
	rootID string
	nodes  map[string]*Node
	rev    uint64

	// NewID mints ids for inserted specs that carry none.
	NewID func() string
}

// NewID returns a fresh random node id.
func NewID() string {
	return uuid.NewString()
}

func New(s model.Script) (*Document, error) {
	d := &Document{NewID: NewID}
	if err := d.Load(s); err != nil {
		return nil, err
	}
	return d, nil
}

// Load replaces the document content with s.
func (d *Document) Load(s model.Script) error {
	if d.NewID == nil {
		d.NewID = NewID
	}
	rootID := strings.TrimSpace(s.ID)
	if rootID == "" {
		rootID = d.NewID()
	}
	nodes := map[string]*Node{}
	root := &Node{ID: rootID, Kind: model.KindScript, Type: string(model.KindScript), lists: map[model.ListKey][]string{}}
	nodes[rootID] = root

	prev := d.nodes
	d.nodes = nodes
	for i, c := range s.Contexts {
		if err := d.checkSpecKinds(c, model.KindContext); err != nil {
			d.nodes = prev
			return fmt.Errorf("contexts[%d]: %w", i, err)
		}
		if err := d.checkIDs(c, nil); err != nil {
			d.nodes = prev
			return fmt.Errorf("contexts[%d]: %w", i, err)
		}
		id := d.materialize(c, rootID, model.ListContexts)
		root.lists[model.ListContexts] = append(root.lists[model.ListContexts], id)
	}
	d.rootID = rootID
	d.rev++
	return nil
}

// Script serializes the whole document into a deep copy.
func (d *Document) Script() model.Script {
	root := d.nodes[d.rootID]
	out := model.Script{ID: d.rootID}
	for _, id := range root.lists[model.ListContexts] {
		out.Contexts = append(out.Contexts, d.specOf(id))
	}
	return out
}

func (d *Document) Revision() uint64 { return d.rev }

func (d *Document) Root() *Node { return d.nodes[d.rootID] }

// Node returns the node with the given id if it is attached to the tree.
func (d *Document) Node(id string) (*Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Attached reports whether id is currently part of the tree.
func (d *Document) Attached(id string) bool {
	_, ok := d.nodes[id]
	return ok
}

// PathOf computes the current path of the node from its ancestry.
func (d *Document) PathOf(id string) (Path, error) {
	var rev []Step
	cur, ok := d.nodes[id]
	if !ok {
		return nil, NotFoundError{Kind: "entity", Path: id}
	}
	for cur.ID != d.rootID {
		parent, ok := d.nodes[cur.parent]
		if !ok {
			return nil, NotFoundError{Kind: "entity", Path: cur.parent}
		}
		idx := indexOf(parent.lists[cur.list], cur.ID)
		if idx < 0 {
			return nil, NotFoundError{Kind: "entity", Path: cur.ID}
		}
		rev = append(rev, Step{List: cur.list, Index: idx})
		cur = parent
	}
	out := make(Path, len(rev))
	for i := range rev {
		out[len(rev)-1-i] = rev[i]
	}
	return out, nil
}

// IndexOf returns the node's position within its owner list, or -1.
func (d *Document) IndexOf(id string) int {
	n, ok := d.nodes[id]
	if !ok || n.parent == "" {
		return -1
	}
	p, ok := d.nodes[n.parent]
	if !ok {
		return -1
	}
	return indexOf(p.lists[n.list], id)
}

// OwnerOf returns the list that holds the node.
func (d *Document) OwnerOf(id string) (ListRef, bool) {
	p, err := d.PathOf(id)
	if err != nil {
		return ListRef{}, false
	}
	return p.Owner()
}

func (d *Document) ResolveNode(p Path) (*Node, error) {
	cur := d.nodes[d.rootID]
	for i, s := range p {
		ids := cur.lists[s.List]
		if !cur.Kind.Allows(s.List) || s.Index < 0 || s.Index >= len(ids) {
			return nil, NotFoundError{Kind: "entity", Path: p[:i+1].String()}
		}
		cur = d.nodes[ids[s.Index]]
	}
	return cur, nil
}

func (d *Document) ResolveList(ref ListRef) (List, error) {
	owner, err := d.ResolveNode(ref.Owner)
	if err != nil {
		return List{}, NotFoundError{Kind: "list", Path: ref.String()}
	}
	if !owner.Kind.Allows(ref.Key) {
		return List{}, NotFoundError{Kind: "list", Path: ref.String()}
	}
	return List{doc: d, ownerID: owner.ID, Key: ref.Key}, nil
}

// ListOf returns the list view of the given owner node and key.
func (d *Document) ListOf(ownerID string, key model.ListKey) (List, error) {
	owner, ok := d.nodes[ownerID]
	if !ok {
		return List{}, NotFoundError{Kind: "entity", Path: ownerID}
	}
	if !owner.Kind.Allows(key) {
		return List{}, ErrListNotAllowed
	}
	return List{doc: d, ownerID: ownerID, Key: key}, nil
}

// Target is the result of a string lookup: either a node or a list.
type Target struct {
	Node *Node
	List *List
}

// Lookup resolves a path string to a live node or list.
func (d *Document) Lookup(s string) (Target, bool) {
	if p, err := ParsePath(s); err == nil {
		n, err := d.ResolveNode(p)
		if err != nil {
			return Target{}, false
		}
		return Target{Node: n}, true
	}
	ref, err := ParseListRef(s)
	if err != nil {
		return Target{}, false
	}
	l, err := d.ResolveList(ref)
	if err != nil {
		return Target{}, false
	}
	return Target{List: &l}, true
}

// SpecOf serializes the node's subtree into a deep copy.
func (d *Document) SpecOf(id string) (model.Spec, error) {
	if _, ok := d.nodes[id]; !ok {
		return model.Spec{}, NotFoundError{Kind: "entity", Path: id}
	}
	return d.specOf(id), nil
}

func (d *Document) specOf(id string) model.Spec {
	n := d.nodes[id]
	sp := model.Spec{
		ID:     n.ID,
		Type:   n.Type,
		Label:  n.Label,
		Params: cloneParams(n.Params),
	}
	for _, k := range n.Kind.Lists() {
		ids := n.lists[k]
		if len(ids) == 0 {
			continue
		}
		items := make([]model.Spec, 0, len(ids))
		for _, cid := range ids {
			items = append(items, d.specOf(cid))
		}
		sp.SetList(k, items)
	}
	return sp
}

// Replace swaps the node for a new subtree built from spec, at the same owner and index.
func (d *Document) Replace(id string, spec model.Spec) (*Node, error) {
	old, ok := d.nodes[id]
	if !ok {
		return nil, NotFoundError{Kind: "entity", Path: id}
	}
	if id == d.rootID {
		return nil, ErrRootImmutable
	}
	parent := d.nodes[old.parent]
	idx := indexOf(parent.lists[old.list], id)

	exclude := map[string]bool{}
	d.collect(id, exclude)
	if err := d.checkSpecKinds(spec, old.list.ItemKind()); err != nil {
		return nil, err
	}
	if err := d.checkIDs(spec, exclude); err != nil {
		return nil, err
	}

	d.drop(id)
	newID := d.materialize(spec, parent.ID, old.list)
	parent.lists[old.list][idx] = newID
	d.rev++
	return d.nodes[newID], nil
}

// Property returns a single property of a node: "label" or a params key.
func (d *Document) Property(id, key string) (any, bool) {
	n, ok := d.nodes[id]
	if !ok {
		return nil, false
	}
	if key == "label" {
		return n.Label, true
	}
	v, ok := n.Params[key]
	return model.CloneValue(v), ok
}

func (d *Document) SetProperty(id, key string, v any) error {
	n, ok := d.nodes[id]
	if !ok {
		return NotFoundError{Kind: "entity", Path: id}
	}
	if key == "label" {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: label must be a string, got %T", ErrInvalidValue, v)
		}
		n.Label = s
		d.rev++
		return nil
	}
	if n.Params == nil {
		n.Params = map[string]any{}
	}
	n.Params[key] = model.CloneValue(v)
	d.rev++
	return nil
}

func (d *Document) DeleteProperty(id, key string) error {
	n, ok := d.nodes[id]
	if !ok {
		return NotFoundError{Kind: "entity", Path: id}
	}
	if key == "label" {
		n.Label = ""
		d.rev++
		return nil
	}
	delete(n.Params, key)
	if len(n.Params) == 0 {
		n.Params = nil
	}
	d.rev++
	return nil
}

// materialize adds spec's subtree to the arena and returns the new node id.
// Ids must have been validated with checkIDs.
func (d *Document) materialize(spec model.Spec, parentID string, key model.ListKey) string {
	id := strings.TrimSpace(spec.ID)
	if id == "" {
		id = d.NewID()
	}
	n := &Node{
		ID:     id,
		Kind:   key.ItemKind(),
		Type:   spec.Type,
		Label:  spec.Label,
		Params: cloneParams(spec.Params),
		parent: parentID,
		list:   key,
		lists:  map[model.ListKey][]string{},
	}
	d.nodes[id] = n
	for _, k := range n.Kind.Lists() {
		for _, child := range spec.List(k) {
			cid := d.materialize(child, id, k)
			n.lists[k] = append(n.lists[k], cid)
		}
	}
	return id
}

// checkIDs rejects specs whose ids collide with attached nodes (other than exclude) or each other.
func (d *Document) checkIDs(spec model.Spec, exclude map[string]bool) error {
	seen := map[string]bool{}
	var walk func(sp model.Spec) error
	walk = func(sp model.Spec) error {
		id := strings.TrimSpace(sp.ID)
		if id != "" {
			if seen[id] {
				return fmt.Errorf("%w: %s", ErrDuplicateID, id)
			}
			seen[id] = true
			if _, exists := d.nodes[id]; exists && !exclude[id] {
				return fmt.Errorf("%w: %s", ErrDuplicateID, id)
			}
		}
		for _, k := range []model.ListKey{model.ListMatchers, model.ListChildren, model.ListDefinitions, model.ListPipeline} {
			for _, c := range sp.List(k) {
				if err := walk(c); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(spec)
}

// checkSpecKinds rejects specs carrying lists their kind does not own.
func (d *Document) checkSpecKinds(spec model.Spec, kind model.EntityKind) error {
	for _, k := range []model.ListKey{model.ListMatchers, model.ListChildren, model.ListDefinitions, model.ListPipeline} {
		items := spec.List(k)
		if len(items) == 0 {
			continue
		}
		if !kind.Allows(k) {
			return fmt.Errorf("%w: %s cannot own %s", ErrListNotAllowed, kind, k)
		}
		for _, c := range items {
			if err := d.checkSpecKinds(c, k.ItemKind()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Document) collect(id string, into map[string]bool) {
	n, ok := d.nodes[id]
	if !ok {
		return
	}
	into[id] = true
	for _, ids := range n.lists {
		for _, c := range ids {
			d.collect(c, into)
		}
	}
}

// drop removes the node's subtree from the arena without touching the parent's list.
func (d *Document) drop(id string) {
	ids := map[string]bool{}
	d.collect(id, ids)
	for x := range ids {
		delete(d.nodes, x)
	}
}

func indexOf(ids []string, id string) int {
	for i, x := range ids {
		if x == id {
			return i
		}
	}
	return -1
}

func cloneParams(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = model.CloneValue(v)
	}
	return out
}
