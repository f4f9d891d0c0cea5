package model

import (
	"fmt"
	"strings"
)

type EntityKind string

const (
	KindScript  EntityKind = "script"
	KindContext EntityKind = "context"
	KindAction  EntityKind = "action"
	KindPipe    EntityKind = "pipe"
)

// ListKey names one of the ordered child lists an entity may own.
type ListKey string

const (
	ListContexts    ListKey = "contexts"
	ListMatchers    ListKey = "matchers"
	ListChildren    ListKey = "children"
	ListDefinitions ListKey = "definitions"
	ListPipeline    ListKey = "pipeline"
)

var allListKeys = []ListKey{ListContexts, ListMatchers, ListChildren, ListDefinitions, ListPipeline}

func ParseListKey(s string) (ListKey, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range allListKeys {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown list: %q", s)
}

// ItemKind is the kind of entity stored in lists of this key.
func (k ListKey) ItemKind() EntityKind {
	switch k {
	case ListContexts:
		return KindContext
	case ListPipeline:
		return KindPipe
	default:
		return KindAction
	}
}

// CoerceType returns the type an item must have when placed in a list of this key.
// Lists without a fixed type keep the item's own type.
func (k ListKey) CoerceType(typ string) string {
	switch k {
	case ListMatchers:
		return TypeMatcher
	case ListDefinitions:
		return TypeDefinition
	default:
		return typ
	}
}

// Lists returns the list keys an entity of this kind owns, in serialization order.
func (k EntityKind) Lists() []ListKey {
	switch k {
	case KindScript:
		return []ListKey{ListContexts}
	case KindContext:
		return []ListKey{ListMatchers, ListChildren, ListDefinitions}
	case KindAction:
		return []ListKey{ListChildren, ListPipeline}
	default:
		return nil
	}
}

func (k EntityKind) Allows(key ListKey) bool {
	for _, l := range k.Lists() {
		if l == key {
			return true
		}
	}
	return false
}

const (
	TypeMatcher     = "matcher"
	TypeDefinition  = "definition"
	TypeMain        = "main"
	TypeContext     = "context"
	TypePlaceholder = "placeholder"
)

type Script struct {
	ID       string `json:"id" yaml:"id"`
	Contexts []Spec `json:"contexts" yaml:"contexts"`
}

// Spec is the serialized form of a context, action or pipe, including its subtree.
// Specs are values: commands keep deep clones, never live nodes.
type Spec struct {
	ID     string         `json:"id,omitempty" yaml:"id,omitempty"`
	Type   string         `json:"type" yaml:"type"`
	Label  string         `json:"label,omitempty" yaml:"label,omitempty"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`

	Matchers    []Spec `json:"matchers,omitempty" yaml:"matchers,omitempty"`
	Children    []Spec `json:"children,omitempty" yaml:"children,omitempty"`
	Definitions []Spec `json:"definitions,omitempty" yaml:"definitions,omitempty"`
	Pipeline    []Spec `json:"pipeline,omitempty" yaml:"pipeline,omitempty"`
}

func (s Spec) List(key ListKey) []Spec {
	switch key {
	case ListMatchers:
		return s.Matchers
	case ListChildren:
		return s.Children
	case ListDefinitions:
		return s.Definitions
	case ListPipeline:
		return s.Pipeline
	default:
		return nil
	}
}

func (s *Spec) SetList(key ListKey, items []Spec) {
	switch key {
	case ListMatchers:
		s.Matchers = items
	case ListChildren:
		s.Children = items
	case ListDefinitions:
		s.Definitions = items
	case ListPipeline:
		s.Pipeline = items
	}
}

// Clone returns a deep copy of s.
func (s Spec) Clone() Spec {
	out := Spec{
		ID:     s.ID,
		Type:   s.Type,
		Label:  s.Label,
		Params: cloneParams(s.Params),
	}
	out.Matchers = cloneSpecs(s.Matchers)
	out.Children = cloneSpecs(s.Children)
	out.Definitions = cloneSpecs(s.Definitions)
	out.Pipeline = cloneSpecs(s.Pipeline)
	return out
}

// WithFreshIDs returns a deep copy of s where every id in the subtree is replaced by newID().
func (s Spec) WithFreshIDs(newID func() string) Spec {
	out := s.Clone()
	var walk func(sp *Spec)
	walk = func(sp *Spec) {
		sp.ID = newID()
		for _, k := range allListKeys {
			items := sp.List(k)
			for i := range items {
				walk(&items[i])
			}
		}
	}
	walk(&out)
	return out
}

func (s Script) Clone() Script {
	return Script{ID: s.ID, Contexts: cloneSpecs(s.Contexts)}
}

func cloneSpecs(in []Spec) []Spec {
	if in == nil {
		return nil
	}
	out := make([]Spec, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

func cloneParams(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies JSON-like values (maps, slices, scalars).
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneParams(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = CloneValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
