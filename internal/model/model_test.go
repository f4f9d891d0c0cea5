package model

import (
	"fmt"
	"testing"
)

func TestSpecClone_IsDeep(t *testing.T) {
	orig := Spec{
		ID:     "a1",
		Type:   "click",
		Params: map[string]any{"selector": "#go", "opts": map[string]any{"n": 1.0}, "list": []any{"x"}},
		Pipeline: []Spec{
			{ID: "p1", Type: "dom.queryOne", Params: map[string]any{"selector": ".a"}},
		},
	}

	c := orig.Clone()
	c.Params["selector"] = "#stop"
	c.Params["opts"].(map[string]any)["n"] = 2.0
	c.Params["list"].([]any)[0] = "y"
	c.Pipeline[0].Params["selector"] = ".b"

	if orig.Params["selector"] != "#go" {
		t.Fatalf("expected original selector untouched; got %v", orig.Params["selector"])
	}
	if orig.Params["opts"].(map[string]any)["n"] != 1.0 {
		t.Fatalf("expected nested map untouched")
	}
	if orig.Params["list"].([]any)[0] != "x" {
		t.Fatalf("expected nested slice untouched")
	}
	if orig.Pipeline[0].Params["selector"] != ".a" {
		t.Fatalf("expected pipeline params untouched")
	}
}

func TestSpecWithFreshIDs_ReplacesWholeSubtree(t *testing.T) {
	orig := Spec{
		ID:   "g1",
		Type: "group",
		Children: []Spec{
			{ID: "c1", Type: "click", Pipeline: []Spec{{ID: "p1", Type: "value.getJson"}}},
		},
	}
	n := 0
	fresh := orig.WithFreshIDs(func() string {
		n++
		return fmt.Sprintf("new-%d", n)
	})
	if fresh.ID != "new-1" || fresh.Children[0].ID != "new-2" || fresh.Children[0].Pipeline[0].ID != "new-3" {
		t.Fatalf("unexpected ids: %+v", fresh)
	}
	if orig.ID != "g1" || orig.Children[0].ID != "c1" {
		t.Fatalf("expected original ids untouched")
	}
}

func TestListKeyPolicies(t *testing.T) {
	tests := []struct {
		key      ListKey
		kind     EntityKind
		coerceTo string
	}{
		{ListContexts, KindContext, "x"},
		{ListChildren, KindAction, "x"},
		{ListMatchers, KindAction, TypeMatcher},
		{ListDefinitions, KindAction, TypeDefinition},
		{ListPipeline, KindPipe, "x"},
	}
	for _, tc := range tests {
		if got := tc.key.ItemKind(); got != tc.kind {
			t.Fatalf("%s: ItemKind=%s want %s", tc.key, got, tc.kind)
		}
		if got := tc.key.CoerceType("x"); got != tc.coerceTo {
			t.Fatalf("%s: CoerceType=%s want %s", tc.key, got, tc.coerceTo)
		}
	}
	if !KindContext.Allows(ListDefinitions) || KindPipe.Allows(ListChildren) || KindScript.Allows(ListChildren) {
		t.Fatalf("unexpected Allows policy")
	}
	if _, err := ParseListKey("bogus"); err == nil {
		t.Fatalf("expected error for unknown list key")
	}
}
