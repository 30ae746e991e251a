package js

import (
	"errors"
	"reflect"
	"testing"
)

func mustTree(t *testing.T, value any) any {
	t.Helper()
	tree, err := toTree(value)
	if err != nil {
		t.Fatal(err)
	}
	return tree
}

func TestSplitWithoutSpecials(t *testing.T) {
	for _, value := range []any{
		nil,
		1,
		"text",
		[]any{1, "a", nil, true},
		map[string]any{"a": map[string]any{"b": []any{1, 2}}, "c": "d"},
		map[string]any{"single": "key"},
	} {
		tree := mustTree(t, value)
		desc, specials, exprs := Split(tree, nil)
		if len(desc.Paths) != 0 || len(specials) != 0 || len(exprs) != 0 {
			t.Fatalf("%v: unexpected specials %v %v %v", value, desc.Paths, specials, exprs)
		}
		if !reflect.DeepEqual(desc.Value, tree) {
			t.Fatalf("skeleton changed: %v != %v", desc.Value, tree)
		}
		merged, err := Merge(desc.Value, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(merged, tree) {
			t.Fatalf("merge changed value: %v != %v", merged, tree)
		}
	}
}

func TestSplitMergeRoundTrip(t *testing.T) {
	remote := RemoteMeta{Id: "obj-1", Type: "object", Class: "Object", Context: 3}
	value := map[string]any{
		"b": []any{1, map[string]any{RemoteKey: remote}},
		"a": map[string]any{BigIntKey: "-12345678901234567890"},
		"c": map[string]any{"d": map[string]any{UndefinedKey: true}},
		"e": map[string]any{BigIntKey: "not a number"},
	}
	tree := mustTree(t, value)
	desc, specials, _ := Split(tree, nil)

	want := []string{"/a", "/b/1", "/c/d"}
	if len(desc.Paths) != len(want) {
		t.Fatalf("paths %v, want %v", desc.Paths, want)
	}
	for i, path := range desc.Paths {
		if path.String() != want[i] {
			t.Fatalf("path %d is %s, want %s", i, path, want[i])
		}
	}
	if specials[0].Kind != SpecialBigInt || specials[0].BigInt != "-12345678901234567890" {
		t.Fatalf("unexpected bigint special %+v", specials[0])
	}
	if specials[1].Kind != SpecialRemote || specials[1].Remote != remote {
		t.Fatalf("unexpected remote special %+v", specials[1])
	}
	if specials[2].Kind != SpecialUndefined {
		t.Fatalf("unexpected undefined special %+v", specials[2])
	}
	if got := desc.Value.(map[string]any)["e"]; !reflect.DeepEqual(got, map[string]any{BigIntKey: "not a number"}) {
		t.Fatalf("invalid marker body must stay plain data, got %v", got)
	}

	values := make([]any, len(specials))
	for i, special := range specials {
		values[i] = special.Marker()
	}
	merged, err := Merge(desc.Value, desc.Paths, values)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(mustTree(t, merged), tree) {
		t.Fatalf("round trip mismatch:\n%v\n%v", mustTree(t, merged), tree)
	}
}

func TestSplitRootSpecial(t *testing.T) {
	desc, specials, _ := Split(mustTree(t, Undefined{}), nil)
	if len(desc.Paths) != 1 || len(desc.Paths[0]) != 0 || len(specials) != 1 {
		t.Fatalf("unexpected split %+v %+v", desc, specials)
	}
	if !reflect.DeepEqual(desc.Value, map[string]any{}) {
		t.Fatalf("placeholder should be an empty object, got %v", desc.Value)
	}
}

func TestSplitCollectsExpressions(t *testing.T) {
	tree := mustTree(t, []any{1, map[string]any{"x": Expr("window.innerWidth")}})
	desc, specials, exprs := Split(tree, Pointer{Field("args")})
	if len(specials) != 0 || len(desc.Paths) != 0 {
		t.Fatalf("expressions are not call arguments: %+v", specials)
	}
	if len(exprs) != 1 || exprs[0].Expr != "window.innerWidth" || exprs[0].Path.String() != "/args/1/x" {
		t.Fatalf("unexpected expressions %+v", exprs)
	}
	if desc.Value.([]any)[1].(map[string]any)["x"] != nil {
		t.Fatalf("expression slot should be null in the skeleton")
	}
}

func TestMergeCreatesContainers(t *testing.T) {
	merged, err := Merge(nil, []Pointer{{Field("a"), Index(2), Field("b")}}, []any{"x"})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"a": []any{nil, nil, map[string]any{"b": "x"}}}
	if !reflect.DeepEqual(merged, want) {
		t.Fatalf("got %v, want %v", merged, want)
	}
}

func TestMergeRejectsMismatch(t *testing.T) {
	if _, err := Merge(map[string]any{}, []Pointer{{Field("a")}}, nil); !errors.Is(err, ErrUnexpectedValue) {
		t.Fatalf("expected ErrUnexpectedValue, got %v", err)
	}
	if _, err := Merge("scalar", []Pointer{{Field("a")}}, []any{1}); !errors.Is(err, ErrUnexpectedValue) {
		t.Fatalf("expected ErrUnexpectedValue, got %v", err)
	}
}

func TestPointerOrdering(t *testing.T) {
	if !Index(5).Less(Field("a")) || Field("a").Less(Index(0)) {
		t.Fatal("indices must sort before fields")
	}
	if !(Pointer{Field("a")}).Less(Pointer{Field("a"), Index(0)}) {
		t.Fatal("prefix must sort first")
	}
	raw, err := json.Marshal(Pointer{Field("a"), Index(1)})
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `["a",1]` {
		t.Fatalf("unexpected pointer json %s", raw)
	}
	var back Pointer
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if back.String() != "/a/1" || !back[1].IsIndex() {
		t.Fatalf("unexpected pointer %v", back)
	}
}
