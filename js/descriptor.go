package js

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ValueDescriptor is a skeleton document plus the pointers its special
// values were lifted from, in pre-order.
type ValueDescriptor struct {
	Value any       `json:"value"`
	Paths []Pointer `json:"paths"`
}

// ExprEntry is a raw expression to evaluate remotely and inject at Path.
type ExprEntry struct {
	Path Pointer
	Expr string
}

// Split walks tree in pre-order (sorted object keys, arrays by index) and
// replaces every special marker with an empty object. Expression markers are
// replaced with null and reported with prefix prepended to their path.
func Split(tree any, prefix Pointer) (ValueDescriptor, []SpecialValue, []ExprEntry) {
	s := &splitter{prefix: prefix}
	value := s.walk(tree, Pointer{})
	paths := s.paths
	if paths == nil {
		paths = []Pointer{}
	}
	return ValueDescriptor{Value: value, Paths: paths}, s.specials, s.exprs
}

type splitter struct {
	prefix   Pointer
	paths    []Pointer
	specials []SpecialValue
	exprs    []ExprEntry
}

func (obj *splitter) walk(node any, path Pointer) any {
	switch val := node.(type) {
	case map[string]any:
		if special, expr, isExpr, ok := specialFromMarker(val); ok {
			if isExpr {
				full := append(append(Pointer{}, obj.prefix...), path...)
				obj.exprs = append(obj.exprs, ExprEntry{Path: full, Expr: expr})
				return nil
			}
			obj.paths = append(obj.paths, path)
			obj.specials = append(obj.specials, special)
			return map[string]any{}
		}
		keys := maps.Keys(val)
		slices.Sort(keys)
		out := make(map[string]any, len(val))
		for _, key := range keys {
			out[key] = obj.walk(val[key], path.Append(Field(key)))
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = obj.walk(item, path.Append(Index(i)))
		}
		return out
	default:
		return node
	}
}

// Merge splices values into the skeleton at the matching paths, creating
// missing containers on the way.
func Merge(skeleton any, paths []Pointer, values []any) (any, error) {
	if len(paths) != len(values) {
		return nil, unexpected("%d paths for %d values", len(paths), len(values))
	}
	root := skeleton
	for i, path := range paths {
		var err error
		if root, err = place(root, path, values[i]); err != nil {
			return nil, err
		}
	}
	return root, nil
}

func emptyContainer(seg Segment) any {
	if seg.IsIndex() {
		return []any{}
	}
	return map[string]any{}
}

func place(node any, path Pointer, value any) (any, error) {
	if len(path) == 0 {
		return value, nil
	}
	seg := path[0]
	if seg.IsIndex() {
		if seg.Index() < 0 {
			return nil, unexpected("negative index in %s", path)
		}
		arr, ok := node.([]any)
		if !ok {
			if node != nil && !isEmptyMap(node) {
				return nil, unexpected("expected array at %s", path)
			}
			arr = []any{}
		}
		for len(arr) <= seg.Index() {
			arr = append(arr, nil)
		}
		child := arr[seg.Index()]
		if child == nil && len(path) > 1 {
			child = emptyContainer(path[1])
		}
		next, err := place(child, path[1:], value)
		if err != nil {
			return nil, err
		}
		arr[seg.Index()] = next
		return arr, nil
	}
	obj, ok := node.(map[string]any)
	if !ok {
		if node != nil {
			return nil, unexpected("expected object at %s", path)
		}
		obj = map[string]any{}
	}
	child := obj[seg.Field()]
	if child == nil && len(path) > 1 {
		child = emptyContainer(path[1])
	}
	next, err := place(child, path[1:], value)
	if err != nil {
		return nil, err
	}
	obj[seg.Field()] = next
	return obj, nil
}

func isEmptyMap(node any) bool {
	m, ok := node.(map[string]any)
	return ok && len(m) == 0
}
