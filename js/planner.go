package js

import (
	"fmt"
	"reflect"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

type Kind uint16

const (
	KindNull Kind = 1 << iota
	KindBoolean
	KindInteger
	KindNumber
	KindString
	KindArray
	KindObject
	KindRemoteObject
	KindUndefined
	KindBigInt
)

const standardKinds = KindNull | KindBoolean | KindInteger | KindNumber | KindString | KindArray | KindObject

func (obj Kind) Has(k Kind) bool {
	return obj&k != 0
}

var kindNames = []string{"null", "boolean", "integer", "number", "string", "array", "object", "remote", "undefined", "bigint"}

func (obj Kind) String() string {
	var names []string
	for i, name := range kindNames {
		if obj&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	return "{" + strings.Join(names, ",") + "}"
}

type ReturnMode int

const (
	Discard ReturnMode = iota
	ByValue
	ById
	Complex
)

func (obj ReturnMode) String() string {
	switch obj {
	case Discard:
		return "discard"
	case ByValue:
		return "byValue"
	case ById:
		return "byId"
	case Complex:
		return "complex"
	}
	return fmt.Sprintf("ReturnMode(%d)", int(obj))
}

// Plan is the extraction strategy for one requested result type.
type Plan struct {
	Schema     *Schema
	SchemaJSON RawMessage
	Mode       ReturnMode
	Root       Kind
	// Kinds per reachable path; "" is the root, "*" stands for any field or index.
	Kinds map[string]Kind
}

// PlanSchema classifies every reachable path of s and picks the return mode.
func PlanSchema(s *Schema) (*Plan, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, serialization(err)
	}
	w := &schemaWalker{
		defs:  s.Defs,
		kinds: map[string]Kind{},
		stack: map[string]bool{},
	}
	w.walk(s, "")
	plan := &Plan{
		Schema:     s,
		SchemaJSON: raw,
		Root:       w.kinds[""],
		Kinds:      w.kinds,
	}
	plan.Mode = decideMode(plan.Root, w.anyRemote)
	return plan, nil
}

func decideMode(root Kind, anyRemote bool) ReturnMode {
	switch {
	case root == 0, root == KindNull, root == KindUndefined:
		return Discard
	case root.Has(KindObject | KindArray):
		if anyRemote {
			return Complex
		}
		return ByValue
	case root.Has(KindRemoteObject):
		return ById
	}
	return ByValue
}

type schemaWalker struct {
	defs      map[string]*Schema
	kinds     map[string]Kind
	stack     map[string]bool
	anyRemote bool
}

func (obj *schemaWalker) lookup(ref string) *Schema {
	name := strings.TrimPrefix(strings.TrimPrefix(ref, "#/$defs/"), "#/definitions/")
	if s, ok := obj.defs[name]; ok {
		return s
	}
	return nil
}

// flatten resolves $ref and the combinators into the concrete schemas they
// union. Refs already expanded on the current path are skipped.
func (obj *schemaWalker) flatten(s *Schema, out []*Schema, used map[string]bool) []*Schema {
	if s == nil {
		return append(out, BoolSchema(true))
	}
	if s.Bool != nil {
		return append(out, s)
	}
	composite := false
	for _, group := range [][]*Schema{s.AnyOf, s.OneOf, s.AllOf} {
		for _, sub := range group {
			composite = true
			out = obj.flatten(sub, out, used)
		}
	}
	if s.Ref != "" {
		composite = true
		if !obj.stack[s.Ref] && !used[s.Ref] {
			if target := obj.lookup(s.Ref); target != nil {
				used[s.Ref] = true
				out = obj.flatten(target, out, used)
			}
		}
	}
	if len(s.Type) > 0 || s.Properties != nil || s.Items != nil || s.PrefixItems != nil || s.AdditionalProperties != nil || !composite {
		out = append(out, s)
	}
	return out
}

func kindsOf(s *Schema) Kind {
	if s.Bool != nil {
		if *s.Bool {
			return standardKinds
		}
		return 0
	}
	if _, ok := s.Properties[RemoteKey]; ok {
		return KindRemoteObject
	}
	if _, ok := s.Properties[BigIntKey]; ok {
		return KindBigInt
	}
	if _, ok := s.Properties[UndefinedKey]; ok {
		return KindUndefined
	}
	if len(s.Type) == 0 {
		return standardKinds
	}
	var kinds Kind
	for _, t := range s.Type {
		switch t {
		case "null":
			kinds |= KindNull
		case "boolean":
			kinds |= KindBoolean
		case "integer":
			kinds |= KindInteger
		case "number":
			kinds |= KindNumber
		case "string":
			kinds |= KindString
		case "array":
			kinds |= KindArray
		case "object":
			kinds |= KindObject
		}
	}
	return kinds
}

func (obj *schemaWalker) walk(s *Schema, path string) {
	used := map[string]bool{}
	parts := obj.flatten(s, nil, used)
	for ref := range used {
		obj.stack[ref] = true
	}
	defer func() {
		for ref := range used {
			delete(obj.stack, ref)
		}
	}()
	var kinds Kind
	for _, part := range parts {
		kinds |= kindsOf(part)
	}
	obj.kinds[path] |= kinds
	if kinds.Has(KindRemoteObject) {
		obj.anyRemote = true
	}
	for _, part := range parts {
		if part.Bool != nil || kindsOf(part)&(KindObject|KindArray) == 0 {
			continue
		}
		for name, prop := range part.Properties {
			obj.walk(prop, path+"/"+name)
		}
		if part.AdditionalProperties != nil {
			obj.walk(part.AdditionalProperties, path+"/*")
		}
		for i, item := range part.PrefixItems {
			obj.walk(item, fmt.Sprintf("%s/%d", path, i))
		}
		if part.Items != nil {
			obj.walk(part.Items, path+"/*")
		}
	}
}

var planCache, _ = lru.New[reflect.Type, *Plan](1024)

// PlanOf returns the cached plan for T.
func PlanOf[T any]() (*Plan, error) {
	return planFor(reflect.TypeFor[T]())
}

func planFor(t reflect.Type) (*Plan, error) {
	if plan, ok := planCache.Get(t); ok {
		return plan, nil
	}
	plan, err := PlanSchema(SchemaFor(t))
	if err != nil {
		return nil, err
	}
	planCache.Add(t, plan)
	return plan, nil
}
