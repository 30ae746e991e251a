package js

import (
	"github.com/tidwall/match"
)

// TypePattern constrains the runtime type of a remote object. Each field
// lists alternatives; Subtype and Class accept * and ? wildcards. An empty
// field matches anything.
type TypePattern struct {
	Type    []string
	Subtype []string
	Class   []string
}

var (
	NodePattern     = TypePattern{Type: []string{"object"}, Subtype: []string{"node"}}
	ElementPattern  = TypePattern{Type: []string{"object"}, Subtype: []string{"node"}, Class: []string{"HTML*Element", "SVG*Element", "Element"}}
	ArrayPattern    = TypePattern{Type: []string{"object"}, Subtype: []string{"array", "typedarray"}}
	PromisePattern  = TypePattern{Type: []string{"object"}, Subtype: []string{"promise"}}
	ErrorPattern    = TypePattern{Type: []string{"object"}, Subtype: []string{"error"}}
	FunctionPattern = TypePattern{Type: []string{"function"}}
	SymbolPattern   = TypePattern{Type: []string{"symbol"}}
)

func (obj TypePattern) Match(meta RemoteMeta) bool {
	if len(obj.Type) > 0 && !matchAny(obj.Type, meta.Type, false) {
		return false
	}
	if len(obj.Subtype) > 0 && (meta.Subtype == "" || !matchAny(obj.Subtype, meta.Subtype, true)) {
		return false
	}
	if len(obj.Class) > 0 && !matchAny(obj.Class, meta.Class, true) {
		return false
	}
	return true
}

func matchAny(patterns []string, value string, wildcard bool) bool {
	for _, pattern := range patterns {
		if wildcard && match.Match(value, pattern) {
			return true
		}
		if !wildcard && pattern == value {
			return true
		}
	}
	return false
}

func (obj RemoteObject) IsInstanceOf(pattern TypePattern) bool {
	return !obj.IsZero() && pattern.Match(obj.Meta())
}

// Downcast returns a clone of obj when it matches pattern.
func Downcast(obj RemoteObject, pattern TypePattern) (RemoteObject, error) {
	if !obj.IsInstanceOf(pattern) {
		return RemoteObject{}, unexpected("%s %s/%s does not match %+v", obj.Id(), obj.Type(), obj.Class(), pattern)
	}
	return obj.Clone(), nil
}
