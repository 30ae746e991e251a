package js

import (
	"context"
	"regexp"
	"strings"

	"github.com/gospider007/cdpjs/cdp"
)

// Reserved single-key object shapes standing in for values JSON cannot carry.
const (
	RemoteKey    = "$cdpjs::remote"
	BigIntKey    = "$cdpjs::bigint"
	UndefinedKey = "$cdpjs::undefined"
	ExprKey      = "$cdpjs::expr"
)

var bigIntDigits = regexp.MustCompile(`^-?[0-9]+$`)

// RemoteMeta describes a live object in the remote heap.
type RemoteMeta struct {
	Id            cdp.RemoteObjectId     `json:"id"`
	Type          string                 `json:"type"`
	Subtype       string                 `json:"subtype,omitempty"`
	Class         string                 `json:"class,omitempty"`
	NodeId        cdp.NodeId             `json:"nodeId,omitempty"`
	BackendNodeId cdp.BackendNodeId      `json:"backendNodeId,omitempty"`
	Context       cdp.ExecutionContextId `json:"context,omitempty"`
}

type SpecialKind int

const (
	SpecialRemote SpecialKind = iota + 1
	SpecialBigInt
	SpecialUndefined
)

// SpecialValue is a value lifted out of a JSON document because it has no JSON form.
type SpecialValue struct {
	Kind   SpecialKind
	Remote RemoteMeta
	BigInt string
}

func (obj SpecialValue) CallArgument() cdp.CallArgument {
	switch obj.Kind {
	case SpecialRemote:
		return cdp.CallArgument{ObjectId: obj.Remote.Id}
	case SpecialBigInt:
		return cdp.CallArgument{UnserializableValue: obj.BigInt + "n"}
	default:
		return cdp.CallArgument{}
	}
}

// Marker is the canonical JSON shape of the value.
func (obj SpecialValue) Marker() map[string]any {
	switch obj.Kind {
	case SpecialRemote:
		return map[string]any{RemoteKey: obj.Remote}
	case SpecialBigInt:
		return map[string]any{BigIntKey: obj.BigInt}
	default:
		return map[string]any{UndefinedKey: true}
	}
}

// specialFromMarker recognizes a marker object. The expression marker is
// reported separately because it never becomes a call argument.
func specialFromMarker(node map[string]any) (special SpecialValue, expr string, isExpr bool, ok bool) {
	if len(node) != 1 {
		return
	}
	for key, body := range node {
		switch key {
		case RemoteKey:
			obj, isMap := body.(map[string]any)
			if !isMap {
				return
			}
			raw, err := json.Marshal(obj)
			if err != nil {
				return
			}
			var meta RemoteMeta
			if json.Unmarshal(raw, &meta) != nil || meta.Id == "" {
				return
			}
			return SpecialValue{Kind: SpecialRemote, Remote: meta}, "", false, true
		case BigIntKey:
			digits, isStr := body.(string)
			if !isStr || !bigIntDigits.MatchString(digits) {
				return
			}
			return SpecialValue{Kind: SpecialBigInt, BigInt: digits}, "", false, true
		case UndefinedKey:
			return SpecialValue{Kind: SpecialUndefined}, "", false, true
		case ExprKey:
			text, isStr := body.(string)
			if !isStr {
				return
			}
			return SpecialValue{}, text, true, true
		}
	}
	return
}

// specialFromRemoteObject classifies one element of the harness specials array.
func specialFromRemoteObject(ctx context.Context, sess *cdp.Session, contextId cdp.ExecutionContextId, ro cdp.RemoteObject) (SpecialValue, error) {
	if ro.ObjectId != "" {
		meta := RemoteMeta{
			Id:      ro.ObjectId,
			Type:    ro.Type,
			Subtype: ro.Subtype,
			Class:   ro.ClassName,
			Context: contextId,
		}
		if meta.Type == "object" && meta.Subtype == "null" {
			return SpecialValue{}, unexpected("null object carries id %s", ro.ObjectId)
		}
		if meta.Subtype == "node" {
			node, err := sess.DOMDescribeNode(ctx, ro.ObjectId)
			if err != nil {
				return SpecialValue{Kind: SpecialRemote, Remote: meta}, err
			}
			meta.NodeId = node.NodeId
			meta.BackendNodeId = node.BackendNodeId
		}
		return SpecialValue{Kind: SpecialRemote, Remote: meta}, nil
	}
	switch ro.Type {
	case "bigint":
		digits := strings.TrimSuffix(ro.UnserializableValue, "n")
		if !bigIntDigits.MatchString(digits) {
			return SpecialValue{}, unexpected("invalid bigint %q", ro.UnserializableValue)
		}
		return SpecialValue{Kind: SpecialBigInt, BigInt: digits}, nil
	case "undefined":
		return SpecialValue{Kind: SpecialUndefined}, nil
	}
	return SpecialValue{}, unexpected("unsupported remote object of type %q", ro.Type)
}
