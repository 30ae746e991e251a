package js

import (
	"bytes"
	"context"
	"reflect"
	"runtime"

	"github.com/gospider007/cdpjs/cdp"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Scope is where evaluations run: one attached target and its execution contexts.
type Scope interface {
	Session() *cdp.Session
	// ExecutionContext maps a unique context id to a numeric one. The empty
	// string asks for the main world of the main frame.
	ExecutionContext(ctx context.Context, uniqueId string) (cdp.ExecutionContextId, error)
}

type remoteRef struct {
	scope Scope
	meta  RemoteMeta
	refs  atomic.Int32
}

func (obj *remoteRef) drop() {
	if obj.refs.Dec() != 0 || obj.scope == nil {
		return
	}
	sess := obj.scope.Session()
	if err := sess.RuntimeReleaseObjectNoWait(obj.meta.Id); err != nil {
		sess.Logger().Debug("release remote object", zap.String("objectId", string(obj.meta.Id)), zap.Error(err))
	}
}

type handle struct {
	ref      *remoteRef
	released atomic.Bool
}

func newHandle(ref *remoteRef) *handle {
	ref.refs.Inc()
	h := &handle{ref: ref}
	runtime.SetFinalizer(h, (*handle).release)
	return h
}

func (obj *handle) release() {
	if obj.released.CompareAndSwap(false, true) {
		obj.ref.drop()
	}
}

// RemoteObject is a reference to a live object in the remote heap. Clones
// share the remote object; it is released when the last clone is released
// or collected.
type RemoteObject struct {
	h *handle
}

// NewRemoteObject takes ownership of meta.Id.
func NewRemoteObject(scope Scope, meta RemoteMeta) RemoteObject {
	return RemoteObject{h: newHandle(&remoteRef{scope: scope, meta: meta})}
}

func (obj RemoteObject) IsZero() bool {
	return obj.h == nil
}
func (obj RemoteObject) Meta() RemoteMeta {
	if obj.h == nil {
		return RemoteMeta{}
	}
	return obj.h.ref.meta
}
func (obj RemoteObject) Id() cdp.RemoteObjectId {
	return obj.Meta().Id
}
func (obj RemoteObject) Type() string {
	return obj.Meta().Type
}
func (obj RemoteObject) Subtype() string {
	return obj.Meta().Subtype
}
func (obj RemoteObject) Class() string {
	return obj.Meta().Class
}
func (obj RemoteObject) NodeId() cdp.NodeId {
	return obj.Meta().NodeId
}
func (obj RemoteObject) BackendNodeId() cdp.BackendNodeId {
	return obj.Meta().BackendNodeId
}
func (obj RemoteObject) ExecutionContextId() cdp.ExecutionContextId {
	return obj.Meta().Context
}
func (obj RemoteObject) Scope() Scope {
	if obj.h == nil {
		return nil
	}
	return obj.h.ref.scope
}
func (obj RemoteObject) Released() bool {
	return obj.h == nil || obj.h.released.Load()
}

func (obj RemoteObject) Clone() RemoteObject {
	if obj.h == nil {
		return obj
	}
	return RemoteObject{h: newHandle(obj.h.ref)}
}

// Release drops this clone. Calling it twice is a no-op.
func (obj RemoteObject) Release() {
	if obj.h == nil {
		return
	}
	runtime.SetFinalizer(obj.h, nil)
	obj.h.release()
}

func (obj RemoteObject) MarshalJSON() ([]byte, error) {
	if obj.h == nil {
		return []byte("null"), nil
	}
	return json.Marshal(map[string]RemoteMeta{RemoteKey: obj.h.ref.meta})
}

// UnmarshalJSON leaves the object unbound; the evaluator attaches it to its scope.
func (obj *RemoteObject) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*obj = RemoteObject{}
		return nil
	}
	var marker map[string]RemoteMeta
	if err := json.Unmarshal(data, &marker); err != nil {
		return err
	}
	meta, ok := marker[RemoteKey]
	if !ok || meta.Id == "" {
		return unexpected("remote object marker missing in %s", data)
	}
	*obj = RemoteObject{h: &handle{ref: &remoteRef{meta: meta}}}
	return nil
}

func (RemoteObject) JSONSchema() *Schema {
	return MarkerSchema(RemoteKey, TypeSchema("object"))
}

var remoteObjectType = reflect.TypeFor[RemoteObject]()

// bindRemotes attaches every unbound RemoteObject reachable from v to scope
// and returns the ids that were bound. Repeated ids share one reference.
func bindRemotes(v reflect.Value, scope Scope) map[cdp.RemoteObjectId]bool {
	b := &binder{scope: scope, refs: map[cdp.RemoteObjectId]*remoteRef{}, bound: map[cdp.RemoteObjectId]bool{}}
	b.walk(v, 0)
	return b.bound
}

type binder struct {
	scope Scope
	refs  map[cdp.RemoteObjectId]*remoteRef
	bound map[cdp.RemoteObjectId]bool
}

func (obj *binder) walk(v reflect.Value, depth int) {
	if depth > 512 || !v.IsValid() {
		return
	}
	if v.Type() == remoteObjectType {
		obj.bind(v.Interface().(RemoteObject))
		return
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			obj.walk(v.Elem(), depth+1)
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() {
				obj.walk(v.Field(i), depth+1)
			}
		}
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return
		}
		for i := 0; i < v.Len(); i++ {
			obj.walk(v.Index(i), depth+1)
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			obj.walk(iter.Value(), depth+1)
		}
	}
}

func (obj *binder) bind(ro RemoteObject) {
	h := ro.h
	if h == nil || h.ref.scope != nil {
		return
	}
	id := h.ref.meta.Id
	ref, ok := obj.refs[id]
	if !ok {
		ref = h.ref
		ref.scope = obj.scope
		obj.refs[id] = ref
	}
	h.ref = ref
	ref.refs.Inc()
	runtime.SetFinalizer(h, (*handle).release)
	obj.bound[id] = true
}
