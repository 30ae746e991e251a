package js

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/gospider007/cdpjs/cdp"
	"github.com/tidwall/gjson"
)

const fakeHelpers = `({
	describe: function (v) {
		const t = typeof v;
		if (t === "bigint") return { type: t, unserializableValue: v.toString() + "n" };
		if (t === "undefined") return { type: t };
		if (t === "number") {
			if (!isFinite(v) || Object.is(v, -0)) return { type: t, unserializableValue: String(v) };
			return { type: t, value: v };
		}
		if (t === "string" || t === "boolean") return { type: t, value: v };
		if (v === null) return { type: "object", subtype: "null", value: null };
		const out = { type: t, className: t === "object" && v.constructor ? v.constructor.name : "Function" };
		if (t === "symbol") out.className = "Symbol";
		if (Array.isArray(v)) out.subtype = "array";
		else if (v instanceof Error) out.subtype = "error";
		else if (v instanceof Promise) out.subtype = "promise";
		else if (t === "object" && v.nodeType !== undefined) { out.subtype = "node"; out.className = "HTMLDivElement"; }
		return out;
	},
	stringify: function (v) { return JSON.stringify(v); },
	parse: function (s) { return JSON.parse(s); },
	names: function (o) { return Object.getOwnPropertyNames(o); },
	get: function (o, k) { return o[k]; },
	compile: function (src) { return (0, eval)("(" + src + ")"); },
})`

// fakeBrowser answers the Runtime and DOM commands the evaluator uses by
// running everything in a goja VM.
type fakeBrowser struct {
	mu       sync.Mutex
	vm       *goja.Runtime
	helpers  map[string]goja.Callable
	objects  map[string]goja.Value
	nextId   int
	released []string
	methods  []string
	// executionContextId of every Runtime.callFunctionOn
	callContexts []int64

	// reports one extra element on Runtime.getProperties
	corruptLength bool

	recv   chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeBrowser(t *testing.T) *fakeBrowser {
	t.Helper()
	vm := goja.New()
	obj, err := vm.RunString(fakeHelpers)
	if err != nil {
		t.Fatal(err)
	}
	helpers := map[string]goja.Callable{}
	for _, name := range []string{"describe", "stringify", "parse", "names", "get", "compile"} {
		fn, ok := goja.AssertFunction(obj.ToObject(vm).Get(name))
		if !ok {
			t.Fatalf("helper %s missing", name)
		}
		helpers[name] = fn
	}
	return &fakeBrowser{
		vm:      vm,
		helpers: helpers,
		objects: map[string]goja.Value{},
		recv:    make(chan []byte, 1024),
		closed:  make(chan struct{}),
	}
}

func (obj *fakeBrowser) Send(ctx context.Context, data []byte) error {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	select {
	case <-obj.closed:
		return io.ErrClosedPipe
	default:
	}
	cmd := gjson.ParseBytes(data)
	method := cmd.Get("method").String()
	obj.methods = append(obj.methods, method)
	result, err := obj.handle(method, cmd.Get("params"))
	reply := map[string]any{"id": cmd.Get("id").Int()}
	if err != nil {
		reply["error"] = map[string]any{"code": -32000, "message": err.Error()}
	} else {
		reply["result"] = result
	}
	raw, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	obj.recv <- raw
	return nil
}

func (obj *fakeBrowser) Recv() ([]byte, error) {
	select {
	case <-obj.closed:
		return nil, io.EOF
	case data := <-obj.recv:
		return data, nil
	}
}

func (obj *fakeBrowser) Close() error {
	obj.once.Do(func() { close(obj.closed) })
	return nil
}

func (obj *fakeBrowser) call(name string, args ...goja.Value) goja.Value {
	v, err := obj.helpers[name](goja.Undefined(), args...)
	if err != nil {
		panic(err)
	}
	return v
}

func (obj *fakeBrowser) register(v goja.Value) string {
	obj.nextId++
	id := fmt.Sprintf("obj-%d", obj.nextId)
	obj.objects[id] = v
	return id
}

func (obj *fakeBrowser) remoteObject(v goja.Value, byValue bool) map[string]any {
	desc := obj.call("describe", v).Export().(map[string]any)
	out := map[string]any{"type": desc["type"]}
	for _, key := range []string{"subtype", "className", "unserializableValue"} {
		if val, ok := desc[key]; ok {
			out[key] = val
		}
	}
	if _, ok := desc["unserializableValue"]; ok {
		return out
	}
	if _, primitive := desc["value"]; primitive || (byValue && desc["type"] == "object") {
		s := obj.call("stringify", v)
		if !goja.IsUndefined(s) {
			out["value"] = RawMessage(s.String())
			return out
		}
	}
	if desc["type"] == "undefined" {
		return out
	}
	out["objectId"] = obj.register(v)
	return out
}

func (obj *fakeBrowser) argument(arg gjson.Result) (goja.Value, error) {
	if id := arg.Get("objectId"); id.Exists() {
		v, ok := obj.objects[id.String()]
		if !ok {
			return nil, fmt.Errorf("Could not find object with given id")
		}
		return v, nil
	}
	if u := arg.Get("unserializableValue"); u.Exists() {
		return obj.vm.RunString(u.String())
	}
	if v := arg.Get("value"); v.Exists() {
		return obj.call("parse", obj.vm.ToValue(v.Raw)), nil
	}
	return goja.Undefined(), nil
}

// settle unwraps an awaited promise. Jobs have already run when the call returned.
func (obj *fakeBrowser) settle(v goja.Value, await bool) (goja.Value, bool) {
	if !await || v == nil {
		return v, true
	}
	if p, ok := v.Export().(*goja.Promise); ok {
		switch p.State() {
		case goja.PromiseStateFulfilled:
			return p.Result(), true
		case goja.PromiseStateRejected:
			return nil, false
		}
	}
	return v, true
}

func (obj *fakeBrowser) evaluated(v goja.Value, err error, params gjson.Result) (map[string]any, error) {
	if err != nil {
		var ex *goja.Exception
		if !errors.As(err, &ex) {
			return nil, err
		}
		thrown := obj.remoteObject(ex.Value(), false)
		return map[string]any{
			"result": thrown,
			"exceptionDetails": map[string]any{
				"exceptionId":  1,
				"text":         "Uncaught",
				"lineNumber":   0,
				"columnNumber": 0,
				"exception":    thrown,
			},
		}, nil
	}
	v, ok := obj.settle(v, params.Get("awaitPromise").Bool())
	if !ok {
		return nil, fmt.Errorf("promise rejected")
	}
	return map[string]any{"result": obj.remoteObject(v, params.Get("returnByValue").Bool())}, nil
}

func (obj *fakeBrowser) handle(method string, params gjson.Result) (any, error) {
	switch method {
	case "Runtime.callFunctionOn":
		obj.callContexts = append(obj.callContexts, params.Get("executionContextId").Int())
		fnValue, err := obj.helpers["compile"](goja.Undefined(), obj.vm.ToValue(params.Get("functionDeclaration").String()))
		if err != nil {
			return nil, err
		}
		fn, ok := goja.AssertFunction(fnValue)
		if !ok {
			return nil, fmt.Errorf("not a function")
		}
		this := goja.Undefined()
		if id := params.Get("objectId"); id.Exists() {
			v, ok := obj.objects[id.String()]
			if !ok {
				return nil, fmt.Errorf("Could not find object with given id")
			}
			this = v
		}
		var args []goja.Value
		for _, arg := range params.Get("arguments").Array() {
			v, err := obj.argument(arg)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		v, err := fn(this, args...)
		return obj.evaluated(v, err, params)
	case "Runtime.evaluate":
		v, err := obj.vm.RunString(params.Get("expression").String())
		return obj.evaluated(v, err, params)
	case "Runtime.getProperties":
		v, ok := obj.objects[params.Get("objectId").String()]
		if !ok {
			return nil, fmt.Errorf("Could not find object with given id")
		}
		var props []map[string]any
		for _, name := range obj.call("names", v).Export().([]any) {
			key := name.(string)
			value := obj.remoteObject(obj.call("get", v, obj.vm.ToValue(key)), false)
			if key == "length" && obj.corruptLength {
				n, _ := strconv.Atoi(string(value["value"].(RawMessage)))
				value["value"] = RawMessage(strconv.Itoa(n + 1))
			}
			props = append(props, map[string]any{"name": key, "value": value, "configurable": false, "enumerable": true})
		}
		return map[string]any{"result": props}, nil
	case "Runtime.releaseObject":
		id := params.Get("objectId").String()
		obj.released = append(obj.released, id)
		delete(obj.objects, id)
		return map[string]any{}, nil
	case "DOM.describeNode":
		if _, ok := obj.objects[params.Get("objectId").String()]; !ok {
			return nil, fmt.Errorf("Could not find node with given id")
		}
		return map[string]any{"node": map[string]any{"nodeId": 7, "backendNodeId": 70, "nodeType": 1, "nodeName": "DIV"}}, nil
	}
	return map[string]any{}, nil
}

func (obj *fakeBrowser) releasedIds() []string {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	return append([]string(nil), obj.released...)
}

func (obj *fakeBrowser) methodCount(method string) int {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	n := 0
	for _, m := range obj.methods {
		if m == method {
			n++
		}
	}
	return n
}

func (obj *fakeBrowser) lastCallContext() int64 {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	if len(obj.callContexts) == 0 {
		return 0
	}
	return obj.callContexts[len(obj.callContexts)-1]
}

func (obj *fakeBrowser) alive(id cdp.RemoteObjectId) bool {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	_, ok := obj.objects[string(id)]
	return ok
}

type fakeScope struct {
	sess *cdp.Session
}

func (obj *fakeScope) Session() *cdp.Session {
	return obj.sess
}
func (obj *fakeScope) ExecutionContext(ctx context.Context, uniqueId string) (cdp.ExecutionContextId, error) {
	if uniqueId == "ctx-iso" {
		return 7, nil
	}
	if uniqueId != "" && !strings.HasPrefix(uniqueId, "ctx-") {
		return 0, ErrNoExecutionContext
	}
	return 1, nil
}

func newFakeScope(t *testing.T) (*fakeScope, *fakeBrowser) {
	t.Helper()
	browser := newFakeBrowser(t)
	ws := cdp.NewWebSock(context.Background(), browser, cdp.WebSockOption{CommandTimeout: 10 * time.Second})
	t.Cleanup(func() { ws.Close() })
	return &fakeScope{sess: ws.Session("S1", "T1")}, browser
}

// barrier waits until every command queued before it reached the browser.
func barrier(t *testing.T, scope *fakeScope) {
	t.Helper()
	if err := scope.sess.Execute(context.Background(), "Test.barrier", nil, nil); err != nil {
		t.Fatal(err)
	}
}
