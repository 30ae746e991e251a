package cdpjs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gospider007/cdpjs/cdp"
	"github.com/gospider007/cdpjs/js"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// BindingFunc serves one call of an exposed function. args are the JSON
// values the page passed; the result is marshalled like any evaluation argument.
type BindingFunc func(ctx context.Context, args []gjson.Result) (any, error)

const exposeScript = `(function (config) {
	const binding = globalThis[config.binding];
	if (typeof binding !== "function" || globalThis[config.callbacks]) {
		return;
	}
	const pending = new Map();
	let seq = 0;
	Object.defineProperty(globalThis, config.callbacks, {
		value: function (id, ok, value) {
			const entry = pending.get(id);
			if (entry === undefined) {
				return;
			}
			pending.delete(id);
			if (ok) {
				entry.resolve(value);
			} else {
				entry.reject(new Error(value));
			}
		},
	});
	globalThis[config.name] = function (...args) {
		const id = ++seq;
		return new Promise(function (resolve, reject) {
			pending.set(id, { resolve: resolve, reject: reject });
			binding(JSON.stringify({ id: id, args: args }));
		});
	};
})(__CONFIG__);`

// ExposedFunction is a host function installed as a global in every document of a page.
type ExposedFunction struct {
	page      *Page
	name      string
	binding   string
	callbacks string
	scriptId  string
	fn        BindingFunc
	stream    *cdp.TypedStream[cdp.BindingCalled]
	ctx       context.Context
	cnl       context.CancelFunc
	stopOnce  sync.Once
}

func exposeSource(name, binding, callbacks string) (string, error) {
	config := "{}"
	var err error
	for _, kv := range [][2]string{{"name", name}, {"binding", binding}, {"callbacks", callbacks}} {
		if config, err = sjson.Set(config, kv[0], kv[1]); err != nil {
			return "", err
		}
	}
	return strings.Replace(exposeScript, "__CONFIG__", config, 1), nil
}

// ExposeFunction makes globalThis[name](...args) call fn and resolve with its result.
func (obj *Page) ExposeFunction(ctx context.Context, name string, fn BindingFunc) (*ExposedFunction, error) {
	if name == "" || fn == nil {
		return nil, fmt.Errorf("expose %q: name and function are required", name)
	}
	binding := "cdpjs_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	exposed := &ExposedFunction{
		page:      obj,
		name:      name,
		binding:   binding,
		callbacks: binding + "_settle",
		fn:        fn,
	}
	exposed.ctx, exposed.cnl = context.WithCancel(obj.ctx)
	obj.mu.Lock()
	if _, exists := obj.exposed[name]; exists {
		obj.mu.Unlock()
		exposed.cnl()
		return nil, fmt.Errorf("expose %q: already exposed", name)
	}
	obj.exposed[name] = exposed
	obj.mu.Unlock()
	if err := exposed.install(ctx); err != nil {
		exposed.stop()
		obj.mu.Lock()
		delete(obj.exposed, name)
		obj.mu.Unlock()
		return nil, err
	}
	go exposed.serve()
	return exposed, nil
}

// install subscribes before adding the binding so no early call is lost.
func (obj *ExposedFunction) install(ctx context.Context) error {
	source, err := exposeSource(obj.name, obj.binding, obj.callbacks)
	if err != nil {
		return err
	}
	sess := obj.page.session
	if obj.stream, err = cdp.Listen[cdp.BindingCalled](ctx, sess); err != nil {
		return err
	}
	if err = sess.RuntimeAddBinding(ctx, obj.binding); err != nil {
		return err
	}
	if obj.scriptId, err = obj.page.AddScript(ctx, source); err != nil {
		return multierr.Append(err, sess.RuntimeRemoveBinding(ctx, obj.binding))
	}
	return nil
}

func (obj *ExposedFunction) Name() string {
	return obj.name
}

func (obj *ExposedFunction) serve() {
	for {
		evt, err := obj.stream.Recv(obj.ctx)
		if err != nil {
			if errors.Is(err, cdp.ErrStreamClosed) || obj.ctx.Err() != nil {
				return
			}
			obj.page.logger.Warn("drop binding call", zap.String("name", obj.name), zap.Error(err))
			continue
		}
		if evt.Name != obj.binding {
			continue
		}
		go obj.call(evt.ExecutionContextId, evt.Payload)
	}
}

func (obj *ExposedFunction) call(contextId cdp.ExecutionContextId, payload string) {
	request := gjson.Parse(payload)
	id := request.Get("id").Int()
	result, err := obj.fn(obj.ctx, request.Get("args").Array())
	ok := err == nil
	if err != nil {
		result = err.Error()
	}
	_, err = js.Run[js.Void](obj.ctx, obj.page, js.Call{
		Expr:    "globalThis[arguments[0]](arguments[1], arguments[2], arguments[3])",
		Args:    []any{obj.callbacks, id, ok, result},
		Context: js.ContextId(contextId),
	})
	if err != nil {
		obj.page.logger.Warn("settle exposed function call", zap.String("name", obj.name), zap.Int64("id", id), zap.Error(err))
	}
}

func (obj *ExposedFunction) stop() {
	obj.stopOnce.Do(func() {
		obj.cnl()
		if obj.stream != nil {
			obj.stream.Close()
		}
	})
}

// Close stops serving calls and removes the function from future documents.
// Documents that already have it keep a function whose calls never settle.
func (obj *ExposedFunction) Close(ctx context.Context) error {
	obj.stop()
	obj.page.mu.Lock()
	delete(obj.page.exposed, obj.name)
	obj.page.mu.Unlock()
	return multierr.Combine(
		obj.page.RemoveScript(ctx, obj.scriptId),
		obj.page.session.RuntimeRemoveBinding(ctx, obj.binding),
	)
}
