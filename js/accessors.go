package js

import (
	"context"
	"fmt"
	"regexp"
)

var symbolName = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

func wellKnownSymbol(name string) (string, error) {
	if !symbolName.MatchString(name) {
		return "", fmt.Errorf("invalid symbol name %q", name)
	}
	return "Symbol." + name, nil
}

func symbolFor(key string) (string, error) {
	raw, err := json.Marshal(key)
	if err != nil {
		return "", serialization(err)
	}
	return "Symbol.for(" + string(raw) + ")", nil
}

func requireBound(obj RemoteObject) error {
	if obj.IsZero() || obj.Scope() == nil {
		return unexpected("remote object is not bound to a scope")
	}
	if obj.Released() {
		return unexpected("remote object %s already released", obj.Id())
	}
	return nil
}

// EvalOn evaluates expr with this bound to obj.
func EvalOn[T any](ctx context.Context, obj RemoteObject, expr string, args ...any) (T, error) {
	if err := requireBound(obj); err != nil {
		var zero T
		return zero, err
	}
	return Run[T](ctx, obj.Scope(), Call{Expr: expr, This: obj, Args: args})
}

// InvokeOn applies the function declaration fn with this bound to obj.
func InvokeOn[T any](ctx context.Context, obj RemoteObject, fn string, args ...any) (T, error) {
	if err := requireBound(obj); err != nil {
		var zero T
		return zero, err
	}
	return Run[T](ctx, obj.Scope(), Call{Func: fn, This: obj, Args: args})
}

func GetProperty[T any](ctx context.Context, obj RemoteObject, name string) (T, error) {
	return InvokeOn[T](ctx, obj, "function (name) { return this[name]; }", name)
}

func SetProperty(ctx context.Context, obj RemoteObject, name string, value any) error {
	_, err := InvokeOn[Void](ctx, obj, "function (name, value) { this[name] = value; }", name, value)
	return err
}

func InvokeMethod[T any](ctx context.Context, obj RemoteObject, method string, args ...any) (T, error) {
	return InvokeOn[T](ctx, obj, "function (name, ...args) { return this[name](...args); }", append([]any{method}, args...)...)
}

// InvokeSymbolMethod calls this[Symbol.<name>](...args).
func InvokeSymbolMethod[T any](ctx context.Context, obj RemoteObject, name string, args ...any) (T, error) {
	sym, err := wellKnownSymbol(name)
	if err != nil {
		var zero T
		return zero, err
	}
	return EvalOn[T](ctx, obj, "this["+sym+"](...arguments)", args...)
}

// InvokeSymbolMethodFor calls this[Symbol.for(key)](...args).
func InvokeSymbolMethodFor[T any](ctx context.Context, obj RemoteObject, key string, args ...any) (T, error) {
	sym, err := symbolFor(key)
	if err != nil {
		var zero T
		return zero, err
	}
	return EvalOn[T](ctx, obj, "this["+sym+"](...arguments)", args...)
}

func GetSymbolProperty[T any](ctx context.Context, obj RemoteObject, name string) (T, error) {
	sym, err := wellKnownSymbol(name)
	if err != nil {
		var zero T
		return zero, err
	}
	return EvalOn[T](ctx, obj, "this["+sym+"]")
}

func GetSymbolPropertyFor[T any](ctx context.Context, obj RemoteObject, key string) (T, error) {
	sym, err := symbolFor(key)
	if err != nil {
		var zero T
		return zero, err
	}
	return EvalOn[T](ctx, obj, "this["+sym+"]")
}

func SetSymbolProperty(ctx context.Context, obj RemoteObject, name string, value any) error {
	sym, err := wellKnownSymbol(name)
	if err != nil {
		return err
	}
	_, err = InvokeOn[Void](ctx, obj, "function (value) { this["+sym+"] = value; }", value)
	return err
}

func SetSymbolPropertyFor(ctx context.Context, obj RemoteObject, key string, value any) error {
	sym, err := symbolFor(key)
	if err != nil {
		return err
	}
	_, err = InvokeOn[Void](ctx, obj, "function (value) { this["+sym+"] = value; }", value)
	return err
}
