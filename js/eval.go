package js

import (
	"context"
	"reflect"

	"github.com/gospider007/cdpjs/cdp"
	"go.uber.org/zap"
)

// ExecutionContext selects where code runs. The zero value means "derive it".
type ExecutionContext struct {
	Id       cdp.ExecutionContextId
	UniqueId string
}

func ContextId(id cdp.ExecutionContextId) ExecutionContext {
	return ExecutionContext{Id: id}
}
func UniqueContextId(uniqueId string) ExecutionContext {
	return ExecutionContext{UniqueId: uniqueId}
}
func (obj ExecutionContext) IsZero() bool {
	return obj.Id == 0 && obj.UniqueId == ""
}

type EvalOptions struct {
	AwaitPromise bool
	UserGesture  bool
}

func DefaultEvalOptions() EvalOptions {
	return EvalOptions{AwaitPromise: true}
}

// Call is one evaluation. Exactly one of Expr and Func is used: Expr is an
// expression evaluated with This bound, Func a function declaration applied
// to This and Args.
type Call struct {
	Expr    string
	Func    string
	This    any
	Args    []any
	Context ExecutionContext
	Options *EvalOptions
}

type preparedArg struct {
	desc     ValueDescriptor
	specials []SpecialValue
	exprs    []ExprEntry
}

func prepareArg(value any, prefix string) (preparedArg, error) {
	tree, err := toTree(value)
	if err != nil {
		return preparedArg{}, err
	}
	desc, specials, exprs := Split(tree, Pointer{Field(prefix)})
	return preparedArg{desc: desc, specials: specials, exprs: exprs}, nil
}

func firstRemoteContext(specials []SpecialValue) cdp.ExecutionContextId {
	for _, special := range specials {
		if special.Kind == SpecialRemote && special.Remote.Context != 0 {
			return special.Remote.Context
		}
	}
	return 0
}

// resolveContext tries, in order: the explicit selector, the context of This,
// the first remote argument, the scope's main world.
func resolveContext(ctx context.Context, scope Scope, selector ExecutionContext, this, args preparedArg) (cdp.ExecutionContextId, error) {
	strategies := []func() (cdp.ExecutionContextId, error){
		func() (cdp.ExecutionContextId, error) {
			if selector.Id != 0 {
				return selector.Id, nil
			}
			if selector.UniqueId != "" {
				return scope.ExecutionContext(ctx, selector.UniqueId)
			}
			return 0, nil
		},
		func() (cdp.ExecutionContextId, error) { return firstRemoteContext(this.specials), nil },
		func() (cdp.ExecutionContextId, error) { return firstRemoteContext(args.specials), nil },
		func() (cdp.ExecutionContextId, error) { return scope.ExecutionContext(ctx, "") },
	}
	for _, strategy := range strategies {
		id, err := strategy()
		if err != nil {
			return 0, err
		}
		if id != 0 {
			return id, nil
		}
	}
	return 0, ErrNoExecutionContext
}

func callParams(ctx context.Context, scope Scope, plan *Plan, call Call) (cdp.CallFunctionOnParams, cdp.ExecutionContextId, error) {
	options := DefaultEvalOptions()
	if call.Options != nil {
		options = *call.Options
	}
	var fn string
	if call.Func != "" {
		fn = wrapInvoke(call.Func)
	} else {
		expr := call.Expr
		if expr == "" {
			expr = "this"
		}
		fn = wrapEval(expr)
	}
	this, err := prepareArg(call.This, "this")
	if err != nil {
		return cdp.CallFunctionOnParams{}, 0, err
	}
	argValues := call.Args
	if argValues == nil {
		argValues = []any{}
	}
	args, err := prepareArg(argValues, "args")
	if err != nil {
		return cdp.CallFunctionOnParams{}, 0, err
	}
	contextId, err := resolveContext(ctx, scope, call.Context, this, args)
	if err != nil {
		return cdp.CallFunctionOnParams{}, 0, err
	}
	config, err := harnessConfig(plan, options.AwaitPromise)
	if err != nil {
		return cdp.CallFunctionOnParams{}, 0, err
	}
	arguments := []cdp.CallArgument{config}
	for _, arg := range []preparedArg{this, args} {
		desc, err := descriptorArgument(arg.desc)
		if err != nil {
			return cdp.CallFunctionOnParams{}, 0, err
		}
		arguments = append(arguments, desc)
		for _, special := range arg.specials {
			arguments = append(arguments, special.CallArgument())
		}
	}
	source, err := harnessSource(fn, append(this.exprs, args.exprs...))
	if err != nil {
		return cdp.CallFunctionOnParams{}, 0, err
	}
	return cdp.CallFunctionOnParams{
		FunctionDeclaration: source,
		Arguments:           arguments,
		ReturnByValue:       plan.Mode == Discard || plan.Mode == ByValue,
		UserGesture:         options.UserGesture,
		AwaitPromise:        options.AwaitPromise,
		ExecutionContextId:  contextId,
	}, contextId, nil
}

// Run evaluates call in scope and decodes the result as T.
func Run[T any](ctx context.Context, scope Scope, call Call) (T, error) {
	var result T
	plan, err := PlanOf[T]()
	if err != nil {
		return result, err
	}
	rec, err := run(ctx, scope, plan, call)
	if err != nil {
		return result, err
	}
	err = decodeResult(scope, rec, &result)
	return result, err
}

func run(ctx context.Context, scope Scope, plan *Plan, call Call) (reconstruction, error) {
	sess := scope.Session()
	params, contextId, err := callParams(ctx, scope, plan, call)
	if err != nil {
		return reconstruction{}, err
	}
	resp, err := sess.RuntimeCallFunctionOn(ctx, params)
	if err != nil {
		return reconstruction{}, err
	}
	g := newGuard(sess)
	defer g.Release()
	if err = exceptionOf(resp.ExceptionDetails, g); err != nil {
		g.Add(resp.Result.ObjectId)
		return reconstruction{}, err
	}
	sess.Logger().Debug("evaluated", zap.Stringer("mode", plan.Mode), zap.Int64("contextId", int64(contextId)))
	switch plan.Mode {
	case Discard:
		g.Add(resp.Result.ObjectId)
		return reconstruction{doc: RawMessage("null")}, nil
	case Complex:
		if resp.Result.ObjectId == "" {
			return parseRemoteObject(ctx, sess, contextId, resp.Result)
		}
		return reconstructComplex(ctx, sess, contextId, resp.Result.ObjectId)
	default:
		rec, err := parseRemoteObject(ctx, sess, contextId, resp.Result)
		if err != nil {
			for _, id := range rec.remotes {
				g.Add(id)
			}
		}
		return rec, err
	}
}

// decodeResult decodes rec into out and binds the remote objects it holds.
// Ids the target type did not take are released.
func decodeResult(scope Scope, rec reconstruction, out any) error {
	g := newGuard(scope.Session())
	defer g.Release()
	for _, id := range rec.remotes {
		g.Add(id)
	}
	if err := json.Unmarshal(rec.doc, out); err != nil {
		return serialization(err)
	}
	bound := bindRemotes(reflect.ValueOf(out), scope)
	kept := g.ids[:0]
	for _, id := range g.ids {
		if !bound[id] {
			kept = append(kept, id)
		}
	}
	g.ids = kept
	return nil
}

// Eval evaluates expr in the scope's main world.
func Eval[T any](ctx context.Context, scope Scope, expr string) (T, error) {
	return Run[T](ctx, scope, Call{Expr: expr})
}

// Invoke applies the function declaration fn to args in the scope's main world.
func Invoke[T any](ctx context.Context, scope Scope, fn string, args ...any) (T, error) {
	return Run[T](ctx, scope, Call{Func: fn, Args: args})
}

// EvalGlobal runs expr with Runtime.evaluate. A complex result is reconstructed
// by re-entering the harness with the returned object bound to this.
func EvalGlobal[T any](ctx context.Context, scope Scope, expr string, selector ExecutionContext, options EvalOptions) (T, error) {
	var result T
	plan, err := PlanOf[T]()
	if err != nil {
		return result, err
	}
	sess := scope.Session()
	params := cdp.EvaluateParams{
		Expression:    expr,
		ReturnByValue: plan.Mode == Discard || plan.Mode == ByValue,
		UserGesture:   options.UserGesture,
		AwaitPromise:  options.AwaitPromise,
	}
	contextId := selector.Id
	if selector.UniqueId != "" {
		params.UniqueContextId = selector.UniqueId
		// handles returned below carry the numeric id
		if contextId, err = scope.ExecutionContext(ctx, selector.UniqueId); err != nil {
			return result, err
		}
	} else {
		if contextId == 0 {
			if contextId, err = scope.ExecutionContext(ctx, ""); err != nil {
				return result, err
			}
		}
		params.ContextId = contextId
	}
	resp, err := sess.RuntimeEvaluate(ctx, params)
	if err != nil {
		return result, err
	}
	g := newGuard(sess)
	defer g.Release()
	if err = exceptionOf(resp.ExceptionDetails, g); err != nil {
		g.Add(resp.Result.ObjectId)
		return result, err
	}
	if plan.Mode == Discard {
		g.Add(resp.Result.ObjectId)
		return result, nil
	}
	if plan.Mode == Complex && resp.Result.ObjectId != "" {
		g.Add(resp.Result.ObjectId)
		// the guard owns the id; the temporary handle is never released itself
		this := RemoteObject{h: &handle{ref: &remoteRef{meta: RemoteMeta{
			Id:      resp.Result.ObjectId,
			Type:    resp.Result.Type,
			Subtype: resp.Result.Subtype,
			Class:   resp.Result.ClassName,
			Context: contextId,
		}}}}
		rec, err := run(ctx, scope, plan, Call{Expr: "this", This: this, Context: selector, Options: &options})
		if err != nil {
			return result, err
		}
		err = decodeResult(scope, rec, &result)
		return result, err
	}
	rec, err := parseRemoteObject(ctx, sess, contextId, resp.Result)
	if err != nil {
		for _, id := range rec.remotes {
			g.Add(id)
		}
		return result, err
	}
	err = decodeResult(scope, rec, &result)
	return result, err
}
