package cdp

import (
	"context"
)

type CallFunctionOnParams struct {
	FunctionDeclaration string             `json:"functionDeclaration"`
	ObjectId            RemoteObjectId     `json:"objectId,omitempty"`
	Arguments           []CallArgument     `json:"arguments,omitempty"`
	ReturnByValue       bool               `json:"returnByValue"`
	UserGesture         bool               `json:"userGesture,omitempty"`
	AwaitPromise        bool               `json:"awaitPromise"`
	ExecutionContextId  ExecutionContextId `json:"executionContextId,omitempty"`
	ObjectGroup         string             `json:"objectGroup,omitempty"`
}

type EvaluateParams struct {
	Expression      string             `json:"expression"`
	ReturnByValue   bool               `json:"returnByValue"`
	UserGesture     bool               `json:"userGesture,omitempty"`
	AwaitPromise    bool               `json:"awaitPromise"`
	ContextId       ExecutionContextId `json:"contextId,omitempty"`
	UniqueContextId string             `json:"uniqueContextId,omitempty"`
	ObjectGroup     string             `json:"objectGroup,omitempty"`
}

// EvaluateResult is the reply shape shared by Runtime.evaluate and Runtime.callFunctionOn.
type EvaluateResult struct {
	Result           RemoteObject      `json:"result"`
	ExceptionDetails *ExceptionDetails `json:"exceptionDetails,omitempty"`
}

type GetPropertiesResult struct {
	Result           []PropertyDescriptor `json:"result"`
	ExceptionDetails *ExceptionDetails    `json:"exceptionDetails,omitempty"`
}

type ExecutionContextCreated struct {
	Context ExecutionContextDescription `json:"context"`
}

func (ExecutionContextCreated) EventMethod() string {
	return "Runtime.executionContextCreated"
}

type ExecutionContextDestroyed struct {
	ExecutionContextId       ExecutionContextId `json:"executionContextId"`
	ExecutionContextUniqueId string             `json:"executionContextUniqueId,omitempty"`
}

func (ExecutionContextDestroyed) EventMethod() string {
	return "Runtime.executionContextDestroyed"
}

type ExecutionContextsCleared struct{}

func (ExecutionContextsCleared) EventMethod() string {
	return "Runtime.executionContextsCleared"
}

// BindingCalled is sent when page code calls a function added with Runtime.addBinding.
type BindingCalled struct {
	Name               string             `json:"name"`
	Payload            string             `json:"payload"`
	ExecutionContextId ExecutionContextId `json:"executionContextId"`
}

func (BindingCalled) EventMethod() string {
	return "Runtime.bindingCalled"
}

func (obj *Session) RuntimeEnable(ctx context.Context) error {
	return obj.Execute(ctx, "Runtime.enable", nil, nil)
}
func (obj *Session) RuntimeCallFunctionOn(ctx context.Context, params CallFunctionOnParams) (EvaluateResult, error) {
	return Call[EvaluateResult](ctx, obj, "Runtime.callFunctionOn", params)
}
func (obj *Session) RuntimeEvaluate(ctx context.Context, params EvaluateParams) (EvaluateResult, error) {
	return Call[EvaluateResult](ctx, obj, "Runtime.evaluate", params)
}
func (obj *Session) RuntimeGetProperties(ctx context.Context, objectId RemoteObjectId, ownProperties bool) (GetPropertiesResult, error) {
	return Call[GetPropertiesResult](ctx, obj, "Runtime.getProperties", map[string]any{
		"objectId":      objectId,
		"ownProperties": ownProperties,
	})
}
func (obj *Session) RuntimeReleaseObject(ctx context.Context, objectId RemoteObjectId) error {
	return obj.Execute(ctx, "Runtime.releaseObject", map[string]any{
		"objectId": objectId,
	}, nil)
}

// RuntimeReleaseObjectNoWait is safe to call from finalizers and cleanup paths.
func (obj *Session) RuntimeReleaseObjectNoWait(objectId RemoteObjectId) error {
	return obj.ExecuteNoWait("Runtime.releaseObject", map[string]any{
		"objectId": objectId,
	})
}
func (obj *Session) RuntimeAddBinding(ctx context.Context, name string) error {
	return obj.Execute(ctx, "Runtime.addBinding", map[string]any{
		"name": name,
	}, nil)
}
func (obj *Session) RuntimeRemoveBinding(ctx context.Context, name string) error {
	return obj.Execute(ctx, "Runtime.removeBinding", map[string]any{
		"name": name,
	}, nil)
}
