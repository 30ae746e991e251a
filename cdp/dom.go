package cdp

import (
	"context"
)

func (obj *Session) DOMEnable(ctx context.Context) error {
	return obj.Execute(ctx, "DOM.enable", nil, nil)
}
func (obj *Session) DOMDescribeNode(ctx context.Context, objectId RemoteObjectId) (Node, error) {
	var result struct {
		Node Node `json:"node"`
	}
	err := obj.Execute(ctx, "DOM.describeNode", map[string]any{
		"objectId": objectId,
		"depth":    0,
	}, &result)
	return result.Node, err
}
func (obj *Session) DOMResolveNode(ctx context.Context, backendNodeId BackendNodeId, contextId ExecutionContextId) (RemoteObject, error) {
	params := map[string]any{
		"backendNodeId": backendNodeId,
	}
	if contextId != 0 {
		params["executionContextId"] = contextId
	}
	var result struct {
		Object RemoteObject `json:"object"`
	}
	err := obj.Execute(ctx, "DOM.resolveNode", params, &result)
	return result.Object, err
}
