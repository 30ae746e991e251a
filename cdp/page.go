package cdp

import (
	"context"
)

func (obj *Session) PageEnable(ctx context.Context) error {
	return obj.Execute(ctx, "Page.enable", nil, nil)
}
func (obj *Session) PageGetFrameTree(ctx context.Context) (FrameTree, error) {
	var result struct {
		FrameTree FrameTree `json:"frameTree"`
	}
	err := obj.Execute(ctx, "Page.getFrameTree", nil, &result)
	return result.FrameTree, err
}
func (obj *Session) PageCreateIsolatedWorld(ctx context.Context, frameId FrameId, worldName string) (ExecutionContextId, error) {
	var result struct {
		ExecutionContextId ExecutionContextId `json:"executionContextId"`
	}
	err := obj.Execute(ctx, "Page.createIsolatedWorld", map[string]any{
		"frameId":             frameId,
		"worldName":           worldName,
		"grantUniveralAccess": true,
	}, &result)
	return result.ExecutionContextId, err
}
func (obj *Session) PageAddScriptToEvaluateOnNewDocument(ctx context.Context, source string, runImmediately bool) (string, error) {
	var result struct {
		Identifier string `json:"identifier"`
	}
	err := obj.Execute(ctx, "Page.addScriptToEvaluateOnNewDocument", map[string]any{
		"source":         source,
		"runImmediately": runImmediately,
	}, &result)
	return result.Identifier, err
}
func (obj *Session) PageRemoveScriptToEvaluateOnNewDocument(ctx context.Context, identifier string) error {
	return obj.Execute(ctx, "Page.removeScriptToEvaluateOnNewDocument", map[string]any{
		"identifier": identifier,
	}, nil)
}
func (obj *Session) PageNavigate(ctx context.Context, url string) (FrameId, error) {
	var result struct {
		FrameId   FrameId `json:"frameId"`
		ErrorText string  `json:"errorText"`
	}
	err := obj.Execute(ctx, "Page.navigate", map[string]any{
		"url": url,
	}, &result)
	if err == nil && result.ErrorText != "" {
		err = &ProtocolError{Method: "Page.navigate", Message: result.ErrorText}
	}
	return result.FrameId, err
}
