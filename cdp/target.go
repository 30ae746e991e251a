package cdp

import "context"

func (obj *Session) TargetCreateTarget(ctx context.Context, url string, browserContextId BrowserContextId) (TargetId, error) {
	params := map[string]any{
		"url": url,
	}
	if browserContextId != "" {
		params["browserContextId"] = browserContextId
	}
	var result struct {
		TargetId TargetId `json:"targetId"`
	}
	err := obj.Execute(ctx, "Target.createTarget", params, &result)
	return result.TargetId, err
}

// TargetAttachToTarget attaches in flatten mode so the returned session id
// multiplexes over this connection.
func (obj *Session) TargetAttachToTarget(ctx context.Context, targetId TargetId) (SessionId, error) {
	var result struct {
		SessionId SessionId `json:"sessionId"`
	}
	err := obj.Execute(ctx, "Target.attachToTarget", map[string]any{
		"targetId": targetId,
		"flatten":  true,
	}, &result)
	return result.SessionId, err
}
func (obj *Session) TargetCloseTarget(ctx context.Context, targetId TargetId) error {
	return obj.Execute(ctx, "Target.closeTarget", map[string]any{
		"targetId": targetId,
	}, nil)
}
func (obj *Session) TargetCreateBrowserContext(ctx context.Context) (BrowserContextId, error) {
	var result struct {
		BrowserContextId BrowserContextId `json:"browserContextId"`
	}
	err := obj.Execute(ctx, "Target.createBrowserContext", map[string]any{
		"disposeOnDetach": true,
	}, &result)
	return result.BrowserContextId, err
}
func (obj *Session) TargetDisposeBrowserContext(ctx context.Context, browserContextId BrowserContextId) error {
	return obj.Execute(ctx, "Target.disposeBrowserContext", map[string]any{
		"browserContextId": browserContextId,
	}, nil)
}
func (obj *Session) TargetGetTargets(ctx context.Context) ([]TargetInfo, error) {
	var result struct {
		TargetInfos []TargetInfo `json:"targetInfos"`
	}
	err := obj.Execute(ctx, "Target.getTargets", nil, &result)
	return result.TargetInfos, err
}
