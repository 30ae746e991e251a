package cdpjs

import (
	"context"
	"errors"
	"sync"

	"github.com/gospider007/cdpjs/cdp"
	"go.uber.org/zap"
)

// BrowserContext is an isolated browser profile: its pages share cookies and
// storage with each other but not with other contexts.
type BrowserContext struct {
	client    *Client
	id        cdp.BrowserContextId
	closeOnce sync.Once
	closeErr  error
}

func (obj *Client) NewBrowserContext(preCtx context.Context) (*BrowserContext, error) {
	if preCtx == nil {
		preCtx = obj.ctx
	}
	id, err := obj.session.TargetCreateBrowserContext(preCtx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, errors.New("not found browserContextId")
	}
	browserContext := &BrowserContext{client: obj, id: id}
	obj.mu.Lock()
	obj.contexts[id] = browserContext
	obj.mu.Unlock()
	return browserContext, nil
}

func (obj *BrowserContext) Id() cdp.BrowserContextId {
	return obj.id
}

func (obj *BrowserContext) NewPage(preCtx context.Context, options ...PageOption) (*Page, error) {
	var option PageOption
	if len(options) > 0 {
		option = options[0]
	}
	option.BrowserContextId = obj.id
	return obj.client.NewPage(preCtx, option)
}

// Close disposes the context and every page in it.
func (obj *BrowserContext) Close() error {
	obj.closeOnce.Do(func() {
		obj.client.mu.Lock()
		delete(obj.client.contexts, obj.id)
		obj.client.mu.Unlock()
		if obj.client.webSock.Err() != nil {
			return
		}
		obj.closeErr = obj.client.session.TargetDisposeBrowserContext(obj.client.ctx, obj.id)
		if obj.closeErr != nil {
			obj.client.logger.Debug("dispose browser context", zap.String("browserContextId", string(obj.id)), zap.Error(obj.closeErr))
		}
	})
	return obj.closeErr
}
