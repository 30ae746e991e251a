package cdp

import (
	"context"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// Session addresses commands and events to one attached target.
type Session struct {
	ws        *WebSock
	sessionId SessionId
	targetId  TargetId
	logger    *zap.Logger
}

func (obj *Session) Id() SessionId {
	return obj.sessionId
}
func (obj *Session) TargetId() TargetId {
	return obj.targetId
}
func (obj *Session) WebSock() *WebSock {
	return obj.ws
}
func (obj *Session) Logger() *zap.Logger {
	return obj.logger
}
func (obj *Session) Done() <-chan struct{} {
	return obj.ws.Done()
}

func marshalParams(params any) (jsoniter.RawMessage, error) {
	switch val := params.(type) {
	case nil:
		return nil, nil
	case jsoniter.RawMessage:
		return val, nil
	case []byte:
		return val, nil
	default:
		return json.Marshal(params)
	}
}

// Send queues a command and returns its future without waiting for the reply.
func (obj *Session) Send(ctx context.Context, method string, params any) (*CommandFuture, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return obj.ws.send(ctx, commend{Method: method, Params: raw, SessionId: obj.sessionId}, true)
}

// Execute sends a command and decodes its result into result when it is not nil.
func (obj *Session) Execute(preCtx context.Context, method string, params any, result any) error {
	ctx, cnl := context.WithTimeout(preCtx, obj.ws.option.CommandTimeout)
	defer cnl()
	fut, err := obj.Send(ctx, method, params)
	if err != nil {
		return err
	}
	raw, err := fut.Wait(ctx)
	if err != nil {
		return err
	}
	if result == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, result)
}

// ExecuteNoWait fires a command whose reply is ignored. It never blocks.
func (obj *Session) ExecuteNoWait(method string, params any) error {
	raw, err := marshalParams(params)
	if err != nil {
		return err
	}
	_, err = obj.ws.send(context.Background(), commend{Method: method, Params: raw, SessionId: obj.sessionId}, false)
	return err
}

// Listen subscribes to method events on this session.
func (obj *Session) Listen(ctx context.Context, method string) (*EventStream, error) {
	return obj.ws.subscribe(ctx, obj.sessionId, method)
}

// Call executes method and decodes the reply as R.
func Call[R any](ctx context.Context, sess *Session, method string, params any) (R, error) {
	var result R
	err := sess.Execute(ctx, method, params, &result)
	return result, err
}
