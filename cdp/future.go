package cdp

import (
	"context"

	jsoniter "github.com/json-iterator/go"
)

type response struct {
	result jsoniter.RawMessage
	err    error
}

// CommandFuture is the pending reply of one command. It resolves exactly once.
type CommandFuture struct {
	ws     *WebSock
	id     int64
	method string
	ch     chan response
}

func (obj *CommandFuture) Id() int64 {
	return obj.id
}
func (obj *CommandFuture) Method() string {
	return obj.method
}

func (obj *CommandFuture) resolve(result jsoniter.RawMessage, err error) {
	select {
	case obj.ch <- response{result: result, err: err}:
	default:
	}
}

// Wait blocks for the reply. Abandoning the wait through ctx removes the
// pending entry so a late reply is dropped.
func (obj *CommandFuture) Wait(ctx context.Context) (jsoniter.RawMessage, error) {
	select {
	case rs := <-obj.ch:
		return rs.result, rs.err
	case <-ctx.Done():
		obj.ws.cancel(obj.id)
		return nil, ctx.Err()
	case <-obj.ws.Done():
		select {
		case rs := <-obj.ch:
			return rs.result, rs.err
		default:
			return nil, obj.ws.Err()
		}
	}
}
