package cdp

import (
	"context"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type WebSockOption struct {
	CommandTimeout time.Duration //default 60s
	MailboxSize    int
	Logger         *zap.Logger
}

type subKey struct {
	sessionId SessionId
	method    string
}

// WebSock owns one browser connection. The pending and subscriber tables are
// only touched from the run goroutine; everything else talks to it through ops.
type WebSock struct {
	option    WebSockOption
	transport Transport
	logger    *zap.Logger
	ctx       context.Context
	cnl       context.CancelCauseFunc
	id        atomic.Int64

	ops      chan func()
	incoming chan []byte
	writeCh  chan []byte
	done     chan struct{}

	pending     map[int64]*CommandFuture
	subscribers map[subKey][]*EventStream
	writeQueue  [][]byte
	closed      bool

	closeOnce sync.Once
	closeErr  error
}

func NewWebSock(preCtx context.Context, transport Transport, option WebSockOption) *WebSock {
	if option.CommandTimeout <= 0 {
		option.CommandTimeout = time.Second * 60
	}
	if option.MailboxSize <= 0 {
		option.MailboxSize = 256
	}
	if option.Logger == nil {
		option.Logger = zap.NewNop()
	}
	cli := &WebSock{
		option:      option,
		transport:   transport,
		logger:      option.Logger,
		ops:         make(chan func(), option.MailboxSize),
		incoming:    make(chan []byte, option.MailboxSize),
		writeCh:     make(chan []byte),
		done:        make(chan struct{}),
		pending:     make(map[int64]*CommandFuture),
		subscribers: make(map[subKey][]*EventStream),
	}
	cli.ctx, cli.cnl = context.WithCancelCause(preCtx)
	go cli.run()
	go cli.recvMain()
	go cli.sendMain()
	return cli
}

// Done is closed once the connection is torn down and every pending command
// has been failed.
func (obj *WebSock) Done() <-chan struct{} {
	return obj.done
}
func (obj *WebSock) Err() error {
	if obj.ctx.Err() == nil {
		return nil
	}
	return closedWith(context.Cause(obj.ctx))
}
func (obj *WebSock) Logger() *zap.Logger {
	return obj.logger
}

func (obj *WebSock) Close() error {
	obj.shutdown(ErrClosed)
	<-obj.done
	return obj.closeErr
}

func (obj *WebSock) shutdown(cause error) {
	obj.cnl(cause)
}

func (obj *WebSock) run() {
	defer obj.teardown()
	for {
		var writeCh chan []byte
		var head []byte
		if len(obj.writeQueue) > 0 {
			writeCh = obj.writeCh
			head = obj.writeQueue[0]
		}
		select {
		case <-obj.ctx.Done():
			return
		case op := <-obj.ops:
			op()
		case data := <-obj.incoming:
			obj.dispatch(data)
		case writeCh <- head:
			obj.writeQueue[0] = nil
			obj.writeQueue = obj.writeQueue[1:]
		}
	}
}

func (obj *WebSock) teardown() {
	obj.closed = true
	err := closedWith(context.Cause(obj.ctx))
	for id, fut := range obj.pending {
		delete(obj.pending, id)
		fut.resolve(nil, err)
	}
	for key, streams := range obj.subscribers {
		delete(obj.subscribers, key)
		for _, stream := range streams {
			stream.shut()
		}
	}
	obj.writeQueue = nil
	obj.closeOnce.Do(func() {
		obj.closeErr = obj.transport.Close()
	})
	for {
		select {
		case op := <-obj.ops:
			op()
		default:
			obj.logger.Debug("cdp connection closed", zap.Error(err))
			close(obj.done)
			return
		}
	}
}

func (obj *WebSock) recvMain() {
	for {
		data, err := obj.transport.Recv()
		if err != nil {
			obj.shutdown(err)
			return
		}
		select {
		case <-obj.ctx.Done():
			return
		case obj.incoming <- data:
		}
	}
}

func (obj *WebSock) sendMain() {
	for {
		select {
		case <-obj.ctx.Done():
			return
		case data := <-obj.writeCh:
			if err := obj.transport.Send(obj.ctx, data); err != nil {
				obj.shutdown(err)
				return
			}
		}
	}
}

func (obj *WebSock) dispatch(data []byte) {
	results := gjson.GetManyBytes(data, "id", "method", "sessionId")
	if results[0].Exists() {
		id := results[0].Int()
		fut, ok := obj.pending[id]
		if !ok {
			obj.logger.Debug("reply for unknown command", zap.Int64("id", id))
			return
		}
		delete(obj.pending, id)
		if errResult := gjson.GetBytes(data, "error"); errResult.Exists() {
			fut.resolve(nil, &ProtocolError{
				Method:  fut.method,
				Code:    errResult.Get("code").Int(),
				Message: errResult.Get("message").String(),
				Data:    errResult.Get("data").String(),
			})
			return
		}
		result := gjson.GetBytes(data, "result")
		if result.Exists() {
			fut.resolve(jsoniter.RawMessage(result.Raw), nil)
		} else {
			fut.resolve(jsoniter.RawMessage("{}"), nil)
		}
		return
	}
	if !results[1].Exists() {
		obj.logger.Debug("unrecognized message", zap.ByteString("data", data))
		return
	}
	evt := Event{
		Method:    results[1].String(),
		SessionId: SessionId(results[2].String()),
	}
	if params := gjson.GetBytes(data, "params"); params.Exists() {
		evt.Params = jsoniter.RawMessage(params.Raw)
	}
	for _, stream := range obj.subscribers[subKey{sessionId: evt.SessionId, method: evt.Method}] {
		stream.push(evt)
	}
	if evt.Method == "Target.detachedFromTarget" {
		obj.detach(SessionId(gjson.GetBytes(evt.Params, "sessionId").String()))
	}
}

// detach closes every stream of a session the browser dropped.
func (obj *WebSock) detach(sessionId SessionId) {
	if sessionId == "" {
		return
	}
	for key, streams := range obj.subscribers {
		if key.sessionId != sessionId {
			continue
		}
		delete(obj.subscribers, key)
		for _, stream := range streams {
			stream.shut()
		}
	}
}

// submit hands op to the run goroutine. It fails only when the connection is gone.
func (obj *WebSock) submit(ctx context.Context, op func()) error {
	select {
	case <-obj.ctx.Done():
		return obj.Err()
	case <-ctx.Done():
		return ctx.Err()
	case obj.ops <- op:
		return nil
	}
}

func (obj *WebSock) trySubmit(op func()) error {
	select {
	case <-obj.ctx.Done():
		return obj.Err()
	case obj.ops <- op:
		return nil
	default:
	}
	go obj.submit(context.Background(), op)
	return nil
}

func (obj *WebSock) send(ctx context.Context, cmd commend, wait bool) (*CommandFuture, error) {
	cmd.Id = obj.id.Add(1)
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	fut := &CommandFuture{
		ws:     obj,
		id:     cmd.Id,
		method: cmd.Method,
		ch:     make(chan response, 1),
	}
	op := func() {
		if obj.closed {
			fut.resolve(nil, obj.Err())
			return
		}
		if wait {
			obj.pending[fut.id] = fut
		}
		obj.writeQueue = append(obj.writeQueue, data)
	}
	if wait {
		err = obj.submit(ctx, op)
	} else {
		err = obj.trySubmit(op)
	}
	if err != nil {
		return nil, err
	}
	return fut, nil
}

func (obj *WebSock) cancel(id int64) {
	obj.trySubmit(func() {
		delete(obj.pending, id)
	})
}

func (obj *WebSock) subscribe(ctx context.Context, sessionId SessionId, method string) (*EventStream, error) {
	stream := newEventStream(obj, subKey{sessionId: sessionId, method: method})
	registered := make(chan struct{})
	err := obj.submit(ctx, func() {
		defer close(registered)
		if obj.closed {
			stream.shut()
			return
		}
		obj.subscribers[stream.key] = append(obj.subscribers[stream.key], stream)
	})
	if err != nil {
		return nil, err
	}
	// events read after Listen returns must reach the stream
	select {
	case <-registered:
	case <-obj.done:
		stream.shut()
	}
	return stream, nil
}

func (obj *WebSock) unsubscribe(stream *EventStream) {
	obj.trySubmit(func() {
		streams := obj.subscribers[stream.key]
		for i, s := range streams {
			if s == stream {
				streams = append(streams[:i], streams[i+1:]...)
				break
			}
		}
		if len(streams) == 0 {
			delete(obj.subscribers, stream.key)
		} else {
			obj.subscribers[stream.key] = streams
		}
	})
}

// Session returns a handle scoped to sessionId. The empty id addresses the browser itself.
func (obj *WebSock) Session(sessionId SessionId, targetId TargetId) *Session {
	return &Session{
		ws:        obj,
		sessionId: sessionId,
		targetId:  targetId,
		logger:    obj.logger.With(zap.String("sessionId", string(sessionId))),
	}
}
