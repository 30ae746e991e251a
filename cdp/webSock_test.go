package cdp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

type fakeTransport struct {
	sent   chan []byte
	recv   chan []byte
	closed chan struct{}
	once   sync.Once
	recvMu sync.Mutex
	err    error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		sent:   make(chan []byte, 128),
		recv:   make(chan []byte, 128),
		closed: make(chan struct{}),
	}
}

func (obj *fakeTransport) Send(ctx context.Context, data []byte) error {
	select {
	case <-obj.closed:
		return io.ErrClosedPipe
	case obj.sent <- data:
		return nil
	}
}
func (obj *fakeTransport) Recv() ([]byte, error) {
	select {
	case <-obj.closed:
		obj.recvMu.Lock()
		defer obj.recvMu.Unlock()
		if obj.err != nil {
			return nil, obj.err
		}
		return nil, io.EOF
	case data := <-obj.recv:
		return data, nil
	}
}
func (obj *fakeTransport) Close() error {
	obj.once.Do(func() { close(obj.closed) })
	return nil
}
func (obj *fakeTransport) fail(err error) {
	obj.recvMu.Lock()
	obj.err = err
	obj.recvMu.Unlock()
	obj.Close()
}

func (obj *fakeTransport) next(t *testing.T) gjson.Result {
	t.Helper()
	select {
	case data := <-obj.sent:
		return gjson.ParseBytes(data)
	case <-time.After(5 * time.Second):
		t.Fatal("no command sent")
	}
	return gjson.Result{}
}

func (obj *fakeTransport) reply(id int64, result string) {
	obj.recv <- []byte(fmt.Sprintf(`{"id":%d,"result":%s}`, id, result))
}

func newTestWebSock(t *testing.T) (*WebSock, *fakeTransport) {
	t.Helper()
	transport := newFakeTransport()
	ws := NewWebSock(context.Background(), transport, WebSockOption{CommandTimeout: 10 * time.Second})
	t.Cleanup(func() { ws.Close() })
	return ws, transport
}

func TestConcurrentCommandsGetTheirOwnReplies(t *testing.T) {
	ws, transport := newTestWebSock(t)
	sess := ws.Session("S1", "T1")
	const total = 20
	var wg sync.WaitGroup
	errs := make(chan error, total)
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			var result struct {
				N int `json:"n"`
			}
			if err := sess.Execute(context.Background(), "Test.echo", map[string]any{"n": n}, &result); err != nil {
				errs <- err
				return
			}
			if result.N != n {
				errs <- fmt.Errorf("command %d got reply %d", n, result.N)
			}
		}(i)
	}
	cmds := make([]gjson.Result, 0, total)
	for i := 0; i < total; i++ {
		cmd := transport.next(t)
		if cmd.Get("sessionId").String() != "S1" {
			t.Fatalf("missing session id: %s", cmd.Raw)
		}
		cmds = append(cmds, cmd)
	}
	for i := len(cmds) - 1; i >= 0; i-- {
		transport.reply(cmds[i].Get("id").Int(), fmt.Sprintf(`{"n":%d}`, cmds[i].Get("params.n").Int()))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestCommandIdsAreUnique(t *testing.T) {
	ws, transport := newTestWebSock(t)
	sess := ws.Session("", "")
	seen := map[int64]bool{}
	for i := 0; i < 5; i++ {
		if err := sess.ExecuteNoWait("Test.fire", nil); err != nil {
			t.Fatal(err)
		}
		id := transport.next(t).Get("id").Int()
		if seen[id] {
			t.Fatalf("id %d reused", id)
		}
		seen[id] = true
	}
}

func TestEventsAreScopedAndOrdered(t *testing.T) {
	ws, transport := newTestWebSock(t)
	ctx := context.Background()
	streamA, err := ws.Session("A", "").Listen(ctx, "Test.tick")
	if err != nil {
		t.Fatal(err)
	}
	streamB, err := ws.Session("B", "").Listen(ctx, "Test.tick")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		transport.recv <- []byte(fmt.Sprintf(`{"method":"Test.tick","sessionId":"A","params":{"i":%d}}`, i))
		transport.recv <- []byte(`{"method":"Test.other","sessionId":"A","params":{}}`)
	}
	transport.recv <- []byte(`{"method":"Test.tick","sessionId":"B","params":{"i":9}}`)
	for i := 0; i < 3; i++ {
		evt, err := streamA.Recv(ctx)
		if err != nil {
			t.Fatal(err)
		}
		var params struct {
			I int `json:"i"`
		}
		if err := evt.Decode(&params); err != nil {
			t.Fatal(err)
		}
		if params.I != i || evt.SessionId != "A" {
			t.Fatalf("event %d out of order: %+v", i, evt)
		}
	}
	evt, err := streamB.Recv(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if gjson.GetBytes(evt.Params, "i").Int() != 9 {
		t.Fatalf("unexpected event %s", evt.Params)
	}
}

func TestTypedStream(t *testing.T) {
	ws, transport := newTestWebSock(t)
	ctx := context.Background()
	stream, err := Listen[BindingCalled](ctx, ws.Session("A", ""))
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()
	transport.recv <- []byte(`{"method":"Runtime.bindingCalled","sessionId":"A","params":{"name":5}}`)
	transport.recv <- []byte(`{"method":"Runtime.executionContextsCleared","sessionId":"A","params":{}}`)
	transport.recv <- []byte(`{"method":"Runtime.bindingCalled","sessionId":"A","params":{"name":"add","payload":"[1]","executionContextId":3}}`)
	if _, err = stream.Recv(ctx); err == nil || errors.Is(err, ErrStreamClosed) {
		t.Fatalf("expected a decode error, got %v", err)
	}
	evt, err := stream.Recv(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if evt.Name != "add" || evt.Payload != "[1]" || evt.ExecutionContextId != 3 {
		t.Fatalf("unexpected event %+v", evt)
	}
}

func TestProtocolError(t *testing.T) {
	ws, transport := newTestWebSock(t)
	done := make(chan error, 1)
	go func() {
		done <- ws.Session("", "").Execute(context.Background(), "Test.fail", nil, nil)
	}()
	id := transport.next(t).Get("id").Int()
	transport.recv <- []byte(fmt.Sprintf(`{"id":%d,"error":{"code":-32000,"message":"boom"}}`, id))
	err := <-done
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected protocol error, got %v", err)
	}
	if protoErr.Code != -32000 || protoErr.Message != "boom" || protoErr.Method != "Test.fail" {
		t.Fatalf("unexpected error %+v", protoErr)
	}
}

func TestCloseFailsPendingCommands(t *testing.T) {
	ws, transport := newTestWebSock(t)
	fut, err := ws.Session("", "").Send(context.Background(), "Test.hang", nil)
	if err != nil {
		t.Fatal(err)
	}
	transport.next(t)
	ws.Close()
	if _, err := fut.Wait(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := ws.Session("", "").Execute(context.Background(), "Test.after", nil, nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
}

func TestTransportFailureKeepsCause(t *testing.T) {
	ws, transport := newTestWebSock(t)
	fut, err := ws.Session("", "").Send(context.Background(), "Test.hang", nil)
	if err != nil {
		t.Fatal(err)
	}
	transport.next(t)
	cause := errors.New("socket reset")
	transport.fail(cause)
	_, err = fut.Wait(context.Background())
	if !errors.Is(err, ErrClosed) || !errors.Is(err, cause) {
		t.Fatalf("expected closed error wrapping cause, got %v", err)
	}
}

func TestCanceledWaitDropsLateReply(t *testing.T) {
	ws, transport := newTestWebSock(t)
	sess := ws.Session("", "")
	ctx, cnl := context.WithCancel(context.Background())
	fut, err := sess.Send(ctx, "Test.slow", nil)
	if err != nil {
		t.Fatal(err)
	}
	id := transport.next(t).Get("id").Int()
	cnl()
	if _, err := fut.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	transport.reply(id, `{}`)

	done := make(chan error, 1)
	go func() {
		done <- sess.Execute(context.Background(), "Test.next", nil, nil)
	}()
	transport.reply(transport.next(t).Get("id").Int(), `{}`)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestStreamClose(t *testing.T) {
	ws, transport := newTestWebSock(t)
	ctx := context.Background()
	stream, err := ws.Session("A", "").Listen(ctx, "Test.tick")
	if err != nil {
		t.Fatal(err)
	}
	stream.Close()
	if _, err := stream.Recv(ctx); !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("expected ErrStreamClosed, got %v", err)
	}
	live, err := ws.Session("A", "").Listen(ctx, "Test.tick")
	if err != nil {
		t.Fatal(err)
	}
	transport.recv <- []byte(`{"method":"Target.detachedFromTarget","params":{"sessionId":"A"}}`)
	if _, err := live.Recv(ctx); !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("expected detach to close stream, got %v", err)
	}
}

func TestStreamClosedWithConnection(t *testing.T) {
	ws, _ := newTestWebSock(t)
	ctx := context.Background()
	stream, err := ws.Session("A", "").Listen(ctx, "Test.tick")
	if err != nil {
		t.Fatal(err)
	}
	ws.Close()
	if _, err := stream.Recv(ctx); !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("expected ErrStreamClosed, got %v", err)
	}
}
