package cdp

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is a duplex message stream. Send is never called concurrently;
// Recv is only called from the read loop.
type Transport interface {
	Send(ctx context.Context, data []byte) error
	Recv() ([]byte, error)
	Close() error
}

type wsTransport struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

// DialWebSocket connects to a devtools websocket endpoint.
func DialWebSocket(preCtx context.Context, wsUrl string, readLimit int64) (Transport, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 45 * time.Second,
		ReadBufferSize:   1024 * 64,
		WriteBufferSize:  1024 * 64,
	}
	conn, resp, err := dialer.DialContext(preCtx, wsUrl, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	if readLimit > 0 {
		conn.SetReadLimit(readLimit)
	}
	return &wsTransport{conn: conn}, nil
}

func (obj *wsTransport) Send(ctx context.Context, data []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		obj.conn.SetWriteDeadline(deadline)
	} else {
		obj.conn.SetWriteDeadline(time.Time{})
	}
	return obj.conn.WriteMessage(websocket.TextMessage, data)
}

func (obj *wsTransport) Recv() ([]byte, error) {
	for {
		kind, data, err := obj.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (obj *wsTransport) Close() error {
	obj.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "close")
		obj.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		obj.closeErr = obj.conn.Close()
		if errors.Is(obj.closeErr, websocket.ErrCloseSent) {
			obj.closeErr = nil
		}
	})
	return obj.closeErr
}
