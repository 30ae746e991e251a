package cdp

import (
	"context"
	"fmt"
	"sync"
)

// EventStream receives the events of one method on one session in arrival order.
// The queue is unbounded so a slow consumer never stalls the connection.
type EventStream struct {
	ws     *WebSock
	key    subKey
	mu     sync.Mutex
	queue  []Event
	closed bool
	notify chan struct{}
	once   sync.Once
}

func newEventStream(ws *WebSock, key subKey) *EventStream {
	return &EventStream{
		ws:     ws,
		key:    key,
		notify: make(chan struct{}, 1),
	}
}

func (obj *EventStream) Method() string {
	return obj.key.method
}

func (obj *EventStream) push(evt Event) {
	obj.mu.Lock()
	if obj.closed {
		obj.mu.Unlock()
		return
	}
	obj.queue = append(obj.queue, evt)
	obj.mu.Unlock()
	obj.wake()
}

func (obj *EventStream) wake() {
	select {
	case obj.notify <- struct{}{}:
	default:
	}
}

// shut marks the stream closed. Queued events are still delivered.
func (obj *EventStream) shut() {
	obj.mu.Lock()
	obj.closed = true
	obj.mu.Unlock()
	obj.wake()
}

// Recv returns the next event, or ErrStreamClosed once the stream is closed and drained.
func (obj *EventStream) Recv(ctx context.Context) (Event, error) {
	for {
		obj.mu.Lock()
		if len(obj.queue) > 0 {
			evt := obj.queue[0]
			obj.queue[0] = Event{}
			obj.queue = obj.queue[1:]
			obj.mu.Unlock()
			return evt, nil
		}
		closed := obj.closed
		obj.mu.Unlock()
		if closed {
			return Event{}, ErrStreamClosed
		}
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-obj.notify:
		}
	}
}

// Close deregisters the stream. Pending events are discarded.
func (obj *EventStream) Close() {
	obj.once.Do(func() {
		obj.mu.Lock()
		obj.closed = true
		obj.queue = nil
		obj.mu.Unlock()
		obj.wake()
		obj.ws.unsubscribe(obj)
	})
}

// EventParams is the decoded payload of one event method.
type EventParams interface {
	EventMethod() string
}

// TypedStream yields the decoded params of a single event type.
type TypedStream[E EventParams] struct {
	stream *EventStream
}

// Listen subscribes to the event E on sess.
func Listen[E EventParams](ctx context.Context, sess *Session) (*TypedStream[E], error) {
	var params E
	stream, err := sess.Listen(ctx, params.EventMethod())
	if err != nil {
		return nil, err
	}
	return &TypedStream[E]{stream: stream}, nil
}

// Recv returns the next event. A payload that fails to decode is returned
// as an error without closing the stream.
func (obj *TypedStream[E]) Recv(ctx context.Context) (E, error) {
	var params E
	evt, err := obj.stream.Recv(ctx)
	if err != nil {
		return params, err
	}
	if err = evt.Decode(&params); err != nil {
		return params, fmt.Errorf("decode %s: %w", evt.Method, err)
	}
	return params, nil
}

func (obj *TypedStream[E]) Close() {
	obj.stream.Close()
}
