package cdpjs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gospider007/cdpjs/cdp"
	"github.com/gospider007/cdpjs/js"
	"github.com/tidwall/gjson"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
)

type PageOption struct {
	Url              string //default about:blank
	BrowserContextId cdp.BrowserContextId
	Logger           *zap.Logger //default the client's logger
}

type executionContext struct {
	id        cdp.ExecutionContextId
	uniqueId  string
	name      string
	frameId   cdp.FrameId
	isDefault bool
}

// Page is one attached target. It tracks the target's execution contexts and
// is the scope its evaluations run in.
type Page struct {
	client   *Client
	targetId cdp.TargetId
	session  *cdp.Session
	logger   *zap.Logger
	ctx      context.Context
	cnl      context.CancelCauseFunc
	done     chan struct{}

	mu        sync.Mutex
	mainFrame cdp.FrameId
	contexts  map[cdp.ExecutionContextId]executionContext
	byUnique  map[string]cdp.ExecutionContextId
	changed   chan struct{}
	streams   []func()
	exposed   map[string]*ExposedFunction

	closeOnce sync.Once
	closeErr  error
}

func newPage(preCtx context.Context, client *Client, option PageOption) (*Page, error) {
	if option.Url == "" {
		option.Url = "about:blank"
	}
	if option.Logger == nil {
		option.Logger = client.logger
	}
	targetId, err := client.session.TargetCreateTarget(preCtx, "about:blank", option.BrowserContextId)
	if err != nil {
		return nil, err
	}
	page := &Page{
		client:   client,
		targetId: targetId,
		logger:   option.Logger.With(zap.String("targetId", string(targetId))),
		done:     make(chan struct{}),
		contexts: make(map[cdp.ExecutionContextId]executionContext),
		byUnique: make(map[string]cdp.ExecutionContextId),
		changed:  make(chan struct{}),
		exposed:  make(map[string]*ExposedFunction),
	}
	page.ctx, page.cnl = context.WithCancelCause(client.ctx)
	if err = page.attach(preCtx, option); err != nil {
		return nil, multierr.Append(err, page.Close())
	}
	return page, nil
}

func (obj *Page) attach(ctx context.Context, option PageOption) error {
	sessionId, err := obj.client.session.TargetAttachToTarget(ctx, obj.targetId)
	if err != nil {
		close(obj.done)
		return err
	}
	obj.session = obj.client.webSock.Session(sessionId, obj.targetId)
	obj.logger = obj.logger.With(zap.String("sessionId", string(sessionId)))
	if err = obj.init(ctx); err != nil {
		return err
	}
	if option.Url != "about:blank" {
		return obj.Navigate(ctx, option.Url)
	}
	return nil
}

// init subscribes to context events before Runtime.enable so the contexts
// reported by enable itself are not missed.
func (obj *Page) init(ctx context.Context) error {
	var wg sync.WaitGroup
	defer func() {
		go func() {
			wg.Wait()
			close(obj.done)
		}()
	}()
	if err := listen(ctx, obj, &wg, obj.contextCreated); err != nil {
		return err
	}
	if err := listen(ctx, obj, &wg, obj.contextDestroyed); err != nil {
		return err
	}
	if err := listen(ctx, obj, &wg, obj.contextsCleared); err != nil {
		return err
	}
	if err := obj.session.PageEnable(ctx); err != nil {
		return err
	}
	tree, err := obj.session.PageGetFrameTree(ctx)
	if err != nil {
		return err
	}
	obj.mu.Lock()
	obj.mainFrame = tree.Frame.Id
	obj.notify()
	obj.mu.Unlock()
	return obj.session.RuntimeEnable(ctx)
}

// listen applies every E event to the page until the stream ends. A closed
// stream means the target detached.
func listen[E cdp.EventParams](ctx context.Context, obj *Page, wg *sync.WaitGroup, apply func(E)) error {
	stream, err := cdp.Listen[E](ctx, obj.session)
	if err != nil {
		return err
	}
	obj.streams = append(obj.streams, stream.Close)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			evt, err := stream.Recv(obj.ctx)
			switch {
			case err == nil:
				apply(evt)
			case errors.Is(err, cdp.ErrStreamClosed):
				obj.cnl(fmt.Errorf("page %s detached", obj.targetId))
				return
			case obj.ctx.Err() != nil:
				return
			default:
				obj.logger.Warn("drop event", zap.Error(err))
			}
		}
	}()
	return nil
}

// notify wakes every waiter. Callers hold mu.
func (obj *Page) notify() {
	close(obj.changed)
	obj.changed = make(chan struct{})
}

func (obj *Page) contextCreated(evt cdp.ExecutionContextCreated) {
	aux := gjson.ParseBytes(evt.Context.AuxData)
	ec := executionContext{
		id:        evt.Context.Id,
		uniqueId:  evt.Context.UniqueId,
		name:      evt.Context.Name,
		frameId:   cdp.FrameId(aux.Get("frameId").String()),
		isDefault: aux.Get("isDefault").Bool(),
	}
	if ec.id == 0 {
		return
	}
	obj.mu.Lock()
	defer obj.mu.Unlock()
	obj.contexts[ec.id] = ec
	if ec.uniqueId != "" {
		obj.byUnique[ec.uniqueId] = ec.id
	}
	obj.notify()
	obj.logger.Debug("execution context created", zap.Int64("contextId", int64(ec.id)), zap.String("frameId", string(ec.frameId)), zap.Bool("isDefault", ec.isDefault))
}

func (obj *Page) contextDestroyed(evt cdp.ExecutionContextDestroyed) {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	if ec, ok := obj.contexts[evt.ExecutionContextId]; ok {
		delete(obj.contexts, evt.ExecutionContextId)
		delete(obj.byUnique, ec.uniqueId)
	}
}

func (obj *Page) contextsCleared(cdp.ExecutionContextsCleared) {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	clear(obj.contexts)
	clear(obj.byUnique)
}

func (obj *Page) mainWorld() (cdp.ExecutionContextId, bool) {
	for id, ec := range obj.contexts {
		if ec.isDefault && ec.frameId == obj.mainFrame {
			return id, true
		}
	}
	return 0, false
}

// ExecutionContext resolves uniqueId to a live context. The empty id waits for
// the main world of the main frame, which is briefly missing during navigation.
func (obj *Page) ExecutionContext(preCtx context.Context, uniqueId string) (cdp.ExecutionContextId, error) {
	if obj.ctx.Err() != nil {
		return 0, context.Cause(obj.ctx)
	}
	if uniqueId != "" {
		obj.mu.Lock()
		id, ok := obj.byUnique[uniqueId]
		obj.mu.Unlock()
		if !ok {
			return 0, fmt.Errorf("%w: %s", js.ErrNoExecutionContext, uniqueId)
		}
		return id, nil
	}
	ctx, cnl := context.WithTimeout(preCtx, obj.client.option.CommandTimeout)
	defer cnl()
	for {
		obj.mu.Lock()
		id, ok := obj.mainWorld()
		changed := obj.changed
		obj.mu.Unlock()
		if ok {
			return id, nil
		}
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("%w: %w", js.ErrNoExecutionContext, ctx.Err())
		case <-obj.ctx.Done():
			return 0, context.Cause(obj.ctx)
		case <-changed:
		}
	}
}

// MainContext is the main world of the main frame as an evaluation selector.
func (obj *Page) MainContext(ctx context.Context) (js.ExecutionContext, error) {
	id, err := obj.ExecutionContext(ctx, "")
	if err != nil {
		return js.ExecutionContext{}, err
	}
	obj.mu.Lock()
	defer obj.mu.Unlock()
	return js.ExecutionContext{Id: id, UniqueId: obj.contexts[id].uniqueId}, nil
}

// IsolatedContext creates a fresh world in the main frame. Page globals are
// not visible from it; the DOM is shared.
func (obj *Page) IsolatedContext(ctx context.Context, worldName string) (js.ExecutionContext, error) {
	obj.mu.Lock()
	frameId := obj.mainFrame
	obj.mu.Unlock()
	id, err := obj.session.PageCreateIsolatedWorld(ctx, frameId, worldName)
	if err != nil {
		return js.ExecutionContext{}, err
	}
	return js.ContextId(id), nil
}

func (obj *Page) Session() *cdp.Session {
	return obj.session
}
func (obj *Page) TargetId() cdp.TargetId {
	return obj.targetId
}
func (obj *Page) Logger() *zap.Logger {
	return obj.logger
}

// Done is closed once the page is closed or detached.
func (obj *Page) Done() <-chan struct{} {
	return obj.done
}

func (obj *Page) Navigate(ctx context.Context, url string) error {
	_, err := obj.session.PageNavigate(ctx, url)
	return err
}

// Eval evaluates expr in the main world. args are visible to expr as arguments[i].
func (obj *Page) Eval(ctx context.Context, expr string, args ...any) (gjson.Result, error) {
	raw, err := js.Run[js.RawMessage](ctx, obj, js.Call{Expr: expr, Args: args})
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.ParseBytes(raw), nil
}

func (obj *Page) AddScript(ctx context.Context, script string) (string, error) {
	return obj.session.PageAddScriptToEvaluateOnNewDocument(ctx, script, true)
}
func (obj *Page) RemoveScript(ctx context.Context, identifier string) error {
	return obj.session.PageRemoveScriptToEvaluateOnNewDocument(ctx, identifier)
}

// Document returns the document node of the main frame.
func (obj *Page) Document(ctx context.Context) (*Dom, error) {
	return js.Eval[*Dom](ctx, obj, "document")
}

// QuerySelector returns nil when nothing matches.
func (obj *Page) QuerySelector(ctx context.Context, selector string) (*Dom, error) {
	return js.Run[*Dom](ctx, obj, js.Call{Expr: "document.querySelector(arguments[0])", Args: []any{selector}})
}
func (obj *Page) QuerySelectorAll(ctx context.Context, selector string) ([]Dom, error) {
	return js.Run[[]Dom](ctx, obj, js.Call{Expr: "Array.from(document.querySelectorAll(arguments[0]))", Args: []any{selector}})
}

func (obj *Page) Close() error {
	obj.closeOnce.Do(func() {
		obj.mu.Lock()
		exposed := maps.Values(obj.exposed)
		obj.mu.Unlock()
		for _, fn := range exposed {
			fn.stop()
		}
		if obj.client.webSock.Err() == nil {
			obj.closeErr = multierr.Append(obj.closeErr, obj.client.session.TargetCloseTarget(obj.client.ctx, obj.targetId))
		}
		obj.cnl(errors.New("page closed"))
		for _, closeStream := range obj.streams {
			closeStream()
		}
	})
	return obj.closeErr
}
