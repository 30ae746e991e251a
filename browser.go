package cdpjs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gospider007/cdpjs/cdp"
	"github.com/tidwall/gjson"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
)

type ClientOption struct {
	Host           string        //default 127.0.0.1
	Port           int           //default 9222
	WsURL          string        //browser websocket url, skips discovery
	DialTimeout    time.Duration //default 30s, bounds discovery retries and the websocket handshake
	CommandTimeout time.Duration //default 60s
	ReadLimit      int64         //default 1GiB
	MailboxSize    int
	Logger         *zap.Logger
	Transport      cdp.Transport //already connected transport, skips discovery and dialing
}

// Client is a connection to a running browser.
type Client struct {
	option  ClientOption
	addr    string
	ctx     context.Context
	cnl     context.CancelCauseFunc
	webSock *cdp.WebSock
	session *cdp.Session
	logger  *zap.Logger

	mu       sync.Mutex
	contexts map[cdp.BrowserContextId]*BrowserContext
}

func (obj *ClientOption) fill() {
	if obj.Host == "" {
		obj.Host = "127.0.0.1"
	}
	if obj.Port == 0 {
		obj.Port = 9222
	}
	if obj.DialTimeout <= 0 {
		obj.DialTimeout = time.Second * 30
	}
	if obj.CommandTimeout <= 0 {
		obj.CommandTimeout = time.Second * 60
	}
	if obj.ReadLimit <= 0 {
		obj.ReadLimit = 1 << 30
	}
	if obj.Logger == nil {
		obj.Logger = zap.NewNop()
	}
}

// NewClient connects to the browser listening on Host:Port, or to WsURL when set.
func NewClient(preCtx context.Context, options ...ClientOption) (*Client, error) {
	var option ClientOption
	if len(options) > 0 {
		option = options[0]
	}
	if preCtx == nil {
		preCtx = context.TODO()
	}
	option.fill()
	client := &Client{
		option:   option,
		addr:     net.JoinHostPort(option.Host, strconv.Itoa(option.Port)),
		logger:   option.Logger,
		contexts: make(map[cdp.BrowserContextId]*BrowserContext),
	}
	client.ctx, client.cnl = context.WithCancelCause(preCtx)
	transport := option.Transport
	if transport == nil {
		dialCtx, cnl := context.WithTimeout(preCtx, option.DialTimeout)
		defer cnl()
		wsUrl := option.WsURL
		if wsUrl == "" {
			var err error
			if wsUrl, err = discoverWsURL(dialCtx, client.addr, client.logger); err != nil {
				client.cnl(err)
				return nil, err
			}
		}
		var err error
		if transport, err = cdp.DialWebSocket(dialCtx, wsUrl, option.ReadLimit); err != nil {
			client.cnl(err)
			return nil, fmt.Errorf("dial %s: %w", wsUrl, err)
		}
		client.logger.Debug("browser connected", zap.String("wsUrl", wsUrl))
	}
	client.webSock = cdp.NewWebSock(client.ctx, transport, cdp.WebSockOption{
		CommandTimeout: option.CommandTimeout,
		MailboxSize:    option.MailboxSize,
		Logger:         client.logger,
	})
	client.session = client.webSock.Session("", "")
	return client, nil
}

// discoverWsURL reads webSocketDebuggerUrl from /json/version, retrying until
// the browser answers or ctx expires.
func discoverWsURL(ctx context.Context, addr string, logger *zap.Logger) (string, error) {
	operation := func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/json/version", nil)
		if err != nil {
			return "", backoff.Permanent(err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("/json/version: status %d", resp.StatusCode)
		}
		wsUrl := gjson.GetBytes(body, "webSocketDebuggerUrl").String()
		if wsUrl == "" {
			return "", backoff.Permanent(errors.New("not found webSocketDebuggerUrl"))
		}
		return wsUrl, nil
	}
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(time.Millisecond*100),
		backoff.WithMaxInterval(time.Second*2),
		backoff.WithMaxElapsedTime(0),
	)
	wsUrl, err := backoff.RetryNotifyWithData(operation, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		logger.Debug("browser not ready", zap.String("addr", addr), zap.Duration("wait", wait), zap.Error(err))
	})
	if err != nil {
		return "", fmt.Errorf("discover %s: %w", addr, err)
	}
	return wsUrl, nil
}

func (obj *Client) Addr() string {
	return obj.addr
}

// Session is the browser-level session. Target and browser context commands go through it.
func (obj *Client) Session() *cdp.Session {
	return obj.session
}
func (obj *Client) Logger() *zap.Logger {
	return obj.logger
}
func (obj *Client) Done() <-chan struct{} {
	return obj.webSock.Done()
}
func (obj *Client) Err() error {
	return obj.webSock.Err()
}

func (obj *Client) Targets(ctx context.Context) ([]cdp.TargetInfo, error) {
	return obj.session.TargetGetTargets(ctx)
}

// NewPage opens a page in the default browser context, or in option.BrowserContextId.
func (obj *Client) NewPage(preCtx context.Context, options ...PageOption) (*Page, error) {
	var option PageOption
	if len(options) > 0 {
		option = options[0]
	}
	if preCtx == nil {
		preCtx = obj.ctx
	}
	return newPage(preCtx, obj, option)
}

// Close disposes the browser contexts opened through this client and closes the connection.
func (obj *Client) Close() error {
	obj.mu.Lock()
	contexts := maps.Values(obj.contexts)
	obj.mu.Unlock()
	var err error
	for _, browserContext := range contexts {
		err = multierr.Append(err, browserContext.Close())
	}
	err = multierr.Append(err, obj.webSock.Close())
	obj.cnl(cdp.ErrClosed)
	return err
}
