package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var ErrNoConnection = errors.New("gateway: no connection")

const (
	minBackoff   = time.Second
	maxBackoff   = 30 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second
)

type DialContextFunc func(ctx context.Context, network, addr string) (net.Conn, error)

type InvokeHandler func(ctx context.Context, req InvokeRequestParams) (interface{}, error)

// wsConn is the subset of *websocket.Conn the client uses.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (int, []byte, error)
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

type Client struct {
	url        string
	header     http.Header
	dialer     DialContextFunc
	logger     zerolog.Logger
	registerMu sync.Mutex
	register   NodeRegistration
	onInvoke   InvokeHandler
	connMu     sync.Mutex
	conn       wsConn
	writeMu    sync.Mutex
	requestSeq atomic.Uint64
}

type Config struct {
	URL      string
	Header   http.Header
	Dialer   DialContextFunc
	Logger   zerolog.Logger
	Register NodeRegistration
	OnInvoke InvokeHandler
}

func New(cfg Config) *Client {
	return &Client{
		url:      cfg.URL,
		header:   cfg.Header,
		dialer:   cfg.Dialer,
		logger:   cfg.Logger,
		register: cfg.Register,
		onInvoke: cfg.OnInvoke,
	}
}

func (c *Client) Run(ctx context.Context) error {
	if c.dialer == nil {
		return errors.New("gateway: dialer required")
	}
	if c.onInvoke == nil {
		return errors.New("gateway: invoke handler required")
	}
	backoff := minBackoff
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := c.connect(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Dur("backoff", backoff).Msg("gateway connect failed")
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = minBackoff
		c.setConn(conn)
		if err := c.registerNode(ctx); err != nil {
			c.logger.Error().Err(err).Msg("gateway registration failed")
			c.closeConn()
			continue
		}
		c.logger.Info().Str("url", c.url).Msg("gateway connected")
		if err := c.readLoop(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("gateway read loop ended")
			c.closeConn()
			continue
		}
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func (c *Client) SendEvent(ctx context.Context, method string, params interface{}) error {
	payload, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("gateway: encode %s: %w", method, err)
	}
	return c.send(ctx, Envelope{Method: method, Params: payload})
}

func (c *Client) send(ctx context.Context, env Envelope) error {
	conn := c.getConn()
	if conn == nil {
		return ErrNoConnection
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) connect(ctx context.Context) (wsConn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
		NetDialContext:   c.dialer,
	}
	conn, _, err := dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(8 << 20)
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	return conn, nil
}

// SetTouchTolerance updates the advertised tolerance for future registrations
// and, when connected, tells the gateway right away. ErrNoConnection means the
// new value will go out with the next registration.
func (c *Client) SetTouchTolerance(ctx context.Context, tolerance int) error {
	info := TouchInfo{Tolerance: tolerance}
	c.registerMu.Lock()
	c.register.Touch = &info
	c.registerMu.Unlock()
	return c.SendEvent(ctx, MethodTouchUpdated, info)
}

func (c *Client) registerNode(ctx context.Context) error {
	c.registerMu.Lock()
	params, err := json.Marshal(c.register)
	c.registerMu.Unlock()
	if err != nil {
		return err
	}
	idRaw := json.RawMessage(fmt.Sprintf("%q", c.nextID()))
	return c.send(ctx, Envelope{
		ID:     &idRaw,
		Method: MethodRegister,
		Params: params,
	})
}

func (c *Client) readLoop(ctx context.Context) error {
	conn := c.getConn()
	if conn == nil {
		return ErrNoConnection
	}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn().Err(err).Msg("gateway: invalid message")
			continue
		}
		switch {
		case env.Method == MethodInvokeRequest:
			if err := c.handleInvoke(ctx, env); err != nil {
				c.logger.Warn().Err(err).Msg("gateway: invoke handler error")
			}
		case env.Error != nil:
			c.logger.Warn().Int("code", env.Error.Code).Str("message", env.Error.Message).Msg("gateway: error response")
		case env.Method != "":
			c.logger.Debug().Str("method", env.Method).Msg("gateway: ignoring message")
		}
	}
}

func (c *Client) handleInvoke(ctx context.Context, env Envelope) error {
	var params InvokeRequestParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		return err
	}
	c.logger.Debug().Str("command", params.Command).Str("requestId", params.RequestID).Msg("gateway: invoke")
	result, err := c.onInvoke(ctx, params)
	if env.ID != nil {
		return c.respondRPC(ctx, env.ID, result, err)
	}
	return c.respondEvent(ctx, params.RequestID, result, err)
}

func (c *Client) respondRPC(ctx context.Context, id *json.RawMessage, result interface{}, err error) error {
	env := Envelope{ID: id}
	if err != nil {
		env.Error = &RPCError{Code: 1, Message: err.Error()}
		return c.send(ctx, env)
	}
	resultRaw, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		return marshalErr
	}
	env.Result = resultRaw
	return c.send(ctx, env)
}

func (c *Client) respondEvent(ctx context.Context, requestID string, result interface{}, err error) error {
	params := InvokeResultParams{RequestID: requestID}
	if err != nil {
		params.Error = &RPCError{Code: 1, Message: err.Error()}
	} else {
		params.Result = result
	}
	return c.SendEvent(ctx, MethodInvokeResult, params)
}

func (c *Client) nextID() string {
	return fmt.Sprintf("kobo-%d", c.requestSeq.Add(1))
}

func (c *Client) getConn() wsConn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

func (c *Client) setConn(conn wsConn) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.conn = conn
}

func (c *Client) closeConn() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}
