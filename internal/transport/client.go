// Package transport carries protocol requests and responses as line-delimited
// JSON envelopes over a single TCP connection. It is the concrete collaborator
// behind protocol.Caller; the sync core never imports it directly.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrClosed is delivered to every pending continuation when the connection
// goes away before its response arrives.
var ErrClosed = errors.New("transport: connection closed")

type envelope struct {
	ID     string          `json:"id"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type pendingCall struct {
	result any
	done   func(error)
}

// Client is the request/response side of the wire. Continuations run one at a
// time on the read goroutine, which gives the session the single logical
// delivery thread it expects.
type Client struct {
	conn net.Conn
	enc  *json.Encoder
	log  *zap.Logger

	mu      sync.Mutex
	pending map[string]pendingCall
	closed  bool
}

// Dial connects to a dbscoped agent.
func Dial(addr string, log *zap.Logger) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial agent: %w", err)
	}
	c := NewClient(conn, log)
	return c, nil
}

// NewClient wraps an established connection. Exposed separately so tests can
// drive the client over an in-memory pipe.
func NewClient(conn net.Conn, log *zap.Logger) *Client {
	c := &Client{
		conn:    conn,
		enc:     json.NewEncoder(conn),
		log:     log,
		pending: make(map[string]pendingCall),
	}
	go c.readLoop()
	return c
}

// Call implements protocol.Caller. The request is written synchronously; the
// response is delivered to done from the read goroutine.
func (c *Client) Call(method string, params any, result any, done func(error)) {
	raw, err := json.Marshal(params)
	if err != nil {
		done(fmt.Errorf("encode %s params: %w", method, err))
		return
	}

	id := uuid.New().String()
	env := envelope{ID: id, Method: method, Params: raw}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		done(ErrClosed)
		return
	}
	c.pending[id] = pendingCall{result: result, done: done}
	err = c.enc.Encode(env)
	if err != nil {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if err != nil {
		done(fmt.Errorf("send %s: %w", method, err))
	}
}

func (c *Client) readLoop() {
	dec := json.NewDecoder(c.conn)
	for {
		var env envelope
		if err := dec.Decode(&env); err != nil {
			c.failAll()
			return
		}

		c.mu.Lock()
		call, ok := c.pending[env.ID]
		delete(c.pending, env.ID)
		c.mu.Unlock()

		if !ok {
			c.log.Warn("response for unknown request", zap.String("id", env.ID))
			continue
		}

		if env.Error != "" {
			call.done(errors.New(env.Error))
			continue
		}
		if call.result != nil {
			if err := json.Unmarshal(env.Result, call.result); err != nil {
				call.done(fmt.Errorf("decode response: %w", err))
				continue
			}
		}
		call.done(nil)
	}
}

func (c *Client) failAll() {
	c.mu.Lock()
	calls := c.pending
	c.pending = make(map[string]pendingCall)
	c.closed = true
	c.mu.Unlock()

	for _, call := range calls {
		call.done(ErrClosed)
	}
}

// Close tears down the connection; pending continuations fail with ErrClosed.
func (c *Client) Close() error {
	return c.conn.Close()
}
