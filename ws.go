// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrClosed      = errors.New("wsrpc: connection closed")
	ErrInvalidResp = errors.New("wsrpc: invalid response")
)

// clientRequest is one outgoing JSON-RPC 2.0 call or notification.
type clientRequest struct {
	Version string           `json:"jsonrpc"`
	Method  string           `json:"method"`
	Params  *json.RawMessage `json:"params,omitempty"`
	ID      *uint64          `json:"id,omitempty"`
}

// clientMessage is one incoming frame: a response when ID is set, a signal
// notification when Method is set without an ID.
type clientMessage struct {
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *json2.Error    `json:"error,omitempty"`
	ID      *uint64         `json:"id,omitempty"`
}

type callResult struct {
	data json.RawMessage
	err  error
}

// wsClient implements Client over a websocket connection. Responses are
// correlated to in-flight calls by request id; notification frames fan out
// to the configured NotifyHandler.
type wsClient struct {
	conn     *websocket.Conn
	codec    Codec
	onNotify NotifyHandler
	log      *zap.Logger

	writeMu  sync.Mutex
	pending  sync.Map // request id -> chan callResult
	nextID   atomic.Uint64
	closed   atomic.Bool
	readDone chan struct{}
}

// dialWS connects a websocket client. Bare host:port addresses are
// interpreted as ws://host:port/.
func dialWS(ctx context.Context, addr string, o *dialOptions) (Client, error) {
	url := addr
	if !strings.Contains(url, "://") {
		url = "ws://" + url + "/"
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("wsrpc dial %s: %w", url, err)
	}

	c := &wsClient{
		conn:     conn,
		codec:    o.codec,
		onNotify: o.onNotify,
		log:      o.log,
		readDone: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *wsClient) Call(ctx context.Context, method string, args, reply interface{}) error {
	params, err := c.encodeParams(args)
	if err != nil {
		return err
	}

	id := c.nextID.Add(1)
	respCh := make(chan callResult, 1)
	c.pending.Store(id, respCh)
	defer c.pending.Delete(id)

	if err := c.send(clientRequest{Version: Version, Method: method, Params: params, ID: &id}); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-respCh:
		if res.err != nil {
			return res.err
		}
		if reply != nil && len(res.data) > 0 {
			if c.codec != nil {
				return c.codec.Decode(res.data, reply)
			}
			return defaultCodec.Decode(res.data, reply)
		}
		return nil
	case <-c.readDone:
		return ErrClosed
	}
}

func (c *wsClient) CallRaw(ctx context.Context, method string, params []byte) ([]byte, error) {
	var raw *json.RawMessage
	if len(params) > 0 {
		msg := json.RawMessage(params)
		raw = &msg
	}

	id := c.nextID.Add(1)
	respCh := make(chan callResult, 1)
	c.pending.Store(id, respCh)
	defer c.pending.Delete(id)

	if err := c.send(clientRequest{Version: Version, Method: method, Params: raw, ID: &id}); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-respCh:
		return res.data, res.err
	case <-c.readDone:
		return nil, ErrClosed
	}
}

func (c *wsClient) Notify(ctx context.Context, method string, args interface{}) error {
	params, err := c.encodeParams(args)
	if err != nil {
		return err
	}
	return c.send(clientRequest{Version: Version, Method: method, Params: params})
}

func (c *wsClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}

func (c *wsClient) encodeParams(args interface{}) (*json.RawMessage, error) {
	if args == nil {
		return nil, nil
	}
	var (
		data []byte
		err  error
	)
	if c.codec != nil {
		data, err = c.codec.Encode(args)
	} else {
		data, err = defaultCodec.Encode(args)
	}
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	raw := json.RawMessage(data)
	return &raw, nil
}

func (c *wsClient) send(req clientRequest) error {
	if c.closed.Load() {
		return ErrClosed
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(peerWriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("wsrpc write: %w", err)
	}
	return nil
}

func (c *wsClient) readLoop() {
	defer close(c.readDone)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("discarding unparsable frame", zap.Error(err))
			continue
		}

		// Signal notification pushed by the server.
		if msg.ID == nil {
			if msg.Method != "" && c.onNotify != nil {
				c.onNotify(msg.Method, msg.Params)
			}
			continue
		}

		ch, ok := c.pending.Load(*msg.ID)
		if !ok {
			continue
		}
		respCh := ch.(chan callResult)
		switch {
		case msg.Error != nil:
			respCh <- callResult{err: msg.Error}
		case msg.Method == "":
			respCh <- callResult{data: msg.Result}
		default:
			respCh <- callResult{err: ErrInvalidResp}
		}
	}
}
