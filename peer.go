// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// peerWriteTimeout bounds how long one outbound frame may block a peer's
// send path before the peer is treated as gone.
const peerWriteTimeout = 30 * time.Second

// Peer is one connected remote endpoint. Implementations must be comparable
// by connection identity (bus sets key on the Peer value) and Send must be
// safe for concurrent use: a request response and a signal notification
// aimed at the same peer may race, and each frame must reach the wire whole.
type Peer interface {
	// ID identifies the peer for logging and equality across bus sets.
	ID() string

	// Send delivers one complete message frame to the peer.
	Send(data []byte) error
}

// wsPeer wraps one server-side websocket connection. The write mutex
// serializes all outbound frames; gorilla/websocket permits only a single
// concurrent writer per connection.
type wsPeer struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newWSPeer(conn *websocket.Conn) *wsPeer {
	return &wsPeer{id: uuid.NewString(), conn: conn}
}

func (p *wsPeer) ID() string { return p.id }

func (p *wsPeer) Send(data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(peerWriteTimeout))
	return p.conn.WriteMessage(websocket.TextMessage, data)
}
