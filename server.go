// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// wsServer implements Server over websocket connections. Upgrade requests
// become peers wired into the registry's buses; any other HTTP request is
// handed to the static file handler when one is configured.
type wsServer struct {
	registry *Registry
	listener net.Listener
	http     *http.Server
	upgrader websocket.Upgrader
	static   http.Handler
	log      *zap.Logger

	conns  sync.Map // *wsPeer -> *websocket.Conn
	closed atomic.Bool
	done   chan struct{} // closed by shutdown, releases the Serve watcher
}

// listenWS creates a websocket server with a fresh aggregator registry.
func listenWS(addr string, o *serverOptions) (Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &wsServer{
		registry: NewRegistry(WithRegistryLogger(o.log)),
		listener: listener,
		log:      o.log,
		done:     make(chan struct{}),
		upgrader: websocket.Upgrader{
			// The bus is same-host tooling and browser frontends; origin
			// policy is the deployment's concern.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	if o.staticRoot != "" {
		static, err := newStaticHandler(o.staticRoot, o.log)
		if err != nil {
			listener.Close()
			return nil, err
		}
		s.static = static
	}
	s.http = &http.Server{Handler: s}
	return s, nil
}

func (s *wsServer) RegisterInterface(iface *Interface) error {
	return s.registry.RegisterInterface(iface)
}

func (s *wsServer) Registry() *Registry {
	return s.registry
}

// Serve blocks until the context is cancelled or the listener fails.
func (s *wsServer) Serve(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			s.shutdown()
		case <-s.done:
		}
	}()

	err := s.http.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) || s.closed.Load() {
		return nil
	}
	return err
}

func (s *wsServer) Close() error {
	s.shutdown()
	return nil
}

func (s *wsServer) shutdown() {
	if s.closed.Swap(true) {
		return
	}
	close(s.done)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.http.Shutdown(ctx)

	// Shutdown does not reach hijacked websocket connections.
	s.conns.Range(func(key, value any) bool {
		value.(*websocket.Conn).Close()
		return true
	})
}

func (s *wsServer) Addr() string {
	return s.listener.Addr().String()
}

func (s *wsServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.handleWS(w, r)
		return
	}
	if s.static != nil {
		s.static.ServeHTTP(w, r)
		return
	}
	http.NotFound(w, r)
}

// handleWS runs one connection: subscribe the peer to every bus, feed each
// inbound frame through dispatch, and unsubscribe on the way out. Receives
// on a single connection are sequential; connections run in parallel.
func (s *wsServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	peer := newWSPeer(conn)
	s.conns.Store(peer, conn)
	s.log.Info("peer connected",
		zap.String("peer", peer.ID()),
		zap.String("remote", conn.RemoteAddr().String()))

	s.registry.AddBus(peer)
	defer func() {
		s.registry.RemoveBus(peer)
		s.conns.Delete(peer)
		conn.Close()
		s.log.Info("peer disconnected", zap.String("peer", peer.ID()))
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("peer read failed", zap.String("peer", peer.ID()), zap.Error(err))
			}
			return
		}

		resp := s.registry.HandleMessage(data)
		if resp == nil {
			continue
		}
		if err := peer.Send(resp); err != nil {
			s.log.Warn("peer response send failed", zap.String("peer", peer.ID()), zap.Error(err))
			return
		}
	}
}
