// Package wsserver accepts browser client connections (component F) on a
// chosen or persisted port and exposes raw connection/message/close events
// to the controller. It is a pure transport: frame encoding lives in
// frames.go and the connect-path protocol in protocol.go.
package wsserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/hotwatch/internal/interfaces"
)

// Server is a hub-pattern WebSocket listener adapted from the
// register/unregister/broadcast channel idiom used elsewhere in this
// codebase for connection management, here serving the hot-reload
// protocol's single upgrade path plus a trivial landing page.
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	clientsMu sync.RWMutex
	clients   map[*conn]struct{}

	events interfaces.WSServerEvents

	shutdownOnce sync.Once
}

// New constructs an unstarted Server. Listen supplies the event callbacks.
func New() *Server {
	return &Server{clients: make(map[*conn]struct{})}
}

var _ interfaces.WSServer = (*Server)(nil)

// Listen implements interfaces.WSServer. preferredPort of 0 means "any
// free port"; a nonzero port that is already bound surfaces as a
// PortConflict via events.OnServerError before Listen returns the error.
func (s *Server) Listen(ctx context.Context, preferredPort int, events interfaces.WSServerEvents) (int, error) {
	s.events = events

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", preferredPort))
	if err != nil {
		conflict := isAddrInUse(err)
		if s.events.OnServerError != nil {
			s.events.OnServerError(conflict, err)
		}
		return 0, err
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc(URLPrefix, s.handleUpgrade)
	mux.HandleFunc("/", s.handleLanding)

	s.httpServer = &http.Server{Handler: mux}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if s.events.OnServerError != nil {
				s.events.OnServerError(false, err)
			}
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	return port, nil
}

func isAddrInUse(err error) bool {
	return strings.Contains(err.Error(), "address already in use")
}

// handleLanding serves the trivial landing page for non-upgrade requests,
// realizing the "one logical port serves both plaintext and upgrade"
// requirement without any protocol sniffing trick.
func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<!doctype html><html><body><p>hotwatch is running.</p></body></html>")
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		if s.events.OnConnectionRejected != nil {
			s.events.OnConnectionRejected(origin, "upgrade failed: "+err.Error())
		}
		return
	}

	cn := &conn{c: c, origin: origin}
	s.clientsMu.Lock()
	s.clients[cn] = struct{}{}
	s.clientsMu.Unlock()

	if s.events.OnConnected != nil {
		s.events.OnConnected(cn, r.URL.String())
	}

	go s.readLoop(cn)
}

func (s *Server) readLoop(cn *conn) {
	defer s.drop(cn)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 24*time.Hour)
		_, data, err := cn.c.Read(ctx)
		cancel()
		if err != nil {
			return
		}
		if s.events.OnMessage != nil {
			s.events.OnMessage(cn, data)
		}
	}
}

func (s *Server) drop(cn *conn) {
	s.clientsMu.Lock()
	_, existed := s.clients[cn]
	delete(s.clients, cn)
	s.clientsMu.Unlock()

	if existed {
		_ = cn.c.Close(websocket.StatusNormalClosure, "")
		if s.events.OnClosed != nil {
			s.events.OnClosed(cn)
		}
	}
}

// Close implements interfaces.WSServer.
func (s *Server) Close() error {
	var err error
	s.shutdownOnce.Do(func() {
		s.clientsMu.Lock()
		for cn := range s.clients {
			_ = cn.c.Close(websocket.StatusServiceRestart, "server shutting down")
		}
		s.clients = make(map[*conn]struct{})
		s.clientsMu.Unlock()

		if s.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = s.httpServer.Shutdown(ctx)
		}
	})
	return err
}

// conn adapts *websocket.Conn to interfaces.WSConnection.
type conn struct {
	c      *websocket.Conn
	origin string
}

var _ interfaces.WSConnection = (*conn)(nil)

func (cn *conn) Send(ctx context.Context, frame []byte) error {
	return cn.c.Write(ctx, websocket.MessageText, frame)
}

func (cn *conn) Close() error {
	return cn.c.Close(websocket.StatusNormalClosure, "")
}

func (cn *conn) RemoteOrigin() string { return cn.origin }
