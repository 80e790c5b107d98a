// Package wsserver is the streaming wire-protocol adapter (spec.md §6):
// it relays a Runner's ProgressEvent stream to a WebSocket connection as
// JSON frames and dispatches inbound client control messages (resume,
// send_message) back into the run. Grounded on
// internal/daemon/http_server.go's pre-bind-then-serve listener pattern.
package wsserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"golang.org/x/net/websocket"

	"github.com/stubborncoder/vdocs/internal/events"
	"github.com/stubborncoder/vdocs/internal/verrors"
)

// Session binds one WebSocket connection to one Runner invocation's event
// stream and its inbound control-message dispatcher.
type Session struct {
	// Events is the Runner's bridged ProgressEvent stream.
	Events <-chan events.Event
	// OnClientMessage dispatches one raw inbound frame (resume/send_message/
	// cancel, adapter-defined) into the running Runner. A nil func means
	// the connection is read-only (Pipeline Runner has no inbound control).
	OnClientMessage func(raw []byte) error
	// Cancel signals the Runner to stop producing, called when the
	// connection drops.
	Cancel func()
}

// Relay drains sess.Events onto ws as JSON Frame messages, concurrently
// reading inbound client frames and dispatching them via
// sess.OnClientMessage, until the event stream closes (the Runner's
// sentinel) or the connection errors.
func Relay(ws *websocket.Conn, sess Session) error {
	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			var raw []byte
			if err := websocket.Message.Receive(ws, &raw); err != nil {
				return
			}
			if sess.OnClientMessage == nil {
				continue
			}
			if err := sess.OnClientMessage(raw); err != nil {
				slog.Warn("client control message rejected", "error", err)
			}
		}
	}()

	for {
		select {
		case evt, ok := <-sess.Events:
			if !ok {
				return nil
			}
			data, err := json.Marshal(events.ToFrame(evt))
			if err != nil {
				slog.Error("failed to marshal progress event frame", "error", err)
				continue
			}
			if err := websocket.Message.Send(ws, string(data)); err != nil {
				if sess.Cancel != nil {
					sess.Cancel()
				}
				return verrors.IOError("send progress frame", err)
			}
		case <-clientClosed:
			if sess.Cancel != nil {
				sess.Cancel()
			}
			return nil
		}
	}
}

// Server hosts the WebSocket endpoint plus a plain health endpoint on one
// pre-bound listener, following the teacher's bind-then-serve sequencing
// so startup failures surface before any handler registers.
type Server struct {
	addr       string
	mux        *http.ServeMux
	httpServer *http.Server
}

// NewServer constructs a Server that upgrades every /ws connection via
// handler.
func NewServer(addr string, handler websocket.Handler) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/ws", handler)
	return &Server{addr: addr, mux: mux, httpServer: &http.Server{Handler: mux}}
}

// Handle registers an additional route (e.g. /metrics) before Start is
// called.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// Start pre-binds addr (failing fast on a port conflict) and begins
// serving.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return verrors.DependencyErrorTerminal("bind websocket listener", err)
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("websocket server stopped unexpectedly", "error", err)
		}
	}()
	slog.Info("websocket server started", "addr", s.addr)
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return verrors.Internal("shutdown websocket server", err)
	}
	return nil
}
