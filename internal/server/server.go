// Package server exposes a local HTTP endpoint for watching a run: the
// current machine state, the assembled context document, and a websocket
// stream of loop events. It is read-only; nothing here mutates the run.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sebyx07/claude-task-master/internal/logging"
	"github.com/sebyx07/claude-task-master/internal/loop"
	"github.com/sebyx07/claude-task-master/internal/state"
)

// Server serves run status over HTTP and websocket.
type Server struct {
	port   int
	store  *state.Store
	logger *logging.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	clients  map[*websocket.Conn]struct{}
	started  bool
}

var upgrader = websocket.Upgrader{
	// local monitoring tool, no cross-origin concerns
	CheckOrigin: func(*http.Request) bool { return true },
}

// New creates a Server for the given store listening on port. Port 0 picks
// a free port.
func New(store *state.Store, port int) *Server {
	return &Server{
		port:    port,
		store:   store,
		logger:  logging.With("component", "server"),
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Start listens and serves until Stop is called or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.started = true
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = s.Stop()
	}()

	s.logger.Info("status server listening", "addr", listener.Addr().String())
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Stop shuts the server down and closes every websocket client.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.server == nil {
		return nil
	}
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.started = false
	return nil
}

// ListenAddr returns the bound address, or "" before Start.
func (s *Server) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/context", s.handleContext)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Broadcast pushes a loop event to every connected client. Safe to use as
// the loop's OnEvent hook.
func (s *Server) Broadcast(ev loop.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteJSON(ev); err != nil {
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

// ClientCount reports the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.LoadState()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if st == nil {
		http.Error(w, "no state", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	fmt.Fprint(w, s.store.BuildContext())
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	// drain reads so pings and close frames are processed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.mu.Lock()
				delete(s.clients, conn)
				s.mu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}
