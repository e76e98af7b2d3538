// Package telemetryserver exposes a buffer fabric's live occupancy over
// HTTP and WebSocket, for operators who want a dashboard instead of
// grepping logs.
package telemetryserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/net/netutil"

	"github.com/relaydata/bufferfabric/pkg/fabric"
	"github.com/relaydata/bufferfabric/pkg/logging"
)

var log = logging.GetGlobalLogger().WithComponent("telemetryserver")

// SnapshotSource is anything that can report current fabric occupancy; a
// *fabric.BufferManager satisfies it directly.
type SnapshotSource interface {
	Snapshot() fabric.Snapshot
}

// Server hosts a JSON snapshot endpoint plus a WebSocket that pushes the
// same snapshot on every tick. MaxConnections bounds how many concurrent
// admin clients can be attached, independent of the fabric's own
// MAX_CONCURRENT_STREAMS.
type Server struct {
	source SnapshotSource
	tick   time.Duration

	upgrader websocket.Upgrader

	wsMu      sync.RWMutex
	wsClients map[*websocket.Conn]chan fabric.Snapshot

	maxConnections int

	httpServer *http.Server
	listener   net.Listener

	cancel context.CancelFunc
	done   chan struct{}
}

// Config configures a Server.
type Config struct {
	Addr           string
	TickInterval   time.Duration
	MaxConnections int
}

// New builds a Server around source. It does not start listening; call
// ListenAndServe.
func New(source SnapshotSource, cfg Config) *Server {
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = 5 * time.Second
	}
	maxConn := cfg.MaxConnections
	if maxConn <= 0 {
		maxConn = 64
	}

	s := &Server{
		source:         source,
		tick:           tick,
		maxConnections: maxConn,
		wsClients:      make(map[*websocket.Conn]chan fabric.Snapshot),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/buffers", s.handleSnapshot).Methods("GET")
	router.HandleFunc("/api/ws", s.handleWebSocket).Methods("GET")
	s.httpServer = &http.Server{Addr: cfg.Addr, Handler: router}

	return s
}

// ListenAndServe binds the configured address, wraps the listener with
// netutil.LimitListener to cap concurrent admin connections, and starts
// both the HTTP server and the broadcast loop. It blocks until the
// listener closes.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.listener = netutil.LimitListener(ln, s.maxConnections)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.broadcastLoop(ctx)

	log.Infof("telemetry server listening on %s (max %d connections)", s.httpServer.Addr, s.maxConnections)
	err = s.httpServer.Serve(s.listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the broadcast loop and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.source.Snapshot())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("websocket upgrade failed: %v", err)
		return
	}

	clientChan := make(chan fabric.Snapshot, 8)
	s.wsMu.Lock()
	s.wsClients[conn] = clientChan
	s.wsMu.Unlock()

	defer func() {
		s.wsMu.Lock()
		delete(s.wsClients, conn)
		s.wsMu.Unlock()
		close(clientChan)
		conn.Close()
	}()

	clientChan <- s.source.Snapshot()

	go func() {
		for snap := range clientChan {
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := s.source.Snapshot()
			s.wsMu.RLock()
			for _, ch := range s.wsClients {
				select {
				case ch <- snap:
				default:
				}
			}
			s.wsMu.RUnlock()
		}
	}
}
