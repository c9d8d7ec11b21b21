// Package server exposes the orchestrator's read/control HTTP API
// (SPEC_FULL §8 supplemental): session/action/memory/drift/checkpoint
// inspection plus a /stream websocket relay of the in-process event bus.
// This is the data source a CLI front-end or dashboard would sit in front
// of, not the dashboard itself (spec.md's Non-goals).
package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/agentfleet/pilot/internal/actionqueue"
	"github.com/agentfleet/pilot/internal/drift"
	"github.com/agentfleet/pilot/internal/events"
	"github.com/agentfleet/pilot/internal/memory"
	"github.com/agentfleet/pilot/internal/pressure"
	"github.com/agentfleet/pilot/internal/registry"
)

// Server wires the control API's dependencies. Every field is a pointer to
// an already-running component; Server never owns their lifecycle.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	hub        *hub

	Registry *registry.Registry
	Queue    *actionqueue.Queue
	Memory   *memory.Store
	Drift    *drift.Store
	Pressure *pressure.Store
	Bus      *events.Bus

	// ShutdownChan receives a value whenever /api/shutdown is hit, so the
	// daemon's main select loop can treat it the same as SIGTERM.
	ShutdownChan chan struct{}
}

// New builds a Server with routes registered; call ListenAndServe to start
// accepting connections.
func New(reg *registry.Registry, q *actionqueue.Queue, mem *memory.Store, dr *drift.Store, pr *pressure.Store, bus *events.Bus) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		hub:          newHub(),
		Registry:     reg,
		Queue:        q,
		Memory:       mem,
		Drift:        dr,
		Pressure:     pr,
		Bus:          bus,
		ShutdownChan: make(chan struct{}, 1),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(securityHeadersMiddleware)

	api := s.router.PathPrefix("/").Subrouter()
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}/release", s.handleReleaseSession).Methods("POST")
	api.HandleFunc("/actions", s.handleListActions).Methods("GET")
	api.HandleFunc("/actions/{id}/requeue", s.handleRequeueAction).Methods("POST")
	api.HandleFunc("/memory/{channel}", s.handleReadChannel).Methods("GET")
	api.HandleFunc("/drift/{session}", s.handleGetDrift).Methods("GET")
	api.HandleFunc("/checkpoints/{session}", s.handleGetCheckpoint).Methods("GET")
	api.HandleFunc("/stream", s.handleStream)
	api.HandleFunc("/api/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/api/shutdown", s.handleShutdown).Methods("POST")
}

// handleHealth backs instance.HealthCheck's pre-flight bind probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// handleShutdown backs instance.SendShutdownRequest, letting `pilotd -stop`
// request a graceful shutdown over the control API instead of a signal.
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "shutting down"})
	select {
	case s.ShutdownChan <- struct{}{}:
	default:
	}
}

// ListenAndServe starts the HTTP server and the hub's broadcast loop, and
// relays the bus's "all" subscription into every attached websocket client
// until the bus closes that subscription's channel. Close stops only the
// HTTP server; it does not end the relay.
func (s *Server) ListenAndServe(addr string) error {
	go s.hub.Run()
	if s.Bus != nil {
		go s.relayBusToHub()
	}
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	log.Printf("[SERVER] listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Close shuts the HTTP server down.
func (s *Server) Close() error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Close()
}

func (s *Server) relayBusToHub() {
	ch := s.Bus.Subscribe("all", nil)
	defer s.Bus.Unsubscribe("all", ch)
	for ev := range ch {
		s.hub.BroadcastJSON(ev)
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &wsClient{hub: s.hub, conn: conn, send: make(chan []byte, hubBufferSize)}
	s.hub.register <- client
	go client.writePump()
	go client.readPump()
}

func respondJSON(w http.ResponseWriter, v interface{}) {
	writeJSON(w, http.StatusOK, v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
