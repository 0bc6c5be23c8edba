package control

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

// Receiver is the subset of dab.Processor the control surface drives.
// Defined here (rather than importing internal/dab) to keep control
// free of a dependency on the sync/demod internals it merely fronts.
type Receiver interface {
	Start()
	Stop()
	Reset()
	ResetMSC()
	SetScanMode(bool)
	CoarseCorrectorOn()
	CoarseCorrectorOff()
	StateString() string
}

// Handlers implements the control-surface HTTP endpoints of spec.md §6:
// start, stop, reset, setScanMode, coarseCorrectorOn/Off.
type Handlers struct {
	receiver Receiver
	hub      *Hub
}

// NewHandlers builds Handlers driving receiver and broadcasting through hub.
func NewHandlers(receiver Receiver, hub *Hub) *Handlers {
	return &Handlers{receiver: receiver, hub: hub}
}

func (h *Handlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.receiver.Start()
	writeOK(w)
}

func (h *Handlers) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.receiver.Stop()
	writeOK(w)
}

func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.receiver.Reset()
	writeOK(w)
}

func (h *Handlers) HandleResetMSC(w http.ResponseWriter, r *http.Request) {
	h.receiver.ResetMSC()
	writeOK(w)
}

func (h *Handlers) HandleScanMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("decode body: %v", err), http.StatusBadRequest)
		return
	}
	h.receiver.SetScanMode(body.Enabled)
	writeOK(w)
}

func (h *Handlers) HandleCoarseCorrectorOn(w http.ResponseWriter, r *http.Request) {
	h.receiver.CoarseCorrectorOn()
	writeOK(w)
}

func (h *Handlers) HandleCoarseCorrectorOff(w http.ResponseWriter, r *http.Request) {
	h.receiver.CoarseCorrectorOff()
	writeOK(w)
}

func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"state": h.receiver.StateString()})
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("control: encode response: %v", err)
	}
}

// Server is the HTTP server fronting the control and event surfaces.
// Grounded on the teacher's internal/server.Server: a mux built once at
// construction, routes registered up front, ListenAndServe on Start.
type Server struct {
	mux     *http.ServeMux
	handler *Handlers
	hub     *Hub
	addr    string
}

// NewServer builds a Server bound to addr, routing control endpoints to
// handler and the WebSocket endpoint to hub.
func NewServer(addr string, handler *Handlers, hub *Hub) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		handler: handler,
		hub:     hub,
		addr:    addr,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/start", s.handler.HandleStart)
	s.mux.HandleFunc("/api/stop", s.handler.HandleStop)
	s.mux.HandleFunc("/api/reset", s.handler.HandleReset)
	s.mux.HandleFunc("/api/reset-msc", s.handler.HandleResetMSC)
	s.mux.HandleFunc("/api/scan-mode", s.handler.HandleScanMode)
	s.mux.HandleFunc("/api/coarse-corrector/on", s.handler.HandleCoarseCorrectorOn)
	s.mux.HandleFunc("/api/coarse-corrector/off", s.handler.HandleCoarseCorrectorOff)
	s.mux.HandleFunc("/api/status", s.handler.HandleStatus)
	s.mux.HandleFunc("/ws", s.hub.HandleWebSocket)
}

// Start runs the HTTP server, blocking until it exits.
func (s *Server) Start() error {
	log.Printf("control: listening on %s", s.addr)
	return http.ListenAndServe(s.addr, s.mux)
}
