// Package server exposes the external surfaces of the fleet system: the
// run-creation HTTP API, the optimizer endpoint, and a websocket stream of
// snapshot events for dashboards. It is a boundary layer only; all world
// state lives behind the bus.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/fleetsim/fleetsim/bus"
	"github.com/fleetsim/fleetsim/ga"
	"github.com/fleetsim/fleetsim/sim"
)

const (
	// Time allowed to write a message to a websocket peer.
	writeWait = 1 * time.Second
	// Send pings with this period; must be less than the read deadline.
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{}

// RunStatus is the API view of one run.
type RunStatus struct {
	RunID        string       `json:"run_id"`
	Mode         string       `json:"mode"`
	Seed         int64        `json:"seed"`
	Scale        string       `json:"scale"`
	State        string       `json:"state"` // running, completed, failed
	Metrics      *sim.Metrics `json:"metrics,omitempty"`
	ScenarioHash string       `json:"scenario_hash,omitempty"`
	Error        string       `json:"error,omitempty"`
}

// Server carries the HTTP surface and a registry of runs it has created,
// kept current by consuming run.completed events.
type Server struct {
	addr     string
	exchange *bus.Exchange
	gaCfg    ga.Config

	runSeq atomic.Int64
	mu     sync.Mutex
	runs   map[string]*RunStatus
}

// New builds a server publishing to and consuming from the given exchange.
func New(addr string, x *bus.Exchange, gaCfg ga.Config) *Server {
	return &Server{
		addr:     addr,
		exchange: x,
		gaCfg:    gaCfg,
		runs:     make(map[string]*RunStatus),
	}
}

// Run serves HTTP until the context ends, and keeps the run registry
// current from the bus.
func (s *Server) Run(ctx context.Context) error {
	completedQ := s.exchange.Bind("api-server", bus.RunCompleted)
	go s.consumeCompleted(ctx, completedQ)

	r := mux.NewRouter()
	r.HandleFunc("/api/runs", s.handleCreateRun).Methods(http.MethodPost)
	r.HandleFunc("/api/runs/{id}", s.handleGetRun).Methods(http.MethodGet)
	r.HandleFunc("/api/optimize", s.handleOptimize).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.handleWebsocket)

	srv := &http.Server{Addr: s.addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logrus.Infof("api listening on %s", s.addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func (s *Server) consumeCompleted(ctx context.Context, q *bus.Queue) {
	for {
		env, ok := q.Next(ctx)
		if !ok {
			return
		}
		var p sim.RunCompletedPayload
		if err := env.Decode(&p); err != nil {
			bus.DropMalformed(q, env, err)
			continue
		}
		s.mu.Lock()
		if st, ok := s.runs[p.RunID]; ok {
			if p.Failed {
				st.State = "failed"
				st.Error = p.Error
			} else {
				st.State = "completed"
				metrics := p.Metrics
				st.Metrics = &metrics
				st.ScenarioHash = p.ScenarioHash
			}
		}
		s.mu.Unlock()
	}
}

type createRunRequest struct {
	Mode   string `json:"mode"`
	Seed   int64  `json:"seed"`
	Scale  string `json:"scale"`
	Robots int    `json:"robots,omitempty"`
	Jobs   int    `json:"jobs,omitempty"`
}

// handleCreateRun validates the request, registers the run, and injects
// run.started on the bus. The run manager takes it from there.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	runID := fmt.Sprintf("run-%d", s.runSeq.Add(1))
	runCtx, err := sim.NewRunContext(runID, sim.Mode(req.Mode), req.Seed, sim.Scale(req.Scale), req.Robots, req.Jobs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.runs[runID] = &RunStatus{
		RunID: runID, Mode: req.Mode, Seed: req.Seed, Scale: req.Scale, State: "running",
	}
	s.mu.Unlock()

	meta := bus.RunMeta{RunID: runID, Mode: req.Mode, Seed: req.Seed, Scale: req.Scale}
	s.exchange.Publish(bus.NewEnvelope(bus.RunStarted, meta, 0, sim.RunStartedPayload{
		RunID:  runID,
		Mode:   req.Mode,
		Seed:   req.Seed,
		Scale:  req.Scale,
		Robots: runCtx.Robots,
		Jobs:   runCtx.Jobs,
	}))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"run_id": runID})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st, ok := s.runs[mux.Vars(r)["id"]]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown run", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}

// handleOptimize exposes the GA planner with the dispatcher's
// request/response schema.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req ga.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp := ga.Optimize(req, s.gaCfg)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleWebsocket streams snapshot.tick and run.completed envelopes to a
// dashboard client. Each client gets its own lossy queue on the exchange,
// so a slow client loses its own oldest envelopes and never blocks
// publishers.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Warnf("websocket upgrade: %v", err)
		return
	}
	defer ws.Close()

	q := s.exchange.BindLossy("ws:"+r.RemoteAddr, bus.SnapshotTick, bus.RunCompleted)
	defer s.exchange.Unbind(q)
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case env := <-q.C():
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(env); err != nil {
				logrus.Debugf("websocket write: %v", err)
				return
			}
		case <-ping.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
