// Package httpapi exposes the controller's REST surface. Handlers are
// thin: decode the request, dispatch a command or query through the
// mediator, map the response to JSON. All control logic stays in the
// application layer.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fleetworks/wcs-go/internal/adapters/metrics"
	"github.com/fleetworks/wcs-go/internal/application/common"
	"github.com/fleetworks/wcs-go/internal/application/mediator"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Server hosts the REST surface of the controller
type Server struct {
	mediator  mediator.Mediator
	plans     common.FloorPlanProvider
	vehicleWS http.Handler
	server    *http.Server
}

// NewServer creates the REST server. plans may be nil; the plan reload
// endpoint then reports the surface as unavailable. vehicleWS is the
// gateway's upgrade handler; nil disables the vehicle socket endpoint.
func NewServer(addr string, m mediator.Mediator, plans common.FloorPlanProvider, vehicleWS http.Handler) *Server {
	s := &Server{
		mediator:  m,
		plans:     plans,
		vehicleWS: vehicleWS,
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	// Free-roaming fleet
	mux.HandleFunc("POST /amr/path", s.handleAMRPath)
	mux.HandleFunc("GET /amr/data/{id}", s.handleAMRData)

	// Lifter tower
	mux.HandleFunc("POST /lifter/request-task", s.handleLifterRequestTask)
	mux.HandleFunc("POST /lifter/complete-task/{id}", s.handleLifterCompleteTask)
	mux.HandleFunc("GET /lifter/status", s.handleLifterStatus)

	// Task queue
	mux.HandleFunc("POST /tasks", s.handleStageTask)
	mux.HandleFunc("GET /tasks", s.handleListTasks)
	mux.HandleFunc("GET /tasks/{id}", s.handleGetTask)
	mux.HandleFunc("GET /tasks/{id}/events", s.handleGetTaskEvents)

	// Fleet view
	mux.HandleFunc("GET /vehicles", s.handleListVehicles)
	mux.HandleFunc("GET /vehicles/{id}", s.handleGetVehicle)
	mux.HandleFunc("POST /vehicles/{id}/executing", s.handleSetExecuting)

	// Operations
	mux.HandleFunc("POST /dispatch/next", s.handleDispatchNext)
	mux.HandleFunc("POST /plan/reload", s.handlePlanReload)

	if s.vehicleWS != nil {
		mux.Handle("GET /ws/vehicles/{id}", s.vehicleWS)
	}

	if metrics.IsEnabled() {
		mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	}

	return mux
}

// Handler exposes the routed surface so callers can mount it under
// their own mux or drive it in tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until the listener fails or Shutdown is called
func (s *Server) Start() error {
	fmt.Printf("HTTP API listening on %s\n", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePlanReload(w http.ResponseWriter, r *http.Request) {
	if s.plans == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no floor plan catalog configured"})
		return
	}
	result, err := s.plans.GetPlan(r.Context(), true)
	if err != nil {
		writeError(w, err)
		return
	}
	// Components keep their plan reference; the refreshed catalog is
	// picked up on the next controller restart.
	writeJSON(w, http.StatusOK, map[string]string{
		"source":  result.Source,
		"message": result.Message,
	})
}
