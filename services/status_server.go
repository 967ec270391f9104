package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"runtime"
	"time"

	"github.com/EasterCompany/dex-voice-service/system"
	"github.com/EasterCompany/dex-voice-service/utils"
)

// StatusServer provides the HTTP status endpoints for this service. It binds
// its own address so operators can reach it without going through the
// public API.
type StatusServer struct {
	startTime     time.Time
	addr          string
	healthChecker *HealthChecker
	historyLen    func() int
	srv           *http.Server
}

// NewStatusServer creates a new status server. historyLen reports the size of
// the live conversation and may be nil.
func NewStatusServer(addr string, healthChecker *HealthChecker, historyLen func() int) *StatusServer {
	if historyLen == nil {
		historyLen = func() int { return 0 }
	}
	return &StatusServer{
		startTime:     time.Now(),
		addr:          addr,
		healthChecker: healthChecker,
		historyLen:    historyLen,
	}
}

// Handler returns the status routes.
func (ss *StatusServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", ss.handleStatus)
	mux.HandleFunc("GET /health", ss.handleHealth)
	mux.HandleFunc("GET /services", ss.handleServices)
	return mux
}

// Start begins the HTTP status server
func (ss *StatusServer) Start() {
	ss.srv = &http.Server{
		Addr:              ss.addr,
		Handler:           ss.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("[STATUS] Starting status server on http://%s", ss.addr)

	go func() {
		if err := ss.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[STATUS] Server error: %v", err)
		}
	}()
}

// Shutdown stops the status server if it was started.
func (ss *StatusServer) Shutdown(ctx context.Context) error {
	if ss.srv == nil {
		return nil
	}
	return ss.srv.Shutdown(ctx)
}

// handleStatus returns detailed service status
func (ss *StatusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(ss.startTime)

	// Get memory stats
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	metrics := utils.GetMetrics()
	metrics["history_length"] = ss.historyLen()
	metrics["goroutines"] = runtime.NumGoroutine()
	metrics["memory_alloc_mb"] = float64(m.Alloc) / 1024 / 1024
	metrics["gc_runs"] = m.NumGC

	usage, errs := system.Sample()
	for _, err := range errs {
		log.Printf("[STATUS] %v", err)
	}

	services := ss.healthChecker.GetAllServices()
	state := "operational"
	for _, s := range services {
		if s.Status == StatusBad {
			state = "degraded"
			break
		}
	}

	status := map[string]interface{}{
		"service":   "dex-voice-service",
		"status":    state,
		"version":   utils.GetVersion(),
		"uptime":    uptime.Round(time.Second).String(),
		"timestamp": time.Now().Format(time.RFC3339),
		"metrics":   metrics,
		"system":    usage,
		"services":  services,
	}

	writeJSON(w, status)
}

// handleHealth returns simple health check (for load balancers)
func (ss *StatusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status": "ok",
	})
}

// handleServices returns status of all monitored services
func (ss *StatusServer) handleServices(w http.ResponseWriter, r *http.Request) {
	services := ss.healthChecker.GetAllServices()
	writeJSON(w, map[string]interface{}{
		"services": services,
		"count":    len(services),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[STATUS] Error encoding response: %v", err)
	}
}
