package services

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Status values reported for a backend.
const (
	StatusOK      = "OK"
	StatusBad     = "BAD"
	StatusUnknown = "N/A"
)

// ServiceStatus represents the health of a backend the pipeline depends on
type ServiceStatus struct {
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	Version      string    `json:"version,omitempty"`
	Error        string    `json:"error,omitempty"`
	LastCheck    time.Time `json:"last_check"`
	ResponseTime int64     `json:"response_time"` // milliseconds
	Endpoint     string    `json:"endpoint,omitempty"`
}

// Probe checks a backend that is not reachable over plain HTTP.
type Probe func(ctx context.Context) error

type target struct {
	endpoint string
	probe    Probe
}

// HealthChecker periodically polls the backends of the pipeline.
type HealthChecker struct {
	mu            sync.RWMutex
	services      map[string]*ServiceStatus
	targets       map[string]target
	client        *http.Client
	checkInterval time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewHealthChecker creates a new backend health checker
func NewHealthChecker(checkInterval time.Duration) *HealthChecker {
	if checkInterval <= 0 {
		checkInterval = 30 * time.Second
	}
	return &HealthChecker{
		services: make(map[string]*ServiceStatus),
		targets:  make(map[string]target),
		client: &http.Client{
			Timeout: 2 * time.Second, // Fast timeout for health checks
		},
		checkInterval: checkInterval,
		stopChan:      make(chan struct{}),
	}
}

// RegisterService adds an HTTP backend to monitor. Any response below 500
// counts as reachable.
func (hc *HealthChecker) RegisterService(name, endpoint string) {
	hc.register(name, target{endpoint: endpoint})
	log.Printf("[HEALTH] Registered service: %s (%s)", name, endpoint)
}

// RegisterProbe adds a backend checked by calling probe.
func (hc *HealthChecker) RegisterProbe(name string, probe Probe) {
	hc.register(name, target{probe: probe})
	log.Printf("[HEALTH] Registered probe: %s", name)
}

func (hc *HealthChecker) register(name string, t target) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	hc.targets[name] = t
	hc.services[name] = &ServiceStatus{
		Name:      name,
		Status:    StatusUnknown,
		Endpoint:  t.endpoint,
		LastCheck: time.Now(),
	}
}

// Start begins monitoring all registered services
func (hc *HealthChecker) Start() {
	go hc.monitorLoop()
	log.Println("[HEALTH] Service health checker started")
}

// Stop halts the health checker. It is safe to call more than once.
func (hc *HealthChecker) Stop() {
	hc.stopOnce.Do(func() {
		close(hc.stopChan)
		log.Println("[HEALTH] Service health checker stopped")
	})
}

// monitorLoop continuously checks service health
func (hc *HealthChecker) monitorLoop() {
	// Immediate first check
	hc.CheckAll()

	ticker := time.NewTicker(hc.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			hc.CheckAll()
		case <-hc.stopChan:
			return
		}
	}
}

// CheckAll polls every registered backend and waits for the results.
func (hc *HealthChecker) CheckAll() {
	hc.mu.RLock()
	targets := make(map[string]target, len(hc.targets))
	for name, t := range hc.targets {
		targets[name] = t
	}
	hc.mu.RUnlock()

	var wg sync.WaitGroup
	for name, t := range targets {
		wg.Add(1)
		go func(name string, t target) {
			defer wg.Done()
			hc.checkService(name, t)
		}(name, t)
	}
	wg.Wait()
}

// checkService polls a single backend and records the outcome
func (hc *HealthChecker) checkService(name string, t target) {
	startTime := time.Now()
	version, err := hc.poll(t)
	responseTime := time.Since(startTime).Milliseconds()

	hc.mu.Lock()
	defer hc.mu.Unlock()

	status, ok := hc.services[name]
	if !ok {
		return
	}
	previous := status.Status
	status.LastCheck = time.Now()
	status.ResponseTime = responseTime

	if err != nil {
		status.Status = StatusBad
		status.Error = err.Error()
		status.Version = ""
		if previous != StatusBad {
			log.Printf("[HEALTH] %s: OFFLINE (%v)", name, err)
		}
		return
	}

	status.Status = StatusOK
	status.Error = ""
	status.Version = version
	if previous != StatusOK {
		log.Printf("[HEALTH] %s: %s (%dms)", name, status.Status, responseTime)
	}
}

func (hc *HealthChecker) poll(t target) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), hc.client.Timeout)
	defer cancel()

	if t.probe != nil {
		return "", t.probe(ctx)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := hc.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusInternalServerError {
		return "", &httpStatusError{code: resp.StatusCode}
	}

	// Services that answer JSON may report a version.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Version string `json:"version"`
	}
	if json.Unmarshal(body, &payload) == nil {
		return payload.Version, nil
	}
	return "", nil
}

type httpStatusError struct {
	code int
}

func (e *httpStatusError) Error() string {
	return "HTTP " + http.StatusText(e.code)
}

// GetServiceStatus returns the current status of a service
func (hc *HealthChecker) GetServiceStatus(name string) *ServiceStatus {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	if status, ok := hc.services[name]; ok {
		// Return a copy
		statusCopy := *status
		return &statusCopy
	}
	return nil
}

// GetAllServices returns status of all services
func (hc *HealthChecker) GetAllServices() map[string]*ServiceStatus {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	servicesCopy := make(map[string]*ServiceStatus)
	for name, status := range hc.services {
		statusCopy := *status
		servicesCopy[name] = &statusCopy
	}
	return servicesCopy
}

// BaseURL reduces an API endpoint such as http://host:11434/api/chat to the
// server root, which is what the health checker polls.
func BaseURL(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return endpoint
	}
	return u.Scheme + "://" + u.Host + "/"
}
