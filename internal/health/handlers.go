// Package health exposes the process liveness surface: an HTTP status API
// and a Redis heartbeat for external monitoring.
package health

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/KLogicHQ/natswatch/internal/cluster"
)

// RunReporter reports whether a worker loop is currently active.
type RunReporter interface {
	Running() bool
}

// ClusterStatusSource reports per-cluster connection state.
type ClusterStatusSource interface {
	Status() []cluster.ClusterStatus
}

// Handlers wraps dependencies for the HTTP handlers.
type Handlers struct {
	collector RunReporter
	processor RunReporter
	clusters  ClusterStatusSource
}

// NewHandlers creates a new handlers instance.
func NewHandlers(collector, processor RunReporter, clusters ClusterStatusSource) *Handlers {
	return &Handlers{
		collector: collector,
		processor: processor,
		clusters:  clusters,
	}
}

// StatusResponse is the body served by the status endpoint.
type StatusResponse struct {
	MetricsCollectorRunning bool                    `json:"metrics_collector_running"`
	AlertProcessorRunning   bool                    `json:"alert_processor_running"`
	Clusters                []cluster.ClusterStatus `json:"clusters"`
}

// GetStatus returns worker liveness and per-cluster connection state.
// GET /api/v1/status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		MetricsCollectorRunning: h.collector.Running(),
		AlertProcessorRunning:   h.processor.Running(),
		Clusters:                h.clusters.Status(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode status response", "error", err)
	}
}
