// Package monitoring serves the operational endpoints of the service: the
// Prometheus scrape endpoint, a health check and a JSON stats summary.
package monitoring

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/remiges-tech/todomon/metrics"
	"github.com/remiges-tech/todomon/service"
)

// ErrExposition wraps a failure to render the registry.
var ErrExposition = errors.New("exposition failure")

const (
	PathMetrics = "/metrics"
	PathHealth  = "/health"
	PathStats   = groupMonitoring + "/stats"

	groupMonitoring = "/monitoring"
)

type HealthResponse struct {
	Status         string              `json:"status"`
	Timestamp      time.Time           `json:"timestamp"`
	Uptime         float64             `json:"uptime"` // seconds
	ActiveRequests float64             `json:"active_requests"`
	Memory         metrics.MemoryStats `json:"memory"`
}

type ProcessInfo struct {
	Uptime float64             `json:"uptime"` // seconds
	Memory metrics.MemoryStats `json:"memory"`
	CPU    metrics.CPUStats    `json:"cpu"`
}

type MetricsInfo struct {
	ActiveRequests float64            `json:"active_requests"`
	TodoOperations map[string]float64 `json:"todo_operations"`
}

type StatsResponse struct {
	Timestamp time.Time   `json:"timestamp"`
	Process   ProcessInfo `json:"process"`
	Metrics   MetricsInfo `json:"metrics"`
}

// RegisterRoutes registers the monitoring routes on s.
func RegisterRoutes(s *service.Service) error {
	if err := s.RegisterRoute(http.MethodGet, PathMetrics, HandleMetrics); err != nil {
		return err
	}
	if err := s.RegisterRoute(http.MethodGet, PathHealth, HandleHealth); err != nil {
		return err
	}
	return s.CreateGroup(groupMonitoring).RegisterRoute(http.MethodGet, "/stats", HandleStats)
}

// HandleMetrics refreshes memory_usage_bytes and writes the registry in the
// Prometheus text format. The body is rendered into a buffer first so a
// render error can still be answered with a 500.
func HandleMetrics(c *gin.Context, s *service.Service) {
	if err := s.Metrics.UpdateMemoryUsage(c.Request.Context(), s.Process); err != nil {
		s.LogHarbour.WithModule("monitoring").WithOp("scrape").Error(err).
			LogActivity("memory sampling failed", nil)
	}

	var buf bytes.Buffer
	if err := s.Registry.Render(&buf); err != nil {
		err = fmt.Errorf("%w: %w", ErrExposition, err)
		s.LogHarbour.WithModule("monitoring").WithOp("scrape").Error(err).
			LogActivity("ExpositionFailure", nil)
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, metrics.ContentType, buf.Bytes())
}

// HandleHealth reports liveness with uptime, in-flight requests and memory.
func HandleHealth(c *gin.Context, s *service.Service) {
	mem, err := s.Process.Memory(c.Request.Context())
	if err != nil {
		s.LogHarbour.WithModule("monitoring").WithOp("health").Error(err).
			LogActivity("memory sampling failed", nil)
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:         "UP",
		Timestamp:      time.Now().UTC(),
		Uptime:         s.Process.Uptime().Seconds(),
		ActiveRequests: s.Metrics.ActiveRequests.Value(),
		Memory:         mem,
	})
}

// HandleStats reports process usage and a per-operation breakdown of
// todo_operations_total.
func HandleStats(c *gin.Context, s *service.Service) {
	ctx := c.Request.Context()
	mem, err := s.Process.Memory(ctx)
	if err != nil {
		s.LogHarbour.WithModule("monitoring").WithOp("stats").Error(err).
			LogActivity("memory sampling failed", nil)
	}
	cpu, err := s.Process.CPU(ctx)
	if err != nil {
		s.LogHarbour.WithModule("monitoring").WithOp("stats").Error(err).
			LogActivity("cpu sampling failed", nil)
	}

	ops := make(map[string]float64)
	names := s.Metrics.TodoOperations.LabelNames()
	for _, sample := range s.Metrics.TodoOperations.Samples() {
		if op, ok := sample.Label(names, "operation"); ok {
			ops[op] = sample.Value
		}
	}

	c.JSON(http.StatusOK, StatsResponse{
		Timestamp: time.Now().UTC(),
		Process: ProcessInfo{
			Uptime: s.Process.Uptime().Seconds(),
			Memory: mem,
			CPU:    cpu,
		},
		Metrics: MetricsInfo{
			ActiveRequests: s.Metrics.ActiveRequests.Value(),
			TodoOperations: ops,
		},
	})
}
