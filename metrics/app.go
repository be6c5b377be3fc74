package metrics

// Names of the metrics exported by the todo service.
const (
	NameRequestDuration = "http_request_duration_seconds"
	NameActiveRequests  = "active_requests"
	NameTodoOperations  = "todo_operations_total"
	NameMemoryUsage     = "memory_usage_bytes"
	NameResponseTime    = "response_time_ms"
)

// Memory types used as the "type" label of memory_usage_bytes.
const (
	MemoryRSS       = "rss"
	MemoryHeapTotal = "heapTotal"
	MemoryHeapUsed  = "heapUsed"
	MemoryExternal  = "external"
)

// AppMetrics groups the service metrics so they can be handed to the
// middleware and handlers that update them.
type AppMetrics struct {
	RequestDuration *Histogram
	ActiveRequests  *Gauge
	TodoOperations  *Counter
	MemoryUsage     *Gauge
	ResponseTime    *Gauge
}

// NewAppMetrics constructs the service metrics and registers them with reg.
// It must run before the server starts accepting requests.
func NewAppMetrics(reg *Registry) (*AppMetrics, error) {
	duration, err := NewHistogram(NameRequestDuration, "Duration of HTTP requests in seconds",
		DefBuckets, "method", "route", "status_code")
	if err != nil {
		return nil, err
	}
	m := &AppMetrics{
		RequestDuration: duration,
		ActiveRequests:  NewGauge(NameActiveRequests, "Number of active requests"),
		TodoOperations:  NewCounter(NameTodoOperations, "Total number of todo operations", "operation"),
		MemoryUsage:     NewGauge(NameMemoryUsage, "Memory usage in bytes", "type"),
		ResponseTime:    NewGauge(NameResponseTime, "Response time in milliseconds"),
	}
	for _, metric := range []Metric{m.RequestDuration, m.ActiveRequests, m.TodoOperations, m.MemoryUsage, m.ResponseTime} {
		if err := reg.Register(metric); err != nil {
			return nil, err
		}
	}
	return m, nil
}
