// Package router provides the gin middlewares shared by every route of the
// todo service and the function that assembles them into an engine.
//
// This file implements request logging. Two structured records are written
// per request through a RequestLogger: one when the request arrives and one
// when it leaves. Both carry the same request id, taken from the X-Request-ID
// header or generated, so the pair can be correlated. The id is echoed in the
// response header.
//
// The completion record is written on every exit path, including a handler
// panic, in which case the panic is re-raised after logging. Log sinks are
// fire-and-forget: a panic inside a logger is recovered and dropped.
//
// Usage:
//
//	logAdapter := router.NewLogHarbourAdapter(logger)
//	ginRouter.Use(router.LogRequest(logAdapter))
package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/remiges-tech/logharbour/logharbour"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

// RequestInfo contains all the information about a request to be logged
type RequestInfo struct {
	RequestID          string        `json:"request_id"`
	Method             string        `json:"method"`                        // HTTP method (e.g., "GET", "POST")
	Path               string        `json:"path"`                          // Request path (e.g., "/todos/123")
	ClientIP           string        `json:"client_ip"`                     // Client's IP address
	StatusCode         int           `json:"status_code"`                   // HTTP status code of the response; zero in the start record
	StartTime          time.Time     `json:"start_time"`                    // Time when request processing started (UTC)
	Duration           time.Duration `json:"duration"`                      // Total duration of request processing
	RequestSize        int64         `json:"request_size"`                  // Size of the request body in bytes
	ResponseSize       int64         `json:"response_size"`                 // Size of the response body in bytes
	Query              string        `json:"query,omitempty"`               // Raw query string
	UserAgent          string        `json:"user_agent,omitempty"`          // User-Agent header from the request
	Referer            string        `json:"referer,omitempty"`             // Referer header from the request
	TraceID            string        `json:"trace_id,omitempty"`            // Trace ID for distributed tracing
	SpanID             string        `json:"span_id,omitempty"`             // Span ID for distributed tracing
	ClientDisconnected bool          `json:"client_disconnected,omitempty"` // True if client closed connection
	PanicRecovered     bool          `json:"panic_recovered,omitempty"`     // True if handler panicked
	PanicValue         string        `json:"panic_value,omitempty"`         // Panic message if handler panicked
}

// RequestLogger defines the interface that a logger must implement to be used with LogRequest middleware
type RequestLogger interface {
	LogStart(info RequestInfo)
	Log(info RequestInfo)
}

// LogRequest returns a Gin middleware that logs each request when it starts
// and when it completes.
func LogRequest(logger RequestLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(CtxKeyRequestID, requestID)
		c.Header(HeaderRequestID, requestID)

		info := RequestInfo{
			RequestID:   requestID,
			Method:      c.Request.Method,
			Path:        c.Request.URL.Path,
			ClientIP:    c.ClientIP(),
			StartTime:   startTime.UTC(),
			RequestSize: c.Request.ContentLength,
			Query:       c.Request.URL.RawQuery,
			UserAgent:   c.Request.UserAgent(),
			Referer:     c.Request.Referer(),
			TraceID:     c.GetHeader("X-Trace-ID"),
			SpanID:      c.GetHeader("X-Span-ID"),
		}
		safeLog(func() { logger.LogStart(info) })

		defer func() {
			p := recover()

			info.Duration = time.Since(startTime)
			info.StatusCode = c.Writer.Status()
			info.ResponseSize = int64(max(c.Writer.Size(), 0))
			info.ClientDisconnected = c.GetBool(CtxKeyClientDisconnected) || c.Request.Context().Err() != nil
			info.PanicRecovered = c.GetBool(CtxKeyPanicRecovered)
			info.PanicValue = c.GetString(CtxKeyPanicValue)
			if p != nil {
				info.StatusCode = http.StatusInternalServerError
				info.PanicRecovered = true
				if info.PanicValue == "" {
					info.PanicValue = fmt.Sprintf("%v", p)
				}
			}
			safeLog(func() { logger.Log(info) })

			if p != nil {
				panic(p)
			}
		}()

		c.Next()
	}
}

// safeLog runs fn and drops any panic raised by the log sink.
func safeLog(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

// LogHarbourAdapter adapts a LogHarbour logger to implement the RequestLogger interface
type LogHarbourAdapter struct {
	logger *logharbour.Logger
}

// NewLogHarbourAdapter creates a new adapter for a LogHarbour logger
func NewLogHarbourAdapter(logger *logharbour.Logger) *LogHarbourAdapter {
	return &LogHarbourAdapter{
		logger: logger,
	}
}

// LogStart writes the "HTTP request started" record.
func (a *LogHarbourAdapter) LogStart(info RequestInfo) {
	logger := a.logger.WithModule("http").
		WithOp("request").
		WithRemoteIP(info.ClientIP).
		WithClass(info.Method).
		WithInstanceId(info.Path)

	logger.Info().LogActivity("HTTP request started", map[string]any{
		"request_id": info.RequestID,
		"method":     info.Method,
		"url":        requestURL(info),
		"start_time": info.StartTime.Format(time.RFC3339Nano),
		"user_agent": info.UserAgent,
	})
}

// Log writes the "HTTP request completed" record.
func (a *LogHarbourAdapter) Log(info RequestInfo) {
	logger := a.logger.WithModule("http").
		WithOp("request").
		WithRemoteIP(info.ClientIP).
		WithClass(info.Method).
		WithInstanceId(info.Path).
		WithStatus(getStatus(info.StatusCode))

	activityData := map[string]any{
		"request_id":    info.RequestID,
		"method":        info.Method,
		"url":           requestURL(info),
		"status":        info.StatusCode,
		"start_time":    info.StartTime.Format(time.RFC3339Nano),
		"duration_ms":   float64(info.Duration.Microseconds()) / 1000,
		"duration":      info.Duration.String(),
		"request_size":  info.RequestSize,
		"response_size": info.ResponseSize,
		"user_agent":    info.UserAgent,
		"referer":       info.Referer,
	}

	if info.TraceID != "" {
		activityData["trace_id"] = info.TraceID
	}
	if info.SpanID != "" {
		activityData["span_id"] = info.SpanID
	}
	if info.ClientDisconnected {
		activityData["client_disconnected"] = true
	}
	if info.PanicRecovered {
		activityData["panic_recovered"] = true
		activityData["panic_value"] = info.PanicValue
	}

	logger.Info().LogActivity("HTTP request completed", activityData)
}

func requestURL(info RequestInfo) string {
	if info.Query == "" {
		return info.Path
	}
	return info.Path + "?" + info.Query
}

// getStatus converts an HTTP status code to a logharbour Status
func getStatus(statusCode int) logharbour.Status {
	if statusCode >= 200 && statusCode < 400 {
		return logharbour.Success
	}
	return logharbour.Failure
}
