package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/remiges-tech/logharbour/logharbour"

	"github.com/remiges-tech/todomon/metrics"
)

// ErrInstrumentation wraps every failure inside the instrumentation
// middleware. Such failures are logged and never change the response.
var ErrInstrumentation = errors.New("instrumentation failure")

const (
	// UnmatchedRoute is the route label of requests that matched no route.
	// Raw paths are never used as labels.
	UnmatchedRoute = "unmatched"

	// StatusClientClosedRequest is recorded for requests whose client went
	// away before the handler finished.
	StatusClientClosedRequest = 499
)

// Context keys shared by Instrument and LogRequest. Instrument sets the
// disconnect and panic keys; LogRequest reads them to annotate its
// completion record.
const (
	CtxKeyRequestID          = "_request_id"
	CtxKeyRequestContext     = "_request_context"
	CtxKeyClientDisconnected = "_client_disconnected"
	CtxKeyPanicRecovered     = "_panic_recovered"
	CtxKeyPanicValue         = "_panic_value"
)

// RequestContext describes one in-flight request. It lives from the moment
// Instrument sees the request until its completion hook has run.
type RequestContext struct {
	Start     time.Time
	Method    string
	Route     string
	RequestID string
}

// Outcome is how a request left the instrumentation middleware.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomePanicked  Outcome = "panicked"
	OutcomeAborted   Outcome = "aborted"
)

// Instrument returns a middleware that brackets every request with
// start/end accounting:
//   - active_requests is incremented on entry and decremented exactly once,
//     whether the handler returns, panics or the client disconnects first.
//   - the elapsed time is observed into http_request_duration_seconds labeled
//     by method, route template and status code, and stored in
//     response_time_ms.
//
// A panic is recorded with status 500 and re-raised for gin.Recovery. A client
// disconnect before any response was written is recorded with status 499; once
// the response has been written the request completes with its own status.
//
// Requests to untrackedRoutes are timed but not counted in active_requests,
// so a scrape of the metrics endpoint does not observe itself.
func Instrument(m *metrics.AppMetrics, logger *logharbour.Logger, untrackedRoutes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc := &RequestContext{
			Start:  time.Now(),
			Method: c.Request.Method,
			Route:  c.FullPath(),
		}
		if rc.Route == "" {
			rc.Route = UnmatchedRoute
		}
		if id, ok := c.Get(CtxKeyRequestID); ok {
			rc.RequestID, _ = id.(string)
		}
		c.Set(CtxKeyRequestContext, rc)

		tracked := !slices.Contains(untrackedRoutes, rc.Route)
		if tracked {
			if err := m.ActiveRequests.Inc(); err != nil {
				logInstrumentationFailure(logger, rc, fmt.Errorf("%w: %w", ErrInstrumentation, err))
			}
		}

		w := &commitWriter{ResponseWriter: c.Writer}
		c.Writer = w

		var once sync.Once
		finish := func(status int, outcome Outcome) {
			once.Do(func() {
				if outcome == OutcomeAborted {
					c.Set(CtxKeyClientDisconnected, true)
				}
				if err := complete(m, rc, status, tracked); err != nil {
					logInstrumentationFailure(logger, rc, err)
				}
			})
		}

		ctx := c.Request.Context()
		stop := context.AfterFunc(ctx, func() {
			// a written response is finalized by the handler's own return
			if w.committed() {
				return
			}
			finish(StatusClientClosedRequest, OutcomeAborted)
		})
		defer func() {
			stop()
			if p := recover(); p != nil {
				c.Set(CtxKeyPanicRecovered, true)
				c.Set(CtxKeyPanicValue, fmt.Sprintf("%v", p))
				finish(http.StatusInternalServerError, OutcomePanicked)
				panic(p)
			}
			// stop may win the race against a cancellation that the handler
			// already observed.
			if ctx.Err() != nil && !w.committed() {
				finish(StatusClientClosedRequest, OutcomeAborted)
				return
			}
			finish(c.Writer.Status(), OutcomeCompleted)
		}()

		c.Next()
	}
}

// complete runs the completion hook. A panic inside it is converted into an
// error so the request is unaffected.
func complete(m *metrics.AppMetrics, rc *RequestContext, status int, tracked bool) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic in completion hook: %v", ErrInstrumentation, p)
		}
	}()

	elapsed := time.Since(rc.Start)
	errs := []error{
		m.RequestDuration.Observe(elapsed.Seconds(), rc.Method, rc.Route, strconv.Itoa(status)),
		m.ResponseTime.Set(float64(elapsed.Microseconds()) / 1000),
	}
	if tracked {
		errs = append(errs, m.ActiveRequests.Dec())
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInstrumentation, err)
	}
	return nil
}

func logInstrumentationFailure(logger *logharbour.Logger, rc *RequestContext, err error) {
	if logger == nil {
		return
	}
	defer func() { _ = recover() }()
	logger.WithModule("http").
		WithOp("instrument").
		WithClass(rc.Method).
		WithInstanceId(rc.Route).
		Error(err).
		LogActivity("InstrumentationFailure", map[string]any{
			"request_id": rc.RequestID,
			"route":      rc.Route,
		})
}

// commitWriter records, in a form safe to read from the abort callback,
// whether the response has started going out to the client.
type commitWriter struct {
	gin.ResponseWriter
	status atomic.Int64 // 0 until the first byte or header is committed
}

func (w *commitWriter) commit() {
	w.status.CompareAndSwap(0, int64(w.ResponseWriter.Status()))
}

func (w *commitWriter) committed() bool {
	return w.status.Load() != 0
}

func (w *commitWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.commit()
	return n, err
}

func (w *commitWriter) WriteString(s string) (int, error) {
	n, err := w.ResponseWriter.WriteString(s)
	w.commit()
	return n, err
}

func (w *commitWriter) WriteHeaderNow() {
	w.ResponseWriter.WriteHeaderNow()
	w.commit()
}

func (w *commitWriter) Flush() {
	w.ResponseWriter.Flush()
	w.commit()
}
