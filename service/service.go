// Package service ties together the components a web service needs and lets
// resources register their routes against them.
//
// Handlers are written as func(*gin.Context, *Service) so they can reach the
// logger, metrics and store without globals. Routes can be grouped by
// resource under a common prefix.
package service

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/remiges-tech/logharbour/logharbour"

	"github.com/remiges-tech/todomon/config"
	"github.com/remiges-tech/todomon/internal/store"
	"github.com/remiges-tech/todomon/metrics"
)

// Service holds the components shared by every handler.
//
// Example:
//
//	s := NewService(router).
//		WithLogHarbour(logger).
//		WithMetrics(reg, appMetrics).
//		WithStore(st)
//	s.RegisterRoute(http.MethodGet, "/todos", todo.HandleListTodos)
type Service struct {
	Config     *config.AppConfig
	Router     *gin.Engine
	LogHarbour *logharbour.Logger
	Registry   *metrics.Registry
	Metrics    *metrics.AppMetrics
	Process    metrics.ProcessStats
	Store      store.Store
}

// NewService constructs a new Service around the given router.
func NewService(r *gin.Engine) *Service {
	return &Service{
		Router: r,
	}
}

func (s *Service) WithConfig(cfg *config.AppConfig) *Service {
	s.Config = cfg
	return s
}

func (s *Service) WithLogHarbour(l *logharbour.Logger) *Service {
	s.LogHarbour = l
	return s
}

// WithMetrics injects the registry and the service metrics registered in it.
func (s *Service) WithMetrics(reg *metrics.Registry, m *metrics.AppMetrics) *Service {
	s.Registry = reg
	s.Metrics = m
	return s
}

func (s *Service) WithProcessStats(ps metrics.ProcessStats) *Service {
	s.Process = ps
	return s
}

func (s *Service) WithStore(st store.Store) *Service {
	s.Store = st
	return s
}

// HandlerFunc is a function that handles a request.
// It takes a *gin.Context and a *Service as parameters.
type HandlerFunc func(*gin.Context, *Service)

// RegisterRoute registers a single route directly on the service's engine.
func (s *Service) RegisterRoute(method, path string, handler HandlerFunc) error {
	wrappedHandler := func(c *gin.Context) {
		handler(c, s)
	}
	return register(s.Router, method, path, wrappedHandler)
}

// RouteGroup represents a group of routes.
type RouteGroup struct {
	Group   *gin.RouterGroup
	service *Service
}

// CreateGroup creates a new route group with the given path.
func (s *Service) CreateGroup(path string) *RouteGroup {
	return &RouteGroup{
		Group:   s.Router.Group(path),
		service: s,
	}
}

// RegisterRoute registers a single route on the route group.
func (g *RouteGroup) RegisterRoute(method, path string, handler HandlerFunc) error {
	wrappedHandler := func(c *gin.Context) {
		handler(c, g.service)
	}
	return register(g.Group, method, path, wrappedHandler)
}

func register(r gin.IRoutes, method, path string, h gin.HandlerFunc) error {
	switch method {
	case http.MethodGet:
		r.GET(path, h)
	case http.MethodPost:
		r.POST(path, h)
	case http.MethodPut:
		r.PUT(path, h)
	case http.MethodPatch:
		r.PATCH(path, h)
	case http.MethodDelete:
		r.DELETE(path, h)
	default:
		return fmt.Errorf("unsupported method %s for %s", method, path)
	}
	return nil
}
