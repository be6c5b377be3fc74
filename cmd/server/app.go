package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/remiges-tech/logharbour/logharbour"

	"github.com/remiges-tech/todomon/config"
	"github.com/remiges-tech/todomon/internal/store"
	"github.com/remiges-tech/todomon/metrics"
	"github.com/remiges-tech/todomon/monitoring"
	"github.com/remiges-tech/todomon/router"
	"github.com/remiges-tech/todomon/service"
	"github.com/remiges-tech/todomon/todo"
)

type app struct {
	engine  *gin.Engine
	service *service.Service
	store   store.Store
}

// newApp wires metrics, storage and routes for cfg. The metrics are
// registered before any route is reachable.
func newApp(ctx context.Context, cfg *config.AppConfig, lh *logharbour.Logger) (*app, error) {
	reg := metrics.NewRegistry()
	m, err := metrics.NewAppMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	if err := reg.AttachDefaultCollectors(metrics.DefaultCollectorPrefix); err != nil {
		return nil, fmt.Errorf("register default collectors: %w", err)
	}

	sampler, err := metrics.NewProcessSampler(ctx)
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	r := router.SetupRouter(m, lh, router.DefaultCORSConfig(cfg.CORSOrigin), monitoring.PathMetrics)

	s := service.NewService(r).
		WithConfig(cfg).
		WithLogHarbour(lh).
		WithMetrics(reg, m).
		WithProcessStats(sampler).
		WithStore(st)
	if err := todo.RegisterRoutes(s); err != nil {
		st.Close()
		return nil, err
	}
	if err := monitoring.RegisterRoutes(s); err != nil {
		st.Close()
		return nil, err
	}
	return &app{engine: r, service: s, store: st}, nil
}

func (a *app) close() error {
	return a.store.Close()
}

func openStore(ctx context.Context, cfg *config.AppConfig) (store.Store, error) {
	timeout := time.Duration(cfg.StoreTimeout)
	switch cfg.Store {
	case "memory":
		return store.WithTimeout(store.NewMemory(), timeout), nil
	case "redis":
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		rs, err := store.NewRedis(pingCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return store.WithTimeout(rs, timeout), nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
