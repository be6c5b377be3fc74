package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/remiges-tech/todomon/config"
	"github.com/remiges-tech/todomon/logger"
)

const appName = "todomon"

func main() {
	configSystem := flag.String("configSource", "env", "The configuration system to use (env, file or rigel)")
	configFilePath := flag.String("configFile", "./config.json", "The path to the configuration file")
	dotEnvFile := flag.String("envFile", ".env", "Dotenv file read by the env configuration system")
	rigelApp := flag.String("rigelApp", appName, "The Rigel app name")
	rigelModule := flag.String("rigelModule", "server", "The Rigel module name")
	rigelVersion := flag.Int("rigelVersion", 1, "The Rigel schema version")
	rigelConfigName := flag.String("configName", "dev", "The name of the Rigel configuration")
	etcdEndpoints := flag.String("etcdEndpoints", "localhost:2379", "Comma-separated list of etcd endpoints")
	shutdownTimeout := flag.Duration("shutdownTimeout", 10*time.Second, "Time allowed for in-flight requests on shutdown")

	flag.Parse()

	appConfig := config.Default()
	var err error
	switch *configSystem {
	case "env":
		err = config.LoadConfigFromEnv(&appConfig, *dotEnvFile)
	case "file":
		err = config.LoadConfigFromFile(*configFilePath, &appConfig)
	case "rigel":
		err = config.LoadConfigFromRigel(*etcdEndpoints, *rigelApp, *rigelModule, *rigelVersion, *rigelConfigName, &appConfig)
	default:
		log.Fatalf("Unknown configuration system: %s", *configSystem)
	}
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if err := appConfig.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	if appConfig.Env == logger.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	lh := logger.LoadLogger(appName, appConfig.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, &appConfig, lh)
	if err != nil {
		lh.WithModule("main").Error(err).LogActivity("startup failed", nil)
		os.Exit(1)
	}
	defer app.close()

	srv := &http.Server{
		Addr:              appConfig.Addr(),
		Handler:           app.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		lh.WithModule("main").Info().LogActivity("server listening", map[string]any{
			"addr":  srv.Addr,
			"env":   appConfig.Env,
			"store": appConfig.Store,
		})
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			lh.WithModule("main").Error(err).LogActivity("server failed", nil)
		}
		return
	case <-ctx.Done():
	}

	lh.WithModule("main").Info().LogActivity("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lh.WithModule("main").Error(err).LogActivity("shutdown incomplete", nil)
	}
}
