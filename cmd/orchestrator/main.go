package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clusterinfer/orchestrator/internal/builder"
	"github.com/clusterinfer/orchestrator/internal/config"
	"github.com/clusterinfer/orchestrator/internal/deploy"
	"github.com/clusterinfer/orchestrator/internal/endpoint"
	"github.com/clusterinfer/orchestrator/internal/facade"
	"github.com/clusterinfer/orchestrator/internal/handlers"
	"github.com/clusterinfer/orchestrator/internal/jobclient"
	"github.com/clusterinfer/orchestrator/internal/logging"
	"github.com/clusterinfer/orchestrator/internal/recipe"
	"github.com/clusterinfer/orchestrator/internal/reconcile"
	"github.com/clusterinfer/orchestrator/internal/registry"
	"github.com/clusterinfer/orchestrator/internal/replica"
	"github.com/clusterinfer/orchestrator/internal/sshtunnel"
)

func main() {
	logging.Init(logging.Config{Level: logging.InfoLevel, JSONOutput: true})
	log := logging.With("main")

	cfg := config.Load()

	loader, err := recipe.NewLoader(cfg.RecipeRoot, cfg.RecipeWatch)
	if err != nil {
		log.Errorf("load recipe catalog: %v", err)
		os.Exit(1)
	}
	defer loader.Close()

	tunnel := sshtunnel.NewManager(sshtunnel.Config{
		User:    cfg.SSHUser,
		Host:    cfg.SSHHost,
		Port:    cfg.SSHPort,
		KeyPath: cfg.SSHKeyPath,
	})

	jc := jobclient.New(jobclient.Config{
		RemoteHost:  cfg.SlurmRESTHost,
		RemotePort:  cfg.SlurmRESTPort,
		LocalPort:   cfg.SlurmRESTLocalPort,
		Token:       cfg.SlurmJWT,
		LogCacheDir: cfg.LocalBasePath,
	}, tunnel)

	reg := registry.New()

	reconcileCtx, reconcileCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := reconcile.Run(reconcileCtx, jc, reg); err != nil {
		log.Warnf("registry reconciliation failed: %v", err)
	}
	reconcileCancel()

	builders := builder.NewRegistry()
	deployer := deploy.New(cfg, loader, builders, jc, reg)
	resolver := endpoint.New(reg, jc)
	inference := handlers.NewInferenceHandler(resolver, jc)
	vectordb := handlers.NewVectorDBHandler(resolver)
	coord := replica.New(reg)

	srv := facade.New(facade.Deps{
		Loader:    loader,
		Registry:  reg,
		Deployer:  deployer,
		JobClient: jc,
		Inference: inference,
		VectorDB:  vectordb,
		Coord:     coord,
	})

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: srv.Router(),
	}

	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer close(done)
		sig := <-sigChan
		log.Infof("signal received: %v", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(ctx)
	}()

	log.Infof("orchestrator listening on %s", httpSrv.Addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("orchestrator server failed: %v", err)
		os.Exit(1)
	}
	<-done
}
