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

	"github.com/clusterinfer/orchestrator/internal/config"
	"github.com/clusterinfer/orchestrator/internal/gateway"
	"github.com/clusterinfer/orchestrator/internal/logging"
	"github.com/clusterinfer/orchestrator/internal/sshtunnel"
)

func main() {
	logging.Init(logging.Config{Level: logging.InfoLevel, JSONOutput: true})
	log := logging.With("main")

	cfg := config.LoadGateway()

	tunnel := sshtunnel.NewManager(sshtunnel.Config{
		User:    cfg.SSHUser,
		Host:    cfg.SSHHost,
		Port:    cfg.SSHPort,
		KeyPath: cfg.SSHKeyPath,
	})

	router := gateway.NewRouter(cfg, tunnel)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ListenPort),
		Handler: router,
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

	log.Infof("gateway listening on %s", httpSrv.Addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("gateway server failed: %v", err)
		os.Exit(1)
	}
	<-done
}
