// Package app assembles the lists service runtime: storage, the list
// service, the JSON API, the federation delivery worker, and the health
// endpoint.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fedilist/fedilist/internal/federation"
	listhttp "github.com/fedilist/fedilist/internal/list/api/http"
	"github.com/fedilist/fedilist/internal/list/service"
	"github.com/fedilist/fedilist/internal/list/storage/sqlite"
	"github.com/fedilist/fedilist/internal/platform/id"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// RuntimeConfig controls lists service startup, dependencies, and the
// delivery loop.
type RuntimeConfig struct {
	HTTPPort      int
	HealthPort    int
	DBPath        string
	BaseIRI       string
	PeerInboxes   []string
	Consumer      string
	PollInterval  time.Duration
	LeaseTTL      time.Duration
	MaxAttempts   int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
}

const (
	defaultHTTPPort   = 8080
	defaultHealthPort = 8081
	defaultDBPath     = "data/lists.db"
)

// Run starts the runtime and blocks until the context is canceled.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.BaseIRI) == "" {
		return fmt.Errorf("base iri is required")
	}
	if cfg.HTTPPort <= 0 {
		cfg.HTTPPort = defaultHTTPPort
	}
	if cfg.HealthPort <= 0 {
		cfg.HealthPort = defaultHealthPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultDBPath
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close sqlite store: %v", closeErr)
		}
	}()

	identity, err := federation.NewDirectory(cfg.BaseIRI, cfg.PeerInboxes)
	if err != nil {
		return fmt.Errorf("build identity directory: %w", err)
	}
	publisher, err := federation.NewPublisher(store, identity, time.Now, id.NewID)
	if err != nil {
		return fmt.Errorf("build federation publisher: %w", err)
	}

	svc, err := service.New(service.Config{
		Lists:     store,
		Items:     store,
		Publisher: publisher,
		BaseIRI:   cfg.BaseIRI,
	})
	if err != nil {
		return fmt.Errorf("build list service: %w", err)
	}

	handler, err := listhttp.NewHandler(svc, log.Printf)
	if err != nil {
		return fmt.Errorf("build http handler: %w", err)
	}
	mux := http.NewServeMux()
	handler.Routes(mux)

	worker, err := federation.NewWorker(
		store,
		federation.NewHTTPDeliverer(nil, "fedilist/"+strings.TrimPrefix(cfg.BaseIRI, "https://")),
		federation.WorkerConfig{
			Consumer:      cfg.Consumer,
			PollInterval:  cfg.PollInterval,
			LeaseTTL:      cfg.LeaseTTL,
			MaxAttempts:   cfg.MaxAttempts,
			RetryBackoff:  cfg.RetryBackoff,
			RetryMaxDelay: cfg.RetryMaxDelay,
		},
		nil,
		log.Printf,
	)
	if err != nil {
		return fmt.Errorf("build delivery worker: %w", err)
	}

	healthListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HealthPort))
	if err != nil {
		return fmt.Errorf("listen on health port %d: %w", cfg.HealthPort, err)
	}
	defer healthListener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("lists.runtime", grpc_health_v1.HealthCheckResponse_SERVING)

	healthErr := make(chan error, 1)
	go func() {
		healthErr <- grpcServer.Serve(healthListener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-healthErr
	}()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	workerErr := make(chan error, 1)
	go func() {
		workerErr <- worker.Run(ctx)
	}()

	log.Printf("lists api listening at %s, health at %v", httpServer.Addr, healthListener.Addr())

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case err := <-workerErr:
		return fmt.Errorf("delivery worker: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	<-workerErr
	return ctx.Err()
}
