package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"crudgate.org/internal/api"
	"crudgate.org/internal/auth"
	"crudgate.org/internal/config"
	"crudgate.org/internal/httpapi"
	"crudgate.org/internal/member"
	"crudgate.org/internal/obs"
	"crudgate.org/internal/store"
	"crudgate.org/internal/store/pg"
	"crudgate.org/internal/stream"
)

var version = "0.3.0"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("CRUDGATE_COMMIT"))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	tokens, err := auth.NewService(cfg.TokenConfig())
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	// Postgres when a DSN is configured, in-memory otherwise (dev mode).
	var (
		st store.Store
		db *sql.DB
	)
	if cfg.PostgresDSN != "" {
		pgStore, err := pg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		st = pgStore
		db = pgStore.DB()
	} else {
		log.Println("CRUDGATE_PG_DSN not set, using in-memory store")
		st = store.NewMemory()
	}

	members := member.NewDirectory(st)
	resets := member.NewResets(st, cfg.ResetTTL)

	registry := api.NewRegistry()
	registry.MustRegister(member.Schema(), member.Capabilities())
	registry.MustRegister(member.ResetSchema(), member.ResetCapabilities())

	events := stream.New()

	httpAPI := httpapi.New(httpapi.ReadyProbe{DB: db}, version, tokens, members, resets, registry, st, events,
		httpapi.WithLimits(cfg.RateBurst, cfg.RatePerSec, cfg.MaxBodyBytes))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpAPI.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// expired reset requests are purged in the background
	go resets.RunCleanup(rootCtx, cfg.CleanupInterval, func(deleted int, err error) {
		if err != nil {
			log.Printf("reset cleanup: %v", err)
			return
		}
		if deleted > 0 {
			log.Printf("reset cleanup: removed %d expired requests", deleted)
		}
	})

	if cfg.GRPCAddr != "" {
		grpcSrv, health := httpapi.NewGRPCServer()
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				log.Printf("grpc serve: %v", err)
			}
		}()
		defer func() {
			health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
			grpcSrv.GracefulStop()
		}()
		log.Printf("gRPC health on %s", cfg.GRPCAddr)
	}

	log.Printf("Starting crudgate-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
