package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/research-core/core-permissions/internal/catalog"
	"github.com/research-core/core-permissions/internal/docgate"
	"github.com/research-core/core-permissions/internal/httpapi"
	"github.com/research-core/core-permissions/internal/obs"
	"github.com/research-core/core-permissions/internal/profiles"
	"github.com/research-core/core-permissions/internal/store/pg"
)

var version = "0.3.0"

// defaultPublicPrefixes are media roots readable by any authenticated user.
var defaultPublicPrefixes = []string{
	"cache",
	"uploads/image",
	"uploads/person/person_img",
	"uploads/group/group_img",
	"uploads/publication/publication_file",
}

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("CORE_BUILD_COMMIT"))

	dsn := os.Getenv("CORE_PG_DSN")
	if dsn == "" {
		log.Fatal("missing DSN: set CORE_PG_DSN")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cat, err := catalog.New(store)
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}
	baselines, err := profiles.ResolveBaselines(ctx, cat)
	if err != nil {
		log.Fatalf("resolve baselines: %v", err)
	}
	sync, err := profiles.NewSynchronizer(store, baselines)
	if err != nil {
		log.Fatalf("synchronizer: %v", err)
	}
	gate, err := docgate.New(docgate.Config{
		PublicPrefixes:      envList("CORE_PUBLIC_MEDIA_PREFIXES", defaultPublicPrefixes),
		HumanResourcesGroup: envOr("CORE_HR_GROUP", "PROFILE: Human Resources"),
		AllOrdersGroup:      envOr("CORE_ALL_ORDERS_GROUP", "PROFILE: All Orders"),
	}, store)
	if err != nil {
		log.Fatalf("document gate: %v", err)
	}

	api := httpapi.New(httpapi.Config{
		Ready:        httpapi.ReadyProbe{DB: store.DB()},
		Synchronizer: sync,
		Gate:         gate,
		DocumentRoot: os.Getenv("CORE_MEDIA_ROOT"),
		Version:      version,
	})

	srv := &http.Server{
		Addr:              envOr("CORE_HTTP_ADDR", ":8080"),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcSrv, healthSrv := httpapi.NewGRPCServer()
	go httpapi.WatchReadiness(ctx, httpapi.ReadyProbe{DB: store.DB()}, healthSrv, 15*time.Second)

	log.Printf("Starting core-permissions %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	go func() {
		lis, err := net.Listen("tcp", envOr("CORE_GRPC_ADDR", ":9090"))
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		if err := grpcSrv.Serve(lis); err != nil {
			log.Fatalf("grpc serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	grpcSrv.GracefulStop()
	_ = store.Close()
	log.Println("Stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
