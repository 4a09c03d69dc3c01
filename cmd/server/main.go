package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codmatch/backend/config"
	"github.com/codmatch/backend/internal/app"
	httpDelivery "github.com/codmatch/backend/internal/delivery/http"
	"github.com/codmatch/backend/internal/infrastructure/cache"
	"github.com/codmatch/backend/internal/scheduler"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting codmatch backend v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	// A missing catalog leaves the API up with an empty catalog
	catalog, err := a.LoadCatalog()
	if err != nil {
		log.Printf("WARNING: catalog not loaded (%v); lookups will find nothing", err)
	}

	memoryCache := cache.NewMemoryCache()
	defer memoryCache.Close()
	log.Printf("Cache TTL: %s", cfg.Cache.TTL)

	lookupService := a.LookupService(memoryCache, catalog)
	log.Printf("Matching: threshold=%.0f, catalog=%d products, debug=%v",
		cfg.Catalog.Threshold, lookupService.CatalogSize(), cfg.Logging.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if spec := cfg.Schedule.InvoiceCron; spec != "" {
		pipeline := a.InvoicePipeline()
		sched, err := scheduler.New("invoice import", spec, func(ctx context.Context) error {
			_, err := pipeline.Run(ctx)
			return err
		})
		if err != nil {
			log.Fatalf("Failed to schedule invoice import: %v", err)
		}
		go sched.Run(ctx)
	}

	handler := httpDelivery.NewHandler(lookupService)
	router := httpDelivery.SetupRouter(cfg, handler)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown: %v", err)
		}
	}()

	log.Printf("Server listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("Server stopped")
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
