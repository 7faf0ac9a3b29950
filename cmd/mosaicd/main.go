package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tilegrid/mosaic/internal/config"
	"github.com/tilegrid/mosaic/internal/consumer"
	"github.com/tilegrid/mosaic/internal/engine"
	"github.com/tilegrid/mosaic/internal/gateway"
	"github.com/tilegrid/mosaic/internal/identity"
	"github.com/tilegrid/mosaic/internal/snapshot"
	"github.com/tilegrid/mosaic/pkg/board"
)

func main() {
	// 1. Load environment variables
	instanceName := os.Getenv("MOSAIC_INSTANCE_NAME")
	redisURL := os.Getenv("REDIS_URL")

	if instanceName == "" || redisURL == "" {
		fmt.Fprintf(os.Stderr, "Error: MOSAIC_INSTANCE_NAME and REDIS_URL must be set\n")
		os.Exit(1)
	}

	httpAddr := os.Getenv("MOSAIC_HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	// 2. Parse Redis URL
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid REDIS_URL: %v\n", err)
		os.Exit(1)
	}

	// 3. Create board client
	boardClient, err := board.NewClient(redisOpts, instanceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create board client: %v\n", err)
		os.Exit(1)
	}
	defer boardClient.Close()

	// 4. Verify Redis connectivity
	ctx := context.Background()
	if err := boardClient.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Redis not accessible: %v\n", err)
		os.Exit(1)
	}

	// 5. Load mosaic.yml, falling back to defaults when none is configured
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("mosaicd starting for instance '%s' with %d canvas(es), cooldown %s\n",
		instanceName, len(cfg.Canvases), cfg.CooldownWindow())

	// 6. Materialize configured canvases and the write consumer group
	nowMs := time.Now().UnixMilli()
	for id, canvas := range cfg.Canvases {
		if _, err := boardClient.EnsureCanvas(ctx, &board.Canvas{
			ID:          id,
			Width:       canvas.Width,
			Height:      canvas.Height,
			Version:     1,
			CreatedAtMs: nowMs,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to ensure canvas '%s': %v\n", id, err)
			os.Exit(1)
		}
	}
	if err := boardClient.EnsureWriteGroup(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to ensure write consumer group: %v\n", err)
		os.Exit(1)
	}

	// 7. Identity resolver is optional: without it only queued,
	// pre-resolved placements are accepted
	var resolver engine.Resolver
	if cfg.Identity != nil {
		resolver = identity.NewResolver(cfg.Identity.BaseURL,
			time.Duration(cfg.Identity.TimeoutSeconds)*time.Second)
		fmt.Printf("Identity resolver configured for %s\n", cfg.Identity.BaseURL)
	} else {
		fmt.Println("No identity service configured, direct writes disabled")
	}

	eng := engine.New(boardClient, cfg, resolver)

	// 8. Setup graceful shutdown
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	// 9. Start the gateway, queue consumer and snapshot scheduler
	srv := gateway.NewServer(httpAddr, eng, boardClient, cfg)
	srv.Start()
	fmt.Printf("HTTP gateway listening on %s\n", httpAddr)

	hostname, _ := os.Hostname()
	consumerName := fmt.Sprintf("%s-%d", hostname, os.Getpid())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		consumer.New(boardClient, eng, cfg, consumerName, nil).Run(runCtx)
	}()
	go func() {
		defer wg.Done()
		snapshot.NewScheduler(snapshot.NewRenderer(boardClient, cfg), boardClient, cfg).Run(runCtx)
	}()

	// 10. Wait for shutdown signal
	sig := <-sigCh
	fmt.Printf("Received signal %v, shutting down gracefully...\n", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "HTTP shutdown error: %v\n", err)
	}

	cancel()
	wg.Wait()
	fmt.Println("mosaicd stopped")
}

// loadConfig reads MOSAIC_CONFIG when set, otherwise tries ./mosaic.yml and
// falls back to the built-in defaults.
func loadConfig() (*config.Config, error) {
	if path := os.Getenv("MOSAIC_CONFIG"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		return cfg, nil
	}

	if _, err := os.Stat("mosaic.yml"); err == nil {
		cfg, err := config.Load("mosaic.yml")
		if err != nil {
			return nil, fmt.Errorf("failed to load mosaic.yml: %w", err)
		}
		return cfg, nil
	}

	return config.Default(), nil
}
