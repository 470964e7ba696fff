package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sessionscribe/sessionscribe/api"
	"github.com/sessionscribe/sessionscribe/config"
	"github.com/sessionscribe/sessionscribe/engine"
	"github.com/sessionscribe/sessionscribe/events"
	"github.com/sessionscribe/sessionscribe/pipeline"
	"github.com/sessionscribe/sessionscribe/queue"
	"github.com/sessionscribe/sessionscribe/store"
	"github.com/sessionscribe/sessionscribe/workers"
)

func main() {
	cfg := config.Load()

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	eng, err := engine.New(cfg.EngineBackend, engine.Settings{
		Python:   cfg.EnginePython,
		Script:   cfg.EngineScript,
		Model:    cfg.EngineModel,
		Language: cfg.EngineLanguage,
		APIKey:   cfg.OpenAIAPIKey,
	})
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}

	broker := queue.NewBroker(queue.Config{
		ClaimLease: cfg.ClaimLease,
	})
	bus := events.NewBus(cfg.EventBufferSize)

	orch := pipeline.New(st, st, broker, eng, bus, pipeline.Config{
		MaxAttempts:      cfg.MaxAttempts,
		BackoffBase:      cfg.BackoffBase,
		TimeoutMin:       cfg.EngineTimeoutMin,
		TimeoutMax:       cfg.EngineTimeoutMax,
		TranscriptToFile: cfg.TranscriptFileMode,
	})

	limiter := workers.NewSlidingWindow(cfg.RateLimitMax, cfg.RateLimitWindow)
	pool := workers.NewPool(cfg.WorkerCount, broker, orch, limiter)
	pool.Start()
	log.Printf("worker pool started: %d workers, %d starts per %s (engine: %s)",
		cfg.WorkerCount, cfg.RateLimitMax, cfg.RateLimitWindow, cfg.EngineBackend)

	app := api.New(st, orch, broker, bus)

	go func() {
		log.Printf("listening on %s", cfg.ListenAddr)
		if err := app.Listen(cfg.ListenAddr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down")

	if err := app.Shutdown(); err != nil {
		log.Printf("http shutdown: %v", err)
	}

	// Stop claiming, drain in-flight jobs up to the grace period, then
	// leave the rest to broker redelivery on next start.
	broker.Close()
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := pool.Stop(drainCtx); err != nil {
		log.Printf("worker pool: %v", err)
	}
}
