// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"multimodel-video/internal/config"
	aiAdapters "multimodel-video/internal/infra/adapters/ai"
	"multimodel-video/internal/infra/adapters/media"
	"multimodel-video/internal/infra/cache"
	"multimodel-video/internal/infra/logging"
	red "multimodel-video/internal/infra/redis"
	"multimodel-video/internal/infra/sched"
	"multimodel-video/internal/infra/web"
	"multimodel-video/internal/infra/worker"
	"multimodel-video/internal/infra/ws"
	"multimodel-video/internal/pipeline"
	"multimodel-video/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop collaborators, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	// ---- Cache & session store ----
	// Redis is optional: without a URL the store runs degraded in-process.
	var client red.Client
	if cfg.Redis.URL != "" {
		c, err := red.NewClient(&cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis client")
		}
		client = c
		defer c.Close()
	} else {
		logger.Warn().Msg("no redis url configured, running degraded in-process store")
	}
	kv := cache.New(ctx, client, cfg.Redis.ProbeInterval, cfg.Redis.SetRetries, logger)

	// ---- Broadcast hub ----
	hub := ws.NewHub(ws.NewRegistry(), cfg.Websocket.SendBuffer, logger)
	wsSrv := ws.NewServer(hub, cfg.Websocket, logger)

	// ---- Worker pool & task orchestrator ----
	pool := worker.NewPool(cfg.Tasks.Workers, cfg.Tasks.QueueSize, logger)
	pool.Start(ctx)
	defer pool.Stop()
	taskUC := usecase.NewTaskUseCase(kv, hub, pool, cfg.Tasks.StateTTL, logger)

	// ---- Media collaborator & pipeline bodies ----
	// The processing engine itself lives elsewhere; in dev the noop
	// collaborator fabricates its output.
	processor := media.NewNoopProcessor()
	pipe := pipeline.New(processor, kv, cfg.Tasks.DataTTL, logger)
	pipe.RegisterAll(taskUC)

	// ---- Generation provider chain (OpenAI -> Gemini -> Ollama) ----
	var providers []aiAdapters.Provider
	if cfg.AI.OpenAIKey != "" {
		p, err := aiAdapters.NewOpenAIProvider(cfg.AI.OpenAIKey, cfg.AI.DefaultModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai provider")
		}
		providers = append(providers, p)
	}
	if cfg.AI.GeminiKey != "" {
		p, err := aiAdapters.NewGeminiProvider(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini provider")
		}
		providers = append(providers, p)
	}
	if cfg.AI.OllamaHost != "" {
		p, err := aiAdapters.NewOllamaProvider(cfg.AI.OllamaHost, cfg.AI.DefaultModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("ollama provider")
		}
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		if !cfg.Runtime.Dev {
			logger.Fatal().Msg("no generation provider configured: set ai.openai_key, ai.gemini_key or ai.ollama_host")
		}
		providers = append(providers, aiAdapters.NewNoopProvider())
	}
	rag, err := aiAdapters.NewService(kv, logger, providers...)
	if err != nil {
		logger.Fatal().Err(err).Msg("generation service")
	}

	// ---- Chat use case ----
	chatUC := usecase.NewChatUseCase(kv, hub, rag, cfg.Chat, logger)

	// ---- Background workers ----
	liveness := sched.NewLivenessWorker(cfg.Websocket.PingInterval, cfg.Websocket.LivenessTimeout, hub, logger)
	go func() { _ = liveness.Run(ctx) }()
	stall := sched.NewStallWorker(30*time.Second, cfg.Tasks.StallWindow, taskUC, logger)
	go func() { _ = stall.Run(ctx) }()

	// ---- HTTP server ----
	srv := web.NewServer(taskUC, chatUC, kv, wsSrv, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	cancel()
}
