package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"multimodel-video/internal/config"
	"multimodel-video/internal/domain/model"
	aiAdapters "multimodel-video/internal/infra/adapters/ai"
	"multimodel-video/internal/infra/adapters/media"
	"multimodel-video/internal/infra/cache"
	"multimodel-video/internal/infra/logging"
	"multimodel-video/internal/infra/worker"
	"multimodel-video/internal/infra/ws"
	"multimodel-video/internal/pipeline"
	"multimodel-video/internal/usecase"
)

// End-to-end walkthrough against in-process collaborators: no redis, no real
// providers, no network.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Default config, degraded store from the start
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Runtime.Dev = true
	logger := logging.New(cfg.Log, true)

	kv := cache.New(ctx, nil, cfg.Redis.ProbeInterval, cfg.Redis.SetRetries, logger)
	hub := ws.NewHub(ws.NewRegistry(), cfg.Websocket.SendBuffer, logger)

	pool := worker.NewPool(2, 8, logger)
	pool.Start(ctx)
	defer pool.Stop()

	taskUC := usecase.NewTaskUseCase(kv, hub, pool, cfg.Tasks.StateTTL, logger)
	pipeline.New(media.NewNoopProcessor(), kv, cfg.Tasks.DataTTL, logger).RegisterAll(taskUC)

	rag, err := aiAdapters.NewService(kv, logger, aiAdapters.NewNoopProvider())
	if err != nil {
		log.Fatalf("generation service: %v", err)
	}
	chatUC := usecase.NewChatUseCase(kv, hub, rag, cfg.Chat, logger)

	// 2. Process a video
	payload, _ := json.Marshal(map[string]string{"file_path": "/videos/demo.mp4"})
	taskID, err := taskUC.Submit(ctx, usecase.SubmitRequest{
		Kind:     model.TaskKindUploadProcess,
		VideoRef: "demo-video",
		Payload:  payload,
	})
	if err != nil {
		log.Fatalf("submit: %v", err)
	}
	task := waitTerminal(ctx, taskUC, taskID)
	log.Printf("task %s finished: status=%s result=%s", taskID, task.Status, task.Result)

	// 3. Ask about it, twice: the second answer comes from the response cache
	sess, err := chatUC.CreateSession(ctx, "demo-video", "demo-user")
	if err != nil {
		log.Fatalf("create session: %v", err)
	}
	for i := 0; i < 2; i++ {
		reply, err := chatUC.PostMessage(ctx, sess.ID, "What happens at the start?")
		if err != nil {
			log.Fatalf("post message: %v", err)
		}
		log.Printf("reply %d: %s (citations=%d)", i+1, reply.Content, len(reply.Citations))
	}

	// 4. Wind down
	if err := chatUC.EndSession(ctx, sess.ID); err != nil {
		log.Fatalf("end session: %v", err)
	}
	log.Printf("session %s ended", sess.ID)
}

func waitTerminal(ctx context.Context, uc usecase.TaskUseCase, taskID string) *model.Task {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		task, err := uc.Status(ctx, taskID)
		if err == nil && task.Status.Terminal() {
			return task
		}
		time.Sleep(50 * time.Millisecond)
	}
	log.Fatalf("task %s did not finish in time", taskID)
	return nil
}
