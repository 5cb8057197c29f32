package pipeline_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"multimodel-video/internal/domain/model"
	"multimodel-video/internal/domain/ports/store"
	"multimodel-video/internal/infra/adapters/media"
	"multimodel-video/internal/infra/cache"
	"multimodel-video/internal/infra/worker"
	"multimodel-video/internal/pipeline"
	"multimodel-video/internal/usecase"

	"github.com/rs/zerolog"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type nopPublisher struct{}

func (p *nopPublisher) Publish(ctx context.Context, env model.Envelope) {}
func (p *nopPublisher) CloseRoom(roomID string)                         {}
func (p *nopPublisher) RoomSize(roomID string) int                      { return 0 }

type pipelineEnv struct {
	ctx context.Context
	kv  *cache.Store
	uc  usecase.TaskUseCase
}

func newPipelineEnv(t *testing.T) *pipelineEnv {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	kv := cache.New(ctx, nil, time.Second, 0, testLogger())
	pool := worker.NewPool(2, 8, testLogger())
	pool.Start(ctx)
	t.Cleanup(pool.Stop)

	uc := usecase.NewTaskUseCase(kv, &nopPublisher{}, pool, time.Hour, testLogger())
	pipeline.New(media.NewNoopProcessor(), kv, time.Hour, testLogger()).RegisterAll(uc)
	return &pipelineEnv{ctx: ctx, kv: kv, uc: uc}
}

func (e *pipelineEnv) run(t *testing.T, kind model.TaskKind, videoRef string, payload any) *model.Task {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		raw = b
	}
	id, err := e.uc.Submit(e.ctx, usecase.SubmitRequest{Kind: kind, VideoRef: videoRef, Payload: raw})
	if err != nil {
		t.Fatalf("submit %s: %v", kind, err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		task, err := e.uc.Status(e.ctx, id)
		if err == nil && task.Status.Terminal() {
			return task
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("task %s (%s) never finished", id, kind)
	return nil
}

func (e *pipelineEnv) artifact(t *testing.T, videoRef, name string) []byte {
	t.Helper()
	b, err := e.kv.Get(e.ctx, store.NamespaceVideoData, videoRef+":"+name)
	if err != nil {
		t.Fatalf("artifact %s missing: %v", name, err)
	}
	return b
}

func TestUploadProcessWritesArtifacts(t *testing.T) {
	t.Parallel()
	env := newPipelineEnv(t)
	task := env.run(t, model.TaskKindUploadProcess, "vid-1", map[string]string{"file_path": "/v.mp4"})
	if task.Status != model.TaskStatusSuccess {
		t.Fatalf("status = %s error=%+v, want SUCCESS", task.Status, task.Error)
	}

	var result pipeline.ProcessResult
	if err := json.Unmarshal(task.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Segments == 0 || result.Frames == 0 {
		t.Fatalf("result = %+v, want transcript segments and frames", result)
	}
	env.artifact(t, "vid-1", "transcript")
	env.artifact(t, "vid-1", "frames")
}

func TestRemoteImportFetchesThenProcesses(t *testing.T) {
	t.Parallel()
	env := newPipelineEnv(t)
	task := env.run(t, model.TaskKindRemoteImport, "vid-2", map[string]string{"url": "https://example.com/v"})
	if task.Status != model.TaskStatusSuccess {
		t.Fatalf("status = %s error=%+v, want SUCCESS", task.Status, task.Error)
	}
	env.artifact(t, "vid-2", "transcript")
}

func TestAnalysisStagesChainOffArtifacts(t *testing.T) {
	t.Parallel()
	env := newPipelineEnv(t)
	env.run(t, model.TaskKindUploadProcess, "vid-3", map[string]string{"file_path": "/v.mp4"})

	for _, kind := range []model.TaskKind{
		model.TaskKindEmbeddingGenerate,
		model.TaskKindVisualAnalyze,
		model.TaskKindContentAnalyze,
	} {
		task := env.run(t, kind, "vid-3", nil)
		if task.Status != model.TaskStatusSuccess {
			t.Fatalf("%s status = %s error=%+v, want SUCCESS", kind, task.Status, task.Error)
		}
	}
	env.artifact(t, "vid-3", "visual")
	env.artifact(t, "vid-3", "topics")
}

func TestInvalidPayloadFailsAsInvalidInput(t *testing.T) {
	t.Parallel()
	env := newPipelineEnv(t)
	task := env.run(t, model.TaskKindUploadProcess, "vid-4", map[string]string{})
	if task.Status != model.TaskStatusFailure || task.Error == nil || task.Error.Kind != model.TaskErrInvalidInput {
		t.Fatalf("task = %s %+v, want invalid-input FAILURE", task.Status, task.Error)
	}
}

func TestAnalysisWithoutTranscriptFails(t *testing.T) {
	t.Parallel()
	env := newPipelineEnv(t)
	task := env.run(t, model.TaskKindContentAnalyze, "never-processed", nil)
	if task.Status != model.TaskStatusFailure || task.Error == nil || task.Error.Kind != model.TaskErrInvalidInput {
		t.Fatalf("task = %s %+v, want invalid-input FAILURE", task.Status, task.Error)
	}
}
