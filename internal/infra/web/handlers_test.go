package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"multimodel-video/internal/config"
	"multimodel-video/internal/domain/model"
	ai "multimodel-video/internal/infra/adapters/ai"
	"multimodel-video/internal/infra/adapters/media"
	"multimodel-video/internal/infra/cache"
	"multimodel-video/internal/infra/web"
	"multimodel-video/internal/infra/worker"
	"multimodel-video/internal/infra/ws"
	"multimodel-video/internal/pipeline"
	"multimodel-video/internal/usecase"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type testStack struct {
	ts  *httptest.Server
	hub *ws.Hub
}

func newStack(t *testing.T) *testStack {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{}
	cfg.ApplyDefaults()

	kv := cache.New(ctx, nil, cfg.Redis.ProbeInterval, cfg.Redis.SetRetries, testLogger())
	hub := ws.NewHub(ws.NewRegistry(), cfg.Websocket.SendBuffer, testLogger())
	wsSrv := ws.NewServer(hub, cfg.Websocket, testLogger())

	pool := worker.NewPool(2, 8, testLogger())
	pool.Start(ctx)
	t.Cleanup(pool.Stop)

	taskUC := usecase.NewTaskUseCase(kv, hub, pool, time.Hour, testLogger())
	pipeline.New(media.NewNoopProcessor(), kv, time.Hour, testLogger()).RegisterAll(taskUC)

	rag, err := ai.NewService(kv, testLogger(), ai.NewNoopProvider())
	if err != nil {
		t.Fatalf("generation service: %v", err)
	}
	chatUC := usecase.NewChatUseCase(kv, hub, rag, cfg.Chat, testLogger())

	srv := web.NewServer(taskUC, chatUC, kv, wsSrv, testLogger())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testStack{ts: ts, hub: hub}
}

func (s *testStack) request(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, s.ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	_, _ = out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func TestHealthReportsStoreMode(t *testing.T) {
	t.Parallel()
	s := newStack(t)
	resp, body := s.request(t, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var h struct {
		Available bool   `json:"available"`
		Mode      string `json:"mode"`
	}
	if err := json.Unmarshal(body, &h); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if h.Mode != "degraded" {
		t.Fatalf("mode = %q, want degraded without a backing store", h.Mode)
	}
}

func TestMetricsExportsCollectors(t *testing.T) {
	t.Parallel()
	s := newStack(t)

	// Drive one task through so the orchestrator counters have samples.
	resp, body := s.request(t, http.MethodPost, "/api/v1/tasks", map[string]any{
		"kind":      "upload-process",
		"video_ref": "vid-metrics",
		"payload":   map[string]string{"file_path": "/v.mp4"},
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit status = %d body=%s, want 202", resp.StatusCode, body)
	}

	resp, body = s.request(t, http.MethodGet, "/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics = %d, want 200", resp.StatusCode)
	}
	text := string(body)
	if !strings.Contains(text, `tasks_submitted_total{kind="upload-process"}`) {
		t.Fatalf("metrics output missing the submit counter:\n%s", text)
	}
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	t.Parallel()
	s := newStack(t)

	resp, body := s.request(t, http.MethodPost, "/api/v1/tasks", map[string]any{
		"kind":      "upload-process",
		"video_ref": "vid-http",
		"payload":   map[string]string{"file_path": "/v.mp4"},
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit status = %d body=%s, want 202", resp.StatusCode, body)
	}
	var submitted struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(body, &submitted); err != nil || submitted.TaskID == "" {
		t.Fatalf("submit body %s: %v", body, err)
	}

	var task model.Task
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, body = s.request(t, http.MethodGet, "/api/v1/tasks/"+submitted.TaskID, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status fetch = %d body=%s", resp.StatusCode, body)
		}
		if err := json.Unmarshal(body, &task); err != nil {
			t.Fatalf("decode task: %v", err)
		}
		if task.Status.Terminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("task never finished, last status %s", task.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if task.Status != model.TaskStatusSuccess {
		t.Fatalf("status = %s error=%+v, want SUCCESS", task.Status, task.Error)
	}

	// Terminal tasks cannot be cancelled.
	resp, _ = s.request(t, http.MethodDelete, "/api/v1/tasks/"+submitted.TaskID, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("cancel terminal = %d, want 409", resp.StatusCode)
	}
}

func TestTaskErrors(t *testing.T) {
	t.Parallel()
	s := newStack(t)

	resp, _ := s.request(t, http.MethodPost, "/api/v1/tasks", map[string]any{"kind": "transmogrify"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown kind = %d, want 400", resp.StatusCode)
	}
	resp, _ = s.request(t, http.MethodGet, "/api/v1/tasks/does-not-exist", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown task = %d, want 404", resp.StatusCode)
	}
}

func TestSessionFlowOverHTTP(t *testing.T) {
	t.Parallel()
	s := newStack(t)

	resp, body := s.request(t, http.MethodPost, "/api/v1/sessions", map[string]string{
		"video_ref": "vid-chat",
		"user_ref":  "user-1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session = %d body=%s, want 201", resp.StatusCode, body)
	}
	var sess model.ChatSession
	if err := json.Unmarshal(body, &sess); err != nil || sess.ID == "" {
		t.Fatalf("session body %s: %v", body, err)
	}

	resp, body = s.request(t, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/messages", sess.ID), map[string]string{
		"content": "what is this about?",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("post message = %d body=%s, want 200", resp.StatusCode, body)
	}
	var reply model.ChatMessage
	if err := json.Unmarshal(body, &reply); err != nil || reply.Role != "assistant" {
		t.Fatalf("reply body %s: %v", body, err)
	}

	resp, body = s.request(t, http.MethodGet, fmt.Sprintf("/api/v1/sessions/%s/messages", sess.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history = %d, want 200", resp.StatusCode)
	}
	var history struct {
		Messages []model.ChatMessage `json:"messages"`
	}
	if err := json.Unmarshal(body, &history); err != nil || len(history.Messages) != 2 {
		t.Fatalf("history body %s: %v", body, err)
	}

	resp, _ = s.request(t, http.MethodDelete, "/api/v1/sessions/"+sess.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("end session = %d, want 204", resp.StatusCode)
	}
	resp, _ = s.request(t, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/messages", sess.ID), map[string]string{"content": "hi"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("post after end = %d, want 404", resp.StatusCode)
	}
}

func TestWebsocketReceivesRoomEvents(t *testing.T) {
	t.Parallel()
	s := newStack(t)

	wsURL := "ws" + strings.TrimPrefix(s.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"action": "join", "room_id": "task:t1"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for s.hub.RoomSize("task:t1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("join never registered")
		}
		time.Sleep(2 * time.Millisecond)
	}

	task := model.NewTask("t1", model.TaskKindUploadProcess, "vid", nil)
	s.hub.Publish(context.Background(), model.NewTaskEvent(task))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env model.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	if env.RoomID != "task:t1" || env.EventType != model.EventTaskStatus {
		t.Fatalf("envelope = %+v, want task-status in task:t1", env)
	}
}
