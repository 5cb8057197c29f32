package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"multimodel-video/internal/config"
	"multimodel-video/internal/domain"
	"multimodel-video/internal/domain/model"
	"multimodel-video/internal/domain/ports/adapter"
	"multimodel-video/internal/infra/cache"
	"multimodel-video/internal/usecase"
)

// fakeRAG counts generation calls. With block set it hangs until the caller's
// deadline fires.
type fakeRAG struct {
	mu    sync.Mutex
	calls int
	block bool
}

func (f *fakeRAG) Answer(ctx context.Context, query string, history []model.ChatMessage, videoRef string) (*adapter.Answer, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &adapter.Answer{
		Reply:      "answer to " + query,
		Confidence: 0.9,
		Citations:  []model.Citation{{Timestamp: 15, Confidence: 0.9}},
	}, nil
}

func (f *fakeRAG) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func chatConfig() config.ChatConfig {
	return config.ChatConfig{
		HistoryWindow:     4,
		SessionTTL:        time.Hour,
		ResponseTTL:       time.Hour,
		GenerationTimeout: 50 * time.Millisecond,
	}
}

func newChatEnv(t *testing.T) (context.Context, *fakeRAG, *memPublisher, usecase.ChatUseCase) {
	ctx := testCtx(t)
	kv := cache.New(ctx, nil, time.Second, 0, testLogger())
	rag := &fakeRAG{}
	pub := &memPublisher{}
	return ctx, rag, pub, usecase.NewChatUseCase(kv, pub, rag, chatConfig(), testLogger())
}

func TestCreateSessionReusesActivePair(t *testing.T) {
	t.Parallel()
	ctx, _, _, uc := newChatEnv(t)

	first, err := uc.CreateSession(ctx, "vid-1", "user-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := uc.CreateSession(ctx, "vid-1", "user-1")
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("same pair produced sessions %s and %s, want reuse", first.ID, second.ID)
	}

	other, err := uc.CreateSession(ctx, "vid-1", "user-2")
	if err != nil {
		t.Fatalf("other user: %v", err)
	}
	if other.ID == first.ID {
		t.Fatal("different user must get a distinct session")
	}
}

func TestCreateSessionValidation(t *testing.T) {
	t.Parallel()
	ctx, _, _, uc := newChatEnv(t)
	if _, err := uc.CreateSession(ctx, "", "user"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("empty video err = %v, want ErrInvalidArgument", err)
	}
	if _, err := uc.CreateSession(ctx, "vid", "  "); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("blank user err = %v, want ErrInvalidArgument", err)
	}
}

func TestPostMessageAppendsExchange(t *testing.T) {
	t.Parallel()
	ctx, rag, pub, uc := newChatEnv(t)
	sess, _ := uc.CreateSession(ctx, "vid-1", "user-1")

	reply, err := uc.PostMessage(ctx, sess.ID, "what is shown?")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if reply.Role != "assistant" || reply.Content == "" {
		t.Fatalf("reply = %+v, want assistant content", reply)
	}
	if len(reply.Citations) != 1 {
		t.Fatalf("citations = %d, want 1", len(reply.Citations))
	}
	if rag.callCount() != 1 {
		t.Fatalf("generation calls = %d, want 1", rag.callCount())
	}

	history, err := uc.History(ctx, sess.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[0].Role != "user" || history[1].Role != "assistant" {
		t.Fatalf("history = %+v, want [user assistant]", history)
	}

	// The reply reached the session room.
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.events) != 1 || pub.events[0].RoomID != model.ChatRoom(sess.ID) {
		t.Fatalf("published events = %+v, want one in the session room", pub.events)
	}
}

func TestRepeatedQuestionHitsCache(t *testing.T) {
	t.Parallel()
	ctx, rag, _, uc := newChatEnv(t)
	sess, _ := uc.CreateSession(ctx, "vid-1", "user-1")

	first, err := uc.PostMessage(ctx, sess.ID, "What happens at the start?")
	if err != nil {
		t.Fatalf("first post: %v", err)
	}
	second, err := uc.PostMessage(ctx, sess.ID, "what happens at   the start?")
	if err != nil {
		t.Fatalf("second post: %v", err)
	}
	if rag.callCount() != 1 {
		t.Fatalf("generation calls = %d, want cache hit on repeat", rag.callCount())
	}
	if first.Content != second.Content {
		t.Fatalf("cached reply differs: %q vs %q", first.Content, second.Content)
	}
}

func TestSameQuestionDifferentContextRegenerates(t *testing.T) {
	t.Parallel()
	ctx, rag, _, uc := newChatEnv(t)
	sess, _ := uc.CreateSession(ctx, "vid-1", "user-1")

	if _, err := uc.PostMessage(ctx, sess.ID, "who appears?"); err != nil {
		t.Fatalf("post 1: %v", err)
	}
	if _, err := uc.PostMessage(ctx, sess.ID, "and where?"); err != nil {
		t.Fatalf("post 2: %v", err)
	}
	// Same words, but the conversation in between changed the context.
	if _, err := uc.PostMessage(ctx, sess.ID, "who appears?"); err != nil {
		t.Fatalf("post 3: %v", err)
	}
	if rag.callCount() != 3 {
		t.Fatalf("generation calls = %d, want 3 (no stale cache reuse)", rag.callCount())
	}
}

func TestHistoryWindowBounded(t *testing.T) {
	t.Parallel()
	ctx, _, _, uc := newChatEnv(t)
	sess, _ := uc.CreateSession(ctx, "vid-1", "user-1")

	questions := []string{"q1", "q2", "q3"}
	for _, q := range questions {
		if _, err := uc.PostMessage(ctx, sess.ID, q); err != nil {
			t.Fatalf("post %s: %v", q, err)
		}
	}
	history, err := uc.History(ctx, sess.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	// Window is 4: three exchanges produce six messages, two evicted.
	if len(history) != 4 {
		t.Fatalf("history length = %d, want window 4", len(history))
	}
	if history[0].Content != "q2" {
		t.Fatalf("oldest retained = %q, want q2", history[0].Content)
	}
}

func TestPostMessageValidation(t *testing.T) {
	t.Parallel()
	ctx, _, _, uc := newChatEnv(t)
	sess, _ := uc.CreateSession(ctx, "vid-1", "user-1")

	if _, err := uc.PostMessage(ctx, sess.ID, "   "); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("blank content err = %v, want ErrInvalidArgument", err)
	}
	if _, err := uc.PostMessage(ctx, "no-such-session", "hi"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("unknown session err = %v, want ErrSessionNotFound", err)
	}
}

func TestEndSession(t *testing.T) {
	t.Parallel()
	ctx, _, pub, uc := newChatEnv(t)
	sess, _ := uc.CreateSession(ctx, "vid-1", "user-1")

	if err := uc.EndSession(ctx, sess.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	pub.mu.Lock()
	closed := append([]string(nil), pub.closed...)
	pub.mu.Unlock()
	if len(closed) != 1 || closed[0] != model.ChatRoom(sess.ID) {
		t.Fatalf("closed rooms = %v, want the session room", closed)
	}
	if _, err := uc.PostMessage(ctx, sess.ID, "hello?"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("post after end = %v, want ErrSessionNotFound", err)
	}
}

func TestGenerationTimeout(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	kv := cache.New(ctx, nil, time.Second, 0, testLogger())
	rag := &fakeRAG{block: true}
	uc := usecase.NewChatUseCase(kv, &memPublisher{}, rag, chatConfig(), testLogger())

	sess, _ := uc.CreateSession(ctx, "vid-1", "user-1")
	if _, err := uc.PostMessage(ctx, sess.ID, "slow question"); !errors.Is(err, domain.ErrGenerationTimeout) {
		t.Fatalf("post = %v, want ErrGenerationTimeout", err)
	}

	// The question itself is retained even though generation failed.
	history, err := uc.History(ctx, sess.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Role != "user" {
		t.Fatalf("history = %+v, want just the user message", history)
	}
}
