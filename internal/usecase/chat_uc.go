// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"multimodel-video/internal/config"
	"multimodel-video/internal/domain"
	"multimodel-video/internal/domain/model"
	"multimodel-video/internal/domain/ports/adapter"
	"multimodel-video/internal/domain/ports/broadcast"
	"multimodel-video/internal/domain/ports/store"
	"multimodel-video/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

type ChatUseCase interface {
	// CreateSession returns the active session for the (video, user) pair,
	// creating one on the first request.
	CreateSession(ctx context.Context, videoRef, userRef string) (*model.ChatSession, error)

	// PostMessage appends the user message, answers it (from the response
	// cache or the generation collaborator), broadcasts the reply to the
	// session room and returns it.
	PostMessage(ctx context.Context, sessionID, content string) (*model.ChatMessage, error)

	// History returns the current bounded message window, oldest first.
	History(ctx context.Context, sessionID string) ([]model.ChatMessage, error)

	// EndSession deactivates the session and closes its broadcast room.
	// Cached data is left to expire via TTL.
	EndSession(ctx context.Context, sessionID string) error
}

type chatUC struct {
	kv  store.KV
	pub broadcast.Publisher
	rag adapter.RAGService
	cfg config.ChatConfig
	log *zerolog.Logger
}

func NewChatUseCase(kv store.KV, pub broadcast.Publisher, rag adapter.RAGService, cfg config.ChatConfig, logger *zerolog.Logger) *chatUC {
	l := logger.With().Str("component", "ChatUC").Logger()
	return &chatUC{kv: kv, pub: pub, rag: rag, cfg: cfg, log: &l}
}

func (c *chatUC) CreateSession(ctx context.Context, videoRef, userRef string) (*model.ChatSession, error) {
	videoRef = strings.TrimSpace(videoRef)
	userRef = strings.TrimSpace(userRef)
	if videoRef == "" || userRef == "" {
		return nil, domain.ErrInvalidArgument
	}

	// One active session per (video, user) pair.
	pairKey := "byref:" + videoRef + ":" + userRef
	if b, err := c.kv.Get(ctx, store.NamespaceSession, pairKey); err == nil {
		if s, err := c.loadSession(ctx, string(b)); err == nil && s.Active {
			return s, nil
		}
	}

	s := model.NewChatSession(uuid.NewString(), videoRef, userRef, c.cfg.HistoryWindow)
	if err := c.saveSession(ctx, s); err != nil {
		return nil, err
	}
	if err := c.kv.Set(ctx, store.NamespaceSession, pairKey, []byte(s.ID), c.cfg.SessionTTL); err != nil {
		return nil, err
	}
	c.log.Info().Str("session_id", s.ID).Str("video_ref", videoRef).Msg("chat session created")
	return s, nil
}

func (c *chatUC) PostMessage(ctx context.Context, sessionID, content string) (*model.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrInvalidArgument
	}
	s, err := c.loadSession(ctx, sessionID)
	if err != nil || !s.Active {
		return nil, domain.ErrSessionNotFound
	}

	// The cache key binds the reply to its conversational context: same
	// video, same normalized question, same recent history -> same answer.
	cacheKey := responseCacheKey(s.VideoRef, content, s.Messages)

	s.Append(model.ChatMessage{Role: "user", Content: content})
	metrics.IncChatMessage("user")
	// Persist before generation so a failed call never loses the question.
	if err := c.saveSession(ctx, s); err != nil {
		return nil, err
	}

	var reply model.ChatMessage
	if b, err := c.kv.Get(ctx, store.NamespaceResponseCache, cacheKey); err == nil {
		if err := json.Unmarshal(b, &reply); err != nil {
			return nil, fmt.Errorf("decode cached reply: %w", err)
		}
		c.log.Debug().Str("session_id", sessionID).Msg("response cache hit")
	} else {
		reply, err = c.generate(ctx, s, content)
		if err != nil {
			return nil, err
		}
		if b, err := json.Marshal(reply); err == nil {
			_ = c.kv.Set(ctx, store.NamespaceResponseCache, cacheKey, b, c.cfg.ResponseTTL)
		}
	}

	// Per-video question counter, available to the analytics surface.
	_, _ = c.kv.Incr(ctx, store.NamespaceVideoData, s.VideoRef+":questions", c.cfg.SessionTTL)

	s.Append(reply)
	metrics.IncChatMessage("assistant")
	if err := c.saveSession(ctx, s); err != nil {
		return nil, err
	}

	c.pub.Publish(ctx, model.NewChatEvent(s.ID, reply))
	return &reply, nil
}

func (c *chatUC) History(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	s, err := c.loadSession(ctx, sessionID)
	if err != nil {
		return nil, domain.ErrSessionNotFound
	}
	out := make([]model.ChatMessage, len(s.Messages))
	copy(out, s.Messages)
	return out, nil
}

func (c *chatUC) EndSession(ctx context.Context, sessionID string) error {
	s, err := c.loadSession(ctx, sessionID)
	if err != nil {
		return domain.ErrSessionNotFound
	}
	s.Active = false
	s.UpdatedAt = time.Now().UTC()
	if err := c.saveSession(ctx, s); err != nil {
		return err
	}
	c.pub.CloseRoom(model.ChatRoom(sessionID))
	c.log.Info().Str("session_id", sessionID).Msg("chat session ended")
	return nil
}

// generate calls the external collaborator under the configured timeout.
// Nothing is cached on failure.
func (c *chatUC) generate(ctx context.Context, s *model.ChatSession, content string) (model.ChatMessage, error) {
	genCtx, cancel := context.WithTimeout(ctx, c.cfg.GenerationTimeout)
	defer cancel()

	answer, err := c.rag.Answer(genCtx, content, s.Recent(s.Window), s.VideoRef)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return model.ChatMessage{}, domain.ErrGenerationTimeout
		}
		return model.ChatMessage{}, fmt.Errorf("generation: %w", err)
	}

	return model.ChatMessage{
		Role:       "assistant",
		Content:    answer.Reply,
		Confidence: answer.Confidence,
		Citations:  answer.Citations,
		Timestamp:  time.Now().UTC(),
	}, nil
}

func (c *chatUC) saveSession(ctx context.Context, s *model.ChatSession) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.kv.Set(ctx, store.NamespaceSession, s.ID, b, c.cfg.SessionTTL)
}

func (c *chatUC) loadSession(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	b, err := c.kv.Get(ctx, store.NamespaceSession, sessionID)
	if err != nil {
		return nil, err
	}
	var s model.ChatSession
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// responseCacheKey hashes (video, normalized content, recent history) so that
// duplicate questions in the same context reuse the cached reply while the
// same question under different context regenerates.
func responseCacheKey(videoRef, content string, history []model.ChatMessage) string {
	// A repeated question must hit the entry written for its first
	// occurrence, so the exchange that occurrence produced is stripped
	// before hashing.
	if n := len(history); n >= 2 &&
		history[n-1].Role == "assistant" && history[n-2].Role == "user" &&
		normalize(history[n-2].Content) == normalize(content) {
		history = history[:n-2]
	}

	h := sha256.New()
	h.Write([]byte(videoRef))
	h.Write([]byte{0})
	h.Write([]byte(normalize(content)))
	for _, m := range history {
		h.Write([]byte{0})
		h.Write([]byte(m.Role))
		h.Write([]byte{':'})
		h.Write([]byte(m.Content))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
