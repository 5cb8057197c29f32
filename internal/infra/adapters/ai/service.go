// File: internal/infra/adapters/ai/service.go
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"multimodel-video/internal/domain/model"
	"multimodel-video/internal/domain/ports/adapter"
	kvstore "multimodel-video/internal/domain/ports/store"
	"multimodel-video/internal/infra/metrics"

	"github.com/rs/zerolog"
)

var _ adapter.RAGService = (*Service)(nil)

// Message is the provider-neutral chat message shape.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is one generation backend. The service tries providers in order
// and falls through on error, so a dead backend degrades latency, not
// availability.
type Provider interface {
	Name() string
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Service implements the generation port on top of a provider chain. It
// grounds each query in the analysis artifacts written by the processing
// pipeline and extracts video timestamp citations from the reply.
type Service struct {
	providers []Provider
	kv        kvstore.KV
	log       *zerolog.Logger
}

func NewService(kv kvstore.KV, logger *zerolog.Logger, providers ...Provider) (*Service, error) {
	if len(providers) == 0 {
		return nil, errors.New("ai: at least one provider required")
	}
	l := logger.With().Str("component", "ai.Service").Logger()
	return &Service{providers: providers, kv: kv, log: &l}, nil
}

func (s *Service) Answer(ctx context.Context, query string, history []model.ChatMessage, videoRef string) (*adapter.Answer, error) {
	msgs := s.buildMessages(ctx, query, history, videoRef)
	tokens := countTokens(msgs)

	var lastErr error
	for _, p := range s.providers {
		start := time.Now()
		reply, err := p.Chat(ctx, msgs)
		metrics.ObserveRAGCall(p.Name(), int(time.Since(start)/time.Millisecond), err == nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn().Err(err).Str("provider", p.Name()).Msg("provider failed, falling through")
			lastErr = err
			continue
		}
		metrics.AddRAGPromptTokens(p.Name(), tokens)

		citations := ExtractCitations(reply)
		return &adapter.Answer{
			Reply:      reply,
			Confidence: confidenceFor(citations),
			Citations:  citations,
		}, nil
	}
	return nil, fmt.Errorf("no provider answered: %w", lastErr)
}

// buildMessages assembles system grounding + bounded history + the query.
// Missing artifacts are fine: the assistant just answers without transcript
// grounding, which is what happens before processing completes.
func (s *Service) buildMessages(ctx context.Context, query string, history []model.ChatMessage, videoRef string) []Message {
	var sb strings.Builder
	sb.WriteString("You are an assistant answering questions about the video ")
	sb.WriteString(videoRef)
	sb.WriteString(". Cite positions in the video as mm:ss timestamps when the answer refers to a specific moment.")

	if transcript := s.loadTranscript(ctx, videoRef); transcript != "" {
		sb.WriteString("\n\nTranscript:\n")
		sb.WriteString(transcript)
	}

	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, Message{Role: "system", Content: sb.String()})
	for _, m := range history {
		msgs = append(msgs, Message{Role: m.Role, Content: m.Content})
	}
	return append(msgs, Message{Role: "user", Content: query})
}

func (s *Service) loadTranscript(ctx context.Context, videoRef string) string {
	b, err := s.kv.Get(ctx, kvstore.NamespaceVideoData, videoRef+":transcript")
	if err != nil {
		return ""
	}
	var segments []adapter.TranscriptSegment
	if err := json.Unmarshal(b, &segments); err != nil {
		return ""
	}
	var sb strings.Builder
	for _, seg := range segments {
		fmt.Fprintf(&sb, "[%s] %s\n", formatTimestamp(seg.Start), seg.Text)
	}
	return sb.String()
}

// confidenceFor scores a reply by how well it is anchored into the video.
func confidenceFor(citations []model.Citation) float64 {
	if len(citations) == 0 {
		return 0.6
	}
	return 0.9
}
