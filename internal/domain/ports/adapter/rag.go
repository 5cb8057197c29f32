package adapter

import (
	"context"

	"multimodel-video/internal/domain/model"
)

// Answer is the structured result of one generation call.
type Answer struct {
	Reply      string
	Confidence float64
	Citations  []model.Citation
}

// RAGService is the port for the external retrieval-augmented generation
// collaborator. Implementations must be idempotent enough that identical
// (query, history, videoRef) inputs may be safely cached.
type RAGService interface {
	// Answer generates a reply to query grounded in the referenced video,
	// using the bounded history as conversational context.
	Answer(ctx context.Context, query string, history []model.ChatMessage, videoRef string) (*Answer, error)
}
