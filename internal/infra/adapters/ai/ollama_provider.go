package ai

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

var _ Provider = (*OllamaProvider)(nil)

// OllamaProvider answers via a local or self-hosted Ollama instance. It is
// the tail of the provider chain: no key needed, works offline.
type OllamaProvider struct {
	client *api.Client
	model  string
}

func NewOllamaProvider(host, model string) (*OllamaProvider, error) {
	if host == "" {
		return nil, errors.New("ollama: empty host")
	}
	if model == "" {
		model = "llama3.2"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, err
	}
	return &OllamaProvider{client: api.NewClient(u, http.DefaultClient), model: model}, nil
}

func (p *OllamaProvider) Name() string { return "ollama" }

func (p *OllamaProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	req := &api.ChatRequest{
		Model:    p.model,
		Stream:   new(bool), // single response, no streaming
		Messages: make([]api.Message, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, api.Message{Role: m.Role, Content: m.Content})
	}

	var sb strings.Builder
	err := p.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	if sb.Len() == 0 {
		return "", errors.New("ollama: empty response")
	}
	return sb.String(), nil
}
