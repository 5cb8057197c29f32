package ai

import (
	"context"
	"fmt"
	"time"
)

var _ Provider = (*NoopProvider)(nil)

// NoopProvider is the dev-mode backend. It fabricates a short grounded-looking
// reply, complete with a timestamp so citation extraction has something to
// find.
type NoopProvider struct{}

func NewNoopProvider() *NoopProvider { return &NoopProvider{} }

func (p *NoopProvider) Name() string { return "noop" }

func (p *NoopProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	return fmt.Sprintf("Regarding %q: the relevant part starts around 0:15.", last), nil
}
