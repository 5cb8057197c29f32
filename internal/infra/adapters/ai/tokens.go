package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	encoder *tiktoken.Tiktoken
)

// countTokens estimates prompt size with the cl100k_base encoding. When the
// encoding cannot be loaded it falls back to the usual 4-chars-per-token
// heuristic rather than failing the request.
func countTokens(msgs []Message) int {
	encOnce.Do(func() {
		encoder, _ = tiktoken.GetEncoding("cl100k_base")
	})
	total := 0
	for _, m := range msgs {
		if encoder != nil {
			total += len(encoder.Encode(m.Content, nil, nil))
		} else {
			total += len(m.Content) / 4
		}
	}
	return total
}
