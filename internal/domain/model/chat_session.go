package model

import (
	"time"
)

// DefaultHistoryWindow bounds how many recent messages a session retains.
const DefaultHistoryWindow = 10

// Citation points a generated reply back into the source video: a position in
// seconds plus the collaborator's confidence in the reference.
type Citation struct {
	Timestamp  float64 `json:"timestamp"`
	Snippet    string  `json:"snippet,omitempty"`
	Confidence float64 `json:"confidence"`
}

// ChatMessage represents one message within a chat session.
type ChatMessage struct {
	Role       string     `json:"role"` // "user" | "assistant"
	Content    string     `json:"content"`
	Confidence float64    `json:"confidence,omitempty"`
	Citations  []Citation `json:"citations,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// ChatSession is the aggregate root for a conversation about one video.
// Messages is a fixed-capacity window: appending beyond Window evicts the
// oldest entry, so the slice always holds the most recent Window messages in
// insertion order.
type ChatSession struct {
	ID        string        `json:"id"`
	VideoRef  string        `json:"video_ref"`
	UserRef   string        `json:"user_ref"`
	Active    bool          `json:"active"`
	Window    int           `json:"window"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func NewChatSession(id, videoRef, userRef string, window int) *ChatSession {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	now := time.Now().UTC()
	return &ChatSession{
		ID:        id,
		VideoRef:  videoRef,
		UserRef:   userRef,
		Active:    true,
		Window:    window,
		Messages:  make([]ChatMessage, 0, window),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds a message, evicting the oldest when the window is full.
func (s *ChatSession) Append(msg ChatMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	s.Messages = append(s.Messages, msg)
	if over := len(s.Messages) - s.Window; over > 0 {
		s.Messages = append(s.Messages[:0], s.Messages[over:]...)
	}
	s.UpdatedAt = time.Now().UTC()
}

// Recent returns up to n most recent messages, oldest first.
func (s *ChatSession) Recent(n int) []ChatMessage {
	if n <= 0 || len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}
