package model

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventTaskStatus  EventType = "task-status"
	EventChatMessage EventType = "chat-message"
)

// Envelope is the broadcast wire shape. Payload carries the full Task or
// ChatMessage record serialized as JSON.
type Envelope struct {
	RoomID    string          `json:"room_id"`
	EventType EventType       `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	EmittedAt time.Time       `json:"emitted_at"`
}

// TaskRoom and ChatRoom derive the broadcast room id for an entity. Rooms are
// created implicitly on first join and garbage-collected at zero membership.
func TaskRoom(taskID string) string    { return "task:" + taskID }
func ChatRoom(sessionID string) string { return "chat:" + sessionID }

func NewTaskEvent(task *Task) Envelope {
	payload, _ := json.Marshal(task)
	return Envelope{
		RoomID:    TaskRoom(task.ID),
		EventType: EventTaskStatus,
		Payload:   payload,
		EmittedAt: time.Now().UTC(),
	}
}

func NewChatEvent(sessionID string, msg ChatMessage) Envelope {
	payload, _ := json.Marshal(msg)
	return Envelope{
		RoomID:    ChatRoom(sessionID),
		EventType: EventChatMessage,
		Payload:   payload,
		EmittedAt: time.Now().UTC(),
	}
}
