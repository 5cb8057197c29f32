package model

import (
	"encoding/json"
	"time"
)

type TaskKind string

const (
	TaskKindUploadProcess     TaskKind = "upload-process"
	TaskKindRemoteImport      TaskKind = "remote-import"
	TaskKindEmbeddingGenerate TaskKind = "embedding-generate"
	TaskKindVisualAnalyze     TaskKind = "visual-analyze"
	TaskKindContentAnalyze    TaskKind = "content-analyze"
)

// KnownTaskKinds lists every kind a handler may be registered for.
// Adding a kind is a registration-time decision, never runtime reflection.
var KnownTaskKinds = []TaskKind{
	TaskKindUploadProcess,
	TaskKindRemoteImport,
	TaskKindEmbeddingGenerate,
	TaskKindVisualAnalyze,
	TaskKindContentAnalyze,
}

type TaskStatus string

const (
	TaskStatusPending  TaskStatus = "PENDING"
	TaskStatusStarted  TaskStatus = "STARTED"
	TaskStatusProgress TaskStatus = "PROGRESS"
	TaskStatusSuccess  TaskStatus = "SUCCESS"
	TaskStatusFailure  TaskStatus = "FAILURE"
	TaskStatusRevoked  TaskStatus = "REVOKED"
)

type TaskErrorKind string

const (
	TaskErrInvalidInput        TaskErrorKind = "invalid-input"
	TaskErrUpstreamUnavailable TaskErrorKind = "upstream-unavailable"
	TaskErrTimeout             TaskErrorKind = "timeout"
	TaskErrInternal            TaskErrorKind = "internal"
)

// TaskError carries the kind and a safe, human-readable message for a failed
// task. Internal detail never leaks past the message.
type TaskError struct {
	Kind    TaskErrorKind `json:"kind"`
	Message string        `json:"message"`
}

// Task is a unit of background work with an observable lifecycle.
//
// Lifecycle: PENDING -> STARTED -> PROGRESS* -> SUCCESS | FAILURE
//
//	PENDING/STARTED/PROGRESS -> REVOKED (via Cancel)
type Task struct {
	ID        string          `json:"id"`
	Kind      TaskKind        `json:"kind"`
	VideoRef  string          `json:"video_ref,omitempty"`
	Status    TaskStatus      `json:"status"`
	Progress  int             `json:"progress"`
	Stage     string          `json:"stage,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *TaskError      `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func NewTask(id string, kind TaskKind, videoRef string, payload json.RawMessage) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:        id,
		Kind:      kind,
		VideoRef:  videoRef,
		Status:    TaskStatusPending,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusSuccess, TaskStatusFailure, TaskStatusRevoked:
		return true
	}
	return false
}

// CanTransition reports whether the state machine permits moving from the
// current status to next. PROGRESS may repeat; terminal states never move.
func (t *Task) CanTransition(next TaskStatus) bool {
	if t.Status.Terminal() {
		return false
	}
	switch next {
	case TaskStatusStarted:
		return t.Status == TaskStatusPending
	case TaskStatusProgress:
		return t.Status == TaskStatusStarted || t.Status == TaskStatusProgress
	case TaskStatusSuccess, TaskStatusFailure:
		return t.Status == TaskStatusStarted || t.Status == TaskStatusProgress
	case TaskStatusRevoked:
		return true // any non-terminal status may be revoked
	}
	return false
}

func ValidTaskKind(k TaskKind) bool {
	for _, known := range KnownTaskKinds {
		if k == known {
			return true
		}
	}
	return false
}
