package broadcast

import (
	"context"

	"multimodel-video/internal/domain/model"
)

// Publisher is the fan-out port used by the orchestrator and the conversation
// manager. Delivery is best-effort, at-most-once per currently subscribed
// connection; a late joiner misses prior events and must poll status/history.
type Publisher interface {
	// Publish delivers the envelope to every connection currently in the room.
	Publish(ctx context.Context, env model.Envelope)

	// CloseRoom removes all members from the room and releases it.
	CloseRoom(roomID string)

	// RoomSize reports current membership, for observability.
	RoomSize(roomID string) int
}
