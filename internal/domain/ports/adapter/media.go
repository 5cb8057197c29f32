package adapter

import "context"

// TranscriptSegment is one span of recognized speech.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// FrameInfo describes one extracted frame.
type FrameInfo struct {
	Timestamp float64 `json:"timestamp"`
	Path      string  `json:"path"`
}

// VisualDetection is one detected object or scene label on a frame.
type VisualDetection struct {
	Timestamp  float64 `json:"timestamp"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// TopicSegment is a contiguous span of the video covering one topic.
type TopicSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Topic string  `json:"topic"`
}

// MediaProcessor is the port for the black-box media pipeline collaborators:
// decoding, speech-to-text, frame extraction, embedding, detection and
// segmentation all live behind it. Task bodies sequence these calls and
// report progress between them.
type MediaProcessor interface {
	FetchRemote(ctx context.Context, url string) (localPath string, err error)
	Transcribe(ctx context.Context, path string) ([]TranscriptSegment, error)
	ExtractFrames(ctx context.Context, path string) ([]FrameInfo, error)
	EmbedSegments(ctx context.Context, videoRef string, segments []TranscriptSegment) (int, error)
	DetectObjects(ctx context.Context, frames []FrameInfo) ([]VisualDetection, error)
	SegmentTopics(ctx context.Context, segments []TranscriptSegment) ([]TopicSegment, error)
}
