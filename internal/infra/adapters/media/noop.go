package media

import (
	"context"
	"fmt"

	"multimodel-video/internal/domain/ports/adapter"
)

var _ adapter.MediaProcessor = (*NoopProcessor)(nil)

// NoopProcessor is a stand-in collaborator for dev mode and tests. It
// fabricates deterministic pipeline output without touching real media.
type NoopProcessor struct{}

func NewNoopProcessor() *NoopProcessor { return &NoopProcessor{} }

func (n *NoopProcessor) FetchRemote(ctx context.Context, url string) (string, error) {
	return "/tmp/noop-" + fmt.Sprintf("%x", len(url)) + ".mp4", nil
}

func (n *NoopProcessor) Transcribe(ctx context.Context, path string) ([]adapter.TranscriptSegment, error) {
	return []adapter.TranscriptSegment{
		{Start: 0, End: 12.5, Text: "welcome to the session"},
		{Start: 12.5, End: 30, Text: "today we cover the pipeline"},
	}, nil
}

func (n *NoopProcessor) ExtractFrames(ctx context.Context, path string) ([]adapter.FrameInfo, error) {
	return []adapter.FrameInfo{
		{Timestamp: 1, Path: path + ".frame-0001.jpg"},
		{Timestamp: 15, Path: path + ".frame-0015.jpg"},
	}, nil
}

func (n *NoopProcessor) EmbedSegments(ctx context.Context, videoRef string, segments []adapter.TranscriptSegment) (int, error) {
	return len(segments), nil
}

func (n *NoopProcessor) DetectObjects(ctx context.Context, frames []adapter.FrameInfo) ([]adapter.VisualDetection, error) {
	out := make([]adapter.VisualDetection, 0, len(frames))
	for _, f := range frames {
		out = append(out, adapter.VisualDetection{Timestamp: f.Timestamp, Label: "person", Confidence: 0.9})
	}
	return out, nil
}

func (n *NoopProcessor) SegmentTopics(ctx context.Context, segments []adapter.TranscriptSegment) ([]adapter.TopicSegment, error) {
	if len(segments) == 0 {
		return nil, nil
	}
	return []adapter.TopicSegment{
		{Start: segments[0].Start, End: segments[len(segments)-1].End, Topic: "overview"},
	}, nil
}
