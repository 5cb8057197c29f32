// File: internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"multimodel-video/internal/domain"
	"multimodel-video/internal/domain/model"
	"multimodel-video/internal/domain/ports/adapter"
	"multimodel-video/internal/domain/ports/store"
	"multimodel-video/internal/usecase"

	"github.com/rs/zerolog"
)

// Registrar is the orchestrator surface the pipeline binds its bodies to.
type Registrar interface {
	Register(kind model.TaskKind, h usecase.TaskHandler)
}

// Pipeline owns the task bodies for the five processing kinds. The heavy
// lifting happens inside the media collaborator; the bodies sequence its
// calls, checkpoint progress between stages and mirror stage output into the
// video-data namespace so later stages and the chat layer can read it.
type Pipeline struct {
	media   adapter.MediaProcessor
	kv      store.KV
	dataTTL time.Duration
	log     *zerolog.Logger
}

func New(media adapter.MediaProcessor, kv store.KV, dataTTL time.Duration, logger *zerolog.Logger) *Pipeline {
	l := logger.With().Str("component", "pipeline").Logger()
	return &Pipeline{media: media, kv: kv, dataTTL: dataTTL, log: &l}
}

// RegisterAll binds every known kind to its body.
func (p *Pipeline) RegisterAll(reg Registrar) {
	reg.Register(model.TaskKindUploadProcess, p.UploadProcess)
	reg.Register(model.TaskKindRemoteImport, p.RemoteImport)
	reg.Register(model.TaskKindEmbeddingGenerate, p.EmbeddingGenerate)
	reg.Register(model.TaskKindVisualAnalyze, p.VisualAnalyze)
	reg.Register(model.TaskKindContentAnalyze, p.ContentAnalyze)
}

// UploadPayload describes a stored file to process.
type UploadPayload struct {
	FilePath string `json:"file_path"`
}

// ImportPayload describes a remote source to fetch and process.
type ImportPayload struct {
	URL string `json:"url"`
}

// ProcessResult is the terminal payload for upload-process / remote-import.
type ProcessResult struct {
	VideoRef   string `json:"video_ref"`
	Segments   int    `json:"segments"`
	Frames     int    `json:"frames"`
	SourcePath string `json:"source_path"`
}

func (p *Pipeline) UploadProcess(ctx context.Context, rt *usecase.TaskRuntime) (any, error) {
	var payload UploadPayload
	if err := json.Unmarshal(rt.Payload, &payload); err != nil || payload.FilePath == "" {
		return nil, fmt.Errorf("upload payload needs file_path: %w", domain.ErrInvalidArgument)
	}
	return p.process(ctx, rt, payload.FilePath)
}

func (p *Pipeline) RemoteImport(ctx context.Context, rt *usecase.TaskRuntime) (any, error) {
	var payload ImportPayload
	if err := json.Unmarshal(rt.Payload, &payload); err != nil || payload.URL == "" {
		return nil, fmt.Errorf("import payload needs url: %w", domain.ErrInvalidArgument)
	}
	if err := rt.Progress(ctx, 5, "fetching"); err != nil {
		return nil, err
	}
	local, err := p.media.FetchRemote(ctx, payload.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", usecase.ErrUpstream, payload.URL, err)
	}
	return p.process(ctx, rt, local)
}

// process is the shared transcribe + frame-extraction stage chain.
func (p *Pipeline) process(ctx context.Context, rt *usecase.TaskRuntime, path string) (any, error) {
	if err := rt.Progress(ctx, 20, "transcribing"); err != nil {
		return nil, err
	}
	segments, err := p.media.Transcribe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: transcribe: %v", usecase.ErrUpstream, err)
	}
	if err := p.store(ctx, rt.VideoRef, "transcript", segments); err != nil {
		return nil, err
	}

	if err := rt.Progress(ctx, 60, "extracting-frames"); err != nil {
		return nil, err
	}
	frames, err := p.media.ExtractFrames(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: extract frames: %v", usecase.ErrUpstream, err)
	}
	if err := p.store(ctx, rt.VideoRef, "frames", frames); err != nil {
		return nil, err
	}

	if err := rt.Progress(ctx, 90, "finalizing"); err != nil {
		return nil, err
	}
	return &ProcessResult{
		VideoRef:   rt.VideoRef,
		Segments:   len(segments),
		Frames:     len(frames),
		SourcePath: path,
	}, nil
}

func (p *Pipeline) EmbeddingGenerate(ctx context.Context, rt *usecase.TaskRuntime) (any, error) {
	if err := rt.Progress(ctx, 10, "loading-transcript"); err != nil {
		return nil, err
	}
	var segments []adapter.TranscriptSegment
	if err := p.load(ctx, rt.VideoRef, "transcript", &segments); err != nil {
		return nil, fmt.Errorf("no transcript for %s: %w", rt.VideoRef, domain.ErrInvalidArgument)
	}
	if err := rt.Progress(ctx, 40, "embedding"); err != nil {
		return nil, err
	}
	n, err := p.media.EmbedSegments(ctx, rt.VideoRef, segments)
	if err != nil {
		return nil, fmt.Errorf("%w: embed: %v", usecase.ErrUpstream, err)
	}
	return map[string]any{"video_ref": rt.VideoRef, "embedded": n}, nil
}

func (p *Pipeline) VisualAnalyze(ctx context.Context, rt *usecase.TaskRuntime) (any, error) {
	if err := rt.Progress(ctx, 10, "loading-frames"); err != nil {
		return nil, err
	}
	var frames []adapter.FrameInfo
	if err := p.load(ctx, rt.VideoRef, "frames", &frames); err != nil {
		return nil, fmt.Errorf("no frames for %s: %w", rt.VideoRef, domain.ErrInvalidArgument)
	}
	if err := rt.Progress(ctx, 50, "detecting"); err != nil {
		return nil, err
	}
	detections, err := p.media.DetectObjects(ctx, frames)
	if err != nil {
		return nil, fmt.Errorf("%w: detect: %v", usecase.ErrUpstream, err)
	}
	if err := p.store(ctx, rt.VideoRef, "visual", detections); err != nil {
		return nil, err
	}
	return map[string]any{"video_ref": rt.VideoRef, "detections": len(detections)}, nil
}

func (p *Pipeline) ContentAnalyze(ctx context.Context, rt *usecase.TaskRuntime) (any, error) {
	if err := rt.Progress(ctx, 10, "loading-transcript"); err != nil {
		return nil, err
	}
	var segments []adapter.TranscriptSegment
	if err := p.load(ctx, rt.VideoRef, "transcript", &segments); err != nil {
		return nil, fmt.Errorf("no transcript for %s: %w", rt.VideoRef, domain.ErrInvalidArgument)
	}
	if err := rt.Progress(ctx, 50, "segmenting"); err != nil {
		return nil, err
	}
	topics, err := p.media.SegmentTopics(ctx, segments)
	if err != nil {
		return nil, fmt.Errorf("%w: segment: %v", usecase.ErrUpstream, err)
	}
	if err := p.store(ctx, rt.VideoRef, "topics", topics); err != nil {
		return nil, err
	}
	return map[string]any{"video_ref": rt.VideoRef, "topics": len(topics)}, nil
}

// store mirrors one analysis artifact under video-data, keyed like the
// upstream caches: "<video>:<type>".
func (p *Pipeline) store(ctx context.Context, videoRef, artifact string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := p.kv.Set(ctx, store.NamespaceVideoData, videoRef+":"+artifact, b, p.dataTTL); err != nil {
		return err
	}
	p.log.Debug().Str("video_ref", videoRef).Str("artifact", artifact).Int("bytes", len(b)).Msg("artifact stored")
	return nil
}

func (p *Pipeline) load(ctx context.Context, videoRef, artifact string, v any) error {
	b, err := p.kv.Get(ctx, store.NamespaceVideoData, videoRef+":"+artifact)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
