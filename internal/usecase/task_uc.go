// File: internal/usecase/task_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"multimodel-video/internal/domain"
	"multimodel-video/internal/domain/model"
	"multimodel-video/internal/domain/ports/broadcast"
	"multimodel-video/internal/domain/ports/store"
	"multimodel-video/internal/infra/logging"
	"multimodel-video/internal/infra/metrics"
	"multimodel-video/internal/infra/worker"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ TaskUseCase = (*taskUC)(nil)

// SubmitRequest identifies the kind of work plus the collaborator-specific
// input descriptor.
type SubmitRequest struct {
	Kind     model.TaskKind  `json:"kind"`
	VideoRef string          `json:"video_ref"`
	Payload  json.RawMessage `json:"payload"`
}

// TaskRuntime is handed to the registered task body. Progress doubles as the
// cooperative cancellation checkpoint: it returns domain.ErrTaskCanceled once
// the task has been revoked, and the body is expected to unwind.
type TaskRuntime struct {
	TaskID   string
	VideoRef string
	Payload  json.RawMessage

	uc *taskUC
}

// Progress records a checkpoint and publishes the updated snapshot. Bodies
// must call it at least once per meaningful unit of work so that subscribers
// observe liveness.
func (rt *TaskRuntime) Progress(ctx context.Context, percent int, stage string) error {
	return rt.uc.progress(ctx, rt.TaskID, percent, stage)
}

// TaskHandler is one registered task body. It receives an input descriptor
// and returns a structured result or an error; classification into a
// TaskError happens at the execution boundary.
type TaskHandler func(ctx context.Context, rt *TaskRuntime) (any, error)

type TaskUseCase interface {
	// Submit validates the kind, persists a PENDING record, enqueues the
	// work and returns the new task id without waiting for execution.
	Submit(ctx context.Context, req SubmitRequest) (string, error)

	// Status is a pure read of the persisted snapshot.
	Status(ctx context.Context, taskID string) (*model.Task, error)

	// Cancel marks the task REVOKED if it has not reached a terminal state.
	// A running body observes the revocation at its next checkpoint; the
	// orchestrator never preempts a worker outright.
	Cancel(ctx context.Context, taskID string) error

	// ListActive returns every task not yet in a terminal state.
	ListActive(ctx context.Context) ([]*model.Task, error)
}

type taskUC struct {
	kv       store.KV
	pub      broadcast.Publisher
	pool     *worker.Pool
	handlers map[model.TaskKind]TaskHandler
	stateTTL time.Duration
	log      *zerolog.Logger

	// mu guards active and serializes every load -> check -> save -> publish
	// sequence on task state, so concurrent Cancel, progress and terminal
	// writes cannot lose updates and subscribers see transitions in store
	// order.
	mu     sync.Mutex
	active map[string]model.TaskKind // ids of tasks not yet terminal
}

func NewTaskUseCase(kv store.KV, pub broadcast.Publisher, pool *worker.Pool, stateTTL time.Duration, logger *zerolog.Logger) *taskUC {
	l := logger.With().Str("component", "TaskUC").Logger()
	return &taskUC{
		kv:       kv,
		pub:      pub,
		pool:     pool,
		handlers: make(map[model.TaskKind]TaskHandler),
		stateTTL: stateTTL,
		log:      &l,
		active:   make(map[string]model.TaskKind),
	}
}

// Register binds a handler to a kind. Registration is a startup-time
// decision; Submit rejects kinds that were never registered.
func (u *taskUC) Register(kind model.TaskKind, h TaskHandler) {
	u.handlers[kind] = h
}

func (u *taskUC) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if !model.ValidTaskKind(req.Kind) {
		return "", fmt.Errorf("submit kind %q: %w", req.Kind, domain.ErrUnknownTaskKind)
	}
	if _, ok := u.handlers[req.Kind]; !ok {
		return "", fmt.Errorf("submit kind %q has no handler: %w", req.Kind, domain.ErrUnknownTaskKind)
	}

	id := ulid.MustNew(ulid.Timestamp(time.Now()), ulid.DefaultEntropy()).String()
	task := model.NewTask(id, req.Kind, req.VideoRef, req.Payload)

	// The lock is held through the PENDING publish: the enqueued worker
	// blocks on it in start(), so no later snapshot can reach the room
	// before PENDING does.
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.save(ctx, task); err != nil {
		return "", err
	}
	u.active[id] = req.Kind

	if err := u.pool.Submit(func(ctx context.Context) { u.run(ctx, id) }); err != nil {
		// Queue saturated: surface synchronously, nothing was published.
		delete(u.active, id)
		_ = u.kv.Delete(ctx, store.NamespaceTaskState, id)
		return "", err
	}

	metrics.IncTaskSubmitted(string(req.Kind))
	u.pub.Publish(ctx, model.NewTaskEvent(task))
	u.log.Info().Str("task_id", id).Str("kind", string(req.Kind)).Msg("task submitted")
	return id, nil
}

func (u *taskUC) Status(ctx context.Context, taskID string) (*model.Task, error) {
	return u.load(ctx, taskID)
}

func (u *taskUC) Cancel(ctx context.Context, taskID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	task, err := u.load(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status.Terminal() {
		return domain.ErrAlreadyTerminal
	}
	task.Status = model.TaskStatusRevoked
	task.UpdatedAt = time.Now().UTC()
	if err := u.save(ctx, task); err != nil {
		return err
	}
	u.finishLocked(ctx, task, time.Time{})
	u.log.Info().Str("task_id", taskID).Msg("task revoked")
	return nil
}

func (u *taskUC) ListActive(ctx context.Context) ([]*model.Task, error) {
	u.mu.Lock()
	ids := make([]string, 0, len(u.active))
	for id := range u.active {
		ids = append(ids, id)
	}
	u.mu.Unlock()
	sort.Strings(ids) // ulids sort by submission time

	out := make([]*model.Task, 0, len(ids))
	for _, id := range ids {
		task, err := u.load(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				u.forget(id) // state expired from the store
				continue
			}
			return nil, err
		}
		if task.Status.Terminal() {
			u.forget(id)
			continue
		}
		out = append(out, task)
	}
	return out, nil
}

// run executes one task body on a pool worker. Worker errors are converted to
// FAILURE records at this boundary and never cross back to the submitter.
func (u *taskUC) run(ctx context.Context, taskID string) {
	ctx = logging.WithTaskID(ctx, taskID)
	task, ok := u.start(ctx, taskID)
	if !ok {
		return
	}
	started := time.Now()

	rt := &TaskRuntime{TaskID: taskID, VideoRef: task.VideoRef, Payload: task.Payload, uc: u}
	result, runErr := u.invoke(ctx, task.Kind, rt)

	if errors.Is(runErr, domain.ErrTaskCanceled) {
		// Cancel already wrote the REVOKED record and published it.
		return
	}
	u.complete(ctx, taskID, result, runErr, started)
}

// start moves the task to STARTED under the state lock. ok is false when the
// task was revoked before a worker picked it up or its record is gone.
func (u *taskUC) start(ctx context.Context, taskID string) (task *model.Task, ok bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	task, err := u.load(ctx, taskID)
	if err != nil {
		u.log.Error().Err(err).Str("task_id", taskID).Msg("task state missing at execution")
		delete(u.active, taskID)
		return nil, false
	}
	if task.Status != model.TaskStatusPending {
		return nil, false
	}

	task.Status = model.TaskStatusStarted
	task.UpdatedAt = time.Now().UTC()
	if err := u.save(ctx, task); err != nil {
		u.log.Error().Err(err).Str("task_id", taskID).Msg("could not persist STARTED")
		return nil, false
	}
	u.pub.Publish(ctx, model.NewTaskEvent(task))
	return task, true
}

// complete writes the terminal record under the state lock so it cannot race
// a concurrent Cancel: whichever lands first wins, the other observes a
// terminal status and backs off.
func (u *taskUC) complete(ctx context.Context, taskID string, result any, runErr error, started time.Time) {
	u.mu.Lock()
	defer u.mu.Unlock()
	final, err := u.load(ctx, taskID)
	if err != nil {
		delete(u.active, taskID)
		return
	}
	if final.Status.Terminal() {
		return // revoked concurrently; terminal states never transition further
	}

	if runErr != nil {
		final.Status = model.TaskStatusFailure
		final.Error = classify(runErr)
		u.log.Warn().Err(runErr).Str("task_id", taskID).Msg("task failed")
	} else {
		final.Status = model.TaskStatusSuccess
		final.Progress = 100
		if result != nil {
			if b, err := json.Marshal(result); err == nil {
				final.Result = b
			}
		}
	}
	final.UpdatedAt = time.Now().UTC()
	if err := u.save(ctx, final); err != nil {
		u.log.Error().Err(err).Str("task_id", taskID).Msg("could not persist terminal state")
		return
	}
	u.finishLocked(ctx, final, started)
}

// invoke runs the handler with a panic guard so a defective body becomes an
// internal FAILURE instead of taking down the worker.
func (u *taskUC) invoke(ctx context.Context, kind model.TaskKind, rt *TaskRuntime) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task body panic: %v", r)
		}
	}()
	return u.handlers[kind](ctx, rt)
}

func (u *taskUC) progress(ctx context.Context, taskID string, percent int, stage string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	task, err := u.load(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status == model.TaskStatusRevoked {
		return domain.ErrTaskCanceled
	}
	if !task.CanTransition(model.TaskStatusProgress) {
		return domain.ErrAlreadyTerminal
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	task.Status = model.TaskStatusProgress
	task.Progress = percent
	task.Stage = stage
	task.UpdatedAt = time.Now().UTC()
	if err := u.save(ctx, task); err != nil {
		return err
	}
	u.pub.Publish(ctx, model.NewTaskEvent(task))
	return nil
}

// finishLocked publishes the terminal snapshot and drops the task from the
// active set. Callers hold u.mu. started is zero for revocations that never
// ran.
func (u *taskUC) finishLocked(ctx context.Context, task *model.Task, started time.Time) {
	delete(u.active, task.ID)
	seconds := 0.0
	if !started.IsZero() {
		seconds = time.Since(started).Seconds()
	}
	metrics.ObserveTaskFinished(string(task.Kind), string(task.Status), seconds)
	u.pub.Publish(ctx, model.NewTaskEvent(task))
}

func (u *taskUC) forget(taskID string) {
	u.mu.Lock()
	delete(u.active, taskID)
	u.mu.Unlock()
}

func (u *taskUC) save(ctx context.Context, task *model.Task) error {
	b, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return u.kv.Set(ctx, store.NamespaceTaskState, task.ID, b, u.stateTTL)
}

func (u *taskUC) load(ctx context.Context, taskID string) (*model.Task, error) {
	b, err := u.kv.Get(ctx, store.NamespaceTaskState, taskID)
	if err != nil {
		return nil, err
	}
	var task model.Task
	if err := json.Unmarshal(b, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// classify maps a body error onto the task error taxonomy. Collaborators tag
// their failures with the sentinel errors; anything untagged is internal.
func classify(err error) *model.TaskError {
	kind := model.TaskErrInternal
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		kind = model.TaskErrInvalidInput
	case errors.Is(err, context.DeadlineExceeded):
		kind = model.TaskErrTimeout
	case errors.Is(err, ErrUpstream):
		kind = model.TaskErrUpstreamUnavailable
	}
	return &model.TaskError{Kind: kind, Message: err.Error()}
}

// ErrUpstream tags collaborator failures so they classify as
// upstream-unavailable rather than internal.
var ErrUpstream = errors.New("upstream collaborator unavailable")
