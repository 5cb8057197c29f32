package model_test

import (
	"testing"

	"multimodel-video/internal/domain/model"
)

func TestTaskTransitions(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		from model.TaskStatus
		to   model.TaskStatus
		want bool
	}{
		{"pending to started", model.TaskStatusPending, model.TaskStatusStarted, true},
		{"pending to progress", model.TaskStatusPending, model.TaskStatusProgress, false},
		{"pending to revoked", model.TaskStatusPending, model.TaskStatusRevoked, true},
		{"started to progress", model.TaskStatusStarted, model.TaskStatusProgress, true},
		{"started to success", model.TaskStatusStarted, model.TaskStatusSuccess, true},
		{"progress repeats", model.TaskStatusProgress, model.TaskStatusProgress, true},
		{"progress to failure", model.TaskStatusProgress, model.TaskStatusFailure, true},
		{"progress to started", model.TaskStatusProgress, model.TaskStatusStarted, false},
		{"success is terminal", model.TaskStatusSuccess, model.TaskStatusRevoked, false},
		{"failure is terminal", model.TaskStatusFailure, model.TaskStatusProgress, false},
		{"revoked is terminal", model.TaskStatusRevoked, model.TaskStatusStarted, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			task := model.NewTask("id", model.TaskKindUploadProcess, "vid", nil)
			task.Status = tc.from
			if got := task.CanTransition(tc.to); got != tc.want {
				t.Fatalf("CanTransition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestTerminalStatuses(t *testing.T) {
	t.Parallel()
	terminal := map[model.TaskStatus]bool{
		model.TaskStatusPending:  false,
		model.TaskStatusStarted:  false,
		model.TaskStatusProgress: false,
		model.TaskStatusSuccess:  true,
		model.TaskStatusFailure:  true,
		model.TaskStatusRevoked:  true,
	}
	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Fatalf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestValidTaskKind(t *testing.T) {
	t.Parallel()
	for _, k := range model.KnownTaskKinds {
		if !model.ValidTaskKind(k) {
			t.Fatalf("known kind %q reported invalid", k)
		}
	}
	if model.ValidTaskKind("reticulate-splines") {
		t.Fatal("unknown kind reported valid")
	}
}

func TestNewTaskStartsPending(t *testing.T) {
	t.Parallel()
	task := model.NewTask("id", model.TaskKindRemoteImport, "vid", []byte(`{"url":"x"}`))
	if task.Status != model.TaskStatusPending {
		t.Fatalf("new task status = %s, want PENDING", task.Status)
	}
	if task.Progress != 0 || task.Error != nil || task.Result != nil {
		t.Fatalf("new task carries execution state: %+v", task)
	}
	if task.CreatedAt.IsZero() || !task.CreatedAt.Equal(task.UpdatedAt) {
		t.Fatalf("timestamps not initialized: created=%v updated=%v", task.CreatedAt, task.UpdatedAt)
	}
}
