package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeExecutor struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context, job *ExportJob, report ReportFunc) (Result, error)
}

func (f *fakeExecutor) Execute(ctx context.Context, job *ExportJob, report ReportFunc) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, job.ID)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, job, report)
	}
	report(50, job.Label)
	return Result{Filename: "out.zip", StorageKey: "exports/" + job.ID + "/out.zip", Size: 10}, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	statuses []string
}

func (n *recordingNotifier) JobUpdated(job *ExportJob) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, job.Status)
}

func TestRunner_ProcessNextJob_Success(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)
	exec := &fakeExecutor{}
	notifier := &recordingNotifier{}
	runner := NewRunner(repo, exec, nil)
	runner.SetNotifier(notifier)

	job := NewExportJob(2, "compressing 2 projects")
	repo.CreateJob(ctx, job)

	if !runner.processNextJob(ctx) {
		t.Fatal("processNextJob() = false, want true")
	}
	got, _ := repo.GetJob(ctx, job.ID)
	if got.Status != StatusCompleted || got.Filename != "out.zip" || got.Progress != 100 {
		t.Errorf("job after run = %+v", got)
	}

	want := []string{StatusRunning, StatusRunning, StatusCompleted}
	if len(notifier.statuses) != len(want) {
		t.Fatalf("notifications = %v, want %v", notifier.statuses, want)
	}
	for i := range want {
		if notifier.statuses[i] != want[i] {
			t.Errorf("notification %d = %s, want %s", i, notifier.statuses[i], want[i])
		}
	}

	if runner.processNextJob(ctx) {
		t.Error("processNextJob() with no pending jobs = true")
	}
}

func TestRunner_ProcessNextJob_Failure(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)
	exec := &fakeExecutor{fn: func(ctx context.Context, job *ExportJob, report ReportFunc) (Result, error) {
		return Result{}, errors.New("failed to create the ZIP archive: out of memory...")
	}}
	runner := NewRunner(repo, exec, nil)

	job := NewExportJob(1, "packaging resource")
	repo.CreateJob(ctx, job)
	runner.processNextJob(ctx)

	got, _ := repo.GetJob(ctx, job.ID)
	if got.Status != StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.Error != "failed to create the ZIP archive: out of memory..." {
		t.Errorf("error = %q", got.Error)
	}
	if got.Filename != "" {
		t.Error("failed job has a filename")
	}
}

func TestRunner_StartProcessesOnWake(t *testing.T) {
	repo := setupRepo(t)
	done := make(chan string, 1)
	exec := &fakeExecutor{fn: func(ctx context.Context, job *ExportJob, report ReportFunc) (Result, error) {
		done <- job.ID
		return Result{Filename: "a.zip"}, nil
	}}
	runner := NewRunner(repo, exec, nil)
	runner.pollInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Start(ctx)

	job := NewExportJob(1, "packaging resource")
	repo.CreateJob(context.Background(), job)
	runner.Wake()

	select {
	case id := <-done:
		if id != job.ID {
			t.Errorf("executed %s, want %s", id, job.ID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not pick up the job after Wake")
	}
}

func TestRunner_PauseResume(t *testing.T) {
	runner := NewRunner(setupRepo(t), &fakeExecutor{}, nil)
	runner.Pause()
	if !runner.IsPaused() {
		t.Error("IsPaused() = false after Pause")
	}
	runner.Resume()
	if runner.IsPaused() {
		t.Error("IsPaused() = true after Resume")
	}
}

func TestRunner_ActiveJob(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)
	runner := NewRunner(repo, &fakeExecutor{}, nil)

	if runner.ActiveJob(ctx) != nil {
		t.Error("ActiveJob() on empty repo != nil")
	}

	pending := NewExportJob(1, "packaging resource")
	repo.CreateJob(ctx, pending)
	running := NewExportJob(2, "compressing 2 projects")
	running.Status = StatusRunning
	repo.CreateJob(ctx, running)

	if got := runner.ActiveJob(ctx); got == nil || got.ID != running.ID {
		t.Errorf("ActiveJob() = %v, want running job", got)
	}
}
