package spawn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeLauncher struct {
	err error
	// started runs before Launch returns, as a process that calls back quickly.
	started   func(*Task)
	mu        sync.Mutex
	processes []*heldProcess
}

func (l *fakeLauncher) Launch(_ context.Context, task *Task) (Process, error) {
	if l.err != nil {
		return nil, l.err
	}
	p := newHeldProcess()
	l.mu.Lock()
	l.processes = append(l.processes, p)
	l.mu.Unlock()
	if l.started != nil {
		l.started(task)
	}
	return p, nil
}

func waitStatus(t *testing.T, task *Task, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if task.Status() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("task status = %s, want %s", task.Status(), want)
}

func TestStatusOrdering(t *testing.T) {
	for _, s := range []Status{StatusQueued, StatusStartingProcess, StatusWaitingForProcess, StatusProcessRegistered} {
		if !s.InProgress() {
			t.Fatalf("%s should be in progress", s)
		}
	}
	for _, s := range []Status{StatusNone, StatusFinalized, StatusAborted, StatusKilled} {
		if s.InProgress() {
			t.Fatalf("%s should not be in progress", s)
		}
	}
	if !StatusAborted.Ended() || !StatusKilled.Ended() || StatusNone.Ended() {
		t.Fatal("only negative statuses end a task")
	}
}

func TestSpawnDeclinesWhenCapacityExhausted(t *testing.T) {
	c := NewCoordinator(context.Background(), Config{MaxConcurrent: 1}, &fakeLauncher{})
	first := c.Spawn(nil, "", nil)
	if first == nil {
		t.Fatal("expected first task")
	}
	if second := c.Spawn(nil, "", nil); second != nil {
		t.Fatal("expected spawn to be declined")
	}
	first.Kill()
	if third := c.Spawn(nil, "", nil); third == nil {
		t.Fatal("expected capacity to be released after kill")
	}
}

func TestSpawnDeclinesUnknownRegion(t *testing.T) {
	c := NewCoordinator(context.Background(), Config{Regions: []string{"eu"}}, &fakeLauncher{})
	if task := c.Spawn(nil, "us", nil); task != nil {
		t.Fatal("expected unknown region to be declined")
	}
	if task := c.Spawn(nil, "eu", nil); task == nil {
		t.Fatal("expected known region to be accepted")
	}
}

func TestTaskLifecycleThroughFinalize(t *testing.T) {
	launcher := &fakeLauncher{}
	c := NewCoordinator(context.Background(), Config{}, launcher)
	task := c.Spawn(map[string]string{"name": "lobby"}, "", []string{"-lobbyId", "1"})

	var mu sync.Mutex
	var seen []Status
	task.OnStatusChanged(func(s Status) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})
	waitStatus(t, task, StatusWaitingForProcess)

	if err := c.Register(task.ID, "wrong"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if err := c.Register(task.ID, task.Code); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := c.Finalize(task.ID, task.Code, map[string]string{FinalizationRoomID: "room-1"}); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if task.Status() != StatusFinalized {
		t.Fatalf("status = %s, want finalized", task.Status())
	}
	if task.FinalizationData()[FinalizationRoomID] != "room-1" {
		t.Fatalf("finalization data = %v", task.FinalizationData())
	}
	if err := c.Finalize(task.ID, task.Code, nil); !errors.Is(err, ErrTaskState) {
		t.Fatalf("expected ErrTaskState on second finalize, got %v", err)
	}

	mu.Lock()
	last := seen[len(seen)-1]
	mu.Unlock()
	if last != StatusFinalized {
		t.Fatalf("last observed status = %s, want finalized", last)
	}
}

func TestProcessExitBeforeFinalizeAbortsTask(t *testing.T) {
	launcher := &fakeLauncher{}
	c := NewCoordinator(context.Background(), Config{}, launcher)
	task := c.Spawn(nil, "", nil)
	waitStatus(t, task, StatusWaitingForProcess)

	launcher.mu.Lock()
	p := launcher.processes[0]
	launcher.mu.Unlock()
	_ = p.Kill()

	waitStatus(t, task, StatusAborted)
	if _, ok := c.Task(task.ID); ok {
		t.Fatal("ended task should be released")
	}
}

func TestProcessExitAfterFinalizeKillsTask(t *testing.T) {
	launcher := &fakeLauncher{}
	c := NewCoordinator(context.Background(), Config{}, launcher)
	task := c.Spawn(nil, "", nil)
	waitStatus(t, task, StatusWaitingForProcess)
	if err := c.Finalize(task.ID, task.Code, nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if err := c.Kill(task.ID); err != nil {
		t.Fatalf("kill: %v", err)
	}
	waitStatus(t, task, StatusKilled)
}

func TestProcessFinalizedDuringLaunchKeepsRunning(t *testing.T) {
	launcher := &fakeLauncher{}
	c := NewCoordinator(context.Background(), Config{MaxConcurrent: 1}, launcher)
	launcher.started = func(task *Task) {
		if err := c.Register(task.ID, task.Code); err != nil {
			t.Errorf("register: %v", err)
		}
		if err := c.Finalize(task.ID, task.Code, map[string]string{FinalizationRoomID: "room-1"}); err != nil {
			t.Errorf("finalize: %v", err)
		}
	}
	task := c.Spawn(nil, "", nil)
	waitStatus(t, task, StatusFinalized)

	launcher.mu.Lock()
	p := launcher.processes[0]
	launcher.mu.Unlock()
	select {
	case <-p.done:
		t.Fatal("finalized process was killed")
	default:
	}
	if again := c.Spawn(nil, "", nil); again != nil {
		t.Fatal("running task should still hold its slot")
	}

	// The process exits later and the slot is released.
	_ = p.Kill()
	waitStatus(t, task, StatusKilled)
	if again := c.Spawn(nil, "", nil); again == nil {
		t.Fatal("expected capacity after the process exited")
	}
}

func TestLaunchFailureAbortsTask(t *testing.T) {
	c := NewCoordinator(context.Background(), Config{}, &fakeLauncher{err: errors.New("no binary")})
	task := c.Spawn(nil, "", nil)
	waitStatus(t, task, StatusAborted)
}

func TestRegisterTimeoutAbortsTask(t *testing.T) {
	c := NewCoordinator(context.Background(), Config{RegisterTimeout: 10 * time.Millisecond}, &fakeLauncher{})
	task := c.Spawn(nil, "", nil)
	waitStatus(t, task, StatusAborted)
}

func TestEndedTaskNeverChangesAgain(t *testing.T) {
	task := newTask(nil, "", nil)
	task.setStatus(StatusAborted)
	if task.setStatus(StatusFinalized) {
		t.Fatal("aborted task must not finalize")
	}
	if task.Status() != StatusAborted {
		t.Fatalf("status = %s, want aborted", task.Status())
	}
}
