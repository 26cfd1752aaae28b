// Package spawn launches dedicated game-server processes on demand and
// tracks their progress until they register a room.
package spawn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"
)

var (
	// ErrTaskNotFound indicates an unknown or already ended task.
	ErrTaskNotFound = errors.New("spawn task not found")
	// ErrInvalidCode indicates a callback with the wrong task code.
	ErrInvalidCode = errors.New("invalid spawn task code")
	// ErrTaskState indicates a callback that does not fit the task status.
	ErrTaskState = errors.New("spawn task is not in the expected state")
)

// Config controls a coordinator.
type Config struct {
	// MaxConcurrent caps tasks in progress. Zero means unlimited.
	MaxConcurrent int
	// RegisterTimeout aborts tasks whose process never registers.
	RegisterTimeout time.Duration
	// Regions restricts accepted regions. Empty accepts any region.
	Regions []string
}

// Coordinator accepts spawn requests and owns the resulting tasks.
type Coordinator struct {
	cfg      Config
	launcher Launcher
	ctx      context.Context

	mu    sync.Mutex
	tasks map[string]*Task
}

// NewCoordinator creates a coordinator. Processes are bound to ctx.
func NewCoordinator(ctx context.Context, cfg Config, launcher Launcher) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		launcher: launcher,
		ctx:      ctx,
		tasks:    make(map[string]*Task),
	}
}

// Spawn requests a new game server. It returns nil when the request is
// declined, for example when capacity is exhausted or the region is unknown.
func (c *Coordinator) Spawn(props map[string]string, region string, args []string) *Task {
	if c.launcher == nil || !c.regionAllowed(region) {
		return nil
	}

	c.mu.Lock()
	if c.cfg.MaxConcurrent > 0 && len(c.tasks) >= c.cfg.MaxConcurrent {
		c.mu.Unlock()
		log.Printf("spawn: declined request, %d tasks in progress", c.cfg.MaxConcurrent)
		return nil
	}
	task := newTask(props, region, args)
	task.onEnd = c.release
	c.tasks[task.ID] = task
	c.mu.Unlock()

	task.setStatus(StatusQueued)
	go c.run(task)
	return task
}

func (c *Coordinator) regionAllowed(region string) bool {
	if len(c.cfg.Regions) == 0 || region == "" {
		return true
	}
	for _, r := range c.cfg.Regions {
		if r == region {
			return true
		}
	}
	return false
}

func (c *Coordinator) run(task *Task) {
	if !task.setStatus(StatusStartingProcess) {
		return
	}
	proc, err := c.launcher.Launch(c.ctx, task)
	if err != nil {
		log.Printf("spawn task %s: launch failed: %v", task.ID, err)
		task.setStatus(StatusAborted)
		return
	}
	task.attach(proc)
	// A fast process may already have registered or finalized.
	if !task.setStatus(StatusWaitingForProcess) && task.Status().Ended() {
		// aborted while launching
		_ = proc.Kill()
		return
	}

	if c.cfg.RegisterTimeout > 0 {
		timer := time.AfterFunc(c.cfg.RegisterTimeout, func() {
			if task.Status() < StatusProcessRegistered {
				log.Printf("spawn task %s: process did not register within %s", task.ID, c.cfg.RegisterTimeout)
				task.Abort()
			}
		})
		defer timer.Stop()
	}

	err = proc.Wait()
	if err != nil {
		log.Printf("spawn task %s: process exited: %v", task.ID, err)
	}
	if task.Status() >= StatusFinalized {
		task.setStatus(StatusKilled)
		return
	}
	task.setStatus(StatusAborted)
}

func (c *Coordinator) release(task *Task) {
	c.mu.Lock()
	delete(c.tasks, task.ID)
	c.mu.Unlock()
}

// Task returns a live task by id.
func (c *Coordinator) Task(id string) (*Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tasks[id]
	return t, ok
}

// Tasks returns live tasks, oldest first.
func (c *Coordinator) Tasks() []*Task {
	c.mu.Lock()
	out := make([]*Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		out = append(out, t)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Authorize returns the live task with the given id when code matches it.
func (c *Coordinator) Authorize(id, code string) (*Task, error) {
	task, ok := c.Task(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if task.Code != code {
		return nil, ErrInvalidCode
	}
	return task, nil
}

// Register is called by the spawned process once it is up.
func (c *Coordinator) Register(id, code string) error {
	task, err := c.Authorize(id, code)
	if err != nil {
		return err
	}
	if task.Status() >= StatusProcessRegistered {
		return fmt.Errorf("%w: %s is %s", ErrTaskState, id, task.Status())
	}
	task.setStatus(StatusProcessRegistered)
	return nil
}

// Finalize is called by the spawned process once its room is registered.
// data should carry FinalizationRoomID.
func (c *Coordinator) Finalize(id, code string, data map[string]string) error {
	task, err := c.Authorize(id, code)
	if err != nil {
		return err
	}
	if !task.finalize(data) {
		return fmt.Errorf("%w: %s is %s", ErrTaskState, id, task.Status())
	}
	return nil
}

// Abort is called by the spawned process when it cannot start.
func (c *Coordinator) Abort(id, code string) error {
	task, err := c.Authorize(id, code)
	if err != nil {
		return err
	}
	task.Abort()
	return nil
}

// Kill terminates a task by id.
func (c *Coordinator) Kill(id string) error {
	task, ok := c.Task(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	task.Kill()
	return nil
}
