package spawn

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FinalizationRoomID is the finalization data key carrying the room id
// registered by the spawned process.
const FinalizationRoomID = "roomId"

// Task tracks one request to launch a game-server process.
type Task struct {
	ID         string
	Code       string
	Region     string
	Properties map[string]string
	Args       []string
	CreatedAt  time.Time

	mu           sync.Mutex
	status       Status
	finalization map[string]string
	listeners    map[int]func(Status)
	nextListener int
	process      Process
	onEnd        func(*Task)
}

func newTask(props map[string]string, region string, args []string) *Task {
	copied := make(map[string]string, len(props))
	for k, v := range props {
		copied[k] = v
	}
	return &Task{
		ID:         uuid.NewString(),
		Code:       uuid.NewString(),
		Region:     region,
		Properties: copied,
		Args:       append([]string(nil), args...),
		CreatedAt:  time.Now(),
		status:     StatusNone,
		listeners:  make(map[int]func(Status)),
	}
}

// Status returns the current status.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// FinalizationData returns a copy of the data the process reported when it
// finalized. It is empty before finalization.
func (t *Task) FinalizationData() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]string, len(t.finalization))
	for k, v := range t.finalization {
		out[k] = v
	}
	return out
}

// OnStatusChanged registers fn for every later status change. Listeners run
// on the goroutine that changed the status. The returned function removes fn.
func (t *Task) OnStatusChanged(fn func(Status)) (cancel func()) {
	t.mu.Lock()
	id := t.nextListener
	t.nextListener++
	t.listeners[id] = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

// setStatus moves the task to s. Ended tasks never change again.
func (t *Task) setStatus(s Status) bool {
	t.mu.Lock()
	if t.status.Ended() || t.status == s {
		t.mu.Unlock()
		return false
	}
	if s > StatusNone && s < t.status {
		t.mu.Unlock()
		return false
	}
	t.status = s
	listeners := make([]func(Status), 0, len(t.listeners))
	for _, fn := range t.listeners {
		listeners = append(listeners, fn)
	}
	onEnd := t.onEnd
	t.mu.Unlock()

	log.Printf("spawn task %s: status %s", t.ID, s)
	for _, fn := range listeners {
		fn(s)
	}
	if s.Ended() && onEnd != nil {
		onEnd(t)
	}
	return true
}

func (t *Task) finalize(data map[string]string) bool {
	t.mu.Lock()
	if t.status.Ended() || t.status == StatusFinalized {
		t.mu.Unlock()
		return false
	}
	t.finalization = make(map[string]string, len(data))
	for k, v := range data {
		t.finalization[k] = v
	}
	t.mu.Unlock()
	return t.setStatus(StatusFinalized)
}

func (t *Task) attach(p Process) {
	t.mu.Lock()
	t.process = p
	t.mu.Unlock()
}

// Abort stops a task that has not finalized yet and kills its process.
func (t *Task) Abort() {
	if t.Status() >= StatusFinalized {
		return
	}
	t.killProcess()
	t.setStatus(StatusAborted)
}

// Kill kills the spawned process whatever the task status.
func (t *Task) Kill() {
	t.killProcess()
	if t.Status() >= StatusFinalized {
		t.setStatus(StatusKilled)
		return
	}
	t.setStatus(StatusAborted)
}

func (t *Task) killProcess() {
	t.mu.Lock()
	p := t.process
	t.mu.Unlock()
	if p == nil {
		return
	}
	if err := p.Kill(); err != nil {
		log.Printf("spawn task %s: kill process: %v", t.ID, err)
	}
}
