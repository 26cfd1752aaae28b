package spawn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"
)

// Process is a launched game server.
type Process interface {
	// Wait blocks until the process exits.
	Wait() error
	// Kill terminates the process.
	Kill() error
}

// Launcher starts the process backing a task.
type Launcher interface {
	Launch(ctx context.Context, task *Task) (Process, error)
}

// ExecLauncher runs a local executable for every task. The process learns
// how to call back through command-line flags.
type ExecLauncher struct {
	Command   string
	MasterURL string
}

// Launch starts Command with the task arguments followed by the callback flags.
func (l ExecLauncher) Launch(ctx context.Context, task *Task) (Process, error) {
	if l.Command == "" {
		return nil, errors.New("spawn command is not configured")
	}
	args := append([]string(nil), task.Args...)
	args = append(args,
		"-mmMasterUrl", l.MasterURL,
		"-mmTaskId", task.ID,
		"-mmTaskCode", task.Code,
	)
	if task.Region != "" {
		args = append(args, "-mmRegion", task.Region)
	}

	cmd := exec.CommandContext(ctx, l.Command, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", l.Command, err)
	}
	log.Printf("spawn task %s: started pid %d", task.ID, cmd.Process.Pid)
	return execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p execProcess) Wait() error { return p.cmd.Wait() }

func (p execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// ExternalLauncher launches nothing. It logs the task credentials so an
// operator can start a game server by hand, and treats the task as running
// until it is killed.
type ExternalLauncher struct{}

func (ExternalLauncher) Launch(_ context.Context, task *Task) (Process, error) {
	log.Printf("spawn task %s: waiting for an external game server (code %s, args %v)", task.ID, task.Code, task.Args)
	return newHeldProcess(), nil
}

type heldProcess struct {
	once sync.Once
	done chan struct{}
}

func newHeldProcess() *heldProcess { return &heldProcess{done: make(chan struct{})} }

func (p *heldProcess) Wait() error {
	<-p.done
	return nil
}

func (p *heldProcess) Kill() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
