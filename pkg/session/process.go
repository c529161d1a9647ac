package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
)

// Process is a running command the server may need to supersede.
type Process interface {
	// Running reports whether the process has not exited yet.
	Running() bool
	// Terminate asks the process to exit.
	Terminate() error
	// Kill forces the process to exit.
	Kill() error
	// Wait blocks until the process has exited.
	Wait() error
}

// ExecProcess is a Process backed by os/exec. A single goroutine reaps the
// child, so Wait may be called from several places.
type ExecProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// StartProcess starts cmd with stdout and stderr merged into the returned
// reader. The reader stays readable after the process exits until all output
// is consumed.
func StartProcess(cmd *exec.Cmd) (*ExecProcess, io.ReadCloser, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("create pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, nil, err
	}
	pw.Close()

	p := &ExecProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, pr, nil
}

func (p *ExecProcess) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *ExecProcess) Terminate() error {
	err := p.cmd.Process.Signal(syscall.SIGTERM)
	if err == nil || errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	// SIGTERM is not deliverable on every platform.
	return p.Kill()
}

func (p *ExecProcess) Kill() error {
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (p *ExecProcess) Wait() error {
	<-p.done
	return p.err
}

// ExitCode returns the exit status once the process has exited, -1 before.
func (p *ExecProcess) ExitCode() int {
	if p.Running() {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}
