package testutil

import (
	"context"
	"os"
	"sync"
	"syscall"

	"github.com/deno-lib/oned/domain/entities"
	"github.com/deno-lib/oned/domain/ports"
)

// FakeProcess is a ports.Process whose exit is driven by the test.
type FakeProcess struct {
	done     chan struct{}
	signals  []syscall.Signal
	pid      int
	exitCode int
	mu       sync.Mutex
	exited   bool
}

// NewFakeProcess creates a running FakeProcess with the given pid.
func NewFakeProcess(pid int) *FakeProcess {
	return &FakeProcess{pid: pid, done: make(chan struct{})}
}

func (p *FakeProcess) Pid() int { return p.pid }

// Signal records sig. Signalling an exited process returns os.ErrProcessDone.
func (p *FakeProcess) Signal(sig syscall.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.exited {
		return os.ErrProcessDone
	}
	p.signals = append(p.signals, sig)
	return nil
}

func (p *FakeProcess) Done() <-chan struct{} { return p.done }

func (p *FakeProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Exit marks the process as exited with code. Later calls are ignored.
func (p *FakeProcess) Exit(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.exited {
		return
	}
	p.exited = true
	p.exitCode = code
	close(p.done)
}

// Signals returns the signals delivered so far.
func (p *FakeProcess) Signals() []syscall.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]syscall.Signal(nil), p.signals...)
}

// FakeLauncher is a ports.ProcessLauncher handing out FakeProcesses.
type FakeLauncher struct {
	// LaunchFunc overrides the default behavior when set.
	LaunchFunc func(ctx context.Context, req entities.RunRequest) (ports.Process, error)

	// NextPid is the pid given to the next default process.
	NextPid int

	mu        sync.Mutex
	requests  []entities.RunRequest
	processes []*FakeProcess
}

// NewFakeLauncher creates a FakeLauncher starting at pid 100.
func NewFakeLauncher() *FakeLauncher {
	return &FakeLauncher{NextPid: 100}
}

func (l *FakeLauncher) Launch(ctx context.Context, req entities.RunRequest) (ports.Process, error) {
	l.mu.Lock()
	l.requests = append(l.requests, req)
	l.mu.Unlock()

	if l.LaunchFunc != nil {
		return l.LaunchFunc(ctx, req)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	p := NewFakeProcess(l.NextPid)
	l.NextPid++
	l.processes = append(l.processes, p)
	return p, nil
}

// Requests returns every request seen by Launch.
func (l *FakeLauncher) Requests() []entities.RunRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]entities.RunRequest(nil), l.requests...)
}

// Processes returns the processes created by the default behavior.
func (l *FakeLauncher) Processes() []*FakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*FakeProcess(nil), l.processes...)
}

var (
	_ ports.Process         = (*FakeProcess)(nil)
	_ ports.ProcessLauncher = (*FakeLauncher)(nil)
)
