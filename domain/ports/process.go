package ports

import (
	"context"
	"syscall"

	"github.com/deno-lib/oned/domain/entities"
)

// Process is a running child process tracked under a rid.
type Process interface {
	// Pid returns the operating system process id.
	Pid() int

	// Signal delivers sig to the process.
	Signal(sig syscall.Signal) error

	// Done is closed once the process has exited and ExitCode is final.
	Done() <-chan struct{}

	// ExitCode returns the exit status. Processes terminated by a signal
	// report 128 + signal number. Only meaningful after Done is closed.
	ExitCode() int
}

// ProcessLauncher starts processes for the run op.
// Infrastructure adapters implement this to provide process spawning.
type ProcessLauncher interface {
	Launch(ctx context.Context, req entities.RunRequest) (Process, error)
}
