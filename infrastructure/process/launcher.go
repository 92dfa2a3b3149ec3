// Package process provides the os/exec backed ports.ProcessLauncher used by
// the run op.
package process

import (
	"context"
	stdErrors "errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/deno-lib/oned/domain/entities"
	"github.com/deno-lib/oned/domain/errors"
	"github.com/deno-lib/oned/domain/ports"
	"go.uber.org/zap"
)

// DefaultStderrCapture is how much stderr is kept for the exit log line (4KB).
const DefaultStderrCapture = 4 * 1024

// Option is a functional option for configuring a Launcher.
type Option func(*Launcher)

// WithStdout sets where process stdout goes. Default is io.Discard.
func WithStdout(w io.Writer) Option {
	return func(l *Launcher) {
		if w != nil {
			l.stdout = w
		}
	}
}

// WithStderr sets where process stderr goes. Default is io.Discard.
func WithStderr(w io.Writer) Option {
	return func(l *Launcher) {
		if w != nil {
			l.stderr = w
		}
	}
}

// WithMaxLifetime kills processes that run longer than d. Zero disables the limit.
func WithMaxLifetime(d time.Duration) Option {
	return func(l *Launcher) {
		if d >= 0 {
			l.maxLifetime = d
		}
	}
}

// WithStderrCapture sets how many bytes of stderr are logged when a process
// exits unsuccessfully. Zero disables capture.
func WithStderrCapture(limit int) Option {
	return func(l *Launcher) {
		if limit >= 0 {
			l.stderrCapture = limit
		}
	}
}

// WithAllowedCommands restricts Launch to programs whose cleaned path matches
// one of the doublestar patterns (for example "/usr/bin/*" or "**/sh").
// No patterns means every program is allowed.
func WithAllowedCommands(patterns ...string) Option {
	return func(l *Launcher) {
		l.allowed = append(l.allowed, patterns...)
	}
}

// WithLogger sets the launcher logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Launcher) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Launcher starts child processes with os/exec.
type Launcher struct {
	stdout        io.Writer
	stderr        io.Writer
	logger        *zap.Logger
	allowed       []string
	maxLifetime   time.Duration
	stderrCapture int
}

// ErrCommandNotAllowed is returned when a program matches no allowed pattern.
var ErrCommandNotAllowed = stdErrors.New("command not allowed")

// commandAllowed matches program against the allowlist. Bare program names
// are also matched by the path they resolve to on PATH.
func (l *Launcher) commandAllowed(program string) bool {
	if len(l.allowed) == 0 {
		return true
	}
	candidates := []string{filepath.Clean(program)}
	if !strings.ContainsRune(program, filepath.Separator) {
		if resolved, err := exec.LookPath(program); err == nil {
			candidates = append(candidates, filepath.Clean(resolved))
		}
	}
	for _, pattern := range l.allowed {
		for _, candidate := range candidates {
			if matched, _ := doublestar.Match(pattern, candidate); matched {
				return true
			}
		}
	}
	return false
}

// NewLauncher creates a Launcher with the given options.
func NewLauncher(opts ...Option) *Launcher {
	l := &Launcher{
		stdout:        io.Discard,
		stderr:        io.Discard,
		logger:        zap.NewNop(),
		stderrCapture: DefaultStderrCapture,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch starts req and returns immediately. The process is not bound to ctx;
// ctx only aborts a launch that has not started yet.
func (l *Launcher) Launch(ctx context.Context, req entities.RunRequest) (ports.Process, error) {
	if len(req.Cmd) == 0 || req.Cmd[0] == "" {
		return nil, &errors.LaunchError{Err: stdErrors.New("command is required")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &errors.LaunchError{Command: req.Cmd[0], Err: err}
	}
	if !l.commandAllowed(req.Cmd[0]) {
		l.logger.Warn("command denied", zap.String("command", req.Cmd[0]))
		return nil, &errors.LaunchError{Command: req.Cmd[0], Err: ErrCommandNotAllowed}
	}

	//nolint:gosec // G204: Command execution is the purpose of this function
	cmd := exec.Command(req.Cmd[0], req.Cmd[1:]...)
	cmd.Dir = req.Cwd
	if len(req.Env) > 0 {
		cmd.Env = SanitizeEnv(req.Env, l.logger)
	}
	if req.Stdin != "" {
		cmd.Stdin = strings.NewReader(req.Stdin)
	}

	var captured *BoundedBuffer
	cmd.Stdout = l.stdout
	cmd.Stderr = l.stderr
	if l.stderrCapture > 0 {
		captured = NewBoundedBuffer(l.stderrCapture)
		cmd.Stderr = io.MultiWriter(l.stderr, captured)
	}

	if err := cmd.Start(); err != nil {
		return nil, &errors.LaunchError{Command: req.Cmd[0], Err: err}
	}

	p := &process{
		cmd:    cmd,
		done:   make(chan struct{}),
		logger: l.logger.With(zap.Int("pid", cmd.Process.Pid), zap.String("command", req.Cmd[0])),
	}

	var timer *time.Timer
	if l.maxLifetime > 0 {
		timer = time.AfterFunc(l.maxLifetime, func() {
			p.logger.Warn("process exceeded max lifetime, killing", zap.Duration("max_lifetime", l.maxLifetime))
			_ = cmd.Process.Kill()
		})
	}

	go p.wait(timer, captured)
	return p, nil
}

// process is a started exec.Cmd.
type process struct {
	cmd      *exec.Cmd
	done     chan struct{}
	logger   *zap.Logger
	exitCode int
}

func (p *process) Pid() int {
	return p.cmd.Process.Pid
}

// Signal delivers sig. It returns os.ErrProcessDone once the process has been reaped.
func (p *process) Signal(sig syscall.Signal) error {
	return p.cmd.Process.Signal(sig)
}

func (p *process) Done() <-chan struct{} {
	return p.done
}

func (p *process) ExitCode() int {
	return p.exitCode
}

func (p *process) wait(timer *time.Timer, captured *BoundedBuffer) {
	err := p.cmd.Wait()
	if timer != nil {
		timer.Stop()
	}

	p.exitCode = exitCode(p.cmd.ProcessState)
	close(p.done)

	if err == nil {
		p.logger.Debug("process exited")
		return
	}
	fields := []zap.Field{zap.Int("exit_code", p.exitCode), zap.Error(err)}
	if captured != nil && captured.Len() > 0 {
		fields = append(fields, zap.String("stderr", captured.String()), zap.Bool("stderr_truncated", captured.Truncated))
	}
	p.logger.Debug("process exited unsuccessfully", fields...)
}

// exitCode maps a finished process state to an exit status. Processes
// terminated by a signal report 128 + signal number, like a POSIX shell.
func exitCode(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}
