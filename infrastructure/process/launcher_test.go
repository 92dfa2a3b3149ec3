package process

import (
	"bytes"
	"context"
	stdErrors "errors"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/deno-lib/oned/domain/entities"
	"github.com/deno-lib/oned/domain/errors"
	"github.com/deno-lib/oned/domain/ports"
	"github.com/deno-lib/oned/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func sh(script string) entities.RunRequest {
	return entities.RunRequest{Cmd: []string{"/bin/sh", "-c", script}}
}

func waitExit(t *testing.T, p ports.Process) int {
	t.Helper()

	select {
	case <-p.Done():
		return p.ExitCode()
	case <-time.After(10 * time.Second):
		t.Fatal("process did not exit")
		return 0
	}
}

func TestLaunch_ExitCode(t *testing.T) {
	l := NewLauncher()

	p, err := l.Launch(context.Background(), sh("exit 3"))
	require.NoError(t, err)
	assert.Positive(t, p.Pid())
	assert.Equal(t, 3, waitExit(t, p))
}

func TestLaunch_Stdout(t *testing.T) {
	var stdout bytes.Buffer
	l := NewLauncher(WithStdout(&stdout))

	p, err := l.Launch(context.Background(), entities.RunRequest{Cmd: []string{"echo", "hello from oned"}})
	require.NoError(t, err)
	assert.Equal(t, 0, waitExit(t, p))
	assert.Equal(t, "hello from oned\n", stdout.String())
}

func TestLaunch_StdinCwdEnv(t *testing.T) {
	var stdout bytes.Buffer
	l := NewLauncher(WithStdout(&stdout))
	dir := t.TempDir()

	req := sh(`read line; echo "$line|$(pwd)|$GREETING|$LD_PRELOAD"`)
	req.Stdin = "piped\n"
	req.Cwd = dir
	req.Env = []string{"GREETING=hi", "LD_PRELOAD=/evil.so"}

	p, err := l.Launch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, waitExit(t, p))

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Contains(t, []string{
		"piped|" + dir + "|hi|\n",
		"piped|" + resolved + "|hi|\n",
	}, stdout.String())
}

func TestLaunch_SignalExitCode(t *testing.T) {
	l := NewLauncher()

	p, err := l.Launch(context.Background(), sh("sleep 30"))
	require.NoError(t, err)

	require.NoError(t, p.Signal(syscall.SIGKILL))
	assert.Equal(t, 128+int(syscall.SIGKILL), waitExit(t, p))

	err = p.Signal(syscall.SIGKILL)
	assert.ErrorIs(t, err, os.ErrProcessDone)
}

func TestLaunch_MaxLifetime(t *testing.T) {
	logger, logs := testutil.NewObservedLogger(zapcore.WarnLevel)
	l := NewLauncher(WithMaxLifetime(50*time.Millisecond), WithLogger(logger))

	p, err := l.Launch(context.Background(), sh("sleep 30"))
	require.NoError(t, err)

	assert.Equal(t, 128+int(syscall.SIGKILL), waitExit(t, p))
	assert.Equal(t, 1, logs.FilterMessage("process exceeded max lifetime, killing").Len())
}

func TestLaunch_StderrCapture(t *testing.T) {
	logger, logs := testutil.NewObservedLogger(zapcore.DebugLevel)
	l := NewLauncher(WithLogger(logger), WithStderrCapture(5))

	p, err := l.Launch(context.Background(), sh("echo oops-too-long >&2; exit 1"))
	require.NoError(t, err)
	assert.Equal(t, 1, waitExit(t, p))

	require.Eventually(t, func() bool {
		return logs.FilterMessage("process exited unsuccessfully").Len() == 1
	}, 5*time.Second, 10*time.Millisecond)

	fields := logs.FilterMessage("process exited unsuccessfully").All()[0].ContextMap()
	assert.Equal(t, "oops-", fields["stderr"])
	assert.Equal(t, true, fields["stderr_truncated"])
}

func TestLaunch_Failures(t *testing.T) {
	l := NewLauncher()

	t.Run("missing binary", func(t *testing.T) {
		_, err := l.Launch(context.Background(), entities.RunRequest{Cmd: []string{"/nonexistent/oned-test-binary"}})
		var launchErr *errors.LaunchError
		require.True(t, stdErrors.As(err, &launchErr))
		assert.Equal(t, "/nonexistent/oned-test-binary", launchErr.Command)
	})

	t.Run("empty command", func(t *testing.T) {
		_, err := l.Launch(context.Background(), entities.RunRequest{})
		assert.ErrorContains(t, err, "command is required")
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := l.Launch(ctx, sh("true"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLaunch_AllowedCommands(t *testing.T) {
	logger, logs := testutil.NewObservedLogger(zapcore.WarnLevel)
	l := NewLauncher(WithAllowedCommands("/bin/*", "/usr/bin/**"), WithLogger(logger))

	p, err := l.Launch(context.Background(), entities.RunRequest{Cmd: []string{"/bin/../bin/sh", "-c", "exit 0"}})
	require.NoError(t, err)
	assert.Equal(t, 0, waitExit(t, p))

	_, err = l.Launch(context.Background(), entities.RunRequest{Cmd: []string{"/opt/tools/run"}})
	assert.ErrorIs(t, err, ErrCommandNotAllowed)
	assert.ErrorContains(t, err, "failed to start '/opt/tools/run'")
	assert.Equal(t, 1, logs.FilterMessage("command denied").Len())
}

func TestLaunch_AllowedCommandsResolvePath(t *testing.T) {
	resolved, err := exec.LookPath("sh")
	require.NoError(t, err)

	l := NewLauncher(WithAllowedCommands(filepath.Clean(resolved)))
	p, err := l.Launch(context.Background(), entities.RunRequest{Cmd: []string{"sh", "-c", "exit 3"}})
	require.NoError(t, err)
	assert.Equal(t, 3, waitExit(t, p))

	l = NewLauncher(WithAllowedCommands("sh"))
	p, err = l.Launch(context.Background(), entities.RunRequest{Cmd: []string{"sh", "-c", "exit 0"}})
	require.NoError(t, err, "bare names match literally too")
	assert.Equal(t, 0, waitExit(t, p))
}

func TestLaunch_OutlivesContext(t *testing.T) {
	l := NewLauncher()
	ctx, cancel := context.WithCancel(context.Background())

	p, err := l.Launch(ctx, sh("sleep 0.2; exit 4"))
	require.NoError(t, err)
	cancel()

	assert.Equal(t, 4, waitExit(t, p))
}

func TestNewLauncher_Options(t *testing.T) {
	l := NewLauncher(WithStdout(nil), WithStderr(nil), WithLogger(nil), WithMaxLifetime(-1), WithStderrCapture(-1))

	assert.NotNil(t, l.stdout)
	assert.NotNil(t, l.stderr)
	assert.NotNil(t, l.logger)
	assert.Zero(t, l.maxLifetime)
	assert.Equal(t, DefaultStderrCapture, l.stderrCapture)
}
