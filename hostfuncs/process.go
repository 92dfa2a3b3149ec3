package hostfuncs

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"os"
	"syscall"

	"github.com/deno-lib/oned/domain/entities"
	"github.com/deno-lib/oned/domain/errors"
	"github.com/deno-lib/oned/domain/ports"
	"github.com/deno-lib/oned/state"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Names of the process ops.
const (
	OpRun    = "run"
	OpKill   = "kill"
	OpStatus = "status"
)

var validate = validator.New()

// decodePayload unmarshals and validates a JSON payload into v.
func decodePayload(op string, payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return &errors.PayloadError{Op: op, Err: err}
	}
	if err := validate.Struct(v); err != nil {
		return &errors.PayloadError{Op: op, Err: err}
	}
	return nil
}

// RunProcess starts the process described by the JSON RunRequest payload and
// tracks it under rid. The result is the process id.
//
// It fails when the payload is missing or invalid, when rid is already
// tracked, or when the process cannot be started.
func RunProcess(ctx context.Context, st *state.State, rid uint32, zeroCopy []byte) (uint32, error) {
	if len(zeroCopy) == 0 {
		return 0, &errors.PayloadError{Op: OpRun, Err: errors.ErrMissingPayload}
	}

	var req entities.RunRequest
	if err := decodePayload(OpRun, zeroCopy, &req); err != nil {
		return 0, err
	}

	st.Reap()
	if _, exists := st.Processes.Get(rid); exists {
		return 0, &errors.ResourceError{Op: OpRun, RID: rid, Err: errors.ErrExists}
	}
	if st.Launcher == nil {
		return 0, &errors.ResourceError{Op: OpRun, RID: rid, Err: stdErrors.New("no process launcher configured")}
	}

	// The child outlives the op call.
	proc, err := st.Launcher.Launch(context.WithoutCancel(ctx), req)
	if err != nil {
		return 0, &errors.ResourceError{Op: OpRun, RID: rid, Err: err}
	}
	if err := st.Processes.Insert(rid, proc); err != nil {
		_ = proc.Signal(syscall.SIGKILL)
		return 0, &errors.ResourceError{Op: OpRun, RID: rid, Err: err}
	}

	go func() {
		<-proc.Done()
		st.Wake()
	}()

	st.Logger.Info("process started",
		zap.Uint32("rid", rid),
		zap.Int("pid", proc.Pid()),
		zap.Strings("cmd", req.Cmd),
	)
	return uint32(proc.Pid()), nil
}

// KillProcess signals the process tracked under rid. The optional JSON
// KillRequest payload selects the signal; SIGKILL is the default. The result
// is 0.
//
// The rid stays tracked until the process exits, so a signal that does not
// end the process leaves it visible to status and to Driver.Close. A process
// that already exited counts as killed and is released at once.
func KillProcess(_ context.Context, st *state.State, rid uint32, zeroCopy []byte) (uint32, error) {
	st.Reap()
	proc, ok := st.Processes.Get(rid)
	if !ok {
		return 0, &errors.ResourceError{Op: OpKill, RID: rid, Err: errors.ErrNotFound}
	}

	sig := syscall.SIGKILL
	if len(zeroCopy) > 0 {
		var req entities.KillRequest
		if err := decodePayload(OpKill, zeroCopy, &req); err != nil {
			return 0, err
		}
		if req.Signal != 0 {
			sig = syscall.Signal(req.Signal)
		}
	}

	if err := proc.Signal(sig); err != nil {
		if !stdErrors.Is(err, os.ErrProcessDone) {
			return 0, &errors.ResourceError{Op: OpKill, RID: rid, Err: err}
		}
		st.Processes.Remove(rid)
	} else {
		st.MarkKilled(rid, proc)
	}

	st.Logger.Info("process killed",
		zap.Uint32("rid", rid),
		zap.Int("pid", proc.Pid()),
		zap.Stringer("signal", sig),
	)
	return 0, nil
}

// ProcessStatus waits for the process tracked under rid to exit and resolves
// with its exit code. The rid is released once the status is delivered.
// An unknown rid fails on the first poll.
func ProcessStatus(_ context.Context, st *state.State, rid uint32, _ []byte) Future {
	st.Reap()
	proc, ok := st.Processes.Get(rid)
	if !ok {
		return Fail(&errors.ResourceError{Op: OpStatus, RID: rid, Err: errors.ErrNotFound})
	}

	return FutureFunc(func(context.Context) (uint32, bool, error) {
		select {
		case <-proc.Done():
		default:
			return 0, false, nil
		}

		releaseProcess(st, rid, proc)

		code := proc.ExitCode()
		if code < 0 {
			return 0, true, &errors.ResourceError{Op: OpStatus, RID: rid, Err: stdErrors.New("exit status unavailable")}
		}
		st.Logger.Info("process exited",
			zap.Uint32("rid", rid),
			zap.Int("pid", proc.Pid()),
			zap.Int("exit_code", code),
		)
		return uint32(code), true, nil
	})
}

// releaseProcess untracks rid if it still refers to proc. A later run may
// have reused the rid after a kill.
func releaseProcess(st *state.State, rid uint32, proc ports.Process) {
	if cur, ok := st.Processes.Get(rid); ok && cur == proc {
		st.Processes.Remove(rid)
	}
}
